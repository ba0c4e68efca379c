package grpc

import (
	"context"

	"github.com/dmitrijs2005/tubeaccounts/internal/api"
	"github.com/dmitrijs2005/tubeaccounts/internal/common"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/media"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/models"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/services"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/sessions"
)

func (s *GRPCServer) Register(ctx context.Context, req *api.RegisterRequest) (*api.RegisterResponse, error) {

	user, err := s.users.Register(ctx, services.RegisterInput{
		FullName:   req.FullName,
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		Avatar:     toImage(req.Avatar),
		CoverImage: toImage(req.CoverImage),
	})
	if err != nil {
		s.logFailure(ctx, "register failed", err)
		return nil, toStatus(err)
	}

	return &api.RegisterResponse{User: toUser(user)}, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *api.LoginRequest) (*api.LoginResponse, error) {

	user, pair, err := s.users.Login(ctx, sessions.Credentials{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		s.logFailure(ctx, "login failed", err)
		return nil, toStatus(err)
	}

	return &api.LoginResponse{User: toUser(user), Tokens: toTokens(pair)}, nil
}

func (s *GRPCServer) Logout(ctx context.Context, _ *api.LogoutRequest) (*api.LogoutResponse, error) {

	userID, ok := userIDFromContext(ctx)
	if !ok {
		return nil, toStatus(common.ErrorUnauthorized)
	}

	if err := s.users.Logout(ctx, userID); err != nil {
		s.logFailure(ctx, "logout failed", err)
		return nil, toStatus(err)
	}

	return &api.LogoutResponse{}, nil
}

func (s *GRPCServer) Refresh(ctx context.Context, req *api.RefreshRequest) (*api.RefreshResponse, error) {

	pair, err := s.users.Refresh(ctx, req.RefreshToken)
	if err != nil {
		s.logFailure(ctx, "refresh failed", err)
		return nil, toStatus(err)
	}

	return &api.RefreshResponse{Tokens: toTokens(pair)}, nil
}

func (s *GRPCServer) Me(ctx context.Context, _ *api.MeRequest) (*api.MeResponse, error) {

	userID, ok := userIDFromContext(ctx)
	if !ok {
		return nil, toStatus(common.ErrorUnauthorized)
	}

	user, err := s.users.Me(ctx, userID)
	if err != nil {
		s.logFailure(ctx, "profile lookup failed", err)
		return nil, toStatus(err)
	}

	return &api.MeResponse{User: toUser(user)}, nil
}

func (s *GRPCServer) Ping(ctx context.Context, _ *api.PingRequest) (*api.PingResponse, error) {
	return &api.PingResponse{Status: "OK"}, nil
}

// logFailure logs server faults as errors and caller faults as warnings.
func (s *GRPCServer) logFailure(ctx context.Context, msg string, err error) {
	if isCallerFault(err) {
		s.logger.Warn(ctx, msg, "error", err)
		return
	}
	s.logger.Error(ctx, msg, "error", err)
}

func toImage(img *api.Image) *media.Image {
	if img == nil {
		return nil
	}
	return &media.Image{Filename: img.Filename, Data: img.Data}
}

func toUser(u *models.User) *api.User {
	if u == nil {
		return nil
	}
	return &api.User{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func toTokens(p *sessions.TokenPair) api.TokenPair {
	if p == nil {
		return api.TokenPair{}
	}
	return api.TokenPair{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken}
}
