package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/tubeaccounts/internal/api"
	"github.com/dmitrijs2005/tubeaccounts/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// accountAPI is satisfied by *api.AccountServiceClient.
type accountAPI interface {
	Register(ctx context.Context, in *api.RegisterRequest, opts ...grpc.CallOption) (*api.RegisterResponse, error)
	Login(ctx context.Context, in *api.LoginRequest, opts ...grpc.CallOption) (*api.LoginResponse, error)
	Logout(ctx context.Context, in *api.LogoutRequest, opts ...grpc.CallOption) (*api.LogoutResponse, error)
	Refresh(ctx context.Context, in *api.RefreshRequest, opts ...grpc.CallOption) (*api.RefreshResponse, error)
	Me(ctx context.Context, in *api.MeRequest, opts ...grpc.CallOption) (*api.MeResponse, error)
	Ping(ctx context.Context, in *api.PingRequest, opts ...grpc.CallOption) (*api.PingResponse, error)
}

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      accountAPI

	mu     sync.Mutex
	tokens api.TokenPair
	// onTokens is called with the new pair whenever it changes.
	onTokens func(api.TokenPair)
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	md.Set(common.AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	// Refresh carries its token in the body and must not recurse.
	if method == api.MethodRefresh {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	tokens := s.Tokens()
	if tokens.AccessToken != "" {
		ctx = withAccessToken(ctx, tokens.AccessToken)
	}

	err := invoker(ctx, method, req, reply, cc, opts...)
	if err == nil || !isTokenExpired(err) || tokens.RefreshToken == "" {
		return err
	}

	fresh, rerr := s.refresh(ctx, tokens.RefreshToken)
	if rerr != nil {
		return err
	}

	return invoker(withAccessToken(ctx, fresh.AccessToken), method, req, reply, cc, opts...)
}

func isTokenExpired(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.Unauthenticated && st.Message() == common.ErrTokenExpired.Error()
}

// NewAccountClient connects to endpointURL. Extra dial options are appended
// to the defaults.
func NewAccountClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, dialOpts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = api.NewAccountServiceClient(conn)
	return c, nil
}

// OnTokens registers fn to be called after every token change, including
// automatic refreshes. Pass nil to unregister.
func (s *GRPCClient) OnTokens(fn func(api.TokenPair)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTokens = fn
}

func (s *GRPCClient) Tokens() api.TokenPair {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

// SetTokens restores a previously saved pair.
func (s *GRPCClient) SetTokens(p api.TokenPair) {
	s.mu.Lock()
	s.tokens = p
	fn := s.onTokens
	s.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

func (s *GRPCClient) LoggedIn() bool {
	return s.Tokens().RefreshToken != ""
}

type RegisterInput struct {
	FullName   string
	Username   string
	Email      string
	Password   []byte
	Avatar     *api.Image
	CoverImage *api.Image
}

func (s *GRPCClient) Register(ctx context.Context, in RegisterInput) (*api.User, error) {
	resp, err := s.client.Register(ctx, &api.RegisterRequest{
		FullName:   in.FullName,
		Username:   in.Username,
		Email:      in.Email,
		Password:   string(in.Password),
		Avatar:     in.Avatar,
		CoverImage: in.CoverImage,
	})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.User, nil
}

// Login signs in with a username or an email (whichever is non-empty) and
// keeps the returned tokens.
func (s *GRPCClient) Login(ctx context.Context, username, email string, password []byte) (*api.User, error) {
	resp, err := s.client.Login(ctx, &api.LoginRequest{Username: username, Email: email, Password: string(password)})
	if err != nil {
		return nil, s.mapError(err)
	}
	s.SetTokens(resp.Tokens)
	return resp.User, nil
}

// Logout ends the session on the server and forgets the local tokens. The
// local tokens are dropped even when the server call fails.
func (s *GRPCClient) Logout(ctx context.Context) error {
	if !s.LoggedIn() {
		return ErrNotLoggedIn
	}
	_, err := s.client.Logout(ctx, &api.LogoutRequest{})
	s.SetTokens(api.TokenPair{})
	if err != nil {
		return s.mapError(err)
	}
	return nil
}

// Refresh rotates the token pair explicitly.
func (s *GRPCClient) Refresh(ctx context.Context) error {
	tokens := s.Tokens()
	if tokens.RefreshToken == "" {
		return ErrNotLoggedIn
	}
	if _, err := s.refresh(ctx, tokens.RefreshToken); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *GRPCClient) refresh(ctx context.Context, refreshToken string) (api.TokenPair, error) {
	resp, err := s.client.Refresh(ctx, &api.RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		if status.Code(err) == codes.Unauthenticated {
			// the session is gone for good
			s.SetTokens(api.TokenPair{})
		}
		return api.TokenPair{}, err
	}
	s.SetTokens(resp.Tokens)
	return resp.Tokens, nil
}

func (s *GRPCClient) Me(ctx context.Context) (*api.User, error) {
	if !s.LoggedIn() {
		return nil, ErrNotLoggedIn
	}
	resp, err := s.client.Me(ctx, &api.MeRequest{})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.User, nil
}

func (s *GRPCClient) Ping(ctx context.Context) error {

	resp, err := s.client.Ping(ctx, &api.PingRequest{})
	if err != nil {
		return s.mapError(err)
	}

	if resp.Status != "OK" {
		return ErrUnavailable
	}

	return nil
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.AlreadyExists:
		return ErrAlreadyExists
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrInvalidInput, st.Message())
	case codes.ResourceExhausted:
		return ErrTooManyAttempts
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
