// Package services contains server-side business logic. UserService handles
// registration, login, logout, session refresh and profile lookup on top of
// the session manager, the identity store and the media store.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/tubeaccounts/internal/common"
	"github.com/dmitrijs2005/tubeaccounts/internal/dbx"
	"github.com/dmitrijs2005/tubeaccounts/internal/logging"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/media"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/models"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/sessions"
)

const (
	avatarPrefix = "avatars"
	coverPrefix  = "covers"
)

type MediaStore interface {
	Check(img media.Image) (string, error)
	Upload(ctx context.Context, prefix string, img media.Image) (string, error)
	Delete(ctx context.Context, url string) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
}

type LoginLimiter interface {
	Check(ctx context.Context, login string) error
	Fail(ctx context.Context, login string) error
	Reset(ctx context.Context, login string) error
}

type RegisterInput struct {
	FullName   string
	Username   string
	Email      string
	Password   string
	Avatar     *media.Image
	CoverImage *media.Image
}

type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	sessions    *sessions.Manager
	hasher      PasswordHasher
	media       MediaStore
	limiter     LoginLimiter
	logger      logging.Logger
}

// NewUserService wires the service. limiter may be nil to disable login
// throttling.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, sm *sessions.Manager,
	h PasswordHasher, ms MediaStore, limiter LoginLimiter, logger logging.Logger) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		sessions:    sm,
		hasher:      h,
		media:       ms,
		limiter:     limiter,
		logger:      logger.With("module", "user_service"),
	}
}

// Register creates an identity with an uploaded avatar and an optional
// cover image. The new identity has no session until its first login.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in, err := normalizeRegistration(in)
	if err != nil {
		return nil, err
	}

	if in.Avatar == nil {
		return nil, fmt.Errorf("%w: avatar is required", common.ErrValidation)
	}
	if _, err := s.media.Check(*in.Avatar); err != nil {
		return nil, fmt.Errorf("%w: avatar: %w", common.ErrValidation, err)
	}
	if in.CoverImage != nil {
		if _, err := s.media.Check(*in.CoverImage); err != nil {
			return nil, fmt.Errorf("%w: cover image: %w", common.ErrValidation, err)
		}
	}

	if err := s.ensureAvailable(ctx, s.repomanager.Users(s.db), in.Username, in.Email); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	avatarURL, err := s.media.Upload(ctx, avatarPrefix, *in.Avatar)
	if err != nil {
		return nil, fmt.Errorf("%w: avatar upload: %w", common.ErrorInternal, err)
	}
	uploaded := []string{avatarURL}

	var coverURL string
	if in.CoverImage != nil {
		coverURL, err = s.media.Upload(ctx, coverPrefix, *in.CoverImage)
		if err != nil {
			s.logger.Warn(ctx, "cover image upload failed, continuing without it", "error", err)
			coverURL = ""
		} else {
			uploaded = append(uploaded, coverURL)
		}
	}

	user, err := dbx.InTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.User, error) {
		repo := s.repomanager.Users(tx)
		if err := s.ensureAvailable(ctx, repo, in.Username, in.Email); err != nil {
			return nil, err
		}
		return repo.Create(ctx, &models.User{
			Username:      in.Username,
			Email:         in.Email,
			FullName:      in.FullName,
			PasswordHash:  hash,
			AvatarURL:     avatarURL,
			CoverImageURL: coverURL,
		})
	})
	if err != nil {
		s.discardUploads(ctx, uploaded)
		switch {
		case errors.Is(err, common.ErrAlreadyExists):
			return nil, fmt.Errorf("%w: username or email is taken", common.ErrAlreadyExists)
		case errors.Is(err, common.ErrorInternal):
			return nil, err
		default:
			return nil, fmt.Errorf("%w: create identity: %w", common.ErrorInternal, err)
		}
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID, "username", user.Username)
	return user.Public(), nil
}

// Login authenticates the credentials and starts a new session, replacing
// any previous one for the identity.
func (s *UserService) Login(ctx context.Context, c sessions.Credentials) (*models.User, *sessions.TokenPair, error) {
	key := loginKey(c)

	if err := s.checkLimiter(ctx, key); err != nil {
		return nil, nil, err
	}

	user, err := s.sessions.Authenticate(ctx, c)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			s.recordFailure(ctx, key)
		}
		return nil, nil, err
	}

	pair, err := s.sessions.Issue(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, key); err != nil {
			s.logger.Warn(ctx, "login limiter reset failed", "error", err)
		}
	}

	s.logger.Info(ctx, "user logged in", "user_id", user.ID)
	return user.Public(), pair, nil
}

// Logout ends the identity's session. It returns after the stored refresh
// token has been cleared.
func (s *UserService) Logout(ctx context.Context, identityID string) error {
	if err := s.sessions.Revoke(ctx, identityID); err != nil {
		return err
	}
	s.logger.Info(ctx, "user logged out", "user_id", identityID)
	return nil
}

func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*sessions.TokenPair, error) {
	_, pair, err := s.sessions.Rotate(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Me returns the public profile of identityID.
func (s *UserService) Me(ctx context.Context, identityID string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).FindByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: %w", common.ErrorUnauthorized, common.ErrIdentityNotFound)
		}
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	return user.Public(), nil
}

// Authorize resolves an access token to an identity id.
func (s *UserService) Authorize(accessToken string) (string, error) {
	return s.sessions.VerifyAccess(accessToken)
}

type userFinder interface {
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error)
}

func (s *UserService) ensureAvailable(ctx context.Context, repo userFinder, username, email string) error {
	_, err := repo.FindByUsernameOrEmail(ctx, username, email)
	switch {
	case err == nil:
		return fmt.Errorf("%w: username or email is taken", common.ErrAlreadyExists)
	case errors.Is(err, common.ErrorNotFound):
		return nil
	default:
		return fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
}

func (s *UserService) checkLimiter(ctx context.Context, key string) error {
	if s.limiter == nil {
		return nil
	}
	err := s.limiter.Check(ctx, key)
	if errors.Is(err, common.ErrRateLimited) {
		s.logger.Warn(ctx, "login rate limited", "login", key)
		return err
	}
	if err != nil {
		s.logger.Warn(ctx, "login limiter unavailable", "error", err)
	}
	return nil
}

func (s *UserService) recordFailure(ctx context.Context, key string) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.Fail(ctx, key); err != nil {
		s.logger.Warn(ctx, "login limiter update failed", "error", err)
	}
}

func (s *UserService) discardUploads(ctx context.Context, urls []string) {
	ctx = context.WithoutCancel(ctx)
	for _, u := range urls {
		if err := s.media.Delete(ctx, u); err != nil {
			s.logger.Warn(ctx, "orphaned upload not removed", "url", u, "error", err)
		}
	}
}

func loginKey(c sessions.Credentials) string {
	if u := strings.TrimSpace(c.Username); u != "" {
		return strings.ToLower(u)
	}
	return strings.ToLower(strings.TrimSpace(c.Email))
}
