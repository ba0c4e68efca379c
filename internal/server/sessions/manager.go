// Package sessions issues, rotates and revokes access/refresh token pairs.
//
// Access tokens are verified by signature and expiry only. A refresh token
// is valid only while it equals the single value stored on its identity, so
// every login, rotation or revocation invalidates the previous one. Rotation
// persists the new value with a compare-and-swap, which gives concurrent
// rotations of the same token exactly one winner.
package sessions

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/tubeaccounts/internal/common"
	"github.com/dmitrijs2005/tubeaccounts/internal/logging"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/auth"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/models"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/passwords"
)

// Store is the part of the identity store the manager needs.
type Store interface {
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateRefreshToken(ctx context.Context, id, token string) error
	SwapRefreshToken(ctx context.Context, id, expected, next string) error
}

type TokenCodec interface {
	Sign(p auth.Payload, purpose auth.Purpose, ttl time.Duration) (string, error)
	Verify(token string, purpose auth.Purpose) (*auth.Payload, error)
}

type PasswordChecker interface {
	Compare(hash, password string) error
}

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type Credentials struct {
	Username string
	Email    string
	Password string
}

type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type Manager struct {
	store     Store
	codec     TokenCodec
	passwords PasswordChecker
	config    Config
	logger    logging.Logger
}

func NewManager(store Store, codec TokenCodec, pw PasswordChecker, cfg Config, logger logging.Logger) *Manager {
	return &Manager{
		store:     store,
		codec:     codec,
		passwords: pw,
		config:    cfg,
		logger:    logger.With("module", "sessions"),
	}
}

// Issue signs a new pair for identityID and stores its refresh half,
// replacing any previous one. The pair is returned only after the write.
func (m *Manager) Issue(ctx context.Context, identityID string) (*TokenPair, error) {
	pair, err := m.sign(identityID)
	if err != nil {
		return nil, err
	}

	if err := m.store.UpdateRefreshToken(ctx, identityID, pair.RefreshToken); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: %w", common.ErrorInternal, common.ErrIdentityNotFound)
		}
		return nil, fmt.Errorf("%w: store refresh token: %w", common.ErrorInternal, err)
	}

	return pair, nil
}

// Authenticate looks the identity up by username or email and checks the
// password. A lookup miss and a wrong password are reported separately.
func (m *Manager) Authenticate(ctx context.Context, c Credentials) (*models.User, error) {
	username := strings.ToLower(strings.TrimSpace(c.Username))
	email := strings.ToLower(strings.TrimSpace(c.Email))

	if username == "" && email == "" {
		return nil, fmt.Errorf("%w: username or email is required", common.ErrValidation)
	}
	if c.Password == "" {
		return nil, fmt.Errorf("%w: password is required", common.ErrValidation)
	}

	user, err := m.store.FindByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, unauthorized(common.ErrIdentityNotFound)
		}
		return nil, fmt.Errorf("%w: find identity: %w", common.ErrorInternal, err)
	}

	if err := m.passwords.Compare(user.PasswordHash, c.Password); err != nil {
		if errors.Is(err, passwords.ErrMismatch) {
			return nil, unauthorized(common.ErrCredentialMismatch)
		}
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	return user, nil
}

// Rotate exchanges a current refresh token for a new pair. The presented
// token stops working once the call succeeds.
func (m *Manager) Rotate(ctx context.Context, presented string) (*models.User, *TokenPair, error) {
	if presented == "" {
		return nil, nil, unauthorized(common.ErrMissingToken)
	}

	payload, err := m.codec.Verify(presented, auth.PurposeRefresh)
	if err != nil {
		return nil, nil, tokenError(err)
	}

	user, err := m.store.FindByID(ctx, payload.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, unauthorized(common.ErrIdentityNotFound)
		}
		return nil, nil, fmt.Errorf("%w: find identity: %w", common.ErrorInternal, err)
	}

	if !sameToken(user.RefreshToken, presented) {
		m.logger.Warn(ctx, "stale refresh token presented", "user_id", user.ID)
		return nil, nil, unauthorized(common.ErrRefreshTokenMismatch)
	}

	pair, err := m.sign(user.ID)
	if err != nil {
		return nil, nil, err
	}

	if err := m.store.SwapRefreshToken(ctx, user.ID, presented, pair.RefreshToken); err != nil {
		switch {
		case errors.Is(err, common.ErrRefreshTokenMismatch):
			m.logger.Warn(ctx, "refresh token lost rotation race", "user_id", user.ID)
			return nil, nil, unauthorized(common.ErrRefreshTokenMismatch)
		case errors.Is(err, common.ErrorNotFound):
			return nil, nil, unauthorized(common.ErrIdentityNotFound)
		default:
			return nil, nil, fmt.Errorf("%w: swap refresh token: %w", common.ErrorInternal, err)
		}
	}

	user.RefreshToken = pair.RefreshToken
	return user.Public(), pair, nil
}

// Revoke clears the stored refresh token. Access tokens already handed out
// stay valid until they expire.
func (m *Manager) Revoke(ctx context.Context, identityID string) error {
	if err := m.store.UpdateRefreshToken(ctx, identityID, ""); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return unauthorized(common.ErrIdentityNotFound)
		}
		return fmt.Errorf("%w: clear refresh token: %w", common.ErrorInternal, err)
	}
	return nil
}

// VerifyAccess checks an access token and returns the identity id it
// carries. No store lookup is made.
func (m *Manager) VerifyAccess(token string) (string, error) {
	if token == "" {
		return "", unauthorized(common.ErrMissingToken)
	}
	payload, err := m.codec.Verify(token, auth.PurposeAccess)
	if err != nil {
		return "", tokenError(err)
	}
	return payload.UserID, nil
}

func (m *Manager) sign(identityID string) (*TokenPair, error) {
	access, err := m.codec.Sign(auth.Payload{UserID: identityID}, auth.PurposeAccess, m.config.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	refresh, err := m.codec.Sign(auth.Payload{UserID: identityID}, auth.PurposeRefresh, m.config.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func unauthorized(detail error) error {
	return fmt.Errorf("%w: %w", common.ErrorUnauthorized, detail)
}

func tokenError(err error) error {
	if errors.Is(err, auth.ErrExpired) {
		return fmt.Errorf("%w: %w: %w", common.ErrorUnauthorized, common.ErrInvalidToken, common.ErrTokenExpired)
	}
	return fmt.Errorf("%w: %w: %w", common.ErrorUnauthorized, common.ErrInvalidToken, err)
}

func sameToken(stored, presented string) bool {
	if stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}
