package users

import (
	"context"

	"github.com/dmitrijs2005/tubeaccounts/internal/server/models"
)

// Repository is the identity store. Lookups of a missing identity return
// common.ErrorNotFound.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)

	// UpdateRefreshToken stores token unconditionally; "" clears it.
	UpdateRefreshToken(ctx context.Context, id, token string) error

	// SwapRefreshToken stores next only if the stored token equals expected,
	// as one atomic statement. It returns common.ErrRefreshTokenMismatch when
	// the stored value differs.
	SwapRefreshToken(ctx context.Context, id, expected, next string) error
}
