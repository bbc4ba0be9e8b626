package port

import (
	"context"
	"time"

	"github.com/ledgerline/portal-iam/internal/core/domain"
)

// UserStore exposes persistence behavior for user accounts.
//
// Token-consuming operations (ConsumeInviteToken, ConsumeResetToken) are
// conditional single-statement updates: they clear the token and expiry in
// the same write that changes the password, and report
// repository.ErrNotFound when no live token matched.
type UserStore interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByEmailOrUsername(ctx context.Context, email, username string) (*domain.User, error)
	UpdateProfile(ctx context.Context, id string, email, username, passwordHash, firstName, lastName, address string) error
	SetInviteToken(ctx context.Context, id string, tokenHash string, expiresAt time.Time) error
	SetResetToken(ctx context.Context, id string, tokenHash string, expiresAt time.Time) error
	ConsumeInviteToken(ctx context.Context, tokenHash string, passwordHash string, now time.Time) (*domain.User, error)
	ConsumeResetToken(ctx context.Context, tokenHash string, passwordHash string, now time.Time) (*domain.User, error)
}
