package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/eduportal/backend/internal/model"
)

// AccountStore is the identity module's user-record store as the auth
// core needs it. *db.Postgres satisfies it.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
	GetAccountByID(ctx context.Context, id uuid.UUID) (*model.Account, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.AccountStatus) error
	UpdateRoles(ctx context.Context, id uuid.UUID, roles []model.Role) error
	ListAccounts(ctx context.Context, page, pageSize int) ([]*model.Account, int64, error)
}

// RefreshStore persists refresh-token records. RotateRefreshToken must be
// atomic: of any concurrent calls presenting the same live token, exactly
// one may claim it.
type RefreshStore interface {
	InsertRefreshToken(ctx context.Context, token *model.RefreshToken) error
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	RotateRefreshToken(ctx context.Context, oldTokenID uuid.UUID, newToken *model.RefreshToken) (bool, error)
	RevokeFamily(ctx context.Context, familyID uuid.UUID) error
	RevokeAllForAccount(ctx context.Context, accountID uuid.UUID) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
