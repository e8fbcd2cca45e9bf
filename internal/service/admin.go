package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eduportal/backend/internal/db"
	"github.com/eduportal/backend/internal/model"
)

func (s *AuthService) ListAccounts(ctx context.Context, page, pageSize int) ([]*model.Account, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	accounts, total, err := s.accounts.ListAccounts(ctx, page, pageSize)
	if err != nil {
		return nil, 0, storeErr(err)
	}
	return accounts, total, nil
}

// SetAccountStatus activates or disables an account. Disabling also
// revokes every refresh family the account holds, ending its sessions.
func (s *AuthService) SetAccountStatus(ctx context.Context, id uuid.UUID, status model.AccountStatus) error {
	switch status {
	case model.StatusActive, model.StatusDisabled:
	default:
		return ErrInvalidInput
	}
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.accounts.UpdateStatus(ctx, id, status); err != nil {
		if db.IsNoRows(err) {
			return ErrNotFound
		}
		return storeErr(err)
	}

	if status == model.StatusDisabled {
		if err := s.tokens.RevokeAllForAccount(ctx, id); err != nil {
			return storeErr(err)
		}
		s.log.Info("account disabled, sessions revoked", zap.String("account_id", id.String()))
	}
	return nil
}

// SetAccountRoles replaces an account's role set. The set must be
// non-empty and drawn from the known roles.
func (s *AuthService) SetAccountRoles(ctx context.Context, id uuid.UUID, names []string) error {
	if len(names) == 0 {
		return ErrInvalidInput
	}
	roles := make([]model.Role, 0, len(names))
	for _, name := range names {
		role, ok := model.ParseRole(name)
		if !ok {
			return ErrInvalidInput
		}
		roles = append(roles, role)
	}
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.accounts.UpdateRoles(ctx, id, roles); err != nil {
		if db.IsNoRows(err) {
			return ErrNotFound
		}
		return storeErr(err)
	}
	return nil
}
