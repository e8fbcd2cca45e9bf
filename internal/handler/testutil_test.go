package handler

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eduportal/backend/internal/config"
	"github.com/eduportal/backend/internal/model"
	"github.com/eduportal/backend/internal/password"
	"github.com/eduportal/backend/internal/service"
	"github.com/eduportal/backend/internal/token"
)

// fakeStore backs handler tests with an in-memory account and
// refresh-token store.
type fakeStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*model.Account
	byEmail  map[string]uuid.UUID
	tokens   map[uuid.UUID]*model.RefreshToken
	byHash   map[string]uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: map[uuid.UUID]*model.Account{},
		byEmail:  map[string]uuid.UUID{},
		tokens:   map[uuid.UUID]*model.RefreshToken{},
		byHash:   map[string]uuid.UUID{},
	}
}

func (f *fakeStore) CreateAccount(_ context.Context, account *model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	email := strings.ToLower(account.Email)
	if _, exists := f.byEmail[email]; exists {
		return &pgconn.PgError{Code: "23505"}
	}
	cp := *account
	f.accounts[account.ID] = &cp
	f.byEmail[email] = account.ID
	return nil
}

func (f *fakeStore) GetAccountByEmail(_ context.Context, email string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *f.accounts[id]
	return &cp, nil
}

func (f *fakeStore) GetAccountByID(_ context.Context, id uuid.UUID) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.accounts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *account
	return &cp, nil
}

func (f *fakeStore) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if account, ok := f.accounts[id]; ok {
		account.LastLoginAt = &at
	}
	return nil
}

func (f *fakeStore) UpdatePasswordHash(_ context.Context, id uuid.UUID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if account, ok := f.accounts[id]; ok {
		account.PasswordHash = passwordHash
	}
	return nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id uuid.UUID, status model.AccountStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.accounts[id]
	if !ok {
		return pgx.ErrNoRows
	}
	account.Status = status
	return nil
}

func (f *fakeStore) UpdateRoles(_ context.Context, id uuid.UUID, roles []model.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.accounts[id]
	if !ok {
		return pgx.ErrNoRows
	}
	account.Roles = roles
	return nil
}

func (f *fakeStore) ListAccounts(_ context.Context, page, pageSize int) ([]*model.Account, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*model.Account, 0, len(f.accounts))
	for _, account := range f.accounts {
		cp := *account
		out = append(out, &cp)
	}
	return out, int64(len(out)), nil
}

func (f *fakeStore) InsertRefreshToken(_ context.Context, tok *model.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *tok
	f.tokens[tok.ID] = &cp
	f.byHash[tok.TokenHash] = tok.ID
	return nil
}

func (f *fakeStore) GetRefreshTokenByHash(_ context.Context, tokenHash string) (*model.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byHash[tokenHash]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *f.tokens[id]
	return &cp, nil
}

func (f *fakeStore) RotateRefreshToken(_ context.Context, oldTokenID uuid.UUID, newToken *model.RefreshToken) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	old, ok := f.tokens[oldTokenID]
	if !ok || old.RevokedAt != nil || old.ReplacedBy != nil {
		return false, nil
	}
	newID := newToken.ID
	old.ReplacedBy = &newID
	cp := *newToken
	f.tokens[newToken.ID] = &cp
	f.byHash[newToken.TokenHash] = newToken.ID
	return true, nil
}

func (f *fakeStore) RevokeFamily(_ context.Context, familyID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for _, tok := range f.tokens {
		if tok.FamilyID == familyID && tok.RevokedAt == nil {
			at := now
			tok.RevokedAt = &at
		}
	}
	return nil
}

func (f *fakeStore) RevokeAllForAccount(_ context.Context, accountID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for _, tok := range f.tokens {
		if tok.AccountID == accountID && tok.RevokedAt == nil {
			at := now
			tok.RevokedAt = &at
		}
	}
	return nil
}

func (f *fakeStore) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for id, tok := range f.tokens {
		if tok.ExpiresAt.Before(before) {
			delete(f.byHash, tok.TokenHash)
			delete(f.tokens, id)
			deleted++
		}
	}
	return deleted, nil
}

func newTestService(t *testing.T) *service.AuthService {
	t.Helper()
	store := newFakeStore()

	hasher, err := password.NewHasher(password.Params{
		Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	}, 4)
	require.NoError(t, err)

	codec, err := token.NewCodec("0123456789abcdef0123456789abcdef", nil, "eduportal-test", 30*time.Minute)
	require.NoError(t, err)

	svc, err := service.NewAuthService(service.Deps{
		Accounts: store,
		Tokens:   store,
		Hasher:   hasher,
		Codec:    codec,
		Logger:   zap.NewNop(),
	}, config.AuthConfig{
		AccessTTL:   "30m",
		RefreshTTL:  "336h",
		AllowSignup: "true",
	})
	require.NoError(t, err)
	return svc
}

// seedUser registers an account, optionally replaces its roles, and
// returns a live access token for it.
func seedUser(t *testing.T, svc *service.AuthService, email string, roles ...string) string {
	t.Helper()
	account, err := svc.Register(context.Background(), model.RegisterRequest{
		Email:    email,
		Password: "Secret123!",
	})
	require.NoError(t, err)
	if len(roles) > 0 {
		require.NoError(t, svc.SetAccountRoles(context.Background(), account.ID, roles))
	}
	_, pair, err := svc.Login(context.Background(), email, "Secret123!", "")
	require.NoError(t, err)
	return pair.AccessToken
}
