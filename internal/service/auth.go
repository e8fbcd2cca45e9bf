package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eduportal/backend/internal/alert"
	"github.com/eduportal/backend/internal/config"
	"github.com/eduportal/backend/internal/db"
	"github.com/eduportal/backend/internal/metrics"
	"github.com/eduportal/backend/internal/model"
	"github.com/eduportal/backend/internal/password"
	"github.com/eduportal/backend/internal/ratelimit"
	"github.com/eduportal/backend/internal/token"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 128
	maxEmailLength    = 254

	defaultStoreTimeout = 5 * time.Second
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrConflict      = errors.New("conflict")
	ErrForbidden     = errors.New("forbidden")
	ErrNotFound      = errors.New("not found")
	ErrMisconfigured = errors.New("auth config invalid")

	// The four credential/token variants below all collapse to one
	// generic 401 at the API boundary. They stay distinct internally
	// for logging and metrics.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenReused        = errors.New("token reused")

	ErrStoreUnavailable = errors.New("store unavailable")
	ErrRateLimited      = ratelimit.ErrRateLimited
)

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

type AuthService struct {
	accounts     AccountStore
	tokens       RefreshStore
	hasher       *password.Hasher
	codec        *token.Codec
	limiter      *ratelimit.LoginLimiter
	notifier     *alert.Notifier
	log          *zap.Logger
	refreshTTL   time.Duration
	storeTimeout time.Duration
	allowSignup  bool
	now          func() time.Time
}

type Deps struct {
	Accounts AccountStore
	Tokens   RefreshStore
	Hasher   *password.Hasher
	Codec    *token.Codec
	Limiter  *ratelimit.LoginLimiter
	Notifier *alert.Notifier
	Logger   *zap.Logger
}

func NewAuthService(deps Deps, cfg config.AuthConfig) (*AuthService, error) {
	if deps.Accounts == nil || deps.Tokens == nil || deps.Hasher == nil || deps.Codec == nil {
		return nil, fmt.Errorf("%w: missing dependencies", ErrMisconfigured)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	_, refreshTTL, err := cfg.ParseDurations()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JWT_REFRESH_TTL", ErrMisconfigured)
	}
	allowSignup, err := config.ParseBool(cfg.AllowSignup, true)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ALLOW_SIGNUP", ErrMisconfigured)
	}

	storeTimeout := defaultStoreTimeout
	if strings.TrimSpace(cfg.StoreTimeout) != "" {
		storeTimeout, err = time.ParseDuration(cfg.StoreTimeout)
		if err != nil || storeTimeout <= 0 {
			return nil, fmt.Errorf("%w: invalid AUTH_STORE_TIMEOUT", ErrMisconfigured)
		}
	}

	return &AuthService{
		accounts:     deps.Accounts,
		tokens:       deps.Tokens,
		hasher:       deps.Hasher,
		codec:        deps.Codec,
		limiter:      deps.Limiter,
		notifier:     deps.Notifier,
		log:          deps.Logger,
		refreshTTL:   refreshTTL,
		storeTimeout: storeTimeout,
		allowSignup:  allowSignup,
		now:          time.Now,
	}, nil
}

// storeCtx bounds one service operation's store work so a wedged backend
// turns into a retryable failure instead of a hung request.
func (s *AuthService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

// WithClock overrides the time source. Intended for tests.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

func (s *AuthService) AllowSignup() bool {
	return s.allowSignup
}

func (s *AuthService) EnsureSchema(ctx context.Context) error {
	type schemaEnsurer interface {
		EnsureSchema(ctx context.Context) error
	}
	if pg, ok := s.accounts.(schemaEnsurer); ok {
		return pg.EnsureSchema(ctx)
	}
	return nil
}

// EnsureAdmin creates the bootstrap ADMIN account if it does not exist.
// Idempotent across restarts.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, adminPassword string) error {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(adminPassword) == "" {
		return fmt.Errorf("%w: ADMIN_EMAIL/ADMIN_PASSWORD are required", ErrMisconfigured)
	}
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	_, err := s.accounts.GetAccountByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !db.IsNoRows(err) {
		return err
	}

	hash, err := s.hasher.Hash(ctx, adminPassword)
	if err != nil {
		return err
	}

	return s.accounts.CreateAccount(ctx, &model.Account{
		ID:           uuid.New(),
		Email:        strings.ToLower(email),
		PasswordHash: hash,
		Roles:        []model.Role{model.RoleAdmin},
		Status:       model.StatusActive,
	})
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (*model.Account, error) {
	if !s.allowSignup {
		return nil, ErrForbidden
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if len(req.Password) < minPasswordLength || len(req.Password) > maxPasswordLength {
		return nil, ErrInvalidInput
	}
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	hash, err := s.hasher.Hash(ctx, req.Password)
	if err != nil {
		return nil, err
	}

	account := &model.Account{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Roles:        []model.Role{model.RoleStudent},
		Status:       model.StatusActive,
		Profile: model.Profile{
			FirstName:  req.FirstName,
			LastName:   req.LastName,
			Phone:      req.Phone,
			School:     req.School,
			GradeLevel: req.GradeLevel,
			BirthDate:  req.BirthDate,
		},
	}
	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, storeErr(err)
	}

	if metrics.Registered != nil {
		metrics.Registered.Inc()
	}
	s.log.Info("account registered", zap.String("account_id", account.ID.String()))
	return account, nil
}

func (s *AuthService) Login(ctx context.Context, email, plaintext, ip string) (*model.Account, *TokenPair, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, nil, err
	}
	if plaintext == "" {
		return nil, nil, ErrInvalidInput
	}
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.limiter.Check(ctx, normalized, ip); err != nil {
		s.countLogin("throttled")
		return nil, nil, err
	}

	account, err := s.accounts.GetAccountByEmail(ctx, normalized)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil, s.failLogin(ctx, normalized, ip, "unknown_email")
		}
		return nil, nil, storeErr(err)
	}

	if account.Status != model.StatusActive {
		s.countLogin("disabled")
		s.log.Warn("login rejected for inactive account",
			zap.String("account_id", account.ID.String()),
			zap.String("status", string(account.Status)))
		return nil, nil, ErrAccountDisabled
	}

	ok, err := s.hasher.Verify(ctx, plaintext, account.PasswordHash)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, s.failLogin(ctx, normalized, ip, "bad_password")
	}

	s.maybeRehash(ctx, account, plaintext)

	pair, err := s.issueSession(ctx, account, uuid.New())
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	if err := s.accounts.UpdateLastLogin(ctx, account.ID, now); err != nil {
		s.log.Warn("last-login update failed", zap.Error(err))
	}
	account.LastLoginAt = &now

	_ = s.limiter.Reset(ctx, normalized)
	s.countLogin("ok")
	return account, pair, nil
}

// Refresh rotates the presented refresh secret and issues a fresh access
// token for the same subject and family. Presenting an already-rotated
// secret is treated as compromise: the whole family is revoked.
func (s *AuthService) Refresh(ctx context.Context, presented string) (*model.Account, *TokenPair, error) {
	if strings.TrimSpace(presented) == "" {
		s.countRefresh("invalid")
		return nil, nil, ErrInvalidCredentials
	}
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	record, err := s.tokens.GetRefreshTokenByHash(ctx, hashRefreshSecret(presented))
	if err != nil {
		if db.IsNoRows(err) {
			s.countRefresh("unknown")
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, storeErr(err)
	}

	if record.ReplacedBy != nil {
		return nil, nil, s.handleReuse(ctx, record)
	}
	if record.RevokedAt != nil || s.now().After(record.ExpiresAt) {
		s.countRefresh("expired")
		return nil, nil, ErrTokenExpired
	}

	secret, next, err := s.newRefreshRecord(record.AccountID, record.FamilyID)
	if err != nil {
		return nil, nil, err
	}

	won, err := s.tokens.RotateRefreshToken(ctx, record.ID, next)
	if err != nil {
		return nil, nil, storeErr(err)
	}
	if !won {
		// Lost the race against a concurrent rotation of the same secret.
		return nil, nil, s.handleReuse(ctx, record)
	}

	account, err := s.accounts.GetAccountByID(ctx, record.AccountID)
	if err != nil {
		return nil, nil, storeErr(err)
	}
	if account.Status != model.StatusActive {
		_ = s.tokens.RevokeFamily(ctx, record.FamilyID)
		s.countRefresh("disabled")
		return nil, nil, ErrAccountDisabled
	}

	access, expiresAt, err := s.codec.Issue(account.ID, account.Email, account.Roles, record.FamilyID)
	if err != nil {
		return nil, nil, err
	}

	s.countRefresh("ok")
	return account, &TokenPair{
		AccessToken:  access,
		RefreshToken: secret,
		ExpiresAt:    expiresAt,
	}, nil
}

// Logout revokes the caller's refresh family. Unknown or already-revoked
// tokens are not an error; logout is idempotent.
func (s *AuthService) Logout(ctx context.Context, principal *model.Principal, presented string) error {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if strings.TrimSpace(presented) != "" {
		record, err := s.tokens.GetRefreshTokenByHash(ctx, hashRefreshSecret(presented))
		if err != nil {
			if db.IsNoRows(err) {
				return nil
			}
			return storeErr(err)
		}
		if err := s.tokens.RevokeFamily(ctx, record.FamilyID); err != nil {
			return storeErr(err)
		}
		return nil
	}

	if principal == nil {
		return nil
	}
	if err := s.tokens.RevokeFamily(ctx, principal.FamilyID); err != nil {
		return storeErr(err)
	}
	return nil
}

// Authorize verifies an access token and returns the caller's principal.
// Pure in-memory; no store lookup.
func (s *AuthService) Authorize(tokenStr string) (*model.Principal, error) {
	principal, err := s.codec.Verify(tokenStr)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	return principal, nil
}

// SweepExpired deletes refresh rows past the retention window.
func (s *AuthService) SweepExpired(ctx context.Context) (int64, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.tokens.DeleteExpired(ctx, s.now().Add(-s.refreshTTL))
}

func (s *AuthService) issueSession(ctx context.Context, account *model.Account, familyID uuid.UUID) (*TokenPair, error) {
	access, expiresAt, err := s.codec.Issue(account.ID, account.Email, account.Roles, familyID)
	if err != nil {
		return nil, err
	}

	secret, record, err := s.newRefreshRecord(account.ID, familyID)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.InsertRefreshToken(ctx, record); err != nil {
		return nil, storeErr(err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: secret,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *AuthService) newRefreshRecord(accountID, familyID uuid.UUID) (string, *model.RefreshToken, error) {
	secret, err := newRefreshSecret()
	if err != nil {
		return "", nil, err
	}
	now := s.now()
	return secret, &model.RefreshToken{
		ID:        uuid.New(),
		AccountID: accountID,
		TokenHash: hashRefreshSecret(secret),
		FamilyID:  familyID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.refreshTTL),
	}, nil
}

func (s *AuthService) handleReuse(ctx context.Context, record *model.RefreshToken) error {
	if err := s.tokens.RevokeFamily(ctx, record.FamilyID); err != nil {
		s.log.Error("family revocation after reuse failed", zap.Error(err))
	}

	s.countRefresh("reused")
	if metrics.ReuseDetected != nil {
		metrics.ReuseDetected.Inc()
	}
	s.log.Warn("refresh token reuse detected, family revoked",
		zap.String("account_id", record.AccountID.String()),
		zap.String("family_id", record.FamilyID.String()))

	// One alert per compromised family. Replays against a family that is
	// already revoked keep the log and counter but do not repost.
	if record.RevokedAt == nil && s.notifier.IsConfigured() {
		if err := s.notifier.TokenReuse(ctx, record.AccountID.String(), record.FamilyID.String()); err != nil {
			s.log.Warn("reuse alert delivery failed", zap.Error(err))
		}
	}
	return ErrTokenReused
}

func (s *AuthService) failLogin(ctx context.Context, email, ip, reason string) error {
	s.countLogin("fail")
	s.log.Warn("login failed", zap.String("reason", reason))
	if err := s.limiter.RecordFailure(ctx, email, ip); err != nil && !errors.Is(err, ratelimit.ErrRateLimited) {
		s.log.Warn("login failure tracking failed", zap.Error(err))
	}
	return ErrInvalidCredentials
}

// maybeRehash upgrades the stored hash after a successful verify when the
// configured cost parameters outgrew the ones recorded in it.
func (s *AuthService) maybeRehash(ctx context.Context, account *model.Account, plaintext string) {
	needs, err := s.hasher.NeedsRehash(account.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := s.hasher.Hash(ctx, plaintext)
	if err != nil {
		return
	}
	if err := s.accounts.UpdatePasswordHash(ctx, account.ID, hash); err != nil {
		s.log.Warn("password rehash failed", zap.Error(err))
	}
}

func (s *AuthService) countLogin(result string) {
	if metrics.LoginTotal != nil {
		metrics.LoginTotal.WithLabelValues(result).Inc()
	}
}

func (s *AuthService) countRefresh(result string) {
	if metrics.RefreshTotal != nil {
		metrics.RefreshTotal.WithLabelValues(result).Inc()
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || len(email) > maxEmailLength || !strings.Contains(email, "@") {
		return "", ErrInvalidInput
	}
	return email, nil
}

func newRefreshSecret() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Only the sha256 of a refresh secret is ever persisted.
func hashRefreshSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
