package token

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/eduportal/backend/internal/model"
)

const (
	tokenTypeAccess = "access"

	// Absorbs clock drift between the issuing and verifying process.
	expiryLeeway = 5 * time.Second
)

// ErrInvalidToken is the single verification outcome for any bad token:
// tampered signature, unknown key, wrong type, expired, malformed claims.
// Callers must not surface which case it was.
var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
	FamilyID string   `json:"fam"`
	Type     string   `json:"typ"`
	jwt.RegisteredClaims
}

// Codec issues and verifies signed access tokens. It holds one signing
// secret and optionally a set of retired secrets that still verify, all
// selected by kid; anything signed with an unrecognized key is invalid.
type Codec struct {
	signingKID string
	signingKey []byte
	verifyKeys map[string][]byte
	issuer     string
	accessTTL  time.Duration
	now        func() time.Time
}

func NewCodec(secret string, retired []string, issuer string, accessTTL time.Duration) (*Codec, error) {
	if len(secret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}
	if accessTTL <= 0 {
		return nil, errors.New("access ttl must be positive")
	}

	c := &Codec{
		signingKID: keyID(secret),
		signingKey: []byte(secret),
		verifyKeys: map[string][]byte{keyID(secret): []byte(secret)},
		issuer:     issuer,
		accessTTL:  accessTTL,
		now:        time.Now,
	}
	for _, old := range retired {
		c.verifyKeys[keyID(old)] = []byte(old)
	}
	return c, nil
}

// WithClock overrides the time source. Intended for tests.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	c.now = now
	return c
}

func (c *Codec) AccessTTL() time.Duration {
	return c.accessTTL
}

func (c *Codec) Issue(accountID uuid.UUID, email string, roles []model.Role, familyID uuid.UUID) (string, time.Time, error) {
	now := c.now()
	expiresAt := now.Add(c.accessTTL)

	roleNames := make([]string, 0, len(roles))
	for _, r := range roles {
		roleNames = append(roleNames, string(r))
	}

	claims := Claims{
		Email:    email,
		Roles:    roleNames,
		FamilyID: familyID.String(),
		Type:     tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tok.Header["kid"] = c.signingKID
	signed, err := tok.SignedString(c.signingKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks signature, expiry (with leeway) and claim shape, and
// returns the caller's principal.
func (c *Codec) Verify(tokenStr string) (*model.Principal, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenStr, claims, c.resolveKey,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithLeeway(expiryLeeway),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != tokenTypeAccess {
		return nil, ErrInvalidToken
	}

	accountID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}
	familyID, err := uuid.Parse(claims.FamilyID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	roles := make([]model.Role, 0, len(claims.Roles))
	for _, name := range claims.Roles {
		role, ok := model.ParseRole(name)
		if !ok {
			return nil, ErrInvalidToken
		}
		roles = append(roles, role)
	}
	if len(roles) == 0 {
		return nil, ErrInvalidToken
	}

	return &model.Principal{
		AccountID: accountID,
		Email:     claims.Email,
		Roles:     roles,
		FamilyID:  familyID,
	}, nil
}

func (c *Codec) resolveKey(tok *jwt.Token) (interface{}, error) {
	kid, _ := tok.Header["kid"].(string)
	key, ok := c.verifyKeys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown signing key %q", kid)
	}
	return key, nil
}

func keyID(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:4])
}
