package db

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/eduportal/backend/internal/model"
)

func (db *Postgres) InsertRefreshToken(ctx context.Context, token *model.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, account_id, token_hash, family_id, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := db.Pool.Exec(ctx, query,
		token.ID, token.AccountID, token.TokenHash, token.FamilyID,
		token.IssuedAt, token.ExpiresAt)
	return err
}

func (db *Postgres) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	query := `
		SELECT id, account_id, token_hash, family_id, issued_at, expires_at, revoked_at, replaced_by
		FROM refresh_tokens
		WHERE token_hash = $1
	`
	var token model.RefreshToken
	err := db.Pool.QueryRow(ctx, query, tokenHash).Scan(
		&token.ID,
		&token.AccountID,
		&token.TokenHash,
		&token.FamilyID,
		&token.IssuedAt,
		&token.ExpiresAt,
		&token.RevokedAt,
		&token.ReplacedBy,
	)
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// RotateRefreshToken claims the presented token and stores its successor
// in one transaction. The guard on revoked_at and replaced_by makes
// exactly one of any concurrent rotations win; the losers see false and
// must treat the token as reused.
func (db *Postgres) RotateRefreshToken(ctx context.Context, oldTokenID uuid.UUID, newToken *model.RefreshToken) (bool, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx, `
		UPDATE refresh_tokens
		SET replaced_by = $2
		WHERE id = $1 AND revoked_at IS NULL AND replaced_by IS NULL
	`, oldTokenID, newToken.ID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err = tx.Exec(ctx, `
		INSERT INTO refresh_tokens (id, account_id, token_hash, family_id, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, newToken.ID, newToken.AccountID, newToken.TokenHash, newToken.FamilyID,
		newToken.IssuedAt, newToken.ExpiresAt); err != nil {
		return false, err
	}

	return true, tx.Commit(ctx)
}

func (db *Postgres) RevokeFamily(ctx context.Context, familyID uuid.UUID) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = NOW()
		WHERE family_id = $1 AND revoked_at IS NULL
	`
	_, err := db.Pool.Exec(ctx, query, familyID)
	return err
}

func (db *Postgres) RevokeAllForAccount(ctx context.Context, accountID uuid.UUID) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = NOW()
		WHERE account_id = $1 AND revoked_at IS NULL
	`
	_, err := db.Pool.Exec(ctx, query, accountID)
	return err
}

// DeleteExpired clears tokens whose expiry is past the retention cutoff.
// Run periodically; spent tokens are kept until then for replay forensics.
func (db *Postgres) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM refresh_tokens WHERE expires_at < $1`
	tag, err := db.Pool.Exec(ctx, query, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
