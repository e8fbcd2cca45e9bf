package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/eduportal/backend/internal/model"
)

func (db *Postgres) EnsureSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS accounts (
			id UUID PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			roles TEXT[] NOT NULL,
			status TEXT NOT NULL,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			school TEXT NOT NULL DEFAULT '',
			grade_level TEXT NOT NULL DEFAULT '',
			birth_date TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_login_at TIMESTAMPTZ
		)
		`,
		`
		CREATE TABLE IF NOT EXISTS refresh_tokens (
			id UUID PRIMARY KEY,
			account_id UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			token_hash TEXT NOT NULL UNIQUE,
			family_id UUID NOT NULL,
			issued_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at TIMESTAMPTZ NOT NULL,
			revoked_at TIMESTAMPTZ,
			replaced_by UUID
		)
		`,
		`CREATE INDEX IF NOT EXISTS refresh_tokens_family_id_idx ON refresh_tokens(family_id)`,
		`CREATE INDEX IF NOT EXISTS refresh_tokens_expires_at_idx ON refresh_tokens(expires_at)`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

const accountColumns = `id, email, password_hash, roles, status,
	first_name, last_name, phone, school, grade_level, birth_date,
	created_at, updated_at, last_login_at`

func (db *Postgres) CreateAccount(ctx context.Context, account *model.Account) error {
	query := `
		INSERT INTO accounts (id, email, password_hash, roles, status,
			first_name, last_name, phone, school, grade_level, birth_date,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
	`
	_, err := db.Pool.Exec(ctx, query,
		account.ID,
		strings.ToLower(account.Email),
		account.PasswordHash,
		rolesToStrings(account.Roles),
		string(account.Status),
		account.Profile.FirstName,
		account.Profile.LastName,
		account.Profile.Phone,
		account.Profile.School,
		account.Profile.GradeLevel,
		account.Profile.BirthDate,
	)
	return err
}

func (db *Postgres) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return db.scanAccount(db.Pool.QueryRow(ctx, query, strings.ToLower(email)))
}

func (db *Postgres) GetAccountByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return db.scanAccount(db.Pool.QueryRow(ctx, query, id))
}

func (db *Postgres) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE accounts SET last_login_at = $2, updated_at = NOW() WHERE id = $1`
	_, err := db.Pool.Exec(ctx, query, id, at)
	return err
}

func (db *Postgres) UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := `UPDATE accounts SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	_, err := db.Pool.Exec(ctx, query, id, passwordHash)
	return err
}

func (db *Postgres) UpdateStatus(ctx context.Context, id uuid.UUID, status model.AccountStatus) error {
	query := `UPDATE accounts SET status = $2, updated_at = NOW() WHERE id = $1`
	tag, err := db.Pool.Exec(ctx, query, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (db *Postgres) UpdateRoles(ctx context.Context, id uuid.UUID, roles []model.Role) error {
	query := `UPDATE accounts SET roles = $2, updated_at = NOW() WHERE id = $1`
	tag, err := db.Pool.Exec(ctx, query, id, rolesToStrings(roles))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (db *Postgres) ListAccounts(ctx context.Context, page, pageSize int) ([]*model.Account, int64, error) {
	var total int64
	if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + accountColumns + `
		FROM accounts
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`
	rows, err := db.Pool.Query(ctx, query, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	accounts := []*model.Account{}
	for rows.Next() {
		account, err := db.scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		accounts = append(accounts, account)
	}
	return accounts, total, rows.Err()
}

func (db *Postgres) scanAccount(row pgx.Row) (*model.Account, error) {
	var (
		account model.Account
		roles   []string
		status  string
	)
	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&roles,
		&status,
		&account.Profile.FirstName,
		&account.Profile.LastName,
		&account.Profile.Phone,
		&account.Profile.School,
		&account.Profile.GradeLevel,
		&account.Profile.BirthDate,
		&account.CreatedAt,
		&account.UpdatedAt,
		&account.LastLoginAt,
	)
	if err != nil {
		return nil, err
	}
	account.Status = model.AccountStatus(status)
	for _, name := range roles {
		if role, ok := model.ParseRole(name); ok {
			account.Roles = append(account.Roles, role)
		}
	}
	return &account, nil
}

func rolesToStrings(roles []model.Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}

func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
