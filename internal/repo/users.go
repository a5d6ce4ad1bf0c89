package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"ticketflow/internal/model"
	"ticketflow/pkg/validator"
)

const userColumns = `id, email, full_name, cpf, phone, password_hash, is_shadow, created_at`

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u               model.User
		cpf, phone, pwd sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Email, &u.FullName, &cpf, &phone, &pwd, &u.IsShadow, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	u.CPF = cpf.String
	u.Phone = phone.String
	u.PasswordHash = pwd.String
	return &u, nil
}

func (r *repository) GetUser(ctx context.Context, id string) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *repository) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, validator.NormalizeEmail(email)))
}

// CreateShadowUser inserts a shadow account, or returns the account that won
// a concurrent insert for the same e-mail.
func (r *repository) CreateShadowUser(ctx context.Context, email, name, passwordHash string) (*model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, full_name, password_hash, is_shadow)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (email) DO NOTHING
		RETURNING `+userColumns,
		uuid.NewString(), validator.NormalizeEmail(email), name, nullString(passwordHash),
	))
	if errors.Is(err, model.ErrUserNotFound) {
		return r.FindUserByEmail(ctx, email)
	}
	return u, err
}

// UpdateContactProfile copies name and phone onto the account and sets the
// CPF only when the account has none. Without overwrite, name and phone are
// only filled when empty.
func (r *repository) UpdateContactProfile(ctx context.Context, userID string, p model.ParticipantData, overwrite bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET full_name  = CASE WHEN $5 OR full_name = '' THEN COALESCE(NULLIF($2, ''), full_name) ELSE full_name END,
		    phone      = CASE WHEN $5 OR COALESCE(phone, '') = '' THEN COALESCE(NULLIF($3, ''), phone) ELSE phone END,
		    cpf        = COALESCE(cpf, NULLIF($4, '')),
		    updated_at = NOW()
		WHERE id = $1
	`, userID, p.Name, validator.OnlyDigits(p.Phone), validator.OnlyDigits(p.CPF), overwrite)
	if err != nil {
		return fmt.Errorf("failed to update contact profile: %w", err)
	}
	return nil
}
