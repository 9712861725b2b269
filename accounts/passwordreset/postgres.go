package passwordreset

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	queryInsertToken = `
		INSERT INTO password_reset_tokens (token, user_id, expires_at)
		VALUES ($1, $2, NOW() + $3::interval)
		RETURNING token, user_id, expires_at
	`

	// delete-and-return makes consumption atomic under concurrent use
	queryConsumeToken = `
		DELETE FROM password_reset_tokens
		WHERE token = $1 AND expires_at > NOW()
		RETURNING token, user_id, expires_at
	`
)

// handles reset-token database operations
type Repository struct {
	db *pgxpool.Pool
}

// creates a new reset-token repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, userID string) (*ResetToken, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	var reset ResetToken

	err = r.db.QueryRow(ctx, queryInsertToken, token, userID, tokenTTL.String()).
		Scan(&reset.Token, &reset.UserID, &reset.ExpiresAt)
	if err != nil {
		return nil, err
	}

	return &reset, nil
}

func (r *Repository) Consume(ctx context.Context, token string) (*ResetToken, error) {
	var reset ResetToken

	err := r.db.QueryRow(ctx, queryConsumeToken, token).
		Scan(&reset.Token, &reset.UserID, &reset.ExpiresAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidToken
	}

	if err != nil {
		return nil, err
	}

	return &reset, nil
}
