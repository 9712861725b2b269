package tokens

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// handles session-token database operations
type Repository struct {
	db *pgxpool.Pool
}

// creates a new token repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) IssueToken(ctx context.Context, userID string) (*Token, error) {
	key, err := generateKey()
	if err != nil {
		return nil, err
	}

	if _, err := r.db.Exec(ctx, queryInsertToken, key, userID); err != nil {
		return nil, err
	}

	// re-select rather than RETURNING: when the insert lost the
	// conflict, the existing token is the one to hand out
	return r.FindByUserID(ctx, userID)
}

func (r *Repository) FindByKey(ctx context.Context, key string) (*Token, error) {
	return r.findOne(ctx, queryFindByKey, key)
}

func (r *Repository) FindByUserID(ctx context.Context, userID string) (*Token, error) {
	return r.findOne(ctx, queryFindByUserID, userID)
}

func (r *Repository) RevokeToken(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, queryDeleteByUserID, userID)
	return err
}

func (r *Repository) findOne(ctx context.Context, query string, arg any) (*Token, error) {
	var token Token

	err := r.db.QueryRow(ctx, query, arg).Scan(&token.Key, &token.UserID, &token.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	return &token, nil
}
