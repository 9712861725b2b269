package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"codeberg.org/cklabs/authserver/internal/provider"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// handles user database operations
type Repository struct {
	db *pgxpool.Pool
}

// creates a new user repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// maps a provider to its column on social_accounts. Only values from
// this table are ever interpolated into SQL.
var socialColumns = map[provider.Provider]string{
	provider.Google:   "google_id",
	provider.Facebook: "facebook_id",
}

func socialColumn(p provider.Provider) (string, error) {
	column, ok := socialColumns[p]
	if !ok {
		return "", fmt.Errorf("no social column for provider %q", p)
	}

	return column, nil
}

func (r *Repository) CreateUser(ctx context.Context, params CreateUserParams) (*User, error) {
	var user User

	err := r.db.QueryRow(
		ctx,
		queryInsertUser,
		uuid.NewString(),
		params.Username,
		params.Email,
		params.PasswordHash,
		params.FirstName,
		params.LastName,
		params.AvatarURL,
	).Scan(scanTargets(&user)...)

	if err != nil {
		return nil, translateError(err)
	}

	return &user, nil
}

func (r *Repository) CreateUserWithSocial(
	ctx context.Context,
	params CreateUserParams,
	p provider.Provider,
	externalID string,
) (*User, error) {
	column, err := socialColumn(p)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var user User

	err = tx.QueryRow(
		ctx,
		queryInsertUser,
		uuid.NewString(),
		params.Username,
		params.Email,
		params.PasswordHash,
		params.FirstName,
		params.LastName,
		params.AvatarURL,
	).Scan(scanTargets(&user)...)

	if err != nil {
		return nil, translateError(err)
	}

	query := fmt.Sprintf(queryFmtInsertSocial, column)
	if _, err := tx.Exec(ctx, query, user.ID, externalID); err != nil {
		return nil, translateError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &user, nil
}

func (r *Repository) FindByID(ctx context.Context, id string) (*User, error) {
	return r.findOne(ctx, queryFindByID, id)
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, queryFindByEmail, email)
}

func (r *Repository) FindByUsername(ctx context.Context, username string) (*User, error) {
	return r.findOne(ctx, queryFindByUsername, username)
}

func (r *Repository) FindBySocialID(ctx context.Context, p provider.Provider, externalID string) (*User, error) {
	column, err := socialColumn(p)
	if err != nil {
		return nil, err
	}

	return r.findOne(ctx, fmt.Sprintf(queryFmtFindBySocialID, column), externalID)
}

func (r *Repository) LinkSocialAccount(
	ctx context.Context,
	userID string,
	p provider.Provider,
	externalID string,
) error {
	column, err := socialColumn(p)
	if err != nil {
		return err
	}

	var linkedUserID string

	query := fmt.Sprintf(queryFmtLinkSocial, column)
	err = r.db.QueryRow(ctx, query, userID, externalID).Scan(&linkedUserID)

	if errors.Is(err, pgx.ErrNoRows) {
		// the slot is already occupied by a different external id
		return &ConflictError{Field: "social"}
	}

	if err != nil {
		return translateError(err)
	}

	return nil
}

func (r *Repository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool

	if err := r.db.QueryRow(ctx, queryUsernameExists, username).Scan(&exists); err != nil {
		return false, err
	}

	return exists, nil
}

func (r *Repository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	tag, err := r.db.Exec(ctx, queryUpdatePassword, passwordHash, userID)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *Repository) findOne(ctx context.Context, query string, arg any) (*User, error) {
	var user User

	err := r.db.QueryRow(ctx, query, arg).Scan(scanTargets(&user)...)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	return &user, nil
}

func scanTargets(u *User) []any {
	return []any{
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.AvatarURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	}
}

// converts pgx unique-violation errors into typed conflicts keyed by
// the colliding field, so the reconciler and handlers can react without
// inspecting SQLSTATEs themselves
func translateError(err error) error {
	var pgErr *pgconn.PgError

	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}

	switch {
	case strings.Contains(pgErr.ConstraintName, "username"):
		return &ConflictError{Field: "username"}
	case strings.Contains(pgErr.ConstraintName, "email"):
		return &ConflictError{Field: "email"}
	default:
		return &ConflictError{Field: "social"}
	}
}
