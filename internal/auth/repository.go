package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for operators.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const operatorColumns = `id, username, name, password_hash, active, created_at, updated_at`

func scanOperator(row pgx.Row) (*Operator, error) {
	var o Operator
	err := row.Scan(&o.ID, &o.Username, &o.Name, &o.PasswordHash, &o.Active, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOperatorNotFound
		}
		return nil, err
	}
	return &o, nil
}

// Create inserts a new operator.
func (r *Repository) Create(ctx context.Context, o Operator) (*Operator, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO operators (username, name, password_hash, active, created_at, updated_at)
VALUES ($1, $2, $3, TRUE, NOW(), NOW()) RETURNING `+operatorColumns, o.Username, o.Name, o.PasswordHash)
	created, err := scanOperator(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateUsername
		}
		return nil, err
	}
	return created, nil
}

// Get fetches an operator by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Operator, error) {
	return scanOperator(r.pool.QueryRow(ctx, `SELECT `+operatorColumns+` FROM operators WHERE id = $1`, id))
}

// GetByUsername fetches an operator by username.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*Operator, error) {
	return scanOperator(r.pool.QueryRow(ctx, `SELECT `+operatorColumns+` FROM operators WHERE username = $1`, username))
}
