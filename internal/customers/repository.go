package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for customers.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const customerColumns = `id, name, document, phone, email, address, active, created_at, updated_at`

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.Document, &c.Phone, &c.Email, &c.Address, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Create inserts a new customer.
func (r *Repository) Create(ctx context.Context, c Customer) (*Customer, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO customers (name, document, phone, email, address, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, TRUE, NOW(), NOW()) RETURNING `+customerColumns,
		c.Name, c.Document, c.Phone, c.Email, c.Address)
	created, err := scanCustomer(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateDocument
		}
		return nil, err
	}
	return created, nil
}

// Get fetches a customer by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Customer, error) {
	return scanCustomer(r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
}

// GetByDocument fetches a customer by its unique document.
func (r *Repository) GetByDocument(ctx context.Context, document string) (*Customer, error) {
	return scanCustomer(r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE document = $1`, document))
}

// Update applies the given column updates.
func (r *Repository) Update(ctx context.Context, id int64, updates map[string]any) (*Customer, error) {
	if len(updates) == 0 {
		return r.Get(ctx, id)
	}
	setClauses := make([]string, 0, len(updates)+1)
	args := make([]any, 0, len(updates)+1)
	i := 1
	for col, val := range updates {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, val)
		i++
	}
	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE customers SET %s WHERE id = $%d RETURNING %s`, strings.Join(setClauses, ", "), i, customerColumns)
	return scanCustomer(r.pool.QueryRow(ctx, query, args...))
}

// List returns customers matching the filter plus the total count.
func (r *Repository) List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	i := 1
	if req.Search != "" {
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR document ILIKE $%d)", i, i))
		args = append(args, "%"+req.Search+"%")
		i++
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM customers WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if req.Page > 1 {
		offset = (req.Page - 1) * limit
	}
	query := fmt.Sprintf(`SELECT %s FROM customers WHERE %s ORDER BY name LIMIT $%d OFFSET $%d`, customerColumns, cond, i, i+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Document, &c.Phone, &c.Email, &c.Address, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}
