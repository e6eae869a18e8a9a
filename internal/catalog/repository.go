package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for products.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productColumns = `id, code, name, laboratory, sale_price, cost_price, stock, controlled, lot_required, active, created_at, updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Laboratory, &p.SalePrice, &p.CostPrice, &p.Stock, &p.Controlled, &p.LotRequired, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Create inserts a new product.
func (r *Repository) Create(ctx context.Context, p Product) (*Product, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO products (code, name, laboratory, sale_price, cost_price, stock, controlled, lot_required, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, 0, $6, $7, TRUE, NOW(), NOW()) RETURNING `+productColumns,
		p.Code, p.Name, p.Laboratory, p.SalePrice, p.CostPrice, p.Controlled, p.LotRequired)
	created, err := scanProduct(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateCode
		}
		return nil, err
	}
	return created, nil
}

// Get fetches a product by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

// GetByCode fetches a product by its unique code.
func (r *Repository) GetByCode(ctx context.Context, code string) (*Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE code = $1`, code))
}

// Update applies the given column updates.
func (r *Repository) Update(ctx context.Context, id int64, updates map[string]any) (*Product, error) {
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
	query := fmt.Sprintf(`UPDATE products SET %s WHERE id = $%d RETURNING %s`, strings.Join(setClauses, ", "), i, productColumns)
	return scanProduct(r.pool.QueryRow(ctx, query, args...))
}

// List returns products matching the filter plus the total count.
func (r *Repository) List(ctx context.Context, req ListProductsRequest) ([]Product, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	i := 1
	if req.Search != "" {
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR code ILIKE $%d)", i, i))
		args = append(args, "%"+req.Search+"%")
		i++
	}
	if req.Laboratory != "" {
		where = append(where, fmt.Sprintf("laboratory = $%d", i))
		args = append(args, req.Laboratory)
		i++
	}
	if req.Controlled != nil {
		where = append(where, fmt.Sprintf("controlled = $%d", i))
		args = append(args, *req.Controlled)
		i++
	}
	if req.Active != nil {
		where = append(where, fmt.Sprintf("active = $%d", i))
		args = append(args, *req.Active)
		i++
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE `+cond, args...).Scan(&total); err != nil {
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
	query := fmt.Sprintf(`SELECT %s FROM products WHERE %s ORDER BY name LIMIT $%d OFFSET $%d`, productColumns, cond, i, i+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Laboratory, &p.SalePrice, &p.CostPrice, &p.Stock, &p.Controlled, &p.LotRequired, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// Laboratories returns the distinct laboratory names present in the catalog.
func (r *Repository) Laboratories(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT laboratory FROM products WHERE active ORDER BY laboratory`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var labs []string
	for rows.Next() {
		var lab string
		if err := rows.Scan(&lab); err != nil {
			return nil, err
		}
		labs = append(labs, lab)
	}
	return labs, rows.Err()
}
