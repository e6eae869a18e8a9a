package promotions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for promotions.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const promotionColumns = `id, name, scope, product_id, laboratory, lot_id, discount_type, discount_value, discount_percent, starts_at, ends_at, active, max_quantity, sold_quantity, created_at, updated_at`

func scanPromotion(row pgx.Row) (*Promotion, error) {
	var p Promotion
	err := row.Scan(&p.ID, &p.Name, &p.Scope, &p.ProductID, &p.Laboratory, &p.LotID, &p.DiscountType, &p.DiscountValue, &p.DiscountPercent, &p.StartsAt, &p.EndsAt, &p.Active, &p.MaxQuantity, &p.SoldQuantity, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Create inserts a new promotion.
func (r *Repository) Create(ctx context.Context, p Promotion) (*Promotion, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO promotions (name, scope, product_id, laboratory, lot_id, discount_type, discount_value, discount_percent, starts_at, ends_at, active, max_quantity, sold_quantity, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE, $11, 0, NOW(), NOW()) RETURNING `+promotionColumns,
		p.Name, p.Scope, p.ProductID, p.Laboratory, p.LotID, p.DiscountType, p.DiscountValue, p.DiscountPercent, p.StartsAt, p.EndsAt, p.MaxQuantity)
	return scanPromotion(row)
}

// Get fetches one promotion.
func (r *Repository) Get(ctx context.Context, id int64) (*Promotion, error) {
	return scanPromotion(r.pool.QueryRow(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE id = $1`, id))
}

// Update applies column updates.
func (r *Repository) Update(ctx context.Context, id int64, updates map[string]any) (*Promotion, error) {
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
	query := fmt.Sprintf(`UPDATE promotions SET %s WHERE id = $%d RETURNING %s`, strings.Join(setClauses, ", "), i, promotionColumns)
	return scanPromotion(r.pool.QueryRow(ctx, query, args...))
}

// List returns all promotions, newest first.
func (r *Repository) List(ctx context.Context, activeOnly bool, limit, offset int) ([]Promotion, int, error) {
	cond := "TRUE"
	if activeOnly {
		cond = "active"
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM promotions WHERE `+cond).Scan(&total); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE `+cond+` ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	promos, err := collectPromotions(rows)
	if err != nil {
		return nil, 0, err
	}
	return promos, total, nil
}

// ListCandidates returns every promotion that could match the product: its
// id, its laboratory, or any of its lots. Date-window and precedence
// filtering happen in the resolver, so one cached query serves both the
// product-level and lot-level resolution paths.
func (r *Repository) ListCandidates(ctx context.Context, productID int64, laboratory string) ([]Promotion, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+promotionColumns+` FROM promotions
WHERE active AND (
	product_id = $1
	OR laboratory = $2
	OR lot_id IN (SELECT id FROM lots WHERE product_id = $1)
)`, productID, laboratory)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPromotions(rows)
}

// IncrementSold adds to the running sold counter of a promotion.
func (r *Repository) IncrementSold(ctx context.Context, id int64, quantity int) error {
	_, err := r.pool.Exec(ctx, `UPDATE promotions SET sold_quantity = sold_quantity + $2, updated_at = NOW() WHERE id = $1`, id, quantity)
	return err
}

// DeactivateExpired flips the active flag off for promotions whose window
// has closed. Returns the affected ids; used by the nightly sweep job.
func (r *Repository) DeactivateExpired(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `UPDATE promotions SET active = FALSE, updated_at = NOW()
WHERE active AND ends_at <= NOW() RETURNING id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func collectPromotions(rows pgx.Rows) ([]Promotion, error) {
	var promos []Promotion
	for rows.Next() {
		var p Promotion
		if err := rows.Scan(&p.ID, &p.Name, &p.Scope, &p.ProductID, &p.Laboratory, &p.LotID, &p.DiscountType, &p.DiscountValue, &p.DiscountPercent, &p.StartsAt, &p.EndsAt, &p.Active, &p.MaxQuantity, &p.SoldQuantity, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		promos = append(promos, p)
	}
	return promos, rows.Err()
}
