package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists lots and stock movements in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	InsertLot(ctx context.Context, lot Lot) (int64, error)
	GetLotForUpdate(ctx context.Context, lotID int64) (*Lot, error)
	UpdateLotQuantity(ctx context.Context, lotID int64, quantity int) error
	InsertMovement(ctx context.Context, m Movement) error
	AdjustProductStock(ctx context.Context, productID int64, delta int) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepo{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const lotColumns = `id, product_id, lot_number, expiry_date, quantity_available, unit_cost, created_at, updated_at`

func scanLot(row pgx.Row) (*Lot, error) {
	var l Lot
	err := row.Scan(&l.ID, &l.ProductID, &l.LotNumber, &l.ExpiryDate, &l.QuantityAvailable, &l.UnitCost, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLotNotFound
		}
		return nil, err
	}
	return &l, nil
}

// GetLot fetches a lot by id.
func (r *Repository) GetLot(ctx context.Context, id int64) (*Lot, error) {
	return scanLot(r.pool.QueryRow(ctx, `SELECT `+lotColumns+` FROM lots WHERE id = $1`, id))
}

// ListAvailableLots returns lots of the product with stock remaining,
// ordered first-expire-first-out.
func (r *Repository) ListAvailableLots(ctx context.Context, productID int64) ([]Lot, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+lotColumns+` FROM lots
WHERE product_id = $1 AND quantity_available > 0
ORDER BY expiry_date, lot_number`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLots(rows)
}

// ListNearExpiry returns non-empty lots expiring within the window.
func (r *Repository) ListNearExpiry(ctx context.Context, now time.Time, windowDays int) ([]Lot, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+lotColumns+` FROM lots
WHERE quantity_available > 0 AND expiry_date > $1 AND expiry_date <= $2
ORDER BY expiry_date, lot_number`, now, now.AddDate(0, 0, windowDays))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLots(rows)
}

// ListMovements returns the movement trail for a lot.
func (r *Repository) ListMovements(ctx context.Context, lotID int64, limit int) ([]Movement, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, lot_id, type, quantity, unit_cost, note, ref_module, ref_id, actor_id, created_at
FROM stock_movements WHERE lot_id = $1 ORDER BY created_at DESC LIMIT $2`, lotID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.LotID, &m.Type, &m.Quantity, &m.UnitCost, &m.Note, &m.RefModule, &m.RefID, &m.ActorID, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func collectLots(rows pgx.Rows) ([]Lot, error) {
	var lots []Lot
	for rows.Next() {
		var l Lot
		if err := rows.Scan(&l.ID, &l.ProductID, &l.LotNumber, &l.ExpiryDate, &l.QuantityAvailable, &l.UnitCost, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		lots = append(lots, l)
	}
	return lots, rows.Err()
}

func (t *txRepo) InsertLot(ctx context.Context, lot Lot) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO lots (product_id, lot_number, expiry_date, quantity_available, unit_cost, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING id`,
		lot.ProductID, lot.LotNumber, lot.ExpiryDate, lot.QuantityAvailable, lot.UnitCost).Scan(&id)
	return id, err
}

func (t *txRepo) GetLotForUpdate(ctx context.Context, lotID int64) (*Lot, error) {
	return scanLot(t.tx.QueryRow(ctx, `SELECT `+lotColumns+` FROM lots WHERE id = $1 FOR UPDATE`, lotID))
}

func (t *txRepo) UpdateLotQuantity(ctx context.Context, lotID int64, quantity int) error {
	_, err := t.tx.Exec(ctx, `UPDATE lots SET quantity_available = $2, updated_at = NOW() WHERE id = $1`, lotID, quantity)
	return err
}

func (t *txRepo) InsertMovement(ctx context.Context, m Movement) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO stock_movements (product_id, lot_id, type, quantity, unit_cost, note, ref_module, ref_id, actor_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())`,
		m.ProductID, m.LotID, m.Type, m.Quantity, m.UnitCost, m.Note, m.RefModule, m.RefID, m.ActorID)
	return err
}

func (t *txRepo) AdjustProductStock(ctx context.Context, productID int64, delta int) error {
	_, err := t.tx.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = NOW() WHERE id = $1`, productID, delta)
	return err
}
