package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/farmapos/farmapos/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for sales.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateSale books the sale, its items and lot allocations, decrements lot
// and product stock, and writes the OUT movements, all inside one
// repeatable-read transaction. Either the whole sale commits or nothing
// does.
func (r *Repository) CreateSale(ctx context.Context, sale Sale, items []SaleItem) (int64, error) {
	var saleID int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var prescNumber, prescPatient, prescDocument, prescAddress, prescPhone *string
		var prescDate *time.Time
		if sale.Prescription != nil {
			p := sale.Prescription
			prescNumber, prescDate = &p.Number, &p.Date
			prescPatient, prescDocument = &p.PatientName, &p.PatientDocument
			prescAddress, prescPhone = &p.PatientAddress, &p.PatientPhone
		}
		err := tx.QueryRow(ctx, `INSERT INTO sales (code, operator_id, customer_id, status, subtotal, discount_total, total, amount_paid, change_due,
	prescription_number, prescription_date, patient_name, patient_document, patient_address, patient_phone, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0, $8, $9, $10, $11, $12, $13, NOW()) RETURNING id`,
			sale.Code, sale.OperatorID, sale.CustomerID, sale.Status, sale.Subtotal, sale.DiscountTotal, sale.Total,
			prescNumber, prescDate, prescPatient, prescDocument, prescAddress, prescPhone).Scan(&saleID)
		if err != nil {
			return fmt.Errorf("insert sale: %w", err)
		}

		for _, item := range items {
			// Guard product-level stock for every line, lot tracked or not.
			var stock int
			if err := tx.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1 FOR UPDATE`, item.ProductID).Scan(&stock); err != nil {
				return fmt.Errorf("lock product %d: %w", item.ProductID, err)
			}
			if stock < item.Quantity {
				return ErrInsufficientStock
			}
			if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock - $2, updated_at = NOW() WHERE id = $1`, item.ProductID, item.Quantity); err != nil {
				return err
			}

			var itemID int64
			err := tx.QueryRow(ctx, `INSERT INTO sale_items (sale_id, product_id, product_name, controlled, quantity, unit_price, discount, line_total, promotion_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
				saleID, item.ProductID, item.ProductName, item.Controlled, item.Quantity, item.UnitPrice, item.Discount, item.LineTotal, item.PromotionID).Scan(&itemID)
			if err != nil {
				return fmt.Errorf("insert sale item: %w", err)
			}

			for _, alloc := range item.Allocations {
				var available int
				if err := tx.QueryRow(ctx, `SELECT quantity_available FROM lots WHERE id = $1 FOR UPDATE`, alloc.LotID).Scan(&available); err != nil {
					if errors.Is(err, pgx.ErrNoRows) {
						return ErrInsufficientLotStock
					}
					return fmt.Errorf("lock lot %d: %w", alloc.LotID, err)
				}
				if available < alloc.Quantity {
					return ErrInsufficientLotStock
				}
				if _, err := tx.Exec(ctx, `UPDATE lots SET quantity_available = quantity_available - $2, updated_at = NOW() WHERE id = $1`, alloc.LotID, alloc.Quantity); err != nil {
					return err
				}
				if _, err := tx.Exec(ctx, `INSERT INTO sale_item_lots (sale_item_id, lot_id, lot_number, quantity, unit_cost)
VALUES ($1, $2, $3, $4, $5)`, itemID, alloc.LotID, alloc.LotNumber, alloc.Quantity, alloc.UnitCost); err != nil {
					return err
				}
				if _, err := tx.Exec(ctx, `INSERT INTO stock_movements (product_id, lot_id, type, quantity, unit_cost, note, ref_module, ref_id, actor_id, created_at)
VALUES ($1, $2, 'OUT', $3, $4, '', 'sales', $5, $6, NOW())`,
					item.ProductID, alloc.LotID, -alloc.Quantity, alloc.UnitCost, sale.Code, sale.OperatorID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return saleID, nil
}

// FinalizePayment marks a pending sale as paid.
func (r *Repository) FinalizePayment(ctx context.Context, saleID int64, method PaymentMethod, amountPaid, changeDue float64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE sales SET status = $2, payment_method = $3, amount_paid = $4, change_due = $5, paid_at = NOW()
WHERE id = $1 AND status = $6`, saleID, SaleStatusPaid, method, amountPaid, changeDue, SaleStatusPendingPayment)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSaleNotPending
	}
	return nil
}

const saleColumns = `id, code, operator_id, customer_id, status, subtotal, discount_total, total, payment_method, amount_paid, change_due,
prescription_number, prescription_date, patient_name, patient_document, patient_address, patient_phone, created_at, paid_at`

func scanSale(row pgx.Row) (*Sale, error) {
	var s Sale
	var prescNumber, prescPatient, prescDocument, prescAddress, prescPhone *string
	var prescDate *time.Time
	err := row.Scan(&s.ID, &s.Code, &s.OperatorID, &s.CustomerID, &s.Status, &s.Subtotal, &s.DiscountTotal, &s.Total,
		&s.PaymentMethod, &s.AmountPaid, &s.ChangeDue,
		&prescNumber, &prescDate, &prescPatient, &prescDocument, &prescAddress, &prescPhone, &s.CreatedAt, &s.PaidAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSaleNotFound
		}
		return nil, err
	}
	if prescNumber != nil {
		s.Prescription = &Prescription{
			Number:          *prescNumber,
			PatientName:     deref(prescPatient),
			PatientDocument: deref(prescDocument),
			PatientAddress:  deref(prescAddress),
			PatientPhone:    deref(prescPhone),
		}
		if prescDate != nil {
			s.Prescription.Date = *prescDate
		}
	}
	return &s, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// GetSale fetches a sale with its items and allocations.
func (r *Repository) GetSale(ctx context.Context, id int64) (*Sale, error) {
	sale, err := scanSale(r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, sale_id, product_id, product_name, controlled, quantity, unit_price, discount, line_total, promotion_id
FROM sale_items WHERE sale_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	itemIndex := make(map[int64]int)
	for rows.Next() {
		var item SaleItem
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.ProductName, &item.Controlled, &item.Quantity, &item.UnitPrice, &item.Discount, &item.LineTotal, &item.PromotionID); err != nil {
			return nil, err
		}
		itemIndex[item.ID] = len(sale.Items)
		sale.Items = append(sale.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	allocRows, err := r.pool.Query(ctx, `SELECT a.id, a.sale_item_id, a.lot_id, a.lot_number, a.quantity, a.unit_cost
FROM sale_item_lots a JOIN sale_items i ON i.id = a.sale_item_id WHERE i.sale_id = $1 ORDER BY a.id`, id)
	if err != nil {
		return nil, err
	}
	defer allocRows.Close()
	for allocRows.Next() {
		var alloc LotAllocation
		if err := allocRows.Scan(&alloc.ID, &alloc.SaleItemID, &alloc.LotID, &alloc.LotNumber, &alloc.Quantity, &alloc.UnitCost); err != nil {
			return nil, err
		}
		if idx, ok := itemIndex[alloc.SaleItemID]; ok {
			sale.Items[idx].Allocations = append(sale.Items[idx].Allocations, alloc)
		}
	}
	if err := allocRows.Err(); err != nil {
		return nil, err
	}
	return sale, nil
}

// ListSales pages through the sale history, newest first.
func (r *Repository) ListSales(ctx context.Context, req ListSalesRequest) ([]Sale, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	i := 1
	if req.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", i))
		args = append(args, *req.Status)
		i++
	}
	if req.From != nil {
		where = append(where, fmt.Sprintf("created_at >= $%d", i))
		args = append(args, *req.From)
		i++
	}
	if req.To != nil {
		where = append(where, fmt.Sprintf("created_at < $%d", i))
		args = append(args, *req.To)
		i++
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sales WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT %s FROM sales WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, saleColumns, cond, i, i+1)
	args = append(args, limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sales []Sale
	for rows.Next() {
		var s Sale
		var prescNumber, prescPatient, prescDocument, prescAddress, prescPhone *string
		var prescDate *time.Time
		if err := rows.Scan(&s.ID, &s.Code, &s.OperatorID, &s.CustomerID, &s.Status, &s.Subtotal, &s.DiscountTotal, &s.Total,
			&s.PaymentMethod, &s.AmountPaid, &s.ChangeDue,
			&prescNumber, &prescDate, &prescPatient, &prescDocument, &prescAddress, &prescPhone, &s.CreatedAt, &s.PaidAt); err != nil {
			return nil, 0, err
		}
		if prescNumber != nil {
			s.Prescription = &Prescription{Number: *prescNumber}
			if prescDate != nil {
				s.Prescription.Date = *prescDate
			}
		}
		sales = append(sales, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return sales, total, nil
}
