package reports

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository runs the reporting aggregates. Reports only read paid sales;
// pending and cancelled carts never show up in the numbers.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SalesSummary aggregates paid sales inside the period.
func (r *Repository) SalesSummary(ctx context.Context, p Period) (*SalesSummary, error) {
	summary := &SalesSummary{From: p.From, To: p.To, ByMethod: map[string]float64{}}
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(subtotal), 0), COALESCE(SUM(discount_total), 0), COALESCE(SUM(total), 0)
FROM sales WHERE status = 'PAID' AND paid_at >= $1 AND paid_at < $2`, p.From, p.To).
		Scan(&summary.SaleCount, &summary.Subtotal, &summary.DiscountTotal, &summary.Total)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT payment_method, COALESCE(SUM(total), 0)
FROM sales WHERE status = 'PAID' AND paid_at >= $1 AND paid_at < $2 GROUP BY payment_method`, p.From, p.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var method string
		var total float64
		if err := rows.Scan(&method, &total); err != nil {
			return nil, err
		}
		summary.ByMethod[method] = total
	}
	return summary, rows.Err()
}

// TopProducts ranks products by units sold inside the period.
func (r *Repository) TopProducts(ctx context.Context, p Period, limit int) ([]TopProduct, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.pool.Query(ctx, `SELECT i.product_id, i.product_name, SUM(i.quantity)::int, COALESCE(SUM(i.line_total), 0)
FROM sale_items i JOIN sales s ON s.id = i.sale_id
WHERE s.status = 'PAID' AND s.paid_at >= $1 AND s.paid_at < $2
GROUP BY i.product_id, i.product_name
ORDER BY SUM(i.quantity) DESC, i.product_name
LIMIT $3`, p.From, p.To, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var top []TopProduct
	for rows.Next() {
		var t TopProduct
		if err := rows.Scan(&t.ProductID, &t.Name, &t.Units, &t.Revenue); err != nil {
			return nil, err
		}
		top = append(top, t)
	}
	return top, rows.Err()
}

// ControlledRegister lists controlled-substance sale lines inside the period.
func (r *Repository) ControlledRegister(ctx context.Context, p Period) ([]ControlledEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT s.code, s.paid_at, i.product_name, i.quantity,
s.prescription_number, s.prescription_date, s.patient_name, s.patient_document, s.operator_id
FROM sale_items i JOIN sales s ON s.id = i.sale_id
WHERE i.controlled AND s.status = 'PAID' AND s.paid_at >= $1 AND s.paid_at < $2
ORDER BY s.paid_at, s.code`, p.From, p.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ControlledEntry
	for rows.Next() {
		var e ControlledEntry
		if err := rows.Scan(&e.SaleCode, &e.SoldAt, &e.ProductName, &e.Quantity,
			&e.PrescriptionNumber, &e.PrescriptionDate, &e.PatientName, &e.PatientDocument, &e.OperatorID); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
