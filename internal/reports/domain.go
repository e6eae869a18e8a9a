package reports

import "time"

// SalesSummary aggregates the sale history over a period.
type SalesSummary struct {
	From          time.Time          `json:"from"`
	To            time.Time          `json:"to"`
	SaleCount     int                `json:"sale_count"`
	Subtotal      float64            `json:"subtotal"`
	DiscountTotal float64            `json:"discount_total"`
	Total         float64            `json:"total"`
	ByMethod      map[string]float64 `json:"by_method"`
}

// TopProduct is one row of the best-sellers ranking.
type TopProduct struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Units     int     `json:"units"`
	Revenue   float64 `json:"revenue"`
}

// ControlledEntry is one line of the controlled-substance register: who
// bought what, under which prescription.
type ControlledEntry struct {
	SaleCode           string    `json:"sale_code"`
	SoldAt             time.Time `json:"sold_at"`
	ProductName        string    `json:"product_name"`
	Quantity           int       `json:"quantity"`
	PrescriptionNumber string    `json:"prescription_number"`
	PrescriptionDate   time.Time `json:"prescription_date"`
	PatientName        string    `json:"patient_name"`
	PatientDocument    string    `json:"patient_document"`
	OperatorID         int64     `json:"operator_id"`
}

// Period is a half-open reporting window.
type Period struct {
	From time.Time
	To   time.Time
}
