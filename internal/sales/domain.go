package sales

import (
	"fmt"
	"time"

	"github.com/farmapos/farmapos/internal/platform/httpx"
)

// PaymentMethod enumerates accepted tender types.
type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "CASH"
	PaymentMethodCard PaymentMethod = "CARD"
	PaymentMethodPix  PaymentMethod = "PIX"
)

// SaleStatus tracks the sale lifecycle.
type SaleStatus string

const (
	// SaleStatusPendingPayment is set at checkout; the sale is booked and
	// stock allocated, awaiting tender.
	SaleStatusPendingPayment SaleStatus = "PENDING_PAYMENT"
	SaleStatusPaid           SaleStatus = "PAID"
	SaleStatusCancelled      SaleStatus = "CANCELLED"
)

// LotSelection is a transient association between a sale line and an
// inventory lot: the operator chose Quantity units out of the lot's
// availability. Invariant: 0 < Quantity <= QuantityAvailable.
type LotSelection struct {
	LotID             int64     `json:"lot_id"`
	LotNumber         string    `json:"lot_number"`
	ExpiryDate        time.Time `json:"expiry_date"`
	QuantityAvailable int       `json:"quantity_available"`
	Quantity          int       `json:"quantity"`
	UnitCost          float64   `json:"unit_cost"`
}

// Prescription captures the regulatory data required to sell a controlled
// substance.
type Prescription struct {
	Number          string    `json:"number"`
	Date            time.Time `json:"date"`
	PatientName     string    `json:"patient_name"`
	PatientDocument string    `json:"patient_document"`
	PatientAddress  string    `json:"patient_address"`
	PatientPhone    string    `json:"patient_phone"`
}

// Complete reports whether every prescription field is filled in.
func (p Prescription) Complete() bool {
	return p.Number != "" && !p.Date.IsZero() && p.PatientName != "" &&
		p.PatientDocument != "" && p.PatientAddress != "" && p.PatientPhone != ""
}

// Sale is a committed point-of-sale transaction.
type Sale struct {
	ID            int64          `json:"id"`
	Code          string         `json:"code"`
	OperatorID    int64          `json:"operator_id"`
	CustomerID    *int64         `json:"customer_id,omitempty"`
	Status        SaleStatus     `json:"status"`
	Subtotal      float64        `json:"subtotal"`
	DiscountTotal float64        `json:"discount_total"`
	Total         float64        `json:"total"`
	PaymentMethod *PaymentMethod `json:"payment_method,omitempty"`
	AmountPaid    float64        `json:"amount_paid"`
	ChangeDue     float64        `json:"change_due"`
	Prescription  *Prescription  `json:"prescription,omitempty"`
	Items         []SaleItem     `json:"items,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	PaidAt        *time.Time     `json:"paid_at,omitempty"`
}

// SaleItem is one line of a sale.
type SaleItem struct {
	ID          int64           `json:"id"`
	SaleID      int64           `json:"sale_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Controlled  bool            `json:"controlled"`
	Quantity    int             `json:"quantity"`
	UnitPrice   float64         `json:"unit_price"`
	Discount    float64         `json:"discount"`
	LineTotal   float64         `json:"line_total"`
	PromotionID *int64          `json:"promotion_id,omitempty"`
	Allocations []LotAllocation `json:"allocations,omitempty"`
}

// LotAllocation records the lots a sale line consumed.
type LotAllocation struct {
	ID         int64   `json:"id"`
	SaleItemID int64   `json:"sale_item_id"`
	LotID      int64   `json:"lot_id"`
	LotNumber  string  `json:"lot_number"`
	Quantity   int     `json:"quantity"`
	UnitCost   float64 `json:"unit_cost"`
}

// CheckoutRequest is the sale submission payload.
type CheckoutRequest struct {
	IdempotencyKey string               `json:"idempotency_key" validate:"required,max=80"`
	CustomerID     *int64               `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	Items          []CheckoutItem       `json:"items" validate:"required,min=1,dive"`
	Prescription   *PrescriptionRequest `json:"prescription,omitempty"`
}

// CheckoutItem is one requested sale line.
type CheckoutItem struct {
	ProductID int64         `json:"product_id" validate:"required,gt=0"`
	Quantity  int           `json:"quantity" validate:"required,gt=0"`
	Lots      []CheckoutLot `json:"lots,omitempty" validate:"omitempty,dive"`
}

// CheckoutLot names a lot and how many units to take from it.
type CheckoutLot struct {
	LotID    int64 `json:"lot_id" validate:"required,gt=0"`
	Quantity int   `json:"quantity" validate:"required,gt=0"`
}

// PrescriptionRequest carries controlled-substance data at checkout.
type PrescriptionRequest struct {
	Number          string    `json:"number" validate:"required,max=60"`
	Date            time.Time `json:"date" validate:"required"`
	PatientName     string    `json:"patient_name" validate:"required,max=200"`
	PatientDocument string    `json:"patient_document" validate:"required,max=40"`
	PatientAddress  string    `json:"patient_address" validate:"required,max=300"`
	PatientPhone    string    `json:"patient_phone" validate:"required,max=40"`
}

// FinalizePaymentRequest completes a pending sale.
type FinalizePaymentRequest struct {
	Method     PaymentMethod `json:"method" validate:"required,oneof=CASH CARD PIX"`
	AmountPaid float64       `json:"amount_paid" validate:"gte=0"`
}

// ListSalesRequest filters the sale history.
type ListSalesRequest struct {
	Status *SaleStatus
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

var (
	// ErrSaleNotFound indicates a missing sale.
	ErrSaleNotFound = fmt.Errorf("sales: sale %w", httpx.ErrNotFound)
	// ErrEmptyCart rejects checkout with no line items.
	ErrEmptyCart = fmt.Errorf("sales: %w: cart is empty", httpx.ErrValidation)
	// ErrInvalidQuantity rejects non-positive line quantities.
	ErrInvalidQuantity = fmt.Errorf("sales: %w: quantity must be positive", httpx.ErrValidation)
	// ErrInsufficientStock rejects a line whose combined quantity exceeds
	// the product's stock.
	ErrInsufficientStock = fmt.Errorf("sales: %w: insufficient stock", httpx.ErrValidation)
	// ErrInsufficientLotStock rejects an allocation beyond a lot's
	// availability at commit time.
	ErrInsufficientLotStock = fmt.Errorf("sales: %w: insufficient lot stock", httpx.ErrConflict)
	// ErrLotSelectionRequired rejects a lot-required product without lots.
	ErrLotSelectionRequired = fmt.Errorf("sales: %w: product requires lot selection", httpx.ErrValidation)
	// ErrLotQuantityMismatch rejects selections that do not sum to the line
	// quantity.
	ErrLotQuantityMismatch = fmt.Errorf("sales: %w: selected lot quantities must sum to the line quantity", httpx.ErrValidation)
	// ErrLotQuantityBounds rejects a selection outside (0, available].
	ErrLotQuantityBounds = fmt.Errorf("sales: %w: lot quantity out of bounds", httpx.ErrValidation)
	// ErrPrescriptionRequired gates controlled items on prescription data.
	ErrPrescriptionRequired = fmt.Errorf("sales: %w: controlled items require prescription and patient data", httpx.ErrValidation)
	// ErrPrescriptionDate rejects future or stale prescription dates.
	ErrPrescriptionDate = fmt.Errorf("sales: %w: prescription date outside the accepted window", httpx.ErrValidation)
	// ErrSaleNotPending rejects payment on a sale that is not awaiting it.
	ErrSaleNotPending = fmt.Errorf("sales: %w: sale is not awaiting payment", httpx.ErrConflict)
	// ErrInsufficientPayment rejects cash tenders below the sale total.
	ErrInsufficientPayment = fmt.Errorf("sales: %w: amount paid below total", httpx.ErrValidation)
	// ErrSelectionState signals a lot-selection call in the wrong state.
	ErrSelectionState = fmt.Errorf("sales: %w: lot selection not in required state", httpx.ErrConflict)
	// ErrNoLotsSelected rejects confirming an empty selection.
	ErrNoLotsSelected = fmt.Errorf("sales: %w: select at least one lot", httpx.ErrValidation)
)
