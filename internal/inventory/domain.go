package inventory

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/farmapos/farmapos/internal/platform/httpx"
)

// Lot is a dated sub-quantity of a product's stock, tracked separately for
// expiry and traceability.
type Lot struct {
	ID                int64     `json:"id"`
	ProductID         int64     `json:"product_id"`
	LotNumber         string    `json:"lot_number"`
	ExpiryDate        time.Time `json:"expiry_date"`
	QuantityAvailable int       `json:"quantity_available"`
	UnitCost          float64   `json:"unit_cost"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// DaysToExpiry returns whole days until the lot expires, negative when the
// lot is already expired.
func (l Lot) DaysToExpiry(now time.Time) int {
	return int(l.ExpiryDate.Sub(now).Hours() / 24)
}

// ExpiryStatus buckets a lot by urgency for display and reporting.
type ExpiryStatus string

const (
	ExpiryStatusExpired  ExpiryStatus = "EXPIRED"
	ExpiryStatusCritical ExpiryStatus = "CRITICAL"
	ExpiryStatusWarning  ExpiryStatus = "WARNING"
	ExpiryStatusOK       ExpiryStatus = "OK"
)

// ExpiryStatusAt classifies the lot: expired, within 30 days, within 90
// days, or fine.
func (l Lot) ExpiryStatusAt(now time.Time) ExpiryStatus {
	days := l.DaysToExpiry(now)
	switch {
	case days <= 0:
		return ExpiryStatusExpired
	case days <= 30:
		return ExpiryStatusCritical
	case days <= 90:
		return ExpiryStatusWarning
	default:
		return ExpiryStatusOK
	}
}

// SortFEFO orders lots first-expire-first-out, nearest expiry ahead. Ties
// break on lot number so the order is stable across requests.
func SortFEFO(lots []Lot) {
	sort.Slice(lots, func(i, j int) bool {
		if lots[i].ExpiryDate.Equal(lots[j].ExpiryDate) {
			return lots[i].LotNumber < lots[j].LotNumber
		}
		return lots[i].ExpiryDate.Before(lots[j].ExpiryDate)
	})
}

// AutoSelectFEFO picks up to maxLots lots whose days-to-expiry fall within
// (0, windowDays], nearest expiry first. It returns ErrNoLotsInWindow when
// nothing qualifies; callers must not mutate any selection state in that case.
func AutoSelectFEFO(lots []Lot, now time.Time, windowDays, maxLots int) ([]Lot, error) {
	if windowDays <= 0 {
		windowDays = 90
	}
	if maxLots <= 0 {
		maxLots = 5
	}
	candidates := make([]Lot, 0, len(lots))
	for _, lot := range lots {
		days := lot.DaysToExpiry(now)
		if days > 0 && days <= windowDays && lot.QuantityAvailable > 0 {
			candidates = append(candidates, lot)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoLotsInWindow
	}
	SortFEFO(candidates)
	if len(candidates) > maxLots {
		candidates = candidates[:maxLots]
	}
	return candidates, nil
}

// ClampQuantity forces a requested lot quantity into [1, available].
func ClampQuantity(requested, available int) int {
	if requested > available {
		return available
	}
	if requested < 1 {
		return 1
	}
	return requested
}

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementTypeIn represents a lot receipt.
	MovementTypeIn MovementType = "IN"
	// MovementTypeOut represents a sale allocation.
	MovementTypeOut MovementType = "OUT"
	// MovementTypeAdjust indicates manual adjustments.
	MovementTypeAdjust MovementType = "ADJUST"
)

// Movement records each lot-level stock change.
type Movement struct {
	ID        int64        `json:"id"`
	ProductID int64        `json:"product_id"`
	LotID     int64        `json:"lot_id"`
	Type      MovementType `json:"type"`
	Quantity  int          `json:"quantity"`
	UnitCost  float64      `json:"unit_cost"`
	Note      string       `json:"note,omitempty"`
	RefModule string       `json:"ref_module,omitempty"`
	RefID     string       `json:"ref_id,omitempty"`
	ActorID   int64        `json:"actor_id"`
	CreatedAt time.Time    `json:"created_at"`
}

// ReceiveLotRequest registers a new lot arriving into stock.
type ReceiveLotRequest struct {
	ProductID  int64     `json:"product_id" validate:"required,gt=0"`
	LotNumber  string    `json:"lot_number" validate:"required,max=60"`
	ExpiryDate time.Time `json:"expiry_date" validate:"required"`
	Quantity   int       `json:"quantity" validate:"required,gt=0"`
	UnitCost   float64   `json:"unit_cost" validate:"gte=0"`
	Note       string    `json:"note,omitempty"`
}

// AdjustLotRequest corrects a lot's quantity up or down.
type AdjustLotRequest struct {
	LotID    int64  `json:"lot_id" validate:"required,gt=0"`
	Quantity int    `json:"quantity" validate:"required"`
	Note     string `json:"note" validate:"required,max=300"`
}

var (
	// ErrLotNotFound indicates a missing lot.
	ErrLotNotFound = fmt.Errorf("inventory: lot %w", httpx.ErrNotFound)
	// ErrNegativeStock triggered when a movement would drive a lot negative.
	ErrNegativeStock = fmt.Errorf("inventory: %w: negative stock not allowed", httpx.ErrValidation)
	// ErrInvalidQuantity indicates a zero or otherwise unusable quantity.
	ErrInvalidQuantity = fmt.Errorf("inventory: %w: invalid quantity", httpx.ErrValidation)
	// ErrExpiredLot rejects receiving stock that is already expired.
	ErrExpiredLot = fmt.Errorf("inventory: %w: lot already expired", httpx.ErrValidation)
	// ErrNoLotsInWindow is returned by FEFO auto-selection when no lot
	// expires within the configured window.
	ErrNoLotsInWindow = errors.New("inventory: no lots expiring within the selection window")
)
