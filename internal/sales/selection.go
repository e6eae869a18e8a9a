package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/farmapos/farmapos/internal/catalog"
	"github.com/farmapos/farmapos/internal/inventory"
	"github.com/farmapos/farmapos/internal/promotions"
)

// SelectionState is the lot-selection workflow state.
type SelectionState string

const (
	SelectionClosed    SelectionState = "CLOSED"
	SelectionLoading   SelectionState = "LOADING"
	SelectionReady     SelectionState = "READY"
	SelectionConfirmed SelectionState = "CONFIRMED"
	SelectionCancelled SelectionState = "CANCELLED"
)

// LotLister provides the available lots of a product.
type LotLister interface {
	AvailableLots(ctx context.Context, productID int64) ([]inventory.Lot, error)
}

// PromotionProber resolves lot-scoped promotions for a batch of lots.
type PromotionProber interface {
	ProbeLots(ctx context.Context, product promotions.SaleProduct, lotIDs []int64) []promotions.LotProbeResult
}

// SelectionConfig tunes the FEFO auto-pick.
type SelectionConfig struct {
	FEFOWindowDays int
	FEFOMaxLots    int
	Now            func() time.Time
}

func (c SelectionConfig) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// SelectableLot is a lot as presented during selection, decorated with its
// probe outcome.
type SelectableLot struct {
	inventory.Lot
	DaysToExpiry int                    `json:"days_to_expiry"`
	ExpiryStatus inventory.ExpiryStatus `json:"expiry_status"`
	Promotion    *promotions.Promotion  `json:"promotion,omitempty"`
	ProbeFailed  bool                   `json:"probe_failed,omitempty"`
	Selected     int                    `json:"selected_quantity"`
}

// LotSelectionSession drives the lot-selection workflow:
// Closed -> Loading -> Ready -> Confirmed | Cancelled. The session is plain
// local state; a cancelled or abandoned session leaves nothing behind.
type LotSelectionSession struct {
	state     SelectionState
	product   catalog.Product
	requested int
	lots      []inventory.Lot
	promos    map[int64]*promotions.Promotion
	probeErrs map[int64]error
	chosen    map[int64]int

	lister LotLister
	prober PromotionProber
	cfg    SelectionConfig
}

// NewLotSelectionSession returns a session in the Closed state.
func NewLotSelectionSession(lister LotLister, prober PromotionProber, cfg SelectionConfig) *LotSelectionSession {
	return &LotSelectionSession{
		state:     SelectionClosed,
		promos:    make(map[int64]*promotions.Promotion),
		probeErrs: make(map[int64]error),
		chosen:    make(map[int64]int),
		lister:    lister,
		prober:    prober,
		cfg:       cfg,
	}
}

// State returns the current workflow state.
func (s *LotSelectionSession) State() SelectionState {
	return s.state
}

// Open loads the product's available lots and probes each for a lot-scoped
// promotion. A failed lot listing aborts the whole session: a silently
// partial lot list would let near-expiry stock hide from the operator. A
// failed per-lot promotion probe only marks that lot.
func (s *LotSelectionSession) Open(ctx context.Context, product catalog.Product, requestedQty int) error {
	if s.state != SelectionClosed {
		return ErrSelectionState
	}
	if requestedQty <= 0 {
		return ErrInvalidQuantity
	}
	s.state = SelectionLoading
	s.product = product
	s.requested = requestedQty

	lots, err := s.lister.AvailableLots(ctx, product.ID)
	if err != nil {
		s.state = SelectionClosed
		return fmt.Errorf("sales: load lots: %w", err)
	}
	inventory.SortFEFO(lots)
	s.lots = lots

	if s.prober != nil && len(lots) > 0 {
		ids := make([]int64, len(lots))
		for i, lot := range lots {
			ids[i] = lot.ID
		}
		sp := promotions.SaleProduct{ID: product.ID, Laboratory: product.Laboratory, SalePrice: product.SalePrice}
		for _, res := range s.prober.ProbeLots(ctx, sp, ids) {
			if res.Err != nil {
				s.probeErrs[res.LotID] = res.Err
				continue
			}
			if res.Promotion != nil && res.Promotion.Scope == promotions.ScopeLot {
				s.promos[res.LotID] = res.Promotion
			}
		}
	}

	s.state = SelectionReady
	return nil
}

// Toggle flips a lot in or out of the selection. Newly selected lots
// default to their full availability.
func (s *LotSelectionSession) Toggle(lotID int64) error {
	if s.state != SelectionReady {
		return ErrSelectionState
	}
	lot, ok := s.lot(lotID)
	if !ok {
		return inventory.ErrLotNotFound
	}
	if _, selected := s.chosen[lotID]; selected {
		delete(s.chosen, lotID)
		return nil
	}
	s.chosen[lotID] = lot.QuantityAvailable
	return nil
}

// SelectAll toggles every visible lot: all selected clears the selection,
// anything else selects everything at full availability.
func (s *LotSelectionSession) SelectAll() error {
	if s.state != SelectionReady {
		return ErrSelectionState
	}
	if len(s.chosen) == len(s.lots) && len(s.lots) > 0 {
		s.chosen = make(map[int64]int)
		return nil
	}
	for _, lot := range s.lots {
		s.chosen[lot.ID] = lot.QuantityAvailable
	}
	return nil
}

// SetQuantity edits the chosen quantity of a selected lot, clamped into
// [1, availability].
func (s *LotSelectionSession) SetQuantity(lotID int64, quantity int) error {
	if s.state != SelectionReady {
		return ErrSelectionState
	}
	lot, ok := s.lot(lotID)
	if !ok {
		return inventory.ErrLotNotFound
	}
	if _, selected := s.chosen[lotID]; !selected {
		return ErrNoLotsSelected
	}
	s.chosen[lotID] = inventory.ClampQuantity(quantity, lot.QuantityAvailable)
	return nil
}

// AutoSelectFEFO replaces the selection with the near-expiry FEFO pick.
// When no lot falls inside the window the selection is left untouched and
// the error surfaces to the operator.
func (s *LotSelectionSession) AutoSelectFEFO() error {
	if s.state != SelectionReady {
		return ErrSelectionState
	}
	picked, err := inventory.AutoSelectFEFO(s.lots, s.cfg.now(), s.cfg.FEFOWindowDays, s.cfg.FEFOMaxLots)
	if err != nil {
		return err
	}
	s.chosen = make(map[int64]int)
	for _, lot := range picked {
		s.chosen[lot.ID] = lot.QuantityAvailable
	}
	return nil
}

// Lots returns the visible lots in FEFO order with selection and probe
// state attached.
func (s *LotSelectionSession) Lots() []SelectableLot {
	now := s.cfg.now()
	out := make([]SelectableLot, 0, len(s.lots))
	for _, lot := range s.lots {
		out = append(out, SelectableLot{
			Lot:          lot,
			DaysToExpiry: lot.DaysToExpiry(now),
			ExpiryStatus: lot.ExpiryStatusAt(now),
			Promotion:    s.promos[lot.ID],
			ProbeFailed:  s.probeErrs[lot.ID] != nil,
			Selected:     s.chosen[lot.ID],
		})
	}
	return out
}

// Confirm closes the session and emits the selections in FEFO order,
// together with the lot-scoped promotion of the first selected lot that
// carries one (the caller re-prices the line with it).
func (s *LotSelectionSession) Confirm() ([]LotSelection, *promotions.Promotion, error) {
	if s.state != SelectionReady {
		return nil, nil, ErrSelectionState
	}
	if len(s.chosen) == 0 {
		return nil, nil, ErrNoLotsSelected
	}

	var selections []LotSelection
	var promo *promotions.Promotion
	for _, lot := range s.lots {
		qty, ok := s.chosen[lot.ID]
		if !ok {
			continue
		}
		if qty <= 0 || qty > lot.QuantityAvailable {
			return nil, nil, ErrLotQuantityBounds
		}
		selections = append(selections, LotSelection{
			LotID:             lot.ID,
			LotNumber:         lot.LotNumber,
			ExpiryDate:        lot.ExpiryDate,
			QuantityAvailable: lot.QuantityAvailable,
			Quantity:          qty,
			UnitCost:          lot.UnitCost,
		})
		if promo == nil {
			promo = s.promos[lot.ID]
		}
	}
	s.state = SelectionConfirmed
	return selections, promo, nil
}

// Cancel discards all in-progress selections.
func (s *LotSelectionSession) Cancel() {
	s.state = SelectionCancelled
	s.chosen = make(map[int64]int)
}

func (s *LotSelectionSession) lot(lotID int64) (inventory.Lot, bool) {
	for _, lot := range s.lots {
		if lot.ID == lotID {
			return lot, true
		}
	}
	return inventory.Lot{}, false
}
