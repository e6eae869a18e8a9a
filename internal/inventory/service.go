package inventory

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/farmapos/farmapos/internal/platform/httpx"
	"github.com/farmapos/farmapos/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetLot(ctx context.Context, id int64) (*Lot, error)
	ListAvailableLots(ctx context.Context, productID int64) ([]Lot, error)
	ListNearExpiry(ctx context.Context, now time.Time, windowDays int) ([]Lot, error)
	ListMovements(ctx context.Context, lotID int64, limit int) ([]Movement, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates lot and stock movement operations.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	validate *validator.Validate
	now      func() time.Time
}

// NewService builds a Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, validate: validator.New(), now: time.Now}
}

// ReceiveLot creates a lot and posts the inbound movement.
func (s *Service) ReceiveLot(ctx context.Context, req ReceiveLotRequest, actorID int64) (*Lot, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("inventory: %w: %v", httpx.ErrValidation, err)
	}
	if !req.ExpiryDate.After(s.now()) {
		return nil, ErrExpiredLot
	}

	lot := Lot{
		ProductID:         req.ProductID,
		LotNumber:         req.LotNumber,
		ExpiryDate:        req.ExpiryDate,
		QuantityAvailable: req.Quantity,
		UnitCost:          req.UnitCost,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertLot(ctx, lot)
		if err != nil {
			return err
		}
		lot.ID = id
		if err := tx.InsertMovement(ctx, Movement{
			ProductID: req.ProductID,
			LotID:     id,
			Type:      MovementTypeIn,
			Quantity:  req.Quantity,
			UnitCost:  req.UnitCost,
			Note:      req.Note,
			RefModule: "inventory",
			RefID:     strconv.FormatInt(id, 10),
			ActorID:   actorID,
		}); err != nil {
			return err
		}
		return tx.AdjustProductStock(ctx, req.ProductID, req.Quantity)
	})
	if err != nil {
		return nil, fmt.Errorf("inventory: receive lot: %w", err)
	}
	return &lot, nil
}

// AdjustLot corrects a lot quantity, rejecting adjustments that would drive
// the lot negative. Manual adjustments are audited.
func (s *Service) AdjustLot(ctx context.Context, req AdjustLotRequest, actorID int64) (*Lot, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("inventory: %w: %v", httpx.ErrValidation, err)
	}
	if req.Quantity == 0 {
		return nil, ErrInvalidQuantity
	}

	var adjusted *Lot
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lot, err := tx.GetLotForUpdate(ctx, req.LotID)
		if err != nil {
			return err
		}
		next := lot.QuantityAvailable + req.Quantity
		if next < 0 {
			return ErrNegativeStock
		}
		if err := tx.UpdateLotQuantity(ctx, lot.ID, next); err != nil {
			return err
		}
		if err := tx.InsertMovement(ctx, Movement{
			ProductID: lot.ProductID,
			LotID:     lot.ID,
			Type:      MovementTypeAdjust,
			Quantity:  req.Quantity,
			UnitCost:  lot.UnitCost,
			Note:      req.Note,
			RefModule: "inventory",
			RefID:     strconv.FormatInt(lot.ID, 10),
			ActorID:   actorID,
		}); err != nil {
			return err
		}
		if err := tx.AdjustProductStock(ctx, lot.ProductID, req.Quantity); err != nil {
			return err
		}
		lot.QuantityAvailable = next
		adjusted = lot
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   shared.AuditActionStockAdjustment,
			Entity:   "lot",
			EntityID: strconv.FormatInt(req.LotID, 10),
			Meta:     map[string]any{"quantity": req.Quantity, "note": req.Note},
			At:       s.now(),
		})
	}
	return adjusted, nil
}

// GetLot fetches a lot by id.
func (s *Service) GetLot(ctx context.Context, id int64) (*Lot, error) {
	return s.repo.GetLot(ctx, id)
}

// AvailableLots lists the sellable lots of a product in FEFO order.
func (s *Service) AvailableLots(ctx context.Context, productID int64) ([]Lot, error) {
	return s.repo.ListAvailableLots(ctx, productID)
}

// NearExpiry lists non-empty lots expiring within windowDays.
func (s *Service) NearExpiry(ctx context.Context, windowDays int) ([]Lot, error) {
	if windowDays <= 0 {
		windowDays = 90
	}
	return s.repo.ListNearExpiry(ctx, s.now(), windowDays)
}

// Movements returns the movement trail for a lot.
func (s *Service) Movements(ctx context.Context, lotID int64, limit int) ([]Movement, error) {
	return s.repo.ListMovements(ctx, lotID, limit)
}
