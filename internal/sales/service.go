package sales

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/farmapos/farmapos/internal/catalog"
	"github.com/farmapos/farmapos/internal/inventory"
	"github.com/farmapos/farmapos/internal/platform/httpx"
	"github.com/farmapos/farmapos/internal/promotions"
	"github.com/farmapos/farmapos/internal/shared"
)

// RepositoryPort is the persistence surface the service needs.
type RepositoryPort interface {
	CreateSale(ctx context.Context, sale Sale, items []SaleItem) (int64, error)
	FinalizePayment(ctx context.Context, saleID int64, method PaymentMethod, amountPaid, changeDue float64) error
	GetSale(ctx context.Context, id int64) (*Sale, error)
	ListSales(ctx context.Context, req ListSalesRequest) ([]Sale, int, error)
}

// CatalogPort looks up sellable products.
type CatalogPort interface {
	GetSellable(ctx context.Context, id int64) (*catalog.Product, error)
}

// InventoryPort exposes lot lookups for checkout and selection.
type InventoryPort interface {
	GetLot(ctx context.Context, id int64) (*inventory.Lot, error)
	AvailableLots(ctx context.Context, productID int64) ([]inventory.Lot, error)
}

// PromotionsPort prices lines and records promotional sales.
type PromotionsPort interface {
	Price(ctx context.Context, product promotions.SaleProduct, lotID *int64) (*promotions.Promotion, promotions.Discount, error)
	RegisterSale(ctx context.Context, promotionID int64, quantity int) error
	ProbeLots(ctx context.Context, product promotions.SaleProduct, lotIDs []int64) []promotions.LotProbeResult
}

// AuditPort records the controlled-substance register entries.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort deduplicates checkout submissions.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Config carries the sale policy knobs.
type Config struct {
	PrescriptionMaxAgeDays int
	FEFOWindowDays         int
	FEFOMaxLots            int
}

// Service orchestrates checkout, payment and the sale history.
type Service struct {
	repo     RepositoryPort
	products CatalogPort
	lots     InventoryPort
	promos   PromotionsPort
	audit    AuditPort
	idem     IdempotencyPort
	cfg      Config
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires the sale service.
func NewService(repo RepositoryPort, products CatalogPort, lots InventoryPort, promos PromotionsPort, audit AuditPort, idem IdempotencyPort, cfg Config, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		products: products,
		lots:     lots,
		promos:   promos,
		audit:    audit,
		idem:     idem,
		cfg:      cfg,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
}

func newSaleCode() string {
	return "S-" + strings.ToUpper(uuid.NewString()[:8])
}

// Checkout turns a submitted cart into a pending sale. The whole booking is
// transactional; promotion counters and the controlled-substance register are
// updated after commit.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest, operatorID int64) (*Sale, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("sales: %w: %v", httpx.ErrValidation, err)
	}

	if err := s.idem.CheckAndInsert(ctx, req.IdempotencyKey, "sales"); err != nil {
		return nil, fmt.Errorf("sales: %w: duplicate checkout", httpx.ErrConflict)
	}
	sale, err := s.checkout(ctx, req, operatorID)
	if err != nil {
		// Free the key so the caller can retry after fixing the cart.
		if delErr := s.idem.Delete(ctx, req.IdempotencyKey); delErr != nil {
			s.logger.Warn("idempotency key release failed", "key", req.IdempotencyKey, "error", delErr)
		}
		return nil, err
	}
	return sale, nil
}

func (s *Service) checkout(ctx context.Context, req CheckoutRequest, operatorID int64) (*Sale, error) {
	now := s.now()
	cart := NewCart()

	for _, line := range req.Items {
		product, err := s.products.GetSellable(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}

		var selections []LotSelection
		for _, cl := range line.Lots {
			lot, err := s.lots.GetLot(ctx, cl.LotID)
			if err != nil {
				return nil, err
			}
			if lot.ProductID != product.ID {
				return nil, ErrLotQuantityMismatch
			}
			selections = append(selections, LotSelection{
				LotID:             lot.ID,
				LotNumber:         lot.LotNumber,
				ExpiryDate:        lot.ExpiryDate,
				QuantityAvailable: lot.QuantityAvailable,
				Quantity:          cl.Quantity,
				UnitCost:          lot.UnitCost,
			})
		}

		// Lot-scoped promotions apply only when the line pins exactly one lot.
		var lotID *int64
		if len(selections) == 1 {
			lotID = &selections[0].LotID
		}
		promo, discount, err := s.promos.Price(ctx, promotions.SaleProduct{
			ID:         product.ID,
			Laboratory: product.Laboratory,
			SalePrice:  product.SalePrice,
		}, lotID)
		if err != nil {
			return nil, err
		}
		var promoID *int64
		lineDiscount := discount.Amount * float64(line.Quantity)
		if promo != nil {
			promoID = &promo.ID
		}
		if err := cart.AddItem(*product, line.Quantity, product.SalePrice, lineDiscount, promoID, selections); err != nil {
			return nil, err
		}
	}

	if req.Prescription != nil {
		p := req.Prescription
		cart.SetPrescription(Prescription{
			Number:          p.Number,
			Date:            p.Date,
			PatientName:     p.PatientName,
			PatientDocument: p.PatientDocument,
			PatientAddress:  p.PatientAddress,
			PatientPhone:    p.PatientPhone,
		})
	}
	if err := cart.CheckoutReady(now, s.cfg.PrescriptionMaxAgeDays); err != nil {
		return nil, err
	}

	totals := cart.Totals()
	sale := Sale{
		Code:          newSaleCode(),
		OperatorID:    operatorID,
		CustomerID:    req.CustomerID,
		Status:        SaleStatusPendingPayment,
		Subtotal:      totals.Subtotal,
		DiscountTotal: totals.Discount,
		Total:         totals.Total,
		Prescription:  cart.Prescription(),
		CreatedAt:     now,
	}

	var items []SaleItem
	for _, ci := range cart.Items() {
		item := SaleItem{
			ProductID:   ci.Product.ID,
			ProductName: ci.Product.Name,
			Controlled:  ci.Product.Controlled,
			Quantity:    ci.Quantity,
			UnitPrice:   ci.UnitPrice,
			Discount:    ci.Discount,
			LineTotal:   ci.LineTotal(),
			PromotionID: ci.PromotionID,
		}
		for _, sel := range ci.Selections {
			item.Allocations = append(item.Allocations, LotAllocation{
				LotID:     sel.LotID,
				LotNumber: sel.LotNumber,
				Quantity:  sel.Quantity,
				UnitCost:  sel.UnitCost,
			})
		}
		items = append(items, item)
	}

	saleID, err := s.repo.CreateSale(ctx, sale, items)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		if item.PromotionID == nil {
			continue
		}
		if err := s.promos.RegisterSale(ctx, *item.PromotionID, item.Quantity); err != nil {
			s.logger.Warn("promotion counter update failed", "promotion_id", *item.PromotionID, "sale", sale.Code, "error", err)
		}
	}
	if cart.HasControlled() {
		meta := map[string]any{"sale_code": sale.Code}
		if p := cart.Prescription(); p != nil {
			meta["prescription_number"] = p.Number
			meta["patient_document"] = p.PatientDocument
		}
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  operatorID,
			Action:   shared.AuditActionControlledSale,
			Entity:   "sale",
			EntityID: fmt.Sprintf("%d", saleID),
			Meta:     meta,
			At:       now,
		}); err != nil {
			s.logger.Warn("controlled register write failed", "sale", sale.Code, "error", err)
		}
	}

	return s.repo.GetSale(ctx, saleID)
}

// FinalizePayment settles a pending sale. Cash payments must cover the total
// and yield change; card and PIX settle exactly at the total.
func (s *Service) FinalizePayment(ctx context.Context, saleID int64, req FinalizePaymentRequest) (*Sale, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("sales: %w: %v", httpx.ErrValidation, err)
	}
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.Status != SaleStatusPendingPayment {
		return nil, ErrSaleNotPending
	}

	amountPaid := req.AmountPaid
	var changeDue float64
	switch req.Method {
	case PaymentMethodCash:
		if amountPaid < sale.Total {
			return nil, ErrInsufficientPayment
		}
		changeDue = amountPaid - sale.Total
	default:
		amountPaid = sale.Total
	}

	if err := s.repo.FinalizePayment(ctx, saleID, req.Method, amountPaid, changeDue); err != nil {
		return nil, err
	}
	return s.repo.GetSale(ctx, saleID)
}

// Get fetches a sale by id.
func (s *Service) Get(ctx context.Context, id int64) (*Sale, error) {
	return s.repo.GetSale(ctx, id)
}

// List pages through the sale history.
func (s *Service) List(ctx context.Context, req ListSalesRequest) ([]Sale, int, error) {
	return s.repo.ListSales(ctx, req)
}

// LotSelectionView opens a selection session for a product and returns the
// candidate lots with their promotion probes. When autoFEFO is set the
// first-expire-first-out picks are applied before the snapshot is taken.
func (s *Service) LotSelectionView(ctx context.Context, productID int64, quantity int, autoFEFO bool) ([]SelectableLot, error) {
	product, err := s.products.GetSellable(ctx, productID)
	if err != nil {
		return nil, err
	}
	session := NewLotSelectionSession(s.lots, s.promos, SelectionConfig{
		FEFOWindowDays: s.cfg.FEFOWindowDays,
		FEFOMaxLots:    s.cfg.FEFOMaxLots,
		Now:            s.now,
	})
	if err := session.Open(ctx, *product, quantity); err != nil {
		return nil, err
	}
	if autoFEFO {
		if err := session.AutoSelectFEFO(); err != nil {
			return nil, err
		}
	}
	return session.Lots(), nil
}
