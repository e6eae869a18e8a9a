package sales

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmapos/farmapos/internal/catalog"
	"github.com/farmapos/farmapos/internal/inventory"
	"github.com/farmapos/farmapos/internal/platform/httpx"
	"github.com/farmapos/farmapos/internal/promotions"
	"github.com/farmapos/farmapos/internal/shared"
)

type mockSaleRepo struct {
	sales     map[int64]*Sale
	nextID    int64
	createErr error
}

func newMockSaleRepo() *mockSaleRepo {
	return &mockSaleRepo{sales: make(map[int64]*Sale), nextID: 1}
}

func (m *mockSaleRepo) CreateSale(ctx context.Context, sale Sale, items []SaleItem) (int64, error) {
	if m.createErr != nil {
		return 0, m.createErr
	}
	sale.ID = m.nextID
	m.nextID++
	for i := range items {
		items[i].ID = int64(i + 1)
		items[i].SaleID = sale.ID
	}
	sale.Items = items
	m.sales[sale.ID] = &sale
	return sale.ID, nil
}

func (m *mockSaleRepo) FinalizePayment(ctx context.Context, saleID int64, method PaymentMethod, amountPaid, changeDue float64) error {
	sale, ok := m.sales[saleID]
	if !ok {
		return ErrSaleNotFound
	}
	if sale.Status != SaleStatusPendingPayment {
		return ErrSaleNotPending
	}
	now := time.Now()
	sale.Status = SaleStatusPaid
	sale.PaymentMethod = &method
	sale.AmountPaid = amountPaid
	sale.ChangeDue = changeDue
	sale.PaidAt = &now
	return nil
}

func (m *mockSaleRepo) GetSale(ctx context.Context, id int64) (*Sale, error) {
	sale, ok := m.sales[id]
	if !ok {
		return nil, ErrSaleNotFound
	}
	out := *sale
	return &out, nil
}

func (m *mockSaleRepo) ListSales(ctx context.Context, req ListSalesRequest) ([]Sale, int, error) {
	var out []Sale
	for _, sale := range m.sales {
		out = append(out, *sale)
	}
	return out, len(out), nil
}

type mockCatalogPort struct {
	products map[int64]catalog.Product
}

func (m *mockCatalogPort) GetSellable(ctx context.Context, id int64) (*catalog.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	out := p
	return &out, nil
}

type mockInventoryPort struct {
	lots map[int64]inventory.Lot
}

func (m *mockInventoryPort) GetLot(ctx context.Context, id int64) (*inventory.Lot, error) {
	lot, ok := m.lots[id]
	if !ok {
		return nil, inventory.ErrLotNotFound
	}
	out := lot
	return &out, nil
}

func (m *mockInventoryPort) AvailableLots(ctx context.Context, productID int64) ([]inventory.Lot, error) {
	var out []inventory.Lot
	for _, lot := range m.lots {
		if lot.ProductID == productID && lot.QuantityAvailable > 0 {
			out = append(out, lot)
		}
	}
	return out, nil
}

type mockPromotionsPort struct {
	promo      *promotions.Promotion
	discount   promotions.Discount
	priceErr   error
	registered map[int64]int
}

func (m *mockPromotionsPort) Price(ctx context.Context, product promotions.SaleProduct, lotID *int64) (*promotions.Promotion, promotions.Discount, error) {
	if m.priceErr != nil {
		return nil, promotions.Discount{}, m.priceErr
	}
	if m.promo == nil {
		return nil, promotions.Discount{FinalPrice: product.SalePrice}, nil
	}
	return m.promo, m.discount, nil
}

func (m *mockPromotionsPort) RegisterSale(ctx context.Context, promotionID int64, quantity int) error {
	if m.registered == nil {
		m.registered = make(map[int64]int)
	}
	m.registered[promotionID] += quantity
	return nil
}

func (m *mockPromotionsPort) ProbeLots(ctx context.Context, product promotions.SaleProduct, lotIDs []int64) []promotions.LotProbeResult {
	out := make([]promotions.LotProbeResult, 0, len(lotIDs))
	for _, id := range lotIDs {
		out = append(out, promotions.LotProbeResult{LotID: id})
	}
	return out
}

type mockAuditPort struct {
	logs      []shared.AuditLog
	recordErr error
}

func (m *mockAuditPort) Record(ctx context.Context, log shared.AuditLog) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.logs = append(m.logs, log)
	return nil
}

type mockIdemPort struct {
	keys     map[string]bool
	released []string
}

func newMockIdemPort() *mockIdemPort {
	return &mockIdemPort{keys: make(map[string]bool)}
}

func (m *mockIdemPort) CheckAndInsert(ctx context.Context, key, module string) error {
	if m.keys[key] {
		return errors.New("duplicate key")
	}
	m.keys[key] = true
	return nil
}

func (m *mockIdemPort) Delete(ctx context.Context, key string) error {
	delete(m.keys, key)
	m.released = append(m.released, key)
	return nil
}

type saleFixture struct {
	repo   *mockSaleRepo
	cat    *mockCatalogPort
	inv    *mockInventoryPort
	promos *mockPromotionsPort
	audit  *mockAuditPort
	idem   *mockIdemPort
	svc    *Service
}

var svcNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func newSaleFixture() *saleFixture {
	f := &saleFixture{
		repo:   newMockSaleRepo(),
		cat:    &mockCatalogPort{products: map[int64]catalog.Product{}},
		inv:    &mockInventoryPort{lots: map[int64]inventory.Lot{}},
		promos: &mockPromotionsPort{},
		audit:  &mockAuditPort{},
		idem:   newMockIdemPort(),
	}
	cfg := Config{PrescriptionMaxAgeDays: 30, FEFOWindowDays: 90, FEFOMaxLots: 5}
	f.svc = NewService(f.repo, f.cat, f.inv, f.promos, f.audit, f.idem, cfg, slog.Default())
	f.svc.now = func() time.Time { return svcNow }
	return f
}

func checkoutReq(items ...CheckoutItem) CheckoutRequest {
	return CheckoutRequest{IdempotencyKey: "idem-1", Items: items}
}

func TestCheckoutHappyPath(t *testing.T) {
	f := newSaleFixture()
	f.cat.products[1] = plainProduct(1, 50, 10)

	sale, err := f.svc.Checkout(context.Background(), checkoutReq(CheckoutItem{ProductID: 1, Quantity: 3}), 7)
	require.NoError(t, err)

	assert.Equal(t, SaleStatusPendingPayment, sale.Status)
	assert.Equal(t, int64(7), sale.OperatorID)
	assert.NotEmpty(t, sale.Code)
	assert.InDelta(t, 30, sale.Subtotal, 1e-9)
	assert.InDelta(t, 30, sale.Total, 1e-9)
	require.Len(t, sale.Items, 1)
	assert.Equal(t, 3, sale.Items[0].Quantity)
	assert.True(t, f.idem.keys["idem-1"], "idempotency key stays consumed on success")
	assert.Empty(t, f.audit.logs, "uncontrolled sale writes no register entry")
}

func TestCheckoutAppliesPromotionAndRegistersSale(t *testing.T) {
	f := newSaleFixture()
	f.cat.products[1] = plainProduct(1, 50, 10)
	f.promos.promo = &promotions.Promotion{ID: 5, Scope: promotions.ScopeProduct, Active: true}
	f.promos.discount = promotions.Discount{FinalPrice: 8, Amount: 2}

	sale, err := f.svc.Checkout(context.Background(), checkoutReq(CheckoutItem{ProductID: 1, Quantity: 4}), 7)
	require.NoError(t, err)

	assert.InDelta(t, 40, sale.Subtotal, 1e-9)
	assert.InDelta(t, 8, sale.DiscountTotal, 1e-9, "per-unit discount times quantity")
	assert.InDelta(t, 32, sale.Total, 1e-9)
	require.NotNil(t, sale.Items[0].PromotionID)
	assert.Equal(t, int64(5), *sale.Items[0].PromotionID)
	assert.Equal(t, 4, f.promos.registered[5], "promotion counter bumped after commit")
}

func TestCheckoutDuplicateKeyConflicts(t *testing.T) {
	f := newSaleFixture()
	f.cat.products[1] = plainProduct(1, 50, 10)

	_, err := f.svc.Checkout(context.Background(), checkoutReq(CheckoutItem{ProductID: 1, Quantity: 1}), 7)
	require.NoError(t, err)

	_, err = f.svc.Checkout(context.Background(), checkoutReq(CheckoutItem{ProductID: 1, Quantity: 1}), 7)
	assert.ErrorIs(t, err, httpx.ErrConflict)
}

func TestCheckoutFailureReleasesKey(t *testing.T) {
	f := newSaleFixture()
	f.cat.products[1] = plainProduct(1, 2, 10)

	_, err := f.svc.Checkout(context.Background(), checkoutReq(CheckoutItem{ProductID: 1, Quantity: 5}), 7)
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Contains(t, f.idem.released, "idem-1", "a failed checkout frees its key for retry")

	f.cat.products[1] = plainProduct(1, 50, 10)
	_, err = f.svc.Checkout(context.Background(), checkoutReq(CheckoutItem{ProductID: 1, Quantity: 5}), 7)
	assert.NoError(t, err, "retry with the same key succeeds after the fix")
}

func TestCheckoutRejectsForeignLot(t *testing.T) {
	f := newSaleFixture()
	f.cat.products[1] = lotRequiredProduct(1, 50)
	f.inv.lots[9] = inventory.Lot{ID: 9, ProductID: 2, LotNumber: "L9", QuantityAvailable: 10, ExpiryDate: svcNow.AddDate(0, 6, 0)}

	req := checkoutReq(CheckoutItem{ProductID: 1, Quantity: 2, Lots: []CheckoutLot{{LotID: 9, Quantity: 2}}})
	_, err := f.svc.Checkout(context.Background(), req, 7)
	assert.ErrorIs(t, err, ErrLotQuantityMismatch, "a lot of another product never attaches")
}

func TestCheckoutControlledRequiresPrescription(t *testing.T) {
	f := newSaleFixture()
	f.cat.products[2] = controlledProduct(2, 50)
	item := CheckoutItem{ProductID: 2, Quantity: 1}

	_, err := f.svc.Checkout(context.Background(), checkoutReq(item), 7)
	assert.ErrorIs(t, err, ErrPrescriptionRequired)

	req := checkoutReq(item)
	req.IdempotencyKey = "idem-2"
	req.Prescription = &PrescriptionRequest{
		Number:          "RX-2002",
		Date:            svcNow.AddDate(0, 0, -5),
		PatientName:     "Joao Lima",
		PatientDocument: "987.654.321-00",
		PatientAddress:  "Av. Central 200",
		PatientPhone:    "+55 11 98888-7777",
	}
	sale, err := f.svc.Checkout(context.Background(), req, 7)
	require.NoError(t, err)
	require.NotNil(t, sale.Prescription)
	assert.Equal(t, "RX-2002", sale.Prescription.Number)

	require.Len(t, f.audit.logs, 1, "controlled sale lands in the register")
	entry := f.audit.logs[0]
	assert.Equal(t, shared.AuditActionControlledSale, entry.Action)
	assert.Equal(t, int64(7), entry.ActorID)
	assert.Equal(t, "RX-2002", entry.Meta["prescription_number"])
	assert.Equal(t, sale.Code, entry.Meta["sale_code"])
}

func TestCheckoutAllocatesSelectedLots(t *testing.T) {
	f := newSaleFixture()
	f.cat.products[1] = lotRequiredProduct(1, 50)
	f.inv.lots[3] = inventory.Lot{ID: 3, ProductID: 1, LotNumber: "L3", QuantityAvailable: 4, ExpiryDate: svcNow.AddDate(0, 1, 0), UnitCost: 2.5}
	f.inv.lots[4] = inventory.Lot{ID: 4, ProductID: 1, LotNumber: "L4", QuantityAvailable: 9, ExpiryDate: svcNow.AddDate(0, 3, 0), UnitCost: 2.1}

	req := checkoutReq(CheckoutItem{ProductID: 1, Quantity: 6, Lots: []CheckoutLot{
		{LotID: 3, Quantity: 4},
		{LotID: 4, Quantity: 2},
	}})
	sale, err := f.svc.Checkout(context.Background(), req, 7)
	require.NoError(t, err)
	require.Len(t, sale.Items, 1)
	require.Len(t, sale.Items[0].Allocations, 2)
	assert.Equal(t, int64(3), sale.Items[0].Allocations[0].LotID)
	assert.Equal(t, 4, sale.Items[0].Allocations[0].Quantity)
	assert.Equal(t, int64(4), sale.Items[0].Allocations[1].LotID)
	assert.Equal(t, 2, sale.Items[0].Allocations[1].Quantity)
}

func TestCheckoutPropagatesCreateFailure(t *testing.T) {
	f := newSaleFixture()
	f.cat.products[1] = plainProduct(1, 50, 10)
	f.repo.createErr = ErrInsufficientLotStock

	_, err := f.svc.Checkout(context.Background(), checkoutReq(CheckoutItem{ProductID: 1, Quantity: 1}), 7)
	assert.ErrorIs(t, err, ErrInsufficientLotStock)
	assert.Contains(t, f.idem.released, "idem-1")
}

func TestFinalizePayment(t *testing.T) {
	pendingSale := func(t *testing.T, f *saleFixture) *Sale {
		t.Helper()
		f.cat.products[1] = plainProduct(1, 50, 10)
		sale, err := f.svc.Checkout(context.Background(), checkoutReq(CheckoutItem{ProductID: 1, Quantity: 2}), 7)
		require.NoError(t, err)
		return sale
	}

	t.Run("cash below total rejected", func(t *testing.T) {
		f := newSaleFixture()
		sale := pendingSale(t, f)
		_, err := f.svc.FinalizePayment(context.Background(), sale.ID, FinalizePaymentRequest{Method: PaymentMethodCash, AmountPaid: 10})
		assert.ErrorIs(t, err, ErrInsufficientPayment)
	})

	t.Run("cash yields change", func(t *testing.T) {
		f := newSaleFixture()
		sale := pendingSale(t, f)
		paid, err := f.svc.FinalizePayment(context.Background(), sale.ID, FinalizePaymentRequest{Method: PaymentMethodCash, AmountPaid: 50})
		require.NoError(t, err)
		assert.Equal(t, SaleStatusPaid, paid.Status)
		assert.InDelta(t, 50, paid.AmountPaid, 1e-9)
		assert.InDelta(t, 30, paid.ChangeDue, 1e-9)
	})

	t.Run("card settles at total", func(t *testing.T) {
		f := newSaleFixture()
		sale := pendingSale(t, f)
		paid, err := f.svc.FinalizePayment(context.Background(), sale.ID, FinalizePaymentRequest{Method: PaymentMethodCard, AmountPaid: 999})
		require.NoError(t, err)
		assert.InDelta(t, sale.Total, paid.AmountPaid, 1e-9)
		assert.Zero(t, paid.ChangeDue)
	})

	t.Run("already paid rejected", func(t *testing.T) {
		f := newSaleFixture()
		sale := pendingSale(t, f)
		_, err := f.svc.FinalizePayment(context.Background(), sale.ID, FinalizePaymentRequest{Method: PaymentMethodPix})
		require.NoError(t, err)
		_, err = f.svc.FinalizePayment(context.Background(), sale.ID, FinalizePaymentRequest{Method: PaymentMethodPix})
		assert.ErrorIs(t, err, ErrSaleNotPending)
	})

	t.Run("missing sale", func(t *testing.T) {
		f := newSaleFixture()
		_, err := f.svc.FinalizePayment(context.Background(), 404, FinalizePaymentRequest{Method: PaymentMethodPix})
		assert.ErrorIs(t, err, ErrSaleNotFound)
	})
}

func TestLotSelectionView(t *testing.T) {
	f := newSaleFixture()
	f.cat.products[1] = lotRequiredProduct(1, 50)
	f.inv.lots[1] = inventory.Lot{ID: 1, ProductID: 1, LotNumber: "L1", QuantityAvailable: 5, ExpiryDate: svcNow.AddDate(0, 0, 20)}
	f.inv.lots[2] = inventory.Lot{ID: 2, ProductID: 1, LotNumber: "L2", QuantityAvailable: 5, ExpiryDate: svcNow.AddDate(0, 0, 200)}

	view, err := f.svc.LotSelectionView(context.Background(), 1, 4, true)
	require.NoError(t, err)
	require.Len(t, view, 2)
	assert.Equal(t, int64(1), view[0].ID, "FEFO order")
	assert.Equal(t, 5, view[0].Selected, "in-window lot auto-selected")
	assert.Zero(t, view[1].Selected, "out-of-window lot left unselected")
}
