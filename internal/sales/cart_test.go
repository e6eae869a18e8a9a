package sales

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmapos/farmapos/internal/catalog"
)

var cartNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func plainProduct(id int64, stock int, price float64) catalog.Product {
	return catalog.Product{
		ID:         id,
		Code:       "P",
		Name:       "Dipirona 500mg",
		Laboratory: "Medley",
		SalePrice:  price,
		Stock:      stock,
		Active:     true,
	}
}

func controlledProduct(id int64, stock int) catalog.Product {
	p := plainProduct(id, stock, 30)
	p.Name = "Clonazepam 2mg"
	p.Controlled = true
	return p
}

func lotRequiredProduct(id int64, stock int) catalog.Product {
	p := plainProduct(id, stock, 15)
	p.LotRequired = true
	return p
}

func fullPrescription() Prescription {
	return Prescription{
		Number:          "RX-1001",
		Date:            cartNow.AddDate(0, 0, -3),
		PatientName:     "Maria Souza",
		PatientDocument: "123.456.789-00",
		PatientAddress:  "Rua das Flores 10",
		PatientPhone:    "+55 11 91234-5678",
	}
}

func TestAddItemMergesSameProduct(t *testing.T) {
	cart := NewCart()
	product := plainProduct(1, 10, 9.9)

	require.NoError(t, cart.AddItem(product, 2, 9.9, 1, nil, nil))
	require.NoError(t, cart.AddItem(product, 3, 9.9, 0.5, nil, nil))

	require.Equal(t, 1, cart.Len(), "same product merges into one line")
	item := cart.Items()[0]
	assert.Equal(t, 5, item.Quantity)
	assert.InDelta(t, 1.5, item.Discount, 1e-9, "discounts sum on merge")
}

func TestAddItemMergeValidatesCombinedQuantity(t *testing.T) {
	cart := NewCart()
	product := plainProduct(1, 5, 9.9)

	require.NoError(t, cart.AddItem(product, 3, 9.9, 0, nil, nil))
	err := cart.AddItem(product, 3, 9.9, 0, nil, nil)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 3, cart.Items()[0].Quantity, "failed merge leaves the line alone")
}

func TestAddItemLotRequired(t *testing.T) {
	product := lotRequiredProduct(2, 20)
	sel := func(qty, avail int) LotSelection {
		return LotSelection{LotID: 1, LotNumber: "L1", QuantityAvailable: avail, Quantity: qty}
	}

	t.Run("selections required", func(t *testing.T) {
		err := NewCart().AddItem(product, 2, 15, 0, nil, nil)
		assert.ErrorIs(t, err, ErrLotSelectionRequired)
	})

	t.Run("quantities must sum to the line", func(t *testing.T) {
		err := NewCart().AddItem(product, 3, 15, 0, nil, []LotSelection{sel(2, 10)})
		assert.ErrorIs(t, err, ErrLotQuantityMismatch)
	})

	t.Run("selection beyond availability", func(t *testing.T) {
		err := NewCart().AddItem(product, 12, 15, 0, nil, []LotSelection{sel(12, 10)})
		assert.ErrorIs(t, err, ErrLotQuantityBounds)
	})

	t.Run("valid split across lots", func(t *testing.T) {
		cart := NewCart()
		err := cart.AddItem(product, 5, 15, 0, nil, []LotSelection{
			{LotID: 1, LotNumber: "L1", QuantityAvailable: 3, Quantity: 3},
			{LotID: 2, LotNumber: "L2", QuantityAvailable: 10, Quantity: 2},
		})
		require.NoError(t, err)
		assert.Len(t, cart.Items()[0].Selections, 2)
	})
}

func TestRemoveItemClearsPrescriptionWithLastControlledLine(t *testing.T) {
	cart := NewCart()
	require.NoError(t, cart.AddItem(plainProduct(1, 10, 9.9), 1, 9.9, 0, nil, nil))
	require.NoError(t, cart.AddItem(controlledProduct(2, 10), 1, 30, 0, nil, nil))
	cart.SetPrescription(fullPrescription())

	require.NoError(t, cart.RemoveItem(1))
	assert.Nil(t, cart.Prescription(), "prescription data leaves with the controlled line")
	assert.Equal(t, 1, cart.Len())
}

func TestTotalsDerivedAndFloored(t *testing.T) {
	cart := NewCart()
	require.NoError(t, cart.AddItem(plainProduct(1, 10, 10), 2, 10, 3, nil, nil))
	require.NoError(t, cart.AddItem(plainProduct(2, 10, 5), 1, 5, 0, nil, nil))

	totals := cart.Totals()
	assert.InDelta(t, 25, totals.Subtotal, 1e-9)
	assert.InDelta(t, 3, totals.Discount, 1e-9)
	assert.InDelta(t, 22, totals.Total, 1e-9)

	// An oversized discount floors the grand total at zero.
	over := NewCart()
	require.NoError(t, over.AddItem(plainProduct(3, 10, 2), 1, 2, 50, nil, nil))
	assert.Zero(t, over.Totals().Total)
}

func TestCheckoutReady(t *testing.T) {
	t.Run("empty cart", func(t *testing.T) {
		assert.ErrorIs(t, NewCart().CheckoutReady(cartNow, 30), ErrEmptyCart)
	})

	t.Run("uncontrolled cart needs nothing", func(t *testing.T) {
		cart := NewCart()
		require.NoError(t, cart.AddItem(plainProduct(1, 10, 9.9), 1, 9.9, 0, nil, nil))
		assert.NoError(t, cart.CheckoutReady(cartNow, 30))
	})

	controlledCart := func() *Cart {
		cart := NewCart()
		require.NoError(t, cart.AddItem(controlledProduct(2, 10), 1, 30, 0, nil, nil))
		return cart
	}

	t.Run("controlled without prescription", func(t *testing.T) {
		assert.ErrorIs(t, controlledCart().CheckoutReady(cartNow, 30), ErrPrescriptionRequired)
	})

	t.Run("incomplete prescription", func(t *testing.T) {
		cart := controlledCart()
		p := fullPrescription()
		p.PatientAddress = ""
		cart.SetPrescription(p)
		assert.ErrorIs(t, cart.CheckoutReady(cartNow, 30), ErrPrescriptionRequired)
	})

	t.Run("future prescription date", func(t *testing.T) {
		cart := controlledCart()
		p := fullPrescription()
		p.Date = cartNow.AddDate(0, 0, 1)
		cart.SetPrescription(p)
		assert.ErrorIs(t, cart.CheckoutReady(cartNow, 30), ErrPrescriptionDate)
	})

	t.Run("stale prescription date", func(t *testing.T) {
		cart := controlledCart()
		p := fullPrescription()
		p.Date = cartNow.AddDate(0, 0, -31)
		cart.SetPrescription(p)
		assert.ErrorIs(t, cart.CheckoutReady(cartNow, 30), ErrPrescriptionDate)
	})

	t.Run("prescription exactly at max age", func(t *testing.T) {
		cart := controlledCart()
		p := fullPrescription()
		p.Date = cartNow.AddDate(0, 0, -30)
		cart.SetPrescription(p)
		assert.NoError(t, cart.CheckoutReady(cartNow, 30))
	})

	t.Run("complete prescription passes", func(t *testing.T) {
		cart := controlledCart()
		cart.SetPrescription(fullPrescription())
		assert.NoError(t, cart.CheckoutReady(cartNow, 30))
	})
}
