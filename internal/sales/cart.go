package sales

import (
	"time"

	"github.com/farmapos/farmapos/internal/catalog"
)

// CartItem is one accumulated sale line before checkout.
type CartItem struct {
	Product     catalog.Product
	Quantity    int
	UnitPrice   float64
	Discount    float64
	PromotionID *int64
	Selections  []LotSelection
}

// LineTotal is the line's contribution to the grand total.
func (i CartItem) LineTotal() float64 {
	total := float64(i.Quantity)*i.UnitPrice - i.Discount
	if total < 0 {
		return 0
	}
	return total
}

// CartTotals are derived from the full line list on every read; they are
// never maintained incrementally, so they cannot drift from the lines.
type CartTotals struct {
	Subtotal float64 `json:"subtotal"`
	Discount float64 `json:"discount"`
	Total    float64 `json:"total"`
}

// Cart accumulates sale lines and the prescription data gating controlled
// items. It is plain local state owned by the checkout flow; nothing here
// touches storage.
type Cart struct {
	items        []CartItem
	prescription *Prescription
}

// NewCart returns an empty cart.
func NewCart() *Cart {
	return &Cart{}
}

// AddItem appends a line or merges it into an existing line for the same
// product. The combined quantity is re-validated against current stock and
// discounts are summed, so repeated additions never duplicate rows.
func (c *Cart) AddItem(product catalog.Product, quantity int, unitPrice, discount float64, promotionID *int64, selections []LotSelection) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if product.LotRequired {
		if len(selections) == 0 {
			return ErrLotSelectionRequired
		}
		sum := 0
		for _, sel := range selections {
			if sel.Quantity <= 0 || sel.Quantity > sel.QuantityAvailable {
				return ErrLotQuantityBounds
			}
			sum += sel.Quantity
		}
		if sum != quantity {
			return ErrLotQuantityMismatch
		}
	}

	for idx := range c.items {
		if c.items[idx].Product.ID != product.ID {
			continue
		}
		combined := c.items[idx].Quantity + quantity
		if combined > product.Stock {
			return ErrInsufficientStock
		}
		c.items[idx].Quantity = combined
		c.items[idx].Discount += discount
		c.items[idx].Selections = append(c.items[idx].Selections, selections...)
		if promotionID != nil {
			c.items[idx].PromotionID = promotionID
		}
		return nil
	}

	if quantity > product.Stock {
		return ErrInsufficientStock
	}
	c.items = append(c.items, CartItem{
		Product:     product,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Discount:    discount,
		PromotionID: promotionID,
		Selections:  selections,
	})
	return nil
}

// RemoveItem drops a line by index. When the last controlled line leaves
// the cart, any entered prescription data is cleared with it.
func (c *Cart) RemoveItem(index int) error {
	if index < 0 || index >= len(c.items) {
		return ErrSaleNotFound
	}
	c.items = append(c.items[:index], c.items[index+1:]...)
	if !c.HasControlled() {
		c.prescription = nil
	}
	return nil
}

// Items returns a copy of the accumulated lines.
func (c *Cart) Items() []CartItem {
	out := make([]CartItem, len(c.items))
	copy(out, c.items)
	return out
}

// Len reports the number of lines.
func (c *Cart) Len() int {
	return len(c.items)
}

// HasControlled reports whether any line is a controlled substance.
func (c *Cart) HasControlled() bool {
	for _, item := range c.items {
		if item.Product.Controlled {
			return true
		}
	}
	return false
}

// SetPrescription stores prescription and patient data for controlled items.
func (c *Cart) SetPrescription(p Prescription) {
	c.prescription = &p
}

// Prescription returns the entered prescription data, nil when absent.
func (c *Cart) Prescription() *Prescription {
	return c.prescription
}

// Totals recomputes subtotal, total discount and grand total from scratch.
func (c *Cart) Totals() CartTotals {
	var t CartTotals
	for _, item := range c.items {
		t.Subtotal += float64(item.Quantity) * item.UnitPrice
		t.Discount += item.Discount
	}
	t.Total = t.Subtotal - t.Discount
	if t.Total < 0 {
		t.Total = 0
	}
	return t
}

// CheckoutReady validates the cart for submission. Controlled lines demand
// a complete prescription dated within [now-maxAgeDays, now].
func (c *Cart) CheckoutReady(now time.Time, maxAgeDays int) error {
	if len(c.items) == 0 {
		return ErrEmptyCart
	}
	if !c.HasControlled() {
		return nil
	}
	if c.prescription == nil || !c.prescription.Complete() {
		return ErrPrescriptionRequired
	}
	if maxAgeDays <= 0 {
		maxAgeDays = 30
	}
	date := c.prescription.Date
	if date.After(now) {
		return ErrPrescriptionDate
	}
	if date.Before(now.AddDate(0, 0, -maxAgeDays)) {
		return ErrPrescriptionDate
	}
	return nil
}
