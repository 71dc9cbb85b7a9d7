// Package pricing computes the price breakdown of a rental order. Every function is
// pure so the breakdown can be re-derived from stored order data on any read.
package pricing

import "github.com/shopspring/decimal"

func init() {
	// amounts go over the wire as JSON numbers, not strings
	decimal.MarshalJSONWithoutQuotes = true
}

// DiscountType selects how Discount.Value is applied
type DiscountType string

const (
	DiscountNone       DiscountType = ""
	DiscountFixed      DiscountType = "fixed"
	DiscountPercentage DiscountType = "percentage"
)

// Valid reports whether t is none, fixed or percentage
func (t DiscountType) Valid() bool {
	switch t {
	case DiscountNone, DiscountFixed, DiscountPercentage:
		return true
	}
	return false
}

// LineItem is the priced part of an order line
type LineItem struct {
	Quantity     int
	RentRate     decimal.Decimal
	NumberOfDays int
}

// Subtotal is quantity x rent rate x number of days
func (l LineItem) Subtotal() decimal.Decimal {
	return l.RentRate.
		Mul(decimal.NewFromInt(int64(l.Quantity))).
		Mul(decimal.NewFromInt(int64(l.NumberOfDays)))
}

// Discount describes the reduction applied to the item price
type Discount struct {
	Type  DiscountType
	Value decimal.Decimal
}

// Amount returns the discount for the given price, never negative
func (d Discount) Amount(price decimal.Decimal) decimal.Decimal {
	if d.Value.IsNegative() {
		return decimal.Zero
	}
	switch d.Type {
	case DiscountFixed:
		return d.Value
	case DiscountPercentage:
		return price.Mul(d.Value).Div(decimal.NewFromInt(100))
	default:
		return decimal.Zero
	}
}

// Details is the computed price breakdown of an order
type Details struct {
	Price           decimal.Decimal `json:"price"`
	DiscountAmount  decimal.Decimal `json:"discountAmount"`
	DeliveryCharge  decimal.Decimal `json:"deliveryCharge"`
	Total           decimal.Decimal `json:"total"`
	RemainingAmount decimal.Decimal `json:"remainingAmount"`
}

// Calculate sums the item subtotals and applies discount, delivery charge and the
// amount already paid. Total is not clamped: a negative total is a data-entry error
// for the caller to handle, and a negative remaining amount means overpayment.
func Calculate(items []LineItem, discount Discount, deliveryCharge, amountPaid decimal.Decimal) Details {
	price := decimal.Zero
	for _, it := range items {
		price = price.Add(it.Subtotal())
	}

	discountAmount := discount.Amount(price)
	total := price.Sub(discountAmount).Add(deliveryCharge)

	return Details{
		Price:           price,
		DiscountAmount:  discountAmount,
		DeliveryCharge:  deliveryCharge,
		Total:           total,
		RemainingAmount: total.Sub(amountPaid),
	}
}

// Rounded returns the breakdown with every amount at 2 decimal places
func (d Details) Rounded() Details {
	return Details{
		Price:           d.Price.Round(2),
		DiscountAmount:  d.DiscountAmount.Round(2),
		DeliveryCharge:  d.DeliveryCharge.Round(2),
		Total:           d.Total.Round(2),
		RemainingAmount: d.RemainingAmount.Round(2),
	}
}
