package order

import (
	"strings"

	"rental-service/internal/apperror"
	"rental-service/internal/model"
	"rental-service/internal/pricing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	msgMissingCreateFields = "Missing required fields. Required: customerId, items (non-empty), paymentMethod, deliveryAddress"
	msgMissingUpdateFields = "Missing required fields for update. Required: deliveryAddress, paymentMethod"
	msgInvalidItems        = "Invalid items structure. Each item must have productId, quantity > 0, productRate >= 0, rentRate >= 0, numberOfDays > 0"
	msgInvalidStatus       = "Invalid status. Must be one of: Active, Completed, Cancelled"
)

// ItemInput is one requested order line
type ItemInput struct {
	ProductID    string           `json:"productId"`
	Quantity     int              `json:"quantity"`
	ProductRate  *decimal.Decimal `json:"productRate"`
	RentRate     *decimal.Decimal `json:"rentRate"`
	NumberOfDays int              `json:"numberOfDays"`
}

// Terms holds the optional header fields shared by create and update. A nil
// pointer means the field was not supplied.
type Terms struct {
	PickupRequired *bool                 `json:"pickupRequired"`
	VehicleID      *string               `json:"vehicleId"`
	Remarks        *string               `json:"remarks"`
	DiscountType   *pricing.DiscountType `json:"discountType"`
	DiscountValue  *decimal.Decimal      `json:"discountValue"`
	DeliveryCharge *decimal.Decimal      `json:"deliveryCharge"`
	InitialPaid    *decimal.Decimal      `json:"initialPaid"`
}

// CreateInput is the body of a new order
type CreateInput struct {
	CustomerID      string              `json:"customerId"`
	Items           []ItemInput         `json:"items"`
	DeliveryAddress string              `json:"deliveryAddress"`
	PaymentMethod   model.PaymentMethod `json:"paymentMethod"`
	Terms
}

// UpdateInput is the body of a full order update. Items replaces the whole item
// set when present; a nil slice leaves the items untouched.
type UpdateInput struct {
	Items           []ItemInput         `json:"items"`
	DeliveryAddress string              `json:"deliveryAddress"`
	PaymentMethod   model.PaymentMethod `json:"paymentMethod"`
	Terms
}

func (in *CreateInput) build() (*model.Order, []model.OrderItem, error) {
	if strings.TrimSpace(in.CustomerID) == "" || len(in.Items) == 0 ||
		in.PaymentMethod == "" || strings.TrimSpace(in.DeliveryAddress) == "" {
		return nil, nil, apperror.Validation(msgMissingCreateFields)
	}

	customerID, err := uuid.Parse(in.CustomerID)
	if err != nil {
		return nil, nil, apperror.Validation("invalid customerId: %s", in.CustomerID)
	}
	if !in.PaymentMethod.Valid() {
		return nil, nil, apperror.Validation("invalid paymentMethod: %s", in.PaymentMethod)
	}

	items, err := buildItems(in.Items)
	if err != nil {
		return nil, nil, err
	}

	order := &model.Order{
		CustomerID:      customerID,
		DeliveryAddress: in.DeliveryAddress,
		PickupRequired:  true,
		PaymentMethod:   in.PaymentMethod,
		Status:          model.OrderActive,
		DiscountValue:   decimal.Zero,
		DeliveryCharge:  decimal.Zero,
		InitialPaid:     decimal.Zero,
	}
	if err := in.Terms.validate(); err != nil {
		return nil, nil, err
	}
	in.Terms.apply(order)

	return order, items, nil
}

func (in *UpdateInput) validate() error {
	if strings.TrimSpace(in.DeliveryAddress) == "" || in.PaymentMethod == "" {
		return apperror.Validation(msgMissingUpdateFields)
	}
	if !in.PaymentMethod.Valid() {
		return apperror.Validation("invalid paymentMethod: %s", in.PaymentMethod)
	}
	if in.Items != nil && len(in.Items) == 0 {
		return apperror.Validation("items must not be empty when replacing order items")
	}
	return in.Terms.validate()
}

// columns returns the header columns an update writes
func (in *UpdateInput) columns() map[string]interface{} {
	var probe model.Order
	in.Terms.apply(&probe)

	cols := map[string]interface{}{
		"delivery_address": in.DeliveryAddress,
		"payment_method":   in.PaymentMethod,
	}
	t := in.Terms
	if t.PickupRequired != nil {
		cols["pickup_required"] = probe.PickupRequired
	}
	if t.VehicleID != nil {
		cols["vehicle_id"] = probe.VehicleID
	}
	if t.Remarks != nil {
		cols["remarks"] = probe.Remarks
	}
	if t.DiscountType != nil {
		cols["discount_type"] = probe.DiscountType
	}
	if t.DiscountValue != nil {
		cols["discount_value"] = probe.DiscountValue
	}
	if t.DeliveryCharge != nil {
		cols["delivery_charge"] = probe.DeliveryCharge
	}
	if t.InitialPaid != nil {
		cols["initial_paid"] = probe.InitialPaid
	}
	return cols
}

func (t *Terms) validate() error {
	if t.VehicleID != nil && *t.VehicleID != "" {
		if _, err := uuid.Parse(*t.VehicleID); err != nil {
			return apperror.Validation("invalid vehicleId: %s", *t.VehicleID)
		}
	}
	if t.DiscountType != nil && !t.DiscountType.Valid() {
		return apperror.Validation("invalid discountType: %s", *t.DiscountType)
	}

	money := []struct {
		name  string
		value *decimal.Decimal
	}{
		{"discountValue", t.DiscountValue},
		{"deliveryCharge", t.DeliveryCharge},
		{"initialPaid", t.InitialPaid},
	}
	for _, m := range money {
		if m.value != nil && m.value.IsNegative() {
			return apperror.Validation("%s must be >= 0", m.name)
		}
	}
	return nil
}

// apply copies the supplied terms onto order. Empty vehicleId and remarks clear
// the stored value.
func (t *Terms) apply(order *model.Order) {
	if t.PickupRequired != nil {
		order.PickupRequired = *t.PickupRequired
	}
	if t.VehicleID != nil {
		order.VehicleID = nil
		if id, err := uuid.Parse(*t.VehicleID); err == nil {
			order.VehicleID = &id
		}
	}
	if t.Remarks != nil {
		order.Remarks = nil
		if *t.Remarks != "" {
			remarks := *t.Remarks
			order.Remarks = &remarks
		}
	}
	if t.DiscountType != nil {
		order.DiscountType = *t.DiscountType
	}
	if t.DiscountValue != nil {
		order.DiscountValue = *t.DiscountValue
	}
	if t.DeliveryCharge != nil {
		order.DeliveryCharge = *t.DeliveryCharge
	}
	if t.InitialPaid != nil {
		order.InitialPaid = *t.InitialPaid
	}
}

func buildItems(inputs []ItemInput) ([]model.OrderItem, error) {
	items := make([]model.OrderItem, 0, len(inputs))
	for pos, in := range inputs {
		productID, err := uuid.Parse(in.ProductID)
		if err != nil || in.Quantity <= 0 || in.NumberOfDays <= 0 ||
			in.ProductRate == nil || in.ProductRate.IsNegative() ||
			in.RentRate == nil || in.RentRate.IsNegative() {
			return nil, apperror.Validation(msgInvalidItems)
		}
		items = append(items, model.OrderItem{
			ProductID:    productID,
			Quantity:     in.Quantity,
			ProductRate:  *in.ProductRate,
			RentRate:     *in.RentRate,
			NumberOfDays: in.NumberOfDays,
			Position:     pos,
		})
	}
	return items, nil
}

// ParseStatus validates a requested status value
func ParseStatus(raw string) (model.OrderStatus, error) {
	status := model.OrderStatus(raw)
	if !status.Valid() {
		return "", apperror.Validation(msgInvalidStatus)
	}
	return status, nil
}
