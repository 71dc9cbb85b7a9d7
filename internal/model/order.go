package model

import (
	"time"

	"rental-service/internal/pricing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderStatus enumerates the lifecycle of a rental order.
type OrderStatus string

const (
	OrderActive    OrderStatus = "Active"    // goods are out with the customer
	OrderCompleted OrderStatus = "Completed" // rental closed, nothing outstanding
	OrderCancelled OrderStatus = "Cancelled" // rental called off, nothing outstanding
)

// Valid reports whether s is one of the three known statuses
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderActive, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed out of s
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

// PaymentMethod is how the customer settles the order
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCard   PaymentMethod = "card"
	PaymentOnline PaymentMethod = "online"
)

// Valid reports whether m is one of the known payment methods
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentOnline:
		return true
	}
	return false
}

// Order is the header of a rental transaction. PriceDetails is never stored and is
// recomputed from the items whenever an order is read.
type Order struct {
	ID              uuid.UUID            `json:"id" gorm:"type:uuid;primaryKey"`
	CustomerID      uuid.UUID            `json:"customerId" gorm:"type:uuid;index;not null"`
	Customer        *Customer            `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	Items           []OrderItem          `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	PriceDetails    *pricing.Details     `json:"priceDetails,omitempty" gorm:"-"`
	DeliveryAddress string               `json:"deliveryAddress" gorm:"type:text;not null"`
	PickupRequired  bool                 `json:"pickupRequired" gorm:"not null"`
	VehicleID       *uuid.UUID           `json:"vehicleId,omitempty" gorm:"type:uuid;index"`
	Vehicle         *Vehicle             `json:"vehicle,omitempty" gorm:"foreignKey:VehicleID;constraint:OnDelete:SET NULL"`
	Remarks         *string              `json:"remarks,omitempty" gorm:"type:text"`
	DiscountType    pricing.DiscountType `json:"discountType,omitempty" gorm:"type:varchar(20)"`
	DiscountValue   decimal.Decimal      `json:"discountValue" gorm:"type:numeric(10,2);not null;default:0"`
	DeliveryCharge  decimal.Decimal      `json:"deliveryCharge" gorm:"type:numeric(10,2);not null;default:0"`
	PaymentMethod   PaymentMethod        `json:"paymentMethod" gorm:"type:varchar(20);not null"`
	InitialPaid     decimal.Decimal      `json:"initialPaid" gorm:"type:numeric(10,2);not null;default:0"`
	Status          OrderStatus          `json:"status" gorm:"type:varchar(20);index;not null;default:'Active'"`
	CreatedAt       time.Time            `json:"createdAt" gorm:"index"`
	UpdatedAt       time.Time            `json:"updatedAt"`
}

func (o *Order) BeforeCreate(_ *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// ComputePriceDetails recalculates and attaches the price breakdown
func (o *Order) ComputePriceDetails() {
	lines := make([]pricing.LineItem, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, it.LineItem())
	}
	details := pricing.Calculate(
		lines,
		pricing.Discount{Type: o.DiscountType, Value: o.DiscountValue},
		o.DeliveryCharge,
		o.InitialPaid,
	).Rounded()
	o.PriceDetails = &details
}

// OrderItem is one rented product line. Quantity is fixed when the line is created;
// returns only advance ReturnedQuantity. Position keeps the submitted line order.
type OrderItem struct {
	ID               uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID          uuid.UUID       `json:"orderId" gorm:"type:uuid;index;not null"`
	ProductID        uuid.UUID       `json:"productId" gorm:"type:uuid;index;not null"`
	Product          *Product        `json:"product,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT"`
	Quantity         int             `json:"quantity" gorm:"not null"`
	ReturnedQuantity int             `json:"returnedQuantity" gorm:"not null;default:0"`
	ProductRate      decimal.Decimal `json:"productRate" gorm:"type:numeric(10,2);not null"`
	RentRate         decimal.Decimal `json:"rentRate" gorm:"type:numeric(10,2);not null"`
	NumberOfDays     int             `json:"numberOfDays" gorm:"not null"`
	Position         int             `json:"position" gorm:"not null;default:0"`
	CreatedAt        time.Time       `json:"createdAt"`
}

func (i *OrderItem) BeforeCreate(_ *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// Outstanding is the rented quantity that has not come back yet
func (i *OrderItem) Outstanding() int {
	return i.Quantity - i.ReturnedQuantity
}

// LineItem projects the item onto the pricing input
func (i *OrderItem) LineItem() pricing.LineItem {
	return pricing.LineItem{
		Quantity:     i.Quantity,
		RentRate:     i.RentRate,
		NumberOfDays: i.NumberOfDays,
	}
}
