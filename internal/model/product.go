package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RateUnit is the period a product rate is quoted for
type RateUnit string

const (
	RateUnitDay   RateUnit = "day"
	RateUnitHour  RateUnit = "hour"
	RateUnitMonth RateUnit = "month"
)

// Valid reports whether u is one of the known rate units
func (u RateUnit) Valid() bool {
	switch u {
	case RateUnitDay, RateUnitHour, RateUnitMonth:
		return true
	}
	return false
}

// Product is a rentable item. Quantity is the stock currently available for new
// rentals, never the total owned.
type Product struct {
	ID        uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	Name      string          `json:"name" gorm:"type:text;not null"`
	Quantity  int             `json:"quantity" gorm:"not null;default:0;check:quantity >= 0"`
	Rate      decimal.Decimal `json:"rate" gorm:"type:numeric(10,2);not null"`
	RateUnit  RateUnit        `json:"rate_unit" gorm:"type:varchar(10);not null;default:'day'"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (p *Product) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.RateUnit == "" {
		p.RateUnit = RateUnitDay
	}
	return nil
}
