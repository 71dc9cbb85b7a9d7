package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Customer rents products through orders
type Customer struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Name       string     `json:"name" gorm:"type:text;not null"`
	Phone      string     `json:"phone" gorm:"type:varchar(20);not null"`
	Address    string     `json:"address" gorm:"type:text"`
	Aadhar     *string    `json:"aadhar,omitempty" gorm:"type:varchar(12)"`
	ReferredBy *uuid.UUID `json:"referredBy,omitempty" gorm:"type:uuid;index"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func (c *Customer) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
