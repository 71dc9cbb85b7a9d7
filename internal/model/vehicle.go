package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Vehicle is used for delivery and pickup of rented goods
type Vehicle struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Number    string    `json:"number" gorm:"type:varchar(20);uniqueIndex;not null"`
	Type      *string   `json:"type,omitempty" gorm:"type:varchar(50)"`
	CreatedAt time.Time `json:"created_at"`
}

func (v *Vehicle) BeforeCreate(_ *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
