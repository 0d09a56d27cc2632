package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Course struct {
	ID          string `gorm:"primaryKey;size:64"`
	Title       string `gorm:"not null"`
	Description string
	Thumbnail   string
	EducatorID  string          `gorm:"index;size:64"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Discount    decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0"` // проценты, 0..100
	IsPublished bool            `gorm:"not null;index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
