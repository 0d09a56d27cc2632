package domain

import (
	"time"

	"gorm.io/gorm"
)

// User приходит от провайдера идентификации, ID не генерируем сами.
type User struct {
	ID       string `gorm:"primaryKey;size:64"`
	Email    string `gorm:"index"`
	Name     string
	ImageURL string

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"` // покупки продолжают ссылаться на удаленного юзера
}
