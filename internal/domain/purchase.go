package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PurchaseStatus string

const (
	PurchasePending   PurchaseStatus = "Pending"
	PurchaseCompleted PurchaseStatus = "Completed"
	PurchaseFailed    PurchaseStatus = "Failed"
)

// Terminal: из Completed и Failed переходов нет.
func (s PurchaseStatus) Terminal() bool {
	return s == PurchaseCompleted || s == PurchaseFailed
}

// CanTransition разрешает только Pending -> Completed и Pending -> Failed.
func (s PurchaseStatus) CanTransition(to PurchaseStatus) bool {
	return s == PurchasePending && to.Terminal()
}

// CheckoutMode: два варианта оплаты через одного оркестратора.
type CheckoutMode string

const (
	// Клиент подтверждает payment intent сам (отдаем client secret)
	CheckoutIntent CheckoutMode = "intent"
	// Редирект на страницу оплаты провайдера (отдаем URL сессии)
	CheckoutSession CheckoutMode = "session"
)

func ParseCheckoutMode(s string) (CheckoutMode, error) {
	switch CheckoutMode(s) {
	case CheckoutIntent, CheckoutSession:
		return CheckoutMode(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCheckout, s)
}

// Purchase - финансовая запись, никогда не удаляется.
type Purchase struct {
	ID           string          `gorm:"primaryKey;size:36"`
	UserID       string          `gorm:"not null;index:idx_purchase_user_course;size:64"`
	CourseID     string          `gorm:"not null;index:idx_purchase_user_course;size:64"`
	Amount       decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Currency     string          `gorm:"size:8;not null"`
	Status       PurchaseStatus  `gorm:"size:16;not null;default:'Pending';index"`
	CheckoutMode CheckoutMode    `gorm:"size:16;not null"`
	ProviderRef  string          `gorm:"size:128;index"` // id payment intent или checkout session
	Origin       string          `gorm:"size:255"`       // база URL возврата, фиксируется при создании
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Completion - итог CompletePurchase.
type Completion int

const (
	// Покупка уже не Pending, ничего не изменилось
	CompletionNoop Completion = iota
	CompletionEnrolled
	// Юзер уже записан по другой покупке: деньги списаны повторно, нужен возврат
	CompletionDuplicate
)
