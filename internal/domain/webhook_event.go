package domain

import (
	"time"

	"gorm.io/datatypes"
)

const (
	OutcomeApplied    = "applied"
	OutcomeNoop       = "noop"
	OutcomeIgnored    = "ignored"
	OutcomeNotFound   = "not_found"
	OutcomeNoPurchase = "no_purchase_id"
	OutcomeDuplicate  = "duplicate_payment"
)

// WebhookEvent - журнал проверенных событий провайдера (аудит).
type WebhookEvent struct {
	Provider   string `gorm:"primaryKey;size:32"`
	EventID    string `gorm:"primaryKey;size:128"`
	EventType  string `gorm:"size:64;index"`
	PurchaseID string `gorm:"size:36;index"`
	Outcome    string `gorm:"size:32"`
	Payload    datatypes.JSON
	CreatedAt  time.Time
}
