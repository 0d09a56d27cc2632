package domain

import (
	"time"

	"gorm.io/datatypes"
)

const TopicEnrollmentCompleted = "enrollment.completed"

// OutboxMessage пишется в той же транзакции, что и запись на курс.
type OutboxMessage struct {
	ID        uint   `gorm:"primaryKey"`
	EventID   string `gorm:"uniqueIndex;size:36"`
	Topic     string `gorm:"size:64;not null"`
	Key       string `gorm:"size:128"`
	Payload   datatypes.JSON
	CreatedAt time.Time
	SentAt    *time.Time `gorm:"index"`
}

type EnrollmentCompleted struct {
	PurchaseID string    `json:"purchaseId"`
	UserID     string    `json:"userId"`
	CourseID   string    `json:"courseId"`
	Amount     string    `json:"amount"`
	Currency   string    `json:"currency"`
	EnrolledAt time.Time `json:"enrolledAt"`
}
