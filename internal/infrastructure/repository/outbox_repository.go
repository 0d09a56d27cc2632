package repository

import (
	"context"
	"time"

	"github.com/waste3d/coursemarket-api/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// enqueue вызывается только внутри бизнес-транзакции.
func enqueue(tx *gorm.DB, msg *domain.OutboxMessage) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(msg).Error
}

func (r *OutboxRepository) FetchPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	var msgs []domain.OutboxMessage
	err := r.db.WithContext(ctx).
		Where("sent_at IS NULL").
		Order("id asc").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id uint) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&domain.OutboxMessage{}).
		Where("id = ? AND sent_at IS NULL", id).
		Update("sent_at", &now).Error
}
