package repository

import (
	"context"
	"errors"

	"github.com/waste3d/coursemarket-api/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WebhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// Record пишет аудит события. Повторная доставка того же события строку не меняет.
func (r *WebhookEventRepository) Record(ctx context.Context, ev *domain.WebhookEvent) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(ev).Error
}

func (r *WebhookEventRepository) Get(ctx context.Context, provider, eventID string) (*domain.WebhookEvent, error) {
	var ev domain.WebhookEvent
	err := r.db.WithContext(ctx).First(&ev, "provider = ? AND event_id = ?", provider, eventID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &ev, nil
}
