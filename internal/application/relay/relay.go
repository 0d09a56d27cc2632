package relay

import (
	"context"
	"time"

	"github.com/waste3d/coursemarket-api/internal/infrastructure/repository"
	"github.com/waste3d/coursemarket-api/internal/metrics"
	"github.com/waste3d/coursemarket-api/internal/obs"
)

type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
}

// OutboxRelay переносит сообщения outbox в брокер. Доставка at-least-once:
// сообщение помечается отправленным только после успешной публикации.
type OutboxRelay struct {
	outbox    *repository.OutboxRepository
	publisher Publisher
	metrics   *metrics.Metrics
	interval  time.Duration
	batch     int
	// topics переопределяет топик брокера для доменного топика
	topics map[string]string
}

func NewOutboxRelay(or *repository.OutboxRepository, p Publisher, m *metrics.Metrics, interval time.Duration, topics map[string]string) *OutboxRelay {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &OutboxRelay{outbox: or, publisher: p, metrics: m, interval: interval, batch: 100, topics: topics}
}

func (r *OutboxRelay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
			obs.Logger.Error("outbox flush failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Flush отправляет одну пачку. На первой ошибке публикации останавливается,
// чтобы не нарушать порядок сообщений одного ключа.
func (r *OutboxRelay) Flush(ctx context.Context) (int, error) {
	msgs, err := r.outbox.FetchPending(ctx, r.batch)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, msg := range msgs {
		topic := msg.Topic
		if t, ok := r.topics[msg.Topic]; ok && t != "" {
			topic = t
		}
		if err := r.publisher.Publish(ctx, topic, msg.Key, msg.Payload); err != nil {
			r.count(topic, "error")
			return sent, err
		}
		if err := r.outbox.MarkSent(ctx, msg.ID); err != nil {
			return sent, err
		}
		r.count(topic, "sent")
		sent++
	}
	if sent > 0 {
		obs.Logger.Debug("outbox relayed", "count", sent)
	}
	return sent, nil
}

func (r *OutboxRelay) count(topic, result string) {
	if r.metrics != nil {
		r.metrics.OutboxRelayed.WithLabelValues(topic, result).Inc()
	}
}
