package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Провайдеры повторяют доставку в течение нескольких дней
const processedTTL = 72 * time.Hour

// EventCache помнит уже обработанные события вебхуков. Это только быстрый путь:
// корректность повторной доставки держится на условном апдейте в БД.
type EventCache struct {
	client *redis.Client
}

func NewEventCache(client *redis.Client) *EventCache {
	return &EventCache{client: client}
}

func key(provider, eventID string) string {
	return "webhook_event:" + provider + ":" + eventID
}

func (c *EventCache) MarkProcessed(ctx context.Context, provider, eventID string) error {
	return c.client.Set(ctx, key(provider, eventID), time.Now().Unix(), processedTTL).Err()
}

func (c *EventCache) IsProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	n, err := c.client.Exists(ctx, key(provider, eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
