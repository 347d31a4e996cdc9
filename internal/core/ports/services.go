package ports

import (
	"context"

	"github.com/samirrijal/estatemap/internal/core/domain"
)

// EventPublisher publishes map events to a message broker.
type EventPublisher interface {
	PublishMapUpdate(ctx context.Context, update *domain.MapUpdate) error
}

// EventSubscriber subscribes to property lifecycle events from a message broker.
type EventSubscriber interface {
	SubscribePropertyEvents(ctx context.Context, handler func(ctx context.Context, event *domain.PropertyEvent) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
