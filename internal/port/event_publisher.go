package port

import "context"

type EventPublisher interface {
	// Publish sends a JSON-encodable payload tagged with eventType, keyed for
	// partitioning
	Publish(ctx context.Context, eventType, key string, payload any) error
}
