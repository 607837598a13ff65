package ports

import "context"

// EventPublisher delivers one outbox payload. partitionKey is the user id.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
}
