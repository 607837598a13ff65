package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/domain"
)

type CreateUserParams struct {
	ID              uuid.UUID
	Username        string
	Name            string
	Phone           string
	PhoneVisibility domain.VisibilityMode
	BirthVisibility domain.VisibilityMode
	CreatedAt       time.Time
}

//go:generate mockgen -source=repositories.go -destination=mocks/mock_user_store.go -package=mocks UserStore

// UserStore is the single source of truth for users and their allow-lists.
// Implementations return domain.ErrStorageUnavailable for I/O failures and
// timeouts.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.User, error)
	GetByUsername(ctx context.Context, username string) (domain.User, error)
	GetByPhone(ctx context.Context, phone string) (domain.User, error)
	// Create inserts atomically and returns domain.ErrAlreadyExists when the
	// username or phone is taken.
	Create(ctx context.Context, params CreateUserParams) (domain.User, error)
	Update(ctx context.Context, id uuid.UUID, mutation domain.UserMutation) (domain.User, error)
	Delete(ctx context.Context, id uuid.UUID) error

	GetAllowList(ctx context.Context, ownerID uuid.UUID, kind domain.FieldKind) (domain.AllowList, error)
	GrantViewer(ctx context.Context, ownerID uuid.UUID, kind domain.FieldKind, viewerID uuid.UUID, at time.Time) error
	RevokeViewer(ctx context.Context, ownerID uuid.UUID, kind domain.FieldKind, viewerID uuid.UUID) error
}

type OutboxEvent struct {
	EventID          uuid.UUID
	EventType        string
	PartitionKey     string
	PartitionKeyPath string
	Payload          []byte
	OccurredAt       time.Time
	SchemaVersion    string
	TraceID          string
}

type OutboxRecord struct {
	OutboxID     uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	RetryCount   int
	PublishedAt  *time.Time
	LastError    *string
	LastErrorAt  *time.Time
	FirstSeenAt  time.Time
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	FetchUnpublished(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, errMsg string, at time.Time) error
}
