package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/ports"
)

const (
	eventUserCreated       = "user.created"
	eventProfileUpdated    = "user.profile_updated"
	eventVisibilityChanged = "user.visibility_changed"
	eventUserDeleted       = "user.deleted"

	eventSchemaVersion = "1.0"
)

type userCreatedEventData struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	RequestedBy string `json:"requested_by,omitempty"`
	Source      string `json:"source,omitempty"`
}

// fieldChangedEventData never carries phone or birth-date values.
type fieldChangedEventData struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Field     string `json:"field"`
	Mode      string `json:"mode,omitempty"`
	UpdatedAt string `json:"updated_at"`
}

type allowListChangedEventData struct {
	UserID    string `json:"user_id"`
	FieldKind string `json:"field_kind"`
	ViewerID  string `json:"viewer_id"`
	Action    string `json:"action"`
	ChangedAt string `json:"changed_at"`
}

type userDeletedEventData struct {
	UserID    string `json:"user_id"`
	DeletedAt string `json:"deleted_at"`
}

// enqueueEvent writes an outbox row after a committed mutation. A failure is
// logged and does not undo the mutation.
func (s *Service) enqueueEvent(ctx context.Context, eventType string, userID uuid.UUID, data any) {
	if s.outbox == nil {
		return
	}
	occurredAt := s.nowFn()
	eventID := uuid.New()
	payloadEnvelope := map[string]any{
		"event_id":           eventID.String(),
		"event_type":         eventType,
		"occurred_at":        occurredAt.Format(time.RFC3339),
		"source_service":     s.cfg.ServiceName,
		"trace_id":           "",
		"schema_version":     eventSchemaVersion,
		"partition_key_path": "data.user_id",
		"partition_key":      userID.String(),
		"data":               data,
	}
	payload, err := json.Marshal(payloadEnvelope)
	if err == nil {
		err = s.outbox.Enqueue(ctx, ports.OutboxEvent{
			EventID:          eventID,
			EventType:        eventType,
			PartitionKey:     userID.String(),
			PartitionKeyPath: "data.user_id",
			Payload:          payload,
			OccurredAt:       occurredAt,
			SchemaVersion:    eventSchemaVersion,
		})
	}
	if err != nil {
		s.logger.WarnContext(ctx, "outbox enqueue failed",
			"operation", "enqueue_event",
			"outcome", "failure",
			"event_type", eventType,
			"user_id", userID.String(),
			"error", err,
		)
	}
}

// storeFailure passes expected outcomes through and turns anything else into
// ErrStorageUnavailable. The raw error is logged, never returned.
func (s *Service) storeFailure(ctx context.Context, operation string, err error) error {
	if isExpected(err) {
		return err
	}
	s.logger.ErrorContext(ctx, "store operation failed",
		"operation", operation,
		"outcome", "failure",
		"error", err,
	)
	return fmt.Errorf("%w: %s", domain.ErrStorageUnavailable, operation)
}

func (s *Service) checkLookupRate(ctx context.Context, requesterID uuid.UUID) error {
	if s.cache == nil || s.cfg.LookupRateLimit <= 0 {
		return nil
	}
	count, err := s.cache.IncrWithTTL(ctx, "directory:lookup:"+requesterID.String(), s.cfg.LookupRateWindow)
	if err != nil {
		s.logger.WarnContext(ctx, "lookup rate limiter unavailable",
			"operation", "check_lookup_rate",
			"outcome", "degraded",
			"error", err,
		)
		return nil
	}
	if count > int64(s.cfg.LookupRateLimit) {
		return fmt.Errorf("%w: at most %d lookups per %s", domain.ErrRateLimitExceeded, s.cfg.LookupRateLimit, s.cfg.LookupRateWindow)
	}
	return nil
}

func (s *Service) observe(operation string, start time.Time, errp *error) {
	s.metrics.ObserveOperation(operation, Outcome(*errp), start)
}

// Outcome is the metric and log label for an operation result.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrAlreadyExists):
		return "conflict"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrRateLimitExceeded):
		return "rate_limited"
	default:
		return "failure"
	}
}
