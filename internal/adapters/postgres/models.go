package postgres

import (
	"time"

	"github.com/google/uuid"
)

type userModel struct {
	UserID          uuid.UUID  `gorm:"column:user_id;type:uuid;primaryKey"`
	Username        string     `gorm:"column:username"`
	Name            string     `gorm:"column:name"`
	Phone           string     `gorm:"column:phone"`
	Photo           string     `gorm:"column:photo"`
	DateOfBirth     *time.Time `gorm:"column:date_of_birth;type:date"`
	PhoneVisibility string     `gorm:"column:phone_visibility"`
	BirthVisibility string     `gorm:"column:birth_visibility"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at"`
}

func (userModel) TableName() string { return "directory_users" }

type visibilityGrantModel struct {
	OwnerID   uuid.UUID `gorm:"column:owner_id;type:uuid;primaryKey"`
	FieldKind string    `gorm:"column:field_kind;primaryKey"`
	ViewerID  uuid.UUID `gorm:"column:viewer_id;type:uuid;primaryKey"`
	GrantedAt time.Time `gorm:"column:granted_at"`
}

func (visibilityGrantModel) TableName() string { return "visibility_grants" }

type directoryOutboxModel struct {
	OutboxID         uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType        string     `gorm:"column:event_type"`
	PartitionKey     string     `gorm:"column:partition_key"`
	PartitionKeyPath string     `gorm:"column:partition_key_path"`
	Payload          string     `gorm:"column:payload"`
	SchemaVersion    string     `gorm:"column:schema_version"`
	TraceID          string     `gorm:"column:trace_id"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	FirstSeenAt      time.Time  `gorm:"column:first_seen_at"`
	PublishedAt      *time.Time `gorm:"column:published_at"`
	RetryCount       int        `gorm:"column:retry_count"`
	LastError        *string    `gorm:"column:last_error"`
	LastErrorAt      *time.Time `gorm:"column:last_error_at"`
}

func (directoryOutboxModel) TableName() string { return "directory_outbox" }
