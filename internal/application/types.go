package application

import (
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/domain"
)

type Config struct {
	ServiceName string
	// LookupRateLimit caps lookups per requester per LookupRateWindow. Zero
	// disables the limit.
	LookupRateLimit  int
	LookupRateWindow time.Duration
}

// RequesterContext describes who asked for a registration. It is recorded,
// never used for authorization.
type RequesterContext struct {
	RequesterID uuid.UUID
	RequestID   string
	Source      string
}

type CreateUserRequest struct {
	Phone    string `json:"phone"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// ProfileView is a user as one viewer may see it. Phone and DateOfBirth are
// nil when redacted.
type ProfileView struct {
	UserID      uuid.UUID
	Username    string
	Name        string
	Photo       string
	Phone       *string
	DateOfBirth *time.Time
}

type VisibilitySettings struct {
	UserID          uuid.UUID
	PhoneVisibility domain.VisibilityMode
	BirthVisibility domain.VisibilityMode
	PhoneViewers    []uuid.UUID
	BirthViewers    []uuid.UUID
}

type UsernameCheck struct {
	Username  string
	Available bool
}
