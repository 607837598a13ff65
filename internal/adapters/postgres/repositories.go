package postgres

import (
	"time"

	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Users  ports.UserStore
	Outbox ports.OutboxRepository
}

// NewRepositories bounds every user store call by storeTimeout; zero disables
// the bound.
func NewRepositories(db *gorm.DB, storeTimeout time.Duration) Repositories {
	return Repositories{
		Users:  &userStore{db: db, timeout: storeTimeout},
		Outbox: &outboxRepository{db: db},
	}
}
