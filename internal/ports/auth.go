package ports

import (
	"time"

	"github.com/google/uuid"
)

type AuthClaims struct {
	UserID    uuid.UUID
	ExpiresAt time.Time
}

type TokenVerifier interface {
	Verify(token string) (AuthClaims, error)
}
