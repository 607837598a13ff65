package application

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/domain"
)

// Authenticate resolves a bearer token to the requester's user id.
func (s *Service) Authenticate(ctx context.Context, token string) (uuid.UUID, error) {
	if s.tokens == nil || strings.TrimSpace(token) == "" {
		return uuid.Nil, domain.ErrUnauthorized
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		s.logger.DebugContext(ctx, "token rejected",
			"operation", "authenticate",
			"outcome", "failure",
			"error", err,
		)
		return uuid.Nil, domain.ErrUnauthorized
	}
	if claims.UserID == uuid.Nil {
		return uuid.Nil, domain.ErrUnauthorized
	}
	return claims.UserID, nil
}
