package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/domain"
)

const (
	visibilityActionGrant  = "grant"
	visibilityActionRevoke = "revoke"
)

func (s *Service) GrantVisibility(ctx context.Context, ownerID, requesterID uuid.UUID, fieldKind string, viewerID uuid.UUID) (err error) {
	defer s.observe("grant_visibility", time.Now(), &err)
	kind, err := s.checkAllowListChange(ownerID, requesterID, fieldKind, viewerID)
	if err != nil {
		return err
	}
	if err := s.users.GrantViewer(ctx, ownerID, kind, viewerID, s.nowFn()); err != nil {
		return s.storeFailure(ctx, "grant_visibility", err)
	}
	s.enqueueAllowListChanged(ctx, ownerID, kind, viewerID, visibilityActionGrant)
	return nil
}

// RevokeVisibility is idempotent: revoking a viewer that was never granted
// succeeds.
func (s *Service) RevokeVisibility(ctx context.Context, ownerID, requesterID uuid.UUID, fieldKind string, viewerID uuid.UUID) (err error) {
	defer s.observe("revoke_visibility", time.Now(), &err)
	kind, err := s.checkAllowListChange(ownerID, requesterID, fieldKind, viewerID)
	if err != nil {
		return err
	}
	if err := s.users.RevokeViewer(ctx, ownerID, kind, viewerID); err != nil {
		return s.storeFailure(ctx, "revoke_visibility", err)
	}
	s.enqueueAllowListChanged(ctx, ownerID, kind, viewerID, visibilityActionRevoke)
	return nil
}

func (s *Service) checkAllowListChange(ownerID, requesterID uuid.UUID, fieldKind string, viewerID uuid.UUID) (domain.FieldKind, error) {
	if err := authorizeOwner(ownerID, requesterID); err != nil {
		return "", err
	}
	kind, err := domain.ParseFieldKind(fieldKind)
	if err != nil {
		return "", err
	}
	if viewerID == uuid.Nil {
		return "", fmt.Errorf("%w: viewer_id is required", domain.ErrInvalidInput)
	}
	return kind, nil
}

func (s *Service) enqueueAllowListChanged(ctx context.Context, ownerID uuid.UUID, kind domain.FieldKind, viewerID uuid.UUID, action string) {
	s.enqueueEvent(ctx, eventVisibilityChanged, ownerID, allowListChangedEventData{
		UserID:    ownerID.String(),
		FieldKind: string(kind),
		ViewerID:  viewerID.String(),
		Action:    action,
		ChangedAt: s.nowFn().Format(time.RFC3339),
	})
}
