package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/ports"
)

// CreateUser validates every input before the store is touched. Uniqueness of
// username and phone is left to the store's atomic insert.
func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest, requester RequesterContext) (view ProfileView, err error) {
	defer s.observe("create_user", time.Now(), &err)
	username := domain.NormalizeUsername(req.Username)
	phone := domain.NormalizePhone(req.Phone)
	if err := domain.ValidateUsername(username); err != nil {
		return ProfileView{}, err
	}
	if err := domain.ValidateName(req.Name); err != nil {
		return ProfileView{}, err
	}
	if err := domain.ValidatePhone(phone); err != nil {
		return ProfileView{}, err
	}

	user, err := s.users.Create(ctx, ports.CreateUserParams{
		ID:              uuid.New(),
		Username:        username,
		Name:            req.Name,
		Phone:           phone,
		PhoneVisibility: domain.DefaultVisibility,
		BirthVisibility: domain.DefaultVisibility,
		CreatedAt:       s.nowFn(),
	})
	if err != nil {
		return ProfileView{}, s.storeFailure(ctx, "create_user", err)
	}

	s.enqueueEvent(ctx, eventUserCreated, user.ID, userCreatedEventData{
		UserID:      user.ID.String(),
		Username:    user.Username,
		RequestedBy: requesterLabel(requester),
		Source:      requester.Source,
	})
	return ownerView(user), nil
}

func (s *Service) UpdateField(ctx context.Context, ownerID, requesterID uuid.UUID, field, value string) (view ProfileView, err error) {
	defer s.observe("update_field", time.Now(), &err)
	if err := authorizeOwner(ownerID, requesterID); err != nil {
		return ProfileView{}, err
	}
	mutation, err := s.buildMutation(field, value)
	if err != nil {
		return ProfileView{}, err
	}
	user, err := s.users.Update(ctx, ownerID, mutation)
	if err != nil {
		return ProfileView{}, s.storeFailure(ctx, "update_field", err)
	}

	eventType := eventProfileUpdated
	if mutation.Field == domain.FieldPhoneVisibility || mutation.Field == domain.FieldBirthVisibility {
		eventType = eventVisibilityChanged
	}
	s.enqueueEvent(ctx, eventType, user.ID, fieldChangedEventData{
		UserID:    user.ID.String(),
		Username:  user.Username,
		Field:     string(mutation.Field),
		Mode:      string(mutation.Visibility),
		UpdatedAt: user.UpdatedAt.Format(time.RFC3339),
	})
	return ownerView(user), nil
}

func (s *Service) DeleteUser(ctx context.Context, ownerID, requesterID uuid.UUID) (err error) {
	defer s.observe("delete_user", time.Now(), &err)
	if err := authorizeOwner(ownerID, requesterID); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, ownerID); err != nil {
		return s.storeFailure(ctx, "delete_user", err)
	}
	s.enqueueEvent(ctx, eventUserDeleted, ownerID, userDeletedEventData{
		UserID:    ownerID.String(),
		DeletedAt: s.nowFn().Format(time.RFC3339),
	})
	return nil
}

func (s *Service) buildMutation(field, value string) (domain.UserMutation, error) {
	f, err := domain.ParseMutableField(field)
	if err != nil {
		return domain.UserMutation{}, err
	}
	m := domain.UserMutation{Field: f, At: s.nowFn()}
	switch f {
	case domain.FieldName:
		if err := domain.ValidateName(value); err != nil {
			return domain.UserMutation{}, err
		}
		m.Text = value
	case domain.FieldUsername:
		username := domain.NormalizeUsername(value)
		if err := domain.ValidateUsername(username); err != nil {
			return domain.UserMutation{}, err
		}
		m.Text = username
	case domain.FieldPhoto:
		photo := strings.TrimSpace(value)
		if err := domain.ValidatePhoto(photo); err != nil {
			return domain.UserMutation{}, err
		}
		m.Text = photo
	case domain.FieldDateOfBirth:
		dob, err := domain.ParseDateOfBirth(value, m.At)
		if err != nil {
			return domain.UserMutation{}, err
		}
		m.DateOfBirth = dob
	case domain.FieldPhoneVisibility, domain.FieldBirthVisibility:
		mode, err := domain.ParseVisibilityMode(value)
		if err != nil {
			return domain.UserMutation{}, err
		}
		m.Visibility = mode
	}
	return m, nil
}

// authorizeOwner enforces the self-service rule. An anonymous requester never
// owns anything.
func authorizeOwner(ownerID, requesterID uuid.UUID) error {
	if requesterID == uuid.Nil || requesterID != ownerID {
		return domain.ErrForbidden
	}
	return nil
}

func requesterLabel(r RequesterContext) string {
	if r.RequesterID == uuid.Nil {
		return ""
	}
	return r.RequesterID.String()
}

var expectedErrors = []error{
	domain.ErrNotFound,
	domain.ErrAlreadyExists,
	domain.ErrInvalidInput,
	domain.ErrForbidden,
	domain.ErrRateLimitExceeded,
}

func isExpected(err error) bool {
	for _, target := range expectedErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
