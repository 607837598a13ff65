// Package directory is the transport-agnostic request/response contract of the
// user directory. Every operation returns a closed status instead of an error;
// transports map statuses onto their own codes.
package directory

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/application"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/domain"
)

type GetUserStatus string

const (
	GetUserSuccess     GetUserStatus = "SUCCESS"
	GetUserNotFound    GetUserStatus = "NOT_FOUND"
	GetUserFailed      GetUserStatus = "FAILED"
	GetUserRateLimited GetUserStatus = "RATE_LIMITED"
)

type CreateUserStatus string

const (
	CreateUserCreated          CreateUserStatus = "CREATED"
	CreateUserAlreadyExists    CreateUserStatus = "ALREADY_EXISTS"
	CreateUserValidationFailed CreateUserStatus = "VALIDATION_FAILED"
	CreateUserFailed           CreateUserStatus = "CREATE_FAILED"
)

type UpdateFieldStatus string

const (
	UpdateFieldUpdated          UpdateFieldStatus = "UPDATED"
	UpdateFieldForbidden        UpdateFieldStatus = "FORBIDDEN"
	UpdateFieldNotFound         UpdateFieldStatus = "NOT_FOUND"
	UpdateFieldValidationFailed UpdateFieldStatus = "VALIDATION_FAILED"
	UpdateFieldAlreadyExists    UpdateFieldStatus = "ALREADY_EXISTS"
	UpdateFieldFailed           UpdateFieldStatus = "FAILED"
)

type VisibilityStatus string

const (
	VisibilityOK               VisibilityStatus = "OK"
	VisibilityForbidden        VisibilityStatus = "FORBIDDEN"
	VisibilityNotFound         VisibilityStatus = "NOT_FOUND"
	VisibilityValidationFailed VisibilityStatus = "VALIDATION_FAILED"
	VisibilityFailed           VisibilityStatus = "FAILED"
)

type DeleteUserStatus string

const (
	DeleteUserDeleted   DeleteUserStatus = "DELETED"
	DeleteUserForbidden DeleteUserStatus = "FORBIDDEN"
	DeleteUserNotFound  DeleteUserStatus = "NOT_FOUND"
	DeleteUserFailed    DeleteUserStatus = "FAILED"
)

type SettingsStatus string

const (
	SettingsSuccess   SettingsStatus = "SUCCESS"
	SettingsForbidden SettingsStatus = "FORBIDDEN"
	SettingsNotFound  SettingsStatus = "NOT_FOUND"
	SettingsFailed    SettingsStatus = "FAILED"
)

type CheckUsernameStatus string

const (
	CheckUsernameSuccess          CheckUsernameStatus = "SUCCESS"
	CheckUsernameValidationFailed CheckUsernameStatus = "VALIDATION_FAILED"
	CheckUsernameFailed           CheckUsernameStatus = "FAILED"
)

// GetUserResponse omits redacted fields entirely.
type GetUserResponse struct {
	Status      GetUserStatus `json:"status"`
	UserID      string        `json:"user_id,omitempty"`
	Username    string        `json:"username,omitempty"`
	Name        string        `json:"name,omitempty"`
	Photo       string        `json:"photo,omitempty"`
	Phone       *string       `json:"phone,omitempty"`
	DateOfBirth *string       `json:"date_of_birth,omitempty"`
}

type CreateUserRequest struct {
	Phone    string `json:"phone"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type CreateUserResponse struct {
	Status   CreateUserStatus `json:"status"`
	UserID   string           `json:"user_id,omitempty"`
	Username string           `json:"username,omitempty"`
	Name     string           `json:"name,omitempty"`
	Message  string           `json:"message,omitempty"`
}

type UpdateFieldRequest struct {
	OwnerID     uuid.UUID
	RequesterID uuid.UUID
	Field       string
	Value       string
}

type UpdateFieldResponse struct {
	Status  UpdateFieldStatus `json:"status"`
	Message string            `json:"message,omitempty"`
}

type VisibilityRequest struct {
	OwnerID     uuid.UUID
	RequesterID uuid.UUID
	FieldKind   string
	ViewerID    uuid.UUID
}

type VisibilityResponse struct {
	Status  VisibilityStatus `json:"status"`
	Message string           `json:"message,omitempty"`
}

type DeleteUserResponse struct {
	Status DeleteUserStatus `json:"status"`
}

type SettingsResponse struct {
	Status          SettingsStatus `json:"status"`
	PhoneVisibility string         `json:"phone_visibility,omitempty"`
	BirthVisibility string         `json:"birth_visibility,omitempty"`
	PhoneViewers    []string       `json:"phone_viewers,omitempty"`
	BirthViewers    []string       `json:"birth_viewers,omitempty"`
}

type CheckUsernameResponse struct {
	Status    CheckUsernameStatus `json:"status"`
	Username  string              `json:"username,omitempty"`
	Available bool                `json:"available"`
	Message   string              `json:"message,omitempty"`
}

type API struct {
	service *application.Service
	logger  *slog.Logger
}

func NewAPI(service *application.Service, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{service: service, logger: logger.With("module", "directory.api", "layer", "boundary")}
}

func (a *API) GetUser(ctx context.Context, phone string, requesterID uuid.UUID) GetUserResponse {
	view, err := a.service.LookupByPhone(ctx, phone, requesterID)
	a.logOutcome(ctx, "get_user", err)
	return toGetUserResponse(view, err)
}

func (a *API) GetUserByUsername(ctx context.Context, username string, requesterID uuid.UUID) GetUserResponse {
	view, err := a.service.LookupByUsername(ctx, username, requesterID)
	a.logOutcome(ctx, "get_user_by_username", err)
	return toGetUserResponse(view, err)
}

func (a *API) GetUserByID(ctx context.Context, userID, requesterID uuid.UUID) GetUserResponse {
	view, err := a.service.LookupByID(ctx, userID, requesterID)
	a.logOutcome(ctx, "get_user_by_id", err)
	return toGetUserResponse(view, err)
}

func (a *API) CreateUser(ctx context.Context, req CreateUserRequest, requester application.RequesterContext) CreateUserResponse {
	view, err := a.service.CreateUser(ctx, application.CreateUserRequest{
		Phone:    req.Phone,
		Username: req.Username,
		Name:     req.Name,
	}, requester)
	a.logOutcome(ctx, "create_user", err)
	switch {
	case err == nil:
		return CreateUserResponse{
			Status:   CreateUserCreated,
			UserID:   view.UserID.String(),
			Username: view.Username,
			Name:     view.Name,
		}
	case errors.Is(err, domain.ErrInvalidInput):
		return CreateUserResponse{Status: CreateUserValidationFailed, Message: err.Error()}
	case errors.Is(err, domain.ErrAlreadyExists):
		return CreateUserResponse{Status: CreateUserAlreadyExists}
	default:
		return CreateUserResponse{Status: CreateUserFailed}
	}
}

func (a *API) UpdateField(ctx context.Context, req UpdateFieldRequest) UpdateFieldResponse {
	_, err := a.service.UpdateField(ctx, req.OwnerID, req.RequesterID, req.Field, req.Value)
	a.logOutcome(ctx, "update_field", err)
	switch {
	case err == nil:
		return UpdateFieldResponse{Status: UpdateFieldUpdated}
	case errors.Is(err, domain.ErrForbidden):
		return UpdateFieldResponse{Status: UpdateFieldForbidden}
	case errors.Is(err, domain.ErrNotFound):
		return UpdateFieldResponse{Status: UpdateFieldNotFound}
	case errors.Is(err, domain.ErrInvalidInput):
		return UpdateFieldResponse{Status: UpdateFieldValidationFailed, Message: err.Error()}
	case errors.Is(err, domain.ErrAlreadyExists):
		return UpdateFieldResponse{Status: UpdateFieldAlreadyExists}
	default:
		return UpdateFieldResponse{Status: UpdateFieldFailed}
	}
}

func (a *API) GrantVisibility(ctx context.Context, req VisibilityRequest) VisibilityResponse {
	err := a.service.GrantVisibility(ctx, req.OwnerID, req.RequesterID, req.FieldKind, req.ViewerID)
	a.logOutcome(ctx, "grant_visibility", err)
	return toVisibilityResponse(err)
}

func (a *API) RevokeVisibility(ctx context.Context, req VisibilityRequest) VisibilityResponse {
	err := a.service.RevokeVisibility(ctx, req.OwnerID, req.RequesterID, req.FieldKind, req.ViewerID)
	a.logOutcome(ctx, "revoke_visibility", err)
	return toVisibilityResponse(err)
}

func (a *API) DeleteUser(ctx context.Context, ownerID, requesterID uuid.UUID) DeleteUserResponse {
	err := a.service.DeleteUser(ctx, ownerID, requesterID)
	a.logOutcome(ctx, "delete_user", err)
	switch {
	case err == nil:
		return DeleteUserResponse{Status: DeleteUserDeleted}
	case errors.Is(err, domain.ErrForbidden):
		return DeleteUserResponse{Status: DeleteUserForbidden}
	case errors.Is(err, domain.ErrNotFound):
		return DeleteUserResponse{Status: DeleteUserNotFound}
	default:
		return DeleteUserResponse{Status: DeleteUserFailed}
	}
}

func (a *API) GetVisibilitySettings(ctx context.Context, ownerID, requesterID uuid.UUID) SettingsResponse {
	settings, err := a.service.GetVisibilitySettings(ctx, ownerID, requesterID)
	a.logOutcome(ctx, "get_visibility_settings", err)
	switch {
	case err == nil:
		return SettingsResponse{
			Status:          SettingsSuccess,
			PhoneVisibility: string(settings.PhoneVisibility),
			BirthVisibility: string(settings.BirthVisibility),
			PhoneViewers:    uuidStrings(settings.PhoneViewers),
			BirthViewers:    uuidStrings(settings.BirthViewers),
		}
	case errors.Is(err, domain.ErrForbidden):
		return SettingsResponse{Status: SettingsForbidden}
	case errors.Is(err, domain.ErrNotFound):
		return SettingsResponse{Status: SettingsNotFound}
	default:
		return SettingsResponse{Status: SettingsFailed}
	}
}

func (a *API) CheckUsername(ctx context.Context, username string) CheckUsernameResponse {
	check, err := a.service.CheckUsername(ctx, username)
	a.logOutcome(ctx, "check_username", err)
	switch {
	case err == nil:
		return CheckUsernameResponse{Status: CheckUsernameSuccess, Username: check.Username, Available: check.Available}
	case errors.Is(err, domain.ErrInvalidInput):
		return CheckUsernameResponse{Status: CheckUsernameValidationFailed, Message: err.Error()}
	default:
		return CheckUsernameResponse{Status: CheckUsernameFailed}
	}
}

func toGetUserResponse(view application.ProfileView, err error) GetUserResponse {
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		return GetUserResponse{Status: GetUserNotFound}
	case errors.Is(err, domain.ErrRateLimitExceeded):
		return GetUserResponse{Status: GetUserRateLimited}
	default:
		return GetUserResponse{Status: GetUserFailed}
	}
	resp := GetUserResponse{
		Status:   GetUserSuccess,
		UserID:   view.UserID.String(),
		Username: view.Username,
		Name:     view.Name,
		Photo:    view.Photo,
		Phone:    view.Phone,
	}
	if view.DateOfBirth != nil {
		dob := domain.FormatDateOfBirth(*view.DateOfBirth)
		resp.DateOfBirth = &dob
	}
	return resp
}

func toVisibilityResponse(err error) VisibilityResponse {
	switch {
	case err == nil:
		return VisibilityResponse{Status: VisibilityOK}
	case errors.Is(err, domain.ErrForbidden):
		return VisibilityResponse{Status: VisibilityForbidden}
	case errors.Is(err, domain.ErrNotFound):
		return VisibilityResponse{Status: VisibilityNotFound}
	case errors.Is(err, domain.ErrInvalidInput):
		return VisibilityResponse{Status: VisibilityValidationFailed, Message: err.Error()}
	default:
		return VisibilityResponse{Status: VisibilityFailed}
	}
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func (a *API) logOutcome(ctx context.Context, operation string, err error) {
	outcome := application.Outcome(err)
	if outcome == "failure" {
		a.logger.ErrorContext(ctx, "directory operation failed", "operation", operation, "outcome", outcome, "error", err)
		return
	}
	a.logger.InfoContext(ctx, "directory operation completed", "operation", operation, "outcome", outcome)
}
