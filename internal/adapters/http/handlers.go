package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/application"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/directory"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/domain"
)

type updateFieldBody struct {
	Value string `json:"value"`
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.readiness != nil {
		if err := h.readiness(r.Context()); err != nil {
			logHTTPOperationError(r.Context(), "readyz", http.StatusServiceUnavailable, "NOT_READY", "dependencies unavailable", err)
			writeError(w, http.StatusServiceUnavailable, "NOT_READY", "dependencies unavailable")
			return
		}
	}
	writeMessage(w, http.StatusOK, "ready")
}

func (h *Handler) checkUsername(w http.ResponseWriter, r *http.Request) {
	resp := h.api.CheckUsername(r.Context(), r.URL.Query().Get("username"))
	writeResult(w, string(resp.Status), resp)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var body directory.CreateUserRequest
	if err := decodeBody(r, &body); err != nil {
		writeValidationError(r.Context(), w, "create_user", err)
		return
	}
	resp := h.api.CreateUser(r.Context(), body, application.RequesterContext{
		RequesterID: requesterFromContext(r.Context()),
		RequestID:   requestIDFromContext(r.Context()),
		Source:      "http",
	})
	writeResult(w, string(resp.Status), resp)
}

func (h *Handler) getUserByPhone(w http.ResponseWriter, r *http.Request) {
	phone, err := pathParam(r, "phone")
	if err != nil {
		writeValidationError(r.Context(), w, "get_user", err)
		return
	}
	resp := h.api.GetUser(r.Context(), phone, requesterFromContext(r.Context()))
	writeResult(w, string(resp.Status), resp)
}

func (h *Handler) getUserByUsername(w http.ResponseWriter, r *http.Request) {
	username, err := pathParam(r, "username")
	if err != nil {
		writeValidationError(r.Context(), w, "get_user_by_username", err)
		return
	}
	resp := h.api.GetUserByUsername(r.Context(), username, requesterFromContext(r.Context()))
	writeResult(w, string(resp.Status), resp)
}

func (h *Handler) getUserByID(w http.ResponseWriter, r *http.Request) {
	userID, err := uuidParam(r, "user_id")
	if err != nil {
		writeValidationError(r.Context(), w, "get_user_by_id", err)
		return
	}
	resp := h.api.GetUserByID(r.Context(), userID, requesterFromContext(r.Context()))
	writeResult(w, string(resp.Status), resp)
}

func (h *Handler) getMe(w http.ResponseWriter, r *http.Request) {
	requesterID := requesterFromContext(r.Context())
	resp := h.api.GetUserByID(r.Context(), requesterID, requesterID)
	writeResult(w, string(resp.Status), resp)
}

func (h *Handler) updateField(w http.ResponseWriter, r *http.Request) {
	ownerID, err := uuidParam(r, "user_id")
	if err != nil {
		writeValidationError(r.Context(), w, "update_field", err)
		return
	}
	var body updateFieldBody
	if err := decodeBody(r, &body); err != nil {
		writeValidationError(r.Context(), w, "update_field", err)
		return
	}
	resp := h.api.UpdateField(r.Context(), directory.UpdateFieldRequest{
		OwnerID:     ownerID,
		RequesterID: requesterFromContext(r.Context()),
		Field:       chi.URLParam(r, "field"),
		Value:       body.Value,
	})
	writeResult(w, string(resp.Status), resp)
}

func (h *Handler) getVisibilitySettings(w http.ResponseWriter, r *http.Request) {
	ownerID, err := uuidParam(r, "user_id")
	if err != nil {
		writeValidationError(r.Context(), w, "get_visibility_settings", err)
		return
	}
	resp := h.api.GetVisibilitySettings(r.Context(), ownerID, requesterFromContext(r.Context()))
	writeResult(w, string(resp.Status), resp)
}

func (h *Handler) grantVisibility(w http.ResponseWriter, r *http.Request) {
	h.changeVisibility(w, r, "grant_visibility", h.api.GrantVisibility)
}

func (h *Handler) revokeVisibility(w http.ResponseWriter, r *http.Request) {
	h.changeVisibility(w, r, "revoke_visibility", h.api.RevokeVisibility)
}

func (h *Handler) changeVisibility(w http.ResponseWriter, r *http.Request, operation string, apply func(context.Context, directory.VisibilityRequest) directory.VisibilityResponse) {
	ownerID, err := uuidParam(r, "user_id")
	if err != nil {
		writeValidationError(r.Context(), w, operation, err)
		return
	}
	viewerID, err := uuidParam(r, "viewer_id")
	if err != nil {
		writeValidationError(r.Context(), w, operation, err)
		return
	}
	resp := apply(r.Context(), directory.VisibilityRequest{
		OwnerID:     ownerID,
		RequesterID: requesterFromContext(r.Context()),
		FieldKind:   chi.URLParam(r, "field_kind"),
		ViewerID:    viewerID,
	})
	writeResult(w, string(resp.Status), resp)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	ownerID, err := uuidParam(r, "user_id")
	if err != nil {
		writeValidationError(r.Context(), w, "delete_user", err)
		return
	}
	resp := h.api.DeleteUser(r.Context(), ownerID, requesterFromContext(r.Context()))
	writeResult(w, string(resp.Status), resp)
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed request body", domain.ErrInvalidInput)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: request body must contain a single JSON value", domain.ErrInvalidInput)
	}
	return nil
}

// pathParam returns the unescaped value; chi hands back the raw segment when
// the request path was percent-encoded.
func pathParam(r *http.Request, name string) (string, error) {
	v, err := url.PathUnescape(chi.URLParam(r, name))
	if err != nil {
		return "", fmt.Errorf("%w: malformed %s", domain.ErrInvalidInput, name)
	}
	return v, nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s must be a UUID", domain.ErrInvalidInput, name)
	}
	return id, nil
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

func writeMappedError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	status, code, msg := mapDomainError(err)
	logHTTPOperationError(ctx, operation, status, code, msg, err)
	writeError(w, status, code, msg)
}

func writeValidationError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	code := "VALIDATION_ERROR"
	msg := err.Error()
	logHTTPOperationError(ctx, operation, http.StatusBadRequest, code, msg, err)
	writeError(w, http.StatusBadRequest, code, msg)
}

// mapDomainError covers the failures authentication can produce. Directory
// outcomes are mapped from response statuses by httpStatusFor.
func mapDomainError(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing credentials"
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "service unavailable"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
	}
}
