package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/adapters/memory"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/adapters/metrics"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/adapters/security"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/application"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/directory"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/domain"
)

type testServer struct {
	router   http.Handler
	verifier *security.JWTVerifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	verifier, err := security.NewJWTVerifier("handler-test-secret", "")
	require.NoError(t, err)
	registry := prometheus.NewRegistry()
	service := application.NewService(application.Dependencies{
		Users:   memory.NewUserStore(),
		Outbox:  memory.NewOutboxRepository(),
		Tokens:  verifier,
		Metrics: metrics.New(registry),
	})
	handler := NewHandler(service, directory.NewAPI(service, nil), registry, nil)
	return &testServer{router: NewRouter(handler), verifier: verifier}
}

func (s *testServer) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	raw, err := s.verifier.Issue(userID, time.Now(), time.Hour)
	require.NoError(t, err)
	return raw
}

func (s *testServer) do(t *testing.T, method, path string, as uuid.UUID, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, path, &payload)
	if as != uuid.Nil {
		req.Header.Set("Authorization", "Bearer "+s.token(t, as))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (s *testServer) register(t *testing.T, phone, username string) uuid.UUID {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/v1/users", uuid.New(), map[string]string{
		"phone": phone, "username": username, "name": "Test User",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[directory.CreateUserResponse](t, rec)
	id, err := uuid.Parse(resp.UserID)
	require.NoError(t, err)
	return id
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/healthz", uuid.Nil, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/readyz", uuid.Nil, nil).Code)

	s.register(t, "+79261234567", "alice")
	rec := s.do(t, http.MethodGet, "/metrics", uuid.Nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "user_directory_operations_total")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/v1/users/by-username/alice", uuid.Nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/users/by-username/alice", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decode[apiError](t, rec).Code)
}

func TestLookupAppliesVisibility(t *testing.T) {
	s := newTestServer(t)
	owner := s.register(t, "+79261234567", "alice")
	friend := s.register(t, "+79261234568", "bob")
	stranger := s.register(t, "+79261234569", "carol")

	rec := s.do(t, http.MethodPatch, "/v1/users/"+owner.String()+"/fields/phone_visibility", owner, map[string]string{"value": "SOME"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodPut, "/v1/users/"+owner.String()+"/visibility/phone/viewers/"+friend.String(), owner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/v1/users/by-phone/+79261234567", friend, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	seen := decode[directory.GetUserResponse](t, rec)
	require.NotNil(t, seen.Phone)
	assert.Equal(t, "+79261234567", *seen.Phone)

	rec = s.do(t, http.MethodGet, "/v1/users/by-phone/%2B79261234567", stranger, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "\"phone\"")

	rec = s.do(t, http.MethodDelete, "/v1/users/"+owner.String()+"/visibility/phone/viewers/"+friend.String(), owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, "/v1/users/by-username/alice", friend, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[directory.GetUserResponse](t, rec).Phone)
}

func TestLookupByIDAndMe(t *testing.T) {
	s := newTestServer(t)
	owner := s.register(t, "+79261234567", "alice")
	friend := s.register(t, "+79261234568", "bob")
	stranger := s.register(t, "+79261234569", "carol")

	rec := s.do(t, http.MethodPatch, "/v1/users/"+owner.String()+"/fields/phone_visibility", owner, map[string]string{"value": "SOME"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodPut, "/v1/users/"+owner.String()+"/visibility/phone/viewers/"+friend.String(), owner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/v1/users/"+owner.String(), friend, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	seen := decode[directory.GetUserResponse](t, rec)
	require.NotNil(t, seen.Phone)
	assert.Equal(t, "+79261234567", *seen.Phone)

	rec = s.do(t, http.MethodGet, "/v1/users/"+owner.String(), stranger, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "\"phone\"")

	rec = s.do(t, http.MethodGet, "/v1/users/me", stranger, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	me := decode[directory.GetUserResponse](t, rec)
	assert.Equal(t, stranger.String(), me.UserID)
	require.NotNil(t, me.Phone)
	assert.Equal(t, "+79261234569", *me.Phone)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/v1/users/"+uuid.NewString(), friend, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/v1/users/not-a-uuid", friend, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/v1/users/me", uuid.Nil, nil).Code)
}

func TestMapDomainErrorCoversAuthFailures(t *testing.T) {
	status, code, _ := mapDomainError(domain.ErrUnauthorized)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", code)

	status, code, _ = mapDomainError(fmt.Errorf("verify: %w", domain.ErrStorageUnavailable))
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "SERVICE_UNAVAILABLE", code)

	status, code, msg := mapDomainError(errors.New("pq: connection reset"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "INTERNAL_ERROR", code)
	assert.NotContains(t, msg, "pq")
}

func TestStatusCodes(t *testing.T) {
	s := newTestServer(t)
	owner := s.register(t, "+79261234567", "alice")
	other := s.register(t, "+79261234568", "bob")

	cases := []struct {
		name   string
		method string
		path   string
		as     uuid.UUID
		body   any
		want   int
	}{
		{"duplicate phone", http.MethodPost, "/v1/users", other, map[string]string{"phone": "+79261234567", "username": "alice2", "name": "A"}, http.StatusConflict},
		{"invalid registration", http.MethodPost, "/v1/users", other, map[string]string{"phone": "8926", "username": "zed", "name": "Z"}, http.StatusBadRequest},
		{"unknown body field", http.MethodPost, "/v1/users", other, map[string]string{"email": "x"}, http.StatusBadRequest},
		{"unknown phone", http.MethodGet, "/v1/users/by-phone/+79260000000", other, nil, http.StatusNotFound},
		{"foreign update", http.MethodPatch, "/v1/users/" + owner.String() + "/fields/name", other, map[string]string{"value": "Mallory"}, http.StatusForbidden},
		{"bad field value", http.MethodPatch, "/v1/users/" + owner.String() + "/fields/date_of_birth", owner, map[string]string{"value": "17/05/1990"}, http.StatusBadRequest},
		{"taken username", http.MethodPatch, "/v1/users/" + owner.String() + "/fields/username", owner, map[string]string{"value": "bob"}, http.StatusConflict},
		{"bad user id", http.MethodGet, "/v1/users/not-a-uuid/visibility", owner, nil, http.StatusBadRequest},
		{"foreign settings", http.MethodGet, "/v1/users/" + owner.String() + "/visibility", other, nil, http.StatusForbidden},
		{"bad field kind", http.MethodPut, "/v1/users/" + owner.String() + "/visibility/email/viewers/" + other.String(), owner, nil, http.StatusBadRequest},
		{"foreign delete", http.MethodDelete, "/v1/users/" + owner.String(), other, nil, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, tc.method, tc.path, tc.as, tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func TestSettingsAndDelete(t *testing.T) {
	s := newTestServer(t)
	owner := s.register(t, "+79261234567", "alice")

	rec := s.do(t, http.MethodGet, "/v1/users/"+owner.String()+"/visibility", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	settings := decode[directory.SettingsResponse](t, rec)
	assert.Equal(t, "ALL", settings.PhoneVisibility)
	assert.Equal(t, "ALL", settings.BirthVisibility)

	rec = s.do(t, http.MethodDelete, "/v1/users/"+owner.String(), owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, directory.DeleteUserDeleted, decode[directory.DeleteUserResponse](t, rec).Status)

	rec = s.do(t, http.MethodDelete, "/v1/users/"+owner.String(), owner, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUsernameAvailabilityIsPublic(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "+79261234567", "alice")

	rec := s.do(t, http.MethodGet, "/v1/users/username-availability?username=alice", uuid.Nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[directory.CheckUsernameResponse](t, rec).Available)

	rec = s.do(t, http.MethodGet, "/v1/users/username-availability?username=A", uuid.Nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
