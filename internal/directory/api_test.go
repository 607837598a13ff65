package directory_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/adapters/memory"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/application"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/directory"
)

func newAPI(t *testing.T) *directory.API {
	t.Helper()
	service := application.NewService(application.Dependencies{
		Users:  memory.NewUserStore(),
		Outbox: memory.NewOutboxRepository(),
	})
	return directory.NewAPI(service, nil)
}

func createUser(t *testing.T, api *directory.API, phone, username string) uuid.UUID {
	t.Helper()
	resp := api.CreateUser(context.Background(), directory.CreateUserRequest{Phone: phone, Username: username, Name: "Test User"}, application.RequesterContext{})
	require.Equal(t, directory.CreateUserCreated, resp.Status)
	id, err := uuid.Parse(resp.UserID)
	require.NoError(t, err)
	return id
}

func TestCreateUserStatuses(t *testing.T) {
	ctx := context.Background()
	api := newAPI(t)
	createUser(t, api, "+79261234567", "alice")

	dup := api.CreateUser(ctx, directory.CreateUserRequest{Phone: "+79261234567", Username: "alice2", Name: "Dup"}, application.RequesterContext{})
	assert.Equal(t, directory.CreateUserAlreadyExists, dup.Status)

	bad := api.CreateUser(ctx, directory.CreateUserRequest{Phone: "12345", Username: "bob", Name: "Bob"}, application.RequesterContext{})
	assert.Equal(t, directory.CreateUserValidationFailed, bad.Status)
	assert.NotEmpty(t, bad.Message)
}

func TestGetUserRedactsAndOmits(t *testing.T) {
	ctx := context.Background()
	api := newAPI(t)
	owner := createUser(t, api, "+79261234567", "alice")
	viewer := createUser(t, api, "+79261234568", "bob")

	require.Equal(t, directory.UpdateFieldUpdated, api.UpdateField(ctx, directory.UpdateFieldRequest{
		OwnerID: owner, RequesterID: owner, Field: "date_of_birth", Value: "1990-05-17",
	}).Status)
	require.Equal(t, directory.UpdateFieldUpdated, api.UpdateField(ctx, directory.UpdateFieldRequest{
		OwnerID: owner, RequesterID: owner, Field: "phone_visibility", Value: "NONE",
	}).Status)

	resp := api.GetUser(ctx, "+79261234567", viewer)
	require.Equal(t, directory.GetUserSuccess, resp.Status)
	assert.Nil(t, resp.Phone)
	require.NotNil(t, resp.DateOfBirth)
	assert.Equal(t, "1990-05-17", *resp.DateOfBirth)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "\"phone\"")

	self := api.GetUserByUsername(ctx, "alice", owner)
	require.Equal(t, directory.GetUserSuccess, self.Status)
	require.NotNil(t, self.Phone)
	assert.Equal(t, "+79261234567", *self.Phone)
}

func TestGetUserByID(t *testing.T) {
	ctx := context.Background()
	api := newAPI(t)
	owner := createUser(t, api, "+79261234567", "alice")
	viewer := createUser(t, api, "+79261234568", "bob")
	require.Equal(t, directory.UpdateFieldUpdated, api.UpdateField(ctx, directory.UpdateFieldRequest{
		OwnerID: owner, RequesterID: owner, Field: "phone_visibility", Value: "NONE",
	}).Status)

	resp := api.GetUserByID(ctx, owner, viewer)
	require.Equal(t, directory.GetUserSuccess, resp.Status)
	assert.Equal(t, owner.String(), resp.UserID)
	assert.Nil(t, resp.Phone)

	self := api.GetUserByID(ctx, owner, owner)
	require.Equal(t, directory.GetUserSuccess, self.Status)
	require.NotNil(t, self.Phone)

	assert.Equal(t, directory.GetUserNotFound, api.GetUserByID(ctx, uuid.New(), viewer).Status)
}

func TestGetUserNotFound(t *testing.T) {
	api := newAPI(t)
	assert.Equal(t, directory.GetUserNotFound, api.GetUser(context.Background(), "+79260000000", uuid.New()).Status)
	assert.Equal(t, directory.GetUserNotFound, api.GetUserByUsername(context.Background(), "Not A Name", uuid.New()).Status)
}

func TestVisibilityAndDeleteStatuses(t *testing.T) {
	ctx := context.Background()
	api := newAPI(t)
	owner := createUser(t, api, "+79261234567", "alice")
	viewer := createUser(t, api, "+79261234568", "bob")

	grant := directory.VisibilityRequest{OwnerID: owner, RequesterID: owner, FieldKind: "phone", ViewerID: viewer}
	assert.Equal(t, directory.VisibilityOK, api.GrantVisibility(ctx, grant).Status)

	forbidden := grant
	forbidden.RequesterID = viewer
	assert.Equal(t, directory.VisibilityForbidden, api.GrantVisibility(ctx, forbidden).Status)

	invalid := grant
	invalid.FieldKind = "email"
	assert.Equal(t, directory.VisibilityValidationFailed, api.RevokeVisibility(ctx, invalid).Status)

	settings := api.GetVisibilitySettings(ctx, owner, owner)
	require.Equal(t, directory.SettingsSuccess, settings.Status)
	assert.Equal(t, "ALL", settings.PhoneVisibility)
	assert.Equal(t, []string{viewer.String()}, settings.PhoneViewers)
	assert.Equal(t, directory.SettingsForbidden, api.GetVisibilitySettings(ctx, owner, viewer).Status)

	assert.Equal(t, directory.VisibilityOK, api.RevokeVisibility(ctx, grant).Status)

	assert.Equal(t, directory.DeleteUserForbidden, api.DeleteUser(ctx, owner, viewer).Status)
	assert.Equal(t, directory.DeleteUserDeleted, api.DeleteUser(ctx, owner, owner).Status)
	assert.Equal(t, directory.DeleteUserNotFound, api.DeleteUser(ctx, owner, owner).Status)
	assert.Equal(t, directory.GetUserNotFound, api.GetUser(ctx, "+79261234567", viewer).Status)
}

func TestUpdateFieldStatuses(t *testing.T) {
	ctx := context.Background()
	api := newAPI(t)
	owner := createUser(t, api, "+79261234567", "alice")
	createUser(t, api, "+79261234568", "bob")

	cases := []struct {
		name  string
		field string
		value string
		want  directory.UpdateFieldStatus
	}{
		{name: "name", field: "name", value: "Alice B", want: directory.UpdateFieldUpdated},
		{name: "taken username", field: "username", value: "bob", want: directory.UpdateFieldAlreadyExists},
		{name: "bad username", field: "username", value: "1abc", want: directory.UpdateFieldValidationFailed},
		{name: "unknown field", field: "email", value: "x", want: directory.UpdateFieldValidationFailed},
		{name: "bad mode", field: "birth_visibility", value: "FRIENDS", want: directory.UpdateFieldValidationFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := api.UpdateField(ctx, directory.UpdateFieldRequest{OwnerID: owner, RequesterID: owner, Field: tc.field, Value: tc.value})
			assert.Equal(t, tc.want, resp.Status)
		})
	}

	missing := uuid.New()
	assert.Equal(t, directory.UpdateFieldNotFound, api.UpdateField(ctx, directory.UpdateFieldRequest{
		OwnerID: missing, RequesterID: missing, Field: "name", Value: "Ghost",
	}).Status)
}

func TestCheckUsername(t *testing.T) {
	ctx := context.Background()
	api := newAPI(t)
	createUser(t, api, "+79261234567", "alice")

	taken := api.CheckUsername(ctx, "alice")
	assert.Equal(t, directory.CheckUsernameSuccess, taken.Status)
	assert.False(t, taken.Available)

	free := api.CheckUsername(ctx, "carol")
	assert.Equal(t, directory.CheckUsernameSuccess, free.Status)
	assert.True(t, free.Available)

	assert.Equal(t, directory.CheckUsernameValidationFailed, api.CheckUsername(ctx, "x").Status)
}
