package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growthops/sheetpulse/pkg/auth"
)

func TestListUsers(t *testing.T) {
	ts := newTestServer()
	ts.auth.users[1] = &auth.User{ID: 1, Username: "admin", Role: auth.RoleAdmin}
	ts.auth.users[2] = &auth.User{ID: 2, Username: "viewer", Role: auth.RoleViewer}

	rec, envelope := ts.request(t, "GET", "/api/users", adminToken, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	data := dataMap(t, envelope)
	assert.Equal(t, float64(2), data["total"])
}

func TestCreateUserReturnsPasswordOnce(t *testing.T) {
	ts := newTestServer()
	ts.auth.createdUser = &auth.User{ID: 3, Username: "ops@example.com", Email: "ops@example.com", Role: auth.RoleViewer}
	ts.auth.createdPass = "s3cret!pass"

	rec, envelope := ts.request(t, "POST", "/api/users", adminToken, map[string]string{
		"email": "ops@example.com",
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	data := dataMap(t, envelope)
	assert.Equal(t, "s3cret!pass", data["password"])
	user, ok := data["user"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ops@example.com", user["username"])
}

func TestCreateUserRequiresEmail(t *testing.T) {
	ts := newTestServer()

	rec, envelope := ts.request(t, "POST", "/api/users", adminToken, map[string]string{
		"username": "ops",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email is required", envelope.Message)
}

func TestCreateUserDuplicate(t *testing.T) {
	ts := newTestServer()
	ts.auth.createErr = auth.ErrUsernameTaken

	rec, _ := ts.request(t, "POST", "/api/users", adminToken, map[string]string{
		"email": "ops@example.com",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdateUserReloads(t *testing.T) {
	ts := newTestServer()
	ts.auth.users[3] = &auth.User{ID: 3, Username: "renamed", Role: auth.RoleViewer}

	rec, envelope := ts.request(t, "PUT", "/api/users/3", adminToken, map[string]string{
		"username": "renamed",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "renamed", dataMap(t, envelope)["username"])
}

func TestUpdateUserNotFound(t *testing.T) {
	ts := newTestServer()
	ts.auth.updateErr = auth.ErrUserNotFound

	rec, _ := ts.request(t, "PUT", "/api/users/99", adminToken, map[string]string{
		"username": "ghost",
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteUser(t *testing.T) {
	ts := newTestServer()

	rec, envelope := ts.request(t, "DELETE", "/api/users/3", adminToken, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User deleted", envelope.Message)
}

func TestDeleteUserNotFound(t *testing.T) {
	ts := newTestServer()
	ts.auth.deleteErr = auth.ErrUserNotFound

	rec, _ := ts.request(t, "DELETE", "/api/users/99", adminToken, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
