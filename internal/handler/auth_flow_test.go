package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduportal/backend/internal/model"
	"github.com/eduportal/backend/internal/service"
)

func testRouter(t *testing.T) (*gin.Engine, *service.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := newTestService(t)
	return NewRouter(svc, nil), svc
}

func doJSON(r *gin.Engine, method, path, bearer string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestAuthLifecycle(t *testing.T) {
	r, _ := testRouter(t)

	w := doJSON(r, http.MethodPost, "/api/auth/register", "", gin.H{
		"email": "alice@example.com", "password": "Secret123!", "firstName": "Alice",
	})
	require.Equal(t, http.StatusOK, w.Code)
	registered := decode[model.RegisterResponse](t, w)
	assert.Equal(t, "alice@example.com", registered.Email)

	w = doJSON(r, http.MethodPost, "/api/auth/login", "", gin.H{
		"email": "alice@example.com", "password": "Secret123!",
	})
	require.Equal(t, http.StatusOK, w.Code)
	session := decode[model.TokenResponse](t, w)
	require.NotEmpty(t, session.AccessToken)
	require.NotEmpty(t, session.RefreshToken)
	require.NotNil(t, session.User)
	assert.Equal(t, []string{"STUDENT"}, session.User.Roles)

	w = doJSON(r, http.MethodGet, "/api/auth/me", session.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[model.MeResponse](t, w)
	assert.Equal(t, registered.ID, me.UserID)
	assert.Equal(t, "alice@example.com", me.Email)

	// A STUDENT may not reach admin routes.
	w = doJSON(r, http.MethodGet, "/api/admin/users", session.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(r, http.MethodPost, "/api/auth/logout", session.AccessToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// The refresh family died with the logout.
	w = doJSON(r, http.MethodPost, "/api/auth/refresh", "", gin.H{
		"refreshToken": session.RefreshToken,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "authentication failed")
}

func TestRefreshRotationOverHTTP(t *testing.T) {
	r, _ := testRouter(t)

	doJSON(r, http.MethodPost, "/api/auth/register", "", gin.H{
		"email": "alice@example.com", "password": "Secret123!",
	})
	w := doJSON(r, http.MethodPost, "/api/auth/login", "", gin.H{
		"email": "alice@example.com", "password": "Secret123!",
	})
	require.Equal(t, http.StatusOK, w.Code)
	first := decode[model.TokenResponse](t, w)

	w = doJSON(r, http.MethodPost, "/api/auth/refresh", "", gin.H{
		"refreshToken": first.RefreshToken,
	})
	require.Equal(t, http.StatusOK, w.Code)
	second := decode[model.TokenResponse](t, w)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// Replaying the spent token revokes the family.
	w = doJSON(r, http.MethodPost, "/api/auth/refresh", "", gin.H{
		"refreshToken": first.RefreshToken,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodPost, "/api/auth/refresh", "", gin.H{
		"refreshToken": second.RefreshToken,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginFailuresShareOneBody(t *testing.T) {
	r, _ := testRouter(t)
	doJSON(r, http.MethodPost, "/api/auth/register", "", gin.H{
		"email": "alice@example.com", "password": "Secret123!",
	})

	wrongPassword := doJSON(r, http.MethodPost, "/api/auth/login", "", gin.H{
		"email": "alice@example.com", "password": "WrongPass1!",
	})
	unknownEmail := doJSON(r, http.MethodPost, "/api/auth/login", "", gin.H{
		"email": "nobody@example.com", "password": "Secret123!",
	})

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	assert.JSONEq(t, wrongPassword.Body.String(), unknownEmail.Body.String())
}

func TestRegisterConflict(t *testing.T) {
	r, _ := testRouter(t)
	payload := gin.H{"email": "alice@example.com", "password": "Secret123!"}

	require.Equal(t, http.StatusOK, doJSON(r, http.MethodPost, "/api/auth/register", "", payload).Code)
	assert.Equal(t, http.StatusConflict, doJSON(r, http.MethodPost, "/api/auth/register", "", payload).Code)
}

func TestAdminUserManagement(t *testing.T) {
	r, svc := testRouter(t)
	admin := seedUser(t, svc, "admin@example.com", "ADMIN")
	seedUser(t, svc, "student@example.com")

	w := doJSON(r, http.MethodGet, "/api/admin/users?page=1&pageSize=10", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode[model.PagedUsersResponse](t, w)
	assert.Equal(t, int64(2), listed.Total)
	require.Len(t, listed.Items, 2)

	var studentID string
	for _, u := range listed.Items {
		if u.Email == "student@example.com" {
			studentID = u.ID
		}
	}
	require.NotEmpty(t, studentID)

	w = doJSON(r, http.MethodPatch, "/api/admin/users/"+studentID+"/roles", admin, gin.H{
		"roles": []string{"TEACHER"},
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPatch, "/api/admin/users/"+studentID+"/status", admin, gin.H{
		"status": "DISABLED",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	// Disabled accounts cannot log in anymore.
	login := doJSON(r, http.MethodPost, "/api/auth/login", "", gin.H{
		"email": "student@example.com", "password": "Secret123!",
	})
	assert.Equal(t, http.StatusUnauthorized, login.Code)

	// Bad inputs are rejected.
	w = doJSON(r, http.MethodPatch, "/api/admin/users/not-a-uuid/status", admin, gin.H{"status": "DISABLED"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doJSON(r, http.MethodPatch, "/api/admin/users/"+studentID+"/status", admin, gin.H{"status": "PENDING"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
