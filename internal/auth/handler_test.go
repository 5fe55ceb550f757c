package auth

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delifood/delifood/internal/authgate"
	_ "github.com/delifood/delifood/testing"
)

func newTestServer(t *testing.T, signinLimit int) (*harness, http.Handler) {
	t.Helper()
	h := newHarness(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gate := authgate.New(h.codec, logger)
	r := chi.NewRouter()
	NewHandler(logger, h.svc, gate, signinLimit).MountRoutes(r)
	return h, r
}

func call(t *testing.T, srv http.Handler, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "10.1.1.1:5555"
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestSignUpSignInFlow(t *testing.T) {
	h, srv := newTestServer(t, 0)

	rec := call(t, srv, http.MethodPost, "/signup", `{"email":"eve@example.com","password":"password1"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = call(t, srv, http.MethodPost, "/signup", `{"email":"eve@example.com","password":"password1"}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = call(t, srv, http.MethodPost, "/signup", `{"email":"not-an-email","password":"password1"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, srv, http.MethodPost, "/signin", `{"email":"ghost@example.com","password":"password1"}`, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(t, srv, http.MethodPost, "/signin", `{"email":"eve@example.com","password":"password9"}`, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = call(t, srv, http.MethodPost, "/signin", `{"email":"eve@example.com","password":"password1"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var session Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.Equal(t, []string{"create:cart/item", "get:cart"}, session.User.Permissions)

	// A default account may not administer users.
	rec = call(t, srv, http.MethodGet, "/users", "", session.Token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = call(t, srv, http.MethodGet, "/users", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	admin, err := h.svc.CreateUser(t.Context(), "admin@admin.com", "adminadmin", []string{"r-admin"})
	require.NoError(t, err)
	adminSession, err := h.svc.SignIn(t.Context(), admin.Email, "adminadmin")
	require.NoError(t, err)

	rec = call(t, srv, http.MethodGet, "/users", "", adminSession.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	var users []User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	assert.Len(t, users, 2)

	rec = call(t, srv, http.MethodPut, "/users/"+session.User.ID+"/roles", `{"roles":["r-user","r-user"]}`, adminSession.Token)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSignInIsRateLimited(t *testing.T) {
	_, srv := newTestServer(t, 2)
	body := `{"email":"ghost@example.com","password":"password1"}`

	assert.Equal(t, http.StatusNotFound, call(t, srv, http.MethodPost, "/signin", body, "").Code)
	assert.Equal(t, http.StatusNotFound, call(t, srv, http.MethodPost, "/signin", body, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, call(t, srv, http.MethodPost, "/signin", body, "").Code)
}
