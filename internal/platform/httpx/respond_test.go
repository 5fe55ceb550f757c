package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delifood/delifood/internal/shared"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{"unauthenticated", fmt.Errorf("token expired: %w", shared.ErrUnauthenticated), http.StatusUnauthorized, ""},
		{"forbidden", shared.ErrForbidden, http.StatusForbidden, ""},
		{"not found", fmt.Errorf("%w: product does not exist", shared.ErrNotFound), http.StatusNotFound, "product does not exist"},
		{"conflict", &shared.ConflictError{Entity: "roles", Constraint: "roles_name_key"}, http.StatusConflict, ""},
		{"validation", shared.Invalid("email failed required"), http.StatusBadRequest, "email failed required"},
		{"unprocessable", shared.Unprocessable("the array contains duplicate permissions"), http.StatusUnprocessableEntity, "the array contains duplicate permissions"},
		{"internal", errors.New("dial tcp 10.0.0.1:5432: refused"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondError(rec, tc.err)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.status, StatusFor(tc.err))
			var body ProblemDetail
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.status, body.Status)
			assert.Equal(t, tc.detail, body.Detail)
			assert.NotContains(t, rec.Body.String(), "10.0.0.1")
		})
	}
}

type signupBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func TestBindValidates(t *testing.T) {
	v := validator.New()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope","password":"short"}`))
	var body signupBody
	err := Bind(req, v, &body)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrValidation))
	assert.Contains(t, err.Error(), "email failed email")
	assert.Contains(t, err.Error(), "password failed min")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.io","password":"longenough"}`))
	require.NoError(t, Bind(req, v, &body))
	assert.Equal(t, "a@b.io", body.Email)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":`))
	assert.True(t, errors.Is(Bind(req, v, &body), shared.ErrValidation))
}
