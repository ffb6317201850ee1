package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postJSON(t *testing.T, handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHandler_RegisterScenario(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	handler := NewHandler(env.service)

	rec := postJSON(t, handler.Register, "/auth/register",
		`{"username":"alice","email":"alice@x.com","password":"p@ss1234"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "alice@x.com", body["email"])
	assert.Equal(t, false, body["is_verified"])

	// Verify with the emitted token, then replay it.
	token := env.mailer.verificationTokens["alice@x.com"]
	require.NotEmpty(t, token)

	req := httptest.NewRequest(http.MethodGet, "/auth/verify-email?token="+token, nil)
	verifyRec := httptest.NewRecorder()
	handler.VerifyEmail(verifyRec, req)
	assert.Equal(t, http.StatusOK, verifyRec.Code)

	replayRec := httptest.NewRecorder()
	handler.VerifyEmail(replayRec, httptest.NewRequest(http.MethodGet, "/auth/verify-email?token="+token, nil))
	assert.Equal(t, http.StatusBadRequest, replayRec.Code)
	assert.Contains(t, replayRec.Body.String(), "already verified")
}

func TestHandler_RegisterValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	handler := NewHandler(env.service)

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"unknown field", `{"username":"a","email":"a@x.com","password":"p@ss1234","extra":1}`},
		{"missing username", `{"email":"a@x.com","password":"p@ss1234"}`},
		{"bad email", `{"username":"a","email":"not-an-email","password":"p@ss1234"}`},
		{"short password", `{"username":"a","email":"a@x.com","password":"short"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, handler.Register, "/auth/register", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandler_RegisterConflict(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	handler := NewHandler(env.service)

	rec := postJSON(t, handler.Register, "/auth/register",
		`{"username":"alice","email":"alice@x.com","password":"p@ss1234"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(t, handler.Register, "/auth/register",
		`{"username":"other","email":"alice@x.com","password":"p@ss1234"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandler_LoginScenario(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	handler := NewHandler(env.service)

	rec := postJSON(t, handler.Register, "/auth/register",
		`{"username":"alice","email":"alice@x.com","password":"p@ss1234"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(t, handler.Login, "/auth/login",
		`{"email":"alice@x.com","password":"p@ss1234"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var tokens Tokens
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokens))
	assert.Equal(t, "Bearer", tokens.TokenType)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)

	rec = postJSON(t, handler.Login, "/auth/login",
		`{"email":"alice@x.com","password":"wrong-password"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
}

func TestHandler_RefreshAndLogout(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	handler := NewHandler(env.service)

	rec := postJSON(t, handler.Register, "/auth/register",
		`{"username":"alice","email":"alice@x.com","password":"p@ss1234"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(t, handler.Login, "/auth/login",
		`{"email":"alice@x.com","password":"p@ss1234"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var tokens Tokens
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokens))

	rec = postJSON(t, handler.Refresh, "/auth/refresh",
		`{"refresh_token":"`+tokens.RefreshToken+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var rotated Tokens
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rotated))

	rec = postJSON(t, handler.Logout, "/auth/logout",
		`{"refresh_token":"`+rotated.RefreshToken+`"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = postJSON(t, handler.Refresh, "/auth/refresh",
		`{"refresh_token":"`+rotated.RefreshToken+`"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_PasswordResetFlow(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	handler := NewHandler(env.service)

	rec := postJSON(t, handler.Register, "/auth/register",
		`{"username":"alice","email":"alice@x.com","password":"p@ss1234"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(t, handler.RequestPasswordReset, "/auth/request-password-reset",
		`{"email":"alice@x.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// Unknown emails get the same response.
	rec = postJSON(t, handler.RequestPasswordReset, "/auth/request-password-reset",
		`{"email":"ghost@x.com"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	resetToken := env.mailer.resetTokenFor("alice@x.com")
	require.NotEmpty(t, resetToken)

	rec = postJSON(t, handler.ResetPassword, "/auth/reset-password",
		`{"token":"`+resetToken+`","new_password":"n3w-p@ss99"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, handler.Login, "/auth/login",
		`{"email":"alice@x.com","password":"n3w-p@ss99"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_ChangeRole(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	handler := NewHandler(env.service)

	rec := postJSON(t, handler.Register, "/auth/register",
		`{"username":"alice","email":"alice@x.com","password":"p@ss1234"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(t, handler.ChangeRole, "/auth/change-role",
		`{"email":"alice@x.com","role":"admin"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	stored, ok := env.store.userByEmail("alice@x.com")
	require.True(t, ok)
	assert.Equal(t, RoleAdmin, stored.Role)

	rec = postJSON(t, handler.ChangeRole, "/auth/change-role",
		`{"email":"ghost@x.com","role":"admin"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = postJSON(t, handler.ChangeRole, "/auth/change-role",
		`{"email":"alice@x.com","role":"superuser"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
