package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSendGrid_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewSendGrid("", "noreply@x.com", "https://x.com")
	assert.Error(t, err)

	_, err = NewSendGrid("key", "", "https://x.com")
	assert.Error(t, err)
}

func TestSendVerificationEmail(t *testing.T) {
	t.Parallel()

	var captured sendRequest
	var authHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client, err := NewSendGrid("sg-key", "noreply@x.com", "https://contacts.example/")
	require.NoError(t, err)
	client.endpoint = server.URL

	require.NoError(t, client.SendVerificationEmail(context.Background(), "alice@x.com", "tok123"))

	assert.Equal(t, "Bearer sg-key", authHeader)
	assert.Equal(t, "noreply@x.com", captured.From.Email)
	assert.Equal(t, "Verify Your Email", captured.Subject)
	require.Len(t, captured.Personalizations, 1)
	require.Len(t, captured.Personalizations[0].To, 1)
	assert.Equal(t, "alice@x.com", captured.Personalizations[0].To[0].Email)
	require.Len(t, captured.Content, 1)
	assert.Contains(t, captured.Content[0].Value, "https://contacts.example/auth/verify-email?token=tok123")
}

func TestSendResetPasswordEmail_ProviderError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer server.Close()

	client, err := NewSendGrid("sg-key", "noreply@x.com", "https://contacts.example")
	require.NoError(t, err)
	client.endpoint = server.URL

	err = client.SendResetPasswordEmail(context.Background(), "alice@x.com", "tok123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}
