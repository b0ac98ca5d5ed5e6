package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/friendsincode/familyzen/internal/auth"
)

func TestAPIKeyLifecycle(t *testing.T) {
	env := newTestEnv(t)
	token := registerAndLogin(t, env, "hub-owner@example.com", 5)

	rr := env.do(t, http.MethodPost, "/users/me/api-keys", map[string]any{"name": "kitchen hub", "expires_in_days": 30}, bearer(token))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decodeBody(t, rr)
	plaintext := created["key"].(string)
	assert.True(t, strings.HasPrefix(plaintext, auth.APIKeyPrefix))
	keyInfo := created["api_key"].(map[string]any)
	keyID := keyInfo["id"].(string)
	assert.Equal(t, "active", keyInfo["status"])

	apiKey := map[string]string{auth.APIKeyHeader: plaintext}
	rr = env.do(t, http.MethodPost, "/users/me/fcm-token", map[string]any{"token": "hub-device-token"}, apiKey)
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())

	rr = env.do(t, http.MethodGet, "/users/me/api-keys", nil, bearer(token))
	require.Equal(t, http.StatusOK, rr.Code)
	keys := decodeBody(t, rr)["api_keys"].([]any)
	require.Len(t, keys, 1)
	assert.NotContains(t, rr.Body.String(), plaintext, "plaintext key is only shown at creation")

	rr = env.do(t, http.MethodDelete, "/users/me/api-keys/"+keyID, nil, bearer(token))
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = env.do(t, http.MethodDelete, "/users/me/api-keys/"+keyID, nil, bearer(token))
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, http.MethodGet, "/users/me/fcm-tokens", nil, apiKey)
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "revoked key is rejected")
}

func TestAPIKeyCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	token := registerAndLogin(t, env, "validate@example.com", 5)

	rr := env.do(t, http.MethodPost, "/users/me/api-keys", map[string]any{"name": "  "}, bearer(token))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = env.do(t, http.MethodPost, "/users/me/api-keys", map[string]any{"name": "x", "expires_in_days": -3}, bearer(token))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "invalid_expiry", decodeBody(t, rr)["error"])
}
