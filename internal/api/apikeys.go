/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/familyzen/internal/auth"
	"github.com/friendsincode/familyzen/internal/events"
	"github.com/friendsincode/familyzen/internal/models"
)

type apiKeyCreateRequest struct {
	Name          string `json:"name"`
	ExpiresInDays int    `json:"expires_in_days"`
}

type apiKeyResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	KeyPrefix  string     `json:"key_prefix"`
	Status     string     `json:"status"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  time.Time  `json:"expires_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

func toAPIKeyResponse(k *models.APIKey, now time.Time) apiKeyResponse {
	return apiKeyResponse{
		ID:         k.ID,
		Name:       k.Name,
		KeyPrefix:  k.KeyPrefix,
		Status:     string(k.StatusAt(now)),
		LastUsedAt: k.LastUsedAt,
		ExpiresAt:  k.ExpiresAt,
		CreatedAt:  k.CreatedAt,
	}
}

func (a *API) handleAPIKeysList(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	keys, err := a.keys.List(r.Context(), claims.UserID)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to list api keys")
		writeError(w, http.StatusInternalServerError, "list_failed")
		return
	}

	now := a.keys.Now()
	out := make([]apiKeyResponse, len(keys))
	for i := range keys {
		out[i] = toAPIKeyResponse(&keys[i], now)
	}
	writeJSON(w, http.StatusOK, map[string]any{"api_keys": out})
}

// handleAPIKeysCreate returns the plaintext key exactly once.
func (a *API) handleAPIKeysCreate(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req apiKeyCreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusUnprocessableEntity, "name_required")
		return
	}

	plaintext, key, err := a.keys.Issue(r.Context(), claims.UserID, req.Name, req.ExpiresInDays)
	if errors.Is(err, auth.ErrInvalidExpiry) {
		writeError(w, http.StatusUnprocessableEntity, "invalid_expiry")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to issue api key")
		writeError(w, http.StatusInternalServerError, "key_generation_failed")
		return
	}

	a.publishAuditEvent(r, events.EventAuditAPIKeyCreate, events.Payload{
		"resource_type": "apikey",
		"resource_id":   key.ID,
		"name":          key.Name,
		"key_prefix":    key.KeyPrefix,
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"key":     plaintext,
		"api_key": toAPIKeyResponse(key, a.keys.Now()),
	})
}

func (a *API) handleAPIKeysRevoke(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	keyID := chi.URLParam(r, "keyID")
	err := a.keys.Revoke(r.Context(), keyID, claims.UserID)
	if errors.Is(err, auth.ErrAPIKeyNotFound) {
		writeError(w, http.StatusNotFound, "api_key_not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to revoke api key")
		writeError(w, http.StatusInternalServerError, "revoke_failed")
		return
	}

	a.publishAuditEvent(r, events.EventAuditAPIKeyRevoke, events.Payload{
		"resource_type": "apikey",
		"resource_id":   keyID,
	})

	w.WriteHeader(http.StatusNoContent)
}
