/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/friendsincode/familyzen/internal/auth"
	"github.com/friendsincode/familyzen/internal/devices"
)

type fcmTokenRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

type deviceTokenResponse struct {
	ID         string    `json:"id"`
	Token      string    `json:"token"`
	Platform   string    `json:"platform,omitempty"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// handleRegisterFCMToken stores a push token for the caller and answers 204.
func (a *API) handleRegisterFCMToken(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req fcmTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_request_body")
		return
	}

	if _, _, err := a.devices.Register(r.Context(), claims.UserID, req.Token, req.Platform); err != nil {
		if errors.Is(err, devices.ErrInvalidToken) {
			writeErrorDetail(w, http.StatusUnprocessableEntity, "invalid_token", map[string]any{
				"min_length": devices.MinTokenLength,
				"max_length": devices.MaxTokenLength,
			})
			return
		}
		a.logger.Error().Err(err).Str("user_id", claims.UserID).Msg("failed to register device token")
		writeError(w, http.StatusInternalServerError, "register_failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRemoveFCMToken(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req fcmTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_request_body")
		return
	}

	err := a.devices.Remove(r.Context(), claims.UserID, req.Token)
	switch {
	case errors.Is(err, devices.ErrTokenNotFound):
		writeError(w, http.StatusNotFound, "token_not_found")
	case err != nil:
		a.logger.Error().Err(err).Str("user_id", claims.UserID).Msg("failed to remove device token")
		writeError(w, http.StatusInternalServerError, "remove_failed")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (a *API) handleListFCMTokens(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	tokens, err := a.devices.ListForUser(r.Context(), claims.UserID)
	if err != nil {
		a.logger.Error().Err(err).Str("user_id", claims.UserID).Msg("failed to list device tokens")
		writeError(w, http.StatusInternalServerError, "list_failed")
		return
	}

	out := make([]deviceTokenResponse, len(tokens))
	for i, t := range tokens {
		out[i] = deviceTokenResponse{
			ID:         t.ID,
			Token:      t.Token,
			Platform:   t.Platform,
			LastSeenAt: t.LastSeenAt,
			CreatedAt:  t.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": out})
}
