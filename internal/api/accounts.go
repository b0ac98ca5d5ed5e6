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
	"github.com/friendsincode/familyzen/internal/events"
	"github.com/friendsincode/familyzen/internal/models"
)

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	FamilyID    int64  `json:"family_id"`
	Role        string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role"`
	FamilyID    int64  `json:"family_id,omitempty"`
}

type tokenResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      userResponse `json:"user"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        string(models.NormalizeRole(u.Role)),
		FamilyID:    u.FamilyID,
	}
}

func (a *API) issueToken(u *models.User) (tokenResponse, error) {
	token, err := auth.Issue(a.jwtSecret, auth.ClaimsForUser(u), a.jwtTTL)
	if err != nil {
		return tokenResponse{}, err
	}
	return tokenResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(a.jwtTTL).UTC(),
		User:      toUserResponse(u),
	}, nil
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	// Self registration never grants admin.
	role := models.NormalizeRole(models.RoleName(req.Role))
	if role == models.RoleAdmin {
		role = models.RoleParent
	}

	user, err := auth.RegisterUser(a.db, auth.Registration{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Role:        role,
		FamilyID:    req.FamilyID,
	})
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email_taken")
		return
	case errors.Is(err, auth.ErrInvalidEmail):
		writeError(w, http.StatusUnprocessableEntity, "invalid_email")
		return
	case errors.Is(err, auth.ErrWeakPassword):
		writeErrorDetail(w, http.StatusUnprocessableEntity, "weak_password", map[string]any{
			"min_length": auth.MinPasswordLength,
		})
		return
	case err != nil:
		a.logger.Error().Err(err).Msg("failed to register user")
		writeError(w, http.StatusInternalServerError, "registration_failed")
		return
	}

	resp, err := a.issueToken(user)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to issue token")
		writeError(w, http.StatusInternalServerError, "token_failed")
		return
	}

	a.publishAuditEvent(r, events.EventUserRegistered, events.Payload{
		"user_id":       user.ID,
		"user_email":    user.Email,
		"family_id":     user.FamilyID,
		"resource_type": "user",
		"resource_id":   user.ID,
	})

	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	user, err := auth.Authenticate(a.db, req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("login failed")
		writeError(w, http.StatusInternalServerError, "login_failed")
		return
	}

	resp, err := a.issueToken(user)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to issue token")
		writeError(w, http.StatusInternalServerError, "token_failed")
		return
	}

	a.publishAuditEvent(r, events.EventUserLogin, events.Payload{
		"user_id":       user.ID,
		"user_email":    user.Email,
		"family_id":     user.FamilyID,
		"resource_type": "user",
		"resource_id":   user.ID,
	})

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var user models.User
	if err := a.db.WithContext(r.Context()).First(&user, "id = ?", claims.UserID).Error; err != nil {
		writeError(w, http.StatusNotFound, "user_not_found")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(&user))
}
