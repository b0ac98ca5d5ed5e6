/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/familyzen/internal/audit"
	"github.com/friendsincode/familyzen/internal/auth"
	"github.com/friendsincode/familyzen/internal/models"
)

const maxAuditPageSize = 1000

type auditLogResponse struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	UserID       *string        `json:"user_id,omitempty"`
	UserEmail    string         `json:"user_email,omitempty"`
	FamilyID     *int64         `json:"family_id,omitempty"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
}

func newAuditLogResponse(entry models.AuditLog) auditLogResponse {
	return auditLogResponse{
		ID:           entry.ID,
		Timestamp:    entry.Timestamp,
		UserID:       entry.UserID,
		UserEmail:    entry.UserEmail,
		FamilyID:     entry.FamilyID,
		Action:       string(entry.Action),
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Details:      entry.Details,
		IPAddress:    entry.IPAddress,
		UserAgent:    entry.UserAgent,
	}
}

// handleAuditList serves GET /audit for admins.
func (a *API) handleAuditList(w http.ResponseWriter, r *http.Request) {
	filters, bad := parseAuditFilters(r.URL.Query(), true)
	if bad != "" {
		writeError(w, http.StatusBadRequest, "invalid_"+bad)
		return
	}
	a.writeAuditPage(w, r, filters, nil)
}

// handleFamilyAuditList serves GET /families/{familyID}/audit to members of
// that family and to admins.
func (a *API) handleFamilyAuditList(w http.ResponseWriter, r *http.Request) {
	familyID, err := strconv.ParseInt(chi.URLParam(r, "familyID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_family_id")
		return
	}

	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if claims.FamilyID != familyID && !claims.HasRole(string(models.RoleAdmin)) {
		writeError(w, http.StatusForbidden, "not_family_member")
		return
	}

	filters, bad := parseAuditFilters(r.URL.Query(), false)
	if bad != "" {
		writeError(w, http.StatusBadRequest, "invalid_"+bad)
		return
	}
	filters.FamilyID = &familyID
	a.writeAuditPage(w, r, filters, map[string]any{"family_id": familyID})
}

func (a *API) writeAuditPage(w http.ResponseWriter, r *http.Request, filters audit.QueryFilters, extra map[string]any) {
	entries, total, err := a.auditSvc.Query(r.Context(), filters)
	if err != nil {
		a.logger.Error().Err(err).Msg("audit query failed")
		writeError(w, http.StatusInternalServerError, "query_failed")
		return
	}

	page := make([]auditLogResponse, 0, len(entries))
	for _, entry := range entries {
		page = append(page, newAuditLogResponse(entry))
	}

	body := map[string]any{
		"audit_logs": page,
		"total":      total,
		"limit":      filters.Limit,
		"offset":     filters.Offset,
	}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

// parseAuditFilters reads the audit query parameters. On a malformed value
// it returns the offending parameter name.
func parseAuditFilters(q url.Values, allowFamily bool) (audit.QueryFilters, string) {
	filters := audit.QueryFilters{Limit: audit.DefaultQueryLimit}

	if v := q.Get("user_id"); v != "" {
		filters.UserID = &v
	}
	if v := q.Get("action"); v != "" {
		action := models.AuditAction(v)
		filters.Action = &action
	}
	if v := q.Get("family_id"); v != "" && allowFamily {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filters, "family_id"
		}
		filters.FamilyID = &id
	}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{
		{"start_time", &filters.StartTime},
		{"end_time", &filters.EndTime},
	} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filters, p.name
		}
		*p.dst = &t
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return filters, "limit"
		}
		filters.Limit = min(n, maxAuditPageSize)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filters, "offset"
		}
		filters.Offset = n
	}
	return filters, ""
}
