/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/familyzen/internal/planner"
)

// PlanTimeLayout renders event start times as local ISO-8601 without an offset.
const PlanTimeLayout = "2006-01-02T15:04:05"

type planItemResponse struct {
	ID          string `json:"id"`
	At          string `json:"at"`
	Title       string `json:"title"`
	DurationMin int    `json:"duration_min"`
}

type planMetaResponse struct {
	Version string `json:"version"`
}

type suggestPlanResponse struct {
	FamilyID string             `json:"familyId"`
	Received planner.Input      `json:"received"`
	Plan     []planItemResponse `json:"plan"`
	Meta     planMetaResponse   `json:"meta"`
}

func toSuggestPlanResponse(plan *planner.Plan) suggestPlanResponse {
	items := make([]planItemResponse, len(plan.Events))
	for i, ev := range plan.Events {
		items[i] = planItemResponse{
			ID:          ev.ID,
			At:          ev.StartsAt.Format(PlanTimeLayout),
			Title:       ev.Title,
			DurationMin: ev.DurationMinutes,
		}
	}
	return suggestPlanResponse{
		FamilyID: plan.FamilyID,
		Received: plan.Received,
		Plan:     items,
		Meta:     planMetaResponse{Version: plan.Version},
	}
}

// handleSuggestPlan generates today's plan. Every body field is optional and an
// empty body means all defaults.
func (a *API) handleSuggestPlan(w http.ResponseWriter, r *http.Request) {
	familyID, err := strconv.ParseInt(chi.URLParam(r, "familyID"), 10, 64)
	if err != nil {
		writeErrorDetail(w, http.StatusUnprocessableEntity, "invalid_family_id", map[string]any{
			"value": chi.URLParam(r, "familyID"),
		})
		return
	}

	var req planner.Request
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeErrorDetail(w, http.StatusUnprocessableEntity, "invalid_request_body", map[string]any{
			"detail": err.Error(),
		})
		return
	}

	plan, err := a.planner.Suggest(r.Context(), strconv.FormatInt(familyID, 10), req)
	if err != nil {
		var invalid *planner.InvalidTimeFormatError
		if errors.As(err, &invalid) {
			writeErrorDetail(w, http.StatusUnprocessableEntity, "invalid_time_format", map[string]any{
				"field": invalid.Field,
				"value": invalid.Value,
			})
			return
		}
		a.logger.Error().Err(err).Int64("family_id", familyID).Msg("plan suggestion failed")
		writeError(w, http.StatusInternalServerError, "plan_failed")
		return
	}

	writeJSON(w, http.StatusOK, toSuggestPlanResponse(plan))
}

// handlePlanCacheInvalidate drops every cached plan of a family (admin only).
func (a *API) handlePlanCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	familyID, err := strconv.ParseInt(chi.URLParam(r, "familyID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_family_id")
		return
	}

	err = a.planner.InvalidateFamily(r.Context(), strconv.FormatInt(familyID, 10))
	switch {
	case errors.Is(err, planner.ErrNoInvalidation):
		writeError(w, http.StatusServiceUnavailable, "plan_cache_unavailable")
	case err != nil:
		a.logger.Error().Err(err).Int64("family_id", familyID).Msg("plan cache invalidation failed")
		writeError(w, http.StatusInternalServerError, "invalidate_failed")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}
