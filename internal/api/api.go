/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/familyzen/internal/audit"
	"github.com/friendsincode/familyzen/internal/auth"
	"github.com/friendsincode/familyzen/internal/devices"
	"github.com/friendsincode/familyzen/internal/events"
	"github.com/friendsincode/familyzen/internal/logbuffer"
	"github.com/friendsincode/familyzen/internal/logging"
	"github.com/friendsincode/familyzen/internal/models"
	"github.com/friendsincode/familyzen/internal/planner"
	"github.com/friendsincode/familyzen/internal/version"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// API exposes HTTP handlers.
type API struct {
	db        *gorm.DB
	jwtSecret []byte
	jwtTTL    time.Duration
	authn     *auth.Authenticator
	keys      *auth.KeyStore
	planner   *planner.Service
	devices   *devices.Store
	auditSvc  *audit.Service
	bus       *events.Bus
	logBuffer *logbuffer.Buffer
	logger    zerolog.Logger
}

// Deps groups the services the handlers depend on.
type Deps struct {
	DB        *gorm.DB
	JWTSecret []byte
	JWTTTL    time.Duration
	Planner   *planner.Service
	Devices   *devices.Store
	Audit     *audit.Service
	Bus       *events.Bus
	LogBuffer *logbuffer.Buffer
}

// New creates the API router wrapper.
func New(deps Deps, logger zerolog.Logger) *API {
	ttl := deps.JWTTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &API{
		db:        deps.DB,
		jwtSecret: deps.JWTSecret,
		jwtTTL:    ttl,
		authn:     auth.NewAuthenticator(deps.DB, deps.JWTSecret),
		keys:      auth.NewKeyStore(deps.DB),
		planner:   deps.Planner,
		devices:   deps.Devices,
		auditSvc:  deps.Audit,
		bus:       deps.Bus,
		logBuffer: deps.LogBuffer,
		logger:    logging.Component(logger, "api"),
	}
}

// Routes registers all HTTP routes on r.
func (a *API) Routes(r chi.Router) {
	r.Get("/", a.handleRoot)
	r.Get("/health", a.handleHealth)
	r.Get("/healthz", a.handleHealth)

	r.Post("/families/{familyID}/assistant/suggest-plan", a.handleSuggestPlan)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", a.handleRegister)
		r.Post("/login", a.handleLogin)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(a.authn.Require)

		pr.Route("/users/me", func(r chi.Router) {
			r.Get("/", a.handleMe)

			r.Post("/fcm-token", a.handleRegisterFCMToken)
			r.Delete("/fcm-token", a.handleRemoveFCMToken)
			r.Get("/fcm-tokens", a.handleListFCMTokens)

			r.Route("/api-keys", func(r chi.Router) {
				r.Get("/", a.handleAPIKeysList)
				r.Post("/", a.handleAPIKeysCreate)
				r.Delete("/{keyID}", a.handleAPIKeysRevoke)
			})
		})

		pr.Get("/families/{familyID}/audit", a.handleFamilyAuditList)
		pr.With(requireAdmin).Get("/audit", a.handleAuditList)

		pr.Route("/admin/logs", func(r chi.Router) {
			r.Use(requireAdmin)
			r.Get("/", a.handleSystemLogs)
			r.Get("/stats", a.handleSystemLogStats)
		})
		pr.With(requireAdmin).Delete("/admin/plan-cache/{familyID}", a.handlePlanCacheInvalidate)
	})
}

func (a *API) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "service": "api"})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{
		"status":  "ok",
		"version": version.Version,
	}

	if a.db != nil {
		if sqlDB, err := a.db.DB(); err != nil || sqlDB.PingContext(r.Context()) != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["database"] = "unavailable"
		}
	}

	writeJSON(w, status, body)
}

var requireAdmin = auth.RequireRole(string(models.RoleAdmin))

// errEmptyBody is returned by decodeJSON when the request has no body.
var errEmptyBody = errors.New("empty body")

// decodeJSON reads a bounded JSON body into dest. An empty or whitespace-only
// body yields errEmptyBody and leaves dest untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(data)) == "" {
		return errEmptyBody
	}
	return json.Unmarshal(data, dest)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeErrorDetail writes an error code with extra fields.
func writeErrorDetail(w http.ResponseWriter, status int, code string, detail map[string]any) {
	body := map[string]any{"error": code}
	for k, v := range detail {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// auditContext extracts user and request info for audit logging.
func (a *API) auditContext(r *http.Request) events.Payload {
	payload := events.Payload{
		"ip_address": r.RemoteAddr,
		"user_agent": r.UserAgent(),
	}

	if claims, ok := auth.ClaimsFromContext(r.Context()); ok && claims != nil {
		payload["user_id"] = claims.UserID
		if claims.Email != "" {
			payload["user_email"] = claims.Email
		}
		if claims.FamilyID != 0 {
			payload["family_id"] = claims.FamilyID
		}
	}

	return payload
}

// publishAuditEvent publishes an audit event with user and request context.
func (a *API) publishAuditEvent(r *http.Request, eventType events.EventType, data events.Payload) {
	if a.bus == nil {
		return
	}
	payload := a.auditContext(r)
	for k, v := range data {
		payload[k] = v
	}
	a.bus.Publish(eventType, payload)
}
