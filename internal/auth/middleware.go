/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auth

import (
	"errors"
	"net/http"
	"strings"

	"gorm.io/gorm"
)

// APIKeyHeader carries programmatic access keys.
const APIKeyHeader = "X-API-Key"

// ErrNoCredentials is returned when a request carries neither an API key nor
// a bearer token.
var ErrNoCredentials = errors.New("no credentials")

// Authenticator resolves request credentials into Claims. API keys need a
// database; bearer tokens need a signing secret. Either may be absent, which
// disables that scheme.
type Authenticator struct {
	keys   *KeyStore
	secret []byte
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(db *gorm.DB, jwtSecret []byte) *Authenticator {
	a := &Authenticator{secret: jwtSecret}
	if db != nil {
		a.keys = NewKeyStore(db)
	}
	return a
}

// Authenticate checks the X-API-Key header first, then the Authorization
// bearer token. Tokens in the query string are never read.
func (a *Authenticator) Authenticate(r *http.Request) (*Claims, error) {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		if a.keys == nil {
			return nil, ErrAPIKeyNotFound
		}
		return a.keys.Validate(r.Context(), key)
	}

	token := bearerToken(r)
	if token == "" || len(a.secret) == 0 {
		return nil, ErrNoCredentials
	}
	return Parse(a.secret, token)
}

// Require rejects unauthenticated requests with 401 and stores the caller's
// claims in the request context otherwise.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.Authenticate(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeAuthError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// RequireRole lets the request through when the caller holds any of roles.
// It must run after Require.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			for _, role := range roles {
				if claims.HasRole(role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeAuthError(w, http.StatusForbidden, "insufficient_role")
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + code + `"}`))
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
