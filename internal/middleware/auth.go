// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"context"
	"net/http"
	"strings"
	"unicode"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

const (
	// PrincipalKey is the context key for the caller principal.
	PrincipalKey contextKey = "principal"

	// PrincipalHeader carries the identity resolved by the identity
	// provider's gateway in front of the API.
	PrincipalHeader = "X-User-Id"

	maxPrincipalLength = 256
)

// LoadPrincipal reads the caller principal from PrincipalHeader and stores
// it in the request context. Downstream handlers can access it via
// PrincipalFromCtx(). This middleware does NOT enforce authentication; a
// missing or malformed header leaves the request anonymous.
func LoadPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := strings.TrimSpace(r.Header.Get(PrincipalHeader)); validPrincipal(p) {
			r = r.WithContext(context.WithValue(r.Context(), PrincipalKey, p))
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePrincipal answers 401 when no principal was loaded.
// Must be applied after LoadPrincipal in the middleware chain.
func RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if PrincipalFromCtx(r.Context()) == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// PrincipalFromCtx extracts the caller principal from the request context.
// Returns "" if the request is anonymous.
func PrincipalFromCtx(ctx context.Context) string {
	p, _ := ctx.Value(PrincipalKey).(string)
	return p
}

// WithPrincipal returns a copy of ctx carrying principal.
func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, PrincipalKey, principal)
}

func validPrincipal(p string) bool {
	if p == "" || len(p) > maxPrincipalLength {
		return false
	}
	for _, r := range p {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
