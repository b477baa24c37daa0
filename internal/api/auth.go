// Package api implements HTTP handlers and helpers for the fleet dispatch service.
package api

import (
	"net/http"
	"strings"
)

type Principal struct {
	Role    string // admin, dispatcher, mechanic
	Subject string
}

// getPrincipal extracts the caller's role from a bearer token or headers.
// - If Authorization: Bearer is present, uses the configured verifier (dev/hmac).
// - Else falls back to X-Role for local development, defaulting to admin.
func (s *Server) getPrincipal(r *http.Request) Principal {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
		tok := strings.TrimSpace(authz[len("Bearer "):])
		if pr, err := s.Auth.Verify(tok); err == nil {
			return Principal{Role: pr.Role, Subject: pr.Subject}
		}
	}
	role := r.Header.Get("X-Role")
	if role == "" {
		role = "admin"
	}
	return Principal{Role: strings.ToLower(role), Subject: r.Header.Get("X-Subject")}
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == "admin" }

// CanDispatch reports whether the principal may create and drive trips.
func (p Principal) CanDispatch() bool { return p.Role == "admin" || p.Role == "dispatcher" }

// CanMaintain reports whether the principal may open and close maintenance.
func (p Principal) CanMaintain() bool { return p.Role == "admin" || p.Role == "mechanic" }
