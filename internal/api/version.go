package api

import (
	"net/http"
	"time"

	"fleetcmd/internal/buildinfo"
)

// VersionHandler reports build metadata and the effective runtime mode.
func (s *Server) VersionHandler(w http.ResponseWriter, r *http.Request) {
	storeKind := "memory"
	if s.Cfg.DatabaseURL != "" {
		storeKind = "postgres"
	}
	writeJSON(w, 200, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"store":    storeKind,
			"authMode": s.Cfg.Auth.Mode,
		},
	})
}
