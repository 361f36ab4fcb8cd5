package api

import (
	"net/http"
	"time"

	"lnskit/internal/buildinfo"
)

// DebugHandler reports build information and the non-secret parts of the
// running configuration.
func (s *Server) DebugHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"addr":              s.cfg.Addr,
			"maxConcurrentRuns": s.cfg.MaxConcurrentRuns,
			"rateLimit":         s.cfg.RateLimit,
			"burst":             s.cfg.Burst,
			"activeRuns":        s.runner.Active(),
		},
	})
}
