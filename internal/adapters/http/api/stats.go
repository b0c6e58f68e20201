package api

import (
	"net/http"
)

// handleStats handles GET /stats requests.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	stats := map[string]any{}
	if s.deps.Stats != nil {
		stats = s.deps.Stats.GetStats()
	}
	writeJSON(w, http.StatusOK, stats)
}
