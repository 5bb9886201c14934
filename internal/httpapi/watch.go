package httpapi

import (
	"encoding/json"
	"net/http"
)

// watcherSelectionRequest replaces the watched door set.
type watcherSelectionRequest struct {
	Doors []string `json:"doors"`
}

// handleWatcherStatus reports whether the watcher is running and which
// doors it watches.
func (s *Server) handleWatcherStatus(w http.ResponseWriter, _ *http.Request) {
	if s.watcher == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"enabled": false,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled": true,
		"doors":   s.watcher.Selected(),
	})
}

// handleWatcherSelection replaces the watched door set. An empty list
// falls back to the default selection.
func (s *Server) handleWatcherSelection(w http.ResponseWriter, r *http.Request) {
	if s.watcher == nil {
		writeUnavailable(w, "watcher disabled")
		return
	}

	var req watcherSelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	s.watcher.SetSelection(req.Doors)
	writeJSON(w, http.StatusOK, map[string]any{
		"doors": s.watcher.Selected(),
	})
}

// handleWatcherCycle requests an immediate face-match cycle. The cycle
// runs asynchronously; results arrive on the event stream.
func (s *Server) handleWatcherCycle(w http.ResponseWriter, r *http.Request) {
	if s.watcher == nil {
		writeUnavailable(w, "watcher disabled")
		return
	}

	s.watcher.Trigger(r.Context())
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "cycle requested",
	})
}
