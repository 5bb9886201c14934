package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smolnikov/domofon-core/internal/dispatch"
	"github.com/smolnikov/domofon-core/internal/relay"
)

// doorView is the JSON shape of one catalog entry.
type doorView struct {
	UID         string `json:"uid"`
	Address     string `json:"address"`
	MAC         string `json:"mac"`
	DoorID      int    `json:"door_id"`
	IsMain      bool   `json:"is_main"`
	HasVideo    bool   `json:"has_video"`
	ImageURL    string `json:"image_url,omitempty"`
	EntranceUID string `json:"entrance_uid,omitempty"`
	PorchNum    string `json:"porch_num,omitempty"`
}

func toDoorView(rec relay.Record) doorView {
	return doorView{
		UID:         rec.UID,
		Address:     rec.Address,
		MAC:         rec.MAC,
		DoorID:      rec.DoorID,
		IsMain:      rec.IsMain,
		HasVideo:    rec.HasVideo,
		ImageURL:    rec.ImageURL,
		EntranceUID: rec.EntranceUID,
		PorchNum:    rec.PorchNum,
	}
}

// handleListDoors returns the current door catalog.
func (s *Server) handleListDoors(w http.ResponseWriter, _ *http.Request) {
	records := s.catalog.Doors()
	views := make([]doorView, len(records))
	for i, rec := range records {
		views[i] = toDoorView(rec)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"doors": views,
		"count": len(views),
	})
}

// handleRefreshDoors re-fetches the catalog from the cloud.
func (s *Server) handleRefreshDoors(w http.ResponseWriter, r *http.Request) {
	records, err := s.catalog.Refresh(r.Context())
	if err != nil {
		s.logger.Error("door catalog refresh failed", "error", err)
		writeUpstreamError(w, "catalog refresh failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(records),
	})
}

// handleOpenDoor opens one door by catalog uid.
func (s *Server) handleOpenDoor(w http.ResponseWriter, r *http.Request) {
	if s.opener == nil {
		writeUnavailable(w, "door commands not configured")
		return
	}

	uid := chi.URLParam(r, "uid")
	rec, err := s.catalog.Get(uid)
	if err != nil {
		if errors.Is(err, relay.ErrNotFound) {
			writeNotFound(w, "unknown door: "+uid)
			return
		}
		writeInternalError(w, err.Error())
		return
	}

	if err := s.opener.OpenDoor(r.Context(), rec.MAC, rec.DoorID, rec.OpenLink); err != nil {
		var cmdErr *dispatch.CommandError
		if errors.As(err, &cmdErr) {
			s.logger.Error("door open failed", "uid", uid, "error", err)
			writeUpstreamError(w, cmdErr.Error())
			return
		}
		writeInternalError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "opened",
		"uid":    uid,
	})
}
