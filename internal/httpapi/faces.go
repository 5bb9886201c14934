package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smolnikov/domofon-core/internal/face"
)

// addFaceRequest is the enrollment payload. The image is a base64
// encoded camera frame or photo.
type addFaceRequest struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

// handleListFaces returns the registered face names.
func (s *Server) handleListFaces(w http.ResponseWriter, _ *http.Request) {
	if s.faces == nil {
		writeUnavailable(w, "face registry not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"available": s.faces.Available(),
		"names":     s.faces.Names(),
	})
}

// handleAddFace enrolls a face under a name. An existing name is replaced.
func (s *Server) handleAddFace(w http.ResponseWriter, r *http.Request) {
	if s.faces == nil {
		writeUnavailable(w, "face registry not configured")
		return
	}

	var req addFaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}
	image, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		writeBadRequest(w, "image must be base64 encoded")
		return
	}

	if err := s.faces.Add(r.Context(), req.Name, image); err != nil {
		switch {
		case errors.Is(err, face.ErrEncoderUnavailable):
			writeUnavailable(w, "face encoder not installed")
		case errors.Is(err, face.ErrEmptyImage):
			writeBadRequest(w, "image is empty")
		case errors.Is(err, face.ErrNoFaceFound):
			writeError(w, http.StatusUnprocessableEntity, ErrCodeBadRequest, "no face found in image")
		default:
			s.logger.Error("face enrollment failed", "name", req.Name, "error", err)
			writeInternalError(w, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"name": req.Name,
	})
}

// handleRemoveFace deletes a face by name.
func (s *Server) handleRemoveFace(w http.ResponseWriter, r *http.Request) {
	if s.faces == nil {
		writeUnavailable(w, "face registry not configured")
		return
	}

	name := chi.URLParam(r, "name")
	if err := s.faces.Remove(r.Context(), name); err != nil {
		if errors.Is(err, face.ErrFaceNotFound) {
			writeNotFound(w, "unknown face: "+name)
			return
		}
		s.logger.Error("face removal failed", "name", name, "error", err)
		writeInternalError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"removed": name,
	})
}
