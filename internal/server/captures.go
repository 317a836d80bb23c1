package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vidnote/vidnote/internal/archive"
	"github.com/vidnote/vidnote/internal/auth"
	"github.com/vidnote/vidnote/internal/capture"
	"github.com/vidnote/vidnote/internal/httputil"
)

type captureResponse struct {
	capture.Capture
	Archive *archive.Record `json:"archive,omitempty"`
}

// handleCapture grabs the current frame of the mounted player. With
// ?archive=true the frame is also stored for the caller.
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	keep := r.URL.Query().Get("archive") == "true"
	if keep && s.archive == nil {
		httputil.WriteError(w, http.StatusBadRequest, "capture archive is not configured")
		return
	}

	h := s.sessions.Registry().Current()
	if h == nil {
		httputil.WriteError(w, http.StatusConflict, "no player mounted")
		return
	}
	resp := captureResponse{Capture: h.CaptureFrame(r.Context())}

	if keep {
		rec, err := s.archive.Save(r.Context(), auth.UserIDFromContext(r.Context()), h.Source(), resp.Capture)
		if err != nil {
			s.logger.Error("archiving capture failed", "capture", resp.ID, "error", err)
			httputil.WriteError(w, http.StatusBadGateway, "could not archive capture")
			return
		}
		resp.Archive = &rec
		if s.notifier != nil {
			go s.notifyArchived(context.WithoutCancel(r.Context()), auth.UserIDFromContext(r.Context()), rec)
		}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

const notifyTimeout = 30 * time.Second

func (s *Server) notifyArchived(ctx context.Context, userID string, rec archive.Record) {
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := s.notifier.CaptureArchived(ctx, userID, rec); err != nil {
		s.logger.Warn("capture notification failed", "capture", rec.ID, "error", err)
	}
}

func (s *Server) handleListCaptures(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			httputil.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := s.archive.List(r.Context(), auth.UserIDFromContext(r.Context()), limit)
	if err != nil {
		s.logger.Error("listing captures failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not list captures")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, records)
}

func (s *Server) handleDeleteCapture(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid capture id")
		return
	}

	err := s.archive.Delete(r.Context(), auth.UserIDFromContext(r.Context()), id)
	if errors.Is(err, archive.ErrNotFound) {
		httputil.WriteError(w, http.StatusNotFound, "capture not found")
		return
	}
	if err != nil {
		s.logger.Error("deleting capture failed", "capture", id, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not delete capture")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
