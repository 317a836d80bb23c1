package server

import (
	"errors"
	"image"
	"net/http"
	"strings"

	"github.com/vidnote/vidnote/internal/auth"
	"github.com/vidnote/vidnote/internal/control"
	"github.com/vidnote/vidnote/internal/httputil"
	"github.com/vidnote/vidnote/internal/player"
	"github.com/vidnote/vidnote/internal/session"
	"github.com/vidnote/vidnote/internal/validate"
)

const maxCommandBody = 4 * 1024

type mountRequest struct {
	Source string `json:"source"`
	Title  string `json:"title"`
}

type timeBody struct {
	Time float64 `json:"time"`
}

type reportRequest struct {
	Time    float64 `json:"time"`
	Playing bool    `json:"playing"`
}

type boundsBody struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type containerRequest struct {
	Markup   string     `json:"markup"`
	Bounds   boundsBody `json:"bounds"`
	Isolated bool       `json:"isolated"`
}

// writeSessionError maps player state errors to responses. It reports false
// for errors it does not know.
func writeSessionError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, session.ErrNotMounted), errors.Is(err, control.ErrNoHandle):
		httputil.WriteError(w, http.StatusConflict, "no player mounted")
	case errors.Is(err, session.ErrNotEmbed):
		httputil.WriteError(w, http.StatusConflict, "mounted player is not an embed")
	case errors.Is(err, player.ErrNotReady):
		httputil.WriteError(w, http.StatusConflict, "player not ready")
	default:
		return false
	}
	return true
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	info, ok := s.sessions.Current()
	if !ok {
		httputil.WriteError(w, http.StatusNotFound, "no player mounted")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, info)
}

func (s *Server) handleMount(w http.ResponseWriter, r *http.Request) {
	var req mountRequest
	if err := httputil.DecodeJSON(w, r, maxCommandBody, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Source = strings.TrimSpace(req.Source)
	req.Title = strings.TrimSpace(req.Title)
	if msg := validate.Source(req.Source); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validate.Title(req.Title); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	info, err := s.sessions.Mount(r.Context(), session.MountRequest{
		UserID: auth.UserIDFromContext(r.Context()),
		Source: req.Source,
		Title:  req.Title,
	})
	if errors.Is(err, session.ErrLocalDisabled) {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("mount failed", "source", req.Source, "error", err)
		httputil.WriteError(w, http.StatusUnprocessableEntity, "could not open source")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, info)
}

func (s *Server) handleUnmount(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Unmount() {
		httputil.WriteError(w, http.StatusNotFound, "no player mounted")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	info, err := s.sessions.MarkReady()
	if err != nil {
		if !writeSessionError(w, err) {
			httputil.WriteError(w, http.StatusInternalServerError, "could not mark player ready")
		}
		return
	}
	httputil.WriteJSON(w, http.StatusOK, info)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := httputil.DecodeJSON(w, r, maxCommandBody, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := validate.SeekTime(req.Time); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if err := s.sessions.Report(req.Time, req.Playing); err != nil {
		if !writeSessionError(w, err) {
			httputil.WriteError(w, http.StatusInternalServerError, "could not record position")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleContainer(w http.ResponseWriter, r *http.Request) {
	var req containerRequest
	if err := httputil.DecodeJSON(w, r, validate.MaxMarkupLength+maxCommandBody, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := validate.Markup(req.Markup); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if req.Bounds.Width < 0 || req.Bounds.Height < 0 {
		httputil.WriteError(w, http.StatusBadRequest, "bounds must have a non-negative size")
		return
	}
	b := req.Bounds
	bounds := image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
	if err := s.sessions.UpdateContainer(req.Markup, bounds, req.Isolated); err != nil {
		if !writeSessionError(w, err) {
			httputil.WriteError(w, http.StatusInternalServerError, "could not update container")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Seek, play and pause are no-ops when nothing is mounted or ready.

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req timeBody
	if err := httputil.DecodeJSON(w, r, maxCommandBody, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := validate.SeekTime(req.Time); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	s.sessions.Registry().SeekTo(r.Context(), req.Time)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	s.sessions.Registry().Play()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.sessions.Registry().Pause()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTime(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, timeBody{Time: s.sessions.Registry().CurrentTime()})
}
