// Package httpserver exposes one editing workspace over a JSON API, so a
// browser front end can drive the engine.
package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/arjun/pinpoint/internal/engine"
	"github.com/arjun/pinpoint/internal/geometry"
	"github.com/arjun/pinpoint/internal/hotspot"
	"github.com/arjun/pinpoint/internal/imageio"
	"github.com/arjun/pinpoint/internal/session"
	"github.com/arjun/pinpoint/pkg/models"
)

const maxUploadBytes = 20 << 20 // 20 MiB

type Server struct {
	engine  *engine.Engine
	fetcher *imageio.Fetcher
	log     *slog.Logger
	mux     *http.ServeMux
}

func New(eng *engine.Engine, fetcher *imageio.Fetcher, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if fetcher == nil {
		fetcher = imageio.NewFetcher()
	}
	s := &Server{
		engine:  eng,
		fetcher: fetcher,
		log:     log,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("POST /api/image", s.handleLoadImage)
	s.mux.HandleFunc("POST /api/hotspots", s.handleAddHotspot)
	s.mux.HandleFunc("DELETE /api/hotspots/{id}", s.handleRemoveHotspot)
	s.mux.HandleFunc("PATCH /api/hotspots/{id}", s.handleUpdatePrompt)
	s.mux.HandleFunc("PUT /api/hotspots/{id}/position", s.handleMoveHotspot)
	s.mux.HandleFunc("POST /api/hotspots/{id}/reference", s.handleUploadReference)
	s.mux.HandleFunc("DELETE /api/hotspots/{id}/reference", s.handleDetachReference)
	s.mux.HandleFunc("POST /api/drag/begin", s.handleDragBegin)
	s.mux.HandleFunc("POST /api/drag/move", s.handleDragMove)
	s.mux.HandleFunc("POST /api/drag/end", s.handleDragEnd)
	s.mux.HandleFunc("DELETE /api/drag", s.handleDragCancel)
	s.mux.HandleFunc("POST /api/process", s.handleProcess)
	s.mux.HandleFunc("POST /api/revert", s.handleRevert)
	s.mux.HandleFunc("POST /api/reset", s.handleReset)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	s.log.Info("request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.State())
}

type loadImageRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleLoadImage(w http.ResponseWriter, r *http.Request) {
	var req loadImageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, errors.New("url is required"))
		return
	}

	data, err := s.fetcher.Fetch(r.Context(), req.URL)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	if err := s.engine.LoadImage(data, req.URL); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.State())
}

type addHotspotRequest struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (s *Server) handleAddHotspot(w http.ResponseWriter, r *http.Request) {
	var req addHotspotRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	h, err := s.engine.AddHotspotAt(
		geometry.Point{X: req.X, Y: req.Y},
		geometry.Bounds{Width: req.Width, Height: req.Height},
	)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, h)
}

func (s *Server) handleRemoveHotspot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.RemoveHotspot(id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updatePromptRequest struct {
	Prompt string `json:"prompt"`
}

func (s *Server) handleUpdatePrompt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req updatePromptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.UpdatePrompt(id, req.Prompt); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type moveHotspotRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (s *Server) handleMoveHotspot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req moveHotspotRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h, err := s.engine.MoveHotspot(id, req.X, req.Y)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

type dragBeginRequest struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

func (s *Server) handleDragBegin(w http.ResponseWriter, r *http.Request) {
	var req dragBeginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.BeginDrag(req.ID, geometry.Point{X: req.X, Y: req.Y}); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type dragMoveRequest struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type dragMoveResponse struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Active bool    `json:"active"`
}

func (s *Server) handleDragMove(w http.ResponseWriter, r *http.Request) {
	var req dragMoveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	pos, active := s.engine.MoveDrag(
		geometry.Point{X: req.X, Y: req.Y},
		geometry.Bounds{Width: req.Width, Height: req.Height},
	)
	writeJSON(w, http.StatusOK, dragMoveResponse{X: pos.X, Y: pos.Y, Active: active})
}

func (s *Server) handleDragEnd(w http.ResponseWriter, r *http.Request) {
	var req dragMoveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h, err := s.engine.EndDrag(
		geometry.Point{X: req.X, Y: req.Y},
		geometry.Bounds{Width: req.Width, Height: req.Height},
	)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleDragCancel(w http.ResponseWriter, r *http.Request) {
	s.engine.CancelDrag()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUploadReference(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("file part is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ref, err := s.engine.UploadReference(r.Context(), id, header.Filename, data)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, ref)
}

func (s *Server) handleDetachReference(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.DetachReference(id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	entry, err := s.engine.Submit(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"processed": entry,
		"state":     s.engine.State(),
	})
}

type revertRequest struct {
	Index int `json:"index"`
}

func (s *Server) handleRevert(w http.ResponseWriter, r *http.Request) {
	var req revertRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	entry, err := s.engine.Revert(r.Context(), req.Index)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"current": entry,
		"state":   s.engine.State(),
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Reset(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.State())
}

// statusFor maps engine errors onto HTTP statuses: conflicts for busy or
// exhausted budgets, unprocessable for rejected placements, not found for
// unknown hotspots.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrBusy), errors.Is(err, engine.ErrStale):
		return http.StatusConflict
	case errors.Is(err, session.ErrLimitReached):
		return http.StatusConflict
	case errors.Is(err, models.ErrHotspotNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrNoBaseImage),
		errors.Is(err, engine.ErrNoDrag),
		errors.Is(err, hotspot.ErrInvalidBounds),
		errors.Is(err, hotspot.ErrTooCloseToEdge),
		errors.Is(err, hotspot.ErrTooCloseToHotspot),
		errors.Is(err, session.ErrInvalidHistoryIndex):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func pathID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		return 0, fmt.Errorf("invalid hotspot id %q", r.PathValue("id"))
	}
	return id, nil
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
