package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"planview/internal/config"
	"planview/internal/dispatch"
	appLog "planview/internal/log"
	"planview/internal/model"
	"planview/internal/provider"
	"planview/internal/render"
	"planview/internal/timeline"
)

// Loader produces the planning data the controller lays out.
type Loader interface {
	Load(ctx context.Context) provider.Snapshot
}

// Server exposes one timeline controller over HTTP. The controller is not
// safe for concurrent use, so every handler that touches it holds mu.
type Server struct {
	cfg        *config.Config
	mux        *http.ServeMux
	loader     Loader
	dispatcher dispatch.Dispatcher

	mu     sync.Mutex
	ctrl   *timeline.Controller
	status Status
}

// Status summarizes the last provider refresh.
type Status struct {
	LoadedAt time.Time `json:"loaded_at"`
	Ops      int       `json:"ops"`
	Sim      int       `json:"sim"`
	Markers  int       `json:"markers"`
	Errors   []string  `json:"errors,omitempty"`
}

// NewServer constructs a Server. A nil dispatcher logs activations only.
func NewServer(cfg *config.Config, loader Loader, d dispatch.Dispatcher) *Server {
	if d == nil {
		d = dispatch.LogDispatcher{}
	}
	s := &Server{
		cfg:        cfg,
		mux:        http.NewServeMux(),
		loader:     loader,
		dispatcher: d,
		ctrl:       timeline.NewController(cfg.TimelineOptions()),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="planview", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Serve listens on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Refresh reloads every provider, hands the data to the controller and
// re-renders the current view. Source failures are reported in the status;
// whatever loaded is still shown.
func (s *Server) Refresh(ctx context.Context) Status {
	snap := s.loader.Load(ctx)

	errs := make([]string, 0, len(snap.Errors))
	for _, err := range snap.Errors {
		appLog.Error("provider refresh failed", err)
		errs = append(errs, err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctrl.SetData(snap.Ops, snap.Sim, snap.Markers)
	s.status = Status{
		LoadedAt: snap.LoadedAt,
		Ops:      len(snap.Ops),
		Sim:      len(snap.Sim),
		Markers:  len(snap.Markers),
		Errors:   errs,
	}

	if _, err := s.rerenderLocked(); err != nil && !errors.Is(err, timeline.ErrEmptyInput) {
		appLog.Error("re-render after refresh failed", err)
	}

	appLog.Info("providers refreshed", "ops", len(snap.Ops), "sim", len(snap.Sim),
		"markers", len(snap.Markers), "errors", len(errs))
	return s.status
}

// rerenderLocked repeats the current view with the controller's data.
func (s *Server) rerenderLocked() (model.LayoutResult, error) {
	if s.ctrl.State() == timeline.StateDay {
		return s.ctrl.SelectDay(s.ctrl.Day())
	}
	return s.ctrl.RenderFull(s.ctrl.Partition())
}

// currentLocked returns the last result, rendering the full OPS view on
// first use.
func (s *Server) currentLocked() (model.LayoutResult, error) {
	if res, ok := s.ctrl.Current(); ok {
		return res, nil
	}
	return s.ctrl.RenderFull(model.EventTypeOps)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/layout", s.handleLayout)
	s.mux.HandleFunc("GET /api/legend", s.handleLegend)
	s.mux.HandleFunc("POST /api/legend/reset", s.handleLegendReset)
	s.mux.HandleFunc("POST /api/full", s.handleFull)
	s.mux.HandleFunc("POST /api/toggle", s.transition(func(c *timeline.Controller) (model.LayoutResult, error) {
		return c.Toggle()
	}))
	s.mux.HandleFunc("POST /api/back", s.transition(func(c *timeline.Controller) (model.LayoutResult, error) {
		return c.Back()
	}))
	s.mux.HandleFunc("POST /api/today", s.transition(func(c *timeline.Controller) (model.LayoutResult, error) {
		return c.Today()
	}))
	s.mux.HandleFunc("POST /api/day", s.handleDay)
	s.mux.HandleFunc("POST /api/reflow", s.handleReflow)
	s.mux.HandleFunc("POST /api/activate", s.handleActivate)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /timeline.svg", s.handleSVG)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	st := s.status
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleLayout(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	res, err := s.currentLocked()
	s.mu.Unlock()
	if err != nil {
		writeTimelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLegend(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	legend := s.ctrl.Legend()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, legend)
}

func (s *Server) handleLegendReset(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.ctrl.ResetLegend()
	legend := s.ctrl.Legend()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, legend)
}

// transition adapts a controller transition into a handler that returns
// the new LayoutResult.
func (s *Server) transition(fn func(*timeline.Controller) (model.LayoutResult, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s.mu.Lock()
		res, err := fn(s.ctrl)
		s.mu.Unlock()
		if err != nil {
			writeTimelineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// handleFull renders the full view.
//
// POST /api/full?type=OPS|SIM
//   - type: partition to show; defaults to the active one.
func (s *Server) handleFull(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("type")
	if raw != "" && string(model.ParseEventType(raw)) != strings.ToUpper(strings.TrimSpace(raw)) {
		writeError(w, http.StatusBadRequest, "type must be OPS or SIM")
		return
	}

	s.transition(func(c *timeline.Controller) (model.LayoutResult, error) {
		p := c.Partition()
		if raw != "" {
			p = model.ParseEventType(raw)
		}
		return c.RenderFull(p)
	})(w, r)
}

// handleDay shows the hourly view of one day.
//
// POST /api/day?date=YYYY-MM-DD
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	day, err := time.ParseInLocation(time.DateOnly, r.URL.Query().Get("date"), s.cfg.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	s.transition(func(c *timeline.Controller) (model.LayoutResult, error) {
		return c.SelectDay(day)
	})(w, r)
}

// handleReflow rescales the current view.
//
// POST /api/reflow?pixels_per_day=N
func (s *Server) handleReflow(w http.ResponseWriter, r *http.Request) {
	ppd, err := strconv.ParseFloat(r.URL.Query().Get("pixels_per_day"), 64)
	if err != nil || ppd <= 0 {
		writeError(w, http.StatusBadRequest, "pixels_per_day must be a positive number")
		return
	}
	s.transition(func(c *timeline.Controller) (model.LayoutResult, error) {
		return c.Reflow(ppd)
	})(w, r)
}

// handleActivate looks up the click payload of a placed event and hands it
// to the dispatcher.
//
// POST /api/activate?id=<placement id>
func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	s.mu.Lock()
	payload, err := s.ctrl.Activate(id)
	var eventID string
	if err == nil {
		eventID = s.eventIDLocked(id)
	}
	s.mu.Unlock()
	if err != nil {
		writeTimelineError(w, err)
		return
	}

	a := dispatch.Prepare(id, eventID, payload)
	if err := s.dispatcher.Dispatch(r.Context(), a); err != nil {
		appLog.Error("activation dispatch failed", err, "event_id", eventID, "delivery", a.DeliveryID)
		writeError(w, http.StatusBadGateway, "dispatch failed")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) eventIDLocked(placementID string) string {
	res, _ := s.ctrl.Current()
	for _, p := range res.Placed {
		if p.PlacementID == placementID {
			return p.EventID
		}
	}
	return ""
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Refresh(r.Context()))
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	res, err := s.currentLocked()
	loadedAt := s.status.LoadedAt
	s.mu.Unlock()
	if err != nil {
		writeTimelineError(w, err)
		return
	}

	page, err := render.HTML(res, render.PageData{Title: "Planning", LoadedAt: loadedAt}, render.Options{})
	if err != nil {
		appLog.Error("failed to render page", err)
		writeError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

func (s *Server) handleSVG(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	res, err := s.currentLocked()
	s.mu.Unlock()
	if err != nil {
		writeTimelineError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(render.SVG(res, render.Options{})))
}

// handlePreview serves the last captured PNG from disk. http.ServeFile
// answers 404 when no capture has run yet.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, s.cfg.Capture.OutputPath)
}

// writeTimelineError maps controller errors onto HTTP statuses.
func writeTimelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, timeline.ErrEmptyInput):
		writeError(w, http.StatusServiceUnavailable, "no planning data for this view")
	case errors.Is(err, timeline.ErrNotRendered):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, timeline.ErrUnknownPlacement):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		appLog.Error("timeline request failed", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
