package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/relabs-tech/gps_tracker/internal/events"
	"github.com/relabs-tech/gps_tracker/internal/export"
	"github.com/relabs-tech/gps_tracker/internal/session"
	"github.com/relabs-tech/gps_tracker/internal/tracker"
)

// settingsSaver is the part of store.Store the web layer needs.
type settingsSaver interface {
	SaveSettings(session.Settings) error
}

// WebServer exposes the tracker over a JSON API and streams bus events to
// browsers over a websocket.
type WebServer struct {
	tracker   *tracker.Tracker
	bus       *events.Bus
	settings  settingsSaver // may be nil
	staticDir string        // empty disables static files
	logger    *zap.SugaredLogger
	upgrader  websocket.Upgrader
	now       func() time.Time
}

// NewWebServer wires the HTTP layer. saver persists settings changes and
// may be nil.
func NewWebServer(t *tracker.Tracker, bus *events.Bus, saver settingsSaver, staticDir string, logger *zap.SugaredLogger) *WebServer {
	return &WebServer{
		tracker:   t,
		bus:       bus,
		settings:  saver,
		staticDir: staticDir,
		logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // UI is served from the device itself
			},
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Handler returns the HTTP routes.
func (s *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/position", s.handlePosition)
	mux.HandleFunc("GET /api/session", s.handleActiveSession)
	mux.HandleFunc("POST /api/recording/start", s.handleStart)
	mux.HandleFunc("POST /api/recording/stop", s.handleStop)
	mux.HandleFunc("GET /api/waypoints", s.handleListWaypoints)
	mux.HandleFunc("POST /api/waypoints", s.handleAddWaypoint)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/history/{id}", s.handleHistorySession)
	mux.HandleFunc("GET /api/history/{id}/{format}", s.handleHistoryExport)
	mux.HandleFunc("GET /api/export/{format}", s.handleCurrentExport)
	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handlePutSettings)
	mux.HandleFunc("GET /ws/events", s.handleEventsWS)

	if s.staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.staticDir)))
	}
	return mux
}

// RunWeb serves h on addr until ctx is cancelled.
func RunWeb(ctx context.Context, addr string, h http.Handler, logger *zap.SugaredLogger) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.Infow("web: server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("web server: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web shutdown: %w", err)
	}
	return nil
}

func (s *WebServer) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warnw("web: json encode error", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *WebServer) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// commandStatus maps tracker command errors to HTTP status codes.
func commandStatus(err error) int {
	if errors.Is(err, session.ErrPrecondition) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *WebServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.tracker.Status())
}

func (s *WebServer) handlePosition(w http.ResponseWriter, _ *http.Request) {
	fix, ok := s.tracker.CurrentPosition()
	if !ok {
		s.writeError(w, http.StatusServiceUnavailable, errors.New("no data yet"))
		return
	}
	s.writeJSON(w, http.StatusOK, fix)
}

func (s *WebServer) handleActiveSession(w http.ResponseWriter, _ *http.Request) {
	active, ok := s.tracker.ActiveSession()
	if !ok {
		s.writeError(w, http.StatusNotFound, errors.New("not recording"))
		return
	}
	s.writeJSON(w, http.StatusOK, active)
}

func (s *WebServer) handleStart(w http.ResponseWriter, _ *http.Request) {
	started, err := s.tracker.StartRecording()
	if err != nil {
		s.writeError(w, commandStatus(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, started)
}

func (s *WebServer) handleStop(w http.ResponseWriter, _ *http.Request) {
	stopped, err := s.tracker.StopRecording()
	if err != nil {
		s.writeError(w, commandStatus(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, sessionSummaryOf(stopped))
}

type waypointRequest struct {
	Type string `json:"type"`
	Note string `json:"note"`
}

func (s *WebServer) handleListWaypoints(w http.ResponseWriter, _ *http.Request) {
	if active, ok := s.tracker.ActiveSession(); ok {
		s.writeJSON(w, http.StatusOK, nonNil(active.Waypoints))
		return
	}
	s.writeJSON(w, http.StatusOK, nonNil(s.tracker.IdleWaypoints()))
}

func (s *WebServer) handleAddWaypoint(w http.ResponseWriter, r *http.Request) {
	var req waypointRequest
	if err := decodeStrict(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	wp, err := s.tracker.AddWaypoint(req.Type, req.Note)
	if err != nil {
		s.writeError(w, commandStatus(err), err)
		return
	}
	s.writeJSON(w, http.StatusCreated, wp)
}

// sessionSummary is a finished session without its point list.
type sessionSummary struct {
	ID           string    `json:"id"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	TotalPoints  int       `json:"total_points"`
	Waypoints    int       `json:"waypoints"`
	DistanceKm   float64   `json:"distance_km"`
	MaxSpeedKmh  float64   `json:"max_speed_kmh"`
	AvgAccuracyM float64   `json:"avg_accuracy_m"`
}

func sessionSummaryOf(s session.Session) sessionSummary {
	return sessionSummary{
		ID:           s.ID,
		StartTime:    s.StartTime,
		EndTime:      s.EndTime,
		TotalPoints:  s.TotalPoints,
		Waypoints:    len(s.Waypoints),
		DistanceKm:   s.DistanceKm,
		MaxSpeedKmh:  s.MaxSpeedKmh,
		AvgAccuracyM: s.AvgAccuracyM,
	}
}

func (s *WebServer) handleHistory(w http.ResponseWriter, _ *http.Request) {
	history := s.tracker.History()
	out := make([]sessionSummary, 0, len(history))
	for _, h := range history {
		out = append(out, sessionSummaryOf(h))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *WebServer) handleHistorySession(w http.ResponseWriter, r *http.Request) {
	found, ok := s.tracker.Session(r.PathValue("id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("session %q not found", r.PathValue("id")))
		return
	}
	s.writeJSON(w, http.StatusOK, found)
}

func (s *WebServer) handleHistoryExport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	found, ok := s.tracker.Session(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("session %q not found", id))
		return
	}
	s.writeExport(w, r.PathValue("format"), "gps_track_"+id, export.FromSession(found))
}

func (s *WebServer) handleCurrentExport(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	s.writeExport(w, r.PathValue("format"), "gps_track_"+now.Format("20060102T150405Z"), s.currentTrack(now))
}

// currentTrack is what the UI shows: the session in progress, or else the
// most recent finished one, plus waypoints added while idle.
func (s *WebServer) currentTrack(now time.Time) export.Track {
	if active, ok := s.tracker.ActiveSession(); ok {
		return export.FromSession(active)
	}
	tr := export.Track{Name: export.DefaultTrackName, Time: now}
	if history := s.tracker.History(); len(history) > 0 {
		tr = export.FromSession(history[0])
	}
	tr.Waypoints = append(append([]session.Waypoint(nil), tr.Waypoints...), s.tracker.IdleWaypoints()...)
	return tr
}

func (s *WebServer) writeExport(w http.ResponseWriter, format, basename string, tr export.Track) {
	var (
		buf         bytes.Buffer
		err         error
		contentType string
	)
	switch format {
	case "gpx":
		contentType = "application/gpx+xml"
		err = export.WriteGPX(&buf, tr)
	case "geojson":
		contentType = "application/geo+json"
		err = export.WriteGeoJSON(&buf, tr)
	default:
		s.writeError(w, http.StatusNotFound, fmt.Errorf("unknown export format %q", format))
		return
	}
	if err != nil {
		s.logger.Errorw("web: export failed", "format", format, "error", err)
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", basename+"."+format))
	_, _ = w.Write(buf.Bytes())
}

func (s *WebServer) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.tracker.Settings())
}

func (s *WebServer) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	next := s.tracker.Settings()
	if err := decodeStrict(w, r, &next); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.tracker.SetSettings(next); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid settings: %w", err))
		return
	}
	if s.settings != nil {
		if err := s.settings.SaveSettings(next); err != nil {
			s.logger.Errorw("web: saving settings failed", "error", err)
			s.writeError(w, http.StatusInternalServerError, fmt.Errorf("save failed: %w", err))
			return
		}
	}
	s.logger.Infow("web: settings updated", "settings", next)
	s.writeJSON(w, http.StatusOK, next)
}

// decodeStrict decodes a small JSON body, rejecting unknown fields.
func decodeStrict(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// wsRequest is a command sent by a websocket client.
type wsRequest struct {
	Action string `json:"action"` // status, start_recording, stop_recording, add_waypoint
	Type   string `json:"type,omitempty"`
	Note   string `json:"note,omitempty"`
}

// wsResponse answers a wsRequest. Bus events are sent as events.Event.
type wsResponse struct {
	Type   string      `json:"type"` // always "response"
	Action string      `json:"action"`
	OK     bool        `json:"ok"`
	Error  string      `json:"error,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

// wsClient serializes writes to one connection.
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsClient) send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// handleEventsWS streams every bus event to the client and executes the
// commands it sends. Each connection holds its own bus subscription, torn
// down when the connection closes.
func (s *WebServer) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("web: websocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	sub := s.bus.Subscribe(64)
	defer s.bus.Unsubscribe(sub)

	client := &wsClient{conn: conn}
	if err := client.send(wsResponse{Type: "response", Action: "status", OK: true, Data: s.tracker.Status()}); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var req wsRequest
			if err := conn.ReadJSON(&req); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Debugw("web: websocket read error", "error", err)
				}
				return
			}
			if err := client.send(s.handleAction(req)); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case e, ok := <-sub.C:
			if !ok {
				return
			}
			if err := client.send(e); err != nil {
				s.logger.Debugw("web: websocket write error", "error", err)
				return
			}
		}
	}
}

func (s *WebServer) handleAction(req wsRequest) wsResponse {
	resp := wsResponse{Type: "response", Action: req.Action}
	var (
		data interface{}
		err  error
	)
	switch strings.TrimSpace(req.Action) {
	case "status":
		data = s.tracker.Status()
	case "start_recording":
		data, err = s.tracker.StartRecording()
	case "stop_recording":
		var stopped session.Session
		stopped, err = s.tracker.StopRecording()
		if err == nil {
			data = sessionSummaryOf(stopped)
		}
	case "add_waypoint":
		data, err = s.tracker.AddWaypoint(req.Type, req.Note)
	default:
		err = fmt.Errorf("unknown action %q", req.Action)
	}
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.OK = true
	resp.Data = data
	return resp
}
