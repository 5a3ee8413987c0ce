// Package api is the operator HTTP surface: health, event history, job and
// trigger listings, metrics, live events over WebSocket, and role-protected
// commands that are queued into the tick loop.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/AaronLay10/SentientJobs/internal/events"
	"github.com/AaronLay10/SentientJobs/internal/jobs"
	"github.com/AaronLay10/SentientJobs/internal/sim"
	"github.com/AaronLay10/SentientJobs/internal/storage"
	"github.com/AaronLay10/SentientJobs/internal/trigger"
	"github.com/AaronLay10/SentientJobs/internal/version"
)

// Engine is the simulation as seen by the API. *sim.Simulation satisfies it.
type Engine interface {
	Do(ctx context.Context, c sim.Command) (sim.Result, error)
	Snapshot() sim.Snapshot
	Catalog() *jobs.Catalog
	Triggers() *trigger.Scheduler
}

// Server serves the operator API.
type Server struct {
	engine  Engine
	journal storage.Journal
	metrics *Metrics
	timeout time.Duration
}

// NewServer creates a server. journal and metrics may be nil.
func NewServer(engine Engine, journal storage.Journal, metrics *Metrics) *Server {
	return &Server{
		engine:  engine,
		journal: journal,
		metrics: metrics,
		timeout: 5 * time.Second,
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", uiHandler)
	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler)
	r.Get("/events", eventsHandler)
	r.Get("/events/history", s.handleHistory)
	r.Get("/ws/events", wsEventsHandler)
	r.Get("/jobs", s.handleJobs)
	r.Get("/entities", s.handleEntities)
	r.Get("/catalog", s.handleCatalog)
	r.Get("/catalog/{name}", s.handleTemplate)
	r.Get("/triggers", s.handleTriggers)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(RequireAnyRole)
		r.Post("/jobs/start", s.handleStart)
		r.Post("/jobs/assign", s.handleAssign)
		r.Post("/jobs/{entity}/jump", s.handleJump)
		r.Post("/jobs/{entity}/{action}", s.handleTransition)
		r.Post("/triggers/{id}/{action}", s.handleTrigger)
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireAdmin)
		r.Post("/catalog", s.handleRegister)
		r.Delete("/catalog/{name}", s.handleRemove)
		r.Post("/entities", s.handleSpawn)
		r.Post("/triggers/activate-all", s.simpleCommand(sim.OpActivateTriggers))
		r.Post("/triggers/deactivate-all", s.simpleCommand(sim.OpDeactivateTriggers))
		r.Post("/engine/active", s.handleSetActive)
		r.Post("/engine/skip-hour", s.simpleCommand(sim.OpSkipHour))
	})

	return r
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"ts"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   "jobengine",
		Version:   version.Version,
		Hostname:  host,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func eventsHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, events.Snapshot())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		respondError(w, http.StatusServiceUnavailable, "no event journal configured")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}
	rows, err := s.journal.Query(limit, r.URL.Query().Get("event"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []storage.EventRow{}
	}
	respondJSON(w, http.StatusOK, rows)
}

// JobsResponse lists bound jobs as of the last tick.
type JobsResponse struct {
	Tick   uint64          `json:"tick"`
	Time   time.Time       `json:"time"`
	Active bool            `json:"active"`
	Jobs   []jobs.Snapshot `json:"jobs"`
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Snapshot()
	respondJSON(w, http.StatusOK, JobsResponse{Tick: snap.Tick, Time: snap.Time, Active: snap.Active, Jobs: snap.Jobs})
}

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.engine.Snapshot().Entities)
}

// CatalogEntry summarizes one registered template.
type CatalogEntry struct {
	ID     jobs.JobID `json:"id"`
	Label  string     `json:"label"`
	Tasks  int        `json:"tasks"`
	OnFail string     `json:"on_fail"`
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	list := s.engine.Catalog().List()
	out := make([]CatalogEntry, 0, len(list))
	for _, tpl := range list {
		out = append(out, CatalogEntry{
			ID:     tpl.ID,
			Label:  tpl.Label,
			Tasks:  len(tpl.Tasks.Nodes),
			OnFail: tpl.OnFail.String(),
		})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, ok := s.engine.Catalog().LookupName(chi.URLParam(r, "name"))
	if !ok {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	respondJSON(w, http.StatusOK, jobs.NewDocument(tpl))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	format, err := bodyFormat(r)
	if err != nil {
		respondError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	tpl, err := jobs.DecodeTemplate(body, format)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.Catalog().Register(tpl); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, CatalogEntry{
		ID:     tpl.ID,
		Label:  tpl.Label,
		Tasks:  len(tpl.Tasks.Nodes),
		OnFail: tpl.OnFail.String(),
	})
}

func bodyFormat(r *http.Request) (jobs.Format, error) {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return jobs.FormatJSON, nil
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return "", err
	}
	switch mt {
	case "application/json":
		return jobs.FormatJSON, nil
	case "application/yaml", "application/x-yaml", "text/yaml":
		return jobs.FormatYAML, nil
	case "application/toml", "text/toml":
		return jobs.FormatTOML, nil
	}
	return "", fmt.Errorf("unsupported content type %q", mt)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !s.engine.Catalog().Remove(jobs.IdentityFromString(name)) {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	respondJSON(w, http.StatusOK, OperatorResponse{OK: true})
}

func (s *Server) handleTriggers(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.engine.Triggers().List())
}

type OperatorRequest struct {
	Job    string        `json:"job"`
	Entity jobs.EntityID `json:"entity"`
	Task   *jobs.TaskID  `json:"task"`
	Active *bool         `json:"active"`
}

type OperatorResponse struct {
	OK     bool          `json:"ok"`
	Entity jobs.EntityID `json:"entity,omitempty"`
	Error  string        `json:"error,omitempty"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	if req.Job == "" {
		respondError(w, http.StatusBadRequest, "job required")
		return
	}
	s.run(w, r, sim.Command{Op: sim.OpStart, Job: req.Job})
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	if req.Job == "" || req.Entity == 0 {
		respondError(w, http.StatusBadRequest, "job and entity required")
		return
	}
	s.run(w, r, sim.Command{Op: sim.OpAssign, Job: req.Job, Entity: req.Entity})
}

var transitions = map[string]sim.Op{
	"advance": sim.OpAdvance,
	"fail":    sim.OpFail,
	"pause":   sim.OpPause,
	"unpause": sim.OpUnpause,
	"cancel":  sim.OpCancel,
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	ent, ok := entityParam(w, r)
	if !ok {
		return
	}
	op, ok := transitions[chi.URLParam(r, "action")]
	if !ok {
		respondError(w, http.StatusNotFound, "unknown action")
		return
	}
	s.run(w, r, sim.Command{Op: op, Entity: ent})
}

func (s *Server) handleJump(w http.ResponseWriter, r *http.Request) {
	ent, ok := entityParam(w, r)
	if !ok {
		return
	}
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	if req.Task == nil {
		respondError(w, http.StatusBadRequest, "task required")
		return
	}
	s.run(w, r, sim.Command{Op: sim.OpJump, Entity: ent, Task: *req.Task})
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var op sim.Op
	switch chi.URLParam(r, "action") {
	case "activate":
		op = sim.OpActivateTrigger
	case "deactivate":
		op = sim.OpDeactivateTrigger
	default:
		respondError(w, http.StatusNotFound, "unknown action")
		return
	}
	s.run(w, r, sim.Command{Op: op, Trigger: chi.URLParam(r, "id")})
}

func (s *Server) handleSpawn(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, sim.Command{Op: sim.OpSpawn})
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	if req.Active == nil {
		respondError(w, http.StatusBadRequest, "active required")
		return
	}
	s.run(w, r, sim.Command{Op: sim.OpSetActive, Active: *req.Active})
}

func (s *Server) simpleCommand(op sim.Op) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.run(w, r, sim.Command{Op: op})
	}
}

// run queues c and waits for the tick loop to apply it.
func (s *Server) run(w http.ResponseWriter, r *http.Request, c sim.Command) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	res, err := s.engine.Do(ctx, c)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, OperatorResponse{OK: true, Entity: res.Entity})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, sim.ErrInvalidCommand):
		return http.StatusBadRequest
	case errors.Is(err, jobs.ErrTemplateNotFound),
		errors.Is(err, jobs.ErrEntityNotBound),
		errors.Is(err, sim.ErrUnknownEntity),
		errors.Is(err, trigger.ErrUnknownTrigger):
		return http.StatusNotFound
	case errors.Is(err, jobs.ErrInvalidJumpTarget),
		errors.Is(err, jobs.ErrNodeNotFound),
		errors.Is(err, jobs.ErrUnexpectedTask):
		return http.StatusConflict
	case errors.Is(err, sim.ErrQueueFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func entityParam(w http.ResponseWriter, r *http.Request) (jobs.EntityID, bool) {
	n, err := strconv.ParseUint(chi.URLParam(r, "entity"), 10, 64)
	if err != nil || n == 0 {
		respondError(w, http.StatusBadRequest, "invalid entity id")
		return 0, false
	}
	return jobs.EntityID(n), true
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (OperatorRequest, bool) {
	var req OperatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return req, false
	}
	return req, true
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, OperatorResponse{OK: false, Error: msg})
}

// ListenAndServe serves the API on port until ctx is cancelled, using TLS
// when it is configured.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	tlsCfg, err := LoadTLSConfig()
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		TLSConfig:         tlsCfg,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if tlsCfg != nil {
			log.Printf("API listening on %s (TLS)", srv.Addr)
			errCh <- srv.ListenAndServeTLS("", "")
			return
		}
		log.Printf("API listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		events.CloseAllSubscribers()
		return srv.Shutdown(shutdownCtx)
	}
}
