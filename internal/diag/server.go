// Package diag serves scheduler diagnostics over HTTP: Prometheus metrics,
// per-worker statistics and a health probe.
package diag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/fyh275905/sofa-sub006/core"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 30 * time.Second
)

// StatsProvider is implemented by *core.Scheduler.
type StatsProvider interface {
	Stats() core.SchedulerStats
}

// Server is the diagnostics HTTP server.
type Server struct {
	router   *chi.Mux
	gatherer prometheus.Gatherer
	logger   core.Logger

	mu         sync.RWMutex
	schedulers map[string]StatsProvider

	httpServer *http.Server
	errCh      chan error
}

// NewServer builds the router. gatherer backs /metrics; nil selects the
// default Prometheus registry.
func NewServer(gatherer prometheus.Gatherer, logger core.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = core.NewNoOpLogger()
	}
	s := &Server{
		router:     chi.NewRouter(),
		gatherer:   gatherer,
		logger:     logger,
		schedulers: make(map[string]StatsProvider),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	s.router.Route("/debug/workers", func(r chi.Router) {
		r.Get("/", s.handleListSchedulers)
		r.Get("/{name}", s.handleGetScheduler)
	})
}

// Router returns the chi router.
func (s *Server) Router() *chi.Mux { return s.router }

// AddScheduler exposes p under name in /debug/workers.
func (s *Server) AddScheduler(name string, p StatsProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedulers[name] = p
}

// Start listens on addr and serves in the background. It returns the bound
// address, which differs from addr when addr uses port 0.
func (s *Server) Start(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("diag: listen %s: %w", addr, err)
	}
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}
	s.errCh = make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errCh <- err
		}
		close(s.errCh)
	}()
	s.logger.Info("diagnostics server listening", core.F("addr", ln.Addr().String()))
	return ln.Addr().String(), nil
}

// Shutdown stops a server started with Start.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("diag: shutdown: %w", err)
	}
	s.httpServer = nil
	return <-s.errCh
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListSchedulers(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	names := make([]string, 0, len(s.schedulers))
	for name := range s.schedulers {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)

	out := make([]schedulerView, 0, len(names))
	for _, name := range names {
		if v, ok := s.view(name); ok {
			out = append(out, v)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetScheduler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	v, ok := s.view(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("scheduler %q not found", name)})
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type schedulerView struct {
	Name        string       `json:"name"`
	ThreadCount int          `json:"thread_count"`
	Initialized bool         `json:"initialized"`
	Queued      int          `json:"queued"`
	Executed    uint64       `json:"executed"`
	Stolen      uint64       `json:"stolen"`
	Workers     []workerView `json:"workers"`
}

type workerView struct {
	Index      int    `json:"index"`
	Name       string `json:"name"`
	State      string `json:"state"`
	OSThreadID int    `json:"os_thread_id"`
	Queued     int    `json:"queued"`
	Executed   uint64 `json:"executed"`
	Stolen     uint64 `json:"stolen"`
	IdleWaits  uint64 `json:"idle_waits"`
	Failed     uint64 `json:"failed"`
	Panicked   uint64 `json:"panicked"`
}

func (s *Server) view(name string) (schedulerView, bool) {
	s.mu.RLock()
	p, ok := s.schedulers[name]
	s.mu.RUnlock()
	if !ok {
		return schedulerView{}, false
	}

	st := p.Stats()
	v := schedulerView{
		Name:        name,
		ThreadCount: st.ThreadCount,
		Initialized: st.Initialized,
		Queued:      st.Queued,
		Executed:    st.Executed(),
		Stolen:      st.Stolen(),
		Workers:     make([]workerView, 0, len(st.Workers)),
	}
	for _, w := range st.Workers {
		v.Workers = append(v.Workers, workerView{
			Index:      w.Index,
			Name:       w.Name,
			State:      w.State.String(),
			OSThreadID: w.OSThreadID,
			Queued:     w.Queued,
			Executed:   w.Executed,
			Stolen:     w.Stolen,
			IdleWaits:  w.IdleWaits,
			Failed:     w.Failed,
			Panicked:   w.Panicked,
		})
	}
	return v, true
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Debug("request",
			core.F("method", r.Method),
			core.F("path", r.URL.Path),
			core.F("status", ww.Status()),
			core.F("duration_ms", time.Since(start).Milliseconds()),
			core.F("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
