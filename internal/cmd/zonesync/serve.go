package zonesync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"bunny-dns-sync/internal/fingerprint"
	"bunny-dns-sync/internal/logging"
)

type passFunc func(ctx context.Context) (*fingerprint.RunReport, error)

// statusServer runs detection passes one at a time and reports on them.
type statusServer struct {
	run      passFunc
	interval time.Duration
	log      logging.Logger

	// base is the context background passes started over HTTP run under.
	base context.Context
	wg   sync.WaitGroup

	mu      sync.RWMutex
	running bool
	runs    int
	lastRun time.Time
	last    *fingerprint.RunReport
	lastErr string
}

func newStatusServer(base context.Context, run passFunc, interval time.Duration, log logging.Logger) *statusServer {
	if log == nil {
		log = logging.Discard()
	}
	return &statusServer{run: run, interval: interval, log: log, base: base}
}

func (s *statusServer) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/run", s.handleRun).Methods(http.MethodPost)
	return r
}

// begin marks a pass as running. It returns false when one already is.
func (s *statusServer) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

// pass runs one detection pass; begin must have returned true.
func (s *statusServer) pass(ctx context.Context) {
	report, err := s.run(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	if errors.Is(err, errSkipped) {
		return
	}
	s.runs++
	s.lastRun = time.Now().UTC()
	s.last = report
	s.lastErr = ""
	if err == nil && report != nil {
		err = report.Err()
	}
	if err != nil {
		s.lastErr = err.Error()
		s.log.Error(ctx, "detection pass failed", "error", err)
	}
}

// loop runs a pass on every tick until ctx is done.
func (s *statusServer) loop(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if s.begin() {
			s.pass(ctx)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *statusServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *statusServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status := map[string]any{
		"running":  s.running,
		"runs":     s.runs,
		"interval": s.interval.String(),
	}
	if !s.lastRun.IsZero() {
		status["last_run"] = s.lastRun
	}
	if s.last != nil {
		status["last_report"] = s.last
	}
	if s.lastErr != "" {
		status["last_error"] = s.lastErr
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *statusServer) handleRun(w http.ResponseWriter, r *http.Request) {
	if !s.begin() {
		writeJSON(w, http.StatusConflict, map[string]string{
			"status":  "running",
			"message": "Detection pass already in progress",
		})
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.pass(s.base)
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"message": "Detection pass started",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, true)
	if err != nil {
		return err
	}
	defer rt.close(cmd.Context())
	if err := rt.cfg.RequireZoneDir(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := newStatusServer(ctx, func(ctx context.Context) (*fingerprint.RunReport, error) {
		return detectOnce(ctx, rt)
	}, rt.cfg.Interval, rt.log)

	srv := &http.Server{
		Addr:         rt.cfg.ListenAddr,
		Handler:      s.router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rt.log.Info(gctx, "status API listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if s.interval > 0 {
		g.Go(func() error {
			rt.log.Info(gctx, "periodic detection enabled", "interval", s.interval.String())
			return s.loop(gctx)
		})
	}

	err = g.Wait()
	s.wg.Wait()
	return err
}
