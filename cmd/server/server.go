package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"narrative-lab/internal/app"
	"narrative-lab/internal/config"
	"narrative-lab/internal/domain"
	"narrative-lab/internal/observability"
	"narrative-lab/internal/pipeline"
	"narrative-lab/internal/progress"
)

// BatchRunner runs one batch over symbols.
type BatchRunner interface {
	Run(ctx context.Context, symbols []string) (*domain.BatchSummary, error)
}

// ServerOptions configures NewServer.
type ServerOptions struct {
	Config    *config.Config
	Runner    BatchRunner
	Stores    *app.Stores   // required when OutputDir is set
	Hub       *progress.Hub // optional
	Metrics   *observability.Metrics
	Logger    zerolog.Logger
	OutputDir string
}

// Server schedules batches and exposes their state over HTTP.
type Server struct {
	cfg       *config.Config
	runner    BatchRunner
	stores    *app.Stores
	hub       *progress.Hub
	metrics   *observability.Metrics
	logger    zerolog.Logger
	outputDir string
	started   time.Time

	// State
	mu          sync.Mutex
	base        context.Context // lifetime context set by Start
	stopping    bool
	inflight    sync.WaitGroup // background runs started by goRun
	running     bool
	runs        int
	skipped     int
	lastRun     time.Time
	lastError   string
	lastSummary *domain.BatchSummary
}

// NewServer creates a server.
func NewServer(opts ServerOptions) *Server {
	m := opts.Metrics
	if m == nil {
		m = observability.DefaultMetrics
	}
	return &Server{
		cfg:       opts.Config,
		runner:    opts.Runner,
		stores:    opts.Stores,
		hub:       opts.Hub,
		metrics:   m,
		logger:    opts.Logger,
		outputDir: opts.OutputDir,
		started:   time.Now(),
	}
}

// Start registers the batch on the cron schedule and blocks until ctx is done.
// Cron, run-on-start and /run batches all finish before Start returns.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()

	c := cron.New()
	if _, err := c.AddFunc(s.cfg.Server.Schedule, func() { s.runBatch(ctx) }); err != nil {
		return err
	}
	c.Start()
	s.logger.Info().Str("schedule", s.cfg.Server.Schedule).Msg("scheduler started")

	if s.cfg.Server.RunOnStart {
		s.goRun(ctx)
	}

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("stopping scheduler")
			s.mu.Lock()
			s.stopping = true
			s.mu.Unlock()
			<-c.Stop().Done()
			s.inflight.Wait()
			return ctx.Err()
		case <-ticker.C:
			if s.hub != nil {
				s.metrics.ProgressClients.Set(float64(s.hub.Clients()))
			}
		}
	}
}

// goRun starts runBatch in the background unless the server is stopping.
func (s *Server) goRun(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return false
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.runBatch(ctx)
	}()
	return true
}

// runBatch runs one batch unless another is still in flight.
// Returns false when skipped.
func (s *Server) runBatch(ctx context.Context) bool {
	s.mu.Lock()
	if s.running {
		s.skipped++
		s.mu.Unlock()
		s.logger.Warn().Msg("batch already running, skipping")
		return false
	}
	s.running = true
	s.mu.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Batch.Timeout)
	defer cancel()

	summary, err := s.runner.Run(runCtx, s.cfg.Batch.Symbols)
	if err == nil && s.outputDir != "" && s.stores != nil {
		eng := s.cfg.Engine
		p := pipeline.NewReportPipeline(s.stores.Snapshots, s.stores.Outcomes, eng.LookbackDays, s.outputDir).
			WithSufficiencyChecker(pipeline.NewSufficiencyChecker(
				s.stores.Snapshots, s.stores.Prices, eng.LookbackDays, eng.Hysteresis+1, eng.LongHorizon,
			))
		if _, rerr := p.Run(runCtx, summary); rerr != nil {
			s.logger.Error().Err(rerr).Msg("report generation failed")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.runs++
	s.lastRun = time.Now()
	if err != nil {
		s.lastError = err.Error()
		s.logger.Error().Err(err).Msg("batch failed")
		return true
	}
	s.lastError = ""
	s.lastSummary = summary
	return true
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/run", s.handleRun)

	if s.hub != nil {
		mux.Handle("/ws", s.hub)
	}

	return mux
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status      string               `json:"status"`
	Uptime      string               `json:"uptime"`
	Schedule    string               `json:"schedule"`
	Running     bool                 `json:"running"`
	Runs        int                  `json:"runs"`
	Skipped     int                  `json:"skipped"`
	LastRun     *time.Time           `json:"last_run,omitempty"`
	LastError   string               `json:"last_error,omitempty"`
	LastSummary *domain.BatchSummary `json:"last_summary,omitempty"`
	Clients     int                  `json:"progress_clients"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:      "running",
		Uptime:      time.Since(s.started).Round(time.Second).String(),
		Schedule:    s.cfg.Server.Schedule,
		Running:     s.running,
		Runs:        s.runs,
		Skipped:     s.skipped,
		LastError:   s.lastError,
		LastSummary: s.lastSummary,
	}
	if !s.lastRun.IsZero() {
		last := s.lastRun
		resp.LastRun = &last
	}
	s.mu.Unlock()

	if s.hub != nil {
		resp.Clients = s.hub.Clients()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// handleRun triggers a batch in the background. 409 when one is already running.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	busy := s.running
	ctx := s.base
	s.mu.Unlock()
	if busy {
		http.Error(w, "batch already running", http.StatusConflict)
		return
	}
	if ctx == nil {
		ctx = context.WithoutCancel(r.Context())
	}

	if !s.goRun(ctx) {
		http.Error(w, "server stopping", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
