package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"narrative-lab/internal/config"
	"narrative-lab/internal/domain"
	"narrative-lab/internal/observability"
)

// blockingRunner blocks each Run until release is closed, or until ctx is
// done unless ignoreCtx is set.
type blockingRunner struct {
	mu        sync.Mutex
	calls     int
	ignoreCtx bool
	started   chan struct{}
	release   chan struct{}
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (r *blockingRunner) Run(ctx context.Context, symbols []string) (*domain.BatchSummary, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	r.started <- struct{}{}
	if r.ignoreCtx {
		<-r.release
	} else {
		select {
		case <-r.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	now := time.Now()
	return domain.NewBatchSummary([]domain.SymbolResult{{Symbol: "TEST", Success: true, OutcomesCount: 1}}, now, now), nil
}

func (r *blockingRunner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func newTestServer(runner BatchRunner) *Server {
	return NewServer(ServerOptions{
		Config:  config.Default(),
		Runner:  runner,
		Metrics: observability.NewMetrics("server_test", prometheus.NewRegistry()),
		Logger:  zerolog.Nop(),
	})
}

func getStatus(t *testing.T, h http.Handler) StatusResponse {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestServer_Health(t *testing.T) {
	h := newTestServer(newBlockingRunner()).Routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestServer_OverlapGuard(t *testing.T) {
	runner := newBlockingRunner()
	srv := newTestServer(runner)
	ctx := context.Background()

	done := make(chan bool)
	go func() { done <- srv.runBatch(ctx) }()
	<-runner.started

	// A second trigger while the first is in flight is skipped.
	assert.False(t, srv.runBatch(ctx))

	close(runner.release)
	assert.True(t, <-done)
	assert.Equal(t, 1, runner.Calls())

	status := getStatus(t, srv.Routes())
	assert.False(t, status.Running)
	assert.Equal(t, 1, status.Runs)
	assert.Equal(t, 1, status.Skipped)
	require.NotNil(t, status.LastRun)
	require.NotNil(t, status.LastSummary)
	assert.Equal(t, 1, status.LastSummary.TotalOutcomes)
	assert.Empty(t, status.LastError)
}

func TestServer_RunEndpoint(t *testing.T) {
	runner := newBlockingRunner()
	srv := newTestServer(runner)
	h := srv.Routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/run", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	<-runner.started

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	assert.True(t, getStatus(t, h).Running)

	close(runner.release)
	assert.Eventually(t, func() bool { return !getStatus(t, h).Running }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_StartRejectsBadSchedule(t *testing.T) {
	srv := newTestServer(newBlockingRunner())
	srv.cfg.Server.Schedule = "not a schedule"

	err := srv.Start(context.Background())
	assert.Error(t, err)
}

func TestServer_StartStopsOnCancel(t *testing.T) {
	runner := newBlockingRunner()
	close(runner.release)
	srv := newTestServer(runner)
	srv.cfg.Server.RunOnStart = true

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	<-runner.started
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestServer_StartWaitsForBackgroundRuns(t *testing.T) {
	runner := newBlockingRunner()
	runner.ignoreCtx = true
	srv := newTestServer(runner)
	srv.cfg.Server.RunOnStart = true

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	<-runner.started
	cancel()

	select {
	case <-errCh:
		t.Fatal("Start returned while a run-on-start batch was in flight")
	case <-time.After(200 * time.Millisecond):
	}

	// Manual triggers are refused once shutdown began.
	require.Eventually(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return srv.stopping
	}, 2*time.Second, 10*time.Millisecond)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", nil))
	assert.Equal(t, http.StatusConflict, rec.Code, "batch still running")

	close(runner.release)
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after the batch finished")
	}
	assert.Equal(t, 1, runner.Calls())

	rec = httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
