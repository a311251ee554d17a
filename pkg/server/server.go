// Package server provides the HTTP transport for the transfer-path service.
//
// The transport is deliberately thin: a single JSON endpoint accepts a
// transfer query, hands it to a fixed-size worker pool bounded by a
// capacity-limited channel, and returns the computed result (or a
// structured apperror) as JSON. The accept loop never blocks: once the
// queue is full, new requests are rejected immediately with
// apperror.CodeUnavailable rather than piling up against a slow backend.
//
// # Thread Safety
//
// Handler registered with the pool must be safe for concurrent use; the
// pool itself dispatches work to Workers goroutines reading from a single
// shared channel.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"pathfinder/pkg/apperror"
	"pathfinder/pkg/audit"
	"pathfinder/pkg/config"
	"pathfinder/pkg/logger"
	"pathfinder/pkg/metrics"
	"pathfinder/pkg/telemetry"
)

// Handler processes a single decoded request and returns a JSON-serializable
// response or an error. Implementations must be safe for concurrent use,
// since the pool dispatches requests from many worker goroutines at once.
type Handler func(ctx context.Context, method string, params json.RawMessage) (any, error)

// job is one unit of work queued for a pool worker.
type job struct {
	ctx     context.Context
	method  string
	params  json.RawMessage
	resultC chan jobResult
}

type jobResult struct {
	value any
	err   error
}

// Pool is a fixed-size goroutine pool reading from a capacity-bounded
// channel. Submit never waits for queue space: if the channel is full, it
// returns an apperror.CodeUnavailable error immediately so the caller can
// fail fast instead of queuing indefinitely.
type Pool struct {
	jobs    chan job
	handler Handler
	wg      sync.WaitGroup
}

// NewPool starts a Pool with the given number of workers and queue capacity,
// dispatching accepted jobs to handler.
func NewPool(workers, capacity int, handler Handler) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if capacity <= 0 {
		capacity = 1
	}

	p := &Pool{
		jobs:    make(chan job, capacity),
		handler: handler,
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		value, err := p.handler(j.ctx, j.method, j.params)
		j.resultC <- jobResult{value: value, err: err}
	}
}

// Submit enqueues a request and blocks until a worker produces a result or
// ctx is canceled. It returns an apperror.CodeUnavailable error
// immediately, without blocking, if the queue is already at capacity.
func (p *Pool) Submit(ctx context.Context, method string, params json.RawMessage) (any, error) {
	resultC := make(chan jobResult, 1)

	select {
	case p.jobs <- job{ctx: ctx, method: method, params: params, resultC: resultC}:
	default:
		return nil, apperror.New(apperror.CodeUnavailable, "request queue is full")
	}

	select {
	case res := <-resultC:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting new jobs and waits for in-flight workers to drain.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}

// Server wraps a net/http server exposing the JSON transfer-query endpoint
// over a bounded worker pool.
type Server struct {
	httpServer  *http.Server
	pool        *Pool
	config      *config.Config
	telemetry   *telemetry.Provider
	auditLogger audit.Logger
	ready       bool
	mu          sync.RWMutex
}

// rpcRequest is the wire shape of an incoming query.
type rpcRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// rpcResponse is the wire shape of a response, mirroring the error
// envelope produced by apperror.Error.
type rpcResponse struct {
	Result any    `json:"result,omitempty"`
	Error  *rpcErr `json:"error,omitempty"`
}

type rpcErr struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// New creates a Server dispatching requests to handler through a pool sized
// from cfg.Queue.
func New(cfg *config.Config, handler Handler) *Server {
	pool := NewPool(cfg.Queue.Workers, cfg.Queue.Capacity, handler)

	s := &Server{
		pool:   pool,
		config: cfg,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/query", s.handleQuery)
	mux.HandleFunc("/healthz", s.handleHealth)

	var handler http.Handler = mux
	if cfg.Tracing.Enabled {
		handler = telemetry.HTTPMiddleware(mux)
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return s
}

// SetAuditLogger attaches an audit logger used to record each query.
func (s *Server) SetAuditLogger(l audit.Logger) {
	s.auditLogger = l
}

// SetReady marks the server ready or not ready to serve traffic; main sets
// it once the startup snapshot load has been attempted.
func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

func (s *Server) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if !s.isReady() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK")) //nolint:errcheck // health endpoint, write failure is not actionable
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if !s.isReady() {
		writeError(w, http.StatusServiceUnavailable, apperror.ErrNotReady)
		return
	}

	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, apperror.New(apperror.CodeMalformedFormat, "invalid request body"))
		return
	}

	result, err := s.pool.Submit(r.Context(), req.Method, req.Params)

	duration := time.Since(start)
	m := metrics.Get()

	if err != nil {
		appErr := apperror.FromError(err)
		m.RecordHTTPRequest(req.Method, string(appErr.Code), duration)
		s.logAudit(r.Context(), req.Method, false, duration, appErr.Error())
		writeError(w, httpStatusFor(appErr), appErr)
		return
	}

	m.RecordHTTPRequest(req.Method, "ok", duration)
	s.logAudit(r.Context(), req.Method, true, duration, "")

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rpcResponse{Result: result})
}

func (s *Server) logAudit(ctx context.Context, method string, success bool, duration time.Duration, errMsg string) {
	if s.auditLogger == nil {
		return
	}

	outcome := audit.OutcomeSuccess
	if !success {
		outcome = audit.OutcomeFailure
	}

	entry := audit.NewEntry().
		Service(s.config.App.Name).
		Method(method).
		Action(audit.ActionRead).
		Outcome(outcome).
		Duration(duration).
		Build()

	if errMsg != "" {
		entry.ErrorMessage = errMsg
	}

	if err := s.auditLogger.Log(ctx, entry); err != nil {
		logger.Log.Warn("failed to log audit entry", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err *apperror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rpcResponse{
		Error: &rpcErr{Code: string(err.Code), Message: err.Message},
	})
}

func httpStatusFor(err *apperror.Error) int {
	switch err.Code {
	case apperror.CodeInvalidAddress, apperror.CodeInvalidAmount, apperror.CodeMalformedFormat:
		return http.StatusBadRequest
	case apperror.CodeUnknownMethod:
		return http.StatusNotFound
	case apperror.CodeNotReady, apperror.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Run starts the HTTP server and blocks until a shutdown signal arrives or
// the server fails.
func (s *Server) Run() error {
	ctx := context.Background()

	if s.config.Tracing.Enabled {
		tp, err := telemetry.Init(ctx, telemetry.Config{
			Enabled:     s.config.Tracing.Enabled,
			Endpoint:    s.config.Tracing.Endpoint,
			ServiceName: s.config.Tracing.ServiceName,
			Version:     s.config.App.Version,
			Environment: s.config.App.Environment,
			SampleRate:  s.config.Tracing.SampleRate,
		})
		if err != nil {
			logger.Log.Warn("failed to init telemetry", "error", err)
		} else {
			s.telemetry = tp
			logger.Log.Info("telemetry initialized", "endpoint", s.config.Tracing.Endpoint)
		}
	}

	if s.config.Metrics.Enabled {
		go func() {
			logger.Log.Info("starting metrics server", "port", s.config.Metrics.Port)
			if err := metrics.StartMetricsServer(s.config.Metrics.Port); err != nil {
				logger.Log.Error("metrics server failed", "error", err)
			}
		}()
	}

	lc := net.ListenConfig{}
	lis, err := lc.Listen(ctx, "tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("starting HTTP server",
			"service", s.config.App.Name,
			"addr", s.httpServer.Addr,
			"environment", s.config.App.Environment,
		)
		if err := s.httpServer.Serve(lis); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	if m := metrics.Get(); m != nil {
		m.SetServiceInfo(s.config.App.Version, s.config.App.Environment)
	}

	return s.waitForShutdown(errCh)
}

func (s *Server) waitForShutdown(errCh chan error) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Log.Info("received shutdown signal", "signal", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.HTTP.ShutdownTimeout)
	defer cancel()

	s.SetReady(false)

	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(ctx); err != nil {
			logger.Log.Warn("failed to shutdown telemetry", "error", err)
		}
	}

	if s.auditLogger != nil {
		if err := s.auditLogger.Close(); err != nil {
			logger.Log.Warn("failed to close audit logger", "error", err)
		}
	}

	s.pool.Close()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		logger.Log.Warn("forcing server stop", "error", err)
		return s.httpServer.Close()
	}

	logger.Log.Info("server stopped gracefully")
	return nil
}

// Stop closes the server immediately without waiting for in-flight requests.
func (s *Server) Stop() {
	_ = s.httpServer.Close()
	s.pool.Close()
}
