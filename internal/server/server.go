// Package server exposes the sentiment classifier over HTTP: a health
// probe, a JSON prediction endpoint, and Prometheus metrics, wired into a
// net/http.Server with graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/go-sentiment/internal/classify"
	"github.com/example/go-sentiment/internal/config"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// Predictor scores raw texts. *classify.Service satisfies it.
type Predictor interface {
	Predict(texts []string, threshold float64) ([]classify.Prediction, error)
	Ready() bool
}

type options struct {
	maxTextBytes   int
	workers        int
	requestTimeout time.Duration
	threshold      float64
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		maxTextBytes:   4096,
		workers:        2,
		requestTimeout: 30 * time.Second,
		threshold:      classify.DefaultThreshold,
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxTextBytes sets the maximum allowed text length in bytes for POST /v1/predict.
func WithMaxTextBytes(n int) Option {
	return func(o *options) { o.maxTextBytes = n }
}

// WithWorkers sets the maximum number of concurrent prediction calls.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithRequestTimeout sets the per-request prediction deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithThreshold sets the default probability cut-off for requests that do
// not carry their own.
func WithThreshold(t float64) Option {
	return func(o *options) { o.threshold = t }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// handler holds the dependencies needed to serve HTTP requests.
type handler struct {
	predictor Predictor
	opts      options
	sem       chan struct{} // semaphore for worker pool
	log       *slog.Logger
	metrics   *metrics
}

// NewHandler returns an http.Handler serving GET /healthz, POST /v1/predict,
// and GET /metrics.
func NewHandler(p Predictor, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{
		predictor: p,
		opts:      opts,
		log:       opts.logger,
		metrics:   newMetrics(),
	}
	if opts.workers > 0 {
		h.sem = make(chan struct{}, opts.workers)
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	r.Post("/v1/predict", h.handlePredict)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.metrics.registry, promhttp.HandlerOpts{}))

	return r
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	code := http.StatusOK

	if !h.predictor.Ready() {
		status = "no model loaded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]string{
		"status":  status,
		"version": buildVersion(),
	})
}

type predictRequest struct {
	Text      string   `json:"text"`
	Threshold *float64 `json:"threshold,omitempty"`
}

type predictResponse struct {
	Prob  *float64 `json:"prob"`
	Label *int     `json:"label"`
}

func (h *handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	route := "/v1/predict"

	status := func(code int) {
		h.metrics.observe(route, code, time.Since(start).Seconds())
	}

	if r.Body == nil {
		status(http.StatusBadRequest)
		writeError(w, http.StatusBadRequest, "request body is required")
		return
	}

	body := http.MaxBytesReader(w, r.Body, int64(h.opts.maxTextBytes)+1024)

	var req predictRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		status(http.StatusBadRequest)
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if len(req.Text) > h.opts.maxTextBytes {
		status(http.StatusRequestEntityTooLarge)
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("text exceeds maximum size of %d bytes", h.opts.maxTextBytes))
		return
	}

	threshold := h.opts.threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	if threshold <= 0 || threshold >= 1 {
		status(http.StatusBadRequest)
		writeError(w, http.StatusBadRequest, fmt.Sprintf("threshold must be in (0, 1), got %g", threshold))
		return
	}

	// Acquire a worker slot; honour context cancellation while waiting.
	if h.sem != nil {
		select {
		case h.sem <- struct{}{}:
		case <-r.Context().Done():
			status(http.StatusServiceUnavailable)
			writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for worker")
			return
		}
		defer func() { <-h.sem }()
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	type result struct {
		preds []classify.Prediction
		err   error
	}

	// Inference is synchronous CPU work; run it aside so the deadline
	// still bounds the response.
	resCh := make(chan result, 1)
	go func() {
		preds, err := h.predictor.Predict([]string{req.Text}, threshold)
		resCh <- result{preds: preds, err: err}
	}()

	var res result
	select {
	case res = <-resCh:
	case <-ctx.Done():
		durationMS := time.Since(start).Milliseconds()
		h.log.WarnContext(r.Context(), "prediction timed out",
			slog.Int("text_len", len(req.Text)),
			slog.Int64("duration_ms", durationMS),
		)
		status(http.StatusGatewayTimeout)
		writeError(w, http.StatusGatewayTimeout, "prediction timed out")
		return
	}

	preds, err := res.preds, res.err
	durationMS := time.Since(start).Milliseconds()

	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, classify.ErrNoModel) {
			code = http.StatusServiceUnavailable
		}

		h.log.ErrorContext(r.Context(), "prediction failed",
			slog.Int("text_len", len(req.Text)),
			slog.Int64("duration_ms", durationMS),
			slog.String("error", err.Error()),
		)
		status(code)
		writeError(w, code, err.Error())
		return
	}

	pred := preds[0]

	resp := predictResponse{Label: pred.Label}
	if !math.IsNaN(pred.Prob) {
		resp.Prob = &pred.Prob
	}

	h.log.InfoContext(r.Context(), "prediction complete",
		slog.Int("text_len", len(req.Text)),
		slog.Int64("duration_ms", durationMS),
		slog.Float64("threshold", threshold),
	)

	status(http.StatusOK)
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Server wires the HTTP handler into a net/http.Server with graceful shutdown.
type Server struct {
	cfg             config.Config
	svc             *classify.Service
	shutdownTimeout time.Duration
}

func New(cfg config.Config, svc *classify.Service) *Server {
	timeout := 30 * time.Second
	if cfg.Server.ShutdownTimeout > 0 {
		timeout = time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	}

	return &Server{
		cfg:             cfg,
		svc:             svc,
		shutdownTimeout: timeout,
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

// Start serves until the context is cancelled, then drains in-flight
// requests within the shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	h := NewHandler(s.svc,
		WithWorkers(s.cfg.Server.Workers),
		WithMaxTextBytes(s.cfg.Server.MaxTextBytes),
		WithRequestTimeout(time.Duration(s.cfg.Server.RequestTimeout)*time.Second),
		WithThreshold(s.cfg.Training.Threshold),
	)

	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("http listen: %w", err)
	}
}

// ProbeHTTP checks the health endpoint of a running server.
func ProbeHTTP(addr string) error {
	resp, err := http.Get("http://" + addr + "/healthz") //nolint:noctx
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected health status: %s", resp.Status)
	}
	return nil
}
