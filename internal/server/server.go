// Package server exposes allocation runs over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iwvelando/price-allocation/internal/allocation"
	"github.com/iwvelando/price-allocation/internal/metrics"
	"github.com/iwvelando/price-allocation/internal/optimizer"
	"github.com/iwvelando/price-allocation/pkg/constants"
	"github.com/iwvelando/price-allocation/pkg/optimization"
	"github.com/iwvelando/price-allocation/pkg/output"
	"go.uber.org/zap"
)

type handler struct {
	logger         *zap.Logger
	maxUploadSize  int64
	version        string
	metrics        *metrics.Metrics
	sweepWorkers   int
	requestTimeout time.Duration
	settings       allocation.Settings
	runner         *optimizer.Runner
	source         optimizer.Fetcher
}

// Option adjusts a handler built by NewHandler.
type Option func(*handler)

// WithSweepWorkers bounds the concurrent runs of one sweep request.
func WithSweepWorkers(n int) Option {
	return func(h *handler) {
		if n > 0 {
			h.sweepWorkers = n
		}
	}
}

// WithRequestTimeout bounds the solve time of each request.
func WithRequestTimeout(d time.Duration) Option {
	return func(h *handler) {
		h.requestTimeout = d
	}
}

// WithSettings sets the settings each request starts from before applying
// its own overrides.
func WithSettings(settings allocation.Settings) Option {
	return func(h *handler) {
		h.settings = settings
	}
}

// WithIngest enables POST /api/ingest, which fetches prices from source into
// the runner's store.
func WithIngest(runner *optimizer.Runner, source optimizer.Fetcher) Option {
	return func(h *handler) {
		h.runner = runner
		h.source = source
	}
}

// NewHandler constructs the HTTP handler that serves the allocation API. A
// nil metrics value disables instrumentation and the /metrics endpoint.
func NewHandler(logger *zap.Logger, maxUploadSize int64, version string, m *metrics.Metrics, opts ...Option) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	if maxUploadSize <= 0 {
		maxUploadSize = constants.DefaultMaxUploadSizeBytes
	}

	trimmedVersion := strings.TrimSpace(version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	h := &handler{
		logger:        logger,
		maxUploadSize: maxUploadSize,
		version:       trimmedVersion,
		metrics:       m,
		sweepWorkers:  constants.DefaultSweepWorkers,
		settings:      allocation.DefaultSettings(),
	}
	for _, opt := range opts {
		opt(h)
	}

	mux := http.NewServeMux()

	// Single allocation run
	mux.HandleFunc("/api/optimize", h.handleOptimize)

	// Objective across several smoothness weights
	mux.HandleFunc("/api/sweep", h.handleSweep)

	if h.runner != nil && h.source != nil {
		mux.HandleFunc("/api/ingest", h.handleIngest)
	}

	mux.HandleFunc("/api/version", h.handleVersion)

	if m != nil {
		mux.Handle("/metrics", m.Handler())
	}

	return mux
}

// settingsPayload overrides the default settings field by field.
type settingsPayload struct {
	TargetTotal      *float64 `json:"targetTotal,omitempty"`
	SmoothnessWeight *float64 `json:"smoothnessWeight,omitempty"`
	Tolerance        *float64 `json:"tolerance,omitempty"`
	MaxIterations    *int     `json:"maxIterations,omitempty"`
	Penalty          *float64 `json:"penalty,omitempty"`
}

func (p *settingsPayload) apply(base allocation.Settings) allocation.Settings {
	if p == nil {
		return base
	}
	if p.TargetTotal != nil {
		base.TargetTotal = *p.TargetTotal
	}
	if p.SmoothnessWeight != nil {
		base.SmoothnessWeight = *p.SmoothnessWeight
	}
	if p.Tolerance != nil {
		base.Tolerance = *p.Tolerance
	}
	if p.MaxIterations != nil {
		base.MaxIterations = *p.MaxIterations
	}
	if p.Penalty != nil {
		base.Penalty = *p.Penalty
	}
	return base
}

type optimizeRequest struct {
	Prices   []allocation.PriceObservation `json:"prices"`
	Settings *settingsPayload              `json:"settings,omitempty"`
}

type optimizeResponse struct {
	Summary  optimization.Summary `json:"summary"`
	Rows     []output.Row         `json:"rows"`
	CSV      string               `json:"csv"`
	Duration string               `json:"duration"`
}

type sweepRequest struct {
	Prices   []allocation.PriceObservation `json:"prices"`
	Settings *settingsPayload              `json:"settings,omitempty"`
	Weights  []float64                     `json:"weights"`
}

type sweepResponse struct {
	Points   []optimizer.SweepPoint `json:"points"`
	Duration string                 `json:"duration"`
}

type ingestResponse struct {
	optimizer.IngestReport
	Duration string `json:"duration"`
}

func (h *handler) handleOptimize(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleOptimize"
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	var req optimizeRequest
	if status, err := h.decode(w, r, &req); err != nil {
		h.respondErrorWithOp(w, status, err.Error(), op)
		return
	}

	series, err := allocation.NewPriceSeries(req.Prices)
	if err != nil {
		h.respondRunError(w, err, op)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	outcome, err := optimizer.Execute(ctx, h.logger, h.metrics, series, req.Settings.apply(h.settings))
	if err != nil {
		h.respondRunError(w, err, op)
		return
	}

	var csvBuf bytes.Buffer
	if err := output.CsvFormat(&csvBuf, outcome.Table); err != nil {
		h.respondErrorWithOp(w, http.StatusInternalServerError, fmt.Sprintf("failed to render csv: %v", err), op)
		return
	}

	h.writeJSON(w, http.StatusOK, optimizeResponse{
		Summary:  outcome.Table.Summary,
		Rows:     outcome.Table.Rows,
		CSV:      csvBuf.String(),
		Duration: time.Since(start).String(),
	})
}

func (h *handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSweep"
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	var req sweepRequest
	if status, err := h.decode(w, r, &req); err != nil {
		h.respondErrorWithOp(w, status, err.Error(), op)
		return
	}

	series, err := allocation.NewPriceSeries(req.Prices)
	if err != nil {
		h.respondRunError(w, err, op)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	points, err := optimizer.Sweep(ctx, h.logger, series, req.Settings.apply(h.settings), req.Weights, h.sweepWorkers)
	if err != nil {
		h.respondRunError(w, err, op)
		return
	}

	h.writeJSON(w, http.StatusOK, sweepResponse{
		Points:   points,
		Duration: time.Since(start).String(),
	})
}

func (h *handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleIngest"
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	ctx, cancel := h.requestContext(r)
	defer cancel()

	report, err := h.runner.Ingest(ctx, h.source)
	if err != nil {
		h.respondRunError(w, err, op)
		return
	}

	h.writeJSON(w, http.StatusOK, ingestResponse{
		IngestReport: *report,
		Duration:     time.Since(start).String(),
	})
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

// decode reads a JSON body into dst and returns the status to report on
// failure.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) (int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return http.StatusRequestEntityTooLarge, fmt.Errorf("request exceeds limit of %d bytes", h.maxUploadSize)
		}
		return http.StatusBadRequest, fmt.Errorf("failed to decode request: %v", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return http.StatusBadRequest, fmt.Errorf("request body must contain a single JSON object")
	}
	return http.StatusOK, nil
}

func (h *handler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if h.requestTimeout > 0 {
		return context.WithTimeout(r.Context(), h.requestTimeout)
	}
	return context.WithCancel(r.Context())
}

// runStatus maps allocation errors onto HTTP statuses.
func runStatus(err error) int {
	switch {
	case errors.Is(err, allocation.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, allocation.ErrInfeasibleResult), errors.Is(err, allocation.ErrNumericInstability):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) respondRunError(w http.ResponseWriter, err error, op string) {
	h.respondErrorWithOp(w, runStatus(err), err.Error(), op)
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	h.logger.Error("allocation request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)

	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}
