// Package prices acquires hourly price observations and persists them in a
// duplicate-safe store.
package prices

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/iwvelando/price-allocation/internal/allocation"
	"github.com/iwvelando/price-allocation/internal/config"
	"github.com/iwvelando/price-allocation/pkg/datetime"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Source downloads the price time series once and serves later reads from a
// local cache file.
type Source struct {
	logger *zap.Logger
	client *http.Client
	cfg    config.SourceConfig
}

// NewSource constructs a Source. A nil client uses http.DefaultClient.
func NewSource(logger *zap.Logger, cfg config.SourceConfig, client *http.Client) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = http.DefaultClient
	}
	cfg.Normalize()
	return &Source{logger: logger, client: client, cfg: cfg}
}

// Fetch returns the observations of the configured price column, ascending
// and without duplicate timestamps.
func (s *Source) Fetch(ctx context.Context) ([]allocation.PriceObservation, error) {
	if err := s.ensureCache(ctx); err != nil {
		return nil, err
	}

	file, err := os.Open(s.cfg.CacheFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open cached prices %s: %w", s.cfg.CacheFile, err)
	}
	defer func() {
		_ = file.Close()
	}()

	observations, err := ParseCSV(file, s.cfg.TimestampColumn, s.cfg.PriceColumn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.cfg.CacheFile, err)
	}

	s.logger.Info("loaded price observations",
		zap.String("op", "prices.Fetch"),
		zap.String("column", s.cfg.PriceColumn),
		zap.Int("observations", len(observations)),
	)
	return observations, nil
}

func (s *Source) ensureCache(ctx context.Context) error {
	if _, err := os.Stat(s.cfg.CacheFile); err == nil {
		s.logger.Info("using cached price data",
			zap.String("op", "prices.Fetch"),
			zap.String("path", s.cfg.CacheFile),
		)
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to stat cache %s: %w", s.cfg.CacheFile, err)
	}

	s.logger.Info("downloading price data",
		zap.String("op", "prices.Fetch"),
		zap.String("url", s.cfg.URL),
	)

	timeout, err := s.cfg.TimeoutDuration()
	if err != nil {
		return err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", s.cfg.URL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download %s: unexpected status %s", s.cfg.URL, resp.Status)
	}

	if dir := filepath.Dir(s.cfg.CacheFile); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create cache directory %s: %w", dir, err)
		}
	}

	// Write to a temporary file first so an interrupted download never
	// leaves a truncated cache behind.
	tmp, err := os.CreateTemp(filepath.Dir(s.cfg.CacheFile), ".prices-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	written, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmp.Name())
		if copyErr != nil {
			return fmt.Errorf("failed to save download: %w", copyErr)
		}
		return fmt.Errorf("failed to save download: %w", closeErr)
	}
	if err := os.Rename(tmp.Name(), s.cfg.CacheFile); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to move download into cache: %w", err)
	}

	s.logger.Info("saved price data",
		zap.String("op", "prices.Fetch"),
		zap.String("path", s.cfg.CacheFile),
		zap.Int64("bytes", written),
	)
	return nil
}

// ParseCSV reads a time series CSV with a header row, keeping rows whose
// price column is non-empty. The result is sorted by timestamp and the first
// row wins for duplicate timestamps.
func ParseCSV(r io.Reader, timestampColumn, priceColumn string) ([]allocation.PriceObservation, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	tsIdx, priceIdx := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case timestampColumn:
			tsIdx = i
		case priceColumn:
			priceIdx = i
		}
	}
	if tsIdx < 0 {
		return nil, fmt.Errorf("column %s not found", timestampColumn)
	}
	if priceIdx < 0 {
		return nil, fmt.Errorf("column %s not found. Available: %s", priceColumn, strings.Join(header, ", "))
	}

	var observations []allocation.PriceObservation
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if priceIdx >= len(record) || tsIdx >= len(record) {
			continue
		}
		raw := strings.TrimSpace(record[priceIdx])
		if raw == "" {
			continue
		}
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid price %q: %w", line, raw, err)
		}
		ts, err := datetime.ParseTimestamp(record[tsIdx])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		observations = append(observations, allocation.PriceObservation{
			Timestamp: ts,
			Price:     price.InexactFloat64(),
		})
	}

	return Dedupe(observations), nil
}

// Dedupe sorts observations by timestamp and drops later duplicates.
func Dedupe(observations []allocation.PriceObservation) []allocation.PriceObservation {
	sort.SliceStable(observations, func(i, j int) bool {
		return observations[i].Timestamp.Before(observations[j].Timestamp)
	})
	out := observations[:0]
	for i, o := range observations {
		if i > 0 && o.Timestamp.Equal(out[len(out)-1].Timestamp) {
			continue
		}
		out = append(out, o)
	}
	return out
}
