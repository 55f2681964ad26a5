// Package output provides utilities for formatting and persisting allocation results.
package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/iwvelando/price-allocation/internal/allocation"
	"github.com/iwvelando/price-allocation/pkg/constants"
	"github.com/iwvelando/price-allocation/pkg/datetime"
	"github.com/iwvelando/price-allocation/pkg/optimization"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// Row is one slot of an allocation result.
type Row struct {
	Timestamp  string  `json:"ts"`
	Price      float64 `json:"price"`
	Allocation float64 `json:"allocation"`
}

// Table pairs the per-slot rows of a run with its metadata.
type Table struct {
	Summary optimization.Summary `json:"summary"`
	Rows    []Row                `json:"rows"`
}

// NewTable aligns result.Allocation with the series slots.
func NewTable(summary optimization.Summary, series allocation.PriceSeries, result *allocation.Result) (Table, error) {
	if len(result.Allocation) != series.Len() {
		return Table{}, fmt.Errorf("allocation has %d entries for %d slots", len(result.Allocation), series.Len())
	}
	rows := make([]Row, series.Len())
	for i := range rows {
		o := series.At(i)
		rows[i] = Row{
			Timestamp:  datetime.FormatTimestamp(o.Timestamp),
			Price:      o.Price,
			Allocation: result.Allocation[i],
		}
	}
	return Table{Summary: summary, Rows: rows}, nil
}

// PrettyFormat outputs a human-readable rather than machine-readable table.
func PrettyFormat(w io.Writer, table Table) error {
	p := message.NewPrinter(language.English)
	s := table.Summary

	if _, err := fmt.Fprintf(w, "--- Allocation run %s ---\n", s.RunID); err != nil {
		return err
	}
	_, _ = p.Fprintf(w, "Status: %s after %d iterations\n", s.Status, s.Iterations)
	_, _ = p.Fprintf(w, "Objective: %.4f (cost %.4f, roughness %.6f, weight %.2f)\n", s.Objective, s.Cost, s.Roughness, s.SmoothnessWeight)
	_, _ = p.Fprintf(w, "Target total: %.2f over %d slots\n\n", s.TargetTotal, s.Slots)

	_, _ = fmt.Fprintf(w, "Timestamp            | Price      | Allocation\n")
	_, _ = fmt.Fprintf(w, "_________            | _____      | __________\n")
	for _, row := range table.Rows {
		if _, err := p.Fprintf(w, "%s | %10.2f | %10.6f\n", row.Timestamp, row.Price, row.Allocation); err != nil {
			return err
		}
	}
	for _, note := range s.Notes {
		if _, err := fmt.Fprintf(w, "Note: %s\n", note); err != nil {
			return err
		}
	}
	return nil
}

// CsvFormat outputs in comma-separated value format.
func CsvFormat(w io.Writer, table Table) error {
	if _, err := fmt.Fprintf(w, "ts,price,allocation\n"); err != nil {
		return err
	}
	for _, row := range table.Rows {
		if _, err := fmt.Fprintf(w, "%s,%s,%s\n",
			row.Timestamp,
			strconv.FormatFloat(row.Price, 'f', -1, 64),
			strconv.FormatFloat(row.Allocation, 'f', -1, 64),
		); err != nil {
			return err
		}
	}
	return nil
}

// Format writes table in the named output format.
func Format(w io.Writer, format string, table Table) error {
	switch format {
	case constants.OutputFormatCSV:
		return CsvFormat(w, table)
	case constants.OutputFormatPretty:
		return PrettyFormat(w, table)
	default:
		return fmt.Errorf("unsupported output format %s", format)
	}
}

// WriteArtifact writes the CSV artifact and its metadata sidecar into dir,
// creating dir when needed. It returns the artifact path.
func WriteArtifact(dir string, table Table) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	artifactPath := filepath.Join(dir, constants.ArtifactFile)
	if err := writeFile(artifactPath, func(w io.Writer) error {
		return CsvFormat(w, table)
	}); err != nil {
		return "", err
	}

	metaPath := filepath.Join(dir, constants.ArtifactMetadataFile)
	if err := writeFile(metaPath, func(w io.Writer) error {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(table.Summary); err != nil {
			return err
		}
		return enc.Close()
	}); err != nil {
		return "", err
	}

	return artifactPath, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(file); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

// ReadMetadata loads a metadata sidecar written by WriteArtifact.
func ReadMetadata(path string) (optimization.Summary, error) {
	var s optimization.Summary
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return s, nil
}
