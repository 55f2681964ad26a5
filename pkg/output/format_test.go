package output

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iwvelando/price-allocation/internal/allocation"
	"github.com/iwvelando/price-allocation/pkg/constants"
	"github.com/iwvelando/price-allocation/pkg/optimization"
	"github.com/iwvelando/price-allocation/pkg/validation"
)

func sampleTable(t *testing.T) Table {
	t.Helper()
	start := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	series, err := allocation.NewPriceSeries([]allocation.PriceObservation{
		{Timestamp: start, Price: 1250.5},
		{Timestamp: start.Add(time.Hour), Price: 20},
	})
	if err != nil {
		t.Fatalf("failed to build series: %v", err)
	}
	result := &allocation.Result{
		Allocation: []float64{37.5, 62.5},
		Objective:  1500.25,
		Cost:       47893.75,
		Status:     allocation.StatusConverged,
		Iterations: 102,
	}
	summary := optimization.NewSummary("abc", series, allocation.Settings{TargetTotal: 100, SmoothnessWeight: 50}, result)
	summary.Notes = []string{"Test note"}
	table, err := NewTable(summary, series, result)
	if err != nil {
		t.Fatalf("NewTable() unexpected error: %v", err)
	}
	return table
}

func TestNewTableLengthMismatch(t *testing.T) {
	start := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	series, err := allocation.NewPriceSeries([]allocation.PriceObservation{
		{Timestamp: start, Price: 1},
		{Timestamp: start.Add(time.Hour), Price: 2},
	})
	if err != nil {
		t.Fatalf("failed to build series: %v", err)
	}

	_, err = NewTable(optimization.Summary{}, series, &allocation.Result{Allocation: []float64{100}})
	if err == nil {
		t.Error("NewTable() expected error for mismatched allocation length")
	}
}

func TestPrettyFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := PrettyFormat(&buf, sampleTable(t)); err != nil {
		t.Fatalf("PrettyFormat() unexpected error: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"--- Allocation run abc ---",
		"Status: converged after 102 iterations",
		"Timestamp            | Price      | Allocation",
		"2015-01-01T00:00:00Z |",
		"1,250.50",
		"37.500000",
		"Note: Test note",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("PrettyFormat missing %q in:\n%s", want, output)
		}
	}
}

func TestCsvFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := CsvFormat(&buf, sampleTable(t)); err != nil {
		t.Fatalf("CsvFormat() unexpected error: %v", err)
	}

	expected := "ts,price,allocation\n" +
		"2015-01-01T00:00:00Z,1250.5,37.5\n" +
		"2015-01-01T01:00:00Z,20,62.5\n"
	if buf.String() != expected {
		t.Errorf("CsvFormat() =\n%s\nexpected\n%s", buf.String(), expected)
	}
}

func TestFormat(t *testing.T) {
	table := sampleTable(t)

	tests := []struct {
		format  string
		prefix  string
		wantErr bool
	}{
		{constants.OutputFormatCSV, "ts,price,allocation", false},
		{constants.OutputFormatPretty, "--- Allocation run", false},
		{"json", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			err := Format(&buf, tt.format, table)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Format(%s) expected error", tt.format)
				}
				return
			}
			if err != nil {
				t.Fatalf("Format(%s) unexpected error: %v", tt.format, err)
			}
			if !strings.HasPrefix(buf.String(), tt.prefix) {
				t.Errorf("Format(%s) output starts with %q", tt.format, buf.String())
			}
		})
	}
}

func TestFormatRendersEveryValidatedFormat(t *testing.T) {
	table := sampleTable(t)
	for _, format := range validation.OutputFormats {
		if err := validation.ValidateOutputFormat(format); err != nil {
			t.Fatalf("ValidateOutputFormat(%s) unexpected error: %v", format, err)
		}
		var buf bytes.Buffer
		if err := Format(&buf, format, table); err != nil {
			t.Errorf("Format(%s) error = %v for a validated format", format, err)
		}
	}
	for _, format := range []string{"json", "CSV"} {
		if validation.ValidateOutputFormat(format) == nil {
			t.Errorf("ValidateOutputFormat(%s) accepted a format Format rejects", format)
		}
		if err := Format(&bytes.Buffer{}, format, table); err == nil {
			t.Errorf("Format(%s) expected error", format)
		}
	}
}

func TestWriteArtifact(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	table := sampleTable(t)

	path, err := WriteArtifact(dir, table)
	if err != nil {
		t.Fatalf("WriteArtifact() unexpected error: %v", err)
	}
	if path != filepath.Join(dir, constants.ArtifactFile) {
		t.Errorf("WriteArtifact() path = %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read artifact: %v", err)
	}
	if !strings.HasPrefix(string(data), "ts,price,allocation\n") {
		t.Errorf("artifact has unexpected header: %q", string(data))
	}

	meta, err := ReadMetadata(filepath.Join(dir, constants.ArtifactMetadataFile))
	if err != nil {
		t.Fatalf("ReadMetadata() unexpected error: %v", err)
	}
	if meta.RunID != "abc" || meta.Iterations != 102 || meta.Status != "converged" {
		t.Errorf("metadata = %+v", meta)
	}
	if meta.Slots != 2 || meta.TargetTotal != 100 {
		t.Errorf("metadata settings = %+v", meta)
	}
}

func TestReadMetadataMissing(t *testing.T) {
	if _, err := ReadMetadata(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("ReadMetadata() expected error for missing file")
	}
}
