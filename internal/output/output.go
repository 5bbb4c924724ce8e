// Package output persists scan result sets and change sets to disk and
// loads previously persisted baselines. JSON is the canonical format; CSV
// is written alongside for spreadsheet consumption.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kallerud/driftscan/internal/diff"
	"github.com/kallerud/driftscan/internal/errors"
	"github.com/kallerud/driftscan/internal/scan"
)

const (
	resultFilePerm = 0644

	// portSeparator joins the open port list inside a single CSV cell.
	portSeparator = ";"
)

// WriteJSON writes the result set to path as indented JSON, one object per
// host with keys ip, open_ports and scanned_at.
func WriteJSON(results scan.ResultSet, path string) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(path, data, resultFilePerm); err != nil {
		return fmt.Errorf("failed to write results file: %w", err)
	}
	return nil
}

// WriteCSV writes the result set to path with one row per host. The open
// port list is semicolon-joined inside its cell.
func WriteCSV(results scan.ResultSet, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"ip", "open_ports", "scanned_at"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for i := range results {
		rec := &results[i]
		row := []string{
			rec.Host.String(),
			joinPorts(rec.OpenPorts),
			rec.ScannedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// WriteChanges writes the change set to path as indented JSON.
func WriteChanges(changes diff.ChangeSet, path string) error {
	data, err := json.MarshalIndent(changes, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal changes: %w", err)
	}
	if err := os.WriteFile(path, data, resultFilePerm); err != nil {
		return fmt.Errorf("failed to write changes file: %w", err)
	}
	return nil
}

// LoadBaseline reads a previously written JSON result set. Any failure to
// read or parse surfaces as a typed baseline error so the caller can skip
// comparison without failing the run.
func LoadBaseline(path string) (scan.ResultSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ErrBaselineUnreadable(path, err)
	}
	var results scan.ResultSet
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, errors.ErrBaselineUnreadable(path, err)
	}
	return results, nil
}

// joinPorts renders the port list for a CSV cell.
func joinPorts(ports []int) string {
	parts := make([]string, 0, len(ports))
	for _, p := range ports {
		parts = append(parts, strconv.Itoa(p))
	}
	return strings.Join(parts, portSeparator)
}
