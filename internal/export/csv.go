// Package export serializes batch results for operators: delimited text,
// response-time charts and Prometheus textfiles.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/HerbHall/sshcheck/pkg/models"
)

// ErrMalformedExport is returned when a CSV export cannot be read back.
var ErrMalformedExport = errors.New("malformed results export")

// Header is the column layout of the delimited export.
var Header = []string{"server", "status", "response_time", "error"}

// DefaultFilename returns the conventional export name for a run finished at now.
func DefaultFilename(now time.Time) string {
	return fmt.Sprintf("ssh_connectivity_results_%d.csv", now.Unix())
}

// WriteCSV writes results with a header row.
func WriteCSV(w io.Writer, results []models.CheckResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i := range results {
		r := &results[i]
		row := []string{r.Server, string(r.Status), r.ResponseTimeString(), r.Error}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// SaveCSV writes results to path, creating or truncating the file.
func SaveCSV(path string, results []models.CheckResult) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export %q: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close export %q: %w", path, cerr)
		}
	}()
	return WriteCSV(f, results)
}

// ReadCSV parses an export produced by WriteCSV.
func ReadCSV(r io.Reader) ([]models.CheckResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrMalformedExport, err)
	}
	for i, h := range Header {
		if !strings.EqualFold(strings.TrimSpace(header[i]), h) {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", ErrMalformedExport, i, header[i], h)
		}
	}

	var out []models.CheckResult
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedExport, err)
		}

		status, err := models.ParseStatus(rec[1])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedExport, line, err)
		}
		res := models.CheckResult{Server: rec[0], Status: status, Error: rec[3]}
		if rt, ok, err := parseResponseTime(rec[2]); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedExport, line, err)
		} else if ok {
			res.ResponseTime = rt
			res.Measured = true
		}
		out = append(out, res)
	}
}

// parseResponseTime reverses CheckResult.ResponseTimeString.
func parseResponseTime(s string) (time.Duration, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "N/A") {
		return 0, false, nil
	}
	ms, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "ms")), 64)
	if err != nil {
		return 0, false, fmt.Errorf("response time %q: %w", s, err)
	}
	return time.Duration(math.Round(ms * float64(time.Millisecond))), true, nil
}
