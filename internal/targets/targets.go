// Package targets turns manual entry and uploaded files into an ordered list
// of probe targets.
package targets

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DefaultMaxManual is the number of targets accepted through manual entry.
const DefaultMaxManual = 5

var (
	ErrNoTargets         = errors.New("no targets found")
	ErrTooManyTargets    = errors.New("too many targets")
	ErrUnsupportedFormat = errors.New("unsupported file format, use .csv or .txt")
)

// ServerColumns are the recognized CSV header names, in priority order.
var ServerColumns = []string{"server", "hostname", "fqdn", "host", "ip", "address"}

// Manual returns the trimmed, non-empty entries. It fails when more than max
// entries remain; max <= 0 means DefaultMaxManual.
func Manual(entries []string, max int) ([]string, error) {
	if max <= 0 {
		max = DefaultMaxManual
	}
	out := clean(entries)
	if len(out) > max {
		return nil, fmt.Errorf("%w: %d given, at most %d allowed", ErrTooManyTargets, len(out), max)
	}
	return out, nil
}

// ParseText reads one target per line. Blank lines are ignored.
func ParseText(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read text targets: %w", err)
	}
	return clean(lines), nil
}

// ParseCSV reads targets from the server column of a CSV document with a
// header row. When no recognized column exists the first column is used and
// a warning is logged.
func ParseCSV(r io.Reader, logger *zap.Logger) ([]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	col, found := serverColumn(header)
	if !found {
		logger.Warn("no standard server column found, using first column",
			zap.String("column", strings.TrimSpace(header[col])),
			zap.Strings("supported", ServerColumns),
		)
	}

	var values []string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		if col < len(rec) {
			values = append(values, rec[col])
		}
	}
	return clean(values), nil
}

// ParseFile dispatches on the file extension.
func ParseFile(path string, logger *zap.Logger) ([]string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".csv" && ext != ".txt" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open targets file: %w", err)
	}
	defer f.Close()

	var out []string
	if ext == ".csv" {
		out, err = ParseCSV(f, logger)
	} else {
		out, err = ParseText(f)
	}
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoTargets, filepath.Base(path))
	}
	return out, nil
}

// serverColumn returns the index of the best server column and whether a
// recognized name matched.
func serverColumn(header []string) (int, bool) {
	for _, name := range ServerColumns {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i, true
			}
		}
	}
	return 0, false
}

func clean(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
