package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidConfig is returned when a CheckConfig fails validation.
var ErrInvalidConfig = errors.New("invalid check config")

// Default values for a CheckConfig.
const (
	DefaultPort    = 22
	DefaultTimeout = 10 * time.Second
)

// Status is the classified outcome of a single probe.
type Status string

const (
	StatusConnected Status = "Connected"
	StatusFailed    Status = "Failed"
	StatusTimeout   Status = "Timeout"
	StatusError     Status = "Error"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusConnected, StatusFailed, StatusTimeout, StatusError}

// ParseStatus converts an exported status string back into a Status.
// Matching is case-insensitive.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Category is the visual classification used when rendering a status.
type Category string

const (
	CategorySuccess Category = "success"
	CategoryDanger  Category = "danger"
	CategoryWarning Category = "warning"
	CategoryError   Category = "error"
)

// Category maps the status to its display category.
func (s Status) Category() Category {
	switch s {
	case StatusConnected:
		return CategorySuccess
	case StatusFailed:
		return CategoryDanger
	case StatusTimeout:
		return CategoryWarning
	default:
		return CategoryError
	}
}

// CheckConfig holds the per-batch probe settings. It is treated as an
// immutable value and shared read-only across concurrent probes.
type CheckConfig struct {
	Username string        `json:"username,omitempty"`
	Password string        `json:"-"`
	Port     int           `json:"port"`
	Timeout  time.Duration `json:"timeout"`
}

// DefaultCheckConfig returns a config with port 22, a 10s timeout and no credentials.
func DefaultCheckConfig() CheckConfig {
	return CheckConfig{
		Port:    DefaultPort,
		Timeout: DefaultTimeout,
	}
}

// Validate reports whether the config can be used for probing.
func (c CheckConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range 1-65535", ErrInvalidConfig, c.Port)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidConfig, c.Timeout)
	}
	return nil
}

// HasCredentials reports whether password authentication should be attempted.
func (c CheckConfig) HasCredentials() bool {
	return c.Username != "" && c.Password != ""
}

// CheckResult is the record produced for exactly one target.
type CheckResult struct {
	Server       string        `json:"server"`
	Status       Status        `json:"status"`
	ResponseTime time.Duration `json:"response_time_ns"`
	// Measured is false when the attempt never started; ResponseTime is then meaningless.
	Measured  bool      `json:"measured"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// ResponseTimeMs returns the elapsed time in milliseconds, rounded to two decimals.
func (r CheckResult) ResponseTimeMs() float64 {
	if !r.Measured {
		return 0
	}
	ms := float64(r.ResponseTime) / float64(time.Millisecond)
	return float64(int64(ms*100+0.5)) / 100
}

// ResponseTimeString formats the elapsed time as "12.34 ms", or "N/A" when not measured.
func (r CheckResult) ResponseTimeString() string {
	if !r.Measured {
		return "N/A"
	}
	return fmt.Sprintf("%.2f ms", r.ResponseTimeMs())
}

// Run is the explicit context of one batch execution. The caller owns it
// after the orchestrator returns.
type Run struct {
	ID          string        `json:"id"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	Config      CheckConfig   `json:"config"`
	Parallelism int           `json:"parallelism"`
	Results     []CheckResult `json:"results"`
}

// Duration returns the wall-clock time the batch took.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary aggregates the run's results per status.
func (r *Run) Summary() Summary {
	return Summarize(r.Results)
}

// Summary holds per-status counts for a set of results.
type Summary struct {
	Total     int `json:"total"`
	Connected int `json:"connected"`
	Failed    int `json:"failed"`
	Timeout   int `json:"timeout"`
	Error     int `json:"error"`
}

// Summarize counts results by status. Unknown statuses count as Error.
func Summarize(results []CheckResult) Summary {
	s := Summary{Total: len(results)}
	for i := range results {
		switch results[i].Status {
		case StatusConnected:
			s.Connected++
		case StatusFailed:
			s.Failed++
		case StatusTimeout:
			s.Timeout++
		default:
			s.Error++
		}
	}
	return s
}

// Count returns the number of results with the given status.
func (s Summary) Count(st Status) int {
	switch st {
	case StatusConnected:
		return s.Connected
	case StatusFailed:
		return s.Failed
	case StatusTimeout:
		return s.Timeout
	case StatusError:
		return s.Error
	}
	return 0
}

// Percent returns the share of results with the given status, 0-100.
func (s Summary) Percent(st Status) float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Count(st)) / float64(s.Total) * 100
}
