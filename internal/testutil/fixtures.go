package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/HerbHall/sshcheck/pkg/models"
)

// NewResult returns a measured Connected CheckResult with sensible defaults,
// suitable for test fixtures. Override individual fields with options.
func NewResult(opts ...func(*models.CheckResult)) models.CheckResult {
	r := models.CheckResult{
		Server:       "test-host.example.com",
		Status:       models.StatusConnected,
		ResponseTime: 25 * time.Millisecond,
		Measured:     true,
		CheckedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// WithServer sets the result's target.
func WithServer(server string) func(*models.CheckResult) {
	return func(r *models.CheckResult) { r.Server = server }
}

// WithStatus sets the status and diagnostic message.
func WithStatus(s models.Status, msg string) func(*models.CheckResult) {
	return func(r *models.CheckResult) {
		r.Status = s
		r.Error = msg
	}
}

// WithResponseTime sets a measured response time.
func WithResponseTime(d time.Duration) func(*models.CheckResult) {
	return func(r *models.CheckResult) {
		r.ResponseTime = d
		r.Measured = true
	}
}

// Unmeasured marks the result as never started.
func Unmeasured() func(*models.CheckResult) {
	return func(r *models.CheckResult) {
		r.ResponseTime = 0
		r.Measured = false
	}
}

// NewRun wraps results in a finished Run with a fresh ID.
func NewRun(results ...models.CheckResult) *models.Run {
	start := time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC)
	return &models.Run{
		ID:          uuid.New().String(),
		StartedAt:   start,
		FinishedAt:  start.Add(5 * time.Second),
		Config:      models.DefaultCheckConfig(),
		Parallelism: min(10, max(1, len(results))),
		Results:     results,
	}
}
