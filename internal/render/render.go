// Package render prints batch results for a terminal.
package render

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/HerbHall/sshcheck/pkg/models"
)

var categoryColors = map[models.Category]*color.Color{
	models.CategorySuccess: color.New(color.FgGreen, color.Bold),
	models.CategoryDanger:  color.New(color.FgRed, color.Bold),
	models.CategoryWarning: color.New(color.FgYellow, color.Bold),
	models.CategoryError:   color.New(color.FgMagenta, color.Bold),
}

// statusCell pads before coloring so escape codes don't skew tabwriter widths.
func statusCell(s models.Status, colored bool) string {
	text := fmt.Sprintf("%-9s", s)
	if !colored {
		return text
	}
	c, ok := categoryColors[s.Category()]
	if !ok {
		return text
	}
	c.EnableColor()
	return c.Sprint(text)
}

// Table writes one row per result: server, status, response time, detail.
func Table(w io.Writer, results []models.CheckResult, colored bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVER\tSTATUS\tRESPONSE TIME\tDETAIL")
	for i := range results {
		r := &results[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			displayServer(r.Server), statusCell(r.Status, colored), r.ResponseTimeString(), r.Error)
	}
	return tw.Flush()
}

func displayServer(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(empty)"
	}
	return s
}

// Summary writes the five-way totals with each status's share of the batch.
func Summary(w io.Writer, s models.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Total\t%d\t\n", s.Total)
	for _, st := range models.Statuses {
		fmt.Fprintf(tw, "%s\t%d\t(%.1f%%)\t\n", st, s.Count(st), s.Percent(st))
	}
	return tw.Flush()
}

// Progress returns a callback that rewrites a single "checked n/total" line on w.
// It matches batch.ProgressFunc.
func Progress(w io.Writer) func(completed, total int, partial []models.CheckResult) {
	var mu sync.Mutex
	return func(completed, total int, partial []models.CheckResult) {
		mu.Lock()
		defer mu.Unlock()

		last := ""
		if n := len(partial); n > 0 {
			last = fmt.Sprintf("  %s: %s", displayServer(partial[n-1].Server), partial[n-1].Status)
		}
		fmt.Fprintf(w, "\rchecked %d/%d%s\x1b[K", completed, total, last)
		if completed == total {
			fmt.Fprintln(w)
		}
	}
}
