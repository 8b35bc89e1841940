package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/HerbHall/sshcheck/internal/testutil"
	"github.com/HerbHall/sshcheck/pkg/models"
)

func TestTable_Plain(t *testing.T) {
	results := []models.CheckResult{
		testutil.NewResult(testutil.WithServer("web-1")),
		testutil.NewResult(testutil.WithServer("db-1"), testutil.WithStatus(models.StatusFailed, "Connection refused on port 22")),
		testutil.NewResult(testutil.WithServer(" "), testutil.WithStatus(models.StatusError, "Unexpected error: empty target"), testutil.Unmeasured()),
	}

	var buf bytes.Buffer
	if err := Table(&buf, results, false); err != nil {
		t.Fatalf("Table: %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "\x1b[") {
		t.Error("plain table contains escape codes")
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), out)
	}
	for _, want := range []string{"web-1", "25.00 ms", "Connection refused on port 22", "(empty)", "N/A"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestTable_Colored(t *testing.T) {
	var buf bytes.Buffer
	results := []models.CheckResult{testutil.NewResult()}
	if err := Table(&buf, results, true); err != nil {
		t.Fatalf("Table: %v", err)
	}
	if !strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("colored table has no escape codes:\n%q", buf.String())
	}
}

func TestSummary(t *testing.T) {
	s := models.Summary{Total: 4, Connected: 2, Failed: 1, Timeout: 1}

	var buf bytes.Buffer
	if err := Summary(&buf, s); err != nil {
		t.Fatalf("Summary: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Total", "Connected", "(50.0%)", "(25.0%)", "(0.0%)"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestProgress(t *testing.T) {
	var buf bytes.Buffer
	progress := Progress(&buf)

	first := []models.CheckResult{testutil.NewResult(testutil.WithServer("a"))}
	progress(1, 2, first)
	if strings.HasSuffix(buf.String(), "\n") {
		t.Error("progress ended the line before the batch finished")
	}
	progress(2, 2, append(first, testutil.NewResult(testutil.WithServer("b"))))

	out := buf.String()
	if !strings.Contains(out, "checked 1/2  a: Connected") {
		t.Errorf("missing first update: %q", out)
	}
	if !strings.Contains(out, "checked 2/2  b: Connected") {
		t.Errorf("missing final update: %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Error("final update did not end the line")
	}
}
