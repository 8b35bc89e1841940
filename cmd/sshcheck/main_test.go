package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HerbHall/sshcheck/internal/export"
)

// closedPort returns a loopback port with nothing listening on it.
func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestParseFlags_Overrides(t *testing.T) {
	var stderr bytes.Buffer
	opts, err := parseFlags([]string{
		"-host", "a, b,,c", "-port", "2222", "-timeout", "3s", "-kafka", "k1:9092,k2:9092", "d",
	}, &stderr)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "d"}, opts.hosts)
	assert.Equal(t, "2222", opts.overrides["check.port"])
	assert.Equal(t, "3s", opts.overrides["check.timeout"])
	assert.NotContains(t, opts.overrides, "check.username", "unset flags must not override config")

	v := viper.New()
	v.Set("check.username", "from-config")
	opts.apply(v)
	assert.Equal(t, 2222, v.GetInt("check.port"))
	assert.Equal(t, "from-config", v.GetString("check.username"))
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, v.GetStringSlice("export.kafka.brokers"))
}

func TestParseFlags_HostsAndFileConflict(t *testing.T) {
	var stderr bytes.Buffer
	_, err := parseFlags([]string{"-host", "a", "-file", "hosts.txt"}, &stderr)
	assert.ErrorIs(t, err, errUsage)
	assert.Contains(t, stderr.String(), "either hosts or -file")
}

func TestRun_Help(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-h"}, &stdout, &stderr)
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stderr.String(), "Usage: sshcheck")
}

func TestRun_NoTargets(t *testing.T) {
	t.Chdir(t.TempDir())
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-no-color"}, &stdout, &stderr)
	assert.Equal(t, exitError, code)
}

func TestRun_TooManyManualTargets(t *testing.T) {
	t.Chdir(t.TempDir())
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-host", "a,b,c,d,e,f"}, &stdout, &stderr)
	assert.Equal(t, exitError, code)
}

func TestRun_InvalidPort(t *testing.T) {
	t.Chdir(t.TempDir())
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-host", "a", "-port", "70000"}, &stdout, &stderr)
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr.String(), "out of range")
}

func TestRun_RefusedHostWithExports(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	port := strconv.Itoa(closedPort(t))
	csvPath := filepath.Join(dir, "out.csv")
	dbPath := filepath.Join(dir, "runs.db")
	promPath := filepath.Join(dir, "sshcheck.prom")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"-no-color", "-log-level", "error",
		"-host", "127.0.0.1", "-port", port, "-timeout", "2s",
		"-csv", csvPath, "-sqlite", dbPath, "-metrics", promPath,
	}, &stdout, &stderr)
	require.Equal(t, exitOK, code, "stderr: %s", stderr.String())

	out := stdout.String()
	assert.Contains(t, out, "127.0.0.1")
	assert.Contains(t, out, "Connection refused on port "+port)
	assert.Contains(t, stderr.String(), "checked 1/1")

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	results, err := export.ReadCSV(f)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Failed", string(results[0].Status))

	prom, err := os.ReadFile(promPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `sshcheck_probes_total{status="Failed"} 1`)

	stdout.Reset()
	code = run(context.Background(), []string{"-sqlite", dbPath, "-history", "5"}, &stdout, &stderr)
	require.Equal(t, exitOK, code)
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 2, "header plus one run")

	runID := strings.Fields(lines[1])[0]
	stdout.Reset()
	code = run(context.Background(), []string{"-no-color", "-sqlite", dbPath, "-show", runID}, &stdout, &stderr)
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout.String(), "Connection refused on port "+port)
}

func TestRun_HistoryNeedsDatabase(t *testing.T) {
	t.Chdir(t.TempDir())
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-history", "3"}, &stdout, &stderr)
	assert.Equal(t, exitError, code)
}

func TestRun_Interrupted(t *testing.T) {
	t.Chdir(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	code := run(ctx, []string{"-no-color", "-log-level", "error", "-host", "127.0.0.1", "-port", strconv.Itoa(closedPort(t))}, &stdout, &stderr)
	assert.Equal(t, exitInterrupted, code)
}
