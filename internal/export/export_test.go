package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/HerbHall/sshcheck/internal/testutil"
	"github.com/HerbHall/sshcheck/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResults() []models.CheckResult {
	return []models.CheckResult{
		testutil.NewResult(testutil.WithServer("web-1"), testutil.WithResponseTime(12340*time.Microsecond)),
		testutil.NewResult(testutil.WithServer("web-2"), testutil.WithStatus(models.StatusConnected, "Authentication required (but SSH service is running)")),
		testutil.NewResult(testutil.WithServer("db-1"), testutil.WithStatus(models.StatusFailed, "Connection refused on port 22")),
		testutil.NewResult(testutil.WithServer("db-2"), testutil.WithStatus(models.StatusTimeout, "Connection timeout after 10s")),
		testutil.NewResult(testutil.WithServer("edge, \"quoted\""), testutil.WithStatus(models.StatusError, "Unexpected error: boom"), testutil.Unmeasured()),
	}
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	results := sampleResults()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, results))

	firstLine := strings.SplitN(buf.String(), "\n", 2)[0]
	assert.Equal(t, "server,status,response_time,error", firstLine)

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, got, len(results))

	for i := range results {
		assert.Equal(t, results[i].Server, got[i].Server, "row %d server", i)
		assert.Equal(t, results[i].Status, got[i].Status, "row %d status", i)
		assert.Equal(t, results[i].Error, got[i].Error, "row %d error", i)
		assert.Equal(t, results[i].Measured, got[i].Measured, "row %d measured", i)
		assert.Equal(t, results[i].ResponseTimeString(), got[i].ResponseTimeString(), "row %d response time", i)
	}
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadCSV_Malformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"wrong header", "host,state,rt,err\n"},
		{"short row", "server,status,response_time,error\nweb-1,Connected\n"},
		{"bad status", "server,status,response_time,error\nweb-1,Up,1.00 ms,\n"},
		{"bad time", "server,status,response_time,error\nweb-1,Connected,fast,\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.in))
			assert.ErrorIs(t, err, ErrMalformedExport)
		})
	}
}

func TestSaveCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFilename(time.Unix(1700000000, 0)))
	assert.True(t, strings.HasSuffix(path, "ssh_connectivity_results_1700000000.csv"))

	require.NoError(t, SaveCSV(path, sampleResults()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := ReadCSV(f)
	require.NoError(t, err)
	assert.Len(t, got, len(sampleResults()))
}

func TestWriteChart(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteChart(&buf, sampleResults()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")), "output is not a PNG")
}

func TestWriteChart_NoMeasuredResults(t *testing.T) {
	results := []models.CheckResult{testutil.NewResult(testutil.Unmeasured())}
	err := WriteChart(&bytes.Buffer{}, results)
	assert.ErrorIs(t, err, ErrNoChartData)
}

func TestWriteMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "sshcheck_test_total", Help: "test counter"})
	reg.MustRegister(c)
	c.Add(3)

	path := filepath.Join(t.TempDir(), "sshcheck.prom")
	require.NoError(t, WriteMetrics(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sshcheck_test_total 3")
}
