package targets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestManual(t *testing.T) {
	got, err := Manual([]string{" web-1 ", "", "10.0.0.1", "   ", "web-1"}, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"web-1", "10.0.0.1", "web-1"}, got)

	_, err = Manual([]string{"a", "b", "c", "d", "e", "f"}, 0)
	assert.ErrorIs(t, err, ErrTooManyTargets)

	got, err = Manual([]string{"a", "b", "c"}, 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestParseText(t *testing.T) {
	in := "web-1.example.com\n\n  10.0.0.5  \r\n\t\nweb-1.example.com\n"
	got, err := ParseText(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"web-1.example.com", "10.0.0.5", "web-1.example.com"}, got)
}

func TestParseCSV_ColumnSelection(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "server column",
			in:   "id,Server,owner\n1,web-1,ops\n2,web-2,dev\n",
			want: []string{"web-1", "web-2"},
		},
		{
			name: "case-insensitive hostname",
			in:   "HOSTNAME,env\ndb-1,prod\n",
			want: []string{"db-1"},
		},
		{
			name: "priority prefers server over ip",
			in:   "ip,server\n10.0.0.1,web-1\n",
			want: []string{"web-1"},
		},
		{
			name: "address column with blanks",
			in:   "note,address\nx, 10.0.0.1 \ny,\nz,10.0.0.2\n",
			want: []string{"10.0.0.1", "10.0.0.2"},
		},
		{
			name: "utf-8 bom",
			in:   "\ufefffqdn\nweb-1.example.com\n",
			want: []string{"web-1.example.com"},
		},
		{
			name: "header only",
			in:   "server\n",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCSV(strings.NewReader(tt.in), zap.NewNop())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCSV_FallbackWarns(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	got, err := ParseCSV(strings.NewReader("machine,rack\nweb-1,r1\nweb-2,r2\n"), zap.New(core))
	require.NoError(t, err)
	assert.Equal(t, []string{"web-1", "web-2"}, got)

	entries := logs.FilterMessageSnippet("using first column").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "machine", entries[0].ContextMap()["column"])
}

func TestParseCSV_Empty(t *testing.T) {
	got, err := ParseCSV(strings.NewReader(""), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "hosts.CSV")
	require.NoError(t, os.WriteFile(csvPath, []byte("host\nweb-1\nweb-2\n"), 0o600))
	got, err := ParseFile(csvPath, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"web-1", "web-2"}, got)

	txtPath := filepath.Join(dir, "hosts.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("web-3\n\nweb-4\n"), 0o600))
	got, err = ParseFile(txtPath, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"web-3", "web-4"}, got)

	emptyPath := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(emptyPath, []byte("\n\n"), 0o600))
	_, err = ParseFile(emptyPath, zap.NewNop())
	assert.ErrorIs(t, err, ErrNoTargets)

	_, err = ParseFile(filepath.Join(dir, "hosts.xlsx"), zap.NewNop())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = ParseFile(filepath.Join(dir, "missing.txt"), zap.NewNop())
	assert.Error(t, err)
}
