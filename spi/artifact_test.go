package spi

import (
	"bytes"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//
// -----------------------------------------------------------------------------
// DirWriter
// -----------------------------------------------------------------------------

// TestDirWriter_WritesAndOverwrites verifies files are written below the root
// and replaced wholesale on a second write.
func TestDirWriter_WritesAndOverwrites(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	w := NewDirWriter(root)

	require.NoError(t, w.WriteLines(RegistryPath("my.api.Outer$Inner"), []string{"a.One", "a.Two"}))
	target := filepath.Join(root, "META-INF", "services", "my.api.Outer$Inner")

	b, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "a.One\na.Two\n", string(b))

	require.NoError(t, w.WriteLines(RegistryPath("my.api.Outer$Inner"), []string{"b.Only"}))
	b, err = os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "b.Only\n", string(b))
}

// TestDirWriter_RejectsEscapingPaths verifies paths outside the root are refused.
func TestDirWriter_RejectsEscapingPaths(t *testing.T) {
	t.Parallel()

	w := NewDirWriter(t.TempDir())
	for _, p := range []string{"../x", "/abs/x", "a/../../x"} {
		err := w.WriteLines(p, []string{"x"})
		require.Error(t, err, p)
		assert.Contains(t, err.Error(), "escapes the output root")
	}
}

// TestDirWriter_ReportsWriteErrors verifies an unwritable root surfaces as an error.
func TestDirWriter_ReportsWriteErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	err := NewDirWriter(blocker).WriteLines(RegistryPath("a.B"), []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spi: write ")
}

//
// -----------------------------------------------------------------------------
// MemWriter / ReadRegistry
// -----------------------------------------------------------------------------

// TestMemWriter_Paths verifies written paths are listed sorted.
func TestMemWriter_Paths(t *testing.T) {
	t.Parallel()

	w := NewMemWriter()
	require.NoError(t, w.WriteLines("b", nil))
	require.NoError(t, w.WriteLines("a", []string{"x"}))

	assert.Equal(t, []string{"a", "b"}, w.Paths())
	assert.Empty(t, w.Files["b"])
}

// TestReadRegistry_RoundTrip verifies a generated file reads back as the provider list.
func TestReadRegistry_RoundTrip(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, NewDirWriter(root).WriteLines(RegistryPath("my.api.A"), []string{"x.One", "x.Two"}))

	got, err := ReadRegistry(os.DirFS(root), "my.api.A")
	require.NoError(t, err)
	assert.Equal(t, []string{"x.One", "x.Two"}, got)
}

// TestReadRegistry_SkipsCommentsAndBlanks verifies hand-edited files are tolerated.
func TestReadRegistry_SkipsCommentsAndBlanks(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"META-INF/services/my.api.A": {Data: []byte("# header\n\n  x.One  \nx.Two # trailing\n")},
	}
	got, err := ReadRegistry(fsys, "my.api.A")
	require.NoError(t, err)
	assert.Equal(t, []string{"x.One", "x.Two"}, got)
}

// TestReadRegistry_Missing verifies a missing registry maps to fs.ErrNotExist.
func TestReadRegistry_Missing(t *testing.T) {
	t.Parallel()

	_, err := ReadRegistry(fstest.MapFS{}, "my.api.A")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

//
// -----------------------------------------------------------------------------
// Diagnostics
// -----------------------------------------------------------------------------

// TestDiagnostics_CollectsAndLogs verifies every report is kept in order and
// mirrored to the logger.
func TestDiagnostics_CollectsAndLogs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	d := NewDiagnostics(slog.New(slog.NewTextHandler(&buf, nil)))

	d.Report(SeverityNote, "first")
	d.Report(SeverityError, "second")
	d.Report(SeverityError, "third")

	assert.Len(t, d.All(), 3)
	assert.True(t, d.HasErrors())
	assert.Equal(t, []Diagnostic{
		{Severity: SeverityError, Message: "second"},
		{Severity: SeverityError, Message: "third"},
	}, d.Errors())
	assert.Equal(t, "note: first", d.All()[0].String())
	assert.Contains(t, buf.String(), "level=ERROR msg=second")
	assert.Contains(t, buf.String(), "level=INFO msg=first")

	err := d.Err()
	require.Error(t, err)
	assert.Equal(t, "spi: build failed with 2 error(s)\n  second\n  third", err.Error())
}

// TestDiagnostics_NoErrors verifies Err is nil when only notes were reported.
func TestDiagnostics_NoErrors(t *testing.T) {
	t.Parallel()

	d := NewDiagnostics(nil)
	d.Report(SeverityNote, "fine")

	assert.False(t, d.HasErrors())
	assert.NoError(t, d.Err())
	assert.Empty(t, d.Errors())
}
