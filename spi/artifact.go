package spi

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sghaida/spigen/internal/fsutil"
)

// ServicesDir is the directory prefix every registry file is written under.
const ServicesDir = "META-INF/services/"

// ArtifactWriter is the artifact-writing facility the core consumes.
// Each call replaces the artifact at path wholesale.
type ArtifactWriter interface {
	WriteLines(path string, lines []string) error
}

// RegistryPath returns the artifact path for a contract binary name.
func RegistryPath(contractBinary string) string { return ServicesDir + contractBinary }

// encodeLines renders lines newline-terminated with no blank lines.
func encodeLines(lines []string) []byte {
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// DirWriter writes artifacts as files below Root.
type DirWriter struct {
	Root string
}

func NewDirWriter(root string) *DirWriter { return &DirWriter{Root: root} }

// WriteLines implements ArtifactWriter.
func (w *DirWriter) WriteLines(p string, lines []string) error {
	clean := path.Clean(p)
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("spi: artifact path %q escapes the output root", p)
	}
	target := filepath.Join(w.Root, filepath.FromSlash(clean))
	if err := fsutil.WriteFileAtomic(target, encodeLines(lines), 0o644); err != nil {
		return fmt.Errorf("spi: write %s: %w", target, err)
	}
	return nil
}

// MemWriter keeps artifacts in memory, keyed by path.
type MemWriter struct {
	Files map[string][]byte
}

func NewMemWriter() *MemWriter { return &MemWriter{Files: map[string][]byte{}} }

// WriteLines implements ArtifactWriter.
func (w *MemWriter) WriteLines(p string, lines []string) error {
	w.Files[p] = encodeLines(lines)
	return nil
}

// Paths returns the written paths, sorted.
func (w *MemWriter) Paths() []string {
	out := make([]string, 0, len(w.Files))
	for p := range w.Files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// ReadRegistry reads the providers registered for a contract from fsys the
// way a runtime lookup would: one name per line, blank lines and '#'
// comments ignored. A missing registry file yields fs.ErrNotExist.
//
// It is the consumer side of DirWriter, for programs that load a generated
// tree (or an embed.FS of it) at run time.
func ReadRegistry(fsys fs.FS, contractBinary string) ([]string, error) {
	data, err := fs.ReadFile(fsys, RegistryPath(contractBinary))
	if err != nil {
		return nil, err
	}
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out, sc.Err()
}
