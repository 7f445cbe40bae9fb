// Package goindex mirrors generated registries into a Go source file, so Go
// programs can look up providers without reading META-INF resources.
package goindex

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"go/format"
	"go/token"
	"sort"
	"strings"
	"sync"
	"text/template"

	"github.com/sghaida/spigen/internal/fsutil"
	"github.com/sghaida/spigen/spi"
)

// Writer is an spi.ArtifactWriter that forwards every registry to the next
// writer and keeps a copy for Render.
type Writer struct {
	next spi.ArtifactWriter

	mu      sync.Mutex
	records map[string][]string
}

// NewWriter returns a Writer forwarding to next. A nil next only records.
func NewWriter(next spi.ArtifactWriter) *Writer {
	return &Writer{next: next, records: map[string][]string{}}
}

// WriteLines implements spi.ArtifactWriter. Paths outside the services
// directory are forwarded but not recorded.
func (w *Writer) WriteLines(path string, lines []string) error {
	if w.next != nil {
		if err := w.next.WriteLines(path, lines); err != nil {
			return err
		}
	}
	contract, ok := strings.CutPrefix(path, spi.ServicesDir)
	if !ok || contract == "" {
		return nil
	}
	w.mu.Lock()
	w.records[contract] = append([]string(nil), lines...)
	w.mu.Unlock()
	return nil
}

// Records returns the recorded registries ordered by contract.
func (w *Writer) Records() []spi.Record {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]spi.Record, 0, len(w.records))
	for c, ps := range w.records {
		out = append(out, spi.Record{Contract: c, Providers: append([]string(nil), ps...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Contract < out[j].Contract })
	return out
}

// WriteFile renders the recorded registries as package pkg and writes them
// atomically to path.
func (w *Writer) WriteFile(path, pkg string) error {
	src, err := Render(pkg, w.Records())
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(path, src, 0o644); err != nil {
		return fmt.Errorf("goindex: write %s: %w", path, err)
	}
	return nil
}

// Render returns gofmt-ed Go source declaring the registries. The output
// depends only on pkg and the records' content, not their order.
func Render(pkg string, records []spi.Record) ([]byte, error) {
	if !token.IsIdentifier(pkg) {
		return nil, fmt.Errorf("goindex: invalid package name %q", pkg)
	}

	sorted := append([]spi.Record(nil), records...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Contract < sorted[j].Contract })

	data := map[string]any{
		"Package": pkg,
		"Records": sorted,
		"Hash":    contentHash(sorted),
	}

	var buf bytes.Buffer
	if err := indexTpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("goindex: execute template: %w", err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("goindex: format: %w", err)
	}
	return src, nil
}

// contentHash hashes the registry files exactly as they are written.
func contentHash(records []spi.Record) string {
	h := sha256.New()
	for _, r := range records {
		fmt.Fprintf(h, "%s\n", r.Path())
		for _, p := range r.Providers {
			fmt.Fprintf(h, "%s\n", p)
		}
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

var indexTpl = template.Must(
	template.New("index").
		Funcs(template.FuncMap{"quote": func(s string) string { return fmt.Sprintf("%q", s) }}).
		Parse(`// Code generated by spigen; DO NOT EDIT.
// Registry-SHA256: {{.Hash}}

package {{.Package}}

// Providers maps each service contract to its registered providers, in
// registry order.
var Providers = map[string][]string{
{{- range .Records}}
	{{quote .Contract}}: {
	{{- range .Providers}}
		{{quote .}},
	{{- end}}
	},
{{- end}}
}

// Lookup returns a copy of the providers registered for contract.
func Lookup(contract string) []string {
	return append([]string(nil), Providers[contract]...)
}
`))
