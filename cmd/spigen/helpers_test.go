package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type pkgHarness struct {
	t   *testing.T
	dir string
}

func newPkg(t *testing.T) *pkgHarness {
	t.Helper()
	return &pkgHarness{t: t, dir: t.TempDir()}
}

func (p *pkgHarness) write(rel, content string) string {
	p.t.Helper()
	path := filepath.Join(p.dir, filepath.FromSlash(rel))
	require.NoError(p.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(p.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (p *pkgHarness) out(rel string) string {
	return filepath.Join(p.dir, filepath.FromSlash(rel))
}

func (p *pkgHarness) read(rel string) string {
	p.t.Helper()
	b, err := os.ReadFile(p.out(rel))
	require.NoError(p.t, err)
	return string(b)
}

func (p *pkgHarness) exists(rel string) bool {
	_, err := os.Stat(p.out(rel))
	return err == nil
}

// runCLI runs the command and returns exit code, stdout and stderr.
func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

const apiGraph = `unit: api
rounds:
  - types:
      - name: my.api.Outer.Inner
        binary: my.api.Outer$Inner
        kind: interface
        contract: true
`

const implGraph = `unit: impl
options:
  aggregating: "false"
rounds:
  - types:
      - name: my.impl.Impl.ImplInner
        binary: my.impl.Impl$ImplInner
        annotations:
          - type: spi.ServiceProvider
            args:
              value: {deferred: my.api.Outer.Inner}
`

const brokenGraph = `unit: broken
rounds:
  - types:
      - name: my.api.Lonely
        kind: interface
        contract: true
      - name: my.impl.X
        provides: [my.api.Plain, elsewhere.Ghost]
      - name: my.api.Plain
        kind: interface
`

const shorthandGraph = `unit: shorthand
rounds:
  - types:
      - name: my.impl.Short
        provides: [my.api.Outer.Inner]
`
