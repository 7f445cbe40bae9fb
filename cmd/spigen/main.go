package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sghaida/spigen/internal/ctxlog"
	"github.com/sghaida/spigen/spi"
	"github.com/sghaida/spigen/spi/goindex"
	"github.com/sghaida/spigen/spi/gosource"
	"github.com/sghaida/spigen/spi/graphfile"
)

// Exit codes.
const (
	exitOK       = 0
	exitFailed   = 1
	exitUsage    = 2
	exitInternal = 3
)

// runUnits is the processor entry point, overridden in tests.
var runUnits = spi.Run

const usage = "usage: spigen [-config spigen.hcl] (-graph <file.yaml> | -pkg <pattern>)... [-out <dir>] [-go-out <file.go>]"

// stringList is a repeatable string flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// optionFlags is a repeatable k=v flag.
type optionFlags map[string]string

func (o optionFlags) String() string {
	parts := make([]string, 0, len(o))
	for k, v := range o {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (o optionFlags) Set(v string) error {
	k, val, ok := strings.Cut(v, "=")
	if !ok || strings.TrimSpace(k) == "" {
		return fmt.Errorf("option %q must look like key=value", v)
	}
	o[strings.TrimSpace(k)] = val
	return nil
}

// run executes the generator and returns an exit code.
// It exists separately from main to allow unit testing without os.Exit.
func run(args []string, stdout, stderr io.Writer) (code int) {
	defer func() {
		if rec := recover(); rec != nil {
			_, _ = fmt.Fprintf(stderr, "spigen: internal error: %v\n", rec)
			code = exitInternal
		}
	}()

	flags := flag.NewFlagSet("spigen", flag.ContinueOnError)
	flags.SetOutput(stderr)

	var graphs, pkgs stringList
	opts := optionFlags{}
	configPath := flags.String("config", "", "HCL config file")
	flags.Var(&graphs, "graph", "declaration graph file (repeatable)")
	flags.Var(&pkgs, "pkg", "Go package pattern to scan (repeatable)")
	dir := flags.String("dir", ".", "directory Go package patterns are resolved in")
	out := flags.String("out", "", "root directory for META-INF/services registries")
	goOut := flags.String("go-out", "", "write a Go registry index to this file")
	goPackage := flags.String("go-package", "registry", "package name of the Go registry index")
	flags.Var(opts, "option", "processor option key=value (repeatable)")
	logLevel := flags.String("log-level", "warn", "log level: debug, info, warn, error")
	logFormat := flags.String("log-format", "text", "log format: text or json")
	schema := flags.Bool("schema", false, "print the graph file JSON schema and exit")

	if err := flags.Parse(args); err != nil {
		return exitUsage
	}

	if *schema {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(graphfile.Schema()); err != nil {
			_, _ = fmt.Fprintf(stderr, "spigen: %v\n", err)
			return exitFailed
		}
		return exitOK
	}

	fromFlags := &settings{
		out:       *out,
		goOut:     *goOut,
		goPackage: *goPackage,
		dir:       *dir,
		graphs:    graphs,
		packages:  pkgs,
		logLevel:  *logLevel,
		logFormat: *logFormat,
		options:   opts,
	}

	cfg := fromFlags
	if *configPath != "" {
		loaded, err := loadConfig(*configPath)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "spigen: %v\n", err)
			return exitUsage
		}
		set := map[string]bool{}
		flags.Visit(func(f *flag.Flag) { set[f.Name] = true })
		loaded.merge(fromFlags, set)
		cfg = loaded
	}

	if len(cfg.graphs) == 0 && len(cfg.packages) == 0 {
		_, _ = fmt.Fprintln(stderr, usage)
		return exitUsage
	}
	if cfg.out == "" && cfg.goOut == "" {
		_, _ = fmt.Fprintln(stderr, "spigen: one of -out or -go-out is required")
		_, _ = fmt.Fprintln(stderr, usage)
		return exitUsage
	}
	level, ok := ctxlog.ParseLevel(cfg.logLevel)
	if !ok {
		_, _ = fmt.Fprintf(stderr, "spigen: unknown log level %q\n", cfg.logLevel)
		return exitUsage
	}

	logger := ctxlog.New(level, cfg.logFormat, stderr)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("configuration loaded", "graphs", len(cfg.graphs), "packages", len(cfg.packages), "options", cfg.optionKeys())

	if err := generate(ctx, cfg, stderr); err != nil {
		_, _ = fmt.Fprintf(stderr, "spigen: %v\n", err)
		return exitFailed
	}
	return exitOK
}

// generate loads every unit, runs the processor over them and writes the
// outputs. Diagnostics are printed to w as they are collected.
func generate(ctx context.Context, cfg *settings, w io.Writer) error {
	logger := ctxlog.FromContext(ctx)

	units, options, err := loadUnits(ctx, cfg)
	if err != nil {
		return err
	}

	var writer spi.ArtifactWriter
	if cfg.out != "" {
		writer = spi.NewDirWriter(cfg.out)
	}
	var index *goindex.Writer
	if cfg.goOut != "" {
		index = goindex.NewWriter(writer)
		writer = index
	}

	diags := spi.NewDiagnostics(nil)
	runErr := runUnits(units, writer, diags, spi.WithLogger(logger), spi.WithOptions(options))
	for _, d := range diags.All() {
		_, _ = fmt.Fprintln(w, d.String())
	}
	if runErr != nil {
		return runErr
	}

	if index != nil {
		if err := index.WriteFile(cfg.goOut, cfg.goPackage); err != nil {
			return err
		}
		logger.Info("go registry index written", "path", cfg.goOut, "contracts", len(index.Records()))
	}
	return diags.Err()
}

// loadUnits reads graph files first, then the scanned Go packages as one
// more unit. Graph file options sit below configured options.
func loadUnits(ctx context.Context, cfg *settings) ([]*spi.Unit, map[string]string, error) {
	var units []*spi.Unit
	options := map[string]string{}

	for _, path := range cfg.graphs {
		doc, err := graphfile.Load(path)
		if err != nil {
			return nil, nil, err
		}
		u, err := doc.Unit()
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		for k, v := range doc.Options {
			options[k] = v
		}
		units = append(units, u)
	}

	if len(cfg.packages) > 0 {
		u, err := gosource.Load(ctx, cfg.dir, cfg.packages...)
		if err != nil {
			return nil, nil, err
		}
		units = append(units, u)
	}

	for k, v := range cfg.options {
		options[k] = v
	}
	return units, options, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
