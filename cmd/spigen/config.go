package main

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// hclConfig is the decoded shape of a spigen.hcl file.
type hclConfig struct {
	Out       *string        `hcl:"out,optional"`
	GoOut     *string        `hcl:"go_out,optional"`
	GoPackage *string        `hcl:"go_package,optional"`
	Dir       *string        `hcl:"dir,optional"`
	Graphs    []string       `hcl:"graphs,optional"`
	Packages  []string       `hcl:"packages,optional"`
	LogLevel  *string        `hcl:"log_level,optional"`
	LogFormat *string        `hcl:"log_format,optional"`
	Options   hcl.Expression `hcl:"options,optional"`
}

// settings is the merged configuration a run works from.
type settings struct {
	out       string
	goOut     string
	goPackage string
	dir       string
	graphs    []string
	packages  []string
	logLevel  string
	logFormat string
	options   map[string]string
}

// loadConfig parses an HCL config file. Relative paths are resolved against
// the directory holding the file.
func loadConfig(path string) (*settings, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, diags)
	}

	var raw hclConfig
	if diags := gohcl.DecodeBody(file.Body, nil, &raw); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, diags)
	}

	opts, err := decodeOptions(raw.Options)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	base := filepath.Dir(path)
	rel := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}

	s := &settings{options: opts}
	s.out = rel(deref(raw.Out))
	s.goOut = rel(deref(raw.GoOut))
	s.goPackage = deref(raw.GoPackage)
	s.dir = rel(deref(raw.Dir))
	s.logLevel = deref(raw.LogLevel)
	s.logFormat = deref(raw.LogFormat)
	for _, g := range raw.Graphs {
		s.graphs = append(s.graphs, rel(g))
	}
	s.packages = append(s.packages, raw.Packages...)
	if len(s.packages) > 0 && s.dir == "" {
		s.dir = base
	}
	return s, nil
}

// decodeOptions evaluates the options attribute as a map of strings. Bools
// and numbers are accepted and rendered in their HCL spelling.
func decodeOptions(expr hcl.Expression) (map[string]string, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("options: %w", diags)
	}
	if val.IsNull() {
		return nil, nil
	}

	converted, err := convert.Convert(val, cty.Map(cty.String))
	if err != nil {
		return nil, fmt.Errorf("options: must be a map of strings: %w", err)
	}

	out := map[string]string{}
	for k, v := range converted.AsValueMap() {
		if v.IsNull() {
			return nil, fmt.Errorf("options: %q must not be null", k)
		}
		out[k] = v.AsString()
	}
	return out, nil
}

// merge applies flag values over the config file. set names the flags given
// on the command line; flag options are layered over file options key by key.
func (s *settings) merge(flags *settings, set map[string]bool) {
	pick := func(name string, dst *string, v string) {
		if set[name] || *dst == "" {
			*dst = v
		}
	}
	pick("out", &s.out, flags.out)
	pick("go-out", &s.goOut, flags.goOut)
	pick("go-package", &s.goPackage, flags.goPackage)
	pick("dir", &s.dir, flags.dir)
	pick("log-level", &s.logLevel, flags.logLevel)
	pick("log-format", &s.logFormat, flags.logFormat)
	if set["graph"] {
		s.graphs = flags.graphs
	}
	if set["pkg"] {
		s.packages = flags.packages
	}
	if s.options == nil {
		s.options = map[string]string{}
	}
	for k, v := range flags.options {
		s.options[k] = v
	}
}

// optionKeys returns the option names in order, for logging.
func (s *settings) optionKeys() []string {
	keys := make([]string, 0, len(s.options))
	for k := range s.options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
