package spi

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Record is the registry content for one contract.
type Record struct {
	// Contract is the contract binary name.
	Contract string

	// Providers holds distinct provider binary names in ordinal order.
	Providers []string
}

// Path returns the artifact path of the record.
func (r Record) Path() string { return RegistryPath(r.Contract) }

// GroupRecords groups bindings by contract binary name. Providers are
// deduplicated and sorted byte-wise; records are sorted by contract. The
// result depends only on the set of bindings, not on their order.
func GroupRecords(bindings []Binding) []Record {
	groups := map[string]map[string]struct{}{}
	for _, b := range bindings {
		g, ok := groups[b.ContractBinary]
		if !ok {
			g = map[string]struct{}{}
			groups[b.ContractBinary] = g
		}
		g[b.ProviderBinary] = struct{}{}
	}

	records := make([]Record, 0, len(groups))
	for contract, providers := range groups {
		list := make([]string, 0, len(providers))
		for p := range providers {
			list = append(list, p)
		}
		sort.Strings(list)
		records = append(records, Record{Contract: contract, Providers: list})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Contract < records[j].Contract })
	return records
}

// Generator writes registry artifacts and validates the final accumulator state.
type Generator struct {
	symbols  Symbols
	writer   ArtifactWriter
	reporter Reporter
	logger   *slog.Logger
}

// NewGenerator returns a Generator. A nil logger discards log output.
func NewGenerator(symbols Symbols, writer ArtifactWriter, reporter Reporter, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Generator{symbols: symbols, writer: writer, reporter: reporter, logger: logger}
}

// Run emits one artifact per non-empty contract group, then reports missing
// providers and invalid provider targets. Validation problems are reported
// as diagnostics and never stop generation. Write and lookup failures are
// collected and returned together after every group has been attempted.
//
// Run panics if acc has not been finalized.
func (g *Generator) Run(acc *Accumulator) error {
	if !acc.Finalized() {
		panic(errors.New("spi: generator run before accumulator finalization"))
	}

	bindings := acc.Bindings()
	var errs []error

	for _, rec := range GroupRecords(bindings) {
		g.reporter.Report(SeverityNote, fmt.Sprintf("writing %s with %d provider(s): %s",
			rec.Path(), len(rec.Providers), strings.Join(rec.Providers, ", ")))
		if err := g.writer.WriteLines(rec.Path(), rec.Providers); err != nil {
			g.logger.Error("registry write failed", "path", rec.Path(), "err", err)
			errs = append(errs, err)
		}
	}

	g.checkMissingProviders(acc.Contracts(), bindings)
	errs = append(errs, g.checkTargets(bindings)...)

	return errors.Join(errs...)
}

// checkMissingProviders reports every recorded contract no binding names.
func (g *Generator) checkMissingProviders(contracts []string, bindings []Binding) {
	bound := make(map[string]struct{}, len(bindings))
	for _, b := range bindings {
		bound[b.ContractCanonical] = struct{}{}
	}
	for _, c := range contracts {
		if _, ok := bound[c]; !ok {
			g.reporter.Report(SeverityError, missingProviderMessage(c))
		}
	}
}

// checkTargets reports, once per name, every binding target that is not a
// visible, marked contract.
func (g *Generator) checkTargets(bindings []Binding) []error {
	names := map[string]struct{}{}
	for _, b := range bindings {
		names[b.ContractCanonical] = struct{}{}
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	var errs []error
	for _, name := range sorted {
		decl, ok, err := safeLookup(g.symbols, name)
		switch {
		case err != nil:
			errs = append(errs, err)
		case !ok:
			g.reporter.Report(SeverityError, targetNotFoundMessage(name))
		case !decl.HasAnnotation(ContractAnnotation):
			g.reporter.Report(SeverityError, unmarkedTargetMessage(name))
		}
	}
	return errs
}
