package spi

import (
	"fmt"
	"log/slog"
	"maps"
)

// Round is one analysis pass as driven by the host.
type Round struct {
	// Roots are the declarations analyzed in this pass.
	Roots []*TypeDecl

	// Over is set on the final pass. No further rounds may follow it.
	Over bool
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger used for pass-level debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithOptions attaches host options. They are carried through untouched.
func WithOptions(opts map[string]string) Option {
	return func(p *Processor) { p.options = maps.Clone(opts) }
}

// Processor owns the Accumulator of one run and drives it through the passes.
type Processor struct {
	resolver  *Resolver
	acc       *Accumulator
	generator *Generator
	reporter  Reporter
	logger    *slog.Logger
	options   map[string]string
	passes    int
}

// NewProcessor returns a Processor in the collecting state.
func NewProcessor(symbols Symbols, writer ArtifactWriter, reporter Reporter, opts ...Option) *Processor {
	p := &Processor{
		resolver: NewResolver(symbols),
		acc:      NewAccumulator(),
		reporter: reporter,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.generator = NewGenerator(symbols, writer, reporter, p.logger)
	return p
}

// Options returns a copy of the host options.
func (p *Processor) Options() map[string]string { return maps.Clone(p.options) }

// Finalized reports whether the final round has been processed.
func (p *Processor) Finalized() bool { return p.acc.Finalized() }

// Process runs one pass. Marked interfaces among the roots are recorded as
// contracts of this unit and every provider marking becomes a binding. On the
// final round the accumulator is finalized and the registry is generated; a
// repeated final round does nothing.
//
// A returned *MarkingError aborts the run. Recording roots after the final
// round panics with *FinalizedError.
func (p *Processor) Process(round Round) error {
	p.passes++
	p.logger.Debug("processing pass", "pass", p.passes, "roots", len(round.Roots), "over", round.Over)

	for _, decl := range round.Roots {
		if err := p.collect(decl); err != nil {
			return err
		}
	}

	if !round.Over {
		return nil
	}
	if !p.acc.Finalize() {
		p.logger.Debug("final pass already processed, skipping generation", "pass", p.passes)
		return nil
	}
	p.logger.Debug("generating registry",
		"contracts", len(p.acc.Contracts()), "bindings", len(p.acc.Bindings()), "options", p.options)
	return p.generator.Run(p.acc)
}

func (p *Processor) collect(decl *TypeDecl) error {
	if decl.HasAnnotation(ContractAnnotation) {
		if decl.Kind == DeclInterface {
			p.acc.RecordContract(decl.Ref.Canonical)
		} else {
			p.reporter.Report(SeverityNote, fmt.Sprintf(
				"service contract marking on %s `%s` ignored: only interfaces are recorded", decl.Kind, decl.Ref.Canonical))
		}
	}

	contracts, err := p.resolver.ProvidedContracts(decl)
	if err != nil {
		return err
	}
	for _, c := range contracts {
		if c.Binary == decl.Ref.Binary {
			p.reporter.Report(SeverityNote, fmt.Sprintf(
				"provider `%s` names itself as a contract: binding ignored", decl.Ref.Canonical))
			continue
		}
		p.acc.RecordBinding(Binding{
			ContractCanonical: c.Canonical,
			ContractBinary:    c.Binary,
			ProviderBinary:    decl.Ref.Binary,
		})
	}
	if len(contracts) > 0 {
		p.logger.Debug("provider discovered", "provider", decl.Ref.Binary, "contracts", len(contracts), "pos", decl.Pos)
	}
	return nil
}

// Run processes every round of every unit in order, then the final round.
// The symbol table holds Builtins and every declaration of every unit.
func Run(units []*Unit, writer ArtifactWriter, reporter Reporter, opts ...Option) error {
	symbols := NewMapSymbols().Provide(Builtins()...)
	for _, u := range units {
		symbols.Provide(u.Declarations()...)
	}

	p := NewProcessor(symbols, writer, reporter, opts...)
	for _, u := range units {
		for i, roots := range u.Rounds {
			if err := p.Process(Round{Roots: roots}); err != nil {
				return fmt.Errorf("spi: unit %q round %d: %w", u.Name, i+1, err)
			}
		}
	}
	return p.Process(Round{Over: true})
}
