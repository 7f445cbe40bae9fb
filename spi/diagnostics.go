package spi

import (
	"fmt"
	"log/slog"
)

// Severity of a diagnostic.
type Severity int

const (
	SeverityNote Severity = iota
	SeverityError
)

// String implements fmt.Stringer.
func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "note"
}

// Diagnostic is one reported message.
type Diagnostic struct {
	Severity Severity
	Message  string
}

// String renders the diagnostic as "<severity>: <message>".
func (d Diagnostic) String() string { return d.Severity.String() + ": " + d.Message }

// Reporter is the diagnostic facility the core consumes. Error-severity
// reports must fail the build.
type Reporter interface {
	Report(sev Severity, msg string)
}

// Validation messages. Downstream tooling matches on these verbatim.
func missingProviderMessage(contract string) string {
	return fmt.Sprintf("no provider found for contract `%s`", contract)
}

func targetNotFoundMessage(name string) string {
	return fmt.Sprintf("contract target `%s` not found — is it visible to the analyzer?", name)
}

func unmarkedTargetMessage(name string) string {
	return fmt.Sprintf("provider target `%s` is not annotated as a service contract", name)
}

// Diagnostics is a Reporter that keeps every diagnostic and mirrors it to a logger.
type Diagnostics struct {
	items  []Diagnostic
	logger *slog.Logger
}

// NewDiagnostics returns an empty collector. A nil logger discards log output.
func NewDiagnostics(logger *slog.Logger) *Diagnostics {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Diagnostics{logger: logger}
}

// Report implements Reporter.
func (d *Diagnostics) Report(sev Severity, msg string) {
	d.items = append(d.items, Diagnostic{Severity: sev, Message: msg})
	if sev == SeverityError {
		d.logger.Error(msg)
		return
	}
	d.logger.Info(msg)
}

// All returns every diagnostic in report order.
func (d *Diagnostics) All() []Diagnostic {
	out := make([]Diagnostic, len(d.items))
	copy(out, d.items)
	return out
}

// Errors returns the error-severity diagnostics in report order.
func (d *Diagnostics) Errors() []Diagnostic {
	var out []Diagnostic
	for _, it := range d.items {
		if it.Severity == SeverityError {
			out = append(out, it)
		}
	}
	return out
}

// HasErrors reports whether any error-severity diagnostic was reported.
func (d *Diagnostics) HasErrors() bool {
	for _, it := range d.items {
		if it.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Err returns a *BuildError listing every error message, or nil.
func (d *Diagnostics) Err() error {
	errs := d.Errors()
	if len(errs) == 0 {
		return nil
	}
	return &BuildError{Diagnostics: errs}
}
