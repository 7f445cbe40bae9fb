package spi

import (
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrMalformedMarking is matched by MarkingError. It means the host fed a
	// provider marking the resolver cannot interpret.
	ErrMalformedMarking = errors.New("spi: malformed provider marking")

	// ErrFinalized is matched by FinalizedError. It means a caller recorded
	// into an Accumulator after the final pass.
	ErrFinalized = errors.New("spi: accumulator already finalized")

	// ErrSymbolsPanic is returned if a symbol table panics during a lookup.
	ErrSymbolsPanic = errors.New("spi: panic during symbol lookup")
)

// MarkingError is returned when a provider marking is present but its value
// argument is missing or cannot be read as type literals.
type MarkingError struct {
	// Provider is the canonical name of the annotated declaration.
	Provider string

	// Argument is the argument that could not be read.
	Argument string

	// Kind is the kind of the offending element. ValueInvalid means the
	// argument is missing altogether.
	Kind ValueKind
}

// Error implements the error interface.
func (e *MarkingError) Error() string {
	// Example: provider marking on `my.impl.Impl` is missing required argument `value`
	if e.Kind == ValueInvalid {
		return "provider marking on `" + e.Provider + "` is missing required argument `" + e.Argument + "`"
	}
	return "provider marking on `" + e.Provider + "` has an unreadable `" + e.Argument + "` element (" + e.Kind.String() + ")"
}

// Is lets errors.Is match ErrMalformedMarking.
func (e *MarkingError) Is(target error) bool { return target == ErrMalformedMarking }

// FinalizedError is the panic value raised when an Accumulator is mutated
// after finalization.
type FinalizedError struct {
	// Op is the rejected operation.
	Op string
}

// Error implements the error interface.
func (e *FinalizedError) Error() string {
	// Example: spi: RecordBinding called after finalization
	return "spi: " + e.Op + " called after finalization"
}

// Is lets errors.Is match ErrFinalized.
func (e *FinalizedError) Is(target error) bool { return target == ErrFinalized }

// BuildError carries every error-severity diagnostic of a run.
type BuildError struct {
	Diagnostics []Diagnostic
}

// Error implements the error interface. Every message is listed, one per line.
func (e *BuildError) Error() string {
	var sb strings.Builder
	sb.WriteString("spi: build failed with ")
	sb.WriteString(strconv.Itoa(len(e.Diagnostics)))
	sb.WriteString(" error(s)")
	for _, d := range e.Diagnostics {
		sb.WriteString("\n  ")
		sb.WriteString(d.Message)
	}
	return sb.String()
}
