package spi

import "sort"

// Binding is one (provider, contract) association.
type Binding struct {
	ContractCanonical string
	ContractBinary    string
	ProviderBinary    string
}

type accState int

const (
	stateCollecting accState = iota
	stateFinalized
)

// Accumulator collects contracts and bindings across the passes of one run.
//
// It is append-only while collecting and read-only once finalized. Recording
// after finalization is a caller bug and panics with *FinalizedError.
// The zero value is not usable; call NewAccumulator.
type Accumulator struct {
	state     accState
	contracts map[string]struct{}
	bindings  []Binding
	seen      map[Binding]struct{}
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		contracts: map[string]struct{}{},
		seen:      map[Binding]struct{}{},
	}
}

// RecordContract adds a contract declared in the current unit. Idempotent.
func (a *Accumulator) RecordContract(canonical string) {
	a.mustCollect("RecordContract")
	a.contracts[canonical] = struct{}{}
}

// RecordBinding appends a binding. Recording an identical binding again has
// no effect; the same provider may still appear once per contract it serves.
func (a *Accumulator) RecordBinding(b Binding) {
	a.mustCollect("RecordBinding")
	if _, dup := a.seen[b]; dup {
		return
	}
	a.seen[b] = struct{}{}
	a.bindings = append(a.bindings, b)
}

// Finalize moves the accumulator to the finalized state. It returns true for
// the call that performed the transition and false for every later call.
func (a *Accumulator) Finalize() bool {
	if a.state == stateFinalized {
		return false
	}
	a.state = stateFinalized
	return true
}

// Finalized reports whether Finalize has been called.
func (a *Accumulator) Finalized() bool { return a.state == stateFinalized }

// Contracts returns the recorded contract names, sorted.
func (a *Accumulator) Contracts() []string {
	out := make([]string, 0, len(a.contracts))
	for c := range a.contracts {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Bindings returns a copy of the recorded bindings in discovery order.
func (a *Accumulator) Bindings() []Binding {
	out := make([]Binding, len(a.bindings))
	copy(out, a.bindings)
	return out
}

func (a *Accumulator) mustCollect(op string) {
	if a.state != stateCollecting {
		panic(&FinalizedError{Op: op})
	}
}
