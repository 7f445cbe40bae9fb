package spi

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

//
// -----------------------------------------------------------------------------
// Shared fixtures
// -----------------------------------------------------------------------------

// contractDecl returns a marked interface declaration.
func contractDecl(name string) *TypeDecl {
	return &TypeDecl{Ref: Ref(name), Kind: DeclInterface, Annotations: []Annotation{{Type: ContractAnnotation}}}
}

// nestedContractDecl returns a marked interface nested in outer.
func nestedContractDecl(outer, inner string) *TypeDecl {
	return &TypeDecl{
		Ref:         TypeRef{Canonical: outer + "." + inner, Binary: outer + "$" + inner},
		Kind:        DeclInterface,
		Annotations: []Annotation{{Type: ContractAnnotation}},
	}
}

// plainDecl returns an interface without any marking.
func plainDecl(name string) *TypeDecl {
	return &TypeDecl{Ref: Ref(name), Kind: DeclInterface}
}

// marking returns one provider marking listing contracts in its value array.
func marking(contracts ...Value) Annotation {
	return Annotation{Type: ProviderAnnotation, Args: map[string]Value{ValueArg: ListValue(contracts...)}}
}

// providerDecl returns a class carrying a single array-valued provider marking.
func providerDecl(name string, contracts ...Value) *TypeDecl {
	return &TypeDecl{Ref: Ref(name), Kind: DeclClass, Annotations: []Annotation{marking(contracts...)}}
}

// repeatedProviderDecl returns a class carrying one marking per contract,
// wrapped in the repeat container the way a host desugars repetition.
func repeatedProviderDecl(name string, contracts ...Value) *TypeDecl {
	nested := make([]Value, 0, len(contracts))
	for _, c := range contracts {
		nested = append(nested, AnnotationValue(marking(c)))
	}
	return &TypeDecl{
		Ref:  Ref(name),
		Kind: DeclClass,
		Annotations: []Annotation{{
			Type: ProviderContainerAnnotation,
			Args: map[string]Value{ValueArg: ListValue(nested...)},
		}},
	}
}

// typeOf returns a direct type literal for decl.
func typeOf(decl *TypeDecl) Value { return TypeValue(decl.Ref) }

// symbolsWith returns a symbol table holding Builtins plus decls.
func symbolsWith(decls ...*TypeDecl) *MapSymbols {
	return NewMapSymbols().Provide(Builtins()...).Provide(decls...)
}

// finalized returns a finalized accumulator holding contracts and bindings.
func finalized(contracts []string, bindings ...Binding) *Accumulator {
	acc := NewAccumulator()
	for _, c := range contracts {
		acc.RecordContract(c)
	}
	for _, b := range bindings {
		acc.RecordBinding(b)
	}
	acc.Finalize()
	return acc
}

// bind returns a binding whose binary names equal the canonical ones.
func bind(contract, provider string) Binding {
	return Binding{ContractCanonical: contract, ContractBinary: contract, ProviderBinary: provider}
}

// errorMessages returns the messages of every error diagnostic.
func errorMessages(d *Diagnostics) []string {
	var out []string
	for _, it := range d.Errors() {
		out = append(out, it.Message)
	}
	return out
}

// requirePanicIs asserts fn panics with an error matching target.
func requirePanicIs(t *testing.T, target error, fn func()) {
	t.Helper()

	defer func() {
		recovered := recover()
		require.NotNil(t, recovered)

		err, ok := recovered.(error)
		require.True(t, ok, "expected error panic, got %T: %v", recovered, recovered)
		require.True(t, errors.Is(err, target), "expected %v, got: %v", target, err)
	}()

	fn()
}

//
// -----------------------------------------------------------------------------
// Writer / symbol doubles
// -----------------------------------------------------------------------------

// failingWriter fails for the paths listed in fail and records the rest.
type failingWriter struct {
	*MemWriter
	fail map[string]bool
}

func (w *failingWriter) WriteLines(p string, lines []string) error {
	if w.fail[p] {
		return fmt.Errorf("disk full: %s", p)
	}
	return w.MemWriter.WriteLines(p, lines)
}

// countingWriter counts WriteLines calls.
type countingWriter struct {
	*MemWriter
	calls int
}

func (w *countingWriter) WriteLines(p string, lines []string) error {
	w.calls++
	return w.MemWriter.WriteLines(p, lines)
}

// panickingSymbols panics on Lookup.
type panickingSymbols struct{ *MapSymbols }

func (panickingSymbols) Lookup(string) (*TypeDecl, bool) { panic("boom") }
