package spi

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//
// -----------------------------------------------------------------------------
// Pass loop
// -----------------------------------------------------------------------------

// TestProcess_AccumulatesAcrossPasses verifies contracts from one pass and
// providers from a later pass meet at finalization.
func TestProcess_AccumulatesAcrossPasses(t *testing.T) {
	t.Parallel()

	api := contractDecl("my.api.Codec")
	impl := providerDecl("my.impl.JSON", typeOf(api))

	w := NewMemWriter()
	diags := NewDiagnostics(nil)
	p := NewProcessor(symbolsWith(api, impl), w, diags)

	require.NoError(t, p.Process(Round{Roots: []*TypeDecl{api}}))
	assert.Empty(t, w.Files)
	require.NoError(t, p.Process(Round{Roots: []*TypeDecl{impl}}))
	require.NoError(t, p.Process(Round{Over: true}))

	assert.True(t, p.Finalized())
	assert.Equal(t, "my.impl.JSON\n", string(w.Files["META-INF/services/my.api.Codec"]))
	assert.False(t, diags.HasErrors())
}

// TestProcess_RootsOnFinalRound verifies roots delivered with the final round
// are still collected before generation.
func TestProcess_RootsOnFinalRound(t *testing.T) {
	t.Parallel()

	api := contractDecl("my.api.Codec")
	impl := providerDecl("my.impl.JSON", typeOf(api))

	w := NewMemWriter()
	p := NewProcessor(symbolsWith(api, impl), w, NewDiagnostics(nil))
	require.NoError(t, p.Process(Round{Roots: []*TypeDecl{api, impl}, Over: true}))

	assert.Contains(t, w.Files, "META-INF/services/my.api.Codec")
}

// TestProcess_RepeatedFinalRoundIsNoop verifies generation runs exactly once.
func TestProcess_RepeatedFinalRoundIsNoop(t *testing.T) {
	t.Parallel()

	api := contractDecl("my.api.Codec")
	impl := providerDecl("my.impl.JSON", typeOf(api))

	w := &countingWriter{MemWriter: NewMemWriter()}
	diags := NewDiagnostics(nil)
	p := NewProcessor(symbolsWith(api, impl), w, diags)

	require.NoError(t, p.Process(Round{Roots: []*TypeDecl{api, impl}}))
	require.NoError(t, p.Process(Round{Over: true}))
	require.NoError(t, p.Process(Round{Over: true}))

	assert.Equal(t, 1, w.calls)
	assert.Len(t, diags.All(), 1)
}

// TestProcess_RootsAfterFinalPanics verifies recording after the final round
// is treated as a programming error.
func TestProcess_RootsAfterFinalPanics(t *testing.T) {
	t.Parallel()

	api := contractDecl("my.api.Codec")
	p := NewProcessor(symbolsWith(api), NewMemWriter(), NewDiagnostics(nil))
	require.NoError(t, p.Process(Round{Over: true}))

	requirePanicIs(t, ErrFinalized, func() {
		_ = p.Process(Round{Roots: []*TypeDecl{api}})
	})
}

// TestProcess_MalformedMarkingAborts verifies a resolver failure is returned
// before anything is generated.
func TestProcess_MalformedMarkingAborts(t *testing.T) {
	t.Parallel()

	bad := &TypeDecl{Ref: Ref("my.impl.Bad"), Annotations: []Annotation{{Type: ProviderAnnotation}}}
	p := NewProcessor(symbolsWith(bad), NewMemWriter(), NewDiagnostics(nil))

	err := p.Process(Round{Roots: []*TypeDecl{bad}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedMarking))
	assert.False(t, p.Finalized())
}

//
// -----------------------------------------------------------------------------
// Collection rules
// -----------------------------------------------------------------------------

// TestProcess_EncodingsEquivalent verifies an array marking [A, B] and two
// repeated markings A and B produce identical registries.
func TestProcess_EncodingsEquivalent(t *testing.T) {
	t.Parallel()

	a, b := contractDecl("my.api.A"), contractDecl("my.api.B")

	generate := func(impl *TypeDecl) map[string][]byte {
		w := NewMemWriter()
		p := NewProcessor(symbolsWith(a, b, impl), w, NewDiagnostics(nil))
		require.NoError(t, p.Process(Round{Roots: []*TypeDecl{a, b, impl}, Over: true}))
		return w.Files
	}

	arr := generate(providerDecl("my.impl.P", typeOf(a), typeOf(b)))
	rep := generate(repeatedProviderDecl("my.impl.P", typeOf(a), typeOf(b)))

	if diff := cmp.Diff(arr, rep); diff != "" {
		t.Fatalf("encodings differ (-array +repeated):\n%s", diff)
	}
	assert.Len(t, arr, 2)
}

// TestProcess_NonInterfaceContractIgnored verifies a marked class is not
// recorded as a unit contract and only yields a note.
func TestProcess_NonInterfaceContractIgnored(t *testing.T) {
	t.Parallel()

	cls := &TypeDecl{Ref: Ref("my.api.Base"), Kind: DeclClass, Annotations: []Annotation{{Type: ContractAnnotation}}}
	diags := NewDiagnostics(nil)
	p := NewProcessor(symbolsWith(cls), NewMemWriter(), diags)

	require.NoError(t, p.Process(Round{Roots: []*TypeDecl{cls}, Over: true}))

	assert.False(t, diags.HasErrors())
	require.Len(t, diags.All(), 1)
	assert.Contains(t, diags.All()[0].Message, "class `my.api.Base` ignored")
}

// TestProcess_SelfRegistrationSkipped verifies a provider naming itself does
// not produce a binding.
func TestProcess_SelfRegistrationSkipped(t *testing.T) {
	t.Parallel()

	self := contractDecl("my.api.Self")
	self.Annotations = append(self.Annotations, marking(TypeValue(self.Ref)))

	w := NewMemWriter()
	diags := NewDiagnostics(nil)
	p := NewProcessor(symbolsWith(self), w, diags)
	require.NoError(t, p.Process(Round{Roots: []*TypeDecl{self}, Over: true}))

	assert.Empty(t, w.Files)
	assert.Equal(t, []string{"no provider found for contract `my.api.Self`"}, errorMessages(diags))
}

// TestProcess_DeferredTargetValidated verifies a deferred reference to an
// unknown type still reaches validation as "not found".
func TestProcess_DeferredTargetValidated(t *testing.T) {
	t.Parallel()

	impl := providerDecl("my.impl.X", DeferredValue("elsewhere.Ghost"))
	diags := NewDiagnostics(nil)
	p := NewProcessor(symbolsWith(impl), NewMemWriter(), diags)

	require.NoError(t, p.Process(Round{Roots: []*TypeDecl{impl}, Over: true}))
	assert.Equal(t, []string{"contract target `elsewhere.Ghost` not found — is it visible to the analyzer?"}, errorMessages(diags))
}

//
// -----------------------------------------------------------------------------
// Options
// -----------------------------------------------------------------------------

// TestWithOptions_PassThrough verifies host options are carried untouched and copied.
func TestWithOptions_PassThrough(t *testing.T) {
	t.Parallel()

	in := map[string]string{"aggregating": "true"}
	p := NewProcessor(symbolsWith(), NewMemWriter(), NewDiagnostics(nil), WithOptions(in), WithLogger(nil))

	in["aggregating"] = "false"
	got := p.Options()
	assert.Equal(t, map[string]string{"aggregating": "true"}, got)

	got["extra"] = "x"
	assert.NotContains(t, p.Options(), "extra")
}

//
// -----------------------------------------------------------------------------
// Run
// -----------------------------------------------------------------------------

// TestRun_Units verifies Run wires several units through one processor and
// only checks the own-unit contracts for providers.
func TestRun_Units(t *testing.T) {
	t.Parallel()

	api := nestedContractDecl("my.api.Outer", "Inner")
	external := contractDecl("dep.api.External")
	impl := providerDecl("my.impl.Impl$ImplInner", DeferredValue("my.api.Outer.Inner"))

	units := []*Unit{
		{Name: "api", Rounds: [][]*TypeDecl{{api}}},
		{Name: "impl", Rounds: [][]*TypeDecl{{impl}}, Classpath: []*TypeDecl{external}},
	}

	w := NewMemWriter()
	diags := NewDiagnostics(nil)
	require.NoError(t, Run(units, w, diags))

	assert.Equal(t, []string{"META-INF/services/my.api.Outer$Inner"}, w.Paths())
	assert.Equal(t, "my.impl.Impl$ImplInner\n", string(w.Files["META-INF/services/my.api.Outer$Inner"]))
	assert.False(t, diags.HasErrors())
}

// TestRun_WrapsUnitContext verifies a malformed marking names its unit and round.
func TestRun_WrapsUnitContext(t *testing.T) {
	t.Parallel()

	bad := &TypeDecl{Ref: Ref("my.impl.Bad"), Annotations: []Annotation{{Type: ProviderAnnotation}}}
	err := Run([]*Unit{{Name: "impl", Rounds: [][]*TypeDecl{{}, {bad}}}}, NewMemWriter(), NewDiagnostics(nil))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedMarking))
	assert.Contains(t, err.Error(), `spi: unit "impl" round 2:`)
}
