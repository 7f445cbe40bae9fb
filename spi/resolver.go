package spi

// Resolver extracts the contracts a declaration provides.
type Resolver struct {
	symbols Symbols

	container       string
	containerLoaded bool
}

// NewResolver returns a Resolver backed by symbols.
func NewResolver(symbols Symbols) *Resolver {
	return &Resolver{symbols: symbols}
}

// Markings returns every provider marking on decl: the direct instances
// followed by the instances flattened out of repeat containers.
func (r *Resolver) Markings(decl *TypeDecl) []Annotation {
	out := decl.AnnotationsOf(ProviderAnnotation)

	container, ok := r.containerType()
	if !ok {
		return out
	}
	for _, c := range decl.AnnotationsOf(container) {
		v, ok := c.Arg(ValueArg)
		if !ok {
			continue
		}
		for _, el := range v.Elements() {
			if el.Kind == ValueAnnotation && el.Annotation != nil && el.Annotation.Type == ProviderAnnotation {
				out = append(out, *el.Annotation)
			}
		}
	}
	return out
}

// ProvidedContracts returns the contracts named by every provider marking on
// decl, in source order. A declaration without markings yields nil.
func (r *Resolver) ProvidedContracts(decl *TypeDecl) ([]TypeRef, error) {
	var refs []TypeRef
	for _, m := range r.Markings(decl) {
		v, ok := m.Arg(ValueArg)
		if !ok {
			return nil, &MarkingError{Provider: decl.Ref.Canonical, Argument: ValueArg}
		}
		for _, el := range v.Elements() {
			ref, ok := r.TypeLiteral(el)
			if !ok {
				return nil, &MarkingError{Provider: decl.Ref.Canonical, Argument: ValueArg, Kind: el.Kind}
			}
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

// TypeLiteral reads v as a type literal. The direct value is tried first; a
// deferred reference or a type name is then recovered through the symbol
// table. A name the symbol table does not know is returned as-is so that
// validation can report it. ok is false only if v cannot denote a type.
func (r *Resolver) TypeLiteral(v Value) (TypeRef, bool) {
	if ref, ok := directTypeLiteral(v); ok {
		return ref, true
	}
	switch v.Kind {
	case ValueDeferred, ValueString:
		if v.Name == "" {
			return TypeRef{}, false
		}
		if ref, ok := r.symbols.ResolveDeferred(v.Name); ok {
			return ref, true
		}
		return Ref(v.Name), true
	default:
		return TypeRef{}, false
	}
}

// directTypeLiteral returns the type identity carried by v, or false if v is
// not a loaded type literal at this stage.
func directTypeLiteral(v Value) (TypeRef, bool) {
	if v.Kind != ValueType || v.Type.Canonical == "" {
		return TypeRef{}, false
	}
	ref := v.Type
	if ref.Binary == "" {
		ref.Binary = ref.Canonical
	}
	return ref, true
}

// containerType finds the repeat container declared on the provider
// annotation through its Repeatable meta-annotation.
func (r *Resolver) containerType() (string, bool) {
	if r.containerLoaded {
		return r.container, r.container != ""
	}
	r.containerLoaded = true

	decl, ok := r.symbols.Lookup(ProviderAnnotation)
	if !ok {
		return "", false
	}
	for _, meta := range decl.AnnotationsOf(RepeatableAnnotation) {
		v, ok := meta.Arg(ValueArg)
		if !ok {
			continue
		}
		if ref, ok := r.TypeLiteral(v); ok {
			r.container = ref.Canonical
			return r.container, true
		}
	}
	return "", false
}
