package spi

import "strings"

// Marker annotation names understood by the resolver.
const (
	// ContractAnnotation marks a type as a valid service-discovery key.
	ContractAnnotation = "spi.ServiceContract"

	// ProviderAnnotation marks a type as a provider of one or more contracts.
	// Its "value" argument lists the contract type literals.
	ProviderAnnotation = "spi.ServiceProvider"

	// ProviderContainerAnnotation holds repeated ProviderAnnotation instances.
	ProviderContainerAnnotation = "spi.ServiceProviders"

	// RepeatableAnnotation is a meta-annotation placed on an annotation
	// declaration. Its "value" argument names the container type.
	RepeatableAnnotation = "spi.Repeatable"

	// ValueArg is the argument name carrying an annotation's main value.
	ValueArg = "value"
)

// DeclKind is the kind of a type declaration.
type DeclKind int

const (
	DeclClass DeclKind = iota
	DeclInterface
	DeclAnnotation
)

// String returns the lower-case kind name used in graph files and logs.
func (k DeclKind) String() string {
	switch k {
	case DeclInterface:
		return "interface"
	case DeclAnnotation:
		return "annotation"
	default:
		return "class"
	}
}

// ParseDeclKind maps a kind name back to a DeclKind. The empty string is a class.
func ParseDeclKind(s string) (DeclKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "class":
		return DeclClass, true
	case "interface":
		return DeclInterface, true
	case "annotation":
		return DeclAnnotation, true
	default:
		return DeclClass, false
	}
}

// TypeRef is a nominal type identity.
//
// Canonical is the dotted name (my.api.Outer.Inner). Binary separates nested
// types with '$' (my.api.Outer$Inner) and is the name registry files are keyed by.
type TypeRef struct {
	Canonical string
	Binary    string
}

// Ref builds a TypeRef whose binary name equals its canonical name.
func Ref(name string) TypeRef { return TypeRef{Canonical: name, Binary: name} }

// String implements fmt.Stringer.
func (r TypeRef) String() string { return r.Canonical }

// TypeDecl is one type-level declaration in the declaration graph.
type TypeDecl struct {
	Ref         TypeRef
	Kind        DeclKind
	Annotations []Annotation

	// Pos is an optional source position used in log output.
	Pos string
}

// HasAnnotation reports whether an annotation of the given type is attached directly.
func (d *TypeDecl) HasAnnotation(typ string) bool {
	if d == nil {
		return false
	}
	for _, a := range d.Annotations {
		if a.Type == typ {
			return true
		}
	}
	return false
}

// AnnotationsOf returns the directly attached annotations of the given type, in order.
func (d *TypeDecl) AnnotationsOf(typ string) []Annotation {
	if d == nil {
		return nil
	}
	var out []Annotation
	for _, a := range d.Annotations {
		if a.Type == typ {
			out = append(out, a)
		}
	}
	return out
}

// Annotation is a single annotation usage.
type Annotation struct {
	// Type is the canonical name of the annotation type.
	Type string

	// Args holds the explicitly given arguments by name.
	Args map[string]Value
}

// Arg returns the named argument if present.
func (a Annotation) Arg(name string) (Value, bool) {
	v, ok := a.Args[name]
	return v, ok
}

// ValueKind discriminates Value.
type ValueKind int

const (
	ValueInvalid ValueKind = iota
	// ValueType is a type literal already resolved to a type identity.
	ValueType
	// ValueDeferred is a type literal the host could not load at this stage.
	// Only its name is known; Symbols.ResolveDeferred recovers the identity.
	ValueDeferred
	ValueString
	ValueAnnotation
	ValueList
)

// String returns a short name for the kind.
func (k ValueKind) String() string {
	switch k {
	case ValueType:
		return "type"
	case ValueDeferred:
		return "deferred"
	case ValueString:
		return "string"
	case ValueAnnotation:
		return "annotation"
	case ValueList:
		return "list"
	default:
		return "invalid"
	}
}

// Value is an annotation argument value.
type Value struct {
	Kind ValueKind

	// Type is set for ValueType.
	Type TypeRef
	// Name is set for ValueDeferred (the unresolved type name) and ValueString.
	Name string
	// Annotation is set for ValueAnnotation.
	Annotation *Annotation
	// List is set for ValueList.
	List []Value
}

func TypeValue(ref TypeRef) Value { return Value{Kind: ValueType, Type: ref} }

func DeferredValue(name string) Value { return Value{Kind: ValueDeferred, Name: name} }

func StringValue(s string) Value { return Value{Kind: ValueString, Name: s} }

func AnnotationValue(a Annotation) Value { return Value{Kind: ValueAnnotation, Annotation: &a} }

func ListValue(vs ...Value) Value { return Value{Kind: ValueList, List: vs} }

// Elements returns the list elements, or the value itself as a single element.
func (v Value) Elements() []Value {
	if v.Kind == ValueList {
		return v.List
	}
	return []Value{v}
}

// Builtins returns the declarations of the marker annotation types.
//
// ProviderAnnotation carries RepeatableAnnotation naming ProviderContainerAnnotation,
// which is how the resolver finds the repeat container.
func Builtins() []*TypeDecl {
	return []*TypeDecl{
		{Ref: Ref(ContractAnnotation), Kind: DeclAnnotation},
		{
			Ref:  Ref(ProviderAnnotation),
			Kind: DeclAnnotation,
			Annotations: []Annotation{{
				Type: RepeatableAnnotation,
				Args: map[string]Value{ValueArg: TypeValue(Ref(ProviderContainerAnnotation))},
			}},
		},
		{Ref: Ref(ProviderContainerAnnotation), Kind: DeclAnnotation},
		{Ref: Ref(RepeatableAnnotation), Kind: DeclAnnotation},
	}
}

// Unit is one analyzed compilation unit as produced by a host.
type Unit struct {
	Name string

	// Rounds holds the unit's own declarations, one slice per analysis pass.
	Rounds [][]*TypeDecl

	// Classpath holds declarations visible by name only (already compiled
	// dependencies). They are never roots of a pass.
	Classpath []*TypeDecl
}

// Declarations returns every declaration of the unit, rounds first.
func (u *Unit) Declarations() []*TypeDecl {
	var out []*TypeDecl
	for _, r := range u.Rounds {
		out = append(out, r...)
	}
	return append(out, u.Classpath...)
}
