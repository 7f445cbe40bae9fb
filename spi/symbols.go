package spi

import (
	"fmt"
)

// Symbols is the symbol-resolution facility the core consumes.
//
// It is intentionally:
// - read-only
// - populated by a host before processing starts
// - keyed by canonical name, with binary names accepted for deferred lookups
type Symbols interface {
	// Lookup returns the declaration for a canonical name. ok is false for
	// names outside the visible symbol set.
	Lookup(canonical string) (decl *TypeDecl, ok bool)

	// ResolveDeferred recovers the identity of a type literal the host could
	// only record by name.
	ResolveDeferred(name string) (ref TypeRef, ok bool)
}

// MapSymbols is a simple in-memory symbol table.
type MapSymbols struct {
	items  map[string]*TypeDecl
	binary map[string]*TypeDecl
}

func NewMapSymbols() *MapSymbols {
	return &MapSymbols{items: map[string]*TypeDecl{}, binary: map[string]*TypeDecl{}}
}

// Provide stores declarations under their canonical and binary names and
// returns the table for chaining. A later declaration replaces an earlier one
// with the same name.
func (s *MapSymbols) Provide(decls ...*TypeDecl) *MapSymbols {
	for _, d := range decls {
		if d == nil {
			continue
		}
		s.items[d.Ref.Canonical] = d
		if d.Ref.Binary != "" {
			s.binary[d.Ref.Binary] = d
		}
	}
	return s
}

// Lookup implements Symbols.
func (s *MapSymbols) Lookup(canonical string) (*TypeDecl, bool) {
	d, ok := s.items[canonical]
	return d, ok
}

// ResolveDeferred implements Symbols. The name may be canonical or binary.
func (s *MapSymbols) ResolveDeferred(name string) (TypeRef, bool) {
	if d, ok := s.items[name]; ok {
		return d.Ref, true
	}
	if d, ok := s.binary[name]; ok {
		return d.Ref, true
	}
	return TypeRef{}, false
}

// Get returns the declaration if present (no panic).
func (s *MapSymbols) Get(canonical string) (*TypeDecl, bool) {
	return s.Lookup(canonical)
}

// MustGet returns the declaration or panics with a helpful message.
// Useful in tests where a missing declaration should fail fast.
func (s *MapSymbols) MustGet(canonical string) *TypeDecl {
	d, ok := s.items[canonical]
	if !ok {
		panic(fmt.Errorf("spi: symbol table missing type %q", canonical))
	}
	return d
}

// Len returns the number of declarations known by canonical name.
func (s *MapSymbols) Len() int { return len(s.items) }

// safeLookup calls Lookup and converts a panicking implementation into an error.
func safeLookup(symbols Symbols, canonical string) (decl *TypeDecl, ok bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			decl = nil
			ok = false
			err = fmt.Errorf("%w: %v", ErrSymbolsPanic, rec)
		}
	}()
	decl, ok = symbols.Lookup(canonical)
	return decl, ok, nil
}
