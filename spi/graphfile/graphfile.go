// Package graphfile reads declaration graphs from YAML (or JSON) documents.
//
// A graph file describes one analyzed unit: its rounds of own declarations,
// the declarations visible on its classpath, and free-form host options.
//
//	unit: impl
//	rounds:
//	  - types:
//	      - name: my.impl.JSON
//	        provides: [my.api.Codec]
//	classpath:
//	  - name: my.api.Codec
//	    kind: interface
//	    contract: true
//
// The shorthand fields contract and provides expand into the marker
// annotations; the general annotations form can express everything else,
// including deferred references and the repeat container. A type literal
// naming a type this document does not declare is recorded as a deferred
// reference, so its identity is taken from whichever unit declares it.
package graphfile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/sghaida/spigen/spi"
)

// Document is the root of a graph file.
type Document struct {
	UnitName  string            `yaml:"unit" json:"unit,omitempty" jsonschema:"title=Unit name,description=Name used in diagnostics. Defaults to the file name."`
	Options   map[string]string `yaml:"options,omitempty" json:"options,omitempty" jsonschema:"description=Host options passed through to the processor untouched."`
	Rounds    []RoundDoc        `yaml:"rounds" json:"rounds" jsonschema:"title=Rounds,description=Own declarations grouped by analysis pass."`
	Classpath []TypeDoc         `yaml:"classpath,omitempty" json:"classpath,omitempty" jsonschema:"title=Classpath,description=Declarations visible by name only."`
}

// RoundDoc holds the declarations of one pass.
type RoundDoc struct {
	Types []TypeDoc `yaml:"types" json:"types"`
}

// TypeDoc describes one type declaration.
type TypeDoc struct {
	Name        string          `yaml:"name" json:"name" jsonschema:"required,minLength=1,description=Canonical (dotted) name."`
	Binary      string          `yaml:"binary,omitempty" json:"binary,omitempty" jsonschema:"description=Binary name. Defaults to the canonical name."`
	Kind        string          `yaml:"kind,omitempty" json:"kind,omitempty" jsonschema:"enum=class,enum=interface,enum=annotation"`
	Contract    bool            `yaml:"contract,omitempty" json:"contract,omitempty" jsonschema:"description=Shorthand for a service contract marking."`
	Provides    []string        `yaml:"provides,omitempty" json:"provides,omitempty" jsonschema:"description=Shorthand for a service provider marking naming these contracts."`
	Annotations []AnnotationDoc `yaml:"annotations,omitempty" json:"annotations,omitempty"`
}

// AnnotationDoc is one annotation instance.
type AnnotationDoc struct {
	Type string              `yaml:"type" json:"type" jsonschema:"required,minLength=1"`
	Args map[string]ValueDoc `yaml:"args,omitempty" json:"args,omitempty"`
}

// ValueDoc is an annotation argument. Exactly one field must be set.
type ValueDoc struct {
	Type       *string        `yaml:"type,omitempty" json:"type,omitempty" jsonschema:"description=Type literal naming a declaration."`
	Deferred   *string        `yaml:"deferred,omitempty" json:"deferred,omitempty" jsonschema:"description=Type literal the host could only record by name."`
	String     *string        `yaml:"string,omitempty" json:"string,omitempty"`
	Annotation *AnnotationDoc `yaml:"annotation,omitempty" json:"annotation,omitempty"`
	List       []ValueDoc     `yaml:"list,omitempty" json:"list,omitempty"`
}

// Error reports a problem at a field path inside a document.
type Error struct {
	Path string
	Msg  string
}

func (e *Error) Error() string {
	if e.Path == "" {
		return "graphfile: " + e.Msg
	}
	return fmt.Sprintf("graphfile: %s: %s", e.Path, e.Msg)
}

func errorf(path, format string, args ...any) error {
	return &Error{Path: path, Msg: fmt.Sprintf(format, args...)}
}

// Parse decodes a document. Unknown fields are rejected.
func Parse(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("graphfile: decode: %w", err)
	}
	return &doc, nil
}

// Load reads and decodes the document at path. An empty unit name is
// replaced by the file name without extension.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("graphfile: read %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if doc.UnitName == "" {
		base := filepath.Base(path)
		doc.UnitName = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return doc, nil
}

// Unit converts the document into the declaration graph the processor consumes.
func (d *Document) Unit() (*spi.Unit, error) {
	b := &builder{index: map[string]spi.TypeRef{}}
	if err := b.indexAll(d); err != nil {
		return nil, err
	}

	u := &spi.Unit{Name: d.UnitName}
	for i, r := range d.Rounds {
		round := make([]*spi.TypeDecl, 0, len(r.Types))
		for j, td := range r.Types {
			decl, err := b.decl(fmt.Sprintf("rounds[%d].types[%d]", i, j), td)
			if err != nil {
				return nil, err
			}
			round = append(round, decl)
		}
		u.Rounds = append(u.Rounds, round)
	}
	for i, td := range d.Classpath {
		decl, err := b.decl(fmt.Sprintf("classpath[%d]", i), td)
		if err != nil {
			return nil, err
		}
		u.Classpath = append(u.Classpath, decl)
	}
	return u, nil
}

// builder resolves type literals against the names declared in one document.
type builder struct {
	index map[string]spi.TypeRef
}

func (b *builder) indexAll(d *Document) error {
	add := func(path string, td TypeDoc) error {
		if strings.TrimSpace(td.Name) == "" {
			return errorf(path+".name", "must not be empty")
		}
		if _, dup := b.index[td.Name]; dup {
			return errorf(path+".name", "duplicate declaration %q", td.Name)
		}
		ref := spi.Ref(td.Name)
		if td.Binary != "" {
			ref.Binary = td.Binary
		}
		b.index[td.Name] = ref
		return nil
	}
	for i, r := range d.Rounds {
		for j, td := range r.Types {
			if err := add(fmt.Sprintf("rounds[%d].types[%d]", i, j), td); err != nil {
				return err
			}
		}
	}
	for i, td := range d.Classpath {
		if err := add(fmt.Sprintf("classpath[%d]", i), td); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) ref(name string) spi.TypeRef {
	if ref, ok := b.index[name]; ok {
		return ref
	}
	return spi.Ref(name)
}

// literal turns a type name into a type literal. Only names declared in this
// document carry a known binary name; the rest are deferred to the symbol table.
func (b *builder) literal(name string) spi.Value {
	if ref, ok := b.index[name]; ok {
		return spi.TypeValue(ref)
	}
	return spi.DeferredValue(name)
}

func (b *builder) decl(path string, td TypeDoc) (*spi.TypeDecl, error) {
	kind, ok := spi.ParseDeclKind(td.Kind)
	if !ok {
		return nil, errorf(path+".kind", "unknown kind %q", td.Kind)
	}
	decl := &spi.TypeDecl{Ref: b.ref(td.Name), Kind: kind, Pos: path}

	if td.Contract {
		decl.Annotations = append(decl.Annotations, spi.Annotation{Type: spi.ContractAnnotation})
	}
	if len(td.Provides) > 0 {
		vals := make([]spi.Value, 0, len(td.Provides))
		for _, name := range td.Provides {
			vals = append(vals, b.literal(name))
		}
		decl.Annotations = append(decl.Annotations, spi.Annotation{
			Type: spi.ProviderAnnotation,
			Args: map[string]spi.Value{spi.ValueArg: spi.ListValue(vals...)},
		})
	}
	for i, ad := range td.Annotations {
		a, err := b.annotation(fmt.Sprintf("%s.annotations[%d]", path, i), ad)
		if err != nil {
			return nil, err
		}
		decl.Annotations = append(decl.Annotations, a)
	}
	return decl, nil
}

func (b *builder) annotation(path string, ad AnnotationDoc) (spi.Annotation, error) {
	if strings.TrimSpace(ad.Type) == "" {
		return spi.Annotation{}, errorf(path+".type", "must not be empty")
	}
	a := spi.Annotation{Type: ad.Type}
	if len(ad.Args) == 0 {
		return a, nil
	}

	names := make([]string, 0, len(ad.Args))
	for name := range ad.Args {
		names = append(names, name)
	}
	sort.Strings(names)

	a.Args = make(map[string]spi.Value, len(names))
	for _, name := range names {
		v, err := b.value(path+".args."+name, ad.Args[name])
		if err != nil {
			return spi.Annotation{}, err
		}
		a.Args[name] = v
	}
	return a, nil
}

func (b *builder) value(path string, vd ValueDoc) (spi.Value, error) {
	set := 0
	for _, ok := range []bool{vd.Type != nil, vd.Deferred != nil, vd.String != nil, vd.Annotation != nil, vd.List != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return spi.Value{}, errorf(path, "exactly one of type, deferred, string, annotation or list must be set")
	}

	switch {
	case vd.Type != nil:
		return b.literal(*vd.Type), nil
	case vd.Deferred != nil:
		return spi.DeferredValue(*vd.Deferred), nil
	case vd.String != nil:
		return spi.StringValue(*vd.String), nil
	case vd.Annotation != nil:
		a, err := b.annotation(path+".annotation", *vd.Annotation)
		if err != nil {
			return spi.Value{}, err
		}
		return spi.AnnotationValue(a), nil
	default:
		vals := make([]spi.Value, 0, len(vd.List))
		for i, el := range vd.List {
			v, err := b.value(fmt.Sprintf("%s.list[%d]", path, i), el)
			if err != nil {
				return spi.Value{}, err
			}
			vals = append(vals, v)
		}
		return spi.ListValue(vals...), nil
	}
}

// Schema returns a JSON Schema describing graph files, for editor support.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{}
	schema := reflector.Reflect(new(Document))
	schema.Title = "spigen declaration graph"
	schema.Description = "One analyzed unit: rounds of own declarations plus classpath declarations."
	return schema
}
