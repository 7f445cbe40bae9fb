// Package gosource builds declaration graphs from Go packages.
//
// Types opt in through directive comments placed in their doc comment:
//
//	//spi:contract
//	type Codec interface { ... }
//
//	//spi:provider Codec other.Sink
//	type JSON struct{}
//
// Type arguments are package-local names or alias-qualified names of an
// imported package. They are resolved through go/types; anything the loaded
// type graph cannot see (including fully qualified "example.com/x.Name"
// spellings) is kept as a deferred reference and resolved by name later.
// Several provider directives on one type are folded into the repeat
// container annotation.
//
// Type identities are "importpath.TypeName" for both canonical and binary names.
package gosource

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/sghaida/spigen/internal/ctxlog"
	"github.com/sghaida/spigen/spi"
)

// Directive prefixes recognized in doc comments.
const (
	ContractDirective = "//spi:contract"
	ProviderDirective = "//spi:provider"
)

// LoadMode is the go/packages mode the loader needs: syntax and type
// information for roots and for their dependencies.
const LoadMode = packages.NeedName | packages.NeedFiles | packages.NeedImports | packages.NeedDeps |
	packages.NeedTypes | packages.NeedTypesInfo | packages.NeedSyntax | packages.NeedModule

// Load loads the packages matching patterns relative to dir and returns them
// as one unit. Each root package becomes one round, ordered by import path.
// Non-root packages that belong to a module are placed on the classpath.
func Load(ctx context.Context, dir string, patterns ...string) (*spi.Unit, error) {
	logger := ctxlog.FromContext(ctx)
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}

	cfg := &packages.Config{
		Context: ctx,
		Dir:     dir,
		Mode:    LoadMode,
		Logf: func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...))
		},
	}
	roots, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("gosource: load %s: %w", strings.Join(patterns, " "), err)
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("gosource: no packages matched %s", strings.Join(patterns, " "))
	}
	if err := loadErrors(roots); err != nil {
		return nil, err
	}
	return FromPackages(ctx, roots)
}

// loadErrors joins every error reported by the loaded package graph.
func loadErrors(roots []*packages.Package) error {
	var errs []error
	packages.Visit(roots, nil, func(p *packages.Package) {
		for _, e := range p.Errors {
			errs = append(errs, fmt.Errorf("gosource: %s: %s", p.PkgPath, e.Msg))
		}
	})
	return errors.Join(errs...)
}

// FromPackages converts already-loaded packages into a unit. roots must carry
// syntax and type information.
func FromPackages(ctx context.Context, roots []*packages.Package) (*spi.Unit, error) {
	logger := ctxlog.FromContext(ctx)

	sorted := append([]*packages.Package(nil), roots...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PkgPath < sorted[j].PkgPath })

	isRoot := make(map[string]bool, len(sorted))
	for _, p := range sorted {
		isRoot[p.PkgPath] = true
	}

	u := &spi.Unit{Name: unitName(sorted)}
	for _, p := range sorted {
		decls, err := Declarations(p)
		if err != nil {
			return nil, err
		}
		logger.Debug("package scanned", "pkg", p.PkgPath, "types", len(decls))
		u.Rounds = append(u.Rounds, decls)
	}

	var deps []*packages.Package
	packages.Visit(sorted, nil, func(p *packages.Package) {
		if !isRoot[p.PkgPath] && p.Module != nil && len(p.Syntax) > 0 {
			deps = append(deps, p)
		}
	})
	sort.Slice(deps, func(i, j int) bool { return deps[i].PkgPath < deps[j].PkgPath })
	for _, p := range deps {
		decls, err := Declarations(p)
		if err != nil {
			return nil, err
		}
		u.Classpath = append(u.Classpath, decls...)
	}
	return u, nil
}

func unitName(pkgs []*packages.Package) string {
	if len(pkgs) == 0 {
		return ""
	}
	if m := pkgs[0].Module; m != nil {
		return m.Path
	}
	return pkgs[0].PkgPath
}

// Declarations returns the named types declared at package level in p, in
// source order, with their directives translated into annotations.
func Declarations(p *packages.Package) ([]*spi.TypeDecl, error) {
	var out []*spi.TypeDecl
	for _, file := range p.Syntax {
		for _, d := range file.Decls {
			gd, ok := d.(*ast.GenDecl)
			if !ok || gd.Tok != token.TYPE {
				continue
			}
			for _, s := range gd.Specs {
				ts := s.(*ast.TypeSpec)
				doc := ts.Doc
				if doc == nil && len(gd.Specs) == 1 {
					doc = gd.Doc
				}
				decl, err := typeDecl(p, file, ts, doc)
				if err != nil {
					return nil, err
				}
				if decl != nil {
					out = append(out, decl)
				}
			}
		}
	}
	return out, nil
}

func typeDecl(p *packages.Package, file *ast.File, ts *ast.TypeSpec, doc *ast.CommentGroup) (*spi.TypeDecl, error) {
	obj, ok := p.TypesInfo.Defs[ts.Name].(*types.TypeName)
	if !ok {
		return nil, nil
	}
	decl := &spi.TypeDecl{
		Ref:  refOf(obj),
		Kind: spi.DeclClass,
		Pos:  p.Fset.Position(ts.Pos()).String(),
	}
	if _, isIface := obj.Type().Underlying().(*types.Interface); isIface {
		decl.Kind = spi.DeclInterface
	}

	dirs, err := ParseDirectives(doc)
	if err != nil {
		return nil, fmt.Errorf("gosource: %s: %w", decl.Pos, err)
	}
	if dirs.Contract {
		decl.Annotations = append(decl.Annotations, spi.Annotation{Type: spi.ContractAnnotation})
	}

	markings := make([]spi.Annotation, 0, len(dirs.Provides))
	for _, names := range dirs.Provides {
		a := spi.Annotation{Type: spi.ProviderAnnotation}
		if len(names) > 0 {
			vals := make([]spi.Value, 0, len(names))
			for _, n := range names {
				vals = append(vals, typeArg(p, file, n))
			}
			a.Args = map[string]spi.Value{spi.ValueArg: spi.ListValue(vals...)}
		}
		markings = append(markings, a)
	}
	switch len(markings) {
	case 0:
	case 1:
		decl.Annotations = append(decl.Annotations, markings[0])
	default:
		vals := make([]spi.Value, 0, len(markings))
		for _, m := range markings {
			vals = append(vals, spi.AnnotationValue(m))
		}
		decl.Annotations = append(decl.Annotations, spi.Annotation{
			Type: spi.ProviderContainerAnnotation,
			Args: map[string]spi.Value{spi.ValueArg: spi.ListValue(vals...)},
		})
	}
	return decl, nil
}

func refOf(obj *types.TypeName) spi.TypeRef {
	if obj.Pkg() == nil {
		return spi.Ref(obj.Name())
	}
	return spi.Ref(obj.Pkg().Path() + "." + obj.Name())
}

// typeArg resolves a directive argument to a type literal, falling back to a
// deferred reference when go/types cannot see the name.
func typeArg(p *packages.Package, file *ast.File, name string) spi.Value {
	if strings.Contains(name, "/") {
		return spi.DeferredValue(name)
	}

	var obj types.Object
	if qual, sel, ok := strings.Cut(name, "."); ok {
		if scope := p.TypesInfo.Scopes[file]; scope != nil {
			if pn, ok := scope.Lookup(qual).(*types.PkgName); ok {
				obj = pn.Imported().Scope().Lookup(sel)
			}
		}
	} else if p.Types != nil {
		obj = p.Types.Scope().Lookup(name)
	}

	if tn, ok := obj.(*types.TypeName); ok {
		return spi.TypeValue(refOf(tn))
	}
	if p.Types != nil && !strings.Contains(name, ".") {
		return spi.DeferredValue(p.Types.Path() + "." + name)
	}
	return spi.DeferredValue(name)
}

// Directives are the spi directives found in one doc comment.
type Directives struct {
	Contract bool

	// Provides holds the arguments of each provider directive in order.
	// A directive without arguments yields an empty entry.
	Provides [][]string
}

// ParseDirectives extracts spi directives from a doc comment. Unknown
// directives in the spi namespace are rejected.
func ParseDirectives(doc *ast.CommentGroup) (Directives, error) {
	var d Directives
	if doc == nil {
		return d, nil
	}
	for _, c := range doc.List {
		text := strings.TrimRight(c.Text, " \t")
		if !strings.HasPrefix(text, "//spi:") {
			continue
		}
		fields := strings.Fields(text)
		verb, args := fields[0], fields[1:]
		switch verb {
		case ContractDirective:
			if len(args) > 0 {
				return d, fmt.Errorf("%s takes no arguments", ContractDirective)
			}
			d.Contract = true
		case ProviderDirective:
			d.Provides = append(d.Provides, args)
		default:
			return d, fmt.Errorf("unknown directive %q", verb)
		}
	}
	return d, nil
}
