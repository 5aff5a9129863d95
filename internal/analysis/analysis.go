// Package analysis builds the scope tree of a file from its syntax tree and
// records every definition and usage with the diagnostics collector.
//
// Analysis of a file runs in two passes. The first binds every top-level
// declaration so functions can refer to each other regardless of order.
// The second walks bodies, binds locals and resolves usages.
package analysis

import (
	"log/slog"

	"github.com/jward/questscript/ast"
	"github.com/jward/questscript/internal/diagnostics"
	"github.com/jward/questscript/internal/scope"
	"github.com/jward/questscript/internal/types"
)

// Analyzer owns no state of its own beyond configuration. Scopes, types and
// collected ranges live in the structures it is given.
type Analyzer struct {
	table         *scope.Table
	types         *types.System
	coll          *diagnostics.Collector
	logger        *slog.Logger
	defaultOrigin string
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// WithDefaultOrigin names the host class used by prototypes without an
// explicit origin.
func WithDefaultOrigin(name string) Option {
	return func(a *Analyzer) { a.defaultOrigin = name }
}

// New returns an analyzer writing into table, ts and coll.
func New(table *scope.Table, ts *types.System, coll *diagnostics.Collector, opts ...Option) *Analyzer {
	a := &Analyzer{
		table:         table,
		types:         ts,
		coll:          coll,
		logger:        slog.New(slog.DiscardHandler),
		defaultOrigin: "entity",
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// DeclarePrimitives binds the built-in type names in the global scope.
func (a *Analyzer) DeclarePrimitives() {
	g := a.table.Global()
	for _, p := range types.Primitives {
		if p == types.Any {
			continue
		}
		a.table.Bind(g, scope.NewSymbol(p.Name(), scope.KindType, p, nil, ast.Range{}))
	}
}

// DeclareType binds a registered aggregate in the global scope. Its nested
// scope holds one symbol per member and bound method.
func (a *Analyzer) DeclareType(agg *types.Aggregate) *scope.Symbol {
	g := a.table.Global()
	if sym, ok := a.table.Resolve(g, agg.Name(), false); ok {
		return sym
	}
	sym := a.table.NewScopedSymbol(g, agg.Name(), scope.KindType, agg, nil, ast.Range{})
	a.table.Bind(g, sym)
	for _, m := range agg.Members() {
		a.table.Bind(sym.Nested, scope.NewSymbol(m.Name, scope.KindMember, m.Type, nil, ast.Range{}))
	}
	for _, m := range agg.Methods() {
		a.table.Bind(sym.Nested, scope.NewSymbol(m.Name, scope.KindNative, m.Type, nil, ast.Range{}))
	}
	return sym
}

// DeclareEnum binds an enum type name in the global scope.
func (a *Analyzer) DeclareEnum(e *types.Enum) {
	g := a.table.Global()
	a.table.Bind(g, scope.NewSymbol(e.Name(), scope.KindType, e, nil, ast.Range{}))
}

// DeclareNative binds a host function in the global scope. It returns false
// when the name is taken.
func (a *Analyzer) DeclareNative(name string, fn *types.Function) bool {
	return a.table.Bind(a.table.Global(), scope.NewSymbol(name, scope.KindNative, fn, nil, ast.Range{}))
}

// AnalyzeFile builds the scope subtree for f. The path must not already be
// loaded; callers drop the previous tree first.
func (a *Analyzer) AnalyzeFile(f *ast.File) (scope.ID, error) {
	ids, err := a.AnalyzeFiles(f)
	if err != nil {
		return scope.Null, err
	}
	return ids[0], nil
}

// AnalyzeFiles analyzes files as one batch: every file's top-level names
// are declared before any body is resolved, so files in the batch see each
// other regardless of order. Scopes are created in argument order.
func (a *Analyzer) AnalyzeFiles(files ...*ast.File) ([]scope.ID, error) {
	walkers := make([]*walker, 0, len(files))
	ids := make([]scope.ID, 0, len(files))
	for _, f := range files {
		fs, err := a.table.NewFileScope(f.Path, f)
		if err != nil {
			return nil, err
		}
		walkers = append(walkers, &walker{a: a, file: f.Path, fs: fs, syms: make(map[ast.Decl]*scope.Symbol)})
		ids = append(ids, fs)
	}
	for i, w := range walkers {
		for _, d := range files[i].Decls {
			w.declare(d)
		}
	}
	for i, w := range walkers {
		for _, d := range files[i].Decls {
			w.analyze(d)
		}
		a.logger.Debug("file analyzed", "file", w.file, "decls", len(files[i].Decls))
	}
	return ids, nil
}

// DropFile releases the scope subtree of path, the script prototypes it
// defined and everything it recorded in the collector.
func (a *Analyzer) DropFile(path string) {
	fs, ok := a.table.FileScope(path)
	if !ok {
		return
	}
	for _, sym := range a.table.Symbols(fs) {
		if sym.Kind == scope.KindPrototype {
			a.types.Forget(sym.Name)
		}
	}
	a.table.DropFile(path)
	a.coll.DropFile(path)
}
