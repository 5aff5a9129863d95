package questscript

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	goruntime "runtime"
	"slices"
	"sort"
	"strings"

	"github.com/jward/questscript/ast"
	"github.com/jward/questscript/internal/analysis"
	"github.com/jward/questscript/internal/diagnostics"
	"github.com/jward/questscript/internal/interp"
	"github.com/jward/questscript/internal/runtime"
	"github.com/jward/questscript/internal/scope"
	"github.com/jward/questscript/internal/store"
	"github.com/jward/questscript/internal/types"
)

// FileExt is the extension of serialized syntax tree files picked up by
// LoadDirectory.
const FileExt = ".qs.json"

// ErrNoStore is returned by index operations on an engine without a store.
var ErrNoStore = errors.New("questscript: no store configured")

// ErrNotIndexed is returned by queries naming a file the index has never
// seen.
var ErrNotIndexed = store.ErrNotIndexed

// Engine is one loaded program: the analysis state (scopes, types,
// collected ranges) and the runtime state (memory spaces, instantiation)
// for a set of files. An Engine is not safe for concurrent use.
type Engine struct {
	logger *slog.Logger
	output io.Writer

	classes       []*types.HostClass
	natives       []Native
	methods       []Method
	scriptNatives []runtime.ScriptNative
	scriptsFS     fs.FS
	scriptsDir    string
	maxDepth      int
	parallelism   int
	defaultOrigin string

	dbPath    string
	store     *store.Store
	ownsStore bool

	types    *types.System
	table    *scope.Table
	coll     *diagnostics.Collector
	analyzer *analysis.Analyzer
	interp   *interp.Interpreter
	runtime  *runtime.Runtime

	files map[string]*ast.File
	order []string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Child loggers carry a component attribute.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithOutput sets where the print builtin writes.
func WithOutput(w io.Writer) Option {
	return func(e *Engine) { e.output = w }
}

// WithHostClasses registers host classes. Classes reachable through member
// types are registered with them.
func WithHostClasses(classes ...*HostClass) Option {
	return func(e *Engine) { e.classes = append(e.classes, classes...) }
}

// WithNatives registers global host functions.
func WithNatives(natives ...Native) Option {
	return func(e *Engine) { e.natives = append(e.natives, natives...) }
}

// WithMethods registers instance methods owned by their host class.
func WithMethods(methods ...Method) Option {
	return func(e *Engine) { e.methods = append(e.methods, methods...) }
}

// WithExtensionMethods registers methods attached from outside the class.
func WithExtensionMethods(methods ...Method) Option {
	return func(e *Engine) {
		for _, m := range methods {
			m.Extension = true
			e.methods = append(e.methods, m)
		}
	}
}

// WithScriptNatives registers natives implemented as Risor scripts.
func WithScriptNatives(natives ...ScriptNative) Option {
	return func(e *Engine) { e.scriptNatives = append(e.scriptNatives, natives...) }
}

// WithScriptsFS loads Risor scripts from fsys instead of the scripts
// directory. This enables embedding scripts via go:embed.
func WithScriptsFS(fsys fs.FS) Option {
	return func(e *Engine) { e.scriptsFS = fsys }
}

// WithScriptsDir loads Risor scripts from dir on disk.
func WithScriptsDir(dir string) Option {
	return func(e *Engine) { e.scriptsDir = dir }
}

// WithStore uses an already open store. The engine does not close it.
func WithStore(s *Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithDatabase opens (and migrates) a SQLite index at path. The engine owns
// the connection and closes it in Close. Ignored when WithStore is given.
func WithDatabase(path string) Option {
	return func(e *Engine) { e.dbPath = path }
}

// WithMaxCallDepth bounds nested script calls.
func WithMaxCallDepth(n int) Option {
	return func(e *Engine) { e.maxDepth = n }
}

// WithParallelism bounds the number of files CheckFiles analyzes at once.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// WithDefaultOrigin names the host class of prototypes declared without
// one. The default is "entity".
func WithDefaultOrigin(name string) Option {
	return func(e *Engine) { e.defaultOrigin = name }
}

func newConfig(opts []Option) *Engine {
	e := &Engine{
		logger:        slog.New(slog.DiscardHandler),
		output:        io.Discard,
		maxDepth:      interp.DefaultMaxDepth,
		parallelism:   goruntime.NumCPU(),
		defaultOrigin: "entity",
		files:         make(map[string]*ast.File),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// New creates an Engine and performs every host registration. A
// registration that violates the contract is returned as a
// *RegistrationError; no engine is produced.
func New(opts ...Option) (*Engine, error) {
	e := newConfig(opts)

	if e.store == nil && e.dbPath != "" {
		s, err := OpenStore(e.dbPath)
		if err != nil {
			return nil, err
		}
		e.store, e.ownsStore = s, true
	}

	e.types = types.NewSystem()
	e.table = scope.NewTable()
	e.coll = diagnostics.NewCollector()
	e.analyzer = analysis.New(e.table, e.types, e.coll,
		analysis.WithLogger(e.logger.With("component", "analysis")),
		analysis.WithDefaultOrigin(e.defaultOrigin),
	)
	e.interp = interp.New(e.types,
		interp.WithLogger(e.logger.With("component", "interp")),
		interp.WithOutput(e.output),
		interp.WithMaxDepth(e.maxDepth),
		interp.WithDefaultOrigin(e.defaultOrigin),
	)

	var rtOpts []runtime.RuntimeOption
	if e.scriptsFS != nil {
		rtOpts = append(rtOpts, runtime.WithRuntimeFS(e.scriptsFS))
	}
	if e.store != nil {
		rtOpts = append(rtOpts, runtime.WithRuntimeStore(e.store))
	}
	rtOpts = append(rtOpts, runtime.WithRuntimeLogger(e.logger))
	e.runtime = runtime.NewRuntime(e.scriptsDir, rtOpts...)

	if err := e.register(); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

// OpenStore opens the SQLite index at path and migrates it.
func OpenStore(path string) (*Store, error) {
	s, err := store.NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("questscript: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("questscript: migrate: %w", err)
	}
	return s, nil
}

func (e *Engine) register() error {
	for _, c := range e.classes {
		if _, err := e.types.RegisterHostClass(c); err != nil {
			return fmt.Errorf("questscript: %w", err)
		}
	}
	for _, m := range e.methods {
		c, err := m.callable(e.types)
		if err != nil {
			return fmt.Errorf("questscript: %w", err)
		}
		if err := e.interp.BindMethod(c); err != nil {
			return fmt.Errorf("questscript: %w", err)
		}
	}
	for _, n := range e.natives {
		fn, err := n.callable(e.types)
		if err != nil {
			return fmt.Errorf("questscript: %w", err)
		}
		if err := e.interp.DefineNative(fn); err != nil {
			return fmt.Errorf("questscript: %w", err)
		}
	}
	for _, sn := range e.scriptNatives {
		fn, err := e.runtime.Native(sn)
		if err != nil {
			return fmt.Errorf("questscript: %w", &RegistrationError{Class: "<script>", Member: sn.Name, Reason: err.Error()})
		}
		if err := e.interp.DefineNative(fn); err != nil {
			return fmt.Errorf("questscript: %w", err)
		}
	}

	// Analysis sees everything the interpreter's global space holds.
	e.analyzer.DeclarePrimitives()
	for _, en := range e.types.Enums() {
		e.analyzer.DeclareEnum(en)
	}
	aggs := e.types.Aggregates()
	sort.Slice(aggs, func(i, j int) bool { return aggs[i].Name() < aggs[j].Name() })
	for _, agg := range aggs {
		e.analyzer.DeclareType(agg)
	}
	global := e.interp.Global()
	for _, name := range global.Names() {
		v, _ := global.Local(name)
		ref, ok := v.(*interp.CallableRef)
		if !ok {
			continue
		}
		if !e.analyzer.DeclareNative(name, ref.C.Signature()) {
			return fmt.Errorf("questscript: %w", &RegistrationError{Class: "<native>", Member: name, Reason: "name clashes with a type"})
		}
	}
	e.logger.Debug("engine ready", "classes", len(aggs), "natives", len(global.Names()))
	return nil
}

// Close releases the store when the engine opened it.
func (e *Engine) Close() error {
	if e.ownsStore && e.store != nil {
		e.ownsStore = false
		return e.store.Close()
	}
	return nil
}

// Store returns the underlying store, or nil.
func (e *Engine) Store() *Store {
	return e.store
}

// Files returns the loaded paths in load order.
func (e *Engine) Files() []string {
	return append([]string(nil), e.order...)
}

// Load analyzes and evaluates f. Loading a path that is already loaded
// replaces it; files whose usages resolved into the old version, and files
// with unresolved names that f declares, are analyzed and evaluated again. The returned diagnostics are those of f.
// Diagnostics never fail a load; evaluation errors do.
func (e *Engine) Load(ctx context.Context, f *ast.File) ([]Diagnostic, error) {
	if f == nil || f.Path == "" {
		return nil, errors.New("questscript: load: file has no path")
	}
	dependents, err := e.analyze(f)
	if err != nil {
		return nil, err
	}
	diags := e.coll.Report(f.Path)
	if err := e.interp.LoadFile(ctx, f); err != nil {
		return diags, fmt.Errorf("questscript: load %s: %w", f.Path, err)
	}
	for _, dep := range dependents {
		if err := e.interp.LoadFile(ctx, e.files[dep]); err != nil {
			return diags, fmt.Errorf("questscript: reload %s: %w", dep, err)
		}
	}
	return diags, nil
}

// analyze runs the analysis phase for f and returns the other files that
// were re-analyzed with it: files that used the previous version of f and
// files with unresolved names that f declares.
func (e *Engine) analyze(f *ast.File) ([]string, error) {
	log := e.logger.With("file", f.Path)
	if _, loaded := e.files[f.Path]; !loaded {
		e.order = append(e.order, f.Path)
	}
	stale := e.invalidate(f.Path, e.coll.Awaiting(f.Path, declNames(f)))
	e.files[f.Path] = f
	if len(stale) > 0 {
		log.Debug("re-analyzing", "files", stale)
	}

	batch := make([]*ast.File, 0, len(stale)+1)
	for _, p := range e.order {
		if p == f.Path || slices.Contains(stale, p) {
			batch = append(batch, e.files[p])
		}
	}
	if _, err := e.analyzer.AnalyzeFiles(batch...); err != nil {
		return nil, fmt.Errorf("questscript: analyze %s: %w", f.Path, err)
	}
	return stale, nil
}

// invalidate drops the analysis of path, of the files in also, and of every
// file using their definitions, transitively. It returns the dropped files
// other than path in load order.
func (e *Engine) invalidate(path string, also []string) []string {
	seen := make(map[string]bool)
	queue := append([]string{path}, also...)
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if seen[p] {
			continue
		}
		seen[p] = true
		queue = append(queue, e.coll.Dependents(p)...)
		e.analyzer.DropFile(p)
	}
	var out []string
	for _, p := range e.order {
		if p != path && seen[p] {
			out = append(out, p)
		}
	}
	return out
}

// declNames returns the top-level names f declares.
func declNames(f *ast.File) map[string]bool {
	names := make(map[string]bool, len(f.Decls))
	for _, d := range f.Decls {
		switch d := d.(type) {
		case *ast.FuncDef:
			names[d.Name.Name] = true
		case *ast.VarDecl:
			names[d.Name.Name] = true
		case *ast.PrototypeDef:
			names[d.Name.Name] = true
		case *ast.ObjectDef:
			names[d.Name.Name] = true
		}
	}
	return names
}

// Unload forgets path. Files that used its definitions are analyzed again
// and report the now unresolved names.
func (e *Engine) Unload(path string) {
	if _, ok := e.files[path]; !ok {
		return
	}
	stale := e.invalidate(path, nil)
	e.interp.Unload(path)
	delete(e.files, path)
	e.order = slices.DeleteFunc(e.order, func(p string) bool { return p == path })

	batch := make([]*ast.File, 0, len(stale))
	for _, p := range stale {
		batch = append(batch, e.files[p])
	}
	if _, err := e.analyzer.AnalyzeFiles(batch...); err != nil {
		e.logger.Warn("re-analyze after unload", "file", path, "err", err)
	}
}

// LoadPath decodes and loads one syntax tree file from disk.
func (e *Engine) LoadPath(ctx context.Context, path string) ([]Diagnostic, error) {
	f, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}
	return e.Load(ctx, f)
}

// DecodeFile reads a serialized syntax tree. The tree's path defaults to
// the file path when it does not carry one.
func DecodeFile(path string) (*ast.File, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("questscript: open %s: %w", path, err)
	}
	defer r.Close()
	f, err := ast.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("questscript: %s: %w", path, err)
	}
	if f.Path == "" {
		f.Path = path
	}
	return f, nil
}

// LoadDirectory loads every syntax tree file under root in path order,
// skipping hidden directories.
func (e *Engine) LoadDirectory(ctx context.Context, root string) ([]Diagnostic, error) {
	paths, err := ListFiles(root)
	if err != nil {
		return nil, err
	}
	var all []Diagnostic
	for _, p := range paths {
		diags, err := e.LoadPath(ctx, p)
		all = append(all, diags...)
		if err != nil {
			return all, err
		}
	}
	return all, nil
}

// ListFiles walks root for syntax tree files, skipping hidden directories.
func ListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, FileExt) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("questscript: walk directory: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Diagnostics reports problems for path, or for every file when path is
// empty, sorted by file, line and column.
func (e *Engine) Diagnostics(path string) []Diagnostic {
	return e.coll.Report(path)
}

// DefinitionAt returns the definition of the name used at (line, col).
func (e *Engine) DefinitionAt(path string, line, col int) (Location, bool) {
	return e.coll.DefinitionOf(path, ast.Position{Line: line, Col: col})
}

// UsagesAt returns every usage of the name defined at (line, col).
func (e *Engine) UsagesAt(path string, line, col int) ([]Location, bool) {
	return e.coll.UsagesOf(path, ast.Position{Line: line, Col: col})
}

// Lookup returns the value a loaded file bound to name.
func (e *Engine) Lookup(name string) (Value, bool) {
	return e.interp.Lookup(name)
}

// Call invokes the callable bound to name with host arguments and returns
// the result as a host value. Failures are *ExecutionError.
func (e *Engine) Call(ctx context.Context, name string, args ...any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ExecutionError{Entry: name, Err: err}
	}
	v, err := e.interp.CallByName(ctx, name, args...)
	if err != nil {
		return nil, &ExecutionError{Entry: name, Err: err}
	}
	out, err := e.interp.HostValue(ctx, v)
	if err != nil {
		return nil, &ExecutionError{Entry: name, Err: err}
	}
	return out, nil
}

// Instantiate builds the host object for the prototype or object bound to
// name. Objects were built at load time and are returned as they are.
func (e *Engine) Instantiate(ctx context.Context, name string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ExecutionError{Entry: name, Err: err}
	}
	v, ok := e.interp.Lookup(name)
	if !ok {
		return nil, &ExecutionError{Entry: name, Err: fmt.Errorf("%s is not defined", name)}
	}
	if h, ok := v.(*interp.Host); ok {
		return h.Object, nil
	}
	obj, _, err := e.interp.Instantiator().Instantiate(ctx, v)
	if err != nil {
		return nil, &ExecutionError{Entry: name, Err: err}
	}
	return obj, nil
}

// Object returns the host object of a declared object.
func (e *Engine) Object(name string) (any, bool) {
	v, ok := e.interp.Lookup(name)
	if !ok {
		return nil, false
	}
	h, ok := v.(*interp.Host)
	if !ok {
		return nil, false
	}
	return h.Object, true
}

// Query returns a QueryBuilder over the engine's store.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{store: e.store}
}
