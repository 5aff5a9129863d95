package questscript_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/questscript"
	"github.com/jward/questscript/ast"
	"github.com/jward/questscript/ecs"
	"github.com/jward/questscript/internal/asttest"
	"github.com/jward/questscript/scripts"
)

func newEngine(t *testing.T, opts ...questscript.Option) *questscript.Engine {
	t.Helper()
	eng, err := questscript.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	return eng
}

func newIndexedEngine(t *testing.T) (*questscript.Engine, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "index.db")
	return newEngine(t, questscript.WithDatabase(dbPath)), dbPath
}

// libFile defines helper(x) = x + bump after pad unused variables, so
// versions with different pads place helper on different lines.
func libFile(bump int64, pad int) (*ast.File, *ast.FuncDef) {
	b := asttest.New("lib.qs")
	var decls []ast.Decl
	for i := range pad {
		decls = append(decls, b.Var("pad"+string(rune('a'+i)), "int", b.Int(0)))
	}
	fd := b.Func("helper", []*ast.Param{b.Param("x", "int")}, "int",
		b.Return(b.Bin(ast.OpAdd, b.Ident("x"), b.Int(bump))))
	return b.File(append(decls, fd)...), fd
}

// appFile evaluates base = helper(1) at load time; use is the helper
// identifier of that call.
func appFile() (*ast.File, *ast.Ident) {
	b := asttest.New("app.qs")
	use := b.Ident("helper")
	return b.File(
		b.Var("base", "int", b.CallExpr(use, b.Int(1))),
		b.Func("run", nil, "int", b.Return(b.Ident("base"))),
	), use
}

func loadAll(t *testing.T, eng *questscript.Engine, files ...*ast.File) {
	t.Helper()
	for _, f := range files {
		_, err := eng.Load(context.Background(), f)
		require.NoError(t, err, f.Path)
	}
}

func findDiagnostic(diags []questscript.Diagnostic, kind, name string) (questscript.Diagnostic, bool) {
	for _, d := range diags {
		if string(d.Kind) == kind && d.Name == name {
			return d, true
		}
	}
	return questscript.Diagnostic{}, false
}

// =============================================================================
// Construction
// =============================================================================

func TestNew_RegistrationErrors(t *testing.T) {
	t.Parallel()
	noop := func(context.Context, []any) (any, error) { return nil, nil }
	tests := []struct {
		name string
		opts []questscript.Option
	}{
		{"class without constructor", []questscript.Option{
			questscript.WithHostClasses(&questscript.HostClass{Name: "ghost"}),
		}},
		{"native shadows a type", append(ecs.Options(ecs.NewWorld()),
			questscript.WithNatives(questscript.Native{Name: "entity", Fn: noop}),
		)},
		{"native shadows a builtin", []questscript.Option{
			questscript.WithNatives(questscript.Native{Name: "print", Fn: noop}),
		}},
		{"method without class", []questscript.Option{
			questscript.WithMethods(questscript.Method{Name: "orphan"}),
		}},
		{"missing script", []questscript.Option{
			questscript.WithScriptsFS(scripts.FS),
			questscript.WithScriptNatives(questscript.ScriptNative{Name: "nope", Return: questscript.Int}),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			eng, err := questscript.New(tt.opts...)
			assert.Nil(t, eng)
			var regErr *questscript.RegistrationError
			assert.ErrorAs(t, err, &regErr)
		})
	}
}

// =============================================================================
// Loading and calling
// =============================================================================

func TestLoad_CallAcrossFiles(t *testing.T) {
	t.Parallel()
	eng := newEngine(t)
	lib, _ := libFile(1, 0)
	app, _ := appFile()
	loadAll(t, eng, lib, app)
	ctx := context.Background()

	assert.Equal(t, []string{"lib.qs", "app.qs"}, eng.Files())

	got, err := eng.Call(ctx, "run")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got)

	got, err = eng.Call(ctx, "helper", 41)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)

	v, ok := eng.Lookup("base")
	require.True(t, ok)
	assert.Equal(t, "2", v.String())
}

func TestCall_Errors(t *testing.T) {
	t.Parallel()
	eng := newEngine(t)
	lib, _ := libFile(1, 0)
	loadAll(t, eng, lib)
	ctx := context.Background()

	_, err := eng.Call(ctx, "helper", "one")
	var execErr *questscript.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "helper", execErr.Entry)
	var tm *questscript.TypeMismatchError
	assert.ErrorAs(t, err, &tm)

	_, err = eng.Call(ctx, "missing")
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "missing", execErr.Entry)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = eng.Call(cancelled, "helper", 1)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = eng.Instantiate(cancelled, "helper")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoad_RejectsFileWithoutPath(t *testing.T) {
	t.Parallel()
	eng := newEngine(t)
	_, err := eng.Load(context.Background(), &ast.File{})
	assert.Error(t, err)
	assert.Empty(t, eng.Files())
}

func TestLoad_ReloadReevaluatesDependents(t *testing.T) {
	t.Parallel()
	eng := newEngine(t)
	lib, _ := libFile(1, 0)
	app, _ := appFile()
	loadAll(t, eng, lib, app)
	ctx := context.Background()

	lib2, _ := libFile(10, 0)
	diags, err := eng.Load(ctx, lib2)
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Equal(t, []string{"lib.qs", "app.qs"}, eng.Files())

	got, err := eng.Call(ctx, "run")
	require.NoError(t, err)
	assert.Equal(t, int64(11), got)
	_, unresolved := findDiagnostic(eng.Diagnostics("app.qs"), "unresolved", "helper")
	assert.False(t, unresolved)
}

func TestUnload_DependentsReportUnresolved(t *testing.T) {
	t.Parallel()
	eng := newEngine(t)
	lib, _ := libFile(1, 0)
	app, use := appFile()
	loadAll(t, eng, lib, app)

	eng.Unload("lib.qs")
	eng.Unload("never-loaded.qs")

	assert.Equal(t, []string{"app.qs"}, eng.Files())
	d, ok := findDiagnostic(eng.Diagnostics("app.qs"), "unresolved", "helper")
	require.True(t, ok)
	assert.Equal(t, questscript.Location{File: "app.qs", Range: use.Range}, d.Location)

	_, err := eng.Call(context.Background(), "helper", 1)
	assert.Error(t, err)
}

func TestLoad_LaterFileResolvesEarlierUsages(t *testing.T) {
	t.Parallel()
	eng := newEngine(t)
	ctx := context.Background()
	b := asttest.New("a.qs")
	use := b.Ident("helper")
	diags, err := eng.Load(ctx, b.File(
		b.Func("run", nil, "int", b.Return(b.CallExpr(use, b.Int(1)))),
	))
	require.NoError(t, err)
	_, unresolved := findDiagnostic(diags, "unresolved", "helper")
	require.True(t, unresolved)

	lib, fd := libFile(1, 0)
	loadAll(t, eng, lib)

	_, unresolved = findDiagnostic(eng.Diagnostics("a.qs"), "unresolved", "helper")
	assert.False(t, unresolved)
	def, ok := eng.DefinitionAt("a.qs", use.Range.Start.Line, use.Range.Start.Col)
	require.True(t, ok)
	assert.Equal(t, questscript.Location{File: "lib.qs", Range: fd.Name.Range}, def)
	assert.Equal(t, []string{"a.qs", "lib.qs"}, eng.Files())

	got, err := eng.Call(ctx, "run")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got)
}

func TestLoad_PrototypeDeclaredByTwoFiles(t *testing.T) {
	t.Parallel()
	eng := newEngine(t, ecs.Options(ecs.NewWorld())...)
	first := asttest.New("first.qs")
	firstProto := first.Proto("goblin", "entity", first.Prop("name", first.Str("first")))
	second := asttest.New("second.qs")
	secondProto := second.Proto("goblin", "entity", second.Prop("name", second.Str("second")))
	loadAll(t, eng, first.File(firstProto), second.File(secondProto))

	d, ok := findDiagnostic(eng.Diagnostics("second.qs"), "redefinition", "goblin")
	require.True(t, ok)
	assert.Equal(t, questscript.Location{File: "second.qs", Range: secondProto.Name.Range}, d.Location)
	require.NotNil(t, d.Related)
	assert.Equal(t, questscript.Location{File: "first.qs", Range: firstProto.Name.Range}, *d.Related)

	eng.Unload("first.qs")

	_, ok = findDiagnostic(eng.Diagnostics("second.qs"), "redefinition", "goblin")
	assert.False(t, ok)
	obj, err := eng.Instantiate(context.Background(), "goblin")
	require.NoError(t, err)
	assert.Equal(t, "second", obj.(*ecs.Entity).Name)
}

func TestLoad_PrintWritesToOutput(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	eng := newEngine(t, questscript.WithOutput(&out))
	b := asttest.New("hello.qs")
	loadAll(t, eng, b.File(
		b.Func("hello", nil, "", b.Expr(b.Call("print", b.Str("hi"), b.Int(2)))),
	))

	_, err := eng.Call(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi 2\n", out.String())
}

func TestScriptNatives_CallableFromScripts(t *testing.T) {
	t.Parallel()
	eng := newEngine(t,
		questscript.WithScriptsFS(scripts.FS),
		questscript.WithScriptNatives(scripts.Standard()...),
	)
	b := asttest.New("bounds.qs")
	loadAll(t, eng, b.File(
		b.Func("bounded", []*ast.Param{b.Param("v", "int")}, "int",
			b.Return(b.Call("clamp", b.Ident("v"), b.Int(0), b.Int(10)))),
	))
	ctx := context.Background()

	got, err := eng.Call(ctx, "bounded", 15)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got)

	got, err = eng.Call(ctx, "lerp", 0.0, 10.0, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 5.0, got)
}

// =============================================================================
// Position queries
// =============================================================================

func TestDefinitionAtAndUsagesAt(t *testing.T) {
	t.Parallel()
	eng := newEngine(t)
	lib, fd := libFile(1, 0)
	app, use := appFile()
	loadAll(t, eng, lib, app)

	loc, ok := eng.DefinitionAt("app.qs", use.Range.Start.Line, use.Range.Start.Col)
	require.True(t, ok)
	assert.Equal(t, questscript.Location{File: "lib.qs", Range: fd.Name.Range}, loc)

	usages, ok := eng.UsagesAt("lib.qs", fd.Name.Range.Start.Line, fd.Name.Range.End.Col)
	require.True(t, ok)
	assert.Equal(t, []questscript.Location{{File: "app.qs", Range: use.Range}}, usages)

	_, ok = eng.DefinitionAt("app.qs", 999, 0)
	assert.False(t, ok)
}

// =============================================================================
// Directory loading
// =============================================================================

func TestLoadDirectory(t *testing.T) {
	t.Parallel()
	eng := newEngine(t, ecs.Options(ecs.NewWorld())...)
	ctx := context.Background()

	paths, err := questscript.ListFiles("testdata/world")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("testdata", "world", "lib.qs.json"),
		filepath.Join("testdata", "world", "quests", "main.qs.json"),
	}, paths)

	diags, err := eng.LoadDirectory(ctx, "testdata/world")
	require.NoError(t, err)
	assert.Equal(t, []string{"lib.qs", "quests/main.qs"}, eng.Files())

	d, ok := findDiagnostic(diags, "unresolved", "ghost")
	require.True(t, ok)
	assert.Equal(t, "quests/main.qs:3:8", d.Location.String())

	v, ok := eng.Lookup("twelve")
	require.True(t, ok)
	assert.Equal(t, "12", v.String())

	obj, ok := eng.Object("grunt")
	require.True(t, ok)
	grunt := obj.(*ecs.Entity)
	assert.Equal(t, "goblin", grunt.Name)
	assert.Equal(t, "hostile", grunt.Faction)

	loc, ok := eng.DefinitionAt("quests/main.qs", 0, 19)
	require.True(t, ok)
	assert.Equal(t, "lib.qs:0:5", loc.String())

	_, err = eng.Call(ctx, "greet")
	var rtErr *questscript.RuntimeError
	assert.ErrorAs(t, err, &rtErr)
}

func TestDecodeFile(t *testing.T) {
	t.Parallel()
	_, err := questscript.DecodeFile("testdata/world/.drafts/broken.qs.json")
	assert.Error(t, err)
	_, err = questscript.DecodeFile("testdata/world/absent.qs.json")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bare.qs.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"kind": "file", "decls": []}`), 0o644))
	f, err := questscript.DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, f.Path)
}

// =============================================================================
// Index
// =============================================================================

func TestIndex_QueryRoundTrip(t *testing.T) {
	t.Parallel()
	eng, _ := newIndexedEngine(t)
	lib, fd := libFile(1, 0)
	app, use := appFile()
	loadAll(t, eng, lib, app)
	require.NoError(t, eng.Index(context.Background()))
	q := eng.Query()

	files, err := q.Files()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "app.qs", files[0].Path)
	assert.Equal(t, "lib.qs", files[1].Path)
	assert.NotEmpty(t, files[0].Hash)

	defs, err := q.DefinitionAt("app.qs", use.Range.Start.Line, use.Range.Start.Col)
	require.NoError(t, err)
	assert.Equal(t, []questscript.Location{{File: "lib.qs", Range: fd.Name.Range}}, defs)

	refs, err := q.ReferencesTo("lib.qs", fd.Name.Range.Start.Line, fd.Name.Range.Start.Col)
	require.NoError(t, err)
	assert.Equal(t, []questscript.Location{{File: "app.qs", Range: use.Range}}, refs)

	named, err := q.DefinitionsNamed("helper")
	require.NoError(t, err)
	assert.Len(t, named, 1)

	persisted, err := q.Diagnostics("")
	require.NoError(t, err)
	if diff := cmp.Diff(eng.Diagnostics(""), persisted); diff != "" {
		t.Errorf("persisted diagnostics mismatch (-want +got):\n%s", diff)
	}
	_, ok := findDiagnostic(persisted, "unused", "run")
	assert.True(t, ok)

	_, err = q.Diagnostics("nowhere.qs")
	assert.ErrorIs(t, err, questscript.ErrNotIndexed)
	_, err = q.DefinitionAt("nowhere.qs", 0, 0)
	assert.ErrorIs(t, err, questscript.ErrNotIndexed)
}

func TestIndex_SkipsUnchangedAndRelinksDependents(t *testing.T) {
	t.Parallel()
	eng, dbPath := newIndexedEngine(t)
	ctx := context.Background()
	lib, _ := libFile(1, 0)
	app, use := appFile()
	loadAll(t, eng, lib, app)
	require.NoError(t, eng.Index(ctx))

	before, err := eng.Query().Files()
	require.NoError(t, err)
	require.NoError(t, eng.Index(ctx))
	after, err := eng.Query().Files()
	require.NoError(t, err)
	require.Len(t, after, 2)
	for i := range before {
		assert.True(t, before[i].LastIndexed.Equal(after[i].LastIndexed), before[i].Path)
	}

	// helper moves down two lines; the unchanged app must follow it.
	lib2, fd2 := libFile(10, 2)
	loadAll(t, eng, lib2)
	require.NoError(t, eng.Index(ctx))

	defs, err := eng.Query().DefinitionAt("app.qs", use.Range.Start.Line, use.Range.Start.Col)
	require.NoError(t, err)
	assert.Equal(t, []questscript.Location{{File: "lib.qs", Range: fd2.Name.Range}}, defs)

	// A fresh engine reads the same index without loading anything.
	reader := newEngine(t, questscript.WithDatabase(dbPath))
	refs, err := reader.Query().ReferencesTo("lib.qs", fd2.Name.Range.Start.Line, fd2.Name.Range.Start.Col)
	require.NoError(t, err)
	assert.Equal(t, []questscript.Location{{File: "app.qs", Range: use.Range}}, refs)
}

func TestIndex_WithoutStore(t *testing.T) {
	t.Parallel()
	eng := newEngine(t)
	assert.ErrorIs(t, eng.Index(context.Background()), questscript.ErrNoStore)
	_, err := eng.Query().Files()
	assert.ErrorIs(t, err, questscript.ErrNoStore)
	_, err = questscript.NewQueryBuilder(nil).DefinitionsNamed("x")
	assert.ErrorIs(t, err, questscript.ErrNoStore)
}

// =============================================================================
// CheckFiles
// =============================================================================

func TestCheckFiles_IsolatedAndPersisted(t *testing.T) {
	t.Parallel()
	dbPath := filepath.Join(t.TempDir(), "check.db")
	lib, _ := libFile(1, 0)
	app, use := appFile()

	diags, err := questscript.CheckFiles(context.Background(), []*ast.File{lib, app},
		questscript.WithDatabase(dbPath), questscript.WithParallelism(2))
	require.NoError(t, err)

	d, ok := findDiagnostic(diags, "unresolved", "helper")
	require.True(t, ok)
	assert.Equal(t, questscript.Location{File: "app.qs", Range: use.Range}, d.Location)
	_, ok = findDiagnostic(diags, "unused", "helper")
	assert.True(t, ok)
	for i := 1; i < len(diags); i++ {
		assert.False(t, diags[i].Location.Less(diags[i-1].Location), "diagnostics out of order")
	}

	reader := newEngine(t, questscript.WithDatabase(dbPath))
	files, err := reader.Query().Files()
	require.NoError(t, err)
	assert.Len(t, files, 2)

	persisted, err := reader.Query().Diagnostics("")
	require.NoError(t, err)
	if diff := cmp.Diff(diags, persisted); diff != "" {
		t.Errorf("persisted diagnostics mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckFiles_NoStore(t *testing.T) {
	t.Parallel()
	b := asttest.New("dup.qs")
	f := b.File(
		b.Func("twice", nil, ""),
		b.Func("twice", nil, ""),
	)
	diags, err := questscript.CheckFiles(context.Background(), []*ast.File{f})
	require.NoError(t, err)
	d, ok := findDiagnostic(diags, "redefinition", "twice")
	require.True(t, ok)
	require.NotNil(t, d.Related)
	assert.Equal(t, "dup.qs", d.Related.File)
}
