package ecs_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/questscript"
	"github.com/jward/questscript/ast"
	"github.com/jward/questscript/ecs"
	"github.com/jward/questscript/internal/asttest"
)

func worldFile() *ast.File {
	b := asttest.New("world.qs")
	return b.File(
		b.Func("growl", []*ast.Param{b.Param("actor", "string")}, "string",
			b.Return(b.Bin(ast.OpAdd, b.Str("grr at "), b.Ident("actor")))),
		b.Proto("goblin", "",
			b.Prop("name", b.Str("goblin")),
			b.Prop("faction", b.Str("hostile")),
			b.Prop("tags", b.Strs("monster", "green")),
			b.Prop("position", b.Agg("", b.Prop("x", b.Int(1)), b.Prop("y", b.Int(2)))),
			b.Prop("health", b.Agg("", b.Prop("current", b.Int(12)), b.Prop("max", b.Int(30)))),
			b.Prop("loot", b.Agg("", b.Prop("gold", b.Int(5)), b.Prop("items", b.Strs("dagger")))),
			b.Prop("on_interact", b.Ident("growl")),
		),
		b.Proto("villager", "entity",
			b.Prop("name", b.Str("villager")),
			b.Prop("tags", b.Strs("npc")),
			b.Prop("position", b.Agg("position", b.Prop("x", b.Int(4)), b.Prop("y", b.Int(6)))),
			b.Prop("loot", b.Agg("", b.Prop("gold", b.Int(1)))),
		),
		b.Object("goblin", "boss", b.Prop("name", b.Str("boss"))),
		b.Object("villager", "elder"),
		b.Func("census", nil, "int", b.Return(b.Call("entity_count"))),
		b.Func("monsters", nil, "string[]", b.Return(b.Call("tagged", b.Str("monster")))),
		b.Func("shove", nil, "", b.Expr(b.MethodCall(b.Ident("boss"), "move", b.Int(2), b.Int(3)))),
		b.Func("gap", nil, "int",
			b.Return(b.MethodCall(b.Member(b.Ident("boss"), "position"), "distance", b.Member(b.Ident("elder"), "position")))),
	)
}

func newWorld(t *testing.T) (*questscript.Engine, *ecs.World) {
	t.Helper()
	w := ecs.NewWorld()
	eng, err := questscript.New(ecs.Options(w)...)
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	_, err = eng.Load(context.Background(), worldFile())
	require.NoError(t, err)
	return eng, w
}

// =============================================================================
// Spawning
// =============================================================================

func TestSpawn_HostileEntityCarriesLoot(t *testing.T) {
	t.Parallel()
	eng, w := newWorld(t)
	ctx := context.Background()

	g, err := ecs.Spawn(ctx, eng, w, "goblin")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, g.ID)
	assert.Equal(t, "goblin", g.Name)
	assert.Equal(t, "hostile", g.Faction)
	assert.Equal(t, []string{"monster", "green"}, g.Tags)
	require.NotNil(t, g.Position)
	assert.Equal(t, ecs.Position{X: 1, Y: 2}, *g.Position)
	require.NotNil(t, g.Loot)
	assert.Equal(t, ecs.Loot{Gold: 5, Items: []string{"dagger"}}, *g.Loot)
	assert.Nil(t, g.Velocity)

	require.NotNil(t, g.Health)
	assert.Equal(t, int64(12), g.Health.Current)
	assert.Equal(t, int64(30), g.Health.Max)
	assert.Same(t, g, g.Health.Owner)

	got, ok := w.Get(g.ID)
	require.True(t, ok)
	assert.Same(t, g, got)
}

func TestSpawn_NeutralEntityDropsLoot(t *testing.T) {
	t.Parallel()
	eng, w := newWorld(t)

	v, err := ecs.Spawn(context.Background(), eng, w, "villager")
	require.NoError(t, err)
	assert.Equal(t, "neutral", v.Faction)
	assert.Nil(t, v.Loot)
	assert.Nil(t, v.Health)
	assert.Equal(t, ecs.Position{X: 4, Y: 6}, *v.Position)
}

func TestSpawn_DistinctIdentities(t *testing.T) {
	t.Parallel()
	eng, w := newWorld(t)
	ctx := context.Background()

	a, err := ecs.Spawn(ctx, eng, w, "goblin")
	require.NoError(t, err)
	b, err := ecs.Spawn(ctx, eng, w, "goblin")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotSame(t, a.Position, b.Position)
	assert.Equal(t, *a.Position, *b.Position)
	assert.Equal(t, 2, w.Len())
	assert.Equal(t, []*ecs.Entity{a, b}, w.Entities())
}

func TestSpawn_Errors(t *testing.T) {
	t.Parallel()
	eng, w := newWorld(t)
	ctx := context.Background()

	_, err := ecs.Spawn(ctx, eng, w, "dragon")
	var execErr *questscript.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "dragon", execErr.Entry)

	_, err = ecs.Spawn(ctx, eng, w, "growl")
	var tm *questscript.TypeMismatchError
	assert.ErrorAs(t, err, &tm)
	assert.Zero(t, w.Len())
}

// =============================================================================
// Script interaction
// =============================================================================

func TestMethods_ScriptBuiltPositions(t *testing.T) {
	t.Parallel()
	eng, _ := newWorld(t)
	ctx := context.Background()
	b := asttest.New("geometry.qs")
	diags, err := eng.Load(ctx, b.File(
		b.Func("span", nil, "int",
			b.Var("a", "position", b.Agg("", b.Prop("x", b.Int(1)), b.Prop("y", b.Int(2)))),
			b.Var("c", "position", b.Agg("", b.Prop("x", b.Int(4)), b.Prop("y", b.Int(6)))),
			b.Return(b.MethodCall(b.Ident("a"), "distance", b.Ident("c")))),
		b.Func("home", nil, "int",
			b.Return(b.MethodCall(b.Member(b.Ident("boss"), "position"), "distance",
				b.Agg("position", b.Prop("x", b.Int(0)), b.Prop("y", b.Int(0)))))),
	))
	require.NoError(t, err)
	for _, d := range diags {
		assert.NotEqual(t, "error", string(d.Severity), d.Message)
	}

	got, err := eng.Call(ctx, "span")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got)

	got, err = eng.Call(ctx, "home")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got)
}

func TestObjects_BuiltAtLoad(t *testing.T) {
	t.Parallel()
	eng, _ := newWorld(t)

	obj, ok := eng.Object("boss")
	require.True(t, ok)
	boss := obj.(*ecs.Entity)
	assert.Equal(t, "boss", boss.Name)
	assert.Equal(t, "hostile", boss.Faction)

	reply, err := boss.Interact(context.Background(), "hero")
	require.NoError(t, err)
	assert.Equal(t, "grr at hero", reply)

	obj, ok = eng.Object("elder")
	require.True(t, ok)
	elder := obj.(*ecs.Entity)
	reply, err = elder.Interact(context.Background(), "hero")
	require.NoError(t, err)
	assert.Empty(t, reply)
}

func TestNatives_SeeTheWorld(t *testing.T) {
	t.Parallel()
	eng, w := newWorld(t)
	ctx := context.Background()

	n, err := eng.Call(ctx, "census")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	_, err = ecs.Spawn(ctx, eng, w, "goblin")
	require.NoError(t, err)
	_, err = ecs.Spawn(ctx, eng, w, "villager")
	require.NoError(t, err)

	n, err = eng.Call(ctx, "census")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	names, err := eng.Call(ctx, "monsters")
	require.NoError(t, err)
	assert.Equal(t, []any{"goblin"}, names)

	ok, err := eng.Call(ctx, "entity_exists", "villager")
	require.NoError(t, err)
	assert.Equal(t, true, ok)
}

func TestMethods_MoveAndDistance(t *testing.T) {
	t.Parallel()
	eng, _ := newWorld(t)
	ctx := context.Background()

	d, err := eng.Call(ctx, "gap")
	require.NoError(t, err)
	assert.Equal(t, int64(3+4), d)

	_, err = eng.Call(ctx, "shove")
	require.NoError(t, err)
	obj, _ := eng.Object("boss")
	assert.Equal(t, ecs.Position{X: 3, Y: 5}, *obj.(*ecs.Entity).Position)

	d, err = eng.Call(ctx, "gap")
	require.NoError(t, err)
	assert.Equal(t, int64(1+1), d)
}

func TestLoad_NoDiagnosticsForWorld(t *testing.T) {
	t.Parallel()
	w := ecs.NewWorld()
	eng, err := questscript.New(ecs.Options(w)...)
	require.NoError(t, err)
	defer eng.Close()

	diags, err := eng.Load(context.Background(), worldFile())
	require.NoError(t, err)
	for _, d := range diags {
		assert.NotEqual(t, "error", string(d.Severity), d.Message)
	}
}

// =============================================================================
// World
// =============================================================================

func TestWorld_ConcurrentAdd(t *testing.T) {
	t.Parallel()
	w := ecs.NewWorld()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tags := []string{"crowd"}
			if i%2 == 0 {
				tags = append(tags, "even")
			}
			w.Add(&ecs.Entity{Name: fmt.Sprintf("e%02d", i), Tags: tags})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, w.Len())
	assert.Len(t, w.Tagged("crowd"), 50)
	even := w.Tagged("even")
	require.Len(t, even, 25)
	assert.Equal(t, "e00", even[0])
	assert.Equal(t, "e48", even[24])

	e, ok := w.ByName("e07")
	require.True(t, ok)
	assert.NotEqual(t, uuid.Nil, e.ID)
	got, ok := w.Get(e.ID)
	require.True(t, ok)
	assert.Same(t, e, got)
}

func TestWorld_AddKeepsID(t *testing.T) {
	t.Parallel()
	w := ecs.NewWorld()
	id := uuid.New()
	e := &ecs.Entity{ID: id, Name: "fixed"}
	w.Add(e)
	w.Add(e)
	assert.Equal(t, id, e.ID)
	assert.Equal(t, 1, w.Len())
	_, ok := w.ByName("missing")
	assert.False(t, ok)
}
