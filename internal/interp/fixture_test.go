package interp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jward/questscript/ast"
	"github.com/jward/questscript/internal/types"
)

type position struct{ X, Y int64 }

type velocity struct{ DX, DY int64 }

type badge struct{ Label string }

type trap struct{}

type entity struct {
	ID    int
	Name  string
	Score float64
	Tags  []string
	Pos   *position
	Vel   *velocity
	OnHit types.HostCallback
}

var errFuse = errors.New("fuse burnt")

// fixture is a small host world: entities with position, velocity, badge
// and trap parts. Badges are never attachable; traps fail to compose.
type fixture struct {
	ts  *types.System
	in  *Interpreter
	ctx context.Context

	entity, position, velocity *types.Aggregate

	nextID int
	// owners seen by the velocity constructor
	owners []any
}

func dataInt(name string, get func(any) *int64) types.HostMember {
	return types.HostMember{
		Name: name, Type: types.Int, Role: types.Data,
		Get: func(o any) any { return *get(o) },
		Set: func(o any, v any) error {
			n, ok := v.(int64)
			if !ok {
				return fmt.Errorf("%s: %T", name, v)
			}
			*get(o) = n
			return nil
		},
	}
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{ts: types.NewSystem(), ctx: context.Background()}

	posClass := &types.HostClass{
		Name: "position",
		New:  func(types.InstantiationContext) any { return &position{} },
		Members: []types.HostMember{
			dataInt("x", func(o any) *int64 { return &o.(*position).X }),
			dataInt("y", func(o any) *int64 { return &o.(*position).Y }),
		},
	}
	velClass := &types.HostClass{
		Name: "velocity",
		New: func(ic types.InstantiationContext) any {
			owner, _ := ic.Lookup(types.ContextOwner)
			f.owners = append(f.owners, owner)
			return &velocity{}
		},
		Members: []types.HostMember{
			dataInt("dx", func(o any) *int64 { return &o.(*velocity).DX }),
			dataInt("dy", func(o any) *int64 { return &o.(*velocity).DY }),
		},
	}
	badgeClass := &types.HostClass{
		Name: "badge",
		New:  func(types.InstantiationContext) any { return &badge{} },
		Members: []types.HostMember{{
			Name: "label", Type: types.String, Role: types.Data,
			Get: func(o any) any { return o.(*badge).Label },
			Set: func(o any, v any) error { o.(*badge).Label = v.(string); return nil },
		}},
	}
	trapClass := &types.HostClass{
		Name: "trap",
		New:  func(types.InstantiationContext) any { return &trap{} },
	}
	entClass := &types.HostClass{
		Name: "entity",
		New: func(types.InstantiationContext) any {
			f.nextID++
			return &entity{ID: f.nextID}
		},
		Members: []types.HostMember{
			{
				Name: "name", Type: types.String, Role: types.Data,
				Get: func(o any) any { return o.(*entity).Name },
				Set: func(o any, v any) error { o.(*entity).Name = v.(string); return nil },
			},
			{
				Name: "score", Type: types.Float, Role: types.Data,
				Get: func(o any) any { return o.(*entity).Score },
				Set: func(o any, v any) error { o.(*entity).Score = v.(float64); return nil },
			},
			{
				Name: "tags", Type: types.HostList(types.String), Role: types.Data,
				Get: func(o any) any {
					out := make([]any, len(o.(*entity).Tags))
					for i, s := range o.(*entity).Tags {
						out[i] = s
					}
					return out
				},
				Set: func(o any, v any) error {
					e := o.(*entity)
					e.Tags = nil
					for _, it := range v.([]any) {
						e.Tags = append(e.Tags, it.(string))
					}
					return nil
				},
			},
			{Name: "position", Type: posClass, Role: types.Attachable},
			{Name: "velocity", Type: velClass, Role: types.Attachable},
			{Name: "badge", Type: badgeClass, Role: types.Attachable},
			{Name: "trap", Type: trapClass, Role: types.Attachable},
			{
				Name: "on_hit", Type: types.HostFunc(types.String, types.Int), Role: types.Callback,
				Set: func(o any, v any) error { o.(*entity).OnHit = v.(types.HostCallback); return nil },
			},
		},
		Compose: func(owner, part any) error {
			e := owner.(*entity)
			switch p := part.(type) {
			case *position:
				e.Pos = p
			case *velocity:
				e.Vel = p
			case *badge:
				return fmt.Errorf("badge %q: %w", p.Label, types.ErrNotAttachable)
			case *trap:
				return errFuse
			default:
				return fmt.Errorf("%T: %w", part, types.ErrNotAttachable)
			}
			return nil
		},
	}

	var err error
	f.entity, err = f.ts.RegisterHostClass(entClass)
	require.NoError(t, err)
	f.position, _ = f.ts.AggregateOf(posClass)
	f.velocity, _ = f.ts.AggregateOf(velClass)
	f.in = New(f.ts, opts...)
	return f
}

// proto builds an unassigned prototype value of agg.
func (f *fixture) proto(agg *types.Aggregate) *Aggregate {
	return NewAggregate(f.ts.RegisterPrototype(agg))
}

func (f *fixture) load(t *testing.T, file *ast.File) {
	t.Helper()
	require.NoError(t, f.in.LoadFile(f.ctx, file))
}

func mustSet(t *testing.T, a *Aggregate, name string, v Value) {
	t.Helper()
	require.NoError(t, a.Set(name, v))
}
