// Package ecs is a small entity/component world registered as host classes.
// Scripts declare entity prototypes; instantiation yields *Entity values
// with their components attached.
package ecs

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jward/questscript"
)

type Position struct {
	X, Y int64
}

type Velocity struct {
	DX, DY int64
}

// Health knows the entity it was built for.
type Health struct {
	Current, Max int64
	Owner        *Entity
}

// Loot can only be carried by hostile entities.
type Loot struct {
	Gold  int64
	Items []string
}

// Entity is the host object behind every script prototype of type entity.
type Entity struct {
	ID         uuid.UUID
	Name       string
	Faction    string
	Tags       []string
	Position   *Position
	Velocity   *Velocity
	Health     *Health
	Loot       *Loot
	OnInteract questscript.HostCallback
}

// Interact runs the entity's script callback, if any.
func (e *Entity) Interact(ctx context.Context, actor string) (string, error) {
	if e.OnInteract == nil {
		return "", nil
	}
	out, err := e.OnInteract(ctx, actor)
	if err != nil {
		return "", err
	}
	s, _ := out.(string)
	return s, nil
}

// Faction is the enum of entity allegiances.
var Faction = questscript.NewEnum("faction", "neutral", "friendly", "hostile")

func intMember(name string, get func(any) int64, set func(any, int64)) questscript.HostMember {
	return questscript.HostMember{
		Name: name,
		Type: questscript.Int,
		Role: questscript.Data,
		Get:  func(obj any) any { return get(obj) },
		Set: func(obj any, v any) error {
			n, ok := v.(int64)
			if !ok {
				return fmt.Errorf("%s: want int, got %T", name, v)
			}
			set(obj, n)
			return nil
		},
	}
}

var PositionClass = &questscript.HostClass{
	Name: "position",
	New:  func(questscript.InstantiationContext) any { return &Position{} },
	Members: []questscript.HostMember{
		intMember("x", func(o any) int64 { return o.(*Position).X }, func(o any, n int64) { o.(*Position).X = n }),
		intMember("y", func(o any) int64 { return o.(*Position).Y }, func(o any, n int64) { o.(*Position).Y = n }),
	},
}

var VelocityClass = &questscript.HostClass{
	Name: "velocity",
	New:  func(questscript.InstantiationContext) any { return &Velocity{} },
	Members: []questscript.HostMember{
		intMember("dx", func(o any) int64 { return o.(*Velocity).DX }, func(o any, n int64) { o.(*Velocity).DX = n }),
		intMember("dy", func(o any) int64 { return o.(*Velocity).DY }, func(o any, n int64) { o.(*Velocity).DY = n }),
	},
}

var HealthClass = &questscript.HostClass{
	Name: "health",
	New: func(ic questscript.InstantiationContext) any {
		h := &Health{Current: 10, Max: 10}
		if owner, ok := ic.Lookup(questscript.ContextOwner); ok {
			h.Owner, _ = owner.(*Entity)
		}
		return h
	},
	Members: []questscript.HostMember{
		intMember("current", func(o any) int64 { return o.(*Health).Current }, func(o any, n int64) { o.(*Health).Current = n }),
		intMember("max", func(o any) int64 { return o.(*Health).Max }, func(o any, n int64) { o.(*Health).Max = n }),
	},
}

var LootClass = &questscript.HostClass{
	Name: "loot",
	New:  func(questscript.InstantiationContext) any { return &Loot{} },
	Members: []questscript.HostMember{
		intMember("gold", func(o any) int64 { return o.(*Loot).Gold }, func(o any, n int64) { o.(*Loot).Gold = n }),
		{
			Name: "items",
			Type: questscript.HostList(questscript.String),
			Role: questscript.Data,
			Get:  func(o any) any { return stringsToAny(o.(*Loot).Items) },
			Set: func(o any, v any) error {
				items, err := anyToStrings(v)
				o.(*Loot).Items = items
				return err
			},
		},
	},
}

var EntityClass = &questscript.HostClass{
	Name: "entity",
	New:  func(questscript.InstantiationContext) any { return &Entity{ID: uuid.New(), Faction: "neutral"} },
	Members: []questscript.HostMember{
		{
			Name: "name",
			Type: questscript.String,
			Role: questscript.Data,
			Get:  func(o any) any { return o.(*Entity).Name },
			Set: func(o any, v any) error {
				s, ok := v.(string)
				if !ok {
					return fmt.Errorf("name: want string, got %T", v)
				}
				o.(*Entity).Name = s
				return nil
			},
		},
		{
			Name: "faction",
			Type: Faction,
			Role: questscript.Data,
			Get:  func(o any) any { return o.(*Entity).Faction },
			Set: func(o any, v any) error {
				s, ok := v.(string)
				if !ok || !Faction.Has(s) {
					return fmt.Errorf("faction: unknown variant %v", v)
				}
				o.(*Entity).Faction = s
				return nil
			},
		},
		{
			Name: "tags",
			Type: questscript.HostList(questscript.String),
			Role: questscript.Data,
			Get:  func(o any) any { return stringsToAny(o.(*Entity).Tags) },
			Set: func(o any, v any) error {
				tags, err := anyToStrings(v)
				o.(*Entity).Tags = tags
				return err
			},
		},
		{Name: "position", Type: PositionClass, Role: questscript.Attachable, Get: func(o any) any {
			if p := o.(*Entity).Position; p != nil {
				return p
			}
			return nil
		}},
		{Name: "velocity", Type: VelocityClass, Role: questscript.Attachable, Get: func(o any) any {
			if v := o.(*Entity).Velocity; v != nil {
				return v
			}
			return nil
		}},
		{Name: "health", Type: HealthClass, Role: questscript.Attachable, Get: func(o any) any {
			if h := o.(*Entity).Health; h != nil {
				return h
			}
			return nil
		}},
		{Name: "loot", Type: LootClass, Role: questscript.Attachable, Get: func(o any) any {
			if l := o.(*Entity).Loot; l != nil {
				return l
			}
			return nil
		}},
		{
			Name: "on_interact",
			Type: questscript.HostFunc(questscript.String, questscript.String),
			Role: questscript.Callback,
			Set: func(o any, v any) error {
				cb, ok := v.(questscript.HostCallback)
				if !ok {
					return fmt.Errorf("on_interact: want callback, got %T", v)
				}
				o.(*Entity).OnInteract = cb
				return nil
			},
		},
	},
	Compose: compose,
}

// compose attaches components to an entity. Loot only attaches to hostile
// entities; faction is declared before loot so it is already set.
func compose(owner, part any) error {
	e := owner.(*Entity)
	switch p := part.(type) {
	case *Position:
		e.Position = p
	case *Velocity:
		e.Velocity = p
	case *Health:
		p.Owner = e
		e.Health = p
	case *Loot:
		if e.Faction != "hostile" {
			return fmt.Errorf("loot on %s entity: %w", e.Faction, questscript.ErrNotAttachable)
		}
		e.Loot = p
	default:
		return fmt.Errorf("%T: %w", part, questscript.ErrNotAttachable)
	}
	return nil
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func anyToStrings(v any) ([]string, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("want list, got %T", v)
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, fmt.Errorf("want string element, got %T", it)
		}
		out = append(out, s)
	}
	return out, nil
}

// Methods are the instance methods of the world's classes.
func Methods() []questscript.Method {
	return []questscript.Method{
		{
			Class:  EntityClass,
			Name:   "move",
			Params: []questscript.TypeRef{questscript.Int, questscript.Int},
			Fn: func(_ context.Context, recv any, args []any) (any, error) {
				e, ok := recv.(*Entity)
				if !ok {
					return nil, fmt.Errorf("move: receiver %T is not a spawned entity", recv)
				}
				if e.Position == nil {
					e.Position = &Position{}
				}
				e.Position.X += args[0].(int64)
				e.Position.Y += args[1].(int64)
				return nil, nil
			},
		},
	}
}

// Extensions add script conveniences to classes from outside.
func Extensions() []questscript.Method {
	return []questscript.Method{
		{
			Class:  PositionClass,
			Name:   "distance",
			Params: []questscript.TypeRef{PositionClass},
			Return: questscript.Int,
			Fn: func(_ context.Context, recv any, args []any) (any, error) {
				a, ok := recv.(*Position)
				b, ok2 := args[0].(*Position)
				if !ok || !ok2 {
					return nil, fmt.Errorf("distance: want positions, got %T and %T", recv, args[0])
				}
				return abs(a.X-b.X) + abs(a.Y-b.Y), nil
			},
			Extension: true,
		},
	}
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

// Options registers the world's classes, methods and natives.
func Options(w *World) []questscript.Option {
	return []questscript.Option{
		questscript.WithHostClasses(EntityClass),
		questscript.WithMethods(Methods()...),
		questscript.WithExtensionMethods(Extensions()...),
		questscript.WithNatives(Natives(w)...),
	}
}
