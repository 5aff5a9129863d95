package ecs

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jward/questscript"
)

// World holds the live entities spawned from script prototypes.
// It is safe for concurrent use.
type World struct {
	mu       sync.RWMutex
	entities map[uuid.UUID]*Entity
	order    []uuid.UUID
}

func NewWorld() *World {
	return &World{entities: make(map[uuid.UUID]*Entity)}
}

// Add inserts e, assigning an ID when it has none.
func (w *World) Add(e *Entity) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if _, ok := w.entities[e.ID]; !ok {
		w.order = append(w.order, e.ID)
	}
	w.entities[e.ID] = e
}

func (w *World) Get(id uuid.UUID) (*Entity, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.entities[id]
	return e, ok
}

// ByName returns the first spawned entity called name.
func (w *World) ByName(name string) (*Entity, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, id := range w.order {
		if e := w.entities[id]; e.Name == name {
			return e, true
		}
	}
	return nil, false
}

func (w *World) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entities)
}

// Entities returns the entities in spawn order.
func (w *World) Entities() []*Entity {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*Entity, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, w.entities[id])
	}
	return out
}

// Tagged returns the names of entities carrying tag, sorted.
func (w *World) Tagged(tag string) []string {
	var names []string
	for _, e := range w.Entities() {
		for _, t := range e.Tags {
			if t == tag {
				names = append(names, e.Name)
				break
			}
		}
	}
	sort.Strings(names)
	return names
}

// Spawn instantiates the script object called name and adds the entity to w.
func Spawn(ctx context.Context, eng *questscript.Engine, w *World, name string) (*Entity, error) {
	obj, err := eng.Instantiate(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", name, err)
	}
	e, ok := obj.(*Entity)
	if !ok {
		return nil, fmt.Errorf("spawn %s: %T is not an entity", name, obj)
	}
	w.Add(e)
	return e, nil
}

// Natives exposes w to scripts.
func Natives(w *World) []questscript.Native {
	return []questscript.Native{
		{
			Name:   "entity_count",
			Return: questscript.Int,
			Fn: func(context.Context, []any) (any, error) {
				return int64(w.Len()), nil
			},
		},
		{
			Name:   "entity_exists",
			Params: []questscript.TypeRef{questscript.String},
			Return: questscript.Bool,
			Fn: func(_ context.Context, args []any) (any, error) {
				_, ok := w.ByName(args[0].(string))
				return ok, nil
			},
		},
		{
			Name:   "tagged",
			Params: []questscript.TypeRef{questscript.String},
			Return: questscript.HostList(questscript.String),
			Fn: func(_ context.Context, args []any) (any, error) {
				return stringsToAny(w.Tagged(args[0].(string))), nil
			},
		},
	}
}
