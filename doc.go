// Package questscript is the embeddable core of a statically-scoped game
// content language. Host programs register their classes, load script
// files and get back fully built host object graphs.
//
// # Pipeline
//
// Loading a file runs in two phases:
//
//  1. Analyze: build the file's scope tree, bind declarations, resolve every
//     name and record definition and usage ranges. Problems become
//     diagnostics; they never stop loading.
//
//  2. Evaluate: run the top-level declarations in a fresh memory space so
//     variables, prototypes and objects hold values.
//
// Prototypes and objects are instantiated on demand into host objects through
// the registered [HostClass] constructors.
//
// # Usage
//
//	e, err := questscript.New(
//		questscript.WithHostClasses(ecs.EntityClass),
//		questscript.WithNatives(ecs.Natives(world)...),
//	)
//	if err != nil { ... }
//	defer e.Close()
//
//	diags, err := e.Load(ctx, file)
//	obj, err := e.Instantiate(ctx, "goblin")
//	v, err := e.Call(ctx, "reward", int64(3))
//
// # Tooling
//
// [Engine.DefinitionAt], [Engine.UsagesAt] and [Engine.Diagnostics] answer
// editor queries from memory. With [WithStore], [Engine.Index] persists the
// same information to SQLite and [Engine.Query] serves it from there.
// [CheckFiles] analyzes many files in parallel.
package questscript
