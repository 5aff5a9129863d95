// Package scripts embeds the standard Risor natives shipped with the
// engine.
package scripts

import (
	"embed"

	"github.com/jward/questscript/internal/runtime"
	"github.com/jward/questscript/internal/types"
)

//go:embed natives/*.risor
var FS embed.FS

// Standard returns the natives defined under natives/.
func Standard() []runtime.ScriptNative {
	return []runtime.ScriptNative{
		{Name: "clamp", Params: []types.Type{types.Int, types.Int, types.Int}, Return: types.Int},
		{Name: "lerp", Params: []types.Type{types.Float, types.Float, types.Float}, Return: types.Float},
		{Name: "manhattan", Params: []types.Type{types.Int, types.Int, types.Int, types.Int}, Return: types.Int},
	}
}
