package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/jward/questscript/internal/interp"
	"github.com/jward/questscript/internal/types"
)

// ScriptNative describes a native function implemented in Risor. Script is
// the path of the .risor file defining Entry; Entry defaults to Name.
type ScriptNative struct {
	Name   string
	Script string
	Entry  string
	Params []types.Type
	Return types.Type
}

// Native loads the script once and returns a callable that evaluates it
// with the arguments bound as globals.
func (r *Runtime) Native(sn ScriptNative) (*interp.NativeFunction, error) {
	if sn.Name == "" {
		return nil, fmt.Errorf("runtime: script native: empty name")
	}
	path := sn.Script
	if path == "" {
		path = NativeScriptPath(sn.Name)
	}
	src, err := r.LoadScript(path)
	if err != nil {
		return nil, err
	}
	entry := sn.Entry
	if entry == "" {
		entry = sn.Name
	}
	ret := sn.Return
	if ret == nil {
		ret = types.None
	}

	names := make([]string, len(sn.Params))
	for i := range names {
		names[i] = fmt.Sprintf("__arg%d", i)
	}
	call := src + "\n" + entry + "(" + strings.Join(names, ", ") + ")\n"
	label := path + ":" + entry

	return &interp.NativeFunction{
		Name: sn.Name,
		Type: types.FuncOf(ret, sn.Params...),
		Fn: func(ctx context.Context, args []any) (any, error) {
			globals := make(map[string]any, len(args))
			for i, a := range args {
				o, err := toObject(a)
				if err != nil {
					return nil, fmt.Errorf("runtime: %s: argument %d: %w", sn.Name, i, err)
				}
				globals[names[i]] = o
			}
			result, err := r.eval(ctx, call, label, globals)
			if err != nil {
				return nil, err
			}
			return fromObject(result)
		},
	}, nil
}
