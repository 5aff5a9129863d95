package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/risor-io/risor/object"
)

// newLogModule provides log.info/warn/error for Risor scripts, writing to l.
func newLogModule(l *slog.Logger) *object.Module {
	level := func(name string, lvl slog.Level) *object.Builtin {
		return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
			if len(args) < 1 {
				return object.NewArgsError("log."+name, 1, len(args))
			}
			msg, err := toString(args[0])
			if err != nil {
				msg = args[0].Inspect()
			}
			var attrs []any
			for i, a := range args[1:] {
				attrs = append(attrs, fmt.Sprintf("arg%d", i), a.Inspect())
			}
			l.Log(ctx, lvl, msg, attrs...)
			return object.Nil
		})
	}
	return object.NewBuiltinsModule("log", map[string]object.Object{
		"info":  level("info", slog.LevelInfo),
		"warn":  level("warn", slog.LevelWarn),
		"error": level("error", slog.LevelError),
	})
}

// toObject converts a host value into a Risor object.
func toObject(v any) (object.Object, error) {
	switch v := v.(type) {
	case nil:
		return object.Nil, nil
	case int64:
		return object.NewInt(v), nil
	case int:
		return object.NewInt(int64(v)), nil
	case float64:
		return object.NewFloat(v), nil
	case string:
		return object.NewString(v), nil
	case bool:
		return object.NewBool(v), nil
	case []any:
		items := make([]object.Object, len(v))
		for i, it := range v {
			o, err := toObject(it)
			if err != nil {
				return nil, err
			}
			items[i] = o
		}
		return object.NewList(items), nil
	case map[string]any:
		m := make(map[string]object.Object, len(v))
		for k, it := range v {
			o, err := toObject(it)
			if err != nil {
				return nil, err
			}
			m[k] = o
		}
		return object.NewMap(m), nil
	}
	return nil, fmt.Errorf("unsupported host value %T", v)
}

// fromObject converts a Risor result back into a host value. A Risor error
// value becomes a Go error.
func fromObject(o object.Object) (any, error) {
	switch o := o.(type) {
	case nil, *object.NilType:
		return nil, nil
	case *object.Int:
		return o.Value(), nil
	case *object.Float:
		return o.Value(), nil
	case *object.String:
		return o.Value(), nil
	case *object.Bool:
		return o.Value(), nil
	case *object.Error:
		return nil, o.Value()
	case *object.List:
		items := o.Value()
		out := make([]any, len(items))
		for i, it := range items {
			v, err := fromObject(it)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case *object.Map:
		out := make(map[string]any, len(o.Value()))
		for k, it := range o.Value() {
			v, err := fromObject(it)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported script result %s", o.Type())
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}
