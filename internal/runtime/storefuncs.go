package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/risor-io/risor/object"

	"github.com/jward/questscript/internal/store"
)

// Store bridge functions give natives read-only access to the script index.

// makeDBQueryFn creates a db_query bridge that executes read-only SQL.
// Returns a list of maps (column name to value).
func makeDBQueryFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("db_query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 {
			return object.Errorf("db_query: expected at least 1 argument (sql), got %d", len(args))
		}
		sqlStr, err := toString(args[0])
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}

		trimmed := strings.TrimSpace(strings.ToUpper(sqlStr))
		if !strings.HasPrefix(trimmed, "SELECT") {
			return object.Errorf("db_query: only SELECT queries are allowed")
		}

		var queryArgs []any
		for _, arg := range args[1:] {
			v, err := fromObject(arg)
			if err != nil {
				return object.Errorf("db_query: %v", err)
			}
			queryArgs = append(queryArgs, v)
		}

		rows, queryErr := s.DB().QueryContext(ctx, sqlStr, queryArgs...)
		if queryErr != nil {
			return object.Errorf("db_query: %v", queryErr)
		}
		defer rows.Close()

		cols, colErr := rows.Columns()
		if colErr != nil {
			return object.Errorf("db_query: columns: %v", colErr)
		}

		results := []object.Object{}
		for rows.Next() {
			values := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return object.Errorf("db_query: scan: %v", err)
			}
			row := make(map[string]object.Object, len(cols))
			for i, col := range cols {
				row[col] = sqlValueToObject(values[i])
			}
			results = append(results, object.NewMap(row))
		}
		if err := rows.Err(); err != nil {
			return object.Errorf("db_query: %v", err)
		}
		return object.NewList(results)
	})
}

// makeDefinitionsByNameFn exposes Store.DefinitionsByName.
func makeDefinitionsByNameFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("definitions_by_name", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("definitions_by_name", 1, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("definitions_by_name: %v", err)
		}
		defs, err := s.DefinitionsByName(name)
		if err != nil {
			return object.Errorf("definitions_by_name: %v", err)
		}
		results := make([]object.Object, 0, len(defs))
		for _, d := range defs {
			results = append(results, object.NewMap(map[string]object.Object{
				"id":         object.NewInt(d.ID),
				"file_id":    object.NewInt(d.FileID),
				"name":       object.NewString(d.Name),
				"kind":       object.NewString(d.Kind),
				"type":       object.NewString(d.Type),
				"start_line": object.NewInt(int64(d.StartLine)),
				"start_col":  object.NewInt(int64(d.StartCol)),
			}))
		}
		return object.NewList(results)
	})
}

func sqlValueToObject(v any) object.Object {
	if v == nil {
		return object.Nil
	}
	switch val := v.(type) {
	case int64:
		return object.NewInt(val)
	case float64:
		return object.NewFloat(val)
	case string:
		return object.NewString(val)
	case bool:
		return object.NewBool(val)
	case []byte:
		return object.NewString(string(val))
	default:
		return object.NewString(fmt.Sprintf("%v", val))
	}
}
