package ast

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rng(line, col, endCol int) Range {
	return Range{Start: Position{Line: line, Col: col}, End: Position{Line: line, Col: endCol}}
}

const sampleFile = `{
  "kind": "file", "path": "goblin.qs", "range": {"start": {"line": 0, "col": 0}, "end": {"line": 6, "col": 0}},
  "decls": [
    {"kind": "prototype", "range": {"start": {"line": 0, "col": 0}, "end": {"line": 2, "col": 0}},
     "name": {"kind": "ident", "ident": "goblin", "range": {"start": {"line": 0, "col": 10}, "end": {"line": 0, "col": 15}}},
     "origin": {"kind": "ident", "ident": "entity", "range": {"start": {"line": 0, "col": 18}, "end": {"line": 0, "col": 23}}},
     "props": [
       {"kind": "property", "range": {"start": {"line": 1, "col": 2}, "end": {"line": 1, "col": 20}},
        "name": {"kind": "ident", "ident": "tags", "range": {"start": {"line": 1, "col": 2}, "end": {"line": 1, "col": 5}}},
        "value": {"kind": "list", "range": {"start": {"line": 1, "col": 8}, "end": {"line": 1, "col": 20}},
                  "elems": [{"kind": "string", "str": "orc", "range": {"start": {"line": 1, "col": 9}, "end": {"line": 1, "col": 13}}}]}}
     ]},
    {"kind": "func", "range": {"start": {"line": 3, "col": 0}, "end": {"line": 5, "col": 0}},
     "name": {"kind": "ident", "ident": "double", "range": {"start": {"line": 3, "col": 5}, "end": {"line": 3, "col": 10}}},
     "params": [{"kind": "param", "range": {"start": {"line": 3, "col": 12}, "end": {"line": 3, "col": 16}},
                 "name": {"kind": "ident", "ident": "n", "range": {"start": {"line": 3, "col": 12}, "end": {"line": 3, "col": 12}}},
                 "type": {"kind": "ident", "ident": "int", "range": {"start": {"line": 3, "col": 14}, "end": {"line": 3, "col": 16}}}}],
     "result": {"kind": "typeref", "list": true, "range": {"start": {"line": 3, "col": 19}, "end": {"line": 3, "col": 23}},
                "name": {"kind": "ident", "ident": "int", "range": {"start": {"line": 3, "col": 19}, "end": {"line": 3, "col": 21}}}},
     "body": {"kind": "block", "range": {"start": {"line": 3, "col": 25}, "end": {"line": 5, "col": 0}},
              "stmts": [{"kind": "return", "range": {"start": {"line": 4, "col": 2}, "end": {"line": 4, "col": 15}},
                         "value": {"kind": "list", "range": {"start": {"line": 4, "col": 9}, "end": {"line": 4, "col": 15}},
                                   "elems": [{"kind": "binary", "op": "*", "range": {"start": {"line": 4, "col": 10}, "end": {"line": 4, "col": 14}},
                                              "x": {"kind": "ident", "ident": "n", "range": {"start": {"line": 4, "col": 10}, "end": {"line": 4, "col": 10}}},
                                              "y": {"kind": "int", "int": 2, "range": {"start": {"line": 4, "col": 14}, "end": {"line": 4, "col": 14}}}}]}}]}}
  ]
}`

func TestDecode_File(t *testing.T) {
	t.Parallel()
	f, err := Decode(strings.NewReader(sampleFile))
	require.NoError(t, err)
	assert.Equal(t, "goblin.qs", f.Path)
	require.Len(t, f.Decls, 2)

	proto, ok := f.Decls[0].(*PrototypeDef)
	require.True(t, ok)
	assert.Equal(t, "goblin", proto.Name.Name)
	assert.Equal(t, rng(0, 10, 15), proto.Name.Range)
	require.NotNil(t, proto.Origin)
	assert.Equal(t, "entity", proto.Origin.Name)
	require.Len(t, proto.Props, 1)
	list, ok := proto.Props[0].Value.(*ListLit)
	require.True(t, ok)
	assert.Equal(t, "orc", list.Elems[0].(*StringLit).Value)

	fn, ok := f.Decls[1].(*FuncDef)
	require.True(t, ok)
	assert.Equal(t, "double", fn.Name.Name)
	require.Len(t, fn.Params, 1)
	assert.Equal(t, "int", fn.Params[0].Type.Name.Name)
	assert.False(t, fn.Params[0].Type.List)
	require.NotNil(t, fn.Result)
	assert.True(t, fn.Result.List)

	ret := fn.Body.Stmts[0].(*ReturnStmt)
	bin := ret.Value.(*ListLit).Elems[0].(*BinaryExpr)
	assert.Equal(t, OpMul, bin.Op)
	assert.Equal(t, int64(2), bin.Y.(*IntLit).Value)
	assert.Equal(t, rng(4, 10, 10), bin.X.Span())
}

func TestDecode_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"not json", `{`, "decode"},
		{"not a file", `{"kind": "block"}`, "want file"},
		{"unknown decl", `{"kind": "file", "decls": [{"kind": "class"}]}`, "unknown declaration kind"},
		{"missing name", `{"kind": "file", "decls": [{"kind": "var"}]}`, "missing identifier"},
		{"int without value", `{"kind": "file", "decls": [{"kind": "var", "name": {"kind": "ident", "ident": "x"}, "value": {"kind": "int"}}]}`, "int literal without value"},
		{"func without body", `{"kind": "file", "decls": [{"kind": "func", "name": {"kind": "ident", "ident": "f"}}]}`, "missing block"},
		{"bad statement", `{"kind": "file", "decls": [{"kind": "func", "name": {"kind": "ident", "ident": "f"}, "body": {"kind": "block", "stmts": [{"kind": "goto"}]}}]}`, "unknown statement kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode(strings.NewReader(tt.in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRange_Contains(t *testing.T) {
	t.Parallel()
	r := Range{Start: Position{Line: 2, Col: 4}, End: Position{Line: 3, Col: 1}}
	assert.True(t, r.Contains(Position{Line: 2, Col: 4}))
	assert.True(t, r.Contains(Position{Line: 2, Col: 80}))
	assert.True(t, r.Contains(Position{Line: 3, Col: 1}))
	assert.False(t, r.Contains(Position{Line: 2, Col: 3}))
	assert.False(t, r.Contains(Position{Line: 3, Col: 2}))
	assert.Equal(t, "2:4-3:1", r.String())
}
