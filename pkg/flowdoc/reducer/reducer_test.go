package reducer_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc/params"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/reducer"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/registry"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/shape"
)

func sampleTree() params.Tree {
	return params.Tree{
		{ID: "name", Name: "name", Type: params.TypeString, From: params.FromInput, Value: "alice"},
		{ID: "opts", Name: "opts", Type: params.TypeObject, From: params.FromExpand, Value: params.Tree{
			{ID: "a", Name: "a", Type: params.TypeString, From: params.FromInput, Value: "1"},
			{ID: "b", Name: "b", Type: params.TypeString, From: params.FromReference, Value: []any{"x"},
				Extra: map[string]json.RawMessage{"referenceNode": json.RawMessage(`"n1"`)}},
		}},
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestGenericReducers(t *testing.T) {
	tests := []struct {
		name   string
		action reducer.Action
		check  func(t *testing.T, out params.Tree)
	}{
		{
			name:   "changeConfig value",
			action: reducer.Action{Type: reducer.ChangeConfig, ID: "a", Value: "2"},
			check: func(t *testing.T, out params.Tree) {
				assert.Equal(t, "2", out.Find("a").Value)
			},
		},
		{
			name:   "changeConfig extra key",
			action: reducer.Action{Type: reducer.ChangeConfig, ID: "a", UpdateKey: "description", Value: "first"},
			check: func(t *testing.T, out params.Tree) {
				var d string
				require.NoError(t, out.Find("a").Field("description", &d))
				assert.Equal(t, "first", d)
			},
		},
		{
			name: "addConfig",
			action: reducer.Action{Type: reducer.AddConfig, ID: "opts", Value: map[string]any{
				"name": "c", "type": "String", "from": "Input", "value": "3",
			}},
			check: func(t *testing.T, out params.Tree) {
				kids := out.Find("opts").Children()
				require.Len(t, kids, 3)
				assert.Equal(t, "c", kids[2].Name)
				assert.Equal(t, "opts.c", kids[2].ID)
			},
		},
		{
			name:   "deleteConfig",
			action: reducer.Action{Type: reducer.DeleteConfig, ID: "a"},
			check: func(t *testing.T, out params.Tree) {
				assert.Nil(t, out.Find("a"))
				assert.Len(t, out.Find("opts").Children(), 1)
			},
		},
		{
			name:   "renameConfig",
			action: reducer.Action{Type: reducer.RenameConfig, ID: "name", Value: "user"},
			check: func(t *testing.T, out params.Tree) {
				assert.Equal(t, "user", out.Find("name").Name)
			},
		},
		{
			name:   "changeFrom to input",
			action: reducer.Action{Type: reducer.ChangeFrom, ID: "b", Value: "Input"},
			check: func(t *testing.T, out params.Tree) {
				b := out.Find("b")
				assert.Equal(t, params.FromInput, b.From)
				assert.Equal(t, "", b.Value)
				assert.NotContains(t, b.Extra, "referenceNode")
			},
		},
		{
			name:   "changeFrom to reference",
			action: reducer.Action{Type: reducer.ChangeFrom, ID: "a", Value: "Reference"},
			check: func(t *testing.T, out params.Tree) {
				assert.Equal(t, params.FromReference, out.Find("a").From)
				assert.Equal(t, []any{}, out.Find("a").Value)
			},
		},
		{
			name:   "moveConfig",
			action: reducer.Action{Type: reducer.MoveConfig, ID: "b", Value: 0},
			check: func(t *testing.T, out params.Tree) {
				assert.Equal(t, "b", out.Find("opts").Children()[0].ID)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := reducer.Generic()
			in := sampleTree()
			before := mustJSON(t, in)

			out, err := d.Dispatch(context.Background(), in, tt.action)
			require.NoError(t, err)
			assert.False(t, params.Same(in, out))
			tt.check(t, out)

			// Purity: input untouched, repeat gives the same result.
			assert.JSONEq(t, before, mustJSON(t, in))
			again, err := d.Dispatch(context.Background(), in, tt.action)
			require.NoError(t, err)
			assert.JSONEq(t, mustJSON(t, out), mustJSON(t, again))
		})
	}
}

func TestStructuralSharing(t *testing.T) {
	d := reducer.Generic()
	in := sampleTree()
	out, err := d.Dispatch(context.Background(), in, reducer.Action{Type: reducer.ChangeConfig, ID: "a", Value: "z"})
	require.NoError(t, err)

	assert.Same(t, in[0], out[0])
	assert.NotSame(t, in[1], out[1])
	assert.Same(t, in[1].Children()[1], out[1].Children()[1])
}

func TestUnknownActionPassesThrough(t *testing.T) {
	d := reducer.Generic()
	in := sampleTree()
	out, err := d.Dispatch(context.Background(), in, reducer.Action{Type: "noSuchAction", ID: "a"})
	require.NoError(t, err)
	assert.True(t, params.Same(in, out))
}

func TestReducerErrors(t *testing.T) {
	d := reducer.Generic()
	in := sampleTree()

	_, err := d.Dispatch(context.Background(), in, reducer.Action{Type: reducer.DeleteConfig, ID: "ghost"})
	require.ErrorIs(t, err, params.ErrNotFound)
	var rerr *reducer.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, reducer.DeleteConfig, rerr.Action)

	_, err = d.Dispatch(context.Background(), in, reducer.Action{Type: reducer.ChangeFrom, ID: "a", Value: "Elsewhere"})
	assert.ErrorIs(t, err, reducer.ErrBadValue)

	_, err = d.Dispatch(context.Background(), in, reducer.Action{Type: reducer.MoveConfig, ID: "a", Value: "first"})
	assert.ErrorIs(t, err, reducer.ErrBadValue)
}

func TestDispatcherBaseChainAndFreeze(t *testing.T) {
	d := reducer.NewDispatcher(reducer.WithBase(reducer.Generic()))
	upper := reducer.Func("upper", func(t params.Tree, a reducer.Action) (params.Tree, error) {
		return params.Set(t, a.ID, "value", "UPPER")
	})
	require.NoError(t, d.Register(upper))
	require.Error(t, d.Register(upper))
	assert.Equal(t, []string{"upper"}, d.Types())

	_, ok := d.Lookup(reducer.ChangeConfig)
	assert.True(t, ok)

	out, err := d.Dispatch(context.Background(), sampleTree(), reducer.Action{Type: reducer.RenameConfig, ID: "a", Value: "alpha"})
	require.NoError(t, err)
	assert.Equal(t, "alpha", out.Find("a").Name)

	err = d.Register(reducer.Func("late", nil))
	assert.ErrorIs(t, err, registry.ErrFrozen)
}

func TestChildID(t *testing.T) {
	tree := params.Tree{{ID: "h.X_Token", Name: "X Token"}}
	assert.Equal(t, "h.X_Token-2", reducer.ChildID(tree, "h", "X Token"))
	assert.Equal(t, "h.Accept", reducer.ChildID(tree, "h", "Accept"))
	assert.Equal(t, "param", reducer.ChildID(nil, "", ""))
}

func TestActionJSON(t *testing.T) {
	var a reducer.Action
	require.NoError(t, json.Unmarshal([]byte(`{"actionType":"moveConfig","id":"b","value":1,"source":"ui"}`), &a))
	assert.Equal(t, reducer.MoveConfig, a.Type)
	n, ok := a.Int()
	assert.True(t, ok)
	assert.Equal(t, 1, n)
	assert.Equal(t, "ui", a.Extra["source"])

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"moveConfig","id":"b","value":1,"source":"ui"}`, string(data))
}

func TestApplyToShape(t *testing.T) {
	s := &shape.Shape{ID: "n1", Type: shape.TypeTool}
	s, err := s.WithParams(shape.KeyInputParams, sampleTree())
	require.NoError(t, err)
	orig := mustJSON(t, s)

	d := reducer.Generic()
	next, changed, err := reducer.ApplyToShape(context.Background(), d, s, shape.KeyInputParams,
		reducer.Action{Type: reducer.ChangeConfig, ID: "name", Value: "bob"})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.NotSame(t, s, next)
	assert.JSONEq(t, orig, mustJSON(t, s))

	tree, err := next.Params(shape.KeyInputParams)
	require.NoError(t, err)
	assert.Equal(t, "bob", tree.Find("name").Value)

	same, changed, err := reducer.ApplyToShape(context.Background(), d, next, shape.KeyInputParams,
		reducer.Action{Type: "unknown"})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Same(t, next, same)
}

func TestApplyToShapeKeepsUntouchedParamsByteForByte(t *testing.T) {
	const raw = `[{"id":"name","name":"name","type":"String","from":"Input","value":"alice"},` +
		`{"id":"flag","name":"flag","type":"Boolean","from":"Input"},` +
		`{"id":"list","name":"list","type":"Array","from":"Expand","value":[{"name":"item","type":"String","value":"x"}]}]`
	s := &shape.Shape{ID: "n1", Type: shape.TypeTool,
		Extra: map[string]json.RawMessage{shape.KeyInputParams: json.RawMessage(raw)}}

	next, changed, err := reducer.ApplyToShape(context.Background(), reducer.Generic(), s, shape.KeyInputParams,
		reducer.Action{Type: reducer.ChangeConfig, ID: "name", Value: "bob"})
	require.NoError(t, err)
	require.True(t, changed)

	want := strings.Replace(raw, `"alice"`, `"bob"`, 1)
	assert.Equal(t, want, string(next.Extra[shape.KeyInputParams]))
}
