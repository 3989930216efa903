package expr

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEval(t *testing.T) {
	vars := map[string]any{
		"status": "active",
		"count":  5,
		"ratio":  0.5,
		"tags":   "alpha,beta",
		"done":   false,
		"empty":  "",
		"n":      json.Number("3"),
		"user":   map[string]any{"role": "admin", "address": map[string]any{"city": "Oslo"}},
		"items":  []any{"x", map[string]any{"id": 7}},
	}

	tests := []struct {
		expr string
		want bool
	}{
		{"status == 'active'", true},
		{`status == "active"`, true},
		{"status == active", true},
		{"status != 'active'", false},
		{"count == 5", true},
		{"count == 5.0", true},
		{"count == '5'", true},
		{"count > 3", true},
		{"count < 5", false},
		{"count <= 5", true},
		{"count >= 6", false},
		{"ratio < 1", true},
		{"count > -1", true},
		{"n > 2", true},
		{"n == 3", true},
		{"tags contains 'beta'", true},
		{"tags CONTAINS 'gamma'", false},
		{"count == 5 and status == 'active'", true},
		{"count == 5 && status == 'gone'", false},
		{"count == 4 or status == 'active'", true},
		{"count == 4 || status == 'gone'", false},
		{"not done", true},
		{"!done", true},
		{"not not done", false},
		{"not count == 5", false},
		{"false and true or true", true},
		{"(count == 4 or count == 5) and not done", true},
		{"user.role == 'admin'", true},
		{"user.address.city == 'Oslo'", true},
		{"items.0 == 'x'", true},
		{"items.1.id == 7", true},
		{"empty", false},
		{"status", true},
		{"count", true},
		{"null == missing", false},
		{"true", true},
		{"", false},
		{"'it\\'s' == \"it's\"", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Eval(tt.expr, vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEval_SyntaxErrors(t *testing.T) {
	for _, src := range []string{
		"a ==",
		"(a == 1",
		"a == 1)",
		"'open",
		"a @ b",
		"a == 1 b",
		"and",
		"a == 5.0.1",
	} {
		t.Run(src, func(t *testing.T) {
			_, err := Eval(src, nil)
			var se *SyntaxError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, src, se.Expr)
			assert.Error(t, Check(src))
		})
	}
}

func TestEvaluator_WithCustomOperator(t *testing.T) {
	e := New(
		WithCustomOperator("matches", func(l, r any) bool {
			ok, err := regexp.MatchString(fmt.Sprint(r), fmt.Sprint(l))
			return err == nil && ok
		}),
		WithCustomOperator("startsWith", func(l, r any) bool {
			ls, rs := fmt.Sprint(l), fmt.Sprint(r)
			return len(ls) >= len(rs) && ls[:len(rs)] == rs
		}),
	)

	vars := map[string]any{"name": "test_123"}
	tests := []struct {
		expr string
		want bool
	}{
		{"name matches '^test_[0-9]+$'", true},
		{"name matches '^foo'", false},
		{"name startsWith 'test' and not name matches 'x'", true},
	}
	for _, tt := range tests {
		got, err := e.Evaluate(tt.expr, vars)
		require.NoError(t, err, tt.expr)
		assert.Equal(t, tt.want, got, tt.expr)
	}

	_, err := Eval("name matches 'x'", vars)
	assert.Error(t, err, "custom operators are per evaluator")
}

func TestEvaluator_CompileCaches(t *testing.T) {
	e := New()
	p1, err := e.Compile("a == 1")
	require.NoError(t, err)
	p2, err := e.Compile("a == 1")
	require.NoError(t, err)
	assert.Same(t, p1, p2)
	assert.Equal(t, "a == 1", p1.String())
	assert.True(t, p1.Eval(map[string]any{"a": 1}))
	assert.False(t, p1.Eval(map[string]any{"a": 2}))
}

func TestEvaluator_Concurrent(t *testing.T) {
	e := New()
	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := e.Evaluate("i >= 16", map[string]any{"i": i})
			assert.NoError(t, err)
			assert.Equal(t, i >= 16, got)
		}()
	}
	wg.Wait()
}

func TestResolve(t *testing.T) {
	vars := map[string]any{"x": 1, "m": map[string]any{"k": "v"}}
	tests := []struct {
		in   string
		want any
	}{
		{"'q'", "q"},
		{`"q"`, "q"},
		{"true", true},
		{"FALSE", false},
		{"null", nil},
		{"42", int64(42)},
		{"4.5", 4.5},
		{"x", 1},
		{"m.k", "v"},
		{"bare", "bare"},
		{"  ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Resolve(tt.in, vars), tt.in)
	}
}

func TestIsTruthy(t *testing.T) {
	for v, want := range map[any]bool{
		nil: false, true: true, false: false, "": false, "x": true,
		0: false, 1: true, int64(0): false, 0.0: false, 0.1: true,
		json.Number("0"): false, json.Number("2"): true,
	} {
		assert.Equal(t, want, IsTruthy(v), "%#v", v)
	}
	assert.True(t, IsTruthy([]any{}))
}

func TestToFloat64(t *testing.T) {
	assert.Equal(t, 3.0, ToFloat64(3))
	assert.Equal(t, 3.0, ToFloat64(int64(3)))
	assert.Equal(t, 2.5, ToFloat64(float32(2.5)))
	assert.Equal(t, 1.5, ToFloat64(json.Number("1.5")))
	assert.Equal(t, 7.0, ToFloat64(" 7 "))
	assert.Equal(t, 0.0, ToFloat64("seven"))
	assert.Equal(t, 0.0, ToFloat64(struct{}{}))
}

func TestCompare(t *testing.T) {
	ok, err := Compare(2, "2", "==")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Compare("10", 9, ">")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = Compare(1, 1, "~=")
	assert.Error(t, err)
}
