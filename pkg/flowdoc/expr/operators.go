package expr

import (
	"fmt"
	"strings"
)

var builtins = map[string]BinaryOp{
	"==":       compareEquals,
	"!=":       func(l, r any) bool { return !compareEquals(l, r) },
	"<":        func(l, r any) bool { return ToFloat64(l) < ToFloat64(r) },
	">":        func(l, r any) bool { return ToFloat64(l) > ToFloat64(r) },
	"<=":       func(l, r any) bool { return ToFloat64(l) <= ToFloat64(r) },
	">=":       func(l, r any) bool { return ToFloat64(l) >= ToFloat64(r) },
	"contains": compareContains,
}

// Compare applies a built-in operator.
func Compare(left, right any, op string) (bool, error) {
	fn, ok := builtins[op]
	if !ok {
		return false, fmt.Errorf("unknown operator: %s", op)
	}
	return fn(left, right), nil
}

// compareEquals compares the textual forms, so 5, 5.0 and "5" are equal.
func compareEquals(left, right any) bool {
	return text(left) == text(right)
}

func compareContains(left, right any) bool {
	return strings.Contains(text(left), text(right))
}
