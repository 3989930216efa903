/*
Package expr evaluates the restricted boolean language used by shape
visibility rules and form scripts.

Documents never run arbitrary code. A shape that should only appear under
some condition carries a visibleWhen expression, evaluated against the
current form data:

	plan == 'pro' and (seats > 5 or trial)

# Syntax

	<or>      := <and> { ('or' | '||') <and> }
	<and>     := <unary> { ('and' | '&&') <unary> }
	<unary>   := ('not' | '!') <unary> | <compare>
	<compare> := <operand> [ <op> <operand> ]
	<operand> := '(' <or> ')' | literal | path
	<op>      := '==' | '!=' | '<' | '>' | '<=' | '>=' | 'contains' | custom

Literals are quoted strings ('a' or "a", backslash escapes the quote),
numbers, true, false and null. A path is a variable name or a dotted path
into nested maps and slices (address.city, items.0.id). A path with no
value evaluates to its own text, so bare words act as string literals.

Equality compares the textual form of both sides. Ordering compares
numerically. contains tests for a substring.

# Truthiness

A lone operand is true unless it is nil, false, an empty string or zero.

# Custom Operators

	e := expr.New(expr.WithCustomOperator("matches", func(l, r any) bool {
	    ok, _ := regexp.MatchString(fmt.Sprint(r), fmt.Sprint(l))
	    return ok
	}))

Custom operator names must be identifiers and are matched as whole words.

Evaluation never fails once an expression parses. Compile reports syntax
errors up front, and Evaluator caches compiled programs.
*/
package expr
