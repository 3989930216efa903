/*
Package template expands variable references inside parameter values.

Flow documents let a parameter refer to values produced elsewhere in the
flow, for example an HTTP node URL built from a form field:

	https://api.example.com/users/${form.userId}?lang=$lang

# Patterns

  - ${path} - brace style. path is a name or a dotted path into nested
    maps and slices: ${node1.output.items.0.id}
  - $name - dollar style, simple names only, ends at a word boundary so
    $port does not match inside $portNumber

Lookup first tries the whole path as a literal key, so variables whose
names contain dots still resolve.

# Formatting

Strings are inserted as-is. Numbers and booleans use their JSON text.
Maps and slices are inserted as compact JSON. Nil becomes the empty string.

# Missing Variables

By default missing references are kept verbatim:

	template.Expand("Hello ${missing}", nil) // "Hello ${missing}"

MissingEmpty drops them and MissingError reports them:

	exp := template.NewExpander(template.WithMissingAction(template.MissingError))
	_, err := exp.Expand("${missing}", nil) // *UndefinedVariableError

# Escaping

WithEscaper transforms every substituted value, which keeps user data from
breaking the surrounding syntax:

	exp := template.NewExpander(template.WithEscaper(url.QueryEscape))

Expander is safe for concurrent use after construction.
*/
package template
