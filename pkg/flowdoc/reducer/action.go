package reducer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Action addresses one change to a parameter tree.
type Action struct {
	// Type selects the reducer. JSON accepts "type" or "actionType".
	Type string
	// ID addresses the target param.
	ID string
	// UpdateKey names the param property to set. Empty means "value".
	UpdateKey string
	// Property is a reducer-specific sub-selector (e.g. the config name for
	// changeRequestConfig).
	Property string
	Value    any
	// Extra keeps any other action field.
	Extra map[string]any
}

var actionKeys = map[string]bool{
	"type": true, "actionType": true, "id": true, "updateKey": true, "property": true, "value": true,
}

// UnmarshalJSON decodes an action object. Numbers decode as json.Number.
func (a *Action) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decode action: %w", err)
	}
	str := func(k string) string {
		s, _ := raw[k].(string)
		return s
	}
	*a = Action{
		Type:      str("type"),
		ID:        str("id"),
		UpdateKey: str("updateKey"),
		Property:  str("property"),
		Value:     raw["value"],
	}
	if a.Type == "" {
		a.Type = str("actionType")
	}
	for k, v := range raw {
		if actionKeys[k] {
			continue
		}
		if a.Extra == nil {
			a.Extra = make(map[string]any)
		}
		a.Extra[k] = v
	}
	return nil
}

// MarshalJSON encodes the action with Extra fields inlined.
func (a Action) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(a.Extra)+6)
	for k, v := range a.Extra {
		out[k] = v
	}
	out["type"] = a.Type
	if a.ID != "" {
		out["id"] = a.ID
	}
	if a.UpdateKey != "" {
		out["updateKey"] = a.UpdateKey
	}
	if a.Property != "" {
		out["property"] = a.Property
	}
	if a.Value != nil {
		out["value"] = a.Value
	}
	return json.Marshal(out)
}

// String returns Value as text. Numbers are formatted, nil is empty.
func (a Action) String() string {
	switch v := a.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Int returns Value as an integer.
func (a Action) Int() (int, bool) {
	switch v := a.Value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	}
	return 0, false
}
