package httpnode

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc/params"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/reducer"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/template"
)

// HTTP node action types.
const (
	ChangeRequestURL     = "changeRequestUrl"
	ChangeRequestConfig  = "changeRequestConfig"
	ChangeBodyType       = "changeBodyType"
	ChangeBodyValue      = "changeBodyValue"
	ChangeAuthentication = "changeAuthentication"
	AddHeader            = "addHeader"
	DeleteHeader         = "deleteHeader"
	AddParam             = "addParam"
	DeleteParam          = "deleteParam"
)

// Reducers returns a dispatcher for HTTP node trees. Actions it does not
// know fall back to the generic reducers.
func Reducers(opts ...reducer.Option) *reducer.Dispatcher {
	opts = append(slices.Clip(opts), reducer.WithBase(reducer.Generic()))
	d := reducer.NewDispatcher(opts...)
	d.MustRegister(
		reducer.Func(ChangeRequestURL, changeRequestURL),
		reducer.Func(ChangeRequestConfig, changeRequestConfig),
		reducer.Func(ChangeBodyType, changeBodyType),
		reducer.Func(ChangeBodyValue, changeBodyValue),
		reducer.Func(ChangeAuthentication, changeAuthentication),
		reducer.Func(AddHeader, addTo(KeyHeaders)),
		reducer.Func(DeleteHeader, deleteFrom(KeyHeaders)),
		reducer.Func(AddParam, addTo(KeyParams)),
		reducer.Func(DeleteParam, deleteFrom(KeyParams)),
	)
	return d
}

func missing(path ...string) error {
	return fmt.Errorf("%w: %s", params.ErrNotFound, strings.Join(append([]string{KeyRequest}, path...), "."))
}

func badValue(format string, args ...any) error {
	return fmt.Errorf("%w: %s", reducer.ErrBadValue, fmt.Sprintf(format, args...))
}

// setValue sets the value of the param at path.
func setValue(t params.Tree, value any, path ...string) (params.Tree, error) {
	p := find(t, path...)
	if p == nil {
		return t, missing(path...)
	}
	return params.Set(t, p.ID, "value", value)
}

// changeRequestURL stores the url without its query string and adds every
// query parameter whose name is not in the params list yet. Existing
// params keep their values.
func changeRequestURL(t params.Tree, a reducer.Action) (params.Tree, error) {
	base, query, _ := strings.Cut(strings.TrimSpace(a.String()), "?")
	out, err := setValue(t, base, KeyURL)
	if err != nil || query == "" {
		return out, err
	}

	list := find(out, KeyParams)
	if list == nil {
		return t, missing(KeyParams)
	}
	known := make(map[string]bool)
	for _, p := range list.Children() {
		known[p.Name] = true
	}
	for _, pair := range strings.Split(query, "&") {
		name, value, _ := strings.Cut(pair, "=")
		if name == "" || known[name] {
			continue
		}
		known[name] = true
		p := &params.Param{
			ID:    reducer.ChildID(out, list.ID, name),
			Name:  name,
			Type:  params.TypeString,
			From:  params.FromInput,
			Value: value,
		}
		if out, err = params.Append(out, list.ID, p); err != nil {
			return t, err
		}
	}
	return out, nil
}

// changeRequestConfig sets one request setting named by Property.
func changeRequestConfig(t params.Tree, a reducer.Action) (params.Tree, error) {
	switch a.Property {
	case "":
		return t, badValue("changeRequestConfig needs a property")
	case KeyURL:
		return changeRequestURL(t, a)
	case KeyTimeout:
		return setValue(t, ClampTimeout(a.String()), KeyTimeout)
	case KeyMethod:
		m := strings.ToUpper(strings.TrimSpace(a.String()))
		if m == "" {
			return t, badValue("empty method")
		}
		return setValue(t, m, KeyMethod)
	default:
		return setValue(t, a.Value, a.Property)
	}
}

// changeBodyType moves the active marker. The cached sub-trees are left
// alone.
func changeBodyType(t params.Tree, a reducer.Action) (params.Tree, error) {
	typ := a.String()
	if !slices.Contains(bodyTypes, typ) {
		return t, badValue("unknown body type %q", typ)
	}
	return setValue(t, typ, KeyBody, KeyBodyType)
}

// changeBodyValue edits the body of type Property, or of the active type
// when Property is empty. Form bodies take either an item id in ID or a
// map of field values to merge.
func changeBodyValue(t params.Tree, a reducer.Action) (params.Tree, error) {
	typ := a.Property
	if typ == "" {
		typ = BodyType(t)
	}
	switch typ {
	case BodyJSON, BodyText:
		return setValue(t, template.Format(a.Value), KeyBody, KeyBodyArgs, typ)
	case BodyForm:
		if a.ID != "" {
			return params.Set(t, a.ID, "value", a.Value)
		}
		fields, ok := a.Value.(map[string]any)
		if !ok {
			return t, badValue("form body needs an item id or a map of fields")
		}
		return mergeForm(t, fields)
	default:
		return t, badValue("body type %q has no value", typ)
	}
}

func mergeForm(t params.Tree, fields map[string]any) (params.Tree, error) {
	list := BodyArgs(t, BodyForm)
	if list == nil {
		return t, missing(KeyBody, KeyBodyArgs, BodyForm)
	}
	out := t
	var err error
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		value := fields[name]
		if cur := list.Children().Named(name); cur != nil {
			if out, err = params.Set(out, cur.ID, "value", value); err != nil {
				return t, err
			}
			continue
		}
		p := &params.Param{
			ID:    reducer.ChildID(out, list.ID, name),
			Name:  name,
			Type:  params.TypeString,
			From:  params.FromInput,
			Value: value,
		}
		if out, err = params.Append(out, list.ID, p); err != nil {
			return t, err
		}
	}
	return out, nil
}

// changeAuthentication sets type, header or authKey of the auth group.
func changeAuthentication(t params.Tree, a reducer.Action) (params.Tree, error) {
	switch a.Property {
	case KeyAuthType:
		typ := a.String()
		if !slices.Contains(authTypes, typ) {
			return t, badValue("unknown authentication type %q", typ)
		}
		return setValue(t, typ, KeyAuthentication, KeyAuthType)
	case KeyAuthHeader, KeyAuthKey:
		return setValue(t, a.String(), KeyAuthentication, a.Property)
	default:
		return t, badValue("unknown authentication property %q", a.Property)
	}
}

// addTo appends a name/value pair to the list named key.
func addTo(key string) func(params.Tree, reducer.Action) (params.Tree, error) {
	return func(t params.Tree, a reducer.Action) (params.Tree, error) {
		list := find(t, key)
		if list == nil {
			return t, missing(key)
		}
		p, err := reducer.ToParam(a.Value)
		if err != nil {
			return t, err
		}
		if p.Type == "" {
			p.Type = params.TypeString
		}
		if p.From == "" {
			p.From = params.FromInput
		}
		if p.ID == "" {
			p.ID = reducer.ChildID(t, list.ID, p.Name)
		}
		return params.Append(t, list.ID, p)
	}
}

// deleteFrom removes item ID from the list named key.
func deleteFrom(key string) func(params.Tree, reducer.Action) (params.Tree, error) {
	return func(t params.Tree, a reducer.Action) (params.Tree, error) {
		list := find(t, key)
		if list == nil {
			return t, missing(key)
		}
		if list.Children().Find(a.ID) == nil {
			return t, fmt.Errorf("%w: %s in %s", params.ErrNotFound, a.ID, key)
		}
		out, _ := params.Delete(t, a.ID)
		return out, nil
	}
}
