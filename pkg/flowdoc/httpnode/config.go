package httpnode

import (
	"math"
	"strconv"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc/params"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/shape"
)

// TypeHTTP is the shape type of the HTTP node.
const TypeHTTP = "httpNodeState"

// Param names inside the request group.
const (
	KeyRequest        = "httpRequest"
	KeyMethod         = "method"
	KeyURL            = "url"
	KeyTimeout        = "timeout"
	KeyHeaders        = "headers"
	KeyParams         = "params"
	KeyBody           = "requestBody"
	KeyBodyType       = "type"
	KeyBodyArgs       = "args"
	KeyAuthentication = "authentication"
	KeyAuthType       = "type"
	KeyAuthHeader     = "header"
	KeyAuthKey        = "authKey"
)

// Body types.
const (
	BodyNone = "none"
	BodyForm = "x-www-form-urlencoded"
	BodyJSON = "json"
	BodyText = "text"
)

// Authentication types.
const (
	AuthNone   = "none"
	AuthAPIKey = "apiKey"
	AuthBearer = "bearer"
	AuthCustom = "custom"
)

// Timeout bounds in seconds.
const (
	MinTimeoutSeconds     = 1.0
	MaxTimeoutSeconds     = 600.0
	DefaultTimeoutSeconds = 10.0
)

var bodyTypes = []string{BodyNone, BodyForm, BodyJSON, BodyText}

var authTypes = []string{AuthNone, AuthAPIKey, AuthBearer, AuthCustom}

// DefaultConfig returns the inputParams tree of a new HTTP node.
func DefaultConfig() params.Tree {
	str := func(name, value string) *params.Param {
		return params.New(name, params.TypeString, params.FromInput, value)
	}
	list := func(name string) *params.Param {
		return params.New(name, params.TypeArray, params.FromExpand, params.Tree{})
	}
	return params.Tree{
		params.Group(KeyRequest,
			str(KeyMethod, "GET"),
			str(KeyURL, ""),
			params.New(KeyTimeout, params.TypeInteger, params.FromInput, int(DefaultTimeoutSeconds*1000)),
			list(KeyHeaders),
			list(KeyParams),
			params.Group(KeyBody,
				str(KeyBodyType, BodyNone),
				params.Group(KeyBodyArgs,
					list(BodyForm),
					str(BodyJSON, ""),
					str(BodyText, ""),
				),
			),
			params.Group(KeyAuthentication,
				str(KeyAuthType, AuthNone),
				str(KeyAuthHeader, "Authorization"),
				str(KeyAuthKey, ""),
			),
		),
	}
}

// DefaultOutput returns the outputParams tree of a new HTTP node.
func DefaultOutput() params.Tree {
	return params.Tree{
		params.Group("output",
			params.New("status", params.TypeInteger, params.FromInput, nil),
			params.New("headers", params.TypeObject, params.FromInput, nil),
			params.New("body", params.TypeString, params.FromInput, nil),
		),
	}
}

// Kind is the shape kind for HTTP nodes. Register it with the kind table
// of any graph that contains them.
func Kind() shape.Kind {
	return shape.Kind{
		Type:   TypeHTTP,
		Width:  360,
		Height: 160,
		Init: func(s *shape.Shape) error {
			if err := s.Set(shape.KeyInputParams, DefaultConfig()); err != nil {
				return err
			}
			return s.Set(shape.KeyOutputParams, DefaultOutput())
		},
	}
}

// Register adds the HTTP node kind to kinds.
func Register(kinds *shape.Kinds) error {
	return kinds.Register(TypeHTTP, Kind())
}

// find returns the param at path below the request group.
func find(t params.Tree, path ...string) *params.Param {
	return t.Path(append([]string{KeyRequest}, path...)...)
}

// ClampTimeout turns a seconds value typed by the user into milliseconds.
// Unparseable, non-finite and values at or below one second become one
// second; values above ten minutes become ten minutes.
func ClampTimeout(raw string) int {
	sec, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(sec) || math.IsInf(sec, 0) || sec <= MinTimeoutSeconds {
		sec = MinTimeoutSeconds
	}
	sec = min(sec, MaxTimeoutSeconds)
	return int(math.Round(sec * 1000))
}

// TimeoutMillis returns the stored timeout, clamped to the allowed range.
func TimeoutMillis(t params.Tree) int {
	ms, ok := find(t, KeyTimeout).Float()
	if !ok {
		return int(DefaultTimeoutSeconds * 1000)
	}
	return int(min(max(ms, MinTimeoutSeconds*1000), MaxTimeoutSeconds*1000))
}

// TimeoutSeconds returns the timeout for display.
func TimeoutSeconds(t params.Tree) float64 {
	return float64(TimeoutMillis(t)) / 1000
}

// BodyType returns the active body type.
func BodyType(t params.Tree) string {
	if bt := find(t, KeyBody, KeyBodyType).String(); bt != "" {
		return bt
	}
	return BodyNone
}

// BodyArgs returns the cached sub-tree of body type typ.
func BodyArgs(t params.Tree, typ string) *params.Param {
	return find(t, KeyBody, KeyBodyArgs, typ)
}

// URL returns the base url.
func URL(t params.Tree) string {
	return find(t, KeyURL).String()
}

// Method returns the request method, GET when unset.
func Method(t params.Tree) string {
	if m := find(t, KeyMethod).String(); m != "" {
		return m
	}
	return "GET"
}

// Headers returns the header list.
func Headers(t params.Tree) params.Tree {
	return find(t, KeyHeaders).Children()
}

// QueryParams returns the query parameter list.
func QueryParams(t params.Tree) params.Tree {
	return find(t, KeyParams).Children()
}
