// Package registry provides a generic tag → value table used for every
// string-keyed dispatch in flowdoc: shape factories keyed by shape type and
// reducers keyed by action type.
//
// # Lifecycle
//
// Tables are filled at startup, then frozen. After Freeze every mutation
// returns ErrFrozen, so a lookup result can never change underneath a
// running document:
//
//	factories := registry.New[string, shape.Factory]("shapes")
//	factories.MustRegister("form", newForm)
//	factories.MustRegister("htmlInput", newInput)
//	factories.Freeze()
//
//	f, ok := factories.Get("htmlInput")
//
// Registering the same key twice returns ErrDuplicate; use Replace to
// override a built-in entry before freezing.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Range and Keys iterate in key
// order over a snapshot.
package registry
