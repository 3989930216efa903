// Package reducer patches parameter trees through a table of pure functions.
//
// A Reducer maps (tree, action) to a new tree. It never mutates its input:
// the result shares every untouched node with the input and replaces only
// the path to the addressed param, so params.Same detects whether anything
// changed.
//
// A Dispatcher looks reducers up by Action.Type. Unknown types fall through
// the base chain and finally return the tree unchanged. Registration is
// closed once the first action is dispatched.
//
//	d := reducer.NewDispatcher(reducer.WithBase(reducer.Generic()))
//	d.MustRegister(myReducer)
//	next, err := d.Dispatch(ctx, tree, reducer.Action{Type: "changeConfig", ID: id, Value: "x"})
package reducer
