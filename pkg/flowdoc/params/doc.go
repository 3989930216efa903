// Package params models the structured parameter trees that configure a
// shape: the inputParams and outputParams of tool, HTTP and form nodes.
//
// A Tree is an ordered list of *Param. A Param whose From is FromExpand holds
// a nested Tree as its Value, so trees nest to any depth. Trees are
// immutable: every update returns a new Tree that copies only the path from
// the root to the changed node and shares every untouched node with the old
// tree. Same reports whether two trees share their top-level nodes, which is
// how callers detect that an edit actually changed something.
//
//	tree, ok := params.Set(tree, urlID, "value", "https://x.io")
//	if params.Same(old, tree) {
//		// nothing changed
//	}
//
// Never modify a *Param reachable from a Tree in place.
package params
