// Package command implements reversible edits on a page.
//
// Every structural change to a document goes through a Command so that it
// can be undone and redone. Commands capture full shape snapshots at the
// moment they run; redo rebuilds shapes from those snapshots, so ids,
// containers and properties come back identical.
//
// Lifecycle:
//
//	created ──Execute──▶ executed ──Undo──▶ undone ──Redo──▶ redone
//	                                          ▲                  │
//	                                          └──────Undo────────┘
//
// Any other transition returns a *TransitionError. Calling Execute twice is
// a no-op.
//
// A failing transition is rolled back in reverse order, in the manner of a
// saga compensation, and leaves both the host and the command state as they
// were.
//
// History serializes commands for one page and keeps a bounded undo stack:
//
//	h := command.NewHistory(page, command.WithLogger(logger))
//	err := h.Do(ctx, command.NewDelete("div1"))
//	err = h.Undo(ctx)
package command
