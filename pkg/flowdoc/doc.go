/*
Package flowdoc provides the document model of a visual flow editor: a Graph
of Pages, each owning a flat set of typed Shapes linked into a containment
tree by container ids.

# Overview

flowdoc is the engine behind a node-and-edge editor for application and agent
flows. It represents, mutates, serializes and synchronizes documents; drawing
them is left to the host application.

The module is split into focused packages:
  - flowdoc (this package): Graph, Page, containment, serialization
  - shape: the Shape record and the kind table keyed by type tag
  - params: immutable parameter trees (inputParams, outputParams)
  - command: undoable add/delete/config commands and History
  - reducer, httpnode: pure configuration reducers keyed by action type
  - form: the embedding API (New, Edit, Run) and autosave
  - collab: push/pull collaboration client and relay Hub
  - store: document persistence

# Basic Usage

	g := flowdoc.NewGraph()
	page := g.AddPage("main")

	form, err := page.CreateShape(shape.TypeForm, 0, 0)
	if err != nil {
		log.Fatal(err)
	}
	input, _ := page.NewShape(shape.TypeInput, 10, 10)
	input.Container = form.ID
	if err := page.Insert(input, -1); err != nil {
		log.Fatal(err)
	}

	data, _ := g.Serialize()
	loaded, err := flowdoc.Load(data)

# Containment

Every shape names its parent in Container, either another shape id or the
page id. Insert rejects containers that do not resolve (ErrInvalidContainer),
parents whose kind cannot own shapes (ErrNotContainer) and chains that loop
(ErrContainmentCycle). Deserialize validates the whole
page and refuses unknown shape types with *UnknownTypeError.

# Notifications

Page.Subscribe delivers ShapeAdded, ShapeRemoved, ShapeUpdated and PageReset
changes synchronously after they are applied. Focus listeners are registered
with AddFocusListener and removed by identity.

# Thread Safety

Graph and Page guard their indexes with RW mutexes. Serializing mutations
into a consistent order is the job of command.History.
*/
package flowdoc
