/*
Package form is the embedding API of the engine: it mounts a flow document
on a host surface and hands back a handle for driving it.

# Entry Points

	agent, err := form.New(form.Surface{ID: "editor", Width: 800, Height: 600})
	agent, err := form.Edit(surface, saved)
	rt, err := form.Run(surface, saved, flowdoc.ModeRuntime)

New and Edit return an *Agent for interactive editing. Run returns a
*Runtime that refuses structural edits and only supports the interactive
form behaviours: seeding data, reading values and submitting.

Every handle owns its graph until Close. There is no process-wide agent;
pass the handle to whatever needs it.

# Editing

All structural edits go through the command engine so they can be undone:

	in, err := agent.Want(shape.TypeInput, map[string]any{"name": "email"})
	_, err = agent.Dispatch(ctx, nodeID, shape.KeyInputParams, action)
	err = agent.Clear(ctx)
	err = agent.Undo(ctx)

Want only creates allow-listed types (see AvailableShapeTypes).

# Serialization

Serialize commits in-progress text edits of focused shapes before encoding,
so an edit the user has not confirmed yet is not lost.

# Autosave

WithAutoSave attaches an AutoSaver. Every page change restarts a debounce
window; when it expires the latest document is written. Flush and Close
write immediately.
*/
package form
