package command_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc/command"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/event"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/shape"
)

func TestHistoryDoUndoRedo(t *testing.T) {
	ctx := context.Background()
	p := newPage(t)
	rec := event.NewRecorder()
	h := command.NewHistory(p, command.WithEmitter(rec), command.WithDocID("doc1"))

	assert.False(t, h.CanUndo())
	require.ErrorIs(t, h.Undo(ctx), command.ErrNothingToUndo)
	require.ErrorIs(t, h.Redo(ctx), command.ErrNothingToRedo)

	require.NoError(t, h.Do(ctx, command.NewDelete("lbl1")))
	assert.True(t, h.CanUndo())
	assert.Nil(t, p.ShapeByID("lbl1"))

	require.NoError(t, h.Undo(ctx))
	assert.NotNil(t, p.ShapeByID("lbl1"))
	assert.True(t, h.CanRedo())

	require.NoError(t, h.Redo(ctx))
	assert.Nil(t, p.ShapeByID("lbl1"))

	require.NoError(t, h.Undo(ctx))
	require.NoError(t, h.Do(ctx, command.NewDelete("in1")))
	assert.False(t, h.CanRedo())

	types := make([]string, 0)
	for _, e := range rec.Events() {
		types = append(types, e.Type())
		assert.Equal(t, "doc1", e.DocID())
	}
	assert.Equal(t, []string{
		event.TypeCommandExecuted,
		event.TypeCommandUndone,
		event.TypeCommandRedone,
		event.TypeCommandUndone,
		event.TypeCommandExecuted,
	}, types)
}

func TestHistoryLimit(t *testing.T) {
	ctx := context.Background()
	p := newPage(t)
	h := command.NewHistory(p, command.WithLimit(2))

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, h.Do(ctx, command.NewAdd(&shape.Shape{ID: id, Type: shape.TypeLabel})))
	}
	undo, redo := h.Len()
	assert.Equal(t, 2, undo)
	assert.Equal(t, 0, redo)

	require.NoError(t, h.Undo(ctx))
	require.NoError(t, h.Undo(ctx))
	require.ErrorIs(t, h.Undo(ctx), command.ErrNothingToUndo)
	assert.NotNil(t, p.ShapeByID("a"))
	assert.Nil(t, p.ShapeByID("b"))
}

func TestHistoryFailureKeepsStacks(t *testing.T) {
	ctx := context.Background()
	p := newPage(t)
	rec := event.NewRecorder()
	h := command.NewHistory(p, command.WithEmitter(rec))

	err := h.Do(ctx, command.NewAdd(&shape.Shape{ID: "x", Type: "nope"}))
	require.Error(t, err)
	assert.False(t, h.CanUndo())

	require.True(t, rec.Wait(1, time.Second, event.TypeErrorOccurred))
	payload := rec.Events(event.TypeErrorOccurred)[0].Data().(event.ErrorPayload)
	assert.Equal(t, "command.execute", payload.Op)
	assert.Equal(t, "permanent", payload.Category)
}

func TestHistoryIgnoresExecutedCommand(t *testing.T) {
	ctx := context.Background()
	p := newPage(t)
	h := command.NewHistory(p)

	del := command.NewDelete("lbl1")
	require.NoError(t, del.Execute(p))
	require.NoError(t, h.Do(ctx, del))
	assert.False(t, h.CanUndo())

	h.Reset()
	undo, redo := h.Len()
	assert.Zero(t, undo+redo)
}
