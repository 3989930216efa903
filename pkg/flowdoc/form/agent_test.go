package form_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/command"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/event"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/expr"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/form"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/httpnode"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/params"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/reducer"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/shape"
)

var surface = form.Surface{ID: "editor", Width: 800, Height: 600}

func newAgent(t *testing.T, opts ...form.Option) *form.Agent {
	t.Helper()
	a, err := form.New(surface, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func want(t *testing.T, a *form.Agent, typ string, props map[string]any) *shape.Shape {
	t.Helper()
	s, err := a.Want(context.Background(), typ, props)
	require.NoError(t, err)
	require.NotNil(t, s)
	return s
}

func TestNewRejectsUnusableContainer(t *testing.T) {
	tests := []struct {
		name string
		c    form.Container
	}{
		{"nil", nil},
		{"empty", form.Surface{}},
		{"no size", form.Surface{ID: "x"}},
		{"no height", form.Surface{ID: "x", Width: 10}},
		{"negative", form.Surface{ID: "x", Width: -10, Height: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := form.New(tt.c)
			assert.ErrorIs(t, err, form.ErrUnusableContainer)
			_, err = form.Edit(tt.c, []byte(`{"pages":[]}`))
			assert.ErrorIs(t, err, form.ErrUnusableContainer)
		})
	}
}

func TestNewCreatesFormRoot(t *testing.T) {
	a := newAgent(t)
	root := a.Page().Form()
	require.NotNil(t, root)
	assert.Equal(t, 800.0, root.Width)
	assert.Equal(t, 600.0, root.Height)
	assert.False(t, root.Deletable)
	assert.NoError(t, a.Page().ValidateForm())
	assert.False(t, a.ReadOnly())
	assert.Equal(t, a.Graph().ID, a.ID())
}

func TestWantAddsIntoFormRoot(t *testing.T) {
	a := newAgent(t)
	root := a.Page().Form()

	first := want(t, a, shape.TypeInput, map[string]any{"name": "email", "x": 10, "y": 20.5, "text": "Email"})
	second := want(t, a, shape.TypeLabel, nil)

	assert.Equal(t, root.ID, first.Container)
	assert.Equal(t, 0, first.Index)
	assert.Equal(t, 1, second.Index)
	assert.Equal(t, 10.0, first.X)
	assert.Equal(t, 20.5, first.Y)
	assert.Equal(t, "Email", first.Text)
	var name string
	ok, err := first.Get(shape.KeyName, &name)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "email", name)
	assert.Equal(t, int64(2), a.Generation())

	require.NoError(t, a.Undo(context.Background()))
	assert.Nil(t, a.Page().ShapeByID(second.ID))
	assert.Equal(t, int64(3), a.Generation())
	require.NoError(t, a.Redo(context.Background()))
	assert.NotNil(t, a.Page().ShapeByID(second.ID))
}

func TestWantRejects(t *testing.T) {
	a := newAgent(t)

	_, err := a.Want(context.Background(), shape.TypeScript, nil)
	assert.ErrorIs(t, err, form.ErrShapeNotAllowed)
	_, err = a.Want(context.Background(), shape.TypeForm, nil)
	assert.ErrorIs(t, err, form.ErrShapeNotAllowed)
	_, err = a.Want(context.Background(), shape.TypeInput, map[string]any{"x": "left"})
	assert.ErrorIs(t, err, form.ErrInvalidProperty)
	_, err = a.Want(context.Background(), shape.TypeInput, map[string]any{"container": "nowhere"})
	assert.ErrorIs(t, err, flowdoc.ErrInvalidContainer)

	assert.Equal(t, 1, a.Page().Len())
}

func TestWithAllowedTypes(t *testing.T) {
	a := newAgent(t, form.WithAllowedTypes(shape.TypeLabel))
	_, err := a.Want(context.Background(), shape.TypeInput, nil)
	assert.ErrorIs(t, err, form.ErrShapeNotAllowed)
	want(t, a, shape.TypeLabel, nil)
}

func TestAvailableShapeTypes(t *testing.T) {
	types := form.AvailableShapeTypes()
	assert.Contains(t, types, shape.TypeInput)
	assert.NotContains(t, types, shape.TypeScript)
	assert.NotContains(t, types, shape.TypeForm)

	types[0] = "mutated"
	assert.NotContains(t, form.AvailableShapeTypes(), "mutated")
}

func TestClearIsUndoable(t *testing.T) {
	a := newAgent(t)
	div := want(t, a, shape.TypeDiv, nil)
	want(t, a, shape.TypeInput, map[string]any{"container": div.ID})
	want(t, a, shape.TypeLabel, nil)
	before, err := a.Page().Serialize()
	require.NoError(t, err)

	require.NoError(t, a.Clear(context.Background()))
	assert.Equal(t, 1, a.Page().Len(), "form root stays")

	require.NoError(t, a.Undo(context.Background()))
	after, err := a.Page().Serialize()
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestSerializeCommitsFocusedDraft(t *testing.T) {
	a := newAgent(t)
	in := want(t, a, shape.TypeInput, nil)
	require.NoError(t, a.Select(in.ID))
	a.Page().ShapeByID(in.ID).SetDraft("typed")

	data, err := a.Serialize()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"text":"typed"`)
	assert.Empty(t, a.Page().Focused())
}

func TestFocusListenersMatchedByIdentity(t *testing.T) {
	a := newAgent(t)
	in := want(t, a, shape.TypeInput, nil)

	var calls1, calls2 int
	l1 := flowdoc.NewFocusFunc(func(*flowdoc.Page, []*shape.Shape) { calls1++ })
	l2 := flowdoc.NewFocusFunc(func(*flowdoc.Page, []*shape.Shape) { calls2++ })
	a.AddFocusListener(l1)
	a.AddFocusListener(l2)

	assert.True(t, a.RemoveFocusListener(l1))
	assert.False(t, a.RemoveFocusListener(l1))

	require.NoError(t, a.Select(in.ID))
	assert.Equal(t, 0, calls1)
	assert.Equal(t, 1, calls2)
}

func TestDispatchIsUndoable(t *testing.T) {
	ctx := context.Background()
	a := newAgent(t, form.WithAllowedTypes(httpnode.TypeHTTP))
	node := want(t, a, httpnode.TypeHTTP, nil)

	tree := func() string {
		s := a.Page().ShapeByID(node.ID)
		tr, err := s.Params(shape.KeyInputParams)
		require.NoError(t, err)
		return httpnode.URL(tr)
	}

	changed, err := a.Dispatch(ctx, node.ID, "", reducer.Action{Type: httpnode.ChangeRequestURL, Value: "https://x.io/a?b=1"})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "https://x.io/a", tree())

	require.NoError(t, a.Undo(ctx))
	assert.Equal(t, "", tree())
	require.NoError(t, a.Redo(ctx))
	assert.Equal(t, "https://x.io/a", tree())

	changed, err = a.Dispatch(ctx, node.ID, "", reducer.Action{Type: "noSuchAction"})
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = a.Dispatch(ctx, "missing", "", reducer.Action{Type: reducer.ChangeConfig})
	assert.ErrorIs(t, err, flowdoc.ErrShapeNotFound)
}

func TestDispatchUsesCustomReducers(t *testing.T) {
	called := false
	d := reducer.NewDispatcher(reducer.WithBase(reducer.Generic()))
	d.MustRegister(reducer.Func("touch", func(tree params.Tree, _ reducer.Action) (params.Tree, error) {
		called = true
		return tree, nil
	}))
	a := newAgent(t, form.WithReducers(shape.TypeInput, d))
	in := want(t, a, shape.TypeInput, nil)

	changed, err := a.Dispatch(context.Background(), in.ID, "", reducer.Action{Type: "touch"})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.True(t, called)
}

func TestEditRoundTrip(t *testing.T) {
	a := newAgent(t)
	div := want(t, a, shape.TypeDiv, nil)
	in := want(t, a, shape.TypeInput, map[string]any{"container": div.ID, "name": "email"})
	data, err := a.Serialize()
	require.NoError(t, err)

	b, err := form.Edit(surface, data)
	require.NoError(t, err)
	defer b.Close(context.Background())

	assert.Equal(t, a.ID(), b.ID())
	got := b.Page().ShapeByID(in.ID)
	require.NotNil(t, got)
	assert.Equal(t, div.ID, got.Container)
	assert.NotNil(t, b.Page().ShapeByID(div.ID))
	assert.Equal(t, flowdoc.ModeConfiguration, b.Page().Mode)

	again, err := b.Serialize()
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))
}

func TestEditRejectsBadDocuments(t *testing.T) {
	_, err := form.Edit(surface, []byte(`{`))
	assert.Error(t, err)

	twoForms := `{"id":"d","version":"1","pages":[{"id":"p","shapes":[
		{"id":"f1","type":"form","container":"p"},
		{"id":"f2","type":"form","container":"p"}]}]}`
	_, err = form.Edit(surface, []byte(twoForms))
	assert.ErrorIs(t, err, flowdoc.ErrInvalidForm)

	unknown := `{"id":"d","pages":[{"id":"p","shapes":[{"id":"s1","type":"spaceship"}]}]}`
	_, err = form.Edit(surface, []byte(unknown))
	assert.ErrorIs(t, err, flowdoc.ErrUnknownShapeType)
}

func TestEditEmptyDocumentGetsRoot(t *testing.T) {
	a, err := form.Edit(surface, []byte(`{"id":"doc1","pages":[]}`))
	require.NoError(t, err)
	defer a.Close(context.Background())
	assert.Equal(t, "doc1", a.ID())
	assert.NotNil(t, a.Page().Form())
}

func TestAgentPublishesEvents(t *testing.T) {
	rec := event.NewRecorder()
	a := newAgent(t, form.WithEmitter(rec))
	in := want(t, a, shape.TypeInput, nil)
	require.NoError(t, a.Select(in.ID))

	added := rec.Events(event.TypeShapeAdded)
	require.Len(t, added, 1)
	assert.Equal(t, in.ID, added[0].Data().(event.ShapePayload).ShapeID)
	assert.Len(t, rec.Events(event.TypeCommandExecuted), 1)
	assert.Len(t, rec.Events(event.TypeFocusChanged), 1)
}

func TestInvalidator(t *testing.T) {
	n := 0
	a := newAgent(t, form.WithInvalidator(command.InvalidatorFunc(func() { n++ })))
	want(t, a, shape.TypeLabel, nil)
	require.NoError(t, a.Clear(context.Background()))
	assert.Equal(t, 2, n)
}

func TestVisibility(t *testing.T) {
	a := newAgent(t)
	div := want(t, a, shape.TypeDiv, map[string]any{shape.KeyVisibleWhen: "plan == 'pro'"})
	in := want(t, a, shape.TypeInput, map[string]any{"container": div.ID, shape.KeyVisibleWhen: "seats > 5"})
	lbl := want(t, a, shape.TypeLabel, nil)

	tests := []struct {
		vars map[string]any
		div  bool
		in   bool
	}{
		{map[string]any{"plan": "free", "seats": 10}, false, false},
		{map[string]any{"plan": "pro", "seats": 2}, true, false},
		{map[string]any{"plan": "pro", "seats": 10}, true, true},
	}
	for _, tt := range tests {
		got, err := a.Visible(div.ID, tt.vars)
		require.NoError(t, err)
		assert.Equal(t, tt.div, got, tt.vars)
		got, err = a.Visible(in.ID, tt.vars)
		require.NoError(t, err)
		assert.Equal(t, tt.in, got, tt.vars)
	}

	shapes, err := a.VisibleShapes(map[string]any{"plan": "free"})
	require.NoError(t, err)
	ids := make([]string, len(shapes))
	for i, s := range shapes {
		ids[i] = s.ID
	}
	assert.ElementsMatch(t, []string{a.Page().Form().ID, lbl.ID}, ids)

	_, err = a.Visible("missing", nil)
	assert.ErrorIs(t, err, flowdoc.ErrShapeNotFound)
}

func TestVisibilitySyntaxError(t *testing.T) {
	a := newAgent(t)
	in := want(t, a, shape.TypeInput, map[string]any{shape.KeyVisibleWhen: "plan =="})
	_, err := a.Visible(in.ID, nil)
	var se *expr.SyntaxError
	assert.True(t, errors.As(err, &se))
}

func TestEvaluate(t *testing.T) {
	a := newAgent(t)
	ok, err := a.Evaluate("age >= 18 and country == 'NO'", map[string]any{"age": 20, "country": "NO"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClose(t *testing.T) {
	a, err := form.New(surface)
	require.NoError(t, err)
	page := a.Page()
	before := page.FocusListeners()

	require.NoError(t, a.Close(context.Background()))
	require.NoError(t, a.Close(context.Background()))

	assert.Nil(t, a.Graph())
	assert.Nil(t, a.Page())
	assert.Equal(t, before-1, page.FocusListeners())

	_, err = a.Want(context.Background(), shape.TypeInput, nil)
	assert.ErrorIs(t, err, form.ErrClosed)
	_, err = a.Serialize()
	assert.ErrorIs(t, err, form.ErrClosed)
	assert.ErrorIs(t, a.Clear(context.Background()), form.ErrClosed)
	assert.Empty(t, a.Data())
}
