package form

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/event"
)

// SubmitFunc receives the form data on Submit. An error aborts the submit.
type SubmitFunc func(ctx context.Context, data map[string]any) error

// Runtime is a document mounted for filling in. Structural edits return
// ErrReadOnly; field values can still change.
type Runtime struct {
	*Agent

	mu        sync.Mutex
	submitted bool
	handlers  []SubmitFunc
}

// Run mounts a serialized document on c in a read-only mode. An empty
// mode means flowdoc.ModeRuntime.
func Run(c Container, serialized []byte, mode flowdoc.Mode, opts ...Option) (*Runtime, error) {
	switch mode {
	case "":
		mode = flowdoc.ModeRuntime
	case flowdoc.ModeRuntime, flowdoc.ModeHistory, flowdoc.ModeDisplay:
	default:
		return nil, fmt.Errorf("run: %w: %q", ErrInvalidMode, mode)
	}
	a, err := load(c, serialized, mode, opts)
	if err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}
	return &Runtime{Agent: a}, nil
}

// Then calls fn with the loaded runtime and returns r for chaining.
func (r *Runtime) Then(fn func(*Runtime)) *Runtime {
	fn(r)
	return r
}

// InitializeData seeds field values by name. Names without a field are
// ignored.
func (r *Runtime) InitializeData(data map[string]any) error {
	_, err := r.setValues(data)
	return err
}

// SetValue sets the value of every field called name.
func (r *Runtime) SetValue(name string, value any) error {
	n, err := r.setValues(map[string]any{name: value})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("field %q: %w", name, flowdoc.ErrShapeNotFound)
	}
	return nil
}

func (r *Runtime) setValues(values map[string]any) (int, error) {
	p, err := r.live()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, s := range p.Shapes() {
		name := fieldName(s)
		if name == "" {
			continue
		}
		v, ok := values[name]
		if !ok {
			continue
		}
		cp := s.Clone()
		if err := cp.Set(KeyValue, v); err != nil {
			return n, err
		}
		if err := p.Replace(cp); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// OnSubmit registers fn to run on Submit, in registration order.
func (r *Runtime) OnSubmit(fn SubmitFunc) {
	r.mu.Lock()
	r.handlers = append(r.handlers, fn)
	r.mu.Unlock()
}

// Submitted reports whether Submit completed.
func (r *Runtime) Submitted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.submitted
}

// Submit hands the form data to every OnSubmit handler. The first handler
// error aborts and leaves the form unsubmitted.
func (r *Runtime) Submit(ctx context.Context) error {
	r.mu.Lock()
	if r.submitted {
		r.mu.Unlock()
		return ErrAlreadySubmitted
	}
	handlers := slices.Clone(r.handlers)
	r.mu.Unlock()

	if _, err := r.live(); err != nil {
		return err
	}
	data := r.Data()
	for _, fn := range handlers {
		if err := fn(ctx, data); err != nil {
			return fmt.Errorf("submit: %w", err)
		}
	}

	r.mu.Lock()
	if r.submitted {
		r.mu.Unlock()
		return ErrAlreadySubmitted
	}
	r.submitted = true
	r.mu.Unlock()
	r.publish(event.New(event.TypeFormSubmitted, "form", r.docID, event.SubmitPayload{Data: data}))
	return nil
}
