package flowdoc

import (
	"fmt"
	"slices"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc/shape"
)

// FocusListener is told when the set of focused shapes changes.
// Listeners are matched by identity on removal, so implementations should
// be pointer types.
type FocusListener interface {
	FocusChanged(p *Page, focused []*shape.Shape)
}

// FocusFunc adapts a function to FocusListener. Always use it through a
// pointer (NewFocusFunc) so that removal finds exactly this registration.
type FocusFunc struct {
	fn func(*Page, []*shape.Shape)
}

// NewFocusFunc wraps fn.
func NewFocusFunc(fn func(*Page, []*shape.Shape)) *FocusFunc {
	return &FocusFunc{fn: fn}
}

// FocusChanged calls the wrapped function.
func (f *FocusFunc) FocusChanged(p *Page, focused []*shape.Shape) {
	f.fn(p, focused)
}

// AddFocusListener registers l. Adding the same listener twice registers it twice.
func (p *Page) AddFocusListener(l FocusListener) {
	p.lmu.Lock()
	p.focus = append(p.focus, l)
	p.lmu.Unlock()
}

// RemoveFocusListener removes the most recent registration of l and
// reports whether one was found. Other listeners are untouched.
func (p *Page) RemoveFocusListener(l FocusListener) bool {
	p.lmu.Lock()
	defer p.lmu.Unlock()
	for i := len(p.focus) - 1; i >= 0; i-- {
		if p.focus[i] == l {
			p.focus = slices.Delete(p.focus, i, i+1)
			return true
		}
	}
	return false
}

// FocusListeners returns the number of registered focus listeners.
func (p *Page) FocusListeners() int {
	p.lmu.Lock()
	defer p.lmu.Unlock()
	return len(p.focus)
}

// Select focuses the given shapes, replacing the previous focus. Shapes
// losing focus have their drafts committed first and are reported to
// subscribers as ShapeUpdated.
func (p *Page) Select(ids ...string) error {
	p.mu.Lock()
	for _, id := range ids {
		if _, ok := p.byID[id]; !ok {
			p.mu.Unlock()
			return fmt.Errorf("select %s: %w", id, ErrShapeNotFound)
		}
	}
	var committed []*shape.Shape
	for _, id := range p.focused {
		if s, ok := p.byID[id]; ok && !slices.Contains(ids, id) && s.CommitDraft() {
			committed = append(committed, s)
		}
	}
	changed := !slices.Equal(p.focused, ids)
	p.focused = slices.Clone(ids)
	p.mu.Unlock()

	p.notifyCommitted(committed)
	if changed {
		p.notifyFocus()
	}
	return nil
}

// Unselect commits pending drafts of all focused shapes and clears focus.
// It reports whether any draft was committed.
func (p *Page) Unselect() bool {
	p.mu.Lock()
	var committed []*shape.Shape
	for _, id := range p.focused {
		if s, ok := p.byID[id]; ok && s.CommitDraft() {
			committed = append(committed, s)
		}
	}
	changed := len(p.focused) > 0
	p.focused = nil
	p.mu.Unlock()

	p.notifyCommitted(committed)
	if changed {
		p.notifyFocus()
	}
	return len(committed) > 0
}

// Focused returns the focused shapes in selection order.
func (p *Page) Focused() []*shape.Shape {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*shape.Shape, 0, len(p.focused))
	for _, id := range p.focused {
		if s, ok := p.byID[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

func (p *Page) notifyCommitted(shapes []*shape.Shape) {
	for _, s := range shapes {
		p.notify(Change{Kind: ShapeUpdated, PageID: p.ID, Shape: s})
	}
}

func (p *Page) notifyFocus() {
	focused := p.Focused()
	p.lmu.Lock()
	ls := slices.Clone(p.focus)
	p.lmu.Unlock()
	for _, l := range ls {
		l.FocusChanged(p, focused)
	}
}
