package reducer

import (
	"context"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc/observability"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/params"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/shape"
)

// ApplyToShape dispatches a against the tree stored under key on s. It
// returns a new shape carrying the reduced tree and whether anything
// changed; s itself is never modified. When nothing changed s is returned.
func ApplyToShape(ctx context.Context, d *Dispatcher, s *shape.Shape, key string, a Action) (*shape.Shape, bool, error) {
	tree, err := s.Params(key)
	if err != nil {
		return s, false, err
	}
	out, err := d.Dispatch(ctx, tree, a)
	if err != nil {
		return s, false, err
	}
	changed := !params.Same(tree, out)
	observability.LogDispatch(d.logger, s.ID, a.Type, changed)
	if !changed {
		return s, false, nil
	}
	next, err := s.WithParams(key, out)
	if err != nil {
		return s, false, err
	}
	return next, true, nil
}
