package form

import (
	"fmt"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/shape"
)

// Evaluate runs a restricted expression against vars.
func (a *Agent) Evaluate(expression string, vars map[string]any) (bool, error) {
	return a.cfg.evaluator.Evaluate(expression, vars)
}

// Visible reports whether a shape and every container above it pass
// their visibleWhen rules for vars.
func (a *Agent) Visible(shapeID string, vars map[string]any) (bool, error) {
	p, err := a.live()
	if err != nil {
		return false, err
	}
	s := p.ShapeByID(shapeID)
	if s == nil {
		return false, fmt.Errorf("visible %s: %w", shapeID, flowdoc.ErrShapeNotFound)
	}
	return a.visible(p, s, vars)
}

// VisibleShapes returns the visible shapes in page order.
func (a *Agent) VisibleShapes(vars map[string]any) ([]*shape.Shape, error) {
	p, err := a.live()
	if err != nil {
		return nil, err
	}
	var out []*shape.Shape
	for _, s := range p.Shapes() {
		ok, err := a.visible(p, s, vars)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (a *Agent) visible(p *flowdoc.Page, s *shape.Shape, vars map[string]any) (bool, error) {
	seen := make(map[string]bool)
	for cur := s; cur != nil && !seen[cur.ID]; cur, _ = p.Container(cur) {
		seen[cur.ID] = true
		rule := cur.VisibleWhen()
		if rule == "" {
			continue
		}
		ok, err := a.cfg.evaluator.Evaluate(rule, vars)
		if err != nil {
			return false, fmt.Errorf("shape %s visibleWhen: %w", cur.ID, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
