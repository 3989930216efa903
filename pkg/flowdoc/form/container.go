package form

import (
	"fmt"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc/geom"
)

// Container is the host surface a document is mounted on.
type Container interface {
	ContainerID() string
	Bounds() geom.Rect
}

// Surface is a fixed-size Container.
type Surface struct {
	ID            string
	Width, Height float64
}

// ContainerID implements Container.
func (s Surface) ContainerID() string { return s.ID }

// Bounds implements Container.
func (s Surface) Bounds() geom.Rect { return geom.Rect{Width: s.Width, Height: s.Height} }

func checkContainer(c Container) error {
	if c == nil {
		return fmt.Errorf("%w: nil", ErrUnusableContainer)
	}
	if c.ContainerID() == "" {
		return fmt.Errorf("%w: empty id", ErrUnusableContainer)
	}
	if b := c.Bounds(); b.Empty() {
		return fmt.Errorf("%w: %s has no area (%gx%g)", ErrUnusableContainer, c.ContainerID(), b.Width, b.Height)
	}
	return nil
}
