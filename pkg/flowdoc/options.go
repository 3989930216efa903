package flowdoc

import (
	"log/slog"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc/shape"
)

var defaultKinds = func() *shape.Kinds {
	k := shape.NewKinds()
	k.Freeze()
	return k
}()

type graphConfig struct {
	id     string
	kinds  *shape.Kinds
	logger *slog.Logger
}

// Option configures a Graph.
type Option func(*graphConfig)

// WithID sets the graph id. By default a fresh id is generated.
func WithID(id string) Option {
	return func(c *graphConfig) {
		c.id = id
	}
}

// WithKinds sets the shape kind table used to create and load shapes.
// The table is frozen on use. Default: the built-in kinds.
func WithKinds(k *shape.Kinds) Option {
	return func(c *graphConfig) {
		if k != nil {
			c.kinds = k
		}
	}
}

// WithLogger sets the logger for shape index changes.
// Default: nil (no logging).
func WithLogger(l *slog.Logger) Option {
	return func(c *graphConfig) {
		c.logger = l
	}
}
