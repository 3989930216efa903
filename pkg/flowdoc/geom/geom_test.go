package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	r := NewRect(10, 10, -5, -4)
	assert.Equal(t, Rect{X: 5, Y: 6, Width: 5, Height: 4}, r)
}

func TestContains(t *testing.T) {
	outer := NewRect(0, 0, 100, 100)

	assert.True(t, outer.Contains(NewRect(10, 10, 20, 20)))
	assert.True(t, outer.Contains(outer))
	assert.False(t, outer.Contains(NewRect(90, 90, 20, 20)))

	assert.True(t, outer.ContainsPoint(Point{X: 100, Y: 0}))
	assert.False(t, outer.ContainsPoint(Point{X: 101, Y: 0}))
}

func TestIntersects(t *testing.T) {
	a := NewRect(0, 0, 10, 10)

	assert.True(t, a.Intersects(NewRect(5, 5, 10, 10)))
	assert.False(t, a.Intersects(NewRect(10, 0, 10, 10)), "touching edges do not overlap")
	assert.False(t, a.Intersects(NewRect(20, 20, 1, 1)))
}

func TestUnionAndBounds(t *testing.T) {
	u := NewRect(0, 0, 10, 10).Union(NewRect(20, 5, 10, 10))
	assert.Equal(t, Rect{X: 0, Y: 0, Width: 30, Height: 15}, u)

	assert.Equal(t, NewRect(1, 1, 1, 1), Rect{}.Union(NewRect(1, 1, 1, 1)))
	assert.Equal(t, Rect{}, Bounds())
	assert.Equal(t, u, Bounds(NewRect(0, 0, 10, 10), NewRect(20, 5, 10, 10)))
}

func TestCenterAndTranslate(t *testing.T) {
	r := NewRect(0, 0, 10, 20)
	assert.Equal(t, Point{X: 5, Y: 10}, r.Center())
	assert.Equal(t, Rect{X: 3, Y: 4, Width: 10, Height: 20}, r.Translate(3, 4))
}
