package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceFrom(t *testing.T) {
	t.Run("zero distance to itself", func(t *testing.T) {
		loc := NewLocation(35.6892, 51.3890)
		assert.InDelta(t, 0, loc.DistanceFrom(loc), 1e-9)
	})

	t.Run("is symmetric", func(t *testing.T) {
		a := NewLocation(35.6892, 51.3890)
		b := NewLocation(29.5918, 52.5837)
		assert.InDelta(t, a.DistanceFrom(b), b.DistanceFrom(a), 1e-9)
	})

	t.Run("one degree of latitude is about 69 miles", func(t *testing.T) {
		a := NewLocation(0, 0)
		b := NewLocation(1, 0)
		assert.InDelta(t, 69.09, a.DistanceFrom(b), 0.2)
	})

	t.Run("closer points yield smaller distances", func(t *testing.T) {
		issue := NewLocation(1.5, 2)
		near := NewLocation(1.4, 2)
		far := NewLocation(5, 2)
		assert.Less(t, issue.DistanceFrom(near), issue.DistanceFrom(far))
	})
}

func TestEqual(t *testing.T) {
	a := NewLocation(3.5, 7)
	b := NewLocation(3.5, 7)
	c := NewLocation(3.5, 7.1)
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestIsZero(t *testing.T) {
	assert.True(t, Location{}.IsZero())
	assert.False(t, NewLocation(0, 1).IsZero())
}
