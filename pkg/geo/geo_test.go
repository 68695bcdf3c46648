package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKm(t *testing.T) {
	t.Run("distance to itself is zero", func(t *testing.T) {
		points := [][2]float64{
			{43.2389, 76.8897},
			{0, 0},
			{-33.8688, 151.2093},
		}
		for _, p := range points {
			assert.InDelta(t, 0, DistanceKm(p[0], p[1], p[0], p[1]), 1e-9)
		}
	})

	t.Run("symmetric", func(t *testing.T) {
		d1 := DistanceKm(43.2389, 76.8897, 43.2567, 76.9286)
		d2 := DistanceKm(43.2567, 76.9286, 43.2389, 76.8897)
		assert.InDelta(t, d1, d2, 1e-9)
	})

	t.Run("known distance", func(t *testing.T) {
		// One degree of latitude is roughly 111.2 km.
		d := DistanceKm(43.0, 76.0, 44.0, 76.0)
		assert.InDelta(t, 111.2, d, 0.5)
	})
}

func TestBearingDeg(t *testing.T) {
	t.Run("due north", func(t *testing.T) {
		assert.InDelta(t, 0, BearingDeg(43.0, 76.0, 44.0, 76.0), 0.01)
	})

	t.Run("due south", func(t *testing.T) {
		assert.InDelta(t, 180, BearingDeg(44.0, 76.0, 43.0, 76.0), 0.01)
	})

	t.Run("due east at equator", func(t *testing.T) {
		assert.InDelta(t, 90, BearingDeg(0, 0, 0, 1), 0.01)
	})

	t.Run("normalized to [0,360)", func(t *testing.T) {
		b := BearingDeg(0, 1, 0, 0) // due west
		assert.InDelta(t, 270, b, 0.01)
	})
}

func TestIsWithinForwardCone(t *testing.T) {
	t.Run("bearing equal to heading", func(t *testing.T) {
		assert.True(t, IsWithinForwardCone(90, 90))
	})

	t.Run("directly behind", func(t *testing.T) {
		assert.False(t, IsWithinForwardCone(270, 90))
	})

	t.Run("just inside the cone", func(t *testing.T) {
		assert.True(t, IsWithinForwardCone(149, 90))
		assert.True(t, IsWithinForwardCone(31, 90))
	})

	t.Run("just outside the cone", func(t *testing.T) {
		assert.False(t, IsWithinForwardCone(151, 90))
		assert.False(t, IsWithinForwardCone(29, 90))
	})

	t.Run("wraps around zero", func(t *testing.T) {
		assert.True(t, IsWithinForwardCone(350, 10))
		assert.False(t, IsWithinForwardCone(280, 10))
	})
}
