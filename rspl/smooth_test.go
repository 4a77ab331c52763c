package rspl

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptSmooth(t *testing.T) {
	// Exact table nodes come back undisturbed
	{
		// 1D, 10 points, ad 0.005 sits on table axes exactly
		assert.InDelta(t, math.Pow(10.0, -5.1), optSmooth(1, 10, 0.005), 1e-18)
		// 2D, 100 points (nc = 10), ad 0.0125
		assert.InDelta(t, math.Pow(10.0, -3.9), optSmooth(2, 100, 0.0125), 1e-16)
	}
	// Values beyond an axis end clamp to the end entry
	{
		assert.InDelta(t, math.Pow(10.0, -5.0), optSmooth(1, 1, 0.00001), 1e-16)
		assert.InDelta(t, optSmooth(1, 5, 0.05), optSmooth(1, 5, 0.5), 1e-16)
	}
	// More sample deviation never asks for less smoothing by much:
	// the factor is positive and bounded for sane inputs
	{
		for _, di := range []int{1, 2, 3, 4} {
			for _, ndp := range []int{1, 10, 100, 10000} {
				for _, ad := range []float64{0.0001, 0.005, 0.05} {
					sm := optSmooth(di, ndp, ad)
					assert.True(t, sm > 0.0 && sm < 1.0)
				}
			}
		}
	}
}

func TestLogAxisIndex(t *testing.T) {
	axis := []float64{1.0, 10.0, 100.0}
	// On-node lookups
	{
		ix, w := logAxisIndex(axis, 1.0)
		assert.Equal(t, 0, ix)
		assert.Equal(t, 1.0, w)
		ix, w = logAxisIndex(axis, 100.0)
		assert.Equal(t, 1, ix)
		assert.Equal(t, 0.0, w)
	}
	// Ratiometric midpoint
	{
		ix, w := logAxisIndex(axis, math.Sqrt(10.0))
		assert.Equal(t, 0, ix)
		assert.InDelta(t, 0.5, w, 1e-12)
	}
	// Clamping
	{
		ix, w := logAxisIndex(axis, 0.5)
		assert.Equal(t, 0, ix)
		assert.Equal(t, 1.0, w)
		ix, w = logAxisIndex(axis, 1e6)
		assert.Equal(t, 1, ix)
		assert.Equal(t, 0.0, w)
	}
}
