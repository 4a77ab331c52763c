package rspl

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// nodeRMS is the RMS misfit over points whose positions coincide with grid
// nodes.
func nodeRMS(s *Rspl, points []Point) (rms float64) {
	coord := make([]int, s.Di)
	for _, p := range points {
		for e := 0; e < s.Di; e++ {
			t := (p.Pos[e] - s.Grid.Low[e]) / s.Grid.Width[e]
			coord[e] = int(math.Round(t))
		}
		v := s.Grid.ValueAt(coord)
		for f := 0; f < s.Fdi; f++ {
			e := v[f] - p.Val[f]
			rms += e * e
		}
	}
	return math.Sqrt(rms / float64(len(points)*s.Fdi))
}

func TestNewValidation(t *testing.T) {
	{
		_, err := New(0, 1)
		assert.Error(t, err)
		_, err = New(5, 1)
		assert.Error(t, err)
		_, err = New(1, 0)
		assert.Error(t, err)
		_, err = New(1, 11)
		assert.Error(t, err)
	}
	{
		s, err := New(4, 10)
		assert.NoError(t, err)
		assert.Equal(t, 4, s.Di)
		assert.Equal(t, 10, s.Fdi)
	}
}

func TestFitValidation(t *testing.T) {
	s, _ := New(2, 1)
	// Wrong resolution count
	{
		_, err := s.Fit(nil, []int{9}, Options{})
		assert.Error(t, err)
	}
	// Degenerate resolution
	{
		_, err := s.Fit(nil, []int{9, 1}, Options{})
		assert.Error(t, err)
	}
	// Mis-sized points
	{
		_, err := s.Fit([]Point{{Pos: []float64{0.5}, Val: []float64{0.5}}},
			[]int{9, 9}, Options{})
		assert.Error(t, err)
	}
	// Degenerate node positions
	{
		ipos := [][]float64{{0, 0.1, 0.1 + 1e-15, 0.3, 1}, nil}
		_, err := s.Fit([]Point{{Pos: []float64{0.5, 0.5}, Val: []float64{0.5}}},
			[]int{5, 5}, Options{IPos: ipos})
		assert.Error(t, err)
	}
}

func TestFitNoPoints(t *testing.T) {
	// With nothing to fit the grid takes the default average value
	{
		s, _ := New(2, 2)
		nonMono, err := s.Fit(nil, []int{5, 5}, Options{})
		assert.NoError(t, err)
		assert.False(t, nonMono)
		for _, v := range s.Grid.Values {
			assert.Equal(t, 0.5, v)
		}
	}
}

func TestFitLinear1D(t *testing.T) {
	// A line has zero curvature, so the fit reproduces it throughout
	{
		var points []Point
		for _, x := range []float64{0, 0.25, 0.5, 0.75, 1} {
			points = append(points, Point{
				Pos: []float64{x},
				Val: []float64{0.2 + 0.6*x},
			})
		}
		s, _ := New(1, 1)
		nonMono, err := s.Fit(points, []int{9}, Options{})
		assert.NoError(t, err)
		assert.False(t, nonMono)
		for i := 0; i < 9; i++ {
			x := float64(i) / 8.0
			assert.InDelta(t, 0.2+0.6*x, s.Grid.Value(i)[0], 0.02)
		}
	}
}

func TestFitLinear2D(t *testing.T) {
	// f(x,y) = 0.1 + 0.4x + 0.3y sampled at corners, edges and center
	{
		var points []Point
		for _, y := range []float64{0, 0.5, 1} {
			for _, x := range []float64{0, 0.5, 1} {
				points = append(points, Point{
					Pos: []float64{x, y},
					Val: []float64{0.1 + 0.4*x + 0.3*y},
				})
			}
		}
		s, _ := New(2, 1)
		nonMono, err := s.Fit(points, []int{9, 9}, Options{})
		assert.NoError(t, err)
		assert.False(t, nonMono)

		coord := make([]int, 2)
		for i := 0; i < s.Grid.NodeCount(); i++ {
			s.Grid.Mapper.Unflatten(i, coord)
			x := float64(coord[0]) / 8.0
			y := float64(coord[1]) / 8.0
			assert.InDelta(t, 0.1+0.4*x+0.3*y, s.Grid.Value(i)[0], 0.02)
		}
	}
}

func TestFitOscillation(t *testing.T) {
	// Alternating data cannot fit monotonically
	{
		vals := []float64{0, 1, 0, 1, 0}
		var points []Point
		for i, v := range vals {
			points = append(points, Point{
				Pos: []float64{float64(i) / 4.0},
				Val: []float64{v},
			})
		}
		s, _ := New(1, 1)
		nonMono, err := s.Fit(points, []int{9}, Options{})
		assert.NoError(t, err)
		assert.True(t, nonMono)
		for i := 0; i < 9; i++ {
			v := s.Grid.Value(i)[0]
			assert.True(t, v > -0.5 && v < 1.5)
		}
	}
}

func TestFitLineCG(t *testing.T) {
	// Leading line conjugate-gradient sweeps reach the same solution as
	// pure relaxation
	{
		var points []Point
		for _, x := range []float64{0, 0.25, 0.5, 0.75, 1} {
			points = append(points, Point{
				Pos: []float64{x, 1 - x},
				Val: []float64{0.2 + 0.6*x},
			})
		}
		s1, _ := New(2, 1)
		_, err := s1.Fit(points, []int{9, 9}, Options{})
		assert.NoError(t, err)
		s2, _ := New(2, 1)
		_, err = s2.Fit(points, []int{9, 9}, Options{LineCGIters: 3})
		assert.NoError(t, err)
		for i := 0; i < s1.Grid.NodeCount(); i++ {
			assert.InDelta(t, s1.Grid.Value(i)[0], s2.Grid.Value(i)[0], 5e-3)
		}
	}
}

func TestFitSymmetry(t *testing.T) {
	// Data symmetric about x = 0.5 produces a symmetric solution
	{
		points := []Point{
			{Pos: []float64{0.1}, Val: []float64{0.3}},
			{Pos: []float64{0.9}, Val: []float64{0.3}},
			{Pos: []float64{0.3}, Val: []float64{0.55}},
			{Pos: []float64{0.7}, Val: []float64{0.55}},
			{Pos: []float64{0.5}, Val: []float64{0.8}},
		}
		s, _ := New(1, 1)
		_, err := s.Fit(points, []int{9}, Options{})
		assert.NoError(t, err)
		for i := 0; i < 9; i++ {
			assert.InDelta(t, s.Grid.Value(8-i)[0], s.Grid.Value(i)[0], 5e-3)
		}
	}
}

func TestFitWeights(t *testing.T) {
	// A heavier weight pulls the fit toward its sample
	{
		disputed := []Point{
			{Pos: []float64{0.5}, Val: []float64{0.2}},
			{Pos: []float64{0.5}, Val: []float64{0.8}},
		}
		// x = 0.5 sits exactly on node 4 of a res 9 grid.
		s1, _ := New(1, 1)
		_, err := s1.Fit(disputed, []int{9}, Options{})
		assert.NoError(t, err)
		even := s1.Grid.Value(4)[0]
		assert.InDelta(t, 0.5, even, 0.05)

		disputed[1].Weight = 10.0
		s2, _ := New(1, 1)
		_, err = s2.Fit(disputed, []int{9}, Options{})
		assert.NoError(t, err)
		assert.True(t, s2.Grid.Value(4)[0] > even+0.1)
	}
	// Per-channel weights act on their channel only
	{
		disputed := []Point{
			{Pos: []float64{0.5}, Val: []float64{0.2, 0.2}},
			{Pos: []float64{0.5}, Val: []float64{0.8, 0.8}, Weights: []float64{10.0, 1.0}},
		}
		s, _ := New(1, 2)
		_, err := s.Fit(disputed, []int{9}, Options{})
		assert.NoError(t, err)
		out := s.Grid.Value(4)
		assert.True(t, out[0] > out[1]+0.1)
	}
}

func TestFitExtraPasses(t *testing.T) {
	vals := []float64{0, 1, 0, 1, 0}
	var points []Point
	for i, v := range vals {
		points = append(points, Point{
			Pos: []float64{float64(i) / 4.0},
			Val: []float64{v},
		})
	}
	// Extra fit passes pull the surface closer to the data
	{
		s1, _ := New(1, 1)
		_, err := s1.Fit(points, []int{9}, Options{})
		assert.NoError(t, err)
		plain := nodeRMS(s1, points)

		s2, _ := New(1, 1)
		_, err = s2.Fit(points, []int{9}, Options{ExtraFitPasses: 2})
		assert.NoError(t, err)
		assert.True(t, nodeRMS(s2, points) < plain)
	}
	// Two pass smoothing still produces a sane surface
	{
		s, _ := New(1, 1)
		_, err := s.Fit(points, []int{9}, Options{TwoPassSmoothing: true})
		assert.NoError(t, err)
		for i := 0; i < 9; i++ {
			v := s.Grid.Value(i)[0]
			assert.False(t, math.IsNaN(v))
			assert.True(t, v > -1.0 && v < 2.0)
		}
		rms := nodeRMS(s, points)
		assert.True(t, rms < 0.6)
	}
}

func TestFitBoundsExpansion(t *testing.T) {
	// Data outside the nominal [0,1] domain expands the grid to cover it
	{
		points := []Point{
			{Pos: []float64{-0.5}, Val: []float64{0.1}},
			{Pos: []float64{1.5}, Val: []float64{0.9}},
		}
		s, _ := New(1, 1)
		_, err := s.Fit(points, []int{9}, Options{})
		assert.NoError(t, err)
		assert.Equal(t, -0.5, s.Grid.Low[0])
		assert.Equal(t, 1.5, s.Grid.High[0])
	}
	// Explicit bounds are kept when they already enclose the data
	{
		points := []Point{{Pos: []float64{0.5}, Val: []float64{0.5}}}
		s, _ := New(1, 1)
		_, err := s.Fit(points, []int{9}, Options{
			GridLow:  []float64{-1.0},
			GridHigh: []float64{2.0},
		})
		assert.NoError(t, err)
		assert.Equal(t, -1.0, s.Grid.Low[0])
		assert.Equal(t, 2.0, s.Grid.High[0])
	}
}

func TestGridValueAccess(t *testing.T) {
	// Value and ValueAt view the same storage
	{
		points := []Point{
			{Pos: []float64{0.0, 0.0}, Val: []float64{0.2, 0.4}},
			{Pos: []float64{1.0, 1.0}, Val: []float64{0.8, 0.1}},
		}
		s, _ := New(2, 2)
		_, err := s.Fit(points, []int{5, 5}, Options{})
		assert.NoError(t, err)

		coord := make([]int, 2)
		for i := 0; i < s.Grid.NodeCount(); i++ {
			s.Grid.Mapper.Unflatten(i, coord)
			assert.Equal(t, s.Grid.Value(i)[0], s.Grid.ValueAt(coord)[0])
			assert.Equal(t, s.Grid.Value(i)[1], s.Grid.ValueAt(coord)[1])
		}
	}
}
