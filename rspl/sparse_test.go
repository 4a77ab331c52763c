package rspl

import (
	"math"
	"testing"

	"github.com/james-bowman/sparse"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	"github.com/gridfit/rspl/utils"
)

func TestPackColumns(t *testing.T) {
	// 1D stencil: diagonal, +1 neighbour, +2 neighbour
	{
		xcol, ixcol := packColumns(1, utils.NewFromInts([]int{1}))
		assert.Equal(t, utils.Index{0, 1, 2}, xcol)
		assert.Equal(t, utils.Index{0, 1, 2}, ixcol)
	}
	// 2D stencil: +/-1 cube plus a lone +/-2 per axis, forward half only
	{
		xcol, ixcol := packColumns(2, utils.NewFromInts([]int{1, 6}))
		assert.Equal(t, utils.Index{0, 1, 2, 5, 6, 7, 12}, xcol)
		assert.Equal(t, -1, ixcol[3])
		assert.Equal(t, -1, ixcol[11])
	}
	// Translation tables are mutual inverses, in any dimension
	{
		for di, res := range map[int][]int{1: {9}, 2: {9, 7}, 3: {7, 5, 8}, 4: {5, 5, 5, 5}} {
			im := utils.NewIndexMapper(utils.NewFromInts(res))
			xcol, ixcol := packColumns(di, im.Strides)
			assert.Equal(t, 0, xcol[0])
			for k, off := range xcol {
				if k > 0 {
					assert.True(t, off > xcol[k-1]) // Strictly ascending
				}
				assert.Equal(t, k, ixcol[off])
			}
			for off, k := range ixcol {
				if k >= 0 {
					assert.Equal(t, off, xcol[k])
				}
			}
		}
	}
}

// TestAssembledSystem checks the packed symmetric storage against a plain
// sparse matrix expansion of a real assembled fitting system.
func TestAssembledSystem(t *testing.T) {
	var (
		points = []Point{
			{Pos: []float64{0.1, 0.2}, Val: []float64{0.3}},
			{Pos: []float64{0.8, 0.3}, Val: []float64{0.7}},
			{Pos: []float64{0.5, 0.5}, Val: []float64{0.5}},
			{Pos: []float64{0.2, 0.9}, Val: []float64{0.6}},
			{Pos: []float64{0.9, 0.8}, Val: []float64{0.2}},
		}
	)
	s, err := New(2, 1)
	assert.NoError(t, err)
	_, err = s.Fit(points, []int{9, 9}, Options{})
	assert.NoError(t, err)

	m, err := newLevel(s, s.Grid.Res, 0)
	assert.NoError(t, err)
	m.assemble(true)
	q := m.sys
	assert.True(t, q.NormB > 0.0)

	// Expand the packed half into a full sparse matrix.
	dok := sparse.NewDOK(q.gno, q.gno)
	for i := 0; i < q.gno; i++ {
		for k := 0; k < q.acols; k++ {
			v := q.A[i][k]
			if v == 0.0 {
				continue
			}
			if k == 0 {
				dok.Set(i, i, v)
				continue
			}
			if j := i + q.xcol[k]; j < q.gno {
				dok.Set(i, j, v)
				dok.Set(j, i, v)
			}
		}
	}

	// Products through both representations agree.
	xv := make([]float64, q.gno)
	for i := range xv {
		xv[i] = math.Sin(float64(i))
	}
	var y mat.VecDense
	y.MulVec(dok.ToCSR(), mat.NewVecDense(q.gno, xv))
	for i := 0; i < q.gno; i++ {
		assert.InDelta(t, y.AtVec(i), q.rowProduct(xv, i), 1e-10)
	}

	// The diagonal is strictly positive everywhere.
	for i := 0; i < q.gno; i++ {
		assert.True(t, q.A[i][0] > 0.0)
	}

	// zero() clears coefficients but preserves the solution vector.
	q.X[0] = 42.0
	q.zero()
	assert.Equal(t, 42.0, q.X[0])
	assert.Equal(t, 0.0, q.A[0][0])
	assert.Equal(t, 0.0, q.B[0])
}
