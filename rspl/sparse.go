package rspl

import (
	"github.com/gridfit/rspl/utils"
)

// sparseSystem is the packed symmetric positive-definite system A.x = b
// over the nodes of one grid level. The finite-difference stencil is
// translationally symmetric, so the coefficient between nodes i and
// i+offset equals that between i-offset and i; only the diagonal and the
// positive-offset (upper triangular) half is stored, as packed columns.
//
// The stencil allows a +/-1 offset cube around each node plus +/-2 along a
// single axis. xcol maps a packed column to its forward node offset
// (ascending, xcol[0] == 0 the diagonal); ixcol is the exact inverse,
// holding -1 at offsets with no column.
type sparseSystem struct {
	gno   int
	acols int
	xcol  utils.Index
	ixcol utils.Index
	A     [][]float64 // [gno][acols], A[i][0] the diagonal
	B     []float64
	X     []float64
	NormB float64 // Norm of B, floored at 1e-4, set by assembly
}

// packColumns enumerates the stencil offsets for a di-dimensional grid with
// the given strides and returns the packed/forward translation tables.
// Needs a minimum grid resolution of 4 so distinct stencil offsets cannot
// collide.
func packColumns(di int, strides utils.Index) (xcol, ixcol utils.Index) {
	for oc := utils.NewOffsetCounter(di, -3, 3); !oc.Done(); oc.Inc() {
		var n3, n2, nz int
		for k := 0; k < di; k++ {
			switch {
			case oc.C[k] == 3 || oc.C[k] == -3:
				n3++
			case oc.C[k] == 2 || oc.C[k] == -2:
				n2++
			case oc.C[k] == 0:
				nz++
			}
		}
		// Accept the +/-1 cube, or a lone +/-2 along one axis.
		if !(n3 == 0 && n2 == 0) && !(n2 == 1 && nz == di-1) {
			continue
		}
		ix := 0
		for k := 0; k < di; k++ {
			ix += oc.C[k] * strides[k]
		}
		if ix >= 0 { // Only the forward half is stored
			xcol = append(xcol, ix)
		}
	}

	ixcol = utils.NewIndex(xcol[len(xcol)-1] + 1)
	for k := range ixcol {
		ixcol[k] = -1
	}
	for k, off := range xcol {
		ixcol[off] = k
	}
	return
}

func newSparseSystem(di, gno int, strides utils.Index) (q *sparseSystem) {
	xcol, ixcol := packColumns(di, strides)
	q = &sparseSystem{
		gno:   gno,
		acols: len(xcol),
		xcol:  xcol,
		ixcol: ixcol,
		A:     make([][]float64, gno),
		B:     make([]float64, gno),
		X:     make([]float64, gno),
	}
	backing := make([]float64, gno*q.acols)
	for i := 0; i < gno; i++ {
		q.A[i] = backing[i*q.acols : (i+1)*q.acols]
	}
	return
}

// zero clears the coefficients and RHS for re-assembly, preserving X.
func (q *sparseSystem) zero() {
	for i := range q.B {
		q.B[i] = 0.0
	}
	for i := range q.A {
		row := q.A[i]
		for k := range row {
			row[k] = 0.0
		}
	}
}

// offDiagProduct returns row i of A times x excluding the diagonal term,
// expanding the stored half by symmetry: the row entries left of the
// diagonal are read from the columns of earlier rows.
func (q *sparseSystem) offDiagProduct(x []float64, i int) (sm float64) {
	var (
		acols = q.acols
		xcol  = q.xcol
		gno   = q.gno
	)
	for k := 1; k < acols; k++ {
		if j := i + xcol[k]; j < gno {
			sm += q.A[i][k] * x[j]
		}
		if j := i - xcol[k]; j >= 0 {
			sm += q.A[j][k] * x[j]
		}
	}
	return
}

// rowProduct returns row i of A times x.
func (q *sparseSystem) rowProduct(x []float64, i int) float64 {
	return q.A[i][0]*x[i] + q.offDiagProduct(x, i)
}
