package rspl

import (
	"math"

	"github.com/gridfit/rspl/utils"
)

// Near-surface stiffness multipliers, compensating the one-sided
// differencing bias at grid edges.
const (
	edgeWeight0 = 2.0  // Nodes 0 or 1 cells from an edge
	edgeWeight1 = 1.15 // Nodes 1 or 2 cells from an edge
)

// assemble builds the sparse system A.x = b for this level. The fit
// minimises
//
//	sum(curvature error at each grid node)^2 + sum(data interpolation error)^2
//
// by setting the partial derivative with respect to every node value to
// zero and solving the resulting equations simultaneously. Each row of A
// and b holds the coefficients of one node's partial derivative equation;
// only terms containing that node's value survive differentiation, which is
// what makes the system sparse. Symmetry of the interactions means only the
// triangular half of each row is stored.
//
// edgeStiffen enables the extra near-surface stiffness.
func (m *level) assemble(edgeStiffen bool) {
	var (
		s    = m.s
		di   = s.Di
		f    = m.f
		gno  = m.gno
		gres = m.res
		gci  = m.mapper.Strides
		ccv  = m.ccv
	)
	if m.sys == nil {
		m.sys = newSparseSystem(di, gno, gci)
	} else { // Re-initialising for changed curve or corrected-target factors
		m.sys.zero()
	}
	var (
		q     = m.sys
		A     = q.A
		b     = q.B
		ixcol = q.ixcol
	)

	k0w, k1w := edgeWeight0, edgeWeight1
	if !edgeStiffen {
		k0w, k1w = 1.0, 1.0
	}

	// Curvature terms. For each node and axis, the three second differences
	// that involve this node (centred on the cell below, here and above)
	// each contribute; per the triangular storage only the coefficients at
	// and beyond the node are recorded. The ipos widths allow for
	// non-uniform grid spacing: differences are rescaled by the local
	// geometric mean cell width so curvature stays comparable across
	// irregular spacing.
	gc := utils.NewGridCounter(gres)
	for i := 0; i < gno; i++ {
		for e := 0; e < di; e++ {
			cw := 2.0 * m.cw[e]
			cw *= s.vw[f] // Scale curvature weight for the value range

			// Stiffness for nodes near an edge in the other dimensions.
			xx := 1.0
			for k := 0; k < di; k++ {
				if k == e {
					continue
				}
				if gc.C[k] == 0 || gc.C[k] == gres[k]-1 {
					xx *= k0w
				} else if gc.C[k] == 1 || gc.C[k] == gres[k]-2 {
					xx *= k1w
				}
			}

			c := gc.C[e]

			// Curvature of the cell below, if at least two above the lower
			// edge.
			if c-2 >= 0 {
				kw := cw * xx
				w1 := 1.0
				if m.ipos[e] != nil {
					w0 := math.Abs(m.ipos[e][c-1] - m.ipos[e][c-2])
					ww := math.Abs(m.ipos[e][c-0] - m.ipos[e][c-1])
					w1 = math.Sqrt(w0*ww) / ww
				}
				if c-2 == 0 || c-0 == gres[e]-1 {
					kw *= k0w
				} else if c-2 == 1 || c-0 == gres[e]-2 {
					kw *= k1w
				}
				A[i][0] += kw * w1 * w1
				if ccv != nil {
					b[i] += kw * w1 * ccv[i-gci[e]][e]
				}
			}
			// Curvature of this cell, if not at either edge.
			if c-1 >= 0 && c+1 < gres[e] {
				kw := cw * xx
				w0, w1 := 1.0, 1.0
				if m.ipos[e] != nil {
					w0 = math.Abs(m.ipos[e][c-0] - m.ipos[e][c-1])
					w1 = math.Abs(m.ipos[e][c+1] - m.ipos[e][c-0])
					tt := math.Sqrt(w0 * w1)
					w0 = tt / w0
					w1 = tt / w1
				}
				if c-1 == 0 || c+1 == gres[e]-1 {
					kw *= k0w
				} else if c-1 == 1 || c+1 == gres[e]-2 {
					kw *= k1w
				}
				A[i][0] += kw * (w0 + w1) * (w0 + w1)
				A[i][ixcol[gci[e]]] += kw * -(w0 + w1) * w1
				if ccv != nil {
					b[i] += kw * -(w0 + w1) * ccv[i][e]
				}
			}
			// Curvature of the cell above, if at least two below the upper
			// edge.
			if c+2 < gres[e] {
				kw := cw * xx
				w0, w1 := 1.0, 1.0
				if m.ipos[e] != nil {
					w0 = math.Abs(m.ipos[e][c+1] - m.ipos[e][c+0])
					w1 = math.Abs(m.ipos[e][c+2] - m.ipos[e][c+1])
					tt := math.Sqrt(w0 * w1)
					w0 = tt / w0
					w1 = tt / w1
				}
				if c+0 == 0 || c+2 == gres[e]-1 {
					kw *= k0w
				} else if c+0 == 1 || c+2 == gres[e]-2 {
					kw *= k1w
				}
				A[i][0] += kw * w0 * w0
				A[i][ixcol[gci[e]]] += kw * w0 * -(w0 + w1)
				A[i][ixcol[2*gci[e]]] += kw * w0 * w1
				if ccv != nil {
					b[i] += kw * w0 * ccv[i+gci[e]][e]
				}
			}
		}
		gc.Inc()
	}

	// nbsum tracks the squared norm of b incrementally: each addition of tt
	// to b[i] changes b[i]^2 by (2*b[i]+tt)*tt.
	nbsum := 0.0

	// Weak default function terms: a weak pseudo data point exactly at each
	// grid node.
	if s.weakFn != nil {
		var (
			iv = make([]float64, di)
			ov = make([]float64, s.Fdi)
		)
		gc.Reset()
		for i := 0; i < gno; i++ {
			for e := 0; e < di; e++ {
				iv[e] = m.low[e] + float64(gc.C[e])*m.width[e]
			}
			s.weakFn(iv, ov)

			d := 2.0 * m.wdfw
			tt := d * ov[f]
			nbsum += (2.0*b[i] + tt) * tt
			b[i] += tt
			A[i][0] += d
			gc.Inc()
		}
	}

	// Data point terms. Each sample couples the 2^di corners of its
	// enclosing cell through its multilinear interpolation weights.
	for n := range s.points {
		var (
			dp = &s.points[n]
			md = &m.d[n]
			bp = md.b
		)
		for j := 0; j < len(m.hi); j++ {
			ai := bp + m.hi[j]

			w := md.w[j]
			d := 2.0 * dp.k[f] * w
			tt := d * dp.cv[f] // Change from the (corrected) target value

			nbsum += (2.0*b[ai] + tt) * tt
			b[ai] += tt
			A[ai][0] += d * w

			// Couple to the corners ahead of this one in the cell.
			for k := j + 1; k < len(m.hi); k++ {
				A[ai][ixcol[m.hi[k]-m.hi[j]]] += d * md.w[k]
			}
		}
	}

	nbsum = math.Sqrt(nbsum)
	if nbsum < 1e-4 { // Avoid division by zero in convergence checks
		nbsum = 1e-4
	}
	q.NormB = nbsum
}
