package rspl

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// The fitting problem strongly resembles a partial differential equation
// solve: the scattered data points equate to boundary conditions, the
// smoothness criteria to the differential equations. A direct method such
// as Cholesky decomposition works for 1D, but above that the fringes of
// the sparse diagonal matrix generate fill-ins and the storage becomes
// unacceptable at useful resolutions. So the system is solved iteratively:
// Gauss-Seidel relaxation over the packed symmetric stencil, optionally
// preceded by sweeps of conjugate-gradient solves of each 1-D line of the
// grid, with the whole thing warm-started through the multigrid resolution
// schedule.
//
// The error metric is norm(b - A*x)/norm(b), effectively the RMS error of
// the derivative fit.

// cjScratch holds the temporary vectors of the line conjugate-gradient
// solves and the residual buffer of the convergence checks. They are grown
// as needed and reused rather than reallocated.
type cjScratch struct {
	z, xx, q, r, n []float64
	res            []float64
}

func (ta *cjScratch) grow(nid int) {
	if cap(ta.z) < nid {
		ta.z = make([]float64, nid)
		ta.xx = make([]float64, nid)
		ta.q = make([]float64, nid)
		ta.r = make([]float64, nid)
		ta.n = make([]float64, nid)
	}
}

func (ta *cjScratch) growRes(gno int) {
	if cap(ta.res) < gno {
		ta.res = make([]float64, gno)
	}
}

// solnErr returns the current solution error norm(b - A*x)/norm(b), using
// res as the residual buffer.
func (q *sparseSystem) solnErr(res []float64) float64 {
	r := res[:q.gno]
	for i := 0; i < q.gno; i++ {
		r[i] = q.B[i] - q.rowProduct(q.X, i)
	}
	return floats.Norm(r, 2) / q.NormB
}

// relax performs one in-place Gauss-Seidel sweep, updating every node once
// from the currently-known neighbour values. ovsh is an over-relaxation
// factor, 1.0 for none.
func (q *sparseSystem) relax(ovsh float64) {
	for i := 0; i < q.gno; i++ {
		sm := q.offDiagProduct(q.X, i)
		q.X[i] += ovsh * ((q.B[i]-sm)/q.A[i][0] - q.X[i])
	}
}

// solve runs the iterative solver for this level to the given tolerance.
// Failure to converge within the iteration cap is not fatal; the best
// achieved solution stands.
func (m *level) solve(ta *cjScratch, tol float64) {
	var (
		q = m.sys
	)
	ta.growRes(q.gno)

	// Small systems solve adequately with a single conjugate-gradient pass
	// over the whole flattened grid, treated as one line.
	if m.bres <= 4 {
		q.cjLine(ta, 0, q.gno, 1, 10*q.gno, tol)
		return
	}

	var (
		jitters    = m.s.lineCGIters
		ni         int // Relaxation sweeps per convergence check
		lerr, derr float64
		ovsh       = 1.0
	)
	err := q.solnErr(ta.res)
	for i := 0; i < maxOuterIters; i++ {
		if i < jitters { // Line conjugate-gradient sweeps
			lerr = err
			err = m.iterLines(ta, int(m.mres), tol*conjTolExtra)
			derr = err / lerr
			if derr > 0.8 { // Not improving fast enough, drop to relaxation
				jitters = i - 1
			}
		} else { // Pure relaxation
			if ni == 0 {
				ni = 1 // Single sweep first, to get a reduction estimate
			} else {
				// Estimate the sweeps left to reach tol from the reduction
				// rate between the two most recent checks, batching them to
				// amortise the check.
				den := math.Log(err) - math.Log(lerr)
				if den < 0 {
					ni = int((math.Log(tol) - math.Log(err)) * float64(ni) / den)
				} else { // No reduction to extrapolate from
					ni = 1
				}
				if ni < 1 {
					ni = 1
				} else if ni > maxRelaxBatch {
					ni = maxRelaxBatch
				}
			}
			for j := 0; j < ni; j++ {
				q.relax(ovsh)
			}
			lerr = err
			err = q.solnErr(ta.res)
			derr = math.Pow(err/lerr, 1.0/float64(ni))
			if m.s.Verbose {
				fmt.Print("*")
			}
		}
		// Within tolerance, or improvement has stalled.
		if err < tol || (derr <= 1.0 && derr > tolImprovement) {
			break
		}
	}
}

// iterLines performs one sweep of conjugate-gradient line solves over every
// 1-D line of every axis, lines visited in red/black order across the
// other axes, and returns the solution error afterwards.
func (m *level) iterLines(ta *cjScratch, maxIt int, tol float64) float64 {
	var (
		di   = m.s.Di
		q    = m.sys
		gres = m.res
		gci  = m.mapper.Strides
		gc   = make([]int, di)
	)
	for d := 0; d < di; d++ {
		ld := 0 // Lowest dimension that is not d, stepped by 2
		if d == 0 {
			ld = 1
		}
		for e := range gc {
			gc[e] = 0
		}

		sof := 0
		for e := 0; e < di; {
			q.cjLine(ta, sof, gres[d], gci[d], maxIt, tol)

			// Advance to the next line start.
			for e = 0; e < di; e++ {
				if e == d {
					continue
				}
				if e == ld {
					gc[e] += 2
					sof += 2 * gci[e]
				} else {
					gc[e]++
					sof += gci[e]
				}
				if gc[e] < gres[e] {
					break // No carry
				}
				gc[e] -= gres[e]
				sof -= gres[e] * gci[e]

				if gres[e]&1 == 0 { // Swap red/black phase on even grids
					if gc[ld]&1 == 1 {
						gc[ld]--
						sof -= gci[ld]
					} else {
						gc[ld]++
						sof += gci[ld]
					}
				}
			}
			// All coordinates back at zero means every line is done.
			for e = 0; e < di; e++ {
				if gc[e] != 0 {
					break
				}
			}
		}
	}
	return q.solnErr(ta.res)
}

// cjLine solves the sub-system of one grid line (start offset sof, nid
// nodes, stride inc) to relative tolerance tol with diagonally
// preconditioned conjugate gradient, holding all other node values fixed.
// It returns the tolerance achieved.
func (q *sparseSystem) cjLine(ta *cjScratch, sof, nid, inc, maxIt int, tol float64) float64 {
	var (
		acols = q.acols
		xcol  = q.xcol
		gno   = q.gno
		A     = q.A
		x     = q.X
		b     = q.B
		eof   = sof + nid*inc
	)
	ta.grow(nid)
	var (
		z  = ta.z[:nid]
		xx = ta.xx[:nid]
		qv = ta.q[:nid]
		r  = ta.r[:nid]
		nn = ta.n[:nid]
	)

	sm := 0.0
	for ii := sof; ii < eof; ii += inc {
		sm += b[ii] * b[ii]
	}
	normb := math.Sqrt(sm)
	if normb == 0.0 {
		normb = 1.0
	}

	// r = b - A*x over the line.
	for i, ii := 0, sof; i < nid; i, ii = i+1, ii+inc {
		r[i] = b[ii] - q.rowProduct(x, ii)
	}

	// Move the line's x values aside into xx; the x slots then hold the
	// search direction p so that q = A*p can be computed in the context of
	// the fixed surrounding values. Since only part of x is being solved,
	// A*p is offset by the surrounding values' contribution n = A*0, and
	// q = A*p - n compensates.
	for i, ii := 0, sof; i < nid; i, ii = i+1, ii+inc {
		xx[i] = x[ii]
		x[ii] = 0.0
	}
	for i, ii := 0, sof; i < nid; i, ii = i+1, ii+inc {
		nn[i] = q.rowProduct(x, ii)
	}

	resid := floats.Norm(r, 2) / normb
	if resid <= tol { // Initial conditions don't need improvement
		tol = resid
		maxIt = 0
	}

	var rho, rho1 float64
	for it := 1; it <= maxIt; it++ {
		// Approximately solve z from r with the diagonal preconditioner.
		for i, ii := 0, sof; i < nid; i, ii = i+1, ii+inc {
			if d := A[ii][0]; d != 0.0 {
				z[i] = r[i] / d
			} else {
				z[i] = r[i]
			}
		}
		rho = floats.Dot(r, z)

		if it == 1 {
			for i, ii := 0, sof; i < nid; i, ii = i+1, ii+inc {
				x[ii] = z[i]
			}
		} else {
			beta := rho / rho1
			for i, ii := 0, sof; i < nid; i, ii = i+1, ii+inc {
				x[ii] = z[i] + beta*x[ii]
			}
		}

		// q = A*p - n, and alpha = p.q
		alpha := 0.0
		for i, ii := 0, sof; i < nid; i, ii = i+1, ii+inc {
			sm := A[ii][0] * x[ii]
			for k := 1; k < acols; k++ {
				if p := ii + xcol[k]; p < gno {
					sm += A[ii][k] * x[p]
				}
				if p := ii - xcol[k]; p >= 0 {
					sm += A[p][k] * x[p]
				}
			}
			qv[i] = sm - nn[i]
			alpha += qv[i] * x[ii]
		}
		if alpha != 0.0 {
			alpha = rho / alpha
		} else {
			alpha = 0.5
		}

		for i, ii := 0, sof; i < nid; i, ii = i+1, ii+inc {
			xx[i] += alpha * x[ii]
			r[i] -= alpha * qv[i]
		}
		resid = floats.Norm(r, 2) / normb

		if resid <= tol {
			tol = resid
			break
		}
		rho1 = rho
	}

	// Substitute the solution back into x.
	for i, ii := 0, sof; i < nid; i, ii = i+1, ii+inc {
		x[ii] = xx[i]
	}
	return tol
}
