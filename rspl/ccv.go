package rspl

import (
	"math"

	"github.com/gridfit/rspl/utils"
)

// Two-pass smoothing: after a complete first fit, the curvature of the
// solution at each grid node is measured, low pass filtered, and then fed
// back as a right hand side bias in a second fit. The second fit uses
// vanishingly small curvature weights, so it follows the data closely
// while retaining the large scale shape of the first solution.

// compCCV computes the curvature error of the full resolution solution at
// every grid node for each input dimension, into s.ccv.
func (m *level) compCCV() {
	var (
		s    = m.s
		di   = s.Di
		gres = m.res
		gci  = m.mapper.Strides
		x    = m.sys.X
		gc   = utils.NewGridCounter(gres)
	)
	if s.ccv == nil {
		s.ccv = make([][]float64, m.gno)
		for i := range s.ccv {
			s.ccv[i] = make([]float64, di)
		}
	}
	for i := 0; i < m.gno; i++ {
		for e := 0; e < di; e++ { // For each curvature direction
			s.ccv[i][e] = 0.0

			// Needs a neighbour on both sides in this dimension.
			if gc.C[e]-1 < 0 || gc.C[e]+1 >= gres[e] {
				continue
			}
			w0, w1 := 1.0, 1.0
			if m.ipos[e] != nil {
				w0 = math.Abs(m.ipos[e][gc.C[e]] - m.ipos[e][gc.C[e]-1])
				w1 = math.Abs(m.ipos[e][gc.C[e]+1] - m.ipos[e][gc.C[e]])
				tt := math.Sqrt(w0 * w1)
				w0 = tt / w0
				w1 = tt / w1
			}
			s.ccv[i][e] += w0 * x[i-gci[e]]
			s.ccv[i][e] += -(w0 + w1) * x[i]
			s.ccv[i][e] += w1 * x[i+gci[e]]
		}
		gc.Inc()
	}
}

// filterCCV applies a gaussian low pass filter to s.ccv along every
// dimension. stdev is the standard deviation diameter of the filter in
// input space, 1.0 being the full grid width.
func (s *Rspl) filterCCV(stdev float64) {
	var (
		di   = s.Di
		gres = s.Grid.Res
		gci  = s.Grid.Mapper.Strides
		bres = s.Grid.BRes

		fkern      = make([][]float64, di) // Center at index gres[ee]-1
		kmin, kmax = make([]int, di), make([]int, di)

		// Extended row copy, center at index bres-1, allowing +/- bres-1.
		rowBuf = make([]float64, 3*bres-2)
		rc     = bres - 1
	)

	// Compute the kernel weightings for the given stdev, by discretely
	// integrating the gaussian so that narrow kernels keep their mass.
	for ee := 0; ee < di; ee++ {
		fkern[ee] = make([]float64, 2*gres[ee]-1)
		kc := gres[ee] - 1

		k2 := 1.0 / (2.0 * math.Pow(math.Abs(stdev), twoPassOrder))
		k1 := k2 / 3.1415926

		cres := s.Grid.MRes
		if s.symDom {
			cres = float64(gres[ee])
		}
		kmin[ee] = int(math.Floor(-5.0 * stdev * (cres - 1.0)))
		kmax[ee] = int(math.Ceil(5.0 * stdev * (cres - 1.0)))

		if kmin[ee] < -gres[ee]+1 {
			kmin[ee] = -gres[ee] + 1
		} else if kmin[ee] > -1 {
			kmin[ee] = -1
		}
		if kmax[ee] > gres[ee]-1 {
			kmax[ee] = gres[ee] - 1
		} else if kmax[ee] < 1 {
			kmax[ee] = 1
		}

		tot := 0.0
		for i := kmin[ee]; i <= kmax[ee]; i++ {
			fi := float64(i)
			for k := -4; k < 5; k++ {
				oset := (fi + float64(k)/9.0) / (cres - 1.0)
				val := k1 * math.Exp(-k2*math.Pow(math.Abs(oset), twoPassOrder))
				fkern[ee][kc+i] += val
				tot += val
			}
		}
		for i := kmin[ee]; i <= kmax[ee]; i++ {
			fkern[ee][kc+i] /= tot
		}
	}

	for k := 0; k < di; k++ { // For each curvature direction
		for ee := 0; ee < di; ee++ { // For each dimension direction
			// Scan through all the other dimensions.
			tgres := make(utils.Index, 0, di-1)
			for e := 0; e < di; e++ {
				if e != ee {
					tgres = append(tgres, gres[e])
				}
			}
			gc := utils.NewGridCounter(tgres)
			for {
				// Index of the start of this row.
				ix, j := 0, 0
				for e := 0; e < di; e++ {
					if e == ee {
						continue
					}
					ix += gc.C[j] * gci[e]
					j++
				}

				// Copy the row to the temporary array, extending the edge
				// values by mirroring them.
				for i := 0; i < gres[ee]; i++ {
					rowBuf[rc+i] = s.ccv[ix+i*gci[ee]][k]
				}
				for i := kmin[ee]; i < 0; i++ {
					rowBuf[rc+i] = 2.0*rowBuf[rc] - rowBuf[rc-i]
				}
				for i := gres[ee] - 1 + kmax[ee]; i > gres[ee]-1; i-- {
					rowBuf[rc+i] = 2.0*rowBuf[rc+gres[ee]-1] - rowBuf[rc+gres[ee]-1-i]
				}

				// 1D convolution back into the grid.
				for i := 0; i < gres[ee]; i++ {
					fv := 0.0
					for j := kmin[ee]; j <= kmax[ee]; j++ {
						fv += fkern[ee][gres[ee]-1+j] * rowBuf[rc+i+j]
					}
					s.ccv[ix+i*gci[ee]][k] = fv
				}

				if di <= 1 || gc.Inc() {
					break
				}
			}
		}
	}
}

// initCCV downsamples s.ccv from the full resolution grid to this level by
// multilinear point sampling, rescaling the differences for the coarser
// grid spacing.
func (m *level) initCCV() {
	var (
		s     = m.s
		di    = s.Di
		scale = make([]float64, di)
		gc    = utils.NewGridCounter(m.res)
		we    = make([]float64, di)
		srcHI = utils.CornerOffsets(s.Grid.Mapper.Strides)
	)
	if m.ccv == nil {
		m.ccv = make([][]float64, m.gno)
		for i := range m.ccv {
			m.ccv[i] = make([]float64, di)
		}
	}

	// Grid difference values scale with the square of the node spacing.
	for e := 0; e < di; e++ {
		var rsmS, rsmD float64
		if s.symDom {
			rsmS = float64(s.Grid.Res[e])
			rsmD = float64(m.res[e])
		} else {
			rsmS = s.Grid.MRes
			rsmD = m.mres
		}
		rsmS = (rsmS - 1.0) * (rsmS - 1.0)
		rsmD = (rsmD - 1.0) * (rsmD - 1.0)
		scale[e] = rsmS / rsmD
	}

	for n := 0; n < m.gno; n++ {
		// Source grid cell containing this node, and the sub-cell weights.
		ix := 0
		for e := 0; e < di; e++ {
			t := float64(gc.C[e]) / float64(m.res[e]-1) * float64(s.Grid.Res[e]-1)
			mi := int(math.Floor(t))
			if mi < 0 {
				mi = 0
			} else if mi >= s.Grid.Res[e]-1 {
				mi = s.Grid.Res[e] - 2
			}
			ix += mi * s.Grid.Mapper.Strides[e]
			we[e] = t - float64(mi)
		}
		gw := utils.CornerWeights(we)

		for e := 0; e < di; e++ {
			m.ccv[n][e] = 0.0
		}
		for i, off := range srcHI {
			for e := 0; e < di; e++ {
				m.ccv[n][e] += gw[i] * s.ccv[ix+off][e]
			}
		}
		for e := 0; e < di; e++ {
			m.ccv[n][e] *= scale[e]
		}
		gc.Inc()
	}
}
