package rspl

import (
	"fmt"
	"math"

	"github.com/gridfit/rspl/utils"
)

// level holds the transient state for solving one output channel at one
// multigrid resolution. It borrows the owning Rspl read-only for the
// duration of one resolution step; at most two levels (current and the one
// being replaced) are live at a time.
type level struct {
	s *Rspl
	f int // Output channel being solved

	wdfw float64   // Weak default function weight per grid node
	cw   []float64 // Curvature weight factor per axis

	// Grid snapshot at this level's resolution.
	res    utils.Index
	bres   int
	mres   float64 // Geometric mean of res
	gno    int
	low    []float64
	high   []float64
	width  []float64
	ipos   [][]float64 // Downsampled node positions, per non-nil axis
	mapper utils.IndexMapper
	hi     utils.Index // Flat offsets of the 2^di cell corners

	d []pointMeta // Per data point interpolation metadata

	sys *sparseSystem
	ccv [][]float64 // Downsampled curvature compensation, second pass only
}

// pointMeta is a data point's multilinear interpolation footprint on this
// level: the flat index of its cell's base node and a weight per corner.
type pointMeta struct {
	b int
	w []float64
}

func newLevel(s *Rspl, gres utils.Index, f int) (m *level, err error) {
	var (
		di  = s.Di
		dno = len(s.points)
	)
	m = &level{
		s:      s,
		f:      f,
		cw:     make([]float64, di),
		res:    gres.Clone(),
		low:    make([]float64, di),
		high:   make([]float64, di),
		width:  make([]float64, di),
		ipos:   make([][]float64, di),
		mapper: utils.NewIndexMapper(gres),
	}
	m.gno = m.mapper.Len
	m.hi = utils.CornerOffsets(m.mapper.Strides)

	m.mres = 1.0
	for e := 0; e < di; e++ {
		m.low[e] = s.Grid.Low[e]
		m.high[e] = s.Grid.High[e]
		m.width[e] = (m.high[e] - m.low[e]) / float64(gres[e]-1)
		m.mres *= float64(gres[e])
		if gres[e] > m.bres {
			m.bres = gres[e]
		}
	}
	m.mres = math.Pow(m.mres, 1.0/float64(di))

	// Number of grid cells contributing to the smoothness error.
	nigc := 1
	for e := 0; e < di; e++ {
		if n := gres[e] - 2; n > 0 {
			nigc *= n
		}
	}

	m.downsampleIPos()

	// Curvature weighting matching this resolution, keeping the ratio of
	// summed squared smoothness error to summed squared data error constant
	// across intermediate resolutions.
	for e := 0; e < di; e++ {
		var rsm float64
		if s.symDom {
			rsm = float64(m.res[e])
		} else {
			rsm = m.mres
		}
		// ^4: resolution squared, applied to an error that is squared.
		rsm = math.Pow(rsm-1.0, 4.0)
		rsm /= float64(nigc)

		if s.tpsm {
			lsm := -6.0
			if s.tpsm2 != 0 { // Second pass uses 100x the smoothness
				lsm += 2.0
			}
			m.cw[e] = math.Pow(10.0, lsm) * rsm
		} else if s.smooth >= 0.0 {
			m.cw[e] = s.smooth * optSmooth(di, dno, s.avgDev[f]) * rsm
		} else { // Raw override, used to calibrate the table
			m.cw[e] = -s.smooth * rsm
		}
	}

	// Keep the aggregate effect of the weak default function constant with
	// grid resolution and dimensionality.
	m.wdfw = s.weak * weakNominal / (float64(m.gno) * float64(di))

	// Locate each data point's enclosing cell and corner weights,
	// N-linear interpolation.
	m.d = make([]pointMeta, dno)
	we := make([]float64, di)
	for n := 0; n < dno; n++ {
		ix := 0
		for e := 0; e < di; e++ {
			p := s.points[n].p[e]
			if p < m.low[e] || p > m.high[e] {
				return nil, fmt.Errorf("rspl: data point %d outside grid %v <= %v <= %v",
					n, m.low[e], p, m.high[e])
			}
			t := (p - m.low[e]) / m.width[e]
			mi := int(math.Floor(t))
			if mi < 0 {
				mi = 0
			} else if mi >= gres[e]-1 { // The outer node can't be a cell base
				mi = gres[e] - 2
			}
			ix += mi * m.mapper.Strides[e]
			we[e] = t - float64(mi)
		}
		m.d[n].b = ix
		m.d[n].w = utils.CornerWeights(we)
	}
	return
}

// downsampleIPos linearly interpolates the full-resolution node position
// arrays down to this level's resolution.
func (m *level) downsampleIPos() {
	var (
		s = m.s
	)
	for e := 0; e < s.Di; e++ {
		if s.Grid.IPos[e] == nil {
			continue
		}
		src := s.Grid.IPos[e]
		ent1 := float64(s.Grid.Res[e] - 1)
		ent2 := float64(s.Grid.Res[e] - 2)
		m.ipos[e] = make([]float64, m.res[e])
		for n := 0; n < m.res[e]; n++ {
			in := float64(n) / float64(m.res[e]-1)
			val := in * ent1
			if val < 0.0 {
				val = 0.0
			} else if val > ent1 {
				val = ent1
			}
			ix := int(math.Floor(val))
			if float64(ix) > ent2 {
				ix = int(ent2)
			}
			w := val - float64(ix)
			m.ipos[e][n] = src[ix] + w*(src[ix+1]-src[ix])
		}
	}
}

// seedAverage starts the coarsest level's solution at the mean data value
// for the channel.
func (m *level) seedAverage() {
	var (
		va = m.s.va[m.f]
	)
	for i := range m.sys.X {
		m.sys.X[i] = va
	}
}

// seedFrom initialises this level's solution by multilinear interpolation
// of the previous, coarser level's solution, the nested-iteration warm
// start of full multigrid.
func (m *level) seedFrom(prev *level) {
	var (
		di = m.s.Di
		we = make([]float64, di)
		gc = utils.NewGridCounter(m.res)
	)
	for n := 0; n < m.gno; n++ {
		// The enclosing cell of this node's position in the coarser grid.
		base := 0
		for e := 0; e < di; e++ {
			t := float64(gc.C[e]) / float64(m.res[e]-1) * float64(prev.res[e]-1)
			mi := int(math.Floor(t))
			if mi < 0 {
				mi = 0
			} else if mi >= prev.res[e]-1 {
				mi = prev.res[e] - 2
			}
			base += mi * prev.mapper.Strides[e]
			we[e] = t - float64(mi)
		}
		gw := utils.CornerWeights(we)
		sm := 0.0
		for j, w := range gw {
			sm += w * prev.sys.X[base+prev.hi[j]]
		}
		m.sys.X[n] = sm
		gc.Inc()
	}
}
