// Package rspl fits a regularized spline - a smooth function sampled on a
// regular grid - to a cloud of scattered, possibly noisy data points. The
// fit balances fidelity to the data against a curvature (smoothness) energy,
// solved as a sparse symmetric positive-definite system over the grid nodes
// using multigrid-scheduled relaxation.
package rspl

import (
	"fmt"
	"math"

	"github.com/gridfit/rspl/utils"
	"gonum.org/v1/gonum/stat"
)

// This is a restricted size engine.
const (
	MaxInDim  = 4  // Maximum input (position) dimensionality
	MaxOutDim = 10 // Maximum output (value) dimensionality
)

// Release tuning set.
const (
	DefaultTolerance  = 1e-6  // Residual target for the iterative solver
	tolImprovement    = 0.998 // Minimum per-iteration improvement to continue
	gridRatio         = 2.0   // Multigrid resolution ratio
	startRes          = 4     // Coarsest multigrid resolution
	conjTolExtra      = 1.0   // Extra tolerance factor on line conjugate solves
	maxRelaxBatch     = 16    // Maximum relaxation sweeps per convergence check
	maxOuterIters     = 500   // Hard cap on outer solver iterations
	weakNominal       = 0.1   // Weak default function nominal effect
	defaultAvgDev     = 0.005 // Default average deviation proportion
	defaultAverage    = 0.5   // Grid value used when there is no data
	twoPassOrder      = 2.0   // Curvature filter order, 2 = Gaussian
	twoPassStdevScale = 0.05  // Filter stdev per unit smoothing factor
)

// Point is one scattered data sample: a position of length di and a target
// value of length fdi. Weight scales the sample's pull on the fit; zero
// means the default weight of 1. Weights, when non-nil, supplies a separate
// weight per output channel and overrides Weight.
type Point struct {
	Pos     []float64
	Val     []float64
	Weight  float64
	Weights []float64
}

// WeakFunc supplies a fallback "weak default" value at an arbitrary
// position. When set, every grid node is softly pulled toward the
// function's value there, so the fit falls back to it where data is sparse.
type WeakFunc func(pos, out []float64)

// Options control a Fit call. The zero value selects the defaults noted on
// each field.
type Options struct {
	// GridLow, GridHigh are the domain bounds per axis, expanded as needed
	// to enclose every data position. Nil means [0,1] per axis.
	GridLow, GridHigh []float64

	// ValueLow, ValueHigh normalize the output value range per channel,
	// expanded to enclose observed values. Nil means [0,1] per channel.
	ValueLow, ValueHigh []float64

	// Smooth scales the smoothing: 0 selects the empirical table value,
	// positive multiplies it, negative overrides it with the raw magnitude
	// (typically 1e-7 .. 1e-1, used for calibration).
	Smooth float64

	// AvgDev is the average deviation of the data values as a proportion of
	// the value range, per channel. Nil means 0.005 per channel.
	// (For normally distributed noise the average deviation is about 0.564
	// times the standard deviation.)
	AvgDev []float64

	// IPos optionally gives relative node positions per axis (gres entries
	// per non-nil axis), scaling the smoothness criteria for non-uniform
	// grid spacing.
	IPos [][]float64

	// Weak weights the weak default function, nominal 1.0. Ignored unless
	// WeakFunc is set.
	Weak     float64
	WeakFunc WeakFunc

	// TwoPassSmoothing re-runs the fit against a Gaussian-filtered copy of
	// the first pass's curvature field.
	TwoPassSmoothing bool

	// ExtraFitPasses is the number of residual bias-correction passes run
	// after the first complete solve (typically 0-2).
	ExtraFitPasses int

	// SymDomain treats the grid resolution as a sampling rate rather than a
	// measure of axis scale when weighting smoothness.
	SymDomain bool

	// Tolerance is the solver residual target; 0 means DefaultTolerance.
	Tolerance float64

	// LineCGIters is the number of initial outer iterations that use line
	// conjugate-gradient sweeps before falling back to pure relaxation.
	LineCGIters int

	Verbose bool
}

// Grid is the fitted output: an fdi-vector per node over the full
// resolution product, flattened with axis 0 varying fastest.
type Grid struct {
	Di, Fdi int
	Res     utils.Index
	Low     []float64
	High    []float64
	Width   []float64   // Cell width per axis, (high-low)/(res-1)
	IPos    [][]float64 // Optional relative node positions per axis
	Mapper  utils.IndexMapper
	Values  []float64 // NodeCount() * Fdi
	BRes    int       // Biggest per-axis resolution
	BRix    int       // and its axis
	MRes    float64   // Geometric mean resolution
}

func (g *Grid) NodeCount() int { return g.Mapper.Len }

// Value returns the fdi-vector at flat node index i, aliasing the grid
// storage.
func (g *Grid) Value(i int) []float64 {
	return g.Values[i*g.Fdi : (i+1)*g.Fdi]
}

// ValueAt returns the fdi-vector at grid coordinate coord.
func (g *Grid) ValueAt(coord []int) []float64 {
	return g.Value(g.Mapper.Flatten(coord))
}

// Rspl holds one regularized spline fit. Create with New, populate with
// Fit, then read the Grid.
type Rspl struct {
	Di, Fdi int
	Grid    Grid
	Verbose bool

	smooth      float64
	avgDev      []float64
	weak        float64
	weakFn      WeakFunc
	symDom      bool
	tolerance   float64
	lineCGIters int
	tpsm        bool // Two pass smoothing enabled
	tpsm2       int  // Two pass smoothing pass, 0 or 1
	zf          int  // Extra fit passes

	points []dataPoint
	vl     []float64 // Value range low per channel
	vw     []float64 // Value range width per channel
	va     []float64 // Average data value per channel

	ladder []utils.Index // Multigrid resolution schedule, coarse to fine
	ccv    [][]float64   // [node][axis] curvature compensation, two pass only
}

// dataPoint carries a sample through the fit. cv is the corrected target
// mutated by the extra fit passes; k is the per-channel weight.
type dataPoint struct {
	p  []float64
	v  []float64
	cv []float64
	k  []float64
}

func New(di, fdi int) (s *Rspl, err error) {
	if di < 1 || di > MaxInDim {
		return nil, fmt.Errorf("rspl: can't handle di = %d (max %d)", di, MaxInDim)
	}
	if fdi < 1 || fdi > MaxOutDim {
		return nil, fmt.Errorf("rspl: can't handle fdi = %d (max %d)", fdi, MaxOutDim)
	}
	s = &Rspl{
		Di:  di,
		Fdi: fdi,
	}
	return
}

// Fit solves for the grid values from the scattered points at the given
// per-axis resolution. It returns nonMono = true if the resulting grid is
// not monotonic, an advisory condition the caller decides how to treat.
func (s *Rspl) Fit(points []Point, gres []int, opts Options) (nonMono bool, err error) {
	var (
		di, fdi = s.Di, s.Fdi
	)
	if len(gres) != di {
		return false, fmt.Errorf("rspl: got %d grid resolutions for di = %d", len(gres), di)
	}
	for e := 0; e < di; e++ {
		if gres[e] < 2 {
			return false, fmt.Errorf("rspl: grid res[%d] = %d must be >= 2", e, gres[e])
		}
	}

	s.Verbose = opts.Verbose
	s.tpsm = opts.TwoPassSmoothing
	s.zf = opts.ExtraFitPasses
	s.tpsm2 = 0
	s.symDom = opts.SymDomain
	s.smooth = opts.Smooth
	if s.smooth == 0 {
		s.smooth = 1.0
	}
	s.avgDev = make([]float64, fdi)
	for f := 0; f < fdi; f++ {
		s.avgDev[f] = defaultAvgDev
		if opts.AvgDev != nil {
			s.avgDev[f] = opts.AvgDev[f]
		}
	}
	s.weak = opts.Weak
	if s.weak == 0 {
		s.weak = 1.0
	}
	s.weakFn = opts.WeakFunc
	s.tolerance = opts.Tolerance
	if s.tolerance == 0 {
		s.tolerance = DefaultTolerance
	}
	s.lineCGIters = opts.LineCGIters

	if err = s.initGrid(points, gres, &opts); err != nil {
		return
	}

	if len(points) == 0 {
		// Nothing to fit: the whole grid takes the default average value.
		for i := range s.Grid.Values {
			s.Grid.Values[i] = s.va[i%fdi]
		}
		return !IsMono(&s.Grid), nil
	}

	if s.ladder, err = resolutionLadder(s.Grid.Res); err != nil {
		return
	}

	s.addPoints(points)

	if err = s.fitChannels(); err != nil {
		return
	}
	return !IsMono(&s.Grid), nil
}

// initGrid records bounds and value normalization, expanding both to
// enclose the data, and allocates the node storage.
func (s *Rspl) initGrid(points []Point, gres []int, opts *Options) (err error) {
	var (
		di, fdi = s.Di, s.Fdi
		g       = &s.Grid
	)
	g.Di, g.Fdi = di, fdi
	g.Res = utils.NewFromInts(gres)
	g.Low = make([]float64, di)
	g.High = make([]float64, di)
	g.Width = make([]float64, di)
	g.IPos = make([][]float64, di)
	g.BRes, g.BRix = 0, 0
	g.MRes = 1.0
	for e := 0; e < di; e++ {
		g.Low[e], g.High[e] = 0.0, 1.0
		if opts.GridLow != nil {
			g.Low[e] = opts.GridLow[e]
		}
		if opts.GridHigh != nil {
			g.High[e] = opts.GridHigh[e]
		}
		g.MRes *= float64(gres[e])
		if gres[e] > g.BRes {
			g.BRes = gres[e]
			g.BRix = e
		}
	}
	g.MRes = math.Pow(g.MRes, 1.0/float64(di))

	s.vl = make([]float64, fdi)
	s.vw = make([]float64, fdi)
	s.va = make([]float64, fdi)
	for f := 0; f < fdi; f++ {
		s.vl[f], s.vw[f] = 0.0, 1.0
		if opts.ValueLow != nil {
			s.vl[f] = opts.ValueLow[f]
		}
		if opts.ValueHigh != nil {
			s.vw[f] = opts.ValueHigh[f]
		}
	}

	// Expand the grid and value ranges to enclose the data, and compute the
	// average value per channel.
	vals := make([]float64, len(points))
	for f := 0; f < fdi; f++ {
		s.va[f] = defaultAverage
	}
	for n, dp := range points {
		if len(dp.Pos) != di || len(dp.Val) != fdi {
			return fmt.Errorf("rspl: point %d has pos/val lengths %d/%d, want %d/%d",
				n, len(dp.Pos), len(dp.Val), di, fdi)
		}
		for e := 0; e < di; e++ {
			if dp.Pos[e] < g.Low[e] {
				g.Low[e] = dp.Pos[e]
			}
			if dp.Pos[e] > g.High[e] {
				g.High[e] = dp.Pos[e]
			}
		}
		for f := 0; f < fdi; f++ {
			if dp.Val[f] < s.vl[f] {
				s.vl[f] = dp.Val[f]
			}
			if dp.Val[f] > s.vw[f] {
				s.vw[f] = dp.Val[f]
			}
		}
	}
	if len(points) > 0 {
		for f := 0; f < fdi; f++ {
			for n := range points {
				vals[n] = points[n].Val[f]
			}
			s.va[f] = stat.Mean(vals, nil)
		}
	}

	for e := 0; e < di; e++ {
		g.Width[e] = (g.High[e] - g.Low[e]) / float64(g.Res[e]-1)
	}
	// Convert value low/high to low/width.
	for f := 0; f < fdi; f++ {
		s.vw[f] -= s.vl[f]
	}

	// Relative node position information for non-uniform smoothness.
	if opts.IPos != nil {
		for e := 0; e < di; e++ {
			if opts.IPos[e] == nil {
				continue
			}
			if len(opts.IPos[e]) != g.Res[e] {
				return fmt.Errorf("rspl: ipos[%d] has %d entries, want %d",
					e, len(opts.IPos[e]), g.Res[e])
			}
			g.IPos[e] = make([]float64, g.Res[e])
			copy(g.IPos[e], opts.IPos[e])
			for i := 1; i < g.Res[e]; i++ {
				if math.Abs(g.IPos[e][i]-g.IPos[e][i-1]) < 1e-12 {
					return fmt.Errorf("rspl: ipos[%d][%d] to ipos[%d][%d] is nearly zero",
						e, i, e, i-1)
				}
			}
		}
	}

	g.Mapper = utils.NewIndexMapper(gres)
	g.Values = make([]float64, g.Mapper.Len*fdi)
	return
}

// addPoints copies the samples into the fit's working form, normalizing the
// weight variants into a per-channel weight and seeding the corrected
// target at the raw target.
func (s *Rspl) addPoints(points []Point) {
	var (
		di, fdi = s.Di, s.Fdi
	)
	s.points = make([]dataPoint, len(points))
	for n, dp := range points {
		a := &s.points[n]
		a.p = make([]float64, di)
		copy(a.p, dp.Pos)
		a.v = make([]float64, fdi)
		copy(a.v, dp.Val)
		a.cv = make([]float64, fdi)
		copy(a.cv, dp.Val)
		a.k = make([]float64, fdi)
		for f := 0; f < fdi; f++ {
			switch {
			case dp.Weights != nil:
				a.k[f] = dp.Weights[f]
			case dp.Weight != 0:
				a.k[f] = dp.Weight
			default:
				a.k[f] = 1.0
			}
		}
	}
}
