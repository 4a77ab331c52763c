package rspl

import "math"

// In theory the smoothness should grow with the square of the overall
// average sample deviation, but in practice other factors come into play,
// so a baseline smoothing factor is looked up from an empirical table
// indexed by dimensionality, a normalised sample count and the average
// deviation, interpolated ratiometrically (log space) in both directions.
// The table was built by fitting representative device profiles with
// varying point counts and added noise and locating the optimal factor for
// each combination.

// Sample-count axis of the smoothing table, indexed by the di'th root of
// the data point count, per dimensionality 1..4.
var smoothNCAxis = [4][]float64{
	{5.0, 10.0, 20.0, 50.0, 100.0, 200.0},
	{5.0, 10.0, 20.0, 50.0, 100.0, 200.0},
	{2.92, 3.68, 4.22, 5.0, 6.3, 7.94, 10.0, 12.6, 20.0, 50.0},
	{2.66, 3.16, 3.76, 4.61, 5.0, 5.48, 6.51, 7.75, 10.0, 20.0, 31.62},
}

// Average-deviation axis of the smoothing table, per dimensionality 1..4.
var smoothADAxis = [4][]float64{
	{0.0001, 0.0025, 0.005, 0.0125, 0.025, 0.05},
	{0.0001, 0.0025, 0.005, 0.0125, 0.025, 0.05},
	{0.0001, 0.0025, 0.005, 0.0125, 0.025, 0.05},
	{0.0001, 0.0025, 0.005, 0.0075, 0.0125, 0.025, 0.05},
}

// Log10 of the baseline smoothness, [di-1][sample count][avg deviation].
var smoothTable = [4][][]float64{
	// 1D:
	{
		{-5.0, -5.3, -5.2, -4.4, -3.5, -0.8},
		{-6.4, -5.6, -5.1, -4.5, -4.0, -3.6},
		{-6.4, -5.9, -5.5, -4.6, -3.9, -3.3},
		{-6.8, -6.0, -5.6, -4.9, -4.4, -3.7},
		{-6.9, -6.2, -5.6, -4.9, -4.3, -3.5},
		{-6.9, -5.9, -5.5, -5.1, -4.7, -4.4},
	},
	// 2D:
	{
		{-5.0, -5.0, -5.0, -4.8, -4.2, -3.2},
		{-5.1, -4.9, -4.6, -3.9, -3.3, -2.6},
		{-5.9, -5.0, -4.6, -4.1, -3.6, -3.1},
		{-6.7, -5.1, -4.7, -4.2, -3.7, -3.1},
		{-6.8, -5.0, -4.6, -4.0, -3.6, -3.0},
		{-6.8, -4.9, -4.4, -3.9, -3.5, -3.1},
	},
	// 3D:
	{
		{-5.2, -5.0, -5.0, -4.9, -3.6, -2.2},
		{-5.5, -5.6, -5.6, -5.2, -4.4, -2.4},
		{-4.7, -4.8, -5.7, -5.9, -5.9, -2.3},
		{-4.1, -4.1, -5.0, -3.8, -3.4, -2.6},
		{-4.8, -4.6, -4.6, -4.1, -3.8, -3.4},
		{-4.7, -4.7, -4.7, -3.8, -3.3, -2.9},
		{-4.7, -4.8, -4.6, -3.9, -3.4, -3.0},
		{-5.2, -4.7, -4.4, -4.0, -3.4, -2.9},
		{-5.5, -5.0, -4.3, -3.6, -3.1, -2.8},
		{-5.1, -4.7, -4.3, -3.8, -3.3, -2.8},
	},
	// 4D:
	{
		{-5.5, -5.6, -4.9, -4.8, -4.5, -2.8, -3.1},
		{-4.3, -4.2, -4.0, -3.6, -3.2, -2.8, -2.6},
		{-4.3, -4.2, -4.0, -3.8, -3.2, -2.8, -1.5},
		{-4.5, -3.9, -3.5, -3.2, -3.0, -2.4, -1.9},
		{-4.5, -4.3, -3.7, -3.3, -3.0, -2.3, -1.9},
		{-4.7, -4.5, -4.3, -3.9, -3.2, -2.0, -0.9},
		{-4.3, -4.3, -4.1, -3.9, -3.1, -2.3, -1.6},
		{-4.5, -4.4, -3.8, -3.5, -3.1, -2.4, -1.6},
		{-4.9, -4.3, -3.6, -3.2, -2.8, -2.2, -1.6},
		{-4.8, -3.5, -3.0, -2.8, -2.5, -2.2, -1.9},
		{-5.1, -3.7, -3.0, -2.7, -2.3, -1.9, -1.5},
	},
}

// logAxisIndex locates value v on a ratiometric axis, returning the lower
// index and the weight of that index (1 - weight of index+1), clamping
// beyond each end.
func logAxisIndex(axis []float64, v float64) (ix int, w float64) {
	var (
		n = len(axis)
	)
	switch {
	case v <= axis[0]:
		return 0, 1.0
	case v >= axis[n-1]:
		return n - 2, 0.0
	}
	for ix = 0; ix < n-1; ix++ {
		if v >= axis[ix] && v <= axis[ix+1] {
			break
		}
	}
	w = 1.0 - (math.Log(v)-math.Log(axis[ix]))/(math.Log(axis[ix+1])-math.Log(axis[ix]))
	return
}

// optSmooth returns the baseline smoothing factor for the given
// dimensionality, data point count and average sample deviation. The
// caller's smoothing factor multiplies this value.
func optSmooth(di, ndp int, ad float64) (sm float64) {
	if di < 1 {
		di = 1
	}
	nc := math.Pow(float64(ndp), 1.0/float64(di)) // Normalised sample count
	if di > MaxInDim {
		di = MaxInDim
	}
	di-- // Table row 0..3

	ncix, ncw := logAxisIndex(smoothNCAxis[di], nc)
	adix, adw := logAxisIndex(smoothADAxis[di], ad)

	lsm := smoothTable[di][ncix][adix] * ncw * adw
	lsm += smoothTable[di][ncix][adix+1] * ncw * (1.0 - adw)
	lsm += smoothTable[di][ncix+1][adix] * (1.0 - ncw) * adw
	lsm += smoothTable[di][ncix+1][adix+1] * (1.0 - ncw) * (1.0 - adw)

	return math.Pow(10.0, lsm)
}
