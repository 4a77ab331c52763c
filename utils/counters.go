package utils

// GridCounter is an odometer over grid coordinates, stepping dimension 0
// fastest so that the step sequence matches flat node index order.
type GridCounter struct {
	Res Index
	C   Index // Current coordinate
}

func NewGridCounter(res []int) (gc *GridCounter) {
	return &GridCounter{
		Res: NewFromInts(res),
		C:   NewIndex(len(res)),
	}
}

// Inc advances to the next coordinate. It reports whether the counter
// wrapped back to all zeros past the last coordinate.
func (gc *GridCounter) Inc() (wrapped bool) {
	for e := 0; e < len(gc.Res); e++ {
		gc.C[e]++
		if gc.C[e] < gc.Res[e] {
			return false
		}
		gc.C[e] = 0
	}
	return true
}

func (gc *GridCounter) Reset() {
	for e := range gc.C {
		gc.C[e] = 0
	}
}

// OffsetCounter is an odometer over a cube of signed coordinate offsets,
// [low,high] in every dimension, dimension 0 fastest.
type OffsetCounter struct {
	Low, High int
	C         Index
	done      bool
}

func NewOffsetCounter(di, low, high int) (oc *OffsetCounter) {
	oc = &OffsetCounter{
		Low:  low,
		High: high,
		C:    NewIndex(di),
	}
	for e := range oc.C {
		oc.C[e] = low
	}
	return
}

func (oc *OffsetCounter) Done() bool {
	return oc.done
}

func (oc *OffsetCounter) Inc() {
	for e := 0; e < len(oc.C); e++ {
		oc.C[e]++
		if oc.C[e] <= oc.High {
			return
		}
		oc.C[e] = oc.Low
	}
	oc.done = true
}

// CornerOffsets returns the flat index offset of each of the 2^di corners of
// a grid cell, given the per-dimension strides. Corner j differs from the
// cell base by a step along each dimension whose bit is set in j, base
// corner first.
func CornerOffsets(strides Index) (hi Index) {
	var (
		di = len(strides)
	)
	hi = NewIndex(1 << di)
	for e, g := 0, 1; e < di; g, e = g*2, e+1 {
		for i := 0; i < g; i++ {
			hi[g+i] = hi[i] + strides[e]
		}
	}
	return
}

// CornerWeights returns the 2^di multilinear interpolation weights for a
// point at fractional position we within a cell, ordered to match
// CornerOffsets. The weights sum to 1.
func CornerWeights(we []float64) (w []float64) {
	var (
		di = len(we)
	)
	w = make([]float64, 1<<di)
	w[0] = 1.0
	for e, g := 0, 1; e < di; g, e = g*2, e+1 {
		for i := 0; i < g; i++ {
			w[g+i] = w[i] * we[e]
			w[i] *= 1.0 - we[e]
		}
	}
	return
}
