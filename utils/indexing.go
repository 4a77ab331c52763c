package utils

import "fmt"

type Index []int

func NewIndex(N int) (I Index) {
	return make(Index, N)
}

func NewFromInts(vals []int) (I Index) {
	I = make(Index, len(vals))
	copy(I, vals)
	return
}

func (I Index) Clone() (r Index) {
	r = make(Index, len(I))
	copy(r, I)
	return
}

func (I Index) Max() (m int) {
	for _, val := range I {
		if val > m {
			m = val
		}
	}
	return
}

func (I Index) Product() (p int) {
	p = 1
	for _, val := range I {
		p *= val
	}
	return
}

// IndexMapper converts between multi-dimensional grid coordinates and the
// flattened node index. Strides[0] is always 1, so nodes adjacent along
// dimension 0 are adjacent in the flat array.
type IndexMapper struct {
	Res     Index // Nodes per dimension
	Strides Index // Node index increment for a step along each dimension
	Len     int   // Total node count, product of Res
}

func NewIndexMapper(res []int) (im IndexMapper) {
	var (
		di = len(res)
	)
	im = IndexMapper{
		Res:     NewFromInts(res),
		Strides: NewIndex(di),
		Len:     1,
	}
	for e := 0; e < di; e++ {
		if res[e] < 1 {
			panic(fmt.Errorf("indexmapper: resolution[%d] = %d must be >= 1", e, res[e]))
		}
		im.Len *= res[e]
	}
	im.Strides[0] = 1
	for e := 1; e < di; e++ {
		im.Strides[e] = im.Strides[e-1] * res[e-1]
	}
	return
}

// Flatten returns the flat node index for coordinate coord, panicking if any
// coordinate lies outside the grid.
func (im IndexMapper) Flatten(coord []int) (ix int) {
	for e, c := range coord {
		if c < 0 || c >= im.Res[e] {
			panic(fmt.Errorf("indexmapper: coordinate[%d] = %d outside [0,%d)", e, c, im.Res[e]))
		}
		ix += c * im.Strides[e]
	}
	return
}

// Unflatten fills coord with the multi-dimensional coordinate of flat node
// index ix.
func (im IndexMapper) Unflatten(ix int, coord []int) {
	if ix < 0 || ix >= im.Len {
		panic(fmt.Errorf("indexmapper: index %d outside [0,%d)", ix, im.Len))
	}
	for e := 0; e < len(im.Res); e++ {
		coord[e] = ix % im.Res[e]
		ix /= im.Res[e]
	}
}
