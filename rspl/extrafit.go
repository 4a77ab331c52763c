package rspl

// compExtraFitCorr measures the residual error of the fit at each data
// point and folds it into the point's target value, so that the next fit
// pass over-corrects toward the true value. This trades some smoothness
// for a closer fit, typically reaching most of the way to the data in two
// or three passes.
func (m *level) compExtraFitCorr() {
	var (
		s = m.s
		f = m.f
		x = m.sys.X
	)
	for n := range s.points {
		d := &s.points[n]
		bp := m.d[n].b

		// Interpolated grid value at the data point.
		val := 0.0
		for j, off := range m.hi {
			val += m.d[n].w[j] * x[bp+off]
		}

		err := d.v[f] - val
		d.cv[f] += err
	}
}
