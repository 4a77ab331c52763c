package rspl

import (
	"fmt"
)

// fitChannels runs the multigrid fit for each output channel in turn,
// working up the resolution ladder and carrying each coarse solution into
// the next level as its starting point. The optional outer passes wrap the
// ladder: two pass smoothing refits against filtered curvature targets,
// extra fitting refits against error corrected data targets.
func (s *Rspl) fitChannels() error {
	var ta cjScratch

	if s.Verbose && s.zf > 0 {
		fmt.Println("Doing extra fitting")
	}

	for f := 0; f < s.Fdi; f++ {
		var (
			m    *level
			prev *level
			err  error
		)

		for donezf := 0; donezf <= s.zf; donezf++ {
			npass := 0
			if s.tpsm {
				npass = 1
			}
			for s.tpsm2 = 0; s.tpsm2 <= npass; s.tpsm2++ {

				for nn := 0; nn < len(s.ladder); nn++ {
					m, err = newLevel(s, s.ladder[nn], f)
					if err != nil {
						return err
					}
					if s.tpsm && s.tpsm2 != 0 {
						m.initCCV()
					}
					m.assemble(true)

					if nn == 0 {
						m.seedAverage()
					} else {
						m.seedFrom(prev)
					}
					m.solve(&ta, s.tolerance)
					prev = m
				}

				if s.tpsm && s.tpsm2 == 0 {
					// End of the first pass: capture and smooth the
					// curvature of the full resolution solution.
					m.compCCV()

					var fstdev float64
					if s.smooth >= 0.0 {
						fstdev = twoPassStdevScale * s.smooth
					} else { // Direct filter width, used for calibration
						fstdev = -s.smooth
					}
					s.filterCCV(fstdev)
				}
			}
			if s.zf > 0 {
				m.compExtraFitCorr()
			}
		}

		s.tpsm2 = 0
		s.ccv = nil

		// Transfer the solution into the grid channel.
		for i := 0; i < s.Grid.NodeCount(); i++ {
			s.Grid.Values[i*s.Fdi+f] = m.sys.X[i]
		}
	}

	if s.Verbose {
		fmt.Println()
	}
	return nil
}
