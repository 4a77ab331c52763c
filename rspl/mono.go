package rspl

import (
	"github.com/gridfit/rspl/utils"
)

const monoEps = 1e-10

// IsMono reports whether every output channel of the grid is monotonic
// along every input axis, each channel/axis pair being allowed its own
// direction. Differences within monoEps count as flat.
func IsMono(g *Grid) bool {
	for f := 0; f < g.Fdi; f++ {
		for e := 0; e < g.Di; e++ {
			var (
				stride   = g.Mapper.Strides[e]
				inc, dec bool
				gc       = utils.NewGridCounter(g.Res)
			)
			for i := 0; i < g.NodeCount(); i++ {
				if gc.C[e]+1 < g.Res[e] {
					d := g.Values[(i+stride)*g.Fdi+f] - g.Values[i*g.Fdi+f]
					if d > monoEps {
						inc = true
					} else if d < -monoEps {
						dec = true
					}
					if inc && dec {
						return false
					}
				}
				gc.Inc()
			}
		}
	}
	return true
}
