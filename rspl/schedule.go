package rspl

import (
	"fmt"
	"math"

	"github.com/gridfit/rspl/utils"
)

// resolutionLadder computes the coarse-to-fine multigrid schedule for a
// target per-axis resolution. Levels start at startRes and grow by roughly
// gridRatio per step, the ratio adjusted so an integral number of steps
// lands exactly on the biggest target resolution; axes whose target is
// within one node of the level resolution snap to their target. The last
// entry always equals the target exactly on every axis.
func resolutionLadder(gres utils.Index) (ladder []utils.Index, err error) {
	var (
		di     = len(gres)
		bres   = gres.Max()
		niters int
		ratio  = gridRatio
	)
	if float64(bres)/float64(startRes) <= ratio {
		niters = 2
		ratio = float64(bres) / float64(startRes)
	} else {
		niters = int((math.Log(float64(bres))-math.Log(float64(startRes)))/math.Log(ratio) + 0.5)
		ratio = math.Exp((math.Log(float64(bres)) - math.Log(float64(startRes))) / float64(niters))
		niters++
	}

	ladder = make([]utils.Index, niters)
	res := float64(startRes)
	for i := 0; i < niters; i++ {
		ires := int(res + 0.5)
		ladder[i] = utils.NewIndex(di)
		for e := 0; e < di; e++ {
			if ires+1 >= gres[e] { // Close enough: snap to the target
				ladder[i][e] = gres[e]
			} else {
				ladder[i][e] = ires
			}
		}
		res *= ratio
	}

	for e := 0; e < di; e++ {
		if ladder[niters-1][e] != gres[e] {
			return nil, fmt.Errorf("rspl: internal error, final res %d != intended res %d",
				ladder[niters-1][e], gres[e])
		}
	}
	return
}
