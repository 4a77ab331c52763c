package FitParameters

import (
	"fmt"

	"github.com/ghodss/yaml"
)

// Parameters obtained from the YAML fit parameter file
type FitParameters struct {
	Title            string    `yaml:"Title"`
	InDim            int       `yaml:"InDim"`
	OutDim           int       `yaml:"OutDim"`
	GridRes          []int     `yaml:"GridRes"` // One entry, or one per input dimension
	Smooth           float64   `yaml:"Smooth"`
	AvgDev           []float64 `yaml:"AvgDev"` // One entry per output dimension, optional
	GridLow          []float64 `yaml:"GridLow"`
	GridHigh         []float64 `yaml:"GridHigh"`
	ValueLow         []float64 `yaml:"ValueLow"`
	ValueHigh        []float64 `yaml:"ValueHigh"`
	TwoPassSmoothing bool      `yaml:"TwoPassSmoothing"`
	ExtraFitPasses   int       `yaml:"ExtraFitPasses"`
	SymDomain        bool      `yaml:"SymDomain"`
	Tolerance        float64   `yaml:"Tolerance"`
	LineCGIters      int       `yaml:"LineCGIters"`
}

func (fp *FitParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, fp)
}

// Validate fills defaults and checks the dimensional consistency of the
// parameter file.
func (fp *FitParameters) Validate() error {
	if fp.InDim < 1 {
		return fmt.Errorf("InDim must be at least 1, got %d", fp.InDim)
	}
	if fp.OutDim < 1 {
		return fmt.Errorf("OutDim must be at least 1, got %d", fp.OutDim)
	}
	switch len(fp.GridRes) {
	case 1:
		res := fp.GridRes[0]
		fp.GridRes = make([]int, fp.InDim)
		for e := range fp.GridRes {
			fp.GridRes[e] = res
		}
	case fp.InDim:
	default:
		return fmt.Errorf("GridRes needs 1 or %d entries, got %d", fp.InDim, len(fp.GridRes))
	}
	if fp.Smooth == 0 {
		fp.Smooth = 1.0
	}
	if fp.AvgDev != nil && len(fp.AvgDev) != fp.OutDim {
		return fmt.Errorf("AvgDev needs %d entries, got %d", fp.OutDim, len(fp.AvgDev))
	}
	for _, pair := range [][2][]float64{
		{fp.GridLow, fp.GridHigh},
		{fp.ValueLow, fp.ValueHigh},
	} {
		if (pair[0] == nil) != (pair[1] == nil) {
			return fmt.Errorf("low/high ranges must be given together or not at all")
		}
	}
	if fp.GridLow != nil && (len(fp.GridLow) != fp.InDim || len(fp.GridHigh) != fp.InDim) {
		return fmt.Errorf("GridLow/GridHigh need %d entries each", fp.InDim)
	}
	if fp.ValueLow != nil && (len(fp.ValueLow) != fp.OutDim || len(fp.ValueHigh) != fp.OutDim) {
		return fmt.Errorf("ValueLow/ValueHigh need %d entries each", fp.OutDim)
	}
	return nil
}

func (fp *FitParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", fp.Title)
	fmt.Printf("[%d -> %d]\t\t= Dimensions\n", fp.InDim, fp.OutDim)
	fmt.Printf("%v\t\t= Grid Resolution\n", fp.GridRes)
	fmt.Printf("%8.5f\t\t= Smoothing Factor\n", fp.Smooth)
	if fp.AvgDev != nil {
		fmt.Printf("%v\t\t= Average Deviation\n", fp.AvgDev)
	}
	fmt.Printf("[%v]\t\t\t= Two Pass Smoothing\n", fp.TwoPassSmoothing)
	fmt.Printf("[%d]\t\t\t= Extra Fit Passes\n", fp.ExtraFitPasses)
}
