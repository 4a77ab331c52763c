package FitParameters

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFitParameters(t *testing.T) {
	// Parse a full parameter file
	{
		data := []byte(`
Title: "Printer AtoB"
InDim: 3
OutDim: 4
GridRes: [17, 17, 9]
Smooth: 1.5
AvgDev: [0.005, 0.005, 0.005, 0.01]
TwoPassSmoothing: true
ExtraFitPasses: 1
`)
		fp := &FitParameters{}
		assert.NoError(t, fp.Parse(data))
		assert.NoError(t, fp.Validate())
		assert.Equal(t, "Printer AtoB", fp.Title)
		assert.Equal(t, []int{17, 17, 9}, fp.GridRes)
		assert.Equal(t, 1.5, fp.Smooth)
		assert.True(t, fp.TwoPassSmoothing)
		assert.Equal(t, 1, fp.ExtraFitPasses)
	}
	// A single resolution fans out to every input dimension
	{
		fp := &FitParameters{InDim: 2, OutDim: 1, GridRes: []int{33}}
		assert.NoError(t, fp.Validate())
		assert.Equal(t, []int{33, 33}, fp.GridRes)
		assert.Equal(t, 1.0, fp.Smooth) // Default
	}
	// Dimensional mismatches are rejected
	{
		fp := &FitParameters{InDim: 3, OutDim: 1, GridRes: []int{9, 9}}
		assert.Error(t, fp.Validate())

		fp = &FitParameters{InDim: 1, OutDim: 2, GridRes: []int{9}, AvgDev: []float64{0.005}}
		assert.Error(t, fp.Validate())

		fp = &FitParameters{InDim: 1, OutDim: 1, GridRes: []int{9}, GridLow: []float64{0}}
		assert.Error(t, fp.Validate())

		fp = &FitParameters{InDim: 0, OutDim: 1, GridRes: []int{9}}
		assert.Error(t, fp.Validate())
	}
}
