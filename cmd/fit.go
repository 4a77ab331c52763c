/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"bufio"
	"fmt"
	"io/ioutil"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/gridfit/rspl/FitParameters"
	"github.com/gridfit/rspl/rspl"
	"github.com/gridfit/rspl/utils"
)

type FitModel struct {
	ParamsFile string
	PointsFile string
	Profile    bool
	Verbose    bool
}

// FitCmd represents the fit command
var FitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Fit a regularized spline grid to scattered data points",
	Long: `
Reads fit parameters from a YAML file and scattered sample points from a
whitespace separated text file, fits the grid and reports the result,

rsplfit fit -p params.yaml -P points.txt`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err error
		)
		fmt.Println("fit called")
		fm := &FitModel{}
		if fm.ParamsFile, err = cmd.Flags().GetString("params"); err != nil {
			panic(err)
		}
		if fm.PointsFile, err = cmd.Flags().GetString("points"); err != nil {
			panic(err)
		}
		fm.Profile, _ = cmd.Flags().GetBool("profile")
		fm.Verbose, _ = cmd.Flags().GetBool("verbose")
		fp := processFitInput(fm)
		RunFit(fm, fp)
	},
}

func processFitInput(fm *FitModel) (fp *FitParameters.FitParameters) {
	var (
		err      error
		willExit bool
	)
	if len(fm.ParamsFile) == 0 {
		err := fmt.Errorf("must supply a fit parameters file (-p, --params) in YAML format")
		fmt.Printf("error: %s\n", err.Error())
		exampleFile := `
########################################
Title: "Test Fit"
InDim: 2
OutDim: 1
GridRes: [33]
Smooth: 1.0
TwoPassSmoothing: false
ExtraFitPasses: 0
########################################
`
		fmt.Printf("Example File:%s\n", exampleFile)
		willExit = true
	}
	if len(fm.PointsFile) == 0 {
		err := fmt.Errorf("must supply a points file (-P, --points) with one sample per line")
		fmt.Printf("error: %s\n", err.Error())
		willExit = true
	}
	if willExit {
		os.Exit(1)
	}
	var data []byte
	if data, err = ioutil.ReadFile(fm.ParamsFile); err != nil {
		panic(err)
	}
	fp = &FitParameters.FitParameters{}
	if err = fp.Parse(data); err != nil {
		panic(err)
	}
	if err = fp.Validate(); err != nil {
		fmt.Printf("error: %s\n", err.Error())
		os.Exit(1)
	}
	return
}

func init() {
	rootCmd.AddCommand(FitCmd)
	FitCmd.Flags().StringP("params", "p", "", "YAML file with fit parameters like:\n\t- GridRes\n\t- Smooth")
	FitCmd.Flags().StringP("points", "P", "", "text file of sample points, one per line")
	FitCmd.Flags().Bool("profile", false, "write a CPU profile of the fit")
	FitCmd.Flags().BoolP("verbose", "v", false, "report solver progress while fitting")
}

func RunFit(fm *FitModel, fp *FitParameters.FitParameters) {
	points, err := ReadPoints(fm.PointsFile, fp.InDim, fp.OutDim)
	if err != nil {
		fmt.Printf("error: %s\n", err.Error())
		os.Exit(1)
	}
	fp.Print()
	fmt.Printf("[%d]\t\t\t= Sample Points\n", len(points))

	s, err := rspl.New(fp.InDim, fp.OutDim)
	if err != nil {
		fmt.Printf("error: %s\n", err.Error())
		os.Exit(1)
	}
	opts := rspl.Options{
		GridLow:          fp.GridLow,
		GridHigh:         fp.GridHigh,
		ValueLow:         fp.ValueLow,
		ValueHigh:        fp.ValueHigh,
		Smooth:           fp.Smooth,
		AvgDev:           fp.AvgDev,
		TwoPassSmoothing: fp.TwoPassSmoothing,
		ExtraFitPasses:   fp.ExtraFitPasses,
		SymDomain:        fp.SymDomain,
		Tolerance:        fp.Tolerance,
		LineCGIters:      fp.LineCGIters,
		Verbose:          fm.Verbose,
	}

	if fm.Profile {
		defer profile.Start().Stop()
	}
	start := time.Now()
	nonMono, err := s.Fit(points, fp.GridRes, opts)
	if err != nil {
		fmt.Printf("error: %s\n", err.Error())
		os.Exit(1)
	}
	elapsed := time.Since(start)

	// Residual summary against the fitted grid.
	var (
		out    = make([]float64, fp.OutDim)
		sum    float64
		maxErr float64
	)
	for _, p := range points {
		gridInterp(&s.Grid, p.Pos, out)
		for f := 0; f < fp.OutDim; f++ {
			e := out[f] - p.Val[f]
			sum += e * e
			if math.Abs(e) > maxErr {
				maxErr = math.Abs(e)
			}
		}
	}
	rms := math.Sqrt(sum / float64(len(points)*fp.OutDim))

	fmt.Printf("Fit time = %v\n", elapsed)
	fmt.Printf("Grid = %v nodes, %d total\n", []int(s.Grid.Res), s.Grid.NodeCount())
	fmt.Printf("RMS residual = %g, max residual = %g\n", rms, maxErr)
	fmt.Printf("Non-monotonic = %v\n", nonMono)
}

// gridInterp evaluates the fitted grid at pos by multilinear interpolation,
// writing the result to out. Positions outside the grid use the edge cells.
func gridInterp(g *rspl.Grid, pos, out []float64) {
	var (
		di = g.Di
		we = make([]float64, di)
		ix int
	)
	for e := 0; e < di; e++ {
		t := (pos[e] - g.Low[e]) / g.Width[e]
		mi := int(math.Floor(t))
		if mi < 0 {
			mi = 0
		} else if mi > g.Res[e]-2 {
			mi = g.Res[e] - 2
		}
		ix += mi * g.Mapper.Strides[e]
		we[e] = t - float64(mi)
	}
	var (
		gw  = utils.CornerWeights(we)
		off = utils.CornerOffsets(g.Mapper.Strides)
	)
	for f := 0; f < g.Fdi; f++ {
		out[f] = 0.0
	}
	for i, o := range off {
		v := g.Value(ix + o)
		for f := 0; f < g.Fdi; f++ {
			out[f] += gw[i] * v[f]
		}
	}
}

// ReadPoints reads one sample per line, di position columns then fdi value
// columns, with an optional trailing weight column. Blank lines and lines
// starting with # are skipped.
func ReadPoints(fileName string, di, fdi int) (points []rspl.Point, err error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != di+fdi && len(fields) != di+fdi+1 {
			return nil, fmt.Errorf("%s:%d: want %d or %d columns, got %d",
				fileName, lineNo, di+fdi, di+fdi+1, len(fields))
		}
		vals := make([]float64, len(fields))
		for i, fs := range fields {
			if vals[i], err = strconv.ParseFloat(fs, 64); err != nil {
				return nil, fmt.Errorf("%s:%d: column %d: %v", fileName, lineNo, i+1, err)
			}
		}
		p := rspl.Point{
			Pos: vals[:di],
			Val: vals[di : di+fdi],
		}
		if len(fields) == di+fdi+1 {
			p.Weight = vals[di+fdi]
		}
		points = append(points, p)
	}
	if err = scanner.Err(); err != nil {
		return nil, err
	}
	return points, nil
}
