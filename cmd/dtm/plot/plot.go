// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package plot implements a command to plot
// the trace of an NJMerge run.
package plot

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/js-arias/blind"
	"github.com/js-arias/command"
	"golang.org/x/exp/slices"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var Command = &command.Command{
	Usage: `plot [-o|--output <out-prefix>] <trace-file>`,
	Short: "plot the trace of an NJMerge run",
	Long: `
Command plot reads a trace file produced by 'dtm merge --trace' and draws two
plots as PNG files.

The argument of the command is the name of the trace file.

The first plot shows the neighbor joining value (Q) of each accepted join,
colored by the number of taxa in the new cluster. The second plot shows the
rank of the accepted pair at each join. A rank of 0 means that the best pair
was accepted; larger ranks mean that better pairs were rejected because they
were incompatible with the subset trees.

By default the plots will be named after the trace file. Use the flag
--output, or -o, to define a different prefix for the output files.
	`,
	SetFlags: setFlags,
	Run:      run,
}

var output string

func setFlags(c *command.Command) {
	c.Flags().StringVar(&output, "output", "", "")
	c.Flags().StringVar(&output, "o", "", "")
}

func run(c *command.Command, args []string) error {
	if len(args) < 1 {
		return c.UsageError("expecting trace file")
	}

	js, err := readTrace(args[0])
	if err != nil {
		return err
	}
	if len(js) == 0 {
		return fmt.Errorf("on file %q: empty trace", args[0])
	}

	prefix := output
	if prefix == "" {
		prefix = strings.TrimSuffix(args[0], ".tab")
	}

	if err := qPlot(js, prefix+"-q.png"); err != nil {
		return err
	}
	if err := rankPlot(js, prefix+"-rank.png"); err != nil {
		return err
	}
	return nil
}

type join struct {
	step int
	q    float64
	rank int
	size int
}

func readTrace(name string) ([]join, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tsv := csv.NewReader(f)
	tsv.Comma = '\t'
	tsv.Comment = '#'

	head, err := tsv.Read()
	if err != nil {
		return nil, fmt.Errorf("on file %q: header: %v", name, err)
	}
	fields := make(map[string]int, len(head))
	for i, h := range head {
		h = strings.ToLower(h)
		fields[h] = i
	}
	for _, h := range []string{"step", "q", "rank", "size"} {
		if _, ok := fields[h]; !ok {
			return nil, fmt.Errorf("on file %q: expecting field %q", name, h)
		}
	}

	var js []join
	for {
		row, err := tsv.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		ln, _ := tsv.FieldPos(0)
		if err != nil {
			return nil, fmt.Errorf("on file %q: on row %d: %v", name, ln, err)
		}

		var j join
		f := "step"
		j.step, err = strconv.Atoi(row[fields[f]])
		if err != nil {
			return nil, fmt.Errorf("on file %q: on row %d: field %q: %v", name, ln, f, err)
		}
		f = "q"
		j.q, err = strconv.ParseFloat(row[fields[f]], 64)
		if err != nil {
			return nil, fmt.Errorf("on file %q: on row %d: field %q: %v", name, ln, f, err)
		}
		f = "rank"
		j.rank, err = strconv.Atoi(row[fields[f]])
		if err != nil {
			return nil, fmt.Errorf("on file %q: on row %d: field %q: %v", name, ln, f, err)
		}
		f = "size"
		j.size, err = strconv.Atoi(row[fields[f]])
		if err != nil {
			return nil, fmt.Errorf("on file %q: on row %d: field %q: %v", name, ln, f, err)
		}
		js = append(js, j)
	}

	slices.SortFunc(js, func(a, b join) int {
		return a.step - b.step
	})
	return js, nil
}

// A joinPlot draws the Q value of each join
// colored by the size of the new cluster.
type joinPlot struct {
	joins []join
	max   int
	style draw.LineStyle
}

// DataRange implements the plot.DataRanger interface.
func (jp *joinPlot) DataRange() (xMin, xMax, yMin, yMax float64) {
	xMin = float64(jp.joins[0].step)
	xMax = float64(jp.joins[len(jp.joins)-1].step)
	yMin, yMax = jp.joins[0].q, jp.joins[0].q
	for _, j := range jp.joins {
		if j.q < yMin {
			yMin = j.q
		}
		if j.q > yMax {
			yMax = j.q
		}
	}
	return xMin, xMax, yMin, yMax
}

// Plot implements the plot.Plotter interface.
func (jp *joinPlot) Plot(c draw.Canvas, plt *plot.Plot) {
	trX, trY := plt.Transforms(&c)

	c.SetLineStyle(jp.style)
	var p vg.Path
	for i, j := range jp.joins {
		pt := vg.Point{X: trX(float64(j.step)), Y: trY(j.q)}
		if i == 0 {
			p.Move(pt)
			continue
		}
		p.Line(pt)
	}
	c.Stroke(p)

	const r = 3 * vg.Millimeter / 2
	for _, j := range jp.joins {
		col := blind.Sequential(blind.Iridescent, float64(j.size)/float64(jp.max))
		x, y := trX(float64(j.step)), trY(j.q)
		pts := []vg.Point{
			{X: x - r, Y: y},
			{X: x, Y: y + r},
			{X: x + r, Y: y},
			{X: x, Y: y - r},
		}
		c.FillPolygon(col, pts)
	}
}

func qPlot(js []join, name string) error {
	p := plot.New()
	p.X.Label.Text = "step"
	p.Y.Label.Text = "Q"

	jp := &joinPlot{
		joins: js,
		style: plotter.DefaultLineStyle,
	}
	for _, j := range js {
		if j.size > jp.max {
			jp.max = j.size
		}
	}

	p.Add(jp)
	if err := p.Save(6*vg.Inch, 4*vg.Inch, name); err != nil {
		return err
	}
	return nil
}

func rankPlot(js []join, name string) error {
	p := plot.New()
	p.X.Label.Text = "step"
	p.Y.Label.Text = "rank of accepted pair"

	xys := make(plotter.XYs, len(js))
	for i, j := range js {
		xys[i].X = float64(j.step)
		xys[i].Y = float64(j.rank)
	}
	s, err := plotter.NewScatter(xys)
	if err != nil {
		return err
	}
	s.GlyphStyle.Color = blind.Sequential(blind.Iridescent, 0.8)
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(s)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, name); err != nil {
		return err
	}
	return nil
}
