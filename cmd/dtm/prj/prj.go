// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package prj implements a command to print
// the basic information of a project.
package prj

import (
	"fmt"
	"io"

	"github.com/js-arias/command"
	"github.com/js-arias/dtm/project"
	"gonum.org/v1/gonum/stat"
)

var Command = &command.Command{
	Usage: "prj <project-file>",
	Short: "print information about a project",
	Long: `
Command prj reads a DTM project and prints the information of the different
project elements into the standard output.

The argument of the command is the name of the project file.
	`,
	Run: run,
}

func run(c *command.Command, args []string) error {
	if len(args) < 1 {
		return c.UsageError("expecting project file")
	}

	p, err := project.Read(args[0])
	if err != nil {
		return err
	}

	w := c.Stdout()
	if p.Path(project.Subsets) != "" {
		if err := printSubsets(w, p); err != nil {
			return err
		}
	}
	if p.Path(project.Matrix) != "" {
		if err := printMatrix(w, p); err != nil {
			return err
		}
	}
	if p.Path(project.Start) != "" {
		t, err := p.StartTree()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Starting tree:\n")
		fmt.Fprintf(w, "\tfile: %s\n", p.Path(project.Start))
		fmt.Fprintf(w, "\tterminals: %d\n", len(t.Terms()))
		fmt.Fprintf(w, "\n")
	}
	if a := p.Path(project.Alignment); a != "" {
		fmt.Fprintf(w, "Alignment:\n")
		fmt.Fprintf(w, "\tfile: %s\n", a)
		fmt.Fprintf(w, "\n")
	}

	mp, err := p.Params()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Parameters:\n")
	if mp.Name() != "" {
		fmt.Fprintf(w, "\tfile: %s\n", mp.Name())
	}
	fmt.Fprintf(w, "\tmode: %s\n", mp.Mode())
	if est := mp.Estimator(); est != "" {
		fmt.Fprintf(w, "\testimator: %s\n", est)
	}
	fmt.Fprintf(w, "\n")

	if o := p.Path(project.Output); o != "" {
		fmt.Fprintf(w, "Output:\n")
		fmt.Fprintf(w, "\tfile: %s\n", o)
	}
	return nil
}

func printSubsets(w io.Writer, p *project.Project) error {
	ts, err := p.Subsets()
	if err != nil {
		return err
	}

	taxa := 0
	for _, t := range ts {
		taxa += len(t.Terms())
	}
	fmt.Fprintf(w, "Subset trees:\n")
	fmt.Fprintf(w, "\tfile: %s\n", p.Path(project.Subsets))
	fmt.Fprintf(w, "\ttrees: %d\n", len(ts))
	fmt.Fprintf(w, "\tterminals: %d\n", taxa)
	fmt.Fprintf(w, "\n")
	return nil
}

func printMatrix(w io.Writer, p *project.Project) error {
	m, err := p.Matrix()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Dissimilarity matrix:\n")
	fmt.Fprintf(w, "\tfile: %s\n", p.Path(project.Matrix))
	if tx := p.Path(project.Taxa); tx != "" {
		fmt.Fprintf(w, "\ttaxon names: %s\n", tx)
	}
	fmt.Fprintf(w, "\ttaxa: %d\n", m.Len())
	var vals []float64
	undef := 0
	for i := 0; i < m.Len(); i++ {
		for j := i + 1; j < m.Len(); j++ {
			if !m.Defined(i, j) {
				undef++
				continue
			}
			vals = append(vals, m.At(i, j))
		}
	}
	if undef > 0 {
		fmt.Fprintf(w, "\tundefined pairs: %d\n", undef)
	}
	if len(vals) > 1 {
		mean, sd := stat.MeanStdDev(vals, nil)
		fmt.Fprintf(w, "\tdistance: mean %.6f, sd %.6f\n", mean, sd)
	}
	fmt.Fprintf(w, "\n")
	return nil
}
