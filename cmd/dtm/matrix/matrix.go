// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package matrix implements a command to convert
// dissimilarity matrices.
package matrix

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/js-arias/command"
	"github.com/js-arias/dtm/distmat"
	"github.com/js-arias/dtm/project"
	"golang.org/x/exp/slices"
)

var Command = &command.Command{
	Usage: `matrix [--taxa <taxa-file>] [--tsv]
	[--tree <tree-file>...] [-o|--output <file>]
	<matrix-file>`,
	Short: "convert a dissimilarity matrix",
	Long: `
Command matrix reads a dissimilarity matrix and writes it in the standard
output, or in the file defined with the flag --output, or -o.

The argument of the command is the name of the matrix file. The format of the
file is detected from its content (see 'dtm help matrix-files'). If the row
names of a PHYLIP matrix are not the taxon names, use the flag --taxa to
define a file with the taxon names.

By default, the matrix is written as a PHYLIP matrix. Use the flag --tsv to
write the matrix as a tab-delimited file.

The flag --tree can be used to restrict the matrix to the terminals of the
trees in the indicated tree file. Several tree files can be given as a comma
separated list.
	`,
	SetFlags: setFlags,
	Run:      run,
}

var taxaFile string
var treeFiles string
var output string
var tsvFormat bool

func setFlags(c *command.Command) {
	c.Flags().StringVar(&taxaFile, "taxa", "", "")
	c.Flags().StringVar(&treeFiles, "tree", "", "")
	c.Flags().StringVar(&output, "output", "", "")
	c.Flags().StringVar(&output, "o", "", "")
	c.Flags().BoolVar(&tsvFormat, "tsv", false, "")
}

func run(c *command.Command, args []string) error {
	if len(args) < 1 {
		return c.UsageError("expecting matrix file")
	}

	m, err := project.ReadMatrix(args[0], taxaFile)
	if err != nil {
		return err
	}

	if treeFiles != "" {
		m, err = restrict(m)
		if err != nil {
			return err
		}
	}

	if output == "" {
		return write(c.Stdout(), m)
	}

	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := write(f, m); err != nil {
		f.Close()
		return fmt.Errorf("while writing to %q: %v", output, err)
	}
	return f.Close()
}

func restrict(m *distmat.Matrix) (*distmat.Matrix, error) {
	var taxa []string
	for _, tf := range strings.Split(treeFiles, ",") {
		tf = strings.TrimSpace(tf)
		if tf == "" {
			continue
		}
		ts, err := project.ReadTrees(tf)
		if err != nil {
			return nil, err
		}
		for _, t := range ts {
			taxa = append(taxa, t.Terms()...)
		}
	}
	slices.Sort(taxa)
	taxa = slices.Compact(taxa)
	return m.Sub(taxa)
}

func write(w io.Writer, m *distmat.Matrix) error {
	if tsvFormat {
		return m.TSV(w)
	}
	return m.Phylip(w)
}
