// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package export implements a command to export
// a merged tree as a time calibrated tree.
package export

import (
	"fmt"
	"os"
	"strings"

	"github.com/js-arias/command"
	"github.com/js-arias/dtm/project"
	"github.com/js-arias/dtm/tree"
	"github.com/js-arias/timetree"
)

var Command = &command.Command{
	Usage: `export [--name <tree-name>] [--scale <value>] [--age <value>]
	[-o|--output <file>] <tree-file>`,
	Short: "export a merged tree as a time tree",
	Long: `
Command export reads a rooted tree with branch lengths, and writes it as a
tab-delimited time tree file, that can be used by other tools that read time
calibrated trees (e.g., PhyGeo).

The argument of the command is the name of the tree file. The file must have
a single tree, and all branches (except the root) must have a length.

Branch lengths are interpreted as million years. Use the flag --scale to
define a factor used to multiply the branch lengths (e.g., to transform
substitutions per site into million years). By default, the age of the root
will be calculated from the largest distance between any terminal and the
root. To set a different root age, use the flag --age, with a value in
million years.

By default the tree will be named after the file. Use the flag --name to set
a different name.

By default the tree is written in the standard output. Use the flag --output,
or -o, to define an output file.
	`,
	SetFlags: setFlags,
	Run:      run,
}

const millionYears = 1_000_000

var treeName string
var output string
var scale float64
var rootAge float64

func setFlags(c *command.Command) {
	c.Flags().StringVar(&treeName, "name", "", "")
	c.Flags().StringVar(&output, "output", "", "")
	c.Flags().StringVar(&output, "o", "", "")
	c.Flags().Float64Var(&scale, "scale", 1, "")
	c.Flags().Float64Var(&rootAge, "age", 0, "")
}

func run(c *command.Command, args []string) error {
	if len(args) < 1 {
		return c.UsageError("expecting tree file")
	}
	if scale <= 0 {
		return fmt.Errorf("invalid scale value %.6f", scale)
	}

	ts, err := project.ReadTrees(args[0])
	if err != nil {
		return err
	}
	if len(ts) > 1 {
		return fmt.Errorf("on file %q: expecting a single tree, found %d", args[0], len(ts))
	}
	t := ts[0]
	if !t.HasLengths() {
		return fmt.Errorf("on file %q: tree without branch lengths", args[0])
	}
	if treeName == "" {
		treeName = t.Name()
	}

	tc, err := toTimeTree(t)
	if err != nil {
		return fmt.Errorf("on file %q: %v", args[0], err)
	}

	if output == "" {
		return tc.TSV(c.Stdout())
	}
	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := tc.TSV(f); err != nil {
		f.Close()
		return fmt.Errorf("while writing to %q: %v", output, err)
	}
	return f.Close()
}

func toTimeTree(t *tree.Tree) (*timetree.Collection, error) {
	st := t.Clone()
	for _, id := range st.Nodes() {
		if st.IsRoot(id) {
			st.ClearLength(id)
			continue
		}
		l, _ := st.Length(id)
		st.SetLength(id, l*scale)
	}

	return timetree.Newick(strings.NewReader(st.Newick()), treeName, int64(rootAge*millionYears))
}
