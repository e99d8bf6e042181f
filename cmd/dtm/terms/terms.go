// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package terms implements a command to print
// the list of the terminals of a set of trees.
package terms

import (
	"fmt"

	"github.com/js-arias/command"
	"github.com/js-arias/dtm/project"
	"github.com/js-arias/dtm/tree"
	"golang.org/x/exp/slices"
)

var Command = &command.Command{
	Usage: "terms [--project <project-file>] [--tree <tree-name>] [<tree-file>...]",
	Short: "print a list of tree terminals",
	Long: `
Command terms reads one or more tree files and prints the name of the
terminals in the standard output.

One or more tree files can be given as arguments. If no file is given, the
subset trees of the project defined with the flag --project will be used.

By default all terminals will be printed. If the flag --tree is set, only the
terminals of the indicated tree will be printed.
	`,
	SetFlags: setFlags,
	Run:      run,
}

var prjFile string
var treeName string

func setFlags(c *command.Command) {
	c.Flags().StringVar(&prjFile, "project", "", "")
	c.Flags().StringVar(&treeName, "tree", "", "")
}

func run(c *command.Command, args []string) error {
	var ts []*tree.Tree
	if len(args) == 0 {
		if prjFile == "" {
			return c.UsageError("expecting tree file or project")
		}
		p, err := project.Read(prjFile)
		if err != nil {
			return err
		}
		ts, err = p.Subsets()
		if err != nil {
			return err
		}
	}
	for _, a := range args {
		nt, err := project.ReadTrees(a)
		if err != nil {
			return err
		}
		ts = append(ts, nt...)
	}

	for _, term := range makeTermList(ts) {
		fmt.Fprintf(c.Stdout(), "%s\n", term)
	}
	return nil
}

func makeTermList(ts []*tree.Tree) []string {
	terms := make(map[string]bool)
	for _, t := range ts {
		if treeName != "" && t.Name() != treeName {
			continue
		}
		for _, tax := range t.Terms() {
			terms[tax] = true
		}
	}

	termList := make([]string, 0, len(terms))
	for tax := range terms {
		termList = append(termList, tax)
	}
	slices.Sort(termList)
	return termList
}
