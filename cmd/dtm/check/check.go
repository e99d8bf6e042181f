// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package check implements a command to check
// that a merged tree is consistent
// with a set of subset trees.
package check

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/js-arias/command"
	"github.com/js-arias/dtm/project"
	"github.com/js-arias/dtm/tree"
)

var Command = &command.Command{
	Usage: `check [--project <project-file>] [--tree <tree-file>]
	[<subset-file>...]`,
	Short: "check a merged tree",
	Long: `
Command check reads a merged tree and a set of subset trees, and checks that
each taxon of the subset trees is found exactly once in the merged tree, that
the merged tree does not have taxa outside the subset trees, and that the
merged tree, when restricted to the taxa of a subset tree, includes all the
bipartitions of that subset tree. If a subset tree is not refined, the merged
tree restricted to the taxa of the subset is printed, so it can be compared
with the subset tree.

The merged tree is read from the file defined with the flag --tree, or from
the output file of the project defined with the flag --project.

One or more files with subset trees can be given as arguments. If no file is
given, the subset trees of the project will be used.

If all checks pass, the command prints "ok" in the standard output.
	`,
	SetFlags: setFlags,
	Run:      run,
}

var prjFile string
var treeFile string

func setFlags(c *command.Command) {
	c.Flags().StringVar(&prjFile, "project", "", "")
	c.Flags().StringVar(&treeFile, "tree", "", "")
}

func run(c *command.Command, args []string) error {
	p := project.New()
	if prjFile != "" {
		var err error
		p, err = project.Read(prjFile)
		if err != nil {
			return err
		}
	}
	if treeFile == "" {
		treeFile = p.Path(project.Output)
	}
	if treeFile == "" {
		return c.UsageError("expecting merged tree file")
	}

	ts, err := project.ReadTrees(treeFile)
	if err != nil {
		return err
	}
	if len(ts) > 1 {
		return fmt.Errorf("on file %q: expecting a single tree, found %d", treeFile, len(ts))
	}
	merged := ts[0]

	var subs []*tree.Tree
	if len(args) == 0 {
		subs, err = p.Subsets()
		if err != nil {
			return err
		}
	}
	for _, a := range args {
		nt, err := project.ReadTrees(a)
		if err != nil {
			return err
		}
		subs = append(subs, nt...)
	}

	if err := check(merged, subs); err != nil {
		return err
	}
	fmt.Fprintf(c.Stdout(), "ok\n")
	return nil
}

func check(merged *tree.Tree, subs []*tree.Tree) error {
	var errs *multierror.Error

	count := make(map[string]int)
	for _, id := range merged.Nodes() {
		if !merged.IsTerm(id) {
			continue
		}
		count[merged.Taxon(id)]++
	}
	for tx, n := range count {
		if n > 1 {
			errs = multierror.Append(errs, fmt.Errorf("taxon %q found %d times in merged tree", tx, n))
		}
	}

	inSub := make(map[string]bool)
	for _, s := range subs {
		var missing []string
		for _, tx := range s.Terms() {
			inSub[tx] = true
			if count[tx] == 0 {
				missing = append(missing, tx)
			}
		}
		if len(missing) > 0 {
			errs = multierror.Append(errs, fmt.Errorf("tree %q: taxa not in merged tree: %s", s.Name(), strings.Join(missing, ", ")))
			continue
		}
		if !tree.Refines(merged, s) {
			r := merged.Restrict(s.Terms()).Unroot()
			errs = multierror.Append(errs, fmt.Errorf("tree %q: merged tree is incompatible: restricted to the subset: %s", s.Name(), r.Newick()))
		}
	}
	for _, tx := range merged.Terms() {
		if !inSub[tx] {
			errs = multierror.Append(errs, fmt.Errorf("taxon %q not in subset trees", tx))
		}
	}
	return errs.ErrorOrNil()
}
