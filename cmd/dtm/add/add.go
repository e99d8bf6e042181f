// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package add implements a command to add data files
// to a DTM project.
package add

import (
	"errors"
	"fmt"
	"os"

	"github.com/js-arias/command"
	"github.com/js-arias/dtm/project"
)

var Command = &command.Command{
	Usage: `add [--subsets <tree-file>] [--matrix <matrix-file>]
	[--taxa <taxa-file>] [--start <tree-file>]
	[--alignment <file>] [--output <file>]
	<project-file>`,
	Short: "add data files to a DTM project",
	Long: `
Command add sets the files used by a DTM project.

The argument of the command is the name of the project file. If no project
file exists, a new project will be created.

Each flag sets the file of a dataset (see 'dtm help projects'):

	--subsets    the newick file with the subset trees.
	--matrix     the dissimilarity matrix.
	--taxa       the taxon names of a PHYLIP matrix.
	--start      the starting tree used by TreeMerge.
	--alignment  the character data used by a branch length estimator.
	--output     the file in which the merged tree will be written.

Before a file is added, the command checks that it can be read. Use the
string "-" as the file name to remove a dataset from the project.
	`,
	SetFlags: setFlags,
	Run:      run,
}

var files = map[project.Dataset]*string{
	project.Subsets:   new(string),
	project.Matrix:    new(string),
	project.Taxa:      new(string),
	project.Start:     new(string),
	project.Alignment: new(string),
	project.Output:    new(string),
}

func setFlags(c *command.Command) {
	for set, v := range files {
		c.Flags().StringVar(v, string(set), "", "")
	}
}

func run(c *command.Command, args []string) error {
	if len(args) < 1 {
		return c.UsageError("expecting project file")
	}
	p, err := openProject(args[0])
	if err != nil {
		return err
	}

	for set, v := range files {
		switch *v {
		case "":
			continue
		case "-":
			p.Add(set, "")
			continue
		}
		p.Add(set, *v)
	}

	// validate readable datasets
	if p.Path(project.Subsets) != "" {
		if _, err := p.Subsets(); err != nil {
			return err
		}
	}
	if p.Path(project.Matrix) != "" {
		if _, err := p.Matrix(); err != nil {
			return err
		}
	}
	if _, err := p.StartTree(); err != nil {
		return err
	}
	if a := p.Path(project.Alignment); a != "" {
		if _, err := os.Stat(a); err != nil {
			return fmt.Errorf("alignment: %v", err)
		}
	}

	return p.Write()
}

func openProject(name string) (*project.Project, error) {
	p, err := project.Read(name)
	if errors.Is(err, os.ErrNotExist) {
		p := project.New()
		p.SetName(name)
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to open project %q: %v", name, err)
	}
	return p, nil
}
