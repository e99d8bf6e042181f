// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package param implements a command to manage
// the parameters of a tree merge.
package param

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/js-arias/command"
	"github.com/js-arias/dtm/mergeparam"
	"github.com/js-arias/dtm/project"
)

var Command = &command.Command{
	Usage: `param [--add <param-file>] [--file <file-name>]
	[--mode <method>] [--estimator <program>] [--args <arguments>]
	[--timeout <duration>] [--workdir <directory>] [--keep <bool>]
	[--max <number>] [--cpu <number>]
	<project-file>`,
	Short: "manage merge parameters",
	Long: `
Command param manages the parameters of a tree merge defined for a DTM
project.

The argument of the command is the name of the project file.

By default, the command will print the currently defined parameters.

If the flag --add is defined, it will use the indicated file for the merge
parameters.

By default, any change on the parameters will be stored in the current
parameters file. If the project does not have a parameters file, a new one
will be created with the name 'params.tab'. Use the flag --file to define a
new parameters file.

The following parameters can be set:

	--mode       the merge method, either "njmerge" (the default) or
	             "treemerge".
	--estimator  the program used to estimate the branch lengths of a
	             TreeMerge tree. If empty, least squares is used.
	--args       the arguments of the estimator (see 'dtm help merge').
	--timeout    the maximum time used by the estimator (default 10m). A
	             value of 0 means no timeout.
	--workdir    the directory in which working directories are created.
	--keep       if true, the working directory is not removed.
	--max        the maximum number of pairs examined at each NJMerge step.
	             A value of 0 means no limit.
	--cpu        the number of processors used by TreeMerge. A value of 0
	             means all processors.

A parameter file is a tab-delimited file with the fields "parameter" and
"value". Here is an example file:

	# dtm merge parameters
	parameter	value
	mode	treemerge
	estimator	raxml-ng
	args	--evaluate --msa {alignment} --tree {tree} --prefix {dir}/bl
	timeout	30m
	keep	false
	`,
	SetFlags: setFlags,
	Run:      run,
}

var addFile string
var paramFile string
var mode string
var estimator string
var estArgs string
var workDir string
var keep string
var timeout time.Duration
var maxCand int
var cpu int

func setFlags(c *command.Command) {
	c.Flags().StringVar(&addFile, "add", "", "")
	c.Flags().StringVar(&paramFile, "file", "", "")
	c.Flags().StringVar(&mode, "mode", "", "")
	c.Flags().StringVar(&estimator, "estimator", "", "")
	c.Flags().StringVar(&estArgs, "args", "", "")
	c.Flags().StringVar(&workDir, "workdir", "", "")
	c.Flags().StringVar(&keep, "keep", "", "")
	c.Flags().DurationVar(&timeout, "timeout", -1, "")
	c.Flags().IntVar(&maxCand, "max", -1, "")
	c.Flags().IntVar(&cpu, "cpu", -1, "")
}

func run(c *command.Command, args []string) error {
	if len(args) < 1 {
		return c.UsageError("expecting project file")
	}

	p, err := project.Read(args[0])
	if err != nil {
		return err
	}

	if addFile != "" {
		if _, err := mergeparam.Read(addFile); err != nil {
			return err
		}
		p.Add(project.Params, addFile)
		if err := p.Write(); err != nil {
			return err
		}
		return nil
	}

	mp, err := p.Params()
	if err != nil {
		return err
	}
	if paramFile != "" {
		mp.SetName(paramFile)
	}

	ed, err := setParams(mp)
	if err != nil {
		return err
	}
	if ed && mp.Name() == "" {
		mp.SetName("params.tab")
	}

	if mp.Name() != "" && p.Path(project.Params) != mp.Name() {
		if err := mp.Write(); err != nil {
			return err
		}
		p.Add(project.Params, mp.Name())
		if err := p.Write(); err != nil {
			return err
		}
		return nil
	}
	if ed {
		if err := mp.Write(); err != nil {
			return err
		}
		return nil
	}

	printParams(c.Stdout(), mp)
	return nil
}

func setParams(mp *mergeparam.MP) (bool, error) {
	vals := []struct {
		p   mergeparam.Param
		v   string
		set bool
	}{
		{mergeparam.Mode, mode, mode != ""},
		{mergeparam.Estimator, estimator, estimator != ""},
		{mergeparam.WorkDir, workDir, workDir != ""},
		{mergeparam.Keep, keep, keep != ""},
		{mergeparam.Timeout, timeout.String(), timeout >= 0},
		{mergeparam.MaxCand, fmt.Sprintf("%d", maxCand), maxCand >= 0},
		{mergeparam.CPU, fmt.Sprintf("%d", cpu), cpu >= 0},
	}

	ed := false
	for _, v := range vals {
		if !v.set {
			continue
		}
		if err := mp.Set(v.p, v.v); err != nil {
			return false, fmt.Errorf("parameter %q: %v", v.p, err)
		}
		ed = true
	}
	if estArgs != "" {
		if err := mp.SetArgs(estArgs); err != nil {
			return false, fmt.Errorf("flag --args: %v", err)
		}
		ed = true
	}
	return ed, nil
}

func printParams(w io.Writer, mp *mergeparam.MP) {
	if mp.Name() != "" {
		fmt.Fprintf(w, "file:       %s\n", mp.Name())
	}
	fmt.Fprintf(w, "mode:       %s\n", mp.Mode())
	if m := mp.MaxCandidates(); m > 0 {
		fmt.Fprintf(w, "max pairs:  %d\n", m)
	}
	if est := mp.Estimator(); est != "" {
		fmt.Fprintf(w, "estimator:  %s\n", est)
		fmt.Fprintf(w, "args:       %s\n", strings.Join(mp.Args(), " "))
	}
	fmt.Fprintf(w, "timeout:    %v\n", mp.Timeout())
	if d := mp.WorkDir(); d != "" {
		fmt.Fprintf(w, "workdir:    %s\n", d)
	}
	if mp.Keep() {
		fmt.Fprintf(w, "keep:       true\n")
	}
	if n := mp.CPU(); n > 0 {
		fmt.Fprintf(w, "cpu:        %d\n", n)
	}
}
