// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package merge implements a command to merge
// a set of disjoint subset trees.
package merge

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/js-arias/command"
	"github.com/js-arias/dtm/constraint"
	"github.com/js-arias/dtm/distmat"
	"github.com/js-arias/dtm/mergeparam"
	"github.com/js-arias/dtm/njmerge"
	"github.com/js-arias/dtm/project"
	"github.com/js-arias/dtm/tree"
	"github.com/js-arias/dtm/treemerge"
	"github.com/spf13/afero"
)

var Command = &command.Command{
	Usage: `merge [--project <project-file>] [--param <param-file>]
	[--matrix <matrix-file>] [--taxa <taxa-file>]
	[--mode <method>] [--start <tree-file>]
	[--estimator <program>] [--args <arguments>]
	[--alignment <file>] [--timeout <duration>]
	[--workdir <directory>] [--keep]
	[--max <number>] [--cpu <number>]
	[--trace <file>] [-v|--verbose]
	[-o|--output <file>] [<tree-file>...]`,
	Short: "merge disjoint subset trees",
	Long: `
Command merge reads a set of subset trees, each one with a disjoint set of
taxa, and a dissimilarity matrix that includes all the taxa, and produces a
single tree with all the taxa that keeps the topology of each subset tree.

One or more tree files can be given as arguments, each file can contain one
or more trees. If no file is given, the subset trees will be read from the
project defined with the flag --project. In the same way, the flags --matrix,
--taxa, --start, --alignment, and --param override the files defined in the
project. The flag --matrix is required if no project is given.

Two merge methods are available. By default, NJMerge is used: taxa are joined
using neighbor joining, but a pair of clusters is only joined if the result is
compatible with all subset trees. The flag --max limits the number of pairs
that are examined at each step (by default, all pairs can be examined). With
the flag --trace, the sequence of joins will be written as a tab-delimited
file, that can be plotted with 'dtm plot'.

The second method is TreeMerge, used when the flag --mode is set to
"treemerge", or when a starting tree is given with the flag --start.
TreeMerge joins the subset trees along a spanning tree over the subsets. If a
starting tree is given, the spanning tree is taken from it: its terminals can
be taxa, or the names of the subset trees (see 'dtm help tree-files').
Otherwise the spanning tree that minimizes the distances between subsets is
used. The subset trees are attached concurrently; use the flag --cpu to limit
the number of processors used.

The branch lengths of the TreeMerge tree are estimated after the topology is
built. By default, they are estimated with least squares over the
dissimilarity matrix. To use an external program, define it with the flag
--estimator, and its arguments with the flag --args. In the arguments, the
following words will be replaced:

	{tree}       the file with the merged topology
	{alignment}  the file defined with --alignment
	{output}     a file in which the program should write the tree
	{dir}        the working directory

The program must write the tree with lengths in the {output} file, or in the
standard output. The flag --timeout sets the maximum time used by the
estimator (default 10m). The working directory is created inside the
directory given with --workdir, and is removed at the end, unless the flag
--keep is given.

By default the merged tree will be printed in the standard output, or in the
output file defined in the project. Use the flag --output, or -o, to define
an output file.

Use the flag --verbose, or -v, to print the progress of the merge in the
standard error.

The command exits with the following status codes:

	0  success
	1  generic error (e.g., a file that can not be read)
	3  a taxon is found in more than one subset tree
	4  the matrix does not include all the subset taxa
	5  NJMerge was unable to find a compatible join among the
	   examined pairs (only possible when --max is used)
	6  the starting tree does not define a valid spanning tree
	7  branch length estimation failed (the topology is written)
	8  branch length estimation timed out (the topology is written)
	`,
	SetFlags: setFlags,
	Run:      run,
}

var verbose bool
var keep bool
var maxCand int
var cpu int
var timeout time.Duration
var prjFile string
var paramFile string
var matrixFile string
var taxaFile string
var startFile string
var alignFile string
var estimator string
var estArgs string
var workDir string
var mode string
var traceFile string
var output string

func setFlags(c *command.Command) {
	c.Flags().BoolVar(&verbose, "verbose", false, "")
	c.Flags().BoolVar(&verbose, "v", false, "")
	c.Flags().BoolVar(&keep, "keep", false, "")
	c.Flags().IntVar(&maxCand, "max", -1, "")
	c.Flags().IntVar(&cpu, "cpu", -1, "")
	c.Flags().DurationVar(&timeout, "timeout", -1, "")
	c.Flags().StringVar(&prjFile, "project", "", "")
	c.Flags().StringVar(&paramFile, "param", "", "")
	c.Flags().StringVar(&matrixFile, "matrix", "", "")
	c.Flags().StringVar(&taxaFile, "taxa", "", "")
	c.Flags().StringVar(&startFile, "start", "", "")
	c.Flags().StringVar(&alignFile, "alignment", "", "")
	c.Flags().StringVar(&estimator, "estimator", "", "")
	c.Flags().StringVar(&estArgs, "args", "", "")
	c.Flags().StringVar(&workDir, "workdir", "", "")
	c.Flags().StringVar(&mode, "mode", "", "")
	c.Flags().StringVar(&traceFile, "trace", "", "")
	c.Flags().StringVar(&output, "output", "", "")
	c.Flags().StringVar(&output, "o", "", "")
}

// Exit status for each kind of failure.
const (
	exitGeneric = 1 + iota
	_
	exitOverlap
	exitIncomplete
	exitInfeasible
	exitSpanning
	exitLengths
	exitTimeout
)

func run(c *command.Command, args []string) error {
	p := project.New()
	if prjFile != "" {
		var err error
		p, err = project.Read(prjFile)
		if err != nil {
			return err
		}
	}

	mp, err := readParams(p)
	if err != nil {
		return err
	}

	subs, err := readSubsets(p, args)
	if err != nil {
		return err
	}
	m, err := readMatrix(p)
	if err != nil {
		return err
	}
	start, err := readStart(p)
	if err != nil {
		return err
	}

	logf := func(string, ...any) {}
	if verbose {
		logf = func(format string, v ...any) {
			fmt.Fprintf(c.Stderr(), format+"\n", v...)
		}
	}

	g, err := constraint.Build(subs, m)
	if err != nil {
		return exit(c, err)
	}
	logf("subsets: %d, taxa: %d", g.Len(), len(g.Taxa()))

	if start != nil || mp.Mode() == mergeparam.TreeMerge {
		return runTreeMerge(c, p, mp, g, m, start, logf)
	}

	res, err := njmerge.Merge(g, m, njmerge.Options{
		MaxCandidates: mp.MaxCandidates(),
		Logf:          logf,
	})
	if err != nil {
		return exit(c, err)
	}
	if traceFile != "" {
		if err := writeTrace(traceFile, res.Trace); err != nil {
			return err
		}
	}
	return writeTree(c.Stdout(), outName(p), res.Tree)
}

func runTreeMerge(c *command.Command, p *project.Project, mp *mergeparam.MP, g *constraint.Graph, m *distmat.Matrix, start *tree.Tree, logf func(string, ...any)) error {
	e := &treemerge.Engine{
		Fs:        afero.NewOsFs(),
		WorkDir:   mp.WorkDir(),
		Keep:      mp.Keep(),
		Alignment: p.Path(project.Alignment),
		Timeout:   mp.Timeout(),
		CPU:       mp.CPU(),
		Logf:      logf,
	}
	if est := mp.Estimator(); est != "" {
		e.Estimator = treemerge.Command{
			Path: est,
			Args: mp.Args(),
			Logf: logf,
		}
	}

	if err := treeMerge(c.Stdout(), outName(p), e, g, m, start); err != nil {
		return exit(c, err)
	}
	return nil
}

// treeMerge merges the subset trees with TreeMerge
// and writes the merged tree.
// If the branch length estimation fails,
// the tree is written without lengths
// and the estimation error is returned.
func treeMerge(w io.Writer, out string, e *treemerge.Engine, g *constraint.Graph, m *distmat.Matrix, start *tree.Tree) error {
	res, err := e.Merge(context.Background(), g, m, start)
	if res == nil {
		return err
	}
	if !res.Lengths && e.Logf != nil {
		e.Logf("warning: merged tree without estimated branch lengths")
	}
	if wErr := writeTree(w, out, res.Tree); wErr != nil {
		return wErr
	}
	return err
}

// exit prints the error
// and ends the program with the status
// defined for the error.
// Errors without a defined status are returned.
func exit(c *command.Command, err error) error {
	code := exitCode(err)
	if code == exitGeneric {
		return err
	}
	fmt.Fprintf(c.Stderr(), "dtm merge: %v\n", err)
	os.Exit(code)
	return nil
}

// exitCode returns the exit status of an error.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var overlap *constraint.OverlapError
	var incomplete *constraint.IncompleteMatrixError
	var infeasible *njmerge.InfeasibleMergeError
	var mismatch *treemerge.SpanningTreeMismatchError
	var lengths *treemerge.BranchLengthEstimationError
	var tout *treemerge.BranchLengthEstimationTimeout
	switch {
	case errors.As(err, &overlap):
		return exitOverlap
	case errors.As(err, &incomplete):
		return exitIncomplete
	case errors.As(err, &infeasible):
		return exitInfeasible
	case errors.As(err, &mismatch):
		return exitSpanning
	case errors.As(err, &tout):
		return exitTimeout
	case errors.As(err, &lengths):
		return exitLengths
	}
	return exitGeneric
}

func readParams(p *project.Project) (*mergeparam.MP, error) {
	var mp *mergeparam.MP
	var err error
	if paramFile != "" {
		mp, err = mergeparam.Read(paramFile)
	} else {
		mp, err = p.Params()
	}
	if err != nil {
		return nil, err
	}

	if mode != "" {
		if err := mp.SetMode(mode); err != nil {
			return nil, err
		}
	}
	if estimator != "" {
		mp.SetEstimator(estimator)
	}
	if estArgs != "" {
		if err := mp.SetArgs(estArgs); err != nil {
			return nil, fmt.Errorf("flag --args: %v", err)
		}
	}
	if timeout >= 0 {
		if err := mp.SetTimeout(timeout); err != nil {
			return nil, err
		}
	}
	if keep {
		mp.SetKeep(true)
	}
	if workDir != "" {
		mp.SetWorkDir(workDir)
	}
	if maxCand >= 0 {
		if err := mp.SetMaxCandidates(maxCand); err != nil {
			return nil, err
		}
	}
	if cpu >= 0 {
		if err := mp.SetCPU(cpu); err != nil {
			return nil, err
		}
	}
	if alignFile != "" {
		p.Add(project.Alignment, alignFile)
	}
	return mp, nil
}

func readSubsets(p *project.Project, args []string) ([]*tree.Tree, error) {
	if len(args) == 0 {
		return p.Subsets()
	}

	var subs []*tree.Tree
	for _, a := range args {
		ts, err := project.ReadTrees(a)
		if err != nil {
			return nil, err
		}
		subs = append(subs, ts...)
	}
	return subs, nil
}

func readMatrix(p *project.Project) (*distmat.Matrix, error) {
	name := p.Path(project.Matrix)
	if matrixFile != "" {
		name = matrixFile
	}
	if name == "" {
		return nil, errors.New("undefined dissimilarity matrix")
	}
	taxa := p.Path(project.Taxa)
	if taxaFile != "" {
		taxa = taxaFile
	}
	return project.ReadMatrix(name, taxa)
}

func readStart(p *project.Project) (*tree.Tree, error) {
	if startFile != "" {
		p.Add(project.Start, startFile)
	}
	return p.StartTree()
}

func outName(p *project.Project) string {
	if output != "" {
		return output
	}
	return p.Path(project.Output)
}

func writeTree(w io.Writer, name string, t *tree.Tree) (err error) {
	if name == "" {
		return t.WriteNewick(w)
	}

	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer func() {
		e := f.Close()
		if e != nil && err == nil {
			err = e
		}
	}()

	if err := t.WriteNewick(f); err != nil {
		return fmt.Errorf("while writing to %q: %v", name, err)
	}
	return nil
}

var traceHeader = []string{
	"step",
	"a",
	"b",
	"q",
	"rank",
	"size",
}

func writeTrace(name string, trace []njmerge.Join) (err error) {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer func() {
		e := f.Close()
		if e != nil && err == nil {
			err = e
		}
	}()

	fmt.Fprintf(f, "# njmerge trace\n")
	tsv := csv.NewWriter(f)
	tsv.Comma = '\t'
	tsv.UseCRLF = true

	if err := tsv.Write(traceHeader); err != nil {
		return fmt.Errorf("on file %q: while writing header: %v", name, err)
	}
	for _, j := range trace {
		row := []string{
			strconv.Itoa(j.Step),
			j.A,
			j.B,
			strconv.FormatFloat(j.Q, 'f', 6, 64),
			strconv.Itoa(j.Rank),
			strconv.Itoa(j.Size),
		}
		if err := tsv.Write(row); err != nil {
			return fmt.Errorf("on file %q: %v", name, err)
		}
	}

	tsv.Flush()
	if err := tsv.Error(); err != nil {
		return fmt.Errorf("on file %q: while writing data: %v", name, err)
	}
	return nil
}
