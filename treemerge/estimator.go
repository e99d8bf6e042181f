// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package treemerge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/js-arias/dtm/distmat"
	"github.com/js-arias/dtm/tree"
	"github.com/spf13/afero"
	"gonum.org/v1/gonum/mat"
)

// A Job is a branch length estimation request.
type Job struct {
	// Fs is the file system of the working directory.
	Fs afero.Fs

	// Dir is the working directory.
	Dir string

	// Tree is the path of a file,
	// inside the working directory,
	// with the topology in Newick format.
	Tree string

	// Alignment is the path of the character data,
	// if any.
	Alignment string

	// Topology is the tree
	// to be used by the estimator.
	Topology *tree.Tree
}

// An Estimator estimates the branch lengths
// of a fixed topology.
type Estimator interface {
	Estimate(ctx context.Context, job Job) (*tree.Tree, error)
}

// EstimatorFunc is an adapter
// to use a function as an Estimator.
type EstimatorFunc func(ctx context.Context, job Job) (*tree.Tree, error)

// Estimate calls f(ctx, job).
func (f EstimatorFunc) Estimate(ctx context.Context, job Job) (*tree.Tree, error) {
	return f(ctx, job)
}

// Command is an estimator that runs an external program.
//
// Args is a template of the program arguments,
// in which the following placeholders are replaced:
//
//   - {tree}, the path of the topology file
//   - {alignment}, the path of the character data
//   - {output}, the path of the output file
//   - {dir}, the working directory
//
// The program must write the tree with branch lengths
// in the output file,
// or in the standard output
// if {output} is not used.
// The program runs in the working directory,
// so the working directory must be in the OS file system.
type Command struct {
	Path string
	Args []string

	// Logf is used to report the command execution.
	// If nil,
	// nothing is reported.
	Logf func(format string, v ...any)
}

// waitDelay is the time to wait for the output pipes
// after the program is killed.
const waitDelay = time.Second

// Estimate runs the external program.
// When the context is done,
// the program and any process it started are killed.
func (c Command) Estimate(ctx context.Context, job Job) (*tree.Tree, error) {
	logf := c.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}
	if _, ok := job.Fs.(*afero.OsFs); !ok {
		return nil, errors.New("command estimator requires the OS file system")
	}

	out := filepath.Join(job.Dir, "estimated.tre")
	r := strings.NewReplacer(
		"{tree}", job.Tree,
		"{alignment}", job.Alignment,
		"{output}", out,
		"{dir}", job.Dir,
	)
	useOutput := false
	args := make([]string, 0, len(c.Args))
	for _, a := range c.Args {
		if strings.Contains(a, "{output}") {
			useOutput = true
		}
		args = append(args, r.Replace(a))
	}

	cmd := exec.CommandContext(ctx, c.Path, args...)
	cmd.Dir = job.Dir
	setGroup(cmd)
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logf("running: %s", strings.Join(cmd.Args, " "))
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			logf("cmd error:\n%s", msg)
		}
		return nil, fmt.Errorf("%s: %w", filepath.Base(c.Path), err)
	}

	data := stdout.Bytes()
	if useOutput {
		var err error
		data, err = afero.ReadFile(job.Fs, out)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: output file %q not found", ErrTransient, out)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransient, err)
		}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty output", ErrTransient)
	}

	t, err := tree.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("malformed output: %v", err)
	}
	return t, nil
}

// LeastSquares is an estimator that fits branch lengths
// to a dissimilarity matrix
// using ordinary least squares.
// Negative lengths are set to zero.
//
// As the model includes every pair of terminals,
// it is intended for small to moderate data sets.
type LeastSquares struct {
	Matrix *distmat.Matrix
}

// Estimate fits the branch lengths of the topology.
func (ls LeastSquares) Estimate(ctx context.Context, job Job) (*tree.Tree, error) {
	t := job.Topology.Clone()
	root := t.Root()
	if root < 0 {
		return nil, errors.New("empty topology")
	}

	// an edge is identified by the node below it;
	// the two edges of a bifurcating root
	// are a single edge of the unrooted tree
	vars := make(map[int]int)
	nv := 0
	rootChildren := t.Children(root)
	splitRoot := len(rootChildren) == 2
	for _, id := range t.Nodes() {
		if id == root {
			continue
		}
		if splitRoot && id == rootChildren[1] {
			vars[id] = vars[rootChildren[0]]
			continue
		}
		vars[id] = nv
		nv++
	}

	var terms []int
	for _, id := range t.Nodes() {
		if t.IsTerm(id) && id != root {
			terms = append(terms, id)
		}
	}
	if nv == 0 || len(terms) < 2 {
		return t, nil
	}

	// path from the root to each terminal
	paths := make([][]int, len(terms))
	for i, id := range terms {
		var p []int
		for n := id; n != root; n = t.Parent(n) {
			p = append(p, n)
		}
		slices.Reverse(p)
		paths[i] = p
	}

	// normal equations
	ata := mat.NewSymDense(nv, nil)
	atb := mat.NewVecDense(nv, nil)
	for i := range terms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ri, _ := ls.Matrix.Index(t.Taxon(terms[i]))
		for j := i + 1; j < len(terms); j++ {
			rj, _ := ls.Matrix.Index(t.Taxon(terms[j]))
			d := ls.Matrix.At(ri, rj)

			pi, pj := paths[i], paths[j]
			c := 0
			for c < len(pi) && c < len(pj) && pi[c] == pj[c] {
				c++
			}
			var edges []int
			for _, n := range pi[c:] {
				edges = append(edges, vars[n])
			}
			for _, n := range pj[c:] {
				edges = append(edges, vars[n])
			}
			slices.Sort(edges)
			edges = slices.Compact(edges)

			for a, e := range edges {
				atb.SetVec(e, atb.AtVec(e)+d)
				for _, f := range edges[a:] {
					ata.SetSym(e, f, ata.At(e, f)+1)
				}
			}
		}
	}

	var sol mat.VecDense
	if err := sol.SolveVec(ata, atb); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("least squares: %v", err)
		}
	}

	for id, v := range vars {
		l := sol.AtVec(v)
		if splitRoot && (id == rootChildren[0] || id == rootChildren[1]) {
			l /= 2
		}
		t.SetLength(id, clampLength(l))
	}
	return t, nil
}

func clampLength(l float64) float64 {
	if l < 0 || math.IsNaN(l) {
		return 0
	}
	return l
}
