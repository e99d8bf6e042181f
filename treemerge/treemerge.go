// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package treemerge implements TreeMerge,
// a method that merges a set of subset trees,
// defined on disjoint taxon sets,
// by grafting them along a spanning tree over the subsets,
// and then estimating the branch lengths
// of the resulting tree.
package treemerge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"runtime"
	"slices"
	"time"

	"github.com/js-arias/dtm/constraint"
	"github.com/js-arias/dtm/distmat"
	"github.com/js-arias/dtm/tree"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// Engine is a TreeMerge engine.
type Engine struct {
	// Fs is the file system used for the working directory.
	// If nil,
	// the OS file system will be used.
	Fs afero.Fs

	// WorkDir is the directory in which
	// the working directory will be created.
	// If empty,
	// the default directory for temporary files will be used.
	WorkDir string

	// If Keep is true,
	// the working directory is not removed.
	Keep bool

	// Estimator is the branch length estimator.
	// If nil,
	// branch lengths are estimated by least squares.
	Estimator Estimator

	// Alignment is the path of the character data
	// passed to the estimator.
	Alignment string

	// Timeout is the maximum time used by the estimator.
	// If 0,
	// there is no timeout.
	Timeout time.Duration

	// CPU is the number of goroutines
	// used to search the attachment edges.
	// If 0,
	// the number of CPUs will be used.
	CPU int

	// Logf is used to report the progress of the merge.
	// If nil,
	// nothing is reported.
	Logf func(format string, v ...any)
}

// Result is the result of a merge.
type Result struct {
	Tree *tree.Tree

	// Lengths is true if the branch lengths of the tree
	// were estimated.
	Lengths bool

	// Spanning tree used as scaffold.
	Spanning *Spanning

	// WorkDir is the path of the working directory,
	// if it was kept.
	WorkDir string
}

// Merge merges the subset trees of a constraint graph.
//
// If start is not nil,
// it is used to build the spanning tree over the subsets,
// otherwise the minimum spanning tree over the subsets
// is used.
//
// If the branch length estimation fails,
// the result is returned with the error,
// and with the Lengths field set to false;
// in that case the tree has no branch lengths.
func (e *Engine) Merge(ctx context.Context, g *constraint.Graph, m *distmat.Matrix, start *tree.Tree) (res *Result, err error) {
	logf := e.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}
	afs := e.Fs
	if afs == nil {
		afs = afero.NewOsFs()
	}

	var span *Spanning
	if start != nil {
		span, err = FromTree(g, start)
		if err != nil {
			return nil, err
		}
	} else {
		span = MinSpanning(g)
		if err := span.validate(); err != nil {
			return nil, err
		}
	}
	logf("spanning tree: %d subsets, %d edges", span.K, len(span.Edges))

	if e.WorkDir != "" {
		if err := afs.MkdirAll(e.WorkDir, 0755); err != nil {
			return nil, fmt.Errorf("treemerge: unable to create directory %q: %v", e.WorkDir, err)
		}
	}
	dir, err := afero.TempDir(afs, e.WorkDir, "treemerge-")
	if err != nil {
		return nil, fmt.Errorf("treemerge: unable to create working directory: %v", err)
	}
	defer func() {
		if e.Keep {
			if res != nil {
				res.WorkDir = dir
			}
			logf("working directory: %s", dir)
			return
		}
		if rmErr := afs.RemoveAll(dir); rmErr != nil {
			logf("unable to remove working directory %q: %v", dir, rmErr)
		}
	}()

	topo, err := e.assemble(afs, dir, g, m, span)
	if err != nil {
		return nil, err
	}
	res = &Result{
		Tree:     topo,
		Spanning: span,
	}

	est := e.Estimator
	if est == nil {
		est = LeastSquares{Matrix: m}
	}
	lt, err := e.estimate(ctx, afs, dir, est, topo)
	if errors.Is(err, ErrTransient) {
		logf("estimator failed: %v; retrying", err)
		var retry string
		retry, err = afero.TempDir(afs, dir, "retry-")
		if err != nil {
			return res, &BranchLengthEstimationError{Err: err}
		}
		lt, err = e.estimate(ctx, afs, retry, est, topo)
	}
	if errors.Is(err, ErrTransient) {
		err = &BranchLengthEstimationError{Err: err}
	}
	if err != nil {
		clearLengths(res.Tree)
		return res, err
	}

	lt.SetName(topo.Name())
	res.Tree = lt
	res.Lengths = true
	return res, nil
}

// assemble grafts the subset trees
// along the edges of the spanning tree.
func (e *Engine) assemble(afs afero.Fs, dir string, g *constraint.Graph, m *distmat.Matrix, span *Spanning) (*tree.Tree, error) {
	logf := e.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}

	gr := newGraph()
	comps := make([]*component, g.Len())
	for i := range comps {
		comps[i] = gr.add(g.Tree(i))
	}

	// attachments of each spanning edge:
	// at 2*i the attachment in A for B,
	// and at 2*i+1 the attachment in B for A.
	atts := make([]attachment, 2*len(span.Edges))
	cpu := e.CPU
	if cpu <= 0 {
		cpu = runtime.NumCPU()
	}
	var eg errgroup.Group
	eg.SetLimit(cpu)
	for i, ed := range span.Edges {
		for s, pair := range [][2]int{{ed.A, ed.B}, {ed.B, ed.A}} {
			eg.Go(func() error {
				at, err := attach(gr, comps[pair[0]], comps[pair[1]].taxa, m)
				if err != nil {
					return fmt.Errorf("treemerge: attachment of %q into %q: %w", g.Name(pair[1]), g.Name(pair[0]), err)
				}
				atts[2*i+s] = at
				return nil
			})
		}
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	root := comps[0].leaves[comps[0].taxa[0]]
	for step, ed := range span.order() {
		i := slices.Index(span.Edges, Edge{A: min(ed.A, ed.B), B: max(ed.A, ed.B)})
		in, out := atts[2*i], atts[2*i+1]
		if ed.A != span.Edges[i].A {
			in, out = out, in
		}
		p := gr.attachAt(in)
		c := gr.attachAt(out)
		gr.connect(p, c, 0, false)

		t := gr.toTree(fmt.Sprintf("graft-%03d", step+1), root)
		name := filepath.Join(dir, t.Name()+".tre")
		if err := writeTree(afs, name, t); err != nil {
			return nil, err
		}
		logf("graft %d: %q into %q", step+1, g.Name(ed.B), g.Name(ed.A))
	}

	return gr.toTree("treemerge", root), nil
}

// estimate calls the estimator
// and validates the result.
func (e *Engine) estimate(ctx context.Context, afs afero.Fs, dir string, est Estimator, topo *tree.Tree) (*tree.Tree, error) {
	name := filepath.Join(dir, "topology.tre")
	if err := writeTree(afs, name, topo); err != nil {
		return nil, &BranchLengthEstimationError{Err: err}
	}

	cctx := ctx
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	lt, err := est.Estimate(cctx, Job{
		Fs:        afs,
		Dir:       dir,
		Tree:      name,
		Alignment: e.Alignment,
		Topology:  topo.Clone(),
	})
	if err != nil {
		// only the timeout of the engine is reported as a timeout
		if e.Timeout > 0 && ctx.Err() == nil && errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return nil, &BranchLengthEstimationTimeout{Timeout: e.Timeout}
		}
		if errors.Is(err, ErrTransient) {
			return nil, err
		}
		return nil, &BranchLengthEstimationError{Err: err}
	}
	if err := validLengths(topo, lt); err != nil {
		return nil, &BranchLengthEstimationError{Err: err}
	}
	return lt, nil
}

// validLengths checks that a tree returned by an estimator
// has the same topology as the merged tree,
// and that all its branch lengths
// are defined and valid.
func validLengths(topo, lt *tree.Tree) error {
	if lt == nil || lt.Root() < 0 {
		return errors.New("estimator returned an empty tree")
	}
	if !slices.Equal(topo.Terms(), lt.Terms()) {
		return errors.New("estimator returned a tree with different terminals")
	}
	if !tree.SameTopology(topo, lt) {
		return errors.New("estimator returned a tree with a different topology")
	}
	for _, id := range lt.Nodes() {
		if lt.IsRoot(id) {
			continue
		}
		l, ok := lt.Length(id)
		if !ok {
			return errors.New("estimator returned a tree without branch lengths")
		}
		if l < 0 || math.IsNaN(l) || math.IsInf(l, 0) {
			return fmt.Errorf("estimator returned an invalid branch length: %v", l)
		}
	}
	return nil
}

// clearLengths removes all the branch lengths of a tree.
func clearLengths(t *tree.Tree) {
	for _, id := range t.Nodes() {
		t.ClearLength(id)
	}
}

func writeTree(afs afero.Fs, name string, t *tree.Tree) error {
	f, err := afs.Create(name)
	if err != nil {
		return err
	}
	if err := t.WriteNewick(f); err != nil {
		f.Close()
		return fmt.Errorf("on file %q: %v", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("on file %q: %v", name, err)
	}
	return nil
}
