// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package merge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/js-arias/dtm/constraint"
	"github.com/js-arias/dtm/distmat"
	"github.com/js-arias/dtm/njmerge"
	"github.com/js-arias/dtm/project"
	"github.com/js-arias/dtm/tree"
	"github.com/js-arias/dtm/treemerge"
	"github.com/spf13/afero"
)

func TestExitCode(t *testing.T) {
	overlap := &constraint.OverlapError{Taxon: "a", First: 0, Second: 1}
	incomplete := &constraint.IncompleteMatrixError{Missing: []string{"x"}}

	tests := map[string]struct {
		err  error
		want int
	}{
		"nil":        {nil, 0},
		"generic":    {errors.New("file not found"), exitGeneric},
		"overlap":    {overlap, exitOverlap},
		"incomplete": {incomplete, exitIncomplete},
		"both":       {multierror.Append(nil, overlap, incomplete), exitOverlap},
		"infeasible": {&njmerge.InfeasibleMergeError{Step: 1}, exitInfeasible},
		"spanning":   {&treemerge.SpanningTreeMismatchError{Reason: "cycle"}, exitSpanning},
		"lengths":    {&treemerge.BranchLengthEstimationError{Err: errors.New("crash")}, exitLengths},
		"timeout":    {&treemerge.BranchLengthEstimationTimeout{Timeout: time.Second}, exitTimeout},
		"wrapped":    {fmt.Errorf("merge: %w", &treemerge.BranchLengthEstimationTimeout{}), exitTimeout},
		"deadline": {
			err:  &treemerge.BranchLengthEstimationError{Err: context.DeadlineExceeded},
			want: exitLengths,
		},
	}

	for name, test := range tests {
		if got := exitCode(test.err); got != test.want {
			t.Errorf("%s: got %d, want %d", name, got, test.want)
		}
	}
}

func TestTreeMergeOutput(t *testing.T) {
	subsets := make([]*tree.Tree, 0, 2)
	for _, s := range []string{"((a,b),c);", "((d,e),f);"} {
		tr, err := tree.Parse(s)
		if err != nil {
			t.Fatalf("unable to parse %q: %v", s, err)
		}
		subsets = append(subsets, tr)
	}
	taxa := []string{"a", "b", "c", "d", "e", "f"}
	m, err := distmat.New(taxa)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, a := range taxa {
		for j, b := range taxa[i+1:] {
			m.Set(a, b, float64(j+1))
		}
	}
	g, err := constraint.Build(subsets, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := map[string]struct {
		est     treemerge.EstimatorFunc
		timeout time.Duration
		want    int
	}{
		"failure": {
			est: func(ctx context.Context, job treemerge.Job) (*tree.Tree, error) {
				return nil, errors.New("estimator crashed")
			},
			want: exitLengths,
		},
		"timeout": {
			est: func(ctx context.Context, job treemerge.Job) (*tree.Tree, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			},
			timeout: 10 * time.Millisecond,
			want:    exitTimeout,
		},
	}

	for name, test := range tests {
		e := &treemerge.Engine{
			Fs:        afero.NewMemMapFs(),
			WorkDir:   "/work",
			Estimator: test.est,
			Timeout:   test.timeout,
		}
		out := filepath.Join(t.TempDir(), "merged.tre")
		err := treeMerge(io.Discard, out, e, g, m, nil)
		if got := exitCode(err); got != test.want {
			t.Errorf("%s: got exit code %d (%v), want %d", name, got, err, test.want)
		}

		ts, err := project.ReadTrees(out)
		if err != nil {
			t.Errorf("%s: output: %v", name, err)
			continue
		}
		mt := ts[0]
		if got := mt.Terms(); len(got) != len(taxa) {
			t.Errorf("%s: output: got terminals %v, want %v", name, got, taxa)
		}
		for _, s := range subsets {
			if !tree.Refines(mt, s) {
				t.Errorf("%s: output: tree %s does not refine %s", name, mt.Newick(), s.Newick())
			}
		}
		for _, id := range mt.Nodes() {
			if _, ok := mt.Length(id); ok {
				t.Errorf("%s: output: tree %s with branch lengths", name, mt.Newick())
				break
			}
		}
	}
}
