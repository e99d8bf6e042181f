// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package treemerge_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/js-arias/dtm/constraint"
	"github.com/js-arias/dtm/distmat"
	"github.com/js-arias/dtm/tree"
	"github.com/js-arias/dtm/treemerge"
	"github.com/spf13/afero"
)

const sevenTaxa = "(((a:1,b:2):1,(c:1,d:1):2):1,(e:2,(f:1,g:1):1):1);"

const eightTaxa = "(((a:1,b:1):1,(c:1,d:1):1):1,((e:1,f:1):1,(g:1,h:1):1):1);"

func TestMerge(t *testing.T) {
	subsets := parseTrees(t, "(a,b);", "(c,d);", "(e,(f,g));")
	_, m := treeMatrix(t, sevenTaxa)
	g := buildGraph(t, subsets, m)

	fs := afero.NewMemMapFs()
	e := &treemerge.Engine{
		Fs:        fs,
		WorkDir:   "/work",
		Keep:      true,
		Estimator: treemerge.EstimatorFunc(unitLengths),
		Timeout:   time.Second,
	}
	res, err := e.Merge(context.Background(), g, m, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testMerged(t, res.Tree, subsets)
	if !res.Lengths {
		t.Errorf("lengths: expecting estimated lengths")
	}
	if !res.Tree.HasLengths() {
		t.Errorf("lengths: tree %s without lengths", res.Tree.Newick())
	}
	want := []treemerge.Edge{{A: 0, B: 1}, {A: 0, B: 2}}
	if !reflect.DeepEqual(res.Spanning.Edges, want) {
		t.Errorf("spanning: got %v, want %v", res.Spanning.Edges, want)
	}

	if res.WorkDir == "" {
		t.Fatalf("working directory: expecting a kept directory")
	}
	for _, f := range []string{"graft-001.tre", "graft-002.tre", "topology.tre"} {
		name := filepath.Join(res.WorkDir, f)
		if ok, _ := afero.Exists(fs, name); !ok {
			t.Errorf("working directory: file %q not found", name)
		}
	}

	// the merge is deterministic
	e.Keep = false
	again, err := e.Merge(context.Background(), g, m, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := again.Tree.Newick(); got != res.Tree.Newick() {
		t.Errorf("determinism: got %s, want %s", got, res.Tree.Newick())
	}
	if again.WorkDir != "" {
		t.Errorf("working directory: got %q, want no directory", again.WorkDir)
	}
}

func TestMergeLeastSquares(t *testing.T) {
	subsets := parseTrees(t, "((a,b),(c,d));", "((e,f),(g,h));")
	want, m := treeMatrix(t, eightTaxa)
	g := buildGraph(t, subsets, m)

	fs := afero.NewMemMapFs()
	e := &treemerge.Engine{
		Fs:      fs,
		WorkDir: "/work",
	}
	res, err := e.Merge(context.Background(), g, m, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testMerged(t, res.Tree, subsets)
	if !tree.SameTopology(res.Tree, want) {
		t.Errorf("merge: got %s, want %s", res.Tree.Newick(), want.Newick())
	}
	if !res.Lengths {
		t.Fatalf("lengths: expecting estimated lengths")
	}

	// the matrix is additive,
	// so the lengths reproduce the matrix
	got := pathMatrix(t, res.Tree)
	for _, a := range m.Taxa() {
		for _, b := range m.Taxa() {
			w, _ := m.Dist(a, b)
			d, _ := got.Dist(a, b)
			if math.Abs(d-w) > 1e-6 {
				t.Errorf("lengths: %s-%s: got %.6f, want %.6f", a, b, d, w)
			}
		}
	}

	files, err := afero.ReadDir(fs, "/work")
	if err != nil {
		t.Fatalf("unable to read working directory: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("working directory: got %d files, want 0", len(files))
	}
}

func TestEstimatorFailure(t *testing.T) {
	subsets := parseTrees(t, "(a,b);", "(c,d);", "(e,(f,g));")
	_, m := treeMatrix(t, sevenTaxa)
	g := buildGraph(t, subsets, m)

	tests := map[string]treemerge.EstimatorFunc{
		"error": func(ctx context.Context, job treemerge.Job) (*tree.Tree, error) {
			return nil, errors.New("estimator crashed")
		},
		"topology": func(ctx context.Context, job treemerge.Job) (*tree.Tree, error) {
			return tree.Parse("(a:1,c:1,(b:1,(d:1,(e:1,(f:1,g:1):1):1):1):1);")
		},
		"negative": func(ctx context.Context, job treemerge.Job) (*tree.Tree, error) {
			lt, _ := unitLengths(ctx, job)
			ch := lt.Children(lt.Root())
			lt.SetLength(ch[0], -1)
			return lt, nil
		},
		"missing": func(ctx context.Context, job treemerge.Job) (*tree.Tree, error) {
			return job.Topology, nil
		},
	}

	for name, est := range tests {
		fs := afero.NewMemMapFs()
		e := &treemerge.Engine{
			Fs:        fs,
			WorkDir:   "/work",
			Estimator: est,
		}
		res, err := e.Merge(context.Background(), g, m, nil)
		var be *treemerge.BranchLengthEstimationError
		if !errors.As(err, &be) {
			t.Errorf("%s: got error %v, want %T", name, err, be)
			continue
		}
		if res == nil {
			t.Errorf("%s: expecting a result", name)
			continue
		}
		if res.Lengths {
			t.Errorf("%s: lengths: expecting no estimated lengths", name)
		}
		testNoLengths(t, name, res.Tree)
		testMerged(t, res.Tree, subsets)

		files, _ := afero.ReadDir(fs, "/work")
		if len(files) != 0 {
			t.Errorf("%s: working directory: got %d files, want 0", name, len(files))
		}
	}
}

func TestEstimatorTimeout(t *testing.T) {
	subsets := parseTrees(t, "(a,b);", "(c,d);", "(e,(f,g));")
	_, m := treeMatrix(t, sevenTaxa)
	g := buildGraph(t, subsets, m)

	e := &treemerge.Engine{
		Fs:      afero.NewMemMapFs(),
		WorkDir: "/work",
		Estimator: treemerge.EstimatorFunc(func(ctx context.Context, job treemerge.Job) (*tree.Tree, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}),
		Timeout: 10 * time.Millisecond,
	}
	res, err := e.Merge(context.Background(), g, m, nil)
	var te *treemerge.BranchLengthEstimationTimeout
	if !errors.As(err, &te) {
		t.Fatalf("timeout: got error %v, want %T", err, te)
	}
	var be *treemerge.BranchLengthEstimationError
	if errors.As(err, &be) {
		t.Errorf("timeout: the error should not be %T", be)
	}
	if res == nil || res.Lengths {
		t.Fatalf("timeout: expecting a result without estimated lengths")
	}
	testNoLengths(t, "timeout", res.Tree)
	testMerged(t, res.Tree, subsets)

	// the deadline of the caller is not a timeout of the engine
	for name, timeout := range map[string]time.Duration{
		"no timeout":   0,
		"long timeout": time.Minute,
	} {
		e.Timeout = timeout
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		_, err := e.Merge(ctx, g, m, nil)
		cancel()
		if errors.As(err, &te) {
			t.Errorf("%s: got %v, want a non timeout error", name, err)
		}
		if !errors.As(err, &be) {
			t.Errorf("%s: got error %v, want %T", name, err, be)
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("%s: got error %v, want %v", name, err, context.DeadlineExceeded)
		}
	}
}

func TestEstimatorRetry(t *testing.T) {
	subsets := parseTrees(t, "(a,b);", "(c,d);", "(e,(f,g));")
	_, m := treeMatrix(t, sevenTaxa)
	g := buildGraph(t, subsets, m)

	var dirs []string
	e := &treemerge.Engine{
		Fs:      afero.NewMemMapFs(),
		WorkDir: "/work",
		Estimator: treemerge.EstimatorFunc(func(ctx context.Context, job treemerge.Job) (*tree.Tree, error) {
			dirs = append(dirs, job.Dir)
			if len(dirs) == 1 {
				return nil, fmt.Errorf("%w: empty output", treemerge.ErrTransient)
			}
			return unitLengths(ctx, job)
		}),
	}
	res, err := e.Merge(context.Background(), g, m, nil)
	if err != nil {
		t.Fatalf("retry: unexpected error: %v", err)
	}
	if !res.Lengths {
		t.Errorf("retry: expecting estimated lengths")
	}
	if len(dirs) != 2 {
		t.Fatalf("retry: got %d calls, want %d", len(dirs), 2)
	}
	if dirs[0] == dirs[1] {
		t.Errorf("retry: expecting a fresh directory")
	}

	// only one retry
	calls := 0
	e.Estimator = treemerge.EstimatorFunc(func(ctx context.Context, job treemerge.Job) (*tree.Tree, error) {
		calls++
		return nil, fmt.Errorf("%w: output not found", treemerge.ErrTransient)
	})
	_, err = e.Merge(context.Background(), g, m, nil)
	var be *treemerge.BranchLengthEstimationError
	if !errors.As(err, &be) {
		t.Errorf("retry: got error %v, want %T", err, be)
	}
	if calls != 2 {
		t.Errorf("retry: got %d calls, want %d", calls, 2)
	}
}

func TestFromTree(t *testing.T) {
	subsets := parseTrees(t, "(a,b);", "(c,d);", "(e,(f,g));")
	_, m := treeMatrix(t, sevenTaxa)
	g := buildGraph(t, subsets, m)
	want := []treemerge.Edge{{A: 0, B: 1}, {A: 0, B: 2}}

	for name, s := range map[string]string{
		"taxa":    sevenTaxa,
		"subsets": "((subset-1,subset-2),subset-3);",
	} {
		start, err := tree.Parse(s)
		if err != nil {
			t.Fatalf("%s: unable to parse tree: %v", name, err)
		}
		span, err := treemerge.FromTree(g, start)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", name, err)
			continue
		}
		if !reflect.DeepEqual(span.Edges, want) {
			t.Errorf("%s: got %v, want %v", name, span.Edges, want)
		}
	}

	if got := treemerge.MinSpanning(g); !reflect.DeepEqual(got.Edges, want) {
		t.Errorf("minimum spanning tree: got %v, want %v", got.Edges, want)
	}
}

func TestMergeStartTree(t *testing.T) {
	subsets := parseTrees(t, "(a,b);", "(c,d);", "(e,(f,g));")
	_, m := treeMatrix(t, sevenTaxa)
	g := buildGraph(t, subsets, m)

	for name, s := range map[string]string{
		"taxa":    sevenTaxa,
		"subsets": "((subset-1,subset-2),subset-3);",
	} {
		start, err := tree.Parse(s)
		if err != nil {
			t.Fatalf("%s: unable to parse tree: %v", name, err)
		}
		e := &treemerge.Engine{
			Fs:      afero.NewMemMapFs(),
			WorkDir: "/work",
		}
		res, err := e.Merge(context.Background(), g, m, start)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", name, err)
			continue
		}
		if !res.Lengths {
			t.Errorf("%s: expecting estimated lengths", name)
		}
		if !res.Tree.HasLengths() {
			t.Errorf("%s: tree %s without lengths", name, res.Tree.Newick())
		}
		if n := len(res.Tree.Terms()); n != 7 {
			t.Errorf("%s: got %d terminals, want %d", name, n, 7)
		}
		testMerged(t, res.Tree, subsets)
	}
}

func TestSpanningMismatch(t *testing.T) {
	subsets := parseTrees(t, "(a,b);", "(c,d);", "(e,(f,g));")
	_, m := treeMatrix(t, sevenTaxa)
	g := buildGraph(t, subsets, m)

	for name, s := range map[string]string{
		"interleaved": "((a,c),(b,d),(e,(f,g)));",
		"terminals":   "(a,b,x);",
	} {
		start, err := tree.Parse(s)
		if err != nil {
			t.Fatalf("%s: unable to parse tree: %v", name, err)
		}
		e := &treemerge.Engine{
			Fs:        afero.NewMemMapFs(),
			Estimator: treemerge.EstimatorFunc(unitLengths),
		}
		res, err := e.Merge(context.Background(), g, m, start)
		var se *treemerge.SpanningTreeMismatchError
		if !errors.As(err, &se) {
			t.Errorf("%s: got error %v, want %T", name, err, se)
		}
		if res != nil {
			t.Errorf("%s: expecting no result", name)
		}
	}
}

func TestLeastSquares(t *testing.T) {
	want, m := treeMatrix(t, sevenTaxa)
	topo := want.Clone()
	for _, id := range topo.Nodes() {
		topo.ClearLength(id)
	}

	ls := treemerge.LeastSquares{Matrix: m}
	lt, err := ls.Estimate(context.Background(), treemerge.Job{Topology: topo})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !lt.HasLengths() {
		t.Fatalf("expecting lengths")
	}

	// the root edges are merged,
	// so compare the path lengths
	got := pathMatrix(t, lt)
	for _, a := range m.Taxa() {
		for _, b := range m.Taxa() {
			w, _ := m.Dist(a, b)
			d, _ := got.Dist(a, b)
			if math.Abs(d-w) > 1e-6 {
				t.Errorf("%s-%s: got %.6f, want %.6f", a, b, d, w)
			}
		}
	}
}

func testNoLengths(t testing.TB, name string, tr *tree.Tree) {
	t.Helper()

	for _, id := range tr.Nodes() {
		if _, ok := tr.Length(id); ok {
			t.Errorf("%s: tree %s: expecting no branch lengths", name, tr.Newick())
			return
		}
	}
}

func unitLengths(ctx context.Context, job treemerge.Job) (*tree.Tree, error) {
	t := job.Topology.Clone()
	for _, id := range t.Nodes() {
		if !t.IsRoot(id) {
			t.SetLength(id, 1)
		}
	}
	return t, nil
}

func testMerged(t testing.TB, merged *tree.Tree, subsets []*tree.Tree) {
	t.Helper()

	var all []string
	for _, s := range subsets {
		all = append(all, s.Terms()...)
	}
	x := tree.NewIndex(all)
	if got := merged.Terms(); !reflect.DeepEqual(got, x.Names()) {
		t.Errorf("terms: got %v, want %v", got, x.Names())
	}
	for i, s := range subsets {
		if !tree.Refines(merged, s) {
			t.Errorf("tree %s does not refine subset tree %d %s", merged.Newick(), i, s.Newick())
		}
	}
}

func buildGraph(t testing.TB, subsets []*tree.Tree, m *distmat.Matrix) *constraint.Graph {
	t.Helper()

	g, err := constraint.Build(subsets, m)
	if err != nil {
		t.Fatalf("unable to build constraint graph: %v", err)
	}
	return g
}

func parseTrees(t testing.TB, trees ...string) []*tree.Tree {
	t.Helper()

	var ts []*tree.Tree
	for _, s := range trees {
		tr, err := tree.Parse(s)
		if err != nil {
			t.Fatalf("unable to parse %q: %v", s, err)
		}
		ts = append(ts, tr)
	}
	return ts
}

func treeMatrix(t testing.TB, s string) (*tree.Tree, *distmat.Matrix) {
	t.Helper()

	tr, err := tree.Parse(s)
	if err != nil {
		t.Fatalf("unable to parse %q: %v", s, err)
	}
	return tr, pathMatrix(t, tr)
}

// pathMatrix returns the matrix of path lengths
// between the terminals of a tree.
func pathMatrix(t testing.TB, tr *tree.Tree) *distmat.Matrix {
	t.Helper()

	depth := make(map[int]float64)
	for _, id := range tr.Nodes() {
		if tr.IsRoot(id) {
			continue
		}
		l, _ := tr.Length(id)
		depth[id] = depth[tr.Parent(id)] + l
	}

	terms := tr.Terms()
	m, err := distmat.New(terms)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, a := range terms {
		na, _ := tr.TaxNode(a)
		anc := make(map[int]bool)
		for id := na; id >= 0; id = tr.Parent(id) {
			anc[id] = true
		}
		for _, b := range terms[i+1:] {
			nb, _ := tr.TaxNode(b)
			c := nb
			for !anc[c] {
				c = tr.Parent(c)
			}
			if err := m.Set(a, b, depth[na]+depth[nb]-2*depth[c]); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
	}
	return m
}
