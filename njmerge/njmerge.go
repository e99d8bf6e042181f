// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package njmerge implements NJMerge,
// a neighbor joining method
// constrained by a set of subset trees
// defined on disjoint taxon sets.
//
// At each step,
// the pair of clusters with the lowest neighbor joining value
// is joined,
// unless the join violates a subset tree.
// In that case,
// the next best pair is tried.
//
// A join is valid if the new cluster is compatible
// with the subset trees it meets,
// and the clusters that include taxa of several subsets
// keep the subsets linked as a forest:
// two clusters can share at most one subset,
// and two clusters without a shared subset
// can only be joined if no other cluster
// already links their subsets.
// Under this rule,
// a valid join always exists,
// so the merge only fails
// when the number of examined candidates is bounded.
// The resulting tree includes every taxon
// and refines each subset tree.
package njmerge

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/bits-and-blooms/bitset"
	"github.com/js-arias/dtm/constraint"
	"github.com/js-arias/dtm/distmat"
	"github.com/js-arias/dtm/tree"
	"gonum.org/v1/gonum/mat"
)

// Options are the options for a merge.
type Options struct {
	// MaxCandidates is the maximum number of pairs
	// examined at each step.
	// If 0,
	// all pairs can be examined.
	MaxCandidates int

	// Logf is used to report the progress of the merge.
	// If nil,
	// nothing is reported.
	Logf func(format string, v ...any)
}

// A Join is a step of the merge.
type Join struct {
	Step int

	// Clusters joined,
	// identified by its smallest taxon.
	A, B string

	// Neighbor joining value of the pair.
	Q float64

	// Rank of the accepted pair
	// in the order of candidates
	// (0 is the best pair).
	Rank int

	// Number of taxa in the new cluster.
	Size int
}

// Result is the result of a merge.
type Result struct {
	Tree  *tree.Tree
	Trace []Join
}

// InfeasibleMergeError is returned when
// no pair of clusters can be joined
// without violating a subset tree.
type InfeasibleMergeError struct {
	Step     int
	Clusters []string // smallest taxon of each active cluster
	Tried    int
}

func (e *InfeasibleMergeError) Error() string {
	return fmt.Sprintf("njmerge: step %d: no valid join among %d clusters (%d candidates tried)", e.Step, len(e.Clusters), e.Tried)
}

type cluster struct {
	node  int
	label string
	size  int
	set   *bitset.BitSet
	subs  *bitset.BitSet // subset trees met by the cluster
}

type candidate struct {
	i, j int // slots
	q    float64
}

// Merge builds a tree using NJMerge
// from a constraint graph
// and a dissimilarity matrix.
//
// The tree is unrooted
// (the last three clusters are joined at the root),
// and it has branch lengths.
func Merge(g *constraint.Graph, m *distmat.Matrix, opts Options) (*Result, error) {
	logf := opts.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}

	taxa := g.Taxa()
	sub, err := m.Sub(taxa)
	if err != nil {
		return nil, fmt.Errorf("njmerge: %w", err)
	}
	n := len(taxa)
	d := mat.NewSymDense(n, nil)
	d.CopySym(sub.Sym())

	t := tree.New("")
	cs := make(clusters, n)
	x := g.Index()
	for i, tx := range taxa {
		s, _ := g.Subset(tx)
		subs := bitset.New(uint(g.Len()))
		subs.Set(uint(s))
		cs[i] = &cluster{
			node:  t.AddTerm(tx),
			label: tx,
			size:  1,
			set:   x.Set(tx),
			subs:  subs,
		}
	}
	ln := newLinks(g.Len())

	res := &Result{Tree: t}
	if n == 1 {
		t.SetRoot(cs[0].node)
		return res, nil
	}

	active := make([]int, n)
	for i := range active {
		active[i] = i
	}

	r := make([]float64, n)
	for step := 1; len(active) > 3; step++ {
		k := len(active)
		for _, i := range active {
			r[i] = 0
			for _, j := range active {
				r[i] += d.At(i, j)
			}
		}

		q := func(i, j int) float64 {
			return float64(k-2)*d.At(i, j) - r[i] - r[j]
		}

		// fast path: the best pair is a valid join
		best := candidate{i: -1}
		for a, i := range active {
			for _, j := range active[a+1:] {
				c := candidate{i: i, j: j, q: q(i, j)}
				if best.i < 0 || cs.less(c, best) {
					best = c
				}
			}
		}

		var chosen candidate
		rank := 0
		if cs.canJoin(g, ln, best.i, best.j) {
			chosen = best
		} else {
			cands := make([]candidate, 0, k*(k-1)/2)
			for a, i := range active {
				for _, j := range active[a+1:] {
					cands = append(cands, candidate{i: i, j: j, q: q(i, j)})
				}
			}
			slices.SortFunc(cands, cs.compare)

			limit := len(cands)
			if opts.MaxCandidates > 0 && opts.MaxCandidates < limit {
				limit = opts.MaxCandidates
			}
			rank = -1
			for p, c := range cands[:limit] {
				if p == 0 {
					continue
				}
				if cs.canJoin(g, ln, c.i, c.j) {
					chosen = c
					rank = p
					break
				}
			}
			if rank < 0 {
				labels := make([]string, 0, k)
				for _, i := range active {
					labels = append(labels, cs[i].label)
				}
				slices.Sort(labels)
				return nil, &InfeasibleMergeError{
					Step:     step,
					Clusters: labels,
					Tried:    limit,
				}
			}
			logf("step %d: best pair rejected, accepted candidate %d (%s, %s)", step, rank, cs[chosen.i].label, cs[chosen.j].label)
		}

		i, j := chosen.i, chosen.j
		dij := d.At(i, j)
		li := dij/2 + (r[i]-r[j])/(2*float64(k-2))
		lj := dij - li

		u := t.AddNode()
		a, b := cs.order(i, j)
		t.Connect(u, cs[a].node)
		t.Connect(u, cs[b].node)
		if a == i {
			t.SetLength(cs[a].node, clamp(li))
			t.SetLength(cs[b].node, clamp(lj))
		} else {
			t.SetLength(cs[a].node, clamp(lj))
			t.SetLength(cs[b].node, clamp(li))
		}

		res.Trace = append(res.Trace, Join{
			Step: step,
			A:    cs[a].label,
			B:    cs[b].label,
			Q:    chosen.q,
			Rank: rank,
			Size: cs[i].size + cs[j].size,
		})

		// the new cluster takes the slot of i
		for _, o := range active {
			if o == i || o == j {
				continue
			}
			d.SetSym(i, o, (d.At(i, o)+d.At(j, o)-dij)/2)
		}
		ln.union(first(cs[i].subs), first(cs[j].subs))
		cs[i] = &cluster{
			node:  u,
			label: cs[a].label,
			size:  cs[i].size + cs[j].size,
			set:   cs[i].set.Union(cs[j].set),
			subs:  cs[i].subs.Union(cs[j].subs),
		}
		cs[j] = nil
		active = slices.DeleteFunc(active, func(o int) bool { return o == j })
	}

	root := t.AddNode()
	if len(active) == 2 {
		a, b := cs.order(active[0], active[1])
		l := clamp(d.At(a, b) / 2)
		for _, c := range []int{a, b} {
			t.Connect(root, cs[c].node)
			t.SetLength(cs[c].node, l)
		}
	} else {
		slices.SortFunc(active, func(a, b int) int {
			return strings.Compare(cs[a].label, cs[b].label)
		})
		for p, c := range active {
			o1 := active[(p+1)%3]
			o2 := active[(p+2)%3]
			l := (d.At(c, o1) + d.At(c, o2) - d.At(o1, o2)) / 2
			t.Connect(root, cs[c].node)
			t.SetLength(cs[c].node, clamp(l))
		}
	}
	t.SetRoot(root)
	logf("merged %d taxa in %d steps", n, len(res.Trace))
	return res, nil
}

type clusters []*cluster

// order returns the slots of two clusters
// sorted by the cluster label.
func (cs clusters) order(i, j int) (int, int) {
	if cs[j].label < cs[i].label {
		return j, i
	}
	return i, j
}

// canJoin returns true if the clusters at slots i and j
// can be joined.
func (cs clusters) canJoin(g *constraint.Graph, ln links, i, j int) bool {
	a, b := cs[i], cs[j]
	switch a.subs.IntersectionCardinality(b.subs) {
	case 0:
		if ln.find(first(a.subs)) == ln.find(first(b.subs)) {
			return false
		}
	case 1:
	default:
		return false
	}
	return g.CanJoin(a.set, b.set)
}

func (cs clusters) compare(a, b candidate) int {
	if c := cmp.Compare(a.q, b.q); c != 0 {
		return c
	}
	a1, a2 := cs.order(a.i, a.j)
	b1, b2 := cs.order(b.i, b.j)
	if c := strings.Compare(cs[a1].label, cs[b1].label); c != 0 {
		return c
	}
	return strings.Compare(cs[a2].label, cs[b2].label)
}

func (cs clusters) less(a, b candidate) bool {
	return cs.compare(a, b) < 0
}

// links is a union-find of the subset trees
// connected by the clusters.
type links []int

func newLinks(n int) links {
	ln := make(links, n)
	for i := range ln {
		ln[i] = i
	}
	return ln
}

func (ln links) find(x int) int {
	for ln[x] != x {
		ln[x] = ln[ln[x]]
		x = ln[x]
	}
	return x
}

func (ln links) union(a, b int) {
	a, b = ln.find(a), ln.find(b)
	if a != b {
		ln[b] = a
	}
}

// first returns the first subset tree
// met by a cluster.
func first(subs *bitset.BitSet) int {
	s, _ := subs.NextSet(0)
	return int(s)
}

func clamp(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}
