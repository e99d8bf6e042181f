// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package treemerge

import (
	"fmt"
	"slices"

	"github.com/js-arias/dtm/constraint"
	"github.com/js-arias/dtm/tree"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// An Edge is an edge of a spanning tree
// between two subsets.
// A is always smaller than B.
type Edge struct {
	A, B int
}

// Spanning is a spanning tree over the subsets.
type Spanning struct {
	K     int // number of subsets
	Edges []Edge
}

// Neighbors returns the sorted list of subsets
// adjacent to a given subset.
func (s *Spanning) Neighbors(i int) []int {
	var n []int
	for _, e := range s.Edges {
		switch i {
		case e.A:
			n = append(n, e.B)
		case e.B:
			n = append(n, e.A)
		}
	}
	slices.Sort(n)
	return n
}

// validate checks that the spanning tree
// connects all the subsets.
func (s *Spanning) validate() error {
	if len(s.Edges) != s.K-1 {
		return &SpanningTreeMismatchError{
			Reason: fmt.Sprintf("got %d edges for %d subsets", len(s.Edges), s.K),
		}
	}
	if s.K < 2 {
		return nil
	}

	g := simple.NewUndirectedGraph()
	for i := range s.K {
		g.AddNode(simple.Node(i))
	}
	for _, e := range s.Edges {
		g.SetEdge(simple.Edge{F: simple.Node(e.A), T: simple.Node(e.B)})
	}
	if cc := topo.ConnectedComponents(g); len(cc) != 1 {
		return &SpanningTreeMismatchError{
			Reason: fmt.Sprintf("subsets form %d disconnected groups", len(cc)),
		}
	}
	return nil
}

// order returns the spanning edges
// in the order of a breadth first search
// starting at the first subset.
// Each returned edge has the subset already in the tree
// as A.
func (s *Spanning) order() []Edge {
	var ord []Edge
	seen := make([]bool, s.K)
	seen[0] = true
	queue := []int{0}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for _, n := range s.Neighbors(p) {
			if seen[n] {
				continue
			}
			seen[n] = true
			ord = append(ord, Edge{A: p, B: n})
			queue = append(queue, n)
		}
	}
	return ord
}

// FromTree returns the spanning tree over the subsets
// defined by a starting tree.
//
// The terminals of the starting tree
// must be either all the taxa of the subsets,
// or the names of the subsets.
// The minimal subtree that connects the terminals of each subset
// must not share nodes with the subtree of any other subset.
// Nodes outside any subtree receive the subset
// of the nearest assigned node,
// and the edges between nodes of different subsets
// become the edges of the spanning tree.
func FromTree(g *constraint.Graph, start *tree.Tree) (*Spanning, error) {
	if start.Root() < 0 {
		return nil, &SpanningTreeMismatchError{Reason: "empty starting tree"}
	}

	colour := make(map[int]int)
	terms := start.Terms()
	byName := make(map[string]int, g.Len())
	names := make([]string, 0, g.Len())
	for i := range g.Len() {
		byName[g.Name(i)] = i
		names = append(names, g.Name(i))
	}
	slices.Sort(names)

	switch {
	case slices.Equal(terms, g.Taxa()):
		for _, id := range start.Nodes() {
			if start.IsTerm(id) {
				s, _ := g.Subset(start.Taxon(id))
				colour[id] = s
			}
		}
	case slices.Equal(terms, names):
		for _, id := range start.Nodes() {
			if start.IsTerm(id) {
				colour[id] = byName[start.Taxon(id)]
			}
		}
	default:
		return nil, &SpanningTreeMismatchError{
			Reason: "starting tree terminals are neither the taxa nor the subset names",
		}
	}

	// count the terminals of each subset
	// below each node
	ids := start.Nodes()
	k := g.Len()
	below := make(map[int][]int, len(ids))
	total := make([]int, k)
	for i := len(ids) - 1; i >= 0; i-- {
		id := ids[i]
		cnt := make([]int, k)
		if c, ok := colour[id]; ok && start.IsTerm(id) {
			cnt[c]++
			total[c]++
		}
		for _, ch := range start.Children(id) {
			for c, v := range below[ch] {
				cnt[c] += v
			}
		}
		below[id] = cnt
	}

	// an edge is in the minimal subtree of a subset
	// if it separates terminals of the subset
	for _, id := range ids {
		if start.IsRoot(id) {
			continue
		}
		p := start.Parent(id)
		for c := range k {
			if below[id][c] == 0 || below[id][c] == total[c] {
				continue
			}
			for _, n := range []int{id, p} {
				if prev, ok := colour[n]; ok && prev != c {
					return nil, &SpanningTreeMismatchError{
						Reason: fmt.Sprintf("subsets %q and %q are not separable in the starting tree", g.Name(prev), g.Name(c)),
					}
				}
				colour[n] = c
			}
		}
	}

	// assign the colour of the nearest coloured node
	adj := make(map[int][]int, len(ids))
	for _, id := range ids {
		if start.IsRoot(id) {
			continue
		}
		p := start.Parent(id)
		adj[id] = append(adj[id], p)
		adj[p] = append(adj[p], id)
	}
	var frontier []int
	for _, id := range ids {
		if _, ok := colour[id]; ok {
			frontier = append(frontier, id)
		}
	}
	for len(frontier) > 0 {
		next := make(map[int]int)
		for _, v := range frontier {
			for _, u := range adj[v] {
				if _, ok := colour[u]; ok {
					continue
				}
				if c, ok := next[u]; !ok || colour[v] < c {
					next[u] = colour[v]
				}
			}
		}
		frontier = frontier[:0]
		for u, c := range next {
			colour[u] = c
			frontier = append(frontier, u)
		}
		slices.Sort(frontier)
	}

	s := &Spanning{K: k}
	seen := make(map[Edge]bool)
	for _, id := range ids {
		if start.IsRoot(id) {
			continue
		}
		a, b := colour[id], colour[start.Parent(id)]
		if a == b {
			continue
		}
		e := Edge{A: min(a, b), B: max(a, b)}
		if seen[e] {
			return nil, &SpanningTreeMismatchError{
				Reason: fmt.Sprintf("subsets %q and %q are joined by more than one edge", g.Name(e.A), g.Name(e.B)),
			}
		}
		seen[e] = true
		s.Edges = append(s.Edges, e)
	}
	slices.SortFunc(s.Edges, compareEdges)

	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// MinSpanning returns the minimum spanning tree over the subsets,
// in which the weight of an edge between two subsets
// is the minimum dissimilarity between their taxa.
func MinSpanning(g *constraint.Graph) *Spanning {
	k := g.Len()
	s := &Spanning{K: k}
	if k < 2 {
		return s
	}

	uf := newUnionFind(k)
	for _, p := range g.Pairs() {
		a, _ := g.Subset(p.A)
		b, _ := g.Subset(p.B)
		if a == b {
			continue
		}
		if !uf.union(a, b) {
			continue
		}
		s.Edges = append(s.Edges, Edge{A: min(a, b), B: max(a, b)})
		if len(s.Edges) == k-1 {
			break
		}
	}
	slices.SortFunc(s.Edges, compareEdges)
	return s
}

func compareEdges(a, b Edge) int {
	if a.A != b.A {
		return a.A - b.A
	}
	return a.B - b.B
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{
		parent: make([]int, n),
		rank:   make([]int, n),
	}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

// union joins the sets of x and y.
// It returns false if both are in the same set.
func (uf *unionFind) union(x, y int) bool {
	rx, ry := uf.find(x), uf.find(y)
	if rx == ry {
		return false
	}
	switch {
	case uf.rank[rx] < uf.rank[ry]:
		uf.parent[rx] = ry
	case uf.rank[rx] > uf.rank[ry]:
		uf.parent[ry] = rx
	default:
		uf.parent[ry] = rx
		uf.rank[rx]++
	}
	return true
}
