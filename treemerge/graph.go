// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package treemerge

import (
	"slices"
	"strings"

	"github.com/js-arias/dtm/tree"
)

// A graph is an unrooted tree
// (or a forest)
// used to graft the subset trees.
type graph struct {
	adj    [][]int
	taxon  []string
	dead   []bool
	length map[[2]int]float64

	// current segment of a subdivided edge
	segs map[[2]int][2]int
}

// A component is a subset tree
// loaded into the graph.
type component struct {
	taxa   []string
	leaves map[string]int
	edges  [][2]int
}

func newGraph() *graph {
	return &graph{
		length: make(map[[2]int]float64),
		segs:   make(map[[2]int][2]int),
	}
}

func edgeKey(u, v int) [2]int {
	if v < u {
		u, v = v, u
	}
	return [2]int{u, v}
}

func (g *graph) addNode(taxon string) int {
	g.adj = append(g.adj, nil)
	g.taxon = append(g.taxon, taxon)
	g.dead = append(g.dead, false)
	return len(g.adj) - 1
}

func (g *graph) connect(u, v int, l float64, hasLength bool) {
	g.adj[u] = append(g.adj[u], v)
	g.adj[v] = append(g.adj[v], u)
	if hasLength {
		g.length[edgeKey(u, v)] = l
	}
}

func (g *graph) disconnect(u, v int) (float64, bool) {
	g.adj[u] = slices.DeleteFunc(g.adj[u], func(n int) bool { return n == v })
	g.adj[v] = slices.DeleteFunc(g.adj[v], func(n int) bool { return n == u })
	k := edgeKey(u, v)
	l, ok := g.length[k]
	delete(g.length, k)
	return l, ok
}

// add loads a tree into the graph
// as an unrooted tree
// without nodes of degree two.
func (g *graph) add(t *tree.Tree) *component {
	first := len(g.adj)
	ids := make(map[int]int)
	for _, id := range t.Nodes() {
		var tx string
		if t.IsTerm(id) {
			tx = t.Taxon(id)
		}
		n := g.addNode(tx)
		ids[id] = n
		if t.IsRoot(id) {
			continue
		}
		l, ok := t.Length(id)
		g.connect(ids[t.Parent(id)], n, l, ok)
	}

	// remove internal nodes of degree two or less
	for changed := true; changed; {
		changed = false
		for n := first; n < len(g.adj); n++ {
			if g.dead[n] || g.taxon[n] != "" || len(g.adj[n]) > 2 {
				continue
			}
			switch len(g.adj[n]) {
			case 2:
				a, b := g.adj[n][0], g.adj[n][1]
				la, oka := g.disconnect(n, a)
				lb, okb := g.disconnect(n, b)
				g.connect(a, b, la+lb, oka && okb)
			case 1:
				g.disconnect(n, g.adj[n][0])
			}
			g.dead[n] = true
			changed = true
		}
	}

	c := &component{
		leaves: make(map[string]int),
	}
	for n := first; n < len(g.adj); n++ {
		if g.dead[n] {
			continue
		}
		if g.taxon[n] != "" {
			c.taxa = append(c.taxa, g.taxon[n])
			c.leaves[g.taxon[n]] = n
		}
		for _, v := range g.adj[n] {
			if n < v {
				c.edges = append(c.edges, [2]int{n, v})
			}
		}
	}
	slices.Sort(c.taxa)
	slices.SortFunc(c.edges, func(a, b [2]int) int {
		if a[0] != b[0] {
			return a[0] - b[0]
		}
		return a[1] - b[1]
	})
	return c
}

// side returns the taxa reachable from v
// without crossing u.
func (g *graph) side(u, v int) []string {
	var taxa []string
	seen := map[int]bool{u: true, v: true}
	stack := []int{v}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if g.taxon[n] != "" {
			taxa = append(taxa, g.taxon[n])
		}
		for _, a := range g.adj[n] {
			if seen[a] {
				continue
			}
			seen[a] = true
			stack = append(stack, a)
		}
	}
	slices.Sort(taxa)
	return taxa
}

// subdivide adds a new node in the edge u-v
// and returns the new node.
// The length of the edge
// is divided between both halves.
func (g *graph) subdivide(u, v int) int {
	l, ok := g.disconnect(u, v)
	w := g.addNode("")
	g.connect(u, w, l/2, ok)
	g.connect(w, v, l/2, ok)
	return w
}

// attachAt returns the node
// at which another subset will be attached.
func (g *graph) attachAt(at attachment) int {
	if !at.edge {
		n := at.leaf
		if len(g.adj[n]) == 0 {
			return n
		}
		return g.subdivide(n, g.adj[n][0])
	}

	k := edgeKey(at.u, at.v)
	seg, ok := g.segs[k]
	if !ok {
		seg = [2]int{at.u, at.v}
	}
	w := g.subdivide(seg[0], seg[1])
	g.segs[k] = [2]int{w, seg[1]}
	return w
}

// toTree returns the component that includes the node n
// as a tree.
// The tree is rooted at the node adjacent
// to the terminal with the smallest taxon name,
// and descendants are ordered by their smallest taxon.
func (g *graph) toTree(name string, n int) *tree.Tree {
	// find the smallest terminal
	leaf := -1
	seen := map[int]bool{n: true}
	stack := []int{n}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if g.taxon[v] != "" && (leaf < 0 || g.taxon[v] < g.taxon[leaf]) {
			leaf = v
		}
		for _, a := range g.adj[v] {
			if !seen[a] {
				seen[a] = true
				stack = append(stack, a)
			}
		}
	}

	t := tree.New(name)
	if len(g.adj[leaf]) == 0 {
		t.AddTerm(g.taxon[leaf])
		return t
	}

	r := g.adj[leaf][0]
	if g.taxon[r] != "" {
		// a single edge
		root := t.AddNode()
		l, ok := g.length[edgeKey(leaf, r)]
		for _, v := range []int{leaf, r} {
			id := t.AddTerm(g.taxon[v])
			t.Connect(root, id)
			if ok {
				t.SetLength(id, l/2)
			}
		}
		return t
	}

	minTax := make(map[int]string)
	g.minTaxon(r, -1, minTax)
	g.copyNode(t, r, -1, -1, minTax)
	return t
}

func (g *graph) minTaxon(n, from int, minTax map[int]string) string {
	m := g.taxon[n]
	for _, a := range g.adj[n] {
		if a == from {
			continue
		}
		s := g.minTaxon(a, n, minTax)
		if m == "" || s < m {
			m = s
		}
	}
	minTax[n] = m
	return m
}

func (g *graph) copyNode(t *tree.Tree, n, from, parent int, minTax map[int]string) {
	var id int
	if g.taxon[n] != "" {
		id = t.AddTerm(g.taxon[n])
	} else {
		id = t.AddNode()
	}
	if parent >= 0 {
		t.Connect(parent, id)
		if l, ok := g.length[edgeKey(n, from)]; ok {
			t.SetLength(id, l)
		}
	}

	var desc []int
	for _, a := range g.adj[n] {
		if a != from {
			desc = append(desc, a)
		}
	}
	slices.SortFunc(desc, func(a, b int) int {
		return strings.Compare(minTax[a], minTax[b])
	})
	for _, a := range desc {
		g.copyNode(t, a, n, id, minTax)
	}
}
