// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package constraint implements the constraint graph
// used by the disjoint tree merging methods.
//
// A constraint graph is built from a set of subset trees,
// defined on disjoint taxon sets,
// and a dissimilarity matrix
// that includes all the taxa of the subset trees.
// It stores the bipartitions of each subset tree,
// so a merge method can test if a group of taxa
// violates any of the subset trees.
package constraint

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/hashicorp/go-multierror"
	"github.com/js-arias/dtm/distmat"
	"github.com/js-arias/dtm/tree"
)

// A Pair is a pair of taxa
// with its dissimilarity.
// A is always lexicographically smaller than B.
type Pair struct {
	A, B string
	Dist float64
}

// Graph is a constraint graph.
type Graph struct {
	trees []*tree.Tree
	names []string

	taxa    *tree.Index // full taxon set
	subset  []int       // subset of each taxon, by position
	members [][]uint    // positions of the taxa of each subset
	masks   []*bitset.BitSet

	local  []*tree.Index
	splits [][]tree.Split

	m         *distmat.Matrix
	pairsOnce sync.Once
	pairs     []Pair
}

// Build creates a constraint graph
// from a set of subset trees
// and a dissimilarity matrix.
//
// It returns an error if the subset trees share taxa
// (an *OverlapError),
// or the matrix does not include a taxon of the subset trees,
// or the dissimilarity of a pair of those taxa
// (an *IncompleteMatrixError).
// If several problems are found,
// all of them are returned as a single multierror.
func Build(subsets []*tree.Tree, m *distmat.Matrix) (*Graph, error) {
	if len(subsets) == 0 {
		return nil, errors.New("constraint: no subset trees")
	}
	if m == nil {
		return nil, errors.New("constraint: undefined dissimilarity matrix")
	}

	var errs *multierror.Error
	owner := make(map[string]int)
	var all []string
	for i, t := range subsets {
		if t.Root() < 0 {
			errs = multierror.Append(errs, fmt.Errorf("subset tree %d: empty tree", i))
			continue
		}
		for _, id := range t.Nodes() {
			if !t.IsTerm(id) {
				continue
			}
			tx := t.Taxon(id)
			if prev, ok := owner[tx]; ok {
				errs = multierror.Append(errs, &OverlapError{
					Taxon:  tx,
					First:  prev,
					Second: i,
				})
				continue
			}
			owner[tx] = i
			all = append(all, tx)
		}
	}

	var missing []string
	for _, tx := range all {
		if !m.Has(tx) {
			missing = append(missing, tx)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		errs = multierror.Append(errs, &IncompleteMatrixError{Missing: missing})
	} else if pairs := undefinedPairs(m, all); len(pairs) > 0 {
		errs = multierror.Append(errs, &IncompleteMatrixError{Pairs: pairs})
	}
	if errs != nil {
		if len(errs.Errors) == 1 {
			return nil, errs.Errors[0]
		}
		return nil, errs
	}

	g := &Graph{
		trees:   subsets,
		names:   make([]string, len(subsets)),
		taxa:    tree.NewIndex(all),
		members: make([][]uint, len(subsets)),
		masks:   make([]*bitset.BitSet, len(subsets)),
		local:   make([]*tree.Index, len(subsets)),
		splits:  make([][]tree.Split, len(subsets)),
		m:       m,
	}
	g.subset = make([]int, g.taxa.Len())
	for i := range g.masks {
		g.masks[i] = bitset.New(uint(g.taxa.Len()))
	}
	for p := range g.taxa.Len() {
		s := owner[g.taxa.Name(p)]
		g.subset[p] = s
		g.members[s] = append(g.members[s], uint(p))
		g.masks[s].Set(uint(p))
	}
	for i, t := range subsets {
		name := strings.TrimSpace(t.Name())
		if name == "" {
			name = fmt.Sprintf("subset-%d", i+1)
		}
		g.names[i] = name
		g.local[i] = tree.NewIndex(t.Terms())
		g.splits[i] = t.Splits(g.local[i])
	}
	return g, nil
}

// undefinedPairs returns the pairs of taxa
// without a value in the matrix,
// sorted by taxon name.
func undefinedPairs(m *distmat.Matrix, taxa []string) [][2]string {
	taxa = slices.Clone(taxa)
	slices.Sort(taxa)
	rows := make([]int, len(taxa))
	for i, tx := range taxa {
		rows[i], _ = m.Index(tx)
	}

	var pairs [][2]string
	for i := range rows {
		for j := i + 1; j < len(rows); j++ {
			if !m.Defined(rows[i], rows[j]) {
				pairs = append(pairs, [2]string{taxa[i], taxa[j]})
			}
		}
	}
	return pairs
}

// CanJoin returns true if the union of two disjoint sets of taxa
// (as defined by the taxon index of the graph)
// is compatible with all subset trees.
// Both sets are assumed to be compatible
// with the subset trees.
func (g *Graph) CanJoin(a, b *bitset.BitSet) bool {
	var u *bitset.BitSet
	for i, mask := range g.masks {
		if a.IntersectionCardinality(mask) == 0 || b.IntersectionCardinality(mask) == 0 {
			continue
		}
		if u == nil {
			u = a.Union(b)
		}
		if !g.compatibleIn(i, u) {
			return false
		}
	}
	return true
}

func (g *Graph) compatibleIn(i int, set *bitset.BitSet) bool {
	mem := g.members[i]
	n := uint(len(mem))
	side := bitset.New(n)
	var c uint
	for k, p := range mem {
		if set.Test(p) {
			side.Set(uint(k))
			c++
		}
	}
	if c <= 1 || c+1 >= n {
		return true
	}

	s := g.local[i].NewSplit(side)
	for _, sp := range g.splits[i] {
		if !s.Compatible(sp) {
			return false
		}
	}
	return true
}

// Index returns the index of the full taxon set.
func (g *Graph) Index() *tree.Index {
	return g.taxa
}

// Len returns the number of subset trees.
func (g *Graph) Len() int {
	return len(g.trees)
}

// Name returns the name of a subset tree.
func (g *Graph) Name(i int) string {
	return g.names[i]
}

// Pairs returns all the pairs of taxa,
// ordered by increasing dissimilarity.
// Pairs with the same dissimilarity
// are ordered by the lexicographic order
// of the taxon names.
//
// The list is built the first time
// the method is called.
func (g *Graph) Pairs() []Pair {
	g.pairsOnce.Do(g.buildPairs)
	return g.pairs
}

func (g *Graph) buildPairs() {
	n := g.taxa.Len()
	rows := make([]int, n)
	for p := range n {
		rows[p], _ = g.m.Index(g.taxa.Name(p))
	}

	pairs := make([]Pair, 0, n*(n-1)/2)
	for i := range n {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, Pair{
				A:    g.taxa.Name(i),
				B:    g.taxa.Name(j),
				Dist: g.m.At(rows[i], rows[j]),
			})
		}
	}
	slices.SortFunc(pairs, func(a, b Pair) int {
		if c := cmp.Compare(a.Dist, b.Dist); c != 0 {
			return c
		}
		if c := strings.Compare(a.A, b.A); c != 0 {
			return c
		}
		return strings.Compare(a.B, b.B)
	})
	g.pairs = pairs
}

// Subset returns the index of the subset tree
// that includes a taxon.
func (g *Graph) Subset(taxon string) (int, bool) {
	p, ok := g.taxa.Pos(taxon)
	if !ok {
		return -1, false
	}
	return g.subset[p], true
}

// Taxa returns the sorted list of all taxa.
func (g *Graph) Taxa() []string {
	return g.taxa.Names()
}

// Tree returns a subset tree.
func (g *Graph) Tree(i int) *tree.Tree {
	return g.trees[i]
}
