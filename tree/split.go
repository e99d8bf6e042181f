// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package tree

import (
	"fmt"
	"slices"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// An Index assigns a position
// to each taxon of a taxon set,
// so sets of taxa can be stored as bitsets.
// The positions follow the lexicographic order
// of the taxon names.
type Index struct {
	names []string
	pos   map[string]int
}

// NewIndex creates an index for a set of taxon names.
func NewIndex(taxa []string) *Index {
	names := slices.Clone(taxa)
	slices.Sort(names)
	names = slices.Compact(names)

	pos := make(map[string]int, len(names))
	for i, n := range names {
		pos[n] = i
	}
	return &Index{
		names: names,
		pos:   pos,
	}
}

// Len returns the number of taxa in the index.
func (x *Index) Len() int {
	return len(x.names)
}

// Names returns the taxon names of the index.
func (x *Index) Names() []string {
	return slices.Clone(x.names)
}

// Pos returns the position of a taxon.
func (x *Index) Pos(taxon string) (int, bool) {
	i, ok := x.pos[taxon]
	return i, ok
}

// Name returns the taxon name at a given position.
func (x *Index) Name(i int) string {
	return x.names[i]
}

// Set returns a bitset with the given taxa.
// Taxa not in the index are ignored.
func (x *Index) Set(taxa ...string) *bitset.BitSet {
	b := bitset.New(uint(len(x.names)))
	for _, tx := range taxa {
		if i, ok := x.pos[tx]; ok {
			b.Set(uint(i))
		}
	}
	return b
}

// Taxa returns the taxon names of a bitset.
func (x *Index) Taxa(b *bitset.BitSet) []string {
	taxa := make([]string, 0, b.Count())
	for i, ok := b.NextSet(0); ok; i, ok = b.NextSet(i + 1) {
		taxa = append(taxa, x.names[i])
	}
	return taxa
}

// A Split is a bipartition of a taxon set.
//
// It is stored in canonical form:
// the side that does not include
// the first taxon of the index.
type Split struct {
	side *bitset.BitSet
	n    uint
}

// NewSplit returns a split defined by one of its sides.
func (x *Index) NewSplit(side *bitset.BitSet) Split {
	n := uint(len(x.names))
	s := side.Clone()
	if n > 0 && s.Test(0) {
		s = s.Complement()
	}
	return Split{side: s, n: n}
}

// Side returns the taxa in the canonical side
// of the split.
func (s Split) Side() *bitset.BitSet {
	return s.side.Clone()
}

// Trivial returns true if the split separates
// a single taxon,
// or no taxa at all.
func (s Split) Trivial() bool {
	c := s.side.Count()
	return c <= 1 || c >= s.n-1
}

// Equal returns true if both splits are equal.
func (s Split) Equal(o Split) bool {
	return s.n == o.n && s.side.Equal(o.side)
}

// Compatible returns true if two splits
// of the same taxon set can be found in the same tree.
func (s Split) Compatible(o Split) bool {
	if s.side.IntersectionCardinality(o.side) == 0 {
		return true
	}
	if s.side.IsSuperSet(o.side) || o.side.IsSuperSet(s.side) {
		return true
	}
	return false
}

// Key returns a string that identifies the split.
func (s Split) Key() string {
	var b strings.Builder
	for i, ok := s.side.NextSet(0); ok; i, ok = s.side.NextSet(i + 1) {
		fmt.Fprintf(&b, "%d.", i)
	}
	return b.String()
}

// Splits returns the non-trivial bipartitions
// induced by the tree
// on the taxa of the index.
// Taxa of the tree not found in the index
// are ignored.
//
// The tree is interpreted as unrooted,
// so repeated splits
// (as produced by the two descendants of a bifurcating root)
// are reported only once.
func (t *Tree) Splits(x *Index) []Split {
	if t.root < 0 {
		return nil
	}
	sets := make(map[int]*bitset.BitSet, len(t.nodes))
	ids := t.Nodes()
	for i := len(ids) - 1; i >= 0; i-- {
		id := ids[i]
		n := t.nodes[id]
		b := bitset.New(uint(x.Len()))
		if len(n.children) == 0 {
			if p, ok := x.pos[n.taxon]; ok {
				b.Set(uint(p))
			}
		}
		for _, c := range n.children {
			b.InPlaceUnion(sets[c])
		}
		sets[id] = b
	}

	seen := make(map[string]bool)
	var splits []Split
	for _, id := range ids {
		if id == t.root {
			continue
		}
		s := x.NewSplit(sets[id])
		if s.Trivial() {
			continue
		}
		k := s.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		splits = append(splits, s)
	}
	slices.SortFunc(splits, func(a, b Split) int {
		return strings.Compare(a.Key(), b.Key())
	})
	return splits
}

// Refines returns true if the tree t,
// restricted to the terminals of s,
// includes every bipartition of s.
// It returns false if some terminal of s
// is not in t.
func Refines(t, s *Tree) bool {
	terms := s.Terms()
	x := NewIndex(terms)
	tt := t.Terms()
	for _, tx := range terms {
		if _, ok := slices.BinarySearch(tt, tx); !ok {
			return false
		}
	}

	have := make(map[string]bool)
	for _, sp := range t.Splits(x) {
		have[sp.Key()] = true
	}
	for _, sp := range s.Splits(x) {
		if !have[sp.Key()] {
			return false
		}
	}
	return true
}

// SameTopology returns true if both trees
// have the same terminals
// and the same unrooted topology.
func SameTopology(a, b *Tree) bool {
	ta := a.Terms()
	if !slices.Equal(ta, b.Terms()) {
		return false
	}
	x := NewIndex(ta)
	sa := a.Splits(x)
	sb := b.Splits(x)
	if len(sa) != len(sb) {
		return false
	}
	for i := range sa {
		if !sa[i].Equal(sb[i]) {
			return false
		}
	}
	return true
}
