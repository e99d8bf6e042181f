// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package treemerge

import (
	"fmt"
	"slices"

	"github.com/js-arias/dtm/distmat"
	"github.com/js-arias/dtm/tree"
)

// An attachment is the place of a subset tree
// at which another subset tree will be grafted.
type attachment struct {
	edge bool
	u, v int // the edge, if edge is true
	leaf int // the terminal of a single taxon subset

	score float64
}

// attach returns the edge of a subset tree
// at which the taxa of other subset should be attached.
//
// Each edge of the subset tree,
// that splits its taxa into X and Y,
// is scored as the mean,
// over every x in X and y in Y,
// of the Gromov product (x|y)z,
// in which z is the other subset.
// In a tree metric,
// the Gromov product is the distance from z
// to the path between x and y,
// so the best edge is the one with the lowest score.
func attach(g *graph, c *component, other []string, m *distmat.Matrix) (attachment, error) {
	if len(c.edges) == 0 {
		return attachment{leaf: c.leaves[c.taxa[0]]}, nil
	}

	rows := make([]int, len(c.taxa))
	for i, tx := range c.taxa {
		r, ok := m.Index(tx)
		if !ok {
			return attachment{}, fmt.Errorf("%w: %q", distmat.ErrUnknownTaxon, tx)
		}
		rows[i] = r
	}
	oRows := make([]int, len(other))
	for i, tx := range other {
		r, ok := m.Index(tx)
		if !ok {
			return attachment{}, fmt.Errorf("%w: %q", distmat.ErrUnknownTaxon, tx)
		}
		oRows[i] = r
	}

	// mean distance to the other subset
	dz := make([]float64, len(rows))
	for i, r := range rows {
		var s float64
		for _, o := range oRows {
			s += m.At(r, o)
		}
		dz[i] = s / float64(len(oRows))
	}

	x := tree.NewIndex(c.taxa)
	var best attachment
	var bestSide []string
	for i, e := range c.edges {
		side := x.Set(g.side(e[0], e[1])...)
		var sum float64
		var n int
		for a := range rows {
			if !side.Test(uint(a)) {
				continue
			}
			for b := range rows {
				if side.Test(uint(b)) {
					continue
				}
				sum += (dz[a] + dz[b] - m.At(rows[a], rows[b])) / 2
				n++
			}
		}
		score := sum / float64(n)

		sp := x.NewSplit(side)
		taxa := x.Taxa(sp.Side())
		if i == 0 || score < best.score || (score == best.score && slices.Compare(taxa, bestSide) < 0) {
			best = attachment{
				edge:  true,
				u:     e[0],
				v:     e[1],
				score: score,
			}
			bestSide = taxa
		}
	}
	return best, nil
}
