// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package constraint

import (
	"fmt"
	"strings"
)

// OverlapError is returned when a taxon
// is found in more than one subset tree.
type OverlapError struct {
	Taxon string

	// Indexes of the subset trees
	// with the taxon.
	First, Second int
}

func (e *OverlapError) Error() string {
	if e.First == e.Second {
		return fmt.Sprintf("taxon %q repeated in subset tree %d", e.Taxon, e.First)
	}
	return fmt.Sprintf("taxon %q found in subset trees %d and %d", e.Taxon, e.First, e.Second)
}

// IncompleteMatrixError is returned when
// the dissimilarity matrix does not include
// some taxa of the subset trees,
// or some pairs of those taxa.
type IncompleteMatrixError struct {
	Missing []string
	Pairs   [][2]string
}

func (e *IncompleteMatrixError) Error() string {
	const max = 5
	if len(e.Missing) > 0 {
		if len(e.Missing) > max {
			return fmt.Sprintf("dissimilarity matrix without %d taxa: %s, ...", len(e.Missing), strings.Join(e.Missing[:max], ", "))
		}
		return fmt.Sprintf("dissimilarity matrix without taxa: %s", strings.Join(e.Missing, ", "))
	}

	ps := make([]string, 0, max)
	for _, p := range e.Pairs[:min(len(e.Pairs), max)] {
		ps = append(ps, p[0]+"-"+p[1])
	}
	if len(e.Pairs) > max {
		return fmt.Sprintf("dissimilarity matrix without %d pairs: %s, ...", len(e.Pairs), strings.Join(ps, ", "))
	}
	return fmt.Sprintf("dissimilarity matrix without pairs: %s", strings.Join(ps, ", "))
}
