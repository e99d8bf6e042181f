// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package distmat implements a dissimilarity matrix
// between taxa.
//
// A dissimilarity matrix is symmetric,
// non-negative,
// and with zeros in its diagonal.
// A matrix keeps track of the pairs with a defined value,
// so a matrix read from a list of pairs
// can be checked for completeness.
package distmat

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/bits-and-blooms/bitset"
	"gonum.org/v1/gonum/mat"
)

// ErrUnknownTaxon is returned when a taxon
// is not defined in a matrix.
var ErrUnknownTaxon = errors.New("unknown taxon")

// ErrUndefinedPair is returned when the dissimilarity
// of a pair of taxa was never set.
var ErrUndefinedPair = errors.New("undefined pair")

// Matrix is a dissimilarity matrix.
type Matrix struct {
	names []string
	idx   map[string]int
	m     *mat.SymDense
	def   []*bitset.BitSet // defined pairs, by row
}

// New creates a new dissimilarity matrix
// for the given taxa,
// with all values set to zero.
func New(taxa []string) (*Matrix, error) {
	if len(taxa) == 0 {
		return nil, errors.New("empty taxon list")
	}
	idx := make(map[string]int, len(taxa))
	names := make([]string, 0, len(taxa))
	for i, tx := range taxa {
		tx = strings.TrimSpace(tx)
		if tx == "" {
			return nil, fmt.Errorf("taxon %d: empty name", i+1)
		}
		if _, dup := idx[tx]; dup {
			return nil, fmt.Errorf("taxon %q: repeated name", tx)
		}
		idx[tx] = i
		names = append(names, tx)
	}

	def := make([]*bitset.BitSet, len(names))
	for i := range def {
		def[i] = bitset.New(uint(len(names)))
		def[i].Set(uint(i))
	}
	return &Matrix{
		names: names,
		idx:   idx,
		m:     mat.NewSymDense(len(names), nil),
		def:   def,
	}, nil
}

// At returns the dissimilarity between the taxa
// at rows i and j.
// An undefined pair is zero.
func (m *Matrix) At(i, j int) float64 {
	return m.m.At(i, j)
}

// Complete returns true if all pairs of the matrix
// are defined.
func (m *Matrix) Complete() bool {
	for _, d := range m.def {
		if !d.All() {
			return false
		}
	}
	return true
}

// Defined returns true if the dissimilarity
// between the taxa at rows i and j
// was set.
func (m *Matrix) Defined(i, j int) bool {
	return m.def[i].Test(uint(j))
}

// Dist returns the dissimilarity between two taxa.
// It returns an error if a taxon is not in the matrix,
// or the pair was never set.
func (m *Matrix) Dist(a, b string) (float64, error) {
	i, ok := m.idx[a]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTaxon, a)
	}
	j, ok := m.idx[b]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTaxon, b)
	}
	if !m.def[i].Test(uint(j)) {
		return 0, fmt.Errorf("%w: %q-%q", ErrUndefinedPair, a, b)
	}
	return m.m.At(i, j), nil
}

// Has returns true if a taxon is defined in the matrix.
func (m *Matrix) Has(taxon string) bool {
	_, ok := m.idx[taxon]
	return ok
}

// Index returns the row of a taxon.
func (m *Matrix) Index(taxon string) (int, bool) {
	i, ok := m.idx[taxon]
	return i, ok
}

// Len returns the number of taxa in the matrix.
func (m *Matrix) Len() int {
	return len(m.names)
}

// Set sets the dissimilarity between two taxa.
func (m *Matrix) Set(a, b string, d float64) error {
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return fmt.Errorf("taxa %q-%q: invalid value %v", a, b, d)
	}
	if d < 0 {
		return fmt.Errorf("taxa %q-%q: negative value %v", a, b, d)
	}
	i, ok := m.idx[a]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTaxon, a)
	}
	j, ok := m.idx[b]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTaxon, b)
	}
	if i == j {
		if d != 0 {
			return fmt.Errorf("taxon %q: non-zero diagonal value %v", a, d)
		}
		return nil
	}
	m.m.SetSym(i, j, d)
	m.def[i].Set(uint(j))
	m.def[j].Set(uint(i))
	return nil
}

// Sub returns a new matrix
// with only the given taxa,
// in the given order.
// Undefined pairs are kept undefined.
func (m *Matrix) Sub(taxa []string) (*Matrix, error) {
	nm, err := New(taxa)
	if err != nil {
		return nil, err
	}
	rows := make([]int, len(nm.names))
	for i, tx := range nm.names {
		r, ok := m.idx[tx]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTaxon, tx)
		}
		rows[i] = r
	}
	for i := range rows {
		for j := i + 1; j < len(rows); j++ {
			if !m.def[rows[i]].Test(uint(rows[j])) {
				continue
			}
			nm.m.SetSym(i, j, m.m.At(rows[i], rows[j]))
			nm.def[i].Set(uint(j))
			nm.def[j].Set(uint(i))
		}
	}
	return nm, nil
}

// Taxa returns the taxon names
// in the order of the matrix rows.
func (m *Matrix) Taxa() []string {
	return slices.Clone(m.names)
}

// Sym returns the underlying symmetric matrix.
// The returned value should not be modified.
func (m *Matrix) Sym() mat.Symmetric {
	return m.m
}
