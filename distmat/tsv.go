// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package distmat

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

var tsvHeader = []string{"taxon1", "taxon2", "distance"}

// ReadTSV reads a matrix from a TSV file
// with a taxon pair per row.
//
// The TSV file must contain the following fields:
//
//   - taxon1, the name of the first taxon
//   - taxon2, the name of the second taxon
//   - distance, the dissimilarity between both taxa
//
// Pairs not defined in the file
// are kept undefined
// (see Matrix.Defined).
//
// Here is an example file:
//
//	taxon1	taxon2	distance
//	A	B	0.200000
//	A	C	0.300000
//	B	C	0.300000
func ReadTSV(r io.Reader) (*Matrix, error) {
	tab := csv.NewReader(r)
	tab.Comma = '\t'
	tab.Comment = '#'

	head, err := tab.Read()
	if err != nil {
		return nil, fmt.Errorf("while reading header: %v", err)
	}
	fields := make(map[string]int, len(head))
	for i, h := range head {
		h = strings.ToLower(h)
		fields[h] = i
	}
	for _, h := range tsvHeader {
		if _, ok := fields[h]; !ok {
			return nil, fmt.Errorf("expecting field %q", h)
		}
	}

	type pair struct {
		a, b string
		d    float64
	}
	var pairs []pair
	var taxa []string
	seen := make(map[string]bool)
	for {
		row, err := tab.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		ln, _ := tab.FieldPos(0)
		if err != nil {
			return nil, fmt.Errorf("on row %d: %v", ln, err)
		}

		f := "taxon1"
		a := strings.TrimSpace(row[fields[f]])
		if a == "" {
			return nil, fmt.Errorf("on row %d: field %q: empty name", ln, f)
		}

		f = "taxon2"
		b := strings.TrimSpace(row[fields[f]])
		if b == "" {
			return nil, fmt.Errorf("on row %d: field %q: empty name", ln, f)
		}

		f = "distance"
		d, err := strconv.ParseFloat(row[fields[f]], 64)
		if err != nil {
			return nil, fmt.Errorf("on row %d: field %q: %q: %v", ln, f, row[fields[f]], err)
		}

		for _, tx := range []string{a, b} {
			if !seen[tx] {
				seen[tx] = true
				taxa = append(taxa, tx)
			}
		}
		pairs = append(pairs, pair{a: a, b: b, d: d})
	}

	m, err := New(taxa)
	if err != nil {
		return nil, err
	}
	for _, p := range pairs {
		if err := m.Set(p.a, p.b, p.d); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// TSV writes a matrix as a TSV file
// with a taxon pair per row.
// Undefined pairs are not written.
func (m *Matrix) TSV(w io.Writer) error {
	tab := csv.NewWriter(w)
	tab.Comma = '\t'
	tab.UseCRLF = true

	if err := tab.Write(tsvHeader); err != nil {
		return fmt.Errorf("unable to write header: %v", err)
	}

	taxa := slices.Clone(m.names)
	slices.Sort(taxa)
	for i, a := range taxa {
		for _, b := range taxa[i+1:] {
			d, err := m.Dist(a, b)
			if err != nil {
				continue
			}
			row := []string{
				a,
				b,
				strconv.FormatFloat(d, 'f', 6, 64),
			}
			if err := tab.Write(row); err != nil {
				return fmt.Errorf("when writing data: %v", err)
			}
		}
	}

	tab.Flush()
	if err := tab.Error(); err != nil {
		return fmt.Errorf("when writing data: %v", err)
	}
	return nil
}
