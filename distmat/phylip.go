// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package distmat

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Tolerance is the largest relative difference
// accepted between the two triangles of a matrix.
const Tolerance = 1e-6

// ReadPhylip reads a dissimilarity matrix
// in PHYLIP format.
//
// The first line contains the number of taxa.
// Each row starts with the taxon name,
// followed by the dissimilarity values.
// Both square matrices
// and lower triangular matrices are accepted;
// rows of a square matrix might span several lines.
//
// If names is not empty,
// it will be used as the taxon names
// (in the order of the rows)
// and the names in the file are ignored.
// This is the case of the matrices produced by PAUP*,
// in which the taxon names are stored in a separate file.
//
// Here is an example file:
//
//	4
//	A 0.0 0.2 0.3 0.4
//	B 0.2 0.0 0.3 0.4
//	C 0.3 0.3 0.0 0.1
//	D 0.4 0.4 0.1 0.0
func ReadPhylip(r io.Reader, names []string) (*Matrix, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	ln := 0
	var head []string
	for sc.Scan() {
		ln++
		head = strings.Fields(sc.Text())
		if len(head) > 0 {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(head) == 0 {
		return nil, fmt.Errorf("phylip: empty file")
	}
	ntax, err := strconv.Atoi(head[0])
	if err != nil || ntax < 1 {
		return nil, fmt.Errorf("phylip: line %d: invalid number of taxa %q", ln, head[0])
	}
	if len(names) > 0 && len(names) != ntax {
		return nil, fmt.Errorf("phylip: taxon list has %d names, matrix has %d taxa", len(names), ntax)
	}

	rows := make([][]float64, 0, ntax)
	labels := make([]string, 0, ntax)
	lower := false
	var cur []string
	for sc.Scan() {
		ln++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(rows) >= ntax {
			return nil, fmt.Errorf("phylip: line %d: more than %d rows", ln, ntax)
		}
		if cur == nil && len(rows) == 0 && len(fields) == 1 && ntax > 1 {
			lower = true
		}
		cur = append(cur, fields...)

		want := ntax + 1
		if lower {
			want = len(rows) + 1
		}
		if len(cur) < want {
			continue
		}
		if len(cur) > want {
			return nil, fmt.Errorf("phylip: line %d: row %d: got %d values, want %d", ln, len(rows)+1, len(cur)-1, want-1)
		}

		vals := make([]float64, 0, want-1)
		for _, f := range cur[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("phylip: line %d: row %d: %q: %v", ln, len(rows)+1, f, err)
			}
			vals = append(vals, v)
		}
		labels = append(labels, cur[0])
		rows = append(rows, vals)
		cur = nil
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if cur != nil || len(rows) != ntax {
		return nil, fmt.Errorf("phylip: got %d complete rows, want %d", len(rows), ntax)
	}

	if len(names) == 0 {
		names = labels
	}
	m, err := New(names)
	if err != nil {
		return nil, fmt.Errorf("phylip: %v", err)
	}

	for i, row := range rows {
		for j, v := range row {
			if j > i {
				continue
			}
			a, b := m.names[i], m.names[j]
			if i != j && !lower {
				w := rows[j][i]
				if math.Abs(v-w) > Tolerance*math.Max(1, math.Max(v, w)) {
					return nil, fmt.Errorf("phylip: taxa %q-%q: asymmetric values %v and %v", a, b, v, w)
				}
				v = (v + w) / 2
			}
			if err := m.Set(a, b, v); err != nil {
				return nil, fmt.Errorf("phylip: %v", err)
			}
		}
	}
	return m, nil
}

// Phylip writes a matrix as a square matrix
// in PHYLIP format.
// The matrix must be complete.
func (m *Matrix) Phylip(w io.Writer) error {
	if !m.Complete() {
		return fmt.Errorf("phylip: %w: incomplete matrix", ErrUndefinedPair)
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d\n", len(m.names))
	for i, n := range m.names {
		fmt.Fprintf(bw, "%s", n)
		for j := range m.names {
			fmt.Fprintf(bw, " %s", strconv.FormatFloat(m.m.At(i, j), 'f', 6, 64))
		}
		fmt.Fprintf(bw, "\n")
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("while writing data: %v", err)
	}
	return nil
}

// ReadTaxa reads a list of taxon names,
// one per line.
// Blank lines and lines starting with '#'
// are ignored.
func ReadTaxa(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	var taxa []string
	for sc.Scan() {
		tx := strings.TrimSpace(sc.Text())
		if tx == "" || strings.HasPrefix(tx, "#") {
			continue
		}
		taxa = append(taxa, tx)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("while reading taxa: %v", err)
	}
	return taxa, nil
}
