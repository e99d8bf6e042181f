// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package distmat_test

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/js-arias/dtm/distmat"
)

const square = `4
A 0.0 0.2 0.3 0.4
B 0.2 0.0 0.3 0.4
C 0.3 0.3 0.0 0.1
D 0.4 0.4 0.1 0.0
`

const lower = `4
A
B 0.2
C 0.3 0.3
D 0.4 0.4 0.1
`

const wrapped = `4
A 0.0 0.2
  0.3 0.4
B 0.2 0.0
  0.3 0.4
C 0.3 0.3 0.0 0.1
D 0.4 0.4 0.1 0.0
`

func TestReadPhylip(t *testing.T) {
	for name, in := range map[string]string{
		"square":  square,
		"lower":   lower,
		"wrapped": wrapped,
	} {
		m, err := distmat.ReadPhylip(strings.NewReader(in), nil)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", name, err)
			continue
		}
		testMatrix(t, name, m, []string{"A", "B", "C", "D"})
	}
}

func TestReadPhylipTaxa(t *testing.T) {
	taxa, err := distmat.ReadTaxa(strings.NewReader("# taxa\nW\nX\n\nY\nZ\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, err := distmat.ReadPhylip(strings.NewReader(square), taxa)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := m.Taxa(); !reflect.DeepEqual(got, []string{"W", "X", "Y", "Z"}) {
		t.Errorf("taxa: got %v", got)
	}
	if d, _ := m.Dist("Y", "Z"); d != 0.1 {
		t.Errorf("Y-Z: got %.6f, want %.6f", d, 0.1)
	}

	if _, err := distmat.ReadPhylip(strings.NewReader(square), taxa[:3]); err == nil {
		t.Errorf("expecting error on short taxon list")
	}
}

func TestReadPhylipErrors(t *testing.T) {
	tests := map[string]string{
		"asymmetric":   "2\nA 0 1\nB 2 0\n",
		"negative":     "2\nA 0 -1\nB -1 0\n",
		"diagonal":     "2\nA 1 1\nB 1 0\n",
		"missing rows": "3\nA 0 1 1\nB 1 0 1\n",
		"bad value":    "2\nA 0 x\nB x 0\n",
		"repeated":     "2\nA 0 1\nA 1 0\n",
	}
	for name, in := range tests {
		if _, err := distmat.ReadPhylip(strings.NewReader(in), nil); err == nil {
			t.Errorf("%s: expecting error", name)
		}
	}
}

func TestPhylipWrite(t *testing.T) {
	m, err := distmat.ReadPhylip(strings.NewReader(lower), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var w bytes.Buffer
	if err := m.Phylip(&w); err != nil {
		t.Fatalf("unable to write data: %v", err)
	}
	nm, err := distmat.ReadPhylip(&w, nil)
	if err != nil {
		t.Fatalf("unable to read data: %v", err)
	}
	testMatrix(t, "phylip", nm, []string{"A", "B", "C", "D"})
}

func TestTSV(t *testing.T) {
	m, err := distmat.ReadPhylip(strings.NewReader(square), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var w bytes.Buffer
	if err := m.TSV(&w); err != nil {
		t.Fatalf("unable to write TSV data: %v", err)
	}
	t.Logf("output:\n%s\n", w.String())

	nm, err := distmat.ReadTSV(strings.NewReader(w.String()))
	if err != nil {
		t.Fatalf("unable to read TSV data: %v", err)
	}
	testMatrix(t, "tsv", nm, []string{"A", "B", "C", "D"})
}

func TestSub(t *testing.T) {
	m, err := distmat.ReadPhylip(strings.NewReader(square), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s, err := m.Sub([]string{"D", "A"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Len() != 2 {
		t.Errorf("sub: got %d taxa, want 2", s.Len())
	}
	if d := s.At(0, 1); d != 0.4 {
		t.Errorf("sub: D-A: got %.6f, want %.6f", d, 0.4)
	}

	_, err = m.Sub([]string{"A", "X"})
	if !errors.Is(err, distmat.ErrUnknownTaxon) {
		t.Errorf("sub: got error %v, want %v", err, distmat.ErrUnknownTaxon)
	}
}

func TestUndefinedPairs(t *testing.T) {
	in := "taxon1\ttaxon2\tdistance\na\tb\t1\na\tc\t2\n"
	m, err := distmat.ReadTSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Complete() {
		t.Errorf("complete: got true, want false")
	}

	tests := map[string]struct {
		a, b string
		want error
	}{
		"defined":   {"a", "c", nil},
		"reversed":  {"c", "a", nil},
		"diagonal":  {"b", "b", nil},
		"undefined": {"b", "c", distmat.ErrUndefinedPair},
		"unknown":   {"b", "x", distmat.ErrUnknownTaxon},
	}
	for name, test := range tests {
		_, err := m.Dist(test.a, test.b)
		if test.want == nil {
			if err != nil {
				t.Errorf("%s: unexpected error: %v", name, err)
			}
			continue
		}
		if !errors.Is(err, test.want) {
			t.Errorf("%s: got error %v, want %v", name, err, test.want)
		}
	}

	s, err := m.Sub([]string{"c", "b"})
	if err != nil {
		t.Fatalf("sub: unexpected error: %v", err)
	}
	if s.Defined(0, 1) {
		t.Errorf("sub: c-b: got defined pair")
	}
	s, err = m.Sub([]string{"c", "a"})
	if err != nil {
		t.Fatalf("sub: unexpected error: %v", err)
	}
	if !s.Complete() {
		t.Errorf("sub: c-a: got incomplete matrix")
	}

	var w bytes.Buffer
	if err := m.Phylip(&w); !errors.Is(err, distmat.ErrUndefinedPair) {
		t.Errorf("phylip: got error %v, want %v", err, distmat.ErrUndefinedPair)
	}
	w.Reset()
	if err := m.TSV(&w); err != nil {
		t.Fatalf("tsv: unexpected error: %v", err)
	}
	if n := strings.Count(w.String(), "\n"); n != 3 {
		t.Errorf("tsv: got %d lines, want 3", n)
	}
}

func testMatrix(t testing.TB, name string, m *distmat.Matrix, taxa []string) {
	t.Helper()

	want := map[string]float64{
		"A B": 0.2,
		"A C": 0.3,
		"A D": 0.4,
		"B C": 0.3,
		"B D": 0.4,
		"C D": 0.1,
	}

	got := m.Taxa()
	if len(got) != len(taxa) {
		t.Fatalf("%s: got %d taxa, want %d", name, len(got), len(taxa))
	}
	if !m.Complete() {
		t.Errorf("%s: got incomplete matrix", name)
	}
	for _, tx := range taxa {
		if !m.Has(tx) {
			t.Errorf("%s: taxon %q not found", name, tx)
		}
		if d, _ := m.Dist(tx, tx); d != 0 {
			t.Errorf("%s: diagonal %q: got %.6f", name, tx, d)
		}
	}
	for p, w := range want {
		f := strings.Fields(p)
		d, err := m.Dist(f[0], f[1])
		if err != nil {
			t.Errorf("%s: %s: unexpected error: %v", name, p, err)
			continue
		}
		if d != w {
			t.Errorf("%s: %s: got %.6f, want %.6f", name, p, d, w)
		}
		if r, _ := m.Dist(f[1], f[0]); r != d {
			t.Errorf("%s: %s: asymmetric: %.6f, %.6f", name, p, d, r)
		}
	}
	if _, err := m.Dist("A", "unknown"); !errors.Is(err, distmat.ErrUnknownTaxon) {
		t.Errorf("%s: unknown taxon: got %v, want %v", name, err, distmat.ErrUnknownTaxon)
	}
}
