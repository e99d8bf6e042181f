// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package constraint_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/js-arias/dtm/constraint"
	"github.com/js-arias/dtm/distmat"
	"github.com/js-arias/dtm/tree"
)

func parseTrees(t testing.TB, trees ...string) []*tree.Tree {
	t.Helper()

	var ts []*tree.Tree
	for _, s := range trees {
		tr, err := tree.Parse(s)
		if err != nil {
			t.Fatalf("unable to parse %q: %v", s, err)
		}
		ts = append(ts, tr)
	}
	return ts
}

func flatMatrix(t testing.TB, taxa []string, d float64) *distmat.Matrix {
	t.Helper()

	m, err := distmat.New(taxa)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, a := range taxa {
		for _, b := range taxa[i+1:] {
			if err := m.Set(a, b, d); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
	}
	return m
}

func TestBuild(t *testing.T) {
	subsets := parseTrees(t,
		"((a,b),(c,d));",
		"(e,f);",
		"((g,h),(i,j),k);",
	)
	m := flatMatrix(t, []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "x"}, 1)

	g, err := constraint.Build(subsets, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Len() != 3 {
		t.Errorf("subsets: got %d, want %d", g.Len(), 3)
	}
	want := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"}
	if got := g.Taxa(); !reflect.DeepEqual(got, want) {
		t.Errorf("taxa: got %v, want %v", got, want)
	}
	if s, ok := g.Subset("f"); !ok || s != 1 {
		t.Errorf("subset of %q: got %d", "f", s)
	}
	if _, ok := g.Subset("x"); ok {
		t.Errorf("subset of %q: taxon outside subsets should not be found", "x")
	}
	if got := g.Name(1); got != "subset-2" {
		t.Errorf("name: got %q, want %q", got, "subset-2")
	}
}

func TestBuildErrors(t *testing.T) {
	m := flatMatrix(t, []string{"a", "b", "c", "d"}, 1)

	_, err := constraint.Build(parseTrees(t, "(a,b);", "(b,c);"), m)
	var oe *constraint.OverlapError
	if !errors.As(err, &oe) {
		t.Fatalf("overlap: got error %v, want %T", err, oe)
	}
	if oe.Taxon != "b" || oe.First != 0 || oe.Second != 1 {
		t.Errorf("overlap: got %+v", oe)
	}

	_, err = constraint.Build(parseTrees(t, "(a,b);", "(c,z,y);"), m)
	var ie *constraint.IncompleteMatrixError
	if !errors.As(err, &ie) {
		t.Fatalf("incomplete: got error %v, want %T", err, ie)
	}
	if !reflect.DeepEqual(ie.Missing, []string{"y", "z"}) {
		t.Errorf("incomplete: got %v, want %v", ie.Missing, []string{"y", "z"})
	}

	// taxa outside the subsets can be undefined
	pm, err := distmat.New([]string{"a", "b", "c", "d", "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pm.Set("a", "b", 1)
	pm.Set("a", "c", 1)
	pm.Set("a", "d", 1)
	pm.Set("b", "c", 1)
	_, err = constraint.Build(parseTrees(t, "(a,b);", "(c,d);"), pm)
	if !errors.As(err, &ie) {
		t.Fatalf("pairs: got error %v, want %T", err, ie)
	}
	if want := [][2]string{{"b", "d"}, {"c", "d"}}; !reflect.DeepEqual(ie.Pairs, want) {
		t.Errorf("pairs: got %v, want %v", ie.Pairs, want)
	}
	if len(ie.Missing) != 0 {
		t.Errorf("pairs: got missing taxa %v", ie.Missing)
	}
	pm.Set("b", "d", 1)
	pm.Set("c", "d", 1)
	if _, err := constraint.Build(parseTrees(t, "(a,b);", "(c,d);"), pm); err != nil {
		t.Errorf("pairs: unexpected error: %v", err)
	}

	// both errors are reported
	_, err = constraint.Build(parseTrees(t, "(a,b);", "(a,z);"), m)
	if !errors.As(err, &oe) {
		t.Errorf("multiple: expecting %T, got %v", oe, err)
	}
	if !errors.As(err, &ie) {
		t.Errorf("multiple: expecting %T, got %v", ie, err)
	}

	if _, err := constraint.Build(nil, m); err == nil {
		t.Errorf("empty: expecting error")
	}
}

func TestCanJoin(t *testing.T) {
	subsets := parseTrees(t,
		"((a,b),(c,d));",
		"((e,f),(g,h));",
	)
	m := flatMatrix(t, []string{"a", "b", "c", "d", "e", "f", "g", "h"}, 1)
	g, err := constraint.Build(subsets, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	x := g.Index()

	tests := map[string]struct {
		a, b []string
		want bool
	}{
		"sister taxa":        {[]string{"a"}, []string{"b"}, true},
		"non-sister taxa":    {[]string{"a"}, []string{"c"}, false},
		"clade and outsider": {[]string{"a", "b"}, []string{"c"}, true},
		"different subsets":  {[]string{"a"}, []string{"e"}, true},
		"broken clade": {
			a:    []string{"a", "e"},
			b:    []string{"c", "f"},
			want: false,
		},
		"whole clades": {
			a:    []string{"a", "b"},
			b:    []string{"e", "f"},
			want: true,
		},
		"mixed": {
			a:    []string{"a", "b"},
			b:    []string{"c", "e"},
			want: true,
		},
	}
	for name, test := range tests {
		got := g.CanJoin(x.Set(test.a...), x.Set(test.b...))
		if got != test.want {
			t.Errorf("%s: got %v, want %v", name, got, test.want)
		}
	}
}

func TestPairs(t *testing.T) {
	subsets := parseTrees(t, "(a,b);", "(c,d);")
	m := flatMatrix(t, []string{"a", "b", "c", "d"}, 2)
	m.Set("c", "d", 1)
	m.Set("a", "d", 3)

	g, err := constraint.Build(subsets, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []constraint.Pair{
		{A: "c", B: "d", Dist: 1},
		{A: "a", B: "b", Dist: 2},
		{A: "a", B: "c", Dist: 2},
		{A: "b", B: "c", Dist: 2},
		{A: "b", B: "d", Dist: 2},
		{A: "a", B: "d", Dist: 3},
	}
	if got := g.Pairs(); !reflect.DeepEqual(got, want) {
		t.Errorf("pairs: got %v, want %v", got, want)
	}
}
