// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package tree implements phylogenetic trees
// with optional branch lengths,
// as used by the disjoint tree merging methods.
//
// A tree is always stored as a rooted structure,
// but it can be interpreted as unrooted:
// a root with three or more descendants
// is the usual representation of an unrooted tree
// in the Newick format.
package tree

import (
	"fmt"
	"slices"
)

// A Tree is a phylogenetic tree.
type Tree struct {
	name  string
	root  int
	nodes []*node
}

type node struct {
	id       int
	parent   int
	children []int

	taxon string
	label string

	length    float64
	hasLength bool
}

// New creates a new empty tree.
func New(name string) *Tree {
	return &Tree{
		name: name,
		root: -1,
	}
}

// Name returns the name of the tree.
func (t *Tree) Name() string {
	return t.name
}

// SetName sets the name of the tree.
func (t *Tree) SetName(name string) {
	t.name = name
}

// AddNode adds a new internal node to the tree.
// The node is detached,
// use Connect to place it in the tree.
func (t *Tree) AddNode() int {
	n := &node{
		id:     len(t.nodes),
		parent: -1,
	}
	t.nodes = append(t.nodes, n)
	if t.root < 0 {
		t.root = n.id
	}
	return n.id
}

// AddTerm adds a new terminal node
// with the given taxon name.
// The node is detached,
// use Connect to place it in the tree.
func (t *Tree) AddTerm(taxon string) int {
	id := t.AddNode()
	t.nodes[id].taxon = taxon
	return id
}

// Connect sets parent as the parent node of child.
// If child has a previous parent,
// it is removed from the descendants of that parent.
func (t *Tree) Connect(parent, child int) {
	c := t.nodes[child]
	if c.parent >= 0 {
		p := t.nodes[c.parent]
		if i := slices.Index(p.children, child); i >= 0 {
			p.children = slices.Delete(p.children, i, i+1)
		}
	}
	c.parent = parent
	p := t.nodes[parent]
	p.children = append(p.children, child)
	if t.root == child {
		t.root = parent
	}
}

// SetRoot sets the root of the tree.
func (t *Tree) SetRoot(id int) {
	t.root = id
}

// SetLength sets the length of the branch
// that connects a node with its parent.
func (t *Tree) SetLength(id int, length float64) {
	t.nodes[id].length = length
	t.nodes[id].hasLength = true
}

// ClearLength removes the length of the branch
// that connects a node with its parent.
func (t *Tree) ClearLength(id int) {
	t.nodes[id].length = 0
	t.nodes[id].hasLength = false
}

// SetLabel sets a label
// (usually a support value)
// of an internal node.
func (t *Tree) SetLabel(id int, label string) {
	t.nodes[id].label = label
}

// Root returns the ID of the root node.
// It returns -1 on an empty tree.
func (t *Tree) Root() int {
	return t.root
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Children returns the IDs of the descendants of a node.
func (t *Tree) Children(id int) []int {
	return slices.Clone(t.nodes[id].children)
}

// Parent returns the ID of the parent of a node.
// It returns -1 for the root.
func (t *Tree) Parent(id int) int {
	return t.nodes[id].parent
}

// IsRoot returns true if the node is the root of the tree.
func (t *Tree) IsRoot(id int) bool {
	return t.root == id
}

// IsTerm returns true if the node is a terminal.
func (t *Tree) IsTerm(id int) bool {
	return len(t.nodes[id].children) == 0
}

// Taxon returns the taxon name of a node.
func (t *Tree) Taxon(id int) string {
	return t.nodes[id].taxon
}

// Length returns the length of the branch
// that connects a node with its parent.
// The boolean is false if the branch has no length.
func (t *Tree) Length(id int) (float64, bool) {
	n := t.nodes[id]
	return n.length, n.hasLength
}

// Nodes returns the IDs of the nodes attached to the tree
// in pre-order.
func (t *Tree) Nodes() []int {
	if t.root < 0 {
		return nil
	}
	ids := make([]int, 0, len(t.nodes))
	stack := []int{t.root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		ids = append(ids, id)
		ch := t.nodes[id].children
		for i := len(ch) - 1; i >= 0; i-- {
			stack = append(stack, ch[i])
		}
	}
	return ids
}

// Terms returns the sorted list of taxon names
// of the terminals of the tree.
func (t *Tree) Terms() []string {
	var terms []string
	for _, id := range t.Nodes() {
		if t.IsTerm(id) {
			terms = append(terms, t.nodes[id].taxon)
		}
	}
	slices.Sort(terms)
	return terms
}

// TaxNode returns the ID of the node
// assigned to a taxon.
func (t *Tree) TaxNode(taxon string) (int, bool) {
	for _, id := range t.Nodes() {
		if t.IsTerm(id) && t.nodes[id].taxon == taxon {
			return id, true
		}
	}
	return -1, false
}

// HasLengths returns true if all branches
// (except the root)
// have a defined length.
func (t *Tree) HasLengths() bool {
	for _, id := range t.Nodes() {
		if id == t.root {
			continue
		}
		if !t.nodes[id].hasLength {
			return false
		}
	}
	return true
}

// Validate checks that the tree has at least one terminal,
// that every terminal has a name,
// and that terminal names are not repeated.
func (t *Tree) Validate() error {
	if t.root < 0 {
		return fmt.Errorf("tree %q: empty tree", t.name)
	}
	seen := make(map[string]bool)
	for _, id := range t.Nodes() {
		if !t.IsTerm(id) {
			continue
		}
		tax := t.nodes[id].taxon
		if tax == "" {
			return fmt.Errorf("tree %q: terminal without name", t.name)
		}
		if seen[tax] {
			return fmt.Errorf("tree %q: repeated terminal %q", t.name, tax)
		}
		seen[tax] = true
	}
	return nil
}

// Clone returns a copy of the tree.
// Node IDs are preserved,
// detached nodes are kept.
func (t *Tree) Clone() *Tree {
	nt := &Tree{
		name:  t.name,
		root:  t.root,
		nodes: make([]*node, len(t.nodes)),
	}
	for i, n := range t.nodes {
		cp := *n
		cp.children = slices.Clone(n.children)
		nt.nodes[i] = &cp
	}
	return nt
}
