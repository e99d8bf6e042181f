// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package tree

// Restrict returns a new tree
// with only the terminals in the given taxon list.
// Nodes left with a single descendant are removed,
// adding their branch length to the descendant.
// It returns nil if no terminal is retained.
func (t *Tree) Restrict(taxa []string) *Tree {
	keep := make(map[string]bool, len(taxa))
	for _, tx := range taxa {
		keep[tx] = true
	}
	if t.root < 0 {
		return nil
	}

	nt := New(t.name)
	id, ok := t.restrictNode(nt, t.root, keep)
	if !ok {
		return nil
	}
	nt.root = id
	nt.ClearLength(id)
	return nt
}

func (t *Tree) restrictNode(nt *Tree, id int, keep map[string]bool) (int, bool) {
	n := t.nodes[id]
	if len(n.children) == 0 {
		if !keep[n.taxon] {
			return -1, false
		}
		nid := nt.AddTerm(n.taxon)
		if n.hasLength {
			nt.SetLength(nid, n.length)
		}
		return nid, true
	}

	var desc []int
	for _, c := range n.children {
		if nc, ok := t.restrictNode(nt, c, keep); ok {
			desc = append(desc, nc)
		}
	}
	switch len(desc) {
	case 0:
		return -1, false
	case 1:
		// collapse the node
		c := desc[0]
		if n.hasLength {
			l, _ := nt.Length(c)
			nt.SetLength(c, l+n.length)
		}
		return c, true
	}

	nid := nt.AddNode()
	nt.SetLabel(nid, n.label)
	for _, c := range desc {
		nt.Connect(nid, c)
	}
	if n.hasLength {
		nt.SetLength(nid, n.length)
	}
	return nid, true
}

// Unroot returns a copy of the tree
// in which a bifurcating root is removed
// by joining its two descendants.
// If the tree is already unrooted
// (i.e., the root has three or more descendants),
// or it has less than three terminals,
// a copy of the tree is returned.
func (t *Tree) Unroot() *Tree {
	nt := t.Clone()
	if nt.root < 0 {
		return nt
	}
	r := nt.nodes[nt.root]
	if len(r.children) != 2 {
		return nt
	}

	// the internal descendant becomes the new root
	a, b := r.children[0], r.children[1]
	if nt.IsTerm(a) {
		a, b = b, a
	}
	if nt.IsTerm(a) {
		return nt
	}
	la, okA := nt.Length(a)
	lb, okB := nt.Length(b)

	r.children = nil
	nt.nodes[a].parent = -1
	nt.ClearLength(a)
	nt.root = a
	nt.Connect(a, b)
	if okA || okB {
		nt.SetLength(b, la+lb)
	} else {
		nt.ClearLength(b)
	}
	return nt.compact()
}

// Compact removes detached nodes,
// and renumbers nodes in pre-order.
func (t *Tree) compact() *Tree {
	nt := New(t.name)
	if t.root < 0 {
		return nt
	}
	ids := make(map[int]int, len(t.nodes))
	for _, id := range t.Nodes() {
		n := t.nodes[id]
		var nid int
		if len(n.children) == 0 {
			nid = nt.AddTerm(n.taxon)
		} else {
			nid = nt.AddNode()
			nt.SetLabel(nid, n.label)
		}
		ids[id] = nid
		if n.hasLength {
			nt.SetLength(nid, n.length)
		}
		if n.parent >= 0 {
			nt.Connect(ids[n.parent], nid)
		}
	}
	nt.root = ids[t.root]
	return nt
}
