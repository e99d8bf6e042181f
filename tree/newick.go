// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package tree

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// Parse reads a tree in Newick format from a string.
func Parse(s string) (*Tree, error) {
	ts, err := Read(strings.NewReader(s), "")
	if err != nil {
		return nil, err
	}
	if len(ts) == 0 {
		return nil, errors.New("newick: no tree found")
	}
	return ts[0], nil
}

// Read reads one or more trees in Newick format.
// Each tree must be terminated by a semicolon.
//
// If the reader contains a single tree,
// the tree will be named using the given name.
// If there are more trees,
// then the name will be followed by a dot
// and the number of the tree
// (starting at 1).
//
// Comments in square brackets are ignored,
// quoted labels (using single quotes) are accepted,
// and labels of internal nodes
// (for example, support values)
// are kept as node labels.
func Read(r io.Reader, name string) ([]*Tree, error) {
	p := &parser{r: bufio.NewReader(r), line: 1}

	var ts []*Tree
	for {
		ok, err := p.skipSpace()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		t := New("")
		if _, err := p.readNode(t, -1); err != nil {
			return nil, fmt.Errorf("newick: tree %d: line %d: %v", len(ts)+1, p.line, err)
		}
		if _, err := p.skipSpace(); err != nil {
			return nil, err
		}
		r, err := p.next()
		if err != nil || r != ';' {
			return nil, fmt.Errorf("newick: tree %d: line %d: expecting ';'", len(ts)+1, p.line)
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("newick: tree %d: %v", len(ts)+1, err)
		}
		ts = append(ts, t)
	}

	if len(ts) == 1 {
		ts[0].name = name
		return ts, nil
	}
	if name == "" {
		name = "tree"
	}
	for i, t := range ts {
		t.name = fmt.Sprintf("%s.%d", name, i+1)
	}
	return ts, nil
}

type parser struct {
	r    *bufio.Reader
	line int
}

func (p *parser) next() (rune, error) {
	r, _, err := p.r.ReadRune()
	if err != nil {
		return 0, err
	}
	if r == '\n' {
		p.line++
	}
	return r, nil
}

func (p *parser) unread() {
	p.r.UnreadRune()
}

// SkipSpace skips blanks and comments.
// It returns false at the end of the input.
func (p *parser) skipSpace() (bool, error) {
	for {
		r, err := p.next()
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if unicode.IsSpace(r) {
			continue
		}
		if r == '[' {
			if err := p.skipComment(); err != nil {
				return false, err
			}
			continue
		}
		p.unread()
		return true, nil
	}
}

func (p *parser) skipComment() error {
	for {
		r, err := p.next()
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("line %d: unterminated comment", p.line)
		}
		if err != nil {
			return err
		}
		if r == ']' {
			return nil
		}
	}
}

func (p *parser) readNode(t *Tree, parent int) (int, error) {
	if _, err := p.skipSpace(); err != nil {
		return -1, err
	}
	r, err := p.next()
	if err != nil {
		return -1, fmt.Errorf("unexpected end of tree")
	}

	var id int
	if r == '(' {
		id = t.AddNode()
		if parent >= 0 {
			t.Connect(parent, id)
		}
		for {
			if _, err := p.readNode(t, id); err != nil {
				return -1, err
			}
			if _, err := p.skipSpace(); err != nil {
				return -1, err
			}
			r, err := p.next()
			if err != nil {
				return -1, fmt.Errorf("unexpected end of tree")
			}
			if r == ',' {
				continue
			}
			if r == ')' {
				break
			}
			return -1, fmt.Errorf("unexpected %q", r)
		}
		lbl, err := p.readLabel()
		if err != nil {
			return -1, err
		}
		t.SetLabel(id, lbl)
	} else {
		p.unread()
		lbl, err := p.readLabel()
		if err != nil {
			return -1, err
		}
		if lbl == "" {
			return -1, fmt.Errorf("terminal without name")
		}
		id = t.AddTerm(lbl)
		if parent >= 0 {
			t.Connect(parent, id)
		}
	}

	if _, err := p.skipSpace(); err != nil {
		return -1, err
	}
	r, err = p.next()
	if err != nil {
		return id, nil
	}
	if r != ':' {
		p.unread()
		return id, nil
	}
	if _, err := p.skipSpace(); err != nil {
		return -1, err
	}
	var b strings.Builder
	for {
		r, err := p.next()
		if err != nil {
			break
		}
		if strings.ContainsRune(",);[", r) || unicode.IsSpace(r) {
			p.unread()
			break
		}
		b.WriteRune(r)
	}
	l, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return -1, fmt.Errorf("invalid branch length %q: %v", b.String(), err)
	}
	t.SetLength(id, l)
	return id, nil
}

func (p *parser) readLabel() (string, error) {
	if _, err := p.skipSpace(); err != nil {
		return "", err
	}
	r, err := p.next()
	if err != nil {
		return "", nil
	}
	if r == '\'' {
		var b strings.Builder
		for {
			r, err := p.next()
			if err != nil {
				return "", fmt.Errorf("unterminated quoted label")
			}
			if r == '\'' {
				// a doubled quote is an escaped quote
				nr, err := p.next()
				if err == nil && nr == '\'' {
					b.WriteRune('\'')
					continue
				}
				if err == nil {
					p.unread()
				}
				return b.String(), nil
			}
			b.WriteRune(r)
		}
	}
	p.unread()

	var b strings.Builder
	for {
		r, err := p.next()
		if err != nil {
			break
		}
		if strings.ContainsRune("(),:;[", r) || unicode.IsSpace(r) {
			p.unread()
			break
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}

// Newick returns the tree in Newick format.
func (t *Tree) Newick() string {
	if t.root < 0 {
		return ";"
	}
	var b strings.Builder
	t.writeNode(&b, t.root)
	b.WriteString(";")
	return b.String()
}

// WriteNewick writes the tree in Newick format,
// followed by a new line.
func (t *Tree) WriteNewick(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%s\n", t.Newick()); err != nil {
		return fmt.Errorf("while writing tree %q: %v", t.name, err)
	}
	return nil
}

func (t *Tree) writeNode(b *strings.Builder, id int) {
	n := t.nodes[id]
	if len(n.children) > 0 {
		b.WriteString("(")
		for i, c := range n.children {
			if i > 0 {
				b.WriteString(",")
			}
			t.writeNode(b, c)
		}
		b.WriteString(")")
		b.WriteString(quote(n.label))
	} else {
		b.WriteString(quote(n.taxon))
	}
	if n.hasLength && id != t.root {
		b.WriteString(":")
		b.WriteString(strconv.FormatFloat(n.length, 'g', -1, 64))
	}
}

func quote(s string) string {
	if s == "" {
		return ""
	}
	if !strings.ContainsFunc(s, needQuote) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func needQuote(r rune) bool {
	return unicode.IsSpace(r) || slices.Contains([]rune("(),:;[]'"), r)
}
