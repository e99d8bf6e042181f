// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package project

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/js-arias/dtm/distmat"
	"github.com/js-arias/dtm/mergeparam"
	"github.com/js-arias/dtm/tree"
)

// Matrix reads the dissimilarity matrix
// as defined in a project.
func (p *Project) Matrix() (*distmat.Matrix, error) {
	name := p.Path(Matrix)
	if name == "" {
		return nil, fmt.Errorf("dissimilarity matrix not defined in project %q", p.name)
	}
	return ReadMatrix(name, p.Path(Taxa))
}

// Params reads the merge parameters
// as defined in a project.
// If no parameters are defined,
// it returns the default parameters.
func (p *Project) Params() (*mergeparam.MP, error) {
	name := p.Path(Params)
	if name == "" {
		return mergeparam.New(""), nil
	}
	return mergeparam.Read(name)
}

// StartTree reads the starting tree
// as defined in a project.
// If no starting tree is defined,
// it returns nil.
func (p *Project) StartTree() (*tree.Tree, error) {
	name := p.Path(Start)
	if name == "" {
		return nil, nil
	}
	ts, err := ReadTrees(name)
	if err != nil {
		return nil, err
	}
	if len(ts) > 1 {
		return nil, fmt.Errorf("on file %q: expecting a single tree, found %d", name, len(ts))
	}
	return ts[0], nil
}

// Subsets reads the subset trees
// as defined in a project.
func (p *Project) Subsets() ([]*tree.Tree, error) {
	name := p.Path(Subsets)
	if name == "" {
		return nil, fmt.Errorf("subset trees not defined in project %q", p.name)
	}
	return ReadTrees(name)
}

// ReadTrees reads the trees of a Newick file.
// A single tree is named after the file
// (without extension),
// otherwise the file name is followed by the number of the tree.
func ReadTrees(name string) ([]*tree.Tree, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	ts, err := tree.Read(f, base)
	if err != nil {
		return nil, fmt.Errorf("on file %q: %v", name, err)
	}
	if len(ts) == 0 {
		return nil, fmt.Errorf("on file %q: no trees found", name)
	}
	return ts, nil
}

// ReadMatrix reads a dissimilarity matrix.
// The file can be a PHYLIP matrix,
// or a TSV file with a taxon pair per row.
// If taxa is not empty,
// it is the file with the taxon names
// of the rows of a PHYLIP matrix.
func ReadMatrix(name, taxa string) (*distmat.Matrix, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	phylip, err := isPhylip(r)
	if err != nil {
		return nil, fmt.Errorf("on file %q: %v", name, err)
	}

	var m *distmat.Matrix
	if phylip {
		var names []string
		if taxa != "" {
			names, err = readTaxa(taxa)
			if err != nil {
				return nil, err
			}
		}
		m, err = distmat.ReadPhylip(r, names)
	} else {
		m, err = distmat.ReadTSV(r)
	}
	if err != nil {
		return nil, fmt.Errorf("on file %q: %v", name, err)
	}
	return m, nil
}

// isPhylip returns true if the first non blank line
// is the number of taxa.
func isPhylip(r *bufio.Reader) (bool, error) {
	for n := 64; ; n *= 2 {
		b, err := r.Peek(n)
		if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
			return false, err
		}
		s := bytes.TrimLeft(b, " \t\r\n")
		if i := bytes.IndexByte(s, '\n'); i >= 0 || err != nil {
			if i >= 0 {
				s = s[:i]
			}
			_, convErr := strconv.Atoi(string(bytes.TrimSpace(s)))
			return convErr == nil, nil
		}
	}
}

func readTaxa(name string) ([]string, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	taxa, err := distmat.ReadTaxa(f)
	if err != nil {
		return nil, fmt.Errorf("on file %q: %v", name, err)
	}
	return taxa, nil
}
