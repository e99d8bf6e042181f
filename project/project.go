// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package project implements the project file
// of a tree merge analysis.
//
// A project file is a two column TSV file
// that maps each input or output of an analysis
// (the subset trees, the dissimilarity matrix,
// the merged tree, and so on)
// to the path of the file that stores it,
// so the commands can be run
// without repeating the file names.
package project

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"
)

// Dataset identifies the role of a file
// in an analysis.
type Dataset string

// Datasets of a project.
const (
	// Subset trees,
	// in Newick format.
	Subsets Dataset = "subsets"

	// Dissimilarity matrix,
	// as a PHYLIP matrix
	// or a list of taxon pairs.
	Matrix Dataset = "matrix"

	// Taxon names of the rows
	// of a PHYLIP matrix without labels.
	Taxa Dataset = "taxa"

	// Character data passed
	// to an external branch length estimator.
	Alignment Dataset = "alignment"

	// Starting tree
	// that defines the spanning tree over the subsets.
	Start Dataset = "start"

	// Merge parameters.
	Params Dataset = "params"

	// Merged tree.
	Output Dataset = "output"
)

// datasets is the order of the datasets
// in a project file:
// inputs first,
// then parameters and outputs.
var datasets = []Dataset{
	Subsets,
	Matrix,
	Taxa,
	Alignment,
	Start,
	Params,
	Output,
}

// A Project stores the paths of the datasets
// of an analysis.
type Project struct {
	name  string
	paths map[Dataset]string
}

// New returns a project without datasets.
func New() *Project {
	return &Project{paths: make(map[Dataset]string)}
}

var header = []string{
	"dataset",
	"path",
}

// Read reads a project file.
//
// The file is a TSV file with two columns:
//
//   - dataset, the role of the file
//     (subsets, matrix, taxa, alignment, start, params, or output)
//   - path, the path of the file
//
// A dataset can be defined only once.
// Rows with an empty path are ignored.
//
// Example:
//
//	# dtm project
//	dataset	path
//	subsets	subsets.tre
//	matrix	distances.phy
//	params	params.tab
//	output	merged.tre
func Read(name string) (*Project, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("on file %q: %v", name, err)
	}
	p.name = name
	return p, nil
}

func read(r io.Reader) (*Project, error) {
	tsv := csv.NewReader(r)
	tsv.Comma = '\t'
	tsv.Comment = '#'

	head, err := tsv.Read()
	if err != nil {
		return nil, fmt.Errorf("header: %v", err)
	}
	cols := make(map[string]int, len(head))
	for i, h := range head {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, h := range header {
		if _, ok := cols[h]; !ok {
			return nil, fmt.Errorf("expecting field %q", h)
		}
	}

	p := New()
	for {
		row, err := tsv.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		ln, _ := tsv.FieldPos(0)
		if err != nil {
			return nil, fmt.Errorf("row %d: %v", ln, err)
		}

		set := Dataset(strings.ToLower(strings.TrimSpace(row[cols["dataset"]])))
		if !slices.Contains(datasets, set) {
			return nil, fmt.Errorf("row %d: unknown dataset %q", ln, set)
		}
		path := strings.TrimSpace(row[cols["path"]])
		if path == "" {
			continue
		}
		if _, dup := p.paths[set]; dup {
			return nil, fmt.Errorf("row %d: dataset %q already defined", ln, set)
		}
		p.paths[set] = path
	}
	return p, nil
}

// Add sets the path of a dataset,
// and returns the previous path.
// An empty path removes the dataset.
func (p *Project) Add(set Dataset, path string) string {
	prev := p.paths[set]
	if path == "" {
		delete(p.paths, set)
	} else {
		p.paths[set] = path
	}
	return prev
}

// Name returns the file name of the project.
func (p *Project) Name() string {
	return p.name
}

// Path returns the path of a dataset,
// or an empty string if the dataset is not defined.
func (p *Project) Path(set Dataset) string {
	return p.paths[set]
}

// Sets returns the defined datasets,
// in the order used in the project file.
func (p *Project) Sets() []Dataset {
	sets := make([]Dataset, 0, len(p.paths))
	for _, s := range datasets {
		if _, ok := p.paths[s]; ok {
			sets = append(sets, s)
		}
	}
	return sets
}

// SetName sets the file name of the project.
func (p *Project) SetName(name string) {
	p.name = name
}

// Write stores the project
// in the file set with SetName.
func (p *Project) Write() (err error) {
	if p.name == "" {
		return errors.New("project without file name")
	}
	f, err := os.Create(p.name)
	if err != nil {
		return err
	}
	defer func() {
		if e := f.Close(); e != nil && err == nil {
			err = e
		}
	}()

	if err := p.write(f); err != nil {
		return fmt.Errorf("on file %q: %v", p.name, err)
	}
	return nil
}

func (p *Project) write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# dtm project\n")
	fmt.Fprintf(bw, "# saved: %s\n", time.Now().Format(time.RFC3339))

	tsv := csv.NewWriter(bw)
	tsv.Comma = '\t'
	tsv.UseCRLF = true
	if err := tsv.Write(header); err != nil {
		return fmt.Errorf("header: %v", err)
	}
	for _, s := range p.Sets() {
		if err := tsv.Write([]string{string(s), p.paths[s]}); err != nil {
			return err
		}
	}
	tsv.Flush()
	if err := tsv.Error(); err != nil {
		return err
	}
	return bw.Flush()
}
