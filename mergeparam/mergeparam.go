// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package mergeparam implements reading and writing
// of the parameters of a tree merge analysis.
package mergeparam

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Param is a keyword to identify
// the type of parameter in a parameter file.
type Param string

// Valid parameters
const (
	// Args is the argument template
	// of the branch length estimator.
	Args Param = "args"

	// CPU is the number of goroutines
	// used in concurrent steps.
	CPU Param = "cpu"

	// Estimator is the path of the branch length estimator.
	Estimator Param = "estimator"

	// Keep indicates if the working directory
	// should be kept.
	Keep Param = "keep"

	// MaxCand is the maximum number of pairs
	// examined at each NJMerge step.
	MaxCand Param = "maxcand"

	// Mode is the merge method.
	Mode Param = "mode"

	// Timeout is the maximum time used
	// by the branch length estimator.
	Timeout Param = "timeout"

	// WorkDir is the directory
	// used for working directories.
	WorkDir Param = "workdir"
)

// Valid merge methods.
const (
	NJMerge   = "njmerge"
	TreeMerge = "treemerge"
)

// MP represents a collection of merge parameters.
type MP struct {
	name string // file name

	mode string

	// estimator
	est     string
	args    []string
	timeout time.Duration
	keep    bool
	workDir string

	maxCand int
	cpu     int
}

// New creates a new parameter collection
// with default values.
func New(name string) *MP {
	return &MP{
		name:    name,
		mode:    NJMerge,
		timeout: 10 * time.Minute,
	}
}

var header = []string{
	"parameter",
	"value",
}

// Read reads a parameter file from a TSV file.
//
// The TSV must contains the following fields:
//
//   - parameter, the name of the parameter
//   - value, the value of the parameter
//
// Here is an example file:
//
//	# dtm merge parameters
//	parameter	value
//	mode	treemerge
//	estimator	sh
//	args	-c 'raxml-ng --evaluate --msa {alignment} --tree {tree} --prefix {dir}/bl && cp {dir}/bl.raxml.bestTree {output}'
//	timeout	30m
//	keep	false
func Read(name string) (*MP, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	mp, err := read(f, name)
	if err != nil {
		return nil, fmt.Errorf("on file %q: %v", name, err)
	}
	return mp, nil
}

func read(r io.Reader, name string) (*MP, error) {
	tsv := csv.NewReader(r)
	tsv.Comma = '\t'
	tsv.Comment = '#'
	tsv.LazyQuotes = true

	head, err := tsv.Read()
	if err != nil {
		return nil, fmt.Errorf("header: %v", err)
	}
	fields := make(map[string]int, len(head))
	for i, h := range head {
		h = strings.ToLower(h)
		fields[h] = i
	}
	for _, h := range header {
		if _, ok := fields[h]; !ok {
			return nil, fmt.Errorf("expecting field %q", h)
		}
	}

	mp := New(name)
	for {
		row, err := tsv.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		ln, _ := tsv.FieldPos(0)
		if err != nil {
			return nil, fmt.Errorf("on row %d: %v", ln, err)
		}

		f := "parameter"
		p := Param(strings.ToLower(strings.TrimSpace(row[fields[f]])))

		f = "value"
		v := strings.TrimSpace(row[fields[f]])
		if err := mp.Set(p, v); err != nil {
			return nil, fmt.Errorf("on row %d, field %q: %v", ln, f, err)
		}
	}
	return mp, nil
}

// Set sets a parameter from its string value.
// Unknown parameters are ignored.
func (mp *MP) Set(p Param, v string) error {
	switch p {
	case Args:
		return mp.SetArgs(v)
	case CPU:
		c, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		return mp.SetCPU(c)
	case Estimator:
		mp.est = v
	case Keep:
		k, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		mp.keep = k
	case MaxCand:
		m, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		return mp.SetMaxCandidates(m)
	case Mode:
		return mp.SetMode(v)
	case Timeout:
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		return mp.SetTimeout(d)
	case WorkDir:
		mp.workDir = v
	}
	return nil
}

// Args returns the argument template
// of the branch length estimator.
func (mp *MP) Args() []string {
	return append([]string(nil), mp.args...)
}

// CPU returns the number of goroutines
// used in concurrent steps.
// If 0,
// the number of CPUs should be used.
func (mp *MP) CPU() int {
	return mp.cpu
}

// Estimator returns the path
// of the branch length estimator.
// If empty,
// the lengths are estimated with least squares.
func (mp *MP) Estimator() string {
	return mp.est
}

// Keep returns true if the working directory
// should be kept.
func (mp *MP) Keep() bool {
	return mp.keep
}

// MaxCandidates returns the maximum number of pairs
// examined at each NJMerge step.
// If 0,
// all pairs can be examined.
func (mp *MP) MaxCandidates() int {
	return mp.maxCand
}

// Mode returns the merge method.
func (mp *MP) Mode() string {
	return mp.mode
}

// Name returns the file name of the parameter collection.
func (mp *MP) Name() string {
	return mp.name
}

// Timeout returns the maximum time
// used by the branch length estimator.
func (mp *MP) Timeout() time.Duration {
	return mp.timeout
}

// WorkDir returns the directory
// in which working directories are created.
func (mp *MP) WorkDir() string {
	return mp.workDir
}

// SetArgs sets the argument template
// of the branch length estimator.
// Arguments are separated by spaces;
// use quotes for arguments that contain spaces.
func (mp *MP) SetArgs(args string) error {
	a, err := splitArgs(args)
	if err != nil {
		return err
	}
	mp.args = a
	return nil
}

// SetCPU sets the number of goroutines.
func (mp *MP) SetCPU(c int) error {
	if c < 0 {
		return fmt.Errorf("invalid number of CPUs: %d", c)
	}
	mp.cpu = c
	return nil
}

// SetEstimator sets the path of the branch length estimator.
func (mp *MP) SetEstimator(path string) {
	mp.est = strings.TrimSpace(path)
}

// SetKeep sets if the working directory
// should be kept.
func (mp *MP) SetKeep(keep bool) {
	mp.keep = keep
}

// SetMaxCandidates sets the maximum number of pairs
// examined at each NJMerge step.
func (mp *MP) SetMaxCandidates(m int) error {
	if m < 0 {
		return fmt.Errorf("invalid number of candidates: %d", m)
	}
	mp.maxCand = m
	return nil
}

// SetMode sets the merge method.
func (mp *MP) SetMode(mode string) error {
	mode = strings.ToLower(strings.TrimSpace(mode))
	switch mode {
	case NJMerge:
	case TreeMerge:
	default:
		return fmt.Errorf("unknown merge method %q", mode)
	}
	mp.mode = mode
	return nil
}

// SetName sets the name of a parameter collection.
func (mp *MP) SetName(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	mp.name = name
}

// SetTimeout sets the maximum time
// used by the branch length estimator.
// A zero value means no timeout.
func (mp *MP) SetTimeout(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("invalid timeout: %v", d)
	}
	mp.timeout = d
	return nil
}

// SetWorkDir sets the directory
// in which working directories are created.
func (mp *MP) SetWorkDir(dir string) {
	mp.workDir = strings.TrimSpace(dir)
}

// Write writes a parameter collection into a file.
func (mp *MP) Write() (err error) {
	f, err := os.Create(mp.name)
	if err != nil {
		return err
	}
	defer func() {
		e := f.Close()
		if e != nil && err == nil {
			err = e
		}
	}()

	bw := bufio.NewWriter(f)
	fmt.Fprintf(bw, "# dtm merge parameters\n")
	fmt.Fprintf(bw, "# data save on: %s\n", time.Now().Format(time.RFC3339))
	tsv := csv.NewWriter(bw)
	tsv.Comma = '\t'
	tsv.UseCRLF = true

	if err := tsv.Write(header); err != nil {
		return fmt.Errorf("on file %q: while writing header: %v", mp.name, err)
	}

	rows := [][]string{
		{string(Mode), mp.mode},
		{string(Estimator), mp.est},
		{string(Args), joinArgs(mp.args)},
		{string(Timeout), mp.timeout.String()},
		{string(Keep), strconv.FormatBool(mp.keep)},
		{string(WorkDir), mp.workDir},
		{string(MaxCand), strconv.Itoa(mp.maxCand)},
		{string(CPU), strconv.Itoa(mp.cpu)},
	}
	for _, row := range rows {
		if err := tsv.Write(row); err != nil {
			return fmt.Errorf("on file %q: %v", mp.name, err)
		}
	}

	tsv.Flush()
	if err := tsv.Error(); err != nil {
		return fmt.Errorf("on file %q: while writing data: %v", mp.name, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("on file %q: while writing data: %v", mp.name, err)
	}
	return nil
}
