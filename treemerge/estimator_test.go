// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package treemerge_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/js-arias/dtm/tree"
	"github.com/js-arias/dtm/treemerge"
	"github.com/spf13/afero"
)

func TestCommand(t *testing.T) {
	sh := "/bin/sh"
	if _, err := os.Stat(sh); err != nil {
		t.Skipf("shell not available: %v", err)
	}

	const topo = "((a:1,b:1):1,c:1,d:1);"
	newJob := func() treemerge.Job {
		dir := t.TempDir()
		name := filepath.Join(dir, "topology.tre")
		if err := os.WriteFile(name, []byte(topo+"\n"), 0644); err != nil {
			t.Fatalf("unable to write tree: %v", err)
		}
		return treemerge.Job{
			Fs:   afero.NewOsFs(),
			Dir:  dir,
			Tree: name,
		}
	}

	tests := map[string]struct {
		args      []string
		transient bool
		fail      bool
	}{
		"stdout": {
			args: []string{"-c", "cat {tree}"},
		},
		"output file": {
			args: []string{"-c", "cat {tree} > {output}"},
		},
		"empty output": {
			args:      []string{"-c", "true"},
			transient: true,
		},
		"missing output file": {
			args:      []string{"-c", "echo {output} > /dev/null"},
			transient: true,
		},
		"exit status": {
			args: []string{"-c", "exit 3"},
			fail: true,
		},
		"malformed": {
			args: []string{"-c", "echo '((a,b'"},
			fail: true,
		},
	}

	for n, test := range tests {
		c := treemerge.Command{
			Path: sh,
			Args: test.args,
		}
		lt, err := c.Estimate(context.Background(), newJob())
		if test.transient {
			if !errors.Is(err, treemerge.ErrTransient) {
				t.Errorf("%s: got error %v, want %v", n, err, treemerge.ErrTransient)
			}
			continue
		}
		if test.fail {
			if err == nil {
				t.Errorf("%s: expecting error", n)
			}
			if errors.Is(err, treemerge.ErrTransient) {
				t.Errorf("%s: unexpected transient error: %v", n, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", n, err)
			continue
		}
		want, _ := tree.Parse(topo)
		if !tree.SameTopology(lt, want) || !lt.HasLengths() {
			t.Errorf("%s: got %s, want %s", n, lt.Newick(), topo)
		}
	}

	// in memory file systems are not supported
	mem := newJob()
	mem.Fs = afero.NewMemMapFs()
	c := treemerge.Command{Path: sh, Args: []string{"-c", "cat {tree}"}}
	if _, err := c.Estimate(context.Background(), mem); err == nil {
		t.Errorf("memory file system: expecting error")
	}
}

func TestCommandTimeout(t *testing.T) {
	sh := "/bin/sh"
	if _, err := os.Stat(sh); err != nil {
		t.Skipf("shell not available: %v", err)
	}

	// the shell waits for a child process
	// that holds the standard output
	c := treemerge.Command{
		Path: sh,
		Args: []string{"-c", "sleep 3; echo '(a,b,c);'"},
	}
	job := treemerge.Job{
		Fs:  afero.NewOsFs(),
		Dir: t.TempDir(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.Estimate(ctx, job)
	elapsed := time.Since(start)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got error %v, want %v", err, context.DeadlineExceeded)
	}
	if elapsed > 2*time.Second {
		t.Errorf("elapsed %v: child processes were not killed", elapsed)
	}
}
