// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

//go:build !unix

package treemerge

import "os/exec"

func setGroup(cmd *exec.Cmd) {}
