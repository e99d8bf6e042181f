// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package treemerge

import (
	"errors"
	"fmt"
	"time"
)

// ErrTransient is returned by an estimator
// when the failure is a transient I/O problem,
// for example,
// an output file that is missing or empty.
// A call that fails with ErrTransient
// is retried once.
var ErrTransient = errors.New("transient estimator failure")

// SpanningTreeMismatchError is returned when
// the starting tree does not define a valid spanning tree
// over the subsets.
type SpanningTreeMismatchError struct {
	Reason string
}

func (e *SpanningTreeMismatchError) Error() string {
	return "treemerge: spanning tree mismatch: " + e.Reason
}

// BranchLengthEstimationError is returned when
// the branch length estimator fails,
// or returns an invalid tree.
type BranchLengthEstimationError struct {
	Err error
}

func (e *BranchLengthEstimationError) Error() string {
	return fmt.Sprintf("treemerge: branch length estimation: %v", e.Err)
}

func (e *BranchLengthEstimationError) Unwrap() error {
	return e.Err
}

// BranchLengthEstimationTimeout is returned when
// the branch length estimator
// does not finish before the timeout.
type BranchLengthEstimationTimeout struct {
	Timeout time.Duration
}

func (e *BranchLengthEstimationTimeout) Error() string {
	return fmt.Sprintf("treemerge: branch length estimation: timeout after %v", e.Timeout)
}
