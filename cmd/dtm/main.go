// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// DTM is a tool to merge disjoint phylogenetic trees.
package main

import (
	"github.com/js-arias/command"
	"github.com/js-arias/dtm/cmd/dtm/add"
	"github.com/js-arias/dtm/cmd/dtm/check"
	"github.com/js-arias/dtm/cmd/dtm/export"
	"github.com/js-arias/dtm/cmd/dtm/matrix"
	"github.com/js-arias/dtm/cmd/dtm/merge"
	"github.com/js-arias/dtm/cmd/dtm/param"
	"github.com/js-arias/dtm/cmd/dtm/plot"
	"github.com/js-arias/dtm/cmd/dtm/prj"
	"github.com/js-arias/dtm/cmd/dtm/terms"
)

var app = &command.Command{
	Usage: "dtm <command> [<argument>...]",
	Short: "a tool to merge disjoint phylogenetic trees",
}

func init() {
	app.Add(add.Command)
	app.Add(check.Command)
	app.Add(export.Command)
	app.Add(matrix.Command)
	app.Add(merge.Command)
	app.Add(param.Command)
	app.Add(plot.Command)
	app.Add(prj.Command)
	app.Add(terms.Command)
}

func main() {
	app.Main()
}
