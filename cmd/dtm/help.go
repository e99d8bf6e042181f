// Copyright © 2026 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package main

import "github.com/js-arias/command"

func init() {
	app.Add(matrixFilesGuide)
	app.Add(projectsGuide)
	app.Add(treeFilesGuide)
}

var projectsGuide = &command.Command{
	Usage: "projects",
	Short: "about project files",
	Long: `
A tree merge requires several files: the subset trees, the dissimilarity
matrix, and optionally a starting tree, an alignment, and a parameter file. To
reduce the burden of keeping track of many files, a single project file can be
used to hold the reference of all files required in the analysis. Most of the
time, the best way to edit or view this file is by using the commands
'dtm add' and 'dtm prj'.

A project file is a tab-delimited file with the following fields:

	- dataset  for the kind of file
	- path     for the path of the file

Here is an example file:

	# dtm project files
	dataset	path
	subsets	subsets.tre
	matrix	distances.phy
	params	params.tab
	output	merged.tre

The valid file types are:

- Subset trees. Defined by the dataset keyword "subsets". A newick file with
  one or more trees, each tree with a disjoint set of taxa.
- Dissimilarity matrix. Defined by the dataset keyword "matrix". A PHYLIP or
  a tab-delimited matrix (see 'dtm help matrix-files').
- Taxon names. Defined by the dataset keyword "taxa". A file with a taxon
  name per line, that replace the row labels of a PHYLIP matrix.
- Starting tree. Defined by the dataset keyword "start". A newick tree used
  by TreeMerge to define which subsets are adjacent.
- Alignment. Defined by the dataset keyword "alignment". The character data
  passed to an external branch length estimator.
- Parameters. Defined by the dataset keyword "params". A tab-delimited file
  with the merge parameters (see 'dtm help param').
- Output. Defined by the dataset keyword "output". The file in which the
  merged tree will be written.
	`,
}

var matrixFilesGuide = &command.Command{
	Usage: "matrix-files",
	Short: "about dissimilarity matrix files",
	Long: `
A dissimilarity matrix stores a non-negative value for each pair of taxa. DTM
reads two matrix formats, and the format is detected from the content of the
file.

The first format is a square PHYLIP matrix. The first line is the number of
taxa, followed by a row per taxon, with the name of the taxon and its
distances. A lower triangular matrix is also accepted. For example:

	4
	A 0.0 0.2 0.3 0.4
	B 0.2 0.0 0.3 0.4
	C 0.3 0.3 0.0 0.1
	D 0.4 0.4 0.1 0.0

If the row names are not the taxon names (e.g., because they are truncated),
a file with a taxon name per line can be used to name the rows, in the same
order as in the matrix.

The second format is a tab-delimited file with the following columns:

	- taxon1    the name of the first taxon
	- taxon2    the name of the second taxon
	- distance  the dissimilarity between both taxa

Here is an example file:

	taxon1	taxon2	distance
	A	B	0.200000
	A	C	0.300000
	B	C	0.300000

Pairs not defined in a tab-delimited file are undefined: 'dtm merge' stops
with an error if a pair of taxa of the subset trees is undefined, and an
incomplete matrix can not be written in PHYLIP format. The command
'dtm matrix' can be used to convert between both formats.
	`,
}

var treeFilesGuide = &command.Command{
	Usage: "tree-files",
	Short: "about tree files",
	Long: `
In DTM, trees are stored in newick (parenthetical) format. A file can contain
one or more trees, each ended by a semicolon. For example:

	((A:0.1,B:0.2):0.05,(C:0.3,D:0.1):0.05);
	((E,F),(G,H));

Branch lengths are optional in subset trees, and ignored by the merge. Taxon
names with spaces or punctuation must be quoted with single quotes, and
comments are enclosed in square brackets.

When a file contains a single tree, the tree is named after the file (without
the extension), otherwise the name of the file is followed by the number of
the tree (e.g., "subsets.1", "subsets.2"). These names can be used as
terminals of a starting tree, to indicate the position of each subset.

Subset trees must be disjoint: a taxon can be found in a single subset tree.
Use 'dtm terms' to print the taxa of a tree file.
	`,
}
