// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package transform implements the Streaming Transformation Engine
// (spec.md §4.2): indentation correction and the character-level
// streaming diff core that together turn a raw model stream into buffer
// edits.
package transform

import "strings"

// IndentKind distinguishes the two indentation styles a region can use.
type IndentKind int

const (
	IndentSpace IndentKind = iota
	IndentTab
)

// Indent is a suggested indentation prefix: a width and the rune it's
// made of.
type Indent struct {
	Len  int
	Kind IndentKind
}

func (ind Indent) char() byte {
	if ind.Kind == IndentTab {
		return '\t'
	}
	return ' '
}

// String materializes the indent as a literal prefix.
func (ind Indent) String() string {
	return strings.Repeat(string(ind.char()), ind.Len)
}

// leadingWidth returns the width of a line's leading whitespace run.
func leadingWidth(line string) int {
	n := 0
	for n < len(line) && (line[n] == ' ' || line[n] == '\t') {
		n++
	}
	return n
}

// lineIndentKind reports whether a line's leading whitespace is tab-kind.
func lineIndentKind(line string) IndentKind {
	if len(line) > 0 && line[0] == '\t' {
		return IndentTab
	}
	return IndentSpace
}

// RegionRows is the surrounding-context input to the indentation
// corrector: the full line text of the region the stream is replacing,
// used only to compute the suggested indent (spec.md §4.2 step 3).
type RegionRows struct {
	// StartRowIndent is the suggested indent of the region's starting row.
	StartRowIndent Indent
	// Rows are every row from the region's start to its end, used to
	// scan forward for a tab-kind upgrade when the starting row's
	// suggestion is an empty space-kind indent.
	Rows []string
}

// suggestedIndent implements spec.md §4.2 step 3: start from the region's
// starting-row indent; if it's empty-and-space-kind, scan forward and
// upgrade to tab-kind if any scanned row is tab-indented.
func suggestedIndent(region RegionRows) Indent {
	ind := region.StartRowIndent
	if ind.Len == 0 && ind.Kind == IndentSpace {
		for _, row := range region.Rows {
			if leadingWidth(row) > 0 && lineIndentKind(row) == IndentTab {
				ind.Kind = IndentTab
				break
			}
		}
	}
	return ind
}

// Corrector applies the indentation-correction algorithm to each
// generated line of a stream, in order, before it's fed into the diff
// core. One Corrector is used per stream.
type Corrector struct {
	region RegionRows
	// selectionStartCol is subtracted from the very first generated
	// line's corrected length only (spec.md §4.2 step 4).
	selectionStartCol int

	baseIndent    int
	baseIndentSet bool
	lineIndex     int
}

// NewCorrector creates a corrector for a stream replacing the given
// region, whose first generated line starts at selectionStartCol columns
// into the original selection.
func NewCorrector(region RegionRows, selectionStartCol int) *Corrector {
	return &Corrector{region: region, selectionStartCol: selectionStartCol}
}

// CorrectLine re-indents one generated line. Lines are expected in
// stream order; the first call fixes base_indent for the whole stream.
func (c *Corrector) CorrectLine(line string) string {
	trimmed := strings.TrimLeft(line, " \t")
	if trimmed == "" {
		// No non-whitespace character observed yet on this line: leave
		// it untouched, matching "when the first non-whitespace
		// character of a generated line is observed".
		c.lineIndex++
		return line
	}

	lineIndent := leadingWidth(line)
	if !c.baseIndentSet {
		c.baseIndent = lineIndent
		c.baseIndentSet = true
	}

	ind := suggestedIndent(c.region)
	correctedLen := ind.Len + (lineIndent - c.baseIndent)
	if c.lineIndex == 0 {
		correctedLen -= c.selectionStartCol
	}
	if correctedLen < 0 {
		correctedLen = 0
	}

	prefix := strings.Repeat(string(ind.char()), correctedLen)
	c.lineIndex++
	return prefix + trimmed
}
