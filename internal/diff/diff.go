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

// Package diff provides the line-level batch diff the reconnect path and
// the diff view materializer use — as opposed to internal/transform's
// character-level streaming diff core, which runs while an edit is still
// arriving token by token.
package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffType is the kind of change a DiffLine represents.
type DiffType int

const (
	DiffEqual DiffType = iota
	DiffInsert
	DiffDelete
)

// DiffLine is one line of a line-level diff between two texts.
type DiffLine struct {
	Type    DiffType
	Content string
}

// Lines computes a line-granularity diff between a and b using Myers
// diff over line hashes, then cleans it up semantically so single-word
// edits inside an otherwise-unchanged line don't fragment the line.
func Lines(a, b string) []DiffLine {
	dmp := diffmatchpatch.New()
	wSrc, wDst, warray := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffMain(wSrc, wDst, false)
	diffs = dmp.DiffCharsToLines(diffs, warray)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var out []DiffLine
	for _, d := range diffs {
		for _, line := range splitKeepEmpty(d.Text) {
			var t DiffType
			switch d.Type {
			case diffmatchpatch.DiffInsert:
				t = DiffInsert
			case diffmatchpatch.DiffDelete:
				t = DiffDelete
			default:
				t = DiffEqual
			}
			out = append(out, DiffLine{Type: t, Content: line})
		}
	}
	return out
}

// splitKeepEmpty splits on \n, dropping only the empty segment introduced
// by a trailing newline so line counts line up with the source text.
func splitKeepEmpty(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Unified renders a minimal unified diff (no hunk headers) between a and b.
func Unified(a, b string) string {
	var sb strings.Builder
	for _, l := range Lines(a, b) {
		switch l.Type {
		case DiffInsert:
			sb.WriteString("+" + l.Content + "\n")
		case DiffDelete:
			sb.WriteString("-" + l.Content + "\n")
		default:
			sb.WriteString(" " + l.Content + "\n")
		}
	}
	return sb.String()
}

// GenerateDiff renders old/new content as a unified diff and reports the
// line counts of each side, for the diff view materializer's summary.
func GenerateDiff(old, new, filename string) (string, int, int) {
	if old == new {
		return "", strings.Count(old, "\n"), strings.Count(new, "\n")
	}
	header := fmt.Sprintf("--- %s\n+++ %s\n", filename, filename)
	return header + Unified(old, new), strings.Count(old, "\n"), strings.Count(new, "\n")
}
