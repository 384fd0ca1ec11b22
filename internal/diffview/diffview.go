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

// Package diffview materializes an old/new buffer pair into the hunk
// structure a content tool call's diff-bearing entry carries (spec.md
// §3). Unlike the teacher's bubbletea diffview.Model this package never
// renders — rendering is UI, which is out of scope — it only produces
// the data a UI would render.
package diffview

import (
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/agentsync/collab/internal/diff"
)

// Model holds an old/new content pair and materializes it into hunks on
// demand. It replaces the teacher's stateful bubbletea component: no
// Init/Update/View, just SetContent and Hunks.
type Model struct {
	old, new string
	filename string
}

// New creates an empty diff view.
func New() *Model { return &Model{} }

// SetContent sets the diff content and the filename used for language
// detection.
func (m *Model) SetContent(old, new, filename string) {
	m.old, m.new, m.filename = old, new, filename
}

// Language returns the best-guess source language for the filename, via
// chroma's lexer registry (the same library the teacher uses for syntax
// highlighting, repurposed here for detection only).
func (m *Model) Language() string {
	if m.filename == "" {
		return ""
	}
	if lexer := lexers.Match(m.filename); lexer != nil {
		if cfg := lexer.Config(); cfg != nil && cfg.Name != "" {
			return cfg.Name
		}
	}
	return strings.TrimPrefix(filepath.Ext(m.filename), ".")
}

// Hunk is one contiguous run of changed or unchanged lines.
type Hunk struct {
	Kind  diff.DiffType
	Lines []string
}

// Hunks groups the line-level diff into contiguous same-kind runs, the
// shape a diff view renders as alternating gutter colors.
func (m *Model) Hunks() []Hunk {
	lines := diff.Lines(m.old, m.new)
	var hunks []Hunk
	for _, l := range lines {
		if len(hunks) > 0 && hunks[len(hunks)-1].Kind == l.Type {
			h := &hunks[len(hunks)-1]
			h.Lines = append(h.Lines, l.Content)
			continue
		}
		hunks = append(hunks, Hunk{Kind: l.Type, Lines: []string{l.Content}})
	}
	return hunks
}

// Stat summarizes a diff for UI badges: lines added and removed.
type Stat struct {
	Added, Removed int
}

// Stat computes the added/removed line counts.
func (m *Model) Stat() Stat {
	var s Stat
	for _, l := range diff.Lines(m.old, m.new) {
		switch l.Type {
		case diff.DiffInsert:
			s.Added++
		case diff.DiffDelete:
			s.Removed++
		}
	}
	return s
}
