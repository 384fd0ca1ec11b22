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
package diff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinesIdentifiesInsertAndDelete(t *testing.T) {
	old := "one\ntwo\nthree\n"
	new := "one\ntwo changed\nthree\n"

	lines := Lines(old, new)

	var deleted, inserted []string
	for _, l := range lines {
		switch l.Type {
		case DiffDelete:
			deleted = append(deleted, l.Content)
		case DiffInsert:
			inserted = append(inserted, l.Content)
		}
	}
	assert.Equal(t, []string{"two"}, deleted)
	assert.Equal(t, []string{"two changed"}, inserted)
}

func TestLinesNoChangeIsAllEqual(t *testing.T) {
	text := "a\nb\nc\n"
	for _, l := range Lines(text, text) {
		assert.Equal(t, DiffEqual, l.Type)
	}
}

func TestUnifiedRendersPlusMinusPrefixes(t *testing.T) {
	out := Unified("a\n", "b\n")
	assert.True(t, strings.Contains(out, "-a"))
	assert.True(t, strings.Contains(out, "+b"))
}

func TestGenerateDiffShortCircuitsOnIdenticalContent(t *testing.T) {
	diffText, oldLines, newLines := GenerateDiff("a\nb\n", "a\nb\n", "f.go")
	assert.Empty(t, diffText)
	assert.Equal(t, 2, oldLines)
	assert.Equal(t, 2, newLines)
}

func TestGenerateDiffIncludesUnifiedHeader(t *testing.T) {
	diffText, _, _ := GenerateDiff("a\n", "b\n", "f.go")
	assert.True(t, strings.HasPrefix(diffText, "--- f.go\n+++ f.go\n"))
	assert.True(t, strings.Contains(diffText, "-a"))
	assert.True(t, strings.Contains(diffText, "+b"))
}
