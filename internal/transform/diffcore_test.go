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
package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// reconstruct verifies the two contracts spec.md §4.2 demands of the
// streaming diff core: concatenating Insert/Keep text reconstructs the
// new text, and concatenating Delete/Keep byte counts equals len(old).
func reconstruct(t *testing.T, old string, ops []Op) (newText string, oldConsumed int) {
	t.Helper()
	for _, op := range ops {
		switch op.Kind {
		case OpInsert:
			newText += op.Text
		case OpKeep:
			newText += old[oldConsumed : oldConsumed+op.Bytes]
			oldConsumed += op.Bytes
		case OpDelete:
			oldConsumed += op.Bytes
		}
	}
	return
}

func TestDiffCoreFinishReconstructsNewTextAndConsumesAllOld(t *testing.T) {
	old := "fn main() {\n    let x = 0;\n}\n"
	core := NewDiffCore(old)
	core.Push("fn main() {\n    let mut x = 0;\n")
	core.Push("}\n")
	ops := core.Finish()

	newText, consumed := reconstruct(t, old, ops)
	assert.Equal(t, "fn main() {\n    let mut x = 0;\n}\n", newText)
	assert.Equal(t, len(old), consumed)
}

func TestDiffCoreEmptyChangeIsAllKeep(t *testing.T) {
	old := "unchanged text\n"
	core := NewDiffCore(old)
	core.Push("unchanged text\n")
	ops := core.Finish()
	for _, op := range ops {
		assert.Equal(t, OpKeep, op.Kind)
	}
	newText, consumed := reconstruct(t, old, ops)
	assert.Equal(t, old, newText)
	assert.Equal(t, len(old), consumed)
}

func TestDiffCorePushSnapshotGrowsMonotonically(t *testing.T) {
	old := "one\ntwo\nthree\n"
	core := NewDiffCore(old)
	_, snap1 := core.Push("one\n")
	_, snap2 := core.Push("two\nthree\nfour\n")

	text1, _ := reconstruct(t, old, snap1)
	text2, _ := reconstruct(t, old, snap2)
	assert.Equal(t, "one\n", text1)
	assert.Equal(t, "one\ntwo\nthree\nfour\n", text2)
}
