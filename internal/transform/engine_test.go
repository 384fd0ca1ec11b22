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

	"github.com/stretchr/testify/require"

	"github.com/agentsync/collab/internal/anchor"
)

func newRegionEngine(t *testing.T, full, regionOld string) (*anchor.MemoryBuffer, *Engine) {
	t.Helper()
	buf := anchor.NewMemoryBuffer(full)
	start := buf.AnchorAfter(0)
	end := buf.AnchorBefore(len(regionOld))
	region := anchor.Range{Start: start, End: end}
	rows := RegionRows{StartRowIndent: Indent{Len: 0, Kind: IndentSpace}}
	eng := NewEngine(buf, region, regionOld, rows, 0)
	return buf, eng
}

// TestEngineStreamConvergesToNewText is invariant 6 (diff convergence):
// at end-of-stream, applying the accumulated edits to the pre-run
// snapshot yields a region equal to the stream output.
func TestEngineStreamConvergesToNewText(t *testing.T) {
	buf, eng := newRegionEngine(t, "let x = 0;\n", "let x = 0;\n")

	require.NoError(t, eng.PushChunk("let x"))
	require.NoError(t, eng.PushChunk(" = 1;\n"))
	require.NoError(t, eng.Finish())

	require.Equal(t, "let x = 1;\n", buf.Snapshot())
	require.Equal(t, AltDone, eng.Alternative().Status.Kind)
}

// TestEngineUndoRestoresPreRunSnapshot is invariant 4 (transaction
// grouping): a single Undo after a completed run restores the buffer.
func TestEngineUndoRestoresPreRunSnapshot(t *testing.T) {
	original := "let x = 0;\n"
	buf, eng := newRegionEngine(t, original, original)

	require.NoError(t, eng.PushChunk("let x = 1;\n"))
	require.NoError(t, eng.Finish())
	require.NotEqual(t, original, buf.Snapshot())

	require.NoError(t, eng.Undo())
	require.Equal(t, original, buf.Snapshot())
}

// TestEngineDeactivateReactivate is scenario S6.
func TestEngineDeactivateReactivate(t *testing.T) {
	original := "let x = 0;\n"
	buf, eng := newRegionEngine(t, original, original)

	require.NoError(t, eng.PushChunk("let x = 1;\n"))
	require.NoError(t, eng.Finish())
	postRun := buf.Snapshot()
	require.False(t, eng.Alternative().Diff.IsEmpty())

	require.NoError(t, eng.Deactivate())
	require.Equal(t, original, buf.Snapshot())

	require.NoError(t, eng.Reactivate())
	require.Equal(t, postRun, buf.Snapshot())
	require.False(t, eng.Alternative().Diff.IsEmpty())
}

func TestEngineLiteralDeleteShortCircuits(t *testing.T) {
	require.True(t, IsLiteralDelete("Delete"))
	require.True(t, IsLiteralDelete("  delete  "))
	require.False(t, IsLiteralDelete("delete this"))

	original := "line one\nline two\n"
	buf, eng := newRegionEngine(t, original, original)

	require.NoError(t, eng.RunLiteralDelete())
	require.Equal(t, "", buf.Snapshot())
	require.Equal(t, AltDone, eng.Alternative().Status.Kind)
}

func TestEngineFailureStopsApplyingButKeepsPriorEdits(t *testing.T) {
	original := "let x = 0;\n"
	buf, eng := newRegionEngine(t, original, original)

	require.NoError(t, eng.PushChunk("let x = 1;\n"))
	applied := buf.Snapshot()

	eng.fail(assertErr("boom"))
	require.Equal(t, AltError, eng.Alternative().Status.Kind)
	require.Equal(t, applied, buf.Snapshot(), "edits applied before the failure remain")
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
