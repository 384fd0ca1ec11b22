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
	"strings"

	"github.com/agentsync/collab/internal/anchor"
	"github.com/agentsync/collab/internal/diff"
	"github.com/agentsync/collab/internal/framing"
)

// AltStatusKind is the lifecycle state of a codegen Alternative.
type AltStatusKind int

const (
	AltIdle AltStatusKind = iota
	AltPending
	AltDone
	AltError
)

// AltStatus carries the failure reason when Kind is AltError.
type AltStatus struct {
	Kind   AltStatusKind
	Reason string
}

// RowRange is an inclusive row range.
type RowRange struct{ Start, End int }

// DeletedRange is one coalesced run of deleted rows, anchored at the
// point in the new text where they used to sit.
type DeletedRange struct {
	At   anchor.Anchor
	Rows RowRange
}

// InsertedRange is one run of inserted rows in the new text.
type InsertedRange struct {
	Range anchor.Range
}

// LiveDiff is the coarse line-level view the engine keeps live during
// streaming and reconciles exactly at end-of-stream (spec.md §3 Diff).
type LiveDiff struct {
	DeletedRowRanges  []DeletedRange
	InsertedRowRanges []InsertedRange
}

// IsEmpty reports whether the diff has no changes at all.
func (d LiveDiff) IsEmpty() bool {
	return len(d.DeletedRowRanges) == 0 && len(d.InsertedRowRanges) == 0
}

// Alternative is one speculative rewrite over a region (spec.md §3
// Codegen Alternative). At most one Alternative per Engine is active.
type Alternative struct {
	Status       AltStatus
	EditPosition anchor.Anchor
	Edits        []anchor.Edit
	LineOps      []Op
	Diff         LiveDiff
	FinalText    string

	active bool
	txn    anchor.TxnID
	txnSet bool
}

// Engine is the Streaming Transformation Engine: it drives one
// Alternative's edits into a Buffer as a token stream arrives, grouping
// everything into a single undoable transaction (spec.md §4.2).
type Engine struct {
	buf    anchor.Buffer
	region anchor.Range

	oldText           string
	regionRows        RegionRows
	selectionStartCol int

	filter    *framing.Filter
	corrector *Corrector
	core      *DiffCore

	curEnd anchor.Anchor // current end of the live-edited region, advances each apply

	alt *Alternative
}

// NewEngine creates an engine over the given region of buf. oldText is
// the region's text captured once at start, and regionRows/
// selectionStartCol feed the indentation corrector.
func NewEngine(buf anchor.Buffer, region anchor.Range, oldText string, regionRows RegionRows, selectionStartCol int) *Engine {
	return &Engine{
		buf:               buf,
		region:            region,
		oldText:           oldText,
		regionRows:        regionRows,
		selectionStartCol: selectionStartCol,
		filter:            framing.NewFilter(),
		corrector:         NewCorrector(regionRows, selectionStartCol),
		core:              NewDiffCore(oldText),
		curEnd:            region.End,
		alt: &Alternative{
			Status:       AltStatus{Kind: AltPending},
			EditPosition: region.Start,
			active:       true,
		},
	}
}

// IsLiteralDelete reports whether prompt is the literal "delete" command
// (case-insensitive, trimmed) that short-circuits the model call
// entirely and applies a full-range delete as the sole stream output.
func IsLiteralDelete(prompt string) bool {
	return strings.EqualFold(strings.TrimSpace(prompt), "delete")
}

// RunLiteralDelete applies a full-range delete as the engine's sole
// edit, bypassing the framing filter, indentation corrector, and diff
// core entirely.
func (e *Engine) RunLiteralDelete() error {
	txn := e.openTxn()
	edit := anchor.Edit{Range: e.region, Replacement: ""}
	if err := e.buf.Edit(txn, []anchor.Edit{edit}); err != nil {
		e.fail(err)
		return err
	}
	e.alt.Edits = append(e.alt.Edits, edit)
	e.alt.LineOps = []Op{{Kind: OpDelete, Bytes: len(e.oldText)}}
	e.alt.FinalText = ""
	e.alt.Diff = reapplyLineBasedDiff(e.alt.LineOps, e.region.Start)
	e.alt.Status = AltStatus{Kind: AltDone}
	return nil
}

// PushChunk feeds one raw stream chunk through the framing filter, the
// indentation corrector (line by line), and the diff core, translating
// the resulting operations into buffer edits.
func (e *Engine) PushChunk(raw string) error {
	cleaned := e.filter.Push(raw)
	corrected := e.correctLines(cleaned, false)
	return e.apply(corrected)
}

// Finish flushes the framing filter and indentation corrector, runs the
// final diff, and reconciles the live diff with an exact batch diff.
func (e *Engine) Finish() error {
	cleaned := e.filter.Finish()
	corrected := e.correctLines(cleaned, true)
	if err := e.apply(corrected); err != nil {
		return err
	}
	ops := e.core.Finish()
	e.alt.LineOps = ops
	e.alt.FinalText = e.core.newSoFar
	e.alt.Diff = reapplyBatchDiff(e.oldText, e.core.newSoFar, e.region.Start)
	if e.alt.Status.Kind != AltError {
		e.alt.Status = AltStatus{Kind: AltDone}
	}
	return nil
}

func (e *Engine) correctLines(cleaned string, final bool) string {
	if cleaned == "" {
		return ""
	}
	lines := strings.Split(cleaned, "\n")
	trailingPartial := ""
	if !final {
		trailingPartial = lines[len(lines)-1]
		lines = lines[:len(lines)-1]
	}
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(e.corrector.CorrectLine(l))
		sb.WriteByte('\n')
	}
	if !final {
		sb.WriteString(trailingPartial)
	}
	return sb.String()
}

// apply pushes a corrected text fragment into the diff core and
// replaces the live region's current content with the diff core's
// accumulated-so-far new text. The diff core is recomputed from scratch
// on every push (see DiffCore), so rather than translate that full
// recomputed op list into incremental inserts/deletes against a buffer
// that already reflects the *previous* push's edits — which would
// double-apply everything but the newest tail — the engine keeps the
// invariant "the live region's text equals core.newSoFar" by issuing one
// whole-region replace per push. The Insert/Delete/Keep operations
// themselves are still exposed in full via alt.LineOps/alt.Diff for the
// live diff view; only the buffer-edit granularity is coarsened.
func (e *Engine) apply(corrected string) error {
	if corrected == "" {
		return nil
	}
	_, snapshot := e.core.Push(corrected)

	txn := e.openTxn()
	startOff := e.buf.Resolve(e.region.Start)
	replacement := e.core.newSoFar
	edit := anchor.Edit{Range: anchor.Range{Start: e.region.Start, End: e.curEnd}, Replacement: replacement}
	if err := e.buf.Edit(txn, []anchor.Edit{edit}); err != nil {
		e.fail(err)
		return err
	}
	e.curEnd = e.buf.AnchorBefore(startOff + len(replacement))
	e.alt.Edits = []anchor.Edit{edit}
	e.alt.LineOps = snapshot
	e.alt.Diff = reapplyLineBasedDiff(snapshot, e.region.Start)
	return nil
}

func (e *Engine) openTxn() anchor.TxnID {
	if !e.alt.txnSet {
		e.alt.txn = e.buf.StartTransaction()
		e.alt.txnSet = true
		return e.alt.txn
	}
	next := e.buf.StartTransaction()
	e.buf.MergeTransactions(e.alt.txn, next)
	return e.alt.txn
}

func (e *Engine) fail(err error) {
	e.alt.Status = AltStatus{Kind: AltError, Reason: err.Error()}
}

// Deactivate undoes the alternative's grouped transaction but preserves
// its recorded edits and line operations (spec.md §4.2 Activation
// semantics).
func (e *Engine) Deactivate() error {
	if !e.alt.active || !e.alt.txnSet {
		return nil
	}
	if err := e.buf.Undo(e.alt.txn); err != nil {
		return err
	}
	e.alt.active = false
	e.alt.txnSet = false
	return nil
}

// Reactivate re-applies the alternative's recorded end state against the
// buffer. It replaces the region — which Deactivate left holding the
// pre-run text — with the recorded final text directly, rather than
// replaying the individual streamed edits, since those reference anchors
// whose offsets were never meant to survive an intervening Undo.
func (e *Engine) Reactivate() error {
	if e.alt.active {
		return nil
	}
	txn := e.buf.StartTransaction()
	startOff := e.buf.Resolve(e.region.Start)
	end := e.buf.AnchorBefore(startOff + len(e.oldText))
	edit := anchor.Edit{Range: anchor.Range{Start: e.region.Start, End: end}, Replacement: e.alt.FinalText}
	if err := e.buf.Edit(txn, []anchor.Edit{edit}); err != nil {
		return err
	}
	e.alt.Edits = []anchor.Edit{edit}
	e.curEnd = e.buf.AnchorBefore(startOff + len(e.alt.FinalText))
	e.alt.txn = txn
	e.alt.txnSet = true
	e.alt.active = true
	return nil
}

// Undo clears the alternative's grouped transaction and marks the
// engine undone.
func (e *Engine) Undo() error {
	if !e.alt.txnSet {
		return nil
	}
	if err := e.buf.Undo(e.alt.txn); err != nil {
		return err
	}
	e.alt.txnSet = false
	e.alt.active = false
	return nil
}

// Alternative exposes the engine's current speculative rewrite state.
func (e *Engine) Alternative() *Alternative { return e.alt }

// reapplyLineBasedDiff walks line_ops in line units, coalescing adjacent
// deleted ranges, for the responsive-during-streaming view (spec.md
// §4.3 line 138).
func reapplyLineBasedDiff(ops []Op, regionStart anchor.Anchor) LiveDiff {
	var d LiveDiff
	row := 0
	var curDeleted *DeletedRange
	flushDeleted := func() {
		if curDeleted != nil {
			d.DeletedRowRanges = append(d.DeletedRowRanges, *curDeleted)
			curDeleted = nil
		}
	}
	for _, op := range ops {
		switch op.Kind {
		case OpInsert:
			flushDeleted()
			n := strings.Count(op.Text, "\n")
			if n == 0 && op.Text != "" {
				n = 1
			}
			if n > 0 {
				d.InsertedRowRanges = append(d.InsertedRowRanges, InsertedRange{
					Range: anchor.Range{Start: regionStart, End: regionStart},
				})
				row += n
			}
		case OpDelete:
			n := lineCountFromBytes(op.Bytes)
			if curDeleted == nil {
				curDeleted = &DeletedRange{At: regionStart, Rows: RowRange{Start: row, End: row + n - 1}}
			} else {
				curDeleted.Rows.End += n
			}
		case OpKeep:
			flushDeleted()
			row += lineCountFromBytes(op.Bytes)
		}
	}
	flushDeleted()
	return d
}

// reapplyBatchDiff computes an exact line diff between old and new text
// at end-of-stream, reconciling any drift from the streaming
// approximation (spec.md §4.3 line 139).
func reapplyBatchDiff(oldText, newText string, regionStart anchor.Anchor) LiveDiff {
	var d LiveDiff
	row := 0
	var curDeleted *DeletedRange
	flushDeleted := func() {
		if curDeleted != nil {
			d.DeletedRowRanges = append(d.DeletedRowRanges, *curDeleted)
			curDeleted = nil
		}
	}
	for _, l := range diff.Lines(oldText, newText) {
		switch l.Type {
		case diff.DiffDelete:
			if curDeleted == nil {
				curDeleted = &DeletedRange{At: regionStart, Rows: RowRange{Start: row, End: row}}
			} else {
				curDeleted.Rows.End++
			}
		case diff.DiffInsert:
			flushDeleted()
			d.InsertedRowRanges = append(d.InsertedRowRanges, InsertedRange{Range: anchor.Range{Start: regionStart, End: regionStart}})
			row++
		default:
			flushDeleted()
			row++
		}
	}
	flushDeleted()
	return d
}

func lineCountFromBytes(n int) int {
	if n == 0 {
		return 0
	}
	return 1
}
