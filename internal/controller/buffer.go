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

package controller

import (
	"context"
	"strings"

	"github.com/agentsync/collab/internal/agentproto"
	"github.com/agentsync/collab/internal/anchor"
	"github.com/agentsync/collab/internal/collab/errs"
	"github.com/agentsync/collab/internal/diff"
	"github.com/agentsync/collab/internal/thread"
)

// fileSnapshot is one entry of the per-thread shared_buffers cache
// (spec.md §5): the text an agent last saw for a path, plus an anchor at
// every line boundary, captured at the instant of that read/write. A
// later write_text_file diffs new_content against snap.text and replays
// the diff as anchor-ranged edits against the *live* buffer — since the
// anchors were taken before any concurrent edit, they track the line
// boundaries' true current position even if the buffer moved underneath
// the agent while it was composing its write (scenario S2).
type fileSnapshot struct {
	text   string
	after  []anchor.Anchor // after[i]: start boundary of split-line i, for use as an edit range Start
	before []anchor.Anchor // before[i]: start boundary of split-line i, for use as an edit range End
}

// ActionKind distinguishes entries in the controller's per-path action
// log (spec.md §5's bookkeeping of every read/write the ASC serves).
type ActionKind int

const (
	ActionRead ActionKind = iota
	ActionReadBeforeWrite
	ActionEdited
)

// ActionLogEntry records one ReadTextFile/WriteTextFile service call.
type ActionLogEntry struct {
	Kind ActionKind
	Path string
}

// AgentLocation is the agent's current position in the shared project,
// published by SetProjectLocation and refreshed at the end of every
// WriteTextFile to the end of the last edit applied (spec.md §4.1).
type AgentLocation struct {
	Path   string
	Anchor anchor.Anchor
}

// openBuffer returns the cached shared_buffers entry for path, loading it
// from disk through c.reader on first use.
func (c *Controller) openBuffer(ctx context.Context, path string) (anchor.Buffer, error) {
	if buf, ok := c.buffers.Get(path); ok {
		return buf, nil
	}
	var raw string
	if c.reader != nil {
		var err error
		raw, err = c.reader.ReadTextFile(ctx, path)
		if err != nil {
			return nil, err
		}
	}
	buf := anchor.NewMemoryBuffer(raw)
	c.buffers.Set(path, buf)
	return buf, nil
}

// lineOffsets returns the byte offset of the start of every split line in
// text, plus one trailing entry for the offset just past the end —
// len(lines)+1 entries for strings.Split(text, "\n")'s len(lines) lines.
func lineOffsets(text string) []int {
	lines := strings.Split(text, "\n")
	offsets := make([]int, 0, len(lines)+1)
	off := 0
	offsets = append(offsets, 0)
	for i, l := range lines {
		off += len(l)
		if i != len(lines)-1 {
			off++
		}
		offsets = append(offsets, off)
	}
	return offsets
}

// captureSnapshot anchors every line boundary of text in buf, so a later
// diff against text can translate old-line-index boundaries into ranges
// on the live buffer regardless of what happened to it in between.
func captureSnapshot(buf anchor.Buffer, text string) fileSnapshot {
	offsets := lineOffsets(text)
	after := make([]anchor.Anchor, len(offsets))
	before := make([]anchor.Anchor, len(offsets))
	for i, off := range offsets {
		after[i] = buf.AnchorAfter(off)
		before[i] = buf.AnchorBefore(off)
	}
	return fileSnapshot{text: text, after: after, before: before}
}

// diffToAnchorEdits computes a line-granularity diff between snap.text and
// newText and translates every inserted/deleted run into a single
// anchor.Edit whose range is delimited by the snapshot's pre-captured
// line-boundary anchors — the mechanism that lets the edit land correctly
// on the live buffer even after a concurrent edit has shifted it.
func diffToAnchorEdits(snap fileSnapshot, newText string) []anchor.Edit {
	newOffsets := lineOffsets(newText)
	lines := diff.Lines(snap.text, newText)

	var edits []anchor.Edit
	oldIdx, newIdx := 0, 0
	i := 0
	for i < len(lines) {
		if lines[i].Type == diff.DiffEqual {
			oldIdx++
			newIdx++
			i++
			continue
		}
		oldStart, newStart := oldIdx, newIdx
		for i < len(lines) && lines[i].Type != diff.DiffEqual {
			if lines[i].Type == diff.DiffDelete {
				oldIdx++
			} else {
				newIdx++
			}
			i++
		}
		edits = append(edits, anchor.Edit{
			Range:       anchor.Range{Start: snap.after[oldStart], End: snap.before[oldIdx]},
			Replacement: newText[newOffsets[newStart]:newOffsets[newIdx]],
		})
	}
	return edits
}

// readTextFile serves one ReadTextFile event: it loads (or reuses) the
// shared buffer for the path, slices the lines the caller asked for, and
// records the read plus a fresh snapshot for a later write to diff
// against.
func (c *Controller) readTextFile(ctx context.Context, req agentproto.ReadTextFile) (string, error) {
	buf, err := c.openBuffer(ctx, req.Path)
	if err != nil {
		return "", err
	}
	full := buf.Snapshot()

	sliced, err := sliceLines(full, req.Line, req.Limit)
	if err != nil {
		return "", err
	}

	c.snapshots.Set(req.Path, captureSnapshot(buf, full))
	c.recordAction(ActionRead, req.Path)
	return sliced, nil
}

// sliceLines implements spec.md §4.1's line/limit windowing: content
// starts on the line *after* the given 0-based line index (matching
// acp_thread.rs's `.skip(line as usize + 1)`), and fails with RangeError
// if the file has fewer lines than requested.
func sliceLines(content string, line, limit *int) (string, error) {
	lines := strings.Split(content, "\n")
	total := len(lines)
	if total > 0 && lines[total-1] == "" {
		total--
	}

	start := 0
	if line != nil {
		if *line >= total {
			return "", errs.New(errs.RangeError, "line %d is out of range for a %d-line file", *line, total)
		}
		start = *line + 1
	}
	if start > len(lines) {
		start = len(lines)
	}
	end := len(lines)
	if limit != nil && start+*limit < end {
		end = start + *limit
	}
	return strings.Join(lines[start:end], "\n"), nil
}

// writeTextFile serves one WriteTextFile event: it diffs the agent's last
// known snapshot of the path against newContent, replays the diff as
// anchor-ranged edits against the live shared buffer (so a concurrent
// edit to the same file is preserved rather than clobbered), updates the
// agent's location, persists the resulting buffer text, and refreshes the
// snapshot cache.
func (c *Controller) writeTextFile(ctx context.Context, req agentproto.WriteTextFile) error {
	buf, err := c.openBuffer(ctx, req.Path)
	if err != nil {
		return err
	}

	snap, ok := c.snapshots.Get(req.Path)
	if !ok {
		// No prior read_text_file recorded for this path: fall back to
		// treating the live buffer's current text as the baseline.
		snap = captureSnapshot(buf, buf.Snapshot())
	}
	c.recordAction(ActionReadBeforeWrite, req.Path)

	edits := diffToAnchorEdits(snap, req.Content)
	var lastEnd anchor.Anchor
	haveEdit := len(edits) > 0
	if haveEdit {
		// The last edit ends, in the new text, at its old end offset shifted
		// by the write's total size change.
		endOff := buf.Resolve(edits[len(edits)-1].Range.End)
		sizeBefore := len(buf.Snapshot())
		txn := buf.StartTransaction()
		if err := buf.Edit(txn, edits); err != nil {
			return err
		}
		buf.EndTransaction(txn)
		lastEnd = buf.AnchorBefore(endOff + len(buf.Snapshot()) - sizeBefore)
	}
	c.recordAction(ActionEdited, req.Path)

	finalText := buf.Snapshot()
	c.updateLocationAfterWrite(buf, req.Path, lastEnd, haveEdit, finalText)

	if c.writer != nil {
		if err := c.writer.WriteTextFile(ctx, req.Path, finalText); err != nil {
			return err
		}
	}
	c.snapshots.Set(req.Path, captureSnapshot(buf, finalText))
	return nil
}

// updateLocationAfterWrite moves the agent's published location to the
// end of the last edit applied, or to the origin of the file if the
// write was a no-op (spec.md §4.1).
func (c *Controller) updateLocationAfterWrite(buf anchor.Buffer, path string, lastEnd anchor.Anchor, haveEdit bool, finalText string) {
	if !haveEdit {
		c.setLocation(&AgentLocation{Path: path, Anchor: buf.AnchorBefore(0)})
		return
	}
	offset := buf.Resolve(lastEnd)
	if offset > len(finalText) {
		offset = len(finalText)
	}
	c.setLocation(&AgentLocation{Path: path, Anchor: buf.AnchorBefore(offset)})
}

func (c *Controller) setLocation(loc *AgentLocation) {
	c.mu.Lock()
	c.location = loc
	c.mu.Unlock()
}

// Location returns the agent's last published location, or nil if none
// has been set yet.
func (c *Controller) Location() *AgentLocation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.location
}

// SetProjectLocation implements spec.md §4.1's set_project_location:
// it opens the buffer at path and publishes {buffer, anchor_before(line,0)}
// as the agent's current location.
func (c *Controller) SetProjectLocation(ctx context.Context, loc thread.Location) error {
	buf, err := c.openBuffer(ctx, loc.Path)
	if err != nil {
		return err
	}
	offsets := lineOffsets(buf.Snapshot())
	idx := loc.Line
	if idx < 0 {
		idx = 0
	}
	if idx >= len(offsets) {
		idx = len(offsets) - 1
	}
	c.setLocation(&AgentLocation{Path: loc.Path, Anchor: buf.AnchorBefore(offsets[idx])})
	return nil
}

// recordAction appends to the controller's action log.
func (c *Controller) recordAction(kind ActionKind, path string) {
	c.actionLog.Append(ActionLogEntry{Kind: kind, Path: path})
}

// ActionLog returns a copy of the recorded read/write action history.
func (c *Controller) ActionLog() []ActionLogEntry {
	return c.actionLog.Items()
}
