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

// Package anchor provides the thin capability surface the transformation
// engine and agent session controller use to talk to the real CRDT text
// buffer (out of scope per spec.md §1): anchors that survive concurrent
// edits, and a transaction boundary edits are grouped under.
package anchor

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Anchor is an opaque buffer position that tracks edits made after it was
// taken; resolving it yields a current byte offset.
type Anchor struct {
	id  int64
	bef bool // true: anchor sticks to the char before it; false: after
}

// Range is a pair of anchors delimiting a region.
type Range struct {
	Start, End Anchor
}

// Edit replaces the text in Range with Replacement.
type Edit struct {
	Range       Range
	Replacement string
}

// Buffer is the capability trait from the Design Notes §9 rearchitecture:
// "the controller talks to the buffer through a capability trait
// {edit(batch, txn), snapshot(), anchor_after(offset), anchor_before(offset),
// start_transaction, end_transaction, merge_transactions}". A real CRDT
// buffer implements this; MemoryBuffer is the in-process stand-in used by
// tests and the demo binary.
type Buffer interface {
	Snapshot() string
	AnchorAfter(offset int) Anchor
	AnchorBefore(offset int) Anchor
	Resolve(a Anchor) int
	StartTransaction() TxnID
	Edit(txn TxnID, edits []Edit) error
	EndTransaction(txn TxnID)
	MergeTransactions(into, from TxnID)
	Undo(txn TxnID) error
}

// TxnID identifies a grouped batch of edits (spec.md §4.2: "Edits are
// grouped... that one transaction is the unit of undo").
type TxnID int64

// MemoryBuffer is a single-writer, single-string buffer implementation of
// Buffer, sufficient for the foreground-thread edit model spec.md §5
// describes (all mutations happen on one goroutine per buffer).
type MemoryBuffer struct {
	mu       sync.Mutex
	text     []byte
	nextAnch int64
	anchors  map[int64]int // anchor id -> byte offset, maintained on each edit
	before   map[int64]bool

	nextTxn int64
	txns    map[TxnID]*txnState
}

type txnState struct {
	preText    string        // snapshot taken when the transaction opened, for Undo
	preAnchors map[int64]int // anchor offsets at the same instant, for Undo
	open       bool
}

// NewMemoryBuffer creates a buffer seeded with the given text.
func NewMemoryBuffer(text string) *MemoryBuffer {
	return &MemoryBuffer{
		text:    []byte(text),
		anchors: make(map[int64]int),
		before:  make(map[int64]bool),
		txns:    make(map[TxnID]*txnState),
	}
}

func (b *MemoryBuffer) Snapshot() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.text)
}

func (b *MemoryBuffer) newAnchor(offset int, before bool) Anchor {
	id := b.nextAnch
	b.nextAnch++
	b.anchors[id] = offset
	b.before[id] = before
	return Anchor{id: id, bef: before}
}

func (b *MemoryBuffer) AnchorAfter(offset int) Anchor {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.newAnchor(offset, false)
}

func (b *MemoryBuffer) AnchorBefore(offset int) Anchor {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.newAnchor(offset, true)
}

func (b *MemoryBuffer) Resolve(a Anchor) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.anchors[a.id]
}

func (b *MemoryBuffer) StartTransaction() TxnID {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := TxnID(b.nextTxn)
	b.nextTxn++
	anchorsCopy := make(map[int64]int, len(b.anchors))
	for k, v := range b.anchors {
		anchorsCopy[k] = v
	}
	b.txns[id] = &txnState{preText: string(b.text), preAnchors: anchorsCopy, open: true}
	return id
}

// Edit applies edits in the given transaction, left-to-right by resolved
// start offset, and shifts every tracked anchor accordingly so later edits
// in the same batch and future anchors stay consistent.
func (b *MemoryBuffer) Edit(txn TxnID, edits []Edit) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.txns[txn]; !ok {
		return fmt.Errorf("anchor: unknown transaction %d", txn)
	}

	type resolved struct {
		start, end int
		repl       string
	}
	rs := make([]resolved, len(edits))
	for i, e := range edits {
		rs[i] = resolved{start: b.anchors[e.Range.Start.id], end: b.anchors[e.Range.End.id], repl: e.Replacement}
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].start < rs[j].start })

	var sb strings.Builder
	cursor := 0
	shifts := make([][2]int, 0, len(rs)) // [oldOffset, delta] breakpoints, in order
	for _, r := range rs {
		if r.start < cursor {
			return fmt.Errorf("anchor: overlapping edits")
		}
		sb.Write(b.text[cursor:r.start])
		sb.WriteString(r.repl)
		delta := len(r.repl) - (r.end - r.start)
		shifts = append(shifts, [2]int{r.end, delta})
		cursor = r.end
	}
	sb.Write(b.text[cursor:])
	b.text = []byte(sb.String())

	for id, off := range b.anchors {
		newOff := off
		for _, s := range shifts {
			boundary := s[0]
			if off > boundary || (off == boundary && !b.before[id]) {
				newOff += s[1]
			}
		}
		b.anchors[id] = newOff
	}
	return nil
}

func (b *MemoryBuffer) EndTransaction(txn TxnID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.txns[txn]; ok {
		t.open = false
	}
}

// MergeTransactions drops `from`'s own undo record and keeps `into`'s,
// whose snapshot was taken when `into` opened, so when `into` opened first
// a later Undo(into) rewinds past both — "each subsequent batch's
// transaction is merged into the first" (spec.md §4.2).
func (b *MemoryBuffer) MergeTransactions(into, from TxnID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.txns, from)
}

// Undo restores the buffer to the transaction's pre-edit snapshot.
func (b *MemoryBuffer) Undo(txn TxnID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.txns[txn]
	if !ok {
		return fmt.Errorf("anchor: unknown transaction %d", txn)
	}
	b.text = []byte(t.preText)
	for id, off := range t.preAnchors {
		b.anchors[id] = off
	}
	delete(b.txns, txn)
	return nil
}
