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

// Package framing strips the outer code-fence delimiters and cursor
// sentinels a model stream wraps generated code in, before it reaches the
// diff core (spec.md §4.2).
package framing

import "strings"

// CursorSentinel is the substring the model may emit to mark the cursor
// position; it carries no meaning for the diff core and is always removed.
const CursorSentinel = "<|CURSOR|>"

// Filter consumes raw text chunks and yields cleaned chunks. It holds back
// the most recently completed logical line until either another line
// arrives (proving the held line wasn't the last one) or Finish() is
// called — that one-line lookahead is what lets it recognize and drop a
// trailing fence delimiter (and the newline that preceded it) without ever
// emitting a line it has to retract.
type Filter struct {
	raw strings.Builder // unterminated remainder of the current chunk stream

	firstLineChecked bool
	startsWithFence  bool

	havePending bool
	pendingLine string

	emittedAny bool
	cur        *strings.Builder // transient, valid only during Push/Finish
}

// NewFilter creates an empty filter.
func NewFilter() *Filter { return &Filter{} }

// Push feeds a raw chunk and returns any newly-available cleaned output.
func (f *Filter) Push(chunk string) string {
	var out strings.Builder
	f.cur = &out

	f.raw.WriteString(chunk)
	buf := f.raw.String()
	f.raw.Reset()

	for {
		idx := strings.IndexByte(buf, '\n')
		if idx == -1 {
			f.raw.WriteString(buf)
			break
		}
		f.handleLine(buf[:idx])
		buf = buf[idx+1:]
	}

	f.cur = nil
	return out.String()
}

// Finish flushes any buffered content, resolving the one-line lookahead:
// if the truly last line is a fence delimiter and the stream started with
// one, it is dropped along with its preceding newline; otherwise it is
// emitted like any other line.
func (f *Filter) Finish() string {
	var out strings.Builder
	f.cur = &out

	if trailing := f.raw.String(); trailing != "" {
		f.raw.Reset()
		f.handleLine(trailing)
	}

	if f.havePending {
		trimmed := strings.TrimSpace(f.pendingLine)
		if !(f.startsWithFence && isFenceDelimiter(trimmed)) {
			f.commit(f.pendingLine)
		}
		f.havePending = false
	}

	f.cur = nil
	return out.String()
}

// handleLine processes one logical line (already split on \n). A new line
// arriving always proves the previously pending line was not the stream's
// last line, so it is committed unconditionally.
func (f *Filter) handleLine(raw string) {
	clean := strings.ReplaceAll(raw, CursorSentinel, "")

	if !f.firstLineChecked {
		trimmed := strings.TrimSpace(clean)
		if trimmed != "" {
			f.firstLineChecked = true
			if isFenceDelimiter(trimmed) {
				f.startsWithFence = true
				return // drop the opening fence line itself, unconditionally
			}
		}
	}

	if f.havePending {
		f.commit(f.pendingLine)
	}
	f.pendingLine = clean
	f.havePending = true
}

func (f *Filter) commit(line string) {
	if f.emittedAny {
		f.cur.WriteByte('\n')
	}
	f.cur.WriteString(line)
	f.emittedAny = true
}

func isFenceDelimiter(trimmed string) bool {
	return strings.HasPrefix(trimmed, "```")
}
