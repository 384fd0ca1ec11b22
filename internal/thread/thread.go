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

// Package thread models the turn-based conversation between a user and an
// agent: an append-only sequence of entries (user messages, assistant
// messages, tool calls) plus a plan, guarded by a single in-flight send
// task per thread.
package thread

import (
	"sync"

	"github.com/agentsync/collab/internal/message"
	"github.com/agentsync/collab/internal/pubsub"
	"github.com/agentsync/collab/internal/session"
	"github.com/google/uuid"
)

// Status is the turn state machine of spec.md §4.1.
type Status string

const (
	StatusIdle                      Status = "idle"
	StatusGenerating                Status = "generating"
	StatusWaitingForToolConfirmation Status = "waiting_for_tool_confirmation"
)

// ChunkTag distinguishes assistant text from assistant reasoning.
type ChunkTag int

const (
	TagMessage ChunkTag = iota
	TagThought
)

// Chunk is one coalesced block of assistant output carrying a single tag.
type Chunk struct {
	Tag  ChunkTag
	Text message.ContentText
}

// AssistantMessage is an ordered list of chunks; consecutive chunks of the
// same tag are coalesced into one chunk by PushAssistantChunk.
type AssistantMessage struct {
	Chunks []Chunk
}

// EntryKind discriminates the Entry sum type.
type EntryKind int

const (
	EntryUser EntryKind = iota
	EntryAssistant
	EntryToolCall
)

// Entry is one of UserMessage | AssistantMessage | ToolCall (spec.md §3).
type Entry struct {
	Kind      EntryKind
	User      *message.ContentText
	Assistant *AssistantMessage
	ToolCall  *ToolCall
}

// ToolCallStatusKind is the outer state of a ToolCall (spec.md §3).
type ToolCallStatusKind int

const (
	ToolCallWaitingForConfirmation ToolCallStatusKind = iota
	ToolCallAllowed
	ToolCallRejected
	ToolCallCanceled
)

// ToolCallInnerStatus is the status nested under Allowed.
type ToolCallInnerStatus int

const (
	ToolCallInProgress ToolCallInnerStatus = iota
	ToolCallCompleted
	ToolCallFailed
)

// PermissionOption is one of the options offered to the user for a pending
// tool call (e.g. "Allow once", "Reject").
type PermissionOption struct {
	ID    string
	Label string
	Kind  string // "allow-once" | "allow-always" | "reject-once" | "reject-always"
}

// ToolCallStatus is the full status sum type of spec.md §3.
type ToolCallStatus struct {
	Kind    ToolCallStatusKind
	Options []PermissionOption // set iff Kind == WaitingForConfirmation
	Inner   ToolCallInnerStatus // meaningful iff Kind == Allowed

	// LastObservedStatus records what the agent actually reported for a
	// Canceled call, for bookkeeping only — the user-visible Kind stays
	// Canceled. Resolves the open question in spec.md §9 about what a
	// post-cancel UpdateToolCall is allowed to change.
	LastObservedStatus *ToolCallInnerStatus
}

// Location is a file region a tool call touches or reports on.
type Location struct {
	Path string
	Line int
}

// ToolCall is an agent-initiated action with its own lifecycle (spec.md §3).
type ToolCall struct {
	ID        string
	Label     string
	Kind      string
	Content   string
	Status    ToolCallStatus
	Locations []Location
}

// PlanEntryStatus mirrors session.TodoStatus under the Plan's own name.
type PlanEntryStatus = session.TodoStatus

const (
	PlanPending    = session.TodoStatusPending
	PlanInProgress = session.TodoStatusInProgress
	PlanCompleted  = session.TodoStatusCompleted
)

// PlanEntry wraps a session.Todo with the priority ordering spec.md's Plan
// requires; it reuses the teacher's Todo bookkeeping fields (Content,
// ActiveForm, Status) rather than re-declaring them.
type PlanEntry struct {
	session.Todo
	Priority int
}

// Plan is the ordered list of plan entries attached to a thread.
type Plan struct {
	Entries []PlanEntry
}

// Stats returns (pending, completed, firstInProgressIndex or -1).
func (p Plan) Stats() (pending, completed, firstInProgress int) {
	firstInProgress = -1
	for i, e := range p.Entries {
		switch e.Status {
		case PlanPending:
			pending++
		case PlanCompleted:
			completed++
		case PlanInProgress:
			if firstInProgress == -1 {
				firstInProgress = i
			}
		}
	}
	return
}

// EventKind tags a thread event.
type EventKind int

const (
	EventNewEntry EventKind = iota
	EventEntryUpdated
)

// Event is emitted whenever the thread mutates; ix is the affected entry
// index (spec.md §4.1: "Emits EntryUpdated(ix) or NewEntry").
type Event struct {
	Kind EventKind
	Ix   int
}

// Thread is an append-only sequence of entries plus a plan (spec.md §3).
type Thread struct {
	mu        sync.Mutex
	ProjectID string
	entries   []Entry
	plan      Plan
	stats     session.Session // token/cost bookkeeping, reused from the teacher's Session type

	sendInFlight bool
	events       *pubsub.Broker[Event]
}

// New creates an empty thread bound to a project.
func New(projectID string) *Thread {
	return &Thread{
		ProjectID: projectID,
		stats:     session.Session{ID: uuid.NewString()},
		events:    pubsub.NewBroker[Event](),
	}
}

// Subscribe returns a channel of thread events.
func (t *Thread) Subscribe() <-chan pubsub.Event[Event] {
	return t.events.Subscribe()
}

// Entries returns a snapshot of the entry slice.
func (t *Thread) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Plan returns the current plan.
func (t *Thread) Plan() Plan {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.plan
}

// SetPlan replaces the plan wholesale (agent UpdatePlan wire message).
func (t *Thread) SetPlan(p Plan) {
	t.mu.Lock()
	t.plan = p
	t.mu.Unlock()
}

// MergeStats merges token/cost bookkeeping using session.Session.Merge, so
// partial coordinator updates never clobber fields they don't carry.
func (t *Thread) MergeStats(update session.Session) {
	t.mu.Lock()
	t.stats = t.stats.Merge(update)
	t.mu.Unlock()
}

// Stats returns the thread's bookkeeping snapshot.
func (t *Thread) Stats() session.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// turnBoundaryBack scans backward from the end to find the start of the
// current turn: any User or Assistant entry. Tool calls belong to the
// turn of the preceding message entry.
func (t *Thread) turnBoundaryBack() int {
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].Kind == EntryUser || t.entries[i].Kind == EntryAssistant {
			return i
		}
	}
	return 0
}

// Status computes the turn state machine from (send in flight, an
// unresolved WaitingForConfirmation call within the current turn).
func (t *Thread) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statusLocked()
}

func (t *Thread) statusLocked() Status {
	if !t.sendInFlight {
		return StatusIdle
	}
	start := t.turnBoundaryBack()
	for i := start; i < len(t.entries); i++ {
		e := t.entries[i]
		if e.Kind == EntryToolCall && e.ToolCall.Status.Kind == ToolCallWaitingForConfirmation {
			return StatusWaitingForToolConfirmation
		}
	}
	return StatusGenerating
}

// BeginSend appends a UserMessage entry and marks a send task in flight.
// Spec.md §4.1: send() must cancel any existing in-flight send first; that
// cancellation is the caller's (controller's) responsibility since only it
// holds the agent connection.
func (t *Thread) BeginSend(content message.ContentText) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, Entry{Kind: EntryUser, User: &content})
	t.sendInFlight = true
	ix := len(t.entries) - 1
	t.emitLocked(Event{Kind: EventNewEntry, Ix: ix})
	return ix
}

// EndSend clears the in-flight send flag without touching entries.
func (t *Thread) EndSend() {
	t.mu.Lock()
	t.sendInFlight = false
	t.mu.Unlock()
}

// IsSendInFlight reports whether a send task is active.
func (t *Thread) IsSendInFlight() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sendInFlight
}

// PushAssistantChunk implements spec.md §4.1's coalescing rule: append to
// the last chunk if it is an AssistantMessage entry whose last chunk's tag
// matches; otherwise start a new chunk, and a new entry if the last entry
// isn't an AssistantMessage at all.
func (t *Thread) PushAssistantChunk(text string, isThought bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tag := TagMessage
	if isThought {
		tag = TagThought
	}

	if n := len(t.entries); n > 0 && t.entries[n-1].Kind == EntryAssistant {
		am := t.entries[n-1].Assistant
		if len(am.Chunks) > 0 && am.Chunks[len(am.Chunks)-1].Tag == tag {
			last := &am.Chunks[len(am.Chunks)-1]
			last.Text.Text += text
		} else {
			am.Chunks = append(am.Chunks, Chunk{Tag: tag, Text: message.ContentText{Text: text}})
		}
		t.emitLocked(Event{Kind: EventEntryUpdated, Ix: n - 1})
		return
	}

	t.entries = append(t.entries, Entry{Kind: EntryAssistant, Assistant: &AssistantMessage{
		Chunks: []Chunk{{Tag: tag, Text: message.ContentText{Text: text}}},
	}})
	t.emitLocked(Event{Kind: EventNewEntry, Ix: len(t.entries) - 1})
}

// ErrNotAuthorized is returned by UpdateToolCall for a call still awaiting
// authorization.
var ErrNotAuthorized = toolCallErr("tool call requires authorization before it can be updated")

// ErrWasRejected is returned by UpdateToolCall for a rejected call.
var ErrWasRejected = toolCallErr("tool call was rejected")

type toolCallErr string

func (e toolCallErr) Error() string { return string(e) }

// FindToolCall returns the index of the entry holding the given tool call id.
func (t *Thread) FindToolCall(id string) (int, *ToolCall, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, e := range t.entries {
		if e.Kind == EntryToolCall && e.ToolCall.ID == id {
			return i, e.ToolCall, true
		}
	}
	return -1, nil, false
}

// InsertWaitingToolCall inserts a new tool call in WaitingForConfirmation.
func (t *Thread) InsertWaitingToolCall(tc ToolCall, options []PermissionOption) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	tc.Status = ToolCallStatus{Kind: ToolCallWaitingForConfirmation, Options: options}
	t.entries = append(t.entries, Entry{Kind: EntryToolCall, ToolCall: &tc})
	ix := len(t.entries) - 1
	t.emitLocked(Event{Kind: EventNewEntry, Ix: ix})
	return ix
}

// UpdateToolCall applies the status-transition rules of spec.md §3/§4.1. If
// no call with the id exists, a new Allowed{status} call is inserted.
func (t *Thread) UpdateToolCall(id string, inner ToolCallInnerStatus, content string, locations []Location) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, e := range t.entries {
		if e.Kind != EntryToolCall || e.ToolCall.ID != id {
			continue
		}
		tc := e.ToolCall
		switch tc.Status.Kind {
		case ToolCallWaitingForConfirmation:
			return ErrNotAuthorized
		case ToolCallRejected:
			return ErrWasRejected
		case ToolCallCanceled:
			// Preserve the Canceled status for the user view, but record
			// what the agent actually reported and still take the
			// bookkeeping fields (content/locations), per spec.md §9.
			tc.Status.LastObservedStatus = &inner
			tc.Content = content
			if locations != nil {
				tc.Locations = locations
			}
			t.emitLocked(Event{Kind: EventEntryUpdated, Ix: i})
			return nil
		case ToolCallAllowed:
			tc.Status.Inner = inner
			tc.Content = content
			if locations != nil {
				tc.Locations = locations
			}
			t.emitLocked(Event{Kind: EventEntryUpdated, Ix: i})
			return nil
		}
	}

	tc := ToolCall{ID: id, Content: content, Locations: locations, Status: ToolCallStatus{Kind: ToolCallAllowed, Inner: inner}}
	t.entries = append(t.entries, Entry{Kind: EntryToolCall, ToolCall: &tc})
	t.emitLocked(Event{Kind: EventNewEntry, Ix: len(t.entries) - 1})
	return nil
}

// AuthorizeToolCall atomically replaces a WaitingForConfirmation call's
// status with Rejected or Allowed{InProgress}, as selected by optionKind.
// Returns false (a debug-assert-equivalent no-op in release builds, per
// Design Notes §9) if the call isn't currently waiting.
func (t *Thread) AuthorizeToolCall(id string, optionKind string) (ToolCallStatusKind, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, e := range t.entries {
		if e.Kind != EntryToolCall || e.ToolCall.ID != id {
			continue
		}
		tc := e.ToolCall
		if tc.Status.Kind != ToolCallWaitingForConfirmation {
			return tc.Status.Kind, false
		}
		if optionKindIsReject(optionKind) {
			tc.Status = ToolCallStatus{Kind: ToolCallRejected}
		} else {
			tc.Status = ToolCallStatus{Kind: ToolCallAllowed, Inner: ToolCallInProgress}
		}
		t.emitLocked(Event{Kind: EventEntryUpdated, Ix: i})
		return tc.Status.Kind, true
	}
	return 0, false
}

func optionKindIsReject(kind string) bool {
	return kind == "reject-once" || kind == "reject-always"
}

// CancelInFlightToolCalls walks entries from the current turn boundary and
// transitions every WaitingForConfirmation or Allowed{InProgress} call to
// Canceled, per spec.md §4.1 cancel().
func (t *Thread) CancelInFlightToolCalls() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	start := t.turnBoundaryBack()
	var canceled []string
	for i := start; i < len(t.entries); i++ {
		e := t.entries[i]
		if e.Kind != EntryToolCall {
			continue
		}
		tc := e.ToolCall
		switch tc.Status.Kind {
		case ToolCallWaitingForConfirmation, ToolCallAllowed:
			if tc.Status.Kind == ToolCallAllowed && tc.Status.Inner != ToolCallInProgress {
				continue
			}
			tc.Status = ToolCallStatus{Kind: ToolCallCanceled}
			canceled = append(canceled, tc.ID)
			t.emitLocked(Event{Kind: EventEntryUpdated, Ix: i})
		}
	}
	return canceled
}

func (t *Thread) emitLocked(ev Event) {
	if t.events != nil {
		t.events.Publish(pubsub.NewUpdatedEvent(ev))
	}
}
