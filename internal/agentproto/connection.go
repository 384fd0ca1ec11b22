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
package agentproto

import "context"

// Event is one message an agent connection emits while a turn is in
// flight. Exactly one field is meaningful per event, selected by Kind —
// mirroring the sum-type shape the teacher's message.ContentPart uses.
type EventKind int

const (
	EventAssistantChunk EventKind = iota
	EventToolCallPermission
	EventPushToolCall
	EventUpdateToolCall
	EventUpdatePlan
	EventReadTextFile
	EventWriteTextFile
	EventDone
	EventStreamFailure
)

// Event wraps one agent→host message.
type Event struct {
	Kind EventKind

	Chunk         StreamAssistantChunk
	Permission    RequestToolCallPermission
	PushCall      PushToolCall
	UpdateCall    UpdateToolCall
	Plan          UpdatePlan
	ReadFile      ReadTextFile
	WriteFile     WriteTextFile
	StreamFailErr error
}

// Connection is the capability set the Agent Session Controller drives
// an agent backend through. It is deliberately narrow: the wire
// transport and the agent process lifecycle are out of scope
// (spec.md §1) — only the operations the controller issues are modeled.
type Connection interface {
	// Initialize performs the protocol handshake. A version mismatch
	// returns a *ProtocolUnsupportedError.
	Initialize(ctx context.Context, req Initialize) error

	// Authenticate performs the credential exchange.
	Authenticate(ctx context.Context, req Authenticate) error

	// Prompt starts a turn and returns a channel of agent events; the
	// channel is closed after an EventDone or EventStreamFailure event.
	Prompt(ctx context.Context, req Prompt) (<-chan Event, error)

	// Cancel aborts the in-flight turn for a session. Implementations
	// must ensure any outstanding RequestToolCallPermission resolves
	// with Canceled once Cancel returns.
	Cancel(ctx context.Context, req Cancel) error

	// ResolvePermission answers an outstanding
	// RequestToolCallPermission for the given tool-call id.
	ResolvePermission(ctx context.Context, toolCallID string, outcome PermissionOutcome) error

	// ResolveReadTextFile answers an outstanding ReadTextFile by id with
	// either the file's content or the error that prevented reading it.
	ResolveReadTextFile(ctx context.Context, id string, content string, readErr error) error

	// ResolveWriteTextFile answers an outstanding WriteTextFile by id.
	ResolveWriteTextFile(ctx context.Context, id string, writeErr error) error
}

// ProtocolUnsupportedError surfaces an incompatible agent protocol
// version (spec.md §7 ProtocolUnsupported).
type ProtocolUnsupportedError struct {
	Message     string
	UpgradeHint string
	UpgradeCmd  string
}

func (e *ProtocolUnsupportedError) Error() string { return e.Message }

// AgentExitedError surfaces the agent process terminating mid-session
// (spec.md §7 AgentExited).
type AgentExitedError struct {
	Code int
}

func (e *AgentExitedError) Error() string { return "agent exited" }
