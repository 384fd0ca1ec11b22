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
package permission

import "github.com/agentsync/collab/internal/csync"

// Outcome is the resolution of a pending tool-call permission request.
type Outcome struct {
	Selected bool
	OptionID string
}

// Canceled builds the outcome sent when a turn is cancelled while a
// permission request is still pending.
func Canceled() Outcome { return Outcome{Selected: false} }

// Selected builds the outcome sent when the user picks an option.
func Selected(optionID string) Outcome { return Outcome{Selected: true, OptionID: optionID} }

// Registry is the "parallel map {tool_call_id → oneshot-sink}" from the
// rearchitecture notes: WaitingForConfirmation is modeled as a state with
// an opaque resolution token rather than a channel embedded in the status
// enum itself, so the status type stays plain data.
type Registry struct {
	sinks *csync.Map[string, chan Outcome]
}

// NewRegistry creates an empty permission registry.
func NewRegistry() *Registry {
	return &Registry{sinks: csync.NewMap[string, chan Outcome]()}
}

// Open creates a one-shot sink for a tool call and returns the receive end.
func (r *Registry) Open(toolCallID string) <-chan Outcome {
	ch := make(chan Outcome, 1)
	r.sinks.Set(toolCallID, ch)
	return ch
}

// Resolve removes the sink for a tool call and sends the outcome exactly
// once. Resolving a call with no open sink is a no-op (it was already
// resolved, or never opened) — this is the release-build behavior for the
// "authorizing an already-authorized call" case from spec.md §4.1.
func (r *Registry) Resolve(toolCallID string, outcome Outcome) bool {
	ch, ok := r.sinks.Get(toolCallID)
	if !ok {
		return false
	}
	r.sinks.Delete(toolCallID)
	ch <- outcome
	close(ch)
	return true
}

// PendingIDs returns the ids of every tool call with an open sink, for
// cancel() to drain on turn cancellation.
func (r *Registry) PendingIDs() []string {
	var ids []string
	r.sinks.Seq(func(id string, _ chan Outcome) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}
