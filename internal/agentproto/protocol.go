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

// Package agentproto defines the bidirectional, message-framed agent
// protocol (spec.md §6) the controller speaks to an agent backend over,
// and the wire transport itself is consumed only as an abstract stream —
// out of scope per spec.md §1.
package agentproto

import (
	"fmt"
	"strings"
)

// ProtocolVersion is the semver string exchanged during Initialize.
type ProtocolVersion = string

// Initialize is the host→agent handshake request.
type Initialize struct {
	ProtocolVersion ProtocolVersion
}

// Authenticate is the host→agent credential exchange.
type Authenticate struct {
	Method string
	Token  string
}

// ContentBlockKind is the kind of one content block in a Prompt.
type ContentBlockKind int

const (
	BlockText ContentBlockKind = iota
	BlockResourceLink
	BlockImage
	BlockAudio
	BlockResource
)

// ContentBlock is one block of a Prompt's content.
type ContentBlock struct {
	Kind        ContentBlockKind
	Text        string // BlockText
	Annotations string // BlockText, optional
	URI         string // BlockResourceLink
}

const filePrefix = "@file:"

// Coalesce renders a content block into the plain text a thread entry
// accumulates: BlockText contributes its text, a file:// ResourceLink
// renders as the `[@basename](@file:path)` mention form, and every other
// non-text variant contributes an empty string (spec.md §6).
func (b ContentBlock) Coalesce() string {
	switch b.Kind {
	case BlockText:
		return b.Text
	case BlockResourceLink:
		if strings.HasPrefix(b.URI, "file://") {
			path := strings.TrimPrefix(b.URI, "file://")
			base := path
			if i := strings.LastIndexByte(path, '/'); i >= 0 {
				base = path[i+1:]
			}
			return fmt.Sprintf("[@%s](%s%s)", base, filePrefix, path)
		}
		return ""
	default:
		return ""
	}
}

// Prompt is the host→agent request carrying the user's turn.
type Prompt struct {
	SessionID     string
	ContentBlocks []ContentBlock
}

// Cancel is the host→agent request to abort the in-flight turn.
type Cancel struct {
	SessionID string
}

// StreamAssistantChunk is an agent→host assistant text or thought chunk.
type StreamAssistantChunk struct {
	Chunk     string
	IsThought bool
}

// WirePermissionOption mirrors a thread.PermissionOption for the wire.
type WirePermissionOption struct {
	ID   string
	Kind string
}

// ToolCallRef identifies the tool call a RequestToolCallPermission is
// asking about.
type ToolCallRef struct {
	ID    string
	Label string
}

// RequestToolCallPermission is an agent→host request to authorize a
// tool call before it runs.
type RequestToolCallPermission struct {
	Call    ToolCallRef
	Options []WirePermissionOption
}

// PushToolCall is an agent→host announcement of a new tool call.
type PushToolCall struct {
	ID        string
	Label     string
	Kind      string
	Icon      string
	Content   string
	Locations []WireLocation
}

// WireLocation mirrors thread.Location for the wire.
type WireLocation struct {
	Path string
	Line *int
}

// WireToolCallStatus is a tool-call status as transmitted on the wire —
// deliberately a smaller set than thread.ToolCallStatus, which also
// tracks host-local states like WaitingForConfirmation and Rejected that
// never originate from the agent.
type WireToolCallStatus int

const (
	WireInProgress WireToolCallStatus = iota
	WireCompleted
	WireFailed
)

// UpdateToolCall is an agent→host update to an existing tool call.
type UpdateToolCall struct {
	ID      string
	Status  WireToolCallStatus
	Content string
}

// WirePlanEntry mirrors thread.PlanEntry for the wire.
type WirePlanEntry struct {
	Content  string
	Status   string
	Priority int
}

// UpdatePlan is an agent→host replacement of the session's plan.
type UpdatePlan struct {
	Entries []WirePlanEntry
}

// ReadTextFile is an agent→host request to read a file the host owns.
// ID correlates the eventual ResolveReadTextFile reply. ReuseSharedSnapshot
// asks the host to serve the read from its cached shared_buffers snapshot
// (spec.md §5) instead of re-reading disk, so a read immediately following
// a write_text_file sees the content the agent itself just produced even
// if the write hasn't been flushed yet.
type ReadTextFile struct {
	ID                  string
	Path                string
	Line                *int
	Limit               *int
	ReuseSharedSnapshot bool
}

// WriteTextFile is an agent→host request to write a file the host owns.
// ID correlates the eventual ResolveWriteTextFile reply.
type WriteTextFile struct {
	ID      string
	Path    string
	Content string
}

// PermissionOutcome is the host's reply to RequestToolCallPermission.
type PermissionOutcome struct {
	Selected bool
	OptionID string
}
