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

// Package controller implements the Agent Session Controller (spec.md
// §4.1): it owns the turn/state machine for one thread, mediating
// send/cancel and tool-call authorization against an agentproto.Connection.
package controller

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentsync/collab/internal/agentproto"
	"github.com/agentsync/collab/internal/anchor"
	"github.com/agentsync/collab/internal/csync"
	applog "github.com/agentsync/collab/internal/log"
	"github.com/agentsync/collab/internal/message"
	"github.com/agentsync/collab/internal/permission"
	"github.com/agentsync/collab/internal/thread"
)

// MinProtocolVersion is the oldest agentproto version this controller
// speaks (spec.md §7 ProtocolUnsupported). Bumped whenever a breaking
// wire change lands; never compared with plain string equality since
// patch releases of the agent should still be accepted.
const MinProtocolVersion = "v1.0.0"

// LoadErrorKind is the lifecycle failure surfaced to upper layers
// (spec.md §7).
type LoadErrorKind int

const (
	LoadErrorUnsupported LoadErrorKind = iota
	LoadErrorExited
	LoadErrorOther
)

// LoadError carries a lifecycle failure.
type LoadError struct {
	Kind    LoadErrorKind
	Code    int
	Message string
}

func (e *LoadError) Error() string {
	switch e.Kind {
	case LoadErrorExited:
		return fmt.Sprintf("agent exited with code %d", e.Code)
	case LoadErrorUnsupported:
		return fmt.Sprintf("unsupported agent protocol: %s", e.Message)
	default:
		return e.Message
	}
}

// FileReader and FileWriter are the raw disk I/O ReadTextFile and
// WriteTextFile are ultimately served against — line slicing, the
// shared_buffers snapshot cache, and anchor-based edit application all
// live in the controller (buffer.go), not here, since the real CRDT
// buffer those stand in for is out of scope (spec.md §1).
type FileReader interface {
	ReadTextFile(ctx context.Context, path string) (string, error)
}

type FileWriter interface {
	WriteTextFile(ctx context.Context, path, content string) error
}

// Controller is the Agent Session Controller for one thread.
type Controller struct {
	log        *zap.Logger
	conn       agentproto.Connection
	th         *thread.Thread
	perms      *permission.Registry
	sessionID  string
	reader     FileReader
	writer     FileWriter

	buffers   *csync.Map[string, anchor.Buffer]
	snapshots *csync.Map[string, fileSnapshot]
	actionLog *csync.Slice[ActionLogEntry]

	mu          sync.Mutex
	cancelFunc  context.CancelFunc
	loadErr     *LoadError
	initialized bool
	location    *AgentLocation
}

// New creates a controller for a thread over the given connection.
func New(log *zap.Logger, conn agentproto.Connection, th *thread.Thread, reader FileReader, writer FileWriter) *Controller {
	if log == nil {
		log = applog.Logger()
	}
	return &Controller{
		log:       log,
		conn:      conn,
		th:        th,
		perms:     permission.NewRegistry(),
		sessionID: uuid.NewString(),
		reader:    reader,
		writer:    writer,
		buffers:   csync.NewMap[string, anchor.Buffer](),
		snapshots: csync.NewMap[string, fileSnapshot](),
		actionLog: csync.NewSlice[ActionLogEntry](),
	}
}

// LoadError returns the last lifecycle failure, if any.
func (c *Controller) LoadError() *LoadError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadErr
}

// Send cancels any existing in-flight turn, appends the prompt as a user
// entry, and streams the agent's response into the thread until the
// agent signals completion, an error occurs, or the turn is cancelled.
// A failed prompt RPC propagates as an error to the caller; partial
// assistant output already appended remains (spec.md §4.1).
func (c *Controller) Send(ctx context.Context, blocks []agentproto.ContentBlock) error {
	if err := c.negotiate(ctx); err != nil {
		return err
	}

	c.Cancel(ctx)

	var text string
	for _, b := range blocks {
		text += b.Coalesce()
	}
	c.th.BeginSend(message.ContentText{Text: text})
	defer c.th.EndSend()

	turnCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelFunc = cancel
	c.mu.Unlock()
	defer cancel()

	events, err := c.conn.Prompt(turnCtx, agentproto.Prompt{SessionID: c.sessionID, ContentBlocks: blocks})
	if err != nil {
		return err
	}

	for ev := range events {
		if err := c.handleEvent(turnCtx, ev); err != nil {
			return err
		}
	}
	return nil
}

// negotiate performs the Initialize handshake once per controller,
// rejecting an agent whose protocol version is older than
// MinProtocolVersion (spec.md §7 ProtocolUnsupported).
func (c *Controller) negotiate(ctx context.Context) error {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	err := c.conn.Initialize(ctx, agentproto.Initialize{ProtocolVersion: MinProtocolVersion})
	var unsupported *agentproto.ProtocolUnsupportedError
	switch {
	case err == nil:
		c.mu.Lock()
		c.initialized = true
		c.mu.Unlock()
		return nil
	case asProtocolUnsupported(err, &unsupported):
		c.mu.Lock()
		c.loadErr = &LoadError{Kind: LoadErrorUnsupported, Message: unsupported.Message}
		c.mu.Unlock()
		return c.loadErr
	default:
		c.mu.Lock()
		c.loadErr = &LoadError{Kind: LoadErrorOther, Message: err.Error()}
		c.mu.Unlock()
		return c.loadErr
	}
}

func asProtocolUnsupported(err error, target **agentproto.ProtocolUnsupportedError) bool {
	u, ok := err.(*agentproto.ProtocolUnsupportedError)
	if ok {
		*target = u
	}
	return ok
}

func (c *Controller) handleEvent(ctx context.Context, ev agentproto.Event) error {
	switch ev.Kind {
	case agentproto.EventAssistantChunk:
		c.th.PushAssistantChunk(ev.Chunk.Chunk, ev.Chunk.IsThought)

	case agentproto.EventPushToolCall:
		locs := make([]thread.Location, len(ev.PushCall.Locations))
		for i, l := range ev.PushCall.Locations {
			line := 0
			if l.Line != nil {
				line = *l.Line
			}
			locs[i] = thread.Location{Path: l.Path, Line: line}
		}
		c.th.InsertWaitingToolCall(thread.ToolCall{
			ID:        ev.PushCall.ID,
			Label:     ev.PushCall.Label,
			Kind:      ev.PushCall.Kind,
			Content:   ev.PushCall.Content,
			Locations: locs,
		}, nil)
		if len(locs) > 0 {
			go c.setProjectLocationAsync(ctx, locs[0])
		}

	case agentproto.EventToolCallPermission:
		opts := make([]thread.PermissionOption, len(ev.Permission.Options))
		for i, o := range ev.Permission.Options {
			opts[i] = thread.PermissionOption{ID: o.ID, Kind: o.Kind}
		}
		if _, _, ok := c.th.FindToolCall(ev.Permission.Call.ID); !ok {
			c.th.InsertWaitingToolCall(thread.ToolCall{ID: ev.Permission.Call.ID, Label: ev.Permission.Call.Label}, opts)
		}
		sink := c.perms.Open(ev.Permission.Call.ID)
		go c.awaitPermission(ctx, ev.Permission.Call.ID, sink)

	case agentproto.EventUpdateToolCall:
		inner := wireToInner(ev.UpdateCall.Status)
		if err := c.th.UpdateToolCall(ev.UpdateCall.ID, inner, ev.UpdateCall.Content, nil); err != nil {
			c.log.Debug("update tool call rejected by thread state machine", zap.Error(err), zap.String("id", ev.UpdateCall.ID))
		}

	case agentproto.EventUpdatePlan:
		entries := make([]thread.PlanEntry, len(ev.Plan.Entries))
		for i, e := range ev.Plan.Entries {
			entries[i] = thread.PlanEntry{Priority: e.Priority}
			entries[i].Content = e.Content
		}
		c.th.SetPlan(thread.Plan{Entries: entries})

	case agentproto.EventReadTextFile:
		go c.serveReadTextFile(ctx, ev.ReadFile)

	case agentproto.EventWriteTextFile:
		go c.serveWriteTextFile(ctx, ev.WriteFile)

	case agentproto.EventStreamFailure:
		return ev.StreamFailErr

	case agentproto.EventDone:
	}
	return nil
}

func (c *Controller) awaitPermission(ctx context.Context, toolCallID string, sink <-chan permission.Outcome) {
	select {
	case outcome := <-sink:
		var kind string
		if outcome.Selected {
			kind = outcome.OptionID
		} else {
			kind = "reject-once"
		}
		c.th.AuthorizeToolCall(toolCallID, kind)
		_ = c.conn.ResolvePermission(ctx, toolCallID, agentproto.PermissionOutcome{Selected: outcome.Selected, OptionID: outcome.OptionID})
	case <-ctx.Done():
	}
}

func (c *Controller) serveReadTextFile(ctx context.Context, req agentproto.ReadTextFile) {
	content, err := c.readTextFile(ctx, req)
	if err != nil {
		c.log.Warn("read_text_file failed", zap.Error(err), zap.String("path", req.Path))
	}
	_ = c.conn.ResolveReadTextFile(ctx, req.ID, content, err)
}

func (c *Controller) serveWriteTextFile(ctx context.Context, req agentproto.WriteTextFile) {
	err := c.writeTextFile(ctx, req)
	if err != nil {
		c.log.Warn("write_text_file failed", zap.Error(err), zap.String("path", req.Path))
	}
	_ = c.conn.ResolveWriteTextFile(ctx, req.ID, err)
}

// setProjectLocationAsync runs SetProjectLocation in the background for a
// freshly announced tool-call location, matching spec.md §4.1's "the
// buffer is opened asynchronously." Best-effort: a failure (e.g. the path
// doesn't exist yet) only logs, since publishing a location is advisory.
func (c *Controller) setProjectLocationAsync(ctx context.Context, loc thread.Location) {
	if err := c.SetProjectLocation(ctx, loc); err != nil {
		c.log.Debug("set_project_location failed", zap.Error(err), zap.String("path", loc.Path))
	}
}

// AuthorizeToolCall resolves a pending permission request from the user
// side (as opposed to the agent side, which flows through handleEvent).
func (c *Controller) AuthorizeToolCall(toolCallID string, selected bool, optionID string) bool {
	outcome := permission.Outcome{Selected: selected, OptionID: optionID}
	return c.perms.Resolve(toolCallID, outcome)
}

// Cancel aborts the in-flight turn. Every pending permission sink is
// resolved as Canceled so waiters never block forever (spec.md §7: "A
// RequestToolCallPermission whose originating turn is cancelled must
// resolve with Canceled").
func (c *Controller) Cancel(ctx context.Context) {
	c.mu.Lock()
	cancel := c.cancelFunc
	c.cancelFunc = nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()

	for _, id := range c.perms.PendingIDs() {
		c.perms.Resolve(id, permission.Canceled())
	}
	c.th.CancelInFlightToolCalls()
	_ = c.conn.Cancel(ctx, agentproto.Cancel{SessionID: c.sessionID})
}

// Status exposes the thread's turn state.
func (c *Controller) Status() thread.Status { return c.th.Status() }

func wireToInner(s agentproto.WireToolCallStatus) thread.ToolCallInnerStatus {
	switch s {
	case agentproto.WireCompleted:
		return thread.ToolCallCompleted
	case agentproto.WireFailed:
		return thread.ToolCallFailed
	default:
		return thread.ToolCallInProgress
	}
}
