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

// Package memoryconn is an in-process agentproto.Connection double for
// tests: a script of events is played back verbatim when Prompt is
// called, and permission requests resolve through a
// permission.Registry-shaped channel so controller tests can authorize
// or cancel mid-turn.
package memoryconn

import (
	"context"
	"sync"

	"github.com/agentsync/collab/internal/agentproto"
)

// Script is a scripted turn: the events to emit, in order. Prompt always
// pauses after emitting a permission request until ResolvePermission is
// called.
type Script struct {
	Events []agentproto.Event
}

// Conn is a scripted, in-memory Connection.
type Conn struct {
	mu       sync.Mutex
	script   Script
	sinks    map[string]chan agentproto.PermissionOutcome
	canceled map[string]bool
}

// New creates a connection that will replay script on the next Prompt.
func New(script Script) *Conn {
	return &Conn{
		script:   script,
		sinks:    make(map[string]chan agentproto.PermissionOutcome),
		canceled: make(map[string]bool),
	}
}

func (c *Conn) Initialize(ctx context.Context, req agentproto.Initialize) error { return nil }

func (c *Conn) Authenticate(ctx context.Context, req agentproto.Authenticate) error { return nil }

// Prompt emits the scripted events on a goroutine, pausing before
// emitting anything past an EventToolCallPermission until
// ResolvePermission unblocks it, or the context/Cancel ends the turn.
func (c *Conn) Prompt(ctx context.Context, req agentproto.Prompt) (<-chan agentproto.Event, error) {
	out := make(chan agentproto.Event, 1)
	go func() {
		defer close(out)
		for _, ev := range c.script.Events {
			c.mu.Lock()
			canceled := c.canceled[req.SessionID]
			c.mu.Unlock()
			if canceled {
				return
			}
			if ev.Kind == agentproto.EventToolCallPermission {
				sink := c.openSink(ev.Permission.Call.ID)
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
				select {
				case outcome := <-sink:
					_ = outcome
				case <-ctx.Done():
					return
				}
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *Conn) Cancel(ctx context.Context, req agentproto.Cancel) error {
	c.mu.Lock()
	c.canceled[req.SessionID] = true
	sinks := make([]chan agentproto.PermissionOutcome, 0, len(c.sinks))
	for _, s := range c.sinks {
		sinks = append(sinks, s)
	}
	c.sinks = make(map[string]chan agentproto.PermissionOutcome)
	c.mu.Unlock()
	for _, s := range sinks {
		select {
		case s <- agentproto.PermissionOutcome{Selected: false}:
		default:
		}
	}
	return nil
}

func (c *Conn) ResolvePermission(ctx context.Context, toolCallID string, outcome agentproto.PermissionOutcome) error {
	c.mu.Lock()
	sink, ok := c.sinks[toolCallID]
	if ok {
		delete(c.sinks, toolCallID)
	}
	c.mu.Unlock()
	if !ok {
		return nil
	}
	sink <- outcome
	return nil
}

func (c *Conn) openSink(toolCallID string) chan agentproto.PermissionOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan agentproto.PermissionOutcome, 1)
	c.sinks[toolCallID] = ch
	return ch
}

// ResolveReadTextFile and ResolveWriteTextFile are no-ops: a scripted
// connection's events are fixed in advance, so there is nothing for a
// reply to unblock.
func (c *Conn) ResolveReadTextFile(ctx context.Context, id string, content string, readErr error) error {
	return nil
}

func (c *Conn) ResolveWriteTextFile(ctx context.Context, id string, writeErr error) error {
	return nil
}

var _ agentproto.Connection = (*Conn)(nil)
