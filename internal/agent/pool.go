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
package agent

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/agentsync/collab/internal/agentproto"
	"github.com/agentsync/collab/internal/controller"
	"github.com/agentsync/collab/internal/csync"
	applog "github.com/agentsync/collab/internal/log"
	"github.com/agentsync/collab/internal/thread"
)

// ConnFactory builds a fresh agentproto.Connection for a session. Pool
// calls it lazily, once per session id, the first time a prompt arrives
// for that session.
type ConnFactory func(sessionID string) agentproto.Connection

// Pool is a Coordinator that multiplexes many concurrent agent sessions,
// one *controller.Controller per session id, over a single agent
// connection factory — the ASC owns one thread and one turn state
// machine; Pool is what the collaboration layer drives when several
// rooms each have their own agent conversation in flight.
type Pool struct {
	log     *zap.Logger
	agentID string
	connect ConnFactory
	reader  controller.FileReader
	writer  controller.FileWriter

	sessions *csync.Map[string, *entry]

	mu     sync.Mutex
	queues map[string][]string
}

type entry struct {
	thread     *thread.Thread
	controller *controller.Controller
	busy       bool
	mu         sync.Mutex
}

// NewPool creates a Pool identified by agentID, using connect to build a
// connection for each new session. reader/writer back every session's
// ReadTextFile/WriteTextFile capability; either may be nil, in which
// case the controller serves those requests as no-ops.
func NewPool(log *zap.Logger, agentID string, connect ConnFactory, reader controller.FileReader, writer controller.FileWriter) *Pool {
	if log == nil {
		log = applog.Logger()
	}
	return &Pool{
		log:      log,
		agentID:  agentID,
		connect:  connect,
		reader:   reader,
		writer:   writer,
		sessions: csync.NewMap[string, *entry](),
		queues:   make(map[string][]string),
	}
}

func (p *Pool) sessionEntry(sessionID string) *entry {
	if e, ok := p.sessions.Get(sessionID); ok {
		return e
	}
	th := thread.New(sessionID)
	conn := p.connect(sessionID)
	ctrl := controller.New(p.log, conn, th, p.reader, p.writer)
	e := &entry{thread: th, controller: ctrl}
	p.sessions.Set(sessionID, e)
	return e
}

// Run drives one turn of the named session to completion. If the session
// is already busy, the prompt is appended to the session's queue and Run
// returns (nil, nil) at once; Pool does not run queued prompts later.
func (p *Pool) Run(ctx context.Context, sessionID, prompt string, attachments ...interface{}) (interface{}, error) {
	e := p.sessionEntry(sessionID)

	e.mu.Lock()
	if e.busy {
		p.mu.Lock()
		p.queues[sessionID] = append(p.queues[sessionID], prompt)
		p.mu.Unlock()
		e.mu.Unlock()
		return nil, nil
	}
	e.busy = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.busy = false
		e.mu.Unlock()
	}()

	blocks := []agentproto.ContentBlock{{Kind: agentproto.BlockText, Text: prompt}}
	if err := e.controller.Send(ctx, blocks); err != nil {
		return nil, fmt.Errorf("agent %s: session %s: %w", p.agentID, sessionID, err)
	}
	return e.thread.Entries(), nil
}

// IsBusy reports whether the named agent id matches this pool and any
// session is mid-turn.
func (p *Pool) IsBusy(agentID string) bool {
	if agentID != p.agentID {
		return false
	}
	busy := false
	p.sessions.Seq(func(_ string, e *entry) bool {
		e.mu.Lock()
		if e.busy {
			busy = true
		}
		e.mu.Unlock()
		return !busy
	})
	return busy
}

// IsSessionBusy reports whether sessionID's turn is in flight.
func (p *Pool) IsSessionBusy(sessionID string) bool {
	e, ok := p.sessions.Get(sessionID)
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

// GetAgentID returns the pool's configured agent id.
func (p *Pool) GetAgentID() string { return p.agentID }

// Cancel aborts every in-flight session's turn.
func (p *Pool) Cancel() {
	p.CancelAll()
}

// CancelAll aborts every session's in-flight turn.
func (p *Pool) CancelAll() {
	p.sessions.Seq(func(_ string, e *entry) bool {
		e.controller.Cancel(context.Background())
		return true
	})
}

// ClearQueue drops any prompts queued behind a busy session.
func (p *Pool) ClearQueue(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.queues, sessionID)
}

// UpdateModels is a no-op: model selection lives in the connection
// factory, which Pool treats as opaque.
func (p *Pool) UpdateModels(ctx context.Context) error { return nil }

// Summarize is out of scope: thread summarization is a UI-facing
// feature the spec's Non-goals exclude (spec.md §1, "UI rendering").
func (p *Pool) Summarize(ctx context.Context, sessionID string) error {
	return fmt.Errorf("summarize: not supported")
}

// QueuedPrompts returns the total number of prompts waiting across all
// sessions.
func (p *Pool) QueuedPrompts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, q := range p.queues {
		n += len(q)
	}
	return n
}

// QueuedPromptsList returns the prompts queued for one session.
func (p *Pool) QueuedPromptsList(sessionID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.queues[sessionID]))
	copy(out, p.queues[sessionID])
	return out
}

// ListAgents reports this pool as a single agent with a status derived
// from whether any session is currently busy.
func (p *Pool) ListAgents(ctx context.Context) ([]AgentInfo, error) {
	status := "idle"
	if p.IsBusy(p.agentID) {
		status = "busy"
	}
	return []AgentInfo{{ID: p.agentID, Name: p.agentID, Status: status}}, nil
}

var _ Coordinator = (*Pool)(nil)
