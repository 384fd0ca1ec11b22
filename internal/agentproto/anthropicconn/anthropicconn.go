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

// Package anthropicconn is an agentproto.Connection backed directly by
// the Anthropic API via anthropic-sdk-go's streaming client, grounded on
// pkg/llm/bedrock.SDKClient.ChatStream's event-handling loop.
package anthropicconn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
	"golang.org/x/mod/semver"

	"github.com/agentsync/collab/internal/agentproto"
	applog "github.com/agentsync/collab/internal/log"
)

// Config configures the connection.
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int64
	Temperature float64
	Logger      *zap.Logger
}

// Conn drives one anthropic-sdk-go client as an agentproto.Connection.
// Each Prompt call issues one streaming Messages request; tool calls the
// model requests are surfaced as PushToolCall immediately, with no
// RequestToolCallPermission round-trip of their own, since the
// model-side tool-use protocol this SDK speaks has
// no permission-negotiation step of its own.
type Conn struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
	log         *zap.Logger

	mu        sync.Mutex
	sinks     map[string]chan agentproto.PermissionOutcome
	cancelled map[string]bool
}

// New creates a Conn using cfg.APIKey as the bearer credential.
func New(cfg Config) *Conn {
	logger := cfg.Logger
	if logger == nil {
		logger = applog.Logger()
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	return &Conn{
		client:      anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		log:         logger,
		sinks:       make(map[string]chan agentproto.PermissionOutcome),
		cancelled:   make(map[string]bool),
	}
}

// SupportedProtocolVersion is the agentproto version this connection
// speaks. Initialize rejects a controller requesting anything newer.
const SupportedProtocolVersion = "v1.0.0"

func (c *Conn) Initialize(ctx context.Context, req agentproto.Initialize) error {
	if !semver.IsValid(req.ProtocolVersion) {
		return &agentproto.ProtocolUnsupportedError{Message: fmt.Sprintf("malformed protocol version %q", req.ProtocolVersion)}
	}
	if semver.Compare(req.ProtocolVersion, SupportedProtocolVersion) > 0 {
		return &agentproto.ProtocolUnsupportedError{
			Message:     fmt.Sprintf("agent supports up to %s, controller requires %s", SupportedProtocolVersion, req.ProtocolVersion),
			UpgradeHint: "upgrade the anthropicconn agent backend",
		}
	}
	return nil
}

func (c *Conn) Authenticate(ctx context.Context, req agentproto.Authenticate) error { return nil }

// Prompt issues one streaming Messages call and translates its events
// into agentproto.Event values.
func (c *Conn) Prompt(ctx context.Context, req agentproto.Prompt) (<-chan agentproto.Event, error) {
	var sb strings.Builder
	for _, b := range req.ContentBlocks {
		sb.WriteString(b.Coalesce())
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(c.temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(sb.String())),
		},
	}

	out := make(chan agentproto.Event, 8)
	go c.drive(ctx, req.SessionID, params, out)
	return out, nil
}

func (c *Conn) drive(ctx context.Context, sessionID string, params anthropic.MessageNewParams, out chan<- agentproto.Event) {
	defer close(out)

	stream := c.client.Messages.NewStreaming(ctx, params)

	toolCallIDs := make(map[int64]string)
	toolInputBuffers := make(map[int64]*strings.Builder)

	emit := func(ev agentproto.Event) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for stream.Next() {
		if c.isCancelled(sessionID) {
			return
		}
		event := stream.Current()

		switch event.Type {
		case "content_block_start":
			if event.ContentBlock.Type == "tool_use" {
				toolInputBuffers[event.Index] = &strings.Builder{}
				toolCallIDs[event.Index] = event.ContentBlock.ID
				if !emit(agentproto.Event{
					Kind: agentproto.EventPushToolCall,
					PushCall: agentproto.PushToolCall{
						ID:    event.ContentBlock.ID,
						Label: event.ContentBlock.Name,
						Kind:  "tool",
					},
				}) {
					return
				}
			}

		case "content_block_delta":
			if event.Delta.Type == "text_delta" && event.Delta.Text != "" {
				if !emit(agentproto.Event{Kind: agentproto.EventAssistantChunk, Chunk: agentproto.StreamAssistantChunk{Chunk: event.Delta.Text}}) {
					return
				}
			}
			if event.Delta.Type == "input_json_delta" {
				if buf, ok := toolInputBuffers[event.Index]; ok {
					buf.WriteString(event.Delta.PartialJSON)
				}
			}
			if event.Delta.Type == "thinking_delta" && event.Delta.Thinking != "" {
				if !emit(agentproto.Event{Kind: agentproto.EventAssistantChunk, Chunk: agentproto.StreamAssistantChunk{Chunk: event.Delta.Thinking, IsThought: true}}) {
					return
				}
			}

		case "content_block_stop":
			if buf, ok := toolInputBuffers[event.Index]; ok {
				content := buf.String()
				if content != "" {
					var asJSON map[string]any
					if err := json.Unmarshal([]byte(content), &asJSON); err != nil {
						c.log.Warn("tool input was not valid json", zap.Error(err))
					}
				}
				delete(toolInputBuffers, event.Index)
				if id, ok := toolCallIDs[event.Index]; ok {
					if !emit(agentproto.Event{
						Kind:       agentproto.EventUpdateToolCall,
						UpdateCall: agentproto.UpdateToolCall{ID: id, Status: agentproto.WireCompleted, Content: content},
					}) {
						return
					}
				}
			}
		}
	}

	if err := stream.Err(); err != nil && err != io.EOF {
		emit(agentproto.Event{Kind: agentproto.EventStreamFailure, StreamFailErr: fmt.Errorf("anthropic stream: %w", err)})
		return
	}
	emit(agentproto.Event{Kind: agentproto.EventDone})
}

func (c *Conn) Cancel(ctx context.Context, req agentproto.Cancel) error {
	c.mu.Lock()
	c.cancelled[req.SessionID] = true
	c.mu.Unlock()
	return nil
}

func (c *Conn) isCancelled(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled[sessionID]
}

// ResolvePermission is a no-op: this connection never emits
// RequestToolCallPermission (see Conn's doc comment).
func (c *Conn) ResolvePermission(ctx context.Context, toolCallID string, outcome agentproto.PermissionOutcome) error {
	return nil
}

// ResolveReadTextFile and ResolveWriteTextFile are no-ops: the
// anthropic-sdk-go streaming call this connection drives already
// completes its turn independent of file I/O round-trips, since tool
// execution itself is the agent process's responsibility
// (spec.md §1) rather than this host-side connection's.
func (c *Conn) ResolveReadTextFile(ctx context.Context, id string, content string, readErr error) error {
	return nil
}

func (c *Conn) ResolveWriteTextFile(ctx context.Context, id string, writeErr error) error {
	return nil
}

var _ agentproto.Connection = (*Conn)(nil)
