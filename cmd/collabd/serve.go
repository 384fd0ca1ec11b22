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

package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/r3labs/sse/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agentsync/collab/internal/agent"
	"github.com/agentsync/collab/internal/agentproto"
	"github.com/agentsync/collab/internal/agentproto/anthropicconn"
	"github.com/agentsync/collab/internal/agentproto/memoryconn"
	"github.com/agentsync/collab/internal/collab"
	"github.com/agentsync/collab/internal/collab/rpc"
	"github.com/agentsync/collab/internal/collab/store"
	"github.com/agentsync/collab/internal/collab/store/pgstore"
	"github.com/agentsync/collab/internal/collab/store/sqlitestore"
	"github.com/agentsync/collab/internal/config"
	applog "github.com/agentsync/collab/internal/log"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "start the collaboration server",
	RunE:  runServe,
}

// server wires together every component the collaboration protocol
// transport needs: the Registry (CSR), the agent Pool (ASC, multiplexed
// per session), and an SSE broker that pushes Response.Room/Project
// snapshots to the connection ids Dispatch names.
type server struct {
	log      *zap.Logger
	registry *collab.Registry
	agents   *agent.Pool
	sse      *sse.Server
	sweep    *collab.StaleSweep
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	applog.SetLogger(log)
	defer applog.Sync()

	backend, err := openStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("opening storage backend: %w", err)
	}
	defer backend.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := backend.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	registry := collab.NewRegistry(log, backend)

	pool := agent.NewPool(log, "default", connFactory(cfg.LLM, log), localFS{}, localFS{})

	threshold, err := time.ParseDuration(cfg.Stale.StaleThreshold)
	if err != nil {
		return fmt.Errorf("parsing stale.stale_threshold: %w", err)
	}
	sweep := collab.NewStaleSweep(log, registry, threshold)
	if cfg.Stale.Enabled {
		if err := sweep.Start(cfg.Stale.Schedule); err != nil {
			return fmt.Errorf("starting stale sweep: %w", err)
		}
		defer sweep.Stop()
	}

	sseServer := sse.New()
	sseServer.AutoReplay = false

	srv := &server{log: log, registry: registry, agents: pool, sse: sseServer, sweep: sweep}

	mux := http.NewServeMux()
	mux.HandleFunc("/rpc", srv.handleRPC)
	mux.HandleFunc("/events", srv.handleEvents)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort)
	log.Info("collabd listening", zap.String("addr", addr))
	return http.ListenAndServe(addr, mux)
}

// handleRPC decodes one rpc.Envelope, dispatches it against the
// Registry, and republishes the response to every connection id the
// dispatch names over the matching SSE stream.
func (s *server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var env rpc.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp, notify, err := rpc.Dispatch(r.Context(), s.registry, env)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// A RejoinRoom response carries the full reconnect delta for every
	// rejoined project's worktrees, which can be large after a long
	// disconnect; gzip it before fanning it out over SSE.
	if env.Op == rpc.OpRejoinRoom {
		compressed, err := gzipEncode(payload)
		if err != nil {
			s.log.Warn("gzip rejoin payload", zap.Error(err))
		} else {
			payload = compressed
		}
	}

	for _, conn := range notify {
		streamID := string(conn)
		if !s.sse.StreamExists(streamID) {
			s.sse.CreateStream(streamID)
		}
		s.sse.Publish(streamID, &sse.Event{Data: payload})
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(payload)
}

// handleEvents is the per-connection SSE subscription endpoint; a
// client's connection id doubles as its stream id.
func (s *server) handleEvents(w http.ResponseWriter, r *http.Request) {
	streamID := r.URL.Query().Get("connection")
	if streamID == "" {
		http.Error(w, "missing connection query parameter", http.StatusBadRequest)
		return
	}
	if !s.sse.StreamExists(streamID) {
		s.sse.CreateStream(streamID)
	}
	r.URL.RawQuery = fmt.Sprintf("stream=%s", streamID)
	s.sse.ServeHTTP(w, r)
}

// gzipEncode compresses data and base64-encodes the result so it is
// safe to carry as SSE event text.
func gzipEncode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())
	return []byte(encoded), nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Format == "json" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zcfg.Level = level
	return zcfg.Build()
}

func openStore(cfg config.StorageConfig) (store.Backend, error) {
	switch cfg.Driver {
	case "postgres":
		return pgstore.Open(cfg.DSN)
	default:
		return sqlitestore.Open(cfg.DSN)
	}
}

// connFactory builds an agent.ConnFactory from the LLM config — every
// session gets its own anthropicconn.Conn (or memoryconn.Conn in test
// mode), since agentproto.Connection is not safe to share across
// concurrent Prompt calls from independent turns.
func connFactory(cfg config.LLMConfig, log *zap.Logger) agent.ConnFactory {
	return func(sessionID string) agentproto.Connection {
		if cfg.Provider == "memory" {
			return memoryconn.New(memoryconn.Script{})
		}
		return anthropicconn.New(anthropicconn.Config{
			APIKey:      cfg.AnthropicAPIKey,
			Model:       cfg.AnthropicModel,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Logger:      log.With(zap.String("session", sessionID)),
		})
	}
}
