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

// Package pgstore is the multi-process store.Backend (storage.driver =
// "postgres"), for collabd deployments with more than one server process
// sharing one room/project state.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq" // registers the "postgres" driver

	"github.com/agentsync/collab/internal/collab/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id            TEXT PRIMARY KEY,
	channel_id    TEXT NOT NULL DEFAULT '',
	participants  JSONB NOT NULL DEFAULT '[]'
);
`

// Store is a store.Backend over a shared PostgreSQL database, allowing
// several collabd processes to serve the same rooms behind a load
// balancer.
type Store struct {
	db *sql.DB
}

// Open opens a connection pool to the PostgreSQL instance at dsn.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) PutRoom(ctx context.Context, room store.Room) error {
	participants, err := json.Marshal(room.Participants)
	if err != nil {
		return fmt.Errorf("marshal participants: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rooms (id, channel_id, participants) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET channel_id = excluded.channel_id, participants = excluded.participants
	`, room.ID, room.ChannelID, participants)
	return err
}

func (s *Store) GetRoom(ctx context.Context, roomID string) (store.Room, bool, error) {
	var room store.Room
	var participants []byte
	err := s.db.QueryRowContext(ctx, `SELECT id, channel_id, participants FROM rooms WHERE id = $1`, roomID).
		Scan(&room.ID, &room.ChannelID, &participants)
	if err == sql.ErrNoRows {
		return store.Room{}, false, nil
	}
	if err != nil {
		return store.Room{}, false, fmt.Errorf("get room %s: %w", roomID, err)
	}
	if err := json.Unmarshal(participants, &room.Participants); err != nil {
		return store.Room{}, false, fmt.Errorf("unmarshal participants: %w", err)
	}
	return room, true, nil
}

func (s *Store) DeleteRoom(ctx context.Context, roomID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, roomID)
	return err
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

var _ store.Backend = (*Store)(nil)
