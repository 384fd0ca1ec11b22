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

// Package sqlitestore is the embedded, single-process store.Backend,
// the default storage driver for collabd (storage.driver = "sqlite").
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/agentsync/collab/internal/collab/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id            TEXT PRIMARY KEY,
	channel_id    TEXT NOT NULL DEFAULT '',
	participants  TEXT NOT NULL DEFAULT '[]'
);
`

// Store is a store.Backend over a single SQLite database file.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if needed) the SQLite database at dsn.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	return &Store{db: db}, nil
}

// Migrate creates the rooms table if it does not already exist.
// Single-mutex-guarded like the teacher's SQLite migrator, since SQLite
// serializes writers anyway and this schema never needs a real version
// ladder.
func (s *Store) Migrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) PutRoom(ctx context.Context, room store.Room) error {
	participants, err := json.Marshal(room.Participants)
	if err != nil {
		return fmt.Errorf("marshal participants: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rooms (id, channel_id, participants) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET channel_id = excluded.channel_id, participants = excluded.participants
	`, room.ID, room.ChannelID, string(participants))
	return err
}

func (s *Store) GetRoom(ctx context.Context, roomID string) (store.Room, bool, error) {
	var room store.Room
	var participants string
	err := s.db.QueryRowContext(ctx, `SELECT id, channel_id, participants FROM rooms WHERE id = ?`, roomID).
		Scan(&room.ID, &room.ChannelID, &participants)
	if err == sql.ErrNoRows {
		return store.Room{}, false, nil
	}
	if err != nil {
		return store.Room{}, false, fmt.Errorf("get room %s: %w", roomID, err)
	}
	if err := json.Unmarshal([]byte(participants), &room.Participants); err != nil {
		return store.Room{}, false, fmt.Errorf("unmarshal participants: %w", err)
	}
	return room, true, nil
}

func (s *Store) DeleteRoom(ctx context.Context, roomID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, roomID)
	return err
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

var _ store.Backend = (*Store)(nil)
