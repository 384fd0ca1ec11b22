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

// Package store defines the Collaboration Session Registry's persistence
// boundary, mirrored on the teacher's pkg/storage/backend.StorageBackend
// composite interface: one Backend implementation per storage driver
// (sqlitestore for the embedded default, pgstore for multi-process
// deployments), selected by internal/config's storage.driver setting.
package store

import "context"

// Participant is the durable projection of collab.Participant.
type Participant struct {
	Connection string
	UserID     string
	Role       string
	ReplicaID  int
}

// Room is the durable projection of collab.Room persisted across process
// restarts, so a room survives a collabd redeploy.
type Room struct {
	ID           string
	ChannelID    string
	Participants []Participant
}

// Backend is the storage boundary every CSR mutation that must survive a
// restart goes through. Registry treats it as optional: a nil Backend
// means rooms live only in memory, which is sufficient for tests and for
// the memoryconn-backed development mode.
type Backend interface {
	// PutRoom upserts a room's durable snapshot.
	PutRoom(ctx context.Context, room Room) error

	// GetRoom loads a room snapshot, returning found=false if absent.
	GetRoom(ctx context.Context, roomID string) (room Room, found bool, err error)

	// DeleteRoom removes a room's durable snapshot, e.g. once its last
	// participant leaves and the stale sweep reaps it.
	DeleteRoom(ctx context.Context, roomID string) error

	// Migrate applies schema migrations up to the latest version.
	Migrate(ctx context.Context) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases underlying connections.
	Close() error
}
