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
package sqlitestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentsync/collab/internal/collab/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestPutGetRoomRoundTrips(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	room := store.Room{
		ID:        "room-1",
		ChannelID: "chan-1",
		Participants: []store.Participant{
			{Connection: "c1", UserID: "u1", Role: "admin", ReplicaID: 0},
			{Connection: "c2", UserID: "u2", Role: "read_write", ReplicaID: 1},
		},
	}
	require.NoError(t, s.PutRoom(ctx, room))

	got, ok, err := s.GetRoom(ctx, "room-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, room, got)
}

func TestGetRoomMissingReturnsFalse(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.GetRoom(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPutRoomUpsertsOnConflict(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutRoom(ctx, store.Room{ID: "room-1", ChannelID: "chan-1"}))
	require.NoError(t, s.PutRoom(ctx, store.Room{ID: "room-1", ChannelID: "chan-2", Participants: []store.Participant{{Connection: "c1", UserID: "u1"}}}))

	got, ok, err := s.GetRoom(ctx, "room-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "chan-2", got.ChannelID)
	assert.Equal(t, []store.Participant{{Connection: "c1", UserID: "u1"}}, got.Participants)
}

func TestDeleteRoomRemovesIt(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutRoom(ctx, store.Room{ID: "room-1"}))
	require.NoError(t, s.DeleteRoom(ctx, "room-1"))

	_, ok, err := s.GetRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPing(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}
