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
package rpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/agentsync/collab/internal/collab"
)

func TestDispatchCreateRoomNotifiesTheCreator(t *testing.T) {
	reg := collab.NewRegistry(nil, nil)
	resp, notify, err := Dispatch(context.Background(), reg, Envelope{
		Op: OpCreateRoom, RoomID: "room-1", Connection: "c0", UserID: "alice",
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Room)
	assert.ElementsMatch(t, []collab.ConnectionID{"c0"}, notify)
}

func TestDispatchJoinRoomNotifiesEveryParticipant(t *testing.T) {
	reg := collab.NewRegistry(nil, nil)
	ctx := context.Background()
	_, _, err := Dispatch(ctx, reg, Envelope{Op: OpCreateRoom, RoomID: "room-1", Connection: "c0", UserID: "alice"})
	require.NoError(t, err)

	resp, notify, err := Dispatch(ctx, reg, Envelope{
		Op: OpJoinRoom, RoomID: "room-1", Connection: "c1", UserID: "bob", Role: collab.RoleReadWrite,
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Room)
	assert.ElementsMatch(t, []collab.ConnectionID{"c0", "c1"}, notify)
}

func TestDispatchUnknownOpReturnsUnimplemented(t *testing.T) {
	reg := collab.NewRegistry(nil, nil)
	_, _, err := Dispatch(context.Background(), reg, Envelope{Op: "NotARealOp"})
	require.Error(t, err)
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}

func TestDispatchMapsRegistryErrorsToStatusCodes(t *testing.T) {
	reg := collab.NewRegistry(nil, nil)
	ctx := context.Background()

	_, _, err := Dispatch(ctx, reg, Envelope{Op: OpJoinRoom, RoomID: "no-such-room", Connection: "c0", UserID: "alice"})
	require.Error(t, err)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestDispatchShareProjectRejectsReadOnlyWithPermissionDenied(t *testing.T) {
	reg := collab.NewRegistry(nil, nil)
	ctx := context.Background()
	_, _, err := Dispatch(ctx, reg, Envelope{Op: OpCreateRoom, RoomID: "room-1", Connection: "c0", UserID: "alice"})
	require.NoError(t, err)
	_, _, err = Dispatch(ctx, reg, Envelope{Op: OpJoinRoom, RoomID: "room-1", Connection: "c1", UserID: "bob", Role: collab.RoleReadOnly})
	require.NoError(t, err)

	proj := reg.CreateProject(ctx, "proj-1", "c1", "bob")

	_, _, err = Dispatch(ctx, reg, Envelope{Op: OpShareProject, RoomID: "room-1", Connection: "c1", ProjectID: proj.ID})
	require.Error(t, err)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestDispatchUpdateWorktreeOutOfRangeOnRegression(t *testing.T) {
	reg := collab.NewRegistry(nil, nil)
	ctx := context.Background()
	proj := reg.CreateProject(ctx, "proj-1", "c0", "alice")

	_, _, err := Dispatch(ctx, reg, Envelope{Op: OpUpdateWorktree, ProjectID: proj.ID, WorktreeID: "wt-1", ScanID: 5, IsLastUpdate: true})
	require.NoError(t, err)

	_, _, err = Dispatch(ctx, reg, Envelope{Op: OpUpdateWorktree, ProjectID: proj.ID, WorktreeID: "wt-1", ScanID: 1, IsLastUpdate: true})
	require.Error(t, err)
	assert.Equal(t, codes.OutOfRange, status.Code(err))
}

func TestDispatchLeaveRoomReturnsNoRoomSnapshotAfterDeletion(t *testing.T) {
	reg := collab.NewRegistry(nil, nil)
	ctx := context.Background()
	_, _, err := Dispatch(ctx, reg, Envelope{Op: OpCreateRoom, RoomID: "room-1", Connection: "c0", UserID: "alice"})
	require.NoError(t, err)

	resp, notify, err := Dispatch(ctx, reg, Envelope{Op: OpLeaveRoom, RoomID: "room-1", Connection: "c0"})
	require.NoError(t, err)
	assert.Nil(t, resp.Room, "the room was torn down, so no snapshot remains to notify with")
	assert.Empty(t, notify)
}
