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
package collab

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentsync/collab/internal/collab/errs"
)

func TestCreateRoomAdminAtReplicaZero(t *testing.T) {
	r := NewRegistry(nil, nil)
	room, err := r.CreateRoom(context.Background(), "room-1", "c1", "alice")
	require.NoError(t, err)

	p := room.Participants["c1"]
	require.NotNil(t, p)
	assert.Equal(t, RoleAdmin, p.Role)
	assert.Equal(t, 0, p.ReplicaID)
}

func TestCreateRoomRejectsDuplicateID(t *testing.T) {
	r := NewRegistry(nil, nil)
	ctx := context.Background()
	_, err := r.CreateRoom(ctx, "room-1", "c1", "alice")
	require.NoError(t, err)

	_, err = r.CreateRoom(ctx, "room-1", "c2", "bob")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.InvalidTransition))
}

// TestReplicaAssignmentIsSmallestUnused is invariant 3: replica ids
// assigned on join are always the smallest non-negative integer not
// already in use, and reused once freed by a leave.
func TestReplicaAssignmentIsSmallestUnused(t *testing.T) {
	r := NewRegistry(nil, nil)
	ctx := context.Background()
	_, err := r.CreateRoom(ctx, "room-1", "c0", "alice")
	require.NoError(t, err)

	room, err := r.JoinRoom(ctx, "room-1", "c1", "bob", RoleReadWrite)
	require.NoError(t, err)
	assert.Equal(t, 1, room.Participants["c1"].ReplicaID)

	room, err = r.JoinRoom(ctx, "room-1", "c2", "carol", RoleReadWrite)
	require.NoError(t, err)
	assert.Equal(t, 2, room.Participants["c2"].ReplicaID)

	require.NoError(t, r.LeaveRoom(ctx, "room-1", "c1"))

	room, err = r.JoinRoom(ctx, "room-1", "c3", "dave", RoleReadWrite)
	require.NoError(t, err)
	assert.Equal(t, 1, room.Participants["c3"].ReplicaID, "replica 1 is reused once freed")
}

func TestJoinRoomRejectsDoubleJoin(t *testing.T) {
	r := NewRegistry(nil, nil)
	ctx := context.Background()
	_, err := r.CreateRoom(ctx, "room-1", "c0", "alice")
	require.NoError(t, err)

	_, err = r.JoinRoom(ctx, "room-1", "c0", "alice", RoleReadWrite)
	require.Error(t, err)
}

// TestLeaveRoomIsIdempotent is invariant 8: leaving a room one is not a
// participant of succeeds silently.
func TestLeaveRoomIsIdempotent(t *testing.T) {
	r := NewRegistry(nil, nil)
	ctx := context.Background()
	_, err := r.CreateRoom(ctx, "room-1", "c0", "alice")
	require.NoError(t, err)

	require.NoError(t, r.LeaveRoom(ctx, "room-1", "c0"))
	require.NoError(t, r.LeaveRoom(ctx, "room-1", "c0"), "leaving twice is still a success")
}

// TestLeaveRoomDeletesEmptyUnboundRoom covers the room-teardown half of
// LeaveRoom: an empty room with no channel binding is removed entirely.
func TestLeaveRoomDeletesEmptyUnboundRoom(t *testing.T) {
	r := NewRegistry(nil, nil)
	ctx := context.Background()
	_, err := r.CreateRoom(ctx, "room-1", "c0", "alice")
	require.NoError(t, err)

	require.NoError(t, r.LeaveRoom(ctx, "room-1", "c0"))

	_, ok := r.Room("room-1")
	assert.False(t, ok, "an empty, unbound room is deleted on last leave")
}

// TestLeaveRoomKeepsChannelBoundRoomEvenWhenEmpty ensures a room bound to
// a persistent channel survives its last participant leaving.
func TestLeaveRoomKeepsChannelBoundRoomEvenWhenEmpty(t *testing.T) {
	r := NewRegistry(nil, nil)
	ctx := context.Background()
	_, err := r.CreateRoom(ctx, "room-1", "c0", "alice")
	require.NoError(t, err)
	room, _ := r.Room("room-1")
	room.ChannelID = "chan-1"

	require.NoError(t, r.LeaveRoom(ctx, "room-1", "c0"))

	_, ok := r.Room("room-1")
	assert.True(t, ok, "a channel-bound room survives emptying")
}

// TestLeaveRoomCancelsOwnPendingInvites and drops hosted projects cover
// the rest of LeaveRoom's cleanup obligations.
func TestLeaveRoomCancelsOwnPendingInvites(t *testing.T) {
	r := NewRegistry(nil, nil)
	ctx := context.Background()
	_, err := r.CreateRoom(ctx, "room-1", "c0", "alice")
	require.NoError(t, err)
	_, err = r.JoinRoom(ctx, "room-1", "c1", "bob", RoleReadWrite)
	require.NoError(t, err)

	room, _ := r.Room("room-1")
	room.Pending = []PendingInvitation{
		{ID: "inv-1", FromUserID: "alice", ToUserID: "carol"},
		{ID: "inv-2", FromUserID: "bob", ToUserID: "dave"},
	}

	require.NoError(t, r.LeaveRoom(ctx, "room-1", "c0"))

	room, _ = r.Room("room-1")
	require.Len(t, room.Pending, 1)
	assert.Equal(t, "inv-2", room.Pending[0].ID, "only alice's invite is cancelled")
}

func TestLeaveRoomDropsProjectsHostedByTheLeavingConnection(t *testing.T) {
	r := NewRegistry(nil, nil)
	ctx := context.Background()
	_, err := r.CreateRoom(ctx, "room-1", "c0", "alice")
	require.NoError(t, err)

	proj := r.CreateProject(ctx, "proj-1", "c0", "alice")
	_, err = r.ShareProject(ctx, "room-1", "c0", proj.ID)
	require.NoError(t, err)

	require.NoError(t, r.LeaveRoom(ctx, "room-1", "c0"))

	_, ok := r.Project("proj-1")
	assert.False(t, ok, "a project hosted by the leaving connection is dropped")
}

func TestLeaveRoomRemovesFollowerLinksInvolvingTheConnection(t *testing.T) {
	r := NewRegistry(nil, nil)
	ctx := context.Background()
	_, err := r.CreateRoom(ctx, "room-1", "c0", "alice")
	require.NoError(t, err)
	_, err = r.JoinRoom(ctx, "room-1", "c1", "bob", RoleReadWrite)
	require.NoError(t, err)
	_, err = r.JoinRoom(ctx, "room-1", "c2", "carol", RoleReadWrite)
	require.NoError(t, err)

	require.NoError(t, r.Follow(ctx, "room-1", "proj-1", "c1", "c2"))

	require.NoError(t, r.LeaveRoom(ctx, "room-1", "c1"))

	room, _ := r.Room("room-1")
	assert.Empty(t, room.Followers)
}

// TestUpdateWorktreeRejectsRegression is invariant 7: a worktree's
// scan_id never moves backward.
func TestUpdateWorktreeRejectsRegression(t *testing.T) {
	r := NewRegistry(nil, nil)
	ctx := context.Background()
	proj := r.CreateProject(ctx, "proj-1", "c0", "alice")

	require.NoError(t, r.UpdateWorktree(ctx, proj.ID, "wt-1", 5, true, nil, nil))
	err := r.UpdateWorktree(ctx, proj.ID, "wt-1", 3, true, nil, nil)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.RangeError))

	require.NoError(t, r.UpdateWorktree(ctx, proj.ID, "wt-1", 5, true, nil, nil), "same scan_id is allowed")
}

func TestUpdateWorktreeTracksCompletedScanIDOnlyOnLastUpdate(t *testing.T) {
	r := NewRegistry(nil, nil)
	ctx := context.Background()
	proj := r.CreateProject(ctx, "proj-1", "c0", "alice")

	require.NoError(t, r.UpdateWorktree(ctx, proj.ID, "wt-1", 1, false, []WorktreeEntry{{ID: "e1", Path: "a.go"}}, nil))
	wt := proj.Worktrees["wt-1"]
	assert.Equal(t, int64(0), wt.CompletedScanID)

	require.NoError(t, r.UpdateWorktree(ctx, proj.ID, "wt-1", 2, true, nil, nil))
	assert.Equal(t, int64(2), wt.CompletedScanID)
}

// TestReconnectDelta is scenario S7: rejoining reports only entries
// touched strictly after the claimed scan_id, tombstones by id only.
func TestReconnectDelta(t *testing.T) {
	r := NewRegistry(nil, nil)
	ctx := context.Background()
	_, err := r.CreateRoom(ctx, "room-1", "c0", "alice")
	require.NoError(t, err)

	proj := r.CreateProject(ctx, "proj-1", "c0", "alice")
	_, err = r.ShareProject(ctx, "room-1", "c0", proj.ID)
	require.NoError(t, err)

	require.NoError(t, r.UpdateWorktree(ctx, proj.ID, "wt-1", 1, false, []WorktreeEntry{{ID: "e1", Path: "a.go"}}, nil))
	require.NoError(t, r.UpdateWorktree(ctx, proj.ID, "wt-1", 2, false, []WorktreeEntry{{ID: "e2", Path: "b.go"}}, nil))
	require.NoError(t, r.UpdateWorktree(ctx, proj.ID, "wt-1", 3, true, nil, []string{"e1"}))

	result, err := r.RejoinRoom(ctx, "room-1", "c0", "alice", map[string]int64{"wt-1": 1})
	require.NoError(t, err)
	require.Len(t, result.RejoinedProjects, 1)

	delta := result.RejoinedProjects[0]
	require.Len(t, delta.Worktrees, 1)
	wd := delta.Worktrees[0]
	assert.Equal(t, []string{"e1"}, wd.RemovedEntries)
	require.Len(t, wd.UpdatedEntries, 1)
	assert.Equal(t, "e2", wd.UpdatedEntries[0].ID)
}

func TestRejoinRoomRejectsNonParticipant(t *testing.T) {
	r := NewRegistry(nil, nil)
	ctx := context.Background()
	_, err := r.CreateRoom(ctx, "room-1", "c0", "alice")
	require.NoError(t, err)

	_, err = r.RejoinRoom(ctx, "room-1", "c-stranger", "mallory", nil)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.NotParticipant))
}

func TestCheckAccessRejectsBannedRole(t *testing.T) {
	r := NewRegistry(nil, nil)
	ctx := context.Background()
	_, err := r.CreateRoom(ctx, "room-1", "c0", "alice")
	require.NoError(t, err)
	_, err = r.JoinRoom(ctx, "room-1", "c1", "bob", RoleBanned)
	require.NoError(t, err)

	proj := r.CreateProject(ctx, "proj-1", "c0", "alice")
	_, err = r.ShareProject(ctx, "room-1", "c0", proj.ID)
	require.NoError(t, err)

	_, err = r.JoinProject(ctx, "proj-1", "c1", "bob")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.NotAuthorized))
}

func TestCheckAccessRejectsReadOnlyShareAttempt(t *testing.T) {
	r := NewRegistry(nil, nil)
	ctx := context.Background()
	_, err := r.CreateRoom(ctx, "room-1", "c0", "alice")
	require.NoError(t, err)
	_, err = r.JoinRoom(ctx, "room-1", "c1", "bob", RoleReadOnly)
	require.NoError(t, err)

	proj := r.CreateProject(ctx, "proj-1", "c1", "bob")
	_, err = r.ShareProject(ctx, "room-1", "c1", proj.ID)
	require.Error(t, err, "a read-only participant cannot share a project")
	assert.True(t, errs.Is(err, errs.NotAuthorized))
}

func TestUnshareProjectMarksParticipantsUnshared(t *testing.T) {
	r := NewRegistry(nil, nil)
	ctx := context.Background()
	_, err := r.CreateRoom(ctx, "room-1", "c0", "alice")
	require.NoError(t, err)

	proj := r.CreateProject(ctx, "proj-1", "c0", "alice")
	_, err = r.ShareProject(ctx, "room-1", "c0", proj.ID)
	require.NoError(t, err)

	require.NoError(t, r.UnshareProject(ctx, "room-1", proj.ID))

	room, _ := r.Room("room-1")
	assert.Equal(t, LocationUnshared, room.Participants["c0"].Location.Kind)
	assert.Empty(t, proj.RoomID)
}

func TestFollowRejectsDuplicateLink(t *testing.T) {
	r := NewRegistry(nil, nil)
	ctx := context.Background()
	_, err := r.CreateRoom(ctx, "room-1", "c0", "alice")
	require.NoError(t, err)
	_, err = r.JoinRoom(ctx, "room-1", "c1", "bob", RoleReadWrite)
	require.NoError(t, err)

	require.NoError(t, r.Follow(ctx, "room-1", "proj-1", "c0", "c1"))
	err = r.Follow(ctx, "room-1", "proj-1", "c0", "c1")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.InvalidTransition))
}

func TestUnfollowRemovesOnlyTheMatchingPair(t *testing.T) {
	r := NewRegistry(nil, nil)
	ctx := context.Background()
	_, err := r.CreateRoom(ctx, "room-1", "c0", "alice")
	require.NoError(t, err)
	_, err = r.JoinRoom(ctx, "room-1", "c1", "bob", RoleReadWrite)
	require.NoError(t, err)
	_, err = r.JoinRoom(ctx, "room-1", "c2", "carol", RoleReadWrite)
	require.NoError(t, err)

	require.NoError(t, r.Follow(ctx, "room-1", "proj-1", "c0", "c1"))
	require.NoError(t, r.Follow(ctx, "room-1", "proj-1", "c0", "c2"))

	require.NoError(t, r.Unfollow(ctx, "room-1", "c0", "c1"))

	room, _ := r.Room("room-1")
	require.Len(t, room.Followers, 1)
	assert.Equal(t, ConnectionID("c2"), room.Followers[0].FollowerConnection)
}

func TestSetRoomParticipantRoleRequiresCLA(t *testing.T) {
	r := NewRegistry(nil, nil)
	ctx := context.Background()
	_, err := r.CreateRoom(ctx, "room-1", "c0", "alice")
	require.NoError(t, err)
	_, err = r.JoinRoom(ctx, "room-1", "c1", "bob", RoleReadOnly)
	require.NoError(t, err)

	err = r.SetRoomParticipantRole(ctx, "room-1", "c1", RoleReadWrite, false)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.NotAuthorized))

	require.NoError(t, r.SetRoomParticipantRole(ctx, "room-1", "c1", RoleReadWrite, true))
	room, _ := r.Room("room-1")
	assert.Equal(t, RoleReadWrite, room.Participants["c1"].Role)
}

// TestEvictConnectionLeavesEveryRoomWithoutDeadlocking guards against the
// RWMutex re-entrancy hazard: EvictConnection iterates rooms while
// LeaveRoom may delete the very room being visited.
func TestEvictConnectionLeavesEveryRoomWithoutDeadlocking(t *testing.T) {
	r := NewRegistry(nil, nil)
	ctx := context.Background()
	_, err := r.CreateRoom(ctx, "room-1", "c0", "alice")
	require.NoError(t, err)
	_, err = r.CreateRoom(ctx, "room-2", "c0", "alice")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		r.EvictConnection(ctx, "c0")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("EvictConnection did not return — likely deadlocked")
	}

	_, ok1 := r.Room("room-1")
	_, ok2 := r.Room("room-2")
	assert.False(t, ok1)
	assert.False(t, ok2)
}
