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
	"time"

	"go.uber.org/zap"

	"github.com/agentsync/collab/internal/collab/errs"
	"github.com/agentsync/collab/internal/collab/keymutex"
	"github.com/agentsync/collab/internal/collab/store"
	"github.com/agentsync/collab/internal/csync"
	applog "github.com/agentsync/collab/internal/log"
)

// Registry is the Collaboration Session Registry (spec.md §4.3): the
// authoritative in-memory state for every room and shared project, with
// mutations serialized per-room through keymutex so that operations
// targeting disjoint rooms proceed in parallel.
type Registry struct {
	log   *zap.Logger
	store store.Backend

	rooms    *csync.Map[string, *Room]
	projects *csync.Map[string, *Project]
	locks    *keymutex.Map[string]

	lastSeen *csync.Map[ConnectionID, time.Time]
}

// NewRegistry creates an empty Registry backed by the given persistence
// store.Backend (see internal/collab/store).
func NewRegistry(log *zap.Logger, backend store.Backend) *Registry {
	if log == nil {
		log = applog.Logger()
	}
	return &Registry{
		log:      log,
		store:    backend,
		rooms:    csync.NewMap[string, *Room](),
		projects: csync.NewMap[string, *Project](),
		locks:    keymutex.New[string](),
		lastSeen: csync.NewMap[ConnectionID, time.Time](),
	}
}

// Tx is the mutation handle passed to a per-room transaction.
type Tx struct {
	room *Room
}

// Transact runs fn while holding roomID's lock, loading the room first.
// Fails with NoSuchEntity if the room doesn't exist. Every CSR mutation
// goes through this (spec.md §4.3's transactional envelope).
func (r *Registry) Transact(roomID string, fn func(tx *Tx) error) error {
	return r.locks.With(roomID, func() error {
		room, ok := r.rooms.Get(roomID)
		if !ok {
			return errs.New(errs.NoSuchEntity, "room %s", roomID)
		}
		return fn(&Tx{room: room})
	})
}

// CreateRoom creates a new room with the creator as its sole admin
// participant, replica 0.
func (r *Registry) CreateRoom(ctx context.Context, roomID string, creator ConnectionID, userID string) (*Room, error) {
	if _, exists := r.rooms.Get(roomID); exists {
		return nil, errs.New(errs.InvalidTransition, "room %s already exists", roomID)
	}
	room := newRoom(roomID)
	room.Participants[creator] = &Participant{
		Connection: creator,
		UserID:     userID,
		Role:       RoleAdmin,
		ReplicaID:  0,
	}
	r.rooms.Set(roomID, room)
	r.touch(creator)
	if r.store != nil {
		if err := r.store.PutRoom(ctx, toStoreRoom(room)); err != nil {
			r.log.Warn("persist room", zap.String("room", roomID), zap.Error(err))
		}
	}
	return room, nil
}

// JoinRoom adds a participant to an existing room at the smallest unused
// replica id (spec.md §3).
func (r *Registry) JoinRoom(ctx context.Context, roomID string, conn ConnectionID, userID string, role Role) (*Room, error) {
	var out *Room
	err := r.Transact(roomID, func(tx *Tx) error {
		if _, exists := tx.room.Participants[conn]; exists {
			return errs.New(errs.InvalidTransition, "connection already joined")
		}
		tx.room.Participants[conn] = &Participant{
			Connection: conn,
			UserID:     userID,
			Role:       role,
			ReplicaID:  tx.room.smallestUnusedReplicaID(),
		}
		out = tx.room
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.touch(conn)
	r.persistRoomAsync(ctx, out)
	return out, nil
}

// LeaveRoom removes a participant: it cancels their outstanding outgoing
// invitations, drops every follower link that referenced them, drops any
// project they host, and deletes the room itself if it is now empty and
// not bound to a channel (spec.md §4.3 "Leave"). Leaving a room one is
// not in is a no-op success (spec.md §8 invariant: "leaving is
// idempotent").
func (r *Registry) LeaveRoom(ctx context.Context, roomID string, conn ConnectionID) error {
	var snapshot *Room
	var deleted bool
	err := r.Transact(roomID, func(tx *Tx) error {
		p, existed := tx.room.Participants[conn]
		if !existed {
			snapshot = tx.room
			return nil
		}
		delete(tx.room.Participants, conn)
		tx.room.Followers = removeFollowerLinksFor(tx.room.Followers, conn)
		tx.room.Pending = removePendingFrom(tx.room.Pending, p.UserID)
		r.dropHostedProjects(roomID, conn)
		if len(tx.room.Participants) == 0 && tx.room.ChannelID == "" {
			deleted = true
		}
		snapshot = tx.room
		return nil
	})
	if err != nil {
		if errs.Is(err, errs.NoSuchEntity) {
			return nil
		}
		return err
	}
	if deleted {
		r.rooms.Delete(roomID)
		if r.store != nil {
			if err := r.store.DeleteRoom(ctx, roomID); err != nil {
				r.log.Warn("delete room", zap.String("room", roomID), zap.Error(err))
			}
		}
		return nil
	}
	r.persistRoomAsync(ctx, snapshot)
	return nil
}

// removePendingFrom drops every pending invitation the given user
// initiated (spec.md §4.3: "cancel any pending outgoing calls initiated
// by that user").
func removePendingFrom(pending []PendingInvitation, userID string) []PendingInvitation {
	out := pending[:0]
	for _, inv := range pending {
		if inv.FromUserID == userID {
			continue
		}
		out = append(out, inv)
	}
	return out
}

// dropHostedProjects removes every project hosted by conn, per spec.md
// §4.3's "Drop any projects whose host connection is the leaving one."
func (r *Registry) dropHostedProjects(roomID string, conn ConnectionID) {
	var hosted []string
	r.projects.Seq(func(id string, proj *Project) bool {
		if proj.RoomID == roomID && proj.HostConnection == conn {
			hosted = append(hosted, id)
		}
		return true
	})
	for _, id := range hosted {
		r.projects.Delete(id)
	}
}

func removeFollowerLinksFor(links []FollowerLink, conn ConnectionID) []FollowerLink {
	out := links[:0]
	for _, l := range links {
		if l.LeaderConnection == conn || l.FollowerConnection == conn {
			continue
		}
		out = append(out, l)
	}
	return out
}

// RejoinResult is the delta a RejoinRoom call returns for each rejoined
// project's worktrees, per spec.md §6's RejoinRoom envelope.
type RejoinResult struct {
	Room             *Room
	RejoinedProjects []ProjectDelta
}

// ProjectDelta is one rejoined project's reconnect delta.
type ProjectDelta struct {
	ProjectID string
	Worktrees []WorktreeDelta
}

// RejoinRoom re-admits a participant after a disconnect, computing the
// Reconnect Reconciler delta (scenario S7) for every worktree of the
// project the participant's location is shared into; a worktree with no
// claimed scan_id is treated as claimed at 0.
func (r *Registry) RejoinRoom(ctx context.Context, roomID string, conn ConnectionID, userID string, claims map[string]int64) (*RejoinResult, error) {
	var result RejoinResult
	err := r.Transact(roomID, func(tx *Tx) error {
		p, existed := tx.room.Participants[conn]
		if !existed {
			return errs.New(errs.NotParticipant, "connection %s is not a participant of room %s", conn, roomID)
		}
		result.Room = tx.room
		if p.Location.Kind == LocationShared {
			proj, ok := r.projects.Get(p.Location.ProjectID)
			if ok {
				result.RejoinedProjects = append(result.RejoinedProjects, r.reconnectDelta(proj, claims))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.touch(conn)
	return &result, nil
}

// ShareProject attaches a project to a room, marking the sharer's
// location as shared into it.
func (r *Registry) ShareProject(ctx context.Context, roomID string, sharer ConnectionID, projectID string) (*Project, error) {
	proj, ok := r.projects.Get(projectID)
	if !ok {
		return nil, errs.New(errs.NoSuchEntity, "project %s", projectID)
	}
	err := r.Transact(roomID, func(tx *Tx) error {
		p, ok := tx.room.Participants[sharer]
		if !ok {
			return errs.New(errs.NotParticipant, "connection %s is not a participant of room %s", sharer, roomID)
		}
		if !p.Role.CanEditProjects() {
			return errs.New(errs.NotAuthorized, "role %s cannot share projects", p.Role)
		}
		proj.RoomID = roomID
		p.Location = ParticipantLocation{Kind: LocationShared, ProjectID: projectID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return proj, nil
}

// UnshareProject detaches a project from its room.
func (r *Registry) UnshareProject(ctx context.Context, roomID string, projectID string) error {
	proj, ok := r.projects.Get(projectID)
	if !ok {
		return errs.New(errs.NoSuchEntity, "project %s", projectID)
	}
	return r.Transact(roomID, func(tx *Tx) error {
		proj.RoomID = ""
		for _, p := range tx.room.Participants {
			if p.Location.Kind == LocationShared && p.Location.ProjectID == projectID {
				p.Location = ParticipantLocation{Kind: LocationUnshared, ProjectID: projectID}
			}
		}
		return nil
	})
}

// CreateProject registers a new, not-yet-shared project hosted by conn.
func (r *Registry) CreateProject(ctx context.Context, projectID string, host ConnectionID, hostUserID string) *Project {
	proj := newProject(projectID, host, hostUserID)
	proj.Collaborators[host] = &Collaborator{Connection: host, UserID: hostUserID, ReplicaID: 0, IsHost: true}
	r.projects.Set(projectID, proj)
	return proj
}

// JoinProject admits a collaborator at the smallest replica id above 0
// (spec.md §4.3 "Replica assignment"). Runs under the project's own
// transaction boundary (projectKey), since an unshared project has no
// RoomID to transact against (spec.md §4.3/§5: every mutation of
// collaboration state is serialized against concurrent mutations of the
// same entity).
func (r *Registry) JoinProject(ctx context.Context, projectID string, conn ConnectionID, userID string) (*Project, error) {
	var out *Project
	err := r.locks.With(projectKey(projectID), func() error {
		proj, ok := r.projects.Get(projectID)
		if !ok {
			return errs.New(errs.NoSuchEntity, "project %s", projectID)
		}
		if err := r.checkAccess(proj, conn); err != nil {
			return err
		}
		proj.Collaborators[conn] = &Collaborator{
			Connection: conn,
			UserID:     userID,
			ReplicaID:  proj.smallestUnusedReplicaID(),
		}
		out = proj
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LeaveProject removes a collaborator; idempotent like LeaveRoom.
func (r *Registry) LeaveProject(ctx context.Context, projectID string, conn ConnectionID) error {
	return r.locks.With(projectKey(projectID), func() error {
		proj, ok := r.projects.Get(projectID)
		if !ok {
			return errs.New(errs.NoSuchEntity, "project %s", projectID)
		}
		delete(proj.Collaborators, conn)
		return nil
	})
}

// projectKey namespaces a project id within the same per-key lock map
// Transact uses for room ids, so a project id can never collide with an
// in-flight room transaction's key.
func projectKey(projectID string) string { return "project:" + projectID }

// checkAccess implements spec.md §4.3's 4-step access-check algorithm:
// (1) dev-server-owned projects admit only the owning principal, (2) a
// banned role in the project's room is always rejected, (3) an
// unshared project (no RoomID) admits only its existing collaborators,
// (4) otherwise the room participant's role must allow project reads.
func (r *Registry) checkAccess(proj *Project, conn ConnectionID) error {
	if proj.DevServerOwner != "" {
		if conn != proj.HostConnection {
			return errs.New(errs.NotAuthorized, "project is dev-server-owned")
		}
		return nil
	}
	if proj.RoomID == "" {
		if _, ok := proj.Collaborators[conn]; !ok {
			return errs.New(errs.NotAuthorized, "project %s is not shared", proj.ID)
		}
		return nil
	}
	room, ok := r.rooms.Get(proj.RoomID)
	if !ok {
		return errs.New(errs.NoSuchEntity, "room %s", proj.RoomID)
	}
	p, ok := room.Participants[conn]
	if !ok {
		return errs.New(errs.NotParticipant, "connection is not a participant of room %s", proj.RoomID)
	}
	if p.Role == RoleBanned {
		return errs.New(errs.NotAuthorized, "connection is banned from room %s", proj.RoomID)
	}
	if !p.Role.CanReadProjects() {
		return errs.New(errs.NotAuthorized, "role %s cannot access projects", p.Role)
	}
	return nil
}

// UpdateWorktree applies an upsert/tombstone batch to one worktree,
// enforcing the scan_id monotonicity invariant (spec.md §8: "a
// worktree's completed_scan_id never decreases").
func (r *Registry) UpdateWorktree(ctx context.Context, projectID, worktreeID string, scanID int64, isLastUpdate bool, updated []WorktreeEntry, removed []string) error {
	return r.locks.With(projectKey(projectID), func() error {
		proj, ok := r.projects.Get(projectID)
		if !ok {
			return errs.New(errs.NoSuchEntity, "project %s", projectID)
		}
		wt, ok := proj.Worktrees[worktreeID]
		if !ok {
			wt = newWorktree(worktreeID, "", "")
			proj.Worktrees[worktreeID] = wt
		}
		if scanID < wt.ScanID {
			return errs.New(errs.RangeError, "scan_id %d is behind current %d", scanID, wt.ScanID)
		}
		wt.ScanID = scanID
		for _, e := range updated {
			e.ScanID = scanID
			entry := e
			wt.Entries[e.ID] = &entry
		}
		for _, id := range removed {
			if entry, ok := wt.Entries[id]; ok {
				entry.IsDeleted = true
				entry.ScanID = scanID
			} else {
				wt.Entries[id] = &WorktreeEntry{ID: id, ScanID: scanID, IsDeleted: true}
			}
		}
		if isLastUpdate {
			wt.CompletedScanID = scanID
		}
		return nil
	})
}

// reconnectDelta computes the updated/removed entry sets between a
// client's claimed scan_id and the worktree's current scan_id (scenario
// S7: entries touched strictly after the claimed scan_id are reported;
// tombstoned entries are reported by id only).
func (r *Registry) reconnectDelta(proj *Project, claims map[string]int64) ProjectDelta {
	delta := ProjectDelta{ProjectID: proj.ID}
	for wtID, wt := range proj.Worktrees {
		claimed, hasClaim := claims[wtID]
		if !hasClaim {
			claimed = 0
		}
		wd := WorktreeDelta{WorktreeID: wtID, ScanID: wt.ScanID}
		for _, entry := range wt.Entries {
			if entry.ScanID <= claimed {
				continue
			}
			if entry.IsDeleted {
				wd.RemovedEntries = append(wd.RemovedEntries, entry.ID)
			} else {
				wd.UpdatedEntries = append(wd.UpdatedEntries, *entry)
			}
		}
		delta.Worktrees = append(delta.Worktrees, wd)
	}
	return delta
}

// WorktreeDelta is one worktree's reconnect delta.
type WorktreeDelta struct {
	WorktreeID     string
	ScanID         int64
	UpdatedEntries []WorktreeEntry
	RemovedEntries []string
}

// Follow establishes a follower link so the follower's view mirrors the
// leader's location.
func (r *Registry) Follow(ctx context.Context, roomID string, projectID string, leader, follower ConnectionID) error {
	return r.Transact(roomID, func(tx *Tx) error {
		for _, l := range tx.room.Followers {
			if l.LeaderConnection == leader && l.FollowerConnection == follower && l.ProjectID == projectID {
				return errs.New(errs.InvalidTransition, "already following")
			}
		}
		tx.room.Followers = append(tx.room.Followers, FollowerLink{
			RoomID: roomID, ProjectID: projectID, LeaderConnection: leader, FollowerConnection: follower,
		})
		return nil
	})
}

// Unfollow removes a follower link.
func (r *Registry) Unfollow(ctx context.Context, roomID string, leader, follower ConnectionID) error {
	return r.Transact(roomID, func(tx *Tx) error {
		tx.room.Followers = removeFollowerLinksForPair(tx.room.Followers, leader, follower)
		return nil
	})
}

func removeFollowerLinksForPair(links []FollowerLink, leader, follower ConnectionID) []FollowerLink {
	out := links[:0]
	for _, l := range links {
		if l.LeaderConnection == leader && l.FollowerConnection == follower {
			continue
		}
		out = append(out, l)
	}
	return out
}

// UpdateParticipantLocation records where a participant currently is.
// Follower links are not changed, even when the participant moves away
// from the project they were shared into.
func (r *Registry) UpdateParticipantLocation(ctx context.Context, roomID string, conn ConnectionID, loc ParticipantLocation) error {
	return r.Transact(roomID, func(tx *Tx) error {
		p, ok := tx.room.Participants[conn]
		if !ok {
			return errs.New(errs.NotParticipant, "connection %s is not a participant of room %s", conn, roomID)
		}
		p.Location = loc
		return nil
	})
}

// SetRoomParticipantRole changes a participant's role. Roles that
// require a CLA (spec.md §4.3) are rejected unless hasCLA is true.
func (r *Registry) SetRoomParticipantRole(ctx context.Context, roomID string, conn ConnectionID, role Role, hasCLA bool) error {
	return r.Transact(roomID, func(tx *Tx) error {
		p, ok := tx.room.Participants[conn]
		if !ok {
			return errs.New(errs.NotParticipant, "connection %s is not a participant of room %s", conn, roomID)
		}
		if role.RequiresCLA() && !hasCLA {
			return errs.New(errs.NotAuthorized, "role %s requires a signed CLA", role)
		}
		p.Role = role
		return nil
	})
}

// touch records the last-seen time for a connection, consulted by the
// stale-cleanup sweep (stalejob.go).
func (r *Registry) touch(conn ConnectionID) {
	r.lastSeen.Set(conn, time.Now())
}

// StaleConnections returns connections not touched since before
// threshold, for the stale-cleanup sweep to evict.
func (r *Registry) StaleConnections(threshold time.Time) []ConnectionID {
	var stale []ConnectionID
	r.lastSeen.Seq(func(conn ConnectionID, seen time.Time) bool {
		if seen.Before(threshold) {
			stale = append(stale, conn)
		}
		return true
	})
	return stale
}

// EvictConnection removes a stale connection from every room it
// participates in. Room ids are snapshotted before LeaveRoom runs since
// LeaveRoom may delete an emptied room out from under rooms.Seq's own
// iteration lock.
func (r *Registry) EvictConnection(ctx context.Context, conn ConnectionID) {
	var roomIDs []string
	r.rooms.Seq(func(roomID string, _ *Room) bool {
		roomIDs = append(roomIDs, roomID)
		return true
	})
	for _, roomID := range roomIDs {
		_ = r.LeaveRoom(ctx, roomID, conn)
	}
	r.lastSeen.Delete(conn)
}

func (r *Registry) persistRoomAsync(ctx context.Context, room *Room) {
	if r.store == nil {
		return
	}
	if err := r.store.PutRoom(ctx, toStoreRoom(room)); err != nil {
		r.log.Warn("persist room", zap.String("room", room.ID), zap.Error(err))
	}
}

func toStoreRoom(room *Room) store.Room {
	sr := store.Room{ID: room.ID, ChannelID: room.ChannelID}
	for _, p := range room.Participants {
		sr.Participants = append(sr.Participants, store.Participant{
			Connection: string(p.Connection),
			UserID:     p.UserID,
			Role:       string(p.Role),
			ReplicaID:  p.ReplicaID,
		})
	}
	return sr
}

// Room looks up a room snapshot by id.
func (r *Registry) Room(roomID string) (*Room, bool) { return r.rooms.Get(roomID) }

// Project looks up a project snapshot by id.
func (r *Registry) Project(projectID string) (*Project, bool) { return r.projects.Get(projectID) }
