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

// Package collab is the Collaboration Session Registry (spec.md §4.3):
// the authoritative server-side state for rooms, participants, shared
// projects, worktrees, and followers, serialized per-room through
// internal/collab/keymutex.
package collab

// Role is a participant's authorization level within a room or project.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleReadWrite Role = "read_write"
	RoleReadOnly  Role = "read_only"
	RoleBanned    Role = "banned"
)

// CanEditProjects reports whether the role may mutate shared projects.
func (r Role) CanEditProjects() bool { return r == RoleAdmin || r == RoleReadWrite }

// CanReadProjects reports whether the role may read shared projects.
func (r Role) CanReadProjects() bool {
	return r == RoleAdmin || r == RoleReadWrite || r == RoleReadOnly
}

// RequiresCLA reports whether assuming this role requires a signed
// contributor license agreement (spec.md §4.3 "Role change").
func (r Role) RequiresCLA() bool { return r == RoleReadWrite || r == RoleAdmin }

// ConnectionID identifies one live transport connection.
type ConnectionID string

// Location is a participant's current place in a room: shared into a
// project, unshared from one, or outside any project.
type LocationKind int

const (
	LocationExternal LocationKind = iota
	LocationShared
	LocationUnshared
)

// ParticipantLocation is the (kind, project_id?) pair spec.md §4.3 names.
type ParticipantLocation struct {
	Kind      LocationKind
	ProjectID string
}

// Participant is one room member.
type Participant struct {
	Connection     ConnectionID
	UserID         string
	Role           Role
	ReplicaID      int
	Location       ParticipantLocation
	ServerID       string // identifies which server process holds this connection, for stale cleanup
}

// PendingInvitation is an outstanding Call/invite a participant issued.
type PendingInvitation struct {
	ID           string
	FromUserID   string
	ToUserID     string
	ToConnection ConnectionID
}

// FollowerLink is the `{room_id, project_id, leader_connection,
// follower_connection}` row of spec.md's Collaboration state.
type FollowerLink struct {
	RoomID             string
	ProjectID          string
	LeaderConnection   ConnectionID
	FollowerConnection ConnectionID
}

// Room is the Room entity of spec.md §3's Collaboration state.
type Room struct {
	ID           string
	ChannelID    string // non-empty if this room is bound to a persistent channel
	Participants map[ConnectionID]*Participant
	Pending      []PendingInvitation
	Followers    []FollowerLink
}

func newRoom(id string) *Room {
	return &Room{ID: id, Participants: make(map[ConnectionID]*Participant)}
}

// smallestUnusedReplicaID returns the smallest non-negative integer not
// currently assigned to a participant in the room (spec.md §3: "the
// minimum non-used non-negative integer is chosen on join").
func (r *Room) smallestUnusedReplicaID() int {
	used := make(map[int]bool, len(r.Participants))
	for _, p := range r.Participants {
		used[p.ReplicaID] = true
	}
	for i := 0; ; i++ {
		if !used[i] {
			return i
		}
	}
}

// WorktreeEntry is one file/directory entry of a Worktree's scan.
type WorktreeEntry struct {
	ID        string
	Path      string
	IsDir     bool
	ScanID    int64
	IsDeleted bool
}

// RepositoryEntry mirrors WorktreeEntry's upsert/tombstone shape for
// repository-level metadata (spec.md §4.3 "Worktree updates").
type RepositoryEntry struct {
	WorkDirectoryID string
	Branch          string
	ScanID          int64
	IsDeleted       bool
}

// Worktree is the Worktree entity of spec.md §3's Collaboration state.
type Worktree struct {
	ID                string
	AbsPath           string
	RootName          string
	Visible           bool
	ScanID            int64
	CompletedScanID   int64
	Entries           map[string]*WorktreeEntry    // keyed by entry id
	Repositories      map[string]*RepositoryEntry  // keyed by work_directory_id
	DiagnosticSummary map[string]string            // path -> summary, no incremental state (spec.md §4.3)
	SettingsFiles     map[string]string            // path -> content, no incremental state
	LanguageServers   []string
}

func newWorktree(id, absPath, rootName string) *Worktree {
	return &Worktree{
		ID:                id,
		AbsPath:           absPath,
		RootName:          rootName,
		Visible:           true,
		Entries:           make(map[string]*WorktreeEntry),
		Repositories:      make(map[string]*RepositoryEntry),
		DiagnosticSummary: make(map[string]string),
		SettingsFiles:     make(map[string]string),
	}
}

// Collaborator is one project-level participant with a replica id
// independent of the room's replica ids (spec.md §4.3 "Replica
// assignment": "Replica 0 is reserved for the host").
type Collaborator struct {
	Connection ConnectionID
	UserID     string
	ReplicaID  int
	IsHost     bool
}

// Project is the Project entity of spec.md §3's Collaboration state.
type Project struct {
	ID             string
	HostConnection ConnectionID
	HostUserID     string
	RoomID         string // empty when unshared
	Collaborators  map[ConnectionID]*Collaborator
	Worktrees      map[string]*Worktree
	LanguageServers []string

	// DevServerOwner, when non-empty, is the principal id that owns this
	// project when it is backed by a dev server rather than a room
	// participant (spec.md §4.3 "Access check" point 1).
	DevServerOwner string
}

func newProject(id string, host ConnectionID, hostUserID string) *Project {
	return &Project{
		ID:             id,
		HostConnection: host,
		HostUserID:     hostUserID,
		Collaborators:  make(map[ConnectionID]*Collaborator),
		Worktrees:      make(map[string]*Worktree),
	}
}

// smallestUnusedReplicaID mirrors Room's, but replica 0 is reserved for
// the host and never handed to join_project (spec.md §4.3).
func (p *Project) smallestUnusedReplicaID() int {
	used := map[int]bool{0: true}
	for _, c := range p.Collaborators {
		used[c.ReplicaID] = true
	}
	for i := 1; ; i++ {
		if !used[i] {
			return i
		}
	}
}
