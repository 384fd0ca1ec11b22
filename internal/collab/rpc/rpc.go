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

// Package rpc defines the collaboration protocol's wire envelopes
// (spec.md §6) as plain Go request/response structs, and a Dispatch
// function that threads them into internal/collab.Registry. Full
// protobuf/grpc-gateway code generation is out of reach without running
// the Go toolchain (see DESIGN.md); google.golang.org/grpc is kept only
// for its codes/status vocabulary, used here to map internal/collab/errs
// kinds onto standard gRPC status codes at this transport edge.
package rpc

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/agentsync/collab/internal/collab"
	"github.com/agentsync/collab/internal/collab/errs"
)

// Op names one collaboration protocol operation, matching spec.md §6's
// message names exactly.
type Op string

const (
	OpCreateRoom                Op = "CreateRoom"
	OpJoinRoom                  Op = "JoinRoom"
	OpLeaveRoom                 Op = "LeaveRoom"
	OpRejoinRoom                Op = "RejoinRoom"
	OpUpdateParticipantLocation Op = "UpdateParticipantLocation"
	OpSetRoomParticipantRole    Op = "SetRoomParticipantRole"
	OpShareProject              Op = "ShareProject"
	OpUnshareProject            Op = "UnshareProject"
	OpUpdateWorktree            Op = "UpdateWorktree"
	OpJoinProject               Op = "JoinProject"
	OpLeaveProject              Op = "LeaveProject"
	OpFollow                    Op = "Follow"
	OpUnfollow                  Op = "Unfollow"
)

// Envelope is one inbound collaboration protocol call.
type Envelope struct {
	Op             Op
	RoomID         string
	ProjectID      string
	WorktreeID     string
	Connection     collab.ConnectionID
	UserID         string
	Role           collab.Role
	HasCLA         bool
	ScanID         int64
	IsLastUpdate   bool
	UpdatedEntries []collab.WorktreeEntry
	RemovedEntries []string
	Location       collab.ParticipantLocation
	LeaderConn     collab.ConnectionID
	FollowerConn   collab.ConnectionID
	RejoinClaims   map[string]int64
}

// Response is what every Dispatch call returns: the updated room
// snapshot plus the set of connections that must be informed (spec.md
// §6: "every response returns the updated Room snapshot plus a set of
// connection_ids that must be informed").
type Response struct {
	Room    *collab.Room
	Project *collab.Project
	Rejoin  *collab.RejoinResult
}

// Dispatch routes one Envelope to the Registry operation it names and
// returns the response plus the connections to notify.
func Dispatch(ctx context.Context, reg *collab.Registry, env Envelope) (Response, []collab.ConnectionID, error) {
	switch env.Op {
	case OpCreateRoom:
		room, err := reg.CreateRoom(ctx, env.RoomID, env.Connection, env.UserID)
		if err != nil {
			return Response{}, nil, toStatus(err)
		}
		return Response{Room: room}, notifyList(room), nil

	case OpJoinRoom:
		room, err := reg.JoinRoom(ctx, env.RoomID, env.Connection, env.UserID, env.Role)
		if err != nil {
			return Response{}, nil, toStatus(err)
		}
		return Response{Room: room}, notifyList(room), nil

	case OpLeaveRoom:
		if err := reg.LeaveRoom(ctx, env.RoomID, env.Connection); err != nil {
			return Response{}, nil, toStatus(err)
		}
		room, _ := reg.Room(env.RoomID)
		return Response{Room: room}, notifyList(room), nil

	case OpRejoinRoom:
		result, err := reg.RejoinRoom(ctx, env.RoomID, env.Connection, env.UserID, env.RejoinClaims)
		if err != nil {
			return Response{}, nil, toStatus(err)
		}
		return Response{Room: result.Room, Rejoin: result}, notifyList(result.Room), nil

	case OpShareProject:
		proj, err := reg.ShareProject(ctx, env.RoomID, env.Connection, env.ProjectID)
		if err != nil {
			return Response{}, nil, toStatus(err)
		}
		room, _ := reg.Room(env.RoomID)
		return Response{Room: room, Project: proj}, notifyList(room), nil

	case OpUnshareProject:
		if err := reg.UnshareProject(ctx, env.RoomID, env.ProjectID); err != nil {
			return Response{}, nil, toStatus(err)
		}
		room, _ := reg.Room(env.RoomID)
		return Response{Room: room}, notifyList(room), nil

	case OpUpdateWorktree:
		err := reg.UpdateWorktree(ctx, env.ProjectID, env.WorktreeID, env.ScanID, env.IsLastUpdate, env.UpdatedEntries, env.RemovedEntries)
		if err != nil {
			return Response{}, nil, toStatus(err)
		}
		proj, _ := reg.Project(env.ProjectID)
		return Response{Project: proj}, projectNotifyList(proj), nil

	case OpJoinProject:
		proj, err := reg.JoinProject(ctx, env.ProjectID, env.Connection, env.UserID)
		if err != nil {
			return Response{}, nil, toStatus(err)
		}
		return Response{Project: proj}, projectNotifyList(proj), nil

	case OpLeaveProject:
		if err := reg.LeaveProject(ctx, env.ProjectID, env.Connection); err != nil {
			return Response{}, nil, toStatus(err)
		}
		proj, _ := reg.Project(env.ProjectID)
		return Response{Project: proj}, projectNotifyList(proj), nil

	case OpFollow:
		if err := reg.Follow(ctx, env.RoomID, env.ProjectID, env.LeaderConn, env.FollowerConn); err != nil {
			return Response{}, nil, toStatus(err)
		}
		room, _ := reg.Room(env.RoomID)
		return Response{Room: room}, notifyList(room), nil

	case OpUnfollow:
		if err := reg.Unfollow(ctx, env.RoomID, env.LeaderConn, env.FollowerConn); err != nil {
			return Response{}, nil, toStatus(err)
		}
		room, _ := reg.Room(env.RoomID)
		return Response{Room: room}, notifyList(room), nil

	case OpUpdateParticipantLocation:
		if err := reg.UpdateParticipantLocation(ctx, env.RoomID, env.Connection, env.Location); err != nil {
			return Response{}, nil, toStatus(err)
		}
		room, _ := reg.Room(env.RoomID)
		return Response{Room: room}, notifyList(room), nil

	case OpSetRoomParticipantRole:
		if err := reg.SetRoomParticipantRole(ctx, env.RoomID, env.Connection, env.Role, env.HasCLA); err != nil {
			return Response{}, nil, toStatus(err)
		}
		room, _ := reg.Room(env.RoomID)
		return Response{Room: room}, notifyList(room), nil

	default:
		return Response{}, nil, status.Errorf(codes.Unimplemented, "unsupported operation %q", env.Op)
	}
}

func notifyList(room *collab.Room) []collab.ConnectionID {
	if room == nil {
		return nil
	}
	ids := make([]collab.ConnectionID, 0, len(room.Participants))
	for conn := range room.Participants {
		ids = append(ids, conn)
	}
	return ids
}

func projectNotifyList(proj *collab.Project) []collab.ConnectionID {
	if proj == nil {
		return nil
	}
	ids := make([]collab.ConnectionID, 0, len(proj.Collaborators))
	for conn := range proj.Collaborators {
		ids = append(ids, conn)
	}
	return ids
}

// toStatus maps an internal/collab/errs.Kind onto the gRPC status code
// closest to its meaning (spec.md §7's propagation policy).
func toStatus(err error) error {
	e, ok := err.(*errs.Error)
	if !ok {
		return status.Error(codes.Internal, err.Error())
	}
	var code codes.Code
	switch e.Kind {
	case errs.NotAuthorized:
		code = codes.PermissionDenied
	case errs.NotParticipant:
		code = codes.FailedPrecondition
	case errs.NoSuchEntity:
		code = codes.NotFound
	case errs.InvalidTransition:
		code = codes.FailedPrecondition
	case errs.RangeError:
		code = codes.OutOfRange
	case errs.StreamFailure:
		code = codes.Unavailable
	case errs.ProtocolUnsupported:
		code = codes.Unimplemented
	case errs.AgentExited:
		code = codes.Aborted
	default:
		code = codes.Unknown
	}
	return status.Error(code, e.Error())
}
