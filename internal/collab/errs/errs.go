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

// Package errs is the module's closed error-kind vocabulary (spec.md §7),
// mapped to grpc/codes at the transport edge. Kinds split across the two
// subsystems that can fail: the Collaboration Session Registry returns
// NotAuthorized/NotParticipant/NoSuchEntity/InvalidTransition/RangeError,
// the Agent Session Controller returns RangeError/StreamFailure/
// ProtocolUnsupported/AgentExited.
package errs

import "fmt"

// Kind is one of the abstract error kinds spec.md §7 names.
type Kind int

const (
	NotAuthorized Kind = iota
	NotParticipant
	NoSuchEntity
	InvalidTransition
	RangeError
	StreamFailure
	ProtocolUnsupported
	AgentExited
)

func (k Kind) String() string {
	switch k {
	case NotAuthorized:
		return "not_authorized"
	case NotParticipant:
		return "not_participant"
	case NoSuchEntity:
		return "no_such_entity"
	case InvalidTransition:
		return "invalid_transition"
	case RangeError:
		return "range_error"
	case StreamFailure:
		return "stream_failure"
	case ProtocolUnsupported:
		return "protocol_unsupported"
	case AgentExited:
		return "agent_exited"
	default:
		return "unknown"
	}
}

// Error is a typed CSR failure: a Kind plus context. Every mutating
// Registry operation that can fail returns one of these (spec.md §7:
// "every mutation returns a typed error").
type Error struct {
	Kind    Kind
	Message string
	Code    int // meaningful only for AgentExited
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// New builds an *Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Exited builds an AgentExited error carrying the process exit code.
func Exited(code int) *Error {
	return &Error{Kind: AgentExited, Code: code, Message: fmt.Sprintf("agent exited with code %d", code)}
}

// Is reports whether err is an *Error of the given kind, for
// errors.Is-style checks at call sites.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
