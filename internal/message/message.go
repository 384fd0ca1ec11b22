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

// Package message provides the content-part value types a thread entry
// accumulates (spec.md §3's AssistantMessage/Chunk).
package message

// ContentPart is a marker interface for content parts.
type ContentPart interface {
	isContentPart()
}

// ContentText represents text content.
type ContentText struct {
	Text string
}

func (ContentText) isContentPart() {}

func (c ContentText) String() string {
	return c.Text
}
