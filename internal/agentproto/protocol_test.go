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
package agentproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoalesceTextBlockReturnsItsText(t *testing.T) {
	b := ContentBlock{Kind: BlockText, Text: "hello"}
	assert.Equal(t, "hello", b.Coalesce())
}

func TestCoalesceFileResourceLinkRendersMention(t *testing.T) {
	b := ContentBlock{Kind: BlockResourceLink, URI: "file:///src/main.go"}
	assert.Equal(t, "[@main.go](@file:/src/main.go)", b.Coalesce())
}

func TestCoalesceNonFileResourceLinkIsEmpty(t *testing.T) {
	b := ContentBlock{Kind: BlockResourceLink, URI: "https://example.com/a"}
	assert.Equal(t, "", b.Coalesce())
}

func TestCoalesceImageAndAudioBlocksAreEmpty(t *testing.T) {
	assert.Equal(t, "", ContentBlock{Kind: BlockImage}.Coalesce())
	assert.Equal(t, "", ContentBlock{Kind: BlockAudio}.Coalesce())
	assert.Equal(t, "", ContentBlock{Kind: BlockResource}.Coalesce())
}
