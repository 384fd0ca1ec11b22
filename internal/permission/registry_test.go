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
package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenThenResolveDeliversOutcomeExactlyOnce(t *testing.T) {
	r := NewRegistry()
	sink := r.Open("t1")

	ok := r.Resolve("t1", Selected("allow-once"))
	require.True(t, ok)

	outcome := <-sink
	assert.True(t, outcome.Selected)
	assert.Equal(t, "allow-once", outcome.OptionID)

	// The channel must be closed after resolution, so a second receive
	// doesn't block forever.
	_, stillOpen := <-sink
	assert.False(t, stillOpen)
}

func TestResolveWithNoOpenSinkIsANoOp(t *testing.T) {
	r := NewRegistry()
	ok := r.Resolve("missing", Canceled())
	assert.False(t, ok)
}

func TestResolveRemovesSinkSoSecondResolveIsNoOp(t *testing.T) {
	r := NewRegistry()
	r.Open("t1")

	first := r.Resolve("t1", Selected("allow-once"))
	require.True(t, first)

	second := r.Resolve("t1", Canceled())
	assert.False(t, second, "authorizing an already-authorized call is a no-op")
}

func TestPendingIDsTracksOpenSinks(t *testing.T) {
	r := NewRegistry()
	r.Open("t1")
	r.Open("t2")

	ids := r.PendingIDs()
	assert.ElementsMatch(t, []string{"t1", "t2"}, ids)

	r.Resolve("t1", Canceled())
	assert.ElementsMatch(t, []string{"t2"}, r.PendingIDs())
}
