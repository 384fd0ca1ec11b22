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
package csync

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapGetSetDelete(t *testing.T) {
	m := NewMap[string, int]()

	_, ok := m.Get("a")
	assert.False(t, ok)

	m.Set("a", 1)
	v, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	m.Delete("a")
	_, ok = m.Get("a")
	assert.False(t, ok)
}

func TestMapSeqVisitsEveryEntry(t *testing.T) {
	m := NewMap[string, int]()
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("c", 3)

	var keys []string
	m.Seq(func(k string, v int) bool {
		keys = append(keys, k)
		return true
	})
	sort.Strings(keys)
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestMapSeqStopsEarlyWhenCallbackReturnsFalse(t *testing.T) {
	m := NewMap[string, int]()
	m.Set("a", 1)
	m.Set("b", 2)

	seen := 0
	m.Seq(func(string, int) bool {
		seen++
		return false
	})
	assert.Equal(t, 1, seen)
}

func TestMapClearRemovesEverything(t *testing.T) {
	m := NewMap[string, int]()
	m.Set("a", 1)
	m.Clear()

	n := 0
	m.Seq(func(string, int) bool { n++; return true })
	assert.Equal(t, 0, n)
}

func TestMapConcurrentAccessDoesNotRace(t *testing.T) {
	m := NewMap[int, int]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Set(i, i*i)
			m.Get(i)
		}(i)
	}
	wg.Wait()
	v, ok := m.Get(7)
	require.True(t, ok)
	assert.Equal(t, 49, v)
}

func TestSliceAppendGetLen(t *testing.T) {
	s := NewSlice[string]()
	s.Append("a")
	s.Append("b")

	assert.Equal(t, 2, s.Len())
	v, ok := s.Get(0)
	require.True(t, ok)
	assert.Equal(t, "a", v)

	_, ok = s.Get(5)
	assert.False(t, ok)
}

func TestSliceSetReplacesContents(t *testing.T) {
	s := NewSlice[int]()
	s.Append(1)
	s.Set([]int{4, 5, 6})
	assert.Equal(t, []int{4, 5, 6}, s.Items())
}

func TestSliceClearEmptiesIt(t *testing.T) {
	s := NewSlice[int]()
	s.Append(1)
	s.Clear()
	assert.Equal(t, 0, s.Len())
}

func TestSliceItemsReturnsACopy(t *testing.T) {
	s := NewSlice[int]()
	s.Append(1)
	items := s.Items()
	items[0] = 99
	v, _ := s.Get(0)
	assert.Equal(t, 1, v, "mutating the returned slice must not affect internal state")
}
