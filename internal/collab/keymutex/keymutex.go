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

// Package keymutex provides one lazily-created mutex per key — the
// building block for the Collaboration Session Registry's per-room
// transaction boundary (spec.md §4.3: "every mutating operation on
// collaboration state runs inside a per-room transaction... operations
// targeting disjoint rooms may execute in parallel").
package keymutex

import "sync"

// Map holds one *sync.Mutex per key, created on first use and never
// removed — rooms are few enough relative to process lifetime that this
// doesn't need eviction.
type Map[K comparable] struct {
	mu     sync.Mutex
	lockOf map[K]*sync.Mutex
}

// New creates an empty keymutex map.
func New[K comparable]() *Map[K] {
	return &Map[K]{lockOf: make(map[K]*sync.Mutex)}
}

func (m *Map[K]) lockFor(key K) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lockOf[key]
	if !ok {
		l = &sync.Mutex{}
		m.lockOf[key] = l
	}
	return l
}

// With runs fn while holding the mutex for key. Two calls with the same
// key never overlap; calls with different keys run concurrently.
func (m *Map[K]) With(key K, fn func() error) error {
	l := m.lockFor(key)
	l.Lock()
	defer l.Unlock()
	return fn()
}
