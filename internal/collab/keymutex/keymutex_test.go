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
package keymutex

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWithSerializesCallsForTheSameKey(t *testing.T) {
	m := New[string]()
	var active int32
	var overlapped bool
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.With("room-1", func() error {
				if atomic.AddInt32(&active, 1) > 1 {
					overlapped = true
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.False(t, overlapped, "two With calls for the same key ran concurrently")
}

func TestWithAllowsDifferentKeysToRunConcurrently(t *testing.T) {
	m := New[string]()
	started := make(chan struct{}, 2)
	release := make(chan struct{})
	var wg sync.WaitGroup

	for _, key := range []string{"room-1", "room-2"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			_ = m.With(key, func() error {
				started <- struct{}{}
				<-release
				return nil
			})
		}(key)
	}

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first goroutine never entered its critical section")
	}
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("second goroutine blocked behind an unrelated key's lock")
	}
	close(release)
	wg.Wait()
}

func TestWithPropagatesTheFunctionsError(t *testing.T) {
	m := New[string]()
	sentinel := assert.AnError
	err := m.With("room-1", func() error { return sentinel })
	assert.Equal(t, sentinel, err)
}
