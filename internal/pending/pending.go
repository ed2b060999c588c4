// Copyright (c) 2026 The Kevq Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pending queues synthetic occurrences produced away from the native
// poller: user-filter triggers, timer fires and file-watch callbacks. Pushers
// enqueue and then wake the poller; waiters drain under their own pace.
package pending

import (
	"sync"

	"github.com/eapache/queue"
)

// Occurrence is one synthetic readiness notice awaiting delivery.
type Occurrence struct {
	Filter uint8
	Ident  uint64
	Fflags uint32
	Data   int64
}

// Queue is a mutex-guarded FIFO of occurrences.
type Queue struct {
	mu sync.Mutex
	q  *queue.Queue
}

// New instantiates a pending queue.
func New() *Queue {
	return &Queue{q: queue.New()}
}

// Push appends one occurrence.
func (pq *Queue) Push(o Occurrence) {
	pq.mu.Lock()
	pq.q.Add(o)
	pq.mu.Unlock()
}

// Pop removes and returns the oldest occurrence.
func (pq *Queue) Pop() (Occurrence, bool) {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	if pq.q.Length() == 0 {
		return Occurrence{}, false
	}
	return pq.q.Remove().(Occurrence), true
}

// Len returns how many occurrences are queued.
func (pq *Queue) Len() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return pq.q.Length()
}

// Empty reports whether no occurrences are queued.
func (pq *Queue) Empty() bool {
	return pq.Len() == 0
}
