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

package kevq

import (
	"sync"
	"time"

	"github.com/kevq-io/kevq/internal/poll"
)

const (
	knoteActive int32 = iota
	knoteDisabled
	knoteDeleted
)

// knote is one active registration's state machine instance. Its mutex
// guards status, the registration snapshot and the native linkage; it is
// held for the whole of any read-modify-write, including normalization and
// disposition at delivery time.
//
// Lock order: when a goroutine needs both a filter's knote-map lock and a
// knote's lock (registration insert, one-shot removal), the knote's lock is
// acquired first; map holders never wait on a knote.
type knote struct {
	mu sync.Mutex

	ident  uint64
	kind   FilterKind
	flags  Flags // disposition bits only
	fflags uint32
	data   int64
	udata  interface{}
	status int32

	// native linkage, one of the below depending on kind
	fd      int          // read/write: the watched descriptor
	armBits poll.IOEvent // read/write: interest bits contributed to the fd
	timer   *time.Timer  // timer
	fires   int64        // timer: expirations since the last delivery
	path    string       // vnode: the watched object
}

// snapshotEvent starts a fresh caller-facing record from the registration.
// Callers hold kn.mu.
func (kn *knote) snapshotEvent() Event {
	return Event{Ident: kn.ident, Filter: kn.kind, UData: kn.udata}
}

// knoteMap holds the registrations of one filter, keyed by identifier,
// unique per filter.
type knoteMap struct {
	mu sync.RWMutex
	m  map[uint64]*knote
}

func newKnoteMap() knoteMap {
	return knoteMap{m: make(map[uint64]*knote)}
}

func (km *knoteMap) get(ident uint64) *knote {
	km.mu.RLock()
	kn := km.m[ident]
	km.mu.RUnlock()
	return kn
}

// putIfAbsent links kn unless its identifier is already taken, so two
// concurrent inserts for one identifier cannot both win.
func (km *knoteMap) putIfAbsent(kn *knote) bool {
	km.mu.Lock()
	defer km.mu.Unlock()
	if _, ok := km.m[kn.ident]; ok {
		return false
	}
	km.m[kn.ident] = kn
	return true
}

// del unlinks and returns the registration, nil when absent.
func (km *knoteMap) del(ident uint64) *knote {
	km.mu.Lock()
	kn := km.m[ident]
	delete(km.m, ident)
	km.mu.Unlock()
	return kn
}

func (km *knoteMap) len() int {
	km.mu.RLock()
	n := len(km.m)
	km.mu.RUnlock()
	return n
}

// all snapshots the current registrations so callers can walk them without
// holding the map lock.
func (km *knoteMap) all() []*knote {
	km.mu.RLock()
	kns := make([]*knote, 0, len(km.m))
	for _, kn := range km.m {
		kns = append(kns, kn)
	}
	km.mu.RUnlock()
	return kns
}
