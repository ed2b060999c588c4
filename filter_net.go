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

	"github.com/kevq-io/kevq/internal/poll"
)

// armEntry tracks the interest bits each direction contributed for one fd.
// The read and write filters share a descriptor in the native poller, so the
// registered interest set is always the union of both.
type armEntry struct {
	r, w poll.IOEvent
}

// armTable reconciles per-knote interest with the single per-fd registration
// the native poller supports.
type armTable struct {
	mu     sync.Mutex
	poller *poll.Poller
	m      map[int]armEntry
}

func newArmTable(poller *poll.Poller) *armTable {
	return &armTable{poller: poller, m: make(map[int]armEntry)}
}

// set replaces one direction's contribution for fd and pushes the combined
// interest set to the poller. Zero bits withdraw the direction.
func (t *armTable) set(fd int, write bool, bits poll.IOEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.m[fd]
	old := e.r | e.w
	if write {
		e.w = bits
	} else {
		e.r = bits
	}
	nu := e.r | e.w

	var err error
	switch {
	case old == 0 && nu != 0:
		err = t.poller.Add(fd, nu)
	case old != 0 && nu == 0:
		err = t.poller.Delete(fd)
	case nu != old:
		err = t.poller.Mod(fd, nu)
	}
	if err != nil {
		return err
	}
	if nu == 0 {
		delete(t.m, fd)
	} else {
		t.m[fd] = e
	}
	return nil
}

// known reports whether any direction still holds interest in fd.
func (t *armTable) known(fd int) bool {
	t.mu.Lock()
	_, ok := t.m[fd]
	t.mu.Unlock()
	return ok
}

// netFilter implements readiness watching of file-descriptors; one instance
// serves FilterRead, another FilterWrite.
type netFilter struct {
	filterBase
	q *Queue
}

func newNetFilter(q *Queue, id FilterKind) *netFilter {
	return &netFilter{filterBase: newFilterBase(id), q: q}
}

func (f *netFilter) interest(kn *knote) poll.IOEvent {
	var bits poll.IOEvent
	if f.id == FilterWrite {
		bits = poll.WriteEvents
	} else {
		bits = poll.ReadEvents
	}
	if kn.flags&Clear != 0 {
		// Edge-triggering is a per-descriptor property; with both directions
		// registered it applies to the whole fd.
		bits |= poll.EdgeTriggered
	}
	return bits
}

func (f *netFilter) attach(kn *knote, _ *Change) error {
	kn.fd = int(kn.ident)
	bits := f.interest(kn)
	if err := f.q.arms.set(kn.fd, f.id == FilterWrite, bits); err != nil {
		return err
	}
	kn.armBits = bits
	return nil
}

func (f *netFilter) detach(kn *knote) error {
	if kn.armBits == 0 {
		return nil // linkage never established or already withdrawn
	}
	kn.armBits = 0
	return f.q.arms.set(kn.fd, f.id == FilterWrite, 0)
}

func (f *netFilter) disarm(kn *knote) error {
	return f.detach(kn)
}

func (f *netFilter) rearm(kn *knote) error {
	return f.attach(kn, nil)
}

func (f *netFilter) process(kn *knote, sig signal) (Event, bool) {
	ev := kn.snapshotEvent()
	if sig.events&poll.ErrEvents != 0 {
		ev.Flags |= EOF
	}
	if f.id == FilterRead {
		ev.Data = int64(poll.ReadableBytes(kn.fd))
		if ev.Data == 0 && ev.Flags&EOF == 0 {
			// Wakeup with nothing the caller could observe.
			return Event{}, false
		}
	}
	return ev, true
}

func (f *netFilter) close() error {
	return nil
}
