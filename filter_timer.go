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
	"time"

	"github.com/kevq-io/kevq/internal/pending"
	errorx "github.com/kevq-io/kevq/pkg/errors"
)

// timerFilter implements periodic registrations; the Data field of the
// registering change carries the period in milliseconds. Fires ride the
// pending queue and the synthetic wakeup, the runtime timer stays armed
// until the knote is disabled or deleted.
type timerFilter struct {
	filterBase
	q *Queue
}

func newTimerFilter(q *Queue) *timerFilter {
	return &timerFilter{filterBase: newFilterBase(FilterTimer), q: q}
}

func (f *timerFilter) attach(kn *knote, c *Change) error {
	if c != nil {
		if c.Data <= 0 {
			return errorx.ErrInvalidTimerPeriod
		}
		kn.data = c.Data
	}
	period := time.Duration(kn.data) * time.Millisecond
	if kn.timer != nil {
		// Re-registration resets the running timer instead of adding one.
		kn.timer.Reset(period)
		return nil
	}
	kn.timer = time.AfterFunc(period, func() { f.fire(kn) })
	return nil
}

// fire runs on the runtime timer goroutine.
func (f *timerFilter) fire(kn *knote) {
	kn.mu.Lock()
	if kn.status != knoteActive {
		kn.mu.Unlock()
		return
	}
	kn.fires++
	oneshot := kn.flags&OneShot != 0
	if !oneshot && kn.timer != nil {
		// The period is re-read so an in-place re-registration takes effect.
		kn.timer.Reset(time.Duration(kn.data) * time.Millisecond)
	}
	ident := kn.ident
	kn.mu.Unlock()

	f.q.pending.Push(pending.Occurrence{Filter: uint8(FilterTimer), Ident: ident})
	if err := f.q.poller.Wake(); err != nil {
		f.q.logger.Errorf("failed to wake poller for timer %d: %v", ident, err)
	}
}

func (f *timerFilter) detach(kn *knote) error {
	if kn.timer != nil {
		kn.timer.Stop()
		kn.timer = nil
	}
	return nil
}

func (f *timerFilter) disarm(kn *knote) error {
	if kn.timer != nil {
		kn.timer.Stop()
	}
	return nil
}

func (f *timerFilter) rearm(kn *knote) error {
	return f.attach(kn, nil)
}

func (f *timerFilter) process(kn *knote, _ signal) (Event, bool) {
	if kn.fires == 0 {
		// The expirations were already reported by an earlier drain.
		return Event{}, false
	}
	ev := kn.snapshotEvent()
	ev.Data = kn.fires
	kn.fires = 0
	return ev, true
}

func (f *timerFilter) close() error {
	return nil
}
