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
	"github.com/kevq-io/kevq/internal/pending"
	errorx "github.com/kevq-io/kevq/pkg/errors"
)

// userFilter implements registrations with no native resource at all: armed
// by Add, fired by a change carrying NoteTrigger, delivered through the
// pending queue and the synthetic wakeup.
type userFilter struct {
	filterBase
	q *Queue
}

func newUserFilter(q *Queue) *userFilter {
	return &userFilter{filterBase: newFilterBase(FilterUser), q: q}
}

func (f *userFilter) attach(_ *knote, _ *Change) error { return nil }
func (f *userFilter) detach(_ *knote) error            { return nil }
func (f *userFilter) disarm(_ *knote) error            { return nil }
func (f *userFilter) rearm(_ *knote) error             { return nil }

// trigger queues one firing of the registration and wakes a blocked waiter.
func (f *userFilter) trigger(c *Change) error {
	if f.kns.get(c.Ident) == nil {
		return errorx.ErrKnoteNotFound
	}
	f.q.pending.Push(pending.Occurrence{
		Filter: uint8(FilterUser),
		Ident:  c.Ident,
		Fflags: c.Fflags &^ NoteTrigger,
		Data:   c.Data,
	})
	return f.q.poller.Wake()
}

func (f *userFilter) process(kn *knote, sig signal) (Event, bool) {
	ev := kn.snapshotEvent()
	ev.Fflags = sig.fflags
	ev.Data = sig.data
	return ev, true
}

func (f *userFilter) close() error {
	return nil
}
