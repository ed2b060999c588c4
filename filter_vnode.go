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

	"github.com/fsnotify/fsnotify"

	"github.com/kevq-io/kevq/internal/pending"
	errorx "github.com/kevq-io/kevq/pkg/errors"
)

// vnodeFilter implements file-system watches on top of fsnotify. The watcher
// and its reader goroutine are created lazily on first attach; occurrences
// ride the pending queue and the synthetic wakeup like every other
// non-poller source.
type vnodeFilter struct {
	filterBase
	q *Queue

	startOnce sync.Once
	startErr  error
	watcher   *fsnotify.Watcher

	// byPath fans one watched path out to every registration naming it.
	pathMu sync.Mutex
	byPath map[string]map[uint64]struct{}
}

func newVnodeFilter(q *Queue) *vnodeFilter {
	return &vnodeFilter{
		filterBase: newFilterBase(FilterVnode),
		q:          q,
		byPath:     make(map[string]map[uint64]struct{}),
	}
}

func (f *vnodeFilter) start() error {
	f.startOnce.Do(func() {
		f.watcher, f.startErr = fsnotify.NewWatcher()
		if f.startErr != nil {
			return
		}
		go f.run()
	})
	return f.startErr
}

func (f *vnodeFilter) run() {
	for {
		select {
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			f.dispatch(ev)
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.q.logger.Errorf("file watcher error: %v", err)
		}
	}
}

func noteOf(op fsnotify.Op) uint32 {
	var ff uint32
	if op.Has(fsnotify.Write) {
		ff |= NoteWrite
	}
	if op.Has(fsnotify.Remove) {
		ff |= NoteDelete
	}
	if op.Has(fsnotify.Rename) {
		ff |= NoteRename
	}
	if op.Has(fsnotify.Chmod) {
		ff |= NoteAttrib
	}
	if op.Has(fsnotify.Create) {
		ff |= NoteCreate
	}
	return ff
}

func (f *vnodeFilter) dispatch(ev fsnotify.Event) {
	ff := noteOf(ev.Op)
	if ff == 0 {
		return
	}
	f.pathMu.Lock()
	idents := make([]uint64, 0, len(f.byPath[ev.Name]))
	for ident := range f.byPath[ev.Name] {
		idents = append(idents, ident)
	}
	f.pathMu.Unlock()
	if len(idents) == 0 {
		// Activity under a watched directory that no registration names.
		return
	}
	for _, ident := range idents {
		f.q.pending.Push(pending.Occurrence{Filter: uint8(FilterVnode), Ident: ident, Fflags: ff})
	}
	if err := f.q.poller.Wake(); err != nil {
		f.q.logger.Errorf("failed to wake poller for watch on %q: %v", ev.Name, err)
	}
}

func (f *vnodeFilter) attach(kn *knote, c *Change) error {
	if c != nil {
		if c.Path == "" {
			return errorx.ErrWatchPathRequired
		}
		if err := f.start(); err != nil {
			return err
		}
		if kn.path != "" && kn.path != c.Path {
			// Re-registration onto a different object moves the watch.
			f.forget(kn.path, kn.ident)
		}
		kn.path = c.Path
	}
	if err := f.watcher.Add(kn.path); err != nil {
		return err
	}
	f.pathMu.Lock()
	set := f.byPath[kn.path]
	if set == nil {
		set = make(map[uint64]struct{})
		f.byPath[kn.path] = set
	}
	set[kn.ident] = struct{}{}
	f.pathMu.Unlock()
	return nil
}

// forget withdraws one registration's interest in path; the native watch is
// dropped only when the last registration goes.
func (f *vnodeFilter) forget(path string, ident uint64) {
	f.pathMu.Lock()
	set := f.byPath[path]
	delete(set, ident)
	last := len(set) == 0
	if last {
		delete(f.byPath, path)
	}
	f.pathMu.Unlock()
	if last {
		_ = f.watcher.Remove(path)
	}
}

func (f *vnodeFilter) detach(kn *knote) error {
	if kn.path == "" || f.watcher == nil {
		return nil
	}
	f.forget(kn.path, kn.ident)
	return nil
}

func (f *vnodeFilter) disarm(kn *knote) error {
	return f.detach(kn)
}

func (f *vnodeFilter) rearm(kn *knote) error {
	return f.attach(kn, nil)
}

func (f *vnodeFilter) process(kn *knote, sig signal) (Event, bool) {
	ff := sig.fflags
	if kn.fflags != 0 {
		ff &= kn.fflags
	}
	if ff == 0 {
		return Event{}, false // outside the registration's interest mask
	}
	ev := kn.snapshotEvent()
	ev.Fflags = ff
	return ev, true
}

func (f *vnodeFilter) close() error {
	if f.watcher == nil {
		return nil
	}
	return f.watcher.Close()
}
