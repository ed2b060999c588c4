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
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/kevq-io/kevq/internal/pending"
	"github.com/kevq-io/kevq/internal/poll"
	errorx "github.com/kevq-io/kevq/pkg/errors"
	"github.com/kevq-io/kevq/pkg/logging"
)

const (
	defaultPollEventsCap = 128

	// wakeRetryInterval paces re-wakes while a cancellation is waiting to be
	// observed by a blocked waiter; one wakeup can be consumed by a
	// different concurrent waiter.
	wakeRetryInterval = 10 * time.Millisecond
)

// Queue is the caller-held handle bundling the native backend and the set of
// filters; it is the unit of lifetime and of the blocking retrieval call.
// A Queue is safe for concurrent use, including concurrent SubmitAndWait
// calls, but must not be used after Close.
type Queue struct {
	poller     *poll.Poller
	pending    *pending.Queue
	arms       *armTable
	filters    [numFilters]filter
	logger     logging.Logger
	logFlusher logging.Flusher

	pollEventsCap int
	closed        int32
}

// OpenQueue allocates a queue and acquires its native backend. Partial state
// is released before an error is returned.
func OpenQueue(opts ...Option) (*Queue, error) {
	options := loadOptions(opts...)

	logger, logFlusher := options.Logger, logging.Flusher(nil)
	if logger == nil {
		if options.LogPath != "" {
			var err error
			if logger, logFlusher, err = logging.CreateLoggerAsLocalFile(options.LogPath, options.LogLevel); err != nil {
				return nil, err
			}
		} else {
			logger = logging.GetDefaultLogger()
		}
	}

	p, err := poll.OpenPoller()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errorx.ErrBackendInit, err)
	}

	q := &Queue{
		poller:        p,
		pending:       pending.New(),
		arms:          newArmTable(p),
		logger:        logger,
		logFlusher:    logFlusher,
		pollEventsCap: options.PollEventsCap,
	}
	if q.pollEventsCap <= 0 {
		q.pollEventsCap = defaultPollEventsCap
	}

	// The registry is populated eagerly and is append-only for the queue's
	// lifetime, so lookups need no lock.
	q.filters[FilterRead] = newNetFilter(q, FilterRead)
	q.filters[FilterWrite] = newNetFilter(q, FilterWrite)
	q.filters[FilterUser] = newUserFilter(q)
	q.filters[FilterTimer] = newTimerFilter(q)
	q.filters[FilterVnode] = newVnodeFilter(q)
	return q, nil
}

// Close detaches every registration, releases every filter and the backend.
// Waits still blocked when Close is called are woken on a best-effort basis
// and return ErrQueueShutdown; callers should nonetheless drain their
// waiters before closing.
func (q *Queue) Close() error {
	if q == nil || !atomic.CompareAndSwapInt32(&q.closed, 0, 1) {
		return errorx.ErrInvalidQueue
	}
	_ = q.poller.Wake()

	var firstErr error
	for _, f := range q.filters {
		if f == nil {
			continue
		}
		for _, kn := range f.knotes().all() {
			kn.mu.Lock()
			kn.status = knoteDeleted
			if err := f.detach(kn); err != nil && firstErr == nil {
				firstErr = err
			}
			kn.mu.Unlock()
			f.knotes().del(kn.ident)
		}
		if err := f.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := q.poller.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if q.logFlusher != nil {
		_ = q.logFlusher()
	}
	return firstErr
}

// SubmitAndWait applies the batch of changes, then blocks until at least one
// event is ready, wantN are ready, or timeout elapses, and returns the ready
// records (between 0 and wantN of them).
//
// timeout < 0 blocks indefinitely and timeout == 0 polls. Positive
// sub-millisecond timeouts truncate toward zero when converted to the native
// granularity: the call may return sooner than requested, never later.
// An elapsed timeout is a normal zero-result outcome, not an error.
//
// Changes carrying Receipt are echoed back as acknowledgment records in
// place of normal delivery and count toward wantN; when receipts alone
// satisfy the call no wait happens. A failed receipt carries the Error flag
// and an errno-style code in Data, zero on success. Receipts are never
// truncated: a batch with more receipt-flagged changes than wantN is the
// one case where the returned count exceeds wantN. Without receipts, change
// application is best-effort: changes preceding a failing one stay applied
// and the first failure is returned wrapped with its batch index.
func (q *Queue) SubmitAndWait(changes []Change, wantN int, timeout time.Duration) ([]Event, error) {
	return q.submitAndWait(nil, changes, wantN, timeout)
}

// SubmitAndWaitContext is SubmitAndWait interruptible through ctx. The
// interruption contract mirrors what thread cancellation gives the kqueue
// API elsewhere: it can only take effect while the call is blocked inside
// the native wait, never while a registration lock is held, and it leaves
// the queue and every registration consistent. When the context ends first,
// the context's error is returned along with any records already collected.
func (q *Queue) SubmitAndWaitContext(ctx context.Context, changes []Change, wantN int, timeout time.Duration) ([]Event, error) {
	return q.submitAndWait(ctx, changes, wantN, timeout)
}

func (q *Queue) submitAndWait(ctx context.Context, changes []Change, wantN int, timeout time.Duration) ([]Event, error) {
	if q == nil || atomic.LoadInt32(&q.closed) != 0 {
		return nil, errorx.ErrInvalidQueue
	}

	out := make([]Event, 0, len(changes))
	for i := range changes {
		c := &changes[i]
		err := q.apply(c)
		if c.Flags&Receipt != 0 {
			rec := Event{Ident: c.Ident, Filter: c.Filter, Flags: Receipt, Fflags: c.Fflags, UData: c.UData}
			if err != nil {
				rec.Flags |= Error
				rec.Data = receiptCode(err)
			}
			out = append(out, rec)
			continue
		}
		if err != nil {
			return out, fmt.Errorf("change %d (ident=%d, filter=%s): %w", i, c.Ident, c.Filter, err)
		}
	}
	if wantN <= 0 || len(out) > 0 {
		return out, nil
	}

	if ctx != nil && ctx.Done() != nil {
		stop := make(chan struct{})
		defer close(stop)
		go q.wakeOnDone(ctx, stop)
	}

	stage := wantN
	if stage > q.pollEventsCap {
		stage = q.pollEventsCap
	}
	el := poll.NewEventList(stage + 1) // one extra slot for the wakeup fd

	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		if atomic.LoadInt32(&q.closed) != 0 {
			return out, errorx.ErrQueueShutdown
		}
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return out, err
			}
		}

		// Synthetic occurrences may already be queued from before the call.
		q.drainPending(&out, wantN)
		if len(out) > 0 {
			return out, nil
		}

		msec := -1
		if !deadline.IsZero() {
			d := time.Until(deadline)
			if d < 0 {
				d = 0
			}
			msec = int(d / time.Millisecond) // truncate: return sooner, never later
		}

		n, err := q.poller.Wait(el, msec)
		if err != nil {
			return out, fmt.Errorf("%w: %v", errorx.ErrBackendWait, err)
		}

		var cycleErr error
		woken := false
		for i := 0; i < n; i++ {
			fd := el.FD(i)
			if fd == q.poller.WakeFD() {
				woken = true
				continue
			}
			if e := q.processReadiness(fd, el.Events(i), &out, wantN); e != nil && cycleErr == nil {
				cycleErr = e
			}
		}
		if woken {
			q.poller.Drain()
			q.drainPending(&out, wantN)
		}
		if cycleErr != nil {
			// A fully-formed ready record is never dropped silently; whatever
			// was collected rides back with the error.
			return out, cycleErr
		}
		if len(out) > 0 {
			return out, nil
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return out, nil
		}
	}
}

// wakeOnDone keeps nudging the poller once ctx ends until the owning wait
// returns; a single wakeup can be eaten by a concurrent waiter.
func (q *Queue) wakeOnDone(ctx context.Context, stop <-chan struct{}) {
	select {
	case <-stop:
		return
	case <-ctx.Done():
	}
	t := time.NewTicker(wakeRetryInterval)
	defer t.Stop()
	for {
		if err := q.poller.Wake(); err != nil {
			return
		}
		select {
		case <-stop:
			return
		case <-t.C:
		}
	}
}

// apply executes one registration change.
func (q *Queue) apply(c *Change) error {
	f, err := q.filterFor(c.Filter)
	if err != nil {
		return err
	}

	switch {
	case c.Flags&Delete != 0:
		q.removeKnote(f, c.Ident)
		return nil
	case c.Flags&Add != 0:
		err = q.upsertKnote(f, c)
	case c.Flags&(Enable|Disable) != 0:
		err = q.toggleKnote(f, c)
	default:
		if c.Filter != FilterUser || c.Fflags&NoteTrigger == 0 {
			return errorx.ErrUnsupportedOp
		}
	}
	if err != nil {
		return err
	}

	if c.Filter == FilterUser && c.Fflags&NoteTrigger != 0 {
		return q.filters[FilterUser].(*userFilter).trigger(c)
	}
	return nil
}

func (q *Queue) filterFor(k FilterKind) (filter, error) {
	if k <= FilterNone || k >= numFilters {
		return nil, errorx.ErrUnsupportedFilter
	}
	return q.filters[k], nil
}

// upsertKnote registers a new (identifier, filter) pair or updates the
// existing one in place; re-registration never creates a duplicate. Lookup
// and insert are atomic against concurrent adds for the same pair, and the
// registration snapshot plus the native linkage are only ever touched with
// the knote's lock held.
func (q *Queue) upsertKnote(f filter, c *Change) error {
	km := f.knotes()
	for {
		kn := km.get(c.Ident)
		if kn == nil {
			kn = &knote{ident: c.Ident, kind: c.Filter}
			kn.mu.Lock()
			if !km.putIfAbsent(kn) {
				// Lost the insert race; retry as an in-place update.
				kn.mu.Unlock()
				continue
			}
		} else {
			kn.mu.Lock()
			if kn.status == knoteDeleted {
				// Raced with a one-shot delivery, which already unlinked it;
				// retry with a fresh insert.
				kn.mu.Unlock()
				continue
			}
		}
		err := q.applyRegistration(f, kn, c)
		kn.mu.Unlock()
		return err
	}
}

// applyRegistration rewrites kn's snapshot from c and reconciles the native
// linkage with the resulting status. Callers hold kn.mu.
func (q *Queue) applyRegistration(f filter, kn *knote, c *Change) error {
	kn.flags = c.Flags & dispositions
	kn.fflags = registrationFflags(c)
	kn.udata = c.UData
	if c.Flags&Disable != 0 {
		kn.status = knoteDisabled
	} else {
		// Re-adding implies enabling unless the change says otherwise.
		kn.status = knoteActive
	}
	if err := f.attach(kn, c); err != nil {
		kn.status = knoteDeleted
		_ = f.detach(kn) // roll back any partial linkage
		f.knotes().del(kn.ident)
		return err
	}
	if kn.status == knoteDisabled {
		// The armed state follows the resulting status, whatever it was before.
		return f.disarm(kn)
	}
	return nil
}

func (q *Queue) toggleKnote(f filter, c *Change) error {
	kn := f.knotes().get(c.Ident)
	if kn == nil {
		return errorx.ErrKnoteNotFound
	}
	kn.mu.Lock()
	defer kn.mu.Unlock()
	switch {
	case kn.status == knoteDeleted:
		return errorx.ErrKnoteNotFound
	case c.Flags&Disable != 0 && kn.status == knoteActive:
		kn.status = knoteDisabled
		return f.disarm(kn)
	case c.Flags&Enable != 0 && kn.status == knoteDisabled:
		kn.status = knoteActive
		return f.rearm(kn)
	}
	return nil
}

func (q *Queue) removeKnote(f filter, ident uint64) {
	kn := f.knotes().del(ident)
	if kn == nil {
		return // deleting a non-existent registration is not an error
	}
	kn.mu.Lock()
	kn.status = knoteDeleted
	if err := f.detach(kn); err != nil {
		q.logger.Warnf("failed to detach %s knote %d: %v", f.kind(), ident, err)
	}
	kn.mu.Unlock()
}

// deliver normalizes one signal for kn under its lock and applies the
// disposition flags before the record is surfaced.
func (q *Queue) deliver(f filter, kn *knote, sig signal) (Event, bool) {
	kn.mu.Lock()
	defer kn.mu.Unlock()
	if kn.status != knoteActive {
		// Disabled or deleted after the signal was staged.
		return Event{}, false
	}
	ev, ok := f.process(kn, sig)
	if !ok || ev.Filter == FilterNone {
		q.logger.Debugf("spurious wakeup for %s knote %d, discarding", f.kind(), kn.ident)
		return Event{}, false
	}
	if kn.flags&Dispatch != 0 {
		ev.Flags |= Dispatch
		kn.status = knoteDisabled
		if err := f.disarm(kn); err != nil {
			q.logger.Warnf("failed to disarm dispatched %s knote %d: %v", f.kind(), kn.ident, err)
		}
	}
	if kn.flags&OneShot != 0 {
		ev.Flags |= OneShot
		kn.status = knoteDeleted
		if err := f.detach(kn); err != nil {
			q.logger.Warnf("failed to detach one-shot %s knote %d: %v", f.kind(), kn.ident, err)
		}
		f.knotes().del(kn.ident)
	}
	return ev, true
}

// processReadiness resolves one native readiness signal to its knotes and
// appends the normalized records. Resolution is a bounds-checked map lookup;
// a signal naming a descriptor nobody registered fails this wait cycle with
// ErrProtocolViolation instead of taking the process down.
func (q *Queue) processReadiness(fd int, events poll.IOEvent, out *[]Event, wantN int) error {
	handled := false
	if events&(poll.ReadEvents|poll.ErrEvents) != 0 {
		f := q.filters[FilterRead]
		if kn := f.knotes().get(uint64(fd)); kn != nil {
			handled = true
			if len(*out) < wantN {
				if ev, ok := q.deliver(f, kn, signal{events: events}); ok {
					*out = append(*out, ev)
				}
			}
		}
	}
	if events&(poll.WriteEvents|poll.ErrEvents) != 0 {
		f := q.filters[FilterWrite]
		if kn := f.knotes().get(uint64(fd)); kn != nil {
			handled = true
			if len(*out) < wantN {
				if ev, ok := q.deliver(f, kn, signal{events: events}); ok {
					*out = append(*out, ev)
				}
			}
		}
	}
	if !handled {
		if !q.arms.known(fd) {
			// The registration was withdrawn after the signal was staged;
			// a stale readiness report, not a bookkeeping bug.
			q.logger.Debugf("stale readiness for fd %d, discarding", fd)
			return nil
		}
		return fmt.Errorf("%w: fd %d, events %#x", errorx.ErrProtocolViolation, fd, events)
	}
	return nil
}

// receiptCode maps a failed change to the errno-style code carried in the
// receipt record's Data field. Native failures keep their own errno.
func receiptCode(err error) int64 {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int64(errno)
	}
	if errors.Is(err, errorx.ErrKnoteNotFound) {
		return int64(syscall.ENOENT)
	}
	return int64(syscall.EINVAL)
}

// registrationFflags extracts the fflags bits that persist on the knote.
// NoteTrigger is an action, not state; its bit pattern is reused by other
// filters, so it is stripped for the user filter only.
func registrationFflags(c *Change) uint32 {
	if c.Filter == FilterUser {
		return c.Fflags &^ NoteTrigger
	}
	return c.Fflags
}

// drainPending moves queued synthetic occurrences into out, up to wantN.
// Leftovers re-wake the poller so the next wait cannot strand them.
func (q *Queue) drainPending(out *[]Event, wantN int) {
	for len(*out) < wantN {
		oc, ok := q.pending.Pop()
		if !ok {
			break
		}
		k := FilterKind(oc.Filter)
		if k <= FilterNone || k >= numFilters {
			continue
		}
		f := q.filters[k]
		kn := f.knotes().get(oc.Ident)
		if kn == nil {
			continue // deleted before delivery
		}
		if ev, ok := q.deliver(f, kn, signal{fflags: oc.Fflags, data: oc.Data}); ok {
			*out = append(*out, ev)
		}
	}
	if !q.pending.Empty() {
		if err := q.poller.Wake(); err != nil {
			q.logger.Errorf("failed to re-wake poller for leftover occurrences: %v", err)
		}
	}
}
