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

//go:build linux

package kevq

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	errorx "github.com/kevq-io/kevq/pkg/errors"
)

func TestReRegistrationIsIdempotent(t *testing.T) {
	q, err := OpenQueue()
	require.NoError(t, err)
	defer q.Close() //nolint:errcheck

	changes := []Change{
		{Ident: 1, Filter: FilterUser, Flags: Add},
		{Ident: 2, Filter: FilterUser, Flags: Add},
		{Ident: 3, Filter: FilterUser, Flags: Add},
	}
	_, err = q.SubmitAndWait(changes, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, q.filters[FilterUser].knotes().len())

	// Reapplying an identical add must not grow the registration count.
	_, err = q.SubmitAndWait(changes, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, q.filters[FilterUser].knotes().len())

	// An add for an existing pair updates it in place.
	_, err = q.SubmitAndWait([]Change{{Ident: 2, Filter: FilterUser, Flags: Add | OneShot, UData: "fresh"}}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, q.filters[FilterUser].knotes().len())
	kn := q.filters[FilterUser].knotes().get(2)
	require.NotNil(t, kn)
	assert.Equal(t, OneShot, kn.flags)
	assert.Equal(t, "fresh", kn.udata)
}

func TestDeleteNonExistentIsNoOp(t *testing.T) {
	q, err := OpenQueue()
	require.NoError(t, err)
	defer q.Close() //nolint:errcheck

	evs, err := q.SubmitAndWait([]Change{{Ident: 42, Filter: FilterUser, Flags: Delete}}, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, evs)

	// Even with a receipt requested, the no-op is a success.
	evs, err = q.SubmitAndWait([]Change{{Ident: 42, Filter: FilterTimer, Flags: Delete | Receipt}}, 1, 0)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Zero(t, evs[0].Flags&Error)
}

func TestInvalidQueueHandle(t *testing.T) {
	var nilQ *Queue
	_, err := nilQ.SubmitAndWait(nil, 1, 0)
	assert.ErrorIs(t, err, errorx.ErrInvalidQueue)
	assert.ErrorIs(t, nilQ.Close(), errorx.ErrInvalidQueue)

	q, err := OpenQueue()
	require.NoError(t, err)
	require.NoError(t, q.Close())
	_, err = q.SubmitAndWait(nil, 1, 0)
	assert.ErrorIs(t, err, errorx.ErrInvalidQueue)
	assert.ErrorIs(t, q.Close(), errorx.ErrInvalidQueue)
}

func TestUnknownFilterKind(t *testing.T) {
	q, err := OpenQueue()
	require.NoError(t, err)
	defer q.Close() //nolint:errcheck

	_, err = q.SubmitAndWait([]Change{{Ident: 1, Filter: FilterNone, Flags: Add}}, 0, 0)
	assert.ErrorIs(t, err, errorx.ErrUnsupportedFilter)
	_, err = q.SubmitAndWait([]Change{{Ident: 1, Filter: numFilters, Flags: Add}}, 0, 0)
	assert.ErrorIs(t, err, errorx.ErrUnsupportedFilter)
}

func TestBatchAbortsAtFirstFailureWithoutReceipts(t *testing.T) {
	q, err := OpenQueue()
	require.NoError(t, err)
	defer q.Close() //nolint:errcheck

	_, err = q.SubmitAndWait([]Change{
		{Ident: 1, Filter: FilterUser, Flags: Add},
		{Ident: 2, Filter: FilterTimer, Flags: Add, Data: -5}, // invalid period
		{Ident: 3, Filter: FilterUser, Flags: Add},
	}, 0, 0)
	require.ErrorIs(t, err, errorx.ErrInvalidTimerPeriod)

	// Best-effort: the change before the failing one stays applied, the one
	// after it was never reached.
	assert.Equal(t, 1, q.filters[FilterUser].knotes().len())
	assert.NotNil(t, q.filters[FilterUser].knotes().get(1))
	assert.Nil(t, q.filters[FilterUser].knotes().get(3))
}

func TestReceiptsReportPerChangeOutcome(t *testing.T) {
	q, err := OpenQueue()
	require.NoError(t, err)
	defer q.Close() //nolint:errcheck

	evs, err := q.SubmitAndWait([]Change{
		{Ident: 1, Filter: FilterUser, Flags: Add | Receipt, UData: "ok"},
		{Ident: 9, Filter: FilterUser, Flags: Enable | Receipt}, // unknown ident
		{Ident: 2, Filter: FilterUser, Flags: Add | Receipt},
	}, 8, 0)
	require.NoError(t, err)
	require.Len(t, evs, 3)

	assert.Equal(t, Receipt, evs[0].Flags)
	assert.Equal(t, "ok", evs[0].UData)
	assert.Zero(t, evs[0].Data)
	assert.Equal(t, Receipt|Error, evs[1].Flags)
	assert.Equal(t, int64(syscall.ENOENT), evs[1].Data)
	assert.Equal(t, Receipt, evs[2].Flags)
	assert.Zero(t, evs[2].Data)

	// The batch continued past the failing change.
	assert.Equal(t, 2, q.filters[FilterUser].knotes().len())
}

func TestReceiptsAreNeverTruncated(t *testing.T) {
	q, err := OpenQueue()
	require.NoError(t, err)
	defer q.Close() //nolint:errcheck

	// Three receipts against wantN of one: acknowledgments outrank the cap.
	evs, err := q.SubmitAndWait([]Change{
		{Ident: 1, Filter: FilterUser, Flags: Add | Receipt},
		{Ident: 2, Filter: FilterUser, Flags: Add | Receipt},
		{Ident: 3, Filter: FilterUser, Flags: Add | Receipt},
	}, 1, 0)
	require.NoError(t, err)
	require.Len(t, evs, 3)
	for _, ev := range evs {
		assert.Equal(t, Receipt, ev.Flags)
	}
}

func TestReAddDisabledStaysDisarmed(t *testing.T) {
	q, err := OpenQueue()
	require.NoError(t, err)
	defer q.Close() //nolint:errcheck

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	defer func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	}()

	disabled := []Change{{Ident: uint64(fds[0]), Filter: FilterRead, Flags: Add | Disable}}
	_, err = q.SubmitAndWait(disabled, 0, 0)
	require.NoError(t, err)
	assert.False(t, q.arms.known(fds[0]))

	// Re-adding a disabled registration must not leave it armed.
	_, err = q.SubmitAndWait(disabled, 0, 0)
	require.NoError(t, err)
	assert.False(t, q.arms.known(fds[0]))

	_, err = q.SubmitAndWait([]Change{{Ident: uint64(fds[0]), Filter: FilterRead, Flags: Enable}}, 0, 0)
	require.NoError(t, err)
	assert.True(t, q.arms.known(fds[0]))
}

func TestConcurrentAddsKeepOneRegistration(t *testing.T) {
	q, err := OpenQueue()
	require.NoError(t, err)
	defer q.Close() //nolint:errcheck

	var eg errgroup.Group
	for w := 0; w < 8; w++ {
		eg.Go(func() error {
			for i := 0; i < 100; i++ {
				if _, err := q.SubmitAndWait([]Change{{
					Ident:  1,
					Filter: FilterTimer,
					Flags:  Add,
					Data:   1000,
				}}, 0, 0); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	assert.Equal(t, 1, q.filters[FilterTimer].knotes().len())
}

func TestDispositionsPersistOnKnote(t *testing.T) {
	q, err := OpenQueue()
	require.NoError(t, err)
	defer q.Close() //nolint:errcheck

	_, err = q.SubmitAndWait([]Change{
		{Ident: 1, Filter: FilterUser, Flags: Add | Dispatch | Clear},
	}, 0, 0)
	require.NoError(t, err)
	kn := q.filters[FilterUser].knotes().get(1)
	require.NotNil(t, kn)
	assert.Equal(t, Dispatch|Clear, kn.flags)
}

func TestZeroTimeoutPollsWithoutBlocking(t *testing.T) {
	q, err := OpenQueue()
	require.NoError(t, err)
	defer q.Close() //nolint:errcheck

	start := time.Now()
	evs, err := q.SubmitAndWait(nil, 4, 0)
	require.NoError(t, err)
	assert.Empty(t, evs)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestRegistrationFflags(t *testing.T) {
	user := &Change{Filter: FilterUser, Fflags: NoteTrigger | 0x80}
	assert.Equal(t, uint32(0x80), registrationFflags(user))

	// The trigger bit pattern is plain state for other filters.
	vnode := &Change{Filter: FilterVnode, Fflags: NoteWrite | NoteDelete}
	assert.Equal(t, NoteWrite|NoteDelete, registrationFflags(vnode))
}
