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

package poll

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestReadableBytesCountsBufferedData(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	defer func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	}()

	assert.Zero(t, ReadableBytes(fds[0]))

	n, err := unix.Write(fds[1], []byte("abc"))
	require.NoError(t, err)
	require.Equal(t, 3, n)
	assert.Equal(t, 3, ReadableBytes(fds[0]))
}

func TestWakeEndsWait(t *testing.T) {
	p, err := OpenPoller()
	require.NoError(t, err)
	defer p.Close() //nolint:errcheck

	require.NoError(t, p.Wake())

	el := NewEventList(4)
	n, err := p.Wait(el, 1000)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 1)
	assert.Equal(t, p.WakeFD(), el.FD(0))
	p.Drain()
}
