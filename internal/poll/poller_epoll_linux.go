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
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Poller wraps one epoll instance plus an eventfd whose sole purpose is to
// indicate a synthetic wakeup, so a blocked Wait can be ended without any
// real readiness event.
type Poller struct {
	fd  int // epoll fd
	efd int // eventfd for user-space wakeups
}

// OpenPoller instantiates a poller.
func OpenPoller() (*Poller, error) {
	p := new(Poller)
	var err error
	if p.fd, err = unix.EpollCreate1(unix.EPOLL_CLOEXEC); err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}
	if p.efd, err = unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC); err != nil {
		_ = unix.Close(p.fd)
		return nil, os.NewSyscallError("eventfd", err)
	}
	if err = p.Add(p.efd, ReadEvents); err != nil {
		_ = unix.Close(p.efd)
		_ = unix.Close(p.fd)
		return nil, err
	}
	return p, nil
}

// Close closes the poller.
func (p *Poller) Close() error {
	if err := os.NewSyscallError("close", unix.Close(p.fd)); err != nil {
		_ = unix.Close(p.efd)
		return err
	}
	return os.NewSyscallError("close", unix.Close(p.efd))
}

// WakeFD returns the fd of the synthetic wakeup primitive, which shows up in
// Wait results like any other readiness signal.
func (p *Poller) WakeFD() int {
	return p.efd
}

var (
	u uint64 = 1
	b        = (*(*[8]byte)(unsafe.Pointer(&u)))[:]
)

// Wake ends one blocked Wait without a real readiness event.
func (p *Poller) Wake() error {
	for {
		_, err := unix.Write(p.efd, b)
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN { // counter saturated, a wakeup is already pending
			err = nil
		}
		return os.NewSyscallError("write", err)
	}
}

// Drain consumes the pending wakeup count so the eventfd goes quiet again.
func (p *Poller) Drain() {
	var buf [8]byte
	_, _ = unix.Read(p.efd, buf[:])
}

// Wait blocks until at least one fd registered with the poller is ready or
// msec elapses (msec < 0 blocks indefinitely, msec == 0 polls), filling el.
// An interrupted wait returns (0, nil) and leaves retry policy to the caller,
// which owns the deadline.
func (p *Poller) Wait(el *EventList, msec int) (int, error) {
	n, err := unix.EpollWait(p.fd, el.events, msec)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, os.NewSyscallError("epoll_wait", err)
	}
	return n, nil
}

// Add registers the given file-descriptor with the given interest set.
func (p *Poller) Add(fd int, events IOEvent) error {
	return os.NewSyscallError("epoll_ctl add",
		unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Fd: int32(fd), Events: events}))
}

// Mod renews the given file-descriptor with the given interest set.
func (p *Poller) Mod(fd int, events IOEvent) error {
	return os.NewSyscallError("epoll_ctl mod",
		unix.EpollCtl(p.fd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Fd: int32(fd), Events: events}))
}

// Delete removes the given file-descriptor from the poller.
func (p *Poller) Delete(fd int) error {
	return os.NewSyscallError("epoll_ctl del", unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, nil))
}

// ReadableBytes reports how many bytes are buffered for reading on fd,
// zero when the kernel cannot tell. TIOCINQ is the Linux spelling of the
// FIONREAD byte-count ioctl.
func ReadableBytes(fd int) int {
	n, err := unix.IoctlGetInt(fd, unix.TIOCINQ)
	if err != nil {
		return 0
	}
	return n
}
