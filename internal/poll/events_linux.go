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

import "golang.org/x/sys/unix"

// IOEvent is the integer type of I/O events on Linux.
type IOEvent = uint32

const (
	// ErrEvents represents exceptional events that are not read/write, like
	// socket being closed, reading/writing from/to a closed socket, etc.
	ErrEvents IOEvent = unix.EPOLLERR | unix.EPOLLHUP | unix.EPOLLRDHUP
	// ReadEvents combines EPOLLIN/EPOLLPRI events.
	ReadEvents IOEvent = unix.EPOLLIN | unix.EPOLLPRI
	// WriteEvents is the EPOLLOUT event.
	WriteEvents IOEvent = unix.EPOLLOUT
	// EdgeTriggered switches a registration to edge-triggered delivery.
	EdgeTriggered IOEvent = unix.EPOLLET | unix.EPOLLRDHUP
)

// EventList is a call-scoped staging area for one wait cycle. Every waiter
// owns its own list, so concurrent waiters on the same queue never share
// in-flight native signals.
type EventList struct {
	events []unix.EpollEvent
}

// NewEventList creates an EventList with the given capacity.
func NewEventList(size int) *EventList {
	return &EventList{events: make([]unix.EpollEvent, size)}
}

// Cap returns how many native signals one wait cycle can stage.
func (el *EventList) Cap() int {
	return len(el.events)
}

// FD returns the file-descriptor that the i-th staged signal targets.
func (el *EventList) FD(i int) int {
	return int(el.events[i].Fd)
}

// Events returns the readiness bits of the i-th staged signal.
func (el *EventList) Events(i int) IOEvent {
	return el.events[i].Events
}
