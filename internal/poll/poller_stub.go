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

//go:build !linux

package poll

import "github.com/kevq-io/kevq/pkg/errors"

// IOEvent is the integer type of I/O events.
type IOEvent = uint32

const (
	ErrEvents     IOEvent = 0
	ReadEvents    IOEvent = 0
	WriteEvents   IOEvent = 0
	EdgeTriggered IOEvent = 0
)

// Poller does nothing on unsupported platforms.
type Poller struct{}

// OpenPoller fails on unsupported platforms.
func OpenPoller() (*Poller, error) {
	return nil, errors.ErrUnsupportedPlatform
}

func (*Poller) Close() error  { return errors.ErrUnsupportedPlatform }
func (*Poller) WakeFD() int   { return -1 }
func (*Poller) Wake() error   { return errors.ErrUnsupportedPlatform }
func (*Poller) Drain()        {}
func (*Poller) Wait(*EventList, int) (int, error) {
	return 0, errors.ErrUnsupportedPlatform
}
func (*Poller) Add(int, IOEvent) error { return errors.ErrUnsupportedPlatform }
func (*Poller) Mod(int, IOEvent) error { return errors.ErrUnsupportedPlatform }
func (*Poller) Delete(int) error       { return errors.ErrUnsupportedPlatform }

// ReadableBytes always reports zero on unsupported platforms.
func ReadableBytes(int) int { return 0 }

// EventList is a call-scoped staging area for one wait cycle.
type EventList struct{}

// NewEventList creates an EventList with the given capacity.
func NewEventList(int) *EventList { return &EventList{} }

func (*EventList) Cap() int           { return 0 }
func (*EventList) FD(int) int         { return -1 }
func (*EventList) Events(int) IOEvent { return 0 }
