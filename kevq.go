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

// Package kevq is a portable event-notification library modeled on the BSD
// kqueue interface. Callers register interest in (identifier, filter) pairs
// through changes and retrieve ready occurrences through a single blocking
// call; on Linux the semantics are synthesized on top of epoll plus an
// eventfd wake primitive.
package kevq

// FilterKind selects the class of watched resource a registration targets.
type FilterKind uint8

const (
	// FilterNone is the unset sentinel. A normalized record carrying it is a
	// deliberate discard marker and never reaches the caller.
	FilterNone FilterKind = iota
	// FilterRead watches a file-descriptor for readability.
	FilterRead
	// FilterWrite watches a file-descriptor for writability.
	FilterWrite
	// FilterUser is armed by registration and fired by a NoteTrigger change.
	FilterUser
	// FilterTimer fires periodically; the registration's Data field carries
	// the period in milliseconds.
	FilterTimer
	// FilterVnode watches a file-system object named by the registration's
	// Path field.
	FilterVnode

	numFilters
)

func (k FilterKind) String() string {
	switch k {
	case FilterRead:
		return "read"
	case FilterWrite:
		return "write"
	case FilterUser:
		return "user"
	case FilterTimer:
		return "timer"
	case FilterVnode:
		return "vnode"
	default:
		return "none"
	}
}

// Flags carries the action bits of a Change and the disposition bits of a
// delivered Event.
type Flags uint16

const (
	// Add registers an (identifier, filter) pair, or updates it in place when
	// it already exists; re-registration never duplicates.
	Add Flags = 1 << iota
	// Delete removes a registration. Deleting an unknown pair is a no-op.
	Delete
	// Enable re-arms a disabled registration.
	Enable
	// Disable mutes a registration without removing it.
	Disable
	// OneShot deletes the registration after its first delivery.
	OneShot
	// Dispatch disables the registration after each delivery until it is
	// explicitly re-enabled.
	Dispatch
	// Clear requests edge-triggered delivery where the backend supports it.
	Clear
	// Receipt echoes the change itself back as an acknowledgment record in
	// place of normal delivery.
	Receipt
	// EOF marks a delivered event whose resource saw the peer go away,
	// disjoint from the byte count.
	EOF
	// Error marks a receipt record whose change failed to apply.
	Error
)

// Fflags understood by FilterUser.
const (
	// NoteTrigger fires a user registration; the triggering change needs no
	// action flags of its own.
	NoteTrigger uint32 = 0x0001
)

// Fflags understood by FilterVnode, also used as an interest mask at
// registration time (zero means all of them).
const (
	// NoteWrite reports a write to the watched object.
	NoteWrite uint32 = 0x0001
	// NoteDelete reports removal of the watched object.
	NoteDelete uint32 = 0x0002
	// NoteRename reports the watched object being renamed.
	NoteRename uint32 = 0x0004
	// NoteAttrib reports attribute/metadata changes.
	NoteAttrib uint32 = 0x0008
	// NoteCreate reports creation under a watched directory.
	NoteCreate uint32 = 0x0010
)

// dispositions are the action bits that persist on a registration and drive
// its state machine at delivery time.
const dispositions = OneShot | Dispatch | Clear

// Change is one registration mutation submitted to SubmitAndWait.
type Change struct {
	// Ident identifies the watched resource within its filter: the fd for
	// read/write, a caller-chosen key for user, timer and vnode.
	Ident uint64
	// Filter names the filter kind the change targets.
	Filter FilterKind
	// Flags carries the action bits.
	Flags Flags
	// Fflags carries filter-specific bits (NoteTrigger, vnode interest mask).
	Fflags uint32
	// Data carries filter-specific arguments, e.g. the timer period in
	// milliseconds.
	Data int64
	// Path names the watched file-system object for FilterVnode.
	Path string
	// UData is opaque caller data echoed back on every delivery.
	UData interface{}
}

// Event is one normalized ready occurrence handed to the caller. It is a
// fresh snapshot per delivery and never aliases registration storage.
type Event struct {
	// Ident echoes the registration identifier.
	Ident uint64
	// Filter names the filter kind that produced the event.
	Filter FilterKind
	// Flags carries disposition and condition bits (OneShot, Dispatch, EOF,
	// Receipt, Error).
	Flags Flags
	// Fflags carries filter-specific bits that fired.
	Fflags uint32
	// Data carries derived data: readable byte count for FilterRead,
	// expiration count for FilterTimer.
	Data int64
	// UData echoes the opaque caller data supplied at registration.
	UData interface{}
}

// signal is one native or synthetic occurrence staged between the backend
// and a filter's normalization step.
type signal struct {
	events uint32
	fflags uint32
	data   int64
}
