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

// filter adapts one class of watched resource to the native backend. One
// instance exists per kind per queue, owning that kind's registrations.
//
// attach, detach, disarm and rearm are called with the knote's lock held.
// attach must be re-entrant against a knote that already has native
// linkage: re-registration updates linkage in place. detach must tolerate
// a knote whose linkage was never established.
type filter interface {
	kind() FilterKind
	knotes() *knoteMap
	attach(kn *knote, c *Change) error
	detach(kn *knote) error
	// disarm mutes delivery of native signals without dropping the
	// registration (disable / dispatch), rearm reverses it.
	disarm(kn *knote) error
	rearm(kn *knote) error
	// process translates one native or synthetic signal into a caller-facing
	// record. Returning false suppresses the delivery as spurious.
	process(kn *knote, sig signal) (Event, bool)
	close() error
}

// filterBase carries what every filter shares: its kind and its knotes.
type filterBase struct {
	id  FilterKind
	kns knoteMap
}

func newFilterBase(id FilterKind) filterBase {
	return filterBase{id: id, kns: newKnoteMap()}
}

func (b *filterBase) kind() FilterKind  { return b.id }
func (b *filterBase) knotes() *knoteMap { return &b.kns }
