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

// Package errors defines common errors for kevq.
package errors

import "errors"

var (
	// ErrBackendInit occurs when the native event backend (epoll/eventfd) cannot be acquired.
	ErrBackendInit = errors.New("kevq: failed to initialize the native event backend")
	// ErrBackendWait occurs when the native wait primitive reports a non-timeout failure.
	ErrBackendWait = errors.New("kevq: native wait on the event backend failed")
	// ErrInvalidQueue occurs when operating on a nil or closed queue.
	ErrInvalidQueue = errors.New("kevq: operation on an invalid or closed queue")
	// ErrQueueShutdown occurs when a blocked wait is ended by the queue closing underneath it.
	ErrQueueShutdown = errors.New("kevq: queue is shutting down")
	// ErrProtocolViolation occurs when a native signal cannot be resolved to a registration.
	// It indicates an internal bookkeeping bug; it fails the single wait call that
	// observed it and the queue remains usable.
	ErrProtocolViolation = errors.New("kevq: native signal does not resolve to a registration")
	// ErrUnsupportedFilter occurs when a change names an unknown filter kind.
	ErrUnsupportedFilter = errors.New("kevq: unknown filter kind")
	// ErrKnoteNotFound occurs when enabling, disabling or triggering an identifier
	// that has no registration. Deleting an unknown identifier is NOT an error.
	ErrKnoteNotFound = errors.New("kevq: no registration for the given identifier")
	// ErrInvalidTimerPeriod occurs when a timer registration carries a non-positive period.
	ErrInvalidTimerPeriod = errors.New("kevq: timer period must be positive")
	// ErrWatchPathRequired occurs when a vnode registration carries no path.
	ErrWatchPathRequired = errors.New("kevq: vnode registration requires a path")
	// ErrUnsupportedPlatform occurs when kevq is built on a platform without a backend.
	ErrUnsupportedPlatform = errors.New("kevq: platform not supported")
	// ErrUnsupportedOp occurs when calling a method that is not supported.
	ErrUnsupportedOp = errors.New("kevq: unsupported operation")
)
