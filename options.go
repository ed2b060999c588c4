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

import "github.com/kevq-io/kevq/pkg/logging"

// Option is a function that sets up an option of a queue.
type Option func(opts *Options)

func loadOptions(options ...Option) *Options {
	opts := new(Options)
	for _, option := range options {
		option(opts)
	}
	return opts
}

// Options are configurations set when the queue is opened.
type Options struct {
	// PollEventsCap caps how many native signals one wait cycle stages.
	// Zero picks the default of 128.
	PollEventsCap int

	// Logger is the customized logger for queue-internal logging,
	// the default logger from pkg/logging is used when it is nil.
	Logger logging.Logger

	// LogPath is the local path where logs are written, it works only
	// when Logger is nil.
	LogPath string

	// LogLevel sets the logging level used together with LogPath.
	LogLevel logging.Level
}

// WithOptions sets up all options.
func WithOptions(options Options) Option {
	return func(opts *Options) {
		*opts = options
	}
}

// WithPollEventsCap sets up the staging capacity of one wait cycle.
func WithPollEventsCap(cap int) Option {
	return func(opts *Options) {
		opts.PollEventsCap = cap
	}
}

// WithLogger sets up a customized logger.
func WithLogger(logger logging.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithLogPath sets up the local path of the log file.
func WithLogPath(fileName string) Option {
	return func(opts *Options) {
		opts.LogPath = fileName
	}
}

// WithLogLevel sets up the logging level of the log file.
func WithLogLevel(lvl logging.Level) Option {
	return func(opts *Options) {
		opts.LogLevel = lvl
	}
}
