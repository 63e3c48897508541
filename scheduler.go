// Copyright 2026 Esteban Alvarez. All Rights Reserved.
//
// Created: August 2026
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

package mediagroup

import (
	"time"

	"github.com/coder/quartz"
)

// Scheduler runs a function once, no earlier than d after the call. The
// aggregator arms exactly one timer per claimed group and never cancels it,
// so no cancellation surface is needed. A scheduler torn down with timers
// pending simply drops them; backend TTLs reclaim the orphaned group state.
type Scheduler interface {
	After(d time.Duration, fn func())
}

// clockScheduler is the default Scheduler, backed by a quartz clock so tests
// can swap in quartz.NewMock and drive time by hand.
type clockScheduler struct {
	clock quartz.Clock
}

// NewClockScheduler wraps a quartz clock as a Scheduler.
func NewClockScheduler(clock quartz.Clock) Scheduler {
	return &clockScheduler{clock: clock}
}

func (s *clockScheduler) After(d time.Duration, fn func()) {
	s.clock.AfterFunc(d, fn)
}
