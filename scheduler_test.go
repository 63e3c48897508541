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
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/quartz"
)

// TestClockScheduler_FiresOnceAfterDelay pins the Scheduler contract on the
// default implementation: fn runs no earlier than d and at most once.
func TestClockScheduler_FiresOnceAfterDelay(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mock := quartz.NewMock(t)
	sched := NewClockScheduler(mock)

	var fired atomic.Int64
	sched.After(time.Second, func() { fired.Add(1) })

	mock.Advance(500 * time.Millisecond).MustWait(ctx)
	if fired.Load() != 0 {
		t.Fatal("fired before the delay elapsed")
	}

	mock.Advance(500 * time.Millisecond).MustWait(ctx)
	if got := fired.Load(); got != 1 {
		t.Fatalf("fired %d times, want 1", got)
	}

	// More time passing must not re-fire a one-shot.
	sched.After(time.Hour, func() {}) // keep the mock busy past the next advance
	mock.Advance(time.Minute).MustWait(ctx)
	if got := fired.Load(); got != 1 {
		t.Fatalf("fired %d times after extra advance, want 1", got)
	}
}

// TestClockScheduler_IndependentTimers checks two armed timers fire
// independently in delay order.
func TestClockScheduler_IndependentTimers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mock := quartz.NewMock(t)
	sched := NewClockScheduler(mock)

	var first, second atomic.Bool
	sched.After(time.Second, func() { first.Store(true) })
	sched.After(2*time.Second, func() { second.Store(true) })

	mock.Advance(time.Second).MustWait(ctx)
	if !first.Load() || second.Load() {
		t.Fatalf("after 1s: first=%v second=%v, want true/false", first.Load(), second.Load())
	}
	mock.Advance(time.Second).MustWait(ctx)
	if !second.Load() {
		t.Fatal("second timer never fired")
	}
}
