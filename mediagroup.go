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

// Package mediagroup buffers bursts of individually delivered items that
// share a group id and hands each completed group to a consumer callback
// exactly once, sorted by sequence number.
//
// There is no explicit "group complete" signal in the motivating use case
// (messaging clients deliver multi-item albums one item at a time), so the
// completeness detector is silence: the first item of a group arms a
// one-shot timer for ReceiveTimeout, and when it fires the group is read,
// deleted, and delivered. The timer is armed once, at claim time — it is not
// reset by later items, so a burst that keeps arriving past the window is
// delivered with whatever landed inside it and the stragglers start a fresh
// group.
//
// All per-group state lives in a pluggable storage backend (see package
// storage); the aggregator itself is stateless between calls, which is what
// lets several processes share a Redis or MongoDB backend and still deliver
// each group once.
package mediagroup

import (
	"context"
	"errors"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"mediagroup/storage"
	"mediagroup/telemetry"
)

// Item re-exports the storage item so callers of Submit do not need to
// import the storage package for the common case.
type Item = storage.Item

// Handler consumes one completed group. It is invoked exactly once per
// group, after the group's storage state has been deleted; a handler error
// is logged, not retried — the group is already committed as done.
type Handler func(ctx context.Context, items []Item) error

// ErrNotAGroup is returned by Submit for an item without a group id while
// the aggregator requires one (AllowSingle is false).
var ErrNotAGroup = errors.New("mediagroup: item does not belong to a group")

// DefaultReceiveTimeout is the quiet window after a group's first item.
const DefaultReceiveTimeout = time.Second

// Options configures an Aggregator. The zero value is usable: in-process
// storage, one-second window, strict grouping, no logging.
type Options struct {
	// ReceiveTimeout is how long after the first item the group is
	// considered complete. Armed once per group, never reset on later
	// items. Zero means DefaultReceiveTimeout.
	ReceiveTimeout time.Duration

	// AllowSingle delivers an item submitted without a group id as a
	// one-item group, synchronously inside Submit. When false (default)
	// such items are rejected with ErrNotAGroup.
	AllowSingle bool

	// Storage holds the per-group state. Nil means an in-process memory
	// backend namespaced by StoragePrefix.
	Storage storage.Storage

	// StoragePrefix namespaces the default memory backend. Ignored when
	// Storage is set (backends carry their own prefix).
	StoragePrefix string

	// Scheduler arms the per-group delivery timer. Nil means a real-clock
	// scheduler; tests inject one built on quartz.NewMock.
	Scheduler Scheduler

	// Logger receives delivery-path failures, which have no caller to
	// propagate to. Nil means no logging.
	Logger *zerolog.Logger
}

// Aggregator orchestrates claim → buffer → delayed fire → deliver → cleanup
// for every group id flowing through Submit.
type Aggregator struct {
	handler        Handler
	store          storage.Storage
	sched          Scheduler
	timeout        time.Duration
	deliverTimeout time.Duration
	allowSingle    bool
	logger         zerolog.Logger
}

// New builds an Aggregator delivering completed groups to handler.
func New(handler Handler, opts Options) *Aggregator {
	timeout := opts.ReceiveTimeout
	if timeout <= 0 {
		timeout = DefaultReceiveTimeout
	}
	store := opts.Storage
	if store == nil {
		store = storage.NewMemory(opts.StoragePrefix)
	}
	sched := opts.Scheduler
	if sched == nil {
		sched = NewClockScheduler(quartz.NewReal())
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Aggregator{
		handler: handler,
		store:   store,
		sched:   sched,
		timeout: timeout,
		// Delivery has no caller-supplied context, so its storage calls get
		// a deadline matching the backend state's lifetime.
		deliverTimeout: storage.TTLFor(timeout),
		allowSingle:    opts.AllowSingle,
		logger:         logger,
	}
}

// Submit feeds one item into its group. The first submitter for an unseen
// group id wins the storage claim and arms the delivery timer; everyone,
// winner included, then appends the item. The append runs after the claim
// within the same call, so the claiming item is always in storage long
// before the (strictly positive) timeout elapses.
//
// Claim-phase errors are deliberately not propagated: a claim whose outcome
// is unknown is treated as not acquired, because arming a timer on an
// ambiguous claim risks a second delivery while staying quiet merely risks
// an ungrouped item. Append errors do propagate — the caller may retry the
// whole submission.
func (a *Aggregator) Submit(ctx context.Context, groupID string, item Item) error {
	if groupID == "" {
		if !a.allowSingle {
			telemetry.ObserveRejected()
			return ErrNotAGroup
		}
		telemetry.ObserveSingle()
		return a.handler(ctx, []Item{item})
	}

	claimed, err := a.store.ClaimGroup(ctx, groupID)
	if err != nil {
		a.logger.Warn().Err(err).Str("group_id", groupID).
			Msg("claim outcome unknown, treating as not claimed")
		claimed = false
	}
	if claimed {
		telemetry.ObserveClaim()
		a.sched.After(a.timeout, func() {
			a.deliver(groupID)
		})
	}

	if err := a.store.AppendItem(ctx, groupID, item); err != nil {
		return err
	}
	telemetry.ObserveBuffered()
	return nil
}

// deliver runs when a group's timer fires: read everything, delete the
// group, then invoke the handler. Deletion precedes invocation so a
// pathological re-arrival of the same id during a slow handler claims a
// fresh group instead of corrupting this one; the cost is that a handler
// failure after deletion loses the group, which is the accepted tradeoff
// for at-most-once delivery.
//
// There is no caller to return errors to here, so every failure is logged
// and the storage state is left for TTL cleanup rather than half-deleted.
func (a *Aggregator) deliver(groupID string) {
	ctx, cancel := context.WithTimeout(context.Background(), a.deliverTimeout)
	defer cancel()
	log := a.logger.With().Str("group_id", groupID).Logger()

	items, err := a.store.ReadItems(ctx, groupID)
	if err != nil {
		telemetry.ObserveDeliveryError("read")
		log.Error().Err(err).Msg("read items for delivery")
		return
	}
	if len(items) == 0 {
		// Claimed but nothing appended: the claiming Submit's append must
		// have failed. Delete the claim record here so backends without TTL
		// expiry (the in-process one) don't leak it and the id stays
		// claimable; with nothing buffered there is no double-delivery risk.
		telemetry.ObserveDeliveryError("empty")
		log.Warn().Msg("group fired with no items")
		if err := a.store.DeleteGroup(ctx, groupID); err != nil {
			log.Error().Err(err).Msg("delete empty group")
		}
		return
	}

	if err := a.store.DeleteGroup(ctx, groupID); err != nil {
		telemetry.ObserveDeliveryError("delete")
		log.Error().Err(err).Msg("delete group before delivery")
		return
	}

	if err := a.handler(ctx, items); err != nil {
		telemetry.ObserveDeliveryError("handler")
		log.Error().Err(err).Int("items", len(items)).Msg("group handler failed")
		return
	}
	telemetry.ObserveDelivered(len(items))
}
