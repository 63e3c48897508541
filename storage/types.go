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

// Package storage provides the pluggable backends that hold in-flight group
// state for the mediagroup aggregator: an in-process map, a Redis adapter,
// and a MongoDB adapter.
//
// All backends satisfy the same contract: ClaimGroup is an atomic
// test-and-set (exactly one caller per group lifetime observes true),
// AppendItem never loses concurrent writes for the same group, ReadItems
// returns items sorted by their sequence number, and DeleteGroup is
// idempotent. The networked backends additionally expire abandoned groups
// via a TTL so a crashed consumer never leaks state forever.
package storage

import (
	"context"
	"encoding/json"
	"sort"
	"time"
)

// Item is one element of a group: an opaque, already-serialized payload plus
// the producer-assigned monotonic sequence number used to reconstruct the
// group's order at read time. Arrival order is not trusted; concurrent
// submitters and networked backends may reorder writes.
type Item struct {
	Seq     int64           `json:"seq" bson:"seq"`
	Payload json.RawMessage `json:"payload,omitempty" bson:"payload,omitempty"`
}

// Storage is the contract the aggregator programs against.
//
// Callers must claim a group (or observe that it is already claimed) before
// appending to it; appending to a never-claimed group is undefined. Every
// method may block on network I/O, so all of them take a context.
type Storage interface {
	// ClaimGroup atomically records groupID as handled. It returns true iff
	// this call created the claim; concurrent and later calls return false
	// until the group is deleted. Implementations must make the
	// check-and-insert a single atomic step — a separate read followed by a
	// write is a race.
	ClaimGroup(ctx context.Context, groupID string) (bool, error)

	// AppendItem adds item to the group's list. Concurrent appends for the
	// same group must all land (no lost updates); relative order is not
	// guaranteed and is reconstructed from Item.Seq at read time.
	AppendItem(ctx context.Context, groupID string, item Item) error

	// ReadItems returns the items appended so far, sorted ascending by Seq.
	// Backends with a configured read limit return at most that many items.
	// A missing or deleted group reads as an empty slice, not an error.
	ReadItems(ctx context.Context, groupID string) ([]Item, error)

	// DeleteGroup removes the claim record and the item list. Deleting a
	// group that does not exist is a no-op.
	DeleteGroup(ctx context.Context, groupID string) error
}

// DefaultPrefix namespaces keys and collections when the caller does not
// pick one, so multiple tenants can share a backend instance.
const DefaultPrefix = "mediagroup"

// TTLFor derives the backend expiry from the aggregator's receive timeout:
// twice the timeout, never below one second. The doubling leaves the state
// alive through the whole quiet window plus the delivery itself; the floor
// exists because Redis EXPIRE only takes whole seconds.
func TTLFor(receiveTimeout time.Duration) time.Duration {
	ttl := 2 * receiveTimeout
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

// sortItems orders items ascending by sequence number. Equal sequence
// numbers keep their relative order so retried appends stay adjacent.
func sortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Seq < items[j].Seq
	})
}
