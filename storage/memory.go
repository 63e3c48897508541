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

package storage

import (
	"context"
	"sync"
)

// Memory is the in-process backend: a single map guarded by a mutex. The
// claim's check-then-insert runs inside one critical section, which is the
// entire atomicity story — no TTL is needed because DeleteGroup removes
// entries explicitly and a process restart clears the map. A group leaked by
// a crashed handler costs one map entry until then.
type Memory struct {
	mu     sync.Mutex
	prefix string
	groups map[string][]Item
}

// NewMemory returns an empty in-process backend. prefix namespaces keys so
// several aggregators can share one instance; empty means DefaultPrefix.
func NewMemory(prefix string) *Memory {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Memory{
		prefix: prefix,
		groups: make(map[string][]Item),
	}
}

func (m *Memory) key(groupID string) string {
	return m.prefix + ":" + groupID
}

// ClaimGroup creates the group's (empty) item list iff it does not exist.
func (m *Memory) ClaimGroup(_ context.Context, groupID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := m.key(groupID)
	if _, ok := m.groups[key]; ok {
		return false, nil
	}
	m.groups[key] = []Item{}
	return true, nil
}

// AppendItem adds item to the group. An unclaimed group is created on the
// spot; the contract leaves that case undefined and this is the least
// surprising reading of it.
func (m *Memory) AppendItem(_ context.Context, groupID string, item Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := m.key(groupID)
	m.groups[key] = append(m.groups[key], item)
	return nil
}

// ReadItems returns a sorted copy so callers can never observe a later
// append mutating the slice they were handed.
func (m *Memory) ReadItems(_ context.Context, groupID string) ([]Item, error) {
	m.mu.Lock()
	items := make([]Item, len(m.groups[m.key(groupID)]))
	copy(items, m.groups[m.key(groupID)])
	m.mu.Unlock()

	sortItems(items)
	return items, nil
}

// DeleteGroup removes the group. Deleting a missing group is a no-op.
func (m *Memory) DeleteGroup(_ context.Context, groupID string) error {
	m.mu.Lock()
	delete(m.groups, m.key(groupID))
	m.mu.Unlock()
	return nil
}

// Len reports the number of in-flight groups. Used by tests and the demo's
// shutdown log; not part of the Storage contract.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.groups)
}
