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
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// DefaultRedisReadLimit caps how many items one ReadItems call returns from
// Redis. It matches the historical LRANGE 0..10 window of the original
// album grouper; raise it via RedisConfig.ReadLimit for larger groups.
const DefaultRedisReadLimit = 11

// RedisCmdable is the minimal surface we need from a Redis client.
// *redis.Client and *redis.ClusterClient from github.com/redis/go-redis/v9
// both satisfy it; tests substitute a fake.
type RedisCmdable interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	// Prefix namespaces the two keys kept per group. Empty means
	// DefaultPrefix.
	Prefix string
	// TTL is applied to the claim key at claim time and to the item list on
	// its first push. Use TTLFor to derive it from the receive timeout.
	// Values below one second are raised to one second (EXPIRE granularity).
	TTL time.Duration
	// ReadLimit bounds one ReadItems call. Zero means
	// DefaultRedisReadLimit; negative means unlimited.
	ReadLimit int
}

// Redis stores each group under two keys:
//
//	<prefix>:<group_id>:handled   claim marker, created with SET NX EX
//	<prefix>:<group_id>:messages  list of JSON-encoded items
//
// SET NX EX makes the claim and its expiry a single round trip, which is
// what keeps concurrent claimants down to exactly one winner. Splitting it
// into a check plus a set would reintroduce the race this backend exists to
// avoid.
type Redis struct {
	client    RedisCmdable
	prefix    string
	ttl       time.Duration
	readLimit int
}

// NewRedis wraps client as a Storage. See RedisConfig for the knobs.
func NewRedis(client RedisCmdable, cfg RedisConfig) *Redis {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	ttl := cfg.TTL
	if ttl < time.Second {
		ttl = time.Second
	}
	limit := cfg.ReadLimit
	if limit == 0 {
		limit = DefaultRedisReadLimit
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl, readLimit: limit}
}

func (r *Redis) handledKey(groupID string) string {
	return fmt.Sprintf("%s:%s:handled", r.prefix, groupID)
}

func (r *Redis) messagesKey(groupID string) string {
	return fmt.Sprintf("%s:%s:messages", r.prefix, groupID)
}

// ClaimGroup issues SET NX with the configured expiry. The returned bool is
// Redis's own verdict on whether the key was created, so the at-most-one
// claimant property holds across processes sharing the instance.
func (r *Redis) ClaimGroup(ctx context.Context, groupID string) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.handledKey(groupID), 1, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", r.handledKey(groupID), err)
	}
	return ok, nil
}

// AppendItem pushes the JSON-encoded item onto the group's list. When the
// push reports length 1 this call created the list, so it also arms the
// list's expiry — first writer wins, later appends leave the TTL alone.
func (r *Redis) AppendItem(ctx context.Context, groupID string, item Item) error {
	encoded, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode item seq=%d: %w", item.Seq, err)
	}
	key := r.messagesKey(groupID)
	length, err := r.client.RPush(ctx, key, encoded).Result()
	if err != nil {
		return fmt.Errorf("redis rpush %s: %w", key, err)
	}
	if length == 1 {
		if err := r.client.Expire(ctx, key, r.ttl).Err(); err != nil {
			return fmt.Errorf("redis expire %s: %w", key, err)
		}
	}
	return nil
}

// ReadItems fetches up to the configured read window and sorts by sequence
// number; list order is push order, which concurrent producers may have
// interleaved arbitrarily.
func (r *Redis) ReadItems(ctx context.Context, groupID string) ([]Item, error) {
	stop := int64(-1)
	if r.readLimit > 0 {
		stop = int64(r.readLimit) - 1
	}
	key := r.messagesKey(groupID)
	raw, err := r.client.LRange(ctx, key, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange %s: %w", key, err)
	}
	items := make([]Item, 0, len(raw))
	for _, entry := range raw {
		var item Item
		if err := json.Unmarshal([]byte(entry), &item); err != nil {
			return nil, fmt.Errorf("decode item in %s: %w", key, err)
		}
		items = append(items, item)
	}
	sortItems(items)
	return items, nil
}

// DeleteGroup removes both keys in one DEL. Redis treats missing keys as
// already deleted, which gives us idempotence for free.
func (r *Redis) DeleteGroup(ctx context.Context, groupID string) error {
	if err := r.client.Del(ctx, r.handledKey(groupID), r.messagesKey(groupID)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", groupID, err)
	}
	return nil
}
