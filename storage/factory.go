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
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UnsupportedBackendError reports a backend selector Build does not know how
// to construct. It is a configuration mistake surfaced to the integrator,
// never a reason to crash the process.
type UnsupportedBackendError struct {
	Backend string
}

func (e *UnsupportedBackendError) Error() string {
	return fmt.Sprintf("unsupported storage backend: %q (want memory, redis, or mongo)", e.Backend)
}

// Config selects and parameterizes a backend for Build.
type Config struct {
	// Backend is one of "memory" (default when empty), "redis", "mongo".
	Backend string
	// Prefix namespaces keys/collections; empty means DefaultPrefix.
	Prefix string
	// TTL for the networked backends; derive it with TTLFor.
	TTL time.Duration
	// ReadLimit bounds ReadItems where the backend supports a cap.
	ReadLimit int

	// RedisAddr like "127.0.0.1:6379". Used when Backend is "redis" and
	// RedisClient is nil.
	RedisAddr string
	// RedisClient overrides RedisAddr with an existing client.
	RedisClient RedisCmdable

	// MongoURI like "mongodb://127.0.0.1:27017". Used when Backend is
	// "mongo" and MongoDB is nil.
	MongoURI string
	// MongoDatabase names the database holding the group collection.
	// Defaults to the prefix.
	MongoDatabase string
	// MongoDB overrides MongoURI with an existing database handle.
	MongoDB *mongo.Database
}

// Build constructs a Storage from a string selector, mirroring how the demo
// binary and integrations pick a backend from configuration. Libraries that
// already hold a client should construct NewRedis/NewMongo directly.
func Build(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(cfg.Prefix), nil

	case "redis":
		client := cfg.RedisClient
		if client == nil {
			if cfg.RedisAddr == "" {
				return nil, fmt.Errorf("redis backend: no client and no address configured")
			}
			client = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		}
		return NewRedis(client, RedisConfig{
			Prefix:    cfg.Prefix,
			TTL:       cfg.TTL,
			ReadLimit: cfg.ReadLimit,
		}), nil

	case "mongo":
		db := cfg.MongoDB
		if db == nil {
			if cfg.MongoURI == "" {
				return nil, fmt.Errorf("mongo backend: no database and no URI configured")
			}
			client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
			if err != nil {
				return nil, fmt.Errorf("mongo connect %s: %w", cfg.MongoURI, err)
			}
			name := cfg.MongoDatabase
			if name == "" {
				name = cfg.Prefix
			}
			if name == "" {
				name = DefaultPrefix
			}
			db = client.Database(name)
		}
		return NewMongo(ctx, db, MongoConfig{
			Prefix:    cfg.Prefix,
			TTL:       cfg.TTL,
			ReadLimit: cfg.ReadLimit,
		}), nil

	default:
		return nil, &UnsupportedBackendError{Backend: cfg.Backend}
	}
}
