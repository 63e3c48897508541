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
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig configures the MongoDB backend.
type MongoConfig struct {
	// Prefix names the collection holding group documents. Empty means
	// DefaultPrefix.
	Prefix string
	// TTL stamps each group document's expiresAt field; the collection's TTL
	// index reaps expired documents in the background. Use TTLFor to derive
	// it from the receive timeout.
	TTL time.Duration
	// ReadLimit bounds one ReadItems call. Zero or negative means unlimited.
	ReadLimit int
}

// mongoCollection is the minimal surface we need from *mongo.Collection.
// Tests substitute a fake so the claim and dedup mappings are covered
// without a server.
type mongoCollection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
}

// Mongo keeps one document per group in a single collection:
//
//	{_id: <group_id>, expiresAt: <time>, items: [{seq, payload}, ...]}
//
// The claim rides on the collection's unique _id index: the insert that
// succeeds is the claimant, a duplicate-key failure means someone else got
// there first. Expiry is a TTL index on expiresAt rather than a
// per-operation call, so every document is stamped at creation.
type Mongo struct {
	coll      mongoCollection
	ttl       time.Duration
	readLimit int
}

type groupDoc struct {
	ID        string    `bson:"_id"`
	ExpiresAt time.Time `bson:"expiresAt"`
	Items     []Item    `bson:"items"`
}

// NewMongo binds the backend to db.<prefix> and ensures the TTL index
// exists. Index creation races between processes bootstrapping the same
// collection are benign (the server rejects the duplicate with an "already
// exists" shape), so any error from CreateOne is ignored rather than made
// fatal; a genuinely broken connection will surface on the first claim.
func NewMongo(ctx context.Context, db *mongo.Database, cfg MongoConfig) *Mongo {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	ttl := cfg.TTL
	if ttl < time.Second {
		ttl = time.Second
	}
	coll := db.Collection(prefix)

	_, _ = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})

	return newMongo(coll, ttl, cfg.ReadLimit)
}

// newMongo binds the adapter to an already-prepared collection. Shared by
// NewMongo and the in-memory fake in tests.
func newMongo(coll mongoCollection, ttl time.Duration, readLimit int) *Mongo {
	return &Mongo{coll: coll, ttl: ttl, readLimit: readLimit}
}

// ClaimGroup inserts the group document. The unique index on _id makes the
// insert the atomic test-and-set; a duplicate-key failure is the normal
// "already claimed" answer, not an error.
func (m *Mongo) ClaimGroup(ctx context.Context, groupID string) (bool, error) {
	_, err := m.coll.InsertOne(ctx, groupDoc{
		ID:        groupID,
		ExpiresAt: time.Now().UTC().Add(m.ttl),
		Items:     []Item{},
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("mongo insert group %s: %w", groupID, err)
	}
	return true, nil
}

// AppendItem pushes the item into the group's embedded array. The filter
// excludes documents that already hold this sequence number, which turns a
// retried append into a silent no-op — Mongo has no native "push if absent"
// for array elements, so dedup is done in the match instead.
func (m *Mongo) AppendItem(ctx context.Context, groupID string, item Item) error {
	filter := bson.M{
		"_id":       groupID,
		"items.seq": bson.M{"$ne": item.Seq},
	}
	update := bson.M{"$push": bson.M{"items": item}}
	if _, err := m.coll.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("mongo append to group %s: %w", groupID, err)
	}
	return nil
}

// ReadItems loads the group document and sorts its embedded array by
// sequence number. A missing document reads as empty.
func (m *Mongo) ReadItems(ctx context.Context, groupID string) ([]Item, error) {
	var doc groupDoc
	err := m.coll.FindOne(ctx, bson.M{"_id": groupID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("mongo read group %s: %w", groupID, err)
	}
	items := doc.Items
	sortItems(items)
	if m.readLimit > 0 && len(items) > m.readLimit {
		items = items[:m.readLimit]
	}
	return items, nil
}

// DeleteGroup removes the group document; deleting a missing document
// matches nothing and is a no-op.
func (m *Mongo) DeleteGroup(ctx context.Context, groupID string) error {
	if _, err := m.coll.DeleteOne(ctx, bson.M{"_id": groupID}); err != nil {
		return fmt.Errorf("mongo delete group %s: %w", groupID, err)
	}
	return nil
}
