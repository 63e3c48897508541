//go:build e2e

package e2e

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"mediagroup"
	"mediagroup/storage"
)

// TestMongoGroupingE2E verifies the document-store backend end to end,
// including claiming a group id that was already delivered and deleted.
// Requires a MongoDB at 127.0.0.1:27017.
func TestMongoGroupingE2E(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI("mongodb://127.0.0.1:27017"))
	if err != nil {
		t.Skipf("Skipping: Mongo client setup failed: %v", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		t.Skipf("Skipping: Mongo not reachable on 127.0.0.1:27017: %v", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	receiveTimeout := 300 * time.Millisecond
	store := storage.NewMongo(ctx, client.Database("mediagroup_e2e"), storage.MongoConfig{
		Prefix: "groups",
		TTL:    storage.TTLFor(receiveTimeout),
	})

	var mu sync.Mutex
	var delivered [][]mediagroup.Item
	done := make(chan struct{}, 2)
	agg := mediagroup.New(func(_ context.Context, items []mediagroup.Item) error {
		mu.Lock()
		delivered = append(delivered, items)
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, mediagroup.Options{
		ReceiveTimeout: receiveTimeout,
		Storage:        store,
	})

	groupID := uuid.NewString()
	for _, seq := range []int64{2, 1, 3} {
		if err := agg.Submit(context.Background(), groupID, mediagroup.Item{Seq: seq}); err != nil {
			t.Fatalf("Submit(%d): %v", seq, err)
		}
	}

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("group never delivered")
	}

	mu.Lock()
	if len(delivered) != 1 {
		mu.Unlock()
		t.Fatalf("deliveries = %d, want 1", len(delivered))
	}
	for i, want := range []int64{1, 2, 3} {
		if delivered[0][i].Seq != want {
			t.Errorf("delivered[%d].Seq = %d, want %d", i, delivered[0][i].Seq, want)
		}
	}
	mu.Unlock()

	// Reusing a delivered-and-deleted id must start a fresh burst, not
	// fail on the unique index.
	if err := agg.Submit(context.Background(), groupID, mediagroup.Item{Seq: 10}); err != nil {
		t.Fatalf("Submit after id reuse: %v", err)
	}
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("reused group never delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(delivered) != 2 {
		t.Fatalf("deliveries = %d, want 2", len(delivered))
	}
	if len(delivered[1]) != 1 || delivered[1][0].Seq != 10 {
		t.Fatalf("second burst = %+v, want [seq 10]", delivered[1])
	}
}

// TestMongoAppendDedupE2E checks a retried append for the same sequence
// number is silently skipped by the items.seq filter.
func TestMongoAppendDedupE2E(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI("mongodb://127.0.0.1:27017"))
	if err != nil {
		t.Skipf("Skipping: Mongo client setup failed: %v", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		t.Skipf("Skipping: Mongo not reachable on 127.0.0.1:27017: %v", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	store := storage.NewMongo(ctx, client.Database("mediagroup_e2e"), storage.MongoConfig{
		Prefix: "dedup",
		TTL:    5 * time.Second,
	})

	groupID := uuid.NewString()
	bg := context.Background()
	if claimed, err := store.ClaimGroup(bg, groupID); err != nil || !claimed {
		t.Fatalf("ClaimGroup = (%v, %v), want (true, nil)", claimed, err)
	}
	for i := 0; i < 3; i++ {
		if err := store.AppendItem(bg, groupID, mediagroup.Item{Seq: 1, Payload: []byte(`{"dup":true}`)}); err != nil {
			t.Fatalf("AppendItem retry %d: %v", i, err)
		}
	}

	items, err := store.ReadItems(bg, groupID)
	if err != nil {
		t.Fatalf("ReadItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("len(items) = %d after retried appends, want 1", len(items))
	}

	_ = store.DeleteGroup(bg, groupID)
}
