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

// Package main runs the media-group aggregation demo service.
//
// It accepts one item per HTTP request on /submit, groups items by group_id,
// and logs every completed group once its quiet window elapses. The storage
// backend is selectable (-backend memory|redis|mongo) so the same binary
// demonstrates single-process grouping and multi-process grouping over a
// shared Redis or MongoDB.
//
// Quick try:
//
//	go run ./cmd/groupdemo -demo_bursts 3
//	curl -XPOST 'localhost:8080/submit?group_id=album1&seq=2' -d 'second'
//	curl -XPOST 'localhost:8080/submit?group_id=album1&seq=1' -d 'first'
//	# ~1s later the log shows album1 delivered with seq 1,2 in order.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mediagroup"
	"mediagroup/internal/demo"
	"mediagroup/storage"
)

func main() {
	var (
		httpAddr       = flag.String("http_addr", ":8080", "address for the ingest HTTP server")
		backend        = flag.String("backend", "memory", "storage backend: memory, redis, or mongo")
		redisAddr      = flag.String("redis_addr", "127.0.0.1:6379", "redis address (backend=redis)")
		mongoURI       = flag.String("mongo_uri", "mongodb://127.0.0.1:27017", "mongo URI (backend=mongo)")
		prefix         = flag.String("storage_prefix", storage.DefaultPrefix, "key/collection namespace")
		receiveTimeout = flag.Duration("receive_timeout", mediagroup.DefaultReceiveTimeout, "quiet window after a group's first item")
		readLimit      = flag.Int("read_limit", 0, "max items read per group (0 = backend default)")
		allowSingle    = flag.Bool("allow_single", false, "deliver ungrouped items as one-item groups instead of rejecting them")
		demoBursts     = flag.Int("demo_bursts", 0, "submit this many synthetic bursts at startup")
	)
	flag.Parse()

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := storage.Build(ctx, storage.Config{
		Backend:   *backend,
		Prefix:    *prefix,
		TTL:       storage.TTLFor(*receiveTimeout),
		ReadLimit: *readLimit,
		RedisAddr: *redisAddr,
		MongoURI:  *mongoURI,
	})
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Str("backend", *backend).Msg("build storage backend")
	}

	agg := mediagroup.New(func(_ context.Context, items []mediagroup.Item) error {
		seqs := make([]int64, len(items))
		for i, item := range items {
			seqs[i] = item.Seq
		}
		logger.Info().Int("items", len(items)).Ints64("seqs", seqs).Msg("group delivered")
		return nil
	}, mediagroup.Options{
		ReceiveTimeout: *receiveTimeout,
		AllowSingle:    *allowSingle,
		Storage:        store,
		Logger:         &logger,
	})

	mux := http.NewServeMux()
	demo.NewServer(agg, logger).RegisterRoutes(mux)
	server := &http.Server{
		Addr:              *httpAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", *httpAddr).Str("backend", *backend).Msg("ingest server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	if *demoBursts > 0 {
		go submitSyntheticBursts(agg, logger, *demoBursts)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	// Pending delivery timers are dropped on exit; TTL-capable backends
	// reclaim whatever those timers would have delivered.
}

// submitSyntheticBursts feeds a few out-of-order bursts through the
// aggregator so the demo shows grouping without any external client.
func submitSyntheticBursts(agg *mediagroup.Aggregator, logger zerolog.Logger, n int) {
	ctx := context.Background()
	for burst := 0; burst < n; burst++ {
		groupID := uuid.NewString()
		// Reversed sequence order on purpose: delivery must sort it out.
		for seq := int64(3); seq >= 1; seq-- {
			payload := fmt.Sprintf(`{"burst":%d,"part":%d}`, burst, seq)
			item := mediagroup.Item{Seq: seq, Payload: []byte(payload)}
			if err := agg.Submit(ctx, groupID, item); err != nil {
				logger.Error().Err(err).Str("group_id", groupID).Msg("synthetic submit")
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
}
