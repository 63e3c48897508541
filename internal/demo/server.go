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

// Package demo implements the HTTP ingest surface for the groupdemo binary.
// It exists to exercise the aggregator end to end; real integrations feed
// Submit from their own transport (a bot framework, a queue consumer, ...).
package demo

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"mediagroup"
	"mediagroup/telemetry"
)

// Server accepts one item per request and pushes it into the aggregator.
type Server struct {
	agg    *mediagroup.Aggregator
	logger zerolog.Logger
}

// NewServer wires the handler around an aggregator.
func NewServer(agg *mediagroup.Aggregator, logger zerolog.Logger) *Server {
	return &Server{agg: agg, logger: logger}
}

// RegisterRoutes sets up the HTTP routes on the given ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/submit", s.handleSubmit)
	mux.Handle("/metrics", telemetry.Handler())
}

// handleSubmit maps one HTTP request to one Submit call:
//
//	POST /submit?group_id=<id>&seq=<n>   body = opaque payload
//
// group_id may be omitted to exercise singleton/strict behavior; seq is
// required because order reconstruction depends on it.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	seq, err := strconv.ParseInt(r.URL.Query().Get("seq"), 10, 64)
	if err != nil {
		http.Error(w, "seq must be an integer", http.StatusBadRequest)
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	groupID := r.URL.Query().Get("group_id")
	err = s.agg.Submit(r.Context(), groupID, mediagroup.Item{Seq: seq, Payload: payload})
	switch {
	case errors.Is(err, mediagroup.ErrNotAGroup):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case err != nil:
		s.logger.Error().Err(err).Str("group_id", groupID).Int64("seq", seq).
			Msg("submit failed")
		http.Error(w, "storage failure", http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusAccepted)
	}
}
