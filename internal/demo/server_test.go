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

package demo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"mediagroup"
)

func newTestServer(t *testing.T, opts mediagroup.Options) *httptest.Server {
	t.Helper()
	agg := mediagroup.New(func(context.Context, []mediagroup.Item) error { return nil }, opts)
	mux := http.NewServeMux()
	NewServer(agg, zerolog.Nop()).RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

// TestHandleSubmit maps the aggregator's contract onto HTTP statuses.
func TestHandleSubmit(t *testing.T) {
	testCases := []struct {
		name       string
		opts       mediagroup.Options
		method     string
		query      string
		wantStatus int
	}{
		{"GroupedItemAccepted", mediagroup.Options{}, http.MethodPost, "group_id=a1&seq=1", http.StatusAccepted},
		{"MissingSeqRejected", mediagroup.Options{}, http.MethodPost, "group_id=a1", http.StatusBadRequest},
		{"StrictModeRejectsUngrouped", mediagroup.Options{}, http.MethodPost, "seq=1", http.StatusBadRequest},
		{"AllowSingleAcceptsUngrouped", mediagroup.Options{AllowSingle: true}, http.MethodPost, "seq=1", http.StatusAccepted},
		{"GetRejected", mediagroup.Options{}, http.MethodGet, "group_id=a1&seq=1", http.StatusMethodNotAllowed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t, tc.opts)

			req, err := http.NewRequest(tc.method, ts.URL+"/submit?"+tc.query, strings.NewReader(`{"k":"v"}`))
			if err != nil {
				t.Fatalf("NewRequest: %v", err)
			}
			resp, err := ts.Client().Do(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			_ = resp.Body.Close()

			if resp.StatusCode != tc.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tc.wantStatus)
			}
		})
	}
}

// TestMetricsRoute ensures the prometheus endpoint is mounted.
func TestMetricsRoute(t *testing.T) {
	ts := newTestServer(t, mediagroup.Options{})
	resp, err := ts.Client().Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
