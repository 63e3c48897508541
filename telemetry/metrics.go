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

// Package telemetry exposes Prometheus metrics for the aggregator. All
// collectors are global with bounded label cardinality (no per-group
// labels) and registered eagerly; if the host never serves a metrics
// endpoint the registration is harmless.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	groupsClaimed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mediagroup_groups_claimed_total",
		Help: "Groups for which this process won the storage claim and armed a delivery timer",
	})
	itemsBuffered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mediagroup_items_buffered_total",
		Help: "Items appended to group storage",
	})
	groupsDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mediagroup_groups_delivered_total",
		Help: "Completed groups handed to the consumer callback",
	})
	groupSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mediagroup_delivered_group_size",
		Help:    "Distribution of item counts in delivered groups",
		Buckets: []float64{1, 2, 3, 4, 6, 8, 10, 12, 16, 24, 32},
	})
	deliveryErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mediagroup_delivery_errors_total",
		Help: "Failed deliveries by stage (read, empty, delete, handler)",
	}, []string{"stage"})
	singleDeliveries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mediagroup_single_deliveries_total",
		Help: "Ungrouped items delivered immediately as one-item groups",
	})
	rejectedSubmissions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mediagroup_rejected_submissions_total",
		Help: "Ungrouped items rejected in strict mode",
	})
)

func init() {
	prometheus.MustRegister(
		groupsClaimed, itemsBuffered, groupsDelivered, groupSize,
		deliveryErrors, singleDeliveries, rejectedSubmissions,
	)
}

// ObserveClaim records a won claim (one delivery timer armed).
func ObserveClaim() { groupsClaimed.Inc() }

// ObserveBuffered records one item appended to storage.
func ObserveBuffered() { itemsBuffered.Inc() }

// ObserveDelivered records a successful delivery of n items.
func ObserveDelivered(n int) {
	groupsDelivered.Inc()
	groupSize.Observe(float64(n))
}

// ObserveDeliveryError records a failed delivery at the given stage.
func ObserveDeliveryError(stage string) { deliveryErrors.WithLabelValues(stage).Inc() }

// ObserveSingle records an ungrouped item delivered as a singleton.
func ObserveSingle() { singleDeliveries.Inc() }

// ObserveRejected records an ungrouped item rejected in strict mode.
func ObserveRejected() { rejectedSubmissions.Inc() }

// Handler returns the HTTP handler serving the default registry, for hosts
// embedding /metrics in their own mux.
func Handler() http.Handler { return promhttp.Handler() }
