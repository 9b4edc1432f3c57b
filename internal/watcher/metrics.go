// Copyright 2026 The Steward Authors
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

package watcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// watchEvents tracks raw file events that passed filtering
	watchEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steward_watcher_events_total",
			Help: "Total accepted file events by watcher name and event type",
		},
		[]string{"watcher", "event_type"},
	)

	// watchBatches tracks settled batches delivered to the supervisor
	watchBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steward_watcher_batches_total",
			Help: "Total settled event batches delivered by watcher name",
		},
		[]string{"watcher"},
	)

	// watchErrors tracks errors during event processing
	watchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steward_watcher_errors_total",
			Help: "Total watcher errors by watcher name and error type",
		},
		[]string{"watcher", "error_type"},
	)

	// watchRateLimited tracks batches dropped by the rate limit
	watchRateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steward_watcher_rate_limited_total",
			Help: "Total batches dropped by the rate limit by watcher name",
		},
		[]string{"watcher"},
	)

	// watchExcluded tracks events rejected by pattern matching
	watchExcluded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steward_watcher_pattern_excluded_total",
			Help: "Total pattern-excluded file events by watcher name",
		},
		[]string{"watcher"},
	)
)

// recordWatchEvent increments the accepted event counter
func recordWatchEvent(watcher, eventType string) {
	watchEvents.WithLabelValues(watcher, eventType).Inc()
}

// recordWatchBatch increments the delivered batch counter
func recordWatchBatch(watcher string) {
	watchBatches.WithLabelValues(watcher).Inc()
}

// recordWatchError increments the error counter
func recordWatchError(watcher, errorType string) {
	watchErrors.WithLabelValues(watcher, errorType).Inc()
}

// recordWatchRateLimited increments the rate-limited counter
func recordWatchRateLimited(watcher string) {
	watchRateLimited.WithLabelValues(watcher).Inc()
}

// recordWatchExcluded increments the pattern-excluded counter
func recordWatchExcluded(watcher string) {
	watchExcluded.WithLabelValues(watcher).Inc()
}
