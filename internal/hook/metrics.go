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

package hook

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run result labels.
const (
	resultCompleted   = "completed"
	resultSpawnFailed = "spawn_failed"
	resultWaitFailed  = "wait_failed"
	resultKilled      = "killed"
)

var (
	// hookRuns tracks hook executions by kind and result
	hookRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steward_hook_runs_total",
			Help: "Total hook executions by hook kind and result",
		},
		[]string{"hook", "result"},
	)

	// hookRunDuration tracks wall time of hook executions
	hookRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "steward_hook_run_duration_seconds",
			Help:    "Wall time of hook executions by hook kind",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		},
		[]string{"hook"},
	)

	// hookCompiles tracks hook compilations by kind and outcome
	hookCompiles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steward_hook_compiles_total",
			Help: "Total hook compilations by hook kind and outcome",
		},
		[]string{"hook", "outcome"},
	)
)

// recordRun increments the run counter and observes the duration
func recordRun(kind Kind, result string, elapsed time.Duration) {
	hookRuns.WithLabelValues(kind.FileName(), result).Inc()
	if result == resultCompleted {
		hookRunDuration.WithLabelValues(kind.FileName()).Observe(elapsed.Seconds())
	}
}

// recordCompile increments the compile counter
func recordCompile(kind Kind, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	hookCompiles.WithLabelValues(kind.FileName(), outcome).Inc()
}
