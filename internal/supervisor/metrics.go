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

package supervisor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/steward-sh/steward/internal/health"
)

var (
	serviceUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "steward_service_up",
			Help: "Whether the supervised service process is running (1) or not (0)",
		},
		[]string{"service"},
	)

	serviceHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "steward_service_health",
			Help: "Last reported service health (0=ok, 1=warning, 2=critical, 3=unknown)",
		},
		[]string{"service"},
	)

	serviceRestarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steward_service_restarts_total",
			Help: "Total number of times the service process was restarted",
		},
		[]string{"service"},
	)
)

func recordServiceUp(service string, up bool) {
	v := 0.0
	if up {
		v = 1.0
	}
	serviceUp.WithLabelValues(service).Set(v)
}

func recordServiceHealth(service string, status health.Status) {
	serviceHealth.WithLabelValues(service).Set(float64(status))
}

func recordServiceRestart(service string) {
	serviceRestarts.WithLabelValues(service).Inc()
}
