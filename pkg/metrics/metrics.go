// Copyright 2026 PingCAP, Inc.
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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics labels.
const (
	LblKind   = "kind"
	LblResult = "result"
	LblFormat = "format"

	opSucc    = "ok"
	opFailed  = "error"
	opSkipped = "skipped"
)

// Estimator metrics.
var (
	EstimateCounter  *prometheus.CounterVec
	EstimateDuration *prometheus.HistogramVec
)

// Sampler metrics.
var (
	SampledPartitions *prometheus.CounterVec
	SampledRows       *prometheus.CounterVec
	SketchDuration    prometheus.Histogram
)

func init() {
	InitMetrics()
}

// InitMetrics initializes all metrics. It is called once in init and may be
// called again by tests that need fresh collectors.
func InitMetrics() {
	EstimateCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "layout_advisor",
			Subsystem: "estimator",
			Name:      "estimate_total",
			Help:      "Counter of candidate size estimations.",
		}, []string{LblKind, LblResult})

	EstimateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "layout_advisor",
			Subsystem: "estimator",
			Name:      "estimate_duration_seconds",
			Help:      "Bucketed histogram of processing time (s) of candidate size estimations.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 20), // 1ms ~ 8.7min
		}, []string{LblKind})

	SampledPartitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "layout_advisor",
			Subsystem: "sampler",
			Name:      "partitions_total",
			Help:      "Counter of sampled partitions.",
		}, []string{LblFormat})

	SampledRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "layout_advisor",
			Subsystem: "sampler",
			Name:      "rows_total",
			Help:      "Counter of rows scanned while sampling.",
		}, []string{LblFormat})

	SketchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "layout_advisor",
			Subsystem: "sampler",
			Name:      "sketch_duration_seconds",
			Help:      "Bucketed histogram of time (s) spent building a sketch.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 20),
		})
}

// RegisterMetrics registers metrics.
func RegisterMetrics(registry prometheus.Registerer) {
	registry.MustRegister(EstimateCounter)
	registry.MustRegister(EstimateDuration)
	registry.MustRegister(SampledPartitions)
	registry.MustRegister(SampledRows)
	registry.MustRegister(SketchDuration)
}

// RetLabel returns "ok" when err == nil and "error" when err != nil.
func RetLabel(err error) string {
	if err == nil {
		return opSucc
	}
	return opFailed
}

// SkippedLabel is the result label of an estimation that did not produce a size.
func SkippedLabel() string {
	return opSkipped
}
