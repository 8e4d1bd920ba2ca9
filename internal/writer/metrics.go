// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of carbon-writer.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package writer

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the instrumentation counters spec.md §6 names:
// creates, errors, committedPoints (sum), updateTimes (series of
// elapsed seconds), batchSizes (series of batch sizes). Exposed as a
// Prometheus registry rather than a client against an external
// Prometheus, the one use of client_golang in this repository.
type Metrics struct {
	Creates         prometheus.Counter
	Errors          prometheus.Counter
	CommittedPoints prometheus.Counter
	UpdateTimes     prometheus.Histogram
	BatchSizes      prometheus.Histogram
}

// NewMetrics registers the writer's counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Creates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "carbon_writer",
			Name:      "creates_total",
			Help:      "Number of archive create attempts.",
		}),
		Errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "carbon_writer",
			Name:      "errors_total",
			Help:      "Number of failed commit or create operations.",
		}),
		CommittedPoints: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "carbon_writer",
			Name:      "committed_points_total",
			Help:      "Number of datapoints successfully committed to the backend.",
		}),
		UpdateTimes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "carbon_writer",
			Name:      "update_seconds",
			Help:      "Elapsed seconds per update_many/batch_update_many call.",
			Buckets:   prometheus.DefBuckets,
		}),
		BatchSizes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "carbon_writer",
			Name:      "batch_sizes",
			Help:      "Number of metrics committed per batch_update_many call.",
			Buckets:   prometheus.LinearBuckets(1, 10, 10),
		}),
	}
	reg.MustRegister(m.Creates, m.Errors, m.CommittedPoints, m.UpdateTimes, m.BatchSizes)
	return m
}
