// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of carbon-writer.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package scheduler implements the FlushScheduler: the ordering and
// admission-control layer between the MetricCache and the Writer. It
// produces a lazy sequence of (metric, datapoints, existsOnDisk)
// triples, applying the per-minute create budget along the way.
package scheduler

import (
	"sort"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"golang.org/x/time/rate"

	"github.com/ClusterCockpit/carbon-writer/internal/cache"
)

// Candidate is one triple the scheduler yields to the Writer.
type Candidate struct {
	Metric       string
	Datapoints   []cache.Datapoint
	ExistsOnDisk bool
}

// ExistenceChecker resolves whether a metric's archive already exists,
// satisfied by a StorageBackend (its single-metric Exists call) or a
// precomputed set from batch_exists.
type ExistenceChecker interface {
	Exists(metric string) bool
}

// existsFunc adapts a plain function to ExistenceChecker.
type existsFunc func(metric string) bool

func (f existsFunc) Exists(metric string) bool { return f(metric) }

// ExistsFunc wraps a function as an ExistenceChecker.
func ExistsFunc(f func(metric string) bool) ExistenceChecker { return existsFunc(f) }

// CacheFullNotifier is invoked when the cache drops back below its low
// watermark while it was previously marked too full.
type CacheFullNotifier interface {
	CacheSpaceAvailable()
}

// FlushScheduler orders a MetricCache snapshot and applies the
// per-minute archive-creation budget before handing candidates to the
// Writer.
type FlushScheduler struct {
	cache        *cache.MetricCache
	notify       CacheFullNotifier
	createBudget *rate.Limiter
}

// New returns a FlushScheduler draining c, notifying notify when cache
// pressure clears, admitting new archives at an average rate of
// maxCreatesPerMinute per minute. The create budget is a token bucket
// refilling one token every minute/maxCreatesPerMinute with a burst
// equal to the full budget, so the first burst of new metrics after
// startup is admitted immediately. It does not cap creates within a
// single one-minute window at maxCreatesPerMinute: tokens refilled
// during the minute after a full burst admit further creates, up to
// nearly twice the budget in that window.
func New(c *cache.MetricCache, notify CacheFullNotifier, maxCreatesPerMinute int) *FlushScheduler {
	limit := rate.Every(time.Minute / time.Duration(maxCreatesPerMinute))
	return &FlushScheduler{
		cache:        c,
		notify:       notify,
		createBudget: rate.NewLimiter(limit, maxCreatesPerMinute),
	}
}

// Drain produces one ordered pass over a snapshot of the cache,
// calling yield for each admitted candidate. Batched mode (existence
// pre-resolved via existing) skips the queueSize sort; non-batched mode
// sorts by descending queue size first. Drain returns once the
// snapshot is exhausted; the Writer takes a new snapshot by calling
// Drain again.
func (s *FlushScheduler) Drain(existing ExistenceChecker, batched bool, yield func(Candidate)) {
	counts := s.cache.Counts()
	if !batched {
		sort.SliceStable(counts, func(i, j int) bool {
			return counts[i].Size > counts[j].Size
		})
	}

	for _, c := range counts {
		if s.cache.TooFull() && s.cache.Size() < s.cache.LowWatermark() {
			s.cache.SetTooFull(false)
			if s.notify != nil {
				s.notify.CacheSpaceAvailable()
			}
		}

		existsOnDisk := existing.Exists(c.Metric)

		if !existsOnDisk && !s.createBudget.Allow() {
			res := s.cache.Pop(c.Metric)
			if !res.Got {
				cclog.Debugf("[SCHEDULER]> pop on vanished metric %q after create-budget drop", c.Metric)
			}
			continue
		}

		res := s.cache.Pop(c.Metric)
		if !res.Got {
			cclog.Debugf("[SCHEDULER]> pop on vanished metric %q", c.Metric)
			continue
		}

		yield(Candidate{Metric: c.Metric, Datapoints: res.Datapoints, ExistsOnDisk: existsOnDisk})
	}
}
