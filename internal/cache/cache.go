// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of carbon-writer.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package cache implements the MetricCache: a per-metric FIFO queue of
// datapoints shared between the receiver (producer) and the Writer
// (consumer). It is declared an external collaborator in the writer
// specification but is implemented here so the pipeline runs end to end.
package cache

import "sync"

// Datapoint is one (timestamp, value) sample.
type Datapoint struct {
	Timestamp int64
	Value     float64
}

// Count pairs a metric name with its current queue length, as returned
// by a Counts() snapshot.
type Count struct {
	Metric string
	Size   int
}

// PopResult distinguishes a successful pop from a vanished entry,
// replacing the exception-for-control-flow of the source this was
// modeled on.
type PopResult struct {
	Datapoints []Datapoint
	Got        bool
}

// MetricCache is a FIFO queue of pending datapoints per metric. All
// methods are safe for concurrent use by one receiver and one Writer.
type MetricCache struct {
	mu       sync.RWMutex
	queues   map[string][]Datapoint
	order    []string
	maxSize  int
	tooFull  bool
}

// New returns an empty MetricCache with the given capacity, used only
// to compute the 95% low watermark for cacheSpaceAvailable.
func New(maxSize int) *MetricCache {
	return &MetricCache{
		queues:  make(map[string][]Datapoint),
		maxSize: maxSize,
	}
}

// Store appends a datapoint to metric's queue, creating it if absent.
func (c *MetricCache) Store(metric string, dp Datapoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.queues[metric]; !ok {
		c.order = append(c.order, metric)
	}
	c.queues[metric] = append(c.queues[metric], dp)
}

// Counts returns a snapshot of (metric, queueSize) pairs in insertion
// order of first-seen metric. The snapshot is not invalidated by
// concurrent Store/Pop calls made after it is taken.
func (c *MetricCache) Counts() []Count {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Count, 0, len(c.order))
	for _, m := range c.order {
		if dps, ok := c.queues[m]; ok {
			out = append(out, Count{Metric: m, Size: len(dps)})
		}
	}
	return out
}

// Pop removes and returns all pending datapoints for metric. Got is
// false if the metric vanished between a Counts() snapshot and this
// call — a normal race with the receiver's store path, not an error.
func (c *MetricCache) Pop(metric string) PopResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	dps, ok := c.queues[metric]
	if !ok {
		return PopResult{Got: false}
	}
	delete(c.queues, metric)
	c.order = removeFirst(c.order, metric)
	return PopResult{Datapoints: dps, Got: true}
}

// Size returns the total number of pending datapoints across all metrics.
func (c *MetricCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := 0
	for _, dps := range c.queues {
		total += len(dps)
	}
	return total
}

// IsEmpty reports whether the cache currently holds no datapoints.
func (c *MetricCache) IsEmpty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.queues) == 0
}

// TooFull reports whether the cache-pressure flag is currently set.
func (c *MetricCache) TooFull() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tooFull
}

// SetTooFull sets or clears the cache-pressure flag; the FlushScheduler
// clears it once Size drops below LowWatermark. Store does not consult
// the flag and never refuses samples, and internal/receiver does not
// call SetTooFull.
func (c *MetricCache) SetTooFull(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tooFull = v
}

// LowWatermark returns 95% of the configured max size, the threshold
// below which cacheSpaceAvailable fires while TooFull is set.
func (c *MetricCache) LowWatermark() int {
	return int(float64(c.maxSize) * 0.95)
}

func removeFirst(s []string, v string) []string {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
