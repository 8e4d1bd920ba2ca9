// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of carbon-writer.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ClusterCockpit/carbon-writer/internal/cache"
)

func alwaysExists(v bool) ExistenceChecker {
	return ExistsFunc(func(string) bool { return v })
}

func TestNonBatchedModeOrdersByDescendingQueueSize(t *testing.T) {
	c := cache.New(1000)
	c.Store("small", cache.Datapoint{Timestamp: 1, Value: 1})
	for i := 0; i < 5; i++ {
		c.Store("big", cache.Datapoint{Timestamp: int64(i), Value: float64(i)})
	}

	s := New(c, nil, 1000)
	var order []string
	s.Drain(alwaysExists(true), false, func(cand Candidate) {
		order = append(order, cand.Metric)
	})

	require.Equal(t, []string{"big", "small"}, order)
}

func TestCreateBudgetDropsExcessNewMetrics(t *testing.T) {
	c := cache.New(1000)
	c.Store("a", cache.Datapoint{Timestamp: 1, Value: 1})
	c.Store("b", cache.Datapoint{Timestamp: 1, Value: 1})
	c.Store("z", cache.Datapoint{Timestamp: 1, Value: 1})

	s := New(c, nil, 2)
	var yielded []string
	s.Drain(alwaysExists(false), false, func(cand Candidate) {
		yielded = append(yielded, cand.Metric)
	})

	assert.Len(t, yielded, 2)
	assert.True(t, c.IsEmpty())
}

func TestExistingMetricsNeverCountAgainstCreateBudget(t *testing.T) {
	c := cache.New(1000)
	for _, m := range []string{"a", "b", "c", "d"} {
		c.Store(m, cache.Datapoint{Timestamp: 1, Value: 1})
	}

	s := New(c, nil, 1)
	var yielded []string
	s.Drain(alwaysExists(true), false, func(cand Candidate) {
		yielded = append(yielded, cand.Metric)
	})

	assert.Len(t, yielded, 4)
}

type recordingNotifier struct{ calls int }

func (r *recordingNotifier) CacheSpaceAvailable() { r.calls++ }

func TestCacheSpaceAvailableFiresOnceOnCrossing(t *testing.T) {
	c := cache.New(10)
	c.Store("a", cache.Datapoint{Timestamp: 1, Value: 1})
	c.SetTooFull(true)

	n := &recordingNotifier{}
	s := New(c, n, 1000)
	s.Drain(alwaysExists(true), false, func(Candidate) {})

	assert.Equal(t, 1, n.calls)
	assert.False(t, c.TooFull())
}
