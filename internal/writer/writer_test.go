// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of carbon-writer.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package writer

import (
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ClusterCockpit/carbon-writer/internal/cache"
	"github.com/ClusterCockpit/carbon-writer/internal/schemaregistry"
	"github.com/ClusterCockpit/carbon-writer/internal/scheduler"
	"github.com/ClusterCockpit/carbon-writer/internal/storage"
)

type fakeBackend struct {
	mu        sync.Mutex
	created   []string
	existing  map[string]bool
	updates   map[string][]cache.Datapoint
	failUpdateFor map[string]bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		existing: make(map[string]bool),
		updates:  make(map[string][]cache.Datapoint),
		failUpdateFor: make(map[string]bool),
	}
}

func (b *fakeBackend) Exists(metric string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.existing[metric], nil
}

func (b *fakeBackend) Create(metric string, archives []schemaregistry.ArchiveSpec, xff float64, method schemaregistry.AggregationMethod) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.created = append(b.created, metric)
	b.existing[metric] = true
	return nil
}

func (b *fakeBackend) UpdateMany(metric string, dps []cache.Datapoint) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failUpdateFor[metric] {
		return assert.AnError
	}
	b.updates[metric] = append(b.updates[metric], dps...)
	return nil
}

func (b *fakeBackend) Info(metric string) (storage.Info, error) { return storage.Info{}, nil }

func (b *fakeBackend) SetAggregationMethod(metric string, m schemaregistry.AggregationMethod) (schemaregistry.AggregationMethod, error) {
	return 0, nil
}

type fakeSeenLog struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeSeenLog() *fakeSeenLog { return &fakeSeenLog{seen: map[string]bool{}} }

func (f *fakeSeenLog) Seen(metric string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	was := f.seen[metric]
	f.seen[metric] = true
	return was
}

func defaultSchema() *schemaregistry.SchemaRegistry {
	storageSchemas := []schemaregistry.StorageSchema{
		{
			Name:     "default",
			Pattern:  regexp.MustCompile(".*"),
			Archives: []schemaregistry.ArchiveSpec{{SecondsPerPoint: 60, PointCount: 1440}},
		},
	}
	return schemaregistry.New(storageSchemas, nil)
}

func newTestWriter(t *testing.T, c *cache.MetricCache, backend storage.Backend, cfg Config) (*Writer, *fakeSeenLog) {
	sched := scheduler.New(c, nil, 1000)
	seen := newFakeSeenLog()
	metrics := NewMetrics(prometheus.NewRegistry())
	w := New(c, sched, backend, defaultSchema(), seen, metrics, cfg)
	return w, seen
}

func TestCommitSingleCreatesThenUpdates(t *testing.T) {
	c := cache.New(1000)
	c.Store("a.b.c", cache.Datapoint{Timestamp: 1, Value: 1})
	backend := newFakeBackend()

	w, _ := newTestWriter(t, c, backend, Config{MaxUpdatesPerSecond: 1000})
	w.drainCachedDataPoints()

	assert.Equal(t, []string{"a.b.c"}, backend.created)
	assert.Equal(t, []cache.Datapoint{{1, 1}}, backend.updates["a.b.c"])
}

func TestCommitSingleUpdateFailureIncrementsErrors(t *testing.T) {
	c := cache.New(1000)
	c.Store("x", cache.Datapoint{Timestamp: 1, Value: 1})
	backend := newFakeBackend()
	backend.existing["x"] = true
	backend.failUpdateFor["x"] = true

	w, _ := newTestWriter(t, c, backend, Config{MaxUpdatesPerSecond: 1000})
	w.drainCachedDataPoints()

	assert.Empty(t, backend.updates["x"])

	var errs dto.Metric
	require.NoError(t, w.metrics.Errors.Write(&errs))
	assert.Equal(t, 1.0, errs.GetCounter().GetValue())
}

func TestBatchedCommitAccumulatesThenCallsOnce(t *testing.T) {
	c := cache.New(1000)
	batchBackend := &fakeBatchBackend{fakeBackend: newFakeBackend()}
	for i := 0; i < 10; i++ {
		m := "m" + string(rune('a'+i))
		batchBackend.existing[m] = true
		for j := 0; j < 3; j++ {
			c.Store(m, cache.Datapoint{Timestamp: int64(j), Value: float64(j)})
		}
	}

	w, _ := newTestWriter(t, c, batchBackend, Config{MaxUpdatesPerSecond: 1000, EnableBatched: true})
	w.drainCachedDataPoints()

	require.Equal(t, 1, batchBackend.batchCalls)
	assert.Len(t, batchBackend.lastBatch, 10)
}

type fakeBatchBackend struct {
	*fakeBackend
	batchCalls int
	lastBatch  map[string][]cache.Datapoint
}

func (b *fakeBatchBackend) BatchExists(metrics []string) (map[string]bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]bool, len(metrics))
	for _, m := range metrics {
		out[m] = b.existing[m]
	}
	return out, nil
}

func (b *fakeBatchBackend) BatchUpdateMany(batch map[string][]cache.Datapoint) (string, error) {
	b.batchCalls++
	b.lastBatch = batch
	return "", nil
}

func TestCreateArchivePanicsOnMissingStorageSchema(t *testing.T) {
	registry := schemaregistry.New(nil, nil)
	backend := newFakeBackend()
	w, _ := newTestWriter(t, cache.New(1000), backend, Config{MaxUpdatesPerSecond: 1000})
	w.registry = registry

	assert.PanicsWithValue(t, missingStorageSchemaError{metric: "no.such.schema"}, func() {
		w.createArchive("no.such.schema")
	})
}

func TestSafeDrainRecoversMissingStorageSchemaPanicIntoError(t *testing.T) {
	c := cache.New(1000)
	c.Store("no.such.schema", cache.Datapoint{Timestamp: 1, Value: 1})
	backend := newFakeBackend()

	w, _ := newTestWriter(t, c, backend, Config{MaxUpdatesPerSecond: 1000})
	w.registry = schemaregistry.New(nil, nil)

	err := w.safeDrainCachedDataPoints()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no storage schema matches")
	assert.Empty(t, backend.created)
}

// TestMissingStorageSchemaAbortsPassButKeepsAlreadyCommittedNeighbors exercises
// spec.md's documented (if surprising) behavior: a metric with no matching
// storage schema aborts the rest of the current drain pass via panic/recover,
// but any neighboring metric already committed earlier in that same pass
// keeps its committed data - the panic does not roll anything back.
func TestMissingStorageSchemaAbortsPassButKeepsAlreadyCommittedNeighbors(t *testing.T) {
	c := cache.New(1000)
	// "good" gets a bigger queue so the non-batched scheduler (descending by
	// queue size) processes it before "bad.metric".
	for i := 0; i < 3; i++ {
		c.Store("good", cache.Datapoint{Timestamp: int64(i), Value: float64(i)})
	}
	c.Store("bad.metric", cache.Datapoint{Timestamp: 1, Value: 1})

	backend := newFakeBackend()
	registry := schemaregistry.New([]schemaregistry.StorageSchema{
		{
			Name:     "good-only",
			Pattern:  regexp.MustCompile(`^good$`),
			Archives: []schemaregistry.ArchiveSpec{{SecondsPerPoint: 60, PointCount: 1440}},
		},
	}, nil)

	w, _ := newTestWriter(t, c, backend, Config{MaxUpdatesPerSecond: 1000})
	w.registry = registry

	err := w.safeDrainCachedDataPoints()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.metric")

	assert.Equal(t, []string{"good"}, backend.created)
	assert.Equal(t, []cache.Datapoint{{0, 0}, {1, 1}, {2, 2}}, backend.updates["good"])
	assert.NotContains(t, backend.created, "bad.metric")
}

func TestSecondLimiterSleepsPastBudget(t *testing.T) {
	l := newSecondLimiter(2)
	start := time.Now()
	l.charge(1)
	// the second charge brings the window to the budget of 2 and sleeps
	// to the next second boundary
	l.charge(1)
	// the third charge lands in the new second and does not sleep
	l.charge(1)
	assert.True(t, time.Since(start) > 0)
}
