// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of carbon-writer.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package writer drives the FlushScheduler against a StorageBackend:
// the drain loop, the per-second commit rate limiter, and the
// batched/non-batched commit paths. It is the dedicated worker the
// rest of the process runs outside the cooperative scheduler, since it
// performs blocking file I/O and explicit sleeps.
package writer

import (
	"fmt"
	"sync"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"

	"github.com/ClusterCockpit/carbon-writer/internal/cache"
	"github.com/ClusterCockpit/carbon-writer/internal/schemaregistry"
	"github.com/ClusterCockpit/carbon-writer/internal/scheduler"
	"github.com/ClusterCockpit/carbon-writer/internal/storage"
)

// SeenMetricsLog records the first time a metric is observed, for
// external reporting; see internal/metricslog for the SQLite-backed
// implementation.
type SeenMetricsLog interface {
	Seen(metric string) (alreadySeen bool)
}

// Config are the writer's tunable knobs, decoded from the process
// configuration.
type Config struct {
	MaxUpdatesPerSecond int
	EnableBatched       bool
	LogUpdates          bool
	LogBatchUpdates     bool
}

// Writer drains a FlushScheduler against a StorageBackend until told
// to stop.
type Writer struct {
	cache     *cache.MetricCache
	scheduler *scheduler.FlushScheduler
	backend   storage.Backend
	registry  *schemaregistry.SchemaRegistry
	seen      SeenMetricsLog
	metrics   *Metrics
	cfg       Config

	secondBudget *secondLimiter

	stopOnce sync.Once
	stop     chan struct{}
}

// New builds a Writer. backend may additionally implement
// storage.BatchExister and storage.BatchUpdater; when cfg.EnableBatched
// is set and both are present, the batched commit path is used.
func New(c *cache.MetricCache, sched *scheduler.FlushScheduler, backend storage.Backend, registry *schemaregistry.SchemaRegistry, seen SeenMetricsLog, metrics *Metrics, cfg Config) *Writer {
	return &Writer{
		cache:        c,
		scheduler:    sched,
		backend:      backend,
		registry:     registry,
		seen:         seen,
		metrics:      metrics,
		cfg:          cfg,
		secondBudget: newSecondLimiter(cfg.MaxUpdatesPerSecond),
		stop:         make(chan struct{}),
	}
}

// SetMaxUpdatesPerSecond overrides the commit rate limit, used by the
// LifecycleService's pre-shutdown hook.
func (w *Writer) SetMaxUpdatesPerSecond(n int) {
	w.secondBudget.setLimit(n)
}

// Stop signals the Run loop to exit after its current drain pass.
func (w *Writer) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// Run is the Writer's outer loop: repeatedly drain the cache until
// stopped. Any uncaught error inside a drain pass is logged and
// followed by a one-second sleep before retrying; the loop otherwise
// sleeps only when the cache is empty.
func (w *Writer) Run() {
	for {
		select {
		case <-w.stop:
			return
		default:
		}

		if err := w.safeDrainCachedDataPoints(); err != nil {
			cclog.Errorf("[WRITER]> %s", err.Error())
			if !w.sleepOrStop(time.Second) {
				return
			}
			continue
		}

		if w.cache.IsEmpty() {
			if !w.sleepOrStop(time.Second) {
				return
			}
		}
	}
}

func (w *Writer) sleepOrStop(d time.Duration) bool {
	select {
	case <-w.stop:
		return false
	case <-time.After(d):
		return true
	}
}

// safeDrainCachedDataPoints recovers a panic from inside one drain pass
// into an error, the Go equivalent of the source's catch-all around
// writeCachedDataPoints.
func (w *Writer) safeDrainCachedDataPoints() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoverToError(r)
		}
	}()
	w.drainCachedDataPoints()
	return nil
}

// drainCachedDataPoints is one call to writeCachedDataPoints: it keeps
// draining the cache via the scheduler until it reports empty, taking
// a fresh snapshot each pass.
func (w *Writer) drainCachedDataPoints() {
	for !w.cache.IsEmpty() {
		yielded := w.drainOnePass()
		if !yielded {
			if !w.sleepOrStop(100 * time.Millisecond) {
				return
			}
		}
	}
}

func (w *Writer) drainOnePass() bool {
	batched := w.cfg.EnableBatched
	if batched {
		_, canExist := w.backend.(storage.BatchExister)
		_, canUpdate := w.backend.(storage.BatchUpdater)
		batched = canExist && canUpdate
	}
	existChecker := w.existenceChecker(batched)

	batch := make(map[string][]cache.Datapoint)
	yielded := false

	w.scheduler.Drain(existChecker, batched, func(c scheduler.Candidate) {
		yielded = true
		w.processCandidate(c, batched, batch)
	})

	if batched && len(batch) > 0 {
		w.commitBatch(batch)
	}

	return yielded
}

// existenceChecker resolves existsOnDisk either via batch_exists (when
// batched mode is enabled and the backend supports it) or by calling
// the backend per metric.
func (w *Writer) existenceChecker(batched bool) scheduler.ExistenceChecker {
	if batched {
		if batcher, ok := w.backend.(storage.BatchExister); ok {
			counts := w.cache.Counts()
			metrics := make([]string, len(counts))
			for i, c := range counts {
				metrics[i] = c.Metric
			}
			existing, err := batcher.BatchExists(metrics)
			if err != nil {
				cclog.Errorf("[WRITER]> batch_exists: %s", err.Error())
				existing = nil
			}
			return scheduler.ExistsFunc(func(metric string) bool { return existing[metric] })
		}
	}
	return scheduler.ExistsFunc(func(metric string) bool {
		ok, err := w.backend.Exists(metric)
		if err != nil {
			cclog.Errorf("[WRITER]> exists(%s): %s", metric, err.Error())
			return false
		}
		return ok
	})
}

func (w *Writer) processCandidate(c scheduler.Candidate, batched bool, batch map[string][]cache.Datapoint) {
	if !w.seen.Seen(c.Metric) {
		cclog.Debugf("[WRITER]> first commit for metric %q", c.Metric)
	}

	if !c.ExistsOnDisk {
		if !w.createArchive(c.Metric) {
			return
		}
	}

	if batched {
		batch[c.Metric] = append(batch[c.Metric], c.Datapoints...)
		return
	}

	w.commitSingle(c.Metric, c.Datapoints)
}

// createArchive resolves the metric's schemas and creates its archive.
// A missing storage schema match is fatal to the current pass: it
// panics to unwind to safeDrainCachedDataPoints, matching the source's
// documented (if arguably buggy) behavior of abandoning the rest of
// the pass rather than silently skipping just this metric.
func (w *Writer) createArchive(metric string) bool {
	storageLookup := w.registry.LookupStorage(metric)
	if !storageLookup.Found {
		panic(missingStorageSchemaError{metric: metric})
	}

	xFilesFactor := 0.5
	method := schemaregistry.Average
	if aggLookup := w.registry.LookupAggregation(metric); aggLookup.Found {
		xFilesFactor = aggLookup.Schema.XFilesFactor
		method = aggLookup.Schema.AggregationMethod
	}

	cclog.Debugf("[WRITER]> creating archive for %q (schema=%s)", metric, storageLookup.Schema.Name)
	w.metrics.Creates.Inc()
	err := w.backend.Create(metric, storageLookup.Schema.Archives, xFilesFactor, method)
	if err != nil && !storage.IsAlreadyExists(err) {
		cclog.Errorf("[WRITER]> create(%s): %s", metric, err.Error())
		w.metrics.Errors.Inc()
		return false
	}
	return true
}

func (w *Writer) commitSingle(metric string, datapoints []cache.Datapoint) {
	start := time.Now()
	err := w.backend.UpdateMany(metric, datapoints)
	elapsed := time.Since(start)

	if err != nil {
		cclog.Errorf("[WRITER]> update_many(%s): %s", metric, err.Error())
		w.metrics.Errors.Inc()
		w.secondBudget.charge(1)
		return
	}

	w.metrics.CommittedPoints.Add(float64(len(datapoints)))
	w.metrics.UpdateTimes.Observe(elapsed.Seconds())
	if w.cfg.LogUpdates {
		cclog.Infof("[WRITER]> committed %d points for %q in %s", len(datapoints), metric, elapsed)
	}
	w.secondBudget.charge(1)
}

func (w *Writer) commitBatch(batch map[string][]cache.Datapoint) {
	batcher, ok := w.backend.(storage.BatchUpdater)
	if !ok {
		cclog.Errorf("[WRITER]> batched writes enabled but backend does not support batch_update_many")
		return
	}

	start := time.Now()
	stats, err := batcher.BatchUpdateMany(batch)
	elapsed := time.Since(start)

	if err != nil {
		cclog.Errorf("[WRITER]> batch_update_many: %s", err.Error())
		w.metrics.Errors.Inc()
		w.secondBudget.charge(len(batch))
		return
	}

	total := 0
	for _, dps := range batch {
		total += len(dps)
	}
	w.metrics.CommittedPoints.Add(float64(total))
	w.metrics.UpdateTimes.Observe(elapsed.Seconds())
	w.metrics.BatchSizes.Observe(float64(len(batch)))
	if w.cfg.LogBatchUpdates && stats != "" {
		cclog.Infof("[WRITER]> batch commit stats: %s", stats)
	}
	w.secondBudget.charge(len(batch))
}

type missingStorageSchemaError struct{ metric string }

func (e missingStorageSchemaError) Error() string {
	return "no storage schema matches metric " + e.metric
}

func recoverToError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("writer: recovered panic: %v", r)
}
