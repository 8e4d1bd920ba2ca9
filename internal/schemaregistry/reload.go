// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of carbon-writer.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package schemaregistry

import (
	"os"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/go-co-op/gocron/v2"
)

// ReloadTimers periodically re-parses the storage-schema and
// aggregation-schema files into the registry. The two files are
// reloaded by two independent jobs so a parse failure in one never
// blocks the other.
type ReloadTimers struct {
	registry       *SchemaRegistry
	storagePath    string
	aggregatePath  string
	interval       time.Duration
}

// NewReloadTimers returns a ReloadTimers for the given registry and
// schema file paths, reloading every interval.
func NewReloadTimers(registry *SchemaRegistry, storagePath, aggregatePath string, interval time.Duration) *ReloadTimers {
	return &ReloadTimers{
		registry:      registry,
		storagePath:   storagePath,
		aggregatePath: aggregatePath,
		interval:      interval,
	}
}

// Register schedules both reload jobs on s. Jobs do not run immediately
// on registration: the registry's initial sequences are expected to
// already be loaded by the caller at startup.
func (t *ReloadTimers) Register(s gocron.Scheduler) error {
	if _, err := s.NewJob(
		gocron.DurationJob(t.interval),
		gocron.NewTask(t.reloadStorage),
	); err != nil {
		return err
	}
	if _, err := s.NewJob(
		gocron.DurationJob(t.interval),
		gocron.NewTask(t.reloadAggregation),
	); err != nil {
		return err
	}
	return nil
}

func (t *ReloadTimers) reloadStorage() {
	f, err := os.Open(t.storagePath)
	if err != nil {
		cclog.Errorf("[SCHEMAREGISTRY]> reload storage schemas: %s", err.Error())
		return
	}
	defer f.Close()

	schemas, err := ParseStorageSchemas(f)
	if err != nil {
		cclog.Errorf("[SCHEMAREGISTRY]> parse storage schemas: %s", err.Error())
		return
	}
	t.registry.ReplaceStorage(schemas)
	cclog.Debugf("[SCHEMAREGISTRY]> reloaded %d storage schemas", len(schemas))
}

func (t *ReloadTimers) reloadAggregation() {
	f, err := os.Open(t.aggregatePath)
	if err != nil {
		cclog.Errorf("[SCHEMAREGISTRY]> reload aggregation schemas: %s", err.Error())
		return
	}
	defer f.Close()

	schemas, err := ParseAggregationSchemas(f)
	if err != nil {
		cclog.Errorf("[SCHEMAREGISTRY]> parse aggregation schemas: %s", err.Error())
		return
	}
	t.registry.ReplaceAggregation(schemas)
	cclog.Debugf("[SCHEMAREGISTRY]> reloaded %d aggregation schemas", len(schemas))
}
