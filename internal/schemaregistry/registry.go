// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of carbon-writer.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package schemaregistry

import (
	"sync"
	"sync/atomic"
)

// sequences is the pair of immutable schema lists published together.
type sequences struct {
	storage     []StorageSchema
	aggregation []AggregationSchema
}

// SchemaRegistry holds the currently active storage- and
// aggregation-schema sequences behind a single atomic pointer. Reload
// publishes a new *sequences in one swap so readers never observe a
// mixed old/new pair.
type SchemaRegistry struct {
	current     atomic.Pointer[sequences]
	replaceLock sync.Mutex
}

// New builds a SchemaRegistry already populated with the given
// sequences, as happens at startup before the first reload.
func New(storage []StorageSchema, aggregation []AggregationSchema) *SchemaRegistry {
	r := &SchemaRegistry{}
	r.current.Store(&sequences{storage: storage, aggregation: aggregation})
	return r
}

// LookupStorage returns the first StorageSchema matching metric, in
// declaration order.
func (r *SchemaRegistry) LookupStorage(metric string) StorageLookup {
	seq := r.current.Load()
	for _, s := range seq.storage {
		if s.Matches(metric) {
			return StorageLookup{Schema: s, Found: true}
		}
	}
	return StorageLookup{}
}

// LookupAggregation returns the first AggregationSchema matching
// metric, in declaration order. Independent of LookupStorage: a metric
// may match a storage schema without matching any aggregation schema.
func (r *SchemaRegistry) LookupAggregation(metric string) AggregationLookup {
	seq := r.current.Load()
	for _, a := range seq.aggregation {
		if a.Matches(metric) {
			return AggregationLookup{Schema: a, Found: true}
		}
	}
	return AggregationLookup{}
}

// ReplaceStorage atomically publishes a new storage-schema sequence,
// leaving the aggregation sequence untouched.
func (r *SchemaRegistry) ReplaceStorage(storage []StorageSchema) {
	r.replaceLock.Lock()
	defer r.replaceLock.Unlock()
	old := r.current.Load()
	r.current.Store(&sequences{storage: storage, aggregation: old.aggregation})
}

// ReplaceAggregation atomically publishes a new aggregation-schema
// sequence, leaving the storage sequence untouched.
func (r *SchemaRegistry) ReplaceAggregation(aggregation []AggregationSchema) {
	r.replaceLock.Lock()
	defer r.replaceLock.Unlock()
	old := r.current.Load()
	r.current.Store(&sequences{storage: old.storage, aggregation: aggregation})
}
