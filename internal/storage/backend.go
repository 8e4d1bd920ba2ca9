// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of carbon-writer.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package storage defines the StorageBackend contract the Writer
// commits datapoints through, and the default file-backed and optional
// S3-backed implementations.
package storage

import (
	"github.com/ClusterCockpit/carbon-writer/internal/cache"
	"github.com/ClusterCockpit/carbon-writer/internal/schemaregistry"
)

// Info describes a single archive's current metadata.
type Info struct {
	AggregationMethod schemaregistry.AggregationMethod
	XFilesFactor      float64
}

// Backend is the abstract archive store the Writer commits to. A
// concurrent create that races and would collide with an existing
// archive must be treated as success.
type Backend interface {
	// Exists reports whether an archive already exists for metric.
	Exists(metric string) (bool, error)
	// Create makes a new archive for metric using the given retention
	// layers and aggregation settings. An already-exists error is
	// reported as *AlreadyExistsError (see IsAlreadyExists) so callers
	// can treat it as benign.
	Create(metric string, archives []schemaregistry.ArchiveSpec, xFilesFactor float64, method schemaregistry.AggregationMethod) error
	// UpdateMany appends datapoints to metric's archive.
	UpdateMany(metric string, datapoints []cache.Datapoint) error
	// Info returns the current aggregation metadata for metric.
	Info(metric string) (Info, error)
	// SetAggregationMethod changes metric's aggregation method and
	// returns the previous one.
	SetAggregationMethod(metric string, method schemaregistry.AggregationMethod) (schemaregistry.AggregationMethod, error)
}

// BatchExister is an optional capability: existence checks for many
// metrics in one round trip.
type BatchExister interface {
	BatchExists(metrics []string) (map[string]bool, error)
}

// BatchUpdater is an optional capability: committing many metrics'
// datapoints in one call. The returned string is an opaque stats blob
// logged by the Writer when configured to do so; it may be empty.
type BatchUpdater interface {
	BatchUpdateMany(batch map[string][]cache.Datapoint) (string, error)
}

// AlreadyExistsError reports that Create raced a concurrent creator of
// the same archive; the Writer treats this as success.
type AlreadyExistsError struct {
	Metric string
}

func (e *AlreadyExistsError) Error() string {
	return "archive already exists for " + e.Metric
}

// IsAlreadyExists reports whether err is an AlreadyExistsError.
func IsAlreadyExists(err error) bool {
	_, ok := err.(*AlreadyExistsError)
	return ok
}
