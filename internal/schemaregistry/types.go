// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of carbon-writer.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package schemaregistry holds the current storage-schema and
// aggregation-schema sequences and answers first-match-wins lookups for
// a metric name. Both sequences are published as a single atomic
// reference swap so a reload never exposes a mixed old/new view to a
// concurrent flush pass.
package schemaregistry

import "regexp"

// AggregationMethod is the set of ways a backend may downsample points
// when rolling from a finer archive into a coarser one.
type AggregationMethod int

const (
	Average AggregationMethod = iota
	Sum
	Last
	Max
	Min
)

func (m AggregationMethod) String() string {
	switch m {
	case Average:
		return "average"
	case Sum:
		return "sum"
	case Last:
		return "last"
	case Max:
		return "max"
	case Min:
		return "min"
	default:
		return "average"
	}
}

// ParseAggregationMethod maps a schema-file or RPC string onto an
// AggregationMethod. An unrecognized name yields (_, false).
func ParseAggregationMethod(s string) (AggregationMethod, bool) {
	switch s {
	case "average":
		return Average, true
	case "sum":
		return Sum, true
	case "last":
		return Last, true
	case "max":
		return Max, true
	case "min":
		return Min, true
	default:
		return 0, false
	}
}

// ArchiveSpec is one retention layer: secondsPerPoint * pointCount
// spans the duration this layer retains data for.
type ArchiveSpec struct {
	SecondsPerPoint int
	PointCount      int
}

// StorageSchema names a set of ArchiveSpecs to use when a new archive
// is created for a metric matching Pattern.
type StorageSchema struct {
	Name     string
	Pattern  *regexp.Regexp
	Archives []ArchiveSpec
}

// Matches tests Pattern against a metric name.
func (s StorageSchema) Matches(metric string) bool {
	return s.Pattern.MatchString(metric)
}

// AggregationSchema names the rollup behavior to apply when a metric
// matching Pattern ages out of its finest archive.
type AggregationSchema struct {
	Name              string
	Pattern           *regexp.Regexp
	XFilesFactor      float64
	AggregationMethod AggregationMethod
}

// Matches tests Pattern against a metric name.
func (a AggregationSchema) Matches(metric string) bool {
	return a.Pattern.MatchString(metric)
}

// StorageLookup replaces the exception-for-control-flow of a failed
// storage-schema match with an explicit result variant.
type StorageLookup struct {
	Schema StorageSchema
	Found  bool
}

// AggregationLookup is the aggregation-schema equivalent of StorageLookup.
type AggregationLookup struct {
	Schema AggregationSchema
	Found  bool
}
