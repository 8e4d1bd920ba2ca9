// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of carbon-writer.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package storage

import (
	"encoding/base64"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ClusterCockpit/carbon-writer/internal/cache"
	"github.com/ClusterCockpit/carbon-writer/internal/schemaregistry"
)

func TestBatchExistsReportsPerMetric(t *testing.T) {
	b := NewFileBackend(t.TempDir(), FileBackendOptions{})
	archives := []schemaregistry.ArchiveSpec{{SecondsPerPoint: 60, PointCount: 1440}}
	require.NoError(t, b.Create("exists.me", archives, 0.5, schemaregistry.Average))

	result, err := b.BatchExists([]string{"exists.me", "missing.me"})
	require.NoError(t, err)
	assert.True(t, result["exists.me"])
	assert.False(t, result["missing.me"])
}

func TestBatchUpdateManyCommitsEveryMetricAndReturnsStats(t *testing.T) {
	b := NewFileBackend(t.TempDir(), FileBackendOptions{})
	archives := []schemaregistry.ArchiveSpec{{SecondsPerPoint: 60, PointCount: 1440}}
	require.NoError(t, b.Create("a", archives, 0.5, schemaregistry.Average))
	require.NoError(t, b.Create("b", archives, 0.5, schemaregistry.Average))

	batch := map[string][]cache.Datapoint{
		"a": {{Timestamp: 100, Value: 1}},
		"b": {{Timestamp: 100, Value: 2}, {Timestamp: 160, Value: 3}},
	}

	stats, err := b.BatchUpdateMany(batch)
	require.NoError(t, err)
	require.NotEmpty(t, stats)

	decoded, decErr := base64.StdEncoding.DecodeString(stats)
	require.NoError(t, decErr)
	assert.NotEmpty(t, decoded)

	infoA, err := b.Info("a")
	require.NoError(t, err)
	assert.Equal(t, schemaregistry.Average, infoA.AggregationMethod)

	// a 29-byte header (one archive layer) plus 16 bytes per point
	for metric, want := range map[string]int64{"a": 45, "b": 61} {
		fi, err := os.Stat(b.pathFor(metric))
		require.NoError(t, err)
		assert.Equal(t, want, fi.Size())
	}
}

func TestBatchUpdateManyReportsFirstErrorButCommitsRest(t *testing.T) {
	b := NewFileBackend(t.TempDir(), FileBackendOptions{})
	archives := []schemaregistry.ArchiveSpec{{SecondsPerPoint: 60, PointCount: 1440}}
	require.NoError(t, b.Create("exists", archives, 0.5, schemaregistry.Average))

	batch := map[string][]cache.Datapoint{
		"exists":  {{Timestamp: 100, Value: 1}},
		"missing": {{Timestamp: 100, Value: 1}},
	}

	stats, err := b.BatchUpdateMany(batch)
	assert.Error(t, err)
	assert.NotEmpty(t, stats)

	// "exists" still received its point: 29-byte header plus one 16-byte point
	fi, err := os.Stat(b.pathFor("exists"))
	require.NoError(t, err)
	assert.Equal(t, int64(45), fi.Size())
}
