// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of carbon-writer.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ClusterCockpit/carbon-writer/internal/cache"
	"github.com/ClusterCockpit/carbon-writer/internal/schemaregistry"
)

func TestFileBackendCreateAndExists(t *testing.T) {
	b := NewFileBackend(t.TempDir(), FileBackendOptions{})

	ok, err := b.Exists("servers.web1.cpu")
	require.NoError(t, err)
	assert.False(t, ok)

	archives := []schemaregistry.ArchiveSpec{{SecondsPerPoint: 60, PointCount: 1440}}
	require.NoError(t, b.Create("servers.web1.cpu", archives, 0.5, schemaregistry.Average))

	ok, err = b.Exists("servers.web1.cpu")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFileBackendCreateRaceIsAlreadyExists(t *testing.T) {
	b := NewFileBackend(t.TempDir(), FileBackendOptions{})
	archives := []schemaregistry.ArchiveSpec{{SecondsPerPoint: 60, PointCount: 1440}}

	require.NoError(t, b.Create("m", archives, 0.5, schemaregistry.Average))
	err := b.Create("m", archives, 0.5, schemaregistry.Average)
	require.Error(t, err)
	assert.True(t, IsAlreadyExists(err))
}

func TestFileBackendUpdateManyAndInfo(t *testing.T) {
	b := NewFileBackend(t.TempDir(), FileBackendOptions{})
	archives := []schemaregistry.ArchiveSpec{{SecondsPerPoint: 60, PointCount: 1440}}
	require.NoError(t, b.Create("m", archives, 0.1, schemaregistry.Max))

	dps := []cache.Datapoint{{Timestamp: 100, Value: 1.0}, {Timestamp: 160, Value: 2.0}}
	require.NoError(t, b.UpdateMany("m", dps))

	info, err := b.Info("m")
	require.NoError(t, err)
	assert.Equal(t, schemaregistry.Max, info.AggregationMethod)
	assert.Equal(t, 0.1, info.XFilesFactor)
}

func TestFileBackendSetAggregationMethod(t *testing.T) {
	b := NewFileBackend(t.TempDir(), FileBackendOptions{})
	archives := []schemaregistry.ArchiveSpec{{SecondsPerPoint: 60, PointCount: 1440}}
	require.NoError(t, b.Create("m", archives, 0.5, schemaregistry.Average))

	prev, err := b.SetAggregationMethod("m", schemaregistry.Sum)
	require.NoError(t, err)
	assert.Equal(t, schemaregistry.Average, prev)

	info, err := b.Info("m")
	require.NoError(t, err)
	assert.Equal(t, schemaregistry.Sum, info.AggregationMethod)
}

func TestPathForStripsLeadingDotsAndMapsSeparators(t *testing.T) {
	b := NewFileBackend("/data", FileBackendOptions{})
	assert.Equal(t, "/data/a/b/c.wsp", b.pathFor("a.b.c"))
	assert.Equal(t, "/data/a/b/c.wsp", b.pathFor(".a.b.c"))
}
