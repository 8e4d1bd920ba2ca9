// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of carbon-writer.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package schemaregistry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const storageConf = `
[carbon]
pattern = ^carbon\.
retentions = 60:90, 300:168

[default]
pattern = .*
retentions = 60:1440
`

const aggregationConf = `
[min]
pattern = \.min$
xFilesFactor = 0.1
aggregationMethod = min

[default]
pattern = .*
xFilesFactor = 0.5
aggregationMethod = average
`

func TestParseStorageSchemas(t *testing.T) {
	schemas, err := ParseStorageSchemas(strings.NewReader(storageConf))
	require.NoError(t, err)
	require.Len(t, schemas, 2)

	assert.Equal(t, "carbon", schemas[0].Name)
	assert.Equal(t, []ArchiveSpec{{60, 90}, {300, 168}}, schemas[0].Archives)
	assert.True(t, schemas[0].Matches("carbon.agents.x"))
	assert.False(t, schemas[0].Matches("servers.a.cpu"))

	assert.Equal(t, "default", schemas[1].Name)
	assert.True(t, schemas[1].Matches("anything"))
}

func TestParseAggregationSchemas(t *testing.T) {
	schemas, err := ParseAggregationSchemas(strings.NewReader(aggregationConf))
	require.NoError(t, err)
	require.Len(t, schemas, 2)
	assert.Equal(t, Min, schemas[0].AggregationMethod)
	assert.Equal(t, 0.1, schemas[0].XFilesFactor)
	assert.Equal(t, Average, schemas[1].AggregationMethod)
}

func TestRegistryLookupFirstMatchWins(t *testing.T) {
	storage, err := ParseStorageSchemas(strings.NewReader(storageConf))
	require.NoError(t, err)
	aggregation, err := ParseAggregationSchemas(strings.NewReader(aggregationConf))
	require.NoError(t, err)

	reg := New(storage, aggregation)

	look := reg.LookupStorage("carbon.relays.x")
	require.True(t, look.Found)
	assert.Equal(t, "carbon", look.Schema.Name)

	look = reg.LookupStorage("servers.web1.cpu")
	require.True(t, look.Found)
	assert.Equal(t, "default", look.Schema.Name)

	agg := reg.LookupAggregation("servers.web1.cpu.min")
	require.True(t, agg.Found)
	assert.Equal(t, "min", agg.Schema.Name)

	agg = reg.LookupAggregation("servers.web1.cpu.max")
	require.True(t, agg.Found)
	assert.Equal(t, "default", agg.Schema.Name)
}

func TestReplaceStorageLeavesAggregationUntouched(t *testing.T) {
	storage, _ := ParseStorageSchemas(strings.NewReader(storageConf))
	aggregation, _ := ParseAggregationSchemas(strings.NewReader(aggregationConf))
	reg := New(storage, aggregation)

	reg.ReplaceStorage(nil)

	look := reg.LookupStorage("anything")
	assert.False(t, look.Found)

	agg := reg.LookupAggregation("anything.min")
	require.True(t, agg.Found)
	assert.Equal(t, "min", agg.Schema.Name)
}

func TestParseStorageSchemasMissingRetentions(t *testing.T) {
	_, err := ParseStorageSchemas(strings.NewReader("[bad]\npattern = .*\n"))
	assert.Error(t, err)
}
