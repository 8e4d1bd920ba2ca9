// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of carbon-writer.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metricslog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeenReportsFalseOnceThenTrue(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "metricslog.db")
	log, err := Open(dsn)
	require.NoError(t, err)
	defer log.Close()

	assert.False(t, log.Seen("servers.web1.cpu"))
	assert.True(t, log.Seen("servers.web1.cpu"))
}

func TestSeenIsPerMetric(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "metricslog.db")
	log, err := Open(dsn)
	require.NoError(t, err)
	defer log.Close()

	assert.False(t, log.Seen("a"))
	assert.False(t, log.Seen("b"))
	assert.True(t, log.Seen("a"))
}
