// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of carbon-writer.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package runtimeenv

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSystemdNotifyNoopWithoutNotifySocket(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	os.Unsetenv("NOTIFY_SOCKET")

	assert.NotPanics(t, func() {
		SystemdNotify(true, "running")
		SystemdNotify(false, "shutting down")
	})
}
