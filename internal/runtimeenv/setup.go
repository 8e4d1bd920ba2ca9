// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of carbon-writer.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package runtimeenv holds the small pieces of process setup that do
// not belong to any one subsystem: telling systemd the process is
// ready.
package runtimeenv

import (
	"os"
	"os/exec"
	"strconv"
)

// SystemdNotify tells systemd the process is ready or reports status,
// a no-op outside of a systemd unit.
// https://www.freedesktop.org/software/systemd/man/sd_notify.html
func SystemdNotify(ready bool, status string) {
	if os.Getenv("NOTIFY_SOCKET") == "" {
		return
	}

	args := []string{"--pid=" + strconv.Itoa(os.Getpid())}
	if ready {
		args = append(args, "--ready")
	}
	if status != "" {
		args = append(args, "--status="+status)
	}

	cmd := exec.Command("systemd-notify", args...)
	_ = cmd.Run()
}
