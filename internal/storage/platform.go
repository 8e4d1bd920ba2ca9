// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of carbon-writer.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package storage

import (
	"errors"
	"os"

	"github.com/ClusterCockpit/carbon-writer/internal/schemaregistry"
)

// ErrUnsupported is returned by the platform hints below on platforms
// where the underlying syscall isn't wired up. Callers log and
// continue without the capability, per the backend's configuration
// contract.
var ErrUnsupported = errors.New("storage: capability not supported on this platform")

// fallocateHint preallocates space for the archive's retained points.
// Left unimplemented here: no syscall package is part of this stack,
// so callers fall back to ordinary sparse allocation and log the
// mismatch, exactly as the specification allows.
func fallocateHint(f *os.File, archives []schemaregistry.ArchiveSpec) error {
	return ErrUnsupported
}

// flockExclusive takes an exclusive OS file lock across a write. Left
// unimplemented for the same reason as fallocateHint.
func flockExclusive(path string) error {
	return ErrUnsupported
}
