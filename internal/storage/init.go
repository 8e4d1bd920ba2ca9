// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of carbon-writer.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package storage

import (
	"errors"

	"github.com/ClusterCockpit/carbon-writer/internal/config"
)

var errMissingS3Config = errors.New("storage: backend \"s3\" selected but no [storage.s3] configuration given")

func init() {
	Register("file", func() (Backend, error) {
		return NewFileBackend(config.Keys.Storage.Directory, FileBackendOptions{
			Autoflush:       config.Keys.Storage.Autoflush,
			FallocateCreate: config.Keys.Storage.FallocateCreate,
			LockWrites:      config.Keys.Storage.LockWrites,
		}), nil
	})

	Register("s3", func() (Backend, error) {
		s3cfg := config.Keys.Storage.S3
		if s3cfg == nil {
			return nil, errMissingS3Config
		}
		return NewS3Backend(S3Config{
			Endpoint:     s3cfg.Endpoint,
			Bucket:       s3cfg.Bucket,
			AccessKey:    s3cfg.AccessKey,
			SecretKey:    s3cfg.SecretKey,
			Region:       s3cfg.Region,
			UsePathStyle: s3cfg.UsePathStyle,
		})
	})
}
