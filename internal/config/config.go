// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of carbon-writer.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads and validates the JSON configuration for the
// persistence writer: the storage directory and backend, the two rate
// limiters, the batched-writes toggle, the schema-file locations and
// the ambient ports (admin RPC surface, Prometheus instrumentation,
// metrics log).
package config

import (
	"bytes"
	"encoding/json"
	"os"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
)

// StorageConfig configures the StorageBackend the Writer commits to.
// Backend selects a constructor from the backend factory (the Go-native
// replacement for the original DB_INIT_FUNC dotted-path import).
type StorageConfig struct {
	Directory       string     `json:"directory"`
	Backend         string     `json:"backend"`
	Autoflush       bool       `json:"autoflush"`
	FallocateCreate bool       `json:"fallocate-create"`
	LockWrites      bool       `json:"lock-writes"`
	SparseCreate    bool       `json:"sparse-create"`
	S3              *S3Config `json:"s3,omitempty"`
}

// S3Config configures the optional S3-backed StorageBackend.
type S3Config struct {
	Endpoint     string `json:"endpoint"`
	Bucket       string `json:"bucket"`
	AccessKey    string `json:"access-key"`
	SecretKey    string `json:"secret-key"`
	Region       string `json:"region"`
	UsePathStyle bool   `json:"use-path-style"`
}

// CacheConfig describes the MetricCache's capacity, used only to compute
// the 95% low watermark for the cacheSpaceAvailable event.
type CacheConfig struct {
	MaxSize int `json:"max-size"`
}

// RateLimits are the two independent budgets the Writer enforces.
type RateLimits struct {
	MaxCreatesPerMinute           int `json:"max-creates-per-minute"`
	MaxUpdatesPerSecond           int `json:"max-updates-per-second"`
	MaxUpdatesPerSecondOnShutdown int `json:"max-updates-per-second-on-shutdown"`
}

// WritesConfig toggles the batched commit path and per-commit logging.
type WritesConfig struct {
	EnableBatched   bool `json:"enable-batched-writes"`
	LogUpdates      bool `json:"log-updates"`
	LogBatchUpdates bool `json:"log-batch-updates"`
}

// SchemaConfig points at the storage-schema and aggregation-schema files
// and the interval at which they are reloaded.
type SchemaConfig struct {
	StorageSchemasFile     string `json:"storage-schemas-file"`
	StorageAggregationFile string `json:"storage-aggregation-file"`
	ReloadInterval         string `json:"reload-interval"`
}

// MetricsLogConfig configures the SQLite-backed seen-metrics log.
type MetricsLogConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// AdminAPIConfig configures the management RPC HTTP surface.
type AdminAPIConfig struct {
	Addr string `json:"addr"`
}

// InstrumentationConfig configures where writer counters are exposed.
type InstrumentationConfig struct {
	Addr string `json:"addr"`
}

// ReceiverConfig configures the optional NATS line-protocol ingestion demo.
type ReceiverConfig struct {
	NatsURL       string   `json:"nats-url"`
	SubscribeTo   []string `json:"subscribe-to"`
	ClusterTag    string   `json:"cluster-tag"`
}

// ProgramConfig is the full configuration of the carbon-writer process.
type ProgramConfig struct {
	Storage         StorageConfig         `json:"storage"`
	Cache           CacheConfig           `json:"cache"`
	RateLimits      RateLimits            `json:"rate-limits"`
	Writes          WritesConfig          `json:"writes"`
	Schemas         SchemaConfig          `json:"schemas"`
	MetricsLog      MetricsLogConfig      `json:"metrics-log"`
	AdminAPI        AdminAPIConfig        `json:"admin-api"`
	Instrumentation InstrumentationConfig `json:"instrumentation"`
	Receiver        *ReceiverConfig       `json:"receiver,omitempty"`
}

// Keys holds the active configuration, defaulted to sane values for a
// single-node, file-backed deployment.
var Keys = ProgramConfig{
	Storage: StorageConfig{
		Directory: "./var/whisper",
		Backend:   "file",
	},
	Cache: CacheConfig{
		MaxSize: 1_000_000,
	},
	RateLimits: RateLimits{
		MaxCreatesPerMinute: 50,
		MaxUpdatesPerSecond: 1000,
	},
	Schemas: SchemaConfig{
		StorageSchemasFile:     "./storage-schemas.conf",
		StorageAggregationFile: "./storage-aggregation.conf",
		ReloadInterval:         "60s",
	},
	MetricsLog: MetricsLogConfig{
		Driver: "sqlite3",
		DSN:    "./var/metricslog.db",
	},
	AdminAPI: AdminAPIConfig{
		Addr: "localhost:8086",
	},
	Instrumentation: InstrumentationConfig{
		Addr: "localhost:9090",
	},
}

// Init reads flagConfigFile, validates it against configSchema and decodes
// it over the defaults in Keys. A missing file is not an error: the
// defaults above are used as-is, mirroring how a fresh carbon install has
// no carbon-writer.json yet.
func Init(flagConfigFile string) {
	raw, err := os.ReadFile(flagConfigFile)
	if err != nil {
		if !os.IsNotExist(err) {
			cclog.Fatalf("[CONFIG]> reading %s: %s", flagConfigFile, err.Error())
		}
		return
	}

	Validate(configSchema, raw)

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&Keys); err != nil {
		cclog.Fatalf("[CONFIG]> decoding %s: %s", flagConfigFile, err.Error())
	}
}
