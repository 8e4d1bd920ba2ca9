// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of carbon-writer.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

const configSchema = `
{
	"type": "object",
	"properties": {
		"storage": {
			"type": "object",
			"properties": {
				"directory": { "type": "string" },
				"backend": { "type": "string" },
				"autoflush": { "type": "boolean" },
				"fallocate-create": { "type": "boolean" },
				"lock-writes": { "type": "boolean" },
				"sparse-create": { "type": "boolean" },
				"s3": {
					"type": "object",
					"properties": {
						"endpoint": { "type": "string" },
						"bucket": { "type": "string" },
						"access-key": { "type": "string" },
						"secret-key": { "type": "string" },
						"region": { "type": "string" },
						"use-path-style": { "type": "boolean" }
					}
				}
			}
		},
		"cache": {
			"type": "object",
			"properties": {
				"max-size": { "type": "integer", "minimum": 1 }
			}
		},
		"rate-limits": {
			"type": "object",
			"properties": {
				"max-creates-per-minute": { "type": "integer", "minimum": 0 },
				"max-updates-per-second": { "type": "integer", "minimum": 0 },
				"max-updates-per-second-on-shutdown": { "type": "integer", "minimum": 0 }
			}
		},
		"writes": {
			"type": "object",
			"properties": {
				"enable-batched-writes": { "type": "boolean" },
				"log-updates": { "type": "boolean" },
				"log-batch-updates": { "type": "boolean" }
			}
		},
		"schemas": {
			"type": "object",
			"properties": {
				"storage-schemas-file": { "type": "string" },
				"storage-aggregation-file": { "type": "string" },
				"reload-interval": { "type": "string" }
			}
		},
		"metrics-log": {
			"type": "object",
			"properties": {
				"driver": { "type": "string" },
				"dsn": { "type": "string" }
			}
		},
		"admin-api": {
			"type": "object",
			"properties": {
				"addr": { "type": "string" }
			}
		},
		"instrumentation": {
			"type": "object",
			"properties": {
				"addr": { "type": "string" }
			}
		},
		"receiver": {
			"type": "object",
			"properties": {
				"nats-url": { "type": "string" },
				"subscribe-to": { "type": "array", "items": { "type": "string" } },
				"cluster-tag": { "type": "string" }
			}
		}
	}
}`
