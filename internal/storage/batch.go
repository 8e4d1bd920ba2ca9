// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of carbon-writer.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package storage

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/linkedin/goavro/v2"

	"github.com/ClusterCockpit/carbon-writer/internal/cache"
)

const batchStatSchema = `{
	"type": "record",
	"name": "BatchUpdateStat",
	"fields": [
		{"name": "metric", "type": "string"},
		{"name": "points", "type": "long"},
		{"name": "error", "type": ["null", "string"], "default": null}
	]
}`

var batchStatCodec, _ = goavro.NewCodec(batchStatSchema)

// BatchExists checks many metrics concurrently against the filesystem.
// Satisfies storage.BatchExister.
func (b *FileBackend) BatchExists(metrics []string) (map[string]bool, error) {
	result := make(map[string]bool, len(metrics))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, metric := range metrics {
		wg.Add(1)
		go func(metric string) {
			defer wg.Done()
			exists, err := b.Exists(metric)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				result[metric] = exists
			}
		}(metric)
	}
	wg.Wait()
	return result, nil
}

// BatchUpdateMany commits every metric's datapoints in turn and returns
// a base64-encoded Avro OCF-schema-compatible record list summarizing
// the batch, for the Writer to log when configured to do so. Satisfies
// storage.BatchUpdater.
func (b *FileBackend) BatchUpdateMany(batch map[string][]cache.Datapoint) (string, error) {
	records := make([]any, 0, len(batch))
	var firstErr error

	for metric, datapoints := range batch {
		record := map[string]any{
			"metric": metric,
			"points": int64(len(datapoints)),
			"error":  nil,
		}
		if err := b.UpdateMany(metric, datapoints); err != nil {
			record["error"] = goavro.Union("string", err.Error())
			if firstErr == nil {
				firstErr = err
			}
		}
		records = append(records, record)
	}

	stats, encErr := encodeBatchStats(records)
	if encErr != nil {
		stats = fmt.Sprintf("batch of %d metrics (stats encoding failed: %s)", len(batch), encErr.Error())
	}
	return stats, firstErr
}

// encodeBatchStats writes records as an Avro object container file into
// memory and returns it base64-encoded.
func encodeBatchStats(records []any) (string, error) {
	var buf bytes.Buffer
	writer, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               &buf,
		Codec:           batchStatCodec,
		CompressionName: goavro.CompressionDeflateLabel,
	})
	if err != nil {
		return "", err
	}
	if err := writer.Append(records); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
