// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of carbon-writer.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package receiver is a small, optional demo of the network-facing
// ingestion the writer specification declares out of scope as a
// contract. It exists only so the pipeline (ingest -> cache -> writer
// -> backend) is runnable end to end; nothing in the writer depends on
// it, and it implements no part of the specified core.
package receiver

import (
	"fmt"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/influxdata/line-protocol/v2/lineprotocol"
	"github.com/nats-io/nats.go"

	"github.com/ClusterCockpit/carbon-writer/internal/cache"
)

// Receiver subscribes to one or more NATS subjects carrying
// line-protocol encoded samples and stores them into a MetricCache.
type Receiver struct {
	cache      *cache.MetricCache
	clusterTag string
	subs       []*nats.Subscription
}

// New builds a Receiver writing into c, tagging samples with
// clusterTag when a line omits its own cluster tag.
func New(c *cache.MetricCache, clusterTag string) *Receiver {
	return &Receiver{cache: c, clusterTag: clusterTag}
}

// Subscribe connects to natsURL and subscribes to each subject in
// subjects, decoding every message as line-protocol and storing its
// fields as datapoints keyed by "<cluster>.<measurement>.<field>".
func (r *Receiver) Subscribe(natsURL string, subjects []string) error {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return fmt.Errorf("receiver: connect to %s: %w", natsURL, err)
	}

	for _, subject := range subjects {
		sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
			if err := r.decode(msg.Data); err != nil {
				cclog.Errorf("[RECEIVER]> decode: %s", err.Error())
			}
		})
		if err != nil {
			return fmt.Errorf("receiver: subscribe to %s: %w", subject, err)
		}
		r.subs = append(r.subs, sub)
		cclog.Infof("[RECEIVER]> subscribed to %s", subject)
	}
	return nil
}

// decode parses one line-protocol batch and stores each numeric field
// as a datapoint.
func (r *Receiver) decode(data []byte) error {
	dec := lineprotocol.NewDecoderWithBytes(data)
	for dec.Next() {
		measurement, err := dec.Measurement()
		if err != nil {
			return err
		}
		name := string(measurement)

		cluster := r.clusterTag
		for {
			key, val, err := dec.NextTag()
			if err != nil {
				return err
			}
			if key == nil {
				break
			}
			if string(key) == "cluster" {
				cluster = string(val)
			}
		}

		ts, err := dec.Time(lineprotocol.Second, 0)
		if err != nil {
			return err
		}

		for {
			field, val, err := dec.NextField()
			if err != nil {
				return err
			}
			if field == nil {
				break
			}
			fv, ok := val.FloatV()
			if !ok {
				continue
			}
			metric := fmt.Sprintf("%s.%s.%s", cluster, name, string(field))
			r.cache.Store(metric, cache.Datapoint{Timestamp: ts.Unix(), Value: fv})
		}
	}
	return nil
}

// Close unsubscribes from every subject.
func (r *Receiver) Close() {
	for _, s := range r.subs {
		_ = s.Unsubscribe()
	}
}
