// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of carbon-writer.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ClusterCockpit/carbon-writer/internal/cache"
	"github.com/ClusterCockpit/carbon-writer/internal/schemaregistry"
)

// S3Config configures an S3-compatible object store as the archive
// backend, an alternative to FileBackend for deployments that want
// archives off local disk.
type S3Config struct {
	Endpoint     string
	Bucket       string
	AccessKey    string
	SecretKey    string
	Region       string
	UsePathStyle bool
}

// S3Backend stores each metric's archive as one object, keyed the same
// way FileBackend names its files (dots mapped to '/', ".wsp" suffix).
// Object content is a JSON document: the backend does not attempt to
// reproduce the round-robin archive format on top of object storage.
type S3Backend struct {
	client *s3.Client
	bucket string
}

type s3Document struct {
	XFilesFactor float64                     `json:"xFilesFactor"`
	Method       int                         `json:"aggregationMethod"`
	Archives     []schemaregistry.ArchiveSpec `json:"archives"`
	Points       []cache.Datapoint            `json:"points"`
}

// NewS3Backend builds an S3Backend from cfg.
func NewS3Backend(cfg S3Config) (*S3Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 backend: empty bucket name")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("s3 backend: load AWS config: %w", err)
	}

	opts := func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}

	return &S3Backend{client: s3.NewFromConfig(awsCfg, opts), bucket: cfg.Bucket}, nil
}

func (b *S3Backend) keyFor(metric string) string {
	rel := strings.TrimLeft(metric, ".")
	return strings.ReplaceAll(rel, ".", "/") + ".wsp"
}

func (b *S3Backend) get(ctx context.Context, metric string) (*s3Document, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.keyFor(metric)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, nil
		}
		return nil, err
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, err
	}
	var doc s3Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (b *S3Backend) put(ctx context.Context, metric string, doc *s3Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.keyFor(metric)),
		Body:        bytes.NewReader(raw),
		ContentType: aws.String("application/json"),
	})
	return err
}

// Exists reports whether metric's object is present in the bucket.
func (b *S3Backend) Exists(metric string) (bool, error) {
	doc, err := b.get(context.Background(), metric)
	if err != nil {
		return false, err
	}
	return doc != nil, nil
}

// Create writes metric's initial document. A concurrent create that
// lands first is detected by re-reading before the put and reported as
// AlreadyExistsError.
func (b *S3Backend) Create(metric string, archives []schemaregistry.ArchiveSpec, xFilesFactor float64, method schemaregistry.AggregationMethod) error {
	ctx := context.Background()
	existing, err := b.get(ctx, metric)
	if err != nil {
		return err
	}
	if existing != nil {
		return &AlreadyExistsError{Metric: metric}
	}
	return b.put(ctx, metric, &s3Document{
		XFilesFactor: xFilesFactor,
		Method:       int(method),
		Archives:     archives,
	})
}

// UpdateMany appends datapoints to metric's object.
func (b *S3Backend) UpdateMany(metric string, datapoints []cache.Datapoint) error {
	ctx := context.Background()
	doc, err := b.get(ctx, metric)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("s3 backend: update_many on nonexistent archive %q", metric)
	}
	doc.Points = append(doc.Points, datapoints...)
	return b.put(ctx, metric, doc)
}

// Info returns the aggregation metadata stored in metric's document.
func (b *S3Backend) Info(metric string) (Info, error) {
	doc, err := b.get(context.Background(), metric)
	if err != nil {
		return Info{}, err
	}
	if doc == nil {
		return Info{}, fmt.Errorf("s3 backend: info on nonexistent archive %q", metric)
	}
	return Info{AggregationMethod: schemaregistry.AggregationMethod(doc.Method), XFilesFactor: doc.XFilesFactor}, nil
}

// SetAggregationMethod changes metric's aggregation method, returning
// the previous value.
func (b *S3Backend) SetAggregationMethod(metric string, method schemaregistry.AggregationMethod) (schemaregistry.AggregationMethod, error) {
	ctx := context.Background()
	doc, err := b.get(ctx, metric)
	if err != nil {
		return 0, err
	}
	if doc == nil {
		return 0, fmt.Errorf("s3 backend: set_aggregation_method on nonexistent archive %q", metric)
	}
	prev := schemaregistry.AggregationMethod(doc.Method)
	doc.Method = int(method)
	if err := b.put(ctx, metric, doc); err != nil {
		return 0, err
	}
	return prev, nil
}
