// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of carbon-writer.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package storage

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/ClusterCockpit/carbon-writer/internal/cache"
	"github.com/ClusterCockpit/carbon-writer/internal/schemaregistry"
)

const whisperMagic = "CBWW1"

// FileBackend is the default StorageBackend: one binary archive file
// per metric under a configured data directory, following the classic
// `<dataDir>/a/b/c.wsp` layout (dots become path separators). Points are
// appended after the header; the file does not wrap around at the
// retention layers' point counts.
type FileBackend struct {
	dataDir         string
	autoflush       bool
	fallocateCreate bool
	lockWrites      bool

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// FileBackendOptions mirrors the configuration options recognized by
// the default backend.
type FileBackendOptions struct {
	Autoflush       bool
	FallocateCreate bool
	LockWrites      bool
}

// NewFileBackend returns a FileBackend rooted at dataDir.
func NewFileBackend(dataDir string, opts FileBackendOptions) *FileBackend {
	return &FileBackend{
		dataDir:         dataDir,
		autoflush:       opts.Autoflush,
		fallocateCreate: opts.FallocateCreate,
		lockWrites:      opts.LockWrites,
		locks:           make(map[string]*sync.Mutex),
	}
}

// pathFor maps a metric name onto its archive's filesystem path.
// Leading separators are stripped and dots map to the OS path separator.
func (b *FileBackend) pathFor(metric string) string {
	rel := strings.TrimLeft(metric, ".")
	rel = strings.ReplaceAll(rel, ".", string(os.PathSeparator))
	return filepath.Join(b.dataDir, rel+".wsp")
}

func (b *FileBackend) lockFor(metric string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.locks[metric]
	if !ok {
		m = &sync.Mutex{}
		b.locks[metric] = m
	}
	return m
}

// Exists reports whether metric's archive file is present on disk.
func (b *FileBackend) Exists(metric string) (bool, error) {
	_, err := os.Stat(b.pathFor(metric))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Create makes a new archive file for metric. Parent directories are
// created with mode 0755; a directory-creation failure other than
// "already exists" is fatal for this create attempt. A file that
// already exists (a concurrent create won the race) is reported as
// AlreadyExistsError so the caller can treat it as success.
func (b *FileBackend) Create(metric string, archives []schemaregistry.ArchiveSpec, xFilesFactor float64, method schemaregistry.AggregationMethod) error {
	path := b.pathFor(metric)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	lock := b.lockFor(metric)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return &AlreadyExistsError{Metric: metric}
		}
		return err
	}
	defer f.Close()

	if b.fallocateCreate {
		if err := fallocateHint(f, archives); err != nil {
			cclog.Warnf("[STORAGE]> fallocate unsupported for %s: %s", path, err.Error())
		}
	}

	return writeHeader(f, archives, xFilesFactor, method)
}

// UpdateMany appends datapoints to the end of metric's archive file in
// the order given; they are not placed into separate retention layers.
func (b *FileBackend) UpdateMany(metric string, datapoints []cache.Datapoint) error {
	path := b.pathFor(metric)

	lock := b.lockFor(metric)
	lock.Lock()
	defer lock.Unlock()

	if b.lockWrites {
		if err := flockExclusive(path); err != nil {
			cclog.Warnf("[STORAGE]> lock_writes unsupported for %s: %s", path, err.Error())
		}
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	hdr, err := readHeader(f)
	if err != nil {
		return err
	}

	if err := appendPoints(f, hdr, datapoints); err != nil {
		return err
	}

	if b.autoflush {
		return f.Sync()
	}
	return nil
}

// Info returns the aggregation metadata stored in metric's archive header.
func (b *FileBackend) Info(metric string) (Info, error) {
	f, err := os.Open(b.pathFor(metric))
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	hdr, err := readHeader(f)
	if err != nil {
		return Info{}, err
	}
	return Info{AggregationMethod: hdr.method, XFilesFactor: hdr.xFilesFactor}, nil
}

// SetAggregationMethod rewrites metric's header with a new aggregation
// method and returns the previous one.
func (b *FileBackend) SetAggregationMethod(metric string, method schemaregistry.AggregationMethod) (schemaregistry.AggregationMethod, error) {
	path := b.pathFor(metric)

	lock := b.lockFor(metric)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	hdr, err := readHeader(f)
	if err != nil {
		return 0, err
	}
	prev := hdr.method
	hdr.method = method
	if err := rewriteHeaderMethod(f, hdr); err != nil {
		return 0, err
	}
	return prev, nil
}

// header is the fixed-size metadata block at the start of every
// archive file.
type header struct {
	xFilesFactor float64
	method       schemaregistry.AggregationMethod
	archives     []schemaregistry.ArchiveSpec
}

func writeHeader(f *os.File, archives []schemaregistry.ArchiveSpec, xFilesFactor float64, method schemaregistry.AggregationMethod) error {
	if _, err := f.WriteString(whisperMagic); err != nil {
		return err
	}
	if err := binary.Write(f, binary.BigEndian, xFilesFactor); err != nil {
		return err
	}
	if err := binary.Write(f, binary.BigEndian, int32(method)); err != nil {
		return err
	}
	if err := binary.Write(f, binary.BigEndian, int32(len(archives))); err != nil {
		return err
	}
	for _, a := range archives {
		if err := binary.Write(f, binary.BigEndian, int32(a.SecondsPerPoint)); err != nil {
			return err
		}
		if err := binary.Write(f, binary.BigEndian, int32(a.PointCount)); err != nil {
			return err
		}
	}
	return nil
}

func readHeader(f *os.File) (*header, error) {
	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}
	magic := make([]byte, len(whisperMagic))
	if _, err := f.Read(magic); err != nil {
		return nil, err
	}
	if string(magic) != whisperMagic {
		return nil, errors.New("storage: not a carbon-writer archive file")
	}

	hdr := &header{}
	if err := binary.Read(f, binary.BigEndian, &hdr.xFilesFactor); err != nil {
		return nil, err
	}
	var method int32
	if err := binary.Read(f, binary.BigEndian, &method); err != nil {
		return nil, err
	}
	hdr.method = schemaregistry.AggregationMethod(method)

	var n int32
	if err := binary.Read(f, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	hdr.archives = make([]schemaregistry.ArchiveSpec, n)
	for i := range hdr.archives {
		var spp, pc int32
		if err := binary.Read(f, binary.BigEndian, &spp); err != nil {
			return nil, err
		}
		if err := binary.Read(f, binary.BigEndian, &pc); err != nil {
			return nil, err
		}
		hdr.archives[i] = schemaregistry.ArchiveSpec{SecondsPerPoint: int(spp), PointCount: int(pc)}
	}
	return hdr, nil
}

func rewriteHeaderMethod(f *os.File, hdr *header) error {
	if _, err := f.Seek(int64(len(whisperMagic)+8), 0); err != nil {
		return err
	}
	return binary.Write(f, binary.BigEndian, int32(hdr.method))
}

// appendPoints writes each datapoint to the end of the file as a
// (timestamp, value) record. Rollup into coarser archive layers is
// intentionally not implemented: this backend's on-disk layout is not
// part of the specified contract.
func appendPoints(f *os.File, hdr *header, datapoints []cache.Datapoint) error {
	if _, err := f.Seek(0, 2); err != nil {
		return err
	}
	for _, dp := range datapoints {
		if err := binary.Write(f, binary.BigEndian, dp.Timestamp); err != nil {
			return err
		}
		if err := binary.Write(f, binary.BigEndian, dp.Value); err != nil {
			return err
		}
	}
	return nil
}
