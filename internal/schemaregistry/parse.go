// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of carbon-writer.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package schemaregistry

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// section is one [name] block of an INI-style schema file before its
// keys are interpreted as a StorageSchema or AggregationSchema.
type section struct {
	name string
	keys map[string]string
}

func parseSections(r io.Reader) ([]section, error) {
	scanner := bufio.NewScanner(r)
	var sections []section
	var cur *section

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			sections = append(sections, section{name: line[1 : len(line)-1], keys: map[string]string{}})
			cur = &sections[len(sections)-1]
			continue
		}
		if cur == nil {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		cur.keys[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return sections, nil
}

// ParseStorageSchemas reads a storage-schemas.conf-style file: sections
// with a `pattern` regex and a `retentions` comma list of
// secondsPerPoint:pointCount pairs (e.g. "60:1440,3600:168").
func ParseStorageSchemas(r io.Reader) ([]StorageSchema, error) {
	sections, err := parseSections(r)
	if err != nil {
		return nil, err
	}

	out := make([]StorageSchema, 0, len(sections))
	for _, s := range sections {
		pattern, ok := s.keys["pattern"]
		if !ok {
			return nil, fmt.Errorf("schema section %q: missing pattern", s.name)
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("schema section %q: bad pattern %q: %w", s.name, pattern, err)
		}
		retentions, ok := s.keys["retentions"]
		if !ok {
			return nil, fmt.Errorf("schema section %q: missing retentions", s.name)
		}
		archives, err := parseRetentions(retentions)
		if err != nil {
			return nil, fmt.Errorf("schema section %q: %w", s.name, err)
		}
		out = append(out, StorageSchema{Name: s.name, Pattern: re, Archives: archives})
	}
	return out, nil
}

// ParseAggregationSchemas reads a storage-aggregation.conf-style file:
// sections with a `pattern` regex, an `xFilesFactor` float and an
// `aggregationMethod` name.
func ParseAggregationSchemas(r io.Reader) ([]AggregationSchema, error) {
	sections, err := parseSections(r)
	if err != nil {
		return nil, err
	}

	out := make([]AggregationSchema, 0, len(sections))
	for _, s := range sections {
		pattern, ok := s.keys["pattern"]
		if !ok {
			return nil, fmt.Errorf("aggregation section %q: missing pattern", s.name)
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("aggregation section %q: bad pattern %q: %w", s.name, pattern, err)
		}
		xff, err := strconv.ParseFloat(s.keys["xFilesFactor"], 64)
		if err != nil {
			return nil, fmt.Errorf("aggregation section %q: bad xFilesFactor: %w", s.name, err)
		}
		method, ok := ParseAggregationMethod(s.keys["aggregationMethod"])
		if !ok {
			return nil, fmt.Errorf("aggregation section %q: unknown aggregationMethod %q", s.name, s.keys["aggregationMethod"])
		}
		out = append(out, AggregationSchema{
			Name:              s.name,
			Pattern:           re,
			XFilesFactor:      xff,
			AggregationMethod: method,
		})
	}
	return out, nil
}

func parseRetentions(spec string) ([]ArchiveSpec, error) {
	parts := strings.Split(spec, ",")
	out := make([]ArchiveSpec, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		pair := strings.SplitN(p, ":", 2)
		if len(pair) != 2 {
			return nil, fmt.Errorf("bad retention %q", p)
		}
		secondsPerPoint, err := strconv.Atoi(strings.TrimSpace(pair[0]))
		if err != nil {
			return nil, fmt.Errorf("bad retention %q: %w", p, err)
		}
		pointCount, err := strconv.Atoi(strings.TrimSpace(pair[1]))
		if err != nil {
			return nil, fmt.Errorf("bad retention %q: %w", p, err)
		}
		out = append(out, ArchiveSpec{SecondsPerPoint: secondsPerPoint, PointCount: pointCount})
	}
	return out, nil
}
