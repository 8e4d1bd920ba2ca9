// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of carbon-writer.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metricslog

import (
	"context"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
)

type queryTimingKey struct{}

// Hooks satisfies sqlhooks.Hooks, logging every query issued against
// the seen-metrics database and how long it took.
type Hooks struct{}

func (h *Hooks) Before(ctx context.Context, query string, args ...any) (context.Context, error) {
	cclog.Debugf("[METRICSLOG]> %s %v", query, args)
	return context.WithValue(ctx, queryTimingKey{}, time.Now()), nil
}

func (h *Hooks) After(ctx context.Context, query string, args ...any) (context.Context, error) {
	if begin, ok := ctx.Value(queryTimingKey{}).(time.Time); ok {
		cclog.Debugf("[METRICSLOG]> took %s", time.Since(begin))
	}
	return ctx, nil
}
