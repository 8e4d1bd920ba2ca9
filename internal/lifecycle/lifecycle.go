// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of carbon-writer.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package lifecycle owns process start/stop for the writer pipeline:
// the reload timers on a cooperative scheduler, the Writer on its own
// dedicated goroutine, and the pre-shutdown rate-limit override.
package lifecycle

import (
	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/go-co-op/gocron/v2"

	"github.com/ClusterCockpit/carbon-writer/internal/schemaregistry"
)

// RateLimitWriter is the subset of *writer.Writer the shutdown hook
// needs, kept as an interface so tests can substitute a fake.
type RateLimitWriter interface {
	Run()
	Stop()
	SetMaxUpdatesPerSecond(n int)
}

// Service is the LifecycleService: start, stop and shutdown-hook
// registration for the Writer and the reload timers.
type Service struct {
	scheduler gocron.Scheduler
	timers    *schemaregistry.ReloadTimers
	writer    RateLimitWriter

	maxUpdatesPerSecondOnShutdown int

	writerDone chan struct{}
}

// New builds a Service. maxUpdatesPerSecondOnShutdown of 0 means no
// shutdown-time override is configured.
func New(timers *schemaregistry.ReloadTimers, w RateLimitWriter, maxUpdatesPerSecondOnShutdown int) (*Service, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Service{
		scheduler:                     s,
		timers:                        timers,
		writer:                        w,
		maxUpdatesPerSecondOnShutdown: maxUpdatesPerSecondOnShutdown,
		writerDone:                    make(chan struct{}),
	}, nil
}

// Start begins both reload timers on the cooperative scheduler and
// launches the Writer on a dedicated goroutine, distinct from the
// scheduler, since the Writer performs blocking I/O and sleeps.
func (s *Service) Start() error {
	if err := s.timers.Register(s.scheduler); err != nil {
		return err
	}
	s.scheduler.Start()

	go func() {
		defer close(s.writerDone)
		s.writer.Run()
	}()

	cclog.Info("[LIFECYCLE]> writer and reload timers started")
	return nil
}

// Shutdown applies the pre-shutdown rate-limit override (if
// configured), logs which happened, stops the reload timers, and
// signals the Writer to stop after its current drain attempt. It
// blocks until the Writer goroutine has exited.
func (s *Service) Shutdown() error {
	if s.maxUpdatesPerSecondOnShutdown > 0 {
		s.writer.SetMaxUpdatesPerSecond(s.maxUpdatesPerSecondOnShutdown)
		cclog.Infof("[LIFECYCLE]> shutdown hook applied MAX_UPDATES_PER_SECOND_ON_SHUTDOWN=%d", s.maxUpdatesPerSecondOnShutdown)
	} else {
		cclog.Info("[LIFECYCLE]> shutdown hook: no rate override configured")
	}

	if err := s.scheduler.Shutdown(); err != nil {
		cclog.Errorf("[LIFECYCLE]> scheduler shutdown: %s", err.Error())
	}

	s.writer.Stop()
	<-s.writerDone
	cclog.Info("[LIFECYCLE]> writer stopped")
	return nil
}
