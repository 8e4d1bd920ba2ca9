// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of carbon-writer.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/google/gops/agent"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ClusterCockpit/carbon-writer/internal/adminapi"
	"github.com/ClusterCockpit/carbon-writer/internal/cache"
	"github.com/ClusterCockpit/carbon-writer/internal/config"
	"github.com/ClusterCockpit/carbon-writer/internal/lifecycle"
	"github.com/ClusterCockpit/carbon-writer/internal/metricslog"
	"github.com/ClusterCockpit/carbon-writer/internal/receiver"
	"github.com/ClusterCockpit/carbon-writer/internal/runtimeenv"
	"github.com/ClusterCockpit/carbon-writer/internal/schemaregistry"
	"github.com/ClusterCockpit/carbon-writer/internal/scheduler"
	"github.com/ClusterCockpit/carbon-writer/internal/storage"
	"github.com/ClusterCockpit/carbon-writer/internal/writer"
)

// cacheFullLogger is the CacheFullNotifier wired into the
// FlushScheduler: it only logs, the writer itself has no way to slow
// down producers.
type cacheFullLogger struct{}

func (cacheFullLogger) CacheSpaceAvailable() {
	cclog.Info("[MAIN]> cache dropped back below its low watermark")
}

func loadInitialSchemas() *schemaregistry.SchemaRegistry {
	storageFile, err := os.Open(config.Keys.Schemas.StorageSchemasFile)
	if err != nil {
		cclog.Fatalf("[MAIN]> opening %s: %s", config.Keys.Schemas.StorageSchemasFile, err.Error())
	}
	defer storageFile.Close()

	storageSchemas, err := schemaregistry.ParseStorageSchemas(storageFile)
	if err != nil {
		cclog.Fatalf("[MAIN]> parsing %s: %s", config.Keys.Schemas.StorageSchemasFile, err.Error())
	}

	aggregationFile, err := os.Open(config.Keys.Schemas.StorageAggregationFile)
	if err != nil {
		cclog.Fatalf("[MAIN]> opening %s: %s", config.Keys.Schemas.StorageAggregationFile, err.Error())
	}
	defer aggregationFile.Close()

	aggregationSchemas, err := schemaregistry.ParseAggregationSchemas(aggregationFile)
	if err != nil {
		cclog.Fatalf("[MAIN]> parsing %s: %s", config.Keys.Schemas.StorageAggregationFile, err.Error())
	}

	cclog.Infof("[MAIN]> loaded %d storage schemas, %d aggregation schemas",
		len(storageSchemas), len(aggregationSchemas))
	return schemaregistry.New(storageSchemas, aggregationSchemas)
}

func main() {
	var flagConfigFile, flagLogLevel string
	var flagGops bool
	flag.StringVar(&flagConfigFile, "config", "./carbon-writer.json", "Overwrite the default configuration options by those specified in `config.json`")
	flag.StringVar(&flagLogLevel, "loglevel", "info", "One of: debug, info, warn, err, fatal, crit")
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.Parse()

	cclog.Init(flagLogLevel, true)

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			cclog.Fatalf("[MAIN]> gops/agent.Listen failed: %s", err.Error())
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		cclog.Fatalf("[MAIN]> parsing '.env' file failed: %s", err.Error())
	}

	config.Init(flagConfigFile)

	metricCache := cache.New(config.Keys.Cache.MaxSize)
	registry := loadInitialSchemas()

	reloadInterval, err := time.ParseDuration(config.Keys.Schemas.ReloadInterval)
	if err != nil {
		cclog.Fatalf("[MAIN]> invalid schemas.reload-interval %q: %s", config.Keys.Schemas.ReloadInterval, err.Error())
	}
	reloadTimers := schemaregistry.NewReloadTimers(registry,
		config.Keys.Schemas.StorageSchemasFile, config.Keys.Schemas.StorageAggregationFile, reloadInterval)

	backend, err := storage.New(config.Keys.Storage.Backend)
	if err != nil {
		cclog.Fatalf("[MAIN]> building storage backend %q: %s", config.Keys.Storage.Backend, err.Error())
	}

	seenLog, err := metricslog.Open(config.Keys.MetricsLog.DSN)
	if err != nil {
		cclog.Fatalf("[MAIN]> opening metrics log: %s", err.Error())
	}
	defer seenLog.Close()

	flushScheduler := scheduler.New(metricCache, cacheFullLogger{}, config.Keys.RateLimits.MaxCreatesPerMinute)

	promReg := prometheus.NewRegistry()
	writerMetrics := writer.NewMetrics(promReg)

	w := writer.New(metricCache, flushScheduler, backend, registry, seenLog, writerMetrics, writer.Config{
		MaxUpdatesPerSecond: config.Keys.RateLimits.MaxUpdatesPerSecond,
		EnableBatched:       config.Keys.Writes.EnableBatched,
		LogUpdates:          config.Keys.Writes.LogUpdates,
		LogBatchUpdates:     config.Keys.Writes.LogBatchUpdates,
	})

	svc, err := lifecycle.New(reloadTimers, w, config.Keys.RateLimits.MaxUpdatesPerSecondOnShutdown)
	if err != nil {
		cclog.Fatalf("[MAIN]> building lifecycle service: %s", err.Error())
	}
	if err := svc.Start(); err != nil {
		cclog.Fatalf("[MAIN]> starting lifecycle service: %s", err.Error())
	}

	var rcv *receiver.Receiver
	if rc := config.Keys.Receiver; rc != nil {
		rcv = receiver.New(metricCache, rc.ClusterTag)
		if err := rcv.Subscribe(rc.NatsURL, rc.SubscribeTo); err != nil {
			cclog.Fatalf("[MAIN]> starting receiver: %s", err.Error())
		}
	}

	adminAPI := &adminapi.API{Backend: backend}
	adminServer := &http.Server{Addr: config.Keys.AdminAPI.Addr, Handler: adminAPI.NewServer()}

	instrumentationMux := http.NewServeMux()
	instrumentationMux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	instrumentationServer := &http.Server{Addr: config.Keys.Instrumentation.Addr, Handler: instrumentationMux}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		cclog.Infof("[MAIN]> admin API listening at %s", config.Keys.AdminAPI.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			cclog.Errorf("[MAIN]> admin API server: %s", err.Error())
		}
	}()
	go func() {
		defer wg.Done()
		cclog.Infof("[MAIN]> instrumentation listening at %s", config.Keys.Instrumentation.Addr)
		if err := instrumentationServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			cclog.Errorf("[MAIN]> instrumentation server: %s", err.Error())
		}
	}()

	runtimeenv.SystemdNotify(true, "running")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	runtimeenv.SystemdNotify(false, "shutting down")
	fmt.Println()
	cclog.Info("[MAIN]> shutting down...")

	if rcv != nil {
		rcv.Close()
	}
	_ = adminServer.Close()
	_ = instrumentationServer.Close()

	if err := svc.Shutdown(); err != nil {
		cclog.Errorf("[MAIN]> lifecycle shutdown: %s", err.Error())
	}

	wg.Wait()
	cclog.Info("[MAIN]> graceful shutdown complete")
}
