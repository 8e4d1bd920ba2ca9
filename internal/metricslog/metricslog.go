// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of carbon-writer.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metricslog persists the writer's seen_metrics set — the
// metrics already announced to observability once — to SQLite, so a
// restarted writer can tell which metrics are genuinely new rather than
// re-treating every metric in the cache as new after a crash.
package metricslog

import (
	"database/sql"
	"embed"
	"fmt"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/qustavo/sqlhooks/v2"
	sqlite3driver "github.com/mattn/go-sqlite3"
)

//go:embed migrations/sqlite3
var migrationFiles embed.FS

// Log is the SQLite-backed seen_metrics log.
type Log struct {
	db *sqlx.DB
}

// Open connects to dsn, registering the instrumented sqlite3 driver on
// first use and applying pending migrations.
func Open(dsn string) (*Log, error) {
	registered := false
	for _, name := range sql.Drivers() {
		if name == "carbonwriter_sqlite3" {
			registered = true
			break
		}
	}
	if !registered {
		sql.Register("carbonwriter_sqlite3", sqlhooks.Wrap(&sqlite3driver.SQLiteDriver{}, &Hooks{}))
	}

	db, err := sqlx.Open("carbonwriter_sqlite3", fmt.Sprintf("%s?_foreign_keys=on", dsn))
	if err != nil {
		return nil, fmt.Errorf("metricslog: open %s: %w", dsn, err)
	}
	// sqlite does not multithread; one connection avoids waiting on locks.
	db.SetMaxOpenConns(1)

	if err := migrateUp(db.DB, dsn); err != nil {
		db.Close()
		return nil, err
	}

	return &Log{db: db}, nil
}

func migrateUp(db *sql.DB, dsn string) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("metricslog: migration driver: %w", err)
	}
	src, err := iofs.New(migrationFiles, "migrations/sqlite3")
	if err != nil {
		return fmt.Errorf("metricslog: migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("metricslog: migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("metricslog: migrate up: %w", err)
	}
	return nil
}

// Seen records metric as observed if it is not already present and
// reports whether it had already been seen. Satisfies writer.SeenMetricsLog.
func (l *Log) Seen(metric string) bool {
	var count int
	if err := l.db.Get(&count, "SELECT COUNT(*) FROM seen_metrics WHERE metric = ?", metric); err != nil {
		cclog.Errorf("[METRICSLOG]> check seen(%s): %s", metric, err.Error())
		return false
	}
	if count > 0 {
		return true
	}

	_, err := l.db.Exec("INSERT OR IGNORE INTO seen_metrics (metric, first_seen_at) VALUES (?, ?)", metric, time.Now().Unix())
	if err != nil {
		cclog.Errorf("[METRICSLOG]> record seen(%s): %s", metric, err.Error())
	}
	return false
}

// Close releases the underlying database connection.
func (l *Log) Close() error {
	return l.db.Close()
}
