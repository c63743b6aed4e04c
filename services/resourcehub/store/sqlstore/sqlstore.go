// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sqlstore implements store.Store on database/sql.
//
// Two dialects are supported: "sqlite" (modernc.org/sqlite, pure Go) and
// "mysql" (github.com/go-sql-driver/mysql). Both use ? placeholders, so the
// query text is shared. Timestamps are stored as fixed-width UTC strings and
// calendar dates as YYYY-MM-DD, which keeps scanning identical across
// drivers and makes lexical comparison chronological.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/AleutianAI/ResourceHub/services/resourcehub/store"
)

// Supported drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

const defaultOpenTimeout = 30 * time.Second

// Config configures Open.
type Config struct {
	// Driver is "sqlite" (default) or "mysql".
	Driver string
	// DSN is a file path or sqlite URI for sqlite, or a go-sql-driver DSN
	// for mysql.
	DSN string
	// MaxOpenConns caps the pool. Ignored for sqlite, which always uses a
	// single connection.
	MaxOpenConns int
	// OpenTimeout bounds the startup ping retries. Default 30s.
	OpenTimeout time.Duration
}

// Store is the database/sql implementation of store.Store.
type Store struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open connects to the database and waits until it answers a ping.
//
// # Description
//
// Opens a pool for the configured dialect and pings it with exponential
// backoff, so a database container that is still starting is tolerated.
// For sqlite, foreign_keys and busy_timeout pragmas are added to the DSN
// unless it already sets them, and the pool is held to one connection.
//
// # Inputs
//
//   - ctx: Cancels the retry loop.
//   - cfg: Driver, DSN, pool size and how long to keep retrying.
//
// # Outputs
//
//   - *Store: Connected store. The caller must Close it.
//   - error: Unknown driver, empty DSN, or no successful ping within
//     OpenTimeout.
//
// # Examples
//
//	s, err := sqlstore.Open(ctx, sqlstore.Config{Driver: sqlstore.DriverMySQL, DSN: dsn})
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
// # Limitations
//
//   - Migrations are not run; call Migrate.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, errors.New("sqlstore: empty DSN")
	}

	db, err := sql.Open(d.driver, d.prepareDSN(cfg.DSN))
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", d.name, err)
	}
	d.configurePool(db, cfg.MaxOpenConns)

	timeout := cfg.OpenTimeout
	if timeout <= 0 {
		timeout = defaultOpenTimeout
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = timeout

	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		if pingErr := db.PingContext(ctx); pingErr != nil {
			slog.Warn("database not ready, retrying", "driver", d.name, "attempt", attempt, "error", pingErr)
			return pingErr
		}
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping %s: %w", d.name, err)
	}

	slog.Info("database connected", "driver", d.name, "attempts", attempt)
	return &Store{db: db, dialect: d, now: func() time.Time { return time.Now().UTC() }}, nil
}

// DB exposes the underlying pool for tooling and tests.
func (s *Store) DB() *sql.DB { return s.db }

// Driver returns the dialect name.
func (s *Store) Driver() string { return s.dialect.name }

// Ping implements store.Store.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements store.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// wrap attaches op to err and maps driver errors onto store sentinels.
func (s *Store) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, store.ErrNotFound)
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, store.ErrReferenced),
		errors.Is(err, store.ErrInvalidTransition):
		return fmt.Errorf("%s: %w", op, err)
	}
	switch s.dialect.classify(err) {
	case errUnique:
		return fmt.Errorf("%s: %w: %s", op, store.ErrConflict, uniqueDetail(err))
	case errForeignKey:
		return fmt.Errorf("%s: %w", op, store.ErrReferenced)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// uniqueDetail names the violated column when the driver message allows.
func uniqueDetail(err error) string {
	msg := strings.ToLower(err.Error())
	for _, col := range []string{"code", "email"} {
		if strings.Contains(msg, col) {
			return col + " already exists"
		}
	}
	return "duplicate value"
}

// execAffected runs an exec and returns rows affected.
func execAffected(ctx context.Context, q execer, query string, args ...any) (int64, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// exists reports whether a row with id is present in table. table is
// always a package constant.
func exists(ctx context.Context, q queryer, table, id string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
