// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type errKind int

const (
	errOther errKind = iota
	errUnique
	errForeignKey
)

// MySQL server error numbers.
const (
	mysqlDuplicateEntry   = 1062
	mysqlRowIsReferenced  = 1451
	mysqlNoReferencedRow  = 1452
	defaultMySQLOpenConns = 10
)

// dialect holds the few places where sqlite and mysql differ.
type dialect struct {
	name   string
	driver string
	// migrationsTable is the CREATE statement for schema_migrations.
	migrationsTable string
}

var (
	sqliteDialect = dialect{
		name:   DriverSQLite,
		driver: "sqlite",
		migrationsTable: `CREATE TABLE IF NOT EXISTS schema_migrations (
    version    INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TEXT NOT NULL
)`,
	}
	mysqlDialect = dialect{
		name:   DriverMySQL,
		driver: "mysql",
		migrationsTable: `CREATE TABLE IF NOT EXISTS schema_migrations (
    version    INT          NOT NULL PRIMARY KEY,
    name       VARCHAR(255) NOT NULL,
    applied_at CHAR(27)     NOT NULL
) ENGINE=InnoDB`,
	}
)

func dialectFor(driver string) (dialect, error) {
	switch strings.ToLower(driver) {
	case "", DriverSQLite, "sqlite3":
		return sqliteDialect, nil
	case DriverMySQL:
		return mysqlDialect, nil
	default:
		return dialect{}, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
}

// prepareDSN adds the connection pragmas sqlite needs. Foreign keys are off
// by default in sqlite and must be enabled per connection.
func (d dialect) prepareDSN(dsn string) string {
	if d.name != DriverSQLite {
		return dsn
	}
	var pragmas []string
	if !strings.Contains(dsn, "foreign_keys") {
		pragmas = append(pragmas, "_pragma=foreign_keys(1)")
	}
	if !strings.Contains(dsn, "busy_timeout") {
		pragmas = append(pragmas, "_pragma=busy_timeout(5000)")
	}
	if len(pragmas) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(pragmas, "&")
}

func (d dialect) configurePool(db *sql.DB, maxOpen int) {
	if d.name == DriverSQLite {
		// One writer at a time; also keeps :memory: databases on a single
		// connection.
		db.SetMaxOpenConns(1)
		return
	}
	if maxOpen <= 0 {
		maxOpen = defaultMySQLOpenConns
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(5 * time.Minute)
}

// classify maps a driver error onto a constraint kind.
func (d dialect) classify(err error) errKind {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return errUnique
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return errForeignKey
		}
		// Without extended result codes only the primary code is set.
		if se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			msg := se.Error()
			switch {
			case strings.Contains(msg, "FOREIGN KEY"):
				return errForeignKey
			case strings.Contains(msg, "UNIQUE"):
				return errUnique
			}
		}
		return errOther
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlDuplicateEntry:
			return errUnique
		case mysqlRowIsReferenced, mysqlNoReferencedRow:
			return errForeignKey
		}
	}
	return errOther
}
