// Package storage contains storage-agnostic contracts and utilities: the
// Repository interface every destination backend implements, a small factory
// keyed by storage kind, DDL dialect registration, and a batched loader.
//
// Backends live in subpackages and register themselves at init time;
// importing internal/storage/all enables every built-in backend.
package storage

import (
	"context"
	"strconv"

	"github.com/keatumal/yandex-metrika-logs/internal/config"
)

// Repository is a destination table handle. CopyFrom inserts one batch of
// rows aligned to columns; Exec runs a statement (typically DDL); CountRows
// reports the number of rows in the configured table.
type Repository interface {
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)
	Exec(ctx context.Context, sql string) error
	CountRows(ctx context.Context) (int64, error)
	Close()
}

// Config is the backend-neutral connection description handed to factories.
// DSN, when set, takes precedence over the individual connection fields.
type Config struct {
	Kind     string
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	Database string

	// Table is the destination table, optionally database-qualified.
	Table string
	// Columns is the ordered destination column list.
	Columns []string
}

// ConfigFromDB adapts environment settings to a Config for table.
func ConfigFromDB(db config.DB, table string, columns []string) Config {
	return Config{
		Kind:     db.Kind,
		DSN:      db.DSN,
		Host:     db.Host,
		Port:     db.Port,
		User:     db.User,
		Password: db.Password,
		Database: db.Name,
		Table:    table,
		Columns:  columns,
	}
}

// HostPort joins Host and Port, falling back to def for an unset port.
func (c Config) HostPort(def int) string {
	port := c.Port
	if port == 0 {
		port = def
	}
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	return host + ":" + strconv.Itoa(port)
}
