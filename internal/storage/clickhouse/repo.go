// Package clickhouse implements the default destination backend on the
// native protocol client github.com/ClickHouse/clickhouse-go/v2. Each batch
// is one native INSERT block (PrepareBatch, Append per row, Send).
package clickhouse

import (
	"context"
	"fmt"
	"strings"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/keatumal/yandex-metrika-logs/internal/storage"
)

// Config holds ClickHouse repository configuration.
type Config struct {
	Options *ch.Options
	Table   string
}

// batch is the subset of driver.Batch the repository uses.
type batch interface {
	Append(v ...any) error
	Send() error
	Abort() error
}

// conn narrows driver.Conn to what the repository needs; tests provide a
// fake.
type conn interface {
	PrepareBatch(ctx context.Context, query string) (batch, error)
	Exec(ctx context.Context, query string) error
	Count(ctx context.Context, query string) (uint64, error)
	Close() error
}

type nativeConn struct{ c driver.Conn }

func (n nativeConn) PrepareBatch(ctx context.Context, query string) (batch, error) {
	return n.c.PrepareBatch(ctx, query)
}

func (n nativeConn) Exec(ctx context.Context, query string) error { return n.c.Exec(ctx, query) }

func (n nativeConn) Count(ctx context.Context, query string) (uint64, error) {
	var v uint64
	err := n.c.QueryRow(ctx, query).Scan(&v)
	return v, err
}

func (n nativeConn) Close() error { return n.c.Close() }

// Repository is a ClickHouse-backed implementation of storage.Repository.
type Repository struct {
	conn conn
	cfg  Config
}

// NewRepository opens a native connection, pings it and returns a Close
// function.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	c, err := ch.Open(cfg.Options)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse: open: %w", err)
	}
	if err := c.Ping(ctx); err != nil {
		c.Close()
		return nil, nil, fmt.Errorf("clickhouse: ping %s: %w", strings.Join(cfg.Options.Addr, ","), err)
	}
	return &Repository{conn: nativeConn{c}, cfg: cfg}, func() { c.Close() }, nil
}

// CopyFrom sends rows as one native block. Values are passed as produced by
// the schema converter; typed slices map onto Array columns directly.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	b, err := r.conn.PrepareBatch(ctx, insertQuery(r.cfg.Table, columns))
	if err != nil {
		return 0, fmt.Errorf("clickhouse: prepare batch: %w", err)
	}
	for i, row := range rows {
		if err := b.Append(row...); err != nil {
			_ = b.Abort()
			return 0, fmt.Errorf("clickhouse: append row %d: %w", i, err)
		}
	}
	if err := b.Send(); err != nil {
		return 0, fmt.Errorf("clickhouse: send batch: %w", err)
	}
	return int64(len(rows)), nil
}

func insertQuery(table string, columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = Dialect.QuoteIdent(c)
	}
	return fmt.Sprintf("INSERT INTO %s (%s)", Dialect.QuoteIdent(table), strings.Join(quoted, ", "))
}

// Exec runs a statement, typically CREATE TABLE.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if err := r.conn.Exec(ctx, sql); err != nil {
		return fmt.Errorf("clickhouse: exec: %w", err)
	}
	return nil
}

// CountRows returns count() of the configured table.
func (r *Repository) CountRows(ctx context.Context) (int64, error) {
	n, err := r.conn.Count(ctx, "SELECT count() FROM "+Dialect.QuoteIdent(r.cfg.Table))
	if err != nil {
		return 0, fmt.Errorf("clickhouse: count rows: %w", err)
	}
	return int64(n), nil
}

// options builds client options from a DSN or the individual fields.
func options(cfg storage.Config) (*ch.Options, error) {
	if cfg.DSN != "" {
		o, err := ch.ParseDSN(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("clickhouse: parse DSN: %w", err)
		}
		return o, nil
	}
	return &ch.Options{
		Addr: []string{cfg.HostPort(9000)},
		Auth: ch.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
	}, nil
}
