// Package mysql implements a MySQL repository using database/sql and
// github.com/go-sql-driver/mysql. Batches are written as multi-row INSERT
// statements inside one transaction.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/keatumal/yandex-metrika-logs/internal/storage"
)

// maxPlaceholders is the server-side limit on bind parameters per statement.
const maxPlaceholders = 65535

// Config holds MySQL repository configuration.
type Config struct {
	DSN   string // go-sql-driver DSN, e.g. "user:pass@tcp(host:3306)/db?parseTime=true"
	Table string // target table, optionally database-qualified
}

// Repository is a MySQL-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository opens the pool, pings it and returns a Close function.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("mysql: ping: %w", err)
	}
	return &Repository{db: db, cfg: cfg}, func() { db.Close() }, nil
}

// CopyFrom inserts rows with multi-row INSERT statements, split so that no
// statement exceeds the placeholder limit.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("mysql: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	rows, err := storage.RowsForSQL(rows, storage.SQLRowOptions{WideUint64: true})
	if err != nil {
		return 0, fmt.Errorf("mysql: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mysql: begin tx: %w", err)
	}
	var total int64
	for _, chunk := range chunkRows(rows, maxPlaceholders/len(columns)) {
		query, args, err := insertStatement(r.cfg.Table, columns, chunk)
		if err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("mysql: insert: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("mysql: rows affected: %w", err)
		}
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mysql: commit: %w", err)
	}
	return total, nil
}

// insertStatement renders INSERT INTO t (cols) VALUES (?,..),(?,..) and the
// flattened argument list.
func insertStatement(table string, columns []string, rows [][]any) (string, []any, error) {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = Dialect.QuoteIdent(c)
	}
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", Dialect.QuoteIdent(table), strings.Join(quoted, ", "))
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if len(row) != len(columns) {
			return "", nil, fmt.Errorf("mysql: CopyFrom: row %d length %d != columns length %d", i, len(row), len(columns))
		}
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(tuple)
		args = append(args, row...)
	}
	return sb.String(), args, nil
}

func chunkRows(rows [][]any, size int) [][][]any {
	if size <= 0 {
		size = 1
	}
	var out [][][]any
	for len(rows) > size {
		out = append(out, rows[:size])
		rows = rows[size:]
	}
	return append(out, rows)
}

// Exec executes a SQL statement against the pool.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	if _, err := r.db.ExecContext(ctx, sqlText); err != nil {
		return fmt.Errorf("mysql: exec: %w", err)
	}
	return nil
}

// CountRows returns the number of rows in the configured table.
func (r *Repository) CountRows(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+Dialect.QuoteIdent(r.cfg.Table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("mysql: count rows: %w", err)
	}
	return n, nil
}

// buildDSN renders a driver DSN from the individual connection fields.
func buildDSN(cfg storage.Config) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = cfg.HostPort(3306)
	mc.DBName = cfg.Database
	mc.ParseTime = true
	return mc.FormatDSN()
}
