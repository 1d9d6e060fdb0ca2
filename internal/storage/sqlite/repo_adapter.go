package sqlite

import (
	"context"

	"github.com/keatumal/yandex-metrika-logs/internal/ddl"
	"github.com/keatumal/yandex-metrika-logs/internal/schema"
	"github.com/keatumal/yandex-metrika-logs/internal/storage"
)

// Dialect renders SQLite DDL. Dates are stored in DATE/DATETIME columns
// (text affinity); arrays as JSON text.
var Dialect = ddl.SQLDialect{
	Kind:  "sqlite",
	Quote: ddl.QuoteWith(`"`, `"`),
	Types: map[schema.Kind]string{
		schema.KindUInt8:    "INTEGER",
		schema.KindUInt16:   "INTEGER",
		schema.KindUInt32:   "INTEGER",
		schema.KindUInt64:   "INTEGER",
		schema.KindInt8:     "INTEGER",
		schema.KindInt16:    "INTEGER",
		schema.KindInt32:    "INTEGER",
		schema.KindInt64:    "INTEGER",
		schema.KindFloat32:  "REAL",
		schema.KindFloat64:  "REAL",
		schema.KindDate:     "DATE",
		schema.KindDateTime: "DATETIME",
		schema.KindString:   "TEXT",
	},
	ArrayType: "TEXT",
}

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// wrappedRepo adapts *Repository to storage.Repository, adding a Close
// method that calls the cleanup function returned by NewRepository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Close implements storage.Repository.Close.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

var _ storage.Repository = (*wrappedRepo)(nil)

// dsn prefers an explicit DSN and falls back to the database name, which
// for SQLite is a file path.
func dsn(cfg storage.Config) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	return cfg.Database
}

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: dsn(cfg), Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
	storage.RegisterDialect("sqlite", Dialect)
}
