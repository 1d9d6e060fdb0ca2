package postgres

import (
	"context"

	"github.com/keatumal/yandex-metrika-logs/internal/ddl"
	"github.com/keatumal/yandex-metrika-logs/internal/schema"
	"github.com/keatumal/yandex-metrika-logs/internal/storage"
)

// Dialect renders Postgres DDL. Unsigned types widen to the next signed
// type; UInt64 needs NUMERIC(20,0).
var Dialect = ddl.SQLDialect{
	Kind:  "postgres",
	Quote: ddl.QuoteWith(`"`, `"`),
	Types: map[schema.Kind]string{
		schema.KindUInt8:    "SMALLINT",
		schema.KindUInt16:   "INTEGER",
		schema.KindUInt32:   "BIGINT",
		schema.KindUInt64:   "NUMERIC(20,0)",
		schema.KindInt8:     "SMALLINT",
		schema.KindInt16:    "SMALLINT",
		schema.KindInt32:    "INTEGER",
		schema.KindInt64:    "BIGINT",
		schema.KindFloat32:  "REAL",
		schema.KindFloat64:  "DOUBLE PRECISION",
		schema.KindDate:     "DATE",
		schema.KindDateTime: "TIMESTAMP",
		schema.KindString:   "TEXT",
	},
	ArrayType: "TEXT",
}

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

// wrappedRepo implements storage.Repository by delegating to *Repository
// while providing a Close method that calls the close function returned by
// NewRepository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

var _ storage.Repository = (*wrappedRepo)(nil)

// Close implements storage.Repository.Close.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: buildDSN(cfg), Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
	storage.RegisterDialect("postgres", Dialect)
}
