package mysql

import (
	"context"

	"github.com/keatumal/yandex-metrika-logs/internal/ddl"
	"github.com/keatumal/yandex-metrika-logs/internal/schema"
	"github.com/keatumal/yandex-metrika-logs/internal/storage"
)

// Dialect renders MySQL DDL. Arrays are stored in JSON columns.
var Dialect = ddl.SQLDialect{
	Kind:  "mysql",
	Quote: ddl.QuoteWith("`", "`"),
	Types: map[schema.Kind]string{
		schema.KindUInt8:    "TINYINT UNSIGNED",
		schema.KindUInt16:   "SMALLINT UNSIGNED",
		schema.KindUInt32:   "INT UNSIGNED",
		schema.KindUInt64:   "BIGINT UNSIGNED",
		schema.KindInt8:     "TINYINT",
		schema.KindInt16:    "SMALLINT",
		schema.KindInt32:    "INT",
		schema.KindInt64:    "BIGINT",
		schema.KindFloat32:  "FLOAT",
		schema.KindFloat64:  "DOUBLE",
		schema.KindDate:     "DATE",
		schema.KindDateTime: "DATETIME",
		schema.KindString:   "LONGTEXT",
	},
	ArrayType: "JSON",
}

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

var _ storage.Repository = (*wrappedRepo)(nil)

// init registers the "mysql" backend with the factory.
func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: buildDSN(cfg), Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
	storage.RegisterDialect("mysql", Dialect)
}

// wrappedRepo adapts *Repository to storage.Repository and provides Close.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Close closes the underlying connection pool.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}
