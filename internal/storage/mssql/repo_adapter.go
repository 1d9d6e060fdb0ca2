package mssql

import (
	"context"
	"strings"

	"github.com/keatumal/yandex-metrika-logs/internal/ddl"
	"github.com/keatumal/yandex-metrika-logs/internal/schema"
	"github.com/keatumal/yandex-metrika-logs/internal/storage"
)

// Dialect renders SQL Server DDL. SQL Server has no CREATE TABLE IF NOT
// EXISTS, so the statement is guarded with OBJECT_ID.
var Dialect = ddl.SQLDialect{
	Kind:  "mssql",
	Quote: ddl.QuoteWith("[", "]"),
	Types: map[schema.Kind]string{
		schema.KindUInt8:    "TINYINT",
		schema.KindUInt16:   "INT",
		schema.KindUInt32:   "BIGINT",
		schema.KindUInt64:   "DECIMAL(20,0)",
		schema.KindInt8:     "SMALLINT",
		schema.KindInt16:    "SMALLINT",
		schema.KindInt32:    "INT",
		schema.KindInt64:    "BIGINT",
		schema.KindFloat32:  "REAL",
		schema.KindFloat64:  "FLOAT",
		schema.KindDate:     "DATE",
		schema.KindDateTime: "DATETIME2",
		schema.KindString:   "NVARCHAR(MAX)",
	},
	ArrayType: "NVARCHAR(MAX)",
	Guard: func(fqn, create string) string {
		return "IF OBJECT_ID(N'" + strings.ReplaceAll(fqn, "'", "''") + "', N'U') IS NULL\n" + create
	},
}

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// wrappedRepo adapts *Repository to storage.Repository and provides Close.
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
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: buildDSN(cfg), Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
	storage.RegisterDialect("mssql", Dialect)
}
