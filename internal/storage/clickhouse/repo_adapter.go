package clickhouse

import (
	"context"

	"github.com/keatumal/yandex-metrika-logs/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

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
	storage.Register("clickhouse", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		opts, err := options(cfg)
		if err != nil {
			return nil, err
		}
		r, closeFn, err := newRepository(ctx, Config{Options: opts, Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
	storage.RegisterDialect("clickhouse", Dialect)
}
