// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (as a blank
// import) runs the init functions of each backend, which register their
// repository factories and DDL dialects with the storage package:
//
//   - "clickhouse" (internal/storage/clickhouse), the default destination
//   - "postgres"   (internal/storage/postgres)
//   - "mssql"      (internal/storage/mssql)
//   - "mysql"      (internal/storage/mysql)
//   - "sqlite"     (internal/storage/sqlite)
//
// Typical usage (in a cmd/ main package):
//
//	import _ "github.com/keatumal/yandex-metrika-logs/internal/storage/all"
//
//	repo, err := storage.New(ctx, storage.ConfigFromDB(env.DB, table, columns))
//	if err != nil {
//	    // handle error
//	}
//	defer repo.Close()
package all

import (
	_ "github.com/keatumal/yandex-metrika-logs/internal/storage/clickhouse"
	_ "github.com/keatumal/yandex-metrika-logs/internal/storage/mssql"
	_ "github.com/keatumal/yandex-metrika-logs/internal/storage/mysql"
	_ "github.com/keatumal/yandex-metrika-logs/internal/storage/postgres"
	_ "github.com/keatumal/yandex-metrika-logs/internal/storage/sqlite"
)
