package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/keatumal/yandex-metrika-logs/internal/ddl"
)

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
	dialects  = map[string]ddl.Dialect{}
)

// Register registers (or replaces) the factory for kind. Backends call it
// from init.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens a Repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns a sorted snapshot of registered kinds.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// RegisterDialect registers (or replaces) the DDL dialect for kind.
func RegisterDialect(kind string, d ddl.Dialect) {
	mu.Lock()
	defer mu.Unlock()
	dialects[kind] = d
}

// DialectFor returns the DDL dialect registered for kind.
func DialectFor(kind string) (ddl.Dialect, error) {
	mu.RLock()
	d, ok := dialects[kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no DDL dialect registered for storage.kind=%q", kind)
	}
	return d, nil
}

// CreateTableSQL renders def in the dialect registered for kind.
func CreateTableSQL(kind string, def ddl.TableDef) (string, error) {
	d, err := DialectFor(kind)
	if err != nil {
		return "", err
	}
	return ddl.BuildCreateTableSQL(def, d)
}

// EnsureTable renders def for kind and applies it through repo.Exec. The
// statement is CREATE TABLE IF NOT EXISTS, so repeating it is harmless.
func EnsureTable(ctx context.Context, kind string, repo Repository, def ddl.TableDef) error {
	stmt, err := CreateTableSQL(kind, def)
	if err != nil {
		return err
	}
	if err := repo.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("apply DDL: %w", err)
	}
	return nil
}
