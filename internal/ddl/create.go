// Package ddl defines a small, backend-agnostic model for SQL DDL and helpers
// to render CREATE TABLE statements from that model.
//
// The model itself is dialect-free. A Dialect supplies identifier quoting,
// the mapping from schema column types to SQL types, and an optional table
// suffix (the ClickHouse ENGINE clause). Storage backends register their
// Dialect with the storage package so callers can render DDL by storage kind
// without importing a backend.
package ddl

import (
	"fmt"
	"strings"

	"github.com/keatumal/yandex-metrika-logs/internal/schema"
)

// Dialect adapts the generic model to one SQL dialect.
type Dialect interface {
	// Name is the storage kind the dialect belongs to, e.g. "postgres".
	Name() string
	// QuoteIdent quotes a possibly dotted identifier ("db.table").
	QuoteIdent(name string) string
	// MapType returns the column type clause, nullability included.
	MapType(t schema.Type) (string, error)
	// TableSuffix is appended after the closing parenthesis.
	TableSuffix(def TableDef) (string, error)
}

// BuildCreateTableSQL renders a CREATE TABLE IF NOT EXISTS statement.
//
// Rules:
//
//   - def.FQN must be non-empty; it is quoted with d.QuoteIdent.
//   - Each column must have a non-empty Name and a type the dialect maps
//     (or an explicit SQLType).
//   - The statement has the form:
//
//     CREATE TABLE IF NOT EXISTS <fqn> (
//     <col1> <type1>,
//     ...
//     )<suffix>
func BuildCreateTableSQL(def TableDef, d Dialect) (string, error) {
	if d == nil {
		return "", fmt.Errorf("ddl: dialect must not be nil")
	}
	fqn := strings.TrimSpace(def.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(def.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(def.Columns))
	for _, c := range def.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			var err error
			if typ, err = d.MapType(c.Type); err != nil {
				return "", fmt.Errorf("ddl: column %s: %w", name, err)
			}
		}
		cols = append(cols, d.QuoteIdent(name)+" "+typ)
	}

	suffix, err := d.TableSuffix(def)
	if err != nil {
		return "", err
	}

	if g, ok := d.(guardedDialect); ok {
		create := fmt.Sprintf("CREATE TABLE %s (\n  %s\n)%s",
			d.QuoteIdent(fqn), strings.Join(cols, ",\n  "), suffix)
		if stmt, ok := g.GuardCreate(fqn, create); ok {
			return stmt, nil
		}
	}

	stmt := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s\n)%s",
		d.QuoteIdent(fqn),
		strings.Join(cols, ",\n  "),
		suffix,
	)
	return stmt, nil
}

// guardedDialect is implemented by dialects that lack CREATE TABLE IF NOT
// EXISTS and wrap a plain CREATE TABLE in their own existence check.
type guardedDialect interface {
	GuardCreate(fqn, create string) (string, bool)
}

// QuoteDotted quotes each dot-separated part of name with quote.
func QuoteDotted(name string, quote func(string) string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = quote(p)
	}
	return strings.Join(parts, ".")
}

// SQLDialect is a table-driven Dialect for row-store databases. Arrays are
// stored as JSON text in ArrayType columns, and non-nullable columns get
// NOT NULL.
type SQLDialect struct {
	Kind      string
	Quote     func(string) string
	Types     map[schema.Kind]string
	ArrayType string
	// Guard, when set, wraps a plain CREATE TABLE statement in an existence
	// check for databases without IF NOT EXISTS.
	Guard func(fqn, create string) string
}

// Name implements Dialect.
func (d SQLDialect) Name() string { return d.Kind }

// QuoteIdent implements Dialect.
func (d SQLDialect) QuoteIdent(name string) string {
	return QuoteDotted(name, d.Quote)
}

// MapType implements Dialect.
func (d SQLDialect) MapType(t schema.Type) (string, error) {
	var typ string
	if t.Kind == schema.KindArray {
		typ = d.ArrayType
	} else {
		typ = d.Types[t.Kind]
	}
	if typ == "" {
		return "", fmt.Errorf("%s: no SQL type for %s", d.Kind, t)
	}
	if !t.Nullable {
		typ += " NOT NULL"
	}
	return typ, nil
}

// GuardCreate applies Guard when one is configured.
func (d SQLDialect) GuardCreate(fqn, create string) (string, bool) {
	if d.Guard == nil {
		return "", false
	}
	return d.Guard(fqn, create), true
}

// TableSuffix implements Dialect; row stores need none.
func (d SQLDialect) TableSuffix(TableDef) (string, error) { return "", nil }

// QuoteWith returns a quoting func that wraps identifiers in left/right and
// doubles any embedded right character.
func QuoteWith(left, right string) func(string) string {
	return func(s string) string {
		return left + strings.ReplaceAll(s, right, right+right) + right
	}
}
