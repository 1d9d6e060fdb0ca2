package clickhouse

import (
	"strings"

	"github.com/keatumal/yandex-metrika-logs/internal/ddl"
	"github.com/keatumal/yandex-metrika-logs/internal/schema"
)

// DefaultEngine is used when the table definition names none.
const DefaultEngine = "MergeTree()"

// dialect renders ClickHouse DDL. Column types are the schema vocabulary
// itself except DateTime, which is pinned to UTC; the table suffix carries
// ENGINE, PARTITION BY and ORDER BY.
type dialect struct{}

// Dialect is the ClickHouse DDL dialect.
var Dialect ddl.Dialect = dialect{}

var quote = ddl.QuoteWith("`", "`")

func (dialect) Name() string { return "clickhouse" }

func (dialect) QuoteIdent(name string) string { return ddl.QuoteDotted(name, quote) }

func (dialect) MapType(t schema.Type) (string, error) { return columnType(t), nil }

// columnType spells t for ClickHouse. DateTime cells are parsed as UTC wall
// clock, so the column must not apply the server timezone on insert.
func columnType(t schema.Type) string {
	switch {
	case t.Nullable:
		inner := t
		inner.Nullable = false
		return "Nullable(" + columnType(inner) + ")"
	case t.Kind == schema.KindArray && t.Elem != nil:
		return "Array(" + columnType(*t.Elem) + ")"
	case t.Kind == schema.KindDateTime:
		return "DateTime('UTC')"
	}
	return t.String()
}

func (dialect) TableSuffix(def ddl.TableDef) (string, error) {
	engine := def.Engine
	if engine == "" {
		engine = DefaultEngine
	}
	var sb strings.Builder
	sb.WriteString("\nENGINE = ")
	sb.WriteString(engine)
	if def.PartitionByMonth != "" {
		sb.WriteString("\nPARTITION BY toYYYYMM(")
		sb.WriteString(quote(def.PartitionByMonth))
		sb.WriteString(")")
	}
	if strings.Contains(engine, "MergeTree") || len(def.OrderBy) > 0 {
		order := "tuple()"
		if len(def.OrderBy) > 0 {
			cols := make([]string, len(def.OrderBy))
			for i, c := range def.OrderBy {
				cols[i] = quote(c)
			}
			order = "(" + strings.Join(cols, ", ") + ")"
		}
		sb.WriteString("\nORDER BY ")
		sb.WriteString(order)
	}
	return sb.String(), nil
}
