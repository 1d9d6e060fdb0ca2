package ddl

import "github.com/keatumal/yandex-metrika-logs/internal/schema"

// ColumnDef describes a single column in a table definition.
//
// Fields:
//   - Name: column name (unquoted; quoting happens at render time)
//   - Type: column type from the schema vocabulary; the dialect maps it
//   - SQLType: raw SQL type that bypasses the dialect mapping when non-empty
type ColumnDef struct {
	Name    string
	Type    schema.Type
	SQLType string
}

// TableDef holds the table name and an ordered list of columns, plus the
// MergeTree options only the ClickHouse dialect renders.
type TableDef struct {
	FQN     string
	Columns []ColumnDef

	// Engine is the ClickHouse table engine, e.g. "MergeTree()".
	Engine string
	// PartitionByMonth names a Date/DateTime column partitioned by
	// toYYYYMM.
	PartitionByMonth string
	// OrderBy lists the sorting key columns.
	OrderBy []string
}

// ColumnNames returns the column names in table order.
func (t TableDef) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}
