package ddl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/keatumal/yandex-metrika-logs/internal/config"
	"github.com/keatumal/yandex-metrika-logs/internal/fieldmap"
	"github.com/keatumal/yandex-metrika-logs/internal/schema"
)

// FromResolved builds the table definition for a resolved field list.
// Columns follow field order and are named per naming; every field must
// have a type entry. Table options come from the schema source block:
// engine, partition_by_month and order_by, the latter two given as raw
// field names.
func FromResolved(table string, r fieldmap.Resolved, naming fieldmap.ColumnNaming, opts config.Options) (TableDef, error) {
	if strings.TrimSpace(table) == "" {
		return TableDef{}, config.Errorf("flag.create-table", "table name must not be empty")
	}
	types, err := r.ColumnTypes(naming)
	if err != nil {
		return TableDef{}, err
	}

	def := TableDef{FQN: table}
	var bad []string
	for _, name := range r.Columns(naming) {
		t, err := schema.ParseType(types[name])
		if err != nil {
			bad = append(bad, fmt.Sprintf("%s (%v)", name, err))
			continue
		}
		def.Columns = append(def.Columns, ColumnDef{Name: name, Type: t})
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return TableDef{}, config.Errorf("types", "invalid column types: %s", strings.Join(bad, "; "))
	}

	def.Engine = opts.String("engine", "MergeTree()")
	if p := opts.String("partition_by_month", ""); p != "" {
		def.PartitionByMonth = r.Column(p, naming)
	}
	for _, f := range opts.StringSlice("order_by") {
		def.OrderBy = append(def.OrderBy, r.Column(f, naming))
	}
	return def, nil
}
