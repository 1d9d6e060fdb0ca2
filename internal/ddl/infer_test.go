package ddl

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/keatumal/yandex-metrika-logs/internal/config"
	"github.com/keatumal/yandex-metrika-logs/internal/fieldmap"
)

func resolved(t *testing.T, types map[string]string) fieldmap.Resolved {
	t.Helper()
	tpl := fieldmap.Template{
		Fields: []string{"ym:s:visitID", "ym:s:date", "ym:s:<attr>UTMSource"},
		Rename: map[string]string{
			"ym:s:visitID":         "visit_id",
			"ym:s:date":            "date",
			"ym:s:<attr>UTMSource": "<attr>_utm_source",
		},
		Types: types,
	}
	table := fieldmap.AttributionTable{Models: map[string]config.AttributionModel{
		"LAST": {Field: "last", Display: "last"},
	}}
	r, err := fieldmap.Resolve(tpl, table, "LAST")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return r
}

func TestFromResolved(t *testing.T) {
	t.Parallel()

	r := resolved(t, map[string]string{
		"ym:s:visitID":         "UInt64",
		"ym:s:date":            "Date",
		"ym:s:<attr>UTMSource": "String",
	})
	opts := config.Options{
		"engine":             "ReplacingMergeTree()",
		"partition_by_month": "ym:s:date",
		"order_by":           []any{"ym:s:date", "ym:s:visitID"},
	}

	def, err := FromResolved("visits", r, fieldmap.Renamed, opts)
	if err != nil {
		t.Fatalf("FromResolved: %v", err)
	}
	if got, want := def.ColumnNames(), []string{"visit_id", "date", "last_utm_source"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("columns = %v, want %v", got, want)
	}
	if def.Engine != "ReplacingMergeTree()" || def.PartitionByMonth != "date" {
		t.Fatalf("options = %+v", def)
	}
	if want := []string{"date", "visit_id"}; !reflect.DeepEqual(def.OrderBy, want) {
		t.Fatalf("OrderBy = %v, want %v", def.OrderBy, want)
	}

	raw, err := FromResolved("visits", r, fieldmap.Raw, nil)
	if err != nil {
		t.Fatalf("FromResolved raw: %v", err)
	}
	if raw.Columns[2].Name != "ym:s:lastUTMSource" || raw.Engine != "MergeTree()" {
		t.Fatalf("raw def = %+v", raw)
	}
}

func TestFromResolved_Errors(t *testing.T) {
	t.Parallel()

	missing := resolved(t, map[string]string{"ym:s:visitID": "UInt64", "ym:s:date": "Date"})
	_, err := FromResolved("t", missing, fieldmap.Renamed, nil)
	if !errors.Is(err, config.ErrConfiguration) || !strings.Contains(err.Error(), "ym:s:lastUTMSource") {
		t.Fatalf("missing type err = %v", err)
	}

	bad := resolved(t, map[string]string{
		"ym:s:visitID":         "UInt128",
		"ym:s:date":            "Date",
		"ym:s:<attr>UTMSource": "String",
	})
	_, err = FromResolved("t", bad, fieldmap.Renamed, nil)
	if !errors.Is(err, config.ErrConfiguration) || !strings.Contains(err.Error(), "visit_id") {
		t.Fatalf("bad type err = %v", err)
	}

	if _, err := FromResolved(" ", missing, fieldmap.Renamed, nil); !errors.Is(err, config.ErrConfiguration) {
		t.Fatalf("empty table err = %v", err)
	}
}
