package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/keatumal/yandex-metrika-logs/internal/config"
	"github.com/keatumal/yandex-metrika-logs/internal/ddl"
	"github.com/keatumal/yandex-metrika-logs/internal/fieldmap"
	"github.com/keatumal/yandex-metrika-logs/internal/schema"
	"github.com/keatumal/yandex-metrika-logs/internal/storage"
	_ "github.com/keatumal/yandex-metrika-logs/internal/storage/sqlite"
)

func testResolved(t *testing.T) fieldmap.Resolved {
	t.Helper()
	tpl := fieldmap.Template{
		Fields: []string{"ym:s:visitID", "ym:s:date", "ym:s:goalsID", "ym:s:<attr>UTMSource"},
		Rename: map[string]string{
			"ym:s:visitID":         "visit_id",
			"ym:s:date":            "date",
			"ym:s:goalsID":         "goals_id",
			"ym:s:<attr>UTMSource": "<attr>_utm_source",
		},
		Types: map[string]string{
			"ym:s:visitID":         "UInt64",
			"ym:s:date":            "Date",
			"ym:s:goalsID":         "Array(UInt32)",
			"ym:s:<attr>UTMSource": "String",
		},
	}
	table := fieldmap.AttributionTable{Models: map[string]config.AttributionModel{
		"LASTSIGN": {Field: "lastSign", Display: "last_sign"},
		"FIRST":    {Field: "first", Display: "first"},
	}}
	r, err := fieldmap.Resolve(tpl, table, "LASTSIGN")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return r
}

func writeTSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.tsv")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func openTable(t *testing.T, r fieldmap.Resolved) storage.Repository {
	t.Helper()
	ctx := context.Background()
	def, err := ddl.FromResolved("visits", r, fieldmap.Renamed, nil)
	if err != nil {
		t.Fatalf("FromResolved: %v", err)
	}
	repo, err := storage.New(ctx, storage.Config{
		Kind:     "sqlite",
		Database: filepath.Join(t.TempDir(), "ym.db"),
		Table:    "visits",
	})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(repo.Close)
	if err := storage.EnsureTable(ctx, "sqlite", repo, def); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	return repo
}

func TestLoad_SQLite(t *testing.T) {
	t.Parallel()

	r := testResolved(t)
	repo := openTable(t, r)

	// Raw header, reordered, with a BOM and CRLF endings.
	path := writeTSV(t, "\uFEFFym:s:date\tym:s:visitID\tym:s:lastSignUTMSource\tym:s:goalsID\r\n"+
		"2024-01-01\t1\tgoogle\t[1,2]\r\n"+
		"\r\n"+
		"2024-01-01\t2\t'yandex'\t[]\r\n"+
		"2024-01-02\t3\t\t[7]")

	res, err := Load(context.Background(), repo, Config{Path: path, Resolved: r, Naming: fieldmap.Renamed, BatchSize: 2, Job: "test"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if want := []string{"date", "visit_id", "last_sign_utm_source", "goals_id"}; !reflect.DeepEqual(res.Columns, want) {
		t.Fatalf("columns = %v, want %v", res.Columns, want)
	}
	if res.Read != 3 || res.Inserted != 3 || res.Before != 0 || res.After != 3 || res.Delta() != 3 {
		t.Fatalf("result = %+v", res)
	}

	// A second import of a renamed file adds to the table.
	renamed := writeTSV(t, "visit_id\tdate\tgoals_id\tlast_sign_utm_source\n4\t2024-01-03\t[]\tx\n")
	res, err = Load(context.Background(), repo, Config{Path: renamed, Resolved: r, Naming: fieldmap.Renamed})
	if err != nil {
		t.Fatalf("Load renamed: %v", err)
	}
	if res.Before != 3 || res.After != 4 || res.Delta() != 1 {
		t.Fatalf("result = %+v", res)
	}
}

func TestLoad_SchemaMismatch(t *testing.T) {
	t.Parallel()

	r := testResolved(t)
	repo := openTable(t, r)
	path := writeTSV(t, "visit_id\tdate\tym:s:firstUTMSource\textra\n1\t2024-01-01\tx\ty\n")

	_, err := Load(context.Background(), repo, Config{Path: path, Resolved: r})
	var mm *SchemaMismatchError
	if !errors.As(err, &mm) {
		t.Fatalf("err = %v, want SchemaMismatchError", err)
	}
	if want := []string{"goals_id", "last_sign_utm_source"}; !reflect.DeepEqual(mm.Missing, want) {
		t.Fatalf("Missing = %v, want %v", mm.Missing, want)
	}
	if want := []string{"extra", "ym:s:firstUTMSource"}; !reflect.DeepEqual(mm.Unexpected, want) {
		t.Fatalf("Unexpected = %v, want %v", mm.Unexpected, want)
	}
	if n, err := repo.CountRows(context.Background()); err != nil || n != 0 {
		t.Fatalf("CountRows = %d, %v; want 0", n, err)
	}
}

func TestLoad_ConversionErrorKeepsCommittedBatches(t *testing.T) {
	t.Parallel()

	r := testResolved(t)
	repo := openTable(t, r)
	path := writeTSV(t, "visit_id\tdate\tgoals_id\tlast_sign_utm_source\n"+
		"1\t2024-01-01\t[]\ta\n"+
		"2\t2024-01-01\t[]\tb\n"+
		"3\tnot-a-date\t[]\tc\n"+
		"4\t2024-01-01\t[]\td\n")

	res, err := Load(context.Background(), repo, Config{Path: path, Resolved: r, BatchSize: 1})
	var ce *schema.ConversionError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want ConversionError", err)
	}
	if ce.Line != 4 || ce.Column != "date" {
		t.Fatalf("ConversionError = %+v", ce)
	}
	if res.After != 2 || res.Inserted != 2 {
		t.Fatalf("result = %+v, want two committed rows", res)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	t.Parallel()

	r := testResolved(t)
	if _, err := Load(context.Background(), nil, Config{Path: writeTSV(t, ""), Resolved: r}); err == nil {
		t.Fatal("expected error for empty file")
	}
	if _, err := Load(context.Background(), nil, Config{Path: filepath.Join(t.TempDir(), "missing.tsv"), Resolved: r}); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestNormalizeHeader(t *testing.T) {
	t.Parallel()

	// "e" + combining acute composes to U+00E9 under NFC.
	got := normalizeHeader([]string{"\uFEFF a ", "cafe\u0301"})
	if want := []string{"a", "caf\u00e9"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("normalizeHeader = %q, want %q", got, want)
	}
}

func TestMatchHeader_RawTable(t *testing.T) {
	t.Parallel()

	r := testResolved(t)
	got, err := matchHeader([]string{"goals_id", "ym:s:visitID", "last_sign_utm_source", "date"}, r, fieldmap.Raw)
	if err != nil {
		t.Fatalf("matchHeader: %v", err)
	}
	if want := []string{"ym:s:goalsID", "ym:s:visitID", "ym:s:lastSignUTMSource", "ym:s:date"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("targets = %v, want %v", got, want)
	}

	_, err = matchHeader([]string{"visit_id", "ym:s:visitID", "date", "goals_id", "last_sign_utm_source"}, r, fieldmap.Renamed)
	var mm *SchemaMismatchError
	if !errors.As(err, &mm) || !reflect.DeepEqual(mm.Unexpected, []string{"ym:s:visitID"}) {
		t.Fatalf("duplicate err = %v", err)
	}
}
