package sink

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/keatumal/yandex-metrika-logs/internal/config"
	"github.com/keatumal/yandex-metrika-logs/internal/fieldmap"
	"github.com/keatumal/yandex-metrika-logs/internal/logsapi"
	"github.com/keatumal/yandex-metrika-logs/internal/report"
)

func testResolved(t *testing.T) fieldmap.Resolved {
	t.Helper()
	tpl := fieldmap.Template{
		Fields: []string{"ym:s:visitID", "ym:s:date", "ym:s:<attr>TrafficSource"},
		Rename: map[string]string{
			"ym:s:visitID":             "visit_id",
			"ym:s:date":                "date",
			"ym:s:<attr>TrafficSource": "<attr>_traffic_source",
		},
		Types: map[string]string{
			"ym:s:visitID":             "UInt64",
			"ym:s:date":                "Date",
			"ym:s:<attr>TrafficSource": "String",
		},
	}
	table := fieldmap.AttributionTable{Models: map[string]config.AttributionModel{
		"LASTSIGN": {Field: "lastSign", Display: "last_sign"},
	}}
	r, err := fieldmap.Resolve(tpl, table, "LASTSIGN")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return r
}

func part(t *testing.T, n int, body string) report.Part {
	t.Helper()
	pr, err := logsapi.NewPartReader(io.NopCloser(strings.NewReader(body)))
	if err != nil {
		t.Fatalf("NewPartReader: %v", err)
	}
	return report.Part{Index: n, Total: n, Info: logsapi.PartInfo{PartNumber: n}, Reader: pr, Saving: func() {}}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

func TestTransform(t *testing.T) {
	t.Parallel()

	r := testResolved(t)
	tr := NewTransform(r, fieldmap.Renamed)
	if want := []string{"visit_id", "date", "last_sign_traffic_source"}; !reflect.DeepEqual(tr.Header(), want) {
		t.Fatalf("Header = %v, want %v", tr.Header(), want)
	}
	raw := NewTransform(r, fieldmap.Raw)
	if got := raw.Header()[2]; got != "ym:s:lastSignTrafficSource" {
		t.Fatalf("raw header = %q", got)
	}

	row := tr.Row(logsapi.Record{"ym:s:date": "2024-01-01", "ym:s:visitID": "7", "extra": "x"})
	if want := []string{"7", "2024-01-01", ""}; !reflect.DeepEqual(row, want) {
		t.Fatalf("Row = %q, want %q", row, want)
	}

	proj, err := tr.Bind([]string{"ym:s:lastSignTrafficSource", "ym:s:date", "ym:s:visitID"})
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	got := proj.Apply(nil, []string{"organic", "2024-01-01", "9"})
	if want := []string{"9", "2024-01-01", "organic"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Apply = %q, want %q", got, want)
	}
	if got := proj.Apply(got, []string{"organic"}); !reflect.DeepEqual(got, []string{"", "", "organic"}) {
		t.Fatalf("short row = %q", got)
	}

	_, err = tr.Bind([]string{"ym:s:lastSignTrafficSource", "ym:s:visitID"})
	if !errors.Is(err, ErrMissingFields) || !strings.Contains(err.Error(), "ym:s:date") {
		t.Fatalf("Bind err = %v, want ErrMissingFields naming ym:s:date", err)
	}
}

func TestCheckDestination(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "out.tsv")
	if err := CheckDestination(path); err != nil {
		t.Fatalf("missing path: %v", err)
	}
	if err := os.WriteFile(path, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CheckDestination(path); !errors.Is(err, ErrDestinationExists) {
		t.Fatalf("err = %v, want ErrDestinationExists", err)
	}
	if got := readFile(t, path); got != "keep" {
		t.Fatalf("file changed: %q", got)
	}
}

func TestTSVFile_Parts(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "100_2024-01-01_2024-01-02.tsv")
	s := NewTSVFile(path, NewTransform(testResolved(t), fieldmap.Renamed), TSVOptions{})

	header := "ym:s:visitID\tym:s:date\tym:s:lastSignTrafficSource\n"
	bodies := []string{
		header + "1\t2024-01-01\torganic\n2\t2024-01-01\tad\n",
		header,
		header + "3\t2024-01-02\t\\'direct\\'\n",
	}
	var total int64
	for i, b := range bodies {
		n, err := s.WritePart(context.Background(), part(t, i+1, b))
		if err != nil {
			t.Fatalf("WritePart %d: %v", i+1, err)
		}
		total += n
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if total != 3 || s.Rows() != 3 {
		t.Fatalf("rows = %d/%d, want 3", total, s.Rows())
	}

	want := "visit_id\tdate\tlast_sign_traffic_source\n" +
		"1\t2024-01-01\torganic\n" +
		"2\t2024-01-01\tad\n" +
		"3\t2024-01-02\t\\'direct\\'\n"
	if got := readFile(t, path); got != want {
		t.Fatalf("file:\n%s\nwant:\n%s", got, want)
	}
}

func TestTSVFile_EmptyRun(t *testing.T) {
	t.Parallel()

	tr := NewTransform(testResolved(t), fieldmap.Raw)
	for _, tc := range []struct {
		name string
		opts TSVOptions
		want string
	}{
		{"header", TSVOptions{}, "ym:s:visitID\tym:s:date\tym:s:lastSignTrafficSource\n"},
		{"no header", TSVOptions{NoHeader: true}, ""},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "out.tsv")
			s := NewTSVFile(path, tr, tc.opts)
			if err := s.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			if got := readFile(t, path); got != tc.want {
				t.Fatalf("file = %q, want %q", got, tc.want)
			}
			if err := s.Close(); err != nil {
				t.Fatalf("second Close: %v", err)
			}
		})
	}
}

func TestTSVFile_ExistingFileUntouched(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.tsv")
	if err := os.WriteFile(path, []byte("old\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewTSVFile(path, NewTransform(testResolved(t), fieldmap.Renamed), TSVOptions{})
	_, err := s.WritePart(context.Background(), part(t, 1, "ym:s:visitID\tym:s:date\tym:s:lastSignTrafficSource\n1\t2024-01-01\tad\n"))
	if !errors.Is(err, ErrDestinationExists) {
		t.Fatalf("err = %v, want ErrDestinationExists", err)
	}
	if got := readFile(t, path); got != "old\n" {
		t.Fatalf("file changed: %q", got)
	}
}

// TestTSVFile_ForeignPartHeader: a part from a report with other fields
// fails before the file is created.
func TestTSVFile_ForeignPartHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.tsv")
	s := NewTSVFile(path, NewTransform(testResolved(t), fieldmap.Renamed), TSVOptions{})
	n, err := s.WritePart(context.Background(), part(t, 1, "ym:pv:watchID\tym:pv:date\n1\t2024-01-01\n2\t2024-01-01\n"))
	if !errors.Is(err, ErrMissingFields) || n != 0 {
		t.Fatalf("WritePart = %d, %v; want ErrMissingFields", n, err)
	}
	for _, f := range []string{"ym:s:visitID", "ym:s:date", "ym:s:lastSignTrafficSource"} {
		if !strings.Contains(err.Error(), f) {
			t.Errorf("error does not name %s: %v", f, err)
		}
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("output created: %v", err)
	}
}

func TestTSVFile_Abort(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	untouched := filepath.Join(dir, "never.tsv")
	if err := NewTSVFile(untouched, Transform{}, TSVOptions{}).Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if _, err := os.Stat(untouched); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Abort created a file: %v", err)
	}

	partial := filepath.Join(dir, "partial.tsv")
	s := NewTSVFile(partial, NewTransform(testResolved(t), fieldmap.Raw), TSVOptions{NoHeader: true})
	if _, err := s.WritePart(context.Background(), part(t, 1, "ym:s:visitID\tym:s:date\tym:s:lastSignTrafficSource\n5\t2024-01-01\tad\n")); err != nil {
		t.Fatalf("WritePart: %v", err)
	}
	if err := s.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if got := readFile(t, partial); got != "5\t2024-01-01\tad\n" {
		t.Fatalf("partial = %q", got)
	}
	if _, err := s.WritePart(context.Background(), part(t, 2, "ym:s:visitID\n6\n")); err == nil {
		t.Fatal("WritePart after Abort succeeded")
	}
}
