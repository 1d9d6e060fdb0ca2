package sink

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/keatumal/yandex-metrika-logs/internal/fieldmap"
	"github.com/keatumal/yandex-metrika-logs/internal/schema"
)

type copyRecorder struct {
	mu      sync.Mutex
	columns []string
	batches [][][]any
	failAt  int
}

func (c *copyRecorder) copy(_ context.Context, columns []string, rows [][]any) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAt > 0 && len(c.batches)+1 == c.failAt {
		return 0, errors.New("insert failed")
	}
	c.columns = columns
	batch := make([][]any, len(rows))
	copy(batch, rows)
	c.batches = append(c.batches, batch)
	return int64(len(rows)), nil
}

func TestTable_WritePart(t *testing.T) {
	t.Parallel()

	rec := &copyRecorder{}
	s, err := NewTable(testResolved(t), fieldmap.Renamed, TableConfig{Job: "test", BatchSize: 2, Copy: rec.copy})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	body := "ym:s:date\tym:s:visitID\tym:s:lastSignTrafficSource\n" +
		"2024-01-01\t1\torganic\n" +
		"2024-01-01\t2\t'ad'\n" +
		"2024-01-02\t3\t\n"
	n, err := s.WritePart(context.Background(), part(t, 1, body))
	if err != nil {
		t.Fatalf("WritePart: %v", err)
	}
	if n != 3 || s.Rows() != 3 {
		t.Fatalf("rows = %d/%d, want 3", n, s.Rows())
	}
	if want := []string{"visit_id", "date", "last_sign_traffic_source"}; !reflect.DeepEqual(rec.columns, want) {
		t.Fatalf("columns = %v, want %v", rec.columns, want)
	}
	if len(rec.batches) != 2 || len(rec.batches[0]) != 2 || len(rec.batches[1]) != 1 {
		t.Fatalf("batches = %v", rec.batches)
	}
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if want := []any{uint64(2), d, "ad"}; !reflect.DeepEqual(rec.batches[0][1], want) {
		t.Fatalf("row 2 = %#v, want %#v", rec.batches[0][1], want)
	}
	// Rows are distinct slices.
	if &rec.batches[0][0][0] == &rec.batches[0][1][0] {
		t.Fatal("rows share backing storage")
	}
}

func TestTable_MissingFields(t *testing.T) {
	t.Parallel()

	rec := &copyRecorder{}
	s, err := NewTable(testResolved(t), fieldmap.Renamed, TableConfig{BatchSize: 1, Copy: rec.copy})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	_, err = s.WritePart(context.Background(), part(t, 1, "ym:s:visitID\tym:s:date\n1\t2024-01-01\n"))
	if !errors.Is(err, ErrMissingFields) {
		t.Fatalf("err = %v, want ErrMissingFields", err)
	}
	if len(rec.batches) != 0 || s.Rows() != 0 {
		t.Fatalf("inserted %d batches", len(rec.batches))
	}
}

func TestTable_ConversionError(t *testing.T) {
	t.Parallel()

	rec := &copyRecorder{}
	s, err := NewTable(testResolved(t), fieldmap.Renamed, TableConfig{BatchSize: 1, Copy: rec.copy})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	body := "ym:s:visitID\tym:s:date\tym:s:lastSignTrafficSource\n" +
		"1\t2024-01-01\ta\n" +
		"x\t2024-01-01\tb\n" +
		"3\t2024-01-01\tc\n"
	_, err = s.WritePart(context.Background(), part(t, 4, body))
	var ce *schema.ConversionError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want ConversionError", err)
	}
	if ce.Line != 3 || ce.Column != "visit_id" {
		t.Fatalf("ConversionError = %+v", ce)
	}
	for _, b := range rec.batches {
		for _, r := range b {
			if r[0] == uint64(3) {
				t.Fatal("row after the bad cell was inserted")
			}
		}
	}
}

func TestTable_CopyError(t *testing.T) {
	t.Parallel()

	rec := &copyRecorder{failAt: 2}
	s, err := NewTable(testResolved(t), fieldmap.Raw, TableConfig{BatchSize: 1, Copy: rec.copy})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	body := "ym:s:visitID\tym:s:date\tym:s:lastSignTrafficSource\n" +
		"1\t2024-01-01\ta\n2\t2024-01-01\tb\n3\t2024-01-01\tc\n"
	n, err := s.WritePart(context.Background(), part(t, 1, body))
	if err == nil || n != 1 {
		t.Fatalf("WritePart = %d, %v; want 1 committed row and an error", n, err)
	}
}

func TestNewTable_Errors(t *testing.T) {
	t.Parallel()

	r := testResolved(t)
	if _, err := NewTable(r, fieldmap.Renamed, TableConfig{}); err == nil {
		t.Fatal("expected error without copy func")
	}
}
