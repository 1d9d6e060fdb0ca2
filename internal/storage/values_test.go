package storage

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/keatumal/yandex-metrika-logs/internal/schema"
)

func TestRowForSQL(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s := "x"
	row := []any{
		uint64(7),
		uint64(math.MaxInt64),
		"str",
		nil,
		day,
		[]uint64{1, 2},
		[]string{},
		[]*string{&s, nil},
		int8(-3),
	}

	got, err := RowForSQL(row, SQLRowOptions{})
	if err != nil {
		t.Fatalf("RowForSQL: %v", err)
	}
	want := []any{
		int64(7),
		int64(math.MaxInt64),
		"str",
		nil,
		day,
		"[1,2]",
		"[]",
		`["x",null]`,
		int8(-3),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("RowForSQL = %#v\nwant %#v", got, want)
	}
	if _, ok := row[5].([]uint64); !ok {
		t.Fatal("input row was modified")
	}

	wide, err := RowForSQL([]any{uint64(math.MaxUint64)}, SQLRowOptions{WideUint64: true})
	if err != nil || wide[0] != uint64(math.MaxUint64) {
		t.Fatalf("wide = %v, %v", wide, err)
	}
}

func TestRowForSQL_Uint64Overflow(t *testing.T) {
	t.Parallel()

	_, err := RowsForSQL([][]any{{uint64(1)}, {uint64(math.MaxInt64 + 1)}}, SQLRowOptions{})
	if !errors.Is(err, ErrUint64Overflow) {
		t.Fatalf("err = %v, want ErrUint64Overflow", err)
	}
	var ce *schema.ConversionError
	if !errors.As(err, &ce) || ce.Value != "9223372036854775808" || ce.Type.Kind != schema.KindUInt64 {
		t.Fatalf("err = %#v", err)
	}
}

func TestRowsForSQL(t *testing.T) {
	t.Parallel()

	rows, err := RowsForSQL([][]any{{[]int32{1}}, {nil}}, SQLRowOptions{})
	if err != nil {
		t.Fatalf("RowsForSQL: %v", err)
	}
	if rows[0][0] != "[1]" || rows[1][0] != nil {
		t.Fatalf("rows = %#v", rows)
	}
}
