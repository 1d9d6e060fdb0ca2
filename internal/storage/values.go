package storage

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/keatumal/yandex-metrika-logs/internal/schema"
)

// ErrUint64Overflow marks a UInt64 value that does not fit a signed 64-bit
// column.
var ErrUint64Overflow = errors.New("value exceeds the signed 64-bit range of the column")

// SQLRowOptions controls how RowForSQL rewrites values for row stores.
type SQLRowOptions struct {
	// WideUint64 keeps uint64 values as-is. Otherwise they are narrowed to
	// int64 and values above math.MaxInt64 fail the whole batch.
	WideUint64 bool
}

// RowForSQL returns a copy of row ready for a row-store driver: arrays
// (typed slices from the schema converter) become JSON text and, unless
// opts.WideUint64 is set, uint64 values are narrowed. Dates stay time.Time.
// An overflowing uint64 yields a *schema.ConversionError wrapping
// ErrUint64Overflow.
func RowForSQL(row []any, opts SQLRowOptions) ([]any, error) {
	out := make([]any, len(row))
	for i, v := range row {
		switch x := v.(type) {
		case nil, string, []byte, time.Time:
			out[i] = v
		case uint64:
			n, err := narrowUint64(x, opts.WideUint64)
			if err != nil {
				return nil, fmt.Errorf("value #%d: %w", i, err)
			}
			out[i] = n
		default:
			rv := reflect.ValueOf(v)
			if rv.Kind() == reflect.Slice {
				b, err := json.Marshal(v)
				if err != nil {
					return nil, fmt.Errorf("encode array value #%d: %w", i, err)
				}
				out[i] = string(b)
				continue
			}
			out[i] = v
		}
	}
	return out, nil
}

func narrowUint64(u uint64, wide bool) (any, error) {
	switch {
	case wide:
		return u, nil
	case u > math.MaxInt64:
		return nil, &schema.ConversionError{
			Value: strconv.FormatUint(u, 10),
			Type:  schema.Type{Kind: schema.KindUInt64},
			Err:   ErrUint64Overflow,
		}
	default:
		return int64(u), nil
	}
}

// RowsForSQL applies RowForSQL to every row of a batch.
func RowsForSQL(rows [][]any, opts SQLRowOptions) ([][]any, error) {
	out := make([][]any, len(rows))
	for i, r := range rows {
		conv, err := RowForSQL(r, opts)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = conv
	}
	return out, nil
}
