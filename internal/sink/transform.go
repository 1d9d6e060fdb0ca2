// Package sink persists downloaded report parts. TSVFile writes a single
// tab-separated file and Table streams converted rows into a storage
// repository; both implement report.Sink.
package sink

import (
	"errors"
	"fmt"
	"strings"

	"github.com/keatumal/yandex-metrika-logs/internal/fieldmap"
	"github.com/keatumal/yandex-metrika-logs/internal/logsapi"
)

// ErrMissingFields means a part header lacks some of the resolved fields,
// typically because the report was ordered with another field list.
var ErrMissingFields = errors.New("part header lacks selected fields")

// Transform reshapes service records into output rows ordered by the
// resolved field list.
type Transform struct {
	fields  []string
	columns []string
}

// NewTransform builds a Transform for r. naming selects the header
// spelling (renamed display names or raw field names).
func NewTransform(r fieldmap.Resolved, naming fieldmap.ColumnNaming) Transform {
	return Transform{
		fields:  append([]string(nil), r.Fields...),
		columns: r.Columns(naming),
	}
}

// Header returns the output column names.
func (t Transform) Header() []string { return t.columns }

// Fields returns the raw field names in output order.
func (t Transform) Fields() []string { return t.fields }

// Row maps rec to an output row. Fields missing from rec are empty.
func (t Transform) Row(rec logsapi.Record) []string {
	out := make([]string, len(t.fields))
	for i, f := range t.fields {
		out[i] = rec[f]
	}
	return out
}

// Projection reorders the cells of one part into output order.
type Projection struct {
	idx []int
}

// Bind compiles a projection from a part header. Every output field must be
// present in the header; the missing ones are named in an error wrapping
// ErrMissingFields. An empty header comes from a part with no body and binds
// nothing.
func (t Transform) Bind(header []string) (Projection, error) {
	if len(header) == 0 {
		return Projection{}, nil
	}
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[h] = i
	}
	idx := make([]int, len(t.fields))
	var missing []string
	for i, f := range t.fields {
		j, ok := pos[f]
		if !ok {
			missing = append(missing, f)
		}
		idx[i] = j
	}
	if len(missing) > 0 {
		return Projection{}, fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}
	return Projection{idx: idx}, nil
}

// Apply writes the projected cells into dst (grown as needed). Cells past
// the end of a short row are empty.
func (p Projection) Apply(dst, cells []string) []string {
	dst = dst[:0]
	for _, j := range p.idx {
		if j >= len(cells) {
			dst = append(dst, "")
			continue
		}
		dst = append(dst, cells[j])
	}
	return dst
}
