package schema

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Layouts of the date types in TSV output.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// nullLiteral is the TabSeparated spelling of NULL.
const nullLiteral = `\N`

// ErrMissingType is returned by NewConverter when a column has no declared
// type.
var ErrMissingType = errors.New("no column type declared")

// ConversionError reports a cell that does not match its declared type.
type ConversionError struct {
	Column string
	Line   int
	Value  string
	Type   Type
	Err    error
}

func (e *ConversionError) Error() string {
	var b strings.Builder
	if e.Line > 0 {
		fmt.Fprintf(&b, "line %d: ", e.Line)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, "column %s: ", e.Column)
	}
	if e.Type.Kind != KindInvalid {
		fmt.Fprintf(&b, "cannot convert %q to %s", e.Value, e.Type)
		if e.Err != nil {
			b.WriteString(": ")
		}
	}
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ConversionError) Unwrap() error { return e.Err }

var errEmpty = errors.New("empty value for non-nullable column")

// Convert turns a raw cell into a typed value. Integers become the Go
// integer of the declared width, floats float32/float64, Date and DateTime
// time.Time (UTC, carrying the counter-local wall clock the service
// emits), strings string, arrays typed slices. An empty cell (or
// \N) is nil for Nullable types.
func (t Type) Convert(s string) (any, error) {
	if t.Nullable && (s == "" || s == nullLiteral) {
		return nil, nil
	}
	switch {
	case t.Kind.IsUnsigned():
		if s == "" {
			return nil, t.convErr(s, errEmpty)
		}
		u, err := strconv.ParseUint(s, 10, t.Kind.Bits())
		if err != nil {
			return nil, t.convErr(s, err)
		}
		switch t.Kind {
		case KindUInt8:
			return uint8(u), nil
		case KindUInt16:
			return uint16(u), nil
		case KindUInt32:
			return uint32(u), nil
		}
		return u, nil

	case t.Kind.IsSigned():
		if s == "" {
			return nil, t.convErr(s, errEmpty)
		}
		i, err := strconv.ParseInt(s, 10, t.Kind.Bits())
		if err != nil {
			return nil, t.convErr(s, err)
		}
		switch t.Kind {
		case KindInt8:
			return int8(i), nil
		case KindInt16:
			return int16(i), nil
		case KindInt32:
			return int32(i), nil
		}
		return i, nil

	case t.Kind.IsFloat():
		if s == "" {
			return nil, t.convErr(s, errEmpty)
		}
		f, err := strconv.ParseFloat(s, t.Kind.Bits())
		if err != nil {
			return nil, t.convErr(s, err)
		}
		if t.Kind == KindFloat32 {
			return float32(f), nil
		}
		return f, nil

	case t.Kind == KindDate:
		d, err := time.Parse(DateLayout, s)
		if err != nil {
			return nil, t.convErr(s, err)
		}
		return d, nil

	case t.Kind == KindDateTime:
		d, err := time.Parse(DateTimeLayout, s)
		if err != nil {
			return nil, t.convErr(s, err)
		}
		return d, nil

	case t.Kind == KindString:
		return Unescape(StripQuotes(s)), nil

	case t.Kind == KindArray:
		return t.parseArray(s)
	}
	return nil, t.convErr(s, ErrUnknownType)
}

func (t Type) convErr(s string, err error) error {
	return &ConversionError{Value: s, Type: t, Err: err}
}

// StripQuotes removes one surrounding pair of matching single or double
// quotes.
func StripQuotes(s string) string {
	if len(s) >= 2 {
		if q := s[0]; (q == '\'' || q == '"') && s[len(s)-1] == q {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// Unescape decodes TabSeparated escape sequences (\t \n \r \b \f \0 \\ \'
// and \"). Unknown sequences are kept verbatim.
func Unescape(s string) string {
	if strings.IndexByte(s, '\\') < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 't':
			b.WriteByte('\t')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case '0':
			b.WriteByte(0)
		case '\\', '\'', '"':
			b.WriteByte(s[i])
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// Column pairs a column name with its parsed type.
type Column struct {
	Name string
	Type Type
}

// Converter converts whole rows for a fixed column list.
type Converter struct {
	cols []Column
}

// NewConverter compiles a converter for names, looking each one up in
// types. A missing or unknown type fails here, before any row is read.
func NewConverter(names []string, types map[string]string) (*Converter, error) {
	cols := make([]Column, 0, len(names))
	for _, n := range names {
		spelling, ok := types[n]
		if !ok {
			return nil, fmt.Errorf("column %s: %w", n, ErrMissingType)
		}
		t, err := ParseType(spelling)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", n, err)
		}
		cols = append(cols, Column{Name: n, Type: t})
	}
	return &Converter{cols: cols}, nil
}

// Columns returns the compiled columns.
func (c *Converter) Columns() []Column { return c.cols }

// Names returns the column names in order.
func (c *Converter) Names() []string {
	out := make([]string, len(c.cols))
	for i, col := range c.cols {
		out[i] = col.Name
	}
	return out
}

// Row converts cells (aligned with the converter's columns) into dst,
// which is grown as needed and returned. line is used for error reporting.
func (c *Converter) Row(dst []any, cells []string, line int) ([]any, error) {
	if len(cells) != len(c.cols) {
		return dst, &ConversionError{
			Line: line,
			Err:  fmt.Errorf("row has %d cells, want %d", len(cells), len(c.cols)),
		}
	}
	dst = dst[:0]
	for i, col := range c.cols {
		v, err := col.Type.Convert(cells[i])
		if err != nil {
			var ce *ConversionError
			if errors.As(err, &ce) {
				ce.Column = col.Name
				ce.Line = line
			}
			return dst, err
		}
		dst = append(dst, v)
	}
	return dst, nil
}
