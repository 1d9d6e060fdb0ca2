package schema

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// parseArray converts an array literal such as [1,2,3] or
// ['2024-01-01 10:00:00','2024-01-02 11:00:00']. The bracket pair is
// stripped and the interior split on commas that are not inside quotes;
// each element is converted by the element type. "[]" yields an empty slice.
func (t Type) parseArray(s string) (any, error) {
	if t.Elem == nil {
		return nil, t.convErr(s, fmt.Errorf("array type without element type"))
	}
	trimmed := strings.TrimSpace(s)
	if len(trimmed) < 2 || trimmed[0] != '[' || trimmed[len(trimmed)-1] != ']' {
		return nil, t.convErr(s, fmt.Errorf("array literal must be enclosed in []"))
	}
	parts, err := splitArray(trimmed[1 : len(trimmed)-1])
	if err != nil {
		return nil, t.convErr(s, err)
	}

	elem := *t.Elem
	vals := make([]any, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if elem.Kind != KindString && elem.Kind != KindArray {
			p = StripQuotes(p)
		}
		if elem.Nullable && p == "NULL" {
			vals = append(vals, nil)
			continue
		}
		v, err := elem.Convert(p)
		if err != nil {
			return nil, t.convErr(s, err)
		}
		vals = append(vals, v)
	}
	return typedSlice(elem, vals), nil
}

// ParseArray parses an array literal whose elements are of type elem. It is
// the inverse of FormatArray.
func ParseArray(elem Type, s string) (any, error) {
	return Type{Kind: KindArray, Elem: &elem}.parseArray(s)
}

// splitArray splits the interior of an array literal on top-level commas,
// honoring single/double quotes, backslash escapes, and nested brackets.
func splitArray(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var (
		parts []string
		start int
		quote byte
		depth int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '[':
			depth++
		case c == ']':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced ] at offset %d", i)
			}
		case c == ',' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote")
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced [")
	}
	return append(parts, s[start:]), nil
}

// typedSlice materializes converted elements as a slice of the element's Go
// type so database drivers can bind it ([]uint64, []string, []time.Time...).
// Nullable elements become slices of pointers; nested arrays stay []any.
func typedSlice(elem Type, vals []any) any {
	switch elem.Kind {
	case KindUInt8:
		return sliceOf[uint8](vals, elem.Nullable)
	case KindUInt16:
		return sliceOf[uint16](vals, elem.Nullable)
	case KindUInt32:
		return sliceOf[uint32](vals, elem.Nullable)
	case KindUInt64:
		return sliceOf[uint64](vals, elem.Nullable)
	case KindInt8:
		return sliceOf[int8](vals, elem.Nullable)
	case KindInt16:
		return sliceOf[int16](vals, elem.Nullable)
	case KindInt32:
		return sliceOf[int32](vals, elem.Nullable)
	case KindInt64:
		return sliceOf[int64](vals, elem.Nullable)
	case KindFloat32:
		return sliceOf[float32](vals, elem.Nullable)
	case KindFloat64:
		return sliceOf[float64](vals, elem.Nullable)
	case KindDate, KindDateTime:
		return sliceOf[time.Time](vals, elem.Nullable)
	case KindString:
		return sliceOf[string](vals, elem.Nullable)
	}
	return vals
}

func sliceOf[T any](vals []any, nullable bool) any {
	if nullable {
		out := make([]*T, len(vals))
		for i, v := range vals {
			if v != nil {
				x := v.(T)
				out[i] = &x
			}
		}
		return out
	}
	out := make([]T, len(vals))
	for i, v := range vals {
		out[i] = v.(T)
	}
	return out
}

// FormatArray renders a slice (typed or []any) as an array literal that
// Convert parses back into an equal slice. Strings, dates, and date-times
// are single-quoted with \ and ' escaped.
func FormatArray(elem Type, values any) (string, error) {
	rv := reflect.ValueOf(values)
	if rv.Kind() != reflect.Slice {
		return "", fmt.Errorf("schema: FormatArray wants a slice, got %T", values)
	}
	parts := make([]string, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		s, err := FormatValue(elem, deref(rv.Index(i).Interface()))
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return "[" + strings.Join(parts, ",") + "]", nil
}

// FormatValue renders a single value the way it appears inside an array
// literal.
func FormatValue(t Type, v any) (string, error) {
	if v == nil {
		if t.Nullable {
			return "NULL", nil
		}
		return "", fmt.Errorf("schema: nil value for non-nullable %s", t)
	}
	switch t.Kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("schema: %T is not a string", v)
		}
		return "'" + escapeQuoted(s) + "'", nil
	case KindDate, KindDateTime:
		tm, ok := v.(time.Time)
		if !ok {
			return "", fmt.Errorf("schema: %T is not a time.Time", v)
		}
		layout := DateLayout
		if t.Kind == KindDateTime {
			layout = DateTimeLayout
		}
		return "'" + tm.Format(layout) + "'", nil
	case KindFloat32:
		f, ok := v.(float32)
		if !ok {
			return "", fmt.Errorf("schema: %T is not a float32", v)
		}
		return strconv.FormatFloat(float64(f), 'g', -1, 32), nil
	case KindFloat64:
		f, ok := v.(float64)
		if !ok {
			return "", fmt.Errorf("schema: %T is not a float64", v)
		}
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	case KindArray:
		if t.Elem == nil {
			return "", fmt.Errorf("schema: array type without element type")
		}
		return FormatArray(*t.Elem, v)
	}
	if t.Kind.IsInteger() {
		return fmt.Sprint(v), nil
	}
	return "", fmt.Errorf("schema: cannot format %s", t)
}

func deref(v any) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		return rv.Elem().Interface()
	}
	return v
}

func escapeQuoted(s string) string {
	if !strings.ContainsAny(s, `\'`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' || s[i] == '\'' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
