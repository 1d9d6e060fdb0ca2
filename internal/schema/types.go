// Package schema models destination column types and converts TSV cells into
// typed Go values.
//
// The type vocabulary follows ClickHouse spelling because that is the
// default destination and the one the Logs API field reference documents:
//
//	UInt8 UInt16 UInt32 UInt64 Int8 Int16 Int32 Int64
//	Float32 Float64 Date DateTime String
//	Array(T) Nullable(T)
//
// Other backends map these types to their own SQL types during DDL
// rendering (see internal/ddl and the storage backends).
package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Kind enumerates the primitive column kinds.
type Kind int

const (
	KindInvalid Kind = iota
	KindUInt8
	KindUInt16
	KindUInt32
	KindUInt64
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindDate
	KindDateTime
	KindString
	KindArray
)

var kindNames = map[Kind]string{
	KindUInt8:    "UInt8",
	KindUInt16:   "UInt16",
	KindUInt32:   "UInt32",
	KindUInt64:   "UInt64",
	KindInt8:     "Int8",
	KindInt16:    "Int16",
	KindInt32:    "Int32",
	KindInt64:    "Int64",
	KindFloat32:  "Float32",
	KindFloat64:  "Float64",
	KindDate:     "Date",
	KindDateTime: "DateTime",
	KindString:   "String",
}

var kindByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, n := range kindNames {
		m[n] = k
	}
	return m
}()

// String returns the ClickHouse spelling of k.
func (k Kind) String() string {
	if k == KindArray {
		return "Array"
	}
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "Invalid"
}

// IsUnsigned reports whether k is one of the UInt kinds.
func (k Kind) IsUnsigned() bool { return k >= KindUInt8 && k <= KindUInt64 }

// IsSigned reports whether k is one of the Int kinds.
func (k Kind) IsSigned() bool { return k >= KindInt8 && k <= KindInt64 }

// IsInteger reports whether k is a signed or unsigned integer kind.
func (k Kind) IsInteger() bool { return k.IsUnsigned() || k.IsSigned() }

// IsFloat reports whether k is Float32 or Float64.
func (k Kind) IsFloat() bool { return k == KindFloat32 || k == KindFloat64 }

// Bits returns the bit width of integer and float kinds, 0 otherwise.
func (k Kind) Bits() int {
	switch k {
	case KindUInt8, KindInt8:
		return 8
	case KindUInt16, KindInt16:
		return 16
	case KindUInt32, KindInt32, KindFloat32:
		return 32
	case KindUInt64, KindInt64, KindFloat64:
		return 64
	}
	return 0
}

// Type is a parsed column type.
type Type struct {
	Kind     Kind
	Nullable bool
	// Elem is the element type of an Array; nil otherwise.
	Elem *Type
}

// ErrUnknownType is returned by ParseType for spellings outside the
// vocabulary.
var ErrUnknownType = errors.New("unknown column type")

// ParseType parses a type spelling such as "Nullable(UInt64)" or
// "Array(DateTime)".
func ParseType(s string) (Type, error) {
	t, err := parseType(strings.TrimSpace(s))
	if err != nil {
		return Type{}, fmt.Errorf("%w %q: %v", ErrUnknownType, s, err)
	}
	return t, nil
}

func parseType(s string) (Type, error) {
	if inner, ok := unwrapCall(s, "Nullable"); ok {
		t, err := parseType(inner)
		if err != nil {
			return Type{}, err
		}
		if t.Nullable || t.Kind == KindArray {
			return Type{}, fmt.Errorf("Nullable cannot wrap %s", t)
		}
		t.Nullable = true
		return t, nil
	}
	if inner, ok := unwrapCall(s, "Array"); ok {
		elem, err := parseType(inner)
		if err != nil {
			return Type{}, err
		}
		return Type{Kind: KindArray, Elem: &elem}, nil
	}
	if k, ok := kindByName[s]; ok {
		return Type{Kind: k}, nil
	}
	if s == "" {
		return Type{}, fmt.Errorf("empty type")
	}
	return Type{}, fmt.Errorf("not in vocabulary")
}

// unwrapCall returns the argument of "name(arg)".
func unwrapCall(s, name string) (string, bool) {
	if !strings.HasPrefix(s, name+"(") || !strings.HasSuffix(s, ")") {
		return "", false
	}
	return strings.TrimSpace(s[len(name)+1 : len(s)-1]), true
}

// MustParseType is ParseType for package-level literals and tests.
func MustParseType(s string) Type {
	t, err := ParseType(s)
	if err != nil {
		panic(err)
	}
	return t
}

// String renders t in ClickHouse spelling.
func (t Type) String() string {
	var base string
	if t.Kind == KindArray && t.Elem != nil {
		base = "Array(" + t.Elem.String() + ")"
	} else {
		base = t.Kind.String()
	}
	if t.Nullable {
		return "Nullable(" + base + ")"
	}
	return base
}
