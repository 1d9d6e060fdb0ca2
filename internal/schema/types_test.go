package schema

import (
	"errors"
	"testing"
)

// TestParseType checks the accepted spellings and that String renders them
// back unchanged.
func TestParseType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in       string
		wantKind Kind
		nullable bool
		elem     Kind
	}{
		{in: "UInt8", wantKind: KindUInt8},
		{in: "UInt64", wantKind: KindUInt64},
		{in: "Int32", wantKind: KindInt32},
		{in: "Float64", wantKind: KindFloat64},
		{in: "Date", wantKind: KindDate},
		{in: "DateTime", wantKind: KindDateTime},
		{in: "String", wantKind: KindString},
		{in: "Nullable(UInt16)", wantKind: KindUInt16, nullable: true},
		{in: "Array(UInt64)", wantKind: KindArray, elem: KindUInt64},
		{in: "Array(DateTime)", wantKind: KindArray, elem: KindDateTime},
		{in: "Array(Nullable(String))", wantKind: KindArray, elem: KindString},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseType(tc.in)
			if err != nil {
				t.Fatalf("ParseType(%q) error: %v", tc.in, err)
			}
			if got.Kind != tc.wantKind || got.Nullable != tc.nullable {
				t.Fatalf("ParseType(%q) = %+v", tc.in, got)
			}
			if tc.elem != KindInvalid {
				if got.Elem == nil || got.Elem.Kind != tc.elem {
					t.Fatalf("ParseType(%q) elem = %+v, want %s", tc.in, got.Elem, tc.elem)
				}
			}
			if s := got.String(); s != tc.in {
				t.Fatalf("String() = %q, want %q", s, tc.in)
			}
		})
	}
}

func TestParseType_Rejects(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		"",
		"Decimal(10,2)",
		"uint64",
		"Nullable(Nullable(UInt8))",
		"Nullable(Array(UInt8))",
		"Array(Unknown)",
		"Array(UInt8",
	} {
		if _, err := ParseType(in); !errors.Is(err, ErrUnknownType) {
			t.Errorf("ParseType(%q) err = %v, want ErrUnknownType", in, err)
		}
	}
}

func TestKindBits(t *testing.T) {
	t.Parallel()

	cases := map[Kind]int{
		KindUInt8: 8, KindInt16: 16, KindUInt32: 32, KindFloat32: 32,
		KindInt64: 64, KindFloat64: 64, KindString: 0, KindDate: 0,
	}
	for k, want := range cases {
		if got := k.Bits(); got != want {
			t.Errorf("%s.Bits() = %d, want %d", k, got, want)
		}
	}
}
