// Package config defines the canonical configuration model for the Metrika
// logs tools: the field schema (which Logs API fields to request, how they
// are renamed, which column types they load into) and the process
// environment (API token, destination database, metrics).
//
// Design goals:
//
//  1. Clarity: field names in Go mirror the JSON/YAML structure of schema
//     files (see default_schema.json for the embedded default).
//  2. Fail fast: everything here is validated before the first network call;
//     problems are reported as Issue values which satisfy the error interface
//     and match ErrConfiguration via errors.Is.
//  3. Minimalism: schema-specific knobs that vary by backend live in a small
//     Options bag with typed accessors instead of growing the struct graph.
//
// Example (trimmed):
//
//	{
//	  "attribution": {
//	    "default": "LASTSIGN",
//	    "models": { "LASTSIGN": { "field": "lastsign", "display": "last_sign" } }
//	  },
//	  "sources": {
//	    "visits": {
//	      "fields": ["ym:s:visitID", "ym:s:<attr>TrafficSource"],
//	      "table": { "engine": "MergeTree()", "order_by": ["ym:s:visitID"] }
//	    }
//	  },
//	  "rename": { "ym:s:visitID": "visit_id", "ym:s:<attr>TrafficSource": "<attr>_traffic_source" },
//	  "types":  { "ym:s:visitID": "UInt64", "ym:s:<attr>TrafficSource": "String" }
//	}
package config

import (
	"sort"

	json "github.com/goccy/go-json"
)

// DefaultPlaceholder is the token standing for "the configured attribution
// model" inside field names, rename keys/values, and type keys.
const DefaultPlaceholder = "<attr>"

// Source kinds understood by the Logs API.
const (
	SourceVisits = "visits"
	SourceHits   = "hits"
)

// Schema describes which fields are requested per source kind, how they are
// renamed for output, and which column types they have in a destination
// table. It is the top-level object decoded from a schema file.
type Schema struct {
	// Attribution lists the attribution models the placeholder can expand to.
	Attribution Attribution `json:"attribution" yaml:"attribution"`

	// Sources maps a source kind ("visits", "hits") to its field template.
	Sources map[string]Source `json:"sources" yaml:"sources"`

	// Rename maps raw Logs API field names to display (column) names. Keys and
	// values may contain the attribution placeholder.
	Rename map[string]string `json:"rename" yaml:"rename"`

	// Types maps raw Logs API field names to destination column types
	// (UInt64, Nullable(String), Array(DateTime), ...). Keys may contain the
	// attribution placeholder.
	Types map[string]string `json:"types" yaml:"types"`
}

// Attribution is the fixed attribution-name table.
type Attribution struct {
	// Default is the model used when none is given on the command line.
	Default string `json:"default" yaml:"default"`

	// Placeholder overrides DefaultPlaceholder when non-empty.
	Placeholder string `json:"placeholder" yaml:"placeholder"`

	// Models maps the API value (e.g. "LASTSIGN") to its substitution tokens.
	Models map[string]AttributionModel `json:"models" yaml:"models"`
}

// AttributionModel holds the two spellings of one attribution model: the
// token substituted into raw field names and the one substituted into
// display names.
type AttributionModel struct {
	Field   string `json:"field" yaml:"field"`
	Display string `json:"display" yaml:"display"`
}

// Source is the field template for one source kind.
type Source struct {
	// Fields is the ordered list of raw Logs API fields to request.
	Fields []string `json:"fields" yaml:"fields"`

	// Table carries destination table options used by DDL rendering, e.g.
	//   engine (string), order_by ([]string of raw field names),
	//   partition_by_month (string raw date field)
	Table Options `json:"table" yaml:"table"`
}

// PlaceholderToken returns the configured placeholder or DefaultPlaceholder.
func (a Attribution) PlaceholderToken() string {
	if a.Placeholder != "" {
		return a.Placeholder
	}
	return DefaultPlaceholder
}

// ModelNames returns the attribution model keys in sorted order.
func (a Attribution) ModelNames() []string {
	out := make([]string, 0, len(a.Models))
	for k := range a.Models {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// SourceNames returns the configured source kinds in sorted order.
func (s Schema) SourceNames() []string {
	out := make([]string, 0, len(s.Sources))
	for k := range s.Sources {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Options is a small helper to fetch typed values from free-form maps
// decoded from JSON or YAML. It performs only minimal coercion and returns
// the provided default when a key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers decode as float64
// and YAML integers as int; both are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		case int64:
			return int(n)
		}
	}
	return def
}

// StringSlice returns a []string for key when the value is an array of
// strings. Non-string elements are skipped. Returns nil when the key is
// missing or the value is not an array.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// UnmarshalJSON makes a missing or null options object decode to a non-nil,
// empty Options map so call sites never nil-check.
func (o *Options) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	var tmp map[string]any
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
