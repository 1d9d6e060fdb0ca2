// Package fieldmap turns a field template into the concrete column list of a
// report.
//
// Templates name Logs API fields with an attribution placeholder
// ("ym:s:<attr>TrafficSource"). Resolving a template against one attribution
// model substitutes the model's field token into field names and its display
// token into column names ("ym:s:lastsignTrafficSource" ->
// "last_sign_traffic_source"). The rename and type tables are expanded for
// every model so a column produced under any model can be looked up in
// either direction.
//
// Everything here is pure and runs before the first network call; failures
// are config.ErrConfiguration issues.
package fieldmap

import (
	"sort"
	"strings"

	"github.com/keatumal/yandex-metrika-logs/internal/config"
)

// ColumnNaming selects which spelling of a field becomes the output column
// name.
type ColumnNaming int

const (
	// Renamed uses the display names from the rename table.
	Renamed ColumnNaming = iota
	// Raw keeps the Logs API field names.
	Raw
)

func (n ColumnNaming) String() string {
	if n == Raw {
		return "raw"
	}
	return "renamed"
}

// Template is the unexpanded field list with its rename and type tables.
type Template struct {
	Fields []string
	Rename map[string]string
	Types  map[string]string
}

// AttributionTable maps attribution model names to their substitution
// tokens.
type AttributionTable struct {
	Placeholder string
	Models      map[string]config.AttributionModel
}

// FromSchema builds the template for source and the attribution table from a
// loaded schema.
func FromSchema(s config.Schema, source string) (Template, AttributionTable, error) {
	src, err := s.Source(source)
	if err != nil {
		return Template{}, AttributionTable{}, err
	}
	tpl := Template{
		Fields: append([]string(nil), src.Fields...),
		Rename: s.Rename,
		Types:  s.Types,
	}
	return tpl, TableFrom(s.Attribution), nil
}

// TableFrom adapts the schema's attribution block.
func TableFrom(a config.Attribution) AttributionTable {
	return AttributionTable{Placeholder: a.PlaceholderToken(), Models: a.Models}
}

func (t AttributionTable) placeholder() string {
	if t.Placeholder == "" {
		return config.DefaultPlaceholder
	}
	return t.Placeholder
}

func (t AttributionTable) lookup(model string) (config.AttributionModel, error) {
	m, ok := t.Models[model]
	if !ok {
		names := make([]string, 0, len(t.Models))
		for k := range t.Models {
			names = append(names, k)
		}
		sort.Strings(names)
		return config.AttributionModel{}, config.Errorf("flag.attribution",
			"unknown attribution model %q (known: %s)", model, strings.Join(names, ", "))
	}
	return m, nil
}

// Resolved is a template expanded for one attribution model.
type Resolved struct {
	// Model is the attribution model the fields were expanded for.
	Model string
	// Fields are the expanded raw field names, in template order.
	Fields []string

	rename  map[string]string
	reverse map[string]string
	types   map[string]string
}

// Resolve expands tpl for model. It fails when model is not in table or when
// an expanded field has no rename entry.
func Resolve(tpl Template, table AttributionTable, model string) (Resolved, error) {
	m, err := table.lookup(model)
	if err != nil {
		return Resolved{}, err
	}
	ph := table.placeholder()

	r := Resolved{
		Model:   model,
		Fields:  make([]string, 0, len(tpl.Fields)),
		rename:  expandAll(tpl.Rename, table, true),
		reverse: make(map[string]string),
		types:   expandAll(tpl.Types, table, false),
	}
	for raw, display := range r.rename {
		r.reverse[display] = raw
	}

	var missing []string
	for _, f := range tpl.Fields {
		f = strings.ReplaceAll(strings.TrimSpace(f), ph, m.Field)
		r.Fields = append(r.Fields, f)
		if _, ok := r.rename[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return Resolved{}, config.Errorf("rename",
			"no rename entry for %s", strings.Join(missing, ", "))
	}
	return r, nil
}

// ExpandTypes expands a type table for model: placeholder keys are replaced
// by the model's field token, other keys are copied.
func ExpandTypes(types map[string]string, table AttributionTable, model string) (map[string]string, error) {
	m, err := table.lookup(model)
	if err != nil {
		return nil, err
	}
	ph := table.placeholder()
	out := make(map[string]string, len(types))
	for k, v := range types {
		out[strings.ReplaceAll(k, ph, m.Field)] = v
	}
	return out, nil
}

// expandAll expands every placeholder entry of src for every model. When
// values is set the display token is substituted into values too.
func expandAll(src map[string]string, table AttributionTable, values bool) map[string]string {
	ph := table.placeholder()
	out := make(map[string]string, len(src))
	for k, v := range src {
		if !strings.Contains(k, ph) {
			out[k] = v
			continue
		}
		for _, m := range table.Models {
			nv := v
			if values {
				nv = strings.ReplaceAll(v, ph, m.Display)
			}
			out[strings.ReplaceAll(k, ph, m.Field)] = nv
		}
	}
	return out
}

// Columns returns the output column names for naming, aligned with Fields.
func (r Resolved) Columns(naming ColumnNaming) []string {
	if naming == Raw {
		return append([]string(nil), r.Fields...)
	}
	out := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		out[i] = r.rename[f]
	}
	return out
}

// DisplayName returns the renamed spelling of a raw field.
func (r Resolved) DisplayName(raw string) (string, bool) {
	d, ok := r.rename[raw]
	return d, ok
}

// RawName returns the raw field behind a display name.
func (r Resolved) RawName(display string) (string, bool) {
	f, ok := r.reverse[display]
	return f, ok
}

// ColumnTypes returns column name -> type spelling for every field under
// naming. A field without a type entry is a configuration error.
func (r Resolved) ColumnTypes(naming ColumnNaming) (map[string]string, error) {
	cols := r.Columns(naming)
	out := make(map[string]string, len(cols))
	var missing []string
	for i, f := range r.Fields {
		t, ok := r.types[f]
		if !ok {
			missing = append(missing, f)
			continue
		}
		out[cols[i]] = t
	}
	if len(missing) > 0 {
		return nil, config.Errorf("types", "no column type for %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// Column maps a raw field name to its output name under naming.
func (r Resolved) Column(raw string, naming ColumnNaming) string {
	if naming == Raw {
		return raw
	}
	if d, ok := r.rename[raw]; ok {
		return d
	}
	return raw
}
