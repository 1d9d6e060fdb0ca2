package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

//go:embed default_schema.json
var defaultSchemaJSON []byte

// DefaultSchema returns the embedded schema covering the commonly used
// visits and hits fields.
func DefaultSchema() (Schema, error) {
	return DecodeSchema(bytes.NewReader(defaultSchemaJSON), ".json")
}

// LoadSchema reads a schema file. An empty path selects the embedded default.
// Files ending in .yaml or .yml are decoded as YAML, everything else as JSON.
//
// The returned schema has already passed ValidateSchema; warnings are
// returned alongside it so the CLI can print them.
func LoadSchema(path string) (Schema, []Issue, error) {
	var (
		s   Schema
		err error
	)
	if path == "" {
		s, err = DefaultSchema()
	} else {
		var f *os.File
		f, err = os.Open(path)
		if err != nil {
			return Schema{}, nil, Errorf("schema", "open %s: %v", path, err)
		}
		defer f.Close()
		s, err = DecodeSchema(f, filepath.Ext(path))
	}
	if err != nil {
		return Schema{}, nil, err
	}

	issues := ValidateSchema(s)
	if err := FirstError(issues); err != nil {
		return Schema{}, issues, err
	}
	return s, issues, nil
}

// DecodeSchema decodes a schema from r; ext selects the format.
func DecodeSchema(r io.Reader, ext string) (Schema, error) {
	var s Schema
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(r).Decode(&s); err != nil {
			return Schema{}, Errorf("schema", "decode yaml: %v", err)
		}
	default:
		if err := json.NewDecoder(r).Decode(&s); err != nil {
			return Schema{}, Errorf("schema", "decode json: %v", err)
		}
	}
	for name, src := range s.Sources {
		if src.Table == nil {
			src.Table = Options{}
			s.Sources[name] = src
		}
	}
	return s, nil
}

// Source returns the template for kind or a configuration error.
func (s Schema) Source(kind string) (Source, error) {
	src, ok := s.Sources[kind]
	if !ok {
		return Source{}, Errorf("flag.source", "unknown source %q (known: %s)", kind, strings.Join(s.SourceNames(), ", "))
	}
	return src, nil
}

// ResolveModel returns model, or the schema default when model is empty.
func (s Schema) ResolveModel(model string) (string, error) {
	if model == "" {
		model = s.Attribution.Default
	}
	if model == "" {
		return "", Errorf("flag.attribution", "no attribution model given and the schema has no default")
	}
	return strings.ToUpper(model), nil
}

// String implements fmt.Stringer for log lines.
func (s Schema) String() string {
	return fmt.Sprintf("schema(sources=%s models=%d rename=%d types=%d)",
		strings.Join(s.SourceNames(), ","), len(s.Attribution.Models), len(s.Rename), len(s.Types))
}
