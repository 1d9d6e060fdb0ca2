// Package config provides configuration models and helpers for the Metrika
// logs tools.
//
// This file adds a lightweight linter for Schema values and the shared
// configuration error type. It performs static checks over a decoded Schema
// and returns a list of issues (errors and warnings) that callers surface in
// a CLI or tests.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/keatumal/yandex-metrika-logs/internal/schema"
)

// ErrConfiguration is matched (errors.Is) by every error-severity Issue. It
// marks bad or missing schema entries, environment values, or flag
// combinations; these are always reported before any network activity.
var ErrConfiguration = errors.New("configuration error")

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that is surfaced but not fatal.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the configuration (e.g. "types.ym:s:visitID",
// "env.YM_AUTH_TOKEN", "flag.counter-id"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Unwrap lets errors.Is(err, ErrConfiguration) match error-severity issues.
func (i Issue) Unwrap() error {
	if i.Severity == SeverityError {
		return ErrConfiguration
	}
	return nil
}

// Errorf builds an error-severity Issue for path.
func Errorf(path, format string, args ...any) error {
	return Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, args...)}
}

// FirstError returns the first error-severity issue, or nil.
func FirstError(issues []Issue) error {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return iss
		}
	}
	return nil
}

// ValidateSchema performs static validation of a Schema. It does not mutate
// the schema.
func ValidateSchema(s Schema) []Issue {
	var issues []Issue
	issues = append(issues, validateAttribution(s.Attribution)...)

	if len(s.Sources) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "sources",
			Message:  "at least one source kind (visits, hits) must be defined",
		})
	}
	ph := s.Attribution.PlaceholderToken()
	for _, name := range s.SourceNames() {
		src := s.Sources[name]
		path := "sources." + name
		if name != SourceVisits && name != SourceHits {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     path,
				Message:  fmt.Sprintf("unknown source kind %q; the Logs API accepts visits and hits", name),
			})
		}
		if len(src.Fields) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".fields",
				Message:  "field list must not be empty",
			})
		}
		seen := make(map[string]struct{}, len(src.Fields))
		for i, f := range src.Fields {
			if strings.TrimSpace(f) == "" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     fmt.Sprintf("%s.fields[%d]", path, i),
					Message:  "field name must not be empty",
				})
				continue
			}
			if _, dup := seen[f]; dup {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     fmt.Sprintf("%s.fields[%d]", path, i),
					Message:  fmt.Sprintf("duplicate field %q", f),
				})
			}
			seen[f] = struct{}{}
			if _, ok := s.Rename[f]; !ok {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     fmt.Sprintf("%s.fields[%d]", path, i),
					Message:  fmt.Sprintf("field %q has no rename entry; renamed output will fail", f),
				})
			}
			if _, ok := s.Types[f]; !ok {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     fmt.Sprintf("%s.fields[%d]", path, i),
					Message:  fmt.Sprintf("field %q has no column type; database operations will fail", f),
				})
			}
		}
	}

	for field, typ := range s.Types {
		if _, err := schema.ParseType(typ); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "types." + field,
				Message:  err.Error(),
			})
		}
	}
	for raw, display := range s.Rename {
		if strings.Contains(raw, ph) != strings.Contains(display, ph) {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "rename." + raw,
				Message:  fmt.Sprintf("placeholder %s appears on only one side of %q -> %q", ph, raw, display),
			})
		}
	}

	return issues
}

func validateAttribution(a Attribution) []Issue {
	var issues []Issue
	if len(a.Models) == 0 {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "attribution.models",
			Message:  "attribution table must not be empty",
		})
	}
	for _, name := range a.ModelNames() {
		m := a.Models[name]
		if strings.TrimSpace(m.Field) == "" || strings.TrimSpace(m.Display) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "attribution.models." + name,
				Message:  "both field and display tokens are required",
			})
		}
	}
	if a.Default != "" {
		if _, ok := a.Models[a.Default]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "attribution.default",
				Message:  fmt.Sprintf("default model %q is not in the attribution table", a.Default),
			})
		}
	}
	return issues
}
