package loader

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/keatumal/yandex-metrika-logs/internal/fieldmap"
)

const utf8BOM = "\uFEFF"

// SchemaMismatchError reports a file header whose column set differs from
// the expected one. Nothing is inserted when it is returned.
type SchemaMismatchError struct {
	// Missing are expected columns absent from the file.
	Missing []string
	// Unexpected are file columns that map to no expected column.
	Unexpected []string
}

func (e *SchemaMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing columns: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, "unexpected columns: "+strings.Join(e.Unexpected, ", "))
	}
	return "file header does not match the table schema: " + strings.Join(parts, "; ")
}

// normalizeHeader strips a leading BOM and NFC-normalizes every cell.
func normalizeHeader(h []string) []string {
	out := make([]string, len(h))
	for i, c := range h {
		if i == 0 {
			c = strings.TrimPrefix(c, utf8BOM)
		}
		c = strings.TrimSpace(c)
		if n, _, err := transform.String(norm.NFC, c); err == nil {
			c = n
		}
		out[i] = c
	}
	return out
}

// matchHeader maps every header cell to its target column under naming. A
// cell may be spelled raw or renamed, whichever way the file was written.
// The header set must equal the expected column set.
func matchHeader(header []string, r fieldmap.Resolved, naming fieldmap.ColumnNaming) ([]string, error) {
	raw := make(map[string]bool, len(r.Fields))
	for _, f := range r.Fields {
		raw[f] = true
	}

	seen := make(map[string]bool, len(header))
	targets := make([]string, len(header))
	mismatch := &SchemaMismatchError{}
	for i, h := range header {
		field := h
		if !raw[field] {
			f, ok := r.RawName(h)
			if !ok || !raw[f] {
				mismatch.Unexpected = append(mismatch.Unexpected, h)
				continue
			}
			field = f
		}
		col := r.Column(field, naming)
		if seen[col] {
			mismatch.Unexpected = append(mismatch.Unexpected, h)
			continue
		}
		seen[col] = true
		targets[i] = col
	}
	for _, col := range r.Columns(naming) {
		if !seen[col] {
			mismatch.Missing = append(mismatch.Missing, col)
		}
	}
	if len(mismatch.Missing) > 0 || len(mismatch.Unexpected) > 0 {
		sort.Strings(mismatch.Missing)
		sort.Strings(mismatch.Unexpected)
		return nil, mismatch
	}
	return targets, nil
}

func splitLine(line string) []string {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return strings.Split(line, "\t")
}

func describeColumns(cols []string) string {
	return fmt.Sprintf("%d columns (%s)", len(cols), strings.Join(cols, ", "))
}
