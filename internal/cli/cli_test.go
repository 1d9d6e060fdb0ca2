package cli

import (
	"bytes"
	"errors"
	"flag"
	"reflect"
	"strings"
	"testing"

	"github.com/keatumal/yandex-metrika-logs/internal/config"
)

func TestSplitList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"1", []string{"1"}},
		{" 1, 2,,3 ", []string{"1", "2", "3"}},
	}
	for _, tc := range tests {
		if got := SplitList(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("SplitList(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestPrintIssues(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	hasError := PrintIssues(&buf, []config.Issue{
		{Severity: config.SeverityWarning, Path: "rename.x", Message: "odd"},
		{Severity: config.SeverityError, Path: "flag.to", Message: "bad"},
	})
	if !hasError {
		t.Fatalf("expected an error")
	}
	if got := buf.String(); got != "warning: rename.x: odd\nerror: flag.to: bad\n" {
		t.Fatalf("output = %q", got)
	}
	if PrintIssues(&buf, []config.Issue{{Severity: config.SeverityWarning}}) {
		t.Fatalf("warnings alone must not fail")
	}
}

func TestResolve_DefaultSchema(t *testing.T) {
	t.Parallel()

	var warn bytes.Buffer
	_, r, err := Resolve(Selection{Source: config.SourceVisits}, &warn)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if r.Model == "" || len(r.Fields) == 0 {
		t.Fatalf("resolved = %+v", r)
	}
	for _, f := range r.Fields {
		if strings.Contains(f, config.DefaultPlaceholder) {
			t.Fatalf("placeholder left in %q", f)
		}
	}
}

func TestResolve_Overrides(t *testing.T) {
	t.Parallel()

	var warn bytes.Buffer
	_, r, err := Resolve(Selection{
		Source:      config.SourceVisits,
		Attribution: "first",
		Fields:      []string{"ym:s:visitID", "ym:s:<attr>TrafficSource"},
	}, &warn)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if want := []string{"ym:s:visitID", "ym:s:firstTrafficSource"}; !reflect.DeepEqual(r.Fields, want) {
		t.Fatalf("Fields = %v, want %v", r.Fields, want)
	}
	if r.Model != "FIRST" {
		t.Fatalf("Model = %q", r.Model)
	}
}

func TestResolve_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		sel  Selection
	}{
		{"unknown source", Selection{Source: "clicks"}},
		{"unknown model", Selection{Source: config.SourceVisits, Attribution: "nope"}},
		{"missing schema file", Selection{Source: config.SourceVisits, SchemaPath: "does-not-exist.json"}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var warn bytes.Buffer
			_, _, err := Resolve(tc.sel, &warn)
			if !errors.Is(err, config.ErrConfiguration) {
				t.Fatalf("err = %v, want a configuration error", err)
			}
		})
	}
}

func TestMetricsFlags(t *testing.T) {
	t.Parallel()

	var m MetricsFlags
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	m.Register(fs)
	if err := fs.Parse([]string{"-metrics-backend", "none", "-pushgateway-url", "http://gw:9091"}); err != nil {
		t.Fatal(err)
	}
	if m.Backend != "none" || m.PushgatewayURL != "http://gw:9091" {
		t.Fatalf("flags = %+v", m)
	}
	// "none" and unknown backends install nothing and return a no-op flush.
	SetupMetrics("test", "run", m, config.Env{})()
	SetupMetrics("test", "run", MetricsFlags{Backend: "statsd"}, config.Env{})()
}
