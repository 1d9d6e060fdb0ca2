// Package cli holds the bootstrap shared by the cmd/ binaries: .env
// loading, run IDs and log prefixes, the metrics backend switch, signal
// handling, and schema resolution from flags.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/keatumal/yandex-metrika-logs/internal/config"
	"github.com/keatumal/yandex-metrika-logs/internal/fieldmap"
	"github.com/keatumal/yandex-metrika-logs/internal/metrics"
	"github.com/keatumal/yandex-metrika-logs/internal/metrics/datadog"
	"github.com/keatumal/yandex-metrika-logs/internal/metrics/prompush"
)

// NewRunID returns a fresh run identifier.
func NewRunID() string { return uuid.NewString() }

// InitLog prefixes log lines with the tool name and a short run ID. Unless
// verbose is set, diagnostic logs are discarded; user-facing output goes
// through fmt and is unaffected.
func InitLog(tool, runID string, verbose bool) {
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	log.SetPrefix(fmt.Sprintf("%s[%s] ", tool, short))
	if verbose {
		log.SetOutput(os.Stderr)
	} else {
		log.SetOutput(io.Discard)
	}
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// Env loads an optional .env file and reads the environment.
func Env() (config.Env, error) {
	if err := config.LoadDotEnv(); err != nil {
		return config.Env{}, err
	}
	return config.FromOS(), nil
}

// MetricsFlags are the metrics-related flags common to every binary.
type MetricsFlags struct {
	Backend        string
	PushgatewayURL string
	DogStatsDAddr  string
}

// Register adds the flags to fs.
func (m *MetricsFlags) Register(fs *flag.FlagSet) {
	fs.StringVar(&m.Backend, "metrics-backend", "", "metrics backend: pushgateway, datadog or none (overrides env METRICS_BACKEND)")
	fs.StringVar(&m.PushgatewayURL, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	fs.StringVar(&m.DogStatsDAddr, "dogstatsd-addr", "", "DogStatsD address (overrides env DOGSTATSD_ADDR)")
}

const (
	defaultPushgatewayURL = "http://localhost:9091"
	defaultDogStatsDAddr  = "127.0.0.1:8125"
)

// SetupMetrics installs the backend chosen by flag, then env, then "none".
// The returned func flushes it and must be deferred by the caller.
func SetupMetrics(job, runID string, m MetricsFlags, env config.Env) func() {
	pick := func(vals ...string) string {
		for _, v := range vals {
			if v != "" {
				return v
			}
		}
		return ""
	}
	flush := func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}

	backend := pick(m.Backend, env.MetricsBackend, "none")
	switch backend {
	case "pushgateway":
		url := pick(m.PushgatewayURL, env.PushgatewayURL, defaultPushgatewayURL)
		b, err := prompush.NewBackend(job, runID, url)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return func() {}
		}
		log.Printf("metrics: url=%v, backend=%v, job_name=%v", url, backend, job)
		metrics.SetBackend(b)
		return flush

	case "datadog":
		addr := pick(m.DogStatsDAddr, env.DogStatsDAddr, defaultDogStatsDAddr)
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       addr,
			GlobalTags: []string{"job:" + job, "run_id:" + runID},
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return func() {}
		}
		log.Printf("metrics: addr=%v, backend=%v, job_name=%v", addr, backend, job)
		metrics.SetBackend(b)
		return flush

	case "none":
		log.Printf("metrics: disabled")
	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backend)
	}
	return func() {}
}

// PrintIssues writes every issue to w and reports whether any is an error.
func PrintIssues(w io.Writer, issues []config.Issue) bool {
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(w, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	return hasError
}

// SplitList splits a comma-separated flag value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Selection is what the flags say about fields.
type Selection struct {
	SchemaPath  string
	Source      string
	Attribution string
	// Fields overrides the schema's field template when non-empty.
	Fields []string
}

// Resolve loads the schema and expands the field template. Warnings are
// written to warn.
func Resolve(sel Selection, warn io.Writer) (config.Schema, fieldmap.Resolved, error) {
	s, issues, err := config.LoadSchema(sel.SchemaPath)
	for _, iss := range issues {
		if iss.Severity == config.SeverityWarning {
			fmt.Fprintf(warn, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		}
	}
	if err != nil {
		return config.Schema{}, fieldmap.Resolved{}, err
	}
	tpl, table, err := fieldmap.FromSchema(s, sel.Source)
	if err != nil {
		return s, fieldmap.Resolved{}, err
	}
	if len(sel.Fields) > 0 {
		tpl.Fields = sel.Fields
	}
	model, err := s.ResolveModel(sel.Attribution)
	if err != nil {
		return s, fieldmap.Resolved{}, err
	}
	r, err := fieldmap.Resolve(tpl, table, model)
	if err != nil {
		return s, fieldmap.Resolved{}, err
	}
	log.Printf("schema: %s source=%s attribution=%s fields=%d", s, sel.Source, model, len(r.Fields))
	return s, r, nil
}
