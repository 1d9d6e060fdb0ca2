// Command ym-download orders a Logs API report for a counter, waits for it
// to be prepared, and saves every part to a TSV file or a database table.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/keatumal/yandex-metrika-logs/internal/cli"
	"github.com/keatumal/yandex-metrika-logs/internal/config"
	"github.com/keatumal/yandex-metrika-logs/internal/console"
	"github.com/keatumal/yandex-metrika-logs/internal/ddl"
	"github.com/keatumal/yandex-metrika-logs/internal/fieldmap"
	"github.com/keatumal/yandex-metrika-logs/internal/logsapi"
	"github.com/keatumal/yandex-metrika-logs/internal/report"
	"github.com/keatumal/yandex-metrika-logs/internal/sink"
	"github.com/keatumal/yandex-metrika-logs/internal/storage"

	// register all backends with the storage factory for -table.
	_ "github.com/keatumal/yandex-metrika-logs/internal/storage/all"
)

const job = "ym_download"

// Test seams.
var (
	loadEnv   = cli.Env
	newClient = func(cfg logsapi.Config) (logsapi.Client, error) {
		c, err := logsapi.New(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	newRepository = storage.New
)

type options struct {
	counterID   int64
	from, to    string
	reportID    int64
	source      string
	attribution string
	fields      string
	output      string
	noRename    bool
	noHeader    bool
	dryRun      bool
	wait        time.Duration
	table       string
	batchSize   int
	schemaPath  string
	metrics     cli.MetricsFlags
	verbose     bool
}

func main() {
	ctx, stop := cli.SignalContext(context.Background())
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("ym-download", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.Int64Var(&o.counterID, "counter-id", 0, "Metrika counter ID (required)")
	fs.StringVar(&o.from, "from", "", "start date, YYYY-MM-DD")
	fs.StringVar(&o.to, "to", "", "end date, YYYY-MM-DD")
	fs.Int64Var(&o.reportID, "report-id", 0, "download an existing report instead of ordering one")
	fs.StringVar(&o.source, "source", config.SourceVisits, "report source: visits or hits")
	fs.StringVar(&o.attribution, "attribution", "", "attribution model (default from schema)")
	fs.StringVar(&o.fields, "fields", "", "comma-separated raw fields overriding the schema template")
	fs.StringVar(&o.output, "output", "", "output file (default <counter>_<from>_<to>.tsv)")
	fs.BoolVar(&o.noRename, "no-rename", false, "keep raw Logs API field names in the header")
	fs.BoolVar(&o.noHeader, "no-header", false, "do not write a header row")
	fs.BoolVar(&o.dryRun, "dry-run", false, "only check whether the report can be created")
	fs.DurationVar(&o.wait, "wait-interval", report.DefaultInterval, "interval between report status checks")
	fs.StringVar(&o.table, "table", "", "insert into this database table instead of writing a file")
	fs.IntVar(&o.batchSize, "batch-size", sink.DefaultBatchSize, "rows per insert with -table")
	fs.StringVar(&o.schemaPath, "schema", "", "schema file, JSON or YAML (default: built-in)")
	o.metrics.Register(fs)
	fs.BoolVar(&o.verbose, "v", false, "enable verbose logs")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		err := config.Errorf("flag", "unexpected arguments: %v", fs.Args())
		fmt.Fprintln(stderr, err)
		return o, err
	}
	return o, nil
}

// validate checks flag combinations that need no network or filesystem.
func (o options) validate() []config.Issue {
	var issues []config.Issue
	add := func(path, format string, a ...any) {
		issues = append(issues, config.Issue{Severity: config.SeverityError, Path: path, Message: fmt.Sprintf(format, a...)})
	}
	if o.counterID <= 0 {
		add("flag.counter-id", "a positive counter ID is required")
	}
	if o.reportID != 0 {
		if o.from != "" || o.to != "" {
			add("flag.report-id", "-report-id cannot be combined with -from/-to")
		}
		if o.dryRun {
			add("flag.dry-run", "-dry-run needs -from/-to, not -report-id")
		}
	}
	if o.table != "" && o.output != "" {
		add("flag.table", "-table cannot be combined with -output")
	}
	if o.wait <= 0 {
		add("flag.wait-interval", "must be positive, got %s", o.wait)
	}
	return issues
}

// outputPath is the destination file name.
func (o options) outputPath() string {
	switch {
	case o.output != "":
		return o.output
	case o.reportID != 0:
		return fmt.Sprintf("%d_report_%d.tsv", o.counterID, o.reportID)
	default:
		return fmt.Sprintf("%d_%s_%s.tsv", o.counterID, o.from, o.to)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		// The flag set has already printed the problem.
		return 1
	}
	if cli.PrintIssues(stderr, o.validate()) {
		return 1
	}

	runID := cli.NewRunID()
	cli.InitLog("ym-download", runID, o.verbose)

	env, err := loadEnv()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if err := env.RequireAuthToken(); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	flush := cli.SetupMetrics(job, runID, o.metrics, env)
	defer flush()

	s, resolved, err := cli.Resolve(cli.Selection{
		SchemaPath:  o.schemaPath,
		Source:      o.source,
		Attribution: o.attribution,
		Fields:      cli.SplitList(o.fields),
	}, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	naming := fieldmap.Renamed
	if o.noRename {
		naming = fieldmap.Raw
	}

	var target report.Target = report.ExistingReport{ID: o.reportID, Fields: resolved.Fields}
	params := logsapi.Params{
		Date1:       o.from,
		Date2:       o.to,
		Fields:      resolved.Fields,
		Source:      o.source,
		Attribution: resolved.Model,
	}
	if o.reportID == 0 {
		if cli.PrintIssues(stderr, params.Validate()) {
			return 1
		}
		target = report.NewReport{Params: params}
	}

	// Pre-flight checks come before any remote call.
	path := o.outputPath()
	if !o.dryRun && o.table == "" {
		if err := sink.CheckDestination(path); err != nil {
			fmt.Fprintf(stderr, "Output file already exists: %s\n", path)
			return 1
		}
	}
	if !o.dryRun && o.table != "" {
		if cli.PrintIssues(stderr, env.DB.Validate()) {
			return 1
		}
	}

	client, err := newClient(logsapi.Config{
		Token:     env.AuthToken,
		CounterID: o.counterID,
		Debug:     o.verbose,
	})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	progress := console.NewProgress(stdout)

	if o.dryRun {
		orch := report.New(report.Config{Client: client, Job: job})
		if _, err := orch.Check(ctx, params); err != nil {
			fmt.Fprintf(stdout, "The report cannot be created. Error:\n\n%v\n\n", err)
			return 1
		}
		fmt.Fprintln(stdout, "Yes, a report can be created.")
		return 0
	}

	var (
		dst    report.Sink
		finish func(res report.Result) error
		abort  func()
	)
	if o.table != "" {
		src, _ := s.Source(o.source)
		def, err := ddl.FromResolved(o.table, resolved, naming, src.Table)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		repo, err := newRepository(ctx, storage.ConfigFromDB(env.DB, o.table, def.ColumnNames()))
		if err != nil {
			fmt.Fprintf(stderr, "connect to %s: %v\n", env.DB.Kind, err)
			return 1
		}
		defer repo.Close()
		if err := storage.EnsureTable(ctx, env.DB.Kind, repo, def); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		tbl, err := sink.NewTable(resolved, naming, sink.TableConfig{
			Job:       job,
			BatchSize: o.batchSize,
			Copy:      repo.CopyFrom,
		})
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		dst = tbl
		finish = func(report.Result) error {
			progress.Printf("Inserted %d rows into `%s`", tbl.Rows(), o.table)
			return nil
		}
		abort = func() {}
	} else {
		f := sink.NewTSVFile(path, sink.NewTransform(resolved, naming), sink.TSVOptions{NoHeader: o.noHeader})
		dst = f
		finish = func(report.Result) error {
			if err := f.Close(); err != nil {
				return err
			}
			progress.Printf("The report is saved in %s", f.Path())
			return nil
		}
		abort = func() {
			if err := f.Abort(); err != nil {
				log.Printf("sink: abort %s: %v", path, err)
			}
		}
	}

	orch := report.New(report.Config{
		Client:   client,
		Sink:     dst,
		Observer: progress,
		Interval: o.wait,
		Job:      job,
	})
	if o.reportID == 0 {
		progress.Println("Ordering report…")
	}
	start := time.Now()
	res, err := orch.Run(ctx, target)
	progress.Finish()
	if err != nil {
		abort()
		fmt.Fprintln(stderr, err)
		return 1
	}
	if err := finish(res); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	log.Printf("report %d: parts=%d rows=%d in %s", res.ReportID, len(res.Parts), res.Rows, time.Since(start).Truncate(time.Millisecond))
	return 0
}
