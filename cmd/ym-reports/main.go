// Command ym-reports lists, cancels and deletes the Logs API reports of a
// counter.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/hashicorp/go-multierror"

	"github.com/keatumal/yandex-metrika-logs/internal/cli"
	"github.com/keatumal/yandex-metrika-logs/internal/config"
	"github.com/keatumal/yandex-metrika-logs/internal/console"
	"github.com/keatumal/yandex-metrika-logs/internal/logsapi"
	"github.com/keatumal/yandex-metrika-logs/internal/report"
)

const job = "ym_reports"

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
)

type options struct {
	counterID int64
	list      bool
	del       string
	deleteAll bool
	cancel    int64
	metrics   cli.MetricsFlags
	verbose   bool
}

func main() {
	ctx, stop := cli.SignalContext(context.Background())
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("ym-reports", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.Int64Var(&o.counterID, "counter-id", 0, "Metrika counter ID (required)")
	fs.BoolVar(&o.list, "list", false, "list all reports")
	fs.StringVar(&o.del, "delete", "", "comma-separated report IDs to delete")
	fs.BoolVar(&o.deleteAll, "delete-all", false, "delete every report of the counter")
	fs.Int64Var(&o.cancel, "cancel", 0, "cancel a report that is still being prepared")
	o.metrics.Register(fs)
	fs.BoolVar(&o.verbose, "v", false, "enable verbose logs")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	return o, nil
}

func (o options) validate() ([]int64, []config.Issue) {
	var issues []config.Issue
	add := func(path, msg string) {
		issues = append(issues, config.Issue{Severity: config.SeverityError, Path: path, Message: msg})
	}
	if o.counterID <= 0 {
		add("flag.counter-id", "a positive counter ID is required")
	}
	actions := 0
	for _, set := range []bool{o.list, o.del != "", o.deleteAll, o.cancel != 0} {
		if set {
			actions++
		}
	}
	switch actions {
	case 0:
		add("flag", "You need to specify the action: -list, -delete, -delete-all or -cancel")
	case 1:
	default:
		add("flag", "only one of -list, -delete, -delete-all, -cancel may be given")
	}

	var ids []int64
	for _, s := range cli.SplitList(o.del) {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			add("flag.delete", fmt.Sprintf("invalid report ID %q", s))
			continue
		}
		ids = append(ids, id)
	}
	if o.del != "" && len(ids) == 0 && len(issues) == 0 {
		add("flag.delete", "no report IDs given")
	}
	return ids, issues
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		return 1
	}
	ids, issues := o.validate()
	if cli.PrintIssues(stderr, issues) {
		return 1
	}

	runID := cli.NewRunID()
	cli.InitLog("ym-reports", runID, o.verbose)

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

	client, err := newClient(logsapi.Config{Token: env.AuthToken, CounterID: o.counterID, Debug: o.verbose})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	switch {
	case o.list:
		return list(ctx, client, stdout, stderr)
	case o.cancel != 0:
		info, err := client.Cancel(ctx, o.cancel)
		if err != nil {
			fmt.Fprintf(stderr, "Report %d: %v\n", o.cancel, err)
			return 1
		}
		fmt.Fprintf(stdout, "Report %d: canceled (status %s)\n", o.cancel, info.Status)
		return 0
	case o.deleteAll:
		n, err := report.DeleteAll(ctx, client, printResult(stdout, stderr))
		if n == 0 && err == nil {
			fmt.Fprintln(stdout, "No reports to delete")
		}
		if err != nil {
			log.Printf("delete-all: %v", err)
			if ctx.Err() != nil {
				fmt.Fprintf(stderr, "Interrupted: %v\n", err)
				return 1
			}
			// Per-item failures were printed; only a failed listing is fatal.
			var perItem *multierror.Error
			if !errors.As(err, &perItem) {
				fmt.Fprintln(stderr, err)
				return 1
			}
		}
		return 0
	default:
		if err := report.DeleteMany(ctx, client, ids, printResult(stdout, stderr)); err != nil {
			log.Printf("delete: %v", err)
			return 1
		}
		return 0
	}
}

func list(ctx context.Context, client logsapi.Client, stdout, stderr io.Writer) int {
	fmt.Fprintln(stdout, "Getting a list of reports…")
	reports, err := client.List(ctx)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintf(stdout, "Reports found: %d\n\n", len(reports))
	if len(reports) == 0 {
		return 0
	}
	total := console.ReportsTable(stdout, reports)
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "Total size: %s\n", console.Size(total))
	return 0
}

func printResult(stdout, stderr io.Writer) func(report.DeleteResult) {
	return func(r report.DeleteResult) {
		if r.Err != nil {
			fmt.Fprintf(stderr, "Report %d: not deleted: %v\n", r.ID, r.Err)
			return
		}
		fmt.Fprintf(stdout, "Report %d: deleted\n", r.ID)
	}
}
