// Command ym-db prepares and fills a destination table: it creates a table
// for a report source from the schema, or imports a downloaded TSV file
// into an existing one.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/keatumal/yandex-metrika-logs/internal/cli"
	"github.com/keatumal/yandex-metrika-logs/internal/config"
	"github.com/keatumal/yandex-metrika-logs/internal/console"
	"github.com/keatumal/yandex-metrika-logs/internal/ddl"
	"github.com/keatumal/yandex-metrika-logs/internal/fieldmap"
	"github.com/keatumal/yandex-metrika-logs/internal/loader"
	"github.com/keatumal/yandex-metrika-logs/internal/storage"

	// register all backends with the storage factory.
	_ "github.com/keatumal/yandex-metrika-logs/internal/storage/all"
)

const job = "ym_db"

// Test seams.
var (
	loadEnv       = cli.Env
	newRepository = storage.New
)

type options struct {
	createTable string
	importFile  string
	table       string
	source      string
	attribution string
	renamed     bool
	batchSize   int
	schemaPath  string
	kind        string
	printDDL    bool
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
	fs := flag.NewFlagSet("ym-db", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&o.createTable, "create-table", "", "create a table with this name")
	fs.StringVar(&o.importFile, "import-file", "", "import a TSV file into -table")
	fs.StringVar(&o.table, "table", "", "destination table for -import-file")
	fs.StringVar(&o.source, "source", config.SourceVisits, "which data to work with: visits or hits")
	fs.StringVar(&o.attribution, "attribution", "", "attribution model (default from schema)")
	fs.BoolVar(&o.renamed, "renamed", true, "name columns with the renamed (display) field names")
	fs.IntVar(&o.batchSize, "batch-size", loader.DefaultBatchSize, "rows per insert")
	fs.StringVar(&o.schemaPath, "schema", "", "schema file, JSON or YAML (default: built-in)")
	fs.StringVar(&o.kind, "kind", "", "storage backend (overrides env DB_KIND)")
	fs.BoolVar(&o.printDDL, "print-ddl", false, "print the CREATE TABLE statement without connecting")
	o.metrics.Register(fs)
	fs.BoolVar(&o.verbose, "v", false, "enable verbose logs")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	return o, nil
}

func (o options) validate() []config.Issue {
	var issues []config.Issue
	add := func(path, msg string) {
		issues = append(issues, config.Issue{Severity: config.SeverityError, Path: path, Message: msg})
	}
	switch {
	case o.createTable == "" && o.importFile == "":
		add("flag", "You need to specify the action: -create-table or -import-file")
	case o.createTable != "" && o.importFile != "":
		add("flag", "-create-table and -import-file are mutually exclusive")
	case o.importFile != "" && o.table == "":
		add("flag.table", "-import-file needs a destination -table")
	case o.printDDL && o.createTable == "":
		add("flag.print-ddl", "-print-ddl only applies to -create-table")
	}
	if o.batchSize <= 0 {
		add("flag.batch-size", "must be positive")
	}
	return issues
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		return 1
	}
	if cli.PrintIssues(stderr, o.validate()) {
		return 1
	}

	runID := cli.NewRunID()
	cli.InitLog("ym-db", runID, o.verbose)

	env, err := loadEnv()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if o.kind != "" {
		env.DB.Kind = strings.ToLower(o.kind)
	}
	flush := cli.SetupMetrics(job, runID, o.metrics, env)
	defer flush()

	s, resolved, err := cli.Resolve(cli.Selection{
		SchemaPath:  o.schemaPath,
		Source:      o.source,
		Attribution: o.attribution,
	}, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	naming := fieldmap.Raw
	if o.renamed {
		naming = fieldmap.Renamed
	}

	if o.createTable != "" {
		src, _ := s.Source(o.source)
		def, err := ddl.FromResolved(o.createTable, resolved, naming, src.Table)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		if o.printDDL {
			stmt, err := storage.CreateTableSQL(env.DB.Kind, def)
			if err != nil {
				fmt.Fprintln(stderr, err)
				return 1
			}
			fmt.Fprintln(stdout, stmt)
			return 0
		}
		return createTable(ctx, env.DB, def, stdout, stderr)
	}
	return importFile(ctx, env.DB, o, resolved, naming, stdout, stderr)
}

// connect validates the connection settings and opens table.
func connect(ctx context.Context, db config.DB, table string, columns []string, stdout, stderr io.Writer) (storage.Repository, bool) {
	if cli.PrintIssues(stderr, db.Validate()) {
		return nil, false
	}
	fmt.Fprintf(stdout, "Connecting to %s: %s…\n", db.Kind, describe(db))
	repo, err := newRepository(ctx, storage.ConfigFromDB(db, table, columns))
	if err != nil {
		fmt.Fprintf(stderr, "Can't connect:\n\n%v\n\n", err)
		return nil, false
	}
	return repo, true
}

// describe names the connection target without credentials.
func describe(db config.DB) string {
	switch {
	case db.DSN != "":
		return "DSN from " + config.EnvDBDSN
	case db.Kind == "sqlite":
		return db.Name
	default:
		return fmt.Sprintf("%s@%s", db.User, storage.Config{Host: db.Host, Port: db.Port}.HostPort(0))
	}
}

func createTable(ctx context.Context, db config.DB, def ddl.TableDef, stdout, stderr io.Writer) int {
	repo, ok := connect(ctx, db, def.FQN, def.ColumnNames(), stdout, stderr)
	if !ok {
		return 1
	}
	defer repo.Close()

	// Show the backend's column types.
	if d, err := storage.DialectFor(db.Kind); err == nil {
		for i, c := range def.Columns {
			if t, err := d.MapType(c.Type); err == nil {
				def.Columns[i].SQLType = t
			}
		}
	}

	fmt.Fprintf(stdout, "Creating a table `%s`…\n", def.FQN)
	if err := storage.EnsureTable(ctx, db.Kind, repo, def); err != nil {
		fmt.Fprintf(stderr, "Can't create a table:\n\n%v\n\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Table `%s` has been created:\n\n", def.FQN)
	console.ColumnsTable(stdout, def)
	return 0
}

func importFile(ctx context.Context, db config.DB, o options, r fieldmap.Resolved, naming fieldmap.ColumnNaming, stdout, stderr io.Writer) int {
	if _, err := os.Stat(o.importFile); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	repo, ok := connect(ctx, db, o.table, r.Columns(naming), stdout, stderr)
	if !ok {
		return 1
	}
	defer repo.Close()

	fmt.Fprintf(stdout, "Importing %s into `%s`…\n", o.importFile, o.table)
	start := time.Now()
	res, err := loader.Load(ctx, repo, loader.Config{
		Path:      o.importFile,
		Resolved:  r,
		Naming:    naming,
		BatchSize: o.batchSize,
		Job:       job,
	})
	if err != nil {
		fmt.Fprintln(stderr, err)
		if res.Inserted > 0 {
			fmt.Fprintf(stderr, "%d rows were inserted before the failure\n", res.Inserted)
		}
		return 1
	}
	fmt.Fprintf(stdout, "Rows read: %d, inserted: %d\n", res.Read, res.Inserted)
	if res.Before >= 0 && res.After >= 0 {
		fmt.Fprintf(stdout, "Rows in `%s`: %d → %d (+%d)\n", o.table, res.Before, res.After, res.Delta())
	}
	log.Printf("import: %s done in %s", o.importFile, time.Since(start).Truncate(time.Millisecond))
	return 0
}
