// Package loader imports a previously downloaded TSV file into a database
// table.
//
// The header is checked against the resolved column set before any row is
// read. Rows are then read lazily by one goroutine, converted to typed
// values, and handed through a bounded channel to storage.LoadBatches,
// which inserts them strictly in order.
package loader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/keatumal/yandex-metrika-logs/internal/fieldmap"
	"github.com/keatumal/yandex-metrika-logs/internal/schema"
	"github.com/keatumal/yandex-metrika-logs/internal/storage"
)

// DefaultBatchSize is the number of rows per insert.
const DefaultBatchSize = 5000

// Config describes one import.
type Config struct {
	// Path of the TSV file.
	Path string
	// Resolved is the expected field set.
	Resolved fieldmap.Resolved
	// Naming selects the table's column spelling.
	Naming fieldmap.ColumnNaming
	// BatchSize defaults to DefaultBatchSize.
	BatchSize int
	// Job labels metrics.
	Job string
}

// Result reports the outcome of an import. Before and After are the
// table's row counts; they are -1 when counting failed.
type Result struct {
	Columns  []string
	Read     int64
	Inserted int64
	Before   int64
	After    int64
}

// Delta is the change in the table's row count.
func (r Result) Delta() int64 {
	if r.Before < 0 || r.After < 0 {
		return -1
	}
	return r.After - r.Before
}

// Load imports cfg.Path into repo. A header mismatch returns a
// *SchemaMismatchError and a bad cell a *schema.ConversionError; batches
// inserted before a failure stay committed.
func Load(ctx context.Context, repo storage.Repository, cfg Config) (Result, error) {
	res := Result{Before: -1, After: -1}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	f, err := os.Open(cfg.Path)
	if err != nil {
		return res, fmt.Errorf("open %s: %w", cfg.Path, err)
	}
	defer f.Close()
	br := bufio.NewReaderSize(f, 256<<10)

	line, err := br.ReadString('\n')
	switch {
	case errors.Is(err, io.EOF) && line == "":
		return res, fmt.Errorf("%s: file is empty", cfg.Path)
	case err != nil && !errors.Is(err, io.EOF):
		return res, fmt.Errorf("read header: %w", err)
	}
	header := normalizeHeader(splitLine(line))

	columns, err := matchHeader(header, cfg.Resolved, cfg.Naming)
	if err != nil {
		return res, err
	}
	types, err := cfg.Resolved.ColumnTypes(cfg.Naming)
	if err != nil {
		return res, err
	}
	conv, err := schema.NewConverter(columns, types)
	if err != nil {
		return res, fmt.Errorf("compile converter: %w", err)
	}
	res.Columns = columns
	log.Printf("loader: %s header ok, %s", cfg.Path, describeColumns(columns))

	if n, err := repo.CountRows(ctx); err != nil {
		log.Printf("loader: count rows before import: %v", err)
	} else {
		res.Before = n
	}

	g, gctx := errgroup.WithContext(ctx)
	rows := make(chan []any, cfg.BatchSize)

	// The loader watches ctx, not gctx: when the reader stops on a bad
	// line, the rows before it are still flushed.
	g.Go(func() error {
		n, err := storage.LoadBatches(ctx, cfg.Job, columns, rows, cfg.BatchSize, repo.CopyFrom)
		res.Inserted = n
		return err
	})
	g.Go(func() error {
		defer close(rows)
		n, err := readRows(gctx, br, conv, rows)
		res.Read = n
		return err
	})
	err = g.Wait()

	if n, cerr := repo.CountRows(ctx); cerr != nil {
		log.Printf("loader: count rows after import: %v", cerr)
	} else {
		res.After = n
	}
	log.Printf("loader: read=%d inserted=%d before=%d after=%d delta=%d",
		res.Read, res.Inserted, res.Before, res.After, res.Delta())
	return res, err
}

// readRows converts every data line and sends it on out. Blank lines are
// skipped. Line numbers count the header as line 1.
func readRows(ctx context.Context, br *bufio.Reader, conv *schema.Converter, out chan<- []any) (int64, error) {
	var n int64
	for lineNo := 2; ; lineNo++ {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return n, fmt.Errorf("read line %d: %w", lineNo, err)
		}
		eof := errors.Is(err, io.EOF)
		if text := splitLine(line); !(len(text) == 1 && text[0] == "") {
			row, cerr := conv.Row(nil, text, lineNo)
			if cerr != nil {
				return n, cerr
			}
			select {
			case out <- row:
				n++
			case <-ctx.Done():
				return n, ctx.Err()
			}
		}
		if eof {
			return n, nil
		}
	}
}
