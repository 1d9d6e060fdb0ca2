package sink

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/keatumal/yandex-metrika-logs/internal/fieldmap"
	"github.com/keatumal/yandex-metrika-logs/internal/report"
	"github.com/keatumal/yandex-metrika-logs/internal/schema"
	"github.com/keatumal/yandex-metrika-logs/internal/storage"
)

// DefaultBatchSize is the number of rows per insert.
const DefaultBatchSize = 5000

// TableConfig wires a Table sink.
type TableConfig struct {
	// Job labels metrics.
	Job string
	// BatchSize defaults to DefaultBatchSize.
	BatchSize int
	// Buffer is the capacity of the converter → loader channel; BatchSize
	// when zero.
	Buffer int
	// Copy inserts one batch, usually Repository.CopyFrom.
	Copy storage.CopyFn
}

// Table converts every record with the column types and inserts it into a
// database table in fixed-size batches. There is no header.
type Table struct {
	tr      Transform
	conv    *schema.Converter
	columns []string
	cfg     TableConfig
	rows    int64
}

var _ report.Sink = (*Table)(nil)

// NewTable compiles a Table sink for r. Column names follow naming, and a
// field without a usable type fails here, before anything is downloaded.
func NewTable(r fieldmap.Resolved, naming fieldmap.ColumnNaming, cfg TableConfig) (*Table, error) {
	if cfg.Copy == nil {
		return nil, fmt.Errorf("table sink: copy function must not be nil")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = cfg.BatchSize
	}
	types, err := r.ColumnTypes(naming)
	if err != nil {
		return nil, err
	}
	columns := r.Columns(naming)
	conv, err := schema.NewConverter(columns, types)
	if err != nil {
		return nil, fmt.Errorf("table sink: %w", err)
	}
	return &Table{
		tr:      NewTransform(r, naming),
		conv:    conv,
		columns: columns,
		cfg:     cfg,
	}, nil
}

// Columns returns the target column names.
func (s *Table) Columns() []string { return s.columns }

// Rows returns the rows inserted so far.
func (s *Table) Rows() int64 { return s.rows }

// WritePart streams p into the table. A conversion error stops the part;
// batches inserted before it stay committed.
func (s *Table) WritePart(ctx context.Context, p report.Part) (int64, error) {
	proj, err := s.tr.Bind(p.Reader.Header())
	if err != nil {
		return 0, err
	}
	if p.Saving != nil {
		p.Saving()
	}

	g, gctx := errgroup.WithContext(ctx)
	in := make(chan []any, s.cfg.Buffer)

	var inserted int64
	// LoadBatches watches ctx so rows read before a bad cell are flushed.
	g.Go(func() error {
		n, err := storage.LoadBatches(ctx, s.cfg.Job, s.columns, in, s.cfg.BatchSize, s.cfg.Copy)
		inserted = n
		return err
	})
	g.Go(func() error {
		defer close(in)
		var cells []string
		for {
			raw, err := p.Reader.NextCells()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			cells = proj.Apply(cells, raw)
			// Header is line 1 of the part.
			row, err := s.conv.Row(nil, cells, int(p.Reader.Rows())+1)
			if err != nil {
				return fmt.Errorf("part %d: %w", p.Info.PartNumber, err)
			}
			select {
			case in <- row:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	err = g.Wait()
	s.rows += inserted
	return inserted, err
}
