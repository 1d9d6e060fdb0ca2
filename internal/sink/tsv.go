package sink

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"strings"

	"github.com/keatumal/yandex-metrika-logs/internal/report"
)

// ErrDestinationExists is returned when the output path is already taken.
var ErrDestinationExists = errors.New("output file already exists")

// CheckDestination fails with ErrDestinationExists when path exists. It has
// no side effects.
func CheckDestination(path string) error {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", ErrDestinationExists, path)
	case errors.Is(err, fs.ErrNotExist):
		return nil
	default:
		return fmt.Errorf("check output %s: %w", path, err)
	}
}

// TSVOptions tune the file layout.
type TSVOptions struct {
	// NoHeader suppresses the header row.
	NoHeader bool
}

// TSVFile writes every part of a report to one tab-separated file. The file
// is created on the first part (never overwritten), and each part is flushed
// and synced before the next one starts, so an interrupted run leaves a
// valid prefix.
type TSVFile struct {
	path string
	tr   Transform
	opts TSVOptions

	f      *os.File
	w      *bufio.Writer
	rows   int64
	closed bool
}

var _ report.Sink = (*TSVFile)(nil)

// NewTSVFile returns a sink writing to path. Nothing touches the disk until
// the first part or Close.
func NewTSVFile(path string, tr Transform, opts TSVOptions) *TSVFile {
	return &TSVFile{path: path, tr: tr, opts: opts}
}

// Path returns the destination path.
func (s *TSVFile) Path() string { return s.path }

// Rows returns the data rows written so far.
func (s *TSVFile) Rows() int64 { return s.rows }

func (s *TSVFile) open() error {
	if s.f != nil {
		return nil
	}
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrDestinationExists, s.path)
		}
		return fmt.Errorf("create output: %w", err)
	}
	s.f = f
	s.w = bufio.NewWriterSize(f, 256<<10)
	if !s.opts.NoHeader {
		if err := writeLine(s.w, s.tr.Header()); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	return nil
}

// WritePart appends the records of p.
func (s *TSVFile) WritePart(ctx context.Context, p report.Part) (int64, error) {
	if s.closed {
		return 0, fmt.Errorf("write %s: sink is closed", s.path)
	}
	proj, err := s.tr.Bind(p.Reader.Header())
	if err != nil {
		return 0, err
	}
	if err := s.open(); err != nil {
		return 0, err
	}
	if p.Saving != nil {
		p.Saving()
	}

	var (
		n   int64
		row []string
	)
	for {
		cells, err := p.Reader.NextCells()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, err
		}
		if n%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return n, err
			}
		}
		row = proj.Apply(row, cells)
		if err := writeLine(s.w, row); err != nil {
			return n, fmt.Errorf("write %s: %w", s.path, err)
		}
		n++
	}
	s.rows += n
	if err := s.sync(); err != nil {
		return n, err
	}
	return n, nil
}

func (s *TSVFile) sync() error {
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", s.path, err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", s.path, err)
	}
	return nil
}

// Close finishes the file. A run that wrote no parts still produces the
// file (header only, unless suppressed).
func (s *TSVFile) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.open(); err != nil {
		return err
	}
	if err := s.sync(); err != nil {
		s.f.Close()
		return err
	}
	log.Printf("sink: wrote %s rows=%d", s.path, s.rows)
	return s.f.Close()
}

func writeLine(w *bufio.Writer, cells []string) error {
	if _, err := w.WriteString(strings.Join(cells, "\t")); err != nil {
		return err
	}
	return w.WriteByte('\n')
}

// Abort ends a failed run. Parts already written stay on disk; a file that
// was never created is not created.
func (s *TSVFile) Abort() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.f == nil {
		return nil
	}
	if err := s.w.Flush(); err != nil {
		s.f.Close()
		return fmt.Errorf("flush %s: %w", s.path, err)
	}
	return s.f.Close()
}
