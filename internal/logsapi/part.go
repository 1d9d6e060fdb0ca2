package logsapi

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Record is one row of a part keyed by raw field name. Values are the
// service's TabSeparated spelling, still escaped.
type Record map[string]string

// PartReader is a lazy, record-oriented view over one downloaded part. The
// first line of a part is its header; every following non-empty line is a
// record. Close must be called to release the connection.
type PartReader struct {
	rc     io.ReadCloser
	br     *bufio.Reader
	header []string
	line   int
	rows   int64
	bytes  int64
	done   bool
}

// NewPartReader reads the header line from rc. An empty body yields a reader
// with no header whose Next returns io.EOF.
func NewPartReader(rc io.ReadCloser) (*PartReader, error) {
	p := &PartReader{rc: rc, br: bufio.NewReaderSize(rc, 64<<10)}
	line, err := p.readLine()
	switch {
	case errors.Is(err, io.EOF) && line == "":
		p.done = true
		return p, nil
	case err != nil && !errors.Is(err, io.EOF):
		rc.Close()
		return nil, fmt.Errorf("read part header: %w", err)
	}
	p.header = strings.Split(line, "\t")
	return p, nil
}

// Header returns the raw field names in part order.
func (p *PartReader) Header() []string { return p.header }

// Rows returns the number of records returned so far.
func (p *PartReader) Rows() int64 { return p.rows }

// Bytes returns the number of body bytes consumed so far.
func (p *PartReader) Bytes() int64 { return p.bytes }

// NextCells returns the next record as cells aligned with Header. It
// returns io.EOF after the last record.
func (p *PartReader) NextCells() ([]string, error) {
	for !p.done {
		line, err := p.readLine()
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read part line %d: %w", p.line, err)
		}
		if errors.Is(err, io.EOF) {
			p.done = true
		}
		if line == "" {
			continue
		}
		cells := strings.Split(line, "\t")
		if len(cells) != len(p.header) {
			return nil, fmt.Errorf("part line %d: %d cells, header has %d", p.line, len(cells), len(p.header))
		}
		p.rows++
		return cells, nil
	}
	return nil, io.EOF
}

// Next returns the next record. It returns io.EOF after the last record.
func (p *PartReader) Next() (Record, error) {
	cells, err := p.NextCells()
	if err != nil {
		return nil, err
	}
	rec := make(Record, len(cells))
	for i, h := range p.header {
		rec[h] = cells[i]
	}
	return rec, nil
}

// Close releases the underlying body.
func (p *PartReader) Close() error { return p.rc.Close() }

func (p *PartReader) readLine() (string, error) {
	s, err := p.br.ReadString('\n')
	p.bytes += int64(len(s))
	if s != "" {
		p.line++
	}
	s = strings.TrimSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\r")
	return s, err
}
