package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/keatumal/yandex-metrika-logs/internal/logsapi"
)

// fakeClient is an in-memory logsapi.Client. statuses is consumed one entry
// per Info call after creation/attach; the last entry repeats.
type fakeClient struct {
	mu sync.Mutex

	eval    logsapi.Evaluation
	evalErr error

	created   logsapi.ReportInfo
	createErr error

	infoErr  error
	source   string
	fields   []string
	statuses []logsapi.Status
	parts    []logsapi.PartInfo
	bodies   map[int]string

	reports  []logsapi.ReportInfo
	listErr  error
	cleanErr map[int64]error

	calls []string
}

var _ logsapi.Client = (*fakeClient)(nil)

func (f *fakeClient) record(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeClient) Evaluate(_ context.Context, p logsapi.Params) (logsapi.Evaluation, error) {
	f.record("evaluate %s..%s", p.Date1, p.Date2)
	return f.eval, f.evalErr
}

func (f *fakeClient) Create(_ context.Context, _ logsapi.Params) (logsapi.ReportInfo, error) {
	f.record("create")
	return f.created, f.createErr
}

func (f *fakeClient) Info(_ context.Context, id int64) (logsapi.ReportInfo, error) {
	f.record("info %d", id)
	if f.infoErr != nil {
		return logsapi.ReportInfo{}, f.infoErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	status := logsapi.StatusProcessed
	if len(f.statuses) > 0 {
		status = f.statuses[0]
		if len(f.statuses) > 1 {
			f.statuses = f.statuses[1:]
		}
	}
	info := logsapi.ReportInfo{RequestID: id, Status: status, Source: f.source, Fields: f.fields}
	if status.Ready() {
		info.Parts = f.parts
	}
	return info, nil
}

func (f *fakeClient) List(context.Context) ([]logsapi.ReportInfo, error) {
	f.record("list")
	return f.reports, f.listErr
}

func (f *fakeClient) Download(_ context.Context, id int64, n int) (*logsapi.PartReader, error) {
	f.record("download %d/%d", id, n)
	body, ok := f.bodies[n]
	if !ok {
		return nil, &logsapi.RemoteError{Op: "download", ReportID: id, StatusCode: 404, Err: logsapi.ErrNotFound}
	}
	return logsapi.NewPartReader(io.NopCloser(strings.NewReader(body)))
}

func (f *fakeClient) Clean(_ context.Context, id int64) (logsapi.ReportInfo, error) {
	f.record("clean %d", id)
	if err := f.cleanErr[id]; err != nil {
		return logsapi.ReportInfo{}, err
	}
	return logsapi.ReportInfo{RequestID: id, Status: logsapi.StatusCleanedByUser}, nil
}

func (f *fakeClient) Cancel(_ context.Context, id int64) (logsapi.ReportInfo, error) {
	f.record("cancel %d", id)
	return logsapi.ReportInfo{RequestID: id, Status: logsapi.StatusCanceled}, nil
}

func (f *fakeClient) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// memSink collects records per part, calling Saving before it reads.
type memSink struct {
	parts  []int
	rows   [][]string
	header []string
	err    error
}

func (s *memSink) WritePart(_ context.Context, p Part) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.parts = append(s.parts, p.Info.PartNumber)
	if s.header == nil {
		s.header = p.Reader.Header()
	}
	p.Saving()
	var n int64
	for {
		cells, err := p.Reader.NextCells()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		s.rows = append(s.rows, cells)
		n++
	}
}

// recorder is an Observer that keeps every notification as a string.
type recorder struct {
	events  []string
	elapsed []time.Duration
}

func (r *recorder) StateChanged(from, to State) {
	r.events = append(r.events, fmt.Sprintf("%s->%s", from, to))
}

func (r *recorder) Waiting(_ int64, status logsapi.Status, elapsed time.Duration) {
	r.events = append(r.events, "wait "+string(status))
	r.elapsed = append(r.elapsed, elapsed)
}

func (r *recorder) PartsListed(_ int64, parts []logsapi.PartInfo) {
	r.events = append(r.events, fmt.Sprintf("parts %d", len(parts)))
}

func (r *recorder) PartStage(index, total int, _ logsapi.PartInfo, stage Stage) {
	r.events = append(r.events, fmt.Sprintf("part %d/%d %s", index, total, stage))
}

// noSleep counts pauses without waiting.
type noSleep struct{ n int }

func (s *noSleep) sleep(context.Context, time.Duration) error {
	s.n++
	return nil
}
