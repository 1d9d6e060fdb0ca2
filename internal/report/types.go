// Package report drives a Logs API report through its lifecycle:
//
//	Idle -> Evaluated -> Created -> Polling -> Ready -> Draining -> Done
//	Idle -> Attached  ------------^
//
// with Failed reachable from every non-terminal state. The transitions are
// enforced by a qmuntal/stateless machine; the orchestrator performs each
// step's work and then fires the matching trigger.
//
// Console output is not produced here. Progress goes to an Observer and
// downloaded parts go to a Sink, so the lifecycle is testable with fakes.
package report

import (
	"context"
	"errors"
	"time"

	"github.com/keatumal/yandex-metrika-logs/internal/logsapi"
)

// State is a lifecycle state of one run.
type State string

const (
	StateIdle      State = "idle"
	StateEvaluated State = "evaluated"
	StateCreated   State = "created"
	StateAttached  State = "attached"
	StatePolling   State = "polling"
	StateReady     State = "ready"
	StateDraining  State = "draining"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// Stage is the progress of one part within Draining.
type Stage string

const (
	StageDownloading Stage = "downloading"
	StageConverting  Stage = "converting"
	StageSaving      Stage = "saving"
	StageDone        Stage = "done"
)

var (
	// ErrReportNotFound means an existing report could not be looked up.
	ErrReportNotFound = errors.New("report not found")
	// ErrReportFailed means the service moved the report to a state from
	// which it never becomes ready.
	ErrReportFailed = errors.New("report processing failed")
)

// Target selects what a run works on: a NewReport to evaluate and create,
// or an ExistingReport to attach to.
type Target interface{ isTarget() }

// NewReport requests a fresh report with Params.
type NewReport struct{ Params logsapi.Params }

// ExistingReport attaches to a report created earlier. When Fields is set,
// the report must carry every one of them.
type ExistingReport struct {
	ID     int64
	Fields []string
}

func (NewReport) isTarget() {}
func (ExistingReport) isTarget() {}

// Part is handed to the Sink for every listed report part.
type Part struct {
	// Index is 1-based in listing order; Total is the number of parts.
	Index, Total int
	Info         logsapi.PartInfo
	Reader       *logsapi.PartReader

	// Saving is called by the sink when it starts persisting the part.
	Saving func()
}

// Sink receives parts in listing order. WritePart returns the number of
// records persisted for the part.
type Sink interface {
	WritePart(ctx context.Context, p Part) (int64, error)
}

// Observer is notified of lifecycle progress. Implementations must not
// block for long; they run on the orchestrator's goroutine.
type Observer interface {
	StateChanged(from, to State)
	// Waiting is called after each non-ready status reading; elapsed is
	// (attempt-1)*interval.
	Waiting(id int64, status logsapi.Status, elapsed time.Duration)
	PartsListed(id int64, parts []logsapi.PartInfo)
	PartStage(index, total int, part logsapi.PartInfo, stage Stage)
}

// NopObserver ignores every notification. Embed it to implement only some
// Observer methods.
type NopObserver struct{}

func (NopObserver) StateChanged(State, State) {}
func (NopObserver) Waiting(int64, logsapi.Status, time.Duration) {}
func (NopObserver) PartsListed(int64, []logsapi.PartInfo) {}
func (NopObserver) PartStage(int, int, logsapi.PartInfo, Stage) {}

// Result summarizes a finished run.
type Result struct {
	ReportID int64
	State    State
	Parts    []logsapi.PartInfo
	Rows     int64
}
