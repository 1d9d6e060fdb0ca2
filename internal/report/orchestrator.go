package report

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/qmuntal/stateless"

	"github.com/keatumal/yandex-metrika-logs/internal/config"
	"github.com/keatumal/yandex-metrika-logs/internal/logsapi"
	"github.com/keatumal/yandex-metrika-logs/internal/metrics"
)

// DefaultInterval is the pause between status readings.
const DefaultInterval = 30 * time.Second

type trigger string

const (
	triggerEvaluated trigger = "evaluated"
	triggerCreated   trigger = "created"
	triggerAttached  trigger = "attached"
	triggerPoll      trigger = "poll"
	triggerReady     trigger = "ready"
	triggerDrain     trigger = "drain"
	triggerDone      trigger = "done"
	triggerFail      trigger = "fail"
)

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config wires an Orchestrator.
type Config struct {
	Client logsapi.Client
	// Sink receives parts; it may be nil for Check-only use.
	Sink     Sink
	Observer Observer

	// Interval between status readings; DefaultInterval when zero.
	Interval time.Duration
	// Sleep defaults to a context-aware timer.
	Sleep SleepFunc

	// Job labels metrics (the run ID).
	Job string
}

// Orchestrator runs report lifecycles. It holds no per-run state; each Run
// builds its own state machine.
type Orchestrator struct {
	client   logsapi.Client
	sink     Sink
	obs      Observer
	interval time.Duration
	sleep    SleepFunc
	job      string
}

// New returns an Orchestrator for cfg.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		client:   cfg.Client,
		sink:     cfg.Sink,
		obs:      cfg.Observer,
		interval: cfg.Interval,
		sleep:    cfg.Sleep,
		job:      cfg.Job,
	}
	if o.obs == nil {
		o.obs = NopObserver{}
	}
	if o.interval <= 0 {
		o.interval = DefaultInterval
	}
	if o.sleep == nil {
		o.sleep = sleepContext
	}
	return o
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// newMachine builds the lifecycle machine. Every non-terminal state permits
// triggerFail; anything else not configured is an illegal transition.
func (o *Orchestrator) newMachine() *stateless.StateMachine {
	sm := stateless.NewStateMachine(StateIdle)
	sm.Configure(StateIdle).
		Permit(triggerEvaluated, StateEvaluated).
		Permit(triggerAttached, StateAttached).
		Permit(triggerFail, StateFailed)
	sm.Configure(StateEvaluated).
		Permit(triggerCreated, StateCreated).
		Permit(triggerFail, StateFailed)
	sm.Configure(StateCreated).
		Permit(triggerPoll, StatePolling).
		Permit(triggerFail, StateFailed)
	sm.Configure(StateAttached).
		Permit(triggerPoll, StatePolling).
		Permit(triggerFail, StateFailed)
	sm.Configure(StatePolling).
		Permit(triggerReady, StateReady).
		Permit(triggerFail, StateFailed)
	sm.Configure(StateReady).
		Permit(triggerDrain, StateDraining).
		Permit(triggerFail, StateFailed)
	sm.Configure(StateDraining).
		Permit(triggerDone, StateDone).
		Permit(triggerFail, StateFailed)

	sm.OnTransitioned(func(_ context.Context, t stateless.Transition) {
		o.obs.StateChanged(t.Source.(State), t.Destination.(State))
	})
	return sm
}

// run is the per-call state.
type run struct {
	o  *Orchestrator
	sm *stateless.StateMachine
}

func (r *run) state() State { return r.sm.MustState().(State) }

func (r *run) fire(ctx context.Context, t trigger) error {
	if err := r.sm.FireCtx(ctx, t); err != nil {
		return fmt.Errorf("report: illegal transition %q from %s: %w", t, r.state(), err)
	}
	return nil
}

// fail moves the machine to Failed and returns err.
func (r *run) fail(ctx context.Context, err error) error {
	if s := r.state(); s != StateFailed && s != StateDone {
		if ferr := r.fire(ctx, triggerFail); ferr != nil {
			return errors.Join(err, ferr)
		}
	}
	return err
}

// Check performs only the feasibility step (a dry run). A negative answer
// is an error matching logsapi.ErrNotFeasible.
func (o *Orchestrator) Check(ctx context.Context, p logsapi.Params) (logsapi.Evaluation, error) {
	r := &run{o: o, sm: o.newMachine()}
	ev, err := r.evaluate(ctx, p)
	if err != nil {
		return ev, r.fail(ctx, err)
	}
	return ev, nil
}

// Run drives target to Done: it evaluates and creates a NewReport (or looks
// up an ExistingReport), polls until the report is processed, and hands every
// part to the sink in listing order.
func (o *Orchestrator) Run(ctx context.Context, target Target) (Result, error) {
	if o.sink == nil {
		return Result{}, fmt.Errorf("report: no sink configured")
	}
	r := &run{o: o, sm: o.newMachine()}
	res, err := r.run(ctx, target)
	res.State = r.state()
	return res, err
}

func (r *run) run(ctx context.Context, target Target) (Result, error) {
	var (
		id  int64
		err error
	)
	switch t := target.(type) {
	case NewReport:
		if _, err = r.evaluate(ctx, t.Params); err != nil {
			return Result{}, r.fail(ctx, err)
		}
		if id, err = r.create(ctx, t.Params); err != nil {
			return Result{}, r.fail(ctx, err)
		}
	case ExistingReport:
		if id, err = r.attach(ctx, t); err != nil {
			return Result{ReportID: t.ID}, r.fail(ctx, err)
		}
	default:
		return Result{}, r.fail(ctx, fmt.Errorf("report: unsupported target %T", target))
	}

	res := Result{ReportID: id}
	info, err := r.poll(ctx, id)
	if err != nil {
		return res, r.fail(ctx, err)
	}
	res.Parts = info.Parts

	rows, err := r.drain(ctx, id, info.Parts)
	res.Rows = rows
	if err != nil {
		return res, r.fail(ctx, err)
	}
	return res, nil
}

func (r *run) evaluate(ctx context.Context, p logsapi.Params) (ev logsapi.Evaluation, err error) {
	defer metrics.Since(r.o.job, "evaluate", time.Now(), &err)
	if ev, err = r.o.client.Evaluate(ctx, p); err != nil {
		return ev, fmt.Errorf("evaluate report: %w", err)
	}
	return ev, r.fire(ctx, triggerEvaluated)
}

func (r *run) create(ctx context.Context, p logsapi.Params) (id int64, err error) {
	defer metrics.Since(r.o.job, "create", time.Now(), &err)
	info, err := r.o.client.Create(ctx, p)
	if err != nil {
		return 0, fmt.Errorf("create report: %w", err)
	}
	log.Printf("report: created id=%d status=%s", info.RequestID, info.Status)
	return info.RequestID, r.fire(ctx, triggerCreated)
}

func (r *run) attach(ctx context.Context, t ExistingReport) (_ int64, err error) {
	defer metrics.Since(r.o.job, "attach", time.Now(), &err)
	id := t.ID
	info, err := r.o.client.Info(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("%w: %d: %w", ErrReportNotFound, id, err)
	}
	if missing := missingFields(t.Fields, info.Fields); len(missing) > 0 {
		return 0, config.Errorf("flag.report-id", "report %d (source %s) lacks the selected fields: %s",
			id, info.Source, strings.Join(missing, ", "))
	}
	log.Printf("report: attached id=%d status=%s", id, info.Status)
	return id, r.fire(ctx, triggerAttached)
}

// missingFields lists the entries of want absent from have.
func missingFields(want, have []string) []string {
	set := make(map[string]struct{}, len(have))
	for _, f := range have {
		set[f] = struct{}{}
	}
	var missing []string
	for _, f := range want {
		if _, ok := set[f]; !ok {
			missing = append(missing, f)
		}
	}
	return missing
}

// poll reads the status until it is processed. There is no attempt cap; a
// status-call error or a terminal failure status ends the loop.
func (r *run) poll(ctx context.Context, id int64) (info logsapi.ReportInfo, err error) {
	defer metrics.Since(r.o.job, "poll", time.Now(), &err)
	if err := r.fire(ctx, triggerPoll); err != nil {
		return info, err
	}
	for attempt := 1; ; attempt++ {
		info, err = r.o.client.Info(ctx, id)
		if err != nil {
			return info, fmt.Errorf("report status: %w", err)
		}
		if info.Status.Ready() {
			return info, r.fire(ctx, triggerReady)
		}
		if info.Status.Failed() {
			return info, fmt.Errorf("%w: report %d is %s", ErrReportFailed, id, info.Status)
		}
		r.o.obs.Waiting(id, info.Status, time.Duration(attempt-1)*r.o.interval)
		if err := r.o.sleep(ctx, r.o.interval); err != nil {
			return info, err
		}
	}
}

// drain visits parts in listing order and downloads each one by its own
// part number.
func (r *run) drain(ctx context.Context, id int64, parts []logsapi.PartInfo) (total int64, err error) {
	defer metrics.Since(r.o.job, "drain", time.Now(), &err)
	if err := r.fire(ctx, triggerDrain); err != nil {
		return 0, err
	}
	r.o.obs.PartsListed(id, parts)
	for i, p := range parts {
		n, err := r.part(ctx, id, i+1, len(parts), p)
		total += n
		if err != nil {
			return total, err
		}
	}
	log.Printf("report: drained id=%d parts=%d rows=%d", id, len(parts), total)
	return total, r.fire(ctx, triggerDone)
}

func (r *run) part(ctx context.Context, id int64, index, total int, p logsapi.PartInfo) (n int64, err error) {
	defer metrics.Since(r.o.job, "part", time.Now(), &err)
	obs := r.o.obs
	obs.PartStage(index, total, p, StageDownloading)
	pr, err := r.o.client.Download(ctx, id, p.PartNumber)
	if err != nil {
		return 0, fmt.Errorf("part %d/%d (part_number %d): %w", index, total, p.PartNumber, err)
	}
	defer pr.Close()

	obs.PartStage(index, total, p, StageConverting)
	saving := false
	markSaving := func() {
		if !saving {
			saving = true
			obs.PartStage(index, total, p, StageSaving)
		}
	}
	n, err = r.o.sink.WritePart(ctx, Part{Index: index, Total: total, Info: p, Reader: pr, Saving: markSaving})
	if err != nil {
		return n, fmt.Errorf("part %d/%d (part_number %d): %w", index, total, p.PartNumber, err)
	}
	markSaving()
	obs.PartStage(index, total, p, StageDone)
	metrics.RecordRows(r.o.job, "downloaded", pr.Rows())
	return n, nil
}
