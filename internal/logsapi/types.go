package logsapi

import (
	"regexp"
	"strings"

	"github.com/keatumal/yandex-metrika-logs/internal/config"
)

// Status is the lifecycle state of a report as reported by the service.
type Status string

const (
	StatusCreated                      Status = "created"
	StatusPending                      Status = "pending"
	StatusProcessing                   Status = "processing"
	StatusAwaitingRetry                Status = "awaiting_retry"
	StatusProcessed                    Status = "processed"
	StatusProcessingFailed             Status = "processing_failed"
	StatusCanceled                     Status = "canceled"
	StatusCleanedByUser                Status = "cleaned_by_user"
	StatusCleanedAutomaticallyAsTooOld Status = "cleaned_automatically_as_too_old"
	StatusNotFound                     Status = "not_found"
)

// Ready reports whether parts can be downloaded.
func (s Status) Ready() bool { return s == StatusProcessed }

// Failed reports whether the report can never become ready.
func (s Status) Failed() bool {
	switch s {
	case StatusProcessingFailed, StatusCanceled, StatusCleanedByUser, StatusCleanedAutomaticallyAsTooOld:
		return true
	}
	return false
}

// Params are the parameters of a report request. Every field is optional
// at this level; the service rejects incomplete requests.
type Params struct {
	Date1       string
	Date2       string
	Fields      []string
	Source      string
	Attribution string
}

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Validate checks the parameters a new report needs.
func (p Params) Validate() []config.Issue {
	var issues []config.Issue
	add := func(path, msg string) {
		issues = append(issues, config.Issue{Severity: config.SeverityError, Path: path, Message: msg})
	}
	for _, d := range []struct{ path, v string }{{"flag.from", p.Date1}, {"flag.to", p.Date2}} {
		switch {
		case d.v == "":
			add(d.path, "date is required")
		case !isoDate.MatchString(d.v):
			add(d.path, "invalid date format: '"+d.v+"'. Expected format: YYYY-MM-DD")
		}
	}
	if isoDate.MatchString(p.Date1) && isoDate.MatchString(p.Date2) && p.Date1 > p.Date2 {
		add("flag.to", "end date "+p.Date2+" is before start date "+p.Date1)
	}
	if len(p.Fields) == 0 {
		add("fields", "at least one field is required")
	}
	if p.Source != config.SourceVisits && p.Source != config.SourceHits {
		add("flag.source", "source must be visits or hits, got '"+p.Source+"'")
	}
	return issues
}

func (p Params) fieldList() string { return strings.Join(p.Fields, ",") }

// ReportInfo is the service's description of one report.
type ReportInfo struct {
	RequestID   int64      `json:"request_id"`
	CounterID   int64      `json:"counter_id"`
	Source      string     `json:"source"`
	Date1       string     `json:"date1"`
	Date2       string     `json:"date2"`
	Fields      []string   `json:"fields"`
	Status      Status     `json:"status"`
	Size        int64      `json:"size"`
	Parts       []PartInfo `json:"parts"`
	Attribution string     `json:"attribution"`
}

// PartInfo describes one downloadable chunk of a ready report. Part numbers
// are assigned by the service and need not be contiguous.
type PartInfo struct {
	PartNumber int   `json:"part_number"`
	Size       int64 `json:"size"`
}

// Evaluation is the answer of a feasibility check.
type Evaluation struct {
	Possible               bool  `json:"possible"`
	MaxPossibleDayQuantity int64 `json:"max_possible_day_quantity"`
}

type reportEnvelope struct {
	LogRequest ReportInfo `json:"log_request"`
}

type listEnvelope struct {
	Requests []ReportInfo `json:"requests"`
}

type evaluationEnvelope struct {
	Evaluation Evaluation `json:"log_request_evaluation"`
}
