package logsapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
)

var (
	// ErrNotFeasible means the service declined a feasibility check.
	ErrNotFeasible = errors.New("report cannot be created")
	// ErrNotFound means the service answered 404 for a report or counter.
	ErrNotFound = errors.New("not found")
)

// RemoteError is returned for every failed call. Err is ErrNotFeasible,
// ErrNotFound, or the underlying transport/decoding error, and may be nil
// for other error statuses.
type RemoteError struct {
	Op         string
	ReportID   int64
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	var b strings.Builder
	b.WriteString("logs api ")
	b.WriteString(e.Op)
	if e.ReportID != 0 {
		fmt.Fprintf(&b, " report %d", e.ReportID)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": HTTP %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil && (e.Message == "" || !errors.Is(e.Err, ErrNotFound) && !errors.Is(e.Err, ErrNotFeasible)) {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *RemoteError) Unwrap() error { return e.Err }

// apiError is the service's error payload.
type apiError struct {
	Errors []struct {
		ErrorType string `json:"error_type"`
		Message   string `json:"message"`
	} `json:"errors"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// statusError builds a RemoteError from a non-2xx response and closes its
// body.
func statusError(op string, id int64, resp *http.Response) *RemoteError {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	re := &RemoteError{Op: op, ReportID: id, StatusCode: resp.StatusCode}
	var ae apiError
	if json.Unmarshal(body, &ae) == nil {
		msgs := make([]string, 0, len(ae.Errors))
		for _, e := range ae.Errors {
			if e.Message != "" {
				msgs = append(msgs, e.Message)
			}
		}
		switch {
		case len(msgs) > 0:
			re.Message = strings.Join(msgs, "; ")
		case ae.Message != "":
			re.Message = ae.Message
		}
	}
	if re.Message == "" {
		if s := strings.TrimSpace(string(body)); s != "" && len(s) < 512 {
			re.Message = s
		} else {
			re.Message = http.StatusText(resp.StatusCode)
		}
	}
	if resp.StatusCode == http.StatusNotFound {
		re.Err = ErrNotFound
	}
	return re
}
