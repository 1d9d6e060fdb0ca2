// Package logsapi is a client for the Yandex Metrika Logs API.
//
// A report is an asynchronous export job: it is evaluated (feasibility),
// created, polled until its status is "processed", downloaded part by part,
// and finally cleaned. The Client interface covers exactly those calls;
// HTTPClient implements it over internal/datasource/httpds.
//
// Every failure is a *RemoteError. errors.Is(err, ErrNotFound) holds for 404
// answers and errors.Is(err, ErrNotFeasible) for a negative evaluation.
package logsapi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/keatumal/yandex-metrika-logs/internal/datasource/httpds"
)

// DefaultBaseURL is the production API host.
const DefaultBaseURL = "https://api-metrika.yandex.net"

// Client is the set of Logs API calls the tools use.
type Client interface {
	Evaluate(ctx context.Context, p Params) (Evaluation, error)
	Create(ctx context.Context, p Params) (ReportInfo, error)
	Info(ctx context.Context, id int64) (ReportInfo, error)
	List(ctx context.Context) ([]ReportInfo, error)
	Download(ctx context.Context, id int64, partNumber int) (*PartReader, error)
	Clean(ctx context.Context, id int64) (ReportInfo, error)
	Cancel(ctx context.Context, id int64) (ReportInfo, error)
}

// Config configures an HTTPClient bound to one counter.
type Config struct {
	Token     string
	CounterID int64

	// BaseURL defaults to DefaultBaseURL; tests point it at httptest.
	BaseURL   string
	UserAgent string

	// RequestsPerSecond limits outgoing calls when > 0.
	RequestsPerSecond float64

	// Debug logs every call with log.Printf.
	Debug bool

	Transport http.RoundTripper
}

// HTTPClient implements Client over HTTP.
type HTTPClient struct {
	base  string
	debug bool

	api      *httpds.Client
	download *httpds.Client
}

var _ Client = (*HTTPClient)(nil)

// New builds a client for cfg.CounterID.
func New(cfg Config) (*HTTPClient, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("logsapi: token must not be empty")
	}
	if cfg.CounterID <= 0 {
		return nil, fmt.Errorf("logsapi: counter id must be positive, got %d", cfg.CounterID)
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "yandex-metrika-logs"
	}

	headers := http.Header{}
	headers.Set("Authorization", "OAuth "+cfg.Token)
	headers.Set("User-Agent", ua)

	var lim *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	mk := func(timeout time.Duration) *httpds.Client {
		return httpds.NewClient(httpds.Config{
			Timeout:     timeout,
			BaseHeaders: headers,
			Limiter:     lim,
			Transport:   cfg.Transport,
		})
	}
	return &HTTPClient{
		base:     fmt.Sprintf("%s/management/v1/counter/%d", base, cfg.CounterID),
		debug:    cfg.Debug,
		api:      mk(0),
		download: mk(-1),
	}, nil
}

func (c *HTTPClient) url(path string, q url.Values) string {
	u := c.base + "/" + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (p Params) query() url.Values {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("date1", p.Date1)
	set("date2", p.Date2)
	set("fields", p.fieldList())
	set("source", p.Source)
	set("attribution", p.Attribution)
	return q
}

// call performs one JSON exchange and decodes a 2xx body into out.
func (c *HTTPClient) call(ctx context.Context, op string, id int64, method, u string, out any) error {
	start := time.Now()
	resp, err := c.api.Do(ctx, method, u, nil, http.Header{"Accept": {"application/json"}})
	if err != nil {
		return &RemoteError{Op: op, ReportID: id, Err: err}
	}
	if c.debug {
		log.Printf("logsapi: %s %s -> %d (%s)", method, u, resp.StatusCode, time.Since(start).Round(time.Millisecond))
	}
	if resp.StatusCode/100 != 2 {
		return statusError(op, id, resp)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RemoteError{Op: op, ReportID: id, StatusCode: resp.StatusCode, Message: "decode response", Err: err}
	}
	return nil
}

// Evaluate checks whether a report with p can be created. A negative
// answer, or a 400 rejecting the parameters, wraps ErrNotFeasible.
func (c *HTTPClient) Evaluate(ctx context.Context, p Params) (Evaluation, error) {
	var env evaluationEnvelope
	err := c.call(ctx, "evaluate", 0, http.MethodGet, c.url("logrequests/evaluate", p.query()), &env)
	if err != nil {
		var re *RemoteError
		if errors.As(err, &re) && re.StatusCode == http.StatusBadRequest {
			re.Err = ErrNotFeasible
		}
		return Evaluation{}, err
	}
	if !env.Evaluation.Possible {
		return env.Evaluation, &RemoteError{
			Op:      "evaluate",
			Message: fmt.Sprintf("max possible day quantity is %d", env.Evaluation.MaxPossibleDayQuantity),
			Err:     ErrNotFeasible,
		}
	}
	return env.Evaluation, nil
}

// Create registers a new report.
func (c *HTTPClient) Create(ctx context.Context, p Params) (ReportInfo, error) {
	var env reportEnvelope
	if err := c.call(ctx, "create", 0, http.MethodPost, c.url("logrequests", p.query()), &env); err != nil {
		return ReportInfo{}, err
	}
	return env.LogRequest, nil
}

// Info returns the current description of report id.
func (c *HTTPClient) Info(ctx context.Context, id int64) (ReportInfo, error) {
	var env reportEnvelope
	if err := c.call(ctx, "info", id, http.MethodGet, c.url("logrequest/"+strconv.FormatInt(id, 10), nil), &env); err != nil {
		return ReportInfo{}, err
	}
	return env.LogRequest, nil
}

// List returns every report of the counter.
func (c *HTTPClient) List(ctx context.Context) ([]ReportInfo, error) {
	var env listEnvelope
	if err := c.call(ctx, "list", 0, http.MethodGet, c.url("logrequests", nil), &env); err != nil {
		return nil, err
	}
	return env.Requests, nil
}

// Clean deletes the prepared data of report id.
func (c *HTTPClient) Clean(ctx context.Context, id int64) (ReportInfo, error) {
	var env reportEnvelope
	if err := c.call(ctx, "clean", id, http.MethodPost, c.url("logrequest/"+strconv.FormatInt(id, 10)+"/clean", nil), &env); err != nil {
		return ReportInfo{}, err
	}
	return env.LogRequest, nil
}

// Cancel stops a report that is still being prepared.
func (c *HTTPClient) Cancel(ctx context.Context, id int64) (ReportInfo, error) {
	var env reportEnvelope
	if err := c.call(ctx, "cancel", id, http.MethodPost, c.url("logrequest/"+strconv.FormatInt(id, 10)+"/cancel", nil), &env); err != nil {
		return ReportInfo{}, err
	}
	return env.LogRequest, nil
}

// Download opens part partNumber of report id. The body is streamed; the
// caller must Close the returned reader.
func (c *HTTPClient) Download(ctx context.Context, id int64, partNumber int) (*PartReader, error) {
	op := "download part " + strconv.Itoa(partNumber)
	u := c.url(fmt.Sprintf("logrequest/%d/part/%d/download", id, partNumber), nil)
	resp, err := c.download.Get(ctx, u, nil)
	if err != nil {
		return nil, &RemoteError{Op: op, ReportID: id, Err: err}
	}
	if c.debug {
		log.Printf("logsapi: GET %s -> %d", u, resp.StatusCode)
	}
	if resp.StatusCode/100 != 2 {
		return nil, statusError(op, id, resp)
	}
	pr, err := NewPartReader(resp.Body)
	if err != nil {
		return nil, &RemoteError{Op: op, ReportID: id, StatusCode: resp.StatusCode, Err: err}
	}
	return pr, nil
}
