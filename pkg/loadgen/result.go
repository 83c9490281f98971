package loadgen

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/getmockd/errorgen/pkg/fault"
)

// EndpointPath is the fault injection route on the server.
const EndpointPath = "/api/error-generator"

// lineTimeFormat is the per-request line timestamp.
const lineTimeFormat = "2006-01-02T15:04:05.000000"

// Request is one randomized fault injection request.
type Request struct {
	ErrorType fault.ErrorType `json:"errorType"`
	ErrorRate float64         `json:"errorRate"`
	LatencyMs int64           `json:"latencyMs"`
}

// URL returns the full request URL under base.
func (r Request) URL(base string) string {
	q := url.Values{}
	q.Set(fault.ParamErrorType, string(r.ErrorType))
	q.Set(fault.ParamErrorRate, strconv.FormatFloat(r.ErrorRate, 'f', -1, 64))
	q.Set(fault.ParamLatencyMs, strconv.FormatInt(r.LatencyMs, 10))
	return strings.TrimRight(base, "/") + EndpointPath + "?" + q.Encode()
}

// Result is the outcome of one request.
type Result struct {
	Time       time.Time     `json:"time"`
	Request    Request       `json:"request"`
	StatusCode int           `json:"statusCode,omitempty"`
	Latency    time.Duration `json:"latency"`
	Payload    fault.Payload `json:"payload"`
	Err        error         `json:"-"`
}

// Succeeded reports whether the server answered 200.
func (r Result) Succeeded() bool {
	return r.Err == nil && r.StatusCode == http.StatusOK
}

// Line formats the result as a single progress line.
func (r Result) Line() string {
	if r.Err != nil {
		return fmt.Sprintf("Request failed: %v", r.Err)
	}
	return fmt.Sprintf("%s | %d | %s | rate=%.2f | latency=%dms",
		r.Time.Format(lineTimeFormat), r.StatusCode, r.Request.ErrorType,
		r.Request.ErrorRate, r.Latency.Milliseconds())
}

// TypeCounts counts outcomes for one error type.
type TypeCounts struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
}

// Summary aggregates the results of a run.
type Summary struct {
	Total           int                            `json:"total"`
	Successes       int                            `json:"successes"`
	Failures        int                            `json:"failures"`
	TransportErrors int                            `json:"transportErrors"`
	StatusCodes     map[int]int                    `json:"statusCodes"`
	ByType          map[fault.ErrorType]TypeCounts `json:"byType"`
	MinLatency      time.Duration                  `json:"minLatency"`
	MaxLatency      time.Duration                  `json:"maxLatency"`
	MeanLatency     time.Duration                  `json:"meanLatency"`
	Elapsed         time.Duration                  `json:"elapsed"`

	totalLatency time.Duration
	answered     int
}

func newSummary() *Summary {
	return &Summary{
		StatusCodes: make(map[int]int),
		ByType:      make(map[fault.ErrorType]TypeCounts),
	}
}

// add folds one result into the summary. Not safe for concurrent use.
func (s *Summary) add(r Result) {
	s.Total++
	if r.Err != nil {
		// Transport errors count as failures, as the traffic script did.
		s.Failures++
		s.TransportErrors++
		return
	}

	s.StatusCodes[r.StatusCode]++
	tc := s.ByType[r.Request.ErrorType]
	if r.Succeeded() {
		s.Successes++
		tc.Success++
	} else {
		s.Failures++
		tc.Failure++
	}
	s.ByType[r.Request.ErrorType] = tc

	if s.answered == 0 || r.Latency < s.MinLatency {
		s.MinLatency = r.Latency
	}
	if r.Latency > s.MaxLatency {
		s.MaxLatency = r.Latency
	}
	s.answered++
	s.totalLatency += r.Latency
	s.MeanLatency = s.totalLatency / time.Duration(s.answered)
}

// SuccessRatio returns the fraction of requests answered with 200.
func (s *Summary) SuccessRatio() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Total)
}

// WriteText prints a human-readable report.
func (s *Summary) WriteText(w io.Writer) error {
	ew := &errWriter{w: w}
	ew.printf("\nTest completed! Results:\n")
	ew.printf("%s\n", strings.Repeat("-", 40))
	ew.printf("Total Successful Requests: %d\n", s.Successes)
	ew.printf("Total Failed Requests: %d\n", s.Failures)
	if s.TransportErrors > 0 {
		ew.printf("Transport Errors: %d\n", s.TransportErrors)
	}

	ew.printf("\nStatus Code Distribution:\n")
	codes := make([]int, 0, len(s.StatusCodes))
	for code := range s.StatusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		ew.printf("  %d: %d\n", code, s.StatusCodes[code])
	}

	if len(s.ByType) > 0 {
		ew.printf("\nBy Error Type:\n")
		types := make([]string, 0, len(s.ByType))
		for t := range s.ByType {
			types = append(types, string(t))
		}
		sort.Strings(types)
		for _, t := range types {
			tc := s.ByType[fault.ErrorType(t)]
			ew.printf("  %s: success=%d failure=%d\n", t, tc.Success, tc.Failure)
		}
	}

	if s.answered > 0 {
		ew.printf("\nLatency: min=%dms mean=%dms max=%dms\n",
			s.MinLatency.Milliseconds(), s.MeanLatency.Milliseconds(), s.MaxLatency.Milliseconds())
	}
	ew.printf("Elapsed: %s\n", s.Elapsed.Round(time.Millisecond))
	return ew.err
}

// WriteJSON prints the summary as indented JSON.
func (s *Summary) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
