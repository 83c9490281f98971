package fault

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Query parameter names.
const (
	ParamErrorType = "errorType"
	ParamErrorRate = "errorRate"
	ParamLatencyMs = "latencyMs"
)

// Defaults applied when a parameter is absent.
const (
	DefaultErrorType = string(ErrorTypeInternal)
	DefaultErrorRate = "1.0"
	DefaultLatencyMs = "0"
)

// maxLatencyMs keeps LatencyMs * time.Millisecond inside time.Duration.
const maxLatencyMs = int64(math.MaxInt64 / int64(time.Millisecond))

var (
	floatPrefix = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)
	intPrefix   = regexp.MustCompile(`^[+-]?\d+`)
)

// Params holds normalized request parameters.
type Params struct {
	// ErrorType is the raw requested type, echoed verbatim in the response.
	ErrorType string
	// ErrorRate is the failure probability, always within [0, 1].
	ErrorRate float64
	// LatencyMs is the delay to inject, never negative.
	LatencyMs int64
}

// Type returns the requested error type without normalization.
func (p Params) Type() ErrorType {
	return ErrorType(p.ErrorType)
}

// Latency returns LatencyMs as a duration.
func (p Params) Latency() time.Duration {
	return time.Duration(p.LatencyMs) * time.Millisecond
}

// NewParams normalizes raw parameter strings. It never fails: a rate that is
// not a number becomes 0, a latency that is not a number becomes 0, and both
// are clamped into range.
func NewParams(errorType, errorRate, latencyMs string) Params {
	return Params{
		ErrorType: errorType,
		ErrorRate: ClampRate(parseRate(errorRate)),
		LatencyMs: parseLatencyMs(latencyMs),
	}
}

// ParseParams reads parameters from a query string, applying defaults for
// absent keys. A key that is present but empty is kept as given.
func ParseParams(q url.Values) Params {
	return NewParams(
		valueOrDefault(q, ParamErrorType, DefaultErrorType),
		valueOrDefault(q, ParamErrorRate, DefaultErrorRate),
		valueOrDefault(q, ParamLatencyMs, DefaultLatencyMs),
	)
}

// ClampRate constrains rate to [0, 1]. NaN maps to 0.
func ClampRate(rate float64) float64 {
	switch {
	case math.IsNaN(rate):
		return 0
	case rate < 0:
		return 0
	case rate > 1:
		return 1
	default:
		return rate
	}
}

func valueOrDefault(q url.Values, key, def string) string {
	if !q.Has(key) {
		return def
	}
	return q.Get(key)
}

// parseRate reads the leading decimal number of s, so "0.5x" is 0.5.
// Returns NaN when s has no numeric prefix.
func parseRate(s string) float64 {
	s = strings.TrimSpace(s)
	if v, ok := parseInfinity(s); ok {
		return v
	}
	m := floatPrefix.FindString(s)
	if m == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		// Out of range values come back as ±Inf with a range error.
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return v
		}
		return math.NaN()
	}
	return v
}

func parseInfinity(s string) (float64, bool) {
	switch {
	case strings.HasPrefix(s, "Infinity"), strings.HasPrefix(s, "+Infinity"):
		return math.Inf(1), true
	case strings.HasPrefix(s, "-Infinity"):
		return math.Inf(-1), true
	}
	return 0, false
}

// parseLatencyMs reads the leading integer of s, so "250ms" is 250.
// Missing, negative and unparseable values are 0.
func parseLatencyMs(s string) int64 {
	m := intPrefix.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0
	}
	v, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		if strings.HasPrefix(m, "-") {
			return 0
		}
		return maxLatencyMs
	}
	if v < 0 {
		return 0
	}
	return min(v, maxLatencyMs)
}
