package requests

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/araddon/dateparse"
)

const (
	// RateLimitResetHeader carries the instant at which the rate limit resets,
	// formatted "YYYY-MM-DD HH:MM:SS UTC".
	RateLimitResetHeader = "x-ratelimit-reset"

	// RateLimitSafetyMargin is added to every computed rate-limit wait.
	RateLimitSafetyMargin = 10 * time.Millisecond

	rateLimitResetLayout = "2006-01-02 15:04:05 MST"
)

// now is replaced in tests.
var now = time.Now

// Response wraps a completed HTTP exchange.
type Response struct {
	raw     *RawResponse
	url     string
	request *TransportOptions

	jsonOnce sync.Once
	jsonVal  any
	jsonErr  error
}

// NewResponse wraps a raw response together with the request that produced it.
func NewResponse(raw *RawResponse, url string, request *TransportOptions) *Response {
	if raw == nil {
		raw = &RawResponse{}
	}
	if raw.Headers == nil {
		raw.Headers = http.Header{}
	}
	return &Response{raw: raw, url: url, request: request}
}

// Text returns the raw response body.
func (r *Response) Text() string {
	return string(r.raw.Body)
}

// JSON parses the body once and returns the result. A body that is not valid
// JSON yields a *ParseError carrying the raw text.
func (r *Response) JSON() (any, error) {
	r.jsonOnce.Do(func() {
		var v any
		if err := json.Unmarshal(r.raw.Body, &v); err != nil {
			r.jsonErr = &ParseError{Body: r.Text(), Err: err}
			return
		}
		r.jsonVal = v
	})
	return r.jsonVal, r.jsonErr
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.raw.Body, v); err != nil {
		return &ParseError{Body: r.Text(), Err: err}
	}
	return nil
}

// StatusCode returns the HTTP status code.
func (r *Response) StatusCode() int {
	return r.raw.StatusCode
}

// OK reports whether the status is exactly 200.
func (r *Response) OK() bool {
	return r.raw.StatusCode == http.StatusOK
}

// Headers returns the response headers.
func (r *Response) Headers() http.Header {
	return r.raw.Headers
}

// URL returns the URL the request was sent to.
func (r *Response) URL() string {
	return r.url
}

// Request returns the options the request was sent with.
func (r *Response) Request() *TransportOptions {
	return r.request
}

// IsRateLimited reports whether the response is a 429. It never blocks; use
// ClassifyRateLimit and WaitFor to honor the reset time.
func (r *Response) IsRateLimited() bool {
	_, limited := ClassifyRateLimit(r)
	return limited
}

// ClassifyRateLimit reports whether resp signals a rate limit and how long to
// wait before trying again. The wait is derived from the x-ratelimit-reset
// header (or Retry-After) plus RateLimitSafetyMargin, and is zero when the
// reset instant has passed or cannot be parsed.
func ClassifyRateLimit(resp *Response) (time.Duration, bool) {
	if resp == nil || resp.StatusCode() != http.StatusTooManyRequests {
		return 0, false
	}

	if reset, ok := parseRateLimitReset(resp.Headers().Get(RateLimitResetHeader)); ok {
		wait := reset.Sub(now()) + RateLimitSafetyMargin
		if wait < 0 {
			wait = 0
		}
		return wait, true
	}

	if v := resp.Headers().Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs >= 0 {
			return time.Duration(secs)*time.Second + RateLimitSafetyMargin, true
		}
	}

	return 0, true
}

// WaitFor blocks for d, returning early with the context error if ctx is done.
func WaitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRateLimitReset(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(rateLimitResetLayout, v); err == nil {
		return t, true
	}
	if t, err := dateparse.ParseIn(v, time.UTC); err == nil {
		return t, true
	}
	return time.Time{}, false
}
