package requests

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

// Extension is a collaborator attached to a request. Extend runs at the start
// of every send and may adjust the request (headers, params, fields) before
// it is materialized.
type Extension interface {
	Extend(ctx context.Context, r *Request) error
}

// ExtensionFunc adapts a function to the Extension interface.
type ExtensionFunc func(ctx context.Context, r *Request) error

// Extend calls f.
func (f ExtensionFunc) Extend(ctx context.Context, r *Request) error {
	return f(ctx, r)
}

// Request is a request description that is mutable until sent. It is owned
// by the caller that created it and is not safe for concurrent use.
type Request struct {
	// ID identifies the request in logs.
	ID string

	url            string
	method         string
	headers        map[string]string
	body           map[string]any
	params         *Params
	fields         []string
	muteExceptions bool

	tokenSource TokenSource
	transport   Transport
	extension   Extension
	logger      hclog.Logger
	metrics     *Metrics
}

// URL returns the target URL without the query string.
func (r *Request) URL() string {
	return r.url
}

// Method returns the HTTP method.
func (r *Request) Method() string {
	return r.method
}

// Params returns the query parameters. Modifications are reflected in the
// next materialization.
func (r *Request) Params() *Params {
	return r.params
}

// Headers returns a copy of the request headers.
func (r *Request) Headers() map[string]string {
	return maps.Clone(r.headers)
}

// SetHeader sets a header, replacing any existing value under the same
// canonical name.
func (r *Request) SetHeader(key, value string) *Request {
	r.headers[http.CanonicalHeaderKey(key)] = value
	return r
}

// SetBody replaces the request body.
func (r *Request) SetBody(body map[string]any) *Request {
	r.body = body
	return r
}

// SetMuteExceptions controls whether non-2xx statuses are returned as
// responses (true, the default) or as errors.
func (r *Request) SetMuteExceptions(mute bool) *Request {
	r.muteExceptions = mute
	return r
}

// AddField appends a name to the fields projection.
func (r *Request) AddField(name string) *Request {
	r.fields = append(r.fields, name)
	return r
}

// ClearFields empties the fields projection.
func (r *Request) ClearFields() *Request {
	r.fields = nil
	return r
}

// Fields returns the fields projection in order.
func (r *Request) Fields() []string {
	return append([]string(nil), r.fields...)
}

// Materialize renders the final URL and transport options. When any fields
// are projected, a comma-joined "fields" parameter overrides a same-named
// param. When a token source is set, an Authorization bearer header is added,
// replacing any existing one.
func (r *Request) Materialize(embedURL, muteExceptions bool) (string, *TransportOptions, error) {
	params := r.params.Clone()
	if len(r.fields) > 0 {
		params.Set("fields", strings.Join(r.fields, ","))
	}

	url := r.url
	if q := EncodeQuery(params); q != "" {
		if strings.Contains(url, "?") {
			q = "&" + q[1:]
		}
		url += q
	}

	if r.tokenSource != nil {
		token, err := tokenFrom(r.tokenSource)
		if err != nil {
			return "", nil, newError("Materialize", ErrUnauthorized, "%v", err)
		}
		if token == "" {
			return "", nil, newError("Materialize", ErrUnauthorized, "token source returned an empty token")
		}
		r.headers["Authorization"] = "Bearer " + token
	}

	opts := &TransportOptions{
		Method:         r.method,
		Headers:        maps.Clone(r.headers),
		MuteExceptions: muteExceptions,
	}
	if embedURL {
		opts.URL = url
	}
	if len(r.body) > 0 {
		body, err := json.Marshal(r.body)
		if err != nil {
			return "", nil, newError("Materialize", ErrIllegalArgument,
				"failed to marshal request body: %v", err)
		}
		opts.Body = body
		opts.ContentType = "application/json"
	}

	return url, opts, nil
}

// Send executes the request once.
func (r *Request) Send(ctx context.Context) (*Response, error) {
	resp, err := r.send(ctx)
	if err != nil {
		return nil, err
	}
	return r.checkStatus(resp)
}

// SendWithRetry sends the request and, if the response is rate limited,
// waits until the limit resets and sends exactly once more. The second
// response is returned whatever its status; with exceptions unmuted a final
// non-2xx status is still an error.
func (r *Request) SendWithRetry(ctx context.Context) (*Response, error) {
	resp, err := r.send(ctx)
	if err != nil {
		return nil, err
	}

	wait, limited := ClassifyRateLimit(resp)
	if !limited {
		return r.checkStatus(resp)
	}
	r.metrics.observeRateLimit()

	r.logger.Warn("rate limited, retrying after reset",
		"id", r.ID,
		"url", resp.URL(),
		"wait", wait)

	if err := WaitFor(ctx, wait); err != nil {
		return nil, fmt.Errorf("waiting for rate limit reset: %w", err)
	}

	return r.Send(ctx)
}

// send runs the extension and the transport. Every status is returned as a
// response.
func (r *Request) send(ctx context.Context) (*Response, error) {
	if r.extension != nil {
		if err := r.extension.Extend(ctx, r); err != nil {
			return nil, fmt.Errorf("request extension failed: %w", err)
		}
	}

	url, opts, err := r.Materialize(false, r.muteExceptions)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("sending request", "id", r.ID, "method", opts.Method, "url", url)

	raw, err := r.transport.Execute(ctx, url, opts)
	if err != nil {
		r.metrics.observeRequest(opts.Method, 0)
		return nil, &TransportError{URL: url, Options: opts, Err: err}
	}
	r.metrics.observeRequest(opts.Method, raw.StatusCode)

	return NewResponse(raw, url, opts), nil
}

// checkStatus turns a non-2xx response into a TransportError unless
// exceptions are muted.
func (r *Request) checkStatus(resp *Response) (*Response, error) {
	status := resp.StatusCode()
	if r.muteExceptions || (status >= 200 && status < 300) {
		return resp, nil
	}
	return nil, &TransportError{
		URL:        resp.URL(),
		Options:    resp.Request(),
		StatusCode: status,
		Err:        fmt.Errorf("%w: %s", ErrHTTPStatus, truncate(resp.Text(), 512)),
	}
}

// Resolve sends the request and returns the parsed JSON body.
func (r *Request) Resolve(ctx context.Context) (any, error) {
	resp, err := r.Send(ctx)
	if err != nil {
		return nil, err
	}
	return resp.JSON()
}

func newRequestID() string {
	return uuid.NewString()
}
