package requests

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/time/rate"
)

// TransportOptions describes how a materialized request is sent.
type TransportOptions struct {
	URL            string // only set when the URL is embedded
	Method         string
	Headers        map[string]string
	Body           []byte
	ContentType    string
	MuteExceptions bool
}

// RawResponse is what a Transport returns for a completed exchange.
type RawResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Transport executes a single HTTP exchange. Implementations return every
// status as a RawResponse and only connection failures as errors; status
// handling according to opts.MuteExceptions is done by the Request.
type Transport interface {
	Execute(ctx context.Context, url string, opts *TransportOptions) (*RawResponse, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, url string, opts *TransportOptions) (*RawResponse, error)

// Execute calls f.
func (f TransportFunc) Execute(ctx context.Context, url string, opts *TransportOptions) (*RawResponse, error) {
	return f(ctx, url, opts)
}

// HTTPTransportConfig holds configuration for HTTPTransport.
type HTTPTransportConfig struct {
	Timeout           time.Duration // HTTP timeout (default: 30s)
	TLSVerify         *bool         // default: true
	RequestsPerSecond float64       // client-side limit, 0 disables
	Burst             int           // limiter burst (default: 1)
	Client            *http.Client  // overrides Timeout and TLSVerify when set
	Logger            hclog.Logger  // Logger (optional)
}

// HTTPTransport is a Transport backed by net/http.
type HTTPTransport struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  hclog.Logger
}

var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTP transport.
func NewHTTPTransport(cfg HTTPTransportConfig) *HTTPTransport {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}

	client := cfg.Client
	if client == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if cfg.TLSVerify != nil && !*cfg.TLSVerify {
			transport.TLSClientConfig = &tls.Config{
				InsecureSkipVerify: true,
			}
		}
		client = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		}
	}

	t := &HTTPTransport{
		client: client,
		logger: cfg.Logger.Named("transport"),
	}

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return t
}

// Execute implements Transport.
func (t *HTTPTransport) Execute(ctx context.Context, url string, opts *TransportOptions) (*RawResponse, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	var body io.Reader
	if len(opts.Body) > 0 {
		body = bytes.NewReader(opts.Body)
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if opts.ContentType != "" {
		req.Header.Set("Content-Type", opts.ContentType)
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	t.logger.Trace("http exchange",
		"method", opts.Method,
		"url", url,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	return &RawResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
	}, nil
}
