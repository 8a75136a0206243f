package requests

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/mapstructure"
)

// Target selects the URL of a request: either an explicit URL, or
// interpolation values for the service's base URL template.
type Target struct {
	URL  string
	Vars map[string]string
}

// RequestOptions carries the optional parts of a request.
type RequestOptions struct {
	Params    *Params
	Body      map[string]any
	Headers   map[string]string
	Extension Extension
}

// Service is a client bound to a base URL template and an optional token
// source. It produces Requests through its verb methods.
type Service struct {
	baseURL       string
	tokenSource   TokenSource
	transport     Transport
	discovery     *DiscoveryCache
	mu            sync.RWMutex // guards stickyHeaders
	stickyHeaders map[string]string
	scopes        []string
	logger        hclog.Logger
	metrics       *Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithTokenSource sets the token source used for bearer authorization.
func WithTokenSource(ts TokenSource) Option {
	return func(s *Service) {
		s.tokenSource = ts
	}
}

// WithTransport sets the transport requests are sent through.
func WithTransport(t Transport) Option {
	return func(s *Service) {
		s.transport = t
	}
}

// WithDiscoveryCache sets the cache used to resolve discovery descriptors.
func WithDiscoveryCache(c *DiscoveryCache) Option {
	return func(s *Service) {
		s.discovery = c
	}
}

// WithStickyHeaders sets headers merged into every request.
func WithStickyHeaders(h map[string]string) Option {
	return func(s *Service) {
		mergeHeaders(s.stickyHeaders, h)
	}
}

// WithScopes sets the scopes requested when a discovery service falls back
// to Application Default Credentials. Default: DefaultScopes.
func WithScopes(scopes ...string) Option {
	return func(s *Service) {
		s.scopes = scopes
	}
}

// WithLogger sets the logger.
func WithLogger(l hclog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New creates a service with no base URL. Requests must then use explicit
// URLs.
func New(opts ...Option) *Service {
	s := &Service{
		stickyHeaders: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = hclog.NewNullLogger()
	}
	if s.transport == nil {
		s.transport = NewHTTPTransport(HTTPTransportConfig{Logger: s.logger})
	}
	return s
}

// NewWithBaseURL creates a service bound to baseURL. Discovery-style
// placeholders in baseURL are normalized with ToTemplate.
func NewWithBaseURL(baseURL string, opts ...Option) *Service {
	s := New(opts...)
	s.baseURL = ToTemplate(baseURL)
	return s
}

// NewFromDiscovery creates a service bound to the endpoint described by d.
// The endpoint is resolved eagerly. Without WithTokenSource the service
// authorizes as the running identity through Application Default
// Credentials, looked up on the first send.
func NewFromDiscovery(ctx context.Context, d DiscoveryDescriptor, opts ...Option) (*Service, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	s := New(opts...)
	if s.tokenSource == nil {
		scopes := s.scopes
		if len(scopes) == 0 {
			scopes = DefaultScopes
		}
		s.tokenSource = newDefaultCredentials(scopes)
	}
	if s.discovery == nil {
		dc, err := NewDiscoveryCache(DiscoveryCacheConfig{
			Store:     sharedStore(),
			Transport: s.transport,
			Logger:    s.logger,
			Metrics:   s.metrics,
		})
		if err != nil {
			return nil, err
		}
		s.discovery = dc
	}

	resolved, err := s.discovery.Resolve(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", d, err)
	}
	s.baseURL = ToTemplate(resolved)

	s.logger.Debug("service bound to discovery endpoint",
		"descriptor", d.String(),
		"base_url", s.baseURL)

	return s, nil
}

// BaseURL returns the base URL template.
func (s *Service) BaseURL() string {
	return s.baseURL
}

// SetStickyHeader sets a header merged into every subsequent request.
func (s *Service) SetStickyHeader(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stickyHeaders[http.CanonicalHeaderKey(key)] = value
}

// CreateRequest builds a request for method. With interpolation values the
// URL comes from the base template and an explicit URL is not allowed;
// otherwise the explicit URL or the base URL is used as is. Call headers
// override sticky headers.
func (s *Service) CreateRequest(method string, target Target, opts RequestOptions) (*Request, error) {
	var url string
	switch {
	case len(target.Vars) > 0:
		if target.URL != "" {
			return nil, newError("CreateRequest", ErrIllegalArgument,
				"expecting no url parameter for interpolation")
		}
		if s.baseURL == "" {
			return nil, newError("CreateRequest", ErrIllegalArgument,
				"expecting base url for interpolation")
		}
		expanded, err := Interpolate(s.baseURL, target.Vars)
		if err != nil {
			return nil, err
		}
		url = expanded
	case target.URL != "":
		url = target.URL
	case s.baseURL != "":
		url = s.baseURL
	default:
		return nil, newError("CreateRequest", ErrIllegalArgument,
			"no url and no base url")
	}

	s.mu.RLock()
	headers := make(map[string]string, len(s.stickyHeaders)+len(opts.Headers))
	maps.Copy(headers, s.stickyHeaders)
	s.mu.RUnlock()
	mergeHeaders(headers, opts.Headers)

	params := opts.Params
	if params == nil {
		params = NewParams()
	}

	return &Request{
		ID:             newRequestID(),
		url:            url,
		method:         strings.ToUpper(method),
		headers:        headers,
		body:           opts.Body,
		params:         params,
		muteExceptions: true,
		tokenSource:    s.tokenSource,
		transport:      s.transport,
		extension:      opts.Extension,
		logger:         s.logger.Named("request"),
		metrics:        s.metrics,
	}, nil
}

// Get creates a GET request.
func (s *Service) Get(target Target, opts RequestOptions) (*Request, error) {
	return s.CreateRequest(http.MethodGet, target, opts)
}

// Post creates a POST request.
func (s *Service) Post(target Target, opts RequestOptions) (*Request, error) {
	return s.CreateRequest(http.MethodPost, target, opts)
}

// Put creates a PUT request.
func (s *Service) Put(target Target, opts RequestOptions) (*Request, error) {
	return s.CreateRequest(http.MethodPut, target, opts)
}

// Patch creates a PATCH request.
func (s *Service) Patch(target Target, opts RequestOptions) (*Request, error) {
	return s.CreateRequest(http.MethodPatch, target, opts)
}

// Delete creates a DELETE request.
func (s *Service) Delete(target Target, opts RequestOptions) (*Request, error) {
	return s.CreateRequest(http.MethodDelete, target, opts)
}

// mergeHeaders copies src into dst under canonical header names, so that
// differently cased spellings of a header replace each other.
func mergeHeaders(dst, src map[string]string) {
	for k, v := range src {
		dst[http.CanonicalHeaderKey(k)] = v
	}
}

// VarsFrom converts a struct (honoring `mapstructure` tags) or a map into
// interpolation values. Non-string values are formatted with fmt.
func VarsFrom(v any) (map[string]string, error) {
	if v == nil {
		return nil, nil
	}

	var raw map[string]any
	if err := mapstructure.Decode(v, &raw); err != nil {
		return nil, newError("VarsFrom", ErrIllegalArgument, "%v", err)
	}

	vars := make(map[string]string, len(raw))
	for k, val := range raw {
		switch tv := val.(type) {
		case nil:
			continue
		case string:
			vars[k] = tv
		default:
			vars[k] = fmt.Sprint(tv)
		}
	}
	return vars, nil
}
