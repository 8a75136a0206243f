package requests

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	discovery "google.golang.org/api/discovery/v1"

	"github.com/hashicorp-forge/requests/pkg/requests/cachestore"
)

const (
	// DefaultDiscoveryURL is the discovery endpoint template. It is expanded
	// with the API name and version.
	DefaultDiscoveryURL = "https://www.googleapis.com/discovery/v1/apis/{name}/{version}/rest"

	// MaxDiscoveryTTL is the longest time a resolved endpoint is cached.
	MaxDiscoveryTTL = cachestore.MaxTTL
)

// DiscoveryDescriptor identifies one API operation in a discovery document.
// Resource may be dot-nested, e.g. "spaces.members".
type DiscoveryDescriptor struct {
	Name     string `hcl:"name" mapstructure:"name"`
	Version  string `hcl:"version" mapstructure:"version"`
	Resource string `hcl:"resource" mapstructure:"resource"`
	Method   string `hcl:"method" mapstructure:"method"`
}

// Validate checks every required field and reports all that are missing in
// a single ErrIllegalArgument error.
func (d DiscoveryDescriptor) Validate() error {
	var result *multierror.Error

	if d.Name == "" {
		result = multierror.Append(result, fmt.Errorf("name is required"))
	}
	if d.Version == "" {
		result = multierror.Append(result, fmt.Errorf("version is required"))
	}
	if d.Resource == "" {
		result = multierror.Append(result, fmt.Errorf("resource is required"))
	}
	if d.Method == "" {
		result = multierror.Append(result, fmt.Errorf("method is required"))
	}

	if result != nil {
		result.ErrorFormat = joinErrors
		return &Error{Op: "Discovery", Err: ErrIllegalArgument, Msg: result.Error()}
	}
	return nil
}

// Key returns the cache key for the descriptor.
func (d DiscoveryDescriptor) Key() string {
	return d.Name + d.Version + d.Resource + d.Method
}

func (d DiscoveryDescriptor) String() string {
	return fmt.Sprintf("%s/%s %s.%s", d.Name, d.Version, d.Resource, d.Method)
}

// DiscoveryCacheConfig holds configuration for a DiscoveryCache.
type DiscoveryCacheConfig struct {
	Store        cachestore.Store // default: in-memory store
	Transport    Transport        // default: HTTPTransport
	DiscoveryURL string           // default: DefaultDiscoveryURL
	TTL          time.Duration    // default and maximum: MaxDiscoveryTTL
	Logger       hclog.Logger     // Logger (optional)
	Metrics      *Metrics         // Metrics (optional)
}

// DiscoveryCache resolves discovery descriptors into absolute URL templates,
// caching the result. Concurrent misses on the same key may each fetch the
// discovery document; the resulting writes are identical.
type DiscoveryCache struct {
	store        cachestore.Store
	transport    Transport
	discoveryURL string
	ttl          time.Duration
	logger       hclog.Logger
	metrics      *Metrics
}

// NewDiscoveryCache creates a new discovery cache.
func NewDiscoveryCache(cfg DiscoveryCacheConfig) (*DiscoveryCache, error) {
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	if cfg.Store == nil {
		mem, err := cachestore.NewMemory(cachestore.DefaultMemorySize)
		if err != nil {
			return nil, fmt.Errorf("failed to create memory store: %w", err)
		}
		cfg.Store = mem
	}
	if cfg.Transport == nil {
		cfg.Transport = NewHTTPTransport(HTTPTransportConfig{Logger: cfg.Logger})
	}
	if cfg.DiscoveryURL == "" {
		cfg.DiscoveryURL = DefaultDiscoveryURL
	}
	if cfg.TTL <= 0 || cfg.TTL > MaxDiscoveryTTL {
		cfg.TTL = MaxDiscoveryTTL
	}

	return &DiscoveryCache{
		store:        cfg.Store,
		transport:    cfg.Transport,
		discoveryURL: cfg.DiscoveryURL,
		ttl:          cfg.TTL,
		logger:       cfg.Logger.Named("discovery"),
		metrics:      cfg.Metrics,
	}, nil
}

// sharedStore is the process-wide store used when no store is configured.
var sharedStore = sync.OnceValue(func() cachestore.Store {
	mem, err := cachestore.NewMemory(cachestore.DefaultMemorySize)
	if err != nil { // only errors if size <= 0
		panic(err)
	}
	return mem
})

var (
	defaultDiscoveryOnce  sync.Once
	defaultDiscoveryCache *DiscoveryCache
	defaultDiscoveryErr   error
)

// DefaultDiscoveryCache returns the process-wide discovery cache.
func DefaultDiscoveryCache() (*DiscoveryCache, error) {
	defaultDiscoveryOnce.Do(func() {
		defaultDiscoveryCache, defaultDiscoveryErr = NewDiscoveryCache(DiscoveryCacheConfig{
			Store: sharedStore(),
		})
	})
	return defaultDiscoveryCache, defaultDiscoveryErr
}

// Resolve returns the absolute URL template (baseUrl + method path) for d.
func (c *DiscoveryCache) Resolve(ctx context.Context, d DiscoveryDescriptor) (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}

	key := d.Key()
	cached, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("discovery cache read failed", "key", key, "error", err)
	} else if ok {
		c.logger.Trace("discovery cache hit", "descriptor", d.String())
		c.metrics.observeLookup(true)
		return cached, nil
	}
	c.metrics.observeLookup(false)

	doc, err := c.Document(ctx, d.Name, d.Version)
	if err != nil {
		return "", err
	}

	path, err := methodPath(doc, d.Resource, d.Method)
	if err != nil {
		return "", err
	}
	resolved := doc.BaseUrl + path

	if err := c.store.Put(ctx, key, resolved, c.ttl); err != nil {
		c.logger.Warn("discovery cache write failed", "key", key, "error", err)
	}

	c.logger.Debug("resolved discovery endpoint",
		"descriptor", d.String(),
		"template", resolved)

	return resolved, nil
}

// Document fetches and parses the discovery document for an API.
func (c *DiscoveryCache) Document(ctx context.Context, name, version string) (*discovery.RestDescription, error) {
	svc := New(WithTransport(c.transport), WithLogger(c.logger))

	url, err := Interpolate(c.discoveryURL, map[string]string{
		"name":    name,
		"version": version,
	})
	if err != nil {
		return nil, err
	}

	req, err := svc.Get(Target{URL: url}, RequestOptions{})
	if err != nil {
		return nil, err
	}

	resp, err := req.Send(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch discovery document for %s/%s: %w", name, version, err)
	}
	if !resp.OK() {
		return nil, &TransportError{
			URL:        url,
			Options:    resp.Request(),
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("%w: discovery document returned %d", ErrHTTPStatus, resp.StatusCode()),
		}
	}

	var doc discovery.RestDescription
	if err := resp.Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// methodPath walks doc.resources once per dot-separated segment of resource
// and returns the method's path.
func methodPath(doc *discovery.RestDescription, resource, method string) (string, error) {
	resources := doc.Resources
	var current discovery.RestResource
	for _, segment := range strings.Split(resource, ".") {
		r, ok := resources[segment]
		if !ok {
			return "", newError("Resolve", ErrUnknownResourceOrMethod,
				"resource %q not found in %s", segment, doc.Name)
		}
		current = r
		resources = r.Resources
	}

	m, ok := current.Methods[method]
	if !ok {
		return "", newError("Resolve", ErrUnknownResourceOrMethod,
			"method %q not found on resource %q", method, resource)
	}
	return m.Path, nil
}

func joinErrors(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}
