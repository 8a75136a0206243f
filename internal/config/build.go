package config

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"github.com/hashicorp-forge/requests/pkg/requests"
	"github.com/hashicorp-forge/requests/pkg/requests/cachestore"
)

// Runtime holds the components built from a Config.
type Runtime struct {
	Store       cachestore.Store
	Transport   requests.Transport
	TokenSource requests.TokenSource
	Discovery   *requests.DiscoveryCache

	cfg     *Config
	logger  hclog.Logger
	metrics *requests.Metrics
	closers []func() error
}

// BuildOptions holds the collaborators passed to Build.
type BuildOptions struct {
	Fs      afero.Fs          // default: OS filesystem
	Logger  hclog.Logger      // Logger (optional)
	Metrics *requests.Metrics // Metrics (optional)
}

// Build creates the cache store, transport, token source and discovery cache
// described by c. The returned Runtime must be closed.
func (c *Config) Build(ctx context.Context, opts BuildOptions) (*Runtime, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}

	rt := &Runtime{
		cfg:     c,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}

	rt.Transport = requests.NewHTTPTransport(requests.HTTPTransportConfig{
		Timeout:           c.Transport.TimeoutDuration(),
		TLSVerify:         c.Transport.TLSVerify,
		RequestsPerSecond: c.Transport.RequestsPerSecond,
		Burst:             c.Transport.Burst,
		Logger:            opts.Logger,
	})

	store, err := rt.buildStore()
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("error building cache store: %w", err)
	}
	rt.Store = store

	if c.Auth != nil {
		ts, err := buildTokenSource(ctx, opts.Fs, c.Auth)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("error building token source: %w", err)
		}
		rt.TokenSource = ts
	}

	rt.Discovery, err = requests.NewDiscoveryCache(requests.DiscoveryCacheConfig{
		Store:        rt.Store,
		Transport:    rt.Transport,
		DiscoveryURL: c.Service.DiscoveryURL,
		TTL:          c.Cache.TTLDuration(),
		Logger:       opts.Logger,
		Metrics:      opts.Metrics,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}

	return rt, nil
}

func (rt *Runtime) buildStore() (cachestore.Store, error) {
	cc := rt.cfg.Cache
	switch cc.Backend {
	case "redis":
		r, err := cachestore.NewRedis(cachestore.RedisConfig{
			Addr:     cc.RedisAddr,
			Password: cc.RedisPassword,
			DB:       cc.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, r.Close)
		return r, nil

	case "sql":
		db, err := cachestore.OpenSQL(cc.SQLDriver, cc.SQLDSN)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, sqlDB.Close)
		return cachestore.NewSQL(db)

	default:
		return cachestore.NewMemory(cc.MemorySize)
	}
}

func buildTokenSource(ctx context.Context, fs afero.Fs, a *Auth) (requests.TokenSource, error) {
	switch {
	case a.Token != "":
		return requests.StaticTokenSource(a.Token), nil

	case a.CredentialsFile != "":
		data, err := afero.ReadFile(fs, a.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		return requests.ServiceAccountFromJSON(ctx, data, a.Subject, a.Scopes...)

	case a.ApplicationDefault:
		return requests.DefaultTokenSource(ctx, a.Scopes...)
	}
	return nil, nil
}

// Service creates the service configured in the service block.
func (rt *Runtime) Service(ctx context.Context) (*requests.Service, error) {
	opts := []requests.Option{
		requests.WithTransport(rt.Transport),
		requests.WithDiscoveryCache(rt.Discovery),
		requests.WithStickyHeaders(rt.cfg.Service.Headers),
		requests.WithLogger(rt.logger),
		requests.WithMetrics(rt.metrics),
	}
	if rt.TokenSource != nil {
		opts = append(opts, requests.WithTokenSource(rt.TokenSource))
	}

	if d := rt.cfg.Service.Discovery; d != nil {
		return requests.NewFromDiscovery(ctx, *d, opts...)
	}
	return requests.NewWithBaseURL(rt.cfg.Service.BaseURL, opts...), nil
}

// Close releases connections held by the cache store.
func (rt *Runtime) Close() error {
	var result *multierror.Error
	for _, closeFn := range rt.closers {
		if err := closeFn(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	rt.closers = nil
	return result.ErrorOrNil()
}
