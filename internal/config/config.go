// Package config loads the HCL configuration used by the requests CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/spf13/afero"

	"github.com/hashicorp-forge/requests/pkg/requests"
)

const (
	DefaultCacheBackend = "memory"
	DefaultCacheTTL     = "6h"
	DefaultTimeout      = "30s"
	DefaultLogLevel     = "info"
)

var urlPattern = regexp.MustCompile(`^https?://`)

func init() {
	// Report field names as they are spelled in the configuration file.
	validation.ErrorTag = "hcl"
}

// Config is the root of the configuration file.
type Config struct {
	// LogLevel is one of trace, debug, info, warn, error.
	LogLevel string `hcl:"log_level,optional"`

	Service   *Service   `hcl:"service,block"`
	Auth      *Auth      `hcl:"auth,block"`
	Cache     *Cache     `hcl:"cache,block"`
	Transport *Transport `hcl:"transport,block"`
}

// Service selects the API a request is built against. Exactly one of
// BaseURL or Discovery is set.
type Service struct {
	BaseURL   string                        `hcl:"base_url,optional"`
	Discovery *requests.DiscoveryDescriptor `hcl:"discovery,block"`

	// DiscoveryURL overrides the discovery document URL template.
	DiscoveryURL string `hcl:"discovery_url,optional"`

	// Headers are sent with every request built by the service.
	Headers map[string]string `hcl:"headers,optional"`
}

// Auth configures the token source. At most one of Token, CredentialsFile or
// ApplicationDefault is set; none means requests are unauthenticated.
type Auth struct {
	Token              string   `hcl:"token,optional"`
	CredentialsFile    string   `hcl:"credentials_file,optional"`
	ApplicationDefault bool     `hcl:"application_default,optional"`
	Scopes             []string `hcl:"scopes,optional"`
	Subject            string   `hcl:"subject,optional"`
}

// Cache configures where resolved discovery templates are stored.
type Cache struct {
	Backend    string `hcl:"backend,optional"`
	TTL        string `hcl:"ttl,optional"`
	MemorySize int    `hcl:"memory_size,optional"`

	RedisAddr     string `hcl:"redis_addr,optional"`
	RedisPassword string `hcl:"redis_password,optional"`
	RedisDB       int    `hcl:"redis_db,optional"`

	SQLDriver string `hcl:"sql_driver,optional"`
	SQLDSN    string `hcl:"sql_dsn,optional"`
}

// Transport configures the HTTP client.
type Transport struct {
	Timeout           string  `hcl:"timeout,optional"`
	TLSVerify         *bool   `hcl:"tls_verify,optional"`
	RequestsPerSecond float64 `hcl:"requests_per_second,optional"`
	Burst             int     `hcl:"burst,optional"`
}

// Load reads, decodes and validates the configuration file at path.
func Load(fs afero.Fs, path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("configuration file path is required")
	}

	src, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	var cfg Config
	if err := hclsimple.Decode(path, src, nil, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied and no service
// target. Requests built from it must use explicit URLs.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Service == nil {
		c.Service = &Service{}
	}
	if c.Cache == nil {
		c.Cache = &Cache{}
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = DefaultCacheBackend
	}
	if c.Cache.TTL == "" {
		c.Cache.TTL = DefaultCacheTTL
	}
	if c.Transport == nil {
		c.Transport = &Transport{}
	}
	if c.Transport.Timeout == "" {
		c.Transport.Timeout = DefaultTimeout
	}
}

// Validate checks every block and reports all problems at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if err := validation.Validate(c.LogLevel,
		validation.In("trace", "debug", "info", "warn", "error"),
	); err != nil {
		result = multierror.Append(result, fmt.Errorf("log_level: %w", err))
	}

	if c.Service != nil {
		if err := c.Service.Validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("service: %w", err))
		}
	}
	if c.Auth != nil {
		if err := c.Auth.Validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("auth: %w", err))
		}
	}
	if c.Cache != nil {
		if err := c.Cache.Validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("cache: %w", err))
		}
	}
	if c.Transport != nil {
		if err := c.Transport.Validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("transport: %w", err))
		}
	}

	return result.ErrorOrNil()
}

// Validate checks the service block.
func (s *Service) Validate() error {
	if err := validation.ValidateStruct(s,
		validation.Field(&s.BaseURL,
			validation.When(s.Discovery == nil,
				validation.Required.Error("one of base_url or discovery is required")),
			validation.When(s.Discovery != nil,
				validation.Empty.Error("cannot be combined with discovery")),
			validation.Match(urlPattern).Error("must be an http or https URL"),
		),
		validation.Field(&s.DiscoveryURL,
			validation.Match(urlPattern).Error("must be an http or https URL"),
		),
	); err != nil {
		return err
	}
	if s.Discovery != nil {
		return s.Discovery.Validate()
	}
	return nil
}

// Validate checks the auth block.
func (a *Auth) Validate() error {
	set := 0
	for _, ok := range []bool{a.Token != "", a.CredentialsFile != "", a.ApplicationDefault} {
		if ok {
			set++
		}
	}
	if set > 1 {
		return errors.New("only one of token, credentials_file or application_default may be set")
	}
	return validation.ValidateStruct(a,
		validation.Field(&a.Subject,
			validation.When(a.CredentialsFile == "",
				validation.Empty.Error("requires credentials_file")),
		),
	)
}

// Validate checks the cache block.
func (c *Cache) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In("memory", "redis", "sql")),
		validation.Field(&c.TTL, validation.By(isDuration)),
		validation.Field(&c.MemorySize, validation.Min(0)),
		validation.Field(&c.RedisAddr,
			validation.When(c.Backend == "redis", validation.Required)),
		validation.Field(&c.SQLDriver,
			validation.When(c.Backend == "sql", validation.Required),
			validation.In("postgres", "sqlite")),
		validation.Field(&c.SQLDSN,
			validation.When(c.Backend == "sql", validation.Required)),
	)
}

// TTLDuration returns the parsed TTL.
func (c *Cache) TTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.TTL)
	return d
}

// Validate checks the transport block.
func (t *Transport) Validate() error {
	return validation.ValidateStruct(t,
		validation.Field(&t.Timeout, validation.By(isDuration)),
		validation.Field(&t.RequestsPerSecond, validation.Min(0.0)),
		validation.Field(&t.Burst, validation.Min(0)),
	)
}

// TimeoutDuration returns the parsed timeout.
func (t *Transport) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(t.Timeout)
	return d
}

func isDuration(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := time.ParseDuration(s); err != nil {
		return fmt.Errorf("invalid duration %q", s)
	}
	return nil
}
