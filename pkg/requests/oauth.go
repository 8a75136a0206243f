package requests

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
)

// GoogleTokenURL is the token endpoint used for signing-key service accounts.
const GoogleTokenURL = "https://accounts.google.com/o/oauth2/token"

// TokenSource supplies the bearer token of a request. It is consulted every
// time a request is materialized and must be safe for concurrent use.
type TokenSource interface {
	AccessToken() (string, error)
}

// AccessChecker is a token source that can report whether it currently has
// access. A source without access is never asked for a token.
type AccessChecker interface {
	TokenSource
	HasAccess() bool
}

// StaticToken exposes a plain token value. FromStaticToken adapts it to a
// TokenSource.
type StaticToken interface {
	Token() string
}

// TokenSourceFunc adapts a function to the TokenSource interface.
type TokenSourceFunc func() (string, error)

// AccessToken calls f.
func (f TokenSourceFunc) AccessToken() (string, error) {
	return f()
}

// FromStaticToken adapts a StaticToken.
func FromStaticToken(st StaticToken) TokenSource {
	return TokenSourceFunc(func() (string, error) {
		return st.Token(), nil
	})
}

// tokenFrom obtains a token from src, asking it exactly once.
func tokenFrom(src TokenSource) (string, error) {
	if ac, ok := src.(AccessChecker); ok && !ac.HasAccess() {
		return "", errors.New("token source has no access")
	}
	return src.AccessToken()
}

// StaticTokenSource always returns the same token.
type StaticTokenSource string

// AccessToken implements TokenSource.
func (s StaticTokenSource) AccessToken() (string, error) {
	return string(s), nil
}

// Token implements StaticToken.
func (s StaticTokenSource) Token() string {
	return string(s)
}

// OAuth2TokenSource adapts an oauth2.TokenSource. Token caching and refresh
// are left to the wrapped source.
type OAuth2TokenSource struct {
	Source oauth2.TokenSource
}

var _ TokenSource = (*OAuth2TokenSource)(nil)

// AccessToken returns the current access token. Refresh failures and
// invalid tokens are returned as errors.
func (s *OAuth2TokenSource) AccessToken() (string, error) {
	if s == nil || s.Source == nil {
		return "", errors.New("no oauth2 token source configured")
	}
	tok, err := s.Source.Token()
	if err != nil {
		return "", fmt.Errorf("failed to get access token: %w", err)
	}
	if !tok.Valid() {
		return "", errors.New("access token is invalid or expired")
	}
	return tok.AccessToken, nil
}

// ServiceAccountConfig holds a signing-key based service account setup.
type ServiceAccountConfig struct {
	Email      string   // Issuer email
	PrivateKey []byte   // PEM encoded private key
	Scopes     []string // OAuth scopes
	Subject    string   // Optional user to impersonate (domain-wide delegation)
	TokenURL   string   // default: GoogleTokenURL
}

// OAuthService builds a token source for a signing-key based service account.
// Token acquisition and refresh are delegated entirely to golang.org/x/oauth2.
func OAuthService(ctx context.Context, cfg ServiceAccountConfig) (*OAuth2TokenSource, error) {
	if cfg.Email == "" || len(cfg.PrivateKey) == 0 {
		return nil, newError("OAuthService", ErrIllegalArgument,
			"email and private key are required")
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = GoogleTokenURL
	}

	jwtCfg := &jwt.Config{
		Email:      cfg.Email,
		PrivateKey: cfg.PrivateKey,
		Scopes:     cfg.Scopes,
		Subject:    cfg.Subject,
		TokenURL:   cfg.TokenURL,
	}

	return &OAuth2TokenSource{
		Source: oauth2.ReuseTokenSource(nil, jwtCfg.TokenSource(ctx)),
	}, nil
}

// ServiceAccountFromJSON builds a token source from a service account key
// file's contents.
func ServiceAccountFromJSON(ctx context.Context, data []byte, subject string, scopes ...string) (*OAuth2TokenSource, error) {
	jwtCfg, err := google.JWTConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, newError("ServiceAccountFromJSON", ErrIllegalArgument,
			"invalid service account key: %v", err)
	}
	jwtCfg.Subject = subject

	return &OAuth2TokenSource{
		Source: oauth2.ReuseTokenSource(nil, jwtCfg.TokenSource(ctx)),
	}, nil
}

// DefaultScopes are requested when Application Default Credentials are used
// implicitly by a discovery service.
var DefaultScopes = []string{"https://www.googleapis.com/auth/cloud-platform"}

// findDefaultCredentials locates Application Default Credentials. Tests
// replace it.
var findDefaultCredentials = func(ctx context.Context, scopes ...string) (oauth2.TokenSource, error) {
	return google.DefaultTokenSource(ctx, scopes...)
}

// DefaultTokenSource returns the Application Default Credentials of the
// running identity.
func DefaultTokenSource(ctx context.Context, scopes ...string) (*OAuth2TokenSource, error) {
	ts, err := findDefaultCredentials(ctx, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to find default credentials: %w", err)
	}
	return &OAuth2TokenSource{Source: ts}, nil
}

// defaultCredentials looks up Application Default Credentials on first use.
// The lookup result, including a failure, is kept for the lifetime of the
// source.
type defaultCredentials struct {
	scopes []string

	once   sync.Once
	source *OAuth2TokenSource
	err    error
}

func newDefaultCredentials(scopes []string) *defaultCredentials {
	return &defaultCredentials{scopes: scopes}
}

// AccessToken implements TokenSource.
func (d *defaultCredentials) AccessToken() (string, error) {
	d.once.Do(func() {
		d.source, d.err = DefaultTokenSource(context.Background(), d.scopes...)
	})
	if d.err != nil {
		return "", d.err
	}
	return d.source.AccessToken()
}
