// Package oauth2 fetches and caches OAuth2 access tokens and attaches them
// to outgoing calls.
package oauth2

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/hitfetch/packages/http"
)

// GrantType represents the OAuth2 grant type
type GrantType string

const (
	// ClientCredentials is the client_credentials grant type
	ClientCredentials GrantType = "client_credentials"
	// Password is the password (resource owner) grant type
	Password GrantType = "password"
	// RefreshToken is the refresh_token grant type
	RefreshToken GrantType = "refresh_token"
)

// Config holds OAuth2 configuration
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Username     string // For password grant
	Password     string // For password grant
	GrantType    GrantType
}

// Validate checks that the fields required by the grant type are set.
func (c *Config) Validate() error {
	if c.TokenURL == "" {
		return errors.New("oauth2: token url is required")
	}
	if c.ClientID == "" {
		return errors.New("oauth2: client id is required")
	}
	switch c.GrantType {
	case "", ClientCredentials:
	case Password:
		if c.Username == "" {
			return errors.New("oauth2: password grant requires a username")
		}
	default:
		return fmt.Errorf("oauth2: unsupported grant type %q", c.GrantType)
	}
	return nil
}

// Token represents an OAuth2 access token
type Token struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresAt    time.Time `json:"-"`
}

// IsExpired checks if the token is expired, allowing 30s of clock skew.
func (t *Token) IsExpired() bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(30 * time.Second).After(t.ExpiresAt)
}

// TokenError is the error body an authorization server returns.
type TokenError struct {
	Status      int
	Code        string
	Description string
}

func (e *TokenError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("token request failed with status %d", e.Status)
	}
	return fmt.Sprintf("token request failed: %s - %s", e.Code, e.Description)
}

// Provider acquires tokens through a hitfetch client. Concurrent callers
// share one in-flight fetch.
type Provider struct {
	config *Config
	client *http.Client
	cache  *TokenCache

	mu sync.Mutex
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithClient sets the client used to reach the token endpoint.
func WithClient(c *http.Client) ProviderOption {
	return func(p *Provider) {
		p.client = c
	}
}

// WithCache shares a token cache between providers.
func WithCache(c *TokenCache) ProviderOption {
	return func(p *Provider) {
		p.cache = c
	}
}

// NewProvider creates a new OAuth2 provider
func NewProvider(config *Config, opts ...ProviderOption) *Provider {
	p := &Provider{config: config}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = http.NewClient(http.WithTimeout(30 * time.Second))
	}
	if p.cache == nil {
		p.cache = NewTokenCache()
	}
	return p
}

// GetToken returns a cached token while it is valid, refreshes it when the
// server issued a refresh token, and fetches a new one otherwise.
func (p *Provider) GetToken(ctx context.Context) (*Token, error) {
	key := p.cacheKey()
	if token := p.cache.Get(key); token != nil && !token.IsExpired() {
		return token, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// another caller may have fetched while we waited
	cached := p.cache.Get(key)
	if cached != nil && !cached.IsExpired() {
		return cached, nil
	}

	var (
		token *Token
		err   error
	)
	if cached != nil && cached.RefreshToken != "" {
		token, err = p.RefreshAccessToken(ctx, cached.RefreshToken)
	}
	if token == nil {
		token, err = p.fetchToken(ctx)
	}
	if err != nil {
		return nil, err
	}

	p.cache.Set(key, token)
	return token, nil
}

// Invalidate drops the cached token so the next call fetches a new one.
func (p *Provider) Invalidate() {
	p.cache.Delete(p.cacheKey())
}

func (p *Provider) cacheKey() string {
	return fmt.Sprintf("%s:%s:%s", p.config.TokenURL, p.config.ClientID, strings.Join(p.config.Scopes, ","))
}

func (p *Provider) fetchToken(ctx context.Context) (*Token, error) {
	data := url.Values{}
	switch p.config.GrantType {
	case Password:
		data.Set("grant_type", string(Password))
		data.Set("username", p.config.Username)
		data.Set("password", p.config.Password)
	default:
		data.Set("grant_type", string(ClientCredentials))
	}
	if len(p.config.Scopes) > 0 {
		data.Set("scope", strings.Join(p.config.Scopes, " "))
	}

	return p.doTokenRequest(ctx, data)
}

// RefreshAccessToken exchanges a refresh token for a new access token
func (p *Provider) RefreshAccessToken(ctx context.Context, refreshToken string) (*Token, error) {
	data := url.Values{}
	data.Set("grant_type", string(RefreshToken))
	data.Set("refresh_token", refreshToken)

	return p.doTokenRequest(ctx, data)
}

func (p *Provider) doTokenRequest(ctx context.Context, data url.Values) (*Token, error) {
	opts := []http.RequestOption{http.CallHeader("Accept", "application/json")}
	if p.config.ClientID != "" && p.config.ClientSecret != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(p.config.ClientID + ":" + p.config.ClientSecret))
		opts = append(opts, http.CallHeader("Authorization", "Basic "+auth))
	} else if p.config.ClientID != "" {
		data.Set("client_id", p.config.ClientID)
	}

	env := p.client.Post(ctx, p.config.TokenURL, data, opts...)
	if env.Status == 0 && !env.OK {
		return nil, fmt.Errorf("token request failed (%s): %w", env.Problem, env.OriginalError)
	}
	if !env.OK {
		tokenErr := &TokenError{Status: env.Status}
		if body, ok := env.Data.(map[string]any); ok {
			tokenErr.Code, _ = body["error"].(string)
			tokenErr.Description, _ = body["error_description"].(string)
		}
		return nil, tokenErr
	}

	token, err := http.As[Token](env)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, errors.New("token response has no access_token")
	}
	if token.ExpiresIn > 0 {
		token.ExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}

	return &token, nil
}

// Transform returns a request transform that attaches the bearer token.
// Calls that already carry an Authorization header are left alone.
func (p *Provider) Transform() http.RequestTransform {
	return func(ctx context.Context, req *http.RequestConfig) error {
		if _, ok := req.Headers.Lookup("Authorization"); ok {
			return nil
		}
		token, err := p.GetToken(ctx)
		if err != nil {
			return err
		}
		tokenType := token.TokenType
		if tokenType == "" || strings.EqualFold(tokenType, "bearer") {
			tokenType = "Bearer"
		}
		req.SetHeader("Authorization", tokenType+" "+token.AccessToken)
		return nil
	}
}

// Monitor returns a monitor that drops the cached token when a call is
// rejected with 401, so the following call authenticates again.
func (p *Provider) Monitor() http.Monitor {
	return func(_ context.Context, env *http.Envelope) error {
		if env.Status == 401 {
			p.Invalidate()
		}
		return nil
	}
}
