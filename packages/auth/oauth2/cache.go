package oauth2

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TokenCache holds tokens keyed by endpoint, client and scopes. It can be
// persisted so separate CLI invocations reuse a token until it expires.
type TokenCache struct {
	mu     sync.RWMutex
	tokens map[string]*Token
}

func NewTokenCache() *TokenCache {
	return &TokenCache{
		tokens: make(map[string]*Token),
	}
}

func (c *TokenCache) Get(key string) *Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens[key]
}

func (c *TokenCache) Set(key string, token *Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[key] = token
}

func (c *TokenCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, key)
}

func (c *TokenCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tokens)
}

// persistedToken keeps the absolute expiry that Token omits from its JSON.
type persistedToken struct {
	Token
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// SaveFile writes the cache as JSON with owner-only permissions.
func (c *TokenCache) SaveFile(path string) error {
	c.mu.RLock()
	out := make(map[string]persistedToken, len(c.tokens))
	for k, t := range c.tokens {
		out[k] = persistedToken{Token: *t, ExpiresAt: t.ExpiresAt}
	}
	c.mu.RUnlock()

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding token cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating token cache directory: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// LoadFile merges tokens from a file written by SaveFile. Expired tokens
// without a refresh token are skipped. A missing file is not an error.
func (c *TokenCache) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading token cache: %w", err)
	}

	var in map[string]persistedToken
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("parsing token cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for k, p := range in {
		token := p.Token
		token.ExpiresAt = p.ExpiresAt
		if token.IsExpired() && token.RefreshToken == "" {
			continue
		}
		c.tokens[k] = &token
	}
	return nil
}
