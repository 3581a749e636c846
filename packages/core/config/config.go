package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitfetch/packages/http"
	"gopkg.in/yaml.v3"
)

// Config represents the hitfetch configuration
type Config struct {
	BaseURL            string                    `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
	Timeout            int                       `json:"timeout,omitempty" yaml:"timeout,omitempty"` // milliseconds
	FollowRedirects    *bool                     `json:"followRedirects,omitempty" yaml:"followRedirects,omitempty"`
	MaxRedirects       int                       `json:"maxRedirects,omitempty" yaml:"maxRedirects,omitempty"`
	ValidateSSL        *bool                     `json:"validateSSL,omitempty" yaml:"validateSSL,omitempty"`
	Proxy              string                    `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	Headers            map[string]string         `json:"headers,omitempty" yaml:"headers,omitempty"` // Default headers for all requests
	RequestIDHeader    string                    `json:"requestIdHeader,omitempty" yaml:"requestIdHeader,omitempty"`
	RateLimit          float64                   `json:"rateLimit,omitempty" yaml:"rateLimit,omitempty"` // requests per second, 0 = unlimited
	Burst              int                       `json:"burst,omitempty" yaml:"burst,omitempty"`
	DefaultEnvironment string                    `json:"defaultEnvironment,omitempty" yaml:"defaultEnvironment,omitempty"`
	EnvFile            string                    `json:"envFile,omitempty" yaml:"envFile,omitempty"`
	Environments       map[string]map[string]any `json:"environments,omitempty" yaml:"environments,omitempty"`
	OAuth2             *OAuth2Config             `json:"oauth2,omitempty" yaml:"oauth2,omitempty"`
	Notify             *NotifyConfig             `json:"notify,omitempty" yaml:"notify,omitempty"`
	History            string                    `json:"history,omitempty" yaml:"history,omitempty"` // sqlite database path
	MetricsAddr        string                    `json:"metricsAddr,omitempty" yaml:"metricsAddr,omitempty"`
	Output             string                    `json:"output,omitempty" yaml:"output,omitempty"`
	LogLevel           string                    `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
	LogFormat          string                    `json:"logFormat,omitempty" yaml:"logFormat,omitempty"`
	Verbose            *bool                     `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	NoColor            *bool                     `json:"noColor,omitempty" yaml:"noColor,omitempty"`
}

// OAuth2Config configures the token provider.
type OAuth2Config struct {
	GrantType    string   `json:"grantType,omitempty" yaml:"grantType,omitempty"` // client_credentials or password
	TokenURL     string   `json:"tokenURL" yaml:"tokenURL"`
	ClientID     string   `json:"clientID" yaml:"clientID"`
	ClientSecret string   `json:"clientSecret,omitempty" yaml:"clientSecret,omitempty"`
	Username     string   `json:"username,omitempty" yaml:"username,omitempty"`
	Password     string   `json:"password,omitempty" yaml:"password,omitempty"`
	Scopes       []string `json:"scopes,omitempty" yaml:"scopes,omitempty"`
}

// NotifyConfig configures webhook notifications.
type NotifyConfig struct {
	Slack string `json:"slack,omitempty" yaml:"slack,omitempty"` // webhook URL
	Teams string `json:"teams,omitempty" yaml:"teams,omitempty"` // webhook URL
	On    string `json:"on,omitempty" yaml:"on,omitempty"`       // failure, recovery, always
}

// BoolPtr returns a pointer to b, for setting explicit flags.
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// TimeoutDuration converts the millisecond timeout.
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// ClientOptions translates the transport and default-request settings into
// client options.
func (c *Config) ClientOptions() []http.ClientOption {
	opts := []http.ClientOption{
		http.WithTimeout(c.TimeoutDuration()),
		http.WithFollowRedirects(c.GetFollowRedirects()),
		http.WithValidateSSL(c.GetValidateSSL()),
		http.WithDefaultHeaders(c.Headers),
	}
	if c.BaseURL != "" {
		opts = append(opts, http.WithBaseURL(c.BaseURL))
	}
	if c.MaxRedirects > 0 {
		opts = append(opts, http.WithMaxRedirects(c.MaxRedirects))
	}
	if c.Proxy != "" {
		opts = append(opts, http.WithProxy(c.Proxy))
	}
	return opts
}

// ConfigFilenames contains the possible config file names, in lookup order
var ConfigFilenames = []string{
	".hitfetch.yaml",
	".hitfetch.yml",
	"hitfetch.config.json",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}
	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	if path := FindConfigFile(dir); path != "" {
		return loadConfigFromFile(path)
	}
	return DefaultConfig(), nil
}

// FindConfigFile returns the first config file present in dir, or "".
func FindConfigFile(dir string) string {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}
	return ""
}

// loadConfigFromFile parses a config file on top of the defaults. ${VAR}
// references are expanded from the process environment first.
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	expanded := []byte(os.ExpandEnv(string(data)))

	parsed := &Config{}
	if isJSON(path) {
		err = json.Unmarshal(expanded, parsed)
	} else {
		err = yaml.Unmarshal(expanded, parsed)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return DefaultConfig().Merge(parsed), nil
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy

	if other.BaseURL != "" {
		result.BaseURL = other.BaseURL
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.RequestIDHeader != "" {
		result.RequestIDHeader = other.RequestIDHeader
	}
	if other.RateLimit > 0 {
		result.RateLimit = other.RateLimit
	}
	if other.Burst > 0 {
		result.Burst = other.Burst
	}
	if other.DefaultEnvironment != "" {
		result.DefaultEnvironment = other.DefaultEnvironment
	}
	if other.EnvFile != "" {
		result.EnvFile = other.EnvFile
	}
	if other.OAuth2 != nil {
		result.OAuth2 = other.OAuth2
	}
	if other.Notify != nil {
		result.Notify = other.Notify
	}
	if other.History != "" {
		result.History = other.History
	}
	if other.MetricsAddr != "" {
		result.MetricsAddr = other.MetricsAddr
	}
	if other.Output != "" {
		result.Output = other.Output
	}
	if other.LogLevel != "" {
		result.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		result.LogFormat = other.LogFormat
	}

	// Boolean flags - only override if explicitly set in other config
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	if len(other.Headers) > 0 {
		merged := make(map[string]string, len(c.Headers)+len(other.Headers))
		for k, v := range c.Headers {
			merged[k] = v
		}
		for k, v := range other.Headers {
			merged[k] = v
		}
		result.Headers = merged
	}

	if len(other.Environments) > 0 {
		merged := make(map[string]map[string]any, len(c.Environments)+len(other.Environments))
		for k, v := range c.Environments {
			merged[k] = v
		}
		for k, v := range other.Environments {
			merged[k] = v
		}
		result.Environments = merged
	}

	return &result
}

// Save writes the configuration, choosing JSON or YAML by file extension.
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if isJSON(path) {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}
