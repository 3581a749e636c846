package config

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Timeout:         30000, // 30 seconds
		FollowRedirects: BoolPtr(true),
		MaxRedirects:    10,
		ValidateSSL:     BoolPtr(true),
		RequestIDHeader: "X-Request-ID",
		Burst:           1,
		EnvFile:         ".env",
		Output:          "console",
		LogLevel:        "warn",
		LogFormat:       "text",
		Verbose:         BoolPtr(false),
		NoColor:         BoolPtr(false),
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	d := DefaultConfig()
	return c.BaseURL == d.BaseURL &&
		c.Timeout == d.Timeout &&
		c.GetFollowRedirects() == d.GetFollowRedirects() &&
		c.MaxRedirects == d.MaxRedirects &&
		c.GetValidateSSL() == d.GetValidateSSL() &&
		c.Proxy == d.Proxy &&
		len(c.Headers) == 0 &&
		c.RequestIDHeader == d.RequestIDHeader &&
		c.RateLimit == d.RateLimit &&
		len(c.Environments) == 0 &&
		c.OAuth2 == nil &&
		c.Notify == nil &&
		c.History == d.History &&
		c.Output == d.Output &&
		c.GetVerbose() == d.GetVerbose() &&
		c.GetNoColor() == d.GetNoColor()
}
