package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitfetch/packages/auth/oauth2"
	"github.com/abdul-hamid-achik/hitfetch/packages/core/config"
	"github.com/abdul-hamid-achik/hitfetch/packages/core/env"
	"github.com/abdul-hamid-achik/hitfetch/packages/db"
	"github.com/abdul-hamid-achik/hitfetch/packages/export/metrics"
	"github.com/abdul-hamid-achik/hitfetch/packages/http"
	"github.com/abdul-hamid-achik/hitfetch/packages/logging"
	"github.com/abdul-hamid-achik/hitfetch/packages/notify"
	"github.com/abdul-hamid-achik/hitfetch/packages/output"
	"github.com/abdul-hamid-achik/hitfetch/packages/throttle"
)

// session is everything one command invocation needs: the effective config
// and a client with its transforms and monitors attached.
type session struct {
	cfg        *config.Config
	configPath string
	headers    *http.Headers

	logger     *slog.Logger
	client     *http.Client
	resolver   *env.Resolver
	limiter    *throttle.Limiter
	formatter  output.Formatter
	collector  *metrics.Collector
	history    *db.Client
	metricsSrv *metrics.Server
}

// newSession loads the config file, applies flag overrides and builds the
// client. out receives formatted envelopes.
func newSession(out io.Writer) (*session, error) {
	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, exitWith(ExitConfigError, err)
	}
	if err := applyFlags(cfg); err != nil {
		return nil, exitWith(ExitUsageError, err)
	}

	headers, err := parseHeaders(headerFlags)
	if err != nil {
		return nil, exitWith(ExitUsageError, err)
	}

	s := &session{
		cfg:        cfg,
		configPath: configFlag,
		headers:    headers,
		logger:     logging.NewLogger(cfg.LogLevel, cfg.LogFormat),
	}
	if metricsFileFlag != "" {
		s.collector = metrics.NewCollector(metrics.WithExporters(
			metrics.NewJSONExporter(metrics.WithJSONFile(metricsFileFlag), metrics.WithJSONRecords(true)),
		))
	} else {
		s.collector = metrics.NewCollector()
	}
	if s.configPath == "" {
		s.configPath = config.FindConfigFile(".")
	}

	s.formatter, err = output.New(cfg.Output, out, cfg.GetVerbose(), cfg.GetNoColor())
	if err != nil {
		return nil, exitWith(ExitUsageError, err)
	}

	if err := s.setupResolver(); err != nil {
		return nil, exitWith(ExitConfigError, err)
	}

	opts := append(cfg.ClientOptions(), http.WithLogger(s.logger))
	for _, k := range headers.Keys() {
		opts = append(opts, http.WithDefaultHeader(k, headers.Get(k)))
	}

	// transforms run in registration order: variables resolve first so
	// later transforms see final values
	opts = append(opts, http.WithRequestTransform(s.resolver.Transform()))
	if cfg.RequestIDHeader != "" {
		opts = append(opts, http.WithRequestTransform(http.RequestIDTransform(cfg.RequestIDHeader)))
	}
	if cfg.RateLimit > 0 {
		s.limiter = throttle.New(cfg.RateLimit, cfg.Burst)
		opts = append(opts, http.WithRequestTransform(s.limiter.Transform()))
	}
	switch {
	case userFlag != "":
		user, pass, _ := strings.Cut(userFlag, ":")
		opts = append(opts, http.WithRequestTransform(http.BasicAuth(s.resolver.Resolve(user), s.resolver.Resolve(pass))))
	case bearerFlag != "":
		opts = append(opts, http.WithRequestTransform(http.BearerAuth(s.resolver.Resolve(bearerFlag))))
	}
	if cfg.OAuth2 != nil {
		provider, err := s.oauth2Provider()
		if err != nil {
			return nil, exitWith(ExitConfigError, err)
		}
		opts = append(opts,
			http.WithRequestTransform(provider.Transform()),
			http.WithMonitor(provider.Monitor()),
		)
	}

	// per-call log lines only at info and below
	if s.logger.Enabled(context.Background(), slog.LevelInfo) {
		opts = append(opts, http.WithMonitor(logging.Monitor(s.logger)))
	}
	opts = append(opts, http.WithMonitor(s.collector.Monitor()))

	if cfg.History != "" {
		s.history, err = db.NewClient(cfg.History)
		if err != nil {
			return nil, exitWith(ExitConfigError, err)
		}
		opts = append(opts, http.WithMonitor(s.history.Monitor()))
	}

	manager, err := notify.FromConfig(cfg.Notify, cfg.DefaultEnvironment)
	if err != nil {
		s.Close()
		return nil, exitWith(ExitConfigError, err)
	}
	if manager != nil {
		opts = append(opts, http.WithMonitor(manager.Monitor()))
	}

	if cfg.MetricsAddr != "" {
		s.metricsSrv, err = metrics.Serve(s.collector, cfg.MetricsAddr, s.logger)
		if err != nil {
			s.Close()
			return nil, exitWith(ExitConfigError, err)
		}
	}

	s.client = http.NewClient(opts...)
	return s, nil
}

// applyFlags layers explicitly set flags over the file config.
func applyFlags(cfg *config.Config) error {
	if envFlag != "" {
		cfg.DefaultEnvironment = envFlag
	}
	if envFileFlag != "" {
		cfg.EnvFile = envFileFlag
	}
	if baseURLFlag != "" {
		cfg.BaseURL = baseURLFlag
	}
	if timeoutFlag != "" {
		d, err := parseTimeout(timeoutFlag)
		if err != nil {
			return err
		}
		cfg.Timeout = int(d.Milliseconds())
	}
	if proxyFlag != "" {
		cfg.Proxy = proxyFlag
	}
	if insecureFlag {
		cfg.ValidateSSL = config.BoolPtr(false)
	}
	if noFollowFlag {
		cfg.FollowRedirects = config.BoolPtr(false)
	}
	if rateFlag > 0 {
		cfg.RateLimit = rateFlag
	}
	if burstFlag > 0 {
		cfg.Burst = burstFlag
	}
	if requestIDFlag && cfg.RequestIDHeader == "" {
		cfg.RequestIDHeader = http.DefaultRequestIDHeader
	}
	if outputFlag != "" {
		cfg.Output = outputFlag
	}
	if verboseFlag > 0 {
		cfg.Verbose = config.BoolPtr(true)
	}
	if noColorFlag {
		cfg.NoColor = config.BoolPtr(true)
	}
	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}
	if logFormatFlag != "" {
		cfg.LogFormat = logFormatFlag
	}
	if historyFlag != "" {
		cfg.History = historyFlag
	}
	if metricsAddrFlag != "" {
		cfg.MetricsAddr = metricsAddrFlag
	}
	if slackWebhookFlag != "" || teamsWebhookFlag != "" || notifyOnFlag != "" {
		n := &config.NotifyConfig{}
		if cfg.Notify != nil {
			*n = *cfg.Notify
		}
		if slackWebhookFlag != "" {
			n.Slack = slackWebhookFlag
		}
		if teamsWebhookFlag != "" {
			n.Teams = teamsWebhookFlag
		}
		if notifyOnFlag != "" {
			n.On = notifyOnFlag
		}
		cfg.Notify = n
	}
	return nil
}

func (s *session) setupResolver() error {
	envFile := s.cfg.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	environment, err := env.LoadEnvironment(s.cfg.DefaultEnvironment, s.cfg.Environments, envFile)
	if err != nil {
		return err
	}

	s.resolver = env.NewResolver()
	s.resolver.SetVariables(environment.Variables)
	s.resolver.SetWarnFunc(func(format string, args ...any) {
		s.logger.Warn(fmt.Sprintf(format, args...))
	})
	return nil
}

func (s *session) oauth2Provider() (*oauth2.Provider, error) {
	c := s.cfg.OAuth2
	oc := &oauth2.Config{
		TokenURL:     s.resolver.Resolve(c.TokenURL),
		ClientID:     s.resolver.Resolve(c.ClientID),
		ClientSecret: s.resolver.Resolve(c.ClientSecret),
		Username:     s.resolver.Resolve(c.Username),
		Password:     s.resolver.Resolve(c.Password),
		Scopes:       c.Scopes,
		GrantType:    oauth2.GrantType(c.GrantType),
	}
	if err := oc.Validate(); err != nil {
		return nil, err
	}

	tokenClient := http.NewClient(
		http.WithTimeout(s.cfg.TimeoutDuration()),
		http.WithValidateSSL(s.cfg.GetValidateSSL()),
		http.WithProxy(s.cfg.Proxy),
		http.WithLogger(s.logger),
	)
	return oauth2.NewProvider(oc, oauth2.WithClient(tokenClient)), nil
}

// reload applies a changed config file to the running client.
func (s *session) reload(cfg *config.Config) {
	s.client.SetBaseURL(cfg.BaseURL)
	s.client.SetTimeout(cfg.TimeoutDuration())

	headers := http.HeadersOf(cfg.Headers)
	for _, k := range s.headers.Keys() {
		headers.Set(k, s.headers.Get(k))
	}
	s.client.SetHeaders(headers)

	if s.limiter != nil && cfg.RateLimit > 0 {
		s.limiter.SetRate(cfg.RateLimit)
	}
	s.logger.Info("config reloaded", "path", s.configPath, "base_url", cfg.BaseURL)
}

// Close flushes metric exporters, releases the history database and stops
// the metrics server.
func (s *session) Close() {
	if err := s.collector.Flush(); err != nil {
		s.logger.Warn("writing metrics failed", "error", err)
	}
	if err := s.collector.Close(); err != nil {
		s.logger.Warn("closing metrics failed", "error", err)
	}
	if s.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("metrics server shutdown failed", "error", err)
		}
	}
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			s.logger.Warn("closing history failed", "error", err)
		}
	}
}
