// Package app wires configuration, telemetry and the health aggregator into
// a runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/healthops/config"
	"github.com/jonwraymond/healthops/health"
	"github.com/jonwraymond/healthops/observe"
	"github.com/jonwraymond/healthops/postgres"
	"github.com/jonwraymond/healthops/resilience"
	"github.com/jonwraymond/healthops/secret"
	"github.com/jonwraymond/healthops/supabase"
)

// MetricsPath serves Prometheus metrics when that exporter is configured.
const MetricsPath = "/metrics"

// Options controls how the container is built.
type Options struct {
	// ConfigPath is the YAML file. Empty falls back to HEALTHD_CONFIG.
	ConfigPath string

	// Environ returns the environment snapshot for one detailed report.
	// Default: secret.Environ
	Environ func() secret.Snapshot
}

// Container wires up the health service with its adapters.
type Container struct {
	Config     config.Config
	Observer   observe.Observer
	Logger     observe.Logger
	Middleware *observe.Middleware
	Aggregator *health.Aggregator
	Service    *health.Service

	environ  func() secret.Snapshot
	resolver *secret.Resolver
	store    *postgres.Store
	cache    *redisPinger
}

// BuildContainer loads the configuration and constructs the dependency graph.
func BuildContainer(ctx context.Context, opts Options) (*Container, error) {
	environ := opts.Environ
	if environ == nil {
		environ = secret.Environ
	}
	cfg, err := config.NewLoader(opts.ConfigPath).WithLookup(environ().Lookup).Load(ctx)
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg, environ)
}

// New constructs the dependency graph for an already loaded configuration.
func New(ctx context.Context, cfg config.Config, environ func() secret.Snapshot) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if environ == nil {
		environ = secret.Environ
	}

	obsCfg := cfg.Observe
	obsCfg.ServiceName = cfg.Service
	obsCfg.Version = cfg.Version
	obs, err := observe.NewObserver(ctx, obsCfg)
	if err != nil {
		return nil, fmt.Errorf("observe: %w", err)
	}
	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, fmt.Errorf("observe: %w", err)
	}
	mw = mw.WithService(cfg.Service)

	c := &Container{
		Config:     cfg,
		Observer:   obs,
		Logger:     obs.Logger(),
		Middleware: mw,
		environ:    environ,
		resolver:   secret.NewDefaultResolver(nil),
	}

	if cfg.Database.Driver == config.DriverPostgres {
		store, err := postgres.Open(cfg.Database.DSN, cfg.Database.Query)
		if err != nil {
			_ = c.Close(ctx)
			return nil, err
		}
		c.store = store
	}

	probes := health.DefaultProbes(cfg.RequiredEnv...)
	if cfg.Redis.Enabled() {
		c.cache = newRedisPinger(cfg.Redis, cfg.ProbeTimeout)
		probes = append(probes, health.CacheProbe{})
	}

	c.Aggregator = health.NewAggregator(health.AggregatorConfig{
		Service:      cfg.Service,
		Version:      cfg.Version,
		Timeout:      cfg.Timeout,
		ProbeTimeout: cfg.ProbeTimeout,
		Sequential:   !cfg.IsParallel(),
		Observer:     mw,
	}, probes...)
	c.Service = health.NewService(c.Aggregator, health.ConnectorFunc(c.Connect))

	if err := c.Warm(ctx); err != nil {
		c.Logger.Warn(ctx, "dependency unreachable at startup",
			observe.Field{Key: "error", Value: err.Error()},
		)
	}

	c.Logger.Info(ctx, "health service configured",
		observe.Field{Key: "service.name", Value: cfg.Service},
		observe.Field{Key: "database.driver", Value: cfg.Database.Driver},
		observe.Field{Key: "probes", Value: c.Aggregator.ProbeNames()},
	)
	return c, nil
}

// Warm pings the directly connected backends once, each bounded by the probe
// timeout. It returns every failure joined; New only logs them.
func (c *Container) Warm(ctx context.Context) error {
	bound := resilience.NewTimeout(resilience.TimeoutConfig{Timeout: c.Config.ProbeTimeout})

	var errs []error
	if c.store != nil {
		if err := bound.Execute(ctx, c.store.Ping); err != nil {
			errs = append(errs, err)
		}
	}
	if c.cache != nil {
		if err := bound.Execute(ctx, c.cache.Ping); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Connect builds the dependency handles for one detailed report. A missing
// Supabase URL or key leaves the handles unset so the probes report it; an
// unusable configuration is a connect failure.
func (c *Container) Connect(ctx context.Context) (*health.Deps, error) {
	env, err := c.resolver.ResolveSnapshot(ctx, c.environ())
	if err != nil {
		return nil, fmt.Errorf("resolve environment: %w", err)
	}
	deps := &health.Deps{Config: env}

	sb := c.Config.Supabase
	client, err := supabase.New(supabase.Config{
		URL:             sb.URL,
		AnonKey:         sb.AnonKey,
		AccessToken:     sb.AccessToken,
		JWTSecret:       sb.JWTSecret,
		VersionFunction: c.Config.Database.Function,
		Timeout:         c.Config.ProbeTimeout,
	})
	switch {
	case err == nil:
		deps.Auth = client
		deps.Store = client
	case errors.Is(err, supabase.ErrMissingURL), errors.Is(err, supabase.ErrMissingKey):
		c.Logger.Debug(ctx, "supabase client not configured", observe.Field{Key: "error", Value: err.Error()})
	default:
		return nil, err
	}

	if c.store != nil {
		deps.Store = c.store
	}
	if c.cache != nil {
		deps.Cache = c.cache
	}
	return deps, nil
}

// Handler returns the HTTP handler: health routes, plus metrics when the
// Prometheus exporter is enabled.
func (c *Container) Handler() http.Handler {
	healthHandler := health.NewHandler(c.Service, health.HandlerConfig{Logger: c.Logger})
	if !c.Config.Observe.Metrics.Enabled || c.Config.Observe.Metrics.Exporter != "prometheus" {
		return healthHandler
	}
	mux := http.NewServeMux()
	mux.Handle(MetricsPath, promhttp.Handler())
	mux.Handle("/", healthHandler)
	return mux
}

// Close releases every adapter and flushes telemetry.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if c.resolver != nil {
		if err := c.resolver.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Observer != nil {
		if err := c.Observer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
