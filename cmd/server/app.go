package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"facecards/internal/audit"
	authhandler "facecards/internal/auth/handler"
	authservice "facecards/internal/auth/service"
	"facecards/internal/auth/store/revocation"
	jwttoken "facecards/internal/jwt_token"
	"facecards/internal/platform/config"
	"facecards/internal/platform/kafka"
	"facecards/internal/platform/metrics"
	"facecards/internal/platform/postgres"
	"facecards/internal/platform/redis"
	"facecards/internal/ratelimit"
	"facecards/internal/ratelimit/store/window"
	"facecards/internal/refresh/fetcher"
	refreshhandler "facecards/internal/refresh/handler"
	refreshmetrics "facecards/internal/refresh/metrics"
	"facecards/internal/refresh/preview"
	refreshservice "facecards/internal/refresh/service"
	rosterhandler "facecards/internal/roster/handler"
	rosterservice "facecards/internal/roster/service"
	"facecards/internal/storage"
	httptransport "facecards/internal/transport/http"
	authmw "facecards/pkg/platform/middleware/auth"
)

const tokenIssuer = "facecards"

// app holds the wired process. Optional infrastructure is nil when not configured.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	registry *prometheus.Registry

	db     *sql.DB
	redis  *redis.Client
	kafka  *kafka.Client
	outbox *audit.Relay

	backend  storage.Backend
	catalog  *fetcher.Catalog
	previews *preview.Service
	verifier *rosterservice.Verifier
	routes   httptransport.Deps
}

// build connects to the configured infrastructure and wires every service.
// Call close when done, also on error.
func build(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var pgAudit audit.Outbox
	if cfg.Database.URL.Empty() {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		_, a.backend = storage.NewMemory()
	} else {
		pgCfg := postgres.DefaultConfig(cfg.Database.URL.Value())
		pgCfg.MaxOpenConns = cfg.Database.MaxOpenConns
		db, err := postgres.Open(ctx, pgCfg)
		if err != nil {
			return a, err
		}
		a.db = db
		_, backend, auditStore := storage.NewPostgres(db)
		a.backend = backend
		pgAudit = auditStore
	}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return a, err
	}
	a.redis = rdb

	if len(cfg.Kafka.Brokers) > 0 {
		if pgAudit == nil {
			log.Warn("KAFKA_BROKERS set without DATABASE_URL, audit relay disabled")
		} else {
			kc, err := kafka.New(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
			if err != nil {
				return a, err
			}
			a.kafka = kc
			if err := kc.EnsureTopic(ctx, 1, 1); err != nil {
				return a, err
			}
			a.outbox = audit.NewRelay(pgAudit, kc, cfg.Kafka.RelayInterval, cfg.Kafka.BatchSize, log)
		}
	}
	a.catalog, err = fetcher.LoadCatalog(cfg.Fetch.PositionsFile)
	if err != nil {
		return a, err
	}

	signer, err := jwttoken.NewJWTService(cfg.Admin.Secret.Value(), tokenIssuer)
	if err != nil {
		return a, err
	}

	refreshMetrics := refreshmetrics.New(a.registry)
	httpMetrics := metrics.New(a.registry)

	source := fetcher.NewOpenAIClient(cfg.Fetch.BaseURL, cfg.Fetch.APIKey.Value(), cfg.Fetch.Model, cfg.Fetch.Timeout)
	f := fetcher.New(source,
		fetcher.WithLogger(log),
		fetcher.WithMetrics(refreshMetrics),
		fetcher.WithInterval(cfg.Fetch.Interval),
		fetcher.WithMaxAttempts(cfg.Fetch.MaxAttempts),
	)

	a.previews = preview.NewService(a.backend, signer, cfg.Preview.TTL, preview.WithLogger(log))
	refresh, err := refreshservice.New(a.backend, f, a.previews, a.catalog.All(),
		refreshservice.WithLogger(log),
		refreshservice.WithMetrics(refreshMetrics),
		refreshservice.WithGenerateTimeout(cfg.Server.RequestTimeout),
	)
	if err != nil {
		return a, err
	}

	roster := rosterservice.New(a.backend, rosterservice.WithLogger(log))
	a.verifier = rosterservice.NewVerifier(a.backend, f, a.catalog,
		rosterservice.WithVerifierLogger(log),
		rosterservice.WithVerifierMetrics(refreshMetrics),
	)

	revocations, limiterStore := a.sessionStores()
	limiter, err := ratelimit.New(limiterStore, cfg.Admin.LoginLimit, cfg.Admin.LoginWindow)
	if err != nil {
		return a, err
	}
	auth, err := authservice.New(authservice.Credentials{
		Username:     cfg.Admin.Username,
		Password:     cfg.Admin.Password.Value(),
		PasswordHash: cfg.Admin.PasswordHash.Value(),
	}, signer, revocations, limiter, storage.AuditSink(a.backend.Tx),
		authservice.WithLogger(log),
		authservice.WithSessionTTL(cfg.Admin.SessionTTL),
	)
	if err != nil {
		return a, err
	}

	a.routes = httptransport.Deps{
		Logger:         log,
		RequestTimeout: cfg.Server.RequestTimeout,
		Metrics:        httpMetrics,
		Gatherer:       a.registry,
		Sessions:       jwttoken.NewSessionAdapter(signer),
		Revocations:    revocations,
		CronSecret:     cfg.Admin.CronSecret.Value(),
		Auth:           authhandler.New(auth, log, cfg.Server.Production()),
		Refresh:        refreshhandler.New(refresh, log),
		Roster:         rosterhandler.New(roster, a.verifier, log),
		Health:         a.healthChecks(),
	}
	return a, nil
}

type sessionRevocations interface {
	authservice.RevocationList
	authmw.RevocationChecker
}

// sessionStores picks the shared backends for revocations and login limits:
// Redis when configured, else PostgreSQL for revocations, else memory.
func (a *app) sessionStores() (sessionRevocations, ratelimit.Store) {
	switch {
	case a.redis != nil:
		return revocation.NewRedisList(a.redis.Client), window.NewRedisStore(a.redis.Client)
	case a.db != nil:
		return revocation.NewPostgresList(a.db), window.NewInMemoryStore()
	default:
		return revocation.NewInMemoryList(), window.NewInMemoryStore()
	}
}

func (a *app) healthChecks() []httptransport.HealthCheck {
	var checks []httptransport.HealthCheck
	if a.db != nil {
		checks = append(checks, httptransport.HealthCheck{Name: "database", Check: a.db.PingContext})
	}
	if a.redis != nil {
		checks = append(checks, httptransport.HealthCheck{Name: "redis", Check: a.redis.Health})
	}
	if a.kafka != nil {
		checks = append(checks, httptransport.HealthCheck{Name: "kafka", Check: a.kafka.Health})
	}
	return checks
}

func (a *app) close() error {
	var errs []error
	if a.kafka != nil {
		a.kafka.Close()
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
