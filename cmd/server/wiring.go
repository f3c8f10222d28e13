package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"civicid/internal/agent"
	agentmetrics "civicid/internal/agent/metrics"
	connhandler "civicid/internal/connection/handler"
	connmetrics "civicid/internal/connection/metrics"
	connservice "civicid/internal/connection/service"
	connstore "civicid/internal/connection/store"
	credhandler "civicid/internal/credential/handler"
	credmetrics "civicid/internal/credential/metrics"
	credservice "civicid/internal/credential/service"
	didhandler "civicid/internal/did/handler"
	didservice "civicid/internal/did/service"
	didstore "civicid/internal/did/store"
	jwttoken "civicid/internal/jwt_token"
	linkhandler "civicid/internal/linking/handler"
	linkmetrics "civicid/internal/linking/metrics"
	linkservice "civicid/internal/linking/service"
	linkstore "civicid/internal/linking/store"
	"civicid/internal/platform/config"
	"civicid/internal/platform/kafka"
	"civicid/internal/platform/metrics"
	"civicid/internal/platform/postgres"
	"civicid/internal/platform/redis"
	ratemetrics "civicid/internal/ratelimit/metrics"
	ratelimit "civicid/internal/ratelimit/middleware"
	ratemodels "civicid/internal/ratelimit/models"
	ratestore "civicid/internal/ratelimit/store"
	audit "civicid/pkg/platform/audit"
	kafkastore "civicid/pkg/platform/audit/store/kafka"
	"civicid/pkg/platform/audit/store/logstore"
	"civicid/pkg/platform/httputil"
	"civicid/pkg/platform/middleware/auth"
	"civicid/pkg/platform/middleware/metadata"
	"civicid/pkg/platform/middleware/request"
	"civicid/pkg/platform/middleware/requesttime"
)

const requestTimeout = 30 * time.Second

type stores struct {
	connections connservice.Store
	links       linkservice.LinkStore
	dids        didservice.Store
	tx          linkservice.TxRunner
	db          *sql.DB
}

func memoryStores() *stores {
	return &stores{
		connections: connstore.NewInMemory(),
		links:       linkstore.NewInMemory(),
		dids:        didstore.NewInMemory(),
	}
}

func openStores(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*stores, error) {
	if cfg.URL == "" {
		log.Info("DATABASE_URL not set, using in-memory stores")
		return memoryStores(), nil
	}
	db, err := postgres.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info("connected to database", "driver", cfg.Driver)
	return &stores{
		connections: connstore.NewPostgres(db),
		links:       linkstore.NewPostgres(db),
		dids:        didstore.NewPostgres(db),
		tx:          postgres.NewTxRunner(db),
		db:          db,
	}, nil
}

// openEvents returns the domain event sink: Kafka when brokers are set,
// otherwise the structured log.
func openEvents(ctx context.Context, cfg config.KafkaConfig, log *slog.Logger) (audit.Store, func(), error) {
	if len(cfg.Brokers) == 0 {
		return logstore.New(log), func() {}, nil
	}
	client, err := kafka.NewClient(cfg.Brokers)
	if err != nil {
		return nil, nil, err
	}
	if err := kafka.EnsureTopic(ctx, client, cfg.Topic, 3, 1); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("ensure events topic: %w", err)
	}
	producer := kafka.NewProducer(client)
	log.Info("publishing events to kafka", "topic", cfg.Topic, "brokers", cfg.Brokers)
	return kafkastore.New(producer, cfg.Topic), producer.Close, nil
}

// eventEmitter is what every service publishes domain events through.
type eventEmitter interface {
	Emit(ctx context.Context, event audit.Event) error
}

type app struct {
	cfg         config.Server
	log         *slog.Logger
	db          *sql.DB
	rdb         *redis.Client
	connections *connservice.Service
	linking     *linkservice.Service
	credentials *credservice.Service
	dids        *didservice.Service
	limiter     *ratelimit.Middleware
	httpMetrics *metrics.Metrics
	tokens      *jwttoken.JWTService
}

func newApp(cfg config.Server, log *slog.Logger, st *stores, rdb *redis.Client, events eventEmitter, reg prometheus.Registerer) *app {
	agentClient := agent.New(cfg.Agent.URL,
		agent.WithAPIKey(cfg.Agent.APIKey),
		agent.WithTimeout(cfg.Agent.Timeout),
		agent.WithLogger(log),
		agent.WithMetrics(agentmetrics.NewWithRegistry(reg)),
	)

	connOpts := []connservice.Option{
		connservice.WithLogger(log),
		connservice.WithMetrics(connmetrics.NewWithRegistry(reg)),
		connservice.WithAuditPublisher(events),
		connservice.WithInvitationLabel(cfg.Agent.InvitationLabel),
	}
	if rdb != nil {
		connOpts = append(connOpts, connservice.WithDeduper(connstore.NewRedisDeduper(rdb.Client, cfg.Redis.DedupeTTL)))
	}
	connections := connservice.New(st.connections, agentClient, connOpts...)

	linkOpts := []linkservice.Option{
		linkservice.WithLogger(log),
		linkservice.WithMetrics(linkmetrics.NewWithRegistry(reg)),
		linkservice.WithAuditPublisher(events),
	}
	if st.tx != nil {
		linkOpts = append(linkOpts, linkservice.WithTxRunner(st.tx))
	}

	var limitStore ratelimit.Store = ratestore.NewInMemory()
	if rdb != nil {
		limitStore = ratestore.NewRedis(rdb.Client)
	}

	return &app{
		cfg:         cfg,
		log:         log,
		db:          st.db,
		rdb:         rdb,
		connections: connections,
		linking:     linkservice.New(connections, st.links, linkOpts...),
		credentials: credservice.New(agentClient,
			credservice.WithLogger(log),
			credservice.WithMetrics(credmetrics.NewWithRegistry(reg)),
			credservice.WithAuditPublisher(events),
			credservice.WithDIDDirectory(didDirectory{store: st.dids}),
			credservice.WithWalletLinks(walletLinks{store: st.links}),
		),
		dids: didservice.New(agentClient, st.dids,
			didservice.WithLogger(log),
			didservice.WithAuditPublisher(events),
		),
		limiter:     ratelimit.New(limitStore, log, ratelimit.WithMetrics(ratemetrics.NewWithRegistry(reg))),
		httpMetrics: metrics.NewWithRegistry(reg),
		tokens:      jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience),
	}
}

func (a *app) router() http.Handler {
	log := a.log
	perIP := ratemodels.Limit{Requests: a.cfg.RateLimit.PerIPPerMinute, Window: time.Minute}
	perUser := ratemodels.Limit{Requests: a.cfg.RateLimit.PerUserPerMinute, Window: time.Minute}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(log))
	r.Use(request.Logger(log))
	r.Use(request.LatencyMiddleware(a.httpMetrics))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readiness(a.db, a.rdb))
	r.Handle("/metrics", promhttp.Handler())

	connOpts := []connhandler.Option{connhandler.WithRejectionRecorder(a.httpMetrics)}
	if a.cfg.WebhookToken != "" {
		connOpts = append(connOpts,
			connhandler.WithWebhookGuard(auth.RequireSharedSecret("X-Webhook-Token", a.cfg.WebhookToken, log)))
	} else {
		log.Warn("WEBHOOK_TOKEN not set, webhook endpoint is unauthenticated")
	}

	r.Group(func(r chi.Router) {
		r.Use(request.Timeout(requestTimeout))
		r.Use(request.ContentTypeJSON)
		r.Use(a.limiter.PerIP(perIP))

		connhandler.New(a.connections, log, connOpts...).Register(r)
		credhandler.New(a.credentials, log).Register(r)
		didhandler.New(a.dids, log, didhandler.WithAgentURL(a.cfg.Agent.URL)).Register(r)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(jwttoken.NewJWTServiceAdapter(a.tokens), log))
			r.Use(a.limiter.PerUser(perUser))
			linkhandler.New(a.linking, log).Register(r)
		})
	})
	return r
}

// readiness pings the optional backing services.
func readiness(db *sql.DB, rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := map[string]string{}
		ready := true
		if db != nil {
			checks["database"] = "ok"
			if err := db.PingContext(ctx); err != nil {
				checks["database"] = err.Error()
				ready = false
			}
		}
		if rdb != nil {
			checks["redis"] = "ok"
			if err := rdb.Health(ctx); err != nil {
				checks["redis"] = err.Error()
				ready = false
			}
		}
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, checks)
	}
}
