package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	listhandler "rollcall/internal/attendancelist/handler"
	listmetrics "rollcall/internal/attendancelist/metrics"
	listservice "rollcall/internal/attendancelist/service"
	ceremonyhandler "rollcall/internal/ceremony/handler"
	ceremonymetrics "rollcall/internal/ceremony/metrics"
	ceremonyservice "rollcall/internal/ceremony/service"
	ceremonystore "rollcall/internal/ceremony/store"
	ledgerhandler "rollcall/internal/ledger/handler"
	"rollcall/internal/ledger/live"
	ledgermetrics "rollcall/internal/ledger/metrics"
	ledgerservice "rollcall/internal/ledger/service"
	"rollcall/internal/platform/admintoken"
	"rollcall/internal/platform/config"
	"rollcall/internal/platform/httpserver"
	"rollcall/internal/platform/logger"
	"rollcall/internal/platform/metrics"
	"rollcall/internal/platform/otel"
	"rollcall/internal/platform/redis"
	registryhandler "rollcall/internal/registry/handler"
	registrymetrics "rollcall/internal/registry/metrics"
	registryservice "rollcall/internal/registry/service"
	httptransport "rollcall/internal/transport/http"
	"rollcall/pkg/platform/audit/publisher"
	auditkafka "rollcall/pkg/platform/audit/publishers/kafka"
)

const (
	shutdownTimeout  = 15 * time.Second
	auditAsyncBuffer = 1024
)

func main() {
	if err := run(); err != nil {
		slog.Error("rollcall stopped", "error", err)
		os.Exit(1)
	}
}

// feed is the live roster fan-out: the ledger publishes to it and the
// websocket handler subscribes.
type feed interface {
	ledgerservice.Notifier
	live.Subscriber
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Setup(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("failed to flush traces", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	healthChecks := map[string]httptransport.HealthCheck{}

	stores, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.Close()
	if stores.db != nil {
		healthChecks["database"] = stores.Ping
	}

	var workers []func(context.Context) error
	auditStore := stores.audit
	var kafkaClient *kgo.Client
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaCfg := auditkafka.Config{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.Topic,
			ClientID: cfg.Kafka.ClientID,
		}
		kafkaClient, err = auditkafka.NewClient(kafkaCfg)
		if err != nil {
			return err
		}
		defer kafkaClient.Close()
		if err := auditkafka.EnsureTopic(ctx, kafkaClient, kafkaCfg); err != nil {
			return err
		}
		healthChecks["kafka"] = kafkaClient.Ping
		if stores.outbox != nil {
			relay := auditkafka.NewRelay(stores.outbox, kafkaClient, log)
			workers = append(workers, relay.Run)
		} else {
			auditStore = auditkafka.NewSink(kafkaClient, log)
		}
		log.Info("streaming audit events to kafka", "topic", cfg.Kafka.Topic)
	}

	// The outbox must be written inside the request transaction, so it stays
	// synchronous.
	publisherOpts := []publisher.Option{publisher.WithLogger(log)}
	if stores.outbox == nil {
		publisherOpts = append(publisherOpts, publisher.WithAsyncBuffer(auditAsyncBuffer))
	}
	auditPublisher := publisher.NewPublisher(auditStore, publisherOpts...)
	defer auditPublisher.Close()

	roster, closeFeed, err := newFeed(cfg.NATS, log, healthChecks)
	if err != nil {
		return err
	}
	defer closeFeed()

	registrySvc := registryservice.New(stores.professionals,
		registryservice.WithLogger(log),
		registryservice.WithAuditPublisher(auditPublisher),
		registryservice.WithMetrics(registrymetrics.New(reg)),
		registryservice.WithTx(stores.tx),
	)
	listSvc := listservice.New(stores.lists,
		listservice.WithLogger(log),
		listservice.WithAuditPublisher(auditPublisher),
		listservice.WithMetrics(listmetrics.New(reg)),
	)
	ledgerSvc := ledgerservice.New(stores.records, registrySvc, listSvc,
		ledgerservice.WithLogger(log),
		ledgerservice.WithAuditPublisher(auditPublisher),
		ledgerservice.WithMetrics(ledgermetrics.New(reg)),
		ledgerservice.WithTx(stores.tx),
		ledgerservice.WithNotifier(roster),
	)

	ceremonies, closeCeremonies, err := newCeremonyStore(ctx, cfg, log, healthChecks)
	if err != nil {
		return err
	}
	defer closeCeremonies()
	provider, err := ceremonyservice.NewProvider(cfg.WebAuthn)
	if err != nil {
		return err
	}
	ceremonySvc := ceremonyservice.New(provider, ceremonies, registrySvc, ledgerSvc, listSvc,
		ceremonyservice.WithLogger(log),
		ceremonyservice.WithAuditPublisher(auditPublisher),
		ceremonyservice.WithMetrics(ceremonymetrics.New(reg)),
		ceremonyservice.WithTTL(cfg.WebAuthn.CeremonyTTL()),
	)

	tokens, err := admintoken.New(cfg.Admin.SigningKey, cfg.Admin.Issuer, cfg.Admin.Audience)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.Config{
		Logger:         log,
		Metrics:        metrics.New(reg),
		AllowedOrigins: cfg.WebAuthn.RPOrigins,
		Handlers: []httptransport.Registrar{
			registryhandler.New(registrySvc, log, cfg.TrustClientCredentials),
			listhandler.New(listSvc, tokens, log),
			ledgerhandler.New(ledgerSvc, log, cfg.TrustClientCredentials),
			ceremonyhandler.New(ceremonySvc, log, cfg.CeremonyRequestsPerMinute),
		},
		Streaming: []httptransport.Registrar{
			live.NewHandler(roster, ledgerSvc, log, cfg.WebAuthn.RPOrigins),
		},
		HealthChecks: healthChecks,
	})
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting rollcall",
			"addr", cfg.Addr,
			"storage", cfg.Storage,
			"rp_id", cfg.WebAuthn.RPID,
			"trust_client_credentials", cfg.TrustClientCredentials,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	for _, w := range workers {
		g.Go(func() error {
			if err := w(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// newFeed connects to NATS when configured so every instance sees every
// check-in; otherwise entries fan out in process.
func newFeed(cfg config.NATSConfig, log *slog.Logger, checks map[string]httptransport.HealthCheck) (feed, func(), error) {
	if cfg.URL == "" {
		return live.NewHub(), func() {}, nil
	}
	conn, err := live.Connect(cfg)
	if err != nil {
		return nil, nil, err
	}
	broker := live.NewNATSBroker(conn, log)
	checks["nats"] = broker.Ping
	log.Info("live roster fan-out over nats", "url", conn.ConnectedUrlRedacted())
	return broker, func() { _ = conn.Drain() }, nil
}

// newCeremonyStore keeps ceremonies in Redis when configured so any instance
// can finish a ceremony another instance began.
func newCeremonyStore(ctx context.Context, cfg config.Server, log *slog.Logger, checks map[string]httptransport.HealthCheck) (ceremonyservice.Store, func(), error) {
	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		if cfg.IsProduction() {
			log.Warn("ceremonies are kept in process memory, run a single instance or set ROLLCALL_REDIS_URL")
		}
		return ceremonystore.NewInMemory(), func() {}, nil
	}
	checks["redis"] = client.Health
	return ceremonystore.NewRedis(client.Client), func() { _ = client.Close() }, nil
}
