package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/OFF-rtk/sentinel-auditor/internal/enforcement/ports"
	"github.com/OFF-rtk/sentinel-auditor/internal/enforcement/store"
	"github.com/OFF-rtk/sentinel-auditor/internal/intel"
	"github.com/OFF-rtk/sentinel-auditor/internal/platform/config"
	"github.com/OFF-rtk/sentinel-auditor/internal/platform/kafka"
	"github.com/OFF-rtk/sentinel-auditor/internal/platform/metrics"
	"github.com/OFF-rtk/sentinel-auditor/internal/platform/postgres"
	"github.com/OFF-rtk/sentinel-auditor/internal/platform/redis"
	"github.com/OFF-rtk/sentinel-auditor/internal/policystore"
	"github.com/OFF-rtk/sentinel-auditor/internal/trace"
)

const traceBufferSize = 4096

// OpenStore returns the shared enforcement store selected by cfg.Backend and a
// func releasing its connections.
func OpenStore(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (ports.Store, func() error, error) {
	if cfg.Backend == "memory" {
		logger.Warn("using in-memory enforcement store; bans are not shared with other services")
		return store.NewMemoryStore(), func() error { return nil }, nil
	}
	clients, err := redis.Open(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open redis: %w", err)
	}
	logger.Info("redis connected", "split_rate_limit", clients.Limiter != clients.Shared)
	return store.NewRedisStore(clients.Shared, store.WithLimiterClient(clients.Limiter)), clients.Close, nil
}

// OpenPolicyStore returns the pgvector store when a database is configured and
// an in-memory store seeded from the policy file otherwise.
func OpenPolicyStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (intel.PolicyStore, func(), error) {
	if cfg.Database.URL == "" {
		docs, err := policystore.LoadDocuments(cfg.Database.PolicyFile)
		if err != nil {
			return nil, nil, fmt.Errorf("load policies: %w", err)
		}
		logger.Info("using in-memory policy store", "policies", len(docs), "file", cfg.Database.PolicyFile)
		return policystore.NewMemoryStore(docs...), func() {}, nil
	}
	ps, closePool, err := OpenPostgresPolicyStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("using postgres policy store", "table", cfg.Database.PolicyTable)
	return ps, closePool, nil
}

// OpenPostgresPolicyStore connects the pgvector store. The returned func closes
// its pool.
func OpenPostgresPolicyStore(ctx context.Context, cfg *config.Config) (*policystore.PostgresStore, func(), error) {
	embedder, err := policystore.NewHTTPEmbedder(cfg.Embeddings, nil)
	if err != nil {
		return nil, nil, err
	}
	pool, err := postgres.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	ps, err := policystore.NewPostgresStore(pool, embedder, cfg.Database.PolicyTable)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return ps, pool.Close, nil
}

type traceSinks struct {
	options []trace.Option
	closers []closer
}

// openTraceSinks always logs transitions. The trace table and the Kafka topic
// are added behind async buffers when configured.
func openTraceSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (traceSinks, error) {
	out := traceSinks{options: []trace.Option{trace.WithSink(trace.NewLogSink(logger))}}
	async := func(s trace.Sink) trace.Sink {
		return trace.NewAsyncSink(s, traceBufferSize,
			trace.WithAsyncLogger(logger),
			trace.WithAsyncMetrics(m),
		)
	}

	if cfg.Database.URL != "" {
		db, err := postgres.OpenDB(ctx, cfg.Database.URL)
		if err != nil {
			return out, fmt.Errorf("trace database: %w", err)
		}
		out.closers = append(out.closers, closer{name: "trace database", fn: func(context.Context) error { return db.Close() }})
		sink, err := trace.NewPostgresSink(db, cfg.Database.TraceTable)
		if err != nil {
			return out, err
		}
		if err := sink.Migrate(ctx); err != nil {
			return out, err
		}
		out.options = append(out.options, trace.WithSink(async(sink)))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		client, err := kafka.NewProducer(ctx, cfg.Kafka.Brokers, cfg.Kafka.TraceTopic, logger)
		if err != nil {
			return out, fmt.Errorf("trace kafka: %w", err)
		}
		out.closers = append(out.closers, closer{name: "trace kafka", fn: func(context.Context) error { client.Close(); return nil }})
		sink, err := trace.NewKafkaSink(client, cfg.Kafka.TraceTopic)
		if err != nil {
			return out, err
		}
		out.options = append(out.options, trace.WithSink(async(sink)))
	}
	return out, nil
}
