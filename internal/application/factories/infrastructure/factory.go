package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	pgxpool "github.com/jackc/pgx/v5/pgxpool"
	go_redis "github.com/redis/go-redis/v9"

	"github.com/Maycon01282/bot2/internal/config"
	"github.com/Maycon01282/bot2/internal/dedupe"
	"github.com/Maycon01282/bot2/internal/infrastructure/kafka"
	"github.com/Maycon01282/bot2/internal/infrastructure/postgres"
	"github.com/Maycon01282/bot2/internal/infrastructure/redis"
	"github.com/Maycon01282/bot2/internal/usecase"
)

const (
	connectAttempts = 5
	connectBackoff  = 2 * time.Second
	redisKeyPrefix  = "relay:processed"
)

// Factory lazily builds the shared infrastructure clients and closes
// whatever it built.
type Factory struct {
	cfg      *config.Config
	logger   *slog.Logger
	pgPool   *pgxpool.Pool
	redisCli *go_redis.Client
	producer *kafka.Producer
}

func NewFactory(cfg *config.Config, logger *slog.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger,
	}
}

func (f *Factory) Postgres(ctx context.Context) (*pgxpool.Pool, error) {
	if f.pgPool != nil {
		return f.pgPool, nil
	}

	var pool *pgxpool.Pool
	var err error

	for i := 0; i < connectAttempts; i++ {
		pool, err = postgres.NewClient(ctx, postgres.Config{
			Host:     f.cfg.Postgres.Host,
			Port:     f.cfg.Postgres.Port,
			User:     f.cfg.Postgres.User,
			Password: f.cfg.Postgres.Password,
			DBName:   f.cfg.Postgres.DBName,
		})
		if err == nil {
			break
		}
		f.logger.Warn("failed to connect to postgres, retrying",
			"attempt", i+1, "max", connectAttempts, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectBackoff):
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to init postgres after retries: %w", err)
	}

	f.pgPool = pool
	return pool, nil
}

func (f *Factory) Redis(ctx context.Context) (*go_redis.Client, error) {
	if f.redisCli != nil {
		return f.redisCli, nil
	}

	client, err := redis.NewClient(ctx, redis.Config{
		Addr:     f.cfg.Redis.Addr,
		Password: f.cfg.Redis.Password,
		DB:       f.cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init redis: %w", err)
	}

	f.redisCli = client
	return client, nil
}

// DedupeStore builds the processed-event store selected by DEDUPE_BACKEND.
func (f *Factory) DedupeStore(ctx context.Context) (dedupe.Store, error) {
	ttl := f.cfg.Dedupe.TTL

	switch f.cfg.Dedupe.Backend {
	case config.DedupeMemory:
		return dedupe.NewMemoryStore(ttl), nil
	case config.DedupeRedis:
		client, err := f.Redis(ctx)
		if err != nil {
			return nil, err
		}
		return redis.NewDedupeStore(client, redisKeyPrefix, ttl), nil
	case config.DedupePostgres:
		pool, err := f.Postgres(ctx)
		if err != nil {
			return nil, err
		}
		repo := postgres.NewInboxRepository(pool, ttl)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown dedupe backend %q", f.cfg.Dedupe.Backend)
	}
}

// Publisher returns the Kafka producer when enabled, otherwise a no-op.
func (f *Factory) Publisher() usecase.Publisher {
	if !f.cfg.Kafka.Enabled {
		return usecase.NopPublisher{}
	}
	if f.producer == nil {
		f.producer = kafka.NewProducer(kafka.Config{
			Brokers: f.cfg.Kafka.Brokers,
			Topic:   f.cfg.Kafka.Topic,
		})
	}
	return f.producer
}

func (f *Factory) Close() {
	if f.producer != nil {
		if err := f.producer.Close(); err != nil {
			f.logger.Warn("failed to close kafka producer", "error", err)
		}
	}
	if f.pgPool != nil {
		f.pgPool.Close()
	}
	if f.redisCli != nil {
		f.redisCli.Close()
	}
}
