package main

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"staypay/internal/app/middleware"
	"staypay/internal/app/policies"
	"staypay/internal/app/uow"
	"staypay/internal/infra/config"
	mongodb "staypay/internal/infra/db/mongo"
	"staypay/internal/infra/db/postgres"
	"staypay/internal/infra/fixtures"
	"staypay/internal/infra/inbox"
	redislock "staypay/internal/infra/lock/redis"
	"staypay/internal/infra/obs"
	"staypay/internal/infra/outbox"
	"staypay/internal/infra/storage/memory"
)

// persistence is everything the selected store driver provides.
type persistence struct {
	factory     uow.UoWFactory
	idempotency middleware.IdempotencyStore
	outbox      outbox.Source
	rates       fixtures.RateTableWriter
	checks      map[string]obs.Check
	closers     []func(context.Context) error
}

func openPersistence(ctx context.Context, cfg config.Config, logger *slog.Logger) (*persistence, error) {
	p := &persistence{checks: map[string]obs.Check{}}
	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		p.closers = append(p.closers, client.Close)
		p.checks["mongo"] = client.Ping

		bookings, err := mongodb.NewBookingRepository(ctx, client.DB)
		if err != nil {
			return nil, fmt.Errorf("prepare bookings: %w", err)
		}
		box, err := outbox.NewStore(ctx, client.DB)
		if err != nil {
			return nil, fmt.Errorf("prepare outbox: %w", err)
		}
		received, err := inbox.NewStore(ctx, client.DB, cfg.PaymentsGroup)
		if err != nil {
			return nil, fmt.Errorf("prepare inbox: %w", err)
		}
		idem, err := mongodb.NewIdempotencyStore(ctx, client.DB)
		if err != nil {
			return nil, fmt.Errorf("prepare idempotency store: %w", err)
		}
		rates := mongodb.NewRateTableRepository(client.DB)
		p.factory = mongodb.Factory{DB: client.DB, RateTables: rates, Bookings: bookings, Outbox: box, Inbox: received}
		p.idempotency = idem
		p.outbox = box
		p.rates = rates

	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.PostgresDSN, logger)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, func(context.Context) error { return db.Close() })
		p.checks["postgres"] = db.PingContext
		p.factory = postgres.Factory{DB: db, Consumer: cfg.PaymentsGroup}
		p.idempotency = &postgres.IdempotencyStore{DB: db}
		p.outbox = &postgres.OutboxSource{DB: db}
		p.rates = postgres.NewRateTableRepository(db)

	default:
		store := memory.NewStore()
		p.factory = memory.Factory{Store: store}
		p.idempotency = memory.NewIdempotencyStore()
		p.outbox = store.Outbox()
		p.rates = store
	}
	logger.Info("store driver ready", "driver", cfg.StoreDriver)
	return p, nil
}

func (p *persistence) close(ctx context.Context, logger *slog.Logger) {
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](ctx); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
}

// openLocker returns the Redis locker when REDIS_ADDR is set and the
// in-process one otherwise.
func openLocker(cfg config.Config, p *persistence) policies.BookingLocker {
	if cfg.RedisAddr == "" {
		return memory.NewLocker()
	}
	client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
	p.closers = append(p.closers, func(context.Context) error { return client.Close() })
	locker := redislock.NewLocker(client)
	p.checks["redis"] = locker.Ping
	return locker
}

// seedRates imports rate fixtures. The memory driver always looks in the
// default location; the database drivers only seed when RATE_FIXTURES is set.
func seedRates(ctx context.Context, cfg config.Config, p *persistence, logger *slog.Logger) error {
	path := cfg.RateFixtures
	if path == "" {
		if cfg.StoreDriver != config.DriverMemory {
			return nil
		}
		path = fixtures.DefaultPath()
	}
	_, err := fixtures.Seed(ctx, p.rates, path, logger)
	return err
}
