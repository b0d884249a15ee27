package main

import (
	"bookstore-service/internal/api"
	"bookstore-service/internal/cache"
	"bookstore-service/internal/config"
	"bookstore-service/internal/consumer"
	"bookstore-service/internal/database"
	"bookstore-service/internal/metrics"
	"bookstore-service/internal/publisher"
	"bookstore-service/internal/repository"
	"bookstore-service/internal/service"
	"bookstore-service/migrations"
	"context"
	"errors"
	"fmt"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func migrate(ctx context.Context, cfg *config.Config) error {
	db, dialect, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.Migrate(ctx, db, dialect, cfg.Database.MigrateRetries); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	version, err := migrations.CurrentVersion(ctx, db)
	if err != nil {
		return err
	}
	log.Info().Msgf("Schema at version %s", version)
	return nil
}

func newCache(ctx context.Context, cfg config.RedisConfig) cache.Store {
	if cfg.Addr == "" {
		log.Info().Msg("No Redis address configured, using in-process cache")
		return cache.NewMemory(cfg.MemorySize)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msgf("Redis at %s is not reachable yet", cfg.Addr)
	}
	return cache.NewRedis(rdb)
}

func serve(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, dialect, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.MigrateOnStart {
		if err := migrations.Migrate(ctx, db, dialect, cfg.Database.MigrateRetries); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}

	store := newCache(ctx, cfg.Redis)
	m := metrics.New()

	// Initialize services
	bookService := service.NewBookService(repository.NewBookRepository(db), store, cfg.Redis.BookTTL)
	userService := service.NewUserService(repository.NewUserRepository(db), cfg.Auth)

	var events service.EventPublisher
	if cfg.Kafka.Enabled {
		writer := config.NewKafkaWriter(cfg.Kafka)
		defer writer.Close()
		events = publisher.NewKafka(writer)
	} else {
		events = publisher.NewLocal(bookService.OrderPlaced)
	}

	orderService := service.NewOrderService(
		repository.NewTxFactory(db, dialect),
		repository.NewOrderRepository(db),
		events,
		store,
		m,
		cfg.Orders,
	)

	e := api.NewRouter(cfg, api.Handlers{
		Auth:   api.NewAuthHandler(userService),
		Books:  api.NewBookHandler(bookService),
		Users:  api.NewUserHandler(userService),
		Orders: api.NewOrderHandler(orderService),
	}, m)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Msgf("Listening on :%s", cfg.Server.Port)
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	if cfg.Kafka.Enabled {
		c := consumer.NewConsumer(config.NewKafkaReader(cfg.Kafka), bookService)
		g.Go(func() error {
			return c.Run(gctx)
		})
	}

	return g.Wait()
}
