package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kozaktomas/photo-timeline/internal/config"
	"github.com/kozaktomas/photo-timeline/internal/database/postgres"
	"github.com/kozaktomas/photo-timeline/internal/debounce"
	"github.com/kozaktomas/photo-timeline/internal/ingest"
	"github.com/kozaktomas/photo-timeline/internal/queue"
	"github.com/kozaktomas/photo-timeline/internal/storage"
)

// services bundles the shared infrastructure handles. Everything is passed
// explicitly so commands stay wireable and tests can build their own.
type services struct {
	cfg         *config.Config
	logger      *slog.Logger
	pool        *postgres.Pool
	store       *storage.Store
	queueClient *queue.Client
	coordinator *debounce.Coordinator
	photos      *postgres.PhotoRepository
	meetings    *postgres.MeetingRepository
	ingest      *ingest.Service
}

// initServices validates the fatal configuration (database, storage root,
// Redis) and wires the shared components. Misconfiguration fails here, at
// startup, never later in a worker.
func initServices() (*services, error) {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}
	if cfg.Storage.Root == "" {
		return nil, errors.New("STORAGE_ROOT environment variable is required")
	}

	pool, err := postgres.Open(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	store, err := storage.New(cfg.Storage.Root)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	queueClient := queue.NewClient(cfg)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		redisClient.Close()
		queueClient.Close()
		pool.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	kv := debounce.NewRedisKV(redisClient)
	coordinator := debounce.New(kv, queueClient,
		time.Duration(cfg.Cluster.DebounceTTL)*time.Second,
		time.Duration(cfg.Cluster.RetryDelay)*time.Second,
		cfg.Cluster.MaxRetries,
		logger)

	photos := postgres.NewPhotoRepository(pool)
	meetings := postgres.NewMeetingRepository(pool)
	ingestSvc := ingest.New(photos, store, queueClient, coordinator, cfg.Mime, logger)

	return &services{
		cfg:         cfg,
		logger:      logger,
		pool:        pool,
		store:       store,
		queueClient: queueClient,
		coordinator: coordinator,
		photos:      photos,
		meetings:    meetings,
		ingest:      ingestSvc,
	}, nil
}

func (s *services) close() {
	s.queueClient.Close()
	s.pool.Close()
}
