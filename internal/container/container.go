package container

import (
	"context"
	"fmt"

	"electrichouse/crawler/internal/client"
	"electrichouse/crawler/internal/config"
	"electrichouse/crawler/internal/normalizer"
	"electrichouse/crawler/internal/output"
	"electrichouse/crawler/internal/proxy"
	"electrichouse/crawler/internal/queue"
	"electrichouse/crawler/internal/repository"
	"electrichouse/crawler/internal/service"
	"electrichouse/crawler/internal/state"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Container holds all initialized components
type Container struct {
	Config       *config.Config
	Client       client.ElectricHouseClient
	Writer       output.Writer
	Repository   repository.ProductRepository
	Queue        queue.Queue
	StateManager state.StateManager

	Service *service.Service

	db    *pgxpool.Pool
	redis *redis.Client
}

// New creates a new container with all dependencies initialized. Redis and
// Postgres are only dialed when enabled in the config; the crawler works
// without either.
func New(cfg *config.Config) (*Container, error) {
	container := &Container{
		Config: cfg,
	}

	proxySupplier, err := proxy.New(context.Background(), cfg.Store.Proxies, cfg.Store.GraphQLEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize proxy supplier: %w", err)
	}

	if cfg.Database.Enabled {
		db, err := pgxpool.New(context.Background(),
			fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
				cfg.Database.Host,
				cfg.Database.Port,
				cfg.Database.User,
				cfg.Database.Password,
				cfg.Database.Name,
			))
		if err != nil {
			return nil, err
		}
		container.db = db
		container.Repository = repository.NewProductRepository(db)
		log.Info("✅ Database mirror enabled")
	}

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.Database,
		})

		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Info("✅ Connected to Redis successfully")

		redisQueue, err := queue.NewRedisQueue(rdb, cfg.Redis)
		if err != nil {
			return nil, err
		}

		container.redis = rdb
		container.Queue = redisQueue
		container.StateManager = state.NewRedisStateManager(rdb)
	}

	container.Client = client.NewElectricHouseClient(cfg.Store, proxySupplier)
	container.Writer = output.NewJSONWriter(cfg.Output.Path)

	container.Service = service.NewService(
		container.Client,
		normalizer.New(cfg.Store.SourceSite),
		container.Writer,
		container.Repository,
		container.Queue,
		container.StateManager,
		cfg,
	)

	return container, nil
}

// Run executes one full crawl
func (c *Container) Run(ctx context.Context) error {
	_, err := c.Service.Crawl(ctx)
	return err
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Info("Shutting down container...")

	if c.db != nil {
		c.db.Close()
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			log.Warnf("⚠️ Failed to close Redis client: %v", err)
		}
	}

	log.Info("Container shut down successfully")
	return nil
}
