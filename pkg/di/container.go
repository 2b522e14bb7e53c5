package di

import (
	"context"
	"fmt"
	"time"

	"support-assistant/backend/ai"
	"support-assistant/backend/internal/service"
	"support-assistant/backend/pkg/cache"
	"support-assistant/backend/pkg/config"
	"support-assistant/backend/pkg/health"
	"support-assistant/backend/pkg/jwt"
	"support-assistant/backend/pkg/logger"
	"support-assistant/backend/pkg/middleware"
	"support-assistant/backend/pkg/observability"
	"support-assistant/backend/pkg/resilience"
	"support-assistant/backend/pkg/secrets"
	"support-assistant/backend/shared/redis"

	"gorm.io/gorm"
)

// Container holds all the dependencies for the application
type Container struct {
	Config *config.Config
	DB     *gorm.DB
	Logger *logger.Logger

	JWTService *jwt.Service
	Redis      *redis.Client
	UserCache  *cache.Cache
	Metrics    *observability.Metrics
	Health     *health.Checker
	Breaker    *resilience.CircuitBreaker

	UserService   *service.UserService
	TicketService *service.TicketService
	StreamService *service.StreamService

	Auth *middleware.Auth
}

// New wires the application dependency graph. Secrets that may live in
// the vault (JWT signing key, AI provider key) are resolved through the
// secrets manager with the environment values as fallback.
func New(cfg *config.Config, db *gorm.DB, log *logger.Logger, sm secrets.Manager) (*Container, error) {
	ctx := context.Background()

	jwtSecret := sm.GetSecretWithDefault(ctx, "JWT_SECRET", cfg.JWT.Secret)
	if jwtSecret == "" {
		return nil, fmt.Errorf("no JWT signing secret configured")
	}
	jwtService := jwt.NewService(jwtSecret, cfg.JWT.Expiry)

	aiClient, err := ai.NewClient(ai.Config{
		APIKey:  sm.GetSecretWithDefault(ctx, "GROQ_API_KEY", cfg.AI.APIKey),
		Model:   cfg.AI.Model,
		BaseURL: cfg.AI.BaseURL,
		Timeout: cfg.AI.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AI client: %w", err)
	}

	metrics, err := observability.Setup("support-assistant")
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	var revocations *redis.Client
	if cfg.Redis.Enabled {
		revocations = redis.NewClient(cfg.Redis.Addr, cfg.Redis.DB)
	}

	var userCache *cache.Cache
	if cfg.Cache.Enabled {
		userCache = cache.New(cfg.Cache.TTL, cfg.Cache.PurgeWindow, cfg.Cache.MaxSize)
	}

	userService := service.NewUserService(db, jwtService)
	ticketService := service.NewTicketService(db)

	breaker := resilience.NewCircuitBreaker(resilience.DefaultConfig("ai-provider"), log)
	streamService := service.NewStreamService(
		db,
		ticketService,
		service.NewAIGenerator(aiClient),
		breaker,
		metrics,
		log,
	)

	checker := health.NewChecker(log, 30*time.Second)
	if sqlDB, err := db.DB(); err == nil {
		checker.RegisterDatabaseCheck(sqlDB.Ping)
	}
	if revocations != nil {
		checker.RegisterRedisCheck(revocations.Ping)
	}

	var authCache middleware.UserCache
	if userCache != nil {
		authCache = userCache
	}
	var revocationStore middleware.RevocationStore
	if revocations != nil {
		revocationStore = revocations
	}
	auth := middleware.NewAuth(jwtService, userService, revocationStore, authCache)

	return &Container{
		Config:        cfg,
		DB:            db,
		Logger:        log,
		JWTService:    jwtService,
		Redis:         revocations,
		UserCache:     userCache,
		Metrics:       metrics,
		Health:        checker,
		Breaker:       breaker,
		UserService:   userService,
		TicketService: ticketService,
		StreamService: streamService,
		Auth:          auth,
	}, nil
}

// Close releases resources held by the container.
func (c *Container) Close(ctx context.Context) error {
	if c.UserCache != nil {
		c.UserCache.Stop()
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.LogError(err, "failed to close redis client")
		}
	}
	if c.Metrics != nil {
		return c.Metrics.Shutdown(ctx)
	}
	return nil
}
