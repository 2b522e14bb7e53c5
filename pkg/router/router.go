package router

import (
	"net/http"
	"strings"
	"time"

	"support-assistant/backend/internal/api"
	"support-assistant/backend/pkg/di"
	"support-assistant/backend/pkg/errors"
	"support-assistant/backend/pkg/logger"
	"support-assistant/backend/pkg/validator"

	"github.com/gin-gonic/gin"
)

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	logger.SetGlobal(container.Logger)

	if container.Config.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Logger first so every request gets a request-scoped logger
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(corsMiddleware(container.Config.Security.AllowedOrigins))

	// Optional OpenAPI request validation; a missing schema is not fatal
	if path := container.Config.OpenAPISchemaPath; path != "" {
		if v, err := validator.NewOpenAPIValidator(path); err != nil {
			container.Logger.LogError(err, "failed to load OpenAPI schema", "path", path)
		} else {
			engine.Use(v.Middleware())
		}
	}

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	c := r.Container

	requireAuth := c.Auth.RequireAuth()

	authHandler := api.NewAuthHandler(c.UserService, c.Redis)
	ticketHandler := api.NewTicketHandler(c.TicketService)
	aiHandler := api.NewAIResponseHandler(c.StreamService)
	aiSocketHandler := api.NewAIResponseSocketHandler(c.StreamService)

	r.Engine.GET("/health", gin.WrapF(c.Health.HTTPHandler()))
	r.Engine.GET("/metrics", gin.WrapH(c.Metrics.Handler()))

	v1 := r.Engine.Group("/api/v1")

	authRoutes := v1.Group("/auth")
	{
		authRoutes.POST("/signup", authHandler.Signup)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/logout", requireAuth, authHandler.Logout)
		authRoutes.GET("/me", requireAuth, authHandler.Me)
	}

	ticketRoutes := v1.Group("/tickets")
	ticketRoutes.Use(requireAuth)
	{
		ticketRoutes.GET("", ticketHandler.List)
		ticketRoutes.POST("", ticketHandler.Create)
		ticketRoutes.GET("/:id", ticketHandler.Get)
		ticketRoutes.PUT("/:id", ticketHandler.Update)
		ticketRoutes.POST("/:id/messages", ticketHandler.AddMessage)
		ticketRoutes.GET("/:id/ai-response", aiHandler.Stream)
		ticketRoutes.GET("/:id/ai-response/ws", aiSocketHandler.Stream)
	}
}

// Run starts the HTTP server on the configured port.
func (r *Router) Run() error {
	return r.Engine.Run(":" + r.Container.Config.Server.Port)
}

// Server returns an http.Server wired to the router for callers that
// manage the listener lifecycle themselves.
func (r *Router) Server() *http.Server {
	return &http.Server{
		Addr:              ":" + r.Container.Config.Server.Port,
		Handler:           r.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// corsMiddleware restricts cross-origin requests to the configured
// origins. An empty allowlist permits any origin.
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := len(allowedOrigins) == 0
		for _, candidate := range allowedOrigins {
			if candidate == "*" || strings.EqualFold(candidate, origin) {
				allowed = true
				break
			}
		}

		if allowed {
			if origin != "" {
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			} else {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			}
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Accept-Encoding, Authorization, Origin, Cache-Control, Upgrade, Connection")
			c.Writer.Header().Set("Access-Control-Max-Age", "86400")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
