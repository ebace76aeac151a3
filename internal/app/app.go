package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/projecthub/server/cmd/server/docs" // swagger docs
	"github.com/projecthub/server/internal/adapter/outbound/breaker"
	"github.com/projecthub/server/internal/adapter/outbound/memory"
	"github.com/projecthub/server/internal/adapter/outbound/mongodb"
	"github.com/projecthub/server/internal/adapter/outbound/postgres"
	redisadapter "github.com/projecthub/server/internal/adapter/outbound/redis"
	"github.com/projecthub/server/internal/module/auth"
	"github.com/projecthub/server/internal/module/project"
	"github.com/projecthub/server/internal/module/realtime"
	"github.com/projecthub/server/internal/module/task"
	"github.com/projecthub/server/internal/module/user"
	"github.com/projecthub/server/internal/port/outbound"
	"github.com/projecthub/server/internal/shared/cache"
	"github.com/projecthub/server/internal/shared/config"
	"github.com/projecthub/server/internal/shared/database"
	"github.com/projecthub/server/internal/shared/events"
	"github.com/projecthub/server/internal/shared/logger"
	"github.com/projecthub/server/internal/shared/metrics"
	"github.com/projecthub/server/internal/shared/middleware"
)

// App represents the application.
type App struct {
	config    *config.Config
	db        *gorm.DB
	mongo     *mongodb.Store
	redis     redis.UniversalClient
	store     outbound.EntityStore
	router    *gin.Engine
	logger    *logger.Logger
	zapLogger *zap.Logger

	registry *prometheus.Registry
	metrics  *metrics.Metrics

	// Event infrastructure
	eventBus    *events.Bus
	broadcaster *realtime.Broadcaster

	jwt     *auth.JWTManager
	authn   *auth.Authenticator
	limiter outbound.RateLimiterPort

	// Modules
	projectHandler *project.Handler
	taskHandler    *task.Handler
	userHandler    *user.Handler
	wsHandler      *realtime.Handler
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	log := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	zapLog, err := logger.NewZapLogger(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("init zap logger: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app := &App{
		config:    cfg,
		logger:    log,
		zapLogger: zapLog,
		registry:  registry,
		metrics:   metrics.New("projecthub", registry),
	}

	ctx := context.Background()

	if err := app.initStore(ctx); err != nil {
		app.Stop()
		return nil, fmt.Errorf("init store: %w", err)
	}

	// Redis only backs rate limiting; without it requests are not limited.
	if cfg.RateLimit.Enabled && cfg.Redis.Address != "" {
		client, err := cache.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			zapLog.Warn("redis unavailable, rate limiting disabled", zap.Error(err))
		} else {
			app.redis = client
			app.limiter = redisadapter.NewRateLimiter(client)
		}
	}

	app.initModules()
	app.router = app.setupRouter()

	return app, nil
}

// initStore opens the configured backend and guards it with a circuit breaker.
func (a *App) initStore(ctx context.Context) error {
	var backend outbound.EntityStore

	switch a.config.Store.Driver {
	case config.StoreDriverPostgres:
		db, err := database.New(&a.config.Database, a.config.Log.Level == "debug")
		if err != nil {
			return err
		}
		a.db = db

		store := postgres.NewStore(db)
		if a.config.Database.AutoMigrate {
			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		backend = store

	case config.StoreDriverMongo:
		store, err := mongodb.Connect(ctx, &a.config.Mongo, a.zapLogger)
		if err != nil {
			return err
		}
		a.mongo = store

		if err := store.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("ensure indexes: %w", err)
		}
		backend = store

	case config.StoreDriverMemory:
		backend = memory.NewStore()

	default:
		return fmt.Errorf("unknown store driver %q", a.config.Store.Driver)
	}

	settings := breaker.DefaultSettings(a.config.Store.Driver)
	if a.config.Store.FailureThreshold > 0 {
		settings.FailureThreshold = a.config.Store.FailureThreshold
	}
	if a.config.Store.BreakerTimeout > 0 {
		settings.Timeout = a.config.Store.BreakerTimeout
	}
	if a.config.Store.HalfOpenRequests > 0 {
		settings.HalfOpenRequests = a.config.Store.HalfOpenRequests
	}

	a.store = breaker.Wrap(backend, settings, a.zapLogger, a.metrics)
	a.zapLogger.Info("entity store ready", zap.String("driver", a.config.Store.Driver))
	return nil
}

// initModules wires services, the event bus and the realtime fan-out.
func (a *App) initModules() {
	a.eventBus = events.NewBus(a.zapLogger)

	projectService := project.NewService(a.store, a.eventBus, a.zapLogger.Named("project"))
	taskService := task.NewService(a.store, a.eventBus, a.zapLogger.Named("task"))

	a.broadcaster = realtime.NewBroadcaster(
		realtime.NewRegistry(),
		projectService,
		a.config.Realtime.QueueSize,
		a.zapLogger.Named("realtime"),
		a.metrics,
	)
	a.eventBus.Register(a.broadcaster)

	jwtCfg := auth.DefaultJWTConfig()
	jwtCfg.Secret = a.config.Auth.JWTSecret
	if a.config.Auth.Issuer != "" {
		jwtCfg.Issuer = a.config.Auth.Issuer
	}
	a.jwt = auth.NewJWTManager(jwtCfg)
	a.authn = auth.NewAuthenticator(a.jwt, a.store.Users(), a.zapLogger.Named("auth"))

	a.projectHandler = project.NewHandler(projectService)
	a.taskHandler = task.NewHandler(taskService)
	a.userHandler = user.NewHandler(user.NewService(a.store, a.zapLogger.Named("user")))
	a.wsHandler = realtime.NewHandler(a.broadcaster, a.authn, realtime.Config{
		WriteWait:      a.config.Realtime.WriteWait,
		PongWait:       a.config.Realtime.PongWait,
		MaxMessageSize: a.config.Realtime.MaxMessageSize,
		AllowedOrigins: a.config.Realtime.AllowedOrigins,
	}, a.zapLogger.Named("ws"))
}

// setupRouter creates and configures the Gin router.
func (a *App) setupRouter() *gin.Engine {
	if a.config.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = a.config.Server.CORSOrigins

	r.Use(middleware.Recovery(a.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(a.logger))
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.Metrics(a.metrics))

	r.GET("/health", a.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	// Swagger documentation endpoint
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	a.wsHandler.RegisterRoutes(r)

	v1 := r.Group("/api/v1")
	v1.Use(middleware.Auth(a.authn))

	var createLimit []gin.HandlerFunc
	if a.limiter != nil {
		apiLimit := middleware.APIRateLimitConfig(a.config.RateLimit.APILimit, a.config.RateLimit.APIWindow)
		apiLimit.Metrics = a.metrics
		v1.Use(middleware.RateLimit(a.limiter, apiLimit))

		createCfg := middleware.CreateRateLimitConfig(a.config.RateLimit.CreateLimit, a.config.RateLimit.CreateWindow)
		createCfg.Metrics = a.metrics
		createLimit = append(createLimit, middleware.RateLimit(a.limiter, createCfg))
	}

	a.projectHandler.RegisterRoutes(v1, createLimit...)
	a.taskHandler.RegisterRoutes(v1, createLimit...)
	a.userHandler.RegisterRoutes(v1)

	return r
}

func (a *App) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := a.store.Ping(ctx); err != nil {
		a.logger.Warn("health check failed", logger.Err(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"store":  a.config.Store.Driver,
		})
		return
	}

	stats := a.broadcaster.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"store":    a.config.Store.Driver,
		"sessions": stats.Sessions,
		"rooms":    stats.Rooms,
	})
}

// Router returns the HTTP router.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Store returns the breaker-guarded entity store.
func (a *App) Store() outbound.EntityStore {
	return a.store
}

// Tokens returns the JWT manager that signs and validates access tokens.
func (a *App) Tokens() *auth.JWTManager {
	return a.jwt
}

// Logger returns the zap logger.
func (a *App) Logger() *zap.Logger {
	return a.zapLogger
}

// Stop releases external connections.
func (a *App) Stop() {
	if a.zapLogger != nil {
		_ = a.zapLogger.Sync()
	}

	if a.redis != nil {
		_ = a.redis.Close()
	}

	if a.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.mongo.Close(ctx)
	}

	if a.db != nil {
		_ = database.Close(a.db)
	}
}
