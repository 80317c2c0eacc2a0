package app

import (
	"net/http"

	"go-leave/internal/auth"
	"go-leave/internal/balance"
	"go-leave/internal/config"
	"go-leave/internal/leave"
	"go-leave/internal/middleware"
	"go-leave/internal/shared/connection"
	"go-leave/internal/shared/response"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewRouter builds the gin engine with the ambient middleware chain and the
// health and metrics endpoints. Feature routes are added by BuildApp.
func NewRouter(cfg *config.Config, reg *prometheus.Registry, logger *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.ContextLogger(logger),
		middleware.NewHTTPMetrics(reg).Middleware(),
	)

	router.GET("/healthz", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"}, nil)
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	return router
}

// NewRegistry returns a registry carrying the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(&auth.User{}, &balance.LeaveBalance{}, &leave.LeaveRequest{})
}

// BuildApp connects the infrastructure, migrates the schema and registers every
// feature module on router. The returned cleanup closes the connections.
func BuildApp(router *gin.Engine, cfg *config.Config, reg *prometheus.Registry, logger *zap.Logger) (func(), error) {
	log := logger.Named("app")

	gormDB, err := connection.ConnectGORMWithRetry(cfg.DB.DSN(), cfg.DB.MaxRetries, logger)
	if err != nil {
		return nil, err
	}
	log.Info("database connection established")

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, err
	}

	redisClient, err := connection.ConnectRedisWithRetry(cfg.Redis.Addr, cfg.Redis.MaxRetries, logger)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	log.Info("redis connection established")

	cleanup := func() {
		_ = redisClient.Close()
		_ = sqlDB.Close()
	}

	if err := migrate(gormDB); err != nil {
		cleanup()
		return nil, err
	}

	if err := registerModules(router, gormDB, redisClient, cfg, reg, logger); err != nil {
		cleanup()
		return nil, err
	}

	return cleanup, nil
}
