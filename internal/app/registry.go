package app

import (
	"time"

	"go-leave/internal/auth"
	"go-leave/internal/balance"
	"go-leave/internal/config"
	"go-leave/internal/domain"
	"go-leave/internal/leave"
	"go-leave/internal/rbac"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func defaultQuotas(cfg config.LeaveConfig) balance.DefaultQuotas {
	return balance.DefaultQuotas{
		domain.LeaveTypeAnnual:   cfg.DefaultAnnual,
		domain.LeaveTypeSick:     cfg.DefaultSick,
		domain.LeaveTypePersonal: cfg.DefaultPersonal,
	}
}

func registerModules(
	router *gin.Engine,
	gormDB *gorm.DB,
	rdb *redis.Client,
	cfg *config.Config,
	reg prometheus.Registerer,
	logger *zap.Logger,
) error {
	// --- Repositories ---
	authRepo := auth.NewRepository(gormDB)
	balanceRepo := balance.NewRepository(gormDB)
	leaveRepo := leave.NewRepository(gormDB)

	// --- RBAC Core ---
	enforcer, err := rbac.NewEnforcer()
	if err != nil {
		return err
	}
	rbacService := rbac.NewService(enforcer, logger)

	// --- Services ---
	ledger := balance.NewLedger(balanceRepo, defaultQuotas(cfg.Leave), logger)
	authService := auth.NewService(gormDB, authRepo, ledger, auth.Config{
		JWTSecret:           cfg.JWTSecret,
		TokenTTL:            cfg.JWTTTL,
		AdminBootstrapEmail: cfg.AdminBootstrapEmail,
	}, logger)
	balanceService := balance.NewService(gormDB, balanceRepo, rbacService, logger)
	leaveService := leave.NewInstrumentedService(
		gormDB,
		leaveRepo,
		ledger,
		rbacService,
		leave.NewMetrics(reg),
		time.Now,
		logger,
	)

	// --- Handlers ---
	authHandler := auth.NewHandler(authService, cfg.IsProduction(), logger)
	balanceHandler := balance.NewHandler(balanceService, logger)
	leaveHandler := leave.NewHandlerWithRedis(leaveService, rdb, logger)
	rbacHandler := rbac.NewHandler(rbacService)

	// --- Routes Registration ---
	api := router.Group("/api/v1")
	{
		auth.RegisterRoutes(api, authHandler, cfg.JWTSecret)
		balance.RegisterRoutes(api, balanceHandler, rbacService, cfg.JWTSecret)
		leave.RegisterRoutes(api, leaveHandler, rbacService, rdb, cfg.JWTSecret)
		rbac.RegisterRoutes(api, rbacHandler, cfg.JWTSecret)
	}

	return nil
}
