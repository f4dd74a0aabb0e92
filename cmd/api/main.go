package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/lukehurtiu/community-classes-api/api/swagger"
	"github.com/lukehurtiu/community-classes-api/internal/handler"
	"github.com/lukehurtiu/community-classes-api/internal/middleware"
	"github.com/lukehurtiu/community-classes-api/internal/models"
	"github.com/lukehurtiu/community-classes-api/internal/repository"
	"github.com/lukehurtiu/community-classes-api/internal/service"
	"github.com/lukehurtiu/community-classes-api/pkg/cache"
	"github.com/lukehurtiu/community-classes-api/pkg/config"
	"github.com/lukehurtiu/community-classes-api/pkg/database"
	"github.com/lukehurtiu/community-classes-api/pkg/logger"
	corsmiddleware "github.com/lukehurtiu/community-classes-api/pkg/middleware/cors"
	reqidmiddleware "github.com/lukehurtiu/community-classes-api/pkg/middleware/requestid"
)

// @title Community Classes API
// @version 1.0.0
// @description Registration API for community classes
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	cacheRepo := repository.NewCacheRepository(nil, logr)
	if cfg.Classes.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, class view cache disabled", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}

	userRepo := repository.NewUserRepository(db)
	classRepo := repository.NewClassRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	classSvc := service.NewClassService(classRepo, cacheRepo, nil, logr, cfg.Classes.CacheTTL)
	admissionSvc := service.NewAdmissionService(registrationRepo, classRepo, classSvc, metricsSvc, logr)
	rosterSvc := service.NewRosterService(registrationRepo, classRepo, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	classHandler := handler.NewClassHandler(classSvc, rosterSvc)
	registrationHandler := handler.NewRegistrationHandler(admissionSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	if metricsSvc != nil {
		r.Use(middleware.Metrics(metricsSvc))
	}

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	if metricsSvc != nil {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/signup", authHandler.Signup)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	admin := api.Group("/admin", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/classes", classHandler.AdminList)
	admin.POST("/classes", middleware.Audit(userRepo, logr, models.AuditActionClassCreate, "classes"), classHandler.Create)
	admin.GET("/classes/:id/roster/export", classHandler.ExportRoster)

	member := api.Group("", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleMember))
	member.GET("/classes", classHandler.MemberList)
	member.POST("/registrations", middleware.Audit(userRepo, logr, models.AuditActionRegister, "registrations"), registrationHandler.Create)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
