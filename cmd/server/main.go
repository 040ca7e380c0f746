// Karma server: campaigns, task completions, the coin ledger, the reward
// catalog, weekly leagues, and admin backup endpoints.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	adminapi "github.com/karmahq/karma-server/internal/api/admin"
	campaignsapi "github.com/karmahq/karma-server/internal/api/campaigns"
	leagueapi "github.com/karmahq/karma-server/internal/api/league"
	rewardsapi "github.com/karmahq/karma-server/internal/api/rewards"
	usersapi "github.com/karmahq/karma-server/internal/api/users"
	"github.com/karmahq/karma-server/internal/cache"
	"github.com/karmahq/karma-server/internal/config"
	"github.com/karmahq/karma-server/internal/notifier"
	"github.com/karmahq/karma-server/internal/repository"
	backupsvc "github.com/karmahq/karma-server/internal/service/backup"
	campaignsvc "github.com/karmahq/karma-server/internal/service/campaigns"
	"github.com/karmahq/karma-server/internal/service/completions"
	leaguesvc "github.com/karmahq/karma-server/internal/service/league"
	"github.com/karmahq/karma-server/internal/service/ledger"
	"github.com/karmahq/karma-server/internal/service/progress"
	rewardsvc "github.com/karmahq/karma-server/internal/service/rewards"
	"github.com/karmahq/karma-server/internal/service/scheduler"
	"github.com/karmahq/karma-server/pkg/logger"
)

func main() {
	// Load .env file if present (development convenience)
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	log.Info().Str("environment", cfg.Server.Environment).Msg("Starting karma server")

	db, err := repository.NewDB(&cfg.Database.Postgres, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	redisCache, err := cache.New(&cfg.Database.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisCache.Close()

	store := repository.NewStore(db)
	notifierClient := notifier.NewClient(&cfg.Notifier, log)

	ledgerService := ledger.NewService(store, &cfg.Admin, log)
	campaignService := campaignsvc.NewService(store, log)
	leagueService := leaguesvc.NewService(store, redisCache, &cfg.Leagues, log)
	completionService := completions.NewService(store, notifierClient, leagueService, log)
	aggregator := progress.NewAggregator(store, log)
	rewardService := rewardsvc.NewService(store, log)
	backupService := backupsvc.NewService(store, log)

	if cfg.Rewards.CatalogFile != "" {
		if err := rewardService.SeedCatalog(cfg.Rewards.CatalogFile); err != nil {
			log.Fatal().Err(err).Str("file", cfg.Rewards.CatalogFile).Msg("Failed to seed reward catalog")
		}
	}

	schedulerService := scheduler.NewService(cfg, store, aggregator, leagueService, notifierClient, log)
	if err := schedulerService.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}
	defer schedulerService.Stop()

	router := setupRouter(cfg, log, ledgerService, completionService, campaignService, aggregator, rewardService, leagueService, backupService, redisCache, db)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Forced shutdown")
	}
}

func setupRouter(
	cfg *config.Config,
	log *logger.Logger,
	ledgerService *ledger.Service,
	completionService *completions.Service,
	campaignService *campaignsvc.Service,
	aggregator *progress.Aggregator,
	rewardService *rewardsvc.Service,
	leagueService *leaguesvc.Service,
	backupService *backupsvc.Service,
	redisCache cache.Cache,
	db *repository.DB,
) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	usersHandler := usersapi.NewHandler(ledgerService, completionService, log)
	campaignsHandler := campaignsapi.NewHandler(campaignService, completionService, aggregator, log)
	rewardsHandler := rewardsapi.NewHandler(rewardService, log)
	leagueHandler := leagueapi.NewHandler(leagueService, log)
	adminHandler := adminapi.NewHandler(backupService, log)

	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		checks := gin.H{"database": "ok", "cache": "ok"}
		if sqlDB, err := db.DB.DB(); err != nil || sqlDB.Ping() != nil {
			checks["database"] = "unreachable"
			status = http.StatusServiceUnavailable
		}
		if err := redisCache.Health(c.Request.Context()); err != nil {
			checks["cache"] = "unreachable"
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, checks)
	})

	if cfg.Metrics.Prometheus.Enabled {
		router.GET(cfg.Metrics.Prometheus.Path, gin.WrapH(promhttp.Handler()))
	}

	api := router.Group("/api/v1")
	{
		api.POST("/auth/login", usersHandler.Login)

		api.GET("/users/:id", usersHandler.GetUser)
		api.GET("/users/:id/transactions", usersHandler.GetTransactions)
		api.GET("/users/:id/redeemed-codes", usersHandler.GetRedeemedCodes)
		api.GET("/users/:id/completions", usersHandler.GetCompletions)
		api.POST("/users/:id/social-accounts", usersHandler.AddSocialAccount)
		api.POST("/users/:id/contribution", usersHandler.AdjustContribution)
		api.GET("/users/:id/balance/verify", usersHandler.VerifyBalance)

		api.POST("/campaigns", campaignsHandler.CreateCampaign)
		api.GET("/campaigns", campaignsHandler.ListCampaigns)
		api.GET("/campaigns/:id", campaignsHandler.GetCampaign)
		api.GET("/campaigns/:id/progress", campaignsHandler.GetProgress)
		api.POST("/campaigns/:id/activate", campaignsHandler.Activate)
		api.POST("/campaigns/:id/reject", campaignsHandler.RejectCampaign)
		api.POST("/campaigns/:id/tasks", campaignsHandler.AddTask)
		api.POST("/campaigns/:id/tasks/:taskID/completions", campaignsHandler.SubmitCompletion)

		api.GET("/completions/pending", campaignsHandler.ListPendingCompletions)
		api.POST("/completions/:id/approve", campaignsHandler.ApproveCompletion)
		api.POST("/completions/:id/reject", campaignsHandler.RejectCompletion)

		api.GET("/rewards", rewardsHandler.GetCatalog)
		api.GET("/rewards/:id", rewardsHandler.GetReward)
		api.POST("/rewards/:id/redeem", rewardsHandler.Redeem)
		api.POST("/rewards", rewardsHandler.CreateReward)
		api.PUT("/rewards/:id", rewardsHandler.UpdateReward)
		api.DELETE("/rewards/:id", rewardsHandler.DeleteReward)
		api.POST("/rewards/categories", rewardsHandler.CreateCategory)

		api.GET("/league/users/:id", leagueHandler.GetStanding)
		api.GET("/league/leaderboard", leagueHandler.GetLeaderboard)

		api.GET("/admin/backup", adminHandler.ExportBackup)
		api.GET("/admin/backup/users/:id", adminHandler.ExportUserBackup)
		api.POST("/admin/restore", adminHandler.Restore)
	}

	return router
}
