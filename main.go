// ClearSign keeps every user's deployed email signature converged with the
// signature their organization's assignment rules resolve for them.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/clearsign-io/clearsign/app/scheduler"
	"github.com/clearsign-io/clearsign/app/services"
	businessflow "github.com/clearsign-io/clearsign/business_flow"
	"github.com/clearsign-io/clearsign/config"
	"github.com/clearsign-io/clearsign/repository"
)

func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	db, err := setupDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("failed to set up database: %v", err)
	}

	redisClient := setupRedis(cfg.Cache)

	// Repositories
	orgRepo := repository.NewOrganizationRepository(db)
	userRepo := repository.NewDirectoryUserRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	dynamicRepo := repository.NewDynamicGroupRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	templateRepo := repository.NewSignatureTemplateRepository(db)
	assignmentRepo := repository.NewSignatureAssignmentRepository(db)
	campaignRepo := repository.NewBannerCampaignRepository(db)
	syncStatusRepo := repository.NewSignatureSyncStatusRepository(db)

	// Services
	tokens := buildTokenSource(cfg.Google)
	deployer := services.NewGoogleSignatureClientWithBaseURL(tokens, cfg.Google.APIBaseURL)
	var renderer services.TemplateRenderer = services.NewPlaceholderTemplateRenderer()
	if redisClient != nil {
		renderer = services.NewCachedTemplateRenderer(renderer, redisClient, cfg.Cache.RenderTTL)
	}

	// Business flows
	resolver := businessflow.NewAssignmentResolverFlow(userRepo, assignmentRepo, groupRepo, dynamicRepo, departmentRepo, campaignRepo)
	engine := businessflow.NewSyncEngineFlow(userRepo, orgRepo, templateRepo, syncStatusRepo, resolver, renderer, deployer)
	batchFlow := businessflow.NewBatchSyncFlow(userRepo, orgRepo, syncStatusRepo, engine, deployer)
	campaignFlow := businessflow.NewCampaignFlow(campaignRepo, groupRepo, syncStatusRepo, resolver, db)

	// Scheduler
	metrics := scheduler.NewMetrics()
	sched := scheduler.NewSignatureScheduler(orgRepo, batchFlow, campaignFlow, cfg.Scheduler, metrics)
	stopScheduler := sched.Start(context.Background())
	defer stopScheduler()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = startMetricsServer(cfg.Metrics)
	}

	log.Printf("clearsign started: sync every %s, campaigns every %s",
		cfg.Scheduler.SyncInterval, cfg.Scheduler.CampaignInterval)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Printf("shutdown signal received, stopping")
	stopScheduler()

	if metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(ctx); err != nil {
			log.Printf("metrics server shutdown failed: %v", err)
		}
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// setupDatabase opens the postgres connection and configures pooling
func setupDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{}
	if cfg.SlowQueryLog {
		gormCfg.Logger = gormlogger.New(
			log.New(os.Stdout, "gorm ", log.LstdFlags|log.LUTC),
			gormlogger.Config{
				SlowThreshold:             cfg.SlowQueryTime,
				LogLevel:                  gormlogger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("database connection established with %d max open connections", cfg.MaxOpenConns)
	return db, nil
}

// setupRedis connects the render cache; a missing Redis is not fatal, the
// renderer just skips caching
func setupRedis(cfg config.CacheConfig) *redis.Client {
	if !cfg.RedisEnabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("redis unavailable at %s, render cache disabled: %v", cfg.Addr(), err)
		_ = client.Close()
		return nil
	}

	log.Printf("redis connection established to %s (db=%d)", cfg.Addr(), cfg.RedisDB)
	return client
}

func buildTokenSource(cfg config.GoogleConfig) services.TokenSource {
	if cfg.CredentialsFile != "" {
		tokens, err := services.NewTokenSourceFromFile(cfg.CredentialsFile)
		if err == nil {
			return tokens
		}
		log.Printf("failed to load google credentials from %s: %v", cfg.CredentialsFile, err)
	}
	return services.StaticTokenSource{AccessToken: os.Getenv("GOOGLE_ACCESS_TOKEN")}
}

// startMetricsServer exposes prometheus metrics on a dedicated listener
func startMetricsServer(cfg config.MetricsConfig) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server failed: %v", err)
		}
	}()
	log.Printf("metrics exposed on %s%s", srv.Addr, cfg.Path)
	return srv
}
