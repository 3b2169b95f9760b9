package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"revintel/internal/config"
	cronrunner "revintel/internal/cron"
	"revintel/internal/db"
	"revintel/internal/handler"
	"revintel/internal/logger"
	"revintel/internal/outcome"
	gormrepository "revintel/internal/repository/gorm"
	"revintel/internal/scoring"
	"revintel/internal/service"
)

func main() {
	cfgPath := os.Getenv("RI_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("RI_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)
	tracker := &outcome.Tracker{
		Repo:   store,
		Logger: logger,
		Window: cfg.Accuracy.Window,
	}
	scorer := &scoring.Scorer{StalenessDays: cfg.Scoring.StalenessDays}
	forecastSvc := &service.ForecastService{
		Repo:    store,
		Tracker: tracker,
		Scorer:  scorer,
		Logger:  logger,
		Config:  cfg.Forecast,
	}
	healthSvc := &service.HealthService{
		Repo:   store,
		Scorer: scorer,
		Logger: logger,
	}
	resolver := &service.AutoResolver{
		Repo:    store,
		Tracker: tracker,
		Logger:  logger,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	forecastHandler := &handler.ForecastHandler{Service: forecastSvc, Repo: store}
	forecastHandler.Register(engine)
	scoreHandler := &handler.ScoreHandler{Service: healthSvc}
	scoreHandler.Register(engine)
	accuracyHandler := &handler.AccuracyHandler{Tracker: tracker, Repo: store}
	accuracyHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		if _, err := cronRunner.Add(cfg.Cron.AutoResolve, func(ctx context.Context) {
			if err := resolver.RunOnce(ctx); err != nil {
				logger.Warn("auto-resolve sweep failed", zap.Error(err))
			}
		}); err != nil {
			logger.Fatal("schedule auto-resolve failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
}
