package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"laundrylink-backend/config"
	"laundrylink-backend/internal/api"
	"laundrylink-backend/internal/auth"
	"laundrylink-backend/internal/changefeed"
	"laundrylink-backend/internal/db"
	"laundrylink-backend/internal/model"
	"laundrylink-backend/internal/notification"
	"laundrylink-backend/internal/parse"
	"laundrylink-backend/internal/store"
	"laundrylink-backend/internal/sweeper"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		sugar.Fatalw("failed to load configuration", "path", configPath, "error", err)
	}
	sugar.Infow("configuration loaded", "path", configPath)

	if err := parse.ValidateSlots(cfg.Booking.TimeSlots); err != nil {
		sugar.Fatalw("invalid booking.time_slots", "error", err)
	}
	loc, err := cfg.Booking.Location()
	if err != nil {
		sugar.Fatalw("invalid booking.timezone", "error", err)
	}

	if cfg.Auth.JWTSecret == "" {
		sugar.Warn("auth.jwt_secret is not set; using a random key, sessions will not survive a restart")
	}
	tokens, err := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		sugar.Fatalw("failed to create token manager", "error", err)
	}

	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		sugar.Warn("VAPID keys are not configured; notifications will be stored but not pushed")
	}
	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database, sugar.Named("db"))
	if err != nil {
		sugar.Fatalw("failed to initialize database", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	feed := changefeed.NewBroker(64)
	defer feed.Close()

	appStore := store.NewGormStore(gormDB, feed, sugar.Named("store"))
	if err := appStore.SeedServices(ctx, model.DefaultServices); err != nil {
		sugar.Fatalw("failed to seed services", "error", err)
	}

	workerPool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, &webpushOptions, sugar.Named("notification"))
	workerPool.Start(ctx)
	sugar.Infow("notification workers started", "size", cfg.WorkerPool.Size)

	sweeperSvc := sweeper.NewService(cfg.Sweeper, loc, appStore, sugar.Named("sweeper"))

	gin.SetMode(gin.ReleaseMode)
	handler := api.NewHandler(api.Deps{
		Store:     appStore,
		Tokens:    tokens,
		Feed:      feed,
		Notifier:  workerPool,
		WebPush:   &webpushOptions,
		TimeSlots: cfg.Booking.TimeSlots,
		Location:  loc,
		Logger:    sugar.Named("api"),
	})
	router := api.NewRouter(ctx, handler, cfg.Server, logger.Named("http"))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sweeperSvc.Run(ctx)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("HTTP server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutdown signal received, stopping services...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		// Open change streams would otherwise hold Shutdown until the deadline.
		feed.Close()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server gracefully stopped")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
