package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pyqportal/internal/api"
	"pyqportal/internal/auth"
	"pyqportal/internal/catalog"
	"pyqportal/internal/config"
	"pyqportal/internal/intake"
	"pyqportal/internal/logger"
	"pyqportal/internal/redis"
	"pyqportal/internal/storage"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}

	cfg, err := config.Load(os.Getenv("PYQ_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	zlog, err := logger.New(cfg.BasicConfig.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zlog.Sync()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbType := os.Getenv("PYQ_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	zlog.Info("opening catalog database", zap.String("driver", dbType))
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := storage.Migrate(db, dbType); err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb, err = redis.NewRedisClient(cfg)
		if err != nil {
			return err
		}
		defer rdb.Close()
	}

	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		return err
	}

	cat := catalog.NewService(catalog.NewRepository(db), blobs, rdb,
		time.Duration(cfg.BasicConfig.CacheTTL)*time.Second, zlog)
	if err := cat.Listen(ctx); err != nil {
		return err
	}
	// pick up files written before the catalog existed
	if err := cat.ReindexAsync(ctx); err != nil {
		zlog.Warn("initial reindex not started", zap.Error(err))
	}
	if cfg.BasicConfig.ReindexInterval > 0 {
		cat.StartReindexer(ctx, time.Duration(cfg.BasicConfig.ReindexInterval)*time.Minute)
	} else {
		zlog.Info("periodic reindex disabled")
	}

	maxBytes := cfg.BasicConfig.MaxUploadBytes
	uploads := intake.NewService(blobs, cat, maxBytes, zlog)
	authService := auth.NewService(cfg.BasicConfig.AdminTokens)
	if !authService.Enabled() {
		zlog.Info("no admin tokens configured, admin routes are closed")
	}
	handlers := api.NewHandler(uploads, cat, authService, maxBytes, zlog)

	srv := &http.Server{
		Addr:              cfg.BasicConfig.ServerAddress,
		Handler:           api.NewRouter(handlers),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("server listening", zap.String("addr", srv.Addr), zap.String("storage", cfg.BasicConfig.StorageType))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	zlog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	switch cfg.BasicConfig.StorageType {
	case "minio":
		return storage.NewMinIOStore(ctx, cfg.MinIO)
	default:
		return storage.NewLocalStore(cfg.BasicConfig.UploadDir)
	}
}
