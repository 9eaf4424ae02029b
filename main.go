package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KingHippopotamus/pmax-helper/analyzer"
	"github.com/KingHippopotamus/pmax-helper/cache"
	"github.com/KingHippopotamus/pmax-helper/config"
	"github.com/KingHippopotamus/pmax-helper/history"
	"github.com/KingHippopotamus/pmax-helper/logger"
	"github.com/KingHippopotamus/pmax-helper/scraper"
	"github.com/KingHippopotamus/pmax-helper/storage"
	"github.com/KingHippopotamus/pmax-helper/video"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg.Server.Debug)
	defer log.Sync()

	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	router, cleanup, err := newRouter(ctx, cfg, log)
	if err != nil {
		log.Fatalw("build router", "error", err)
	}
	defer cleanup()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Minute,
	}

	go func() {
		log.Infow("server starting", "port", cfg.Server.Port, "mode", gin.Mode())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	log.Info("server exited")
}

// newRouter wires every module onto one engine. The returned cleanup stops background work.
func newRouter(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*gin.Engine, func(), error) {
	router := gin.New()
	router.Use(gin.Recovery(), logger.GinMiddleware(log), cors.New(corsConfig(cfg.Server.AllowedOrigins)))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	pageScraper := scraper.New(cfg.Scraper)
	store := cache.New(cfg.Redis, log)
	log.Infow("analysis cache ready", "backend", store.Backend())

	provider, err := analyzer.NewProvider(ctx, cfg.Gemini, log)
	if err != nil {
		log.Warnw("page analysis disabled", "error", err)
		provider = nil
	}
	analyzer.RegisterRoutes(router, analyzer.NewService(pageScraper, provider, store, cfg, log), log)

	host := storage.NewImageHost(ctx, cfg, log)
	log.Infow("image host ready", "backend", host.Name())

	db, err := history.OpenDatabase(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open history database: %w", err)
	}
	historyStore, err := history.NewStore(db)
	if err != nil {
		return nil, nil, err
	}
	sweeper := history.NewSweeper(historyStore, host, cfg.Database.Retention, log)
	if err := sweeper.Start(cfg.Database.SweepSpec); err != nil {
		return nil, nil, err
	}
	history.RegisterRoutes(router, historyStore)

	fal := video.NewFalClient(cfg.Fal, log)
	if !fal.Enabled() {
		log.Warn("FAL_KEY not set, video generation will answer 503")
	}
	video.RegisterRoutes(router, video.NewService(fal, pageScraper, host, historyStore, cfg, log), log)

	cleanup := func() {
		sweeper.Stop()
		if err := cache.Close(); err != nil {
			log.Warnw("close redis", "error", err)
		}
		if err := closeImageHost(host); err != nil {
			log.Warnw("close image host", "backend", host.Name(), "error", err)
		}
	}
	return router, cleanup, nil
}

// closeImageHost releases hosts that hold a client, such as GCS.
func closeImageHost(host storage.ImageHost) error {
	if c, ok := host.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	for _, origin := range origins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
