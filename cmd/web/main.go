package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"poster-studio/internal/api"
	"poster-studio/internal/config"
	"poster-studio/internal/gemini"
	"poster-studio/internal/httpclient"
	"poster-studio/internal/library"
	"poster-studio/internal/logging"
	"poster-studio/internal/settings"
	"poster-studio/internal/stores"
	"poster-studio/internal/studio"
)

func main() {
	cfg, err := config.LoadWeb()
	if err != nil {
		panic(err)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
	})

	gem := gemini.New(gemini.Options{
		APIKey:       cfg.GeminiAPIKey,
		BaseURL:      cfg.GeminiBaseURL,
		APIVersion:   cfg.GeminiAPIVersion,
		HTTPClient:   httpClient,
		Logger:       logger,
		PollInterval: cfg.VideoPoll,
	})

	svc := studio.NewService(studio.ServiceOptions{
		Sessions:  studio.NewStore(studio.StoreOptions{Variations: cfg.Variations}),
		Generator: gem,
		Library:   library.New(cfg.LibraryMaxItems),
		Timeouts: studio.Timeouts{
			Generate: cfg.GenerateTimeout,
			Analyze:  cfg.AnalyzeTimeout,
			Video:    cfg.VideoTimeout,
		},
		OutputWidth: cfg.OutputWidth,
		Logger:      logger,
	})

	docs, err := stores.Open(cfg.StorageType, cfg.DataSourceName, logger)
	if err != nil {
		logger.Error("storage init failed", "err", err)
		os.Exit(1)
	}
	if c, ok := docs.(io.Closer); ok {
		defer c.Close()
	}

	backend, closeBackend := settingsBackend(cfg, logger)
	defer closeBackend()
	prefs := settings.Open(ctx, settings.Options{Backend: backend, Logger: logger})

	server := api.New(api.Options{
		Studio:      svc,
		Documents:   docs,
		Settings:    prefs,
		Logger:      logger,
		CORSOrigins: cfg.CORSOrigins,
		MaxUploadMB: cfg.MaxUploadMB,
	})

	srv := &http.Server{
		Addr:              cfg.WebAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.VideoTimeout + time.Minute,
		IdleTimeout:       90 * time.Second,
	}

	go svc.Sessions().RunSweeper(ctx, cfg.SessionIdle)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("web started", "addr", cfg.WebAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "err", err)
		}
	}
}

// settingsBackend picks where application settings live. The returned func
// releases the backend.
func settingsBackend(cfg config.Config, logger *slog.Logger) (settings.Backend, func()) {
	if cfg.SettingsBackend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		logger.Info("use settings backend", "backend", "redis", "addr", cfg.RedisAddr)
		return settings.NewRedisBackend(client, cfg.SettingsKey), func() { _ = client.Close() }
	}
	logger.Info("use settings backend", "backend", "file", "path", cfg.SettingsPath)
	return settings.NewFileBackend(cfg.SettingsPath), func() {}
}
