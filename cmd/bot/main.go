package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"poster-studio/internal/config"
	"poster-studio/internal/gemini"
	"poster-studio/internal/handlers"
	"poster-studio/internal/httpclient"
	"poster-studio/internal/library"
	"poster-studio/internal/logging"
	"poster-studio/internal/mediagroup"
	"poster-studio/internal/studio"
	"poster-studio/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
	})

	tg, err := telegram.New(telegram.Options{
		Token:      cfg.TelegramToken,
		HTTPClient: httpClient,
		Logger:     logger,
		Debug:      cfg.Debug,
	})
	if err != nil {
		logger.Error("telegram init failed", "err", err)
		os.Exit(1)
	}

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

	handler := handlers.New(handlers.Options{
		Telegram: tg,
		Studio:   svc,
		Logger:   logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Video jobs are the longest calls a request can make.
	requestTimeout := cfg.VideoTimeout + time.Minute

	sem := make(chan struct{}, cfg.MaxConcurrent)
	onAlbum := func(up mediagroup.Upload) {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return
		}

		go func() {
			defer func() { <-sem }()

			reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
			defer cancel()

			handler.HandleAlbum(reqCtx, up)
		}()
	}

	aggregator := mediagroup.New(mediagroup.Options{
		Debounce: cfg.MediaGroupDebounce,
		OnUpload: onAlbum,
	})
	defer aggregator.Stop()
	handler.SetMediaGroupAggregator(aggregator)

	go svc.Sessions().RunSweeper(ctx, cfg.SessionIdle)

	logger.Info("bot started", "username", tg.Username())

	updates := tg.Updates(telegram.UpdatesOptions{
		Timeout: 30 * time.Second,
	})
	defer tg.StopUpdates()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case update, ok := <-updates:
			if !ok {
				logger.Info("updates channel closed")
				return
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}

			go func(update telegram.Update) {
				defer func() { <-sem }()

				reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
				defer cancel()

				if err := handler.HandleUpdate(reqCtx, update); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("handle update failed", "err", err)
				}
			}(update)
		}
	}
}

