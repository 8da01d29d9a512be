package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"outfitswap/internal/http/handlers"
	httpapi "outfitswap/internal/http/httpapi"
	"outfitswap/internal/infra"
	"outfitswap/internal/providers/image"
	"outfitswap/internal/registry"
	"outfitswap/internal/studio"
)

// batchDrainTimeout bounds how long shutdown waits for a running batch.
const batchDrainTimeout = 2 * time.Minute

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger, logFile := infra.NewLoggerWithFile(cfg.AppEnv, cfg.LogFile)
	defer logFile.Close()

	editor, err := image.NewEditorFromConfig(cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure edit provider")
	}

	display := registry.NewHandleTable("/v1/display/")
	session := studio.New(editor, display, studio.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         &logger,
	})
	defer session.Close()

	app := handlers.NewApp(cfg, session, display, &logger)
	router := httpapi.NewRouter(app, cfg, logger)
	server := infra.NewHTTPServer(cfg, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("addr", server.Addr()).
			Str("provider", cfg.EditProvider).
			Msg("api listening")
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server")
		}

		drainCtx, cancelDrain := context.WithTimeout(context.Background(), batchDrainTimeout)
		defer cancelDrain()
		if err := session.Wait(drainCtx); err != nil {
			logger.Warn().Err(err).Msg("batch still running at shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("http server failed")
	}
	logger.Info().Msg("server stopped")
}
