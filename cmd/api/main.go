package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"hostforge/internal/http/handlers"
	"hostforge/internal/http/httpapi"
	"hostforge/internal/infra"
	"hostforge/internal/providers/namecheap"
	"hostforge/internal/queue"
	"hostforge/internal/store"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api")

	ctx := context.Background()
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: db connection failed")
	}
	defer pool.Close()

	st := store.New(pool, logger)

	dispatcher := queue.NewClient(queue.Options{
		BaseURL: cfg.WorkerBaseURL,
		Logger:  &logger,
	})

	registrar, err := namecheap.NewClient(namecheap.Options{
		APIUser:  cfg.NamecheapAPIUser,
		APIKey:   cfg.NamecheapAPIKey,
		ClientIP: cfg.NamecheapClientIP,
		BaseURL:  cfg.NamecheapBaseURL,
		Logger:   &logger,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("api: registrar not configured, domain checks disabled")
	}

	var checker handlers.DomainChecker
	if registrar != nil {
		checker = registrar
	}

	app := handlers.NewApp(st, dispatcher, checker, logger)
	router := httpapi.NewRouter(app, cfg, logger)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("api: http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: failed to shutdown server")
	}
	logger.Info().Msg("api: stopped")
}
