// Package main Outlivion API
//
// @title           Outlivion API
// @version         1.0
// @description     Вход через Telegram, deep-link сессии и сверка платежей с подписками.
// @BasePath        /api/v1
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
//
// @securityDefinitions.apikey BotKey
// @in header
// @name X-Bot-Api-Key
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/outcastsdev-svg/outlivion-api/internal/app/api"
	"github.com/outcastsdev-svg/outlivion-api/internal/config"
	"github.com/outcastsdev-svg/outlivion-api/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := sl.New(cfg.Env, os.Stdout)

	logger.Info("starting outlivion-api", slog.String("env", cfg.Env))
	logger.Debug("debug messages are enabled")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := api.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("outlivion-api stopped gracefully")
}
