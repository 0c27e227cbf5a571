// Package main Software Marketplace API
//
// @title           Software Marketplace API
// @version         1.0
// @description     Учётные записи, токены и подписки маркетплейса программ

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/magabrotheeeer/software-marketplace/docs"
	"github.com/magabrotheeeer/software-marketplace/internal/app/marketplace"
	"github.com/magabrotheeeer/software-marketplace/internal/config"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/logger"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env, os.Stdout)

	log.Info("starting marketplace", slog.String("env", cfg.Env))
	log.Debug("debug messages are enabled")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := marketplace.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	log.Info("marketplace stopped gracefully")
}
