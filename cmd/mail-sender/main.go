package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/software-marketplace/internal/app/mailsender"
	"github.com/magabrotheeeer/software-marketplace/internal/config"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/logger"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env, os.Stdout)

	log.Info("starting mail sender", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := mailsender.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize mail sender", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		log.Error("mail sender stopped with error", sl.Err(err))
		os.Exit(1)
	}

	log.Info("mail sender stopped gracefully")
}
