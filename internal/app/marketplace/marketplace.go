package marketplace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/software-marketplace/internal/cache"
	"github.com/magabrotheeeer/software-marketplace/internal/config"
	"github.com/magabrotheeeer/software-marketplace/internal/http/handlers/health"
	"github.com/magabrotheeeer/software-marketplace/internal/http/middlewarectx"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/clock"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/jwt"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/refresh"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/sl"
	"github.com/magabrotheeeer/software-marketplace/internal/metrics"
	"github.com/magabrotheeeer/software-marketplace/internal/migrations"
	authservice "github.com/magabrotheeeer/software-marketplace/internal/services/auth"
	"github.com/magabrotheeeer/software-marketplace/internal/services/mailer"
	"github.com/magabrotheeeer/software-marketplace/internal/services/reconciler"
	userservice "github.com/magabrotheeeer/software-marketplace/internal/services/user"
	"github.com/magabrotheeeer/software-marketplace/internal/storage/repository"
)

const shutdownTimeout = 15 * time.Second

// App — HTTP‑сервер маркетплейса вместе с фоновой сверкой подписок.
type App struct {
	server     *http.Server
	logger     *slog.Logger
	db         *repository.Storage
	cache      *cache.Cache
	conn       *amqp.Connection
	ch         *amqp.Channel
	reconciler *reconciler.Reconciler
}

// New поднимает зависимости и собирает маршруты. При ошибке уже открытые
// соединения закрываются.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	const op = "marketplace.New"

	app := &App{logger: logger}
	defer func() {
		if err != nil {
			app.close()
			err = fmt.Errorf("%s: %w", op, err)
		}
	}()

	clk := clock.System{}

	app.db, err = repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(app.db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	app.cache, err = cache.Open(ctx, cfg.Cache, clk, logger, m)
	if err != nil {
		return nil, err
	}

	refreshKey, err := cfg.RefreshKey()
	if err != nil {
		return nil, err
	}
	protector, err := refresh.NewProtector(refreshKey, cfg.RefreshTTL, clk)
	if err != nil {
		return nil, err
	}
	tokens := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL, clk)

	app.conn, err = rabbitmq.Connect(ctx, cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	app.ch, err = rabbitmq.SetupChannel(app.conn, rabbitmq.GetMailQueues())
	if err != nil {
		return nil, err
	}

	users := userservice.New(app.db, app.cache, clk, logger)
	if err = users.SeedAdmin(ctx, cfg.AdminUser); err != nil {
		return nil, err
	}

	auth := authservice.New(authservice.Deps{
		Log:       logger,
		Users:     app.db,
		Tokens:    tokens,
		Protector: protector,
		Mail:      mailer.NewPublisher(app.ch),
		Cache:     users,
		Clock:     clk,
		Metrics:   m,
	}, authservice.Options{
		MaxFailedAttempts: cfg.MaxFailedAttempts,
		LockoutDuration:   cfg.Lockout.Duration,
		BaseURL:           cfg.BaseURL,
		ConfirmEmailPath:  cfg.ClientPaths.ConfirmEmail,
		ResetPasswordPath: cfg.ClientPaths.ResetPassword,
	})

	app.reconciler = reconciler.New(app.db, users, clk, logger, m, reconciler.Options{
		Interval:       cfg.Reconciler.Interval,
		MaxConcurrency: cfg.MaxConcurrency,
	})

	router := chi.NewRouter()
	RegisterRoutes(router, Deps{
		Log:     logger,
		Auth:    auth,
		Users:   users,
		Clock:   clk,
		Limiter: middlewarectx.NewLimiter(cfg.RPS, cfg.Burst),
		Checks: map[string]health.Checker{
			"postgres": func(ctx context.Context) error {
				return repository.CheckDatabaseReady(ctx, app.db)
			},
		},
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

// Run обслуживает запросы и запускает сверку подписок до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = a.reconciler.Run(ctx)
	}()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err = a.server.Shutdown(timeoutCtx)
	}

	cancel()
	wg.Wait()
	a.close()
	return err
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close cache", sl.Err(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close database", sl.Err(err))
		}
	}
}
