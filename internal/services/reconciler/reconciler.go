// Package reconciler периодически сверяет роль Subscriber с фактическими
// подписками и отзывает роль у пользователей без активной подписки.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/magabrotheeeer/software-marketplace/internal/lib/clock"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/sl"
	"github.com/magabrotheeeer/software-marketplace/internal/metrics"
	"github.com/magabrotheeeer/software-marketplace/internal/models"
)

// DefaultInterval — период между проходами.
const DefaultInterval = time.Hour

// DefaultMaxConcurrency — число пользователей, проверяемых одновременно.
const DefaultMaxConcurrency = 16

// Repository — хранилище ролей и подписок.
//
// RevokeSubscriberIfInactive проверяет подписки и снимает роль атомарно
// и сообщает, была ли роль удалена.
type Repository interface {
	UsersInRole(ctx context.Context, role models.Role) ([]*models.User, error)
	RevokeSubscriberIfInactive(ctx context.Context, userID string, at time.Time) (bool, error)
}

// UserCache сбрасывает записи пользователя в кэше.
type UserCache interface {
	RemoveUserFromCache(ctx context.Context, user *models.User) error
}

// PassResult — итог одного прохода.
type PassResult struct {
	Checked int
	Revoked int
	Failed  int
}

// Reconciler выполняет проходы сверки.
type Reconciler struct {
	repo           Repository
	cache          UserCache
	clock          clock.Clock
	log            *slog.Logger
	metrics        *metrics.Metrics
	interval       time.Duration
	maxConcurrency int
}

// Options — настройки Reconciler. Нулевые значения заменяются значениями по умолчанию.
type Options struct {
	Interval       time.Duration
	MaxConcurrency int
}

// New создаёт Reconciler. clk и m могут быть nil.
func New(repo Repository, cache UserCache, clk clock.Clock, log *slog.Logger, m *metrics.Metrics, opts Options) *Reconciler {
	if clk == nil {
		clk = clock.System{}
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	return &Reconciler{
		repo:           repo,
		cache:          cache,
		clock:          clk,
		log:            log.With(slog.String("component", "reconciler")),
		metrics:        m,
		interval:       opts.Interval,
		maxConcurrency: opts.MaxConcurrency,
	}
}

// Run выполняет проход сразу, затем раз в interval, пока ctx не отменён.
// Начатый проход доводится до конца и после отмены ctx.
func (r *Reconciler) Run(ctx context.Context) error {
	r.log.Info("reconciler started", slog.Duration("interval", r.interval))
	passCtx := context.WithoutCancel(ctx)

	r.pass(passCtx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("reconciler stopped")
			return nil
		case <-ticker.C:
			r.pass(passCtx)
		}
	}
}

func (r *Reconciler) pass(ctx context.Context) {
	res, err := r.RunPass(ctx)
	if err != nil {
		r.log.Error("reconciliation pass failed", sl.Err(err))
		return
	}
	r.log.Info("reconciliation pass finished",
		slog.Int("checked", res.Checked),
		slog.Int("revoked", res.Revoked),
		slog.Int("failed", res.Failed))
}

// RunPass проверяет всех держателей роли Subscriber. Пользователь без
// подписки, активной в момент начала прохода, теряет роль, его записи
// в кэше сбрасываются. Ошибки по отдельным пользователям логируются и
// учитываются в Failed, проход продолжается.
func (r *Reconciler) RunPass(ctx context.Context) (PassResult, error) {
	const op = "reconciler.RunPass"
	start := time.Now()
	now := r.clock.Now()

	users, err := r.repo.UsersInRole(ctx, models.RoleSubscriber)
	if err != nil {
		if r.metrics != nil {
			r.metrics.ReconcileFailures.Inc()
		}
		return PassResult{}, fmt.Errorf("%s: %w", op, err)
	}

	var revoked, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxConcurrency)
	for _, u := range users {
		g.Go(func() error {
			ok, err := r.reconcileUser(gctx, u, now)
			switch {
			case err != nil:
				failed.Add(1)
				r.log.Error("failed to reconcile user", sl.UserID(u.ID), sl.Err(err))
			case ok:
				revoked.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res := PassResult{
		Checked: len(users),
		Revoked: int(revoked.Load()),
		Failed:  int(failed.Load()),
	}
	if r.metrics != nil {
		r.metrics.ReconcilePasses.Inc()
		r.metrics.ReconcileChecked.Add(float64(res.Checked))
		r.metrics.ReconcileRevocations.Add(float64(res.Revoked))
		r.metrics.ReconcileFailures.Add(float64(res.Failed))
		r.metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
	}
	return res, nil
}

// reconcileUser возвращает true, если роль отозвана. Кэш сбрасывается
// только когда хранилище действительно удалило роль.
func (r *Reconciler) reconcileUser(ctx context.Context, u *models.User, now time.Time) (bool, error) {
	revoked, err := r.repo.RevokeSubscriberIfInactive(ctx, u.ID, now)
	if err != nil {
		return false, err
	}
	if !revoked {
		return false, nil
	}
	if err := r.cache.RemoveUserFromCache(ctx, u); err != nil {
		r.log.Warn("failed to invalidate user cache", sl.UserID(u.ID), sl.Err(err))
	}
	r.log.Info("subscriber role revoked", sl.UserID(u.ID))
	return true, nil
}
