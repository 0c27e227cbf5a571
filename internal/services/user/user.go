// Package user содержит операции над учётными записями, которые не связаны
// с выдачей токенов: кэшированное чтение, выдачу подписок, управление
// ролями и блокировкой, администрирование каталога.
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/software-marketplace/internal/cache"
	"github.com/magabrotheeeer/software-marketplace/internal/config"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/clock"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/password"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/sl"
	"github.com/magabrotheeeer/software-marketplace/internal/models"
	"github.com/magabrotheeeer/software-marketplace/internal/storage/repository"
)

var (
	// ErrUserNotFound — пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrSubscriptionTypeNotFound — тип подписки не найден или удалён.
	ErrSubscriptionTypeNotFound = errors.New("subscription type not found")
	// ErrSoftwareNotFound — программа не найдена или удалена.
	ErrSoftwareNotFound = errors.New("software not found")
	// ErrInvalidArgument — некорректные входные данные.
	ErrInvalidArgument = errors.New("invalid argument")
)

// LockoutForever — окончание бессрочной блокировки.
var LockoutForever = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// Repository — хранилище, нужное сервису.
type Repository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserBySequenceID(ctx context.Context, seq int64) (*models.User, error)
	AddRole(ctx context.Context, userID string, role models.Role) error
	SetRoles(ctx context.Context, userID string, roles []models.Role) error
	SetLockout(ctx context.Context, userID string, end *time.Time) error
	GetSubscriptionType(ctx context.Context, id int64) (*models.SubscriptionType, error)
	AddSubscription(ctx context.Context, sub *models.Subscription) error
	CreateSoftware(ctx context.Context, name string) (*models.Software, error)
	CreateSubscriptionType(ctx context.Context, st *models.SubscriptionType) error
}

// Service реализует операции над пользователями.
type Service struct {
	repo  Repository
	cache *cache.Cache
	clock clock.Clock
	log   *slog.Logger
}

// New создаёт Service. Если clk равен nil, используется системное время.
func New(repo Repository, c *cache.Cache, clk clock.Clock, log *slog.Logger) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{
		repo:  repo,
		cache: c,
		clock: clk,
		log:   log,
	}
}

// GetUser возвращает пользователя по идентификатору. При useCache запись
// берётся из кэша по ключу User_<id>.
func (s *Service) GetUser(ctx context.Context, id string, useCache bool) (*models.User, error) {
	return s.lookup(ctx, "user.GetUser", useCache, cache.UserKey(id), func(ctx context.Context) (*models.User, error) {
		return s.repo.GetUserByID(ctx, id)
	})
}

// GetUserBySequenceID возвращает пользователя по порядковому номеру.
// При useCache запись берётся из кэша по ключу User_<seq>.
func (s *Service) GetUserBySequenceID(ctx context.Context, seq int64, useCache bool) (*models.User, error) {
	return s.lookup(ctx, "user.GetUserBySequenceID", useCache, cache.UserSequenceKey(seq), func(ctx context.Context) (*models.User, error) {
		return s.repo.GetUserBySequenceID(ctx, seq)
	})
}

func (s *Service) lookup(ctx context.Context, op string, useCache bool, key string, load func(context.Context) (*models.User, error)) (*models.User, error) {
	// отсутствие пользователя превращается в nil, чтобы кэш его не сохранил
	populate := func(ctx context.Context) (*models.User, error) {
		u, err := load(ctx)
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil
		}
		return u, err
	}

	var (
		u   *models.User
		err error
	)
	if useCache {
		u, err = cache.GetOrSet(ctx, s.cache, key, populate)
	} else {
		u, err = populate(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// RemoveUserFromCache удаляет обе записи пользователя: по id и по порядковому номеру.
func (s *Service) RemoveUserFromCache(ctx context.Context, user *models.User) error {
	const op = "user.RemoveUserFromCache"
	keys := []string{cache.UserKey(user.ID)}
	if user.SequenceID != 0 {
		keys = append(keys, cache.UserSequenceKey(user.SequenceID))
	}
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ClearCache сбрасывает весь кэш пользователей.
func (s *Service) ClearCache(ctx context.Context) error {
	const op = "user.ClearCache"
	if err := s.cache.ClearAll(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// AddSubscriptionToUser выдаёт пользователю подписку, начинающуюся сейчас.
// Роль Subscriber выдаётся после записи подписки всегда, а не по снимку
// пользователя: сверка могла отозвать её между чтением и вставкой.
func (s *Service) AddSubscriptionToUser(ctx context.Context, userID string, subscriptionTypeID int64) (*models.Subscription, error) {
	const op = "user.AddSubscriptionToUser"
	log := s.log.With(sl.Op(op), sl.UserID(userID))

	user, err := s.GetUser(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	st, err := s.repo.GetSubscriptionType(ctx, subscriptionTypeID)
	if errors.Is(err, repository.ErrSubscriptionTypeNotFound) {
		return nil, ErrSubscriptionTypeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if st.IsDeleted {
		return nil, ErrSubscriptionTypeNotFound
	}

	sub := models.NewSubscription(user.ID, st, s.clock.Now())
	if err := s.repo.AddSubscription(ctx, &sub); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.AddRole(ctx, user.ID, models.RoleSubscriber); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, user)

	log.Info("subscription granted",
		slog.Int64("subscription_id", sub.ID),
		slog.Int64("subscription_type_id", st.ID),
		slog.Time("end_date", sub.EndDate))
	return &sub, nil
}

// UpdateUserRoles заменяет набор ролей пользователя.
func (s *Service) UpdateUserRoles(ctx context.Context, userID string, roles []models.Role) (*models.User, error) {
	const op = "user.UpdateUserRoles"
	user, err := s.GetUser(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	roles = dedupRoles(roles)
	if err := s.repo.SetRoles(ctx, user.ID, roles); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user.Roles = roles
	s.invalidate(ctx, user)
	s.log.Info("roles updated", sl.Op(op), sl.UserID(user.ID), slog.Any("roles", roles))
	return user, nil
}

// LockOutUser бессрочно блокирует пользователя.
func (s *Service) LockOutUser(ctx context.Context, userID string) error {
	const op = "user.LockOutUser"
	user, err := s.GetUser(ctx, userID, false)
	if err != nil {
		return err
	}
	end := LockoutForever
	if err := s.repo.SetLockout(ctx, user.ID, &end); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, user)
	s.log.Warn("user locked out by administrator", sl.Op(op), sl.UserID(user.ID))
	return nil
}

// AddSoftware добавляет программу в каталог.
func (s *Service) AddSoftware(ctx context.Context, name string) (*models.Software, error) {
	const op = "user.AddSoftware"
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: software name is required", ErrInvalidArgument)
	}
	sw, err := s.repo.CreateSoftware(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sw, nil
}

// AddSubscriptionType добавляет тариф к программе.
func (s *Service) AddSubscriptionType(ctx context.Context, softwareID int64, name string, lengthInDays int) (*models.SubscriptionType, error) {
	const op = "user.AddSubscriptionType"
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: subscription type name is required", ErrInvalidArgument)
	}
	if lengthInDays <= 0 {
		return nil, fmt.Errorf("%w: length in days must be positive", ErrInvalidArgument)
	}
	st := &models.SubscriptionType{
		SoftwareID:   softwareID,
		Name:         name,
		LengthInDays: lengthInDays,
	}
	if err := s.repo.CreateSubscriptionType(ctx, st); err != nil {
		if errors.Is(err, repository.ErrSoftwareNotFound) {
			return nil, ErrSoftwareNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return st, nil
}

// SeedAdmin создаёт учётную запись администратора из конфига, если её ещё нет,
// и гарантирует ей роль Admin. Пустое имя отключает создание.
func (s *Service) SeedAdmin(ctx context.Context, admin config.AdminUser) error {
	const op = "user.SeedAdmin"
	if admin.AdminUsername == "" {
		return nil
	}
	log := s.log.With(sl.Op(op), slog.String("username", admin.AdminUsername))

	existing, err := s.repo.GetUserByUsername(ctx, admin.AdminUsername)
	switch {
	case err == nil:
		if existing.HasRole(models.RoleAdmin) {
			return nil
		}
		if err := s.repo.AddRole(ctx, existing.ID, models.RoleAdmin); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		s.invalidate(ctx, existing)
		log.Info("admin role granted to existing user")
		return nil
	case !errors.Is(err, repository.ErrUserNotFound):
		return fmt.Errorf("%s: %w", op, err)
	}

	if problems := password.Validate(admin.AdminPassword); len(problems) > 0 {
		return fmt.Errorf("%s: %w: %s", op, ErrInvalidArgument, strings.Join(problems, ", "))
	}
	hash, err := password.GetHash(admin.AdminPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	now := s.clock.Now()
	user := &models.User{
		ID:             uuid.NewString(),
		Username:       admin.AdminUsername,
		Email:          admin.AdminEmail,
		EmailConfirmed: true,
		PasswordHash:   hash,
		SecurityStamp:  uuid.NewString(),
		LockoutEnabled: true,
		RegisterDate:   now,
		LastLoginDate:  now,
		Roles:          []models.Role{models.RoleAdmin, models.RoleUser},
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("admin user created", sl.UserID(user.ID))
	return nil
}

func (s *Service) invalidate(ctx context.Context, user *models.User) {
	if err := s.RemoveUserFromCache(ctx, user); err != nil {
		s.log.Warn("failed to invalidate user cache", sl.UserID(user.ID), sl.Err(err))
	}
}

func dedupRoles(roles []models.Role) []models.Role {
	seen := make(map[models.Role]struct{}, len(roles))
	out := make([]models.Role, 0, len(roles))
	for _, r := range roles {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
