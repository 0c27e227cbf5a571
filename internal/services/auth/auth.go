// Package auth реализует жизненный цикл токенов маркетплейса: регистрацию,
// вход, обновление пары токенов, подтверждение почты и сброс пароля.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/software-marketplace/internal/lib/clock"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/jwt"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/password"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/refresh"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/sl"
	"github.com/magabrotheeeer/software-marketplace/internal/metrics"
	"github.com/magabrotheeeer/software-marketplace/internal/models"
	"github.com/magabrotheeeer/software-marketplace/internal/services/mailer"
	"github.com/magabrotheeeer/software-marketplace/internal/storage/repository"
)

// TokenType — тип выдаваемого access‑токена.
const TokenType = "Bearer"

// UserRepository — хранилище учётных записей, нужное сервису.
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	RecordLogin(ctx context.Context, userID string, at time.Time) error
	RecordAccessFailed(ctx context.Context, userID string, maxAttempts int, lockoutUntil time.Time) (bool, error)
	AddRole(ctx context.Context, userID string, role models.Role) error
	ConfirmEmail(ctx context.Context, userID string) error
	SetPasswordHash(ctx context.Context, userID, hash, securityStamp string) error
	SaveUserToken(ctx context.Context, userID, purpose, tokenHash string, expiresAt time.Time) error
	ConsumeUserToken(ctx context.Context, userID, purpose, tokenHash string, now time.Time) (bool, error)
}

// RefreshProtector запечатывает и вскрывает refresh‑токены.
type RefreshProtector interface {
	Protect(userID, securityStamp string) (string, error)
	Unprotect(token string) (*refresh.Ticket, error)
}

// Mailer отправляет письма по шаблону.
type Mailer interface {
	SendTemplatedMail(ctx context.Context, template, subject string, data map[string]string, recipient string) error
}

// UserCache сбрасывает закэшированные записи пользователя.
type UserCache interface {
	RemoveUserFromCache(ctx context.Context, user *models.User) error
}

// Options — настройки сервиса.
type Options struct {
	MaxFailedAttempts int
	LockoutDuration   time.Duration
	CodeTTL           time.Duration
	BaseURL           string
	ConfirmEmailPath  string
	ResetPasswordPath string
}

// Deps — зависимости сервиса. Cache и Metrics могут быть nil.
type Deps struct {
	Log       *slog.Logger
	Users     UserRepository
	Tokens    jwt.Maker
	Protector RefreshProtector
	Mail      Mailer
	Cache     UserCache
	Clock     clock.Clock
	Metrics   *metrics.Metrics
}

// Service выдаёт и обновляет токены.
type Service struct {
	Deps
	opts     Options
	validate *validator.Validate
}

// New создаёт Service.
func New(deps Deps, opts Options) *Service {
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if opts.MaxFailedAttempts <= 0 {
		opts.MaxFailedAttempts = 5
	}
	if opts.LockoutDuration <= 0 {
		opts.LockoutDuration = 5 * time.Minute
	}
	if opts.CodeTTL <= 0 {
		opts.CodeTTL = 24 * time.Hour
	}
	return &Service{Deps: deps, opts: opts, validate: validator.New()}
}

// RegisterRequest — данные регистрации.
type RegisterRequest struct {
	Username string `validate:"required,min=3,max=50"`
	Email    string `validate:"required,email,max=256"`
	Password string `validate:"required"`
}

// Register создаёт пользователя с ролью User и отправляет письмо подтверждения.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	const op = "auth.Register"
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	verr := &ValidationError{}
	if err := s.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		for _, fe := range fieldErrs {
			verr.Add(fe.Field(), fieldMessage(fe))
		}
	}
	for _, problem := range password.Validate(req.Password) {
		verr.Add("Password", problem)
	}
	if !verr.Empty() {
		return nil, verr
	}

	hash, err := password.GetHash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	now := s.Clock.Now()
	user := &models.User{
		ID:             uuid.NewString(),
		Username:       req.Username,
		Email:          req.Email,
		PasswordHash:   hash,
		SecurityStamp:  uuid.NewString(),
		LockoutEnabled: true,
		RegisterDate:   now,
		LastLoginDate:  now,
		Roles:          []models.Role{models.RoleUser},
	}
	if err := s.Users.CreateUser(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrUsernameTaken):
			return nil, NewValidationError("Username", "username is already taken")
		case errors.Is(err, repository.ErrEmailTaken):
			return nil, NewValidationError("Email", "email is already taken")
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.sendConfirmation(ctx, user)
	return user, nil
}

// Login проверяет учётные данные и выдаёт пару токенов.
//
// Для неподтверждённой почты письмо подтверждения отправляется повторно,
// состояние пользователя не меняется, возвращается ErrEmailNotConfirmed.
func (s *Service) Login(ctx context.Context, username, rawPassword string) (*models.AccessTokenResponse, error) {
	const op = "auth.Login"
	log := s.Log.With(sl.Op(op))

	user, err := s.Users.GetUserByUsername(ctx, username)
	if errors.Is(err, repository.ErrUserNotFound) {
		s.countLogin(metrics.LoginInvalid)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.Clock.Now()
	if !user.EmailConfirmed {
		s.countLogin(metrics.LoginEmailNotConfirmed)
		s.sendConfirmation(ctx, user)
		return nil, ErrEmailNotConfirmed
	}
	if user.IsLockedOut(now) {
		s.countLogin(metrics.LoginLockedOut)
		return nil, ErrLockedOut
	}

	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		if !errors.Is(err, password.ErrMismatch) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		locked, err := s.Users.RecordAccessFailed(ctx, user.ID, s.opts.MaxFailedAttempts, now.Add(s.opts.LockoutDuration))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if locked {
			log.Warn("user locked out after failed attempts", sl.UserID(user.ID))
			s.invalidate(ctx, user)
			s.countLogin(metrics.LoginLockedOut)
			return nil, ErrLockedOut
		}
		s.countLogin(metrics.LoginInvalid)
		return nil, ErrInvalidCredentials
	}

	if err := s.Users.RecordLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user.LastLoginDate = now
	if !user.HasRole(models.RoleUser) {
		if err := s.Users.AddRole(ctx, user.ID, models.RoleUser); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		user.Roles = append(user.Roles, models.RoleUser)
		log.Info("baseline role restored", sl.UserID(user.ID))
	}
	s.invalidate(ctx, user)

	resp, err := s.issue(user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.countLogin(metrics.LoginSuccess)
	return resp, nil
}

// Refresh выдаёт новую пару токенов по refresh‑токену.
//
// Повреждённый или просроченный токен, неизвестный пользователь и
// несовпадение security stamp дают ErrChallenge. Блокировка даёт ErrLockedOut.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.AccessTokenResponse, error) {
	const op = "auth.Refresh"

	ticket, err := s.Protector.Unprotect(refreshToken)
	if err != nil {
		return nil, ErrChallenge
	}
	user, err := s.Users.GetUserByID(ctx, ticket.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrChallenge
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user.SecurityStamp != ticket.SecurityStamp {
		return nil, ErrChallenge
	}
	if user.IsLockedOut(s.Clock.Now()) {
		return nil, ErrLockedOut
	}

	resp, err := s.issue(user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return resp, nil
}

// ParseAccessToken разбирает access‑токен. Любая ошибка — ErrChallenge.
func (s *Service) ParseAccessToken(token string) (*models.Principal, error) {
	p, err := s.Tokens.ParseToken(token)
	if err != nil {
		return nil, ErrChallenge
	}
	return p, nil
}

// ConfirmEmail погашает код подтверждения почты.
func (s *Service) ConfirmEmail(ctx context.Context, userID, code string) error {
	const op = "auth.ConfirmEmail"
	if !validCodeFormat(code) {
		return ErrInvalidCode
	}
	user, err := s.Users.GetUserByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return ErrInvalidCode
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	ok, err := s.Users.ConsumeUserToken(ctx, user.ID, PurposeConfirmEmail, hashCode(code), s.Clock.Now())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return ErrInvalidCode
	}
	if err := s.Users.ConfirmEmail(ctx, user.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, user)
	return nil
}

// ResetPasswordRequest — запрос сброса пароля. Пользователь ищется по Email,
// а если он пуст, по UserID.
type ResetPasswordRequest struct {
	Email       string
	UserID      string
	Code        string
	NewPassword string
}

// ResetPassword без кода отправляет письмо со ссылкой для сброса,
// с кодом и новым паролем меняет пароль и security stamp.
//
// Для неизвестного или неподтверждённого пользователя запрос без кода
// молча завершается успехом, запрос с кодом даёт ErrInvalidCode.
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	const op = "auth.ResetPassword"
	if req.Code != "" && req.NewPassword == "" {
		return NewValidationError("NewPassword", "MissingNewPassword")
	}
	if req.Email == "" && req.UserID == "" {
		return NewValidationError("Email", "email or user id is required")
	}

	var (
		user *models.User
		err  error
	)
	if req.Email != "" {
		user, err = s.Users.GetUserByEmail(ctx, req.Email)
	} else {
		user, err = s.Users.GetUserByID(ctx, req.UserID)
	}
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if user == nil || !user.EmailConfirmed {
		if req.Code != "" {
			return ErrInvalidCode
		}
		return nil
	}

	if req.Code == "" {
		s.sendResetLink(ctx, user)
		return nil
	}

	if problems := password.Validate(req.NewPassword); len(problems) > 0 {
		return NewValidationError("NewPassword", problems...)
	}
	if !validCodeFormat(req.Code) {
		return ErrInvalidCode
	}
	ok, err := s.Users.ConsumeUserToken(ctx, user.ID, PurposeResetPassword, hashCode(req.Code), s.Clock.Now())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return ErrInvalidCode
	}
	hash, err := password.GetHash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.Users.SetPasswordHash(ctx, user.ID, hash, uuid.NewString()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, user)
	s.Log.Info("password reset", sl.Op(op), sl.UserID(user.ID))
	return nil
}

func (s *Service) issue(user *models.User) (*models.AccessTokenResponse, error) {
	access, expiresAt, err := s.Tokens.GenerateToken(&models.Principal{
		UserID:        user.ID,
		Username:      user.Username,
		Roles:         user.Roles,
		SecurityStamp: user.SecurityStamp,
	})
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.Protector.Protect(user.ID, user.SecurityStamp)
	if err != nil {
		return nil, err
	}
	return &models.AccessTokenResponse{
		TokenType:        TokenType,
		AccessToken:      access,
		ExpiresInSeconds: int64(expiresAt.Sub(s.Clock.Now()).Seconds()),
		RefreshToken:     refreshToken,
	}, nil
}

func (s *Service) sendConfirmation(ctx context.Context, user *models.User) {
	link, err := s.issueCode(ctx, user, PurposeConfirmEmail, s.opts.ConfirmEmailPath)
	if err != nil {
		s.Log.Error("failed to issue confirmation code", sl.UserID(user.ID), sl.Err(err))
		return
	}
	s.sendMail(ctx, mailer.TemplateConfirmMail, "Confirm your email", user, link)
}

func (s *Service) sendResetLink(ctx context.Context, user *models.User) {
	link, err := s.issueCode(ctx, user, PurposeResetPassword, s.opts.ResetPasswordPath)
	if err != nil {
		s.Log.Error("failed to issue reset code", sl.UserID(user.ID), sl.Err(err))
		return
	}
	s.sendMail(ctx, mailer.TemplateResetPassword, "Reset your password", user, link)
}

// issueCode сохраняет новый код и возвращает ссылку {base}/{path}/{userID}/{code}.
func (s *Service) issueCode(ctx context.Context, user *models.User, purpose, path string) (string, error) {
	code, hash, err := newCode()
	if err != nil {
		return "", err
	}
	if err := s.Users.SaveUserToken(ctx, user.ID, purpose, hash, s.Clock.Now().Add(s.opts.CodeTTL)); err != nil {
		return "", err
	}
	return strings.TrimRight(s.opts.BaseURL, "/") + "/" + strings.Trim(path, "/") + "/" +
		url.PathEscape(user.ID) + "/" + code, nil
}

// sendMail не возвращает ошибку: сбой отправки только логируется.
func (s *Service) sendMail(ctx context.Context, template, subject string, user *models.User, link string) {
	data := map[string]string{
		"Username": user.Username,
		"Link":     link,
	}
	if err := s.Mail.SendTemplatedMail(ctx, template, subject, data, user.Email); err != nil {
		s.Log.Error("failed to send mail",
			slog.String("template", template), sl.UserID(user.ID), sl.Err(err))
	}
}

func (s *Service) invalidate(ctx context.Context, user *models.User) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.RemoveUserFromCache(ctx, user); err != nil {
		s.Log.Warn("failed to invalidate user cache", sl.UserID(user.ID), sl.Err(err))
	}
}

func (s *Service) countLogin(outcome string) {
	if s.Metrics != nil {
		s.Metrics.Logins.WithLabelValues(outcome).Inc()
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return strings.ToLower(fe.Field()) + " is required"
	case "email":
		return "email is not valid"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", strings.ToLower(fe.Field()), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", strings.ToLower(fe.Field()), fe.Param())
	default:
		return strings.ToLower(fe.Field()) + " is not valid"
	}
}
