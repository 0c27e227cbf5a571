package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/magabrotheeeer/software-marketplace/internal/models"
)

const userColumns = `id, sequence_id, username, email, email_confirmed, password_hash,
	security_stamp, lockout_enabled, lockout_end, access_failed_count,
	register_date, last_login_date`

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	var lockoutEnd sql.NullTime
	if err := row.Scan(&u.ID, &u.SequenceID, &u.Username, &u.Email, &u.EmailConfirmed,
		&u.PasswordHash, &u.SecurityStamp, &u.LockoutEnabled, &lockoutEnd,
		&u.AccessFailedCount, &u.RegisterDate, &u.LastLoginDate); err != nil {
		return nil, err
	}
	if lockoutEnd.Valid {
		t := lockoutEnd.Time.UTC()
		u.LockoutEnd = &t
	}
	u.RegisterDate = u.RegisterDate.UTC()
	u.LastLoginDate = u.LastLoginDate.UTC()
	return u, nil
}

// CreateUser сохраняет нового пользователя вместе с его ролями.
// Заполняет SequenceID. Нарушение уникальности имени или почты
// возвращается как ErrUsernameTaken или ErrEmailTaken.
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	const op = "storage.CreateUser"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		query := `INSERT INTO users (id, username, normalized_username, email, normalized_email,
				      email_confirmed, password_hash, security_stamp, lockout_enabled,
				      register_date, last_login_date)
				  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
				  RETURNING sequence_id`
		if err := tx.QueryRowContext(ctx, query,
			user.ID, user.Username, normalize(user.Username), user.Email, normalize(user.Email),
			user.EmailConfirmed, user.PasswordHash, user.SecurityStamp, user.LockoutEnabled,
			user.RegisterDate, user.LastLoginDate).Scan(&user.SequenceID); err != nil {
			return err
		}
		for _, role := range user.Roles {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO user_roles (user_id, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				user.ID, string(role)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if constraint, ok := constraintViolated(err); ok {
			switch {
			case strings.Contains(constraint, "username"):
				return fmt.Errorf("%s: %w", op, ErrUsernameTaken)
			case strings.Contains(constraint, "email"):
				return fmt.Errorf("%s: %w", op, ErrEmailTaken)
			}
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetUserByID возвращает пользователя с ролями и подписками.
func (s *Storage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, "storage.GetUserByID", "id = $1", id)
}

// GetUserByUsername ищет пользователя по имени без учёта регистра.
func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, "storage.GetUserByUsername", "normalized_username = $1", normalize(username))
}

// GetUserByEmail ищет пользователя по почте без учёта регистра.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "storage.GetUserByEmail", "normalized_email = $1", normalize(email))
}

// GetUserBySequenceID ищет пользователя по порядковому номеру.
func (s *Storage) GetUserBySequenceID(ctx context.Context, seq int64) (*models.User, error) {
	return s.getUser(ctx, "storage.GetUserBySequenceID", "sequence_id = $1", seq)
}

func (s *Storage) getUser(ctx context.Context, op, where string, arg any) (*models.User, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	row := s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if u.Roles, err = s.RolesOf(ctx, u.ID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if u.Subscriptions, err = s.SubscriptionsOf(ctx, u.ID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// RecordLogin фиксирует успешный вход: сбрасывает счётчик неудач
// и обновляет дату последнего входа.
func (s *Storage) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	const op = "storage.RecordLogin"
	return s.execUser(ctx, op,
		`UPDATE users SET access_failed_count = 0, last_login_date = $2 WHERE id = $1`,
		userID, at)
}

// RecordAccessFailed увеличивает счётчик неудачных попыток. Когда счётчик
// достигает maxAttempts, пользователь блокируется до lockoutUntil,
// а счётчик обнуляется. Возвращает true, если блокировка установлена.
func (s *Storage) RecordAccessFailed(ctx context.Context, userID string, maxAttempts int, lockoutUntil time.Time) (bool, error) {
	const op = "storage.RecordAccessFailed"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users SET
			      lockout_end = CASE
			          WHEN lockout_enabled AND access_failed_count + 1 >= $2 THEN $3
			          ELSE lockout_end END,
			      access_failed_count = CASE
			          WHEN lockout_enabled AND access_failed_count + 1 >= $2 THEN 0
			          ELSE access_failed_count + 1 END
			  WHERE id = $1
			  RETURNING lockout_enabled AND lockout_end = $3`
	var locked sql.NullBool
	err := s.DB.QueryRowContext(ctx, query, userID, maxAttempts, lockoutUntil).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return locked.Valid && locked.Bool, nil
}

// SetLockout включает блокировку до end. nil снимает блокировку.
func (s *Storage) SetLockout(ctx context.Context, userID string, end *time.Time) error {
	const op = "storage.SetLockout"
	return s.execUser(ctx, op,
		`UPDATE users SET lockout_enabled = TRUE, lockout_end = $2 WHERE id = $1`,
		userID, end)
}

// ConfirmEmail помечает почту пользователя подтверждённой.
func (s *Storage) ConfirmEmail(ctx context.Context, userID string) error {
	const op = "storage.ConfirmEmail"
	return s.execUser(ctx, op,
		`UPDATE users SET email_confirmed = TRUE WHERE id = $1`, userID)
}

// SetPasswordHash меняет пароль и security stamp, отзывая выданные refresh‑токены.
func (s *Storage) SetPasswordHash(ctx context.Context, userID, hash, securityStamp string) error {
	const op = "storage.SetPasswordHash"
	return s.execUser(ctx, op,
		`UPDATE users SET password_hash = $2, security_stamp = $3, access_failed_count = 0 WHERE id = $1`,
		userID, hash, securityStamp)
}

func (s *Storage) execUser(ctx context.Context, op, query string, args ...any) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	return nil
}
