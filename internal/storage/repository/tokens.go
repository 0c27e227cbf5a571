package repository

import (
	"context"
	"fmt"
	"time"
)

// SaveUserToken сохраняет хэш одноразового кода для цели purpose.
// Новый код той же цели заменяет предыдущий.
func (s *Storage) SaveUserToken(ctx context.Context, userID, purpose, tokenHash string, expiresAt time.Time) error {
	const op = "storage.SaveUserToken"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO user_tokens (user_id, purpose, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, purpose)
		DO UPDATE SET token_hash = EXCLUDED.token_hash, expires_at = EXCLUDED.expires_at`,
		userID, purpose, tokenHash, expiresAt)
	if err != nil {
		if _, ok := foreignKeyViolated(err); ok {
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ConsumeUserToken погашает код: удаляет запись, если хэш совпал и срок не
// истёк к моменту now. Возвращает false, если подходящего кода нет.
func (s *Storage) ConsumeUserToken(ctx context.Context, userID, purpose, tokenHash string, now time.Time) (bool, error) {
	const op = "storage.ConsumeUserToken"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx, `
		DELETE FROM user_tokens
		WHERE user_id = $1 AND purpose = $2 AND token_hash = $3 AND expires_at > $4`,
		userID, purpose, tokenHash, now)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}
