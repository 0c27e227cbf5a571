package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/magabrotheeeer/software-marketplace/internal/models"
)

const foreignKeyViolation = "23503"

func foreignKeyViolated(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// CreateSoftware добавляет программу в каталог.
func (s *Storage) CreateSoftware(ctx context.Context, name string) (*models.Software, error) {
	const op = "storage.CreateSoftware"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	sw := &models.Software{Name: name}
	if err := s.DB.QueryRowContext(ctx,
		`INSERT INTO software (name) VALUES ($1) RETURNING id`, name).Scan(&sw.ID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sw, nil
}

// CreateSubscriptionType добавляет тариф к неудалённой программе и заполняет его ID.
func (s *Storage) CreateSubscriptionType(ctx context.Context, st *models.SubscriptionType) error {
	const op = "storage.CreateSubscriptionType"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `WITH sw AS (
			      SELECT id, name FROM software WHERE id = $1 AND NOT is_deleted
			  ), ins AS (
			      INSERT INTO subscription_types (software_id, name, length_in_days)
			      SELECT id, $2, $3 FROM sw
			      RETURNING id
			  )
			  SELECT ins.id, sw.name FROM ins, sw`
	err := s.DB.QueryRowContext(ctx, query, st.SoftwareID, st.Name, st.LengthInDays).
		Scan(&st.ID, &st.SoftwareName)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrSoftwareNotFound)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetSubscriptionType возвращает тип подписки, в том числе удалённый.
func (s *Storage) GetSubscriptionType(ctx context.Context, id int64) (*models.SubscriptionType, error) {
	const op = "storage.GetSubscriptionType"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	st := &models.SubscriptionType{}
	err := s.DB.QueryRowContext(ctx, `
		SELECT st.id, st.software_id, sw.name, st.name, st.length_in_days,
		       st.is_deleted OR sw.is_deleted
		FROM subscription_types st
		JOIN software sw ON sw.id = st.software_id
		WHERE st.id = $1`, id).
		Scan(&st.ID, &st.SoftwareID, &st.SoftwareName, &st.Name, &st.LengthInDays, &st.IsDeleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrSubscriptionTypeNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return st, nil
}

// AddSubscription сохраняет подписку и заполняет её ID.
func (s *Storage) AddSubscription(ctx context.Context, sub *models.Subscription) error {
	const op = "storage.AddSubscription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO subscriptions (user_id, subscription_type_id, start_date, end_date)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		sub.UserID, sub.SubscriptionTypeID, sub.StartDate, sub.EndDate).Scan(&sub.ID)
	if err != nil {
		if constraint, ok := foreignKeyViolated(err); ok {
			if strings.Contains(constraint, "user_id") {
				return fmt.Errorf("%s: %w", op, ErrUserNotFound)
			}
			return fmt.Errorf("%s: %w", op, ErrSubscriptionTypeNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RevokeSubscriberIfInactive отзывает роль Subscriber, если у пользователя
// нет подписки, действующей в момент at (границы включительно). Проверка и
// удаление выполняются одним выражением, поэтому подписка, записанная
// параллельно, роль сохраняет. Возвращает true, если роль была удалена.
func (s *Storage) RevokeSubscriberIfInactive(ctx context.Context, userID string, at time.Time) (bool, error) {
	const op = "storage.RevokeSubscriberIfInactive"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx, `
		DELETE FROM user_roles
		WHERE user_id = $1 AND role = $2
		AND NOT EXISTS (
			SELECT 1 FROM subscriptions
			WHERE user_id = $1 AND start_date <= $3 AND end_date >= $3
		)`, userID, string(models.RoleSubscriber), at)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// SubscriptionsOf возвращает подписки пользователя по возрастанию даты начала.
func (s *Storage) SubscriptionsOf(ctx context.Context, userID string) ([]models.Subscription, error) {
	const op = "storage.SubscriptionsOf"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT s.id, s.user_id, s.subscription_type_id, st.name, sw.name, s.start_date, s.end_date
		FROM subscriptions s
		JOIN subscription_types st ON st.id = s.subscription_type_id
		JOIN software sw ON sw.id = st.software_id
		WHERE s.user_id = $1
		ORDER BY s.start_date, s.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := []models.Subscription{}
	for rows.Next() {
		var sub models.Subscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.SubscriptionTypeID,
			&sub.SubscriptionTypeName, &sub.SoftwareName, &sub.StartDate, &sub.EndDate); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		sub.StartDate = sub.StartDate.UTC()
		sub.EndDate = sub.EndDate.UTC()
		result = append(result, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
