package models

import "time"

// Software — программный продукт каталога.
type Software struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	IsDeleted bool   `json:"is_deleted"`
}

// SubscriptionType — тариф продукта с фиксированной длительностью.
type SubscriptionType struct {
	ID           int64  `json:"id"`
	SoftwareID   int64  `json:"software_id"`
	SoftwareName string `json:"software_name"`
	Name         string `json:"name"`
	LengthInDays int    `json:"length_in_days"`
	IsDeleted    bool   `json:"is_deleted"`
}

// Subscription — выданная пользователю подписка. После создания не изменяется,
// продление оформляется новой записью.
type Subscription struct {
	ID                   int64     `json:"id"`
	UserID               string    `json:"user_id"`
	SubscriptionTypeID   int64     `json:"subscription_type_id"`
	SubscriptionTypeName string    `json:"subscription_type_name"`
	SoftwareName         string    `json:"software_name"`
	StartDate            time.Time `json:"start_date"`
	EndDate              time.Time `json:"end_date"`
}

// NewSubscription создаёт подписку, начинающуюся в момент now.
// EndDate = now + LengthInDays суток.
func NewSubscription(userID string, st *SubscriptionType, now time.Time) Subscription {
	return Subscription{
		UserID:               userID,
		SubscriptionTypeID:   st.ID,
		SubscriptionTypeName: st.Name,
		SoftwareName:         st.SoftwareName,
		StartDate:            now,
		EndDate:              now.AddDate(0, 0, st.LengthInDays),
	}
}

// IsActive сообщает, действует ли подписка в момент now (границы включительно).
func (s *Subscription) IsActive(now time.Time) bool {
	return !now.Before(s.StartDate) && !now.After(s.EndDate)
}

// TimeRemaining возвращает остаток срока, не меньше нуля.
func (s *Subscription) TimeRemaining(now time.Time) time.Duration {
	left := s.EndDate.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// SubscriptionResponse — представление подписки для клиента.
type SubscriptionResponse struct {
	SubscriptionID       int64            `json:"subscription_id"`
	SoftwareName         string           `json:"software_name"`
	SubscriptionTypeName string           `json:"subscription_type_name"`
	EndDate              time.Time        `json:"end_date"`
	TimeRemaining        TimeSpanResponse `json:"time_remaining"`
	IsActive             bool             `json:"is_active"`
}

// TimeSpanResponse раскладывает длительность на дни, часы и минуты.
type TimeSpanResponse struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// NewSubscriptionResponse собирает SubscriptionResponse на момент now.
func NewSubscriptionResponse(s *Subscription, now time.Time) SubscriptionResponse {
	left := s.TimeRemaining(now)
	return SubscriptionResponse{
		SubscriptionID:       s.ID,
		SoftwareName:         s.SoftwareName,
		SubscriptionTypeName: s.SubscriptionTypeName,
		EndDate:              s.EndDate,
		TimeRemaining: TimeSpanResponse{
			Days:    int(left / (24 * time.Hour)),
			Hours:   int(left%(24*time.Hour)) / int(time.Hour),
			Minutes: int(left%time.Hour) / int(time.Minute),
		},
		IsActive: s.IsActive(now),
	}
}
