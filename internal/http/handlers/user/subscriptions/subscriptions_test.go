package subscriptions

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/software-marketplace/internal/http/middlewarectx"
	"github.com/magabrotheeeer/software-marketplace/internal/lib/clock"
	"github.com/magabrotheeeer/software-marketplace/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) GetUser(ctx context.Context, id string, useCache bool) (*models.User, error) {
	args := m.Called(ctx, id, useCache)
	if res := args.Get(0); res != nil {
		return res.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestSubscriptionsHandler(t *testing.T) {
	u := &models.User{
		ID:       "u-1",
		Username: "alice",
		Roles:    []models.Role{models.RoleUser, models.RoleSubscriber},
		Subscriptions: []models.Subscription{
			{
				ID:                   7,
				SoftwareName:         "Editor",
				SubscriptionTypeName: "Monthly",
				StartDate:            now.AddDate(0, -2, 0),
				EndDate:              now.AddDate(0, -1, 0),
			},
			{
				ID:                   8,
				SoftwareName:         "Editor",
				SubscriptionTypeName: "Monthly",
				StartDate:            now.AddDate(0, 0, -1),
				EndDate:              now.Add(26 * time.Hour),
			},
		},
	}

	tests := []struct {
		name           string
		principal      *models.Principal
		mockUser       *models.User
		mockErr        error
		wantStatusCode int
		wantError      string
		wantActive     []bool
	}{
		{
			name:           "lists every subscription",
			principal:      &models.Principal{UserID: "u-1"},
			mockUser:       u,
			wantStatusCode: http.StatusOK,
			wantActive:     []bool{false, true},
		},
		{
			name:           "no subscriptions yields empty list",
			principal:      &models.Principal{UserID: "u-1"},
			mockUser:       &models.User{ID: "u-1"},
			wantStatusCode: http.StatusOK,
			wantActive:     []bool{},
		},
		{
			name:           "no principal",
			wantStatusCode: http.StatusUnauthorized,
			wantError:      "unauthorized",
		},
		{
			name:           "lookup failure",
			principal:      &models.Principal{UserID: "u-1"},
			mockErr:        errors.New("db down"),
			wantStatusCode: http.StatusBadRequest,
			wantError:      "bad request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			if tt.principal != nil {
				svc.On("GetUser", mock.Anything, tt.principal.UserID, true).Return(tt.mockUser, tt.mockErr).Once()
			}
			handler := New(newNoopLogger(), svc, clock.NewFake(now))

			req := httptest.NewRequest(http.MethodGet, "/user/subscriptions", nil)
			if tt.principal != nil {
				req = req.WithContext(middlewarectx.WithPrincipal(req.Context(), tt.principal))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatusCode, rec.Code)
			if tt.wantError != "" {
				var got map[string]any
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
				assert.Equal(t, tt.wantError, got["error"])
				if tt.principal == nil {
					svc.AssertNumberOfCalls(t, "GetUser", 0)
				}
				return
			}

			var got struct {
				Status string                        `json:"status"`
				Data   []models.SubscriptionResponse `json:"data"`
			}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			assert.Equal(t, "OK", got.Status)
			active := make([]bool, 0, len(got.Data))
			for _, s := range got.Data {
				active = append(active, s.IsActive)
			}
			assert.Equal(t, tt.wantActive, active)
			svc.AssertExpectations(t)
		})
	}

	t.Run("time remaining counts from the clock", func(t *testing.T) {
		svc := new(MockService)
		svc.On("GetUser", mock.Anything, "u-1", true).Return(u, nil).Once()
		handler := New(newNoopLogger(), svc, clock.NewFake(now))

		req := httptest.NewRequest(http.MethodGet, "/user/subscriptions", nil)
		req = req.WithContext(middlewarectx.WithPrincipal(req.Context(), &models.Principal{UserID: "u-1"}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		var got struct {
			Data []models.SubscriptionResponse `json:"data"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		require.Len(t, got.Data, 2)
		assert.EqualValues(t, 8, got.Data[1].SubscriptionID)
		assert.Equal(t, models.TimeSpanResponse{Days: 1, Hours: 2}, got.Data[1].TimeRemaining)
	})
}
