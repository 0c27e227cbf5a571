package me

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

func TestMeHandler_ServeHTTP(t *testing.T) {
	u := &models.User{
		ID:           "u-1",
		SequenceID:   3,
		Username:     "alice",
		Email:        "alice@example.com",
		RegisterDate: now.AddDate(0, -1, 0),
		Roles:        []models.Role{models.RoleUser, models.RoleSubscriber},
		Subscriptions: []models.Subscription{{
			ID:                   10,
			SoftwareName:         "Editor",
			SubscriptionTypeName: "Monthly",
			StartDate:            now.AddDate(0, 0, -1),
			EndDate:              now.Add(49*time.Hour + 30*time.Minute),
		}},
	}

	t.Run("extended info for caller", func(t *testing.T) {
		svc := new(MockService)
		svc.On("GetUser", mock.Anything, "u-1", true).Return(u, nil).Once()
		handler := New(newNoopLogger(), svc, clock.NewFake(now))

		req := httptest.NewRequest(http.MethodGet, "/user/me", nil)
		req = req.WithContext(middlewarectx.WithPrincipal(req.Context(), &models.Principal{UserID: "u-1"}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var got struct {
			Status string                      `json:"status"`
			Data   models.ExtendedInfoResponse `json:"data"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		assert.Equal(t, "alice@example.com", got.Data.Email)
		assert.False(t, got.Data.IsLockedOut)
		require.Len(t, got.Data.Subscriptions, 1)
		sub := got.Data.Subscriptions[0]
		assert.True(t, sub.IsActive)
		assert.Equal(t, models.TimeSpanResponse{Days: 2, Hours: 1, Minutes: 30}, sub.TimeRemaining)
		svc.AssertExpectations(t)
	})

	t.Run("no principal", func(t *testing.T) {
		svc := new(MockService)
		handler := New(newNoopLogger(), svc, clock.NewFake(now))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/user/me", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		svc.AssertNumberOfCalls(t, "GetUser", 0)
	})

	t.Run("service error", func(t *testing.T) {
		svc := new(MockService)
		svc.On("GetUser", mock.Anything, "u-1", true).Return(nil, errors.New("db down")).Once()
		handler := New(newNoopLogger(), svc, clock.NewFake(now))

		req := httptest.NewRequest(http.MethodGet, "/user/me", nil)
		req = req.WithContext(middlewarectx.WithPrincipal(req.Context(), &models.Principal{UserID: "u-1"}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
