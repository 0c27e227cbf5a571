package confirmemail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/software-marketplace/internal/services/auth"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) ConfirmEmail(ctx context.Context, userID, code string) error {
	args := m.Called(ctx, userID, code)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

const userID = "8d3c1a6e-3f4b-4a9c-9d3b-1c2e3f4a5b6c"

func TestConfirmEmailHandler(t *testing.T) {
	validBody := `{"user_id":"` + userID + `","code":"Y29kZQ"}`

	tests := []struct {
		name           string
		body           string
		mockErr        error
		callsService   bool
		wantStatusCode int
		wantStatus     string
		wantError      string
		wantField      string
	}{
		{
			name:           "confirmed",
			body:           validBody,
			callsService:   true,
			wantStatusCode: http.StatusOK,
			wantStatus:     "OK",
		},
		{
			name:           "invalid code",
			body:           validBody,
			mockErr:        fmt.Errorf("auth.ConfirmEmail: %w", auth.ErrInvalidCode),
			callsService:   true,
			wantStatusCode: http.StatusBadRequest,
			wantStatus:     "Error",
			wantError:      "invalid code",
		},
		{
			name:           "service failure",
			body:           validBody,
			mockErr:        errors.New("db down"),
			callsService:   true,
			wantStatusCode: http.StatusBadRequest,
			wantStatus:     "Error",
			wantError:      "bad request",
		},
		{
			name:           "user id must be uuid",
			body:           `{"user_id":"alice","code":"Y29kZQ"}`,
			wantStatusCode: http.StatusBadRequest,
			wantStatus:     "Error",
			wantError:      "validation failed",
			wantField:      "UserID",
		},
		{
			name:           "code required",
			body:           `{"user_id":"` + userID + `"}`,
			wantStatusCode: http.StatusBadRequest,
			wantStatus:     "Error",
			wantError:      "validation failed",
			wantField:      "Code",
		},
		{
			name:           "malformed body",
			body:           `{"user_id":`,
			wantStatusCode: http.StatusBadRequest,
			wantStatus:     "Error",
			wantError:      "invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			if tt.callsService {
				svc.On("ConfirmEmail", mock.Anything, userID, "Y29kZQ").Return(tt.mockErr).Once()
			}
			handler := New(newNoopLogger(), svc)

			req := httptest.NewRequest(http.MethodPost, "/user/confirm-email", bytes.NewBufferString(tt.body))
			req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "reqid123"))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			var got map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			assert.Equal(t, tt.wantStatus, got["status"])
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, got["error"])
			}
			if tt.wantField != "" {
				fields, ok := got["fields"].(map[string]any)
				require.True(t, ok)
				assert.Contains(t, fields, tt.wantField)
			}
			if tt.callsService {
				svc.AssertExpectations(t)
			} else {
				svc.AssertNumberOfCalls(t, "ConfirmEmail", 0)
			}
		})
	}
}
