package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRequest struct {
	Name  string `validate:"required"`
	Email string `validate:"required,email"`
	Days  int    `validate:"gt=0"`
}

func TestValidationError(t *testing.T) {
	err := validator.New().Struct(testRequest{Email: "nope"})
	require.Error(t, err)

	resp := ValidationError(err.(validator.ValidationErrors))
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, []string{"field Name is a required field"}, resp.Fields["Name"])
	assert.Equal(t, []string{"field Email must be a valid email"}, resp.Fields["Email"])
	assert.Equal(t, []string{"field Days must be greater than 0"}, resp.Fields["Days"])
}

func TestUnauthorized(t *testing.T) {
	t.Run("challenge", func(t *testing.T) {
		rr := httptest.NewRecorder()
		Unauthorized(rr, httptest.NewRequest(http.MethodGet, "/", nil), true)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "Bearer", rr.Header().Get("WWW-Authenticate"))
		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, Error(MsgUnauthorized), body)
	})

	t.Run("plain", func(t *testing.T) {
		rr := httptest.NewRecorder()
		Unauthorized(rr, httptest.NewRequest(http.MethodGet, "/", nil), false)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Empty(t, rr.Header().Get("WWW-Authenticate"))
	})
}

func TestStatusOKWithData(t *testing.T) {
	resp := StatusOKWithData(map[string]int{"n": 1})
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"OK","data":{"n":1}}`, string(raw))
}
