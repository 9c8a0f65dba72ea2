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

func TestFail(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	Fail(rr, req, http.StatusNotFound, CodeSessionNotFound, "session not found")

	assert.Equal(t, http.StatusNotFound, rr.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"error": "session not found", "code": "SESSION_NOT_FOUND"}, body)
}

func TestOK(t *testing.T) {
	rr := httptest.NewRecorder()
	OK(rr, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"ok":true}`, rr.Body.String())
}

func TestValidationError(t *testing.T) {
	type req struct {
		RefreshToken string `validate:"required"`
		TelegramID   int64  `validate:"gt=0"`
	}
	err := validator.New().Struct(req{TelegramID: -1})
	require.Error(t, err)

	got := ValidationError(err.(validator.ValidationErrors))
	assert.Equal(t, CodeInvalidFormat, got.Code)
	assert.Equal(t, "field RefreshToken is a required field, field TelegramID is too small", got.Error)
}
