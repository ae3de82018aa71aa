package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/parley-chat/parley/internal/auth"
	"github.com/parley-chat/parley/internal/database"
	"github.com/stretchr/testify/assert"
)

func Test_bearerToken(t *testing.T) {
	tcases := []struct {
		name     string
		header   string
		expected string
	}{
		{
			name:     "valid bearer token",
			header:   "Bearer abc123",
			expected: "abc123",
		},
		{
			name:     "missing header",
			header:   "",
			expected: "",
		},
		{
			name:     "wrong scheme",
			header:   "Basic abc123",
			expected: "",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}

			assert.Equal(t, tc.expected, bearerToken(req))
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	mockRepo := &database.MockChatRepository{}
	defer mockRepo.AssertExpectations(t)

	app := newTestApp(t, mockRepo, nil)

	token, err := app.authn.Issue(7, auth.DefaultTokenExpiration)
	assert.NoError(t, err)

	tcases := []struct {
		name         string
		authHeader   string
		expectedCode int
		expectedId   int
	}{
		{
			name:         "valid token passes identity through",
			authHeader:   "Bearer " + token,
			expectedCode: http.StatusOK,
			expectedId:   7,
		},
		{
			name:         "missing token is rejected",
			authHeader:   "",
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "garbage token is rejected",
			authHeader:   "Bearer not-a-token",
			expectedCode: http.StatusUnauthorized,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			var gotId int
			handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
				gotId, _ = UserId(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/account", nil)
			if tc.authHeader != "" {
				req.Header.Set("Authorization", tc.authHeader)
			}

			rr := httptest.NewRecorder()
			handler(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code)
			if tc.expectedCode == http.StatusOK {
				assert.Equal(t, tc.expectedId, gotId)
				assert.Contains(t, rr.Header().Get("Cache-Control"), "no-store")
			}
		})
	}
}

func TestErrorHandler_RecoversPanics(t *testing.T) {
	mockRepo := &database.MockChatRepository{}
	defer mockRepo.AssertExpectations(t)

	app := newTestApp(t, mockRepo, nil)

	handler := app.errorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	var apiErr ApiError
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}
