package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rata-backend/logger"
	"rata-backend/models"
	"rata-backend/utils"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func init() {
	logger.IsTest = true
	gin.SetMode(gin.TestMode)
}

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) Verify(ctx context.Context, token string) (models.Identity, error) {
	args := m.Called(token)
	return args.Get(0).(models.Identity), args.Error(1)
}

var _ Verifier = (*mockVerifier)(nil)

func setupAuthRouter(v Verifier) *gin.Engine {
	r := gin.New()
	r.Use(AuthRequired(v))
	r.GET("/me", func(c *gin.Context) {
		id, ok := utils.GetCurrentUser(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"uid": id.ID})
	})
	r.GET("/groups/:id/events", func(c *gin.Context) {
		id, _ := utils.GetCurrentUser(c)
		c.String(http.StatusOK, id.ID)
	})
	return r
}

func TestAuthRequired(t *testing.T) {
	v := new(mockVerifier)
	v.On("Verify", "good").Return(models.Identity{ID: "ana"}, nil)
	v.On("Verify", "bad").Return(models.Identity{}, errors.New("signature invalid"))
	r := setupAuthRouter(v)

	tests := []struct {
		name   string
		path   string
		header string
		status int
		body   string
	}{
		{"no header", "/me", "", http.StatusUnauthorized, "authorization required"},
		{"not bearer", "/me", "Basic abc", http.StatusUnauthorized, "authorization required"},
		{"invalid token", "/me", "Bearer bad", http.StatusUnauthorized, "invalid authentication token"},
		{"valid token", "/me", "Bearer good", http.StatusOK, `"uid":"ana"`},
		{"query token ignored outside streams", "/me?token=good", "", http.StatusUnauthorized, "authorization required"},
		{"query token on event stream", "/groups/g1/events?token=good", "", http.StatusOK, "ana"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func TestJWTVerifierRoundTrip(t *testing.T) {
	v, err := NewJWTVerifier(testSecret)
	require.NoError(t, err)

	token, err := v.IssueToken(models.Identity{ID: "ana", DisplayName: "Ana", Email: "ana@example.com"}, time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "ana", id.ID)
	assert.Equal(t, "Ana", id.DisplayName)
	assert.Equal(t, "ana@example.com", id.Email)
}

func TestJWTVerifierRejects(t *testing.T) {
	v, err := NewJWTVerifier(testSecret)
	require.NoError(t, err)
	ctx := context.Background()

	expired, err := v.IssueToken(models.Identity{ID: "ana"}, -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(ctx, expired)
	assert.Error(t, err)

	other, err := NewJWTVerifier(strings.Repeat("x", 32))
	require.NoError(t, err)
	foreign, err := other.IssueToken(models.Identity{ID: "ana"}, time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(ctx, foreign)
	assert.Error(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "ana"}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = v.Verify(ctx, noExpiry)
	assert.Error(t, err)

	noSubject, err := v.IssueToken(models.Identity{}, time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(ctx, noSubject)
	assert.Error(t, err)

	_, err = NewJWTVerifier("short")
	assert.Error(t, err)
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://rata.example.com"}))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://rata.example.com")
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://rata.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), RequestLogger())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "req-1")
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-1", w.Body.String())
	assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
