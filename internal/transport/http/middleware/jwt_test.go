package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"buildscope/internal/logger"
	"buildscope/internal/pkg/jwtutil"
)

const testSecret = "middleware-secret"

func newTestEngine(auth gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(logger.Nop()))
	r.GET("/who", auth, func(c *gin.Context) {
		userID, ok := c.Get(ContextUserIDKey)
		if !ok {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "username": c.GetString(ContextUsernameKey)})
	})
	return r
}

func request(t *testing.T, r *gin.Engine, header string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuthJWT(t *testing.T) {
	r := newTestEngine(AuthJWT(testSecret))
	token, err := jwtutil.GenerateToken(testSecret, time.Hour, 42, "site-lead")
	require.NoError(t, err)

	rec := request(t, r, "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"user_id":42,"username":"site-lead"}`, rec.Body.String())

	require.Equal(t, http.StatusUnauthorized, request(t, r, "").Code)
	require.Equal(t, http.StatusUnauthorized, request(t, r, "Basic abc").Code)
	require.Equal(t, http.StatusUnauthorized, request(t, r, "Bearer not-a-token").Code)

	other, err := jwtutil.GenerateToken("other-secret", time.Hour, 42, "site-lead")
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, request(t, r, "Bearer "+other).Code)
}

func TestOptionalJWT(t *testing.T) {
	r := newTestEngine(OptionalJWT(testSecret))
	token, err := jwtutil.GenerateToken(testSecret, time.Hour, 7, "pm")
	require.NoError(t, err)

	rec := request(t, r, "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"user_id":7,"username":"pm"}`, rec.Body.String())

	rec = request(t, r, "Bearer garbage")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "anonymous", rec.Body.String())
}
