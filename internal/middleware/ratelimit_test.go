package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRateLimitRejectsInvalidFormat(t *testing.T) {
	_, err := RateLimit("not-a-rate", "")
	require.Error(t, err)
}

func TestRateLimitAnswers429BeyondLimit(t *testing.T) {
	limit, err := RateLimit("2-M", "")
	require.NoError(t, err)

	router := gin.New()
	router.GET("/limited", limit, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	})

	hit := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/limited", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, hit().Code)
	require.Equal(t, http.StatusOK, hit().Code)

	third := hit()
	require.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.Contains(t, third.Body.String(), "too_many_requests")
}
