package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	aixos_errors "github.com/tradmak/aixos/pkg/errors"
)

func TestClassifySentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{aixos_errors.ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT"},
		{aixos_errors.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{aixos_errors.ErrAuthExpired, http.StatusUnauthorized, "UNAUTHORIZED"},
		{aixos_errors.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{aixos_errors.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{aixos_errors.ErrConflict, http.StatusConflict, "CONFLICT"},
		{aixos_errors.ErrAlreadyExists, http.StatusConflict, "CONFLICT"},
		{aixos_errors.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED"},
		{aixos_errors.ErrDispatchFailed, http.StatusBadGateway, "UPSTREAM_FAILED"},
		{aixos_errors.ErrServiceUnavailable, http.StatusBadGateway, "UPSTREAM_FAILED"},
		{errors.New("anything else"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		status, code := classify(tc.err)
		require.Equal(t, tc.status, status, tc.err.Error())
		require.Equal(t, tc.code, code, tc.err.Error())
	}
}

func TestClassifyUnwrapsWrappedSentinels(t *testing.T) {
	wrapped := fmt.Errorf("loading conversation: %w", aixos_errors.ErrNotFound)
	status, code := classify(wrapped)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "NOT_FOUND", code)
}

func TestErrorHandlerWritesEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandler(nil))
	router.GET("/boom", func(c *gin.Context) {
		_ = c.Error(aixos_errors.ErrRateLimited)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Contains(t, w.Body.String(), "RATE_LIMITED")
}

func TestErrorHandlerLeavesWrittenResponsesAlone(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandler(nil))
	router.GET("/ok", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"fine": true})
		_ = c.Error(aixos_errors.ErrNotFound)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "fine")
}
