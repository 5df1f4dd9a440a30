package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tradmak/aixos/internal/transport/httpdto"
	aixos_errors "github.com/tradmak/aixos/pkg/errors"
	"github.com/tradmak/aixos/pkg/logger"
)

// ErrorHandler converts sentinel errors attached via c.Error into the JSON
// envelope. Handlers that already wrote a response are left alone.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		if l != nil {
			l.Errorf("request error: %s", err.Error())
		}
		status, code := classify(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
	}
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, aixos_errors.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, aixos_errors.ErrUnauthorized), errors.Is(err, aixos_errors.ErrAuthExpired):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, aixos_errors.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, aixos_errors.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, aixos_errors.ErrConflict), errors.Is(err, aixos_errors.ErrAlreadyExists):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, aixos_errors.ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED"
	case errors.Is(err, aixos_errors.ErrDispatchFailed), errors.Is(err, aixos_errors.ErrServiceUnavailable):
		return http.StatusBadGateway, "UPSTREAM_FAILED"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
