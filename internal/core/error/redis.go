package errx

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// WrapRedis maps Redis errors to AppError. The status follows the failure so
// callers that classify by status (timeouts, unavailability) see the right
// kind.
func WrapRedis(err error) error {
	if err == nil {
		return nil
	}

	var netErr net.Error
	switch {
	case errors.Is(err, redis.Nil):
		return New(err, http.StatusNotFound, RedisNotFoundMessage)
	case errors.Is(err, context.DeadlineExceeded):
		return New(err, http.StatusGatewayTimeout, RedisTimeoutMessage)
	case errors.As(err, &netErr) && netErr.Timeout():
		return New(err, http.StatusGatewayTimeout, RedisTimeoutMessage)
	case errors.Is(err, redis.ErrClosed):
		return New(err, http.StatusServiceUnavailable, RedisUnavailableMessage)
	default:
		return New(err, http.StatusBadGateway, RedisErrorMessage)
	}
}
