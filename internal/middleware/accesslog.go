package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/custody_auth/internal/apperr"
)

// AccessLog emits one structured line per request. Query strings are not
// logged because GET /wallet carries the session token there.
func AccessLog(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Duration("duration", time.Since(start)),
		}
		if requestID := RequestIDFrom(c); requestID != "" {
			attrs = append(attrs, slog.String("request_id", requestID))
		}
		if err != nil {
			status = statusOf(err)
			attrs = append(attrs,
				slog.Int("status", status),
				slog.String("kind", string(kindOf(err))),
				slog.Any("error", err),
			)
			if status >= 500 {
				logger.Error("request completed", attrs...)
			} else {
				logger.Warn("request completed", attrs...)
			}
			return err
		}

		logger.Info("request completed", append(attrs, slog.Int("status", status))...)
		return nil
	}
}

func kindOf(err error) apperr.Kind {
	var fe *fiber.Error
	if asFiberError(err, &fe) {
		return kindForStatus(fe.Code)
	}
	return apperr.KindOf(err)
}
