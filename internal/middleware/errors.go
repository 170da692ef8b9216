package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/custody_auth/internal/apperr"
)

// kindRoute marks requests that matched no route.
const kindRoute apperr.Kind = "route_not_found"

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// ErrorHandler renders every handler error as {error, kind} with the status
// of its kind. Internal causes are logged, never returned.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := statusOf(err)
		body := errorBody{Error: apperr.PublicMessage(err), Kind: string(kindOf(err))}

		var fe *fiber.Error
		if asFiberError(err, &fe) {
			body.Error = fe.Message
		} else if apperr.KindOf(err) == apperr.KindInternal && logger != nil {
			logger.Error("unhandled error",
				slog.String("path", c.Path()),
				slog.String("request_id", RequestIDFrom(c)),
				slog.Any("error", err),
			)
		}
		return c.Status(status).JSON(body)
	}
}

func statusOf(err error) int {
	var fe *fiber.Error
	if asFiberError(err, &fe) {
		return fe.Code
	}
	return apperr.Status(apperr.KindOf(err))
}

func asFiberError(err error, target **fiber.Error) bool {
	return errors.As(err, target)
}

func kindForStatus(status int) apperr.Kind {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge:
		return apperr.KindValidation
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return kindRoute
	case http.StatusConflict:
		return apperr.KindSessionInProgress
	case http.StatusTooManyRequests:
		return apperr.KindRateLimited
	default:
		return apperr.KindInternal
	}
}
