package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/samirrijal/estatemap/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // bad_request, retrieval_failure, internal_error, ...
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errRetrieval returns a 500 error for a failed store read.
func errRetrieval(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "retrieval_failure", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errFromService maps a MapService error onto a response. msg is shown for
// server-side failures; the underlying cause is only logged.
func errFromService(c *fiber.Ctx, err error, msg string) error {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return errBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrRetrieval):
		LoggerFromCtx(c.UserContext()).Error(msg, "error", err)
		return errRetrieval(c, msg)
	default:
		LoggerFromCtx(c.UserContext()).Error(msg, "error", err)
		return errInternal(c, msg)
	}
}
