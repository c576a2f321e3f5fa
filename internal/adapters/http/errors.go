package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/TheAcademyofNaturalSciences/basinscope/internal/adapters/hydroapi"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, bad_gateway, etc.
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
	return newError(c, 400, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, 404, "not_found", msg)
}

// errConflict returns a 409 error.
func errConflict(c *fiber.Ctx, msg string) error {
	return newError(c, 409, "conflict", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, 500, "internal_error", msg)
}

// errBadGateway returns a 502 error for upstream hydrology failures.
func errBadGateway(c *fiber.Ctx, msg string) error {
	return newError(c, 502, "bad_gateway", msg)
}

// errUnavailable returns a 503 error.
func errUnavailable(c *fiber.Ctx, msg string) error {
	return newError(c, 503, "service_unavailable", msg)
}

// domainError maps errors from the core services onto HTTP statuses.
// Invalid input is the caller's fault, missing things are 404, and an
// upstream hydrology failure is a gateway error rather than ours.
func domainError(c *fiber.Ctx, err error) error {
	var upstream *hydroapi.UpstreamError
	switch {
	case errors.Is(err, domain.ErrEmptyGeometry),
		errors.Is(err, domain.ErrUnsupportedGeometry):
		return errBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrSketchNotFound):
		return errNotFound(c, "sketch not found")
	case errors.Is(err, domain.ErrFeatureNotFound):
		return errNotFound(c, "feature not found in sketch")
	case errors.Is(err, domain.ErrReportNotFound):
		return errNotFound(c, "report not found")
	case errors.Is(err, domain.ErrReportNotReady):
		return errConflict(c, "report has not completed")
	case errors.As(err, &upstream):
		return errBadGateway(c, err.Error())
	default:
		return errInternal(c, err.Error())
	}
}
