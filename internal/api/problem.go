package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/appforge/internal/errors"
)

// ProblemDetail follows RFC 7807 for error responses.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// problemResponse returns an RFC 7807 Problem Detail error response.
func problemResponse(c *fiber.Ctx, status int, errType, title, detail string) error {
	return c.Status(status).JSON(ProblemDetail{
		Type:     errType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Path(),
	}, "application/problem+json")
}

type problemKind struct {
	target error
	status int
	typ    string
	title  string
}

// Checked in order; ErrNoPackage must precede the generic not-found case.
var problemKinds = []problemKind{
	{perrors.ErrInvalidInput, fiber.StatusBadRequest, "invalid_input", "Bad Request"},
	{perrors.ErrNotCompleted, fiber.StatusBadRequest, "not_completed", "Bad Request"},
	{perrors.ErrNoPackage, fiber.StatusNotFound, "package_not_found", "Not Found"},
	{perrors.ErrNotFound, fiber.StatusNotFound, "not_found", "Not Found"},
	{perrors.ErrConflict, fiber.StatusConflict, "conflict", "Conflict"},
	{perrors.ErrRateLimit, fiber.StatusTooManyRequests, "rate_limit_exceeded", "Too Many Requests"},
	{perrors.ErrUnavailable, fiber.StatusServiceUnavailable, "unavailable", "Service Unavailable"},
	{perrors.ErrTimeout, fiber.StatusGatewayTimeout, "timeout", "Gateway Timeout"},
}

// domainError writes the problem response for an error from the service layer.
func domainError(c *fiber.Ctx, err error) error {
	for _, k := range problemKinds {
		if errors.Is(err, k.target) {
			return problemResponse(c, k.status, k.typ, k.title, err.Error())
		}
	}
	return err
}

func errorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		title := "Internal Server Error"
		typ := "internal_error"
		detail := "An internal error occurred"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			title = utils.StatusMessage(code)
			typ = "http_error"
			detail = fe.Message
		}

		if code >= fiber.StatusInternalServerError {
			logger.Error().
				Err(err).
				Int("status", code).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Msg("unhandled error")
		}
		return problemResponse(c, code, typ, title, detail)
	}
}
