package handler

import (
	"errors"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"taxportal/internal/filecheck"
	"taxportal/internal/http/middleware"
	"taxportal/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if s, ok := c.Locals(middleware.RequestIDLocalKey).(string); ok {
		return s
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	})
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string // empty means err.Error() is safe to return
}

// serviceErrors is checked in order; the first match wins.
var serviceErrors = []errorMapping{
	{service.ErrIDRequired, fiber.StatusBadRequest, "INVALID_ID", "id is required"},
	{service.ErrValidation, fiber.StatusBadRequest, "VALIDATION_FAILED", ""},
	{filecheck.ErrEmptyFile, fiber.StatusBadRequest, "EMPTY_FILE", ""},
	{filecheck.ErrFileTooLarge, fiber.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", ""},
	{filecheck.ErrUnsupportedType, fiber.StatusUnsupportedMediaType, "UNSUPPORTED_FILE_TYPE", ""},
	{filecheck.ErrContentMismatch, fiber.StatusUnsupportedMediaType, "CONTENT_MISMATCH", ""},
	{service.ErrInvalidCredentials, fiber.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password"},
	{service.ErrForbidden, fiber.StatusForbidden, "FORBIDDEN", "you cannot access this resource"},
	{service.ErrTransactionNotFound, fiber.StatusNotFound, "TRANSACTION_NOT_FOUND", "payment transaction not found"},
	{service.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND", "resource not found"},
	{service.ErrEmailTaken, fiber.StatusConflict, "EMAIL_TAKEN", "email already registered"},
	{service.ErrConflict, fiber.StatusConflict, "CONFLICT", "resource already exists"},
	{service.ErrInvalidTransition, fiber.StatusConflict, "INVALID_TRANSITION", ""},
	{service.ErrInvalidSignature, fiber.StatusBadRequest, "INVALID_SIGNATURE", "payment signature mismatch"},
	{service.ErrAmountMismatch, fiber.StatusBadRequest, "AMOUNT_MISMATCH", "payment amount mismatch"},
	{service.ErrAccountLocked, fiber.StatusLocked, "ACCOUNT_LOCKED", ""},
	{service.ErrRateLimited, fiber.StatusTooManyRequests, "RATE_LIMITED", "too many attempts, try again later"},
}

// serviceError maps a service error onto the envelope. Unknown errors are
// logged and reported as 500.
func serviceError(c *fiber.Ctx, log *slog.Logger, err error) error {
	var rl *service.RateLimitedError
	if errors.As(err, &rl) {
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(rl.RetryAfter.Seconds()))))
	}
	var locked *service.LockedError
	if errors.As(err, &locked) {
		return writeError(c, fiber.StatusLocked, "ACCOUNT_LOCKED",
			"account locked until "+locked.Until.UTC().Format(time.RFC3339))
	}

	for _, m := range serviceErrors {
		if errors.Is(err, m.target) {
			msg := m.message
			if msg == "" {
				msg = err.Error()
			}
			return writeError(c, m.status, m.code, msg)
		}
	}

	if log != nil {
		log.ErrorContext(c.UserContext(), "request failed",
			"request_id", requestIDFromCtx(c),
			"method", c.Method(),
			"path", c.Path(),
			"error", err,
		)
	}
	return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}

// deny adapts writeError to the middleware's DenyFunc.
func deny(c *fiber.Ctx, status int, code, message string) error {
	return writeError(c, status, code, message)
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusUnauthorized:
			return writeError(c, status, "UNAUTHENTICATED", "authentication required")
		case fiber.StatusForbidden:
			return writeError(c, status, "FORBIDDEN", "forbidden")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "PAYLOAD_TOO_LARGE", "request body too large")
		case fiber.StatusUnsupportedMediaType:
			return writeError(c, status, "UNSUPPORTED_MEDIA_TYPE", "unsupported media type")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
