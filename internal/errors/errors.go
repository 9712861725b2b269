package errors

import (
	"net/http"
	"os"

	"codeberg.org/cklabs/authserver/internal/logger"
	"github.com/gin-gonic/gin"
)

// Error Handling Guidelines:
//
// For HTTP REST handlers:
//   - Use errors.InternalError(), errors.BadRequest(), etc. for critical errors
//     These functions handle both logging and HTTP response automatically
//   - Use logger.ErrorErr() only for non-critical errors where processing continues
//   - Never call both logger.ErrorErr() and errors.InternalError() for the same error
//
// For services/repositories/internal packages:
//   - Return wrapped errors with context using fmt.Errorf("context: %w", err)
//   - Let the caller (handler) decide how to log and respond
//   - Do not log errors in non-handler code (avoid double logging)
//
// Registration and login validation failures use field-keyed responses
// (FieldErrors) so clients can attach messages to individual form fields.

// represents a standardized error response
type ErrorResponse struct {
	Error   string `json:"error"`             // error code (e.g., "unauthorized", "bad_token")
	Message string `json:"message"`           // user-friendly message
	Details string `json:"details,omitempty"` // optional details (sanitized in production)
}

// maps field names to one or more validation messages, e.g.
// {"password": ["This field is required."]}
type FieldErrors map[string][]string

// adds a message for a field
func (f FieldErrors) Add(field, message string) {
	f[field] = append(f[field], message)
}

// reports whether any field has an error
func (f FieldErrors) HasErrors() bool {
	return len(f) > 0
}

// standard error codes
const (
	CodeUnauthorized     = "unauthorized"
	CodeNotFound         = "not_found"
	CodeValidationError  = "validation_error"
	CodeServerError      = "server_error"
	CodeBadRequest       = "bad_request"
	CodeMissingToken     = "missing_token"
	CodeBadToken         = "bad_token"
	CodeProfileFetch     = "profile_fetch_failed"
	CodeAlreadyLinked    = "already_registered"
	CodeTooManyRequests  = "too_many_requests"
	CodeInvalidOperation = "invalid_operation"
)

// returns a 400 with field-keyed validation messages
func Fields(c *gin.Context, fields FieldErrors) {
	c.JSON(http.StatusBadRequest, fields)
}

// returns a 401 with the credential-agnostic login failure body. The
// message is identical for unknown identifiers and wrong passwords.
func WrongCredentials(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"non_field_errors": []string{"Wrong credentials."},
	})
}

// returns a 401 unauthorized error
func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "authentication required"
	}

	c.JSON(http.StatusUnauthorized, ErrorResponse{
		Error:   CodeUnauthorized,
		Message: message,
	})
}

// returns a 404 not found error
func NotFound(c *gin.Context, resource string) {
	message := "resource not found"

	if resource != "" {
		message = resource + " not found"
	}

	c.JSON(http.StatusNotFound, ErrorResponse{
		Error:   CodeNotFound,
		Message: message,
	})
}

// returns a 400 bad request error
func BadRequest(c *gin.Context, message string, err error) {
	if message == "" {
		message = "invalid request"
	}

	response := ErrorResponse{
		Error:   CodeBadRequest,
		Message: message,
	}

	if err != nil {
		response.Details = sanitizeError(err)
	}

	c.JSON(http.StatusBadRequest, response)
}

// returns a 400 with a specific error code, used for provider exchange
// failures (missing_token, bad_token, profile_fetch_failed, already_registered)
func BadRequestCode(c *gin.Context, code, message string, err error) {
	response := ErrorResponse{
		Error:   code,
		Message: message,
	}

	if err != nil {
		response.Details = sanitizeError(err)
	}

	c.JSON(http.StatusBadRequest, response)
}

// returns a 500 internal server error
func InternalError(c *gin.Context, message string, err error) {
	if message == "" {
		message = "an error occurred"
	}

	// log full error server-side with context
	logger.ErrorErr(err, message,
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
		"user_id", c.GetString("user_id"),
	)

	// return sanitized error to client
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   CodeServerError,
		Message: message,
		Details: sanitizeError(err),
	})
}

// returns a 429 too many requests error
func TooManyRequests(c *gin.Context, message string) {
	if message == "" {
		message = "too many requests"
	}

	c.JSON(http.StatusTooManyRequests, ErrorResponse{
		Error:   CodeTooManyRequests,
		Message: message,
	})
}

// sanitizes error messages for production
func sanitizeError(err error) string {
	if err == nil {
		return ""
	}

	if os.Getenv("ENVIRONMENT") == "production" {
		return ""
	}

	return err.Error()
}
