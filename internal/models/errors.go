package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Error codes carried by AppError.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeInternal     = "INTERNAL_ERROR"
)

var codeStatus = map[string]int{
	CodeValidation:   fiber.StatusBadRequest,
	CodeUnauthorized: fiber.StatusUnauthorized,
	CodeForbidden:    fiber.StatusForbidden,
	CodeNotFound:     fiber.StatusNotFound,
	CodeInternal:     fiber.StatusInternalServerError,
}

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status for the error's code.
func (e *AppError) Status() int {
	if s, ok := codeStatus[e.Code]; ok {
		return s
	}
	return fiber.StatusInternalServerError
}

// NewNotFoundError reports a missing resource.
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

var (
	pgKeyDetail     = regexp.MustCompile(`Key \(([^)]+)\)=`)
	sqliteUnique    = regexp.MustCompile(`UNIQUE constraint failed: [\w]+\.(\w+)`)
	mysqlDuplicated = regexp.MustCompile(`Duplicate entry '.*' for key '(?:[\w]+\.)?(?:idx_[\w]+?_)?(\w+)'`)
)

// TranslateError maps storage, token and framework errors onto AppError.
// Errors that are already AppErrors pass through unchanged.
func TranslateError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &AppError{Code: CodeNotFound, Message: "Resource not found", Err: err}
	}

	if field, ok := duplicateField(err); ok {
		msg := "duplicate value"
		if field != "" {
			msg = fmt.Sprintf("value of field %s already exists", field)
		}
		return &AppError{Code: CodeValidation, Message: msg, Err: err}
	}

	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return &AppError{Code: CodeUnauthorized, Message: "Token expired", Err: err}
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenInvalidClaims),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenInvalidAudience):
		return &AppError{Code: CodeUnauthorized, Message: "Invalid token", Err: err}
	}

	return NewInternalError(err)
}

func duplicateField(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if m := pgKeyDetail.FindStringSubmatch(pgErr.Detail); m != nil {
			return m[1], true
		}
		return "", true
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return "", true
	}

	msg := err.Error()
	if m := sqliteUnique.FindStringSubmatch(msg); m != nil {
		return m[1], true
	}
	if m := mysqlDuplicated.FindStringSubmatch(msg); m != nil {
		return m[1], true
	}
	if strings.Contains(msg, "duplicate key value") {
		return "", true
	}
	return "", false
}

// RespondWithError writes the standard error envelope with the status derived
// from err. Internal causes are never serialized.
func RespondWithError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(ErrorResponse{Error: fe.Message})
	}

	appErr := TranslateError(err)
	return c.Status(appErr.Status()).JSON(ErrorResponse{
		Error: appErr.Message,
		Code:  appErr.Code,
	})
}
