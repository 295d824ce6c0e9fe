package utils

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error kinds. Check with errors.Is.
var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrLimitExceeded      = errors.New("resource limit exceeded")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// AppError carries the HTTP status and a stable code next to the user-facing message.
type AppError struct {
	Status  int
	Code    string
	Message string
	Kind    error
	Err     error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

func (e *AppError) Is(target error) bool {
	return e.Kind != nil && e.Kind == target
}

func Unauthenticated(message string) *AppError {
	return &AppError{Status: fiber.StatusUnauthorized, Code: "unauthorized", Message: message, Kind: ErrUnauthenticated}
}

func NotFound(message string) *AppError {
	return &AppError{Status: fiber.StatusNotFound, Code: "not_found", Message: message, Kind: ErrNotFound}
}

func Validation(message string) *AppError {
	return &AppError{Status: fiber.StatusBadRequest, Code: "validation_failed", Message: message, Kind: ErrValidation}
}

func LimitExceeded(message string) *AppError {
	return &AppError{Status: fiber.StatusBadRequest, Code: "too_many_unfinished_plans", Message: message, Kind: ErrLimitExceeded}
}

func ServiceUnavailable(message string, err error) *AppError {
	return &AppError{Status: fiber.StatusServiceUnavailable, Code: "generation_unavailable", Message: message, Kind: ErrServiceUnavailable, Err: err}
}

// AsAppError returns the AppError in err's chain, or nil.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}
