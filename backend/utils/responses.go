package utils

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// ErrorResponse структура для ошибок
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Success создает успешный JSON ответ (без обертки)
func Success(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(data)
}

// Created отправляет ответ 201 Created
func Created(c *fiber.Ctx, data interface{}) error {
	return Success(c, fiber.StatusCreated, data)
}

// Error создает JSON ответ с ошибкой
func Error(c *fiber.Ctx, status int, code string, message string) error {
	if status == fiber.StatusUnauthorized {
		c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
	}
	return c.Status(status).JSON(ErrorResponse{
		Success: false,
		Error:   http.StatusText(status),
		Code:    code,
		Message: message,
	})
}

// Fail renders err. AppErrors keep their status and message; fiber errors keep their
// status; everything else is logged and reported as a bare 500.
func Fail(c *fiber.Ctx, log *Logger, err error) error {
	if appErr := AsAppError(err); appErr != nil {
		if appErr.Status >= fiber.StatusInternalServerError && log != nil {
			log.Warn("request failed", "path", c.Path(), "code", appErr.Code, "error", err)
		}
		return Error(c, appErr.Status, appErr.Code, appErr.Message)
	}

	if fe, ok := err.(*fiber.Error); ok {
		return Error(c, fe.Code, "", fe.Message)
	}

	if log != nil {
		log.Error("unhandled error", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return Error(c, fiber.StatusInternalServerError, "internal_error", "Internal server error")
}

// BadRequest отправляет ответ 400 Bad Request
func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, "bad_request", message)
}

// Unauthorized отправляет ответ 401 Unauthorized
func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusUnauthorized, "unauthorized", message)
}
