package middleware

import (
	"time"

	"learnplan/backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

func LoggingMiddleware(logger *utils.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		requestID := c.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(RequestIDHeader, requestID)

		// Передаем управление следующему обработчику
		err := c.Next()
		if err != nil {
			// let the app error handler write the response so the status is final
			if hErr := c.App().ErrorHandler(c, err); hErr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		kv := []interface{}{
			"request_id", requestID,
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency", time.Since(start),
			"ip", c.IP(),
		}
		if status >= fiber.StatusInternalServerError {
			logger.Warn("request", kv...)
		} else {
			logger.Info("request", kv...)
		}
		return nil
	}
}
