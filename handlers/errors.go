package handlers

import (
	"errors"

	"browsebux-economy/services"

	"github.com/gofiber/fiber/v2"
)

// respondError maps domain errors to HTTP responses. Anything unrecognised
// is passed to the app's ErrorHandler, which hides 5xx details.
func respondError(c *fiber.Ctx, err error) error {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":   "withdrawal request invalid",
			"reasons": verr.Reasons,
		})
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrWithdrawalNotFound),
		errors.Is(err, services.ErrTaskNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrSessionNotFound):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "no active session, open one with POST /api/v1/session",
		})
	case errors.Is(err, services.ErrInvalidTransition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	return err
}

func badRequest(c *fiber.Ctx, msg string, cause error) error {
	body := fiber.Map{"error": msg}
	if cause != nil {
		body["cause"] = cause.Error()
	}
	return c.Status(fiber.StatusBadRequest).JSON(body)
}
