package handlers

import (
	"browsebux-economy/middleware"
	"browsebux-economy/models"
	"browsebux-economy/services"

	"github.com/gofiber/fiber/v2"
)

func SetupWithdrawalRoutes(r fiber.Router, withdrawals *services.WithdrawalService) {
	r.Post("/withdrawals/preview", func(c *fiber.Ctx) error {
		id, _ := middleware.GetIdentity(c)
		var req services.WithdrawalRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid JSON", err)
		}
		quote, err := withdrawals.Preview(c.UserContext(), id.UID, req)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(quote)
	})

	r.Post("/withdrawals", func(c *fiber.Ctx) error {
		id, _ := middleware.GetIdentity(c)
		var req services.WithdrawalRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid JSON", err)
		}
		w, u, err := withdrawals.Submit(c.UserContext(), id.UID, req)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"withdrawal": w,
			"user":       newUserResponse(u),
		})
	})

	r.Get("/withdrawals", func(c *fiber.Ctx) error {
		id, _ := middleware.GetIdentity(c)
		list, err := withdrawals.List(c.UserContext(), id.UID)
		if err != nil {
			return respondError(c, err)
		}
		if list == nil {
			list = []models.Withdrawal{}
		}
		return c.JSON(fiber.Map{"withdrawals": list})
	})
}

// SetupAdminRoutes exposes the external review decision for operators.
func SetupAdminRoutes(r fiber.Router, withdrawals *services.WithdrawalService) {
	r.Patch("/withdrawals/:id/status", func(c *fiber.Ctx) error {
		var req struct {
			Status models.WithdrawalStatus `json:"status"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid JSON", err)
		}
		if !req.Status.Valid() {
			return badRequest(c, "status must be pending, approved or rejected", nil)
		}
		w, err := withdrawals.SetStatus(c.UserContext(), c.Params("id"), req.Status)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(w)
	})
}
