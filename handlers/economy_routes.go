package handlers

import (
	"strings"
	"time"
	"unicode/utf8"

	"browsebux-economy/middleware"
	"browsebux-economy/models"
	"browsebux-economy/services"
	"browsebux-economy/utils"

	"github.com/gofiber/fiber/v2"
)

const maxNameLength = 64

type userResponse struct {
	*models.User
	LevelProgress  float64 `json:"level_progress"`
	BalanceText    string  `json:"balance_text"`
	BalanceUSDText string  `json:"balance_usd_text"`
}

func newUserResponse(u *models.User) userResponse {
	return userResponse{
		User:           u,
		LevelProgress:  services.LevelProgress(*u),
		BalanceText:    services.FormatRobux(u.BalanceRobux),
		BalanceUSDText: services.FormatUSD(u.BalanceUSD),
	}
}

func SetupEconomyRoutes(r fiber.Router, svc Services) {
	r.Post("/session", func(c *fiber.Ctx) error {
		id, _ := middleware.GetIdentity(c)
		sess, err := svc.Sessions.Open(c.UserContext(), id)
		if err != nil {
			return respondError(c, err)
		}
		u := sess.User()
		return c.JSON(fiber.Map{
			"user":            newUserResponse(&u),
			"opened_at":       sess.OpenedAt,
			"completed_tasks": sess.CompletedTasks(),
		})
	})

	r.Delete("/session", func(c *fiber.Ctx) error {
		id, _ := middleware.GetIdentity(c)
		if err := svc.Sessions.Close(id.UID); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Get("/me", func(c *fiber.Ctx) error {
		id, _ := middleware.GetIdentity(c)
		u, err := svc.Economy.EnsureUser(c.UserContext(), id)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(newUserResponse(u))
	})

	r.Patch("/me", func(c *fiber.Ctx) error {
		id, _ := middleware.GetIdentity(c)
		var req struct {
			Name string `json:"name"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid JSON", err)
		}
		name := strings.TrimSpace(req.Name)
		if name == "" || utf8.RuneCountInString(name) > maxNameLength {
			return badRequest(c, "name must be 1-64 characters", nil)
		}
		u, err := svc.Economy.UpdateProfile(c.UserContext(), id.UID, services.ProfileUpdate{Name: &name})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(newUserResponse(u))
	})

	r.Put("/me/avatar", func(c *fiber.Ctx) error {
		id, _ := middleware.GetIdentity(c)
		if svc.Avatars == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "avatar uploads are disabled"})
		}
		fh, err := c.FormFile("avatar")
		if err != nil {
			return badRequest(c, "avatar file is required", err)
		}
		if err := utils.ValidateAvatar(fh); err != nil {
			return badRequest(c, "invalid avatar", err)
		}
		url, err := svc.Avatars.UploadFile(c.UserContext(), fh, utils.AvatarKey(id.UID, fh.Filename, time.Now()))
		if err != nil {
			return err
		}
		u, err := svc.Economy.UpdateProfile(c.UserContext(), id.UID, services.ProfileUpdate{AvatarURL: &url})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(newUserResponse(u))
	})

	r.Get("/me/stream", func(c *fiber.Ctx) error {
		id, _ := middleware.GetIdentity(c)
		return streamUser(c, svc.Economy.Store, id.UID)
	})

	r.Get("/tasks", func(c *fiber.Ctx) error {
		id, _ := middleware.GetIdentity(c)
		sess, err := svc.Sessions.Get(id.UID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(svc.Tasks.Board(sess))
	})

	r.Post("/tasks/:id/complete", func(c *fiber.Ctx) error {
		id, _ := middleware.GetIdentity(c)
		sess, err := svc.Sessions.Get(id.UID)
		if err != nil {
			return respondError(c, err)
		}
		u, applied, err := svc.Tasks.CompleteTask(c.UserContext(), sess, c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"task_id": c.Params("id"),
			"applied": applied,
			"user":    newUserResponse(u),
		})
	})
}
