package handlers

import (
	"context"
	"mime/multipart"

	"browsebux-economy/services"

	"github.com/gofiber/fiber/v2"
)

// AvatarUploader stores an avatar file and returns its public URL.
type AvatarUploader interface {
	UploadFile(ctx context.Context, fh *multipart.FileHeader, key string) (string, error)
}

// Services bundles what the HTTP surface calls into.
type Services struct {
	Economy     *services.EconomyService
	Sessions    *services.SessionManager
	Tasks       *services.TaskService
	Withdrawals *services.WithdrawalService
	Search      *services.SearchClient
	Avatars     AvatarUploader
}

// Setup mounts every route under /api/v1. admin guards operator routes; the
// auth chain resolves the caller's identity for everything else.
func Setup(app *fiber.App, svc Services, admin fiber.Handler, auth ...fiber.Handler) {
	api := app.Group("/api/v1")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"sessions": svc.Sessions.Registry.Count(),
		})
	})

	SetupAdminRoutes(api.Group("/admin", admin), svc.Withdrawals)

	// registered last: fiber runs handlers in order, so the routes above
	// answer before the auth chain is reached
	secured := api.Group("/", auth...)
	SetupEconomyRoutes(secured, svc)
	SetupWithdrawalRoutes(secured, svc.Withdrawals)
	SetupSearchRoutes(secured, svc.Search)
}
