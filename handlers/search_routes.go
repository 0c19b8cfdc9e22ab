package handlers

import (
	"strings"

	"browsebux-economy/services"

	"github.com/gofiber/fiber/v2"
)

func SetupSearchRoutes(r fiber.Router, search *services.SearchClient) {
	r.Get("/search", func(c *fiber.Ctx) error {
		q := strings.TrimSpace(c.Query("q"))
		if q == "" {
			return badRequest(c, "q is required", nil)
		}
		if services.IsURL(q) {
			return c.JSON(fiber.Map{
				"type": "url",
				"url":  services.NormalizeURL(q),
			})
		}

		res := search.Query(c.UserContext(), q)
		if res == nil {
			return c.JSON(fiber.Map{
				"type":    "search",
				"query":   q,
				"found":   false,
				"summary": "",
				"sites":   []services.SiteSuggestion{},
			})
		}
		return c.JSON(fiber.Map{
			"type":    "search",
			"query":   q,
			"found":   true,
			"summary": res.Summary,
			"sites":   res.Sites,
		})
	})
}
