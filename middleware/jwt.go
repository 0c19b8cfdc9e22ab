package middleware

import (
	"browsebux-economy/models"

	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// JWTProtected verifies the identity provider's HS256 token. The token may
// also come from ?token= so EventSource clients can authenticate.
func JWTProtected(secret string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:  jwtware.SigningKey{Key: []byte(secret)},
		TokenLookup: "header:Authorization,query:token",
		SuccessHandler: func(c *fiber.Ctx) error {
			token, ok := c.Locals("user").(*jwt.Token)
			if !ok {
				return unauthorized(c)
			}
			id, ok := IdentityFromClaims(token.Claims)
			if !ok {
				return unauthorized(c)
			}
			SetIdentity(c, id)
			return c.Next()
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return unauthorized(c)
		},
	})
}

// IdentityFromClaims maps sub/name/email/picture onto an Identity.
func IdentityFromClaims(claims jwt.Claims) (models.Identity, bool) {
	mc, ok := claims.(jwt.MapClaims)
	if !ok {
		return models.Identity{}, false
	}
	sub, err := mc.GetSubject()
	if err != nil || sub == "" {
		return models.Identity{}, false
	}
	str := func(k string) string {
		s, _ := mc[k].(string)
		return s
	}
	return models.Identity{
		UID:       sub,
		Name:      str("name"),
		Email:     str("email"),
		AvatarURL: str("picture"),
	}, true
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": "unauthorized: invalid or expired token",
	})
}
