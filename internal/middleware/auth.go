package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Actor is the authenticated caller resolved from the bearer token. DepotID
// is nil for central operators and set for depot-scoped staff; the business
// layer uses it for depot isolation.
type Actor struct {
	UserID  int64
	Role    string
	DepotID *int64
}

// Roles understood by the route guards.
const (
	RoleAdmin      = "ADMIN"
	RoleDepotAdmin = "DEPOT_ADMIN"
	RoleDriver     = "DRIVER"
)

type claims struct {
	UserID  int64  `json:"user_id"`
	Role    string `json:"role"`
	DepotID *int64 `json:"depot_id,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates the bearer JWT and stores the Actor in Locals.
func AuthMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(401).JSON(fiber.Map{
				"success": false,
				"error":   "missing_token",
				"message": "Authorization: Bearer TOKEN is required",
			})
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return c.Status(401).JSON(fiber.Map{
				"success": false,
				"error":   "invalid_auth_format",
				"message": "Authorization header must be: Bearer TOKEN",
			})
		}

		cl := &claims{}
		token, err := jwt.ParseWithClaims(strings.TrimSpace(parts[1]), cl, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return c.Status(401).JSON(fiber.Map{
				"success": false,
				"error":   "invalid_token",
				"message": "The provided token is invalid or expired",
			})
		}

		c.Locals("actor", &Actor{
			UserID:  cl.UserID,
			Role:    cl.Role,
			DepotID: cl.DepotID,
		})
		return c.Next()
	}
}

// ActorFrom returns the authenticated actor, or nil on unauthenticated
// routes.
func ActorFrom(c *fiber.Ctx) *Actor {
	actor, _ := c.Locals("actor").(*Actor)
	return actor
}

// RequireRole rejects callers whose role is not in the allowed set. Admins
// pass every guard.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor := ActorFrom(c)
		if actor == nil {
			return c.Status(401).JSON(fiber.Map{
				"success": false,
				"error":   "unauthorized",
				"message": "Authentication required",
			})
		}
		if actor.Role == RoleAdmin {
			return c.Next()
		}
		for _, r := range roles {
			if actor.Role == r {
				return c.Next()
			}
		}
		return c.Status(403).JSON(fiber.Map{
			"success": false,
			"error":   "insufficient_permissions",
			"message": "Your role does not allow this operation",
		})
	}
}
