package middleware

import (
	"context"
	"encoding/json"
	"strings"

	"bazaar-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const actorLocal = "actor"

// TokenRedisPrefix is the Redis key prefix the upstream auth layer writes
// resolved identities under.
const TokenRedisPrefix = "token:"

// Roles understood by the engine. Moderation actions require moderator or admin.
const (
	RoleMember    = "member"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// Actor is the pre-authenticated caller identity resolved from the bearer token.
type Actor struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
}

// Moderator reports whether the actor may perform moderation actions.
func (a Actor) Moderator() bool {
	return a.Role == RoleModerator || a.Role == RoleAdmin
}

// BearerAuth resolves "Authorization: Bearer <token>" to an Actor through
// Redis (key token:<token> → actor JSON). Auth itself is external; this
// middleware only resolves what the upstream layer stored. Requests without
// a valid token continue with no actor in Locals.
func BearerAuth(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(header, "Bearer ") || rdb == nil {
			return c.Next()
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == "" {
			return c.Next()
		}

		b, err := rdb.Get(context.Background(), TokenRedisPrefix+token).Bytes()
		if err != nil {
			return c.Next()
		}
		var actor Actor
		if err := json.Unmarshal(b, &actor); err != nil || actor.UserID == uuid.Nil {
			return c.Next()
		}
		if actor.Role == "" {
			actor.Role = RoleMember
		}
		c.Locals(actorLocal, actor)
		return c.Next()
	}
}

// RequireAuth ensures an actor was resolved. Returns 401 with the standard
// error format if not.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := c.Locals(actorLocal).(Actor); !ok {
			return response.Unauthorized(c, "Unauthorized")
		}
		return c.Next()
	}
}

// RequireModerator ensures the actor holds a moderation role.
func RequireModerator() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := c.Locals(actorLocal).(Actor)
		if !ok {
			return response.Unauthorized(c, "Unauthorized")
		}
		if !actor.Moderator() {
			return response.Error(c, "Moderator role required", fiber.StatusForbidden, nil)
		}
		return c.Next()
	}
}

// GetActor returns the resolved actor and whether one is present.
func GetActor(c *fiber.Ctx) (Actor, bool) {
	actor, ok := c.Locals(actorLocal).(Actor)
	return actor, ok
}
