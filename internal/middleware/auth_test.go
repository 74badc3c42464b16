package middleware

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAuthTest(t *testing.T) (*fiber.App, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	app := fiber.New()
	app.Use(BearerAuth(rdb))
	app.Get("/me", RequireAuth(), func(c *fiber.Ctx) error {
		actor, _ := GetActor(c)
		return c.JSON(actor)
	})
	app.Get("/mod", RequireModerator(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app, mr
}

func storeToken(t *testing.T, mr *miniredis.Miniredis, token string, actor Actor) {
	t.Helper()
	b, err := json.Marshal(actor)
	require.NoError(t, err)
	require.NoError(t, mr.Set(TokenRedisPrefix+token, string(b)))
}

func TestBearerAuth_ResolvesActor(t *testing.T) {
	app, mr := setupAuthTest(t)
	userID := uuid.New()
	storeToken(t, mr, "tok-1", Actor{UserID: userID, Role: RoleMember})

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer tok-1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var actor Actor
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&actor))
	assert.Equal(t, userID, actor.UserID)
	assert.Equal(t, RoleMember, actor.Role)
}

func TestRequireAuth_MissingOrBadToken(t *testing.T) {
	app, _ := setupAuthTest(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/me", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer unknown-token")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireModerator_Roles(t *testing.T) {
	app, mr := setupAuthTest(t)
	storeToken(t, mr, "member-tok", Actor{UserID: uuid.New(), Role: RoleMember})
	storeToken(t, mr, "mod-tok", Actor{UserID: uuid.New(), Role: RoleModerator})
	storeToken(t, mr, "admin-tok", Actor{UserID: uuid.New(), Role: RoleAdmin})

	cases := []struct {
		token  string
		status int
	}{
		{"member-tok", fiber.StatusForbidden},
		{"mod-tok", fiber.StatusOK},
		{"admin-tok", fiber.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest("GET", "/mod", nil)
		req.Header.Set("Authorization", "Bearer "+tc.token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, tc.status, resp.StatusCode, tc.token)
	}
}

func TestBearerAuth_DefaultsRoleToMember(t *testing.T) {
	app, mr := setupAuthTest(t)
	userID := uuid.New()
	require.NoError(t, mr.Set(TokenRedisPrefix+"bare-tok", `{"user_id":"`+userID.String()+`"}`))

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer bare-tok")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var actor Actor
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&actor))
	assert.Equal(t, RoleMember, actor.Role)
}
