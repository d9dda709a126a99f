package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/config"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConfig = &config.Config{JWTSecret: "test-secret"}

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testConfig.JWTSecret))
	require.NoError(t, err)
	return token
}

func newApp() *fiber.App {
	app := fiber.New()
	app.Get("/whoami", JWTProtected(testConfig), func(c *fiber.Ctx) error {
		id, role, err := CurrentUser(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).SendString(err.Error())
		}
		return c.JSON(fiber.Map{"id": id, "role": role})
	})
	app.Get("/doctors-only", JWTProtected(testConfig), RequireRole("doctor"), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func get(t *testing.T, app *fiber.App, path, token string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestJWTProtected(t *testing.T) {
	app := newApp()

	assert.Equal(t, http.StatusUnauthorized, get(t, app, "/whoami", "").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, get(t, app, "/whoami", "not-a-token").StatusCode)

	expired := signed(t, jwt.MapClaims{"sub": "7", "role": "doctor", "exp": time.Now().Add(-time.Minute).Unix()})
	assert.Equal(t, http.StatusUnauthorized, get(t, app, "/whoami", expired).StatusCode)

	valid := signed(t, jwt.MapClaims{"sub": "7", "role": "doctor"})
	assert.Equal(t, http.StatusOK, get(t, app, "/whoami", valid).StatusCode)
}

func TestCurrentUserRejectsBadSubject(t *testing.T) {
	app := newApp()

	for _, sub := range []any{"abc", "0", 7} {
		token := signed(t, jwt.MapClaims{"sub": sub, "role": "doctor"})
		assert.Equal(t, http.StatusUnauthorized, get(t, app, "/whoami", token).StatusCode, "sub=%v", sub)
	}
}

func TestRequireRole(t *testing.T) {
	app := newApp()

	doctor := signed(t, jwt.MapClaims{"sub": "1", "role": "doctor"})
	patient := signed(t, jwt.MapClaims{"sub": "2", "role": "patient"})
	noRole := signed(t, jwt.MapClaims{"sub": "3"})

	assert.Equal(t, http.StatusNoContent, get(t, app, "/doctors-only", doctor).StatusCode)
	assert.Equal(t, http.StatusForbidden, get(t, app, "/doctors-only", patient).StatusCode)
	assert.Equal(t, http.StatusForbidden, get(t, app, "/doctors-only", noRole).StatusCode)
}

func TestJoinRoles(t *testing.T) {
	assert.Equal(t, "doctor", joinRoles([]string{"doctor"}))
	assert.Equal(t, "doctor or patient", joinRoles([]string{"doctor", "patient"}))
	assert.Equal(t, "a, b or c", joinRoles([]string{"a", "b", "c"}))
}
