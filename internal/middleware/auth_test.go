package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/antonykinuthia/luxliving/pkg/utils"
)

const testSecret = "middleware-test-secret"

func newProtectedApp() *fiber.App {
	app := fiber.New()
	app.Get("/api/v1/whoami", AuthRequired(testSecret), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"userId": c.Locals("user_id"),
			"role":   c.Locals("role"),
		})
	})
	return app
}

func TestAuthRequiredAcceptsBearerToken(t *testing.T) {
	token, err := utils.GenerateToken("buyer9", "user", testSecret)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	app := newProtectedApp()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestAuthRequiredRejectsBadCredentials(t *testing.T) {
	forged, err := utils.GenerateToken("buyer9", "user", "some-other-secret")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc123"},
		{"forged token", "Bearer " + forged},
		{"garbage token", "Bearer not.a.token"},
	}

	app := newProtectedApp()
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}

		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("%s: app.Test: %v", tc.name, err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", tc.name, resp.StatusCode)
		}
	}
}
