package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func correlationApp(seen *string) *fiber.App {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		*seen = CorrelationIDFromContext(c.UserContext())
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestCorrelationIDReusesIncomingHeader(t *testing.T) {
	var seen string
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderCorrelationID, "exam-42")

	resp, err := correlationApp(&seen).Test(req)
	require.NoError(t, err)
	require.Equal(t, "exam-42", resp.Header.Get(HeaderCorrelationID))
	require.Equal(t, "exam-42", seen)
}

func TestCorrelationIDReplacesUnusableHeader(t *testing.T) {
	var seen string
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderCorrelationID, strings.Repeat("x", maxCorrelationLength+1))

	resp, err := correlationApp(&seen).Test(req)
	require.NoError(t, err)
	_, parseErr := uuid.Parse(resp.Header.Get(HeaderCorrelationID))
	require.NoError(t, parseErr)
	require.Equal(t, resp.Header.Get(HeaderCorrelationID), seen)
}
