package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-exam-console/internal/config"
	"github.com/noah-isme/gema-exam-console/internal/handler"
)

type healthEnvelope struct {
	Success bool                   `json:"success"`
	Data    handler.HealthResponse `json:"data"`
	Details handler.HealthResponse `json:"details"`
}

func getHealth(t *testing.T, probes ...handler.HealthProbe) (int, healthEnvelope) {
	t.Helper()
	cfg := config.Config{AppName: "GEMA Exam API", AppEnv: "test"}

	app := fiber.New()
	app.Get("/api/v1/health", handler.HealthCheck(cfg, probes...))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/health", nil), -1)
	require.NoError(t, err)

	var payload healthEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp.StatusCode, payload
}

func TestHealthCheck(t *testing.T) {
	status, payload := getHealth(t)

	require.Equal(t, fiber.StatusOK, status)
	require.True(t, payload.Success)
	require.Equal(t, "ok", payload.Data.Status)
	require.Equal(t, "GEMA Exam API", payload.Data.Service)
	require.Equal(t, "test", payload.Data.Environment)
	require.Empty(t, payload.Data.Checks)
	require.WithinDuration(t, time.Now().UTC(), payload.Data.Timestamp, 2*time.Second)
}

func TestHealthCheckReportsProbes(t *testing.T) {
	ok := handler.HealthProbe{Name: "database", Check: func(context.Context) error { return nil }}
	status, payload := getHealth(t, ok)

	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, map[string]string{"database": "ok"}, payload.Data.Checks)
}

func TestHealthCheckDegradedWhenProbeFails(t *testing.T) {
	ok := handler.HealthProbe{Name: "database", Check: func(context.Context) error { return nil }}
	down := handler.HealthProbe{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }}
	status, payload := getHealth(t, ok, down)

	require.Equal(t, fiber.StatusServiceUnavailable, status)
	require.False(t, payload.Success)
	require.Equal(t, "degraded", payload.Details.Status)
	require.Equal(t, "ok", payload.Details.Checks["database"])
	require.Equal(t, "connection refused", payload.Details.Checks["redis"])
}
