package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordsRequests(t *testing.T) {
	app := fiber.New()
	app.Use(Metrics())
	app.Get("/ping/:id", func(c fiber.Ctx) error {
		return c.SendString("pong")
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/ping/:id", "200"))

	resp, err := app.Test(httptest.NewRequest("GET", "/ping/42", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/ping/:id", "200"))
	assert.Equal(t, before+1, after, "counter keyed by route template, not raw path")
}
