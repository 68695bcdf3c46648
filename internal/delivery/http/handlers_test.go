package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveguard/backend/internal/domain"
	"github.com/driveguard/backend/internal/repository/postgres"
	"github.com/driveguard/backend/internal/service"
)

type stubSMS struct{ ok bool }

func (s stubSMS) SendSMS(phoneNumber, message string) bool { return s.ok }

func newTestApp() (*fiber.App, domain.EmergencyRepository) {
	repo := postgres.NewMemoryRepository()
	emergencySvc := service.NewEmergencyService(repo, nil)

	app := fiber.New()
	SetupRoutes(app, emergencySvc, stubSMS{ok: true}, repo, TrackDeps{})
	return app, repo
}

func postJSON(t *testing.T, app *fiber.App, path string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestCreateEmergency(t *testing.T) {
	t.Run("valid request is accepted", func(t *testing.T) {
		app, _ := newTestApp()

		resp := postJSON(t, app, "/api/emergency", fiber.Map{
			"serviceType": "ambulance",
			"latitude":    43.2389,
			"longitude":   76.8897,
		})
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, true, body["success"])
		assert.NotEmpty(t, body["requestId"])
	})

	t.Run("missing service type is rejected", func(t *testing.T) {
		app, _ := newTestApp()
		resp := postJSON(t, app, "/api/emergency", fiber.Map{"latitude": 43.0, "longitude": 76.0})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("missing coordinates are rejected", func(t *testing.T) {
		app, _ := newTestApp()
		resp := postJSON(t, app, "/api/emergency", fiber.Map{"serviceType": "fire", "latitude": 43.0})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}

func TestGetEmergency(t *testing.T) {
	app, repo := newTestApp()

	stored := domain.EmergencyRequest{
		ID:          "req-1",
		ServiceType: "police",
		Status:      "pending",
	}
	require.NoError(t, repo.SaveRequest(context.Background(), stored))

	t.Run("found", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/emergency/req-1", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, true, body["success"])
	})

	t.Run("absent id is a 404", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/emergency/nope", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})
}

func TestListEmergencies(t *testing.T) {
	app, repo := newTestApp()
	require.NoError(t, repo.SaveRequest(context.Background(), domain.EmergencyRequest{ID: "a", ServiceType: "fire"}))
	require.NoError(t, repo.SaveRequest(context.Background(), domain.EmergencyRequest{ID: "b", ServiceType: "police"}))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/emergencies", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(2), body["count"])
}

func TestSendSMSEndpoint(t *testing.T) {
	t.Run("forwards to the gateway", func(t *testing.T) {
		app, _ := newTestApp()
		resp := postJSON(t, app, "/api/send-sms", fiber.Map{
			"phoneNumber": "+77010000000",
			"message":     "hello",
		})
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, true, body["success"])
	})

	t.Run("missing fields are rejected", func(t *testing.T) {
		app, _ := newTestApp()
		resp := postJSON(t, app, "/api/send-sms", fiber.Map{"phoneNumber": "+77010000000"})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}

func TestHealthCheck(t *testing.T) {
	app, _ := newTestApp()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["timestamp"])
	assert.NotEmpty(t, body["uptime"])
}

func TestTrackRequiresUpgrade(t *testing.T) {
	app, _ := newTestApp()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ws/track", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}
