package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/driveguard/backend/internal/domain"
	"github.com/driveguard/backend/internal/service"
)

// SetupRoutes configures all HTTP routes
func SetupRoutes(app *fiber.App, emergencySvc *service.EmergencyService, smsSender domain.SMSSender, repo domain.EmergencyRepository, trackDeps TrackDeps) {
	handler := NewHandler(emergencySvc, smsSender, repo)

	api := app.Group("/api")
	{
		// Emergency relay endpoints
		api.Post("/emergency", handler.CreateEmergency)
		api.Get("/emergency/:id", handler.GetEmergency)
		api.Get("/emergencies", handler.ListEmergencies)

		// SMS relay
		api.Post("/send-sms", handler.SendSMS)

		// Health check
		api.Get("/health", handler.HealthCheck)
	}

	// Live tracking session (websocket)
	app.Use("/ws", WebsocketUpgrade)
	app.Get("/ws/track", TrackHandler(trackDeps))
}
