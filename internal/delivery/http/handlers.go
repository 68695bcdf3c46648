package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/driveguard/backend/internal/domain"
	"github.com/driveguard/backend/internal/service"
)

// Handler contains all HTTP handlers
type Handler struct {
	emergencySvc *service.EmergencyService
	smsSender    domain.SMSSender
	repo         domain.EmergencyRepository
	startedAt    time.Time
}

// NewHandler creates a new handler
func NewHandler(emergencySvc *service.EmergencyService, smsSender domain.SMSSender, repo domain.EmergencyRepository) *Handler {
	return &Handler{
		emergencySvc: emergencySvc,
		smsSender:    smsSender,
		repo:         repo,
		startedAt:    time.Now(),
	}
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	status := "ok"
	if err := h.repo.Health(c.Context()); err != nil {
		status = "degraded"
	}

	return c.JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.startedAt).Round(time.Second).String(),
	})
}

type emergencyRequestBody struct {
	ServiceType    string   `json:"serviceType"`
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
	UserID         string   `json:"userId"`
	AdditionalInfo string   `json:"additionalInfo"`
	PhoneNumber    string   `json:"phoneNumber"`
}

// CreateEmergency accepts an emergency dispatch request and relays it
func (h *Handler) CreateEmergency(c *fiber.Ctx) error {
	var body emergencyRequestBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if body.ServiceType == "" {
		return fiber.NewError(fiber.StatusBadRequest, "serviceType is required")
	}
	if body.Latitude == nil || body.Longitude == nil {
		return fiber.NewError(fiber.StatusBadRequest, "latitude and longitude are required")
	}

	req := domain.EmergencyRequest{
		ServiceType:    body.ServiceType,
		Latitude:       *body.Latitude,
		Longitude:      *body.Longitude,
		UserID:         body.UserID,
		AdditionalInfo: body.AdditionalInfo,
		PhoneNumber:    body.PhoneNumber,
	}

	saved, err := h.emergencySvc.DispatchRequest(c.Context(), req)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to store emergency request")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":   true,
		"requestId": saved.ID,
		"message":   "Emergency request received",
	})
}

// GetEmergency returns one stored request by id
func (h *Handler) GetEmergency(c *fiber.Ctx) error {
	id := c.Params("id")

	req, found, err := h.emergencySvc.GetRequest(c.Context(), id)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch emergency request")
	}
	if !found {
		return fiber.NewError(fiber.StatusNotFound, "Request not found")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"request": req,
	})
}

// ListEmergencies returns all stored requests, newest first
func (h *Handler) ListEmergencies(c *fiber.Ctx) error {
	requests, err := h.emergencySvc.ListRequests(c.Context())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to list emergency requests")
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"count":    len(requests),
		"requests": requests,
	})
}

type smsRequestBody struct {
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
}

// SendSMS forwards an SMS through the configured gateway
func (h *Handler) SendSMS(c *fiber.Ctx) error {
	var body smsRequestBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if body.PhoneNumber == "" || body.Message == "" {
		return fiber.NewError(fiber.StatusBadRequest, "phoneNumber and message are required")
	}

	ok := h.smsSender.SendSMS(body.PhoneNumber, body.Message)
	return c.JSON(fiber.Map{
		"success": ok,
	})
}
