package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/driveguard/backend/internal/domain"
)

// EmergencyService handles emergency-services dispatch requests: it stores
// them and forwards a best-effort SMS alert when a phone number is given.
type EmergencyService struct {
	repo      domain.EmergencyRepository
	smsSender domain.SMSSender
	now       func() time.Time
}

// NewEmergencyService creates a new emergency service
func NewEmergencyService(repo domain.EmergencyRepository, smsSender domain.SMSSender) *EmergencyService {
	return &EmergencyService{
		repo:      repo,
		smsSender: smsSender,
		now:       time.Now,
	}
}

// DispatchRequest stores the request and notifies the contact number. SMS
// failure is logged and swallowed; the stored request is what matters.
func (s *EmergencyService) DispatchRequest(ctx context.Context, req domain.EmergencyRequest) (domain.EmergencyRequest, error) {
	if req.ServiceType == "" {
		return domain.EmergencyRequest{}, fmt.Errorf("emergency: missing service type")
	}

	req.ID = uuid.NewString()
	req.Status = "pending"
	req.CreatedAt = s.now()

	if err := s.repo.SaveRequest(ctx, req); err != nil {
		return domain.EmergencyRequest{}, fmt.Errorf("emergency: failed to save request: %w", err)
	}

	log.Printf("emergency: %s requested at %f,%f", req.ServiceType, req.Latitude, req.Longitude)

	if req.PhoneNumber != "" && s.smsSender != nil {
		message := fmt.Sprintf(
			"Emergency alert: %s needed at %f,%f. Please respond immediately.",
			req.ServiceType, req.Latitude, req.Longitude,
		)
		if ok := s.smsSender.SendSMS(req.PhoneNumber, message); !ok {
			log.Printf("emergency: SMS alert for request %s not delivered", req.ID)
		}
	}

	return req, nil
}

// GetRequest retrieves a stored request by id.
func (s *EmergencyService) GetRequest(ctx context.Context, id string) (domain.EmergencyRequest, bool, error) {
	return s.repo.GetRequest(ctx, id)
}

// ListRequests retrieves all stored requests.
func (s *EmergencyService) ListRequests(ctx context.Context) ([]domain.EmergencyRequest, error) {
	return s.repo.ListRequests(ctx)
}

// PurgeStale removes requests older than the retention window and returns
// how many were dropped.
func (s *EmergencyService) PurgeStale(ctx context.Context, retention time.Duration) (int, error) {
	return s.repo.PurgeOlderThan(ctx, s.now().Add(-retention))
}
