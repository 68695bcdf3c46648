package domain

import (
	"context"
	"time"
)

// EmergencyRequest is a stored emergency-services dispatch request.
type EmergencyRequest struct {
	ID             string    `json:"id"`
	ServiceType    string    `json:"service_type"`
	Latitude       float64   `json:"lat"`
	Longitude      float64   `json:"lon"`
	UserID         string    `json:"user_id,omitempty"`
	AdditionalInfo string    `json:"additional_info,omitempty"`
	PhoneNumber    string    `json:"phone_number,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// EmergencyRepository defines the interface for emergency request persistence.
// This follows the Dependency Inversion Principle - domain defines the interface
type EmergencyRepository interface {
	// SaveRequest persists an emergency request
	SaveRequest(ctx context.Context, req EmergencyRequest) error

	// GetRequest retrieves a single request by id; found=false when absent
	GetRequest(ctx context.Context, id string) (EmergencyRequest, bool, error)

	// ListRequests retrieves all stored requests, newest first
	ListRequests(ctx context.Context) ([]EmergencyRequest, error)

	// PurgeOlderThan removes requests created before the cutoff and
	// returns how many were removed
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	// Health checks storage connectivity
	Health(ctx context.Context) error
}
