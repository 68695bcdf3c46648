package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveguard/backend/internal/domain"
	"github.com/driveguard/backend/internal/repository/postgres"
)

func TestEmergencyDispatchRequest(t *testing.T) {
	t.Run("stores request with id and pending status", func(t *testing.T) {
		repo := postgres.NewMemoryRepository()
		svc := NewEmergencyService(repo, nil)

		saved, err := svc.DispatchRequest(context.Background(), domain.EmergencyRequest{
			ServiceType: "ambulance",
			Latitude:    43.2389,
			Longitude:   76.8897,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, saved.ID)
		assert.Equal(t, "pending", saved.Status)
		assert.False(t, saved.CreatedAt.IsZero())

		stored, found, err := svc.GetRequest(context.Background(), saved.ID)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "ambulance", stored.ServiceType)
	})

	t.Run("missing service type is rejected", func(t *testing.T) {
		svc := NewEmergencyService(postgres.NewMemoryRepository(), nil)
		_, err := svc.DispatchRequest(context.Background(), domain.EmergencyRequest{})
		assert.Error(t, err)
	})

	t.Run("contact number triggers an SMS alert", func(t *testing.T) {
		sms := &fakeSMS{ok: true}
		svc := NewEmergencyService(postgres.NewMemoryRepository(), sms)

		_, err := svc.DispatchRequest(context.Background(), domain.EmergencyRequest{
			ServiceType: "fire",
			Latitude:    43.2389,
			Longitude:   76.8897,
			PhoneNumber: "+77010000000",
		})
		require.NoError(t, err)
		require.Len(t, sms.sent, 1)
		assert.Contains(t, sms.sent[0], "fire")
	})

	t.Run("SMS failure does not fail the dispatch", func(t *testing.T) {
		sms := &fakeSMS{ok: false}
		svc := NewEmergencyService(postgres.NewMemoryRepository(), sms)

		saved, err := svc.DispatchRequest(context.Background(), domain.EmergencyRequest{
			ServiceType: "police",
			PhoneNumber: "+77010000000",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, saved.ID)
	})
}

func TestEmergencyPurgeStale(t *testing.T) {
	repo := postgres.NewMemoryRepository()
	svc := NewEmergencyService(repo, nil)

	current := time.Unix(1_700_000_000, 0)
	svc.now = func() time.Time { return current }

	_, err := svc.DispatchRequest(context.Background(), domain.EmergencyRequest{ServiceType: "ambulance"})
	require.NoError(t, err)

	current = current.Add(30 * time.Hour)
	_, err = svc.DispatchRequest(context.Background(), domain.EmergencyRequest{ServiceType: "fire"})
	require.NoError(t, err)

	removed, err := svc.PurgeStale(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	remaining, err := svc.ListRequests(context.Background())
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "fire", remaining[0].ServiceType)
}
