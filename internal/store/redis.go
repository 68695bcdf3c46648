package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/driveguard/backend/internal/domain"
	"github.com/driveguard/backend/pkg/utils"
)

// sessionStateTTL bounds how long a session's live state survives without
// updates.
const sessionStateTTL = 30 * time.Second

// RedisMirror publishes live tracking-session state to Redis so external
// consumers (dashboards, dispatch tooling) can follow sessions without
// touching the pipeline. All writes are best-effort.
type RedisMirror struct {
	client *redis.Client
}

// NewRedisMirror connects to Redis and verifies the connection.
func NewRedisMirror(ctx context.Context, addr, password string, db int) (*RedisMirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis: failed to connect: %w", err)
	}

	return &RedisMirror{client: client}, nil
}

// Close releases the client.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}

// Ping checks connectivity.
func (m *RedisMirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

// PublishMotion mirrors the latest motion state for a session.
func (m *RedisMirror) PublishMotion(ctx context.Context, sessionID string, motion domain.MotionState, lat, lon float64) {
	stateData := map[string]interface{}{
		"session_id": sessionID,
		"lat":        lat,
		"lon":        lon,
		"speed_kmh":  utils.RoundTo(motion.SmoothedSpeedKmh, 1),
		"is_moving":  motion.IsInstantMoving,
		"is_driving": motion.IsSustainedMovement,
		"updated_at": time.Now().Unix(),
	}
	if heading, ok := motion.Heading(); ok {
		stateData["heading_deg"] = utils.RoundTo(heading, 1)
	}

	key := fmt.Sprintf("session:%s:state", sessionID)

	pipe := m.client.Pipeline()
	pipe.HSet(ctx, key, stateData)
	pipe.Expire(ctx, key, sessionStateTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("redis: motion mirror for %s failed: %v", sessionID, err)
	}
}

// PublishAnnouncement publishes an announced alert on the session's channel.
func (m *RedisMirror) PublishAnnouncement(ctx context.Context, sessionID string, hazard domain.Hazard, message string) {
	payload, err := json.Marshal(map[string]interface{}{
		"session_id": sessionID,
		"hazard_id":  hazard.ID,
		"category":   hazard.Category,
		"distance":   hazard.DistanceKm,
		"message":    message,
		"at":         time.Now().Unix(),
	})
	if err != nil {
		log.Printf("redis: announcement marshal for %s failed: %v", sessionID, err)
		return
	}

	channel := fmt.Sprintf("session:%s:alerts", sessionID)
	if err := m.client.Publish(ctx, channel, payload).Err(); err != nil {
		log.Printf("redis: announcement publish for %s failed: %v", sessionID, err)
	}
}
