package http

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/driveguard/backend/internal/domain"
	"github.com/driveguard/backend/internal/service"
)

// TrackDeps are the services each tracking session wires together.
type TrackDeps struct {
	Weather    *service.WeatherService
	Traffic    *service.TrafficService
	Prediction *service.PredictionService
	SMS        domain.SMSSender
	AlertPhone string
	Mirror     service.StateMirror
}

// trackFrame is one inbound client frame. Position frames carry a raw fix;
// orientation frames carry a compass heading.
type trackFrame struct {
	Type        string   `json:"type"`
	Lat         float64  `json:"lat"`
	Lon         float64  `json:"lon"`
	TimestampMs int64    `json:"timestamp_ms"`
	Speed       *float64 `json:"speed,omitempty"`
	Heading     *float64 `json:"heading,omitempty"`
	Accuracy    *float64 `json:"accuracy,omitempty"`
	HeadingDeg  float64  `json:"heading_deg"`
}

// wsSpeaker renders announcements as alert frames on the session socket.
// Writes share the session's write mutex with the frame reply path.
type wsSpeaker struct {
	mu   *sync.Mutex
	conn *websocket.Conn
}

func (s *wsSpeaker) Speak(message string, priority domain.AlertPriority) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.WriteJSON(fiber.Map{
		"type":     "alert",
		"message":  message,
		"priority": priority,
	}); err != nil {
		log.Printf("tracking: alert write failed: %v", err)
	}
}

// WebsocketUpgrade rejects plain HTTP requests on websocket routes.
func WebsocketUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// TrackHandler runs one tracking session per connection. The client streams
// position and orientation frames; the server answers each with the updated
// motion state and pushes alert frames as hazards are announced.
func TrackHandler(deps TrackDeps) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		sessionID := uuid.NewString()

		var writeMu sync.Mutex
		speaker := &wsSpeaker{mu: &writeMu, conn: conn}
		arbitrator := service.NewAlertArbitrator(speaker, deps.SMS, deps.AlertPhone)
		engine := service.NewSafetyEngine(sessionID,
			deps.Weather, deps.Traffic, deps.Prediction, arbitrator, deps.Mirror)
		engine.Start()
		defer engine.Stop()

		log.Printf("tracking session %s connected", sessionID)
		defer log.Printf("tracking session %s closed", sessionID)

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var frame trackFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				writeFrame(&writeMu, conn, fiber.Map{
					"type":    "error",
					"message": "invalid frame",
				})
				continue
			}

			switch frame.Type {
			case "position":
				motion := engine.OnPosition(domain.PositionSample{
					Latitude:        frame.Lat,
					Longitude:       frame.Lon,
					TimestampMs:     frame.TimestampMs,
					ReportedSpeed:   frame.Speed,
					ReportedHeading: frame.Heading,
					Accuracy:        frame.Accuracy,
				})
				writeFrame(&writeMu, conn, fiber.Map{
					"type":   "motion",
					"motion": motion,
				})
			case "orientation":
				motion := engine.OnOrientation(frame.HeadingDeg)
				writeFrame(&writeMu, conn, fiber.Map{
					"type":   "motion",
					"motion": motion,
				})
			case "snapshot":
				writeFrame(&writeMu, conn, fiber.Map{
					"type":     "snapshot",
					"snapshot": engine.Snapshot(),
				})
			default:
				writeFrame(&writeMu, conn, fiber.Map{
					"type":    "error",
					"message": "unknown frame type",
				})
			}
		}
	})
}

func writeFrame(mu *sync.Mutex, conn *websocket.Conn, payload fiber.Map) {
	mu.Lock()
	defer mu.Unlock()
	if err := conn.WriteJSON(payload); err != nil {
		log.Printf("tracking: frame write failed: %v", err)
	}
}
