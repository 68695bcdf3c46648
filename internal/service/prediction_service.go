package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/driveguard/backend/internal/domain"
	"github.com/driveguard/backend/pkg/geo"
	"github.com/driveguard/backend/pkg/utils"
)

const (
	// syntheticHotspotCount is how many hotspots the fallback generates.
	syntheticHotspotCount = 10

	// maxRiskProbability caps any generated risk probability.
	maxRiskProbability = 0.95

	// degPerKmLat converts kilometers to degrees of latitude.
	degPerKmLat = 0.009
)

// PredictionService produces predicted-accident hotspots, preferring a remote
// model and falling back to a deterministic synthetic generator when the
// model is unreachable.
// One service instance is shared across tracking sessions; rngMu serializes
// the fallback generator's rand.Rand, which is not goroutine-safe.
type PredictionService struct {
	serviceURL string
	httpClient *http.Client
	now        func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewPredictionService creates a new prediction service
func NewPredictionService(serviceURL string) *PredictionService {
	return &PredictionService{
		serviceURL: serviceURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		now: time.Now,
	}
}

// SetRandSource reseeds the fallback generator (used in tests).
func (s *PredictionService) SetRandSource(src rand.Source) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	s.rng = rand.New(src)
}

// SetClock overrides the time source (used in tests).
func (s *PredictionService) SetClock(now func() time.Time) {
	s.now = now
}

// PredictionRequest is the payload sent to the remote model.
type PredictionRequest struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	RadiusKm  float64  `json:"radius"`
	Weather   string   `json:"weather"`
	Hour      int      `json:"hour"`
	Day       int      `json:"day"`
	SpeedKmh  float64  `json:"speed"`
	Heading   *float64 `json:"heading"`
}

// hotspotResponse is one hotspot returned by the remote model.
type hotspotResponse struct {
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	RiskFactor float64  `json:"risk_factor"`
	RiskLevel  string   `json:"risk_level,omitempty"`
	RealData   *struct {
		NearestIncidents int     `json:"nearest_incidents"`
		AvgDistanceKm    float64 `json:"avg_distance_km"`
	} `json:"real_data,omitempty"`
}

type predictionResponse struct {
	Hotspots []hotspotResponse `json:"hotspots"`
}

// Predict returns predicted-accident hazards around the position. The remote
// model is tried first; any failure engages the synthetic fallback, so the
// call itself never fails.
func (s *PredictionService) Predict(ctx context.Context, lat, lon, radiusKm float64, motion domain.MotionState, weatherCondition string) []domain.Hazard {
	hotspots, err := s.fetchRemoteHotspots(ctx, lat, lon, radiusKm, motion, weatherCondition)
	if err != nil {
		return s.GenerateSyntheticHotspots(lat, lon, radiusKm, motion, weatherCondition)
	}

	hazards := make([]domain.Hazard, 0, len(hotspots))
	for i, h := range hotspots {
		distance := geo.DistanceKm(lat, lon, h.Latitude, h.Longitude)
		hazards = append(hazards, domain.Hazard{
			ID:              fmt.Sprintf("pred-api-%d", i),
			Latitude:        h.Latitude,
			Longitude:       h.Longitude,
			Category:        domain.CategoryPredictedAccident,
			RiskLevel:       remoteRiskLevel(h),
			RiskProbability: h.RiskFactor,
			DistanceKm:      distance,
			IsAhead:         s.isAhead(lat, lon, h.Latitude, h.Longitude, motion),
			Message:         "Predicted accident hotspot",
		})
	}
	return hazards
}

// fetchRemoteHotspots calls the remote model service.
func (s *PredictionService) fetchRemoteHotspots(ctx context.Context, lat, lon, radiusKm float64, motion domain.MotionState, weatherCondition string) ([]hotspotResponse, error) {
	if s.serviceURL == "" {
		return nil, fmt.Errorf("prediction: no service configured")
	}

	now := s.now()
	reqBody := PredictionRequest{
		Latitude:  lat,
		Longitude: lon,
		RadiusKm:  radiusKm,
		Weather:   weatherCondition,
		Hour:      now.Hour(),
		Day:       int(now.Weekday()),
		SpeedKmh:  motion.SmoothedSpeedKmh,
		Heading:   motion.HeadingDeg,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("prediction: failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/predict-accidents", strings.TrimSuffix(s.serviceURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("prediction: failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("prediction: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("prediction: unexpected status %d", resp.StatusCode)
	}

	var prediction predictionResponse
	if err := json.NewDecoder(resp.Body).Decode(&prediction); err != nil {
		return nil, fmt.Errorf("prediction: failed to decode response: %w", err)
	}
	if prediction.Hotspots == nil {
		return nil, fmt.Errorf("prediction: response carried no hotspots")
	}

	return prediction.Hotspots, nil
}

// remoteRiskLevel takes the level from the response if given, else derives it
// from the numeric risk factor.
func remoteRiskLevel(h hotspotResponse) domain.RiskLevel {
	switch strings.ToLower(strings.ReplaceAll(h.RiskLevel, " ", "_")) {
	case "very_high":
		return domain.RiskVeryHigh
	case "high":
		return domain.RiskHigh
	case "medium":
		return domain.RiskMedium
	case "low":
		return domain.RiskLow
	}

	switch {
	case h.RiskFactor > 0.7:
		return domain.RiskVeryHigh
	case h.RiskFactor > 0.5:
		return domain.RiskHigh
	case h.RiskFactor > 0.3:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

// GenerateSyntheticHotspots is the fallback generator. It places exactly ten
// hotspots around the position: when the vehicle is in sustained movement
// with a known heading, 70% of the points fall within ±45° of it. Higher
// weather/speed risk compresses points closer to the vehicle.
func (s *PredictionService) GenerateSyntheticHotspots(lat, lon, radiusKm float64, motion domain.MotionState, weatherCondition string) []domain.Hazard {
	now := s.now()
	weatherRisk := WeatherRiskFactor(weatherCondition)
	timeRisk := TimeRiskFactor(now.Hour(), now.Weekday())
	speedRisk := SpeedRiskFactor(motion.SmoothedSpeedKmh)

	heading, headingKnown := motion.Heading()
	directionBias := motion.IsSustainedMovement && headingKnown

	maxDistance := radiusKm * (1 - math.Min(weatherRisk+speedRisk, 0.7))

	s.rngMu.Lock()
	defer s.rngMu.Unlock()

	hazards := make([]domain.Hazard, 0, syntheticHotspotCount)
	for i := 0; i < syntheticHotspotCount; i++ {
		var angleRad float64
		if directionBias && s.rng.Float64() > 0.3 {
			deviation := (s.rng.Float64() - 0.5) * 90 // ±45° from heading
			angleRad = math.Mod(heading+deviation, 360) * math.Pi / 180
		} else {
			angleRad = s.rng.Float64() * 2 * math.Pi
		}

		distance := s.rng.Float64() * maxDistance

		predLat := lat + math.Cos(angleRad)*distance*degPerKmLat
		predLon := lon + math.Sin(angleRad)*distance*degPerKmLat/math.Cos(lat*math.Pi/180)

		riskProbability := 0.5 + s.rng.Float64()*0.3
		riskProbability += weatherRisk * 0.1
		riskProbability += timeRisk * 0.15
		riskProbability += speedRisk * 0.1
		riskProbability = utils.Clamp(riskProbability, 0, maxRiskProbability)

		hazards = append(hazards, domain.Hazard{
			ID:              fmt.Sprintf("pred-%d", i),
			Latitude:        predLat,
			Longitude:       predLon,
			Category:        domain.CategoryPredictedAccident,
			RiskLevel:       syntheticRiskLevel(riskProbability),
			RiskProbability: riskProbability,
			DistanceKm:      distance,
			IsAhead:         s.isAhead(lat, lon, predLat, predLon, motion),
			Message:         "Predicted accident hotspot",
		})
	}

	return hazards
}

func (s *PredictionService) isAhead(lat, lon, targetLat, targetLon float64, motion domain.MotionState) bool {
	heading, ok := motion.Heading()
	if !ok {
		return false
	}
	bearing := geo.BearingDeg(lat, lon, targetLat, targetLon)
	return geo.IsWithinForwardCone(bearing, heading)
}

// syntheticRiskLevel buckets a generated risk probability.
func syntheticRiskLevel(p float64) domain.RiskLevel {
	switch {
	case p > 0.8:
		return domain.RiskVeryHigh
	case p > 0.7:
		return domain.RiskHigh
	case p > 0.5:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

// WeatherRiskFactor maps a condition keyword to its accident-risk weight.
func WeatherRiskFactor(condition string) float64 {
	c := strings.ToLower(condition)
	switch {
	case strings.Contains(c, "ice"), strings.Contains(c, "sleet"):
		return 0.7
	case strings.Contains(c, "storm"):
		return 0.6
	case strings.Contains(c, "snow"):
		return 0.5
	case strings.Contains(c, "fog"), strings.Contains(c, "mist"):
		return 0.4
	case strings.Contains(c, "rain"), strings.Contains(c, "drizzle"):
		return 0.3
	default:
		return 0.1
	}
}

// TimeRiskFactor weights the hour of day and day of week. Rush hours, night
// driving and weekend late nights each contribute; the strongest applies.
func TimeRiskFactor(hour int, day time.Weekday) float64 {
	rushHour := 0.0
	if (hour >= 7 && hour <= 9) || (hour >= 16 && hour <= 19) {
		rushHour = 0.3
	}

	night := 0.0
	if hour < 6 || hour >= 20 {
		night = 0.2
	}

	weekend := 0.0
	if day == time.Saturday || day == time.Sunday {
		if hour >= 23 || hour <= 3 {
			weekend = 0.3
		} else {
			weekend = 0.1
		}
	}

	return math.Max(rushHour, math.Max(night, weekend))
}

// SpeedRiskFactor weights the current speed in km/h.
func SpeedRiskFactor(speedKmh float64) float64 {
	switch {
	case speedKmh > 100:
		return 0.5
	case speedKmh > 80:
		return 0.3
	case speedKmh > 60:
		return 0.2
	default:
		return 0.1
	}
}
