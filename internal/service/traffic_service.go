package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/driveguard/backend/internal/domain"
	"github.com/driveguard/backend/pkg/geo"
)

// bboxDeltaDeg is the half-height of the incident bounding box in degrees of
// latitude (~5 km). The longitude delta is widened by cos(lat) so the box
// keeps a roughly fixed ground size.
const bboxDeltaDeg = 0.045

// TrafficService fetches traffic incidents around the current position and
// normalizes them into hazard records.
type TrafficService struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewTrafficService creates a new traffic service
func NewTrafficService(apiKey string) *TrafficService {
	return &TrafficService{
		apiKey:  apiKey,
		baseURL: "https://api.tomtom.com/traffic/services/5",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SetBaseURL overrides the feed endpoint (used in tests).
func (s *TrafficService) SetBaseURL(url string) {
	s.baseURL = strings.TrimSuffix(url, "/")
}

// incidentDetailsResponse represents the TomTom incident feed response
type incidentDetailsResponse struct {
	Incidents []tomTomIncident `json:"incidents"`
}

type tomTomIncident struct {
	Point *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"point,omitempty"`
	Geometry *struct {
		Coordinates [][]float64 `json:"coordinates"`
	} `json:"geometry,omitempty"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Severity    *int   `json:"severity,omitempty"`
}

// GetIncidents fetches incidents in a bounding box around the position and
// maps them to hazards, computing distance and the ahead flag against the
// given heading (nil when unknown).
func (s *TrafficService) GetIncidents(ctx context.Context, lat, lon float64, headingDeg *float64) ([]domain.Hazard, error) {
	if s.apiKey == "" {
		// Demo mode: no feed configured, nothing to report.
		return nil, nil
	}

	lonDelta := bboxDeltaDeg / math.Cos(lat*math.Pi/180)
	url := fmt.Sprintf(
		"%s/incidentDetails?bbox=%f,%f,%f,%f&key=%s",
		s.baseURL,
		lon-lonDelta, lat-bboxDeltaDeg,
		lon+lonDelta, lat+bboxDeltaDeg,
		s.apiKey,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("traffic: failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("traffic: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("traffic: unexpected status %d", resp.StatusCode)
	}

	var feed incidentDetailsResponse
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("traffic: failed to decode response: %w", err)
	}

	return s.normalizeIncidents(lat, lon, headingDeg, feed.Incidents), nil
}

// normalizeIncidents maps feed incidents into hazard records.
func (s *TrafficService) normalizeIncidents(lat, lon float64, headingDeg *float64, incidents []tomTomIncident) []domain.Hazard {
	hazards := make([]domain.Hazard, 0, len(incidents))

	for i, incident := range incidents {
		hazardLat, hazardLon := lat, lon
		if incident.Point != nil {
			hazardLat = incident.Point.Latitude
			hazardLon = incident.Point.Longitude
		} else if incident.Geometry != nil && len(incident.Geometry.Coordinates) > 0 &&
			len(incident.Geometry.Coordinates[0]) >= 2 {
			// GeoJSON order: [lon, lat]
			hazardLon = incident.Geometry.Coordinates[0][0]
			hazardLat = incident.Geometry.Coordinates[0][1]
		}

		message := incident.Description
		if message == "" {
			message = "Traffic incident reported"
		}

		isAhead := false
		if headingDeg != nil {
			bearing := geo.BearingDeg(lat, lon, hazardLat, hazardLon)
			isAhead = geo.IsWithinForwardCone(bearing, *headingDeg)
		}

		hazards = append(hazards, domain.Hazard{
			ID:           fmt.Sprintf("incident-%d", i),
			Latitude:     hazardLat,
			Longitude:    hazardLon,
			Category:     CategorizeIncidentType(incident.Type),
			Severity:     MapIncidentSeverity(incident.Severity),
			DistanceKm:   geo.DistanceKm(lat, lon, hazardLat, hazardLon),
			IsAhead:      isAhead,
			Message:      message,
			IncidentType: incident.Type,
		})
	}

	return hazards
}

// CategorizeIncidentType infers the hazard category from incident type text.
func CategorizeIncidentType(incidentType string) domain.HazardCategory {
	t := strings.ToUpper(incidentType)
	switch {
	case strings.Contains(t, "ACCIDENT"), strings.Contains(t, "COLLISION"):
		return domain.CategoryAccident
	case strings.Contains(t, "WEATHER"), strings.Contains(t, "RAIN"),
		strings.Contains(t, "SNOW"), strings.Contains(t, "STORM"),
		strings.Contains(t, "FOG"), strings.Contains(t, "ICE"):
		return domain.CategoryWeather
	default:
		return domain.CategoryTraffic
	}
}

// MapIncidentSeverity maps the feed's numeric severity onto our levels.
// An absent value maps to medium.
func MapIncidentSeverity(severity *int) domain.Severity {
	if severity == nil {
		return domain.SeverityMedium
	}
	switch {
	case *severity >= 4:
		return domain.SeverityHigh
	case *severity >= 2:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}
