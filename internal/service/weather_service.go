package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/driveguard/backend/internal/domain"
)

// WeatherService fetches current conditions and derives the single
// weather hazard when conditions warrant one.
type WeatherService struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewWeatherService creates a new weather service
func NewWeatherService(apiKey string) *WeatherService {
	return &WeatherService{
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org/data/2.5",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SetBaseURL overrides the feed endpoint (used in tests).
func (s *WeatherService) SetBaseURL(url string) {
	s.baseURL = strings.TrimSuffix(url, "/")
}

// OpenWeatherResponse represents the OpenWeatherMap API response
type OpenWeatherResponse struct {
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Name string `json:"name"`
}

// GetCurrentConditions fetches current conditions for the given position.
func (s *WeatherService) GetCurrentConditions(ctx context.Context, lat, lon float64) (domain.WeatherConditions, error) {
	// Return mock data if no API key
	if s.apiKey == "" {
		return s.getMockConditions(), nil
	}

	url := fmt.Sprintf(
		"%s/weather?lat=%f&lon=%f&appid=%s&units=metric",
		s.baseURL, lat, lon, s.apiKey,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.WeatherConditions{}, fmt.Errorf("weather: failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return domain.WeatherConditions{}, fmt.Errorf("weather: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.WeatherConditions{}, fmt.Errorf("weather: unexpected status %d", resp.StatusCode)
	}

	var owResp OpenWeatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&owResp); err != nil {
		return domain.WeatherConditions{}, fmt.Errorf("weather: failed to decode response: %w", err)
	}

	conditions := domain.WeatherConditions{
		Temperature: owResp.Main.Temp,
	}
	if len(owResp.Weather) > 0 {
		conditions.Condition = owResp.Weather[0].Main
		conditions.Description = owResp.Weather[0].Description
	}

	return conditions, nil
}

// BuildHazard returns the weather hazard for the given conditions, or
// (zero, false) when conditions do not warrant one. The hazard always
// carries the fixed id so a fresh one replaces the previous cycle's.
func (s *WeatherService) BuildHazard(conditions domain.WeatherConditions, lat, lon float64) (domain.Hazard, bool) {
	if !ConditionWarrantsHazard(conditions.Condition) {
		return domain.Hazard{}, false
	}

	return domain.Hazard{
		ID:                  domain.WeatherHazardID,
		Latitude:            lat,
		Longitude:           lon,
		Category:            domain.CategoryWeather,
		Severity:            domain.SeverityMedium,
		Message:             fmt.Sprintf("Weather alert: %s", conditions.Description),
		RoadConditionEffect: WeatherRoadEffect(conditions.Condition),
	}, true
}

// ConditionWarrantsHazard reports whether the condition text names weather
// that degrades driving (rain, storm or snow, case-insensitive substring).
func ConditionWarrantsHazard(condition string) bool {
	c := strings.ToLower(condition)
	return strings.Contains(c, "rain") ||
		strings.Contains(c, "storm") ||
		strings.Contains(c, "snow")
}

// WeatherRoadEffect maps a condition keyword to its road-condition effect.
func WeatherRoadEffect(condition string) string {
	c := strings.ToLower(condition)
	switch {
	case strings.Contains(c, "rain"), strings.Contains(c, "drizzle"):
		return "Wet and slippery roads"
	case strings.Contains(c, "snow"):
		return "Snow-covered roads, reduced traction"
	case strings.Contains(c, "fog"):
		return "Poor visibility"
	case strings.Contains(c, "storm"):
		return "Hazardous driving conditions, possible debris"
	case strings.Contains(c, "ice"), strings.Contains(c, "sleet"):
		return "Icy roads, extremely slippery"
	}
	return "Weather may affect driving conditions"
}

// getMockConditions returns simulated seasonal conditions for demo mode.
func (s *WeatherService) getMockConditions() domain.WeatherConditions {
	month := time.Now().Month()

	switch {
	case month == 12 || month <= 2: // Winter
		return domain.WeatherConditions{
			Condition:   "Snow",
			Description: "light snow",
			Temperature: -8.0,
			IsMock:      true,
		}
	case month >= 6 && month <= 8: // Summer
		return domain.WeatherConditions{
			Condition:   "Clear",
			Description: "clear sky",
			Temperature: 28.0,
			IsMock:      true,
		}
	default:
		return domain.WeatherConditions{
			Condition:   "Clouds",
			Description: "overcast clouds",
			Temperature: 8.0,
			IsMock:      true,
		}
	}
}
