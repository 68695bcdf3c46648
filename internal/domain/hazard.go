package domain

// HazardCategory classifies a hazard record by its origin.
type HazardCategory string

const (
	CategoryAccident          HazardCategory = "accident"
	CategoryWeather           HazardCategory = "weather"
	CategoryTraffic           HazardCategory = "traffic"
	CategoryPredictedAccident HazardCategory = "predicted_accident"
)

// Severity grades an observed incident.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityVeryHigh Severity = "very_high"
)

// RiskLevel grades a predicted hotspot.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskVeryHigh RiskLevel = "very_high"
)

// WeatherHazardID is the fixed id of the single weather hazard. It persists
// across ingestion cycles until conditions no longer warrant it.
const WeatherHazardID = "weather-alert"

// Hazard is a located, categorized risk record: an observed incident from a
// live feed or a predicted hotspot. DistanceKm and IsAhead are computed
// against the vehicle position/heading at ingestion time.
type Hazard struct {
	ID                  string         `json:"id"`
	Latitude            float64        `json:"lat"`
	Longitude           float64        `json:"lon"`
	Category            HazardCategory `json:"category"`
	Severity            Severity       `json:"severity,omitempty"`
	RiskLevel           RiskLevel      `json:"risk_level,omitempty"`
	RiskProbability     float64        `json:"risk_probability,omitempty"`
	DistanceKm          float64        `json:"distance_km"`
	IsAhead             bool           `json:"is_ahead"`
	Message             string         `json:"message"`
	RoadConditionEffect string         `json:"road_condition_effect,omitempty"`
	IncidentType        string         `json:"incident_type,omitempty"`
}

// WeatherConditions is the current-conditions snapshot from the weather feed.
// Condition carries the feed's main condition keyword ("Rain", "Clear", ...).
type WeatherConditions struct {
	Condition   string  `json:"condition"`
	Description string  `json:"description"`
	Temperature float64 `json:"temperature"`
	IsMock      bool    `json:"is_mock"`
}
