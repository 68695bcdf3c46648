package service

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveguard/backend/internal/domain"
)

// safeSpeaker is a concurrency-safe recording sink for engine tests.
type safeSpeaker struct {
	mu       sync.Mutex
	messages []string
}

func (s *safeSpeaker) Speak(message string, priority domain.AlertPriority) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
}

func (s *safeSpeaker) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

func TestSafetyEngineFirstFixAnnouncesAccident(t *testing.T) {
	// An accident ~1 km north of the vehicle, inside the critical radius.
	trafficServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"incidents":[{"point":{"latitude":43.2479,"longitude":76.8897},"type":"ACCIDENT","description":"Collision","severity":4}]}`)
	}))
	defer trafficServer.Close()

	// A high-risk hotspot ~1 km south: behind the vehicle, so it must lose.
	predictionServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"hotspots":[{"latitude":43.2299,"longitude":76.8897,"risk_factor":0.9}]}`)
	}))
	defer predictionServer.Close()

	trafficSvc := NewTrafficService("test-key")
	trafficSvc.SetBaseURL(trafficServer.URL)
	predictSvc := NewPredictionService(predictionServer.URL)

	speaker := &safeSpeaker{}
	arb := NewAlertArbitrator(speaker, nil, "")
	engine := NewSafetyEngine("test", NewWeatherService(""), trafficSvc, predictSvc, arb, nil)

	heading := 0.0
	engine.OnPosition(domain.PositionSample{
		Latitude: 43.2389, Longitude: 76.8897, TimestampMs: 1000,
		ReportedHeading: &heading,
	})

	assert.Eventually(t, func() bool {
		return len(speaker.all()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	engine.Stop()

	messages := speaker.all()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "Accident reported")
}

func TestSafetyEngineTeardownSilencesPendingFetch(t *testing.T) {
	trafficServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		fmt.Fprint(w, `{"incidents":[{"point":{"latitude":43.2479,"longitude":76.8897},"type":"ACCIDENT","severity":4}]}`)
	}))
	defer trafficServer.Close()

	trafficSvc := NewTrafficService("test-key")
	trafficSvc.SetBaseURL(trafficServer.URL)

	speaker := &safeSpeaker{}
	arb := NewAlertArbitrator(speaker, nil, "")
	engine := NewSafetyEngine("test", NewWeatherService(""), trafficSvc, NewPredictionService(""), arb, nil)

	engine.OnPosition(domain.PositionSample{
		Latitude: 43.2389, Longitude: 76.8897, TimestampMs: 1000,
	})

	// Teardown before the fetch lands: the in-flight result is discarded
	// and nothing is announced afterwards.
	engine.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, speaker.all())
}

func TestSafetyEngineFeedCadences(t *testing.T) {
	var weatherCalls, predictionCalls atomic.Int32

	weatherServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		weatherCalls.Add(1)
		fmt.Fprint(w, `{"main":{"temp":20},"weather":[{"main":"Clear","description":"clear sky"}]}`)
	}))
	defer weatherServer.Close()

	predictionServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		predictionCalls.Add(1)
		fmt.Fprint(w, `{"hotspots":[]}`)
	}))
	defer predictionServer.Close()

	weatherSvc := NewWeatherService("test-key")
	weatherSvc.SetBaseURL(weatherServer.URL)
	predictSvc := NewPredictionService(predictionServer.URL)

	speaker := &safeSpeaker{}
	arb := NewAlertArbitrator(speaker, nil, "")
	engine := NewSafetyEngine("test", weatherSvc, NewTrafficService(""), predictSvc, arb, nil)
	defer engine.Stop()

	current := time.Unix(1_700_000_000, 0)
	engine.SetClock(func() time.Time { return current })

	// First fix fetches both feeds immediately.
	engine.OnPosition(domain.PositionSample{
		Latitude: 43.2389, Longitude: 76.8897, TimestampMs: 1000,
	})
	assert.Eventually(t, func() bool {
		return weatherCalls.Load() == 1 && predictionCalls.Load() == 1
	}, time.Second, 10*time.Millisecond)

	// Inside the 60 s window neither feed refetches.
	current = current.Add(59 * time.Second)
	engine.refreshFeeds()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), weatherCalls.Load())
	assert.Equal(t, int32(1), predictionCalls.Load())

	// Past it, both do.
	current = current.Add(2 * time.Second)
	engine.refreshFeeds()
	assert.Eventually(t, func() bool {
		return weatherCalls.Load() == 2 && predictionCalls.Load() == 2
	}, time.Second, 10*time.Millisecond)
}

func TestSafetyEngineTrafficGating(t *testing.T) {
	var trafficCalls atomic.Int32
	trafficServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trafficCalls.Add(1)
		fmt.Fprint(w, `{"incidents":[]}`)
	}))
	defer trafficServer.Close()

	trafficSvc := NewTrafficService("test-key")
	trafficSvc.SetBaseURL(trafficServer.URL)

	speaker := &safeSpeaker{}
	arb := NewAlertArbitrator(speaker, nil, "")
	engine := NewSafetyEngine("test", NewWeatherService(""), trafficSvc, NewPredictionService(""), arb, nil)
	defer engine.Stop()

	current := time.Unix(1_700_000_000, 0)
	engine.SetClock(func() time.Time { return current })

	// First fix fetches immediately.
	engine.OnPosition(domain.PositionSample{
		Latitude: 43.2389, Longitude: 76.8897, TimestampMs: 1000,
	})
	assert.Eventually(t, func() bool {
		return trafficCalls.Load() == 1
	}, time.Second, 10*time.Millisecond)

	// Stationary and inside the poll window: no fetch.
	current = current.Add(10 * time.Second)
	engine.refreshFeeds()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), trafficCalls.Load())

	// Past the stationary window: fetch.
	current = current.Add(25 * time.Second)
	engine.refreshFeeds()
	assert.Eventually(t, func() bool {
		return trafficCalls.Load() == 2
	}, time.Second, 10*time.Millisecond)

	// Sustained movement: every tick refetches regardless of the window.
	speed := 10.0 // m/s
	for i := 0; i < 3; i++ {
		engine.OnPosition(domain.PositionSample{
			Latitude: 43.2389, Longitude: 76.8897,
			TimestampMs:   int64(2000 + i*1000),
			ReportedSpeed: &speed,
		})
	}
	require.True(t, engine.Snapshot().Motion.IsSustainedMovement)

	current = current.Add(1 * time.Second)
	engine.refreshFeeds()
	assert.Eventually(t, func() bool {
		return trafficCalls.Load() == 3
	}, time.Second, 10*time.Millisecond)

	current = current.Add(1 * time.Second)
	engine.refreshFeeds()
	assert.Eventually(t, func() bool {
		return trafficCalls.Load() == 4
	}, time.Second, 10*time.Millisecond)
}
