package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/driveguard/backend/internal/domain"
)

const (
	// defaultTickInterval drives the feed-refresh gating.
	defaultTickInterval = 5 * time.Second

	// trafficRefreshInterval is the stationary traffic poll cadence; while
	// in sustained movement every tick refetches.
	trafficRefreshInterval = 30 * time.Second

	// weatherRefreshInterval is the weather poll cadence.
	weatherRefreshInterval = 60 * time.Second

	// predictionRefreshInterval caps how often predictions recompute.
	predictionRefreshInterval = 60 * time.Second

	// defaultNotificationRadiusKm bounds predicted hotspot placement.
	defaultNotificationRadiusKm = 10
)

// EngineSnapshot is the externally visible state of one tracking session.
type EngineSnapshot struct {
	Motion     domain.MotionState       `json:"motion"`
	Conditions domain.WeatherConditions `json:"conditions"`
	Hazards    []domain.Hazard          `json:"hazards"`
}

// StateMirror receives live session state for external consumers. Calls are
// best-effort; failures never influence the pipeline.
type StateMirror interface {
	PublishMotion(ctx context.Context, sessionID string, motion domain.MotionState, lat, lon float64)
	PublishAnnouncement(ctx context.Context, sessionID string, hazard domain.Hazard, message string)
}

// SafetyEngine is the per-session reactive loop: position updates feed the
// motion tracker, feed refreshes are gated off a fixed tick, and every state
// change re-runs alert arbitration. All state mutation is serialized under
// one mutex; fetches run asynchronously and apply their results atomically.
type SafetyEngine struct {
	sessionID  string
	radiusKm   float64
	tick       time.Duration
	weatherSvc *WeatherService
	trafficSvc *TrafficService
	predictSvc *PredictionService
	arbitrator *AlertArbitrator
	mirror     StateMirror
	now        func() time.Time

	tracker *MotionTracker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu               sync.Mutex
	hasFix           bool
	lat, lon         float64
	conditions       domain.WeatherConditions
	weatherHazard    *domain.Hazard
	trafficHazards   []domain.Hazard
	predictedHazards []domain.Hazard

	lastTrafficAttempt    time.Time
	lastWeatherAttempt    time.Time
	lastPredictionAttempt time.Time
}

// NewSafetyEngine creates a new engine for one tracking session. mirror is
// optional.
func NewSafetyEngine(
	sessionID string,
	weatherSvc *WeatherService,
	trafficSvc *TrafficService,
	predictSvc *PredictionService,
	arbitrator *AlertArbitrator,
	mirror StateMirror,
) *SafetyEngine {
	ctx, cancel := context.WithCancel(context.Background())
	return &SafetyEngine{
		sessionID:  sessionID,
		radiusKm:   defaultNotificationRadiusKm,
		tick:       defaultTickInterval,
		weatherSvc: weatherSvc,
		trafficSvc: trafficSvc,
		predictSvc: predictSvc,
		arbitrator: arbitrator,
		mirror:     mirror,
		tracker:    NewMotionTracker(),
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SetClock overrides the time source (used in tests).
func (e *SafetyEngine) SetClock(now func() time.Time) {
	e.now = now
}

// SetTickInterval overrides the refresh tick (used in tests).
func (e *SafetyEngine) SetTickInterval(d time.Duration) {
	e.tick = d
}

// Start launches the tick loop. Position and orientation events are pushed
// in via OnPosition/OnOrientation.
func (e *SafetyEngine) Start() {
	e.wg.Add(1)
	go e.tickLoop()
}

// Stop tears the session down: pending timers and in-flight fetches are
// abandoned and no announcement fires afterwards.
func (e *SafetyEngine) Stop() {
	e.arbitrator.Close()
	e.cancel()
	e.wg.Wait()
}

func (e *SafetyEngine) tickLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.refreshFeeds()
		case <-e.ctx.Done():
			return
		}
	}
}

// refreshFeeds applies the polling gates and launches any due fetches.
func (e *SafetyEngine) refreshFeeds() {
	e.mu.Lock()
	if !e.hasFix {
		e.mu.Unlock()
		return
	}

	now := e.now()
	motion := e.tracker.State()

	trafficDue := motion.IsSustainedMovement ||
		now.Sub(e.lastTrafficAttempt) >= trafficRefreshInterval
	weatherDue := now.Sub(e.lastWeatherAttempt) >= weatherRefreshInterval
	predictionDue := now.Sub(e.lastPredictionAttempt) >= predictionRefreshInterval

	if trafficDue {
		e.lastTrafficAttempt = now
	}
	if weatherDue {
		e.lastWeatherAttempt = now
	}
	if predictionDue {
		e.lastPredictionAttempt = now
	}
	lat, lon := e.lat, e.lon
	e.mu.Unlock()

	if trafficDue {
		e.fetchTrafficAsync(lat, lon, motion)
	}
	if weatherDue {
		e.fetchWeatherAsync(lat, lon)
	}
	if predictionDue {
		e.fetchPredictionAsync(lat, lon, motion)
	}
}

// OnPosition processes one raw position sample. The first fix triggers an
// immediate refresh of every feed; fetches never block this path.
func (e *SafetyEngine) OnPosition(sample domain.PositionSample) domain.MotionState {
	e.mu.Lock()
	firstFix := !e.hasFix
	e.hasFix = true
	e.lat, e.lon = sample.Latitude, sample.Longitude
	motion := e.tracker.Update(sample)
	now := e.now()
	if firstFix {
		e.lastTrafficAttempt = now
		e.lastWeatherAttempt = now
		e.lastPredictionAttempt = now
	}
	lat, lon := e.lat, e.lon
	e.mu.Unlock()

	if firstFix {
		e.fetchWeatherAsync(lat, lon)
		e.fetchTrafficAsync(lat, lon, motion)
		e.fetchPredictionAsync(lat, lon, motion)
	}

	e.arbitrate(motion)
	e.mirrorMotion(motion, lat, lon)
	return motion
}

// OnOrientation applies a device-orientation heading update.
func (e *SafetyEngine) OnOrientation(headingDeg float64) domain.MotionState {
	e.mu.Lock()
	motion := e.tracker.SetHeading(headingDeg)
	e.mu.Unlock()

	e.arbitrate(motion)
	return motion
}

// Snapshot returns the current session state.
func (e *SafetyEngine) Snapshot() EngineSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return EngineSnapshot{
		Motion:     e.tracker.State(),
		Conditions: e.conditions,
		Hazards:    e.mergedHazardsLocked(),
	}
}

// fetchWeatherAsync refreshes conditions and the weather hazard. A failed
// fetch skips the cycle and keeps the previous hazard.
func (e *SafetyEngine) fetchWeatherAsync(lat, lon float64) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		conditions, err := e.weatherSvc.GetCurrentConditions(e.ctx, lat, lon)
		if err != nil {
			log.Printf("engine %s: weather fetch skipped: %v", e.sessionID, err)
			return
		}

		e.mu.Lock()
		if e.ctx.Err() != nil {
			e.mu.Unlock()
			return
		}
		e.conditions = conditions
		if hazard, ok := e.weatherSvc.BuildHazard(conditions, lat, lon); ok {
			e.weatherHazard = &hazard
		} else {
			// Conditions cleared up: the stale hazard is dropped.
			e.weatherHazard = nil
		}
		motion := e.tracker.State()
		e.mu.Unlock()

		e.arbitrate(motion)
	}()
}

// fetchTrafficAsync refreshes the incident hazards. On failure the previous
// set is retained.
func (e *SafetyEngine) fetchTrafficAsync(lat, lon float64, motion domain.MotionState) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		hazards, err := e.trafficSvc.GetIncidents(e.ctx, lat, lon, motion.HeadingDeg)
		if err != nil {
			log.Printf("engine %s: traffic fetch skipped: %v", e.sessionID, err)
			return
		}

		e.mu.Lock()
		if e.ctx.Err() != nil {
			e.mu.Unlock()
			return
		}
		e.trafficHazards = hazards
		current := e.tracker.State()
		e.mu.Unlock()

		e.arbitrate(current)
	}()
}

// fetchPredictionAsync recomputes predicted hotspots; the predictor falls
// back to its synthetic generator internally, so this never fails.
func (e *SafetyEngine) fetchPredictionAsync(lat, lon float64, motion domain.MotionState) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		e.mu.Lock()
		condition := e.conditions.Condition
		e.mu.Unlock()

		hazards := e.predictSvc.Predict(e.ctx, lat, lon, e.radiusKm, motion, condition)

		e.mu.Lock()
		if e.ctx.Err() != nil {
			e.mu.Unlock()
			return
		}
		e.predictedHazards = hazards
		current := e.tracker.State()
		e.mu.Unlock()

		e.arbitrate(current)
	}()
}

// arbitrate runs one arbitration pass over the merged hazard set.
func (e *SafetyEngine) arbitrate(motion domain.MotionState) {
	e.mu.Lock()
	hazards := e.mergedHazardsLocked()
	e.mu.Unlock()

	announced, ok := e.arbitrator.Evaluate(hazards, motion)
	if !ok {
		return
	}

	if e.mirror != nil {
		e.mirror.PublishAnnouncement(e.ctx, e.sessionID, announced, SynthesizeAlertMessage(announced))
	}
}

// mergedHazardsLocked returns weather, then traffic, then predicted hazards.
// Order matters: arbitration ties keep the earlier entry.
func (e *SafetyEngine) mergedHazardsLocked() []domain.Hazard {
	merged := make([]domain.Hazard, 0,
		1+len(e.trafficHazards)+len(e.predictedHazards))
	if e.weatherHazard != nil {
		merged = append(merged, *e.weatherHazard)
	}
	merged = append(merged, e.trafficHazards...)
	merged = append(merged, e.predictedHazards...)
	return merged
}

func (e *SafetyEngine) mirrorMotion(motion domain.MotionState, lat, lon float64) {
	if e.mirror == nil {
		return
	}
	e.mirror.PublishMotion(e.ctx, e.sessionID, motion, lat, lon)
}
