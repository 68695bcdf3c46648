package service

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/driveguard/backend/internal/domain"
)

const (
	// criticalDistanceKm is how close a hazard must be to interrupt the driver.
	criticalDistanceKm = 3.0

	// alertCooldown is how long a hazard id stays in the ledger after its
	// first announcement. The same hazard will not re-announce within it.
	alertCooldown = 2 * time.Minute

	// announceGuardWindow is the fixed time the re-entrancy guard holds
	// after an announcement starts. It is a hard timeout, not tied to the
	// output sink completing.
	announceGuardWindow = 5 * time.Second
)

// AlertArbitrator merges hazards, filters to critical ones, selects the most
// urgent and drives the output sink with de-duplication and cooldown. It is
// not safe for concurrent use; the safety engine serializes evaluation.
type AlertArbitrator struct {
	speaker   domain.Speaker
	smsSender domain.SMSSender
	smsNumber string
	now       func() time.Time

	mu             sync.Mutex
	ledger         map[string]time.Time
	lastAnnounceAt time.Time
	closed         bool
}

// NewAlertArbitrator creates a new arbitrator. smsSender and smsNumber are
// optional; with either absent, announcements are voice-only.
func NewAlertArbitrator(speaker domain.Speaker, smsSender domain.SMSSender, smsNumber string) *AlertArbitrator {
	return &AlertArbitrator{
		speaker:   speaker,
		smsSender: smsSender,
		smsNumber: smsNumber,
		now:       time.Now,
		ledger:    make(map[string]time.Time),
	}
}

// SetClock overrides the time source (used in tests).
func (a *AlertArbitrator) SetClock(now func() time.Time) {
	a.now = now
}

// Close stops the arbitrator; no announcement fires after it returns.
func (a *AlertArbitrator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
}

// Evaluate runs one arbitration pass over the merged hazard list. It returns
// the announced hazard and true when an announcement fired.
func (a *AlertArbitrator) Evaluate(hazards []domain.Hazard, motion domain.MotionState) (domain.Hazard, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return domain.Hazard{}, false
	}

	now := a.now()
	a.purgeLedger(now)

	selected, ok := selectMostUrgent(hazards, motion)
	if !ok {
		return domain.Hazard{}, false
	}

	// Re-entrancy guard: one announcement at a time, released on a fixed
	// window after the announcement starts.
	if !a.lastAnnounceAt.IsZero() && now.Sub(a.lastAnnounceAt) < announceGuardWindow {
		return domain.Hazard{}, false
	}

	// Cooldown: a hazard already announced within the window is suppressed.
	if _, announced := a.ledger[selected.ID]; announced {
		return domain.Hazard{}, false
	}

	message := SynthesizeAlertMessage(selected)
	a.speaker.Speak(message, domain.PriorityHigh)

	if a.smsSender != nil && a.smsNumber != "" {
		if ok := a.smsSender.SendSMS(a.smsNumber, message); !ok {
			log.Printf("arbitrator: SMS forward failed for hazard %s", selected.ID)
		}
	}

	// The ledger advances even if the sink failed to render, so a hazard
	// whose announcement merely failed does not retry every tick.
	a.ledger[selected.ID] = now
	a.lastAnnounceAt = now

	return selected, true
}

// purgeLedger drops entries older than the cooldown window.
func (a *AlertArbitrator) purgeLedger(now time.Time) {
	for id, announcedAt := range a.ledger {
		if now.Sub(announcedAt) > alertCooldown {
			delete(a.ledger, id)
		}
	}
}

// selectMostUrgent filters to critical hazards and picks the closest one.
// Ties keep the earlier hazard in the merged list.
func selectMostUrgent(hazards []domain.Hazard, motion domain.MotionState) (domain.Hazard, bool) {
	var selected domain.Hazard
	found := false

	for _, h := range hazards {
		if !IsCritical(h, motion) {
			continue
		}
		if !found || h.DistanceKm < selected.DistanceKm {
			selected = h
			found = true
		}
	}

	return selected, found
}

// IsCritical reports whether a hazard warrants interrupting the driver.
// Under sustained movement only hazards ahead qualify; while stationary or
// with uncertain heading the ahead requirement is bypassed.
func IsCritical(h domain.Hazard, motion domain.MotionState) bool {
	if h.DistanceKm > criticalDistanceKm {
		return false
	}

	if motion.IsSustainedMovement && !h.IsAhead {
		return false
	}

	switch h.Category {
	case domain.CategoryAccident:
		return true
	case domain.CategoryWeather:
		return h.Severity == domain.SeverityHigh
	case domain.CategoryPredictedAccident:
		return (h.RiskLevel == domain.RiskHigh || h.RiskLevel == domain.RiskVeryHigh) && h.IsAhead
	default:
		return false
	}
}

// SynthesizeAlertMessage builds the spoken alert text for a hazard.
func SynthesizeAlertMessage(h domain.Hazard) string {
	distance := fmt.Sprintf("%.1f", h.DistanceKm)

	switch h.Category {
	case domain.CategoryAccident:
		return fmt.Sprintf("Warning! Accident reported %s kilometers ahead.", distance)
	case domain.CategoryWeather:
		return fmt.Sprintf("Caution! %s %s kilometers ahead.", h.Message, distance)
	case domain.CategoryPredictedAccident:
		return fmt.Sprintf("Caution! High risk area %s kilometers ahead.", distance)
	default:
		return fmt.Sprintf("Alert! %s %s kilometers ahead.", h.Message, distance)
	}
}
