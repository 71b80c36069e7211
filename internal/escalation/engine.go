// Package escalation walks unacknowledged alerts through timed notification
// tiers. Tier selection is pure computation over an explicitly ordered tier
// slice; dispatch goes through a Notifier and is fire-and-forget relative to
// the request that started it.
package escalation

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"fleetpilot-backend/internal/models"
	"fleetpilot-backend/internal/observability"
	"fleetpilot-backend/internal/storage"
)

var ErrNoTiers = errors.New("escalation tier table is empty")

type Store interface {
	GetAlert(ctx context.Context, id string) (*models.Alert, error)
	GetDevice(ctx context.Context, id string) (*models.Device, error)
}

// Notifier delivers one escalation notice. Delivery failures are logged, not
// propagated; the escalation schedule is unaffected.
type Notifier interface {
	Notify(ctx context.Context, notice models.EscalationNotice) error
}

// BusinessHours is the fixed Monday-Friday window evaluated against the
// local clock.
type BusinessHours struct {
	StartHour int
	EndHour   int
}

func (b BusinessHours) Contains(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	hour := t.Hour()
	return hour >= b.StartHour && hour < b.EndHour
}

type Engine struct {
	store    Store
	notifier Notifier
	hours    BusinessHours

	mu     sync.Mutex
	timers map[string]*time.Timer

	now func() time.Time
}

func NewEngine(store Store, notifier Notifier, hours BusinessHours) *Engine {
	return &Engine{
		store:    store,
		notifier: notifier,
		hours:    hours,
		timers:   make(map[string]*time.Timer),
		now:      time.Now,
	}
}

// Start determines the alert's current tier and fans out to its contacts.
// Missing or resolved alerts, and off-hours calls when businessHoursOnly is
// set, are skipped with a log line; none of these are caller errors. A timer
// is armed for the next tier boundary so the alert keeps climbing until
// stopped or resolved.
func (e *Engine) Start(ctx context.Context, alertID string, tiers []models.EscalationTier, businessHoursOnly bool) error {
	if len(tiers) == 0 {
		return ErrNoTiers
	}

	alert, err := e.store.GetAlert(ctx, alertID)
	if err != nil {
		if errors.Is(err, storage.ErrAlertNotFound) {
			log.Printf("WARN Escalation skipped: alert %s not found", alertID)
			return nil
		}
		return err
	}
	if alert.Status == models.AlertStatusResolved {
		log.Printf("INFO Escalation skipped: alert %s already resolved", alertID)
		e.Stop(alertID)
		return nil
	}
	if businessHoursOnly && !e.hours.Contains(e.now()) {
		log.Printf("INFO Escalation skipped: alert %s outside business hours", alertID)
		return nil
	}

	age := e.now().Sub(alert.CreatedAt)
	tierIdx, exhausted := SelectTier(age, tiers)
	tier := tiers[tierIdx]

	hostname := "unknown"
	if device, err := e.store.GetDevice(ctx, alert.DeviceID); err == nil {
		hostname = device.Hostname
	}

	notice := models.EscalationNotice{
		Alert:     alert,
		Hostname:  hostname,
		TierIndex: tierIdx,
		Tier:      tier,
		Exhausted: exhausted,
		SentAt:    e.now().UTC(),
	}

	// Fan-out must not block the request that triggered the escalation.
	go func() {
		dispatchCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := e.notifier.Notify(dispatchCtx, notice); err != nil {
			log.Printf("WARN Escalation notify failed for alert %s tier %q: %v", alertID, tier.Label, err)
			return
		}
		observability.EscalationNotices.WithLabelValues(tier.Label).Inc()
	}()

	e.scheduleNext(alertID, age, tiers, businessHoursOnly)
	return nil
}

// scheduleNext arms (or re-arms) the per-alert timer for the next tier
// boundary. Exhausted alerts get no further timer.
func (e *Engine) scheduleNext(alertID string, age time.Duration, tiers []models.EscalationTier, businessHoursOnly bool) {
	wait, ok := nextBoundary(age, tiers)
	if !ok {
		e.Stop(alertID)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if prev, exists := e.timers[alertID]; exists {
		prev.Stop()
	}
	e.timers[alertID] = time.AfterFunc(wait, func() {
		e.mu.Lock()
		delete(e.timers, alertID)
		e.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := e.Start(ctx, alertID, tiers, businessHoursOnly); err != nil {
			log.Printf("WARN Scheduled escalation for alert %s failed: %v", alertID, err)
		}
	})
}

// Stop cancels any scheduled escalation for the alert. Idempotent.
func (e *Engine) Stop(alertID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if timer, ok := e.timers[alertID]; ok {
		timer.Stop()
		delete(e.timers, alertID)
	}
}

// Status is the read-only projection: alert age, lifecycle flags, and a
// per-tier breakdown. No side effects.
func (e *Engine) Status(ctx context.Context, alertID string, tiers []models.EscalationTier) (*models.EscalationStatus, error) {
	if len(tiers) == 0 {
		return nil, ErrNoTiers
	}

	alert, err := e.store.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}

	age := e.now().Sub(alert.CreatedAt)
	tierIdx, exhausted := SelectTier(age, tiers)

	return &models.EscalationStatus{
		AlertID:        alertID,
		AgeMinutes:     int(age / time.Minute),
		Acknowledged:   alert.AcknowledgedAt != nil,
		Resolved:       alert.Status == models.AlertStatusResolved,
		CurrentTier:    tierIdx,
		TiersExhausted: exhausted,
		Tiers:          tierStates(tierIdx, exhausted, tiers),
	}, nil
}
