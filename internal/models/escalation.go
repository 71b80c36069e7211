package models

import "time"

// EscalationTier is one stage of the escalation ladder. Timeout is the tier's
// boundary in minutes from alert creation; the slice is ordered by ascending
// Timeout.
type EscalationTier struct {
	Label    string   `json:"label"`
	Timeout  int      `json:"timeout_minutes"`
	Channels []string `json:"channels"`
	Contacts []string `json:"contacts"`
}

// Tier tags used by the escalation status projection.
const (
	TierStateCurrent = "current"
	TierStatePassed  = "passed"
	TierStatePending = "pending"
)

type TierStatus struct {
	Index    int      `json:"index"`
	Label    string   `json:"label"`
	State    string   `json:"state"`
	Channels []string `json:"channels"`
	Contacts []string `json:"contacts"`
}

// EscalationStatus is the read-only projection for one alert.
type EscalationStatus struct {
	AlertID        string       `json:"alert_id"`
	AgeMinutes     int          `json:"age_minutes"`
	Acknowledged   bool         `json:"acknowledged"`
	Resolved       bool         `json:"resolved"`
	CurrentTier    int          `json:"current_tier"`
	TiersExhausted bool         `json:"tiers_exhausted"`
	Tiers          []TierStatus `json:"tiers"`
}

// EscalationNotice is handed to the notifier on each fan-out.
type EscalationNotice struct {
	Alert     *Alert
	Hostname  string
	TierIndex int
	Tier      EscalationTier
	Exhausted bool
	SentAt    time.Time
}
