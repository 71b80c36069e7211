package escalation

import (
	"time"

	"fleetpilot-backend/internal/models"
)

// DefaultTiers is the ladder used when a request supplies no tier table.
func DefaultTiers() []models.EscalationTier {
	return []models.EscalationTier{
		{Label: "Tier 1", Timeout: 15, Channels: []string{"slack"}, Contacts: []string{"oncall-primary"}},
		{Label: "Tier 2", Timeout: 30, Channels: []string{"slack", "email"}, Contacts: []string{"oncall-secondary"}},
		{Label: "Tier 3", Timeout: 60, Channels: []string{"slack", "email", "sms"}, Contacts: []string{"ops-manager"}},
	}
}

// SelectTier picks the active tier for an alert of the given age. Each tier's
// Timeout is an absolute boundary in minutes from alert creation: tier i is
// active while the age is below its boundary and at or past the previous
// tier's. Past the last boundary the last tier stays active with exhausted
// set. The tier slice must be non-empty and ordered by ascending Timeout.
func SelectTier(age time.Duration, tiers []models.EscalationTier) (index int, exhausted bool) {
	for i, tier := range tiers {
		if age < time.Duration(tier.Timeout)*time.Minute {
			return i, false
		}
	}
	return len(tiers) - 1, true
}

// nextBoundary returns the time remaining until the alert crosses into the
// next tier, or false when it is already past every boundary.
func nextBoundary(age time.Duration, tiers []models.EscalationTier) (time.Duration, bool) {
	for _, tier := range tiers {
		boundary := time.Duration(tier.Timeout) * time.Minute
		if age < boundary {
			return boundary - age, true
		}
	}
	return 0, false
}

// tierStates tags every tier relative to the current one.
func tierStates(current int, exhausted bool, tiers []models.EscalationTier) []models.TierStatus {
	out := make([]models.TierStatus, len(tiers))
	for i, tier := range tiers {
		state := models.TierStatePending
		switch {
		case i == current:
			state = models.TierStateCurrent
		case i < current:
			state = models.TierStatePassed
		}
		out[i] = models.TierStatus{
			Index:    i,
			Label:    tier.Label,
			State:    state,
			Channels: tier.Channels,
			Contacts: tier.Contacts,
		}
	}
	return out
}
