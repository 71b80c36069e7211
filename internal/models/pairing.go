package models

import "time"

// PairingCode is a short-lived one-time registration code. Live codes are held
// in memory by the pairing service; redeemed codes are also written to the
// pairing_codes table as an audit trail.
type PairingCode struct {
	Code      string     `db:"code" json:"code"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	Used      bool       `db:"used" json:"used"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UsedAt    *time.Time `db:"used_at" json:"used_at,omitempty"`
	DeviceID  *string    `db:"device_id" json:"device_id,omitempty"`
}

// PairingCodeStatus is the outstanding-code view with remaining TTL.
type PairingCodeStatus struct {
	Code             string    `json:"code"`
	ExpiresAt        time.Time `json:"expires_at"`
	RemainingSeconds int       `json:"remaining_seconds"`
}

// POST /api/pairing/register request.
type RegisterDeviceInput struct {
	PairingCode  string `json:"pairingCode"`
	Hostname     string `json:"hostname"`
	IPAddress    string `json:"ip_address"`
	DeviceType   string `json:"device_type"`
	OS           string `json:"os"`
	Arch         string `json:"arch"`
	AgentVersion string `json:"agent_version"`
}

// POST /api/pairing/register response body (inside the success envelope).
type RegisterDeviceResult struct {
	DeviceID  string   `json:"device_id"`
	SiteID    string   `json:"site_id"`
	Token     string   `json:"token"`
	NATSCreds string   `json:"nats_creds,omitempty"`
	NATSURLs  []string `json:"nats_urls,omitempty"`
	ExpiresAt string   `json:"expires_at"`
}
