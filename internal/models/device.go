package models

import "time"

// Device status values. Transitions are driven externally (agents, monitors);
// the control plane only reads them.
const (
	DeviceStatusOnline      = "online"
	DeviceStatusHealthy     = "healthy"
	DeviceStatusWarning     = "warning"
	DeviceStatusCritical    = "critical"
	DeviceStatusOffline     = "offline"
	DeviceStatusUnknown     = "unknown"
	DeviceStatusPending     = "pending"
	DeviceStatusMaintenance = "maintenance"
)

// Device type values.
const (
	DeviceTypeWorkstation = "workstation"
	DeviceTypeServer      = "server"
	DeviceTypeLaptop      = "laptop"
	DeviceTypeVirtual     = "virtual"
	DeviceTypeContainer   = "container"
	DeviceTypeOther       = "other"
)

type Device struct {
	ID          string     `db:"id" json:"id"`
	Hostname    string     `db:"hostname" json:"hostname"`
	IPAddress   string     `db:"ip_address" json:"ip_address"`
	SiteID      string     `db:"site_id" json:"site_id"`
	DeviceType  string     `db:"device_type" json:"device_type"`
	Status      string     `db:"status" json:"status"`
	LastSeenAt  *time.Time `db:"last_seen_at" json:"last_seen_at,omitempty"`
	Tags        string     `db:"tags" json:"tags"`
	Description string     `db:"description" json:"description"`
	Notes       string     `db:"notes" json:"notes"`
	AdminUser   string     `db:"admin_user" json:"admin_user,omitempty"`
	AdminSecret []byte     `db:"admin_secret" json:"-"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// DeviceListItem is a device row joined with its site name for display.
type DeviceListItem struct {
	Device
	SiteName string `db:"site_name" json:"site_name"`
}

type CreateDeviceInput struct {
	Hostname    string `json:"hostname"`
	IPAddress   string `json:"ip_address"`
	SiteID      string `json:"siteId"`
	DeviceType  string `json:"device_type"`
	Tags        string `json:"tags"`
	Description string `json:"description"`
	Notes       string `json:"notes"`
	AdminUser   string `json:"admin_user"`
	AdminPass   string `json:"admin_pass"`
}

type UpdateDeviceInput struct {
	ID          string  `json:"deviceId"`
	Hostname    *string `json:"hostname,omitempty"`
	IPAddress   *string `json:"ip_address,omitempty"`
	SiteID      *string `json:"siteId,omitempty"`
	DeviceType  *string `json:"device_type,omitempty"`
	Tags        *string `json:"tags,omitempty"`
	Description *string `json:"description,omitempty"`
	Notes       *string `json:"notes,omitempty"`
	AdminUser   *string `json:"admin_user,omitempty"`
	AdminPass   *string `json:"admin_pass,omitempty"`
}

type DeviceURL struct {
	ID        string    `db:"id" json:"id"`
	DeviceID  string    `db:"device_id" json:"device_id"`
	Label     string    `db:"label" json:"label"`
	URL       string    `db:"url" json:"url"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
