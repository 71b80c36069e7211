package models

import "time"

type Site struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Contact   string    `db:"contact" json:"contact"`
	Address   string    `db:"address" json:"address"`
	Timezone  string    `db:"timezone" json:"timezone"`
	Notes     string    `db:"notes" json:"notes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SiteListItem is a site row with its attached device count.
type SiteListItem struct {
	Site
	DeviceCount int `db:"device_count" json:"device_count"`
}

type SiteURL struct {
	ID        string    `db:"id" json:"id"`
	SiteID    string    `db:"site_id" json:"site_id"`
	Label     string    `db:"label" json:"label"`
	URL       string    `db:"url" json:"url"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Dispositions for deleting a site that still has devices attached.
const (
	SiteDeleteBlock    = "block"
	SiteDeleteCascade  = "cascade"
	SiteDeleteReassign = "reassign"
)

type CreateSiteInput struct {
	Name     string `json:"name"`
	Contact  string `json:"contact"`
	Address  string `json:"address"`
	Timezone string `json:"timezone"`
	Notes    string `json:"notes"`
}

type UpdateSiteInput struct {
	ID       string  `json:"siteId"`
	Name     *string `json:"name,omitempty"`
	Contact  *string `json:"contact,omitempty"`
	Address  *string `json:"address,omitempty"`
	Timezone *string `json:"timezone,omitempty"`
	Notes    *string `json:"notes,omitempty"`
}

type DeleteSiteInput struct {
	ID          string `json:"siteId"`
	Disposition string `json:"disposition"`
	ReassignTo  string `json:"reassignTo,omitempty"`
}

// SiteExport is the payload written by /api/sites/export and read back by import.
type SiteExport struct {
	ExportedAt time.Time `json:"exported_at"`
	Sites      []Site    `json:"sites"`
	SiteURLs   []SiteURL `json:"site_urls"`
}
