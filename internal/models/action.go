package models

import (
	"encoding/json"
	"time"
)

// Action lifecycle states. Completed and failed are terminal.
const (
	ActionStatusPending   = "pending"
	ActionStatusRunning   = "running"
	ActionStatusCompleted = "completed"
	ActionStatusFailed    = "failed"
)

type Action struct {
	ID          string     `db:"id" json:"id"`
	DeviceID    string     `db:"device_id" json:"device_id"`
	ActionType  string     `db:"action_type" json:"action_type"`
	Status      string     `db:"status" json:"status"`
	Priority    int        `db:"priority" json:"priority"`
	ResultJSON  []byte     `db:"result" json:"-"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// ActionResult is the common envelope stored for every execution. Detail
// carries action-type-specific fields the executor returned.
type ActionResult struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Output  string                 `json:"output,omitempty"`
	Detail  map[string]interface{} `json:"detail,omitempty"`
}

func (r *ActionResult) Marshal() []byte {
	data, err := json.Marshal(r)
	if err != nil {
		return []byte("{}")
	}
	return data
}

// ActionListItem is an action row left-joined with device and site identity.
// Hostname and SiteName read "unknown" when the device has since been deleted.
type ActionListItem struct {
	Action
	Hostname string        `db:"hostname" json:"hostname"`
	SiteName string        `db:"site_name" json:"site_name"`
	Result   *ActionResult `db:"-" json:"result,omitempty"`
}

type ExecuteActionInput struct {
	DeviceID   string            `json:"deviceId"`
	ActionType string            `json:"actionType"`
	Params     map[string]string `json:"params,omitempty"`
	TimeoutMS  int               `json:"timeout_ms,omitempty"`
}
