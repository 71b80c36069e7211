// Package orchestrator drives the action lifecycle: validate the target
// device, record the action, run it through the remote executor, and persist
// the terminal state with its result.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"fleetpilot-backend/internal/executor"
	"fleetpilot-backend/internal/models"
	"fleetpilot-backend/internal/observability"
)

var ErrConfirmationRequired = errors.New("action requires manual confirmation")

// DefaultTimeout bounds executor calls when the caller supplies none.
const DefaultTimeout = 30 * time.Second

// Action types that must never run unattended through the API. They stay
// rejectable here even if a dashboard adds a confirm dialog; the confirmation
// belongs at the boundary, not in this package.
var confirmationRequired = map[string]bool{
	"reboot":        true,
	"shutdown":      true,
	"registry_edit": true,
}

type Store interface {
	GetDevice(ctx context.Context, id string) (*models.Device, error)
	CreateAction(ctx context.Context, action *models.Action) error
	MarkActionRunning(ctx context.Context, id string) error
	CompleteAction(ctx context.Context, id, status string, result []byte, at time.Time) error
	ListRecentActions(ctx context.Context, limit int) ([]models.ActionListItem, error)
	ClearActionHistory(ctx context.Context) (int64, error)
	FailInterruptedActions(ctx context.Context, message string, at time.Time) (int64, error)
}

type Orchestrator struct {
	store Store
	exec  executor.RemoteExecutor
}

func New(store Store, exec executor.RemoteExecutor) *Orchestrator {
	return &Orchestrator{store: store, exec: exec}
}

// Submit validates, records, and synchronously executes one action. The
// returned action is always in a terminal state; the error is non-nil only
// for failures before execution started (unknown device, gated action type,
// storage trouble). Executor failures come back as a failed action, not an
// error.
func (o *Orchestrator) Submit(ctx context.Context, deviceID, actionType string, args map[string]string, timeout time.Duration) (*models.Action, error) {
	if _, err := o.store.GetDevice(ctx, deviceID); err != nil {
		return nil, err
	}

	if confirmationRequired[actionType] {
		return nil, fmt.Errorf("%q: %w", actionType, ErrConfirmationRequired)
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	action := &models.Action{
		ID:         uuid.New().String(),
		DeviceID:   deviceID,
		ActionType: actionType,
		Status:     models.ActionStatusPending,
	}
	if err := o.store.CreateAction(ctx, action); err != nil {
		return nil, fmt.Errorf("create action: %w", err)
	}

	if err := o.store.MarkActionRunning(ctx, action.ID); err != nil {
		return nil, fmt.Errorf("mark running: %w", err)
	}
	action.Status = models.ActionStatusRunning

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := o.runOne(execCtx, deviceID, actionType, args)

	status := models.ActionStatusFailed
	if result.Success {
		status = models.ActionStatusCompleted
	}

	now := time.Now().UTC()
	if err := o.store.CompleteAction(ctx, action.ID, status, result.Marshal(), now); err != nil {
		return nil, fmt.Errorf("record result: %w", err)
	}

	action.Status = status
	action.ResultJSON = result.Marshal()
	action.CompletedAt = &now
	observability.ActionsExecuted.WithLabelValues(actionType, status).Inc()

	return action, nil
}

func (o *Orchestrator) runOne(ctx context.Context, deviceID, actionType string, args map[string]string) *models.ActionResult {
	res, err := o.exec.Exec(ctx, deviceID, actionType, args)
	if err != nil {
		switch {
		case errors.Is(err, executor.ErrTimeout) || errors.Is(err, context.DeadlineExceeded):
			return &models.ActionResult{Success: false, Message: "execution timed out"}
		case errors.Is(err, executor.ErrDeviceOffline):
			return &models.ActionResult{Success: false, Message: "device is offline"}
		default:
			return &models.ActionResult{Success: false, Message: err.Error()}
		}
	}

	return &models.ActionResult{
		Success: res.Success,
		Message: res.Message,
		Output:  res.Output,
		Detail:  res.Detail,
	}
}

// ListRecent decodes each stored result payload alongside the joined device
// and site fields. Rows whose device is gone keep nil hostname/site.
func (o *Orchestrator) ListRecent(ctx context.Context, limit int) ([]models.ActionListItem, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	items, err := o.store.ListRecentActions(ctx, limit)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Result = decodeResult(items[i].ResultJSON)
	}
	return items, nil
}

func (o *Orchestrator) ClearHistory(ctx context.Context) (int64, error) {
	return o.store.ClearActionHistory(ctx)
}

// SweepInterrupted fails every action left running by a previous process.
func (o *Orchestrator) SweepInterrupted(ctx context.Context) {
	n, err := o.store.FailInterruptedActions(ctx, "interrupted by server restart", time.Now().UTC())
	if err != nil {
		log.Printf("WARN Failed to sweep interrupted actions: %v", err)
		return
	}
	if n > 0 {
		log.Printf("INFO Marked %d interrupted action(s) as failed", n)
	}
}

func decodeResult(data []byte) *models.ActionResult {
	if len(data) == 0 {
		return nil
	}
	var result models.ActionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return &result
}
