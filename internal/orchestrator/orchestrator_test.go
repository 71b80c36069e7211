package orchestrator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetpilot-backend/internal/executor"
	"fleetpilot-backend/internal/models"
	"fleetpilot-backend/internal/storage"
)

type fakeStore struct {
	devices map[string]*models.Device
	actions map[string]*models.Action

	createErr  error
	runningErr error

	interruptedMsg string
	interruptedN   int64
	clearedN       int64
}

func newFakeStore(deviceIDs ...string) *fakeStore {
	s := &fakeStore{
		devices: make(map[string]*models.Device),
		actions: make(map[string]*models.Action),
	}
	for _, id := range deviceIDs {
		s.devices[id] = &models.Device{ID: id, Hostname: "host-" + id, Status: models.DeviceStatusOnline}
	}
	return s
}

func (s *fakeStore) GetDevice(ctx context.Context, id string) (*models.Device, error) {
	if d, ok := s.devices[id]; ok {
		return d, nil
	}
	return nil, storage.ErrDeviceNotFound
}

func (s *fakeStore) CreateAction(ctx context.Context, action *models.Action) error {
	if s.createErr != nil {
		return s.createErr
	}
	cp := *action
	cp.CreatedAt = time.Now().UTC()
	s.actions[action.ID] = &cp
	return nil
}

func (s *fakeStore) MarkActionRunning(ctx context.Context, id string) error {
	if s.runningErr != nil {
		return s.runningErr
	}
	a, ok := s.actions[id]
	if !ok {
		return storage.ErrActionNotFound
	}
	a.Status = models.ActionStatusRunning
	return nil
}

func (s *fakeStore) CompleteAction(ctx context.Context, id, status string, result []byte, at time.Time) error {
	a, ok := s.actions[id]
	if !ok {
		return storage.ErrActionNotFound
	}
	a.Status = status
	a.ResultJSON = result
	a.CompletedAt = &at
	return nil
}

func (s *fakeStore) ListRecentActions(ctx context.Context, limit int) ([]models.ActionListItem, error) {
	out := []models.ActionListItem{}
	for _, a := range s.actions {
		item := models.ActionListItem{Action: *a, Hostname: "unknown", SiteName: "unknown"}
		if d, ok := s.devices[a.DeviceID]; ok {
			item.Hostname = d.Hostname
		}
		out = append(out, item)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) ClearActionHistory(ctx context.Context) (int64, error) {
	n := int64(len(s.actions))
	s.actions = make(map[string]*models.Action)
	s.clearedN = n
	return n, nil
}

func (s *fakeStore) FailInterruptedActions(ctx context.Context, message string, at time.Time) (int64, error) {
	s.interruptedMsg = message
	for _, a := range s.actions {
		if a.Status == models.ActionStatusRunning {
			a.Status = models.ActionStatusFailed
			a.ResultJSON = (&models.ActionResult{Success: false, Message: message}).Marshal()
			s.interruptedN++
		}
	}
	return s.interruptedN, nil
}

type fakeExecutor struct {
	result *executor.Result
	err    error
	delay  time.Duration

	gotDevice string
	gotAction string
	gotArgs   map[string]string
}

func (e *fakeExecutor) Exec(ctx context.Context, deviceID, action string, args map[string]string) (*executor.Result, error) {
	e.gotDevice = deviceID
	e.gotAction = action
	e.gotArgs = args
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

func TestSubmit_Success(t *testing.T) {
	store := newFakeStore("dev-1")
	exec := &fakeExecutor{result: &executor.Result{Success: true, Message: "Service restarted", Output: "spooler: running"}}
	orch := New(store, exec)

	action, err := orch.Submit(context.Background(), "dev-1", "restart_service", map[string]string{"service": "spooler"}, 0)

	require.NoError(t, err)
	assert.Equal(t, models.ActionStatusCompleted, action.Status)
	require.NotNil(t, action.CompletedAt)
	assert.Equal(t, "dev-1", exec.gotDevice)
	assert.Equal(t, "restart_service", exec.gotAction)
	assert.Equal(t, "spooler", exec.gotArgs["service"])

	stored := store.actions[action.ID]
	require.NotNil(t, stored)
	assert.Equal(t, models.ActionStatusCompleted, stored.Status)
	assert.NotEmpty(t, stored.ResultJSON)
}

func TestSubmit_ExecutorFailureIsTerminalFailed(t *testing.T) {
	store := newFakeStore("dev-1")
	exec := &fakeExecutor{result: &executor.Result{Success: false, Message: "service not found"}}
	orch := New(store, exec)

	action, err := orch.Submit(context.Background(), "dev-1", "restart_service", nil, 0)

	require.NoError(t, err)
	assert.Equal(t, models.ActionStatusFailed, action.Status)
	require.NotNil(t, action.CompletedAt)
}

func TestSubmit_UnknownDevice(t *testing.T) {
	store := newFakeStore()
	orch := New(store, &fakeExecutor{})

	action, err := orch.Submit(context.Background(), "nope", "restart_service", nil, 0)

	assert.ErrorIs(t, err, storage.ErrDeviceNotFound)
	assert.Nil(t, action)
	assert.Empty(t, store.actions, "no action row should be created for an unknown device")
}

func TestSubmit_ConfirmationGate(t *testing.T) {
	store := newFakeStore("dev-1")
	orch := New(store, &fakeExecutor{})

	for _, actionType := range []string{"reboot", "shutdown", "registry_edit"} {
		action, err := orch.Submit(context.Background(), "dev-1", actionType, nil, 0)
		assert.ErrorIs(t, err, ErrConfirmationRequired, actionType)
		assert.Nil(t, action)
	}
	assert.Empty(t, store.actions, "gated actions must not be recorded")
}

func TestSubmit_TimeoutBecomesFailedAction(t *testing.T) {
	store := newFakeStore("dev-1")
	exec := &fakeExecutor{delay: 500 * time.Millisecond, result: &executor.Result{Success: true}}
	orch := New(store, exec)

	action, err := orch.Submit(context.Background(), "dev-1", "get_services", nil, 50*time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, models.ActionStatusFailed, action.Status)

	var result models.ActionResult
	require.NoError(t, json.Unmarshal(action.ResultJSON, &result))
	assert.False(t, result.Success)
	assert.Equal(t, "execution timed out", result.Message)
}

func TestSubmit_OfflineDeviceBecomesFailedAction(t *testing.T) {
	store := newFakeStore("dev-1")
	exec := &fakeExecutor{err: executor.ErrDeviceOffline}
	orch := New(store, exec)

	action, err := orch.Submit(context.Background(), "dev-1", "get_services", nil, 0)

	require.NoError(t, err)
	assert.Equal(t, models.ActionStatusFailed, action.Status)

	var result models.ActionResult
	require.NoError(t, json.Unmarshal(action.ResultJSON, &result))
	assert.Equal(t, "device is offline", result.Message)
}

func TestListRecent_DecodesResults(t *testing.T) {
	store := newFakeStore("dev-1")
	orch := New(store, &fakeExecutor{result: &executor.Result{Success: true, Message: "ok"}})

	_, err := orch.Submit(context.Background(), "dev-1", "get_services", nil, 0)
	require.NoError(t, err)

	items, err := orch.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Result)
	assert.True(t, items[0].Result.Success)
	assert.Equal(t, "ok", items[0].Result.Message)
}

func TestListRecent_LimitClamped(t *testing.T) {
	store := newFakeStore()
	orch := New(store, &fakeExecutor{})

	// Negative and oversized limits both fall back to the default.
	_, err := orch.ListRecent(context.Background(), -5)
	require.NoError(t, err)
	_, err = orch.ListRecent(context.Background(), 10_000)
	require.NoError(t, err)
}

func TestSweepInterrupted(t *testing.T) {
	store := newFakeStore("dev-1")
	store.actions["a1"] = &models.Action{ID: "a1", DeviceID: "dev-1", Status: models.ActionStatusRunning}
	store.actions["a2"] = &models.Action{ID: "a2", DeviceID: "dev-1", Status: models.ActionStatusCompleted}

	orch := New(store, &fakeExecutor{})
	orch.SweepInterrupted(context.Background())

	assert.Equal(t, int64(1), store.interruptedN)
	assert.Equal(t, "interrupted by server restart", store.interruptedMsg)
	assert.Equal(t, models.ActionStatusFailed, store.actions["a1"].Status)
	assert.Equal(t, models.ActionStatusCompleted, store.actions["a2"].Status)
}

func TestClearHistory(t *testing.T) {
	store := newFakeStore("dev-1")
	store.actions["a1"] = &models.Action{ID: "a1", Status: models.ActionStatusCompleted}

	orch := New(store, &fakeExecutor{})
	n, err := orch.ClearHistory(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Empty(t, store.actions)
}
