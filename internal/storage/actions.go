package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"fleetpilot-backend/internal/models"
)

func (s *Storage) CreateAction(ctx context.Context, action *models.Action) error {
	query := `
		INSERT INTO actions (id, device_id, action_type, status, priority, result)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	result := action.ResultJSON
	if result == nil {
		result = []byte("{}")
	}
	return s.db.QueryRowContext(ctx, query,
		action.ID, action.DeviceID, action.ActionType, action.Status, action.Priority, result,
	).Scan(&action.CreatedAt)
}

func (s *Storage) GetAction(ctx context.Context, id string) (*models.Action, error) {
	var action models.Action
	query := `
		SELECT id, device_id, action_type, status, priority, result, created_at, completed_at
		FROM actions
		WHERE id = $1
	`
	err := s.db.GetContext(ctx, &action, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrActionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &action, nil
}

func (s *Storage) MarkActionRunning(ctx context.Context, id string) error {
	query := `UPDATE actions SET status = $1 WHERE id = $2 AND status = $3`
	res, err := s.db.ExecContext(ctx, query, models.ActionStatusRunning, id, models.ActionStatusPending)
	if err != nil {
		return err
	}
	return requireRow(res, ErrActionNotFound)
}

// CompleteAction writes the terminal status and the result payload in a single
// statement so no reader ever sees one without the other.
func (s *Storage) CompleteAction(ctx context.Context, id, status string, result []byte, at time.Time) error {
	if result == nil {
		result = []byte("{}")
	}
	query := `UPDATE actions SET status = $1, result = $2, completed_at = $3 WHERE id = $4`
	res, err := s.db.ExecContext(ctx, query, status, result, at, id)
	if err != nil {
		return err
	}
	return requireRow(res, ErrActionNotFound)
}

// ListRecentActions returns newest-first, left-joined with device and site
// identity. Hostname and site name render as "unknown" for deleted devices.
func (s *Storage) ListRecentActions(ctx context.Context, limit int) ([]models.ActionListItem, error) {
	actions := []models.ActionListItem{}
	query := `
		SELECT a.id, a.device_id, a.action_type, a.status, a.priority, a.result,
		       a.created_at, a.completed_at,
		       COALESCE(d.hostname, 'unknown') AS hostname,
		       COALESCE(s.name, 'unknown') AS site_name
		FROM actions a
		LEFT JOIN devices d ON d.id = a.device_id
		LEFT JOIN sites s ON s.id = d.site_id
		ORDER BY a.created_at DESC
		LIMIT $1
	`
	err := s.db.SelectContext(ctx, &actions, query, limit)
	return actions, err
}

func (s *Storage) ClearActionHistory(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM actions`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// FailInterruptedActions marks every action still running as failed. Called at
// startup; a running action can only be completed by the process that started
// it, so anything found running after a restart is dead.
func (s *Storage) FailInterruptedActions(ctx context.Context, message string, at time.Time) (int64, error) {
	result := (&models.ActionResult{Success: false, Message: message}).Marshal()
	query := `UPDATE actions SET status = $1, result = $2, completed_at = $3 WHERE status = $4`
	res, err := s.db.ExecContext(ctx, query, models.ActionStatusFailed, result, at, models.ActionStatusRunning)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
