package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"fleetpilot-backend/internal/models"
)

func (s *Storage) CreateAlert(ctx context.Context, alert *models.Alert) error {
	query := `
		INSERT INTO alerts (id, device_id, type, severity, title, message, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	return s.db.QueryRowContext(ctx, query,
		alert.ID, alert.DeviceID, alert.Type, alert.Severity,
		alert.Title, alert.Message, alert.Status,
	).Scan(&alert.CreatedAt)
}

func (s *Storage) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	var alert models.Alert
	query := `
		SELECT id, device_id, type, severity, title, message, status, created_at,
		       acknowledged_at, acknowledged_by, resolved_at, resolved_by
		FROM alerts
		WHERE id = $1
	`
	err := s.db.GetContext(ctx, &alert, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// ListActiveAlerts returns unresolved alerts, most severe first, newest first
// within a severity.
func (s *Storage) ListActiveAlerts(ctx context.Context) ([]models.AlertListItem, error) {
	alerts := []models.AlertListItem{}
	query := `
		SELECT a.id, a.device_id, a.type, a.severity, a.title, a.message, a.status,
		       a.created_at, a.acknowledged_at, a.acknowledged_by, a.resolved_at, a.resolved_by,
		       COALESCE(d.hostname, 'unknown') AS hostname
		FROM alerts a
		LEFT JOIN devices d ON d.id = a.device_id
		WHERE a.status != 'resolved'
		ORDER BY
			CASE a.severity
				WHEN 'critical' THEN 0
				WHEN 'high' THEN 1
				WHEN 'medium' THEN 2
				WHEN 'low' THEN 3
				ELSE 4
			END,
			a.created_at DESC
	`
	err := s.db.SelectContext(ctx, &alerts, query)
	return alerts, err
}

// AcknowledgeAlert records the acknowledgment. Resolved alerts are immutable.
func (s *Storage) AcknowledgeAlert(ctx context.Context, id, actor string, at time.Time) error {
	query := `
		UPDATE alerts
		SET status = $1, acknowledged_at = $2, acknowledged_by = $3
		WHERE id = $4 AND status = $5
	`
	res, err := s.db.ExecContext(ctx, query,
		models.AlertStatusAcknowledged, at, actor, id, models.AlertStatusActive,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return s.alertWriteMiss(ctx, id)
	}
	return nil
}

// ResolveAlert closes the alert from either active or acknowledged state.
func (s *Storage) ResolveAlert(ctx context.Context, id, actor string, at time.Time) error {
	query := `
		UPDATE alerts
		SET status = $1, resolved_at = $2, resolved_by = $3
		WHERE id = $4 AND status != $1
	`
	res, err := s.db.ExecContext(ctx, query, models.AlertStatusResolved, at, actor, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return s.alertWriteMiss(ctx, id)
	}
	return nil
}

// alertWriteMiss distinguishes a missing alert from an already-resolved one
// after a guarded UPDATE touched no rows. An alert already in the target state
// is not an error; repeated acknowledgments are idempotent.
func (s *Storage) alertWriteMiss(ctx context.Context, id string) error {
	alert, err := s.GetAlert(ctx, id)
	if err != nil {
		return err
	}
	if alert.Status == models.AlertStatusResolved {
		return ErrAlertResolved
	}
	return nil
}
