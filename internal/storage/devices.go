package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"fleetpilot-backend/internal/models"
)

func (s *Storage) CreateDevice(ctx context.Context, device *models.Device) error {
	query := `
		INSERT INTO devices (
			id, hostname, ip_address, site_id, device_type, status, last_seen_at,
			tags, description, notes, admin_user, admin_secret
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		device.ID,
		device.Hostname,
		device.IPAddress,
		device.SiteID,
		device.DeviceType,
		device.Status,
		device.LastSeenAt,
		device.Tags,
		device.Description,
		device.Notes,
		device.AdminUser,
		device.AdminSecret,
	).Scan(&device.CreatedAt, &device.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrHostnameTaken
		}
		return err
	}

	return nil
}

func (s *Storage) GetDevice(ctx context.Context, id string) (*models.Device, error) {
	var device models.Device
	query := `
		SELECT id, hostname, ip_address, site_id, device_type, status, last_seen_at,
		       tags, description, notes, admin_user, admin_secret, created_at, updated_at
		FROM devices
		WHERE id = $1
	`
	err := s.db.GetContext(ctx, &device, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// GetDeviceByHostname matches case-insensitively; hostnames are unique that way.
func (s *Storage) GetDeviceByHostname(ctx context.Context, hostname string) (*models.Device, error) {
	var device models.Device
	query := `
		SELECT id, hostname, ip_address, site_id, device_type, status, last_seen_at,
		       tags, description, notes, admin_user, admin_secret, created_at, updated_at
		FROM devices
		WHERE LOWER(hostname) = LOWER($1)
	`
	err := s.db.GetContext(ctx, &device, query, hostname)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &device, nil
}

func (s *Storage) ListDevices(ctx context.Context) ([]models.DeviceListItem, error) {
	devices := []models.DeviceListItem{}
	query := `
		SELECT d.id, d.hostname, d.ip_address, d.site_id, d.device_type, d.status,
		       d.last_seen_at, d.tags, d.description, d.notes, d.admin_user,
		       d.admin_secret, d.created_at, d.updated_at,
		       COALESCE(s.name, '') AS site_name
		FROM devices d
		LEFT JOIN sites s ON s.id = d.site_id
		ORDER BY LOWER(d.hostname)
	`
	err := s.db.SelectContext(ctx, &devices, query)
	return devices, err
}

func (s *Storage) ListDeviceIDs(ctx context.Context) ([]string, error) {
	ids := []string{}
	err := s.db.SelectContext(ctx, &ids, `SELECT id FROM devices`)
	return ids, err
}

func (s *Storage) UpdateDevice(ctx context.Context, device *models.Device) error {
	query := `
		UPDATE devices
		SET hostname = $1, ip_address = $2, site_id = $3, device_type = $4,
		    tags = $5, description = $6, notes = $7, admin_user = $8,
		    admin_secret = $9, updated_at = NOW()
		WHERE id = $10
	`
	res, err := s.db.ExecContext(ctx, query,
		device.Hostname,
		device.IPAddress,
		device.SiteID,
		device.DeviceType,
		device.Tags,
		device.Description,
		device.Notes,
		device.AdminUser,
		device.AdminSecret,
		device.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrHostnameTaken
		}
		return err
	}
	return requireRow(res, ErrDeviceNotFound)
}

func (s *Storage) DeleteDevice(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res, ErrDeviceNotFound)
}

func (s *Storage) UpdateDeviceStatus(ctx context.Context, id, status string, lastSeen time.Time) error {
	query := `UPDATE devices SET status = $1, last_seen_at = $2, updated_at = NOW() WHERE id = $3`
	_, err := s.db.ExecContext(ctx, query, status, lastSeen, id)
	return err
}

func (s *Storage) MarkDeviceOffline(ctx context.Context, id string, lastSeen time.Time) error {
	query := `UPDATE devices SET status = $1, last_seen_at = $2, updated_at = NOW() WHERE id = $3`
	_, err := s.db.ExecContext(ctx, query, models.DeviceStatusOffline, lastSeen, id)
	return err
}

func (s *Storage) ListDeviceURLs(ctx context.Context, deviceID string) ([]models.DeviceURL, error) {
	urls := []models.DeviceURL{}
	query := `SELECT id, device_id, label, url, created_at FROM device_urls WHERE device_id = $1 ORDER BY created_at`
	err := s.db.SelectContext(ctx, &urls, query, deviceID)
	return urls, err
}

func (s *Storage) AddDeviceURL(ctx context.Context, u *models.DeviceURL) error {
	query := `
		INSERT INTO device_urls (id, device_id, label, url)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	return s.db.QueryRowContext(ctx, query, u.ID, u.DeviceID, u.Label, u.URL).Scan(&u.CreatedAt)
}

func (s *Storage) DeleteDeviceURL(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM device_urls WHERE id = $1`, id)
	return err
}

func requireRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}
