package storage

import (
	"context"
	"time"

	"fleetpilot-backend/internal/models"
)

// RecordRedeemedCode writes the audit row for a successfully redeemed pairing
// code. The live check-then-mark happens in the pairing service's in-memory
// table; this is history only.
func (s *Storage) RecordRedeemedCode(ctx context.Context, code *models.PairingCode) error {
	query := `
		INSERT INTO pairing_codes (code, expires_at, used, created_at, used_at, device_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (code)
		DO UPDATE SET used = EXCLUDED.used, used_at = EXCLUDED.used_at, device_id = EXCLUDED.device_id
	`
	_, err := s.db.ExecContext(ctx, query,
		code.Code, code.ExpiresAt, code.Used, code.CreatedAt, code.UsedAt, code.DeviceID,
	)
	return err
}

func (s *Storage) ListRedeemedCodes(ctx context.Context, since time.Time) ([]models.PairingCode, error) {
	codes := []models.PairingCode{}
	query := `
		SELECT code, expires_at, used, created_at, used_at, device_id
		FROM pairing_codes
		WHERE used_at >= $1
		ORDER BY used_at DESC
	`
	err := s.db.SelectContext(ctx, &codes, query, since)
	return codes, err
}
