package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fleetpilot-backend/internal/models"
)

// DefaultSiteName is the site newly paired devices land in.
const DefaultSiteName = "Unassigned"

func (s *Storage) CreateSite(ctx context.Context, site *models.Site) error {
	query := `
		INSERT INTO sites (id, name, contact, address, timezone, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		site.ID, site.Name, site.Contact, site.Address, site.Timezone, site.Notes,
	).Scan(&site.CreatedAt, &site.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSiteNameTaken
		}
		return err
	}
	return nil
}

func (s *Storage) GetSite(ctx context.Context, id string) (*models.Site, error) {
	var site models.Site
	query := `
		SELECT id, name, contact, address, timezone, notes, created_at, updated_at
		FROM sites
		WHERE id = $1
	`
	err := s.db.GetContext(ctx, &site, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSiteNotFound
	}
	if err != nil {
		return nil, err
	}
	return &site, nil
}

func (s *Storage) GetSiteByName(ctx context.Context, name string) (*models.Site, error) {
	var site models.Site
	query := `
		SELECT id, name, contact, address, timezone, notes, created_at, updated_at
		FROM sites
		WHERE name = $1
	`
	err := s.db.GetContext(ctx, &site, query, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSiteNotFound
	}
	if err != nil {
		return nil, err
	}
	return &site, nil
}

func (s *Storage) ListSites(ctx context.Context) ([]models.SiteListItem, error) {
	sites := []models.SiteListItem{}
	query := `
		SELECT s.id, s.name, s.contact, s.address, s.timezone, s.notes,
		       s.created_at, s.updated_at,
		       COUNT(d.id) AS device_count
		FROM sites s
		LEFT JOIN devices d ON d.site_id = s.id
		GROUP BY s.id
		ORDER BY LOWER(s.name)
	`
	err := s.db.SelectContext(ctx, &sites, query)
	return sites, err
}

func (s *Storage) UpdateSite(ctx context.Context, site *models.Site) error {
	query := `
		UPDATE sites
		SET name = $1, contact = $2, address = $3, timezone = $4, notes = $5, updated_at = NOW()
		WHERE id = $6
	`
	res, err := s.db.ExecContext(ctx, query,
		site.Name, site.Contact, site.Address, site.Timezone, site.Notes, site.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSiteNameTaken
		}
		return err
	}
	return requireRow(res, ErrSiteNotFound)
}

func (s *Storage) CountSiteDevices(ctx context.Context, siteID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM devices WHERE site_id = $1`, siteID)
	return count, err
}

// DeleteSite removes a site. When devices are attached the caller must pick a
// disposition: cascade deletes them, reassign moves them to reassignTo, and
// anything else blocks with ErrSiteNotEmpty. Runs in one transaction.
func (s *Storage) DeleteSite(ctx context.Context, id, disposition, reassignTo string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var count int
	if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM devices WHERE site_id = $1`, id); err != nil {
		return err
	}

	if count > 0 {
		switch disposition {
		case models.SiteDeleteCascade:
			if _, err := tx.ExecContext(ctx, `DELETE FROM devices WHERE site_id = $1`, id); err != nil {
				return err
			}
		case models.SiteDeleteReassign:
			if reassignTo == "" || reassignTo == id {
				return fmt.Errorf("reassign target required: %w", ErrSiteNotEmpty)
			}
			var exists bool
			if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM sites WHERE id = $1)`, reassignTo); err != nil {
				return err
			}
			if !exists {
				return ErrSiteNotFound
			}
			if _, err := tx.ExecContext(ctx, `UPDATE devices SET site_id = $1, updated_at = NOW() WHERE site_id = $2`, reassignTo, id); err != nil {
				return err
			}
		default:
			return ErrSiteNotEmpty
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM sites WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if err := requireRow(res, ErrSiteNotFound); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Storage) ListSiteURLs(ctx context.Context, siteID string) ([]models.SiteURL, error) {
	urls := []models.SiteURL{}
	query := `SELECT id, site_id, label, url, created_at FROM site_urls WHERE site_id = $1 ORDER BY created_at`
	err := s.db.SelectContext(ctx, &urls, query, siteID)
	return urls, err
}

func (s *Storage) ListAllSiteURLs(ctx context.Context) ([]models.SiteURL, error) {
	urls := []models.SiteURL{}
	query := `SELECT id, site_id, label, url, created_at FROM site_urls ORDER BY created_at`
	err := s.db.SelectContext(ctx, &urls, query)
	return urls, err
}

func (s *Storage) AddSiteURL(ctx context.Context, u *models.SiteURL) error {
	query := `
		INSERT INTO site_urls (id, site_id, label, url)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	return s.db.QueryRowContext(ctx, query, u.ID, u.SiteID, u.Label, u.URL).Scan(&u.CreatedAt)
}

func (s *Storage) DeleteSiteURL(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM site_urls WHERE id = $1`, id)
	return err
}

// UpsertSite inserts a site keeping its id, updating fields when the id
// already exists. Used by site import.
func (s *Storage) UpsertSite(ctx context.Context, site *models.Site) error {
	query := `
		INSERT INTO sites (id, name, contact, address, timezone, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id)
		DO UPDATE SET name = EXCLUDED.name, contact = EXCLUDED.contact,
		              address = EXCLUDED.address, timezone = EXCLUDED.timezone,
		              notes = EXCLUDED.notes, updated_at = NOW()
	`
	_, err := s.db.ExecContext(ctx, query,
		site.ID, site.Name, site.Contact, site.Address, site.Timezone, site.Notes,
	)
	if isUniqueViolation(err) {
		return ErrSiteNameTaken
	}
	return err
}
