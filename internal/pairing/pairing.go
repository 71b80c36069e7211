// Package pairing issues short-lived one-time registration codes and redeems
// them into Device records. The live code table is process-local; the
// check-then-mark sequence is serialized by a mutex so a code can never
// redeem twice, concurrency included.
package pairing

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"fleetpilot-backend/internal/models"
	"fleetpilot-backend/internal/observability"
	"fleetpilot-backend/internal/storage"
)

var (
	ErrCodeInvalid = errors.New("pairing code invalid")
	ErrCodeExpired = errors.New("pairing code expired")
	ErrCodeUsed    = errors.New("pairing code already used")

	ErrNoCredentialer = errors.New("credential issuing is not configured")
)

// Alphabet excludes 0/O, 1/I and other confusable glyphs. 32 characters, so
// random bytes map in without modulo bias.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	CodeLength = 6
	CodeTTL    = 10 * time.Minute
)

type Store interface {
	CreateDevice(ctx context.Context, device *models.Device) error
	GetSiteByName(ctx context.Context, name string) (*models.Site, error)
	CreateSite(ctx context.Context, site *models.Site) error
	RecordRedeemedCode(ctx context.Context, code *models.PairingCode) error
}

// Credentialer mints the session token and NATS credentials handed to a
// freshly paired device. May be nil when the deployment has no agent bus.
type Credentialer interface {
	DeviceCredentials(deviceID string) (token, natsCreds string, expiresAt time.Time, err error)
}

type entry struct {
	createdAt time.Time
	expiresAt time.Time
	used      bool
}

type Service struct {
	store Store
	creds Credentialer

	mu    sync.Mutex
	codes map[string]*entry

	now func() time.Time
}

func NewService(store Store, creds Credentialer) *Service {
	return &Service{
		store: store,
		creds: creds,
		codes: make(map[string]*entry),
		now:   time.Now,
	}
}

// CreateCode generates a new code valid for CodeTTL. Collisions with a live
// code are re-rolled; colliding with a dead entry just replaces it.
func (s *Service) CreateCode() (string, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for attempt := 0; attempt < 10; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", time.Time{}, err
		}
		if e, ok := s.codes[code]; ok && !e.used && now.Before(e.expiresAt) {
			continue
		}
		expiresAt := now.Add(CodeTTL)
		s.codes[code] = &entry{createdAt: now, expiresAt: expiresAt}
		return code, expiresAt, nil
	}

	return "", time.Time{}, errors.New("could not generate a unique pairing code")
}

// Redeem validates the code, reserves it, and creates the device. At most one
// concurrent attempt per code can pass the reservation; the rest see
// ErrCodeUsed. If device creation fails the reservation is released so the
// caller can retry with corrected attributes.
func (s *Service) Redeem(ctx context.Context, input models.RegisterDeviceInput) (*models.RegisterDeviceResult, error) {
	code, err := s.reserve(input.PairingCode)
	if err != nil {
		observability.PairingRedemptions.WithLabelValues(outcomeLabel(err)).Inc()
		return nil, err
	}

	result, err := s.register(ctx, input)
	if err != nil {
		s.release(input.PairingCode)
		observability.PairingRedemptions.WithLabelValues(outcomeLabel(err)).Inc()
		return nil, err
	}

	now := s.now().UTC()
	audit := &models.PairingCode{
		Code:      input.PairingCode,
		ExpiresAt: code.expiresAt,
		Used:      true,
		CreatedAt: code.createdAt,
		UsedAt:    &now,
		DeviceID:  &result.DeviceID,
	}
	if err := s.store.RecordRedeemedCode(ctx, audit); err != nil {
		// Audit row is best effort; the redemption already happened.
		log.Printf("WARN Pairing audit write failed for %s: %v", input.PairingCode, err)
	}

	observability.PairingRedemptions.WithLabelValues("success").Inc()
	return result, nil
}

// Credentials re-issues the session token and NATS credentials for an
// already-paired device, without consuming a code.
func (s *Service) Credentials(deviceID string) (token, natsCreds string, expiresAt time.Time, err error) {
	if s.creds == nil {
		return "", "", time.Time{}, ErrNoCredentialer
	}
	return s.creds.DeviceCredentials(deviceID)
}

func (s *Service) reserve(code string) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.codes[code]
	if !ok {
		return nil, ErrCodeInvalid
	}
	if !s.now().Before(e.expiresAt) {
		return nil, ErrCodeExpired
	}
	if e.used {
		return nil, ErrCodeUsed
	}
	e.used = true
	return e, nil
}

func (s *Service) release(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.codes[code]; ok {
		e.used = false
	}
}

func (s *Service) register(ctx context.Context, input models.RegisterDeviceInput) (*models.RegisterDeviceResult, error) {
	site, err := s.defaultSite(ctx)
	if err != nil {
		return nil, fmt.Errorf("default site: %w", err)
	}

	deviceType := input.DeviceType
	if deviceType == "" {
		deviceType = models.DeviceTypeOther
	}

	now := s.now().UTC()
	device := &models.Device{
		ID:         uuid.New().String(),
		Hostname:   input.Hostname,
		IPAddress:  input.IPAddress,
		SiteID:     site.ID,
		DeviceType: deviceType,
		Status:     models.DeviceStatusOnline,
		LastSeenAt: &now,
		Tags:       tagsFor(input),
	}
	if err := s.store.CreateDevice(ctx, device); err != nil {
		return nil, err
	}

	result := &models.RegisterDeviceResult{
		DeviceID: device.ID,
		SiteID:   site.ID,
	}

	if s.creds != nil {
		token, natsCreds, expiresAt, err := s.creds.DeviceCredentials(device.ID)
		if err != nil {
			// The device exists either way; credentials can be re-issued.
			log.Printf("WARN Credential issue failed for device %s: %v", device.ID, err)
		} else {
			result.Token = token
			result.NATSCreds = natsCreds
			result.ExpiresAt = expiresAt.Format(time.RFC3339)
		}
	}

	return result, nil
}

func (s *Service) defaultSite(ctx context.Context) (*models.Site, error) {
	site, err := s.store.GetSiteByName(ctx, storage.DefaultSiteName)
	if err == nil {
		return site, nil
	}
	if !errors.Is(err, storage.ErrSiteNotFound) {
		return nil, err
	}

	site = &models.Site{
		ID:    uuid.New().String(),
		Name:  storage.DefaultSiteName,
		Notes: "Auto-created for self-registered devices",
	}
	if err := s.store.CreateSite(ctx, site); err != nil {
		if errors.Is(err, storage.ErrSiteNameTaken) {
			return s.store.GetSiteByName(ctx, storage.DefaultSiteName)
		}
		return nil, err
	}
	return site, nil
}

// Outstanding lists live codes with their remaining TTL, soonest-expiring
// first.
func (s *Service) Outstanding() []models.PairingCodeStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := []models.PairingCodeStatus{}
	for code, e := range s.codes {
		if e.used || !now.Before(e.expiresAt) {
			continue
		}
		out = append(out, models.PairingCodeStatus{
			Code:             code,
			ExpiresAt:        e.expiresAt,
			RemainingSeconds: int(e.expiresAt.Sub(now) / time.Second),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out
}

// Sweep drops used and expired entries from the table. Redemption-time checks
// stay authoritative; this only bounds memory.
func (s *Service) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for code, e := range s.codes {
		if e.used || !now.Before(e.expiresAt) {
			delete(s.codes, code)
			removed++
		}
	}
	return removed
}

func randomCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	code := make([]byte, CodeLength)
	for i, b := range buf {
		code[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(code), nil
}

func tagsFor(input models.RegisterDeviceInput) string {
	tags := ""
	if input.OS != "" {
		tags = input.OS
	}
	if input.Arch != "" {
		if tags != "" {
			tags += ","
		}
		tags += input.Arch
	}
	return tags
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, ErrCodeInvalid):
		return "invalid"
	case errors.Is(err, ErrCodeExpired):
		return "expired"
	case errors.Is(err, ErrCodeUsed):
		return "used"
	case errors.Is(err, storage.ErrHostnameTaken):
		return "hostname_taken"
	default:
		return "error"
	}
}
