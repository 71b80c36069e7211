package pairing

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetpilot-backend/internal/models"
	"fleetpilot-backend/internal/storage"
)

type fakeStore struct {
	mu       sync.Mutex
	devices  []*models.Device
	sites    map[string]*models.Site
	redeemed []*models.PairingCode

	createDeviceErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{sites: make(map[string]*models.Site)}
}

func (s *fakeStore) CreateDevice(ctx context.Context, device *models.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createDeviceErr != nil {
		return s.createDeviceErr
	}
	for _, d := range s.devices {
		if strings.EqualFold(d.Hostname, device.Hostname) {
			return storage.ErrHostnameTaken
		}
	}
	s.devices = append(s.devices, device)
	return nil
}

func (s *fakeStore) GetSiteByName(ctx context.Context, name string) (*models.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if site, ok := s.sites[name]; ok {
		return site, nil
	}
	return nil, storage.ErrSiteNotFound
}

func (s *fakeStore) CreateSite(ctx context.Context, site *models.Site) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sites[site.Name]; ok {
		return storage.ErrSiteNameTaken
	}
	s.sites[site.Name] = site
	return nil
}

func (s *fakeStore) RecordRedeemedCode(ctx context.Context, code *models.PairingCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redeemed = append(s.redeemed, code)
	return nil
}

type fakeCreds struct{}

func (fakeCreds) DeviceCredentials(deviceID string) (string, string, time.Time, error) {
	return "token-" + deviceID, "creds-" + deviceID, time.Now().Add(time.Hour), nil
}

func newTestService(store Store) (*Service, *time.Time) {
	svc := NewService(store, fakeCreds{})
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	return svc, &clock
}

func TestCreateCode_Format(t *testing.T) {
	svc, _ := newTestService(newFakeStore())

	code, expiresAt, err := svc.CreateCode()
	require.NoError(t, err)

	assert.Len(t, code, CodeLength)
	for _, ch := range code {
		assert.Contains(t, codeAlphabet, string(ch), "code must stick to the unambiguous alphabet")
	}
	assert.Equal(t, svc.now().Add(CodeTTL), expiresAt)
}

func TestRedeem_Success(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)

	code, _, err := svc.CreateCode()
	require.NoError(t, err)

	result, err := svc.Redeem(context.Background(), models.RegisterDeviceInput{
		PairingCode: code,
		Hostname:    "WKS01",
		IPAddress:   "10.0.0.5",
		OS:          "windows",
		Arch:        "amd64",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.DeviceID)
	assert.Equal(t, "token-"+result.DeviceID, result.Token)
	assert.Equal(t, "creds-"+result.DeviceID, result.NATSCreds)

	require.Len(t, store.devices, 1)
	device := store.devices[0]
	assert.Equal(t, "WKS01", device.Hostname)
	assert.Equal(t, models.DeviceStatusOnline, device.Status)
	assert.Equal(t, "windows,amd64", device.Tags)
	assert.Equal(t, result.SiteID, device.SiteID)

	// The default site is created on first use.
	site, err := store.GetSiteByName(context.Background(), storage.DefaultSiteName)
	require.NoError(t, err)
	assert.Equal(t, site.ID, result.SiteID)

	// Audit trail row recorded.
	require.Len(t, store.redeemed, 1)
	assert.Equal(t, code, store.redeemed[0].Code)
	assert.True(t, store.redeemed[0].Used)
	require.NotNil(t, store.redeemed[0].DeviceID)
	assert.Equal(t, result.DeviceID, *store.redeemed[0].DeviceID)
}

func TestRedeem_InvalidCode(t *testing.T) {
	svc, _ := newTestService(newFakeStore())

	_, err := svc.Redeem(context.Background(), models.RegisterDeviceInput{PairingCode: "NOSUCH", Hostname: "WKS01"})
	assert.ErrorIs(t, err, ErrCodeInvalid)
}

func TestRedeem_ExpiredCode(t *testing.T) {
	svc, clock := newTestService(newFakeStore())

	code, _, err := svc.CreateCode()
	require.NoError(t, err)

	*clock = clock.Add(CodeTTL + time.Second)

	_, err = svc.Redeem(context.Background(), models.RegisterDeviceInput{PairingCode: code, Hostname: "WKS01"})
	assert.ErrorIs(t, err, ErrCodeExpired)
}

func TestRedeem_UsedCode(t *testing.T) {
	svc, _ := newTestService(newFakeStore())

	code, _, err := svc.CreateCode()
	require.NoError(t, err)

	_, err = svc.Redeem(context.Background(), models.RegisterDeviceInput{PairingCode: code, Hostname: "WKS01"})
	require.NoError(t, err)

	_, err = svc.Redeem(context.Background(), models.RegisterDeviceInput{PairingCode: code, Hostname: "WKS02"})
	assert.ErrorIs(t, err, ErrCodeUsed)
}

func TestRedeem_ExpiredTakesPrecedenceOverUsed(t *testing.T) {
	svc, clock := newTestService(newFakeStore())

	code, _, err := svc.CreateCode()
	require.NoError(t, err)

	_, err = svc.Redeem(context.Background(), models.RegisterDeviceInput{PairingCode: code, Hostname: "WKS01"})
	require.NoError(t, err)

	*clock = clock.Add(CodeTTL + time.Minute)

	_, err = svc.Redeem(context.Background(), models.RegisterDeviceInput{PairingCode: code, Hostname: "WKS02"})
	assert.ErrorIs(t, err, ErrCodeExpired)
}

func TestRedeem_ConcurrentAtMostOneSuccess(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)

	code, _, err := svc.CreateCode()
	require.NoError(t, err)

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Redeem(context.Background(), models.RegisterDeviceInput{
				PairingCode: code,
				Hostname:    "WKS01", // identical inputs, as a retrying agent would send
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrCodeUsed)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, store.devices, 1)
}

func TestRedeem_RegistrationFailureReleasesCode(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)

	code, _, err := svc.CreateCode()
	require.NoError(t, err)

	// First attempt collides on hostname; the code must survive for a retry.
	require.NoError(t, store.CreateDevice(context.Background(), &models.Device{ID: "existing", Hostname: "WKS01"}))

	_, err = svc.Redeem(context.Background(), models.RegisterDeviceInput{PairingCode: code, Hostname: "WKS01"})
	assert.ErrorIs(t, err, storage.ErrHostnameTaken)

	result, err := svc.Redeem(context.Background(), models.RegisterDeviceInput{PairingCode: code, Hostname: "WKS02"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.DeviceID)
}

func TestOutstanding_SortedByExpiry(t *testing.T) {
	svc, clock := newTestService(newFakeStore())

	first, _, err := svc.CreateCode()
	require.NoError(t, err)

	*clock = clock.Add(2 * time.Minute)
	second, _, err := svc.CreateCode()
	require.NoError(t, err)

	out := svc.Outstanding()
	require.Len(t, out, 2)
	assert.Equal(t, first, out[0].Code)
	assert.Equal(t, second, out[1].Code)
	assert.Equal(t, int((CodeTTL-2*time.Minute)/time.Second), out[0].RemainingSeconds)
}

func TestSweep_DropsDeadEntries(t *testing.T) {
	svc, clock := newTestService(newFakeStore())

	expired, _, err := svc.CreateCode()
	require.NoError(t, err)
	_ = expired

	*clock = clock.Add(CodeTTL + time.Second)
	live, _, err := svc.CreateCode()
	require.NoError(t, err)

	removed := svc.Sweep()
	assert.Equal(t, 1, removed)

	out := svc.Outstanding()
	require.Len(t, out, 1)
	assert.Equal(t, live, out[0].Code)
}

func TestCredentials_ReissuesWithoutCode(t *testing.T) {
	svc, _ := newTestService(newFakeStore())

	token, natsCreds, expiresAt, err := svc.Credentials("dev-1")
	require.NoError(t, err)
	assert.Equal(t, "token-dev-1", token)
	assert.Equal(t, "creds-dev-1", natsCreds)
	assert.False(t, expiresAt.IsZero())
}

func TestCredentials_NoCredentialer(t *testing.T) {
	svc := NewService(newFakeStore(), nil)

	_, _, _, err := svc.Credentials("dev-1")
	assert.ErrorIs(t, err, ErrNoCredentialer)
}
