package agentauth

import (
	"time"

	"fleetpilot-backend/internal/auth"
)

// Credentialer bundles the device session token with per-device NATS creds.
// It satisfies the pairing service's Credentialer interface.
type Credentialer struct {
	issuer *JWTIssuer
}

func NewCredentialer(issuer *JWTIssuer) *Credentialer {
	return &Credentialer{issuer: issuer}
}

func (c *Credentialer) DeviceCredentials(deviceID string) (token, natsCreds string, expiresAt time.Time, err error) {
	token, expiresAt, err = auth.GenerateDeviceToken(deviceID)
	if err != nil {
		return "", "", time.Time{}, err
	}

	if c.issuer == nil {
		return token, "", expiresAt, nil
	}

	seed, publicKey, err := GenerateUserKeyPair()
	if err != nil {
		return "", "", time.Time{}, err
	}

	natsJWT, _, err := c.issuer.IssueDeviceJWT(deviceID, publicKey, auth.DeviceTokenTTL)
	if err != nil {
		return "", "", time.Time{}, err
	}

	return token, BuildCredsFile(natsJWT, seed), expiresAt, nil
}
