// Package agentauth mints NATS user credentials for paired devices. Each
// device gets a user JWT scoped to its own subjects only.
package agentauth

import (
	"fmt"
	"time"

	"github.com/nats-io/jwt/v2"
	"github.com/nats-io/nkeys"
)

type JWTIssuer struct {
	signingKey   nkeys.KeyPair
	accountPubID string
}

func NewJWTIssuer(signingKeySeed, accountPubKey string) (*JWTIssuer, error) {
	kp, err := nkeys.FromSeed([]byte(signingKeySeed))
	if err != nil {
		return nil, fmt.Errorf("invalid NATS signing key seed: %w", err)
	}

	if accountPubKey == "" {
		return nil, fmt.Errorf("missing NATS devices account public key")
	}

	return &JWTIssuer{
		signingKey:   kp,
		accountPubID: accountPubKey,
	}, nil
}

func GenerateUserKeyPair() (seed string, publicKey string, err error) {
	kp, err := nkeys.CreateUser()
	if err != nil {
		return "", "", err
	}

	seedBytes, err := kp.Seed()
	if err != nil {
		return "", "", err
	}

	publicKey, err = kp.PublicKey()
	if err != nil {
		return "", "", err
	}

	return string(seedBytes), publicKey, nil
}

func (ji *JWTIssuer) IssueDeviceJWT(deviceID, publicKey string, expiresIn time.Duration) (string, time.Time, error) {
	if !nkeys.IsValidPublicUserKey(publicKey) {
		return "", time.Time{}, fmt.Errorf("invalid device public key")
	}

	now := time.Now().UTC()
	expiresAt := now.Add(expiresIn)

	claims := jwt.NewUserClaims(publicKey)
	claims.IssuedAt = now.Unix()
	claims.Expires = expiresAt.Unix()
	claims.IssuerAccount = ji.accountPubID

	// Publish events and heartbeats for this device only.
	claims.Permissions.Pub.Allow.Add("fleet." + deviceID + ".events.>")
	claims.Permissions.Pub.Allow.Add("$KV.DEVICES." + deviceID)
	// KV stream info lookup (required by nats.go KeyValue binding).
	claims.Permissions.Pub.Allow.Add("$JS.API.STREAM.INFO.KV_DEVICES")
	// Serve the device's own RPC subject and nothing else.
	claims.Permissions.Sub.Allow.Add("fleet." + deviceID + ".rpc")
	claims.Permissions.Sub.Allow.Add("fleet." + deviceID + ".>")
	// Inbox for request-reply.
	claims.Permissions.Sub.Allow.Add("_INBOX.>")
	claims.Permissions.Pub.Allow.Add("fleet." + deviceID + ".>")

	encoded, err := claims.Encode(ji.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("encode jwt: %w", err)
	}

	return encoded, expiresAt, nil
}

// BuildCredsFile formats JWT and NKey seed into NATS .creds file format.
func BuildCredsFile(jwtToken, nkeySeed string) string {
	return `-----BEGIN NATS USER JWT-----
` + jwtToken + `
-----END NATS USER JWT-----

-----BEGIN USER NKEY SEED-----
` + nkeySeed + `
-----END USER NKEY SEED-----
`
}
