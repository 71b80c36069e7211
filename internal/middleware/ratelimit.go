package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"fleetpilot-backend/internal/cache"
)

const (
	pairingCreateLimit  = 10
	pairingCreateWindow = time.Minute
	registerIPLimit     = 10
	registerIPWindow    = time.Minute
	registerPrefixLimit = 20
	registerPrefixLen   = 2

	registerBodyLimit = 4096
)

// RateLimitPairingCreate bounds code minting per client IP.
func RateLimitPairingCreate(cacheClient cache.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			key := "rl:pairing:create:" + ip
			count, err := cacheClient.IncrWithTTL(key, pairingCreateWindow)
			if err == nil && count > pairingCreateLimit {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitRegister bounds redemption attempts per client IP and per code
// prefix so codes cannot be brute-forced inside their ten-minute window, even
// from a pool of source addresses.
func RateLimitRegister(cacheClient cache.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			count, err := cacheClient.IncrWithTTL("rl:pairing:register:"+ip, registerIPWindow)
			if err == nil && count > registerIPLimit {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			if prefix := codePrefix(r); prefix != "" {
				count, err = cacheClient.IncrWithTTL("rl:pairing:register:prefix:"+prefix, registerIPWindow)
				if err == nil && count > registerPrefixLimit {
					http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// codePrefix peeks the pairing code out of the request body and returns its
// leading characters. The body is restored for the handler.
func codePrefix(r *http.Request) string {
	body, err := io.ReadAll(io.LimitReader(r.Body, registerBodyLimit))
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	var payload struct {
		Code string `json:"pairingCode"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return ""
	}
	code := strings.ToUpper(strings.TrimSpace(payload.Code))
	if len(code) < registerPrefixLen {
		return ""
	}
	return code[:registerPrefixLen]
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
