package middleware

import (
	"context"
	"net/http"
	"strings"

	"fleetpilot-backend/internal/auth"
)

type contextKey string

const deviceIDKey contextKey = "fleetpilot_device_id"

// RequireDeviceAuth gates agent-facing endpoints on the session token minted
// at pairing. The authenticated device id lands in the request context.
func RequireDeviceAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		claims, err := auth.ParseDeviceToken(token)
		if err != nil || claims.Subject == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), deviceIDKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// DeviceID returns the device id RequireDeviceAuth stored, or "" outside an
// authenticated request.
func DeviceID(ctx context.Context) string {
	id, _ := ctx.Value(deviceIDKey).(string)
	return id
}
