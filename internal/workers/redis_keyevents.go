package workers

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"fleetpilot-backend/internal/cache"
	"fleetpilot-backend/internal/models"
	"fleetpilot-backend/internal/storage"
)

const lastSeenPrefix = "fleet:device:last_seen:"

// StartRedisKeyeventWorker subscribes to Redis key expiration events.
// Returns true when subscription is active.
func StartRedisKeyeventWorker(ctx context.Context, cacheClient cache.Client, store *storage.Storage) bool {
	pubsub, err := cacheClient.SubscribeExpired()
	if err != nil {
		log.Printf("WARN Redis keyevent subscribe failed: %v", err)
		return false
	}

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok || msg == nil {
					return
				}
				handleExpired(ctx, cacheClient, store, msg)
			}
		}
	}()

	log.Println("INFO Redis keyevent worker started")
	return true
}

func handleExpired(ctx context.Context, cacheClient cache.Client, store *storage.Storage, msg *redis.Message) {
	key := msg.Payload
	if !strings.HasPrefix(key, lastSeenPrefix) {
		return
	}
	deviceID := strings.TrimPrefix(key, lastSeenPrefix)

	lastSeenMs, err := cacheClient.GetLastSeen(deviceID)
	if err != nil {
		lastSeenMs = time.Now().Add(-2 * time.Minute).UnixMilli()
	}

	lastSeenAt := time.UnixMilli(lastSeenMs)
	if err := store.MarkDeviceOffline(ctx, deviceID, lastSeenAt); err != nil {
		log.Printf("WARN MarkDeviceOffline failed for %s: %v", deviceID, err)
		return
	}

	if err := cacheClient.SetStatus(deviceID, models.DeviceStatusOffline); err != nil {
		log.Printf("WARN SetStatus offline failed for %s: %v", deviceID, err)
	}
}
