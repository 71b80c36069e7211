package workers

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"fleetpilot-backend/internal/cache"
	"fleetpilot-backend/internal/storage"
)

// StartHeartbeatReconciler periodically marks devices offline when their
// last_seen key is gone. Fallback for deployments without Redis keyspace
// notifications.
func StartHeartbeatReconciler(ctx context.Context, cacheClient cache.Client, store *storage.Storage) {
	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				reconcileOnce(ctx, cacheClient, store)
			}
		}
	}()
	log.Println("INFO Heartbeat reconciler started")
}

func reconcileOnce(ctx context.Context, cacheClient cache.Client, store *storage.Storage) {
	deviceIDs, err := store.ListDeviceIDs(ctx)
	if err != nil {
		log.Printf("WARN Heartbeat reconciler list devices error: %v", err)
		return
	}

	staleAt := time.Now().Add(-2 * time.Minute)
	for _, deviceID := range deviceIDs {
		_, err := cacheClient.GetLastSeen(deviceID)
		if err == redis.Nil {
			if err := store.MarkDeviceOffline(ctx, deviceID, staleAt); err != nil {
				log.Printf("WARN Heartbeat reconciler mark offline error for %s: %v", deviceID, err)
			}
			continue
		}
		if err != nil {
			log.Printf("WARN Heartbeat reconciler cache error for %s: %v", deviceID, err)
		}
	}
}
