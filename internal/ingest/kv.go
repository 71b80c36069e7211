package ingest

import (
	"context"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/vmihailenco/msgpack/v5"

	"fleetpilot-backend/internal/cache"
	"fleetpilot-backend/internal/models"
	"fleetpilot-backend/internal/storage"
)

// lastSeenTTL mirrors the KV bucket TTL plus slack for delivery delay. When
// the Redis key expires without a fresh heartbeat the keyevent worker flips
// the device offline.
const lastSeenTTL = 90

// KVWatcher mirrors DEVICES bucket heartbeats into the store and the cache.
type KVWatcher struct {
	kv      nats.KeyValue
	storage *storage.Storage
	cache   cache.Client
	watcher nats.KeyWatcher
}

func NewKVWatcher(kv nats.KeyValue, storage *storage.Storage, cacheClient cache.Client) *KVWatcher {
	return &KVWatcher{kv: kv, storage: storage, cache: cacheClient}
}

// Start begins watching the DEVICES KV bucket.
func (w *KVWatcher) Start(ctx context.Context) error {
	watcher, err := w.kv.WatchAll()
	if err != nil {
		return err
	}
	w.watcher = watcher

	go w.watchLoop(ctx)

	log.Println("INFO KV watcher started")
	return nil
}

func (w *KVWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case entry := <-w.watcher.Updates():
			if entry == nil {
				continue
			}
			w.handleEntry(ctx, entry)
		}
	}
}

func (w *KVWatcher) handleEntry(ctx context.Context, entry nats.KeyValueEntry) {
	deviceID := entry.Key()

	switch entry.Operation() {
	case nats.KeyValuePut:
		var hb models.Heartbeat
		if err := msgpack.Unmarshal(entry.Value(), &hb); err != nil {
			log.Printf("ERROR KV unmarshal error for %s: %v", deviceID, err)
			return
		}

		now := time.Now()
		status := hb.Status
		if status == "" {
			status = models.DeviceStatusOnline
		}

		if err := w.storage.UpdateDeviceStatus(ctx, deviceID, status, now); err != nil {
			log.Printf("ERROR KV heartbeat update error for %s: %v", deviceID, err)
			return
		}
		if err := w.cache.SetLastSeen(deviceID, now.UnixMilli(), lastSeenTTL); err != nil {
			log.Printf("WARN Cache last_seen write failed for %s: %v", deviceID, err)
		}
		if err := w.cache.SetStatus(deviceID, status); err != nil {
			log.Printf("WARN Cache status write failed for %s: %v", deviceID, err)
		}

		log.Printf("INFO Device heartbeat: %s (%s) status=%s", deviceID, hb.Hostname, status)

	case nats.KeyValueDelete:
		if err := w.storage.MarkDeviceOffline(ctx, deviceID, time.Now()); err != nil {
			log.Printf("ERROR KV offline update error for %s: %v", deviceID, err)
			return
		}
		log.Printf("INFO Device offline (graceful): %s", deviceID)

	case nats.KeyValuePurge:
		log.Printf("INFO Device heartbeat entry purged: %s", deviceID)
	}
}

// Stop gracefully stops the watcher.
func (w *KVWatcher) Stop() error {
	if w.watcher != nil {
		return w.watcher.Stop()
	}
	return nil
}
