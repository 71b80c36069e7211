package workers

import (
	"context"
	"log"
	"time"

	"fleetpilot-backend/internal/pairing"
)

// StartPairingSweeper periodically prunes used and expired pairing codes.
// Redemption-time checks stay authoritative; this only keeps the table small.
func StartPairingSweeper(ctx context.Context, svc *pairing.Service) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := svc.Sweep(); removed > 0 {
					log.Printf("INFO Pairing sweeper removed %d dead code(s)", removed)
				}
			}
		}
	}()
	log.Println("INFO Pairing sweeper started")
}
