package ingest

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/vmihailenco/msgpack/v5"

	"fleetpilot-backend/internal/models"
	"fleetpilot-backend/internal/observability"
	"fleetpilot-backend/internal/storage"
)

// EventsConsumer turns agent-published events into Alert records.
type EventsConsumer struct {
	js      nats.JetStreamContext
	storage *storage.Storage
	sub     *nats.Subscription
}

func NewEventsConsumer(js nats.JetStreamContext, storage *storage.Storage) *EventsConsumer {
	return &EventsConsumer{js: js, storage: storage}
}

// Start begins consuming events from JetStream.
func (c *EventsConsumer) Start(ctx context.Context) error {
	sub, err := c.js.PullSubscribe(
		"fleet.*.events.>",
		"alert-processor",
		nats.ManualAck(),
		nats.AckWait(30*time.Second),
		nats.MaxDeliver(3),
		nats.MaxAckPending(1000),
	)
	if err != nil {
		return err
	}
	c.sub = sub

	go c.consumeLoop(ctx)
	log.Println("INFO Events consumer started")
	return nil
}

func (c *EventsConsumer) consumeLoop(ctx context.Context) {
	fetchSize := 64
	minFetch := 8
	maxFetch := 512
	fullCount := 0
	emptyCount := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := c.sub.Fetch(fetchSize, nats.MaxWait(5*time.Second))
		if err != nil || len(msgs) == 0 {
			if err != nil && err != nats.ErrTimeout {
				log.Printf("WARN Fetch error: %v", err)
			}
			emptyCount++
			fullCount = 0
			if emptyCount >= 3 && fetchSize > minFetch {
				fetchSize /= 2
				if fetchSize < minFetch {
					fetchSize = minFetch
				}
				emptyCount = 0
			}
			continue
		}

		if len(msgs) == fetchSize {
			fullCount++
			emptyCount = 0
			if fullCount >= 3 && fetchSize < maxFetch {
				fetchSize *= 2
				if fetchSize > maxFetch {
					fetchSize = maxFetch
				}
				fullCount = 0
			}
		} else {
			fullCount = 0
			emptyCount = 0
		}

		for _, msg := range msgs {
			if err := c.processMessage(ctx, msg); err != nil {
				log.Printf("WARN Process error: %v", err)
				msg.NakWithDelay(5 * time.Second)
				continue
			}
			msg.Ack()
		}
	}
}

func (c *EventsConsumer) processMessage(ctx context.Context, msg *nats.Msg) error {
	var event models.AgentEvent
	if err := msgpack.Unmarshal(msg.Data, &event); err != nil {
		log.Printf("ERROR Unmarshal error (terminating): %v", err)
		msg.Term()
		return nil
	}

	log.Printf("INFO Event received: device=%s type=%s severity=%s",
		event.DeviceID, event.Type, event.Severity)

	// Events for devices we no longer track are dropped, not retried.
	if _, err := c.storage.GetDevice(ctx, event.DeviceID); err != nil {
		if err == storage.ErrDeviceNotFound {
			log.Printf("WARN Event for unknown device %s dropped", event.DeviceID)
			return nil
		}
		return err
	}

	severity := event.Severity
	if models.SeverityRank(severity) > 3 {
		severity = models.SeverityMedium
	}

	title := event.Title
	if title == "" {
		title = event.Type
	}

	alert := &models.Alert{
		ID:       uuid.New().String(),
		DeviceID: event.DeviceID,
		Type:     event.Type,
		Severity: severity,
		Title:    title,
		Message:  strings.ReplaceAll(event.Message, "\x00", ""),
		Status:   models.AlertStatusActive,
	}
	if err := c.storage.CreateAlert(ctx, alert); err != nil {
		return err
	}

	observability.AlertsIngested.WithLabelValues(severity).Inc()
	log.Printf("INFO Alert created: id=%s device=%s type=%s severity=%s",
		alert.ID, event.DeviceID, event.Type, severity)

	return nil
}

// Stop gracefully stops the consumer.
func (c *EventsConsumer) Stop() error {
	if c.sub != nil {
		return c.sub.Drain()
	}
	return nil
}
