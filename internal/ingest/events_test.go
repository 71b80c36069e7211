package ingest

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"fleetpilot-backend/internal/models"
	"fleetpilot-backend/internal/storage"
)

func setupConsumer(t *testing.T) (sqlmock.Sqlmock, *EventsConsumer) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return mock, NewEventsConsumer(nil, storage.NewStorage(sqlx.NewDb(db, "postgres")))
}

func eventMsg(t *testing.T, event models.AgentEvent) *nats.Msg {
	t.Helper()
	data, err := msgpack.Marshal(event)
	require.NoError(t, err)
	return &nats.Msg{Subject: "fleet." + event.DeviceID + ".events." + event.Type, Data: data}
}

func deviceRow(id string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "hostname", "ip_address", "site_id", "device_type", "status",
		"last_seen_at", "tags", "description", "notes", "admin_user", "admin_secret",
		"created_at", "updated_at",
	}).AddRow(
		id, "WKS01", "10.0.0.5", uuid.New().String(), "workstation", "online",
		nil, "", "", "", "", nil, time.Now(), time.Now(),
	)
}

func TestProcessMessage_CreatesAlert(t *testing.T) {
	mock, consumer := setupConsumer(t)

	deviceID := uuid.New().String()
	mock.ExpectQuery(`SELECT`).WithArgs(deviceID).WillReturnRows(deviceRow(deviceID))
	mock.ExpectQuery(`INSERT INTO alerts`).
		WithArgs(sqlmock.AnyArg(), deviceID, "disk_space", "high", "Disk almost full", "C: at 92%", models.AlertStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	msg := eventMsg(t, models.AgentEvent{
		V: 1, TS: time.Now().UnixMilli(), DeviceID: deviceID,
		Type: "disk_space", Severity: "high",
		Title: "Disk almost full", Message: "C: at 92%",
	})
	require.NoError(t, consumer.processMessage(context.Background(), msg))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessMessage_UnknownDeviceDropped(t *testing.T) {
	mock, consumer := setupConsumer(t)

	deviceID := uuid.New().String()
	mock.ExpectQuery(`SELECT`).WithArgs(deviceID).WillReturnError(sql.ErrNoRows)

	msg := eventMsg(t, models.AgentEvent{V: 1, DeviceID: deviceID, Type: "cpu", Severity: "high"})
	require.NoError(t, consumer.processMessage(context.Background(), msg), "unknown devices drop the event, no retry")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessMessage_UnknownSeverityFallsBackToMedium(t *testing.T) {
	mock, consumer := setupConsumer(t)

	deviceID := uuid.New().String()
	mock.ExpectQuery(`SELECT`).WithArgs(deviceID).WillReturnRows(deviceRow(deviceID))
	mock.ExpectQuery(`INSERT INTO alerts`).
		WithArgs(sqlmock.AnyArg(), deviceID, "cpu", models.SeverityMedium, "cpu", "", models.AlertStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	// Bogus severity and empty title: severity falls back, title takes the type.
	msg := eventMsg(t, models.AgentEvent{V: 1, DeviceID: deviceID, Type: "cpu", Severity: "catastrophic"})
	require.NoError(t, consumer.processMessage(context.Background(), msg))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessMessage_MalformedPayloadTerminated(t *testing.T) {
	mock, consumer := setupConsumer(t)

	msg := &nats.Msg{Subject: "fleet.x.events.cpu", Data: []byte{0xc1}} // invalid msgpack
	assert.NoError(t, consumer.processMessage(context.Background(), msg))
	require.NoError(t, mock.ExpectationsWereMet())
}
