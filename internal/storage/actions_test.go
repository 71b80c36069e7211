package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func actionListColumns() []string {
	return []string{
		"id", "device_id", "action_type", "status", "priority", "result",
		"created_at", "completed_at", "hostname", "site_name",
	}
}

func TestListRecentActions_CoalescesDeletedDeviceIdentity(t *testing.T) {
	db, mock, store := setupMockStorage(t)
	defer db.Close()

	liveID := uuid.New().String()
	goneID := uuid.New().String()
	now := time.Now()
	mock.ExpectQuery(`COALESCE\(d\.hostname, 'unknown'\)`).WithArgs(50).
		WillReturnRows(sqlmock.NewRows(actionListColumns()).
			AddRow("a1", liveID, "ping", "completed", 5, []byte(`{"success":true}`), now, now, "WKS01", "HQ").
			AddRow("a2", goneID, "reboot", "failed", 5, []byte(`{}`), now, now, "unknown", "unknown"))

	items, err := store.ListRecentActions(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "WKS01", items[0].Hostname)
	assert.Equal(t, "HQ", items[0].SiteName)
	assert.Equal(t, "unknown", items[1].Hostname)
	assert.Equal(t, "unknown", items[1].SiteName)
	require.NoError(t, mock.ExpectationsWereMet())
}
