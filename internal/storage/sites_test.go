package storage

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetpilot-backend/internal/models"
)

func TestDeleteSite_Empty(t *testing.T) {
	db, mock, store := setupMockStorage(t)
	defer db.Close()

	id := uuid.New().String()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT`).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`DELETE FROM sites`).WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.DeleteSite(context.Background(), id, "", ""))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteSite_BlockedWhenNotEmpty(t *testing.T) {
	db, mock, store := setupMockStorage(t)
	defer db.Close()

	id := uuid.New().String()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT`).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectRollback()

	err := store.DeleteSite(context.Background(), id, "", "")
	assert.ErrorIs(t, err, ErrSiteNotEmpty)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteSite_Cascade(t *testing.T) {
	db, mock, store := setupMockStorage(t)
	defer db.Close()

	id := uuid.New().String()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT`).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectExec(`DELETE FROM devices`).WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM sites`).WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.DeleteSite(context.Background(), id, models.SiteDeleteCascade, ""))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteSite_Reassign(t *testing.T) {
	db, mock, store := setupMockStorage(t)
	defer db.Close()

	id := uuid.New().String()
	target := uuid.New().String()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT`).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs(target).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(`UPDATE devices`).WithArgs(target, id).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM sites`).WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.DeleteSite(context.Background(), id, models.SiteDeleteReassign, target))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteSite_ReassignToMissingSite(t *testing.T) {
	db, mock, store := setupMockStorage(t)
	defer db.Close()

	id := uuid.New().String()
	target := uuid.New().String()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT`).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs(target).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	err := store.DeleteSite(context.Background(), id, models.SiteDeleteReassign, target)
	assert.ErrorIs(t, err, ErrSiteNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteSite_ReassignToSelf(t *testing.T) {
	db, mock, store := setupMockStorage(t)
	defer db.Close()

	id := uuid.New().String()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT`).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err := store.DeleteSite(context.Background(), id, models.SiteDeleteReassign, id)
	assert.ErrorIs(t, err, ErrSiteNotEmpty)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSite_DuplicateName(t *testing.T) {
	db, mock, store := setupMockStorage(t)
	defer db.Close()

	site := &models.Site{ID: uuid.New().String(), Name: "Main Office"}

	mock.ExpectQuery(`INSERT INTO sites`).
		WithArgs(site.ID, site.Name, site.Contact, site.Address, site.Timezone, site.Notes).
		WillReturnError(&pq.Error{Code: "23505"})

	err := store.CreateSite(context.Background(), site)
	assert.ErrorIs(t, err, ErrSiteNameTaken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSite_Missing(t *testing.T) {
	db, mock, store := setupMockStorage(t)
	defer db.Close()

	site := &models.Site{ID: uuid.New().String(), Name: "Main Office"}

	mock.ExpectExec(`UPDATE sites`).
		WithArgs(site.Name, site.Contact, site.Address, site.Timezone, site.Notes, site.ID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateSite(context.Background(), site)
	assert.ErrorIs(t, err, ErrSiteNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
