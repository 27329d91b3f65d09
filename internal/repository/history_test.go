package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockHistoryDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *HistoryRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewHistoryRepository(db, zap.NewNop())
	return db, mock, repo
}

func TestEnsureSchema(t *testing.T) {
	db, mock, repo := setupMockHistoryDB(t)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS telemetry_samples`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSamples_UpsertsAndCountsInserted(t *testing.T) {
	db, mock, repo := setupMockHistoryDB(t)
	defer db.Close()

	createdAt := time.Date(2026, 3, 14, 10, 29, 44, 0, time.UTC)
	samples := []models.SensorSample{
		{EntryID: 41, CreatedAt: createdAt, Field1: "1", Field2: "24.5", Field6: "0"},
		{EntryID: 42, CreatedAt: createdAt, Field1: "0", Field2: "36.1", Field6: "2", Field8: "4"},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`INSERT INTO telemetry_samples`)
	prep.ExpectExec().
		WithArgs(int64(41), "A-101", createdAt, 1.0, 24.5, 0.0, 0.0, 0.0, 0, 0.0, 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs(int64(42), "A-101", createdAt, 0.0, 36.1, 0.0, 0.0, 0.0, 2, 0.0, 4, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	n, err := repo.RecordSamples(context.Background(), "A-101", samples)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSamples_RollsBackOnError(t *testing.T) {
	db, mock, repo := setupMockHistoryDB(t)
	defer db.Close()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`INSERT INTO telemetry_samples`)
	prep.ExpectExec().WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.RecordSamples(context.Background(), "A-101", []models.SensorSample{{EntryID: 1}})
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSamples_Empty(t *testing.T) {
	db, mock, repo := setupMockHistoryDB(t)
	defer db.Close()

	n, err := repo.RecordSamples(context.Background(), "A-101", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertAlertEvent(t *testing.T) {
	db, mock, repo := setupMockHistoryDB(t)
	defer db.Close()

	entryID := int64(42)
	ev := &models.AlertEvent{
		EventID:        uuid.New().String(),
		NodeID:         "A-101",
		View:           "floorplan",
		State:          models.ThreatAlert,
		PreviousState:  models.ThreatHealthy,
		Label:          models.LabelThermalAnomaly,
		LabelDisplay:   "Thermal Anomaly (Fire)",
		ThreatLevel:    2,
		EmergencyClass: 4,
		SampleEntryID:  &entryID,
		TriggeredAt:    time.Now(),
	}

	mock.ExpectExec(`INSERT INTO alert_events`).
		WithArgs(ev.EventID, "A-101", "floorplan", "alert", "healthy",
			"ThermalAnomaly", "Thermal Anomaly (Fire)", 2, 4,
			sqlmock.AnyArg(), sqlmock.AnyArg(), "{}").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.HandleAlert(context.Background(), ev))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertAlertEvent_RequiresID(t *testing.T) {
	db, _, repo := setupMockHistoryDB(t)
	defer db.Close()

	err := repo.InsertAlertEvent(context.Background(), &models.AlertEvent{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "event_id")
}

func TestListAlertEvents(t *testing.T) {
	db, mock, repo := setupMockHistoryDB(t)
	defer db.Close()

	eventID := uuid.New().String()
	triggeredAt := time.Now()
	rows := sqlmock.NewRows([]string{
		"event_id", "node_id", "view", "state", "previous_state",
		"label", "label_display", "threat_level", "emergency_class",
		"sample_entry_id", "triggered_at", "trigger_data",
	}).
		AddRow(eventID, "A-101", "floorplan", "emergency", "watch",
			"ProbableFall", "Probable Fall", 3, 1, int64(42), triggeredAt, []byte(`{"source":"ThingSpeak"}`)).
		AddRow(uuid.New().String(), "A-101", "floorplan", "inactive", "healthy",
			"HardwareOffline", "Hardware Offline", 0, 0, nil, triggeredAt, []byte(`{}`))

	mock.ExpectQuery(`SELECT`).
		WithArgs("A-101", 50).
		WillReturnRows(rows)

	events, err := repo.ListAlertEvents(context.Background(), "A-101", 0)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, eventID, events[0].EventID)
	assert.Equal(t, models.ThreatEmergency, events[0].State)
	assert.Equal(t, models.LabelProbableFall, events[0].Label)
	require.NotNil(t, events[0].SampleEntryID)
	assert.Equal(t, int64(42), *events[0].SampleEntryID)
	assert.Nil(t, events[1].SampleEntryID)
	require.NoError(t, mock.ExpectationsWereMet())
}
