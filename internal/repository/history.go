package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/models"
	"go.uber.org/zap"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS telemetry_samples (
	entry_id        BIGINT PRIMARY KEY,
	node_id         VARCHAR(64) NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL,
	pir_duty        DOUBLE PRECISION NOT NULL DEFAULT 0,
	temperature     DOUBLE PRECISION NOT NULL DEFAULT 0,
	humidity        DOUBLE PRECISION NOT NULL DEFAULT 0,
	distance        DOUBLE PRECISION NOT NULL DEFAULT 0,
	anomaly_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
	threat_level    INTEGER NOT NULL DEFAULT 0,
	motion_energy   DOUBLE PRECISION NOT NULL DEFAULT 0,
	emergency_class INTEGER NOT NULL DEFAULT 0,
	raw             JSONB NOT NULL,
	recorded_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_telemetry_samples_node_created ON telemetry_samples (node_id, created_at DESC);

CREATE TABLE IF NOT EXISTS alert_events (
	event_id        UUID PRIMARY KEY,
	node_id         VARCHAR(64) NOT NULL,
	view            VARCHAR(32) NOT NULL,
	state           VARCHAR(16) NOT NULL,
	previous_state  VARCHAR(16) NOT NULL,
	label           VARCHAR(32) NOT NULL,
	label_display   VARCHAR(64) NOT NULL,
	threat_level    INTEGER NOT NULL,
	emergency_class INTEGER NOT NULL,
	sample_entry_id BIGINT,
	triggered_at    TIMESTAMPTZ NOT NULL,
	trigger_data    JSONB NOT NULL DEFAULT '{}'::jsonb
);
CREATE INDEX IF NOT EXISTS idx_alert_events_node_triggered ON alert_events (node_id, triggered_at DESC);
`

// HistoryRepository 样本历史与报警事件
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository 创建历史仓库
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema 建表（幂等）
func (r *HistoryRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// RecordSamples 批量写入样本，entry_id 已存在的跳过，返回实际插入条数
func (r *HistoryRepository) RecordSamples(ctx context.Context, nodeID string, samples []models.SensorSample) (int64, error) {
	if len(samples) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO telemetry_samples (
			entry_id, node_id, created_at,
			pir_duty, temperature, humidity, distance,
			anomaly_score, threat_level, motion_energy, emergency_class, raw
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (entry_id) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, s := range samples {
		raw, err := json.Marshal(s)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal sample %d: %w", s.EntryID, err)
		}
		res, err := stmt.ExecContext(ctx,
			s.EntryID, nodeID, s.CreatedAt,
			s.PIRDuty(), s.Temperature(), s.Humidity(), s.Distance(),
			s.AnomalyScore(), s.ThreatLevel(), s.MotionEnergy(), s.EmergencyClass(), string(raw),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert sample %d: %w", s.EntryID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += n
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit samples: %w", err)
	}
	return inserted, nil
}

// InsertAlertEvent 写入报警事件
func (r *HistoryRepository) InsertAlertEvent(ctx context.Context, ev *models.AlertEvent) error {
	if ev.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	triggerData := ev.TriggerData
	if triggerData == "" {
		triggerData = "{}"
	}

	var sampleEntryID sql.NullInt64
	if ev.SampleEntryID != nil {
		sampleEntryID = sql.NullInt64{Int64: *ev.SampleEntryID, Valid: true}
	}

	query := `
		INSERT INTO alert_events (
			event_id, node_id, view, state, previous_state,
			label, label_display, threat_level, emergency_class,
			sample_entry_id, triggered_at, trigger_data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		ev.EventID, ev.NodeID, ev.View, string(ev.State), string(ev.PreviousState),
		string(ev.Label), ev.LabelDisplay, ev.ThreatLevel, ev.EmergencyClass,
		sampleEntryID, ev.TriggeredAt, triggerData,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert event: %w", err)
	}

	r.logger.Debug("Inserted alert event",
		zap.String("event_id", ev.EventID),
		zap.String("node_id", ev.NodeID),
	)
	return nil
}

// HandleAlert 报警事件入库
func (r *HistoryRepository) HandleAlert(ctx context.Context, ev *models.AlertEvent) error {
	return r.InsertAlertEvent(ctx, ev)
}

// ListAlertEvents 最近的报警事件（按触发时间倒序），nodeID 为空时不过滤
func (r *HistoryRepository) ListAlertEvents(ctx context.Context, nodeID string, limit int) ([]models.AlertEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := `
		SELECT
			event_id, node_id, view, state, previous_state,
			label, label_display, threat_level, emergency_class,
			sample_entry_id, triggered_at, trigger_data
		FROM alert_events
		WHERE ($1 = '' OR node_id = $1)
		ORDER BY triggered_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, nodeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert events: %w", err)
	}
	defer rows.Close()

	events := []models.AlertEvent{}
	for rows.Next() {
		var ev models.AlertEvent
		var state, prevState, label string
		var sampleEntryID sql.NullInt64
		var triggerData []byte
		if err := rows.Scan(
			&ev.EventID, &ev.NodeID, &ev.View, &state, &prevState,
			&label, &ev.LabelDisplay, &ev.ThreatLevel, &ev.EmergencyClass,
			&sampleEntryID, &ev.TriggeredAt, &triggerData,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert event: %w", err)
		}
		ev.State = models.ThreatState(state)
		ev.PreviousState = models.ThreatState(prevState)
		ev.Label = models.EventLabel(label)
		if sampleEntryID.Valid {
			id := sampleEntryID.Int64
			ev.SampleEntryID = &id
		}
		ev.TriggerData = string(triggerData)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alert events: %w", err)
	}
	return events, nil
}
