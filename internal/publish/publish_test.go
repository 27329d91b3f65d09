package publish_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/models"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/monitor"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/publish"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func testSnapshot(view string, state models.ThreatState, label models.EventLabel) *monitor.Snapshot {
	return &monitor.Snapshot{
		View:        view,
		NodeID:      "A-101",
		Seq:         3,
		GeneratedAt: now,
		SampleCount: 1,
		Assessment: models.Assessment{
			State:        state,
			Label:        label,
			LabelDisplay: label.Display(),
			ThreatLevel:  2,
		},
		Series:       []models.SeriesPoint{{Timestamp: now, TimeLabel: "10:30", Baseline: 20}},
		Distribution: models.Distribution{models.CategoryNormal: 100},
	}
}

func TestSnapshotCache_WritesJSONWithTTL(t *testing.T) {
	kv := newFakeKVStore()
	cache := publish.NewSnapshotCache(kv, func(view string) time.Duration { return 45 * time.Second }, zap.NewNop())

	err := cache.PublishSnapshot(context.Background(), testSnapshot("floorplan", models.ThreatAlert, models.LabelThermalAnomaly))
	require.NoError(t, err)

	item, ok := kv.data["codeblue:view:floorplan:snapshot"]
	require.True(t, ok)
	assert.Equal(t, 45*time.Second, item.ttl)

	got, err := cache.GetSnapshot(context.Background(), "floorplan")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), got.Seq)
	assert.Equal(t, models.ThreatAlert, got.Assessment.State)
	assert.Equal(t, 100, got.Distribution[models.CategoryNormal])
	require.Len(t, got.Series, 1)
	assert.Equal(t, "10:30", got.Series[0].TimeLabel)

	views, err := cache.CachedViews(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"floorplan"}, views)
}

func TestSnapshotCache_Miss(t *testing.T) {
	cache := publish.NewSnapshotCache(newFakeKVStore(), nil, zap.NewNop())

	_, err := cache.GetSnapshot(context.Background(), "analysis")
	assert.True(t, errors.Is(err, store.ErrCacheMiss))
}

func TestAlertStreamPublisher(t *testing.T) {
	w := &fakeStreamWriter{}
	p := publish.NewAlertStreamPublisher(w, "codeblue:alerts", zap.NewNop())

	ev := &models.AlertEvent{EventID: "ev-1", NodeID: "A-101", State: models.ThreatEmergency}
	require.NoError(t, p.HandleAlert(context.Background(), ev))
	assert.Equal(t, "codeblue:alerts", w.stream)
	require.Len(t, w.data, 1)
	assert.Same(t, ev, w.data[0])

	w.err = errors.New("redis down")
	assert.Error(t, p.HandleAlert(context.Background(), ev))
}

func TestMQTTStatusPublisher_PublishesOnChangeOnly(t *testing.T) {
	client := &fakeMQTT{}
	p := publish.NewMQTTStatusPublisher(client, "codeblue/nodes/", "floorplan", 1, zap.NewNop())

	ctx := context.Background()
	require.NoError(t, p.PublishSnapshot(ctx, testSnapshot("analysis", models.ThreatAlert, models.LabelThermalAnomaly)))
	assert.Empty(t, client.messages)

	require.NoError(t, p.PublishSnapshot(ctx, testSnapshot("floorplan", models.ThreatAlert, models.LabelThermalAnomaly)))
	require.NoError(t, p.PublishSnapshot(ctx, testSnapshot("floorplan", models.ThreatAlert, models.LabelThermalAnomaly)))
	require.Len(t, client.messages, 1)

	msg := client.messages[0]
	assert.Equal(t, "codeblue/nodes/A-101/status", msg.topic)
	assert.True(t, msg.retained)
	assert.Equal(t, byte(1), msg.qos)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.payload, &decoded))
	assert.Equal(t, "A-101", decoded["id"])
	assert.Equal(t, "alert", decoded["status"])
	assert.Equal(t, "Thermal Anomaly (Fire)", decoded["event"])
	assert.Equal(t, "ThermalAnomaly", decoded["label"])

	require.NoError(t, p.PublishSnapshot(ctx, testSnapshot("floorplan", models.ThreatInactive, models.LabelHardwareOffline)))
	assert.Len(t, client.messages, 2)
}

func TestMQTTStatusPublisher_RetriesAfterFailure(t *testing.T) {
	client := &fakeMQTT{fail: true}
	p := publish.NewMQTTStatusPublisher(client, "codeblue/nodes", "floorplan", 0, zap.NewNop())
	snap := testSnapshot("floorplan", models.ThreatWatch, models.LabelAllClear)

	assert.Error(t, p.PublishSnapshot(context.Background(), snap))

	client.fail = false
	require.NoError(t, p.PublishSnapshot(context.Background(), snap))
	assert.Len(t, client.messages, 1)
}
