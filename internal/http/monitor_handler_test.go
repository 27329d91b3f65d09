package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/metrics"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/models"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/monitor"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/scheduler"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/store"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	snaps map[string]monitor.Snapshot
}

func (f *fakeSource) ViewNames() []string {
	names := make([]string, 0, len(f.snaps))
	for name := range f.snaps {
		names = append(names, name)
	}
	return names
}

func (f *fakeSource) Snapshot(name string) (monitor.Snapshot, bool) {
	s, ok := f.snaps[name]
	return s, ok
}

func (f *fakeSource) Snapshots() []monitor.Snapshot {
	out := make([]monitor.Snapshot, 0, len(f.snaps))
	for _, s := range f.snaps {
		out = append(out, s)
	}
	return out
}

func (f *fakeSource) PollerStats() map[string]scheduler.Stats {
	return map[string]scheduler.Stats{"floorplan": {Ticks: 3, Delivered: 3}}
}

type fakeHistory struct {
	events   []models.AlertEvent
	err      error
	gotNode  string
	gotLimit int
}

func (f *fakeHistory) ListAlertEvents(ctx context.Context, nodeID string, limit int) ([]models.AlertEvent, error) {
	f.gotNode = nodeID
	f.gotLimit = limit
	return f.events, f.err
}

func floorplanSnapshot() monitor.Snapshot {
	at := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	return monitor.Snapshot{
		View:        "floorplan",
		NodeID:      "A-101",
		Seq:         4,
		GeneratedAt: at,
		SampleCount: 2,
		Liveness:    telemetry.LivenessVerdict{Live: true},
		Assessment: models.Assessment{
			State:        models.ThreatWatch,
			Label:        models.LabelAllClear,
			LabelDisplay: "All Clear",
			ThreatLevel:  1,
		},
		Series: []models.SeriesPoint{
			{Timestamp: at, TimeLabel: "10:30:00", Baseline: 1.5, Deviation: 0.25, Energy: 12},
		},
		Distribution: models.Distribution{models.CategoryNormal: 100},
		Window: models.SampleWindow{
			{EntryID: 1, Field1: "10"},
			{EntryID: 2, Field1: "20"},
		},
	}
}

func setupRouter(history AlertHistory) *Router {
	src := &fakeSource{snaps: map[string]monitor.Snapshot{"floorplan": floorplanSnapshot()}}
	r := NewRouter(metrics.NewMetrics(), zap.NewNop())
	r.RegisterMonitorRoutes(NewMonitorHandler(src, history, "floorplan", zap.NewNop()))
	r.RegisterMetrics()
	return r
}

func doGet(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := doGet(t, setupRouter(nil), "/api/v1/system/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"code":2000`)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestNodes(t *testing.T) {
	w := doGet(t, setupRouter(nil), "/api/v1/nodes")
	require.Equal(t, http.StatusOK, w.Code)

	var res Result[[]monitor.NodeStatus]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, ResultSuccess, res.Code)
	require.Len(t, res.Result, 1)
	assert.Equal(t, "A-101", res.Result[0].ID)
	assert.Equal(t, models.ThreatWatch, res.Result[0].Status)
	assert.Equal(t, "All Clear", res.Result[0].Event)
	assert.True(t, res.Result[0].Live)
}

func TestSensorFeed(t *testing.T) {
	r := setupRouter(nil)

	w := doGet(t, r, "/api/v1/sensor_feed")
	require.Equal(t, http.StatusOK, w.Code)
	var res Result[SensorFeed]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "floorplan", res.Result.View)
	require.Len(t, res.Result.Data, 2)
	assert.Equal(t, int64(2), res.Result.Data[1].EntryID)

	w = doGet(t, r, "/api/v1/sensor_feed?view=nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"code":-1`)
}

func TestViews(t *testing.T) {
	r := setupRouter(nil)

	w := doGet(t, r, "/api/v1/views")
	require.Equal(t, http.StatusOK, w.Code)
	var list Result[[]monitor.Snapshot]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Result, 1)

	w = doGet(t, r, "/api/v1/views/floorplan")
	require.Equal(t, http.StatusOK, w.Code)
	var one Result[monitor.Snapshot]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &one))
	assert.Equal(t, uint64(4), one.Result.Seq)
	assert.Equal(t, 100, one.Result.Distribution[models.CategoryNormal])
	assert.NotContains(t, w.Body.String(), "field1")

	w = doGet(t, r, "/api/v1/views/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doGet(t, r, "/api/v1/views/floorplan/export.pdf")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExport(t *testing.T) {
	r := setupRouter(nil)

	w := doGet(t, r, "/api/v1/views/floorplan/export.csv")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "codebluehalo_floorplan_")
	assert.Contains(t, w.Body.String(), "Baseline_Movement")

	w = doGet(t, r, "/api/v1/views/floorplan/export.xlsx")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	// xlsx 是 zip 包
	assert.True(t, strings.HasPrefix(w.Body.String(), "PK"))

	w = doGet(t, r, "/api/v1/views/missing/export.csv")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAlerts(t *testing.T) {
	w := doGet(t, setupRouter(nil), "/api/v1/alerts")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	history := &fakeHistory{events: []models.AlertEvent{{EventID: "e1", NodeID: "A-101", State: models.ThreatAlert}}}
	w = doGet(t, setupRouter(history), "/api/v1/alerts?node_id=A-101&limit=5")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"event_id":"e1"`)
	assert.Equal(t, "A-101", history.gotNode)
	assert.Equal(t, 5, history.gotLimit)

	history = &fakeHistory{err: errors.New("db down")}
	w = doGet(t, setupRouter(history), "/api/v1/alerts?limit=abc")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 50, history.gotLimit)
}

func TestMethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/nodes", nil)
	w := httptest.NewRecorder()
	setupRouter(nil).ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/nodes", nil)
	w = httptest.NewRecorder()
	setupRouter(nil).ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r := setupRouter(nil)
	doGet(t, r, "/api/v1/nodes")

	w := doGet(t, r, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `codeblue_http_requests_total{route="/api/v1/nodes",status="200"}`)
}

type fakeCache struct {
	snaps map[string]*monitor.Snapshot
	err   error
}

func (f *fakeCache) GetSnapshot(ctx context.Context, view string) (*monitor.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.snaps[view]
	if !ok {
		return nil, store.ErrCacheMiss
	}
	return s, nil
}

func (f *fakeCache) CachedViews(ctx context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	views := make([]string, 0, len(f.snaps))
	for v := range f.snaps {
		views = append(views, v)
	}
	return views, nil
}

func setupRouterWithCache(cache SnapshotCacheReader) *Router {
	src := &fakeSource{snaps: map[string]monitor.Snapshot{"floorplan": floorplanSnapshot()}}
	h := NewMonitorHandler(src, nil, "floorplan", zap.NewNop())
	h.SetSnapshotCache(cache)
	r := NewRouter(metrics.NewMetrics(), zap.NewNop())
	r.RegisterMonitorRoutes(h)
	return r
}

func TestGetView_FromCache(t *testing.T) {
	cached := floorplanSnapshot()
	cached.Seq = 9
	r := setupRouterWithCache(&fakeCache{snaps: map[string]*monitor.Snapshot{"floorplan": &cached}})

	w := doGet(t, r, "/api/v1/views/floorplan?source=cache")
	require.Equal(t, http.StatusOK, w.Code)
	var res Result[monitor.Snapshot]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, uint64(9), res.Result.Seq)

	w = doGet(t, r, "/api/v1/views/analysis?source=cache")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doGet(t, setupRouterWithCache(&fakeCache{err: errors.New("redis down")}), "/api/v1/views/floorplan?source=cache")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	// 未启用缓存
	w = doGet(t, setupRouter(nil), "/api/v1/views/floorplan?source=cache")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealth_ListsCachedViews(t *testing.T) {
	a, b := floorplanSnapshot(), floorplanSnapshot()
	r := setupRouterWithCache(&fakeCache{snaps: map[string]*monitor.Snapshot{"sensors": &a, "floorplan": &b}})

	w := doGet(t, r, "/api/v1/system/health")
	require.Equal(t, http.StatusOK, w.Code)
	var res Result[HealthStatus]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, []string{"floorplan", "sensors"}, res.Result.CachedViews)

	// 缓存异常不影响健康检查
	w = doGet(t, setupRouterWithCache(&fakeCache{err: errors.New("redis down")}), "/api/v1/system/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "cached_views")
}
