package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/export"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/models"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/monitor"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/scheduler"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/store"
	"go.uber.org/zap"
)

// SnapshotSource 监控服务
type SnapshotSource interface {
	ViewNames() []string
	Snapshot(name string) (monitor.Snapshot, bool)
	Snapshots() []monitor.Snapshot
	PollerStats() map[string]scheduler.Stats
}

// AlertHistory 报警历史（数据库未启用时为 nil）
type AlertHistory interface {
	ListAlertEvents(ctx context.Context, nodeID string, limit int) ([]models.AlertEvent, error)
}

// SnapshotCacheReader Redis 快照缓存（Redis 未启用时为 nil）
type SnapshotCacheReader interface {
	GetSnapshot(ctx context.Context, view string) (*monitor.Snapshot, error)
	CachedViews(ctx context.Context) ([]string, error)
}

// MonitorHandler 监控 API
type MonitorHandler struct {
	source   SnapshotSource
	alerts   AlertHistory
	cache    SnapshotCacheReader
	nodeView string // /nodes 使用的视图
	logger   *zap.Logger
}

// NewMonitorHandler 创建监控 API 处理器
func NewMonitorHandler(source SnapshotSource, alerts AlertHistory, nodeView string, logger *zap.Logger) *MonitorHandler {
	return &MonitorHandler{
		source:   source,
		alerts:   alerts,
		nodeView: nodeView,
		logger:   logger,
	}
}

// SetSnapshotCache 启用缓存读取（health 的 cached_views、views/{name}?source=cache）
func (h *MonitorHandler) SetSnapshotCache(cache SnapshotCacheReader) {
	h.cache = cache
}

// HealthStatus 健康检查结果
type HealthStatus struct {
	Status      string                     `json:"status"`
	Views       []string                   `json:"views"`
	Pollers     map[string]scheduler.Stats `json:"pollers"`
	CachedViews []string                   `json:"cached_views,omitempty"`
}

// SensorFeed 原始样本窗口
type SensorFeed struct {
	View string                `json:"view"`
	Data []models.SensorSample `json:"data"`
}

// Health GET /api/v1/system/health
func (h *MonitorHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:  "healthy",
		Views:   h.source.ViewNames(),
		Pollers: h.source.PollerStats(),
	}
	if h.cache != nil {
		views, err := h.cache.CachedViews(r.Context())
		if err != nil {
			h.logger.Warn("Failed to list cached snapshots", zap.Error(err))
		} else {
			sort.Strings(views)
			status.CachedViews = views
		}
	}
	writeOk(w, status)
}

// Nodes GET /api/v1/nodes
func (h *MonitorHandler) Nodes(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.source.Snapshot(h.nodeView)
	if !ok {
		writeOk(w, []monitor.NodeStatus{})
		return
	}
	writeOk(w, []monitor.NodeStatus{snap.NodeStatus()})
}

// SensorFeed GET /api/v1/sensor_feed?view=
func (h *MonitorHandler) SensorFeed(w http.ResponseWriter, r *http.Request) {
	view := r.URL.Query().Get("view")
	if view == "" {
		view = h.nodeView
	}
	snap, ok := h.source.Snapshot(view)
	if !ok {
		writeUnknownView(w, view)
		return
	}
	data := []models.SensorSample(snap.Window)
	if data == nil {
		data = []models.SensorSample{}
	}
	writeOk(w, SensorFeed{View: view, Data: data})
}

// ListViews GET /api/v1/views
func (h *MonitorHandler) ListViews(w http.ResponseWriter, r *http.Request) {
	writeOk(w, h.source.Snapshots())
}

// GetView GET /api/v1/views/{name}[?source=cache]
func (h *MonitorHandler) GetView(w http.ResponseWriter, r *http.Request, name string) {
	if r.URL.Query().Get("source") == "cache" {
		h.getCachedView(w, r, name)
		return
	}
	snap, ok := h.source.Snapshot(name)
	if !ok {
		writeUnknownView(w, name)
		return
	}
	writeOk(w, snap)
}

// getCachedView 读取 Redis 中其他消费者看到的快照
func (h *MonitorHandler) getCachedView(w http.ResponseWriter, r *http.Request, name string) {
	if h.cache == nil {
		writeFail(w, http.StatusServiceUnavailable, "snapshot cache is disabled")
		return
	}
	snap, err := h.cache.GetSnapshot(r.Context(), name)
	if errors.Is(err, store.ErrCacheMiss) {
		writeFail(w, http.StatusNotFound, "no cached snapshot for view: "+name)
		return
	}
	if err != nil {
		h.logger.Error("Failed to read cached snapshot", zap.String("view", name), zap.Error(err))
		writeFail(w, http.StatusInternalServerError, "failed to read cached snapshot")
		return
	}
	writeOk(w, snap)
}

// ExportXLSX GET /api/v1/views/{name}/export.xlsx
func (h *MonitorHandler) ExportXLSX(w http.ResponseWriter, r *http.Request, name string) {
	snap, ok := h.source.Snapshot(name)
	if !ok {
		writeUnknownView(w, name)
		return
	}
	data, err := export.GenerateSeriesWorkbook(snap.Series, snap.Distribution)
	if err != nil {
		h.logger.Error("Failed to generate workbook", zap.String("view", name), zap.Error(err))
		writeFail(w, http.StatusInternalServerError, "failed to generate workbook")
		return
	}
	writeFile(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		export.FileName(name, time.Now(), "xlsx"), data)
}

// ExportCSV GET /api/v1/views/{name}/export.csv
func (h *MonitorHandler) ExportCSV(w http.ResponseWriter, r *http.Request, name string) {
	snap, ok := h.source.Snapshot(name)
	if !ok {
		writeUnknownView(w, name)
		return
	}
	data, err := export.GenerateSeriesCSV(snap.Series)
	if err != nil {
		h.logger.Error("Failed to generate csv", zap.String("view", name), zap.Error(err))
		writeFail(w, http.StatusInternalServerError, "failed to generate csv")
		return
	}
	writeFile(w, "text/csv; charset=utf-8", export.FileName(name, time.Now(), "csv"), data)
}

// Alerts GET /api/v1/alerts?node_id=&limit=
func (h *MonitorHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	if h.alerts == nil {
		writeFail(w, http.StatusServiceUnavailable, "alert history is disabled")
		return
	}
	q := r.URL.Query()
	events, err := h.alerts.ListAlertEvents(r.Context(), q.Get("node_id"), parseInt(q.Get("limit"), 50))
	if err != nil {
		h.logger.Error("Failed to list alert events", zap.Error(err))
		writeFail(w, http.StatusInternalServerError, "failed to list alert events")
		return
	}
	writeOk(w, events)
}
