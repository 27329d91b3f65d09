package httpapi

import (
	"net/http"
	"strings"

	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/metrics"
	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux     *http.ServeMux
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewRouter(m *metrics.Metrics, logger *zap.Logger) *Router {
	return &Router{
		mux:     http.NewServeMux(),
		metrics: m,
		logger:  logger,
	}
}

// Handle 注册路由并记录请求指标
func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.Handle(pattern, r.metrics.WrapHandler(pattern, h))
}

// HandleHandler 注册原始 http.Handler（WebSocket 升级需要未包装的 ResponseWriter）
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

// ServeHTTP 前端开发时跨域访问，放开 CORS
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if req.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	r.mux.ServeHTTP(w, req)
}

func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, req)
	}
}

// RegisterMonitorRoutes 注册监控 API
func (r *Router) RegisterMonitorRoutes(h *MonitorHandler) {
	r.Handle("/api/v1/system/health", getOnly(h.Health))
	r.Handle("/api/v1/nodes", getOnly(h.Nodes))
	r.Handle("/api/v1/sensor_feed", getOnly(h.SensorFeed))
	r.Handle("/api/v1/alerts", getOnly(h.Alerts))
	r.Handle("/api/v1/views", getOnly(h.ListViews))

	// views/{name}、views/{name}/export.xlsx、views/{name}/export.csv
	r.Handle("/api/v1/views/", getOnly(func(w http.ResponseWriter, req *http.Request) {
		rest := strings.TrimPrefix(req.URL.Path, "/api/v1/views/")
		parts := strings.Split(rest, "/")
		switch {
		case len(parts) == 1 && parts[0] != "":
			h.GetView(w, req, parts[0])
		case len(parts) == 2 && parts[1] == "export.xlsx":
			h.ExportXLSX(w, req, parts[0])
		case len(parts) == 2 && parts[1] == "export.csv":
			h.ExportCSV(w, req, parts[0])
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

// RegisterWebSocket /api/v1/ws
func (r *Router) RegisterWebSocket(h http.Handler) {
	r.HandleHandler("/api/v1/ws", h)
}

// RegisterMetrics /metrics
func (r *Router) RegisterMetrics() {
	r.HandleHandler("/metrics", r.metrics.Handler())
}
