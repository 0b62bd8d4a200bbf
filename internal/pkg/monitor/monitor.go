package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grant-settlement-sol/internal/pkg/logger"
)

type MonitorServer struct {
	port   int
	server *http.Server
}

func NewMonitorServer(port int) *MonitorServer {
	return &MonitorServer{
		port: port,
		server: &http.Server{
			Addr:              fmt.Sprintf("0.0.0.0:%d", port),
			Handler:           NewHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// NewHandler /metrics 使用独立 Registry，健康检查路径返回 UP
func NewHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry}))
	health := http.HandlerFunc(healthHandler)
	mux.Handle("/healthz", health)
	mux.Handle("/health/readiness", health)
	mux.Handle("/health/liveness", health)
	return mux
}

// Start 阻塞直到 Stop，满足 go-zero service.Service
func (m *MonitorServer) Start() {
	logger.Infof("[Monitor] starting on port %d", m.port)
	if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("[Monitor] 监控服务启动失败: %v", err)
	}
}

func (m *MonitorServer) Stop() {
	logger.Infof("[Monitor] shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = m.server.Shutdown(ctx)
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "UP",
		"checkTime": time.Now().In(time.Local).Format("2006-01-02T15:04:05.9999999"),
		"details":   "Application is running normally",
	})
}
