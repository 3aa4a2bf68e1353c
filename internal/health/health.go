package health

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthChecker struct {
	db    Pinger
	redis func() bool
}

type HealthStatus struct {
	Status   string           `json:"status"`
	Database ComponentHealth  `json:"database"`
	Redis    *ComponentHealth `json:"redis,omitempty"`
	System   *SystemHealth    `json:"system,omitempty"`
}

type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime int64  `json:"response_time_ms"`
}

type SystemHealth struct {
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsed    string  `json:"memory_used"`
	MemoryTotal   string  `json:"memory_total"`
	DiskPercent   float64 `json:"disk_percent"`
	DiskUsed      string  `json:"disk_used"`
	DiskTotal     string  `json:"disk_total"`
}

func NewHealthChecker(db Pinger) *HealthChecker {
	return &HealthChecker{db: db}
}

// SetRedisCheck adds the cache to detailed checks. Redis is optional, so
// it never makes the service unhealthy.
func (h *HealthChecker) SetRedisCheck(check func() bool) {
	h.redis = check
}

// CheckBasic reports database reachability (readiness).
func (h *HealthChecker) CheckBasic() HealthStatus {
	dbHealth := h.checkDatabase()

	status := "healthy"
	if dbHealth.Status != "healthy" {
		status = "unhealthy"
	}

	return HealthStatus{
		Status:   status,
		Database: dbHealth,
	}
}

// CheckDetailed adds cache and host resource usage.
func (h *HealthChecker) CheckDetailed() HealthStatus {
	status := h.CheckBasic()

	if h.redis != nil {
		start := time.Now()
		rh := ComponentHealth{Status: "healthy"}
		if !h.redis() {
			rh.Status = "unavailable"
		}
		rh.ResponseTime = time.Since(start).Milliseconds()
		status.Redis = &rh
	}

	sys := &SystemHealth{}
	if memStats, err := mem.VirtualMemory(); err == nil {
		sys.MemoryPercent = memStats.UsedPercent
		sys.MemoryUsed = formatBytes(memStats.Used)
		sys.MemoryTotal = formatBytes(memStats.Total)
	}
	if diskStats, err := disk.Usage("/"); err == nil {
		sys.DiskPercent = diskStats.UsedPercent
		sys.DiskUsed = formatBytes(diskStats.Used)
		sys.DiskTotal = formatBytes(diskStats.Total)
	}
	status.System = sys

	return status
}

func (h *HealthChecker) checkDatabase() ComponentHealth {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	err := h.db.Ping(ctx)
	responseTime := time.Since(start).Milliseconds()

	if err != nil {
		return ComponentHealth{
			Status:       "unhealthy",
			ResponseTime: responseTime,
		}
	}

	return ComponentHealth{
		Status:       "healthy",
		ResponseTime: responseTime,
	}
}

func formatBytes(bytes uint64) string {
	gb := float64(bytes) / (1024 * 1024 * 1024)
	if gb < 1 {
		mb := float64(bytes) / (1024 * 1024)
		return fmt.Sprintf("%.1f MB", mb)
	}
	return fmt.Sprintf("%.1f GB", gb)
}
