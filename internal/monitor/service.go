// Package monitor collects host health metrics for the API's health endpoint.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	gopsutilNet "github.com/shirou/gopsutil/v4/net"
)

const (
	snapshotCacheTTL   = 2 * time.Second
	networkSpeedWindow = 6 * time.Second
	networkHistoryMax  = 10
)

type Service struct {
	log     *slog.Logger
	started time.Time

	mu      sync.Mutex
	hasSnap bool
	snap    Snapshot

	traffic *trafficWindow
}

func NewService(log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		log:     log,
		started: time.Now(),
		traffic: newTrafficWindow(networkHistoryMax, networkSpeedWindow),
	}
}

type Snapshot struct {
	Status   string `json:"status"`
	Platform string `json:"platform"`

	CPUUsage    float64   `json:"cpu_usage"`
	CPUCores    int       `json:"cpu_cores"`
	LoadAverage []float64 `json:"load_average,omitempty"`

	MemoryUsedPercent float64 `json:"memory_used_percent"`

	NetworkBytesReceived uint64  `json:"network_bytes_received"`
	NetworkBytesSent     uint64  `json:"network_bytes_sent"`
	NetworkSpeedReceived float64 `json:"network_speed_received"`
	NetworkSpeedSent     float64 `json:"network_speed_sent"`

	Goroutines    int   `json:"goroutines"`
	UptimeSeconds int64 `json:"uptime_seconds"`
	TimestampMs   int64 `json:"timestamp_ms"`
}

// Snapshot returns current host metrics, cached for a short TTL so frequent
// health polls stay cheap.
func (s *Service) Snapshot(ctx context.Context) Snapshot {
	now := time.Now()

	s.mu.Lock()
	if s.hasSnap && now.Sub(time.UnixMilli(s.snap.TimestampMs)) < snapshotCacheTTL {
		out := s.snap
		s.mu.Unlock()
		return out
	}
	s.mu.Unlock()

	snap := s.collect(ctx)

	s.mu.Lock()
	s.snap = snap
	s.hasSnap = true
	s.mu.Unlock()

	return snap
}

func (s *Service) collect(ctx context.Context) Snapshot {
	collectedAt := time.Now()

	snap := Snapshot{
		Status:        "healthy",
		Platform:      runtime.GOOS,
		Goroutines:    runtime.NumGoroutine(),
		UptimeSeconds: int64(collectedAt.Sub(s.started).Seconds()),
		TimestampMs:   collectedAt.UnixMilli(),
	}

	// CPU usage: prefer non-blocking sampling (diff from last call) and per-CPU
	// sampling on macOS to avoid 0% results caused by coarse aggregated tick
	// updates.
	if usage, err := readCPUUsage(ctx); err == nil {
		snap.CPUUsage = usage
	} else {
		s.log.Warn("health: get cpu percent failed", "error", err)
	}

	if cores, err := cpu.CountsWithContext(ctx, true); err == nil {
		snap.CPUCores = cores
	} else {
		s.log.Warn("health: get cpu cores failed", "error", err)
	}

	if avg, err := load.AvgWithContext(ctx); err == nil && avg != nil {
		snap.LoadAverage = []float64{avg.Load1, avg.Load5, avg.Load15}
	} else if err != nil {
		s.log.Warn("health: get load average failed", "error", err)
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil && vm != nil {
		snap.MemoryUsedPercent = vm.UsedPercent
	} else if err != nil {
		s.log.Warn("health: get memory failed", "error", err)
	}

	if ioStats, err := gopsutilNet.IOCountersWithContext(ctx, false); err == nil && len(ioStats) > 0 {
		snap.NetworkBytesReceived = ioStats[0].BytesRecv
		snap.NetworkBytesSent = ioStats[0].BytesSent

		s.traffic.observe(ioStats[0].BytesRecv, ioStats[0].BytesSent, collectedAt)
		snap.NetworkSpeedReceived, snap.NetworkSpeedSent = s.traffic.rate(collectedAt)
	} else if err != nil {
		s.log.Warn("health: get network io failed", "error", err)
	}

	return snap
}

func readCPUUsage(ctx context.Context) (float64, error) {
	var errs []error

	// Non-blocking: compare against the last call. This avoids short-interval
	// sampling returning 0 on newer macOS versions due to coarse aggregated
	// tick updates.
	if p, err := cpu.PercentWithContext(ctx, 0, true); err == nil && len(p) > 0 {
		return average(p), nil
	} else if err != nil {
		errs = append(errs, err)
	}
	if p, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(p) > 0 {
		return p[0], nil
	} else if err != nil {
		errs = append(errs, err)
	}

	// Fallback: take a short blocking interval to bootstrap lastTimes if needed.
	if p, err := cpu.PercentWithContext(ctx, 250*time.Millisecond, true); err == nil && len(p) > 0 {
		return average(p), nil
	} else if err != nil {
		errs = append(errs, err)
	}
	if p, err := cpu.PercentWithContext(ctx, 250*time.Millisecond, false); err == nil && len(p) > 0 {
		return p[0], nil
	} else if err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return 0, errors.Join(errs...)
	}
	return 0, fmt.Errorf("cpu percent unavailable")
}

func average(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
