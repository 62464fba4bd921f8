package server

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/allocator/pkg/logger"
)

// SystemSnapshot is one sample of host and process statistics.
type SystemSnapshot struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  float64 `json:"memory_used_mb"`
	Goroutines    int     `json:"goroutines"`
	SampledAt     string  `json:"sampled_at"`
}

// StatusMonitor periodically samples system statistics so that status
// requests never wait on a CPU measurement window.
type StatusMonitor struct {
	log       zerolog.Logger
	startedAt time.Time

	// sample is replaced in tests.
	sample func() (SystemSnapshot, error)

	mu   sync.RWMutex
	last SystemSnapshot
	ok   bool
}

// NewStatusMonitor creates a new status monitor
func NewStatusMonitor(log zerolog.Logger) *StatusMonitor {
	return &StatusMonitor{
		log:       logger.Component(log, "status_monitor"),
		startedAt: time.Now(),
		sample:    sampleSystem,
	}
}

// Start samples once and then every interval until ctx is cancelled. A
// cancelled ctx starts nothing.
func (m *StatusMonitor) Start(ctx context.Context, interval time.Duration) {
	go m.monitor(ctx, interval)
}

func (m *StatusMonitor) monitor(ctx context.Context, interval time.Duration) {
	if ctx.Err() != nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.refresh()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.refresh()
		}
	}
}

// refresh takes a sample and stores it. A failed sample keeps the previous one.
func (m *StatusMonitor) refresh() {
	snapshot, err := m.sample()
	if err != nil {
		m.log.Warn().Err(err).Msg("Failed to sample system stats")
		return
	}

	m.mu.Lock()
	m.last = snapshot
	m.ok = true
	m.mu.Unlock()
}

// Snapshot returns the latest sample, taking one if none exists yet.
func (m *StatusMonitor) Snapshot() (SystemSnapshot, bool) {
	m.mu.RLock()
	snapshot, ok := m.last, m.ok
	m.mu.RUnlock()
	if ok {
		return snapshot, true
	}

	m.refresh()
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last, m.ok
}

// Uptime is the time since the monitor was created.
func (m *StatusMonitor) Uptime() time.Duration {
	return time.Since(m.startedAt)
}

func sampleSystem() (SystemSnapshot, error) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		return SystemSnapshot{}, err
	}
	memInfo, err := mem.VirtualMemory()
	if err != nil {
		return SystemSnapshot{}, err
	}

	snapshot := SystemSnapshot{
		MemoryPercent: memInfo.UsedPercent,
		MemoryUsedMB:  float64(memInfo.Used) / 1024 / 1024,
		Goroutines:    runtime.NumGoroutine(),
		SampledAt:     time.Now().Format(time.RFC3339),
	}
	if len(cpuPercent) > 0 {
		snapshot.CPUPercent = cpuPercent[0]
	}
	return snapshot, nil
}
