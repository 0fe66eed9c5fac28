// Package observability exposes the running server's own process figures,
// read through gopsutil and reported by the health endpoint.
package observability

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

type ProcessStats struct {
	PID        int32         `json:"pid"`
	RSSBytes   uint64        `json:"rssBytes"`
	CPUPercent float64       `json:"cpuPercent"`
	Goroutines int           `json:"goroutines"`
	Uptime     time.Duration `json:"-"`
}

type ProcessMonitor struct {
	proc      *process.Process
	startedAt time.Time
}

// NewProcessMonitor watches the current process.
func NewProcessMonitor() (*ProcessMonitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to open own process: %w", err)
	}
	return &ProcessMonitor{proc: proc, startedAt: time.Now()}, nil
}

func (m *ProcessMonitor) Snapshot() (ProcessStats, error) {
	memory, err := m.proc.MemoryInfo()
	if err != nil {
		return ProcessStats{}, fmt.Errorf("error while finding process ram usage: %w", err)
	}
	cpu, err := m.proc.CPUPercent()
	if err != nil {
		return ProcessStats{}, fmt.Errorf("error while finding process cpu usage: %w", err)
	}
	return ProcessStats{
		PID:        m.proc.Pid,
		RSSBytes:   memory.RSS,
		CPUPercent: cpu,
		Goroutines: runtime.NumGoroutine(),
		Uptime:     time.Since(m.startedAt),
	}, nil
}
