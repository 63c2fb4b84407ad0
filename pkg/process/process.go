// Package process inspects child processes of the station.
package process

import (
	"os"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"
)

// IsProcessAlive checks if a process with the given PID is still running.
// It uses a signal-sending method that is cross-platform for Unix-like systems (macOS, Linux).
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Signal 0 checks for existence. EPERM still means alive.
	err = p.Signal(syscall.Signal(0))
	return err == nil || os.IsPermission(err)
}

// Stats is a point-in-time resource sample of one process.
type Stats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	RSSBytes      uint64  `json:"rss_bytes"`
	MemoryPercent float32 `json:"memory_percent"`
}

// Sample reads resource usage for pid. Fields that cannot be read are left
// zero; an error is returned only when the process cannot be found.
func Sample(pid int) (Stats, error) {
	var stats Stats
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return stats, err
	}
	if cpu, err := p.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		stats.RSSBytes = mem.RSS
	}
	if memP, err := p.MemoryPercent(); err == nil {
		stats.MemoryPercent = memP
	}
	return stats, nil
}
