// Package stats samples resource usage of session child processes.
package stats

import (
	"github.com/shirou/gopsutil/v3/process"
)

// Sample is one point-in-time reading of a child process.
type Sample struct {
	CPUPercent float64 `json:"cpuPercent"`
	RSSBytes   uint64  `json:"rssBytes"`
}

// Collect samples the process with the given pid. Stats decorate session
// listings and are strictly best-effort: a vanished process or a platform
// refusal returns nil rather than an error.
func Collect(pid int) *Sample {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil
	}

	s := &Sample{}
	if cpu, err := p.CPUPercent(); err == nil {
		s.CPUPercent = cpu
	}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		s.RSSBytes = mem.RSS
	}
	return s
}
